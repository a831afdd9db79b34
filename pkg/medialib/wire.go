package medialib

import "time"

// Request and response bodies shared by the service and Client.

type UploadRequest struct {
	Name     string  `json:"name"`
	MIME     string  `json:"mime"`
	Size     int64   `json:"size"`
	FolderID *string `json:"folder_id,omitempty"`
}

// UploadGrant authorizes one direct transfer to the object store. The bytes
// must be sent with Method to UploadURL, including every header in Headers.
type UploadGrant struct {
	UploadURL string            `json:"upload_url"`
	Method    string            `json:"method"`
	Headers   map[string]string `json:"headers,omitempty"`
	ObjectKey string            `json:"object_key"`
	ExpiresAt time.Time         `json:"expires_at"`
}

type RegisterRequest struct {
	ObjectKey string  `json:"object_key"`
	Name      string  `json:"name"`
	MIME      string  `json:"mime"`
	Size      int64   `json:"size"`
	FolderID  *string `json:"folder_id,omitempty"`
}

type FileUpdate struct {
	Name     *string `json:"name,omitempty"`
	FolderID *string `json:"folder_id,omitempty"`
	// ToRoot moves the file out of any folder. FolderID is ignored when set.
	ToRoot bool `json:"to_root,omitempty"`
}

type FolderRequest struct {
	Name     string  `json:"name"`
	ParentID *string `json:"parent_id,omitempty"`
}

type SignedURL struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

type ExchangeRequest struct {
	Key             string `json:"key"`
	LifetimeSeconds int    `json:"lifetime_seconds,omitempty"`
}

type BulkExchangeRequest struct {
	Keys            []string `json:"keys"`
	LifetimeSeconds int      `json:"lifetime_seconds,omitempty"`
}

type BulkExchangeResponse struct {
	URLs map[string]SignedURL `json:"urls"`
	// Missing lists the requested keys that could not be exchanged.
	Missing []string `json:"missing,omitempty"`
}

type SyncRequest struct {
	Provider Provider `json:"provider"`
	FileID   *string  `json:"file_id,omitempty"`
	FolderID *string  `json:"folder_id,omitempty"`
}

// SyncReport counts the files pushed to a provider. Only the first error is
// kept as a representative sample.
type SyncReport struct {
	Provider   Provider `json:"provider"`
	Succeeded  int      `json:"succeeded"`
	Failed     int      `json:"failed"`
	FirstError string   `json:"first_error,omitempty"`
}

type ConnectRequest struct {
	Credentials map[string]string `json:"credentials"`
}

type ProviderInfo struct {
	Provider Provider `json:"provider"`
	Folders  []string `json:"folders"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"requestID,omitempty"`
}

// Error codes returned by the service alongside the HTTP status.
// MaxExchangeBatch is the most keys the service signs in one bulk exchange.
const MaxExchangeBatch = 500

const (
	CodeNotFound          = "not_found"
	CodeObjectNotVisible  = "object_not_visible"
	CodeDuplicateName     = "duplicate_name"
	CodeNoCloudConnection = "no_cloud_connection"
	CodeQuotaExceeded     = "quota_exceeded"
	CodeInvalidRequest    = "invalid_request"
	CodeUnsupported       = "unsupported"
	CodeFolderNotEmpty    = "folder_not_empty"
)
