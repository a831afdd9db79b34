package medialib

import (
	"errors"
	"fmt"
)

var (
	// ErrPreviewUnavailable is returned when no access URL can be produced
	// for a file. Callers render a placeholder instead.
	ErrPreviewUnavailable = errors.New("preview unavailable")

	// ErrNoCloudConnection means no provider is connected. The user has to
	// connect one first; nothing was sent to the service.
	ErrNoCloudConnection = errors.New("no cloud storage connected, connect a provider first")

	ErrObjectNotVisible = errors.New("uploaded object is not visible in the store yet")
	ErrNotFound         = errors.New("not found")
	ErrDuplicateName    = errors.New("a folder with that name already exists here")
	ErrQuotaExceeded    = errors.New("storage quota exceeded")
	ErrFolderNotFound   = errors.New("folder not found")
	ErrUnsupported      = errors.New("operation not supported for this location")
)

// APIError is a non-2xx answer from the service.
type APIError struct {
	Status    int
	Code      string
	Message   string
	RequestID string
}

func (e *APIError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("api error %d: %s (request %s)", e.Status, e.Message, e.RequestID)
	}

	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// Is maps service error codes onto the package sentinels so callers can use
// errors.Is without caring about the transport.
func (e *APIError) Is(target error) bool {
	switch e.Code {
	case CodeNotFound:
		return target == ErrNotFound
	case CodeObjectNotVisible:
		return target == ErrObjectNotVisible
	case CodeDuplicateName:
		return target == ErrDuplicateName
	case CodeNoCloudConnection:
		return target == ErrNoCloudConnection
	case CodeQuotaExceeded:
		return target == ErrQuotaExceeded
	case CodeUnsupported:
		return target == ErrUnsupported
	}

	return false
}

// TransferError is a failed byte transfer to the object store. Registration
// was never attempted, so the catalog is untouched.
type TransferError struct {
	Key string
	Err error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("failed to transfer %s to the object store, %v", e.Key, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

// OrphanedUploadError means the bytes reached the object store but the
// catalog entry could not be created. The object exists under Key and can be
// registered again with Upload.RetryRegistration or after a manual refresh.
type OrphanedUploadError struct {
	Key  string
	Name string
	Err  error
}

func (e *OrphanedUploadError) Error() string {
	return fmt.Sprintf("%s was uploaded but not registered, %v", e.Name, e.Err)
}

func (e *OrphanedUploadError) Unwrap() error {
	return e.Err
}
