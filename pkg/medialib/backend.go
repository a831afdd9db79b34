package medialib

import (
	"context"
	"time"
)

// Backend is the set of service endpoints the storage core consumes.
// Client implements it over HTTP.
type Backend interface {
	ListFiles(ctx context.Context, project string, folderID *string) ([]MediaFile, error)
	FolderTree(ctx context.Context, project string) ([]*MediaFolder, error)
	CreateFolder(ctx context.Context, project string, req FolderRequest) (*MediaFolder, error)
	RenameFolder(ctx context.Context, project, folderID, name string) (*MediaFolder, error)
	DeleteFolder(ctx context.Context, project, folderID string, moveToParent bool) error

	RequestUpload(ctx context.Context, project string, req UploadRequest) (*UploadGrant, error)
	RegisterUpload(ctx context.Context, project string, req RegisterRequest) (*MediaFile, error)
	UpdateFile(ctx context.Context, fileID string, req FileUpdate) (*MediaFile, error)
	DeleteFile(ctx context.Context, fileID string) error

	ExchangeURL(ctx context.Context, key string, lifetime time.Duration) (*SignedURL, error)
	ExchangeURLs(ctx context.Context, keys []string, lifetime time.Duration) (map[string]SignedURL, error)

	CloudConnections(ctx context.Context) ([]CloudConnection, error)
	ListCloudFiles(ctx context.Context, provider Provider, folderID string) ([]MediaFile, error)
	CloudFileURL(ctx context.Context, provider Provider, fileID string) (*SignedURL, error)
	Sync(ctx context.Context, project string, req SyncRequest) (*SyncReport, error)

	Quota(ctx context.Context) (*Quota, error)
}
