// Package service holds the business logic behind the media library API
package service

import (
	"context"
	"errors"
	"io"
	"time"

	"filmforge/media-library/pkg/medialib"
)

// Shared with the client package so both sides agree on errors.Is checks.
var (
	ErrNotFound          = medialib.ErrNotFound
	ErrDuplicateName     = medialib.ErrDuplicateName
	ErrQuotaExceeded     = medialib.ErrQuotaExceeded
	ErrObjectNotVisible  = medialib.ErrObjectNotVisible
	ErrNoCloudConnection = medialib.ErrNoCloudConnection
)

var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrFolderNotEmpty = errors.New("folder still contains subfolders")
	ErrGrantExpired   = errors.New("upload grant expired, request a new one")
	ErrQueueClosed    = errors.New("job queue closed")
)

// ObjectStore is the bucket holding the authoritative copy of every file.
// It is implemented by aws.S3Client.
type ObjectStore interface {
	PresignGet(ctx context.Context, key string, lifetime time.Duration) (string, time.Time, error)
	PresignPut(ctx context.Context, key, mime string, lifetime time.Duration) (string, map[string]string, error)
	Head(ctx context.Context, key string) (int64, error)
	Sniff(ctx context.Context, key string) (string, error)
	Open(ctx context.Context, key string) (io.ReadCloser, int64, error)
	Delete(ctx context.Context, keys ...string) error
}
