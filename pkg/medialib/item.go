package medialib

import (
	"context"
	"fmt"
	"time"
)

// Item is a file with the operations that differ by where it lives.
type Item interface {
	File() MediaFile
	AccessURL(ctx context.Context, r *Resolver) (string, error)
	Delete(ctx context.Context, b Backend, r *Resolver) error
}

// Container is anything files can be listed from.
type Container interface {
	ListChildren(ctx context.Context, c *Catalog) ([]MediaFile, error)
}

// ItemOf wraps f in the variant matching its location.
func ItemOf(f MediaFile) Item {
	if f.Location.Kind == LocationCloud {
		return CloudFile{f}
	}

	return AuthoritativeFile{f}
}

// AuthoritativeFile lives in the object store and is only reachable through
// short-lived access URLs.
type AuthoritativeFile struct {
	MediaFile
}

func (f AuthoritativeFile) File() MediaFile {
	return f.MediaFile
}

func (f AuthoritativeFile) AccessURL(ctx context.Context, r *Resolver) (string, error) {
	if f.ObjectKey == "" {
		return "", ErrPreviewUnavailable
	}

	return r.Resolve(ctx, f.ObjectKey)
}

// Delete removes the file and its cached access URL.
func (f AuthoritativeFile) Delete(ctx context.Context, b Backend, r *Resolver) error {
	if err := b.DeleteFile(ctx, f.ID); err != nil {
		return fmt.Errorf("failed to delete %s, %w", f.Name, err)
	}

	r.Invalidate(f.ObjectKey)
	return nil
}

// CloudFile lives in a linked provider account.
type CloudFile struct {
	MediaFile
}

func (f CloudFile) File() MediaFile {
	return f.MediaFile
}

// AccessURL returns the provider URL when it is still usable and asks the
// service for a fresh link otherwise.
func (f CloudFile) AccessURL(ctx context.Context, r *Resolver) (string, error) {
	if f.URL != "" && !expired(f.ExpiresAt, r.now()) {
		return f.URL, nil
	}

	return r.ResolveCloud(ctx, f.Location.Provider, f.ProviderID)
}

// Delete is not offered for mirrors; they are managed in the provider account.
func (f CloudFile) Delete(context.Context, Backend, *Resolver) error {
	return ErrUnsupported
}

// AuthoritativeFolder lists catalog files. An empty ID is the project root.
type AuthoritativeFolder struct {
	Project string
	ID      string
}

func (f AuthoritativeFolder) ListChildren(ctx context.Context, c *Catalog) ([]MediaFile, error) {
	if f.ID == "" {
		return c.ListFiles(ctx, f.Project, nil)
	}

	id := f.ID
	return c.ListFiles(ctx, f.Project, &id)
}

// CloudFolder lists a provider folder by its provider-native id.
type CloudFolder struct {
	Provider Provider
	ID       string
}

func (f CloudFolder) ListChildren(ctx context.Context, c *Catalog) ([]MediaFile, error) {
	return c.ListCloudFiles(ctx, f.Provider, f.ID)
}

// expired reports whether a cloud link with an expiry has passed it.
func expired(at *time.Time, now time.Time) bool {
	return at != nil && !now.Before(*at)
}
