// Package cloud holds the third-party storage providers a user can link and
// mirror files into
package cloud

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"

	"filmforge/media-library/pkg/medialib"
)

var (
	ErrUnknownProvider = errors.New("unknown cloud provider")
	ErrBadCredentials  = errors.New("missing or invalid provider credentials")
)

// Object is one file streamed into a provider.
type Object struct {
	Name string
	MIME string
	Size int64
	Body io.Reader
}

// Provider is a connected account of a single provider. Folder arguments
// accept either one of medialib.WellKnownFolders or a provider-native id.
type Provider interface {
	Name() medialib.Provider
	Upload(ctx context.Context, folder string, obj Object) (string, error)
	List(ctx context.Context, folder string) ([]medialib.MediaFile, error)
	URL(ctx context.Context, id string) (*medialib.SignedURL, error)
}

// Factory opens a provider from the credentials stored with a connection.
type Factory func(ctx context.Context, creds map[string]string) (Provider, error)

type Registry struct {
	mu        sync.RWMutex
	factories map[medialib.Provider]Factory
}

func NewRegistry() *Registry {
	return &Registry{
		factories: map[medialib.Provider]Factory{},
	}
}

func (r *Registry) Register(p medialib.Provider, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.factories[p] = f
}

// Open builds a provider client for p.
func (r *Registry) Open(ctx context.Context, p medialib.Provider, creds map[string]string) (Provider, error) {
	r.mu.RLock()
	f, ok := r.factories[p]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, p)
	}

	return f(ctx, creds)
}

// Providers describes every registered provider in a stable order.
func (r *Registry) Providers() []medialib.ProviderInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]medialib.ProviderInfo, 0, len(r.factories))
	for _, p := range medialib.Providers {
		if _, ok := r.factories[p]; ok {
			out = append(out, medialib.ProviderInfo{Provider: p, Folders: slices.Clone(medialib.WellKnownFolders)})
		}
	}

	return out
}

// Require checks that every key is present and non-empty in creds.
func Require(creds map[string]string, keys ...string) error {
	for _, k := range keys {
		if creds[k] == "" {
			return fmt.Errorf("%w: %s is required", ErrBadCredentials, k)
		}
	}

	return nil
}

// IsWellKnown reports whether folder names one of the top-level categories.
func IsWellKnown(folder string) bool {
	return slices.Contains(medialib.WellKnownFolders, folder)
}
