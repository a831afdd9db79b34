package medialib

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

// DefaultListingTTL bounds how long a listing is served from memory when
// nothing invalidates it.
const DefaultListingTTL = 30 * time.Second

const listingCacheSize = 512

// Catalog is the read side of the storage catalog. Listings are cached per
// project and folder and must be invalidated by whoever mutates them. Cloud
// listings are read through every time because providers change them
// outside of this process.
type Catalog struct {
	backend Backend
	files   *expirable.LRU[string, []MediaFile]
	trees   *expirable.LRU[string, []*MediaFolder]
	group   singleflight.Group

	// generation is bumped by every invalidation so a fetch that started
	// before it never repopulates the cache with pre-write data.
	generation atomic.Uint64
}

func NewCatalog(backend Backend, ttl time.Duration) *Catalog {
	if ttl <= 0 {
		ttl = DefaultListingTTL
	}

	return &Catalog{
		backend: backend,
		files:   expirable.NewLRU[string, []MediaFile](listingCacheSize, nil, ttl),
		trees:   expirable.NewLRU[string, []*MediaFolder](listingCacheSize, nil, ttl),
	}
}

func filesKey(project string, folderID *string) string {
	if folderID == nil {
		return project + "/"
	}

	return project + "/" + *folderID
}

// ListFiles lists the authoritative files of a project, in one folder or at
// the root when folderID is nil. The result is the caller's to modify.
func (c *Catalog) ListFiles(ctx context.Context, project string, folderID *string) ([]MediaFile, error) {
	if files, ok := c.files.Get(filesKey(project, folderID)); ok {
		return slices.Clone(files), nil
	}

	return c.Refresh(ctx, project, folderID)
}

// Refresh re-reads a listing from the service regardless of the cache.
func (c *Catalog) Refresh(ctx context.Context, project string, folderID *string) ([]MediaFile, error) {
	key := filesKey(project, folderID)
	gen := c.generation.Load()

	v, err, _ := c.group.Do(fmt.Sprintf("files:%s#%d", key, gen), func() (any, error) {
		files, err := c.backend.ListFiles(ctx, project, folderID)
		if err != nil {
			return nil, err
		}

		if files == nil {
			files = []MediaFile{}
		}

		if c.generation.Load() == gen {
			c.files.Add(key, files)
		}

		return files, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list files, %w", err)
	}

	return slices.Clone(v.([]MediaFile)), nil
}

// FolderTree returns the authoritative folder tree of a project.
func (c *Catalog) FolderTree(ctx context.Context, project string) ([]*MediaFolder, error) {
	if tree, ok := c.trees.Get(project); ok {
		return cloneTree(tree), nil
	}

	return c.RefreshTree(ctx, project)
}

func (c *Catalog) RefreshTree(ctx context.Context, project string) ([]*MediaFolder, error) {
	gen := c.generation.Load()

	v, err, _ := c.group.Do(fmt.Sprintf("tree:%s#%d", project, gen), func() (any, error) {
		tree, err := c.backend.FolderTree(ctx, project)
		if err != nil {
			return nil, err
		}

		if tree == nil {
			tree = []*MediaFolder{}
		}

		if c.generation.Load() == gen {
			c.trees.Add(project, tree)
		}

		return tree, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load folder tree, %w", err)
	}

	return cloneTree(v.([]*MediaFolder)), nil
}

func cloneTree(tree []*MediaFolder) []*MediaFolder {
	out := make([]*MediaFolder, len(tree))
	for i, f := range tree {
		cp := *f
		cp.Path = slices.Clone(f.Path)
		if f.ParentID != nil {
			parent := *f.ParentID
			cp.ParentID = &parent
		}
		cp.Children = cloneTree(f.Children)
		out[i] = &cp
	}

	return out
}

// ListCloudFiles lists a provider folder by its provider-native id.
func (c *Catalog) ListCloudFiles(ctx context.Context, provider Provider, folderID string) ([]MediaFile, error) {
	files, err := c.backend.ListCloudFiles(ctx, provider, folderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s files, %w", provider, err)
	}

	return files, nil
}

// Invalidate drops the listing of one folder and the project's tree, whose
// file counts depend on it.
func (c *Catalog) Invalidate(project string, folderID *string) {
	c.generation.Add(1)
	c.files.Remove(filesKey(project, folderID))
	c.trees.Remove(project)
}

// InvalidateProject drops every cached listing of a project.
func (c *Catalog) InvalidateProject(project string) {
	c.generation.Add(1)

	prefix := project + "/"
	for _, k := range c.files.Keys() {
		if strings.HasPrefix(k, prefix) {
			c.files.Remove(k)
		}
	}

	c.trees.Remove(project)
}
