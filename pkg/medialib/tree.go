package medialib

import (
	"context"
	"slices"
)

// Node is one entry of the merged browsing tree: an authoritative folder or
// one of a connected provider's well-known folders.
type Node struct {
	ID        string
	Name      string
	Path      []string
	Location  Location
	FileCount int
}

func (n Node) IsCloud() bool {
	return n.Location.Kind == LocationCloud
}

// Breadcrumbs returns the names from the root down to and including n.
func (n Node) Breadcrumbs() []string {
	return append(slices.Clone(n.Path), n.Name)
}

// Container returns the listing capability of the node.
func (n Node) Container(project string) Container {
	if n.IsCloud() {
		return CloudFolder{Provider: n.Location.Provider, ID: n.ID}
	}

	return AuthoritativeFolder{Project: project, ID: n.ID}
}

func nodeOf(f *MediaFolder) Node {
	return Node{
		ID:        f.ID,
		Name:      f.Name,
		Path:      slices.Clone(f.Path),
		Location:  Authoritative(),
		FileCount: f.FileCount,
	}
}

func nodesOf(folders []*MediaFolder) []Node {
	nodes := make([]Node, 0, len(folders))
	for _, f := range folders {
		nodes = append(nodes, nodeOf(f))
	}

	return nodes
}

// TreeBuilder merges the authoritative folder tree and the connected
// provider's top-level folders into one tree.
type TreeBuilder struct {
	catalog *Catalog
	conns   *Connections
}

func NewTreeBuilder(catalog *Catalog, conns *Connections) *TreeBuilder {
	return &TreeBuilder{catalog: catalog, conns: conns}
}

// Children returns the folders to show under parent, or at the root when
// parent is nil. Cloud folders have no listed subfolders: their files are
// reached through Catalog.ListCloudFiles instead.
func (b *TreeBuilder) Children(ctx context.Context, project string, parent *Node) ([]Node, error) {
	if parent != nil && parent.IsCloud() {
		return []Node{}, nil
	}

	tree, err := b.catalog.FolderTree(ctx, project)
	if err != nil {
		return nil, err
	}

	if parent != nil {
		f := FindFolder(tree, parent.ID)
		if f == nil {
			return nil, ErrFolderNotFound
		}

		return nodesOf(f.Children), nil
	}

	nodes := nodesOf(tree)

	if p, ok := b.conns.Active(); ok {
		for _, name := range WellKnownFolders {
			nodes = append(nodes, Node{
				ID:       name,
				Name:     name,
				Path:     []string{},
				Location: Cloud(p),
			})
		}
	}

	return nodes, nil
}

// ResolvePath maps breadcrumb segments to an authoritative folder by walking
// the tree from the root.
func (b *TreeBuilder) ResolvePath(ctx context.Context, project string, segments []string) (*MediaFolder, error) {
	tree, err := b.catalog.FolderTree(ctx, project)
	if err != nil {
		return nil, err
	}

	f := ResolvePath(tree, segments)
	if f == nil {
		return nil, ErrFolderNotFound
	}

	return f, nil
}

// ResolvePath walks tree matching one name segment per level, ancestors
// first. Siblings are matched in order and the first one with the segment's
// name wins. The service refuses duplicate sibling names, so this only
// matters for trees created before that rule.
func ResolvePath(tree []*MediaFolder, segments []string) *MediaFolder {
	if len(segments) == 0 {
		return nil
	}

	level := tree
	var current *MediaFolder

	for _, seg := range segments {
		current = nil
		for _, f := range level {
			if f.Name == seg {
				current = f
				break
			}
		}

		if current == nil {
			return nil
		}

		level = current.Children
	}

	return current
}

// FindFolder searches the tree depth-first for id.
func FindFolder(tree []*MediaFolder, id string) *MediaFolder {
	for _, f := range tree {
		if f.ID == id {
			return f
		}

		if found := FindFolder(f.Children, id); found != nil {
			return found
		}
	}

	return nil
}

// PostOrder lists f's subtree with every folder after all its descendants.
func PostOrder(f *MediaFolder) []*MediaFolder {
	var out []*MediaFolder
	for _, c := range f.Children {
		out = append(out, PostOrder(c)...)
	}

	return append(out, f)
}
