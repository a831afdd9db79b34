package medialib

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBulk(t *testing.T, b *fakeBackend) (*BulkExecutor, *Resolver, *recorder) {
	t.Helper()

	r := NewResolver(b)
	t.Cleanup(func() { r.Close() })

	rec := &recorder{}
	return NewBulkExecutor(b, NewCatalog(b, 0), r, rec), r, rec
}

func TestBulkDeletePartialFailureCountsPerItem(t *testing.T) {
	b := newFakeBackend()
	b.tree = []*MediaFolder{{ID: "old", Name: "Old", Path: []string{}}}
	b.files = []MediaFile{
		authFile("f1", "p1", nil),
		authFile("f2", "p1", nil),
		authFile("f3", "p1", nil),
	}
	b.deleteErr["f2"] = errors.New("object store timeout")

	e, _, rec := newTestBulk(t, b)

	sel := NewSelection()
	sel.EnterMultiSelect()
	for _, f := range b.files {
		sel.ToggleFile(f)
	}
	sel.AddFolder("old")

	res := e.Delete(context.Background(), "p1", sel, BulkOptions{})

	assert.Equal(t, 3, res.Succeeded)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, OutcomePartial, res.Outcome())
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "f2", res.Failures[0].ID)
	assert.False(t, res.Failures[0].Folder)

	assert.Zero(t, sel.Len())
	assert.False(t, sel.MultiSelect())

	got := rec.All()
	require.Len(t, got, 1)
	assert.Equal(t, LevelWarning, got[0].Level)
	assert.Equal(t, "Deleted 3 items, 1 failed", got[0].Message)
}

func TestBulkDeleteFilesBeforeFolders(t *testing.T) {
	b := newFakeBackend()
	b.tree = []*MediaFolder{{ID: "d", Name: "D"}}
	b.files = []MediaFile{authFile("f1", "p1", nil)}

	e, _, _ := newTestBulk(t, b)

	sel := NewSelection()
	sel.AddFile(b.files[0])
	sel.AddFolder("d")

	e.Delete(context.Background(), "p1", sel, BulkOptions{MoveFilesToParent: true})

	var order []string
	for _, c := range b.Calls() {
		if c == "DeleteFile:f1" || c == "DeleteFolder:d" {
			order = append(order, c)
		}
	}
	assert.Equal(t, []string{"DeleteFile:f1", "DeleteFolder:d"}, order)
}

func TestBulkDeleteFoldersDepthFirst(t *testing.T) {
	b := newFakeBackend()
	b.tree = sampleTree()

	e, _, _ := newTestBulk(t, b)

	sel := NewSelection()
	sel.AddFolder("shots")

	res := e.Delete(context.Background(), "p1", sel, BulkOptions{MoveFilesToParent: true})
	assert.Equal(t, 1, res.Succeeded)
	assert.Zero(t, res.Failed)

	assert.Equal(t, []string{
		"DeleteFolder:takes",
		"DeleteFolder:day1",
		"DeleteFolder:day2",
		"DeleteFolder:shots",
	}, b.CallsWith("DeleteFolder:"))

	for _, id := range []string{"takes", "day1", "day2", "shots"} {
		assert.True(t, b.moveFlags[id], id)
	}
	assert.Empty(t, b.CallsWith("ListFiles:"))
}

func TestBulkDeleteNestedSelectionDeletesOnce(t *testing.T) {
	b := newFakeBackend()
	b.tree = sampleTree()

	e, _, _ := newTestBulk(t, b)

	sel := NewSelection()
	sel.AddFolder("shots")
	sel.AddFolder("takes")

	res := e.Delete(context.Background(), "p1", sel, BulkOptions{MoveFilesToParent: true})
	assert.Equal(t, 2, res.Succeeded)
	assert.Len(t, b.CallsWith("DeleteFolder:takes"), 1)
	assert.Len(t, b.CallsWith("DeleteFolder:shots"), 1)
}

func TestBulkDeleteKeepsAncestorOfFailedFolder(t *testing.T) {
	b := newFakeBackend()
	b.tree = sampleTree()
	b.folderErr["takes"] = errors.New("folder is locked")

	e, _, rec := newTestBulk(t, b)

	sel := NewSelection()
	sel.AddFolder("shots")
	sel.AddFolder("music")

	res := e.Delete(context.Background(), "p1", sel, BulkOptions{MoveFilesToParent: true})

	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.FolderFailures(), 1)
	assert.Equal(t, "shots", res.FolderFailures()[0].ID)

	assert.Equal(t, []string{
		"DeleteFolder:music",
		"DeleteFolder:takes",
		"DeleteFolder:day2",
	}, b.CallsWith("DeleteFolder:"))

	assert.Equal(t, LevelWarning, rec.All()[0].Level)
}

func TestBulkDeleteUnknownFolderFails(t *testing.T) {
	b := newFakeBackend()
	e, _, rec := newTestBulk(t, b)

	sel := NewSelection()
	sel.AddFolder("ghost")

	res := e.Delete(context.Background(), "p1", sel, BulkOptions{})
	assert.Equal(t, OutcomeFailure, res.Outcome())
	assert.ErrorIs(t, res.Failures[0].Err, ErrFolderNotFound)
	assert.Equal(t, "Failed to delete 1 item", rec.All()[0].Message)
}

func TestBulkDeleteEvictsAccessURLs(t *testing.T) {
	b := newFakeBackend()
	b.tree = []*MediaFolder{{ID: "d", Name: "D"}}
	selected := authFile("f1", "p1", nil)
	inside := authFile("f2", "p1", ptr("d"))
	b.files = []MediaFile{selected, inside}

	e, r, _ := newTestBulk(t, b)
	ctx := context.Background()

	_, err := r.ResolveMany(ctx, []string{selected.ObjectKey, inside.ObjectKey})
	require.NoError(t, err)

	sel := NewSelection()
	sel.AddFile(selected)
	sel.AddFolder("d")

	res := e.Delete(ctx, "p1", sel, BulkOptions{})
	require.Equal(t, 2, res.Succeeded)
	assert.False(t, b.moveFlags["d"])

	_, err = r.ResolveMany(ctx, []string{selected.ObjectKey, inside.ObjectKey})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"ExchangeURLs:p1/f1,p1/f2",
		"ExchangeURLs:p1/f1,p1/f2",
	}, b.CallsWith("ExchangeURLs:"))
}

func TestBulkDeleteInvalidatesListings(t *testing.T) {
	b := newFakeBackend()
	b.files = []MediaFile{authFile("f1", "p1", nil)}

	r := NewResolver(b)
	t.Cleanup(func() { r.Close() })
	c := NewCatalog(b, 0)
	e := NewBulkExecutor(b, c, r, nil)
	ctx := context.Background()

	files, err := c.ListFiles(ctx, "p1", nil)
	require.NoError(t, err)
	require.Len(t, files, 1)

	sel := NewSelection()
	sel.AddFile(files[0])
	e.Delete(ctx, "p1", sel, BulkOptions{})

	files, err = c.ListFiles(ctx, "p1", nil)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestBulkDeleteCloudFileUnsupported(t *testing.T) {
	b := newFakeBackend()
	e, _, _ := newTestBulk(t, b)

	sel := NewSelection()
	sel.AddFile(MediaFile{ID: "g1", Name: "clip.mp4", Location: Cloud(ProviderGoogleDrive)})

	res := e.Delete(context.Background(), "p1", sel, BulkOptions{})
	assert.Equal(t, 1, res.Failed)
	assert.ErrorIs(t, res.Failures[0].Err, ErrUnsupported)
	assert.Empty(t, b.CallsWith("DeleteFile:"))
}

func TestBulkMove(t *testing.T) {
	b := newFakeBackend()
	b.files = []MediaFile{authFile("f1", "p1", nil), authFile("f2", "p1", nil)}
	e, _, rec := newTestBulk(t, b)

	sel := NewSelection()
	sel.AddFile(b.files[0])
	sel.AddFile(b.files[1])

	res := e.Move(context.Background(), "p1", sel, ptr("day1"))
	assert.Equal(t, 2, res.Succeeded)
	assert.Zero(t, sel.Len())
	assert.Equal(t, "Moved 2 items", rec.All()[0].Message)

	for _, f := range b.files {
		require.NotNil(t, f.FolderID)
		assert.Equal(t, "day1", *f.FolderID)
	}
}

func TestSelectionToggle(t *testing.T) {
	sel := NewSelection()
	f := authFile("f1", "p1", nil)

	assert.True(t, sel.ToggleFile(f))
	assert.False(t, sel.ToggleFile(f))
	assert.True(t, sel.ToggleFolder("d"))
	assert.Equal(t, []string{"d"}, sel.Folders())
	assert.Empty(t, sel.Files())
}
