package medialib

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultBulkConcurrency = 4

// Selection is the set of files and folders picked for a bulk operation.
type Selection struct {
	mu      sync.Mutex
	multi   bool
	files   map[string]MediaFile
	folders map[string]struct{}
}

func NewSelection() *Selection {
	return &Selection{
		files:   make(map[string]MediaFile),
		folders: make(map[string]struct{}),
	}
}

func (s *Selection) EnterMultiSelect() {
	s.mu.Lock()
	s.multi = true
	s.mu.Unlock()
}

func (s *Selection) MultiSelect() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.multi
}

func (s *Selection) AddFile(f MediaFile) {
	s.mu.Lock()
	s.files[f.ID] = f
	s.mu.Unlock()
}

// ToggleFile adds f or removes it when already selected. It reports whether f
// is selected afterwards.
func (s *Selection) ToggleFile(f MediaFile) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[f.ID]; ok {
		delete(s.files, f.ID)
		return false
	}

	s.files[f.ID] = f
	return true
}

func (s *Selection) AddFolder(id string) {
	s.mu.Lock()
	s.folders[id] = struct{}{}
	s.mu.Unlock()
}

func (s *Selection) ToggleFolder(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.folders[id]; ok {
		delete(s.folders, id)
		return false
	}

	s.folders[id] = struct{}{}
	return true
}

// Files returns the selected files ordered by id.
func (s *Selection) Files() []MediaFile {
	s.mu.Lock()
	defer s.mu.Unlock()

	files := make([]MediaFile, 0, len(s.files))
	for _, f := range s.files {
		files = append(files, f)
	}

	slices.SortFunc(files, func(a, b MediaFile) int {
		return cmp.Compare(a.ID, b.ID)
	})

	return files
}

func (s *Selection) Folders() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.folders))
	for id := range s.folders {
		ids = append(ids, id)
	}

	slices.Sort(ids)
	return ids
}

func (s *Selection) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.files) + len(s.folders)
}

// Clear empties the selection and leaves multi-select mode.
func (s *Selection) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	clear(s.files)
	clear(s.folders)
	s.multi = false
}

type BulkOptions struct {
	// MoveFilesToParent relocates files of deleted folders to the parent
	// folder instead of deleting them. It applies to every folder of the
	// operation.
	MoveFilesToParent bool
	Concurrency       int
}

type ItemFailure struct {
	ID     string
	Name   string
	Folder bool
	Err    error
}

type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomePartial
	OutcomeFailure
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomePartial:
		return "partial"
	default:
		return "failure"
	}
}

// BulkResult counts selected items, not the descendants touched while
// deleting them.
type BulkResult struct {
	Succeeded int
	Failed    int
	Failures  []ItemFailure
}

func (r BulkResult) Outcome() Outcome {
	switch {
	case r.Failed == 0:
		return OutcomeSuccess
	case r.Succeeded == 0:
		return OutcomeFailure
	default:
		return OutcomePartial
	}
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}

	return fmt.Sprintf("%d %ss", n, word)
}

func (r BulkResult) Message(verb string) string {
	switch r.Outcome() {
	case OutcomeSuccess:
		return fmt.Sprintf("%s %s", verb, plural(r.Succeeded, "item"))
	case OutcomeFailure:
		return fmt.Sprintf("Failed to %s %s", verbBase(verb), plural(r.Failed, "item"))
	default:
		return fmt.Sprintf("%s %s, %d failed", verb, plural(r.Succeeded, "item"), r.Failed)
	}
}

func verbBase(verb string) string {
	switch verb {
	case "Deleted":
		return "delete"
	case "Moved":
		return "move"
	}

	return verb
}

func (r *BulkResult) fail(id, name string, folder bool, err error) {
	r.Failed++
	r.Failures = append(r.Failures, ItemFailure{ID: id, Name: name, Folder: folder, Err: err})
}

// BulkExecutor runs multi-item operations that continue past individual
// failures and report aggregate counts.
type BulkExecutor struct {
	backend  Backend
	catalog  *Catalog
	resolver *Resolver
	notifier Notifier
}

func NewBulkExecutor(backend Backend, catalog *Catalog, resolver *Resolver, notifier Notifier) *BulkExecutor {
	if notifier == nil {
		notifier = Discard
	}

	return &BulkExecutor{
		backend:  backend,
		catalog:  catalog,
		resolver: resolver,
		notifier: notifier,
	}
}

// Delete removes the selected files and then the selected folders, each
// folder after all of its descendants. The selection is cleared whatever the
// outcome.
func (e *BulkExecutor) Delete(ctx context.Context, project string, sel *Selection, opts BulkOptions) BulkResult {
	defer sel.Clear()

	var (
		res   BulkResult
		evict []string
	)

	files := sel.Files()
	folders := sel.Folders()

	deleted, failures := e.deleteFiles(ctx, files, opts.Concurrency)
	res.Succeeded += len(deleted)
	for _, f := range failures {
		res.fail(f.ID, f.Name, false, f.Err)
	}

	for _, f := range deleted {
		if f.ObjectKey != "" {
			evict = append(evict, f.ObjectKey)
		}
	}

	if len(folders) > 0 {
		evict = append(evict, e.deleteFolders(ctx, project, folders, opts, &res)...)
	}

	e.catalog.InvalidateProject(project)
	e.resolver.Invalidate(evict...)

	level := LevelInfo
	switch res.Outcome() {
	case OutcomePartial:
		level = LevelWarning
	case OutcomeFailure:
		level = LevelError
	}

	e.notifier.Notify(Notification{Level: level, Message: res.Message("Deleted"), Err: firstFailure(res)})

	return res
}

func firstFailure(r BulkResult) error {
	if len(r.Failures) == 0 {
		return nil
	}

	return r.Failures[0].Err
}

func (e *BulkExecutor) deleteFiles(ctx context.Context, files []MediaFile, limit int) ([]MediaFile, []ItemFailure) {
	if limit <= 0 {
		limit = defaultBulkConcurrency
	}

	var (
		g        errgroup.Group
		mu       sync.Mutex
		deleted  []MediaFile
		failures []ItemFailure
	)

	g.SetLimit(limit)

	for _, f := range files {
		g.Go(func() error {
			err := ItemOf(f).Delete(ctx, e.backend, e.resolver)

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				zap.L().Debug("Failed to delete file", zap.String("fileID", f.ID), zap.Error(err))
				failures = append(failures, ItemFailure{ID: f.ID, Name: f.Name, Err: err})
				return nil
			}

			deleted = append(deleted, f)
			return nil
		})
	}

	_ = g.Wait()

	slices.SortFunc(failures, func(a, b ItemFailure) int {
		return cmp.Compare(a.ID, b.ID)
	})

	return deleted, failures
}

// deleteFolders returns the object keys of files destroyed with the folders.
func (e *BulkExecutor) deleteFolders(ctx context.Context, project string, ids []string, opts BulkOptions, res *BulkResult) []string {
	tree, err := e.catalog.RefreshTree(ctx, project)
	if err != nil {
		for _, id := range ids {
			res.fail(id, id, true, err)
		}

		return nil
	}

	var (
		evict   []string
		deleted = make(map[string]bool)
	)

	for _, id := range ids {
		if deleted[id] {
			res.Succeeded++
			continue
		}

		root := FindFolder(tree, id)
		if root == nil {
			res.fail(id, id, true, ErrFolderNotFound)
			continue
		}

		keys, err := e.deleteSubtree(ctx, project, root, opts, deleted)
		evict = append(evict, keys...)

		if err != nil {
			res.fail(root.ID, root.Name, true, err)
			continue
		}

		res.Succeeded++
	}

	return evict
}

// deleteSubtree deletes f after every descendant. A folder whose subtree
// could not be fully deleted is left in place.
func (e *BulkExecutor) deleteSubtree(ctx context.Context, project string, f *MediaFolder, opts BulkOptions, deleted map[string]bool) ([]string, error) {
	var (
		evict    []string
		childErr error
	)

	for _, c := range f.Children {
		if deleted[c.ID] {
			continue
		}

		keys, err := e.deleteSubtree(ctx, project, c, opts, deleted)
		evict = append(evict, keys...)

		if err != nil && childErr == nil {
			childErr = err
		}
	}

	if childErr != nil {
		return evict, childErr
	}

	var contained []string
	if !opts.MoveFilesToParent {
		contained = e.containedKeys(ctx, project, f.ID)
	}

	if err := e.backend.DeleteFolder(ctx, project, f.ID, opts.MoveFilesToParent); err != nil {
		return evict, fmt.Errorf("failed to delete folder %s, %w", f.Name, err)
	}

	deleted[f.ID] = true
	return append(evict, contained...), nil
}

func (e *BulkExecutor) containedKeys(ctx context.Context, project, folderID string) []string {
	files, err := e.backend.ListFiles(ctx, project, &folderID)
	if err != nil {
		zap.L().Warn("Failed to list folder before delete", zap.String("folderID", folderID), zap.Error(err))
		return nil
	}

	keys := make([]string, 0, len(files))
	for _, f := range files {
		if f.ObjectKey != "" {
			keys = append(keys, f.ObjectKey)
		}
	}

	return keys
}

// Move relocates the selected files into folderID, or to the project root
// when folderID is nil. Folders in the selection are ignored.
func (e *BulkExecutor) Move(ctx context.Context, project string, sel *Selection, folderID *string) BulkResult {
	defer sel.Clear()

	var res BulkResult

	update := FileUpdate{FolderID: folderID, ToRoot: folderID == nil}

	for _, f := range sel.Files() {
		if f.Location.Kind == LocationCloud {
			res.fail(f.ID, f.Name, false, ErrUnsupported)
			continue
		}

		if _, err := e.backend.UpdateFile(ctx, f.ID, update); err != nil {
			res.fail(f.ID, f.Name, false, err)
			continue
		}

		res.Succeeded++
	}

	e.catalog.InvalidateProject(project)

	level := LevelInfo
	if res.Outcome() != OutcomeSuccess {
		level = LevelWarning
	}

	e.notifier.Notify(Notification{Level: level, Message: res.Message("Moved"), Err: firstFailure(res)})

	return res
}

// FolderFailures returns the failures of selected folders.
func (r BulkResult) FolderFailures() []ItemFailure {
	var out []ItemFailure
	for _, f := range r.Failures {
		if f.Folder {
			out = append(out, f)
		}
	}

	return out
}
