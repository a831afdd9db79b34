package medialib

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// fakeBackend keeps state in memory and records every call in order.
type fakeBackend struct {
	mu    sync.Mutex
	calls []string
	now   func() time.Time
	seq   int

	files []MediaFile
	tree  []*MediaFolder
	conns []CloudConnection
	cloud map[string][]MediaFile

	grantURL    string
	notVisible  int
	registerErr error
	listErr     error
	exchangeErr error
	batchErr    map[string]error
	missingKeys map[string]bool

	// When set, ExchangeURL signals started and waits for release.
	started chan struct{}
	release chan struct{}
	deleteErr   map[string]error
	folderErr   map[string]error
	syncReport  *SyncReport
	syncReqs    []SyncRequest
	moveFlags   map[string]bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		now:         time.Now,
		cloud:       make(map[string][]MediaFile),
		batchErr:    make(map[string]error),
		missingKeys: make(map[string]bool),
		deleteErr:   make(map[string]error),
		folderErr:   make(map[string]error),
		moveFlags:   make(map[string]bool),
	}
}

func (f *fakeBackend) record(format string, args ...any) {
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

func (f *fakeBackend) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return slices.Clone(f.calls)
}

// CallsWith returns the recorded calls starting with prefix.
func (f *fakeBackend) CallsWith(prefix string) []string {
	var out []string
	for _, c := range f.Calls() {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}

	return out
}

func folderArg(id *string) string {
	if id == nil {
		return "root"
	}

	return *id
}

func (f *fakeBackend) ListFiles(_ context.Context, project string, folderID *string) ([]MediaFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.record("ListFiles:%s/%s", project, folderArg(folderID))
	if f.listErr != nil {
		return nil, f.listErr
	}

	var out []MediaFile
	for _, file := range f.files {
		if file.ProjectID != project {
			continue
		}
		if folderArg(file.FolderID) != folderArg(folderID) {
			continue
		}
		out = append(out, file)
	}

	return out, nil
}

func (f *fakeBackend) FolderTree(_ context.Context, project string) ([]*MediaFolder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.record("FolderTree:%s", project)
	if f.listErr != nil {
		return nil, f.listErr
	}

	return f.tree, nil
}

func (f *fakeBackend) CreateFolder(_ context.Context, project string, req FolderRequest) (*MediaFolder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.record("CreateFolder:%s/%s", project, req.Name)
	f.seq++

	return &MediaFolder{ID: fmt.Sprintf("folder-%d", f.seq), Name: req.Name, ParentID: req.ParentID}, nil
}

func (f *fakeBackend) RenameFolder(_ context.Context, project, folderID, name string) (*MediaFolder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.record("RenameFolder:%s/%s", project, folderID)
	return &MediaFolder{ID: folderID, Name: name}, nil
}

func (f *fakeBackend) DeleteFolder(_ context.Context, project, folderID string, moveToParent bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.record("DeleteFolder:%s", folderID)
	if err := f.folderErr[folderID]; err != nil {
		return err
	}

	f.moveFlags[folderID] = moveToParent
	return nil
}

func (f *fakeBackend) RequestUpload(_ context.Context, project string, req UploadRequest) (*UploadGrant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.record("RequestUpload:%s/%s", project, req.Name)
	f.seq++

	key := fmt.Sprintf("%s/%d-%s", project, f.seq, req.Name)
	return &UploadGrant{
		UploadURL: f.grantURL + "/" + key,
		Method:    http.MethodPut,
		Headers:   map[string]string{"Content-Type": req.MIME, "X-Amz-Meta-Project": project},
		ObjectKey: key,
		ExpiresAt: f.now().Add(15 * time.Minute),
	}, nil
}

func (f *fakeBackend) RegisterUpload(_ context.Context, project string, req RegisterRequest) (*MediaFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.record("RegisterUpload:%s", req.ObjectKey)

	if f.notVisible > 0 {
		f.notVisible--
		return nil, &APIError{Status: http.StatusConflict, Code: CodeObjectNotVisible, Message: "not visible"}
	}

	if f.registerErr != nil {
		return nil, f.registerErr
	}

	f.seq++
	file := MediaFile{
		ID:        fmt.Sprintf("file-%d", f.seq),
		Name:      req.Name,
		Type:      MediaTypeFromMIME(req.MIME),
		MIME:      req.MIME,
		Size:      req.Size,
		Location:  Authoritative(),
		ObjectKey: req.ObjectKey,
		FolderID:  req.FolderID,
		ProjectID: project,
		CreatedAt: f.now(),
	}
	f.files = append(f.files, file)

	return &file, nil
}

func (f *fakeBackend) UpdateFile(_ context.Context, fileID string, req FileUpdate) (*MediaFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.record("UpdateFile:%s", fileID)
	if err := f.deleteErr[fileID]; err != nil {
		return nil, err
	}

	for i := range f.files {
		if f.files[i].ID != fileID {
			continue
		}

		if req.Name != nil {
			f.files[i].Name = *req.Name
		}
		if req.ToRoot {
			f.files[i].FolderID = nil
		} else if req.FolderID != nil {
			f.files[i].FolderID = req.FolderID
		}

		file := f.files[i]
		return &file, nil
	}

	return nil, &APIError{Status: http.StatusNotFound, Code: CodeNotFound, Message: "file not found"}
}

func (f *fakeBackend) DeleteFile(_ context.Context, fileID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.record("DeleteFile:%s", fileID)
	if err := f.deleteErr[fileID]; err != nil {
		return err
	}

	f.files = slices.DeleteFunc(f.files, func(m MediaFile) bool {
		return m.ID == fileID
	})

	return nil
}

func (f *fakeBackend) sign(key string, lifetime time.Duration) SignedURL {
	f.seq++

	return SignedURL{
		URL:       fmt.Sprintf("https://store.test/%s?sig=%d", key, f.seq),
		ExpiresAt: f.now().Add(lifetime),
	}
}

func (f *fakeBackend) ExchangeURL(_ context.Context, key string, lifetime time.Duration) (*SignedURL, error) {
	if f.release != nil {
		f.started <- struct{}{}
		<-f.release
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.record("ExchangeURL:%s", key)
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}

	s := f.sign(key, lifetime)
	return &s, nil
}

func (f *fakeBackend) ExchangeURLs(_ context.Context, keys []string, lifetime time.Duration) (map[string]SignedURL, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.record("ExchangeURLs:%s", strings.Join(keys, ","))
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	if err := f.batchErr[keys[0]]; err != nil {
		return nil, err
	}

	out := make(map[string]SignedURL, len(keys))
	for _, k := range keys {
		if f.missingKeys[k] {
			continue
		}
		out[k] = f.sign(k, lifetime)
	}

	return out, nil
}

func (f *fakeBackend) CloudConnections(context.Context) ([]CloudConnection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.record("CloudConnections")
	return slices.Clone(f.conns), nil
}

func (f *fakeBackend) ListCloudFiles(_ context.Context, provider Provider, folderID string) ([]MediaFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.record("ListCloudFiles:%s/%s", provider, folderID)
	if f.listErr != nil {
		return nil, f.listErr
	}

	return f.cloud[string(provider)+"/"+folderID], nil
}

func (f *fakeBackend) CloudFileURL(_ context.Context, provider Provider, fileID string) (*SignedURL, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.record("CloudFileURL:%s/%s", provider, fileID)
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}

	s := f.sign(string(provider)+"/"+fileID, time.Hour)
	return &s, nil
}

func (f *fakeBackend) Sync(_ context.Context, project string, req SyncRequest) (*SyncReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.record("Sync:%s/%s", project, req.Provider)
	f.syncReqs = append(f.syncReqs, req)

	if f.syncReport != nil {
		r := *f.syncReport
		return &r, nil
	}

	return &SyncReport{Provider: req.Provider, Succeeded: 1}, nil
}

func (f *fakeBackend) Quota(context.Context) (*Quota, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.record("Quota")
	return &Quota{Used: 10, Total: 100}, nil
}

// recorder collects notifications.
type recorder struct {
	mu  sync.Mutex
	got []Notification
}

func (r *recorder) Notify(n Notification) {
	r.mu.Lock()
	r.got = append(r.got, n)
	r.mu.Unlock()
}

func (r *recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()

	return slices.Clone(r.got)
}

func ptr[T any](v T) *T {
	return &v
}

func authFile(id, project string, folderID *string) MediaFile {
	return MediaFile{
		ID:        id,
		Name:      id + ".png",
		Type:      MediaImage,
		MIME:      "image/png",
		Location:  Authoritative(),
		ObjectKey: project + "/" + id,
		FolderID:  folderID,
		ProjectID: project,
	}
}
