package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	a "filmforge/media-library/aws"
	"filmforge/media-library/db"
	"filmforge/media-library/internal/cloud"
	"filmforge/media-library/internal/model"
	"filmforge/media-library/pkg/medialib"
	"filmforge/media-library/pkg/util"

	"github.com/gabriel-vasile/mimetype"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 64)...)

type fakeStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	deleted   []string
	deleteErr error
	presigned []string

	// onSniff runs before every Sniff, outside the lock.
	onSniff func(key string)
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string][]byte{}}
}

func (s *fakeStore) Put(key string, b []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = b
}

func (s *fakeStore) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok
}

func (s *fakeStore) Deleted() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]string(nil), s.deleted...)
	sort.Strings(out)
	return out
}

func (s *fakeStore) PresignGet(_ context.Context, key string, lifetime time.Duration) (string, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.presigned = append(s.presigned, key)
	return "https://store.test/" + key + "?sig=get", time.Now().Add(lifetime), nil
}

func (s *fakeStore) PresignPut(_ context.Context, key, mime string, _ time.Duration) (string, map[string]string, error) {
	return "https://store.test/" + key + "?sig=put", map[string]string{"Content-Type": mime}, nil
}

func (s *fakeStore) Head(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.objects[key]
	if !ok {
		return 0, a.ErrObjectNotFound
	}
	return int64(len(b)), nil
}

func (s *fakeStore) Sniff(_ context.Context, key string) (string, error) {
	if s.onSniff != nil {
		s.onSniff(key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.objects[key]
	if !ok {
		return "", a.ErrObjectNotFound
	}
	return mimetype.Detect(b).String(), nil
}

func (s *fakeStore) Open(_ context.Context, key string) (io.ReadCloser, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.objects[key]
	if !ok {
		return nil, 0, a.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), int64(len(b)), nil
}

func (s *fakeStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	for _, k := range keys {
		delete(s.objects, k)
		s.deleted = append(s.deleted, k)
	}
	return nil
}

var _ ObjectStore = (*fakeStore)(nil)
var _ ObjectStore = (*a.S3Client)(nil)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	d, err := db.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	return d
}

type env struct {
	db      *gorm.DB
	store   *fakeStore
	catalog *Catalog
	uploads *Uploads
}

func newEnv(t *testing.T) *env {
	t.Helper()

	d := newTestDB(t)
	store := newFakeStore()
	catalog := NewCatalog(d, store, 1<<20)

	return &env{
		db:      d,
		store:   store,
		catalog: catalog,
		uploads: NewUploads(d, store, catalog, UploadLimits{
			MaxSize:       512 << 10,
			AllowedTypes:  []string{"image/*", "video/*", "audio/*"},
			GrantLifetime: 15 * time.Minute,
		}),
	}
}

func (e *env) folder(t *testing.T, user, project, name string, parent *string) string {
	t.Helper()

	f, err := e.catalog.CreateFolder(context.Background(), user, project, medialib.FolderRequest{Name: name, ParentID: parent})
	require.NoError(t, err)

	return f.ID
}

// file stores an object and its catalog row the way a registered upload would.
func (e *env) file(t *testing.T, user, project, name string, folderID *string, size int) model.File {
	t.Helper()

	key, err := util.ObjectKey(project, name)
	require.NoError(t, err)
	id, err := util.NewID()
	require.NoError(t, err)

	e.store.Put(key, make([]byte, size))

	f := model.File{
		ID:        id,
		UserID:    user,
		ProjectID: project,
		FolderID:  folderID,
		Name:      name,
		ObjectKey: key,
		Format:    "image/png",
		Type:      string(medialib.MediaImage),
		Size:      int64(size),
		CreatedAt: time.Now().Unix(),
	}
	require.NoError(t, e.db.Create(&f).Error)

	_, err = ensureStats(e.db, user, e.catalog.maxStorage)
	require.NoError(t, err)
	require.NoError(t, e.db.Model(model.Stats{}).Where("user_id = ?", user).Updates(map[string]any{
		"used_storage":   gorm.Expr("used_storage + ?", size),
		"uploaded_files": gorm.Expr("uploaded_files + 1"),
	}).Error)

	return f
}

func ptr[T any](v T) *T {
	return &v
}

type fakeProvider struct {
	mu      sync.Mutex
	name    medialib.Provider
	failOn  string
	uploads map[string][]string
}

func (p *fakeProvider) Name() medialib.Provider { return p.name }

func (p *fakeProvider) Upload(_ context.Context, folder string, obj cloud.Object) (string, error) {
	if obj.Name == p.failOn {
		return "", errors.New("provider rejected the file")
	}

	if _, err := io.ReadAll(obj.Body); err != nil {
		return "", err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.uploads[folder] = append(p.uploads[folder], obj.Name)
	return folder + "/" + obj.Name, nil
}

func (p *fakeProvider) List(_ context.Context, folder string) ([]medialib.MediaFile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []medialib.MediaFile
	for _, n := range p.uploads[folder] {
		out = append(out, medialib.MediaFile{ID: folder + "/" + n, Name: n, Location: medialib.Cloud(p.name), ProviderID: folder + "/" + n})
	}
	return out, nil
}

func (p *fakeProvider) URL(_ context.Context, id string) (*medialib.SignedURL, error) {
	return &medialib.SignedURL{URL: "https://cloud.test/" + id}, nil
}

func newFakeRegistry(p *fakeProvider) *cloud.Registry {
	r := cloud.NewRegistry()
	r.Register(p.name, func(_ context.Context, creds map[string]string) (cloud.Provider, error) {
		if err := cloud.Require(creds, "token"); err != nil {
			return nil, err
		}
		return p, nil
	})
	return r
}
