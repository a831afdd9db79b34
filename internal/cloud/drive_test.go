package cloud

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"filmforge/media-library/pkg/medialib"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func newTestDrive(t *testing.T, h http.Handler) *Drive {
	t.Helper()

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	d, err := NewDrive(context.Background(), srv.Client(), option.WithEndpoint(srv.URL+"/"))
	require.NoError(t, err)

	return d
}

func TestDriveListResolvesWellKnownFolders(t *testing.T) {
	var lookups atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("GET /files", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")

		switch {
		case strings.Contains(q, "name = 'Media Library'"):
			lookups.Add(1)
			json.NewEncoder(w).Encode(map[string]any{"files": []map[string]any{{"id": "lib"}}})
		case strings.Contains(q, "name = 'Images'"):
			assert.Contains(t, q, "'lib' in parents")
			lookups.Add(1)
			json.NewEncoder(w).Encode(map[string]any{"files": []map[string]any{{"id": "img"}}})
		case strings.Contains(q, "'img' in parents"):
			json.NewEncoder(w).Encode(map[string]any{"files": []map[string]any{{
				"id":             "d1",
				"name":           "poster.png",
				"mimeType":       "image/png",
				"size":           "2048",
				"createdTime":    "2026-01-02T03:04:05Z",
				"webContentLink": "https://drive.test/d1",
			}}})
		default:
			t.Errorf("unexpected query %q", q)
			w.WriteHeader(http.StatusBadRequest)
		}
	})

	d := newTestDrive(t, mux)
	ctx := context.Background()

	files, err := d.List(ctx, "Images")
	require.NoError(t, err)
	require.Len(t, files, 1)

	f := files[0]
	assert.Equal(t, "d1", f.ProviderID)
	assert.Equal(t, medialib.MediaImage, f.Type)
	assert.Equal(t, int64(2048), f.Size)
	assert.Equal(t, medialib.Cloud(medialib.ProviderGoogleDrive), f.Location)
	assert.Equal(t, "https://drive.test/d1", f.URL)
	assert.Equal(t, 2026, f.CreatedAt.Year())

	_, err = d.List(ctx, "Images")
	require.NoError(t, err)
	assert.Equal(t, int32(2), lookups.Load())
}

func TestDriveURL(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /files/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") == "nolink" {
			json.NewEncoder(w).Encode(map[string]any{})
			return
		}

		json.NewEncoder(w).Encode(map[string]any{"webContentLink": "https://drive.test/" + r.PathValue("id")})
	})

	d := newTestDrive(t, mux)

	u, err := d.URL(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, "https://drive.test/d1", u.URL)
	assert.True(t, u.ExpiresAt.IsZero())

	_, err = d.URL(context.Background(), "nolink")
	assert.Error(t, err)
}

func TestDriveFactoryNeedsRefreshToken(t *testing.T) {
	_, err := NewDriveFactory("client", "secret")(context.Background(), map[string]string{})
	assert.ErrorIs(t, err, ErrBadCredentials)

	_, err = NewDriveFactory("", "")(context.Background(), map[string]string{"refresh_token": "x"})
	assert.ErrorIs(t, err, ErrBadCredentials)
}

type stubProvider struct{ name medialib.Provider }

func (s stubProvider) Name() medialib.Provider { return s.name }
func (stubProvider) Upload(context.Context, string, Object) (string, error) {
	return "", nil
}
func (stubProvider) List(context.Context, string) ([]medialib.MediaFile, error) { return nil, nil }
func (stubProvider) URL(context.Context, string) (*medialib.SignedURL, error) {
	return nil, nil
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register(medialib.ProviderR2, func(context.Context, map[string]string) (Provider, error) {
		return stubProvider{medialib.ProviderR2}, nil
	})

	p, err := r.Open(context.Background(), medialib.ProviderR2, nil)
	require.NoError(t, err)
	assert.Equal(t, medialib.ProviderR2, p.Name())

	_, err = r.Open(context.Background(), medialib.ProviderGoogleDrive, nil)
	assert.ErrorIs(t, err, ErrUnknownProvider)

	infos := r.Providers()
	require.Len(t, infos, 1)
	assert.Equal(t, medialib.WellKnownFolders, infos[0].Folders)
}
