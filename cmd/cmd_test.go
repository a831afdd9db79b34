package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"filmforge/media-library/pkg/medialib"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Chdir(t.TempDir())

	root := NewRootCommand()

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)

	err := root.Execute()
	return out.String(), err
}

func newService(t *testing.T, mux *http.ServeMux) string {
	t.Helper()

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv.URL
}

func TestSplitPath(t *testing.T) {
	assert.Equal(t, []string{"shots", "day 1"}, splitPath("/shots// day 1 /"))
	assert.Empty(t, splitPath(""))
	assert.Empty(t, splitPath("/"))
}

func TestQuotaCommand(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/storage/quota", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(medialib.Quota{Used: 1 << 20, Total: 4 << 20})
	})

	out, err := run(t, "quota",
		"--api-url", newService(t, mux),
		"--token", "tok",
		"--project", "film",
		"--prefs", filepath.Join(t.TempDir(), "prefs.yaml"),
	)
	require.NoError(t, err)
	assert.Contains(t, out, "1.0 MiB of 4.0 MiB used, 3.0 MiB free")
}

func TestTreeCommandShowsCloudFolders(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/cloud/connections", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]medialib.CloudConnection{{Provider: medialib.ProviderR2, Connected: true}})
	})
	mux.HandleFunc("GET /api/projects/{project}/folders", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]*medialib.MediaFolder{{
			ID:        "f1",
			Name:      "Shots",
			Path:      []string{},
			FileCount: 2,
			Children:  []*medialib.MediaFolder{{ID: "f2", Name: "Day 1", Path: []string{"Shots"}, Children: []*medialib.MediaFolder{}}},
		}})
	})

	out, err := run(t, "tree",
		"--api-url", newService(t, mux),
		"--project", "film",
		"--prefs", filepath.Join(t.TempDir(), "prefs.yaml"),
	)
	require.NoError(t, err)
	assert.Contains(t, out, "  Shots/ (2)\n    Day 1/ (0)\n")
	assert.Contains(t, out, "r2:Images\n")
}

func TestSyncNeedsExactlyOneTarget(t *testing.T) {
	_, err := run(t, "sync")
	require.Error(t, err)

	_, err = run(t, "sync", "f1", "--folder", "shots")
	require.Error(t, err)
}

func TestConnectRejectsUnknownProvider(t *testing.T) {
	_, err := run(t, "connections", "connect", "dropbox")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider")
}
