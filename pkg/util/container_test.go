package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInContainer(t *testing.T) {
	old := containerMarkers
	t.Cleanup(func() { containerMarkers = old })

	dir := t.TempDir()
	podman := filepath.Join(dir, ".containerenv")
	containerMarkers = []string{filepath.Join(dir, ".dockerenv"), podman}

	assert.False(t, InContainer())

	require.NoError(t, os.WriteFile(podman, nil, 0o600))
	assert.True(t, InContainer())
}
