package util

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectKey(t *testing.T) {
	key, err := ObjectKey("p1", "Shot 01.PNG")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(key, "p1/"))
	assert.True(t, strings.HasSuffix(key, ".png"))
	assert.Len(t, key, len("p1/")+21+len(".png"))

	other, err := ObjectKey("p1", "Shot 01.PNG")
	require.NoError(t, err)
	assert.NotEqual(t, key, other)
}

func TestObjectKeyDropsOddExtensions(t *testing.T) {
	key, err := ObjectKey("p1", "weird.name?x=1")
	require.NoError(t, err)
	assert.NotContains(t, key, "?")

	key, err = ObjectKey("p1", "noext")
	require.NoError(t, err)
	assert.Len(t, key, len("p1/")+21)
}

func TestNewID(t *testing.T) {
	id, err := NewID()
	require.NoError(t, err)
	assert.Len(t, id, 16)
}
