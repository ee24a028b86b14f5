package goadaptor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLoadInactiveWhenUnset covers the "no go_library_path configured"
// case: load must return a nil plugin and no error, the same way every
// other plugin's load does for an inactive scope.
func TestLoadInactiveWhenUnset(t *testing.T) {
	p, err := load(map[string]interface{}{}, nil)
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestLoadMissingLibraryErrors(t *testing.T) {
	_, err := load(map[string]interface{}{"go_library_path": "/nonexistent/handler.so"}, nil)
	assert.Error(t, err)
}
