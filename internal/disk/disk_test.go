package disk

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetDiskUsage(t *testing.T) {
	used, free, total, err := GetDiskUsage(t.TempDir())
	require.NoError(t, err)

	assert.Greater(t, total, int64(0))
	assert.GreaterOrEqual(t, free, int64(0))
	assert.LessOrEqual(t, free, total)
	assert.GreaterOrEqual(t, used, 0.0)
	assert.LessOrEqual(t, used, 100.0)
}

func TestStatMissingPath(t *testing.T) {
	_, err := Stat(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestIsNFSStaleLocalPath(t *testing.T) {
	assert.False(t, IsNFSStale(t.TempDir(), time.Second))
	// A missing local path is not an NFS failure
	assert.False(t, IsNFSStale(filepath.Join(t.TempDir(), "missing"), time.Second))
}
