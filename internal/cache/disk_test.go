package cache

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDiskLayer(t *testing.T) *DiskLayer {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cache.bolt")
	d, err := OpenDiskLayer(path, DiskLayerConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d
}

func TestDiskLayerPutGet(t *testing.T) {
	d := openTestDiskLayer(t)

	entry := DiskEntry{Value: []byte("hello"), Method: "hover", FilePath: "main.go", CreatedAt: time.Now()}
	require.NoError(t, d.Put("key1", entry))

	got, ok, err := d.Get("key1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("hello"), got.Value)
	assert.Equal(t, "hover", got.Method)
}

func TestDiskLayerGetMiss(t *testing.T) {
	d := openTestDiskLayer(t)
	_, ok, err := d.Get("missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDiskLayerInvalidateFile(t *testing.T) {
	d := openTestDiskLayer(t)

	require.NoError(t, d.Put("k1", DiskEntry{Value: []byte("a"), FilePath: "main.go"}))
	require.NoError(t, d.Put("k2", DiskEntry{Value: []byte("b"), FilePath: "main.go"}))
	require.NoError(t, d.Put("k3", DiskEntry{Value: []byte("c"), FilePath: "other.go"}))

	removed, err := d.InvalidateFile("main.go")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	_, ok, _ := d.Get("k1")
	assert.False(t, ok)
	_, ok, _ = d.Get("k3")
	assert.True(t, ok, "unrelated file's entries survive")
}

func TestDiskLayerClearWorkspace(t *testing.T) {
	d := openTestDiskLayer(t)
	require.NoError(t, d.Put("k1", DiskEntry{Value: []byte("a"), FilePath: "main.go"}))

	require.NoError(t, d.ClearWorkspace())

	_, ok, err := d.Get("k1")
	require.NoError(t, err)
	assert.False(t, ok)

	// Database must still be usable after clearing.
	require.NoError(t, d.Put("k2", DiskEntry{Value: []byte("b"), FilePath: "main.go"}))
	_, ok, err = d.Get("k2")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDiskLayerIterForStats(t *testing.T) {
	d := openTestDiskLayer(t)
	require.NoError(t, d.Put("k1", DiskEntry{Value: []byte("a"), Method: "hover", FilePath: "main.go"}))
	require.NoError(t, d.Put("k2", DiskEntry{Value: []byte("bb"), Method: "definition", FilePath: "main.go"}))

	count := 0
	var totalSize int
	err := d.IterForStats(func(key string, entry DiskEntry) bool {
		count++
		totalSize += len(entry.Value)
		return true
	})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, 3, totalSize)
}

func TestDiskLayerCompact(t *testing.T) {
	d := openTestDiskLayer(t)
	require.NoError(t, d.Put("k1", DiskEntry{Value: []byte("a"), FilePath: "main.go"}))
	require.NoError(t, d.Compact())

	_, ok, err := d.Get("k1")
	require.NoError(t, err)
	assert.True(t, ok, "entry survives compaction")
}
