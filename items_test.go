package resumable

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBytesItem(t *testing.T) {
	item := NewBytesItem("blob.bin", []byte("0123456789"))

	assert.Equal(t, "blob.bin", item.Name())
	assert.Equal(t, int64(10), item.Size())
	assert.Equal(t, "blob.bin", item.RelativePath())

	buf := make([]byte, 4)
	n, err := item.ReadAt(buf, 3)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "3456", string(buf))

	n, err = item.ReadAt(buf, 8)
	assert.Equal(t, 2, n)
	assert.ErrorIs(t, err, io.EOF)
}

func TestLocalItem(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.bin")
	require.NoError(t, os.WriteFile(path, []byte("hello local"), 0o600))

	item, err := NewLocalItem(path)
	require.NoError(t, err)
	defer item.Close()

	assert.Equal(t, "data.bin", item.Name())
	assert.Equal(t, int64(11), item.Size())
	assert.Equal(t, "data.bin", item.RelativePath())

	buf := make([]byte, 5)
	_, err = item.ReadAt(buf, 6)
	require.NoError(t, err)
	assert.Equal(t, "local", string(buf))
}

func TestLocalItemMissing(t *testing.T) {
	_, err := NewLocalItem(filepath.Join(t.TempDir(), "nope.bin"))
	assert.Error(t, err)
}

func TestScanDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub", "deep"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("b"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "c.txt"), []byte("c"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "deep", "d.txt"), []byte("d"), 0o600))

	items, err := ScanDir(dir)
	require.NoError(t, err)

	var rels []string
	for _, item := range items {
		rels = append(rels, item.RelativePath())
	}
	assert.Equal(t, []string{
		"a.txt",
		"b.txt",
		filepath.Join("sub", "c.txt"),
		filepath.Join("sub", "deep", "d.txt"),
	}, rels)
}

func TestScanDirMissingRoot(t *testing.T) {
	_, err := ScanDir(filepath.Join(t.TempDir(), "absent"))
	assert.Error(t, err)
}

func TestScanDirFeedsQueue(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "one.bin"), payload(64), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "two.bin"), payload(128), 0o600))

	items, err := ScanDir(dir)
	require.NoError(t, err)

	cl := newTestClient(newMockAdapter(), nil)
	added := cl.AddFiles(items...)
	require.Len(t, added, 2)
	assert.Equal(t, int64(64), added[0].Size())
	assert.Equal(t, int64(128), added[1].Size())
}
