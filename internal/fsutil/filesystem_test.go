package fsutil

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOSFileSystem(t *testing.T) {
	dir := t.TempDir()
	var fsys FileSystem = OSFileSystem{}

	name := filepath.Join(dir, "nested", "out.txt")
	require.NoError(t, fsys.MkdirAll(filepath.Dir(name), 0755))
	w, err := fsys.Create(name)
	require.NoError(t, err)
	_, err = io.WriteString(w, "# frames\n")
	require.NoError(t, err)
	require.NoError(t, w.Close())
	assert.True(t, fsys.Exists(name))
	assert.False(t, fsys.Exists(filepath.Join(dir, "missing.txt")))

	for _, n := range []string{"b.txt", "a.txt"} {
		require.NoError(t, fsys.WriteFile(filepath.Join(dir, n), []byte(n), 0644))
	}
	entries, err := fsys.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Equal(t, []string{"a.txt", "b.txt", "nested"}, names)

	f, err := fsys.Open(name)
	require.NoError(t, err)
	defer f.Close()
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "# frames\n", string(data))
}

func TestMemoryFileSystem_WriteAndRead(t *testing.T) {
	mfs := NewMemoryFileSystem()

	data := []byte("1 0.5 1.5 10\n")
	require.NoError(t, mfs.WriteFile("/data/a.txt", data, 0644))
	data[0] = '9'

	got, err := mfs.ReadFile("/data/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "1 0.5 1.5 10\n", string(got), "stored data is a copy")

	_, err = mfs.ReadFile("/missing.txt")
	assert.ErrorIs(t, err, os.ErrNotExist)
	_, err = mfs.ReadFile("/data")
	assert.ErrorIs(t, err, os.ErrNotExist, "directories cannot be read as files")
}

func TestMemoryFileSystem_CreateVisibleOnClose(t *testing.T) {
	mfs := NewMemoryFileSystem()

	w, err := mfs.Create("out/average.txt")
	require.NoError(t, err)
	_, err = w.Write([]byte("abc"))
	require.NoError(t, err)

	data, err := mfs.ReadFile("out/average.txt")
	require.NoError(t, err)
	assert.Empty(t, data)

	require.NoError(t, w.Close())
	data, err = mfs.ReadFile("out/average.txt")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(data))
	assert.True(t, mfs.Exists("out"), "parent directory is implied")
}

func TestMemoryFileSystem_ReadDir(t *testing.T) {
	mfs := NewMemoryFileSystem()
	require.NoError(t, mfs.WriteFile("data/t2.txt", []byte("2"), 0644))
	require.NoError(t, mfs.WriteFile("data/t1.txt", []byte("1"), 0600))
	require.NoError(t, mfs.WriteFile("data/sub/t3.txt", []byte("3"), 0644))
	require.NoError(t, mfs.WriteFile("other/t4.txt", []byte("4"), 0644))

	entries, err := mfs.ReadDir("data")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "sub", entries[0].Name())
	assert.True(t, entries[0].IsDir())
	assert.Equal(t, "t1.txt", entries[1].Name())
	assert.Equal(t, "t2.txt", entries[2].Name())
	assert.False(t, entries[2].IsDir())
	info, err := entries[1].Info()
	require.NoError(t, err)
	assert.Equal(t, fs.FileMode(0600), info.Mode())
	assert.Equal(t, int64(1), info.Size())

	_, err = mfs.ReadDir("missing")
	assert.ErrorIs(t, err, os.ErrNotExist)
	_, err = mfs.ReadDir("data/t1.txt")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestMemoryFileSystem_OpenAndMkdir(t *testing.T) {
	mfs := NewMemoryFileSystem()
	require.NoError(t, mfs.WriteFile("a.txt", []byte("xyz"), 0644))

	f, err := mfs.Open("./a.txt")
	require.NoError(t, err)
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	info, err := f.Stat()
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assert.Equal(t, "xyz", string(data))
	assert.Equal(t, "a.txt", info.Name())

	require.NoError(t, mfs.MkdirAll("x/y/z", 0755))
	assert.True(t, mfs.Exists("x/y"))
	entries, err := mfs.ReadDir("x/y")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].IsDir())

	_, err = mfs.Open("nope.txt")
	assert.ErrorIs(t, err, os.ErrNotExist)
}
