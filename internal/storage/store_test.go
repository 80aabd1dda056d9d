package storage

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type failingReader struct {
	err error
}

func (r failingReader) Read([]byte) (int, error) {
	return 0, r.err
}

// vanishingReader deletes everything under root on the first read, so the
// file being written is gone by the time Save checks it exists.
type vanishingReader struct {
	root string
}

func (r vanishingReader) Read([]byte) (int, error) {
	entries, _ := os.ReadDir(r.root)
	for _, e := range entries {
		os.Remove(filepath.Join(r.root, e.Name()))
	}
	return 0, io.EOF
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "uploads"), zap.NewNop())
	require.NoError(t, err)
	return store
}

func dirNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestNewCreatesRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "a", "b")

	store, err := New(root, nil)
	require.NoError(t, err)

	info, err := os.Stat(store.Root())
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestSaveRoundTrip(t *testing.T) {
	store := newTestStore(t)

	f, err := store.Save("sample.wav", strings.NewReader("RIFF fake audio"))
	require.NoError(t, err)

	assert.Equal(t, "sample.wav", f.Name)
	assert.Equal(t, int64(len("RIFF fake audio")), f.Size)
	assert.Equal(t, store.Root(), filepath.Dir(f.Path))
	assert.True(t, strings.HasSuffix(f.Path, "_sample.wav"))

	content, err := os.ReadFile(f.Path)
	require.NoError(t, err)
	assert.Equal(t, "RIFF fake audio", string(content))
}

func TestSaveSameNameNeverCollides(t *testing.T) {
	store := newTestStore(t)

	first, err := store.Save("sample.wav", strings.NewReader("one"))
	require.NoError(t, err)
	second, err := store.Save("sample.wav", strings.NewReader("two"))
	require.NoError(t, err)

	assert.NotEqual(t, first.Path, second.Path)
	assert.Len(t, dirNames(t, store.Root()), 2)
}

func TestSaveStripsPathComponents(t *testing.T) {
	store := newTestStore(t)

	f, err := store.Save("../../etc/passwd.wav", strings.NewReader("x"))
	require.NoError(t, err)

	assert.Equal(t, "passwd.wav", f.Name)
	assert.Equal(t, store.Root(), filepath.Dir(f.Path))
}

func TestSaveStripsWindowsPathComponents(t *testing.T) {
	store := newTestStore(t)

	f, err := store.Save(`C:\Users\me\voice memo!.wav`, strings.NewReader("x"))
	require.NoError(t, err)

	assert.Equal(t, "voice_memo_.wav", f.Name)
	assert.Equal(t, store.Root(), filepath.Dir(f.Path))
}

func TestSaveRejectsUnusableNames(t *testing.T) {
	store := newTestStore(t)

	for _, name := range []string{".", "..", "", "a/b/.."} {
		_, err := store.Save(name, strings.NewReader("x"))

		var ioErr *IOError
		require.ErrorAs(t, err, &ioErr, "name %q", name)
	}
	assert.Empty(t, dirNames(t, store.Root()))
}

func TestSaveCleansUpAfterReadFailure(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Save("sample.wav", failingReader{err: errors.New("connection reset")})

	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, "write", ioErr.Op)
	assert.ErrorContains(t, err, "connection reset")
	assert.Empty(t, dirNames(t, store.Root()), "partial file should be removed")
}

func TestSaveReportsVanishedFile(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("removing an open file requires POSIX semantics")
	}
	store := newTestStore(t)

	_, err := store.Save("sample.wav", vanishingReader{root: store.Root()})

	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, "verify", ioErr.Op)
	assert.Empty(t, dirNames(t, store.Root()), "nothing may be left behind after a failed save")
}

func TestSaveRecreatesRemovedRoot(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, os.RemoveAll(store.Root()))

	f, err := store.Save("sample.wav", strings.NewReader("x"))
	require.NoError(t, err)

	_, statErr := os.Stat(f.Path)
	assert.NoError(t, statErr)
}

func TestReleaseRemovesFile(t *testing.T) {
	store := newTestStore(t)

	f, err := store.Save("sample.wav", strings.NewReader("x"))
	require.NoError(t, err)

	store.Release(f)

	_, statErr := os.Stat(f.Path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestReleaseIsIdempotent(t *testing.T) {
	store := newTestStore(t)

	f, err := store.Save("sample.wav", strings.NewReader("x"))
	require.NoError(t, err)

	store.Release(f)
	store.Release(f)
	store.Release(nil)
}

func TestIOErrorUnwraps(t *testing.T) {
	inner := errors.New("disk full")
	err := &IOError{Op: "write", Path: "/tmp/x", Err: inner}

	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "disk full")
	assert.Contains(t, err.Error(), "/tmp/x")
}
