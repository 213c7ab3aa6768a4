package blobstore

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAll(t *testing.T, s *Store, hash string) []byte {
	t.Helper()
	rc, err := s.Open(hash)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return data
}

func TestPut_CompressesText(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	text := []byte(strings.Repeat("mission log entry\n", 500))
	hash, err := s.Put(text, "text/plain; charset=utf-8")
	require.NoError(t, err)
	assert.Equal(t, Hash(text), hash)

	path := filepath.Join(s.dir, hash[:2], hash+zstdSuffix)
	info, err := os.Stat(path)
	require.NoError(t, err, "expected compressed blob on disk")
	assert.Less(t, info.Size(), int64(len(text)))

	assert.Equal(t, text, readAll(t, s, hash))
}

func TestPut_BinaryStoredRaw(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	png := []byte("\x89PNG\r\n\x1a\n" + strings.Repeat("\x00\x01", 64))
	hash, err := s.Put(png, "image/png")
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(s.dir, hash[:2], hash))
	require.NoError(t, err)
	assert.True(t, bytes.Equal(png, readAll(t, s, hash)))
}

func TestPut_Deduplicates(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	first, err := s.Put([]byte("same"), "application/octet-stream")
	require.NoError(t, err)
	second, err := s.Put([]byte("same"), "text/plain")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	entries, err := os.ReadDir(filepath.Join(s.dir, first[:2]))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestSweep(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	keep, err := s.Put([]byte("keep me"), "text/plain")
	require.NoError(t, err)
	drop, err := s.Put([]byte("drop me"), "application/octet-stream")
	require.NoError(t, err)

	// Fresh blobs are protected by the grace period
	n, err := s.Sweep(map[string]struct{}{keep: {}}, time.Hour, time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = s.Sweep(map[string]struct{}{keep: {}}, time.Hour, time.Now().Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, err = s.Open(drop)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, []byte("keep me"), readAll(t, s, keep))

	_, err = s.Open("../etc/passwd")
	assert.ErrorIs(t, err, ErrInvalidHash)
}

func TestPut_DuplicateRestartsGrace(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	hash, err := s.Put([]byte("shared bytes"), "application/octet-stream")
	require.NoError(t, err)
	path, err := s.find(hash)
	require.NoError(t, err)
	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))

	// A second upload of the same bytes must not hand back a blob the
	// next sweep considers stale
	again, err := s.Put([]byte("shared bytes"), "application/octet-stream")
	require.NoError(t, err)
	require.Equal(t, hash, again)

	n, err := s.Sweep(map[string]struct{}{}, time.Hour, time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, []byte("shared bytes"), readAll(t, s, hash))
}

func TestPut_RewritesSweptBlob(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	hash, err := s.Put([]byte("gone soon"), "application/octet-stream")
	require.NoError(t, err)
	n, err := s.Sweep(map[string]struct{}{}, time.Hour, time.Now().Add(2*time.Hour))
	require.NoError(t, err)
	require.Equal(t, 1, n)

	_, err = s.Put([]byte("gone soon"), "application/octet-stream")
	require.NoError(t, err)
	assert.Equal(t, []byte("gone soon"), readAll(t, s, hash))
}

func TestCompressible(t *testing.T) {
	tests := map[string]bool{
		"text/markdown":            true,
		"application/json":         true,
		"Text/CSV; charset=utf-8":  true,
		"image/png":                false,
		"application/zip":          false,
		"application/octet-stream": false,
	}
	for ct, want := range tests {
		assert.Equal(t, want, Compressible(ct), ct)
	}
}
