// Package blobstore keeps uploaded file contents on disk, addressed by the
// BLAKE3 hash of the uncompressed bytes.
//
// Blobs live at <dir>/<hash[:2]>/<hash>. Text-like content is stored
// zstd-compressed with a ".zst" suffix; everything else is stored as is.
package blobstore

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"
)

const zstdSuffix = ".zst"

var (
	ErrNotFound    = errors.New("blob not found")
	ErrInvalidHash = errors.New("invalid blob hash")
)

// zstd.Encoder is safe for concurrent EncodeAll calls
var zstdEncoder *zstd.Encoder

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("blobstore: zstd encoder initialization failed: " + err.Error())
	}
}

// Store is a content-addressed directory of blobs
type Store struct {
	dir string
}

// New opens (and creates) a blob directory
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Hash returns the hex BLAKE3 digest blobs are addressed by
func Hash(content []byte) string {
	sum := blake3.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// Compressible reports whether content of this type is stored compressed
func Compressible(contentType string) bool {
	mediaType, _, _ := strings.Cut(contentType, ";")
	mediaType = strings.TrimSpace(strings.ToLower(mediaType))
	if strings.HasPrefix(mediaType, "text/") {
		return true
	}
	switch mediaType {
	case "application/json", "application/x-ndjson", "application/xml",
		"application/sql", "application/javascript", "application/x-yaml",
		"image/svg+xml":
		return true
	}
	return false
}

// Put stores content and returns its hash. Storing the same content again
// only refreshes the blob's modification time, which restarts its Sweep
// grace period.
func (s *Store) Put(content []byte, contentType string) (string, error) {
	hash := Hash(content)
	if path, err := s.find(hash); err == nil {
		now := time.Now()
		err := os.Chtimes(path, now, now)
		if err == nil {
			return hash, nil
		}
		// Swept in between; write it again
		if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("failed to touch blob: %w", err)
		}
	}

	data, name := content, hash
	if Compressible(contentType) {
		if compressed := zstdEncoder.EncodeAll(content, nil); len(compressed) < len(content) {
			data, name = compressed, hash+zstdSuffix
		}
	}

	shard := filepath.Join(s.dir, hash[:2])
	if err := os.MkdirAll(shard, 0o755); err != nil {
		return "", fmt.Errorf("failed to create shard directory: %w", err)
	}
	if err := writeAtomic(filepath.Join(shard, name), data); err != nil {
		return "", err
	}
	return hash, nil
}

// writeAtomic writes data to a temp file in the target directory and
// renames it into place
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".blob-*")
	if err != nil {
		return fmt.Errorf("failed to create temp blob: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close blob: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to commit blob: %w", err)
	}
	return nil
}

// Open returns a reader over the uncompressed content of a blob
func (s *Store) Open(hash string) (io.ReadCloser, error) {
	path, err := s.find(hash)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open blob: %w", err)
	}
	if !strings.HasSuffix(path, zstdSuffix) {
		return f, nil
	}

	dec, err := zstd.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to start decompression: %w", err)
	}
	return &zstdReadCloser{Decoder: dec, file: f}, nil
}

type zstdReadCloser struct {
	*zstd.Decoder
	file *os.File
}

func (z *zstdReadCloser) Close() error {
	z.Decoder.Close()
	return z.file.Close()
}

// Sweep deletes blobs whose hash is not in keep. It is the only way blobs
// are removed. Blobs modified within grace are left alone so an upload
// whose row is not committed yet survives. It returns the number of blobs
// removed.
func (s *Store) Sweep(keep map[string]struct{}, grace time.Duration, now time.Time) (int, error) {
	removed := 0
	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		hash := strings.TrimSuffix(d.Name(), zstdSuffix)
		if !validHash(hash) {
			return nil
		}
		if _, ok := keep[hash]; ok {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if now.Sub(info.ModTime()) < grace {
			return nil
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		removed++
		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("failed to sweep blobs: %w", err)
	}
	return removed, nil
}

func (s *Store) find(hash string) (string, error) {
	if !validHash(hash) {
		return "", ErrInvalidHash
	}
	for _, name := range []string{hash, hash + zstdSuffix} {
		path := filepath.Join(s.dir, hash[:2], name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", ErrNotFound
}

func validHash(hash string) bool {
	if len(hash) != 64 {
		return false
	}
	_, err := hex.DecodeString(hash)
	return err == nil
}
