package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// FilesystemBackend stores content on the local filesystem using sharded,
// content-addressed paths.
type FilesystemBackend struct {
	paths   PathConfig
	baseURL string
	logger  zerolog.Logger
}

// NewFilesystemBackend creates a filesystem content store rooted at dataDir.
// baseURL, when set, is the public prefix for content URLs.
func NewFilesystemBackend(dataDir, baseURL string, logger zerolog.Logger) (*FilesystemBackend, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &FilesystemBackend{
		paths:   DefaultPathConfig(dataDir),
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger.With().Str("component", "storage_fs").Logger(),
	}, nil
}

// Store hashes the content while spooling it to a temp file, then moves it
// into its content-addressed location. The rename is atomic on POSIX
// filesystems, so readers never observe a partial file.
func (b *FilesystemBackend) Store(ctx context.Context, reader io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(b.paths.BasePath, ".incoming-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	hasher := sha256.New()
	_, err = io.Copy(io.MultiWriter(tmp, hasher), reader)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("failed to write content: %w", err)
	}

	address := hex.EncodeToString(hasher.Sum(nil))
	finalPath := ComputePath(b.paths, address)

	// Already stored: identical content dedupes to the same address.
	if _, err := os.Stat(finalPath); err == nil {
		_ = os.Remove(tmpPath)
		return address, nil
	}

	if err := os.MkdirAll(GetShardPath(b.paths, address), 0o755); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("failed to create shard directory: %w", err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("failed to move content into place: %w", err)
	}

	return address, nil
}

// Retrieve opens the content at the given address.
func (b *FilesystemBackend) Retrieve(ctx context.Context, contentAddress string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	file, err := os.Open(ComputePath(b.paths, contentAddress))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrContentNotFound
		}
		return nil, fmt.Errorf("failed to open content: %w", err)
	}
	return file, nil
}

// Delete removes the content at the given address.
func (b *FilesystemBackend) Delete(ctx context.Context, contentAddress string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path := ComputePath(b.paths, contentAddress)
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return ErrContentNotFound
		}
		return fmt.Errorf("failed to delete content: %w", err)
	}

	// Best effort: drop empty shard directories.
	_ = os.Remove(filepath.Dir(path))

	return nil
}

// Exists reports whether content is stored at the given address.
func (b *FilesystemBackend) Exists(ctx context.Context, contentAddress string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	_, err := os.Stat(ComputePath(b.paths, contentAddress))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat content: %w", err)
	}
	return true, nil
}

// URL returns the public URL for the content.
func (b *FilesystemBackend) URL(contentAddress string) string {
	if b.baseURL == "" {
		return "file://" + ComputePath(b.paths, contentAddress)
	}
	return b.baseURL + "/" + contentAddress
}

// Ensure FilesystemBackend implements Backend.
var _ Backend = (*FilesystemBackend)(nil)
