// Package scratch manages the temporary landing area for uploads.
// Uploaded files are written here first; a background worker later promotes
// them into the content store. Files that lose their document row (crash
// between the two phases) are swept by the reconciler.
package scratch

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/nickrsmith/og-platform-sub004/internal/domain"
)

// MaxUploadBytes is the upload size cap: 750 MiB.
const MaxUploadBytes = 786432000

// Store writes incoming uploads to a scratch directory.
type Store struct {
	dir      string
	maxBytes int64
	logger   zerolog.Logger
}

// NewStore creates a scratch store rooted at dir, creating it if needed.
func NewStore(dir string, logger zerolog.Logger) (*Store, error) {
	return NewStoreWithLimit(dir, MaxUploadBytes, logger)
}

// NewStoreWithLimit creates a scratch store with a non-default size cap.
func NewStoreWithLimit(dir string, maxBytes int64, logger zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create scratch directory: %w", err)
	}
	return &Store{
		dir:      dir,
		maxBytes: maxBytes,
		logger:   logger.With().Str("component", "scratch").Logger(),
	}, nil
}

// Dir returns the scratch directory path.
func (s *Store) Dir() string {
	return s.dir
}

// Receive streams an upload into the scratch area and returns the path and
// the number of bytes written. Reads beyond MaxUploadBytes abort the write,
// remove the partial file and return ErrFileTooLarge.
func (s *Store) Receive(reader io.Reader, originalFilename string) (string, int64, error) {
	name, err := scratchName(originalFilename)
	if err != nil {
		return "", 0, err
	}
	path := filepath.Join(s.dir, name)

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create scratch file: %w", err)
	}

	// Copy one byte past the cap so an exactly-at-limit upload is accepted
	// and an over-limit one is detected without reading the remainder.
	written, err := io.Copy(file, io.LimitReader(reader, s.maxBytes+1))
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return "", 0, fmt.Errorf("failed to write scratch file: %w", err)
	}
	if written > s.maxBytes {
		_ = os.Remove(path)
		return "", 0, domain.ErrFileTooLarge
	}

	return path, written, nil
}

// Remove deletes a scratch file. Missing files are not an error; the
// promotion worker and the sweeper may race on the same path.
func (s *Store) Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove scratch file: %w", err)
	}
	return nil
}

// Open opens a scratch file for reading.
func (s *Store) Open(path string) (io.ReadCloser, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open scratch file: %w", err)
	}
	return file, nil
}

// ListOlderThan returns scratch file paths whose modification time is before
// the cutoff. Used by the orphan sweeper.
func (s *Store) ListOlderThan(cutoff time.Time) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read scratch directory: %w", err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			paths = append(paths, filepath.Join(s.dir, entry.Name()))
		}
	}

	return paths, nil
}

// scratchName builds a collision-free scratch file name: a random 32-hex
// token prefix followed by the sanitized original basename.
func scratchName(originalFilename string) (string, error) {
	token := make([]byte, 16)
	if _, err := rand.Read(token); err != nil {
		return "", fmt.Errorf("failed to generate scratch token: %w", err)
	}

	base := sanitizeFilename(originalFilename)
	return hex.EncodeToString(token) + "_" + base, nil
}

// sanitizeFilename strips path separators and traversal sequences so the
// client-supplied name can never escape the scratch directory.
func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "..", "")
	name = strings.ReplaceAll(name, "/", "")
	name = strings.ReplaceAll(name, "\\", "")
	name = strings.TrimSpace(name)
	if name == "" || name == "." {
		name = "upload"
	}
	return name
}
