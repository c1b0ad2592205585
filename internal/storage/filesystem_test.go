package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func newTestBackend(t *testing.T) *FilesystemBackend {
	t.Helper()
	backend, err := NewFilesystemBackend(t.TempDir(), "https://cdn.example.com/content", zerolog.Nop())
	if err != nil {
		t.Fatalf("NewFilesystemBackend() error = %v", err)
	}
	return backend
}

func TestStoreAndRetrieve(t *testing.T) {
	backend := newTestBackend(t)
	ctx := context.Background()

	content := []byte("signed purchase agreement")
	wantSum := sha256.Sum256(content)
	wantAddress := hex.EncodeToString(wantSum[:])

	address, err := backend.Store(ctx, bytes.NewReader(content))
	if err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	if address != wantAddress {
		t.Errorf("Store() address = %s, want %s", address, wantAddress)
	}

	rc, err := backend.Retrieve(ctx, address)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	defer rc.Close()

	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("reading content: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("retrieved content mismatch")
	}
}

func TestStoreDeduplicates(t *testing.T) {
	backend := newTestBackend(t)
	ctx := context.Background()

	addr1, err := backend.Store(ctx, strings.NewReader("same bytes"))
	if err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	addr2, err := backend.Store(ctx, strings.NewReader("same bytes"))
	if err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	if addr1 != addr2 {
		t.Errorf("identical content stored at different addresses: %s vs %s", addr1, addr2)
	}
}

func TestRetrieveNotFound(t *testing.T) {
	backend := newTestBackend(t)

	_, err := backend.Retrieve(context.Background(), strings.Repeat("ab", 32))
	if !errors.Is(err, ErrContentNotFound) {
		t.Errorf("Retrieve() error = %v, want ErrContentNotFound", err)
	}
}

func TestDelete(t *testing.T) {
	backend := newTestBackend(t)
	ctx := context.Background()

	address, err := backend.Store(ctx, strings.NewReader("ephemeral"))
	if err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	if err := backend.Delete(ctx, address); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	exists, err := backend.Exists(ctx, address)
	if err != nil {
		t.Fatalf("Exists() error = %v", err)
	}
	if exists {
		t.Errorf("content still exists after Delete()")
	}

	if err := backend.Delete(ctx, address); !errors.Is(err, ErrContentNotFound) {
		t.Errorf("second Delete() error = %v, want ErrContentNotFound", err)
	}
}

func TestURL(t *testing.T) {
	backend := newTestBackend(t)

	address := strings.Repeat("cd", 32)
	want := "https://cdn.example.com/content/" + address
	if got := backend.URL(address); got != want {
		t.Errorf("URL() = %s, want %s", got, want)
	}
}

func TestComputePathSharding(t *testing.T) {
	cfg := DefaultPathConfig("/data")
	address := "abcdef1234"

	got := ComputePath(cfg, address)
	want := "/data/ab/cd/abcdef1234"
	if got != want {
		t.Errorf("ComputePath() = %s, want %s", got, want)
	}
}
