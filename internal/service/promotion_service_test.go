package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/nickrsmith/og-platform-sub004/internal/domain"
	"github.com/nickrsmith/og-platform-sub004/internal/lock"
	"github.com/nickrsmith/og-platform-sub004/internal/scratch"
	"github.com/nickrsmith/og-platform-sub004/internal/storage"
)

// mockBackend is an in-memory content store keyed by sha256 hex digest.
type mockBackend struct {
	objects  map[string][]byte
	storeErr error
}

func newMockBackend() *mockBackend {
	return &mockBackend{objects: make(map[string][]byte)}
}

func (m *mockBackend) Store(ctx context.Context, reader io.Reader) (string, error) {
	if m.storeErr != nil {
		return "", m.storeErr
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	address := hex.EncodeToString(sum[:])
	m.objects[address] = data
	return address, nil
}

func (m *mockBackend) Retrieve(ctx context.Context, address string) (io.ReadCloser, error) {
	data, exists := m.objects[address]
	if !exists {
		return nil, storage.ErrContentNotFound
	}
	return io.NopCloser(strings.NewReader(string(data))), nil
}

func (m *mockBackend) Delete(ctx context.Context, address string) error {
	if _, exists := m.objects[address]; !exists {
		return storage.ErrContentNotFound
	}
	delete(m.objects, address)
	return nil
}

func (m *mockBackend) Exists(ctx context.Context, address string) (bool, error) {
	_, exists := m.objects[address]
	return exists, nil
}

func (m *mockBackend) URL(address string) string {
	return "mock://" + address
}

var _ storage.Backend = (*mockBackend)(nil)

type promotionFixture struct {
	docRepo *MockDocumentRepository
	scratch *scratch.Store
	backend *mockBackend
	svc     *PromotionService
	room    *domain.DataRoom
}

func newPromotionFixture(t *testing.T) *promotionFixture {
	t.Helper()

	docRepo := NewMockDocumentRepository()
	store, err := scratch.NewStore(t.TempDir(), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	backend := newMockBackend()

	return &promotionFixture{
		docRepo: docRepo,
		scratch: store,
		backend: backend,
		svc: NewPromotionService(
			docRepo, store, backend,
			lock.NewNoOpLocker(), nil, zerolog.Nop(),
			DefaultPromotionConfig(),
		),
		room: domain.NewDataRoom("user-1", "Room"),
	}
}

// receive stages content in scratch and records a pending document row.
func (f *promotionFixture) receive(t *testing.T, content string) *domain.Document {
	t.Helper()
	path, size, err := f.scratch.Receive(strings.NewReader(content), "file.bin")
	if err != nil {
		t.Fatalf("Receive() error = %v", err)
	}
	doc := domain.NewDocument(f.room.ID, nil, "file.bin", "file.bin", path, size)
	if err := f.docRepo.Create(context.Background(), doc); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return doc
}

func TestPromotionRunOnce(t *testing.T) {
	f := newPromotionFixture(t)

	doc := f.receive(t, "document body")
	tempPath := *doc.TempStoragePath

	result := f.svc.RunOnce(context.Background())
	if result.Promoted != 1 || result.Errors != 0 {
		t.Fatalf("result = %+v, want 1 promoted, 0 errors", result)
	}

	promoted := f.docRepo.docs[doc.ID]
	if promoted.ContentAddress == nil {
		t.Fatal("document was not marked promoted")
	}
	wantSum := sha256.Sum256([]byte("document body"))
	if *promoted.ContentAddress != hex.EncodeToString(wantSum[:]) {
		t.Errorf("ContentAddress = %q, want content digest", *promoted.ContentAddress)
	}
	if promoted.ContentURL == nil || *promoted.ContentURL != "mock://"+*promoted.ContentAddress {
		t.Error("ContentURL not recorded")
	}
	if promoted.TempStoragePath != nil {
		t.Error("TempStoragePath not cleared after promotion")
	}
	if _, err := os.Stat(tempPath); !os.IsNotExist(err) {
		t.Error("scratch file survived promotion")
	}
	if _, exists := f.backend.objects[*promoted.ContentAddress]; !exists {
		t.Error("content missing from backend")
	}
}

func TestPromotionNothingPending(t *testing.T) {
	f := newPromotionFixture(t)

	result := f.svc.RunOnce(context.Background())
	if result.Promoted != 0 || result.Errors != 0 || result.Pending != 0 {
		t.Errorf("result = %+v, want empty run", result)
	}
}

func TestPromotionBackendFailureRetries(t *testing.T) {
	f := newPromotionFixture(t)

	doc := f.receive(t, "document body")
	f.backend.storeErr = errors.New("backend down")

	result := f.svc.RunOnce(context.Background())
	if result.Errors != 1 || result.Promoted != 0 {
		t.Fatalf("result = %+v, want 1 error, 0 promoted", result)
	}

	// The document stays pending and the scratch bytes survive for a retry.
	if f.docRepo.docs[doc.ID].ContentAddress != nil {
		t.Error("document marked promoted despite backend failure")
	}
	if _, err := os.Stat(*doc.TempStoragePath); err != nil {
		t.Errorf("scratch file missing after failed promotion: %v", err)
	}

	f.backend.storeErr = nil
	result = f.svc.RunOnce(context.Background())
	if result.Promoted != 1 {
		t.Errorf("retry result = %+v, want 1 promoted", result)
	}
}

func TestPromotionDeletedMidRunCleansScratch(t *testing.T) {
	f := newPromotionFixture(t)

	doc := f.receive(t, "document body")
	tempPath := *doc.TempStoragePath

	// The document disappears between the pending listing and MarkPromoted.
	pending, err := f.docRepo.ListPendingPromotion(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListPendingPromotion() error = %v", err)
	}
	delete(f.docRepo.docs, doc.ID)

	if err := f.svc.promoteOne(context.Background(), pending[0]); err != nil {
		t.Fatalf("promoteOne() error = %v, want lost race treated as success", err)
	}
	if _, err := os.Stat(tempPath); !os.IsNotExist(err) {
		t.Error("scratch file survived a lost promotion race")
	}
}

func TestPromotionBatchLimit(t *testing.T) {
	f := newPromotionFixture(t)
	f.svc.config.BatchSize = 2

	for i := 0; i < 3; i++ {
		f.receive(t, strings.Repeat("x", i+1))
	}

	result := f.svc.RunOnce(context.Background())
	if result.Pending != 2 || result.Promoted != 2 {
		t.Fatalf("result = %+v, want batch of 2", result)
	}

	result = f.svc.RunOnce(context.Background())
	if result.Promoted != 1 {
		t.Errorf("second run result = %+v, want remaining 1 promoted", result)
	}
}

// heldLocker reports every lock as held by another process.
type heldLocker struct{}

func (heldLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return false, nil
}

func (heldLocker) Release(ctx context.Context, key string) (bool, error) {
	return false, nil
}

func (heldLocker) Extend(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return false, nil
}

func TestPromotionSkipsWhenLockHeld(t *testing.T) {
	f := newPromotionFixture(t)
	f.svc.locker = heldLocker{}

	doc := f.receive(t, "document body")

	result := f.svc.RunOnce(context.Background())
	if result.Promoted != 0 || result.Errors != 0 {
		t.Errorf("result = %+v, want skipped run", result)
	}
	if f.docRepo.docs[doc.ID].ContentAddress != nil {
		t.Error("document promoted while the lock was held elsewhere")
	}
}
