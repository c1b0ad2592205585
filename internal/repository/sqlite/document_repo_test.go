package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nickrsmith/og-platform-sub004/internal/domain"
	"github.com/nickrsmith/og-platform-sub004/internal/repository"
)

// seedRoom creates a room owned by user-1.
func seedRoom(t *testing.T, repo repository.DataRoomRepository) *domain.DataRoom {
	t.Helper()
	room := domain.NewDataRoom("user-1", "Test Room")
	if err := repo.Create(context.Background(), room); err != nil {
		t.Fatalf("Create(room) error = %v", err)
	}
	return room
}

// seedDoc creates a document row in the Received state.
func seedDoc(t *testing.T, repo repository.DocumentRepository, roomID uuid.UUID, parent *uuid.UUID, name string, size int64) *domain.Document {
	t.Helper()
	doc := domain.NewDocument(roomID, parent, name, name, "/scratch/"+name, size)
	if err := repo.Create(context.Background(), doc); err != nil {
		t.Fatalf("Create(%s) error = %v", name, err)
	}
	return doc
}

func TestDeleteSubtreeRemovesDescendants(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	roomRepo := NewDataRoomRepository(db)
	docRepo := NewDocumentRepository(db)

	room := seedRoom(t, roomRepo)
	folder := seedDoc(t, docRepo, room.ID, nil, "folder", 0)
	child := seedDoc(t, docRepo, room.ID, &folder.ID, "child.pdf", 1000)
	seedDoc(t, docRepo, room.ID, &child.ID, "grandchild.pdf", 500)
	sibling := seedDoc(t, docRepo, room.ID, nil, "sibling.pdf", 250)

	removed, freed, err := docRepo.DeleteSubtree(ctx, room.ID, folder.ID)
	if err != nil {
		t.Fatalf("DeleteSubtree() error = %v", err)
	}
	if removed != 3 {
		t.Errorf("removed = %d, want 3", removed)
	}
	if freed != 1500 {
		t.Errorf("freed = %d, want 1500", freed)
	}

	// The descendants must actually be gone, not just counted.
	docs, err := docRepo.ListByRoom(ctx, room.ID)
	if err != nil {
		t.Fatalf("ListByRoom() error = %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("ListByRoom() returned %d documents after subtree delete, want 1", len(docs))
	}
	if docs[0].ID != sibling.ID {
		t.Errorf("surviving document = %s, want the sibling %s", docs[0].ID, sibling.ID)
	}
}

func TestDeleteRoomRemovesDocuments(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	roomRepo := NewDataRoomRepository(db)
	docRepo := NewDocumentRepository(db)

	room := seedRoom(t, roomRepo)
	seedDoc(t, docRepo, room.ID, nil, "pending.pdf", 1000)

	if err := roomRepo.Delete(ctx, room.ID); err != nil {
		t.Fatalf("Delete(room) error = %v", err)
	}

	// No orphan rows: the promotion backlog must not keep serving documents
	// of a deleted room.
	pending, err := docRepo.ListPendingPromotion(ctx, 10)
	if err != nil {
		t.Fatalf("ListPendingPromotion() error = %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("ListPendingPromotion() returned %d documents after room delete, want 0", len(pending))
	}

	docs, err := docRepo.ListByRoom(ctx, room.ID)
	if err != nil {
		t.Fatalf("ListByRoom() error = %v", err)
	}
	if len(docs) != 0 {
		t.Errorf("ListByRoom() returned %d documents after room delete, want 0", len(docs))
	}
}

func TestListByRoomNewestFirst(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	roomRepo := NewDataRoomRepository(db)
	docRepo := NewDocumentRepository(db)
	room := seedRoom(t, roomRepo)

	// Timestamps in the same second whose variable-width renderings would
	// compare out of order (".12Z" sorts after ".123Z" byte-wise).
	base := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	older := domain.NewDocument(room.ID, nil, "older.pdf", "older.pdf", "/scratch/older", 10)
	older.CreatedAt = base.Add(120 * time.Millisecond)
	older.UpdatedAt = older.CreatedAt
	newer := domain.NewDocument(room.ID, nil, "newer.pdf", "newer.pdf", "/scratch/newer", 10)
	newer.CreatedAt = base.Add(123 * time.Millisecond)
	newer.UpdatedAt = newer.CreatedAt

	if err := docRepo.Create(ctx, older); err != nil {
		t.Fatalf("Create(older) error = %v", err)
	}
	if err := docRepo.Create(ctx, newer); err != nil {
		t.Fatalf("Create(newer) error = %v", err)
	}

	docs, err := docRepo.ListByRoom(ctx, room.ID)
	if err != nil {
		t.Fatalf("ListByRoom() error = %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("ListByRoom() returned %d documents, want 2", len(docs))
	}
	if docs[0].ID != newer.ID {
		t.Errorf("first document = %s (created %v), want the newer one", docs[0].DisplayName, docs[0].CreatedAt)
	}
}
