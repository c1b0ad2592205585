package service

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/nickrsmith/og-platform-sub004/internal/domain"
	"github.com/nickrsmith/og-platform-sub004/internal/repository"
)

// MockDataRoomRepository is a mock implementation of repository.DataRoomRepository.
type MockDataRoomRepository struct {
	rooms map[uuid.UUID]*domain.DataRoom

	createErr    error
	getErr       error
	updateErr    error
	deleteErr    error
	adjustErr    error
	reconcileErr error

	adjustCalls    int
	reconcileFixed int64
}

func NewMockDataRoomRepository() *MockDataRoomRepository {
	return &MockDataRoomRepository{
		rooms: make(map[uuid.UUID]*domain.DataRoom),
	}
}

func (m *MockDataRoomRepository) Create(ctx context.Context, room *domain.DataRoom) error {
	if m.createErr != nil {
		return m.createErr
	}
	copied := *room
	m.rooms[room.ID] = &copied
	return nil
}

func (m *MockDataRoomRepository) GetByIDForOwner(ctx context.Context, id uuid.UUID, ownerUserID string) (*domain.DataRoom, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	room, exists := m.rooms[id]
	if !exists || room.OwnerUserID != ownerUserID {
		return nil, domain.ErrDataRoomNotFound
	}
	copied := *room
	return &copied, nil
}

func (m *MockDataRoomRepository) GetByListingIDForOwner(ctx context.Context, listingID, ownerUserID string) (*domain.DataRoom, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	for _, room := range m.rooms {
		if room.OwnerUserID == ownerUserID && room.ListingID != nil && *room.ListingID == listingID {
			copied := *room
			return &copied, nil
		}
	}
	return nil, domain.ErrDataRoomNotFound
}

func (m *MockDataRoomRepository) GetByAssetIDForOwner(ctx context.Context, assetID, ownerUserID string) (*domain.DataRoom, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	for _, room := range m.rooms {
		if room.OwnerUserID == ownerUserID && room.AssetID != nil && *room.AssetID == assetID {
			copied := *room
			return &copied, nil
		}
	}
	return nil, domain.ErrDataRoomNotFound
}

func (m *MockDataRoomRepository) ListByOwner(ctx context.Context, ownerUserID string, filter repository.DataRoomFilter) ([]*domain.DataRoom, error) {
	var result []*domain.DataRoom
	for _, room := range m.rooms {
		if room.OwnerUserID != ownerUserID {
			continue
		}
		if filter.ListingID != nil && (room.ListingID == nil || *room.ListingID != *filter.ListingID) {
			continue
		}
		if filter.AssetID != nil && (room.AssetID == nil || *room.AssetID != *filter.AssetID) {
			continue
		}
		if filter.Status != nil && room.Status != *filter.Status {
			continue
		}
		copied := *room
		result = append(result, &copied)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (m *MockDataRoomRepository) Update(ctx context.Context, room *domain.DataRoom) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	if _, exists := m.rooms[room.ID]; !exists {
		return domain.ErrDataRoomNotFound
	}
	copied := *room
	m.rooms[room.ID] = &copied
	return nil
}

func (m *MockDataRoomRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, exists := m.rooms[id]; !exists {
		return domain.ErrDataRoomNotFound
	}
	delete(m.rooms, id)
	return nil
}

func (m *MockDataRoomRepository) AdjustStats(ctx context.Context, id uuid.UUID, docDelta, sizeDelta int64) error {
	m.adjustCalls++
	if m.adjustErr != nil {
		return m.adjustErr
	}
	room, exists := m.rooms[id]
	if !exists {
		return domain.ErrDataRoomNotFound
	}
	room.DocumentCount += docDelta
	room.TotalSizeBytes += sizeDelta
	return nil
}

func (m *MockDataRoomRepository) ReconcileStats(ctx context.Context) (int64, error) {
	if m.reconcileErr != nil {
		return 0, m.reconcileErr
	}
	return m.reconcileFixed, nil
}

// MockDocumentRepository is a mock implementation of repository.DocumentRepository.
type MockDocumentRepository struct {
	docs map[uuid.UUID]*domain.Document

	createErr error
	getErr    error
	deleteErr error
}

func NewMockDocumentRepository() *MockDocumentRepository {
	return &MockDocumentRepository{
		docs: make(map[uuid.UUID]*domain.Document),
	}
}

func (m *MockDocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	if m.createErr != nil {
		return m.createErr
	}
	if doc.ParentFolderID != nil {
		parent, exists := m.docs[*doc.ParentFolderID]
		if !exists || parent.DataRoomID != doc.DataRoomID {
			return domain.ErrFolderNotFound
		}
	}
	copied := *doc
	m.docs[doc.ID] = &copied
	return nil
}

func (m *MockDocumentRepository) GetByID(ctx context.Context, roomID, docID uuid.UUID) (*domain.Document, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	doc, exists := m.docs[docID]
	if !exists || doc.DataRoomID != roomID {
		return nil, domain.ErrDocumentNotFound
	}
	copied := *doc
	return &copied, nil
}

func (m *MockDocumentRepository) ExistsInRoom(ctx context.Context, roomID, docID uuid.UUID) (bool, error) {
	doc, exists := m.docs[docID]
	return exists && doc.DataRoomID == roomID, nil
}

func (m *MockDocumentRepository) ListByRoom(ctx context.Context, roomID uuid.UUID) ([]*domain.Document, error) {
	var result []*domain.Document
	for _, doc := range m.docs {
		if doc.DataRoomID == roomID {
			copied := *doc
			result = append(result, &copied)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (m *MockDocumentRepository) DeleteSubtree(ctx context.Context, roomID, docID uuid.UUID) (int64, int64, error) {
	if m.deleteErr != nil {
		return 0, 0, m.deleteErr
	}
	root, exists := m.docs[docID]
	if !exists || root.DataRoomID != roomID {
		return 0, 0, domain.ErrDocumentNotFound
	}

	subtree := map[uuid.UUID]bool{docID: true}
	for {
		grew := false
		for id, doc := range m.docs {
			if subtree[id] || doc.ParentFolderID == nil {
				continue
			}
			if subtree[*doc.ParentFolderID] {
				subtree[id] = true
				grew = true
			}
		}
		if !grew {
			break
		}
	}

	var removed, freed int64
	for id := range subtree {
		freed += m.docs[id].SizeBytes
		delete(m.docs, id)
		removed++
	}
	return removed, freed, nil
}

func (m *MockDocumentRepository) ListPendingPromotion(ctx context.Context, limit int) ([]*domain.Document, error) {
	var result []*domain.Document
	for _, doc := range m.docs {
		if doc.ContentAddress == nil && doc.TempStoragePath != nil {
			copied := *doc
			result = append(result, &copied)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MockDocumentRepository) MarkPromoted(ctx context.Context, docID uuid.UUID, contentAddress, contentURL string) error {
	doc, exists := m.docs[docID]
	if !exists {
		return domain.ErrDocumentNotFound
	}
	if doc.ContentAddress != nil {
		return domain.ErrAlreadyPromoted
	}
	doc.ContentAddress = &contentAddress
	doc.ContentURL = &contentURL
	doc.TempStoragePath = nil
	doc.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MockDocumentRepository) ListTempPaths(ctx context.Context) ([]string, error) {
	var paths []string
	for _, doc := range m.docs {
		if doc.TempStoragePath != nil {
			paths = append(paths, *doc.TempStoragePath)
		}
	}
	return paths, nil
}

// Ensure mocks satisfy the repository interfaces.
var (
	_ repository.DataRoomRepository = (*MockDataRoomRepository)(nil)
	_ repository.DocumentRepository = (*MockDocumentRepository)(nil)
)
