package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nickrsmith/og-platform-sub004/internal/repository/sqlite"
	"github.com/nickrsmith/og-platform-sub004/internal/scratch"
	"github.com/nickrsmith/og-platform-sub004/internal/service"
)

// newTestServer wires the full HTTP surface against an in-memory SQLite
// store and a temp scratch directory.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	ctx := context.Background()
	logger := zerolog.Nop()

	db, err := sqlite.NewDB(ctx, sqlite.DefaultConfig(":memory:"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate(ctx))

	roomRepo := sqlite.NewDataRoomRepository(db)
	docRepo := sqlite.NewDocumentRepository(db)

	scratchStore, err := scratch.NewStore(t.TempDir(), logger)
	require.NoError(t, err)

	roomService := service.NewDataRoomService(roomRepo, docRepo, logger)
	docService := service.NewDocumentService(roomRepo, docRepo, scratchStore, nil, logger)

	router := NewRouter(RouterConfig{
		DataRoomHandler: NewDataRoomHandler(roomService, logger),
		DocumentHandler: NewDocumentHandler(docService, logger),
		DB:              db,
		Logger:          logger,
	})

	server := httptest.NewServer(router.Handler())
	t.Cleanup(server.Close)
	return server
}

// doJSON performs a JSON request as the given user.
func doJSON(t *testing.T, server *httptest.Server, method, path, userID string, body interface{}) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, server.URL+path, reader)
	require.NoError(t, err)
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := server.Client().Do(req)
	require.NoError(t, err)
	return resp
}

// doRaw performs a request with a raw JSON body, for payloads json.Marshal
// cannot express (explicit nulls).
func doRaw(t *testing.T, server *httptest.Server, method, path, userID, body string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, server.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("X-User-ID", userID)
	req.Header.Set("Content-Type", "application/json")

	resp, err := server.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func decodeRoom(t *testing.T, resp *http.Response) dataRoomResponse {
	t.Helper()
	defer resp.Body.Close()
	var room dataRoomResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&room))
	return room
}

func decodeDocument(t *testing.T, resp *http.Response) documentResponse {
	t.Helper()
	defer resp.Body.Close()
	var doc documentResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))
	return doc
}

func createRoom(t *testing.T, server *httptest.Server, userID, name string) dataRoomResponse {
	t.Helper()
	resp := doJSON(t, server, http.MethodPost, "/data-rooms", userID, map[string]string{"name": name})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decodeRoom(t, resp)
}

// uploadFile posts a multipart upload and returns the raw response.
func uploadFile(t *testing.T, server *httptest.Server, roomID, userID string, fields map[string]string, filename string, content []byte) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for name, value := range fields {
		require.NoError(t, writer.WriteField(name, value))
	}
	if filename != "" {
		part, err := writer.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req, err := http.NewRequest(http.MethodPost, server.URL+"/data-rooms/"+roomID+"/documents", &buf)
	require.NoError(t, err)
	req.Header.Set("X-User-ID", userID)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := server.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func TestHealth(t *testing.T) {
	server := newTestServer(t)

	resp, err := server.Client().Get(server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestIdentityRequired(t *testing.T) {
	server := newTestServer(t)

	resp := doJSON(t, server, http.MethodGet, "/data-rooms", "", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCreateDataRoom(t *testing.T) {
	server := newTestServer(t)

	resp := doJSON(t, server, http.MethodPost, "/data-rooms", "user-a", map[string]string{
		"name": "Q1 Package",
		"tier": "SIMPLE",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	room := decodeRoom(t, resp)
	assert.Equal(t, "Q1 Package", room.Name)
	assert.Equal(t, "SIMPLE", room.Tier)
	assert.Equal(t, "INCOMPLETE", room.Status)
	assert.Equal(t, int64(0), room.DocumentCount)
	assert.Equal(t, "0", room.TotalSizeBytes)
}

func TestCreateDataRoomEmptyName(t *testing.T) {
	server := newTestServer(t)

	resp := doJSON(t, server, http.MethodPost, "/data-rooms", "user-a", map[string]string{})
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var errResp errorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&errResp))
	assert.Equal(t, "name", errResp.Error.Field)
}

func TestCrossTenantReadsAreNotFound(t *testing.T) {
	server := newTestServer(t)
	room := createRoom(t, server, "user-a", "Room")

	for _, req := range []struct {
		method, path string
		body         interface{}
	}{
		{http.MethodGet, "/data-rooms/" + room.ID, nil},
		{http.MethodPatch, "/data-rooms/" + room.ID, map[string]string{"name": "X"}},
		{http.MethodDelete, "/data-rooms/" + room.ID, nil},
	} {
		resp := doJSON(t, server, req.method, req.path, "user-b", req.body)
		resp.Body.Close()
		assert.Equalf(t, http.StatusNotFound, resp.StatusCode, "%s %s as non-owner", req.method, req.path)
	}
}

func TestGetDataRoomByListing(t *testing.T) {
	server := newTestServer(t)

	resp := doJSON(t, server, http.MethodPost, "/data-rooms", "user-a", map[string]string{
		"name":      "Room",
		"listingId": "listing-7",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, server, http.MethodGet, "/data-rooms/listing/listing-7", "user-a", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	room := decodeRoom(t, resp)
	assert.Equal(t, "Room", room.Name)

	// Unlinked listing: 200 with a null body, not 404.
	resp = doJSON(t, server, http.MethodGet, "/data-rooms/listing/listing-8", "user-a", nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "null", strings.TrimSpace(string(body)))
}

func TestUpdateDataRoom(t *testing.T) {
	server := newTestServer(t)

	resp := doJSON(t, server, http.MethodPost, "/data-rooms", "user-a", map[string]string{
		"name":    "Room",
		"assetId": "asset-1",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeRoom(t, resp)

	// Rename and unlink the asset with an explicit null; listingId omitted.
	resp = doRaw(t, server, http.MethodPatch, "/data-rooms/"+created.ID, "user-a",
		`{"name":"Renamed","assetId":null}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	room := decodeRoom(t, resp)
	assert.Equal(t, "Renamed", room.Name)
	assert.Nil(t, room.AssetID)
}

func TestDeleteDataRoom(t *testing.T) {
	server := newTestServer(t)
	room := createRoom(t, server, "user-a", "Room")

	resp := doJSON(t, server, http.MethodDelete, "/data-rooms/"+room.ID, "user-a", nil)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, server, http.MethodGet, "/data-rooms/"+room.ID, "user-a", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUploadDocument(t *testing.T) {
	server := newTestServer(t)
	room := createRoom(t, server, "user-a", "Room")

	content := bytes.Repeat([]byte("x"), 1048576)
	resp := uploadFile(t, server, room.ID, "user-a", nil, "deck.pdf", content)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	doc := decodeDocument(t, resp)
	assert.Equal(t, "1048576", doc.SizeBytes)
	assert.Equal(t, "deck.pdf", doc.Name)
	assert.False(t, doc.Promoted)

	resp = doJSON(t, server, http.MethodGet, "/data-rooms/"+room.ID, "user-a", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decodeRoom(t, resp)
	assert.Equal(t, int64(1), updated.DocumentCount)
	assert.Equal(t, "1048576", updated.TotalSizeBytes)
	require.Len(t, updated.Documents, 1)
}

func TestUploadDocumentIntoFolder(t *testing.T) {
	server := newTestServer(t)
	room := createRoom(t, server, "user-a", "Room")

	resp := uploadFile(t, server, room.ID, "user-a", map[string]string{"name": "Financials"}, "folder.keep", []byte{})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	folder := decodeDocument(t, resp)
	assert.Equal(t, "Financials", folder.Name)

	resp = uploadFile(t, server, room.ID, "user-a",
		map[string]string{"folderId": folder.ID}, "q1.xlsx", []byte("spreadsheet"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	nested := decodeDocument(t, resp)
	require.NotNil(t, nested.ParentFolderID)
	assert.Equal(t, folder.ID, *nested.ParentFolderID)
}

func TestUploadDocumentBadFolder(t *testing.T) {
	server := newTestServer(t)
	roomA := createRoom(t, server, "user-a", "Room A")
	roomB := createRoom(t, server, "user-a", "Room B")

	resp := uploadFile(t, server, roomB.ID, "user-a", nil, "folder.keep", []byte{})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	foreignFolder := decodeDocument(t, resp)

	// A folder id from another room must fail validation, never attach.
	resp = uploadFile(t, server, roomA.ID, "user-a",
		map[string]string{"folderId": foreignFolder.ID}, "doc.pdf", []byte("data"))
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var errResp errorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&errResp))
	assert.Equal(t, "folderId", errResp.Error.Field)
}

func TestUploadDocumentNoFile(t *testing.T) {
	server := newTestServer(t)
	room := createRoom(t, server, "user-a", "Room")

	resp := uploadFile(t, server, room.ID, "user-a", map[string]string{"name": "x"}, "", nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var errResp errorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&errResp))
	assert.Equal(t, "file", errResp.Error.Field)
}

func TestDeleteDocument(t *testing.T) {
	server := newTestServer(t)
	room := createRoom(t, server, "user-a", "Room")

	first := decodeDocument(t, uploadFile(t, server, room.ID, "user-a", nil, "a.bin", bytes.Repeat([]byte("a"), 1048576)))
	second := decodeDocument(t, uploadFile(t, server, room.ID, "user-a", nil, "b.bin", bytes.Repeat([]byte("b"), 2000000)))

	resp := doJSON(t, server, http.MethodDelete,
		fmt.Sprintf("/data-rooms/%s/documents/%s", room.ID, first.ID), "user-a", nil)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	// Second delete of the same document: NotFound, counters untouched.
	resp = doJSON(t, server, http.MethodDelete,
		fmt.Sprintf("/data-rooms/%s/documents/%s", room.ID, first.ID), "user-a", nil)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	updated := decodeRoom(t, doJSON(t, server, http.MethodGet, "/data-rooms/"+room.ID, "user-a", nil))
	assert.Equal(t, int64(1), updated.DocumentCount)
	assert.Equal(t, "2000000", updated.TotalSizeBytes)
	require.Len(t, updated.Documents, 1)
	assert.Equal(t, second.ID, updated.Documents[0].ID)
}

func TestDeleteFolderSubtree(t *testing.T) {
	server := newTestServer(t)
	room := createRoom(t, server, "user-a", "Room")

	folder := decodeDocument(t, uploadFile(t, server, room.ID, "user-a", nil, "folder.keep", []byte{}))
	decodeDocument(t, uploadFile(t, server, room.ID, "user-a",
		map[string]string{"folderId": folder.ID}, "child.bin", []byte("12345")))
	sibling := decodeDocument(t, uploadFile(t, server, room.ID, "user-a", nil, "sibling.bin", []byte("xyz")))

	resp := doJSON(t, server, http.MethodDelete,
		fmt.Sprintf("/data-rooms/%s/documents/%s", room.ID, folder.ID), "user-a", nil)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	updated := decodeRoom(t, doJSON(t, server, http.MethodGet, "/data-rooms/"+room.ID, "user-a", nil))
	assert.Equal(t, int64(1), updated.DocumentCount)
	assert.Equal(t, "3", updated.TotalSizeBytes)
	require.Len(t, updated.Documents, 1)
	assert.Equal(t, sibling.ID, updated.Documents[0].ID)
}

func TestListDataRoomsFilter(t *testing.T) {
	server := newTestServer(t)

	resp := doJSON(t, server, http.MethodPost, "/data-rooms", "user-a", map[string]string{
		"name":      "Linked",
		"listingId": "l-1",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()
	createRoom(t, server, "user-a", "Unlinked")
	createRoom(t, server, "user-b", "Other tenant")

	resp = doJSON(t, server, http.MethodGet, "/data-rooms", "user-a", nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var rooms []dataRoomResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rooms))
	require.Len(t, rooms, 2)

	resp = doJSON(t, server, http.MethodGet, "/data-rooms?listingId=l-1", "user-a", nil)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rooms))
	require.Len(t, rooms, 1)
	assert.Equal(t, "Linked", rooms[0].Name)
}

func TestMalformedRoomIDIsNotFound(t *testing.T) {
	server := newTestServer(t)

	resp := doJSON(t, server, http.MethodGet, "/data-rooms/not-a-uuid", "user-a", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
