package handler

import (
	"bytes"
	"encoding/json"
	"image"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/websocket"

	"camwatch/internal/config"
	"camwatch/internal/dto"
	"camwatch/internal/logger"
	"camwatch/internal/model"
	"camwatch/internal/repository/sqlite"
	"camwatch/internal/service/dedup"
	"camwatch/internal/service/events"
	"camwatch/internal/service/filter"
	"camwatch/internal/service/history"
	"camwatch/internal/service/ignore"
	"camwatch/internal/service/ingest"
	"camwatch/internal/service/manager"
	"camwatch/internal/storage"
)

type testServer struct {
	cfg      *config.Config
	history  *history.Store
	images   *storage.Store
	ignores  *ignore.List
	settings *filter.Holder
	manager  *manager.Manager
	registry *ingest.Registry
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	dir := t.TempDir()

	db, err := sqlite.New(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	images, err := storage.NewStore(filepath.Join(dir, "images"))
	if err != nil {
		t.Fatalf("Failed to create image store: %v", err)
	}

	log := logger.Discard()
	clk := clock.NewMock()
	cfg := &config.Config{
		Password: "secret",
		Streams:  []config.StreamDefinition{{ID: "cam1", Label: "Front door"}},
	}

	settings := filter.NewHolder(filter.NewSettings([]config.Interest{
		{Class: "person", Label: "Person", Enabled: true, MinConfidence: 0.6},
	}, 0))
	ignores := ignore.NewList(0.5, sqlite.NewIgnoreRepository(db), clk, log)
	store := history.NewStore(10, sqlite.NewHistoryRepository(db), images, log)
	bus := events.NewBus()
	t.Cleanup(func() { bus.Close() })

	mng := manager.New(manager.Options{
		Settings: settings,
		Engine:   dedup.NewEngine(dedup.Config{Window: time.Minute, OverlapThreshold: 0.5}, clk, ignores),
		History:  store,
		Ignores:  ignores,
		Bus:      bus,
		Clock:    clk,
	}, log)

	registry := ingest.NewRegistry(clk, time.Second, log)
	registry.Add("cam1", "Front door")
	t.Cleanup(registry.StopAll)

	return &testServer{
		cfg:      cfg,
		history:  store,
		images:   images,
		ignores:  ignores,
		settings: settings,
		manager:  mng,
		registry: registry,
	}
}

func (s *testServer) record(t *testing.T, id, stream string, at time.Time) model.HistoryEntry {
	t.Helper()
	e, _, err := s.history.Record(model.HistoryEntry{
		ID:        id,
		StreamID:  stream,
		Class:     "person",
		Region:    model.Region{X: 10, Y: 10, Width: 40, Height: 80},
		Timestamp: at,
	}, []byte("jpeg"))
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	return e
}

func TestAtoiDefault(t *testing.T) {
	tests := []struct {
		input    string
		def      int
		expected int
	}{
		{"10", 5, 10},
		{"1", 0, 1},
		{"", 5, 5},
		{"abc", 10, 10},
		{"-1", 5, 5},
		{"0", 5, 5},
		{"12.5", 5, 5},
	}

	for _, tt := range tests {
		if result := atoiDefault(tt.input, tt.def); result != tt.expected {
			t.Errorf("atoiDefault(%q, %d) = %d, expected %d", tt.input, tt.def, result, tt.expected)
		}
	}
}

func TestGetHistoryHandler_Pagination(t *testing.T) {
	s := setupTestServer(t)
	base := time.Date(2025, 6, 15, 12, 0, 0, 0, time.Local)
	s.record(t, "e1", "cam1", base)
	s.record(t, "e2", "cam2", base.Add(time.Minute))
	s.record(t, "e3", "cam1", base.Add(2*time.Minute))

	handler := GetHistoryHandler(s.history, s.settings, s.cfg, logger.Discard())

	req := httptest.NewRequest(http.MethodGet, "/api/history?limit=2&page=1", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	var data struct {
		Entries []struct {
			ID          string `json:"id"`
			StreamLabel string `json:"streamLabel"`
			ClassLabel  string `json:"classLabel"`
		} `json:"entries"`
		Length     int `json:"length"`
		TotalPages int `json:"totalPages"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&data); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if data.Length != 3 || data.TotalPages != 2 || len(data.Entries) != 2 {
		t.Fatalf("Unexpected page: %+v", data)
	}
	if data.Entries[0].ID != "e3" || data.Entries[0].StreamLabel != "Front door" || data.Entries[0].ClassLabel != "Person" {
		t.Errorf("Expected newest entry first with labels, got %+v", data.Entries[0])
	}

	req = httptest.NewRequest(http.MethodGet, "/api/history?camera=cam2", nil)
	rec = httptest.NewRecorder()
	handler(rec, req)
	var filtered dto.HistoryData
	if err := json.NewDecoder(rec.Body).Decode(&filtered); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if filtered.Length != 1 {
		t.Errorf("Expected 1 entry for cam2, got %d", filtered.Length)
	}
}

func TestDeleteHistoryHandler(t *testing.T) {
	s := setupTestServer(t)
	e := s.record(t, "e1", "cam1", time.Now())
	handler := DeleteHistoryHandler(s.manager, logger.Discard())

	req := httptest.NewRequest(http.MethodPost, "/api/history/delete?id=e1", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	if s.history.Count() != 0 {
		t.Error("Entry still in history")
	}
	if _, err := s.images.Load(e.ImagePath); err == nil {
		t.Error("Image still on disk")
	}

	rec = httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodPost, "/api/history/delete?id=e1", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for missing entry, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/api/history/delete?id=e1", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", rec.Code)
	}
}

func TestIgnoreHandlers(t *testing.T) {
	s := setupTestServer(t)
	s.record(t, "e1", "cam1", time.Now())
	log := logger.Discard()

	rec := httptest.NewRecorder()
	IgnoreFromHistoryHandler(s.manager, log)(rec, httptest.NewRequest(http.MethodPost, "/api/history/ignore?id=e1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var created model.IgnoreEntry
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if created.SourceID != "e1" || created.StreamID != "cam1" {
		t.Errorf("Unexpected ignore entry %+v", created)
	}

	rec = httptest.NewRecorder()
	IgnoreFromHistoryHandler(s.manager, log)(rec, httptest.NewRequest(http.MethodPost, "/api/history/ignore?id=missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	GetIgnoresHandler(s.ignores, log)(rec, httptest.NewRequest(http.MethodGet, "/api/ignores", nil))
	var listed []model.IgnoreEntry
	if err := json.NewDecoder(rec.Body).Decode(&listed); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != created.ID {
		t.Fatalf("Unexpected ignore list %+v", listed)
	}

	del := DeleteIgnoreHandler(s.manager, log)
	rec = httptest.NewRecorder()
	del(rec, httptest.NewRequest(http.MethodDelete, "/api/ignores/delete?id="+created.ID, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	rec = httptest.NewRecorder()
	del(rec, httptest.NewRequest(http.MethodDelete, "/api/ignores/delete?id="+created.ID, nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 on second delete, got %d", rec.Code)
	}
}

func TestViewHistoryImageHandler(t *testing.T) {
	s := setupTestServer(t)
	e := s.record(t, "e1", "cam1", time.Now())
	handler := ViewHistoryImageHandler(s.images)

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/api/history/view?image="+e.ImagePath, nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "jpeg" {
		t.Errorf("Expected image body, got %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/api/history/view?image=../test.db", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for traversal, got %d", rec.Code)
	}
}

func TestSettingsHandler(t *testing.T) {
	s := setupTestServer(t)
	handler := SettingsHandler(s.settings, logger.Discard())

	body := `{"class":"cat","enabled":true,"minConfidence":0.4}`
	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodPost, "/api/settings", strings.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	cat, ok := s.settings.Load().Class("cat")
	if !ok || !cat.Enabled || cat.MinConfidence != 0.4 {
		t.Errorf("Settings not applied: %+v", cat)
	}
	if person, _ := s.settings.Load().Class("person"); person.MinConfidence != 0.6 {
		t.Errorf("Other classes changed: %+v", person)
	}

	rec = httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodPost, "/api/settings", strings.NewReader(`{"class":"cat","minConfidence":1.5}`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for invalid confidence, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/api/settings", nil))
	var data dto.SettingsData
	if err := json.NewDecoder(rec.Body).Decode(&data); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(data.Classes) != 2 || data.Classes[0].Class != "cat" {
		t.Errorf("Unexpected settings %+v", data)
	}
}

func TestLoginHandler(t *testing.T) {
	s := setupTestServer(t)
	handler := LoginHandler(s.cfg, logger.Discard())

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader("password=wrong"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	handler(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader("password=secret"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	handler(rec, req)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("Expected status 303, got %d", rec.Code)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Value != "true" {
		t.Errorf("Expected auth cookie, got %+v", cookies)
	}
}

func TestCameraWebsocketHandler(t *testing.T) {
	s := setupTestServer(t)
	server := httptest.NewServer(CameraWebsocketHandler(s.registry, logger.Discard()))
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http")+"?id=cam1", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, image.NewGray(image.Rect(0, 0, 32, 24)), nil); err != nil {
		t.Fatal(err)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, buf.Bytes()); err != nil {
		t.Fatalf("write: %v", err)
	}

	ing, _ := s.registry.Get("cam1")
	deadline := time.Now().Add(2 * time.Second)
	for {
		frame, ok := ing.Slot().Peek()
		if ok {
			if frame.Width != 32 || frame.Height != 24 || frame.StreamID != "cam1" {
				t.Errorf("Unexpected frame %+v", frame)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("Frame not published")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
