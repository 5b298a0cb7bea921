package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"protevent/config"
	"protevent/database"
	"protevent/events"
)

// stubDB serves canned export history rows.
type stubDB struct {
	records []database.ExportRecord
}

func (s *stubDB) CreateExport(rec database.ExportRecord) error { return nil }
func (s *stubDB) UpdateExport(rec database.ExportRecord) error { return nil }
func (s *stubDB) GetExport(id string) (*database.ExportRecord, error) {
	return nil, nil
}
func (s *stubDB) ListExports(limit, offset int) ([]database.ExportRecord, error) {
	return s.records, nil
}
func (s *stubDB) GetExportsByIdentifier(identifier string) ([]database.ExportRecord, error) {
	var out []database.ExportRecord
	for _, rec := range s.records {
		if rec.Identifier == identifier {
			out = append(out, rec)
		}
	}
	return out, nil
}
func (s *stubDB) GetExportsByStatus(status database.ExportStatus, limit, offset int) ([]database.ExportRecord, error) {
	return nil, nil
}
func (s *stubDB) DeleteExportsBefore(cutoff time.Time) (int64, error) { return 0, nil }
func (s *stubDB) Close() error                                        { return nil }

func testServer(t *testing.T, db database.Database) (*Server, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Config{
		DefaultPastMinutes:   5,
		DefaultFutureMinutes: 5,
		DownloadsPath:        t.TempDir(),
	}
	registry := events.NewRegistry(time.UTC, nil)
	s := NewServer(cfg, registry, db)

	r := gin.New()
	s.setupRoutes(r)
	return s, r
}

func postJSON(r *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest("POST", path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func getJSON(r *gin.Engine, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", path, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestStartCreatesEvent(t *testing.T) {
	s, r := testServer(t, nil)

	w := postJSON(r, "/start", gin.H{
		"identifier":     "evt-1",
		"past_minutes":   2,
		"future_minutes": 60,
		"cameras":        []string{"porch"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Message string                       `json:"message"`
		Events  map[string]events.StatusView `json:"events"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	view, ok := resp.Events["evt-1"]
	if !ok {
		t.Fatalf("Expected evt-1 in response, got %s", w.Body.String())
	}
	if view.Status != events.StatusPending {
		t.Errorf("Expected pending status, got %s", view.Status)
	}

	ev, ok := s.registry.Get("evt-1")
	if !ok {
		t.Fatalf("Event not registered")
	}
	if len(ev.Cameras) != 1 || ev.Cameras[0] != "porch" {
		t.Errorf("Unexpected cameras: %v", ev.Cameras)
	}
	s.registry.Cancel("evt-1")
}

func TestStartDefaultsOmittedMinutes(t *testing.T) {
	s, r := testServer(t, nil)

	before := time.Now()
	w := postJSON(r, "/start", gin.H{"identifier": "evt-1"})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	ev, ok := s.registry.Get("evt-1")
	if !ok {
		t.Fatalf("Event not registered")
	}
	// Defaults are 5 past / 5 future
	if span := ev.EndTime.Sub(ev.StartTime); span < 9*time.Minute || span > 11*time.Minute {
		t.Errorf("Expected roughly 10 minute window from defaults, got %s", span)
	}
	if ev.StartTime.After(before) {
		t.Errorf("Expected start in the past, got %s", ev.StartTime)
	}
	s.registry.Cancel("evt-1")
}

func TestStartRejectsNegativeMinutes(t *testing.T) {
	_, r := testServer(t, nil)

	w := postJSON(r, "/start", gin.H{"identifier": "evt-1", "future_minutes": -1})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for negative minutes, got %d", w.Code)
	}
}

func TestCancelExisting(t *testing.T) {
	s, r := testServer(t, nil)
	s.registry.StartOrExtend("evt-1", 0, 60, nil)

	w := postJSON(r, "/cancel", gin.H{"identifier": "evt-1"})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if _, ok := s.registry.Get("evt-1"); ok {
		t.Errorf("Event still registered after cancel")
	}
}

func TestCancelMissing(t *testing.T) {
	_, r := testServer(t, nil)

	w := postJSON(r, "/cancel", gin.H{"identifier": "ghost"})
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown identifier, got %d", w.Code)
	}

	var resp map[string]string
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["status"] != "not_found" {
		t.Errorf("Expected not_found status, got %v", resp)
	}
}

func TestCancelMissingIdentifier(t *testing.T) {
	_, r := testServer(t, nil)
	if w := postJSON(r, "/cancel", gin.H{}); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing identifier, got %d", w.Code)
	}
}

func TestStatusSingle(t *testing.T) {
	s, r := testServer(t, nil)
	s.registry.StartOrExtend("evt-1", 0, 60, nil)
	defer s.registry.Cancel("evt-1")

	w := getJSON(r, "/status?identifier=evt-1")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var resp struct {
		Events map[string]events.StatusView `json:"events"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	view, ok := resp.Events["evt-1"]
	if !ok {
		t.Fatalf("Expected evt-1 in status, got %s", w.Body.String())
	}
	if view.RemainingTimeSeconds <= 0 {
		t.Errorf("Expected positive remaining time, got %f", view.RemainingTimeSeconds)
	}
}

func TestStatusUnknownIdentifier(t *testing.T) {
	_, r := testServer(t, nil)

	w := getJSON(r, "/status?identifier=ghost")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 for unknown identifier, got %d", w.Code)
	}

	var resp struct {
		Events map[string]map[string]string `json:"events"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Events["ghost"]["status"] != "no_event" {
		t.Errorf("Expected no_event status, got %s", w.Body.String())
	}
}

func TestStatusAll(t *testing.T) {
	s, r := testServer(t, nil)
	s.registry.StartOrExtend("evt-1", 0, 60, nil)
	s.registry.StartOrExtend("evt-2", 0, 60, nil)
	defer s.registry.Cancel("evt-1")
	defer s.registry.Cancel("evt-2")

	w := getJSON(r, "/status")
	var resp struct {
		Events map[string]events.StatusView `json:"events"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(resp.Events) != 2 {
		t.Errorf("Expected 2 events in status, got %d", len(resp.Events))
	}
}

func TestListExports(t *testing.T) {
	db := &stubDB{records: []database.ExportRecord{
		{ID: "rec-1", Identifier: "evt-1", Status: database.StatusCompleted},
		{ID: "rec-2", Identifier: "evt-2", Status: database.StatusFailed},
	}}
	_, r := testServer(t, db)

	w := getJSON(r, "/api/exports")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var resp struct {
		Exports []database.ExportRecord `json:"exports"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Exports) != 2 {
		t.Errorf("Expected 2 exports, got %d", len(resp.Exports))
	}

	w = getJSON(r, "/api/exports?identifier=evt-1")
	resp.Exports = nil
	json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Exports) != 1 || resp.Exports[0].ID != "rec-1" {
		t.Errorf("Unexpected filtered exports: %+v", resp.Exports)
	}
}

func TestListExportsWithoutDatabase(t *testing.T) {
	_, r := testServer(t, nil)
	if w := getJSON(r, "/api/exports"); w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 without history database, got %d", w.Code)
	}
}

func TestSystemHealth(t *testing.T) {
	s, r := testServer(t, nil)
	s.registry.StartOrExtend("evt-1", 0, 60, nil)
	defer s.registry.Cancel("evt-1")

	w := getJSON(r, "/api/system_health")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		ActiveEvents int `json:"active_events"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.ActiveEvents != 1 {
		t.Errorf("Expected 1 active event, got %d", resp.ActiveEvents)
	}
}
