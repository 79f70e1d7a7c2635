package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Changyu123Chen/notion-ledger/internal/objstore"
	"github.com/Changyu123Chen/notion-ledger/internal/weights"
)

const testSecret = "test-secret"

type fakeRecalculator struct {
	err   error
	calls int
}

func (f *fakeRecalculator) RunDailyRecalc(ctx context.Context) error {
	f.calls++
	return f.err
}

type fakeSnapshots struct {
	snap       *weights.Snapshot
	latestErr  error
	refreshErr error
	count      int
}

func (f *fakeSnapshots) Refresh(ctx context.Context) (int, error) {
	return f.count, f.refreshErr
}

func (f *fakeSnapshots) Latest(ctx context.Context) (*weights.Snapshot, error) {
	if f.latestErr != nil {
		return nil, f.latestErr
	}
	return f.snap, nil
}

func testLog() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body
}

func TestRecalcHandler_WrongSecret(t *testing.T) {
	engine := &fakeRecalculator{}
	h := NewRecalcHandler(engine, testSecret, testLog())

	req := httptest.NewRequest(http.MethodPost, "/api/run-daily", nil)
	req.Header.Set("X-Webhook-Secret", "wrong")
	rec := httptest.NewRecorder()

	h.Run(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", rec.Code)
	}
	if engine.calls != 0 {
		t.Errorf("engine should not run on bad secret, ran %d times", engine.calls)
	}
	body := decodeBody(t, rec)
	if body["ok"] != false {
		t.Errorf("expected ok=false, got %v", body["ok"])
	}
}

func TestRecalcHandler_MissingSecret(t *testing.T) {
	h := NewRecalcHandler(&fakeRecalculator{}, testSecret, testLog())

	req := httptest.NewRequest(http.MethodPost, "/api/run-daily", nil)
	rec := httptest.NewRecorder()

	h.Run(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", rec.Code)
	}
}

func TestRecalcHandler_Success(t *testing.T) {
	engine := &fakeRecalculator{}
	h := NewRecalcHandler(engine, testSecret, testLog())

	req := httptest.NewRequest(http.MethodPost, "/api/run-daily", nil)
	req.Header.Set("X-Webhook-Secret", testSecret)
	rec := httptest.NewRecorder()

	h.Run(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	if engine.calls != 1 {
		t.Errorf("expected 1 engine run, got %d", engine.calls)
	}
	body := decodeBody(t, rec)
	if body["ok"] != true {
		t.Errorf("expected ok=true, got %v", body["ok"])
	}
}

func TestRecalcHandler_EngineFailure(t *testing.T) {
	engine := &fakeRecalculator{err: errors.New("directory fetch failed")}
	h := NewRecalcHandler(engine, testSecret, testLog())

	req := httptest.NewRequest(http.MethodPost, "/api/run-daily", nil)
	req.Header.Set("X-Webhook-Secret", testSecret)
	rec := httptest.NewRecorder()

	h.Run(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["ok"] != false {
		t.Errorf("expected ok=false, got %v", body["ok"])
	}
	// The response carries a short message, not the wrapped error chain.
	if body["error"] != "recalculation failed" {
		t.Errorf("unexpected error message %q", body["error"])
	}
}

func TestWeightsHandler_RefreshWrongSecret(t *testing.T) {
	h := NewWeightsHandler(&fakeSnapshots{}, testSecret, testLog())

	req := httptest.NewRequest(http.MethodPost, "/api/refresh-weights", nil)
	req.Header.Set("X-Webhook-Secret", "wrong")
	rec := httptest.NewRecorder()

	h.Refresh(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", rec.Code)
	}
}

func TestWeightsHandler_RefreshSuccess(t *testing.T) {
	h := NewWeightsHandler(&fakeSnapshots{count: 42}, testSecret, testLog())

	req := httptest.NewRequest(http.MethodPost, "/api/refresh-weights", nil)
	req.Header.Set("X-Webhook-Secret", testSecret)
	rec := httptest.NewRecorder()

	h.Refresh(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["count"] != float64(42) {
		t.Errorf("expected count=42, got %v", body["count"])
	}
}

func TestWeightsHandler_LatestNotFound(t *testing.T) {
	h := NewWeightsHandler(&fakeSnapshots{latestErr: objstore.ErrNotFound}, testSecret, testLog())

	req := httptest.NewRequest(http.MethodGet, "/api/weights", nil)
	rec := httptest.NewRecorder()

	h.Latest(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rec.Code)
	}
}

func TestWeightsHandler_Latest(t *testing.T) {
	morning := 82.5
	snap := &weights.Snapshot{
		UpdatedAt: time.Date(2025, 3, 14, 10, 30, 0, 0, time.UTC),
		Rows: []weights.Row{
			{Date: "2025-03-14", Morning: &morning, Title: "Mar 14"},
		},
	}
	h := NewWeightsHandler(&fakeSnapshots{snap: snap}, testSecret, testLog())

	req := httptest.NewRequest(http.MethodGet, "/api/weights", nil)
	rec := httptest.NewRecorder()

	h.Latest(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	if cc := rec.Header().Get("Cache-Control"); cc != "s-maxage=300, stale-while-revalidate" {
		t.Errorf("unexpected Cache-Control %q", cc)
	}
	var got weights.Snapshot
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if len(got.Rows) != 1 || got.Rows[0].Date != "2025-03-14" {
		t.Errorf("unexpected snapshot rows %+v", got.Rows)
	}
}

func TestWeightsHandler_LatestRowsOnly(t *testing.T) {
	snap := &weights.Snapshot{
		UpdatedAt: time.Date(2025, 3, 14, 10, 30, 0, 0, time.UTC),
		Rows:      []weights.Row{{Date: "2025-03-14"}, {Date: "2025-03-15"}},
	}
	h := NewWeightsHandler(&fakeSnapshots{snap: snap}, testSecret, testLog())

	req := httptest.NewRequest(http.MethodGet, "/api/weights?rows=1", nil)
	rec := httptest.NewRecorder()

	h.Latest(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	var rows []weights.Row
	if err := json.NewDecoder(rec.Body).Decode(&rows); err != nil {
		t.Fatalf("decode rows: %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("expected 2 rows, got %d", len(rows))
	}
}
