package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	domain "github.com/orderdesk/adminsearch/internal/domain"
	"github.com/orderdesk/adminsearch/internal/services"
)

type stubBuilder struct {
	result   services.BuildResult
	err      error
	progress domain.BuildProgress
	lastOpts services.BuildOptions
}

func (s *stubBuilder) RunBatch(_ context.Context, opts services.BuildOptions) (services.BuildResult, error) {
	s.lastOpts = opts
	return s.result, s.err
}

func (s *stubBuilder) Status(context.Context) (domain.BuildProgress, error) {
	return s.progress, s.err
}

func TestRebuild_SuccessfulRun(t *testing.T) {
	builder := &stubBuilder{result: services.BuildResult{Success: true, Processed: 500, LastID: 500}}
	h := NewCouponRebuildHandlers(builder)

	req := httptest.NewRequest(http.MethodPost, "/internal/admin/coupon-lookup:rebuild", strings.NewReader(`{"force":true,"batch_size":250}`))
	rec := httptest.NewRecorder()
	h.Rebuild(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !builder.lastOpts.Force || builder.lastOpts.BatchSize != 250 {
		t.Fatalf("options not forwarded: %+v", builder.lastOpts)
	}
	var payload services.BuildResult
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !payload.Success || payload.Processed != 500 {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestRebuild_EmptyBodyDefaultsToForce(t *testing.T) {
	builder := &stubBuilder{result: services.BuildResult{Success: true}}
	h := NewCouponRebuildHandlers(builder)

	req := httptest.NewRequest(http.MethodPost, "/internal/admin/coupon-lookup:rebuild", nil)
	rec := httptest.NewRecorder()
	h.Rebuild(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !builder.lastOpts.Force {
		t.Fatalf("admin-triggered rebuilds must default to force")
	}
}

func TestRebuild_ContentionIsConflict(t *testing.T) {
	builder := &stubBuilder{result: services.BuildResult{Success: false, Message: "another build is running"}}
	h := NewCouponRebuildHandlers(builder)

	req := httptest.NewRequest(http.MethodPost, "/internal/admin/coupon-lookup:rebuild", nil)
	rec := httptest.NewRecorder()
	h.Rebuild(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 on contention, got %d", rec.Code)
	}
}

func TestRebuildStatus_ReportsProgress(t *testing.T) {
	started := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	builder := &stubBuilder{progress: domain.BuildProgress{
		Status:    domain.BuildStatusRunning,
		LastID:    1500,
		Processed: 1500,
		Total:     4000,
		StartedAt: started,
	}}
	h := NewCouponRebuildHandlers(builder)

	req := httptest.NewRequest(http.MethodGet, "/internal/admin/coupon-lookup:status", nil)
	rec := httptest.NewRecorder()
	h.Status(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload["status"] != string(domain.BuildStatusRunning) {
		t.Fatalf("unexpected status %v", payload["status"])
	}
	if payload["last_id"].(float64) != 1500 || payload["total"].(float64) != 4000 {
		t.Fatalf("unexpected progress payload %v", payload)
	}
	if _, ok := payload["started_at"]; !ok {
		t.Fatalf("started_at must be reported for a started build")
	}
}
