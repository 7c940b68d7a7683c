package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/orderdesk/adminsearch/internal/repositories"
)

type stubPinger struct {
	err error
}

func (s *stubPinger) Ping(context.Context) error { return s.err }

func TestHealthz_AllDependenciesReachable(t *testing.T) {
	h := NewHealthHandlers(map[string]repositories.Pinger{
		"postgres": &stubPinger{},
		"redis":    &stubPinger{},
	})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.Healthz(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var payload struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Status != "ok" {
		t.Fatalf("expected ok status, got %q", payload.Status)
	}
	if payload.Checks["postgres"] != "ok" || payload.Checks["redis"] != "ok" {
		t.Fatalf("unexpected checks %v", payload.Checks)
	}
}

func TestHealthz_FailedPingDegrades(t *testing.T) {
	h := NewHealthHandlers(map[string]repositories.Pinger{
		"postgres": &stubPinger{},
		"redis":    &stubPinger{err: errors.New("dial tcp: connection refused")},
	})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.Healthz(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	var payload struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Status != "degraded" {
		t.Fatalf("expected degraded status, got %q", payload.Status)
	}
	if payload.Checks["redis"] != "unreachable" || payload.Checks["postgres"] != "ok" {
		t.Fatalf("unexpected checks %v", payload.Checks)
	}
}

func TestHealthz_NilPingersAreDropped(t *testing.T) {
	h := NewHealthHandlers(map[string]repositories.Pinger{
		"postgres": &stubPinger{},
		"":         &stubPinger{},
		"broken":   nil,
	})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.Healthz(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
