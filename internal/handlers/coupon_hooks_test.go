package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	domain "github.com/orderdesk/adminsearch/internal/domain"
	"github.com/orderdesk/adminsearch/internal/services"
)

type stubCouponSync struct {
	err    error
	events []services.CouponEvent
}

func (s *stubCouponSync) HandleEvent(_ context.Context, event services.CouponEvent) error {
	s.events = append(s.events, event)
	if s.err != nil {
		return s.err
	}
	if event.Type != services.CouponEventSaved && event.Type != services.CouponEventDeleted &&
		event.Type != services.CouponEventTrashed && event.Type != services.CouponEventUntrashed {
		return services.ErrUnknownCouponEvent
	}
	return nil
}

func (s *stubCouponSync) Backfill(context.Context, []domain.Coupon, int) (int, error) {
	return 0, nil
}

func postJSON(t *testing.T, handler http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/internal/hooks/coupons", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestCouponHook_SavedEvent(t *testing.T) {
	sync := &stubCouponSync{}
	h := NewCouponHookHandlers(sync)

	rec := postJSON(t, h.CouponEvent, `{"event":"saved","coupon_id":5}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var payload map[string]bool
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !payload["success"] {
		t.Fatalf("expected success=true, got %v", payload)
	}
	if len(sync.events) != 1 || sync.events[0].CouponID != 5 || sync.events[0].Type != services.CouponEventSaved {
		t.Fatalf("unexpected forwarded event %+v", sync.events)
	}
}

func TestCouponHook_EventTypeIsNormalized(t *testing.T) {
	sync := &stubCouponSync{}
	h := NewCouponHookHandlers(sync)

	rec := postJSON(t, h.CouponEvent, `{"event":"  Trashed ","coupon_id":5}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if sync.events[0].Type != services.CouponEventTrashed {
		t.Fatalf("event type not normalized: %q", sync.events[0].Type)
	}
}

func TestCouponHook_MissingCouponID(t *testing.T) {
	h := NewCouponHookHandlers(&stubCouponSync{})

	rec := postJSON(t, h.CouponEvent, `{"event":"saved"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestCouponHook_MalformedBody(t *testing.T) {
	h := NewCouponHookHandlers(&stubCouponSync{})

	rec := postJSON(t, h.CouponEvent, `{"event":`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestCouponHook_UnknownEvent(t *testing.T) {
	h := NewCouponHookHandlers(&stubCouponSync{})

	rec := postJSON(t, h.CouponEvent, `{"event":"published","coupon_id":5}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown event, got %d", rec.Code)
	}
}
