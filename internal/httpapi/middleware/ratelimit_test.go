package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestRateLimit_AllowsThenBlocks(t *testing.T) {
	h := RateLimit(60, 2, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "1.2.3.4:1234"

	for i := 0; i < 2; i++ {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code != 200 {
			t.Fatalf("want 200 got %d", rr.Code)
		}
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != 429 {
		t.Fatalf("want 429 got %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Fatalf("want Retry-After header")
	}

	// another client is unaffected
	other := httptest.NewRequest("GET", "/", nil)
	other.RemoteAddr = "5.6.7.8:999"
	rr2 := httptest.NewRecorder()
	h.ServeHTTP(rr2, other)
	if rr2.Code != 200 {
		t.Fatalf("other client: want 200 got %d", rr2.Code)
	}
}

func TestLimiter_RefillAndSweep(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l := newLimiter(1, 1, time.Minute)
	l.now = func() time.Time { return now }

	if !l.allow("a") || l.allow("a") {
		t.Fatalf("burst of 1 expected")
	}
	now = now.Add(1100 * time.Millisecond)
	if !l.allow("a") {
		t.Fatalf("want refill after 1s")
	}

	now = now.Add(2 * time.Minute)
	_ = l.allow("b")
	if _, ok := l.m["a"]; ok {
		t.Fatalf("idle bucket should have been swept")
	}
}

func TestRateLimit_DisabledPassesThrough(t *testing.T) {
	h := RateLimit(0, 0, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	for i := 0; i < 10; i++ {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))
		if rr.Code != http.StatusTeapot {
			t.Fatalf("want passthrough, got %d", rr.Code)
		}
	}
}
