package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHTTPChecker_StatusOK(t *testing.T) {
	var method string
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		w.WriteHeader(200)
		w.Write([]byte("ok"))
	}))
	defer s.Close()

	chk := NewHTTPChecker(2 * time.Second)
	out := chk.Check(context.Background(), s.URL)
	if !out.Reachable {
		t.Fatalf("want reachable, got %+v", out)
	}
	if method != http.MethodGet {
		t.Fatalf("want GET, got %s", method)
	}
	if out.StatusCode != 200 || *out.Status() != 200 {
		t.Fatalf("want status 200, got %d", out.StatusCode)
	}
	if !strings.HasPrefix(out.Message, "200") {
		t.Fatalf("want message to start with 200, got %q", out.Message)
	}
	if out.LatencyMS < 0 {
		t.Fatalf("latency should be >= 0, got %f", out.LatencyMS)
	}
}

func TestHTTPChecker_Status500IsStillReachable(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", 500)
	}))
	defer s.Close()

	out := NewHTTPChecker(2*time.Second).Check(context.Background(), s.URL)
	if !out.Reachable || out.StatusCode != 500 {
		t.Fatalf("want reachable 500, got %+v", out)
	}
}

func TestHTTPChecker_DoesNotFollowRedirects(t *testing.T) {
	followed := false
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/moved" {
			followed = true
			w.WriteHeader(200)
			return
		}
		w.Header().Set("Location", "http://new.example/")
		w.WriteHeader(http.StatusMovedPermanently)
	}))
	defer s.Close()

	out := NewHTTPChecker(2*time.Second).Check(context.Background(), s.URL)
	if followed {
		t.Fatalf("redirect must not be followed")
	}
	if out.StatusCode != 301 || out.Location != "http://new.example/" {
		t.Fatalf("want raw 301 with Location, got %+v", out)
	}
}

func TestHTTPChecker_RelativeLocationResolved(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "/v2/")
		w.WriteHeader(http.StatusMovedPermanently)
	}))
	defer s.Close()

	out := NewHTTPChecker(2*time.Second).Check(context.Background(), s.URL+"/v1/")
	if out.Location != s.URL+"/v2/" {
		t.Fatalf("want %s/v2/, got %q", s.URL, out.Location)
	}
}

func TestHTTPChecker_TimeoutIsUnreachable(t *testing.T) {
	// Server sleeps longer than client timeout
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(200)
	}))
	defer s.Close()

	chk := NewHTTPChecker(50 * time.Millisecond)
	out := chk.Check(context.Background(), s.URL)
	if out.Reachable {
		t.Fatalf("want unreachable due to timeout, got %+v", out)
	}
	if out.StatusCode != 0 || out.Status() != nil {
		t.Fatalf("want no status on transport error, got %d", out.StatusCode)
	}
	if out.Message == "" {
		t.Fatalf("want non-empty error message")
	}
}

func TestHTTPChecker_MalformedURLIsUnreachable(t *testing.T) {
	out := NewHTTPChecker(time.Second).Check(context.Background(), "http://[::1")
	if out.Reachable || out.Status() != nil {
		t.Fatalf("want unreachable, got %+v", out)
	}
}
