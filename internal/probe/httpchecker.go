package probe

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"
)

// DefaultTimeout bounds a single check.
const DefaultTimeout = 5 * time.Second

// HTTPChecker issues a plain GET and never follows redirects, so 3xx responses
// and their Location header reach the caller as-is.
type HTTPChecker struct {
	Client *http.Client
}

func NewHTTPChecker(timeout time.Duration) *HTTPChecker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPChecker{
		Client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (h *HTTPChecker) Check(ctx context.Context, target string) CheckResult {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return CheckResult{Reachable: false, Message: err.Error()}
	}

	resp, err := h.Client.Do(req)
	latency := time.Since(start).Seconds() * 1000 // ms
	if err != nil {
		return CheckResult{Reachable: false, Message: err.Error(), LatencyMS: latency}
	}
	defer resp.Body.Close()
	// drain a little so keep-alive connections can be reused
	_, _ = io.CopyN(io.Discard, resp.Body, 4<<10)

	out := CheckResult{
		Reachable:  true,
		StatusCode: resp.StatusCode,
		Message:    resp.Status,
		LatencyMS:  latency,
	}
	if loc, err := resp.Location(); err == nil {
		out.Location = loc.String()
	} else if !errors.Is(err, http.ErrNoLocation) {
		// unparsable Location: keep the raw header
		out.Location = resp.Header.Get("Location")
	}
	return out
}
