package probe

import "context"

// CheckResult is the unified result of a single probe.
//
// Fields:
//   - Reachable: an HTTP response came back (any status, including 3xx/5xx).
//   - StatusCode: HTTP status when reachable; 0 for every transport error.
//   - Location: the Location header of the raw response, resolved against the
//     request URL. Set for redirects only.
type CheckResult struct {
	Reachable  bool
	StatusCode int
	Location   string
	LatencyMS  float64
	Message    string
}

// Status returns the status as stored: nil when the target was unreachable.
func (r CheckResult) Status() *int {
	if !r.Reachable {
		return nil
	}
	v := r.StatusCode
	return &v
}

// Checker performs a single check for a given target URL.
type Checker interface {
	Check(ctx context.Context, target string) CheckResult
}
