package probe

import (
	"context"
	"fmt"
	"time"
)

// RetryChecker repeats a check only while the target is unreachable. A
// response of any status is final.
type RetryChecker struct {
	Inner    Checker
	Attempts int
	Backoff  time.Duration
}

func (r *RetryChecker) Check(ctx context.Context, target string) CheckResult {
	attempts := r.Attempts
	if attempts < 1 {
		attempts = 1
	}
	var last CheckResult
	for i := 0; i < attempts; i++ {
		last = r.Inner.Check(ctx, target)
		if last.Reachable {
			return last
		}
		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return last
			case <-time.After(r.Backoff):
			}
		}
	}
	if attempts > 1 {
		last.Message = fmt.Sprintf("%s (after %d attempts)", last.Message, attempts)
	}
	return last
}
