package scheduler

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/hamed0406/pingkeeper/internal/domain"
	"github.com/hamed0406/pingkeeper/internal/metrics"
	"github.com/hamed0406/pingkeeper/internal/repo"
)

// RedirectResolver moves a target to the URL it permanently redirects to and
// carries its existing history along.
//
// History is matched by URL string, not by target: every record holding the
// old URL is rewritten, whichever target wrote it. Rewrites for the same URL
// are serialized, so two targets that share a URL cannot interleave their
// read-modify-write sequences.
type RedirectResolver struct {
	Logger  *zap.Logger
	Targets repo.TargetStore
	Pings   repo.PingStore
	Metrics *metrics.Metrics

	locks keyedMutex
}

func NewRedirectResolver(logger *zap.Logger, ts repo.TargetStore, ps repo.PingStore, m *metrics.Metrics) *RedirectResolver {
	return &RedirectResolver{Logger: logger, Targets: ts, Pings: ps, Metrics: m}
}

// Resolve rewrites the registry entry of t to location and returns the URL the
// triggering check must be recorded under. If t has been deleted since the
// snapshot was taken nothing is rewritten and the snapshot URL is returned.
func (r *RedirectResolver) Resolve(ctx context.Context, t domain.Target, location string) (string, error) {
	for {
		cur, err := r.Targets.GetTargetByName(ctx, t.Name)
		if errors.Is(err, repo.ErrNotFound) {
			r.Logger.Info("redirect_target_gone",
				zap.String("name", t.Name),
				zap.String("location", location),
			)
			return t.URL, nil
		}
		if err != nil {
			return t.URL, err
		}

		// The history rewrite is keyed by the current URL, so that is what we
		// serialise on. Retry if the target moved while we waited.
		unlock := r.locks.Lock(cur.URL)
		url, moved, err := r.resolveLocked(ctx, t, cur.URL, location)
		unlock()
		if !moved {
			return url, err
		}
	}
}

// resolveLocked runs with the lock for oldURL held. moved reports that the
// registry no longer points at oldURL.
func (r *RedirectResolver) resolveLocked(ctx context.Context, t domain.Target, oldURL, location string) (url string, moved bool, err error) {
	cur, err := r.Targets.GetTargetByName(ctx, t.Name)
	if errors.Is(err, repo.ErrNotFound) {
		return t.URL, false, nil
	}
	if err != nil {
		return t.URL, false, err
	}
	if cur.URL != oldURL {
		return "", true, nil
	}
	if oldURL == location {
		return location, false, nil
	}
	if err = r.Targets.UpdateTargetURL(ctx, cur.ID, location); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return t.URL, false, nil
		}
		return t.URL, false, err
	}
	n, err := r.Pings.BulkRewriteURL(ctx, oldURL, location)
	if err != nil {
		// registry already points at location; record the check there too
		return location, false, err
	}

	r.Metrics.ObserveRedirect()
	r.Logger.Info("redirect_rewritten",
		zap.String("name", t.Name),
		zap.String("old_url", oldURL),
		zap.String("new_url", location),
		zap.Int64("history_rows", n),
	)
	return location, false, nil
}

// keyedMutex hands out one mutex per key and forgets keys nobody holds.
type keyedMutex struct {
	mu sync.Mutex
	m  map[string]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()
	if k.m == nil {
		k.m = make(map[string]*keyedEntry)
	}
	e := k.m[key]
	if e == nil {
		e = &keyedEntry{}
		k.m[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.m, key)
		}
		k.mu.Unlock()
	}
}
