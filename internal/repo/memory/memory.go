package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hamed0406/pingkeeper/internal/domain"
	"github.com/hamed0406/pingkeeper/internal/repo"
)

type Store struct {
	mu      sync.RWMutex
	nextTID int64
	nextPID int64
	targets map[int64]*domain.Target
	pings   []*domain.PingRecord
}

func New() *Store {
	return &Store{
		targets: make(map[int64]*domain.Target),
		pings:   make([]*domain.PingRecord, 0, 128),
	}
}

func (m *Store) Close() error { return nil }

// ---- TargetStore ----

func (m *Store) ListTargets(ctx context.Context) ([]domain.Target, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Target, 0, len(m.targets))
	for _, t := range m.targets {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Store) GetTargetByName(ctx context.Context, name string) (*domain.Target, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.targets {
		if t.Name == name {
			cp := *t
			return &cp, nil
		}
	}
	return nil, repo.NotFound("target", name)
}

func (m *Store) GetTargetByID(ctx context.Context, id int64) (*domain.Target, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.targets[id]
	if !ok {
		return nil, repo.NotFound("target id", id)
	}
	cp := *t
	return &cp, nil
}

func (m *Store) AddTarget(ctx context.Context, t *domain.Target) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.targets {
		if existing.Name == t.Name {
			return repo.ErrDuplicateName
		}
	}
	m.nextTID++
	t.ID = m.nextTID
	cp := *t
	m.targets[t.ID] = &cp
	return nil
}

func (m *Store) UpdateTargetURL(ctx context.Context, id int64, newURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.targets[id]
	if !ok {
		return repo.NotFound("target id", id)
	}
	t.URL = newURL
	return nil
}

// DeleteTarget leaves the target's ping history in place.
func (m *Store) DeleteTarget(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.targets[id]; !ok {
		return repo.NotFound("target id", id)
	}
	delete(m.targets, id)
	return nil
}

// ---- PingStore ----

func (m *Store) AppendPing(ctx context.Context, p *domain.PingRecord) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.CheckedAt.IsZero() {
		p.CheckedAt = time.Now().UTC()
	}
	m.nextPID++
	p.ID = m.nextPID
	cp := *p
	if p.StatusCode != nil {
		cp.StatusCode = domain.IntPtr(*p.StatusCode)
	}
	m.pings = append(m.pings, &cp)
	return p.ID, nil
}

func (m *Store) ListPings(ctx context.Context, filterURL string) ([]domain.PingRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.PingRecord, 0, len(m.pings))
	for _, p := range m.pings {
		if filterURL != "" && p.URL != filterURL {
			continue
		}
		cp := *p
		if p.StatusCode != nil {
			cp.StatusCode = domain.IntPtr(*p.StatusCode)
		}
		out = append(out, cp)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CheckedAt.Equal(out[j].CheckedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CheckedAt.Before(out[j].CheckedAt)
	})
	return out, nil
}

func (m *Store) BulkRewriteURL(ctx context.Context, oldURL, newURL string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, p := range m.pings {
		if p.URL == oldURL {
			p.URL = newURL
			n++
		}
	}
	return n, nil
}
