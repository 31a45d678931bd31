// Package stats derives uptime figures from stored ping history.
//
// Only records with a status code take part: an unreachable sample is neither
// up nor down and is dropped before consecutive samples are paired up, so it
// neither extends nor interrupts a downtime run.
package stats

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/hamed0406/pingkeeper/internal/domain"
	"github.com/hamed0406/pingkeeper/internal/repo"
)

// Compute summarises pings. targets only feeds total_urls.
func Compute(targets []domain.Target, pings []domain.PingRecord) domain.Stats {
	out := domain.Stats{
		TotalURLs:  len(targets),
		TotalPings: len(pings),
	}

	for _, p := range pings {
		if out.FirstCheck == nil || p.CheckedAt.Before(*out.FirstCheck) {
			ts := p.CheckedAt
			out.FirstCheck = &ts
		}
	}

	valid := make([]domain.PingRecord, 0, len(pings))
	for _, p := range pings {
		if p.Valid() {
			valid = append(valid, p)
		}
	}
	if len(valid) == 0 {
		return out
	}
	sort.SliceStable(valid, func(i, j int) bool { return valid[i].CheckedAt.Before(valid[j].CheckedAt) })

	var sum float64
	for _, p := range valid {
		sum += float64(*p.StatusCode)
		if p.Down() {
			out.TimesDown++
			ts := p.CheckedAt
			out.LastDown = &ts
		}
	}
	n := float64(len(valid))
	out.UptimePercent = round(100*(1-float64(out.TimesDown)/n), 1)
	out.AvgStatus = round(sum/n, 2)

	var total, run, longest time.Duration
	for i := 1; i < len(valid); i++ {
		prev, cur := valid[i-1], valid[i]
		if prev.Down() && cur.Down() {
			gap := cur.CheckedAt.Sub(prev.CheckedAt)
			total += gap
			run += gap
			if run > longest {
				longest = run
			}
		} else {
			run = 0
		}
	}
	out.DowntimeMinutes = int(math.Round(total.Minutes()))
	out.LongestDowntimeMinutes = int(math.Round(longest.Minutes()))
	return out
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// Service reads the stores and computes stats on demand.
type Service struct {
	Targets repo.TargetStore
	Pings   repo.PingStore
}

func NewService(ts repo.TargetStore, ps repo.PingStore) *Service {
	return &Service{Targets: ts, Pings: ps}
}

// ComputeStats covers the whole history, or just filterURL's records when set.
// total_urls always counts the full registry.
func (s *Service) ComputeStats(ctx context.Context, filterURL string) (domain.Stats, error) {
	targets, err := s.Targets.ListTargets(ctx)
	if err != nil {
		return domain.Stats{}, err
	}
	pings, err := s.Pings.ListPings(ctx, filterURL)
	if err != nil {
		return domain.Stats{}, err
	}
	return Compute(targets, pings), nil
}
