package stats_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/hamed0406/pingkeeper/internal/domain"
	"github.com/hamed0406/pingkeeper/internal/repo"
	"github.com/hamed0406/pingkeeper/internal/repo/memory"
	"github.com/hamed0406/pingkeeper/internal/stats"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func ping(code *int, offset time.Duration) domain.PingRecord {
	return domain.PingRecord{TargetName: "a", URL: "http://a", StatusCode: code, CheckedAt: t0.Add(offset)}
}

func up(offset time.Duration) domain.PingRecord          { return ping(domain.IntPtr(200), offset) }
func down(offset time.Duration) domain.PingRecord        { return ping(domain.IntPtr(503), offset) }
func unreachable(offset time.Duration) domain.PingRecord { return ping(nil, offset) }

type brokenPings struct{ repo.PingStore }

func (brokenPings) ListPings(context.Context, string) ([]domain.PingRecord, error) {
	return nil, repo.Wrap("list pings", errors.New("db closed"))
}

var _ = Describe("Compute", func() {
	It("returns zeroes for empty history", func() {
		s := stats.Compute(nil, nil)
		Expect(s.TotalPings).To(Equal(0))
		Expect(s.UptimePercent).To(Equal(0.0))
		Expect(s.AvgStatus).To(Equal(0.0))
		Expect(s.DowntimeMinutes).To(Equal(0))
		Expect(s.FirstCheck).To(BeNil())
		Expect(s.LastDown).To(BeNil())
	})

	It("returns zeroes when every sample is unreachable", func() {
		s := stats.Compute([]domain.Target{{Name: "a"}}, []domain.PingRecord{unreachable(0), unreachable(time.Minute)})
		Expect(s.TotalURLs).To(Equal(1))
		Expect(s.TotalPings).To(Equal(2))
		Expect(s.UptimePercent).To(Equal(0.0))
		Expect(s.AvgStatus).To(Equal(0.0))
		Expect(s.FirstCheck).NotTo(BeNil())
	})

	It("counts only the adjacent down pair as downtime", func() {
		pings := []domain.PingRecord{
			ping(domain.IntPtr(200), 0),
			ping(domain.IntPtr(500), 5*time.Minute),
			ping(domain.IntPtr(503), 15*time.Minute),
			ping(domain.IntPtr(200), 20*time.Minute),
		}
		Expect(stats.Compute(nil, pings).DowntimeMinutes).To(Equal(10))
	})

	It("sorts by checked_at before pairing", func() {
		pings := []domain.PingRecord{down(15 * time.Minute), up(20 * time.Minute), up(0), down(5 * time.Minute)}
		Expect(stats.Compute(nil, pings).DowntimeMinutes).To(Equal(10))
	})

	It("gives an isolated down sample zero downtime", func() {
		pings := []domain.PingRecord{up(0), down(time.Minute), up(2 * time.Minute), down(3 * time.Minute)}
		s := stats.Compute(nil, pings)
		Expect(s.DowntimeMinutes).To(Equal(0))
		Expect(s.TimesDown).To(Equal(2))
	})

	It("computes uptime as the share of valid checks below 400", func() {
		var pings []domain.PingRecord
		for i := 0; i < 7; i++ {
			pings = append(pings, up(time.Duration(i)*time.Minute))
		}
		for i := 7; i < 10; i++ {
			pings = append(pings, ping(domain.IntPtr(404), time.Duration(i)*time.Minute))
		}
		pings = append(pings, unreachable(time.Hour))
		s := stats.Compute(nil, pings)
		Expect(s.UptimePercent).To(Equal(70.0))
		Expect(s.TotalPings).To(Equal(11))
	})

	It("rounds uptime to one decimal", func() {
		s := stats.Compute(nil, []domain.PingRecord{up(0), up(time.Minute), down(2 * time.Minute)})
		Expect(s.UptimePercent).To(Equal(66.7))
	})

	It("averages valid status codes to two decimals", func() {
		pings := []domain.PingRecord{
			ping(domain.IntPtr(200), 0),
			ping(domain.IntPtr(404), time.Minute),
			ping(domain.IntPtr(500), 2*time.Minute),
			unreachable(3 * time.Minute),
		}
		Expect(stats.Compute(nil, pings).AvgStatus).To(Equal(368.0))

		two := []domain.PingRecord{ping(domain.IntPtr(200), 0), ping(domain.IntPtr(201), time.Minute), ping(domain.IntPtr(201), 2*time.Minute)}
		Expect(stats.Compute(nil, two).AvgStatus).To(Equal(200.67))
	})

	It("skips unreachable samples when pairing down samples", func() {
		// down, unreachable, down: the unreachable one is dropped, so the two
		// down samples become adjacent and their gap counts once.
		pings := []domain.PingRecord{down(0), unreachable(5 * time.Minute), down(10 * time.Minute)}
		s := stats.Compute(nil, pings)
		Expect(s.DowntimeMinutes).To(Equal(10))

		// without the down neighbours the unreachable gap adds nothing
		withUp := []domain.PingRecord{down(0), up(time.Minute), unreachable(5 * time.Minute), down(10 * time.Minute)}
		Expect(stats.Compute(nil, withUp).DowntimeMinutes).To(Equal(0))
	})

	It("rounds the downtime sum to whole minutes", func() {
		pings := []domain.PingRecord{down(0), down(90 * time.Second), down(170 * time.Second)}
		Expect(stats.Compute(nil, pings).DowntimeMinutes).To(Equal(3))
	})

	It("tracks the longest run, first check and last down", func() {
		pings := []domain.PingRecord{
			unreachable(-time.Hour),
			down(0), down(10 * time.Minute),
			up(20 * time.Minute),
			down(30 * time.Minute), down(35 * time.Minute), down(55 * time.Minute),
			up(60 * time.Minute),
		}
		s := stats.Compute(nil, pings)
		Expect(s.DowntimeMinutes).To(Equal(35))
		Expect(s.LongestDowntimeMinutes).To(Equal(25))
		Expect(*s.FirstCheck).To(Equal(t0.Add(-time.Hour)))
		Expect(*s.LastDown).To(Equal(t0.Add(55 * time.Minute)))
	})

	It("is idempotent over unchanged history", func() {
		pings := []domain.PingRecord{down(0), up(time.Minute), down(2 * time.Minute), down(7 * time.Minute)}
		Expect(stats.Compute(nil, pings)).To(Equal(stats.Compute(nil, pings)))
	})
})

var _ = Describe("Service", func() {
	var (
		ctx   context.Context
		store *memory.Store
		svc   *stats.Service
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = memory.New()
		svc = stats.NewService(store, store)
		Expect(store.AddTarget(ctx, &domain.Target{Name: "a", URL: "http://a"})).To(Succeed())
		Expect(store.AddTarget(ctx, &domain.Target{Name: "b", URL: "http://b"})).To(Succeed())
		for _, p := range []domain.PingRecord{down(0), down(10 * time.Minute)} {
			p := p
			_, err := store.AppendPing(ctx, &p)
			Expect(err).NotTo(HaveOccurred())
		}
		_, err := store.AppendPing(ctx, &domain.PingRecord{TargetName: "b", URL: "http://b", StatusCode: domain.IntPtr(200), CheckedAt: t0})
		Expect(err).NotTo(HaveOccurred())
	})

	It("summarises the whole history", func() {
		s, err := svc.ComputeStats(ctx, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(s.TotalURLs).To(Equal(2))
		Expect(s.TotalPings).To(Equal(3))
		Expect(s.UptimePercent).To(Equal(33.3))
	})

	It("filters pings by URL but still counts every target", func() {
		s, err := svc.ComputeStats(ctx, "http://a")
		Expect(err).NotTo(HaveOccurred())
		Expect(s.TotalURLs).To(Equal(2))
		Expect(s.TotalPings).To(Equal(2))
		Expect(s.DowntimeMinutes).To(Equal(10))
		Expect(s.UptimePercent).To(Equal(0.0))
	})

	It("propagates storage errors", func() {
		broken := stats.NewService(store, brokenPings{store})
		_, err := broken.ComputeStats(ctx, "")
		Expect(repo.IsStorage(err)).To(BeTrue())
	})
})
