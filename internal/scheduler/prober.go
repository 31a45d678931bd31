package scheduler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hamed0406/pingkeeper/internal/domain"
	"github.com/hamed0406/pingkeeper/internal/metrics"
	"github.com/hamed0406/pingkeeper/internal/probe"
	"github.com/hamed0406/pingkeeper/internal/repo"
)

// Prober checks every registered target once per run.
type Prober struct {
	Logger   *zap.Logger
	Targets  repo.TargetStore
	Pings    repo.PingStore
	Checker  probe.Checker
	Resolver *RedirectResolver
	Metrics  *metrics.Metrics
	Timeout  time.Duration
	// Concurrency caps in-flight checks per run; 0 means one goroutine per target.
	Concurrency int
	// DNSDiagnostics logs a DNS classification for unreachable targets.
	DNSDiagnostics bool

	now func() time.Time
}

func NewProber(
	logger *zap.Logger,
	ts repo.TargetStore,
	ps repo.PingStore,
	checker probe.Checker,
	resolver *RedirectResolver,
	m *metrics.Metrics,
	timeout time.Duration,
	concurrency int,
) *Prober {
	if concurrency < 0 {
		concurrency = 0
	}
	if timeout <= 0 {
		timeout = probe.DefaultTimeout
	}
	return &Prober{
		Logger:      logger,
		Targets:     ts,
		Pings:       ps,
		Checker:     checker,
		Resolver:    resolver,
		Metrics:     m,
		Timeout:     timeout,
		Concurrency: concurrency,
		now:         time.Now,
	}
}

// RunOnce snapshots the registry, checks every target concurrently and
// records one PingRecord per target as soon as its check finishes. Results
// come back in completion order. A failed write for one target never stops
// the others; all such failures are returned together.
//
// Cancelling ctx does not cut a run short: each check is bounded only by
// Timeout, and every target still gets its record.
func (p *Prober) RunOnce(ctx context.Context, trigger string) ([]domain.ProbeResult, error) {
	ctx = context.WithoutCancel(ctx)
	start := p.now()
	targets, err := p.Targets.ListTargets(ctx)
	if err != nil {
		p.Logger.Warn("probe_list_error", zap.Error(err))
		return nil, err
	}

	var (
		mu      sync.Mutex
		results = make([]domain.ProbeResult, 0, len(targets))
		errs    error
	)

	var g errgroup.Group
	if p.Concurrency > 0 {
		g.SetLimit(p.Concurrency)
	}
	for _, t := range targets {
		g.Go(func() error {
			res, err := p.checkOne(ctx, t)
			mu.Lock()
			results = append(results, res)
			errs = multierr.Append(errs, err)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	elapsed := p.now().Sub(start)
	p.Metrics.ObserveRun(trigger, elapsed)
	p.Logger.Info("probe_run_done",
		zap.String("trigger", trigger),
		zap.Int("targets", len(targets)),
		zap.Int("failed_writes", len(multierr.Errors(errs))),
		zap.Duration("elapsed", elapsed),
	)
	return results, errs
}

func (p *Prober) checkOne(ctx context.Context, t domain.Target) (domain.ProbeResult, error) {
	cctx, cancel := context.WithTimeout(ctx, p.Timeout)
	out := p.Checker.Check(cctx, t.URL)
	cancel()
	p.Metrics.ObserveCheck(out.Reachable)

	url := t.URL
	var resolveErr error
	if out.Reachable && out.StatusCode == http.StatusMovedPermanently && out.Location != "" && p.Resolver != nil {
		url, resolveErr = p.Resolver.Resolve(ctx, t, out.Location)
		if resolveErr != nil {
			p.Logger.Warn("redirect_rewrite_error",
				zap.String("name", t.Name),
				zap.String("location", out.Location),
				zap.Error(resolveErr),
			)
		}
	}

	rec := &domain.PingRecord{
		TargetName: t.Name,
		URL:        url,
		StatusCode: out.Status(),
		CheckedAt:  p.now().UTC(),
	}
	res := domain.ProbeResult{Name: t.Name, URL: url, StatusCode: rec.StatusCode}

	id, err := p.Pings.AppendPing(ctx, rec)
	if err != nil {
		p.Logger.Warn("probe_append_error",
			zap.String("name", t.Name),
			zap.String("url", url),
			zap.Error(err),
		)
		return res, multierr.Append(resolveErr, err)
	}
	res.ID = id

	p.Logger.Debug("probe_checked",
		zap.String("name", t.Name),
		zap.String("url", url),
		zap.Int("status", out.StatusCode),
		zap.Bool("reachable", out.Reachable),
		zap.Float64("latency_ms", out.LatencyMS),
		zap.String("reason", out.Message),
	)
	if !out.Reachable && p.DNSDiagnostics {
		dns := probe.CheckDNS(ctx, t.URL)
		p.Logger.Info("dns_check",
			zap.String("name", t.Name),
			zap.String("domain", dns.Domain),
			zap.String("class", dns.Class),
			zap.Bool("has_a_or_aaaa", dns.HasAOrAAAA),
			zap.Strings("nameservers", dns.Nameservers),
			zap.String("cname", dns.CNAME),
			zap.String("resolver_error", dns.ResolverError),
		)
	}
	return res, resolveErr
}
