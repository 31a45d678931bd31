// Package metrics keeps process-local probe counters and renders them in the
// Prometheus text exposition format.
package metrics

import (
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"
)

const (
	TriggerScheduled = "scheduled"
	TriggerOnDemand  = "on_demand"

	OutcomeReachable   = "reachable"
	OutcomeUnreachable = "unreachable"
)

// Metrics is safe for concurrent use. A nil *Metrics discards everything.
type Metrics struct {
	mu        sync.Mutex
	checks    map[string]float64
	runs      map[string]float64
	redirects float64
	lastRun   float64
}

func New() *Metrics {
	return &Metrics{
		checks: make(map[string]float64),
		runs:   make(map[string]float64),
	}
}

func (m *Metrics) ObserveCheck(reachable bool) {
	if m == nil {
		return
	}
	outcome := OutcomeUnreachable
	if reachable {
		outcome = OutcomeReachable
	}
	m.mu.Lock()
	m.checks[outcome]++
	m.mu.Unlock()
}

func (m *Metrics) ObserveRedirect() {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.redirects++
	m.mu.Unlock()
}

func (m *Metrics) ObserveRun(trigger string, d time.Duration) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.runs[trigger]++
	m.lastRun = d.Seconds()
	m.mu.Unlock()
}

// Families snapshots the current values.
func (m *Metrics) Families() []*dto.MetricFamily {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	return []*dto.MetricFamily{
		labeledCounter("pingkeeper_checks_total", "Checks performed, by outcome.", "outcome", m.checks),
		{
			Name:   proto.String("pingkeeper_redirect_rewrites_total"),
			Help:   proto.String("Targets rewritten after a permanent redirect."),
			Type:   dto.MetricType_COUNTER.Enum(),
			Metric: []*dto.Metric{{Counter: &dto.Counter{Value: proto.Float64(m.redirects)}}},
		},
		labeledCounter("pingkeeper_probe_runs_total", "Full-registry probe runs, by trigger.", "trigger", m.runs),
		{
			Name:   proto.String("pingkeeper_probe_run_duration_seconds"),
			Help:   proto.String("Wall time of the most recent probe run."),
			Type:   dto.MetricType_GAUGE.Enum(),
			Metric: []*dto.Metric{{Gauge: &dto.Gauge{Value: proto.Float64(m.lastRun)}}},
		},
	}
}

func labeledCounter(name, help, label string, values map[string]float64) *dto.MetricFamily {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	mf := &dto.MetricFamily{
		Name: proto.String(name),
		Help: proto.String(help),
		Type: dto.MetricType_COUNTER.Enum(),
	}
	for _, k := range keys {
		mf.Metric = append(mf.Metric, &dto.Metric{
			Label:   []*dto.LabelPair{{Name: proto.String(label), Value: proto.String(k)}},
			Counter: &dto.Counter{Value: proto.Float64(values[k])},
		})
	}
	return mf
}

func (m *Metrics) WriteText(w io.Writer) error {
	for _, mf := range m.Families() {
		if len(mf.Metric) == 0 {
			continue
		}
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_ = m.WriteText(w)
	})
}
