package domain

import "time"

// DownThreshold is the lowest HTTP status treated as "down".
const DownThreshold = 400

type Target struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// PingRecord is one stored check. StatusCode is nil when the target was unreachable.
type PingRecord struct {
	ID         int64     `json:"id"`
	TargetName string    `json:"name"`
	URL        string    `json:"url"`
	StatusCode *int      `json:"status_code"`
	CheckedAt  time.Time `json:"time_checked_at"`
}

// Valid reports whether the check produced an HTTP response.
func (p PingRecord) Valid() bool { return p.StatusCode != nil }

// Down reports whether the check produced an HTTP response with an error status.
func (p PingRecord) Down() bool { return p.StatusCode != nil && *p.StatusCode >= DownThreshold }

// ProbeResult is what an on-demand probe returns for each target checked.
type ProbeResult struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	URL        string `json:"url"`
	StatusCode *int   `json:"status_code"`
}

type Stats struct {
	TotalURLs              int        `json:"total_urls"`
	TotalPings             int        `json:"total_pings"`
	DowntimeMinutes        int        `json:"downtime_minutes"`
	UptimePercent          float64    `json:"uptime_percent"`
	AvgStatus              float64    `json:"avg_status"`
	TimesDown              int        `json:"times_down"`
	LongestDowntimeMinutes int        `json:"longest_downtime_minutes"`
	FirstCheck             *time.Time `json:"first_check"`
	LastDown               *time.Time `json:"last_down"`
}

type Health struct {
	Status     string `json:"status"`
	StatusCode int    `json:"status_code"`
}

func IntPtr(v int) *int { return &v }
