package dispatch

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Stats aggregates dispatch outcomes and a latency histogram.
type Stats struct {
	mu        sync.Mutex
	histogram *hdrhistogram.Histogram
	total     int64
	success   int64
	failed    int64
}

// StatsSnapshot is a point-in-time copy of dispatch metrics. Latencies are in
// milliseconds.
type StatsSnapshot struct {
	Total   int64   `json:"total"`
	Success int64   `json:"success"`
	Failed  int64   `json:"failed"`
	P50MS   float64 `json:"p50_ms"`
	P95MS   float64 `json:"p95_ms"`
	P99MS   float64 `json:"p99_ms"`
}

func newStats() *Stats {
	return &Stats{
		// 1us to 120s range (the maximum request timeout), 3 significant digits.
		histogram: hdrhistogram.New(1, 120_000_000, 3),
	}
}

func (s *Stats) record(d time.Duration, err error) {
	latencyUs := d.Microseconds()
	if latencyUs < 1 {
		latencyUs = 1
	}
	if latencyUs > 120_000_000 {
		latencyUs = 120_000_000
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.total++
	if err != nil {
		s.failed++
	} else {
		s.success++
	}
	_ = s.histogram.RecordValue(latencyUs)
}

// Snapshot returns current counters and latency percentiles.
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return StatsSnapshot{
		Total:   s.total,
		Success: s.success,
		Failed:  s.failed,
		P50MS:   float64(s.histogram.ValueAtQuantile(50)) / 1000,
		P95MS:   float64(s.histogram.ValueAtQuantile(95)) / 1000,
		P99MS:   float64(s.histogram.ValueAtQuantile(99)) / 1000,
	}
}
