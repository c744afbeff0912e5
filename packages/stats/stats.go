// Package stats aggregates latencies of repeated executions.
package stats

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

const (
	minLatencyUs = 1
	maxLatencyUs = 60_000_000
)

// Collector records latencies for one request. It is safe for concurrent use.
type Collector struct {
	mu sync.Mutex

	name      string
	histogram *hdrhistogram.Histogram
	success   int64
	errors    int64
	statuses  map[int]int64
	startTime time.Time
	endTime   time.Time
}

// Summary is a point-in-time view of a Collector.
type Summary struct {
	Name     string
	Count    int64
	Success  int64
	Errors   int64
	Min      time.Duration
	Max      time.Duration
	Mean     time.Duration
	StdDev   time.Duration
	P50      time.Duration
	P95      time.Duration
	P99      time.Duration
	Statuses map[int]int64
	Elapsed  time.Duration
	RPS      float64
}

func NewCollector(name string) *Collector {
	return &Collector{
		name: name,
		// 1us to 60s range, 3 significant digits
		histogram: hdrhistogram.New(minLatencyUs, maxLatencyUs, 3),
		statuses:  make(map[int]int64),
	}
}

// Record adds one execution. status is ignored when err is set.
func (c *Collector) Record(duration time.Duration, status int, err error) {
	latencyUs := duration.Microseconds()
	if latencyUs < minLatencyUs {
		latencyUs = minLatencyUs
	}
	if latencyUs > maxLatencyUs {
		latencyUs = maxLatencyUs
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if c.startTime.IsZero() {
		c.startTime = now.Add(-duration)
	}
	c.endTime = now

	if err != nil {
		c.errors++
		return
	}
	c.success++
	c.statuses[status]++
	_ = c.histogram.RecordValue(latencyUs)
}

// Count returns the number of recorded executions.
func (c *Collector) Count() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.success + c.errors
}

// Summary computes the latency distribution of successful executions.
func (c *Collector) Summary() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Summary{
		Name:     c.name,
		Count:    c.success + c.errors,
		Success:  c.success,
		Errors:   c.errors,
		Statuses: make(map[int]int64, len(c.statuses)),
	}
	for k, v := range c.statuses {
		s.Statuses[k] = v
	}

	if c.histogram.TotalCount() > 0 {
		s.Min = time.Duration(c.histogram.Min()) * time.Microsecond
		s.Max = time.Duration(c.histogram.Max()) * time.Microsecond
		s.Mean = time.Duration(c.histogram.Mean()) * time.Microsecond
		s.StdDev = time.Duration(c.histogram.StdDev()) * time.Microsecond
		s.P50 = time.Duration(c.histogram.ValueAtQuantile(50)) * time.Microsecond
		s.P95 = time.Duration(c.histogram.ValueAtQuantile(95)) * time.Microsecond
		s.P99 = time.Duration(c.histogram.ValueAtQuantile(99)) * time.Microsecond
	}

	if !c.startTime.IsZero() {
		s.Elapsed = c.endTime.Sub(c.startTime)
		if s.Elapsed > 0 {
			s.RPS = float64(s.Count) / s.Elapsed.Seconds()
		}
	}
	return s
}

// ErrorRate returns the percentage of failed executions.
func (s Summary) ErrorRate() float64 {
	if s.Count == 0 {
		return 0
	}
	return float64(s.Errors) / float64(s.Count) * 100
}
