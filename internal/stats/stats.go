// Package stats summarizes the latency of repeated requests with an HDR
// histogram.
package stats

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

const (
	// histogramMin and histogramMax bound recordable latencies, in
	// microseconds: 1µs to 1 hour.
	histogramMin     = 1
	histogramMax     = 3_600_000_000
	histogramSigFigs = 3
)

// Recorder collects request outcomes. It is safe for concurrent use.
type Recorder struct {
	mu       sync.Mutex
	hist     *hdrhistogram.Histogram
	requests int64
	failures int64
	bytes    int64
	first    time.Time
	last     time.Time
}

// Summary is a snapshot of a Recorder.
type Summary struct {
	Requests int64
	Failures int64
	Bytes    int64
	Elapsed  time.Duration

	Min  time.Duration
	Max  time.Duration
	Mean time.Duration
	P50  time.Duration
	P90  time.Duration
	P95  time.Duration
	P99  time.Duration
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		hist: hdrhistogram.New(histogramMin, histogramMax, histogramSigFigs),
	}
}

// Record adds one request that completed at end after taking d.
func (r *Recorder) Record(end time.Time, d time.Duration, ok bool, bytes int64) {
	us := d.Microseconds()
	if us < histogramMin {
		us = histogramMin
	}
	if us > histogramMax {
		us = histogramMax
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	_ = r.hist.RecordValue(us)
	r.requests++
	if !ok {
		r.failures++
	}
	r.bytes += bytes

	start := end.Add(-d)
	if r.first.IsZero() || start.Before(r.first) {
		r.first = start
	}
	if end.After(r.last) {
		r.last = end
	}
}

// Summary returns the current totals and latency percentiles.
func (r *Recorder) Summary() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Summary{
		Requests: r.requests,
		Failures: r.failures,
		Bytes:    r.bytes,
	}
	if r.requests == 0 {
		return s
	}

	s.Elapsed = r.last.Sub(r.first)
	s.Min = micros(r.hist.Min())
	s.Max = micros(r.hist.Max())
	s.Mean = time.Duration(r.hist.Mean() * float64(time.Microsecond))
	s.P50 = micros(r.hist.ValueAtQuantile(50))
	s.P90 = micros(r.hist.ValueAtQuantile(90))
	s.P95 = micros(r.hist.ValueAtQuantile(95))
	s.P99 = micros(r.hist.ValueAtQuantile(99))
	return s
}

// Throughput returns completed requests per second over the elapsed time.
func (s Summary) Throughput() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.Requests) / s.Elapsed.Seconds()
}

// ErrorRate returns the share of failed requests, from 0 to 1.
func (s Summary) ErrorRate() float64 {
	if s.Requests == 0 {
		return 0
	}
	return float64(s.Failures) / float64(s.Requests)
}

func micros(v int64) time.Duration {
	return time.Duration(v) * time.Microsecond
}
