package observability

import (
	"sync/atomic"
	"time"
)

// JobMetrics keeps cheap in-process counters for the notification
// worker's health endpoint, independent of the prometheus registry.
type JobMetrics struct {
	claimed atomic.Uint64
	done    atomic.Uint64
	failed  atomic.Uint64
	retried atomic.Uint64

	durationCount atomic.Uint64
	durationTotal atomic.Int64
	durationMax   atomic.Int64
}

func NewJobMetrics() *JobMetrics {
	return &JobMetrics{}
}

func (m *JobMetrics) IncClaimed() { m.claimed.Add(1) }
func (m *JobMetrics) IncDone()    { m.done.Add(1) }
func (m *JobMetrics) IncFailed()  { m.failed.Add(1) }
func (m *JobMetrics) IncRetried() { m.retried.Add(1) }

func (m *JobMetrics) ObserveDuration(d time.Duration) {
	ns := d.Nanoseconds()
	m.durationCount.Add(1)
	m.durationTotal.Add(ns)

	for {
		curr := m.durationMax.Load()

		if ns <= curr {
			return
		}

		if m.durationMax.CompareAndSwap(curr, ns) {
			return
		}
	}
}

type JobMetricsSnapshot struct {
	Claimed         uint64        `json:"claimed"`
	Done            uint64        `json:"done"`
	Failed          uint64        `json:"failed"`
	Retried         uint64        `json:"retried"`
	DurationCount   uint64        `json:"durationCount"`
	AverageDuration time.Duration `json:"averageDuration"`
	MaxDuration     time.Duration `json:"maxDuration"`
}

func (m *JobMetrics) Snapshot() JobMetricsSnapshot {
	count := m.durationCount.Load()
	total := m.durationTotal.Load()
	max := m.durationMax.Load()

	var avg time.Duration

	if count > 0 {
		avg = time.Duration(total / int64(count))
	}

	return JobMetricsSnapshot{
		Claimed:         m.claimed.Load(),
		Done:            m.done.Load(),
		Failed:          m.failed.Load(),
		Retried:         m.retried.Load(),
		DurationCount:   count,
		AverageDuration: avg,
		MaxDuration:     time.Duration(max),
	}
}
