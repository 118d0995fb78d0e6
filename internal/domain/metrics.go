package domain

import (
	"sync/atomic"
	"time"
)

// Metrics holds atomic counters for the pipeline, sized to be read from a
// health/metrics handler without locking.
type Metrics struct {
	JobsReceived     atomic.Uint64
	JobsPublished    atomic.Uint64
	JobsAcked        atomic.Uint64
	JobsDropped      atomic.Uint64
	JobsRetried      atomic.Uint64
	JobsDeadLettered atomic.Uint64

	ProcessingTimeNs atomic.Uint64
	PublishLatencyNs atomic.Uint64

	ActiveWorkers atomic.Int32
	QueueDepth    atomic.Int32

	RedisErrors      atomic.Uint64
	MQTTErrors       atomic.Uint64
	ProcessingErrors atomic.Uint64

	BackpressureDropped atomic.Uint64

	StartTime time.Time
}

// NewMetrics creates a Metrics instance stamped with the current time.
func NewMetrics() *Metrics {
	return &Metrics{StartTime: time.Now()}
}

// ThroughputRate returns jobs received per second since StartTime.
func (m *Metrics) ThroughputRate() float64 {
	elapsed := time.Since(m.StartTime).Seconds()
	if elapsed == 0 {
		return 0
	}
	return float64(m.JobsReceived.Load()) / elapsed
}

// ErrorRate returns errors per second across Redis, MQTT, and processing.
func (m *Metrics) ErrorRate() float64 {
	elapsed := time.Since(m.StartTime).Seconds()
	if elapsed == 0 {
		return 0
	}
	total := m.RedisErrors.Load() + m.MQTTErrors.Load() + m.ProcessingErrors.Load()
	return float64(total) / elapsed
}

// AverageProcessingTime returns the mean processing time in nanoseconds.
func (m *Metrics) AverageProcessingTime() float64 {
	received := m.JobsReceived.Load()
	if received == 0 {
		return 0
	}
	return float64(m.ProcessingTimeNs.Load()) / float64(received)
}

// Snapshot is a point-in-time copy of Metrics suitable for JSON encoding.
type Snapshot struct {
	Timestamp           time.Time `json:"timestamp"`
	JobsReceived        uint64    `json:"jobsReceived"`
	JobsPublished       uint64    `json:"jobsPublished"`
	JobsAcked           uint64    `json:"jobsAcked"`
	JobsDropped         uint64    `json:"jobsDropped"`
	JobsRetried         uint64    `json:"jobsRetried"`
	JobsDeadLettered    uint64    `json:"jobsDeadLettered"`
	ThroughputRate      float64   `json:"throughputRate"`
	ErrorRate           float64   `json:"errorRate"`
	AvgProcessingTimeMs float64   `json:"avgProcessingTimeMs"`
	ActiveWorkers       int32     `json:"activeWorkers"`
	QueueDepth          int32     `json:"queueDepth"`
}

// Snapshot copies the current counters into a Snapshot.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		Timestamp:           time.Now(),
		JobsReceived:        m.JobsReceived.Load(),
		JobsPublished:       m.JobsPublished.Load(),
		JobsAcked:           m.JobsAcked.Load(),
		JobsDropped:         m.JobsDropped.Load(),
		JobsRetried:         m.JobsRetried.Load(),
		JobsDeadLettered:    m.JobsDeadLettered.Load(),
		ThroughputRate:      m.ThroughputRate(),
		ErrorRate:           m.ErrorRate(),
		AvgProcessingTimeMs: m.AverageProcessingTime() / 1_000_000,
		ActiveWorkers:       m.ActiveWorkers.Load(),
		QueueDepth:          m.QueueDepth.Load(),
	}
}
