package domain

import (
	"math"
	"testing"
	"time"
)

func approxEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestMetricsRatesAndAverages(t *testing.T) {
	m := NewMetrics()
	// Pretend we've been running for exactly 10 seconds
	m.StartTime = time.Now().Add(-10 * time.Second)

	m.JobsReceived.Store(100)
	m.RedisErrors.Store(3)
	m.MQTTErrors.Store(2)
	m.ProcessingErrors.Store(5)

	m.ProcessingTimeNs.Store(1_000_000_000) // 1s total across 100 jobs => 10ms avg

	if rate := m.ThroughputRate(); !approxEqual(rate, 10.0, 0.5) {
		t.Fatalf("throughput rate expected ~10, got %f", rate)
	}
	if rate := m.ErrorRate(); !approxEqual(rate, 1.0, 0.5) {
		// 3 + 2 + 5 = 10 errors over 10s => 1 err/sec
		t.Fatalf("error rate expected ~1, got %f", rate)
	}
	if avg := m.AverageProcessingTime(); !approxEqual(avg/1_000_000, 10.0, 1.0) {
		// in ms
		t.Fatalf("avg processing time expected ~10ms, got %fms", avg/1_000_000)
	}
}

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()
	m.JobsReceived.Store(7)
	m.JobsPublished.Store(5)
	m.JobsAcked.Store(3)
	m.JobsDropped.Store(2)
	m.JobsRetried.Store(6)
	m.JobsDeadLettered.Store(1)
	m.ActiveWorkers.Store(4)
	m.QueueDepth.Store(9)

	s := m.Snapshot()

	if s.JobsReceived != 7 || s.JobsPublished != 5 || s.JobsAcked != 3 || s.JobsDropped != 2 {
		t.Fatalf("unexpected counters in snapshot: %#v", s)
	}
	if s.JobsRetried != 6 || s.JobsDeadLettered != 1 {
		t.Fatalf("unexpected retry/dead-letter counters in snapshot: %#v", s)
	}
	if s.ActiveWorkers != 4 || s.QueueDepth != 9 {
		t.Fatalf("unexpected resource numbers: %#v", s)
	}
	if s.Timestamp.IsZero() {
		t.Fatalf("snapshot timestamp should be set")
	}
}
