// Package ports defines the service interfaces used to decouple the
// pipeline from its concrete Redis, MQTT, and logging implementations.
package ports

import (
	"context"
	"time"

	"github.com/ibs-source/threadpool/golang/internal/domain"
)

// RedisJobSource is the interface for pulling jobs from a Redis stream
// consumer group and acknowledging or reclaiming them.
type RedisJobSource interface {
	CreateConsumerGroup(ctx context.Context, stream, group, startID string) error
	ReadJobs(ctx context.Context, group, consumer, stream string, count int64, block time.Duration) ([]*domain.Job, error)
	Ack(ctx context.Context, stream, group string, ids ...string) error
	ClaimPending(ctx context.Context, stream, group, consumer string, minIdleTime time.Duration, count int64) ([]*domain.Job, error)
	GetPending(ctx context.Context, stream, group string, start, end string, count int64) ([]PendingJob, error)
	GetConsumerName() string
	DeadLetter(ctx context.Context, stream string, job *domain.Job, reason string) error
	Ping(ctx context.Context) error
	Close() error
}

// Publisher is the interface for delivering job results to a downstream
// sink (MQTT in the default wiring).
type Publisher interface {
	Connect(ctx context.Context) error
	Disconnect(timeout time.Duration)
	IsConnected() bool
	Publish(ctx context.Context, topic string, qos byte, retained bool, payload []byte) error
	Subscribe(ctx context.Context, topic string, qos byte, handler MessageHandler) error
	Unsubscribe(ctx context.Context, topics ...string) error
}

// MessageHandler is the callback for messages delivered to a Subscribe
// topic (used for the MQTT ack channel).
type MessageHandler func(topic string, payload []byte)

// Logger defines the interface for structured logging.
type Logger interface {
	Trace(msg string, fields ...Field)
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Fatal(msg string, fields ...Field)
	WithFields(fields ...Field) Logger
}

// Field represents a logging field.
type Field struct {
	Key   string
	Value interface{}
}

// PendingJob represents an entry in a Redis consumer group's pending
// entries list (XPENDING).
type PendingJob struct {
	ID         string
	Consumer   string
	Idle       time.Duration
	RetryCount int64
}

// HealthStatus represents the health status of a component, surfaced by
// the /health and /healthz handler.
type HealthStatus struct {
	Healthy bool
	Message string
	Details map[string]interface{}
}

// CircuitBreaker defines the interface for the circuit-breaker pattern
// guarding the publish path.
type CircuitBreaker interface {
	Execute(fn func() error) error
	GetState() string
	GetStats() CircuitBreakerStats
}

// CircuitBreakerStats represents circuit breaker statistics.
type CircuitBreakerStats struct {
	Requests            uint64
	TotalSuccess        uint64
	TotalFailure        uint64
	ConsecutiveFailures uint64
	State               string
}

// RetryPolicy defines retry behavior for the publish path.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	MaxElapsedTime  time.Duration
}

// BackoffStrategy defines the backoff strategy for retries.
type BackoffStrategy interface {
	NextInterval(attempt int) time.Duration
}
