// Package config loads, merges, and validates application configuration
// from defaults, environment variables, and command-line flags, in that
// order of precedence.
package config

import "time"

// Config holds all application configuration.
type Config struct {
	App            AppConfig
	Pool           PoolConfig
	Redis          RedisConfig
	MQTT           MQTTConfig
	CircuitBreaker CircuitBreakerConfig
	Health         HealthConfig
	Retry          RetryConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Name            string
	Environment     string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	CPUAffinity     []int
}

// PoolConfig configures the bounded worker thread pool.
type PoolConfig struct {
	MaxThreads int
	MaxPending int
	Keepalive  time.Duration
}

// RedisConfig holds Redis Streams consumer-group configuration.
type RedisConfig struct {
	Addresses        []string
	Username         string
	Password         string
	DB               int
	MasterName       string
	Stream           string
	ConsumerGroup    string
	BatchSize        int64
	BlockTime        time.Duration
	ConnectTimeout   time.Duration
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	PoolSize         int
	MinIdleConns     int
	ClaimMinIdleTime time.Duration
	ClaimBatchSize   int64
	ClaimInterval    time.Duration
	RetryInterval    time.Duration
	MaxRetries       int
	DeadLetterStream string
}

// RetryConfig configures the per-job retry/backoff policy applied when a
// job's publish attempt fails, before it is routed to the dead-letter
// stream.
type RetryConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
}

// MQTTConfig holds the MQTT publish-side configuration.
type MQTTConfig struct {
	Broker            string
	ClientID          string
	PublishTopic      string
	AckTopic          string
	QoS               byte
	ConnectTimeout    time.Duration
	WriteTimeout      time.Duration
	DisconnectTimeout time.Duration
	TLSEnabled        bool
	CACert            string
	ClientCert        string
	ClientKey         string
	InsecureSkip      bool
}

// CircuitBreakerConfig configures the breaker guarding the publish path.
type CircuitBreakerConfig struct {
	ErrorThreshold          float64
	SuccessThreshold        int
	Timeout                 time.Duration
	MaxConcurrentCalls      int
	RequestVolumeThreshold  uint64
	SlidingWindowBucketSize time.Duration
	SlidingWindowBuckets    int
}

// HealthConfig configures the HTTP server for /health, /healthz, /ready,
// /live, and /metrics.
type HealthConfig struct {
	Enabled      bool
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	RedisTimeout time.Duration
}
