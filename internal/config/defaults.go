package config

import "time"

// defaultConfig returns the configuration used when neither an environment
// variable nor a flag overrides a field.
func defaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:            "poolworker",
			Environment:     "development",
			LogLevel:        "info",
			LogFormat:       "json",
			ShutdownTimeout: 30 * time.Second,
		},
		Pool: PoolConfig{
			MaxThreads: 16,
			MaxPending: 1000,
			Keepalive:  0,
		},
		Redis: RedisConfig{
			Addresses:        []string{"localhost:6379"},
			DB:               0,
			Stream:           "jobs-stream",
			ConsumerGroup:    "poolworker-group",
			BatchSize:        500,
			BlockTime:        5 * time.Second,
			ConnectTimeout:   5 * time.Second,
			ReadTimeout:      3 * time.Second,
			WriteTimeout:     3 * time.Second,
			PoolSize:         20,
			MinIdleConns:     5,
			ClaimMinIdleTime: 30 * time.Second,
			ClaimBatchSize:   100,
			ClaimInterval:    15 * time.Second,
			RetryInterval:    2 * time.Second,
			MaxRetries:       5,
			DeadLetterStream: "jobs-dlq",
		},
		MQTT: MQTTConfig{
			Broker:            "tcp://localhost:1883",
			ClientID:          "poolworker",
			PublishTopic:      "jobs/results",
			AckTopic:          "jobs/ack",
			QoS:               1,
			ConnectTimeout:    10 * time.Second,
			WriteTimeout:      3 * time.Second,
			DisconnectTimeout: 250 * time.Millisecond,
		},
		CircuitBreaker: CircuitBreakerConfig{
			ErrorThreshold:          0.5,
			SuccessThreshold:        3,
			Timeout:                 30 * time.Second,
			MaxConcurrentCalls:      100,
			RequestVolumeThreshold:  20,
			SlidingWindowBucketSize: time.Second,
			SlidingWindowBuckets:    10,
		},
		Health: HealthConfig{
			Enabled:      true,
			Port:         8080,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
			RedisTimeout: 3 * time.Second,
		},
		Retry: RetryConfig{
			MaxAttempts:    5,
			InitialBackoff: 500 * time.Millisecond,
			MaxBackoff:     30 * time.Second,
			Multiplier:     2.0,
		},
	}
}
