package config

import (
	"flag"
	"os"
	"testing"
	"time"
)

func clearTestEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"APP_NAME", "APP_ENV", "LOG_LEVEL", "LOG_FORMAT", "APP_SHUTDOWN_TIMEOUT",
		"POOL_MAX_THREADS", "POOL_MAX_PENDING", "POOL_KEEPALIVE",
		"REDIS_ADDRESSES", "REDIS_PASSWORD", "REDIS_DB", "REDIS_STREAM", "REDIS_CONSUMER_GROUP",
		"REDIS_BATCH_SIZE", "MQTT_BROKER", "MQTT_CLIENT_ID", "MQTT_PUBLISH_TOPIC",
		"MQTT_QOS", "HEALTH_ENABLED", "HEALTH_PORT",
	} {
		os.Unsetenv(key)
	}
}

func resetTestFlags(t *testing.T) {
	t.Helper()
	flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
}

func TestLoadDefaults(t *testing.T) {
	clearTestEnv(t)
	resetTestFlags(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Pool.MaxThreads != 16 {
		t.Errorf("Pool.MaxThreads = %d; want 16", cfg.Pool.MaxThreads)
	}
	if cfg.Redis.Stream != "jobs-stream" {
		t.Errorf("Redis.Stream = %s; want jobs-stream", cfg.Redis.Stream)
	}
	if cfg.MQTT.Broker != "tcp://localhost:1883" {
		t.Errorf("MQTT.Broker = %s; want tcp://localhost:1883", cfg.MQTT.Broker)
	}
	if cfg.Health.Port != 8080 {
		t.Errorf("Health.Port = %d; want 8080", cfg.Health.Port)
	}
}

func TestLoadEnvironmentOverride(t *testing.T) {
	clearTestEnv(t)
	resetTestFlags(t)
	defer clearTestEnv(t)

	os.Setenv("POOL_MAX_THREADS", "32")
	os.Setenv("REDIS_STREAM", "custom-stream")
	os.Setenv("MQTT_BROKER", "tcp://broker.example:1883")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Pool.MaxThreads != 32 {
		t.Errorf("Pool.MaxThreads = %d; want 32", cfg.Pool.MaxThreads)
	}
	if cfg.Redis.Stream != "custom-stream" {
		t.Errorf("Redis.Stream = %s; want custom-stream", cfg.Redis.Stream)
	}
	if cfg.MQTT.Broker != "tcp://broker.example:1883" {
		t.Errorf("MQTT.Broker = %s; want tcp://broker.example:1883", cfg.MQTT.Broker)
	}
}

func TestLoadFlagsOverrideEnvironment(t *testing.T) {
	clearTestEnv(t)
	resetTestFlags(t)
	defer clearTestEnv(t)

	os.Setenv("POOL_MAX_THREADS", "32")

	registerFlags()
	if err := flag.CommandLine.Parse([]string{"-pool-max-threads=4"}); err != nil {
		t.Fatalf("flag parse failed: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Pool.MaxThreads != 4 {
		t.Errorf("Pool.MaxThreads = %d; want 4 (flag should win over env)", cfg.Pool.MaxThreads)
	}
}

func TestValidateRejectsEmptyStream(t *testing.T) {
	cfg := defaultConfig()
	cfg.Redis.Stream = ""

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for empty redis stream")
	}
}

func TestValidateRejectsBadLogLevel(t *testing.T) {
	cfg := defaultConfig()
	cfg.App.LogLevel = "verbose"

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for invalid log level")
	}
}

func TestValidateRejectsTLSWithoutCACert(t *testing.T) {
	cfg := defaultConfig()
	cfg.MQTT.TLSEnabled = true
	cfg.MQTT.CACert = ""

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for TLS enabled without CA cert")
	}
}

func TestValidateAcceptsUnboundedPool(t *testing.T) {
	cfg := defaultConfig()
	cfg.Pool.MaxThreads = 0
	cfg.Pool.MaxPending = 0
	cfg.Pool.Keepalive = 0

	if err := cfg.Validate(); err != nil {
		t.Fatalf("unbounded pool config should validate, got: %v", err)
	}
}

func TestDefaultConfigShutdownTimeoutIsPositive(t *testing.T) {
	cfg := defaultConfig()
	if cfg.App.ShutdownTimeout <= time.Duration(0) {
		t.Fatal("default shutdown timeout must be positive")
	}
}

func TestValidateRejectsEmptyDeadLetterStream(t *testing.T) {
	cfg := defaultConfig()
	cfg.Redis.DeadLetterStream = ""

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for empty dead letter stream")
	}
}

func TestValidateRejectsBadRetryBackoffOrdering(t *testing.T) {
	cfg := defaultConfig()
	cfg.Retry.InitialBackoff = 10 * time.Second
	cfg.Retry.MaxBackoff = time.Second

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for max backoff below initial backoff")
	}
}

func TestLoadEnvironmentOverridesRetryAndDeadLetterStream(t *testing.T) {
	clearTestEnv(t)
	resetTestFlags(t)
	defer clearTestEnv(t)
	defer os.Unsetenv("REDIS_DEAD_LETTER_STREAM")
	defer os.Unsetenv("RETRY_MAX_ATTEMPTS")

	os.Setenv("REDIS_DEAD_LETTER_STREAM", "custom-dlq")
	os.Setenv("RETRY_MAX_ATTEMPTS", "2")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Redis.DeadLetterStream != "custom-dlq" {
		t.Errorf("Redis.DeadLetterStream = %s; want custom-dlq", cfg.Redis.DeadLetterStream)
	}
	if cfg.Retry.MaxAttempts != 2 {
		t.Errorf("Retry.MaxAttempts = %d; want 2", cfg.Retry.MaxAttempts)
	}
}
