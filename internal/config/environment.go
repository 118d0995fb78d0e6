package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ibs-source/threadpool/golang/internal/timeutil"
)

// loadFromEnvironment overlays environment variables onto cfg, leaving a
// field untouched when its variable is unset or empty.
func loadFromEnvironment(cfg *Config) {
	applyAppEnv(cfg)
	applyPoolEnv(cfg)
	applyRedisEnv(cfg)
	applyMQTTEnv(cfg)
	applyCircuitBreakerEnv(cfg)
	applyHealthEnv(cfg)
	applyRetryEnv(cfg)
}

func applyAppEnv(cfg *Config) {
	if val := os.Getenv("APP_NAME"); val != "" {
		cfg.App.Name = val
	}
	if val := os.Getenv("APP_ENV"); val != "" {
		cfg.App.Environment = val
	}
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		cfg.App.LogLevel = val
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		cfg.App.LogFormat = val
	}
	if val := getEnvDuration("APP_SHUTDOWN_TIMEOUT"); val != 0 {
		cfg.App.ShutdownTimeout = val
	}
	if val := getEnvIntSlice("APP_CPU_AFFINITY"); len(val) > 0 {
		cfg.App.CPUAffinity = val
	}
}

func applyPoolEnv(cfg *Config) {
	if val := getEnvInt("POOL_MAX_THREADS"); val >= 0 {
		cfg.Pool.MaxThreads = val
	}
	if val := getEnvInt("POOL_MAX_PENDING"); val >= 0 {
		cfg.Pool.MaxPending = val
	}
	if val := getEnvDuration("POOL_KEEPALIVE"); val != 0 {
		cfg.Pool.Keepalive = val
	}
}

func applyRedisEnv(cfg *Config) {
	if val := getEnvStringSlice("REDIS_ADDRESSES"); len(val) > 0 {
		cfg.Redis.Addresses = val
	}
	if val := os.Getenv("REDIS_USERNAME"); val != "" {
		cfg.Redis.Username = val
	}
	if val := os.Getenv("REDIS_PASSWORD"); val != "" {
		cfg.Redis.Password = val
	}
	if val := getEnvInt("REDIS_DB"); val >= 0 {
		cfg.Redis.DB = val
	}
	if val := os.Getenv("REDIS_MASTER_NAME"); val != "" {
		cfg.Redis.MasterName = val
	}
	if val := os.Getenv("REDIS_STREAM"); val != "" {
		cfg.Redis.Stream = val
	}
	if val := os.Getenv("REDIS_CONSUMER_GROUP"); val != "" {
		cfg.Redis.ConsumerGroup = val
	}
	if val := getEnvInt64("REDIS_BATCH_SIZE"); val != 0 {
		cfg.Redis.BatchSize = val
	}
	if val := getEnvDuration("REDIS_BLOCK_TIME"); val != 0 {
		cfg.Redis.BlockTime = val
	}
	if val := getEnvDuration("REDIS_CONNECT_TIMEOUT"); val != 0 {
		cfg.Redis.ConnectTimeout = val
	}
	if val := getEnvDuration("REDIS_READ_TIMEOUT"); val != 0 {
		cfg.Redis.ReadTimeout = val
	}
	if val := getEnvDuration("REDIS_WRITE_TIMEOUT"); val != 0 {
		cfg.Redis.WriteTimeout = val
	}
	if val := getEnvInt("REDIS_POOL_SIZE"); val >= 0 {
		cfg.Redis.PoolSize = val
	}
	if val := getEnvInt("REDIS_MIN_IDLE_CONNS"); val >= 0 {
		cfg.Redis.MinIdleConns = val
	}
	if val := getEnvDuration("REDIS_CLAIM_MIN_IDLE_TIME"); val != 0 {
		cfg.Redis.ClaimMinIdleTime = val
	}
	if val := getEnvInt64("REDIS_CLAIM_BATCH_SIZE"); val != 0 {
		cfg.Redis.ClaimBatchSize = val
	}
	if val := getEnvDuration("REDIS_CLAIM_INTERVAL"); val != 0 {
		cfg.Redis.ClaimInterval = val
	}
	if val := getEnvDuration("REDIS_RETRY_INTERVAL"); val != 0 {
		cfg.Redis.RetryInterval = val
	}
	if val := getEnvInt("REDIS_MAX_RETRIES"); val >= 0 {
		cfg.Redis.MaxRetries = val
	}
	if val := os.Getenv("REDIS_DEAD_LETTER_STREAM"); val != "" {
		cfg.Redis.DeadLetterStream = val
	}
}

func applyRetryEnv(cfg *Config) {
	if val := getEnvInt("RETRY_MAX_ATTEMPTS"); val >= 0 {
		cfg.Retry.MaxAttempts = val
	}
	if val := getEnvDuration("RETRY_INITIAL_BACKOFF"); val != 0 {
		cfg.Retry.InitialBackoff = val
	}
	if val := getEnvDuration("RETRY_MAX_BACKOFF"); val != 0 {
		cfg.Retry.MaxBackoff = val
	}
	if val := getEnvFloat64("RETRY_MULTIPLIER"); val != 0 {
		cfg.Retry.Multiplier = val
	}
}

func applyMQTTEnv(cfg *Config) {
	if val := os.Getenv("MQTT_BROKER"); val != "" {
		cfg.MQTT.Broker = val
	}
	if val := os.Getenv("MQTT_CLIENT_ID"); val != "" {
		cfg.MQTT.ClientID = val
	}
	if val := os.Getenv("MQTT_PUBLISH_TOPIC"); val != "" {
		cfg.MQTT.PublishTopic = val
	}
	if val := os.Getenv("MQTT_ACK_TOPIC"); val != "" {
		cfg.MQTT.AckTopic = val
	}
	if val := getEnvInt("MQTT_QOS"); val >= 0 {
		cfg.MQTT.QoS = byte(val)
	}
	if val := getEnvDuration("MQTT_CONNECT_TIMEOUT"); val != 0 {
		cfg.MQTT.ConnectTimeout = val
	}
	if val := getEnvDuration("MQTT_WRITE_TIMEOUT"); val != 0 {
		cfg.MQTT.WriteTimeout = val
	}
	if val := getEnvDuration("MQTT_DISCONNECT_TIMEOUT"); val != 0 {
		cfg.MQTT.DisconnectTimeout = val
	}
	if os.Getenv("MQTT_TLS_ENABLED") != "" {
		cfg.MQTT.TLSEnabled = getEnvBool("MQTT_TLS_ENABLED")
	}
	if val := os.Getenv("MQTT_CA_CERT"); val != "" {
		cfg.MQTT.CACert = val
	}
	if val := os.Getenv("MQTT_CLIENT_CERT"); val != "" {
		cfg.MQTT.ClientCert = val
	}
	if val := os.Getenv("MQTT_CLIENT_KEY"); val != "" {
		cfg.MQTT.ClientKey = val
	}
	if os.Getenv("MQTT_INSECURE_SKIP_VERIFY") != "" {
		cfg.MQTT.InsecureSkip = getEnvBool("MQTT_INSECURE_SKIP_VERIFY")
	}
}

func applyCircuitBreakerEnv(cfg *Config) {
	if val := getEnvFloat64("CB_ERROR_THRESHOLD"); val != 0 {
		cfg.CircuitBreaker.ErrorThreshold = val
	}
	if val := getEnvInt("CB_SUCCESS_THRESHOLD"); val >= 0 {
		cfg.CircuitBreaker.SuccessThreshold = val
	}
	if val := getEnvDuration("CB_TIMEOUT"); val != 0 {
		cfg.CircuitBreaker.Timeout = val
	}
	if val := getEnvInt("CB_MAX_CONCURRENT_CALLS"); val >= 0 {
		cfg.CircuitBreaker.MaxConcurrentCalls = val
	}
	if val := getEnvInt64("CB_REQUEST_VOLUME_THRESHOLD"); val != 0 {
		cfg.CircuitBreaker.RequestVolumeThreshold = uint64(val)
	}
	if val := getEnvDuration("CB_SLIDING_WINDOW_BUCKET_SIZE"); val != 0 {
		cfg.CircuitBreaker.SlidingWindowBucketSize = val
	}
	if val := getEnvInt("CB_SLIDING_WINDOW_BUCKETS"); val >= 0 {
		cfg.CircuitBreaker.SlidingWindowBuckets = val
	}
}

func applyHealthEnv(cfg *Config) {
	if os.Getenv("HEALTH_ENABLED") != "" {
		cfg.Health.Enabled = getEnvBool("HEALTH_ENABLED")
	}
	if val := getEnvInt("HEALTH_PORT"); val >= 0 {
		cfg.Health.Port = val
	}
	if val := getEnvDuration("HEALTH_READ_TIMEOUT"); val != 0 {
		cfg.Health.ReadTimeout = val
	}
	if val := getEnvDuration("HEALTH_WRITE_TIMEOUT"); val != 0 {
		cfg.Health.WriteTimeout = val
	}
	if val := getEnvDuration("HEALTH_REDIS_TIMEOUT"); val != 0 {
		cfg.Health.RedisTimeout = val
	}
}

func getEnvInt(key string) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return -1
}

func getEnvInt64(key string) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return 0
}

func getEnvFloat64(key string) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return 0
}

func getEnvBool(key string) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return false
}

// getEnvDuration accepts either a Go duration string ("500ms") or a bare
// integer, which is interpreted as milliseconds.
func getEnvDuration(key string) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return 0
	}
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}
	if ms, err := strconv.ParseInt(value, 10, 64); err == nil {
		return timeutil.FromMillis(ms)
	}
	return 0
}

func getEnvStringSlice(key string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return nil
}

func getEnvIntSlice(key string) []int {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		result := make([]int, 0, len(parts))
		for _, part := range parts {
			if intVal, err := strconv.Atoi(strings.TrimSpace(part)); err == nil {
				result = append(result, intVal)
			}
		}
		return result
	}
	return nil
}
