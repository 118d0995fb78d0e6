package config

import "fmt"

// Validate checks cfg for internally consistent, usable values.
func (c *Config) Validate() error {
	if err := validateApp(c); err != nil {
		return err
	}
	if err := validatePool(c); err != nil {
		return err
	}
	if err := validateRedis(c); err != nil {
		return err
	}
	if err := validateRetry(c); err != nil {
		return err
	}
	if err := validateMQTT(c); err != nil {
		return err
	}
	if err := validateCircuitBreaker(c); err != nil {
		return err
	}
	if err := validateHealth(c); err != nil {
		return err
	}
	return nil
}

func validateApp(c *Config) error {
	if c.App.Name == "" {
		return fmt.Errorf("app name cannot be empty")
	}
	if !isValidLogLevel(c.App.LogLevel) {
		return fmt.Errorf("invalid log level: %s", c.App.LogLevel)
	}
	if !isValidLogFormat(c.App.LogFormat) {
		return fmt.Errorf("invalid log format: %s", c.App.LogFormat)
	}
	if c.App.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive")
	}
	return nil
}

func isValidLogLevel(level string) bool {
	switch level {
	case "trace", "debug", "info", "warn", "error", "fatal", "panic":
		return true
	default:
		return false
	}
}

func isValidLogFormat(format string) bool {
	return format == "text" || format == "json"
}

// validatePool enforces the same bounds threadpool.NewPool itself accepts:
// zero or negative means "unbounded", never an error.
func validatePool(c *Config) error {
	if c.Pool.Keepalive < 0 {
		return fmt.Errorf("pool keepalive cannot be negative")
	}
	return nil
}

func validateRedis(c *Config) error {
	if len(c.Redis.Addresses) == 0 {
		return fmt.Errorf("at least one redis address is required")
	}
	if c.Redis.Stream == "" {
		return fmt.Errorf("redis stream name cannot be empty")
	}
	if c.Redis.ConsumerGroup == "" {
		return fmt.Errorf("redis consumer group cannot be empty")
	}
	if c.Redis.BatchSize <= 0 {
		return fmt.Errorf("redis batch size must be positive")
	}
	if c.Redis.PoolSize <= 0 {
		return fmt.Errorf("redis pool size must be positive")
	}
	if c.Redis.DeadLetterStream == "" {
		return fmt.Errorf("redis dead letter stream cannot be empty")
	}
	return nil
}

func validateRetry(c *Config) error {
	if c.Retry.MaxAttempts < 0 {
		return fmt.Errorf("retry max attempts cannot be negative")
	}
	if c.Retry.InitialBackoff <= 0 {
		return fmt.Errorf("retry initial backoff must be positive")
	}
	if c.Retry.MaxBackoff < c.Retry.InitialBackoff {
		return fmt.Errorf("retry max backoff cannot be less than initial backoff")
	}
	if c.Retry.Multiplier < 1 {
		return fmt.Errorf("retry multiplier must be >= 1")
	}
	return nil
}

func validateMQTT(c *Config) error {
	if c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt broker cannot be empty")
	}
	if c.MQTT.PublishTopic == "" {
		return fmt.Errorf("mqtt publish topic cannot be empty")
	}
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt QoS must be 0, 1, or 2")
	}
	if c.MQTT.TLSEnabled && c.MQTT.CACert == "" {
		return fmt.Errorf("mqtt TLS enabled but no CA certificate configured")
	}
	return nil
}

func validateCircuitBreaker(c *Config) error {
	if c.CircuitBreaker.ErrorThreshold <= 0 || c.CircuitBreaker.ErrorThreshold > 1 {
		return fmt.Errorf("circuit breaker error threshold must be in (0, 1]")
	}
	if c.CircuitBreaker.SuccessThreshold <= 0 {
		return fmt.Errorf("circuit breaker success threshold must be positive")
	}
	if c.CircuitBreaker.Timeout <= 0 {
		return fmt.Errorf("circuit breaker timeout must be positive")
	}
	return nil
}

func validateHealth(c *Config) error {
	if !c.Health.Enabled {
		return nil
	}
	if c.Health.Port <= 0 || c.Health.Port > 65535 {
		return fmt.Errorf("health port out of range: %d", c.Health.Port)
	}
	return nil
}
