package config

import (
	"flag"
	"time"
)

// registerFlags registers every command-line flag. Values default to a
// sentinel ("", -1, or 0 for durations) so applyFlags can tell "explicitly
// set" apart from "left at zero value" and only override a field when the
// former holds; the health-enabled bool is applied only when it was given on
// the command line.
func registerFlags() {
	if flag.Lookup("pool-max-threads") != nil {
		return
	}

	flag.Int("pool-max-threads", -1, "maximum worker goroutines (0 for unbounded)")
	flag.Int("pool-max-pending", -1, "maximum queued jobs (0 for unbounded)")
	flag.Duration("pool-keepalive", 0, "idle worker reap timeout (0 disables reaping)")

	flag.String("redis-addr", "", "Redis server address")
	flag.String("redis-password", "", "Redis server password")
	flag.Int("redis-db", -1, "Redis database")
	flag.String("redis-stream", "", "Redis stream name")
	flag.String("redis-group", "", "Redis consumer group name")
	flag.Int("redis-batch-size", -1, "number of entries to read per XREADGROUP call")

	flag.String("mqtt-broker", "", "MQTT broker address")
	flag.String("mqtt-client-id", "", "MQTT client ID")
	flag.String("mqtt-publish-topic", "", "MQTT topic for publishing job results")
	flag.String("mqtt-ack-topic", "", "MQTT topic for acknowledgments")
	flag.Int("mqtt-qos", -1, "MQTT QoS level")

	flag.String("log-level", "", "log level (trace, debug, info, warn, error)")
	flag.String("log-format", "", "log format (text, json)")

	flag.Bool("health-enabled", true, "serve /health, /healthz, /ready, /live, and /metrics")
	flag.Int("health-port", -1, "health server port")
}

// applyFlags overlays parsed flag values onto cfg.
func applyFlags(cfg *Config) {
	if !flag.Parsed() {
		flag.Parse()
	}

	if val := getFlagInt("pool-max-threads"); val >= 0 {
		cfg.Pool.MaxThreads = val
	}
	if val := getFlagInt("pool-max-pending"); val >= 0 {
		cfg.Pool.MaxPending = val
	}
	if val := getFlagDuration("pool-keepalive"); val != 0 {
		cfg.Pool.Keepalive = val
	}

	if val := getFlagString("redis-addr"); val != "" {
		cfg.Redis.Addresses = []string{val}
	}
	if val := getFlagString("redis-password"); val != "" {
		cfg.Redis.Password = val
	}
	if val := getFlagInt("redis-db"); val >= 0 {
		cfg.Redis.DB = val
	}
	if val := getFlagString("redis-stream"); val != "" {
		cfg.Redis.Stream = val
	}
	if val := getFlagString("redis-group"); val != "" {
		cfg.Redis.ConsumerGroup = val
	}
	if val := getFlagInt("redis-batch-size"); val >= 0 {
		cfg.Redis.BatchSize = int64(val)
	}

	if val := getFlagString("mqtt-broker"); val != "" {
		cfg.MQTT.Broker = val
	}
	if val := getFlagString("mqtt-client-id"); val != "" {
		cfg.MQTT.ClientID = val
	}
	if val := getFlagString("mqtt-publish-topic"); val != "" {
		cfg.MQTT.PublishTopic = val
	}
	if val := getFlagString("mqtt-ack-topic"); val != "" {
		cfg.MQTT.AckTopic = val
	}
	if val := getFlagInt("mqtt-qos"); val >= 0 {
		cfg.MQTT.QoS = byte(val)
	}

	if val := getFlagString("log-level"); val != "" {
		cfg.App.LogLevel = val
	}
	if val := getFlagString("log-format"); val != "" {
		cfg.App.LogFormat = val
	}

	flag.Visit(func(f *flag.Flag) {
		if f.Name == "health-enabled" {
			cfg.Health.Enabled = getFlagBool("health-enabled")
		}
	})
	if val := getFlagInt("health-port"); val >= 0 {
		cfg.Health.Port = val
	}
}

func getFlagString(name string) string {
	f := flag.Lookup(name)
	if f == nil {
		return ""
	}
	return f.Value.String()
}

func getFlagInt(name string) int {
	f := flag.Lookup(name)
	if f == nil {
		return -1
	}
	if getter, ok := f.Value.(flag.Getter); ok {
		if val, ok := getter.Get().(int); ok {
			return val
		}
	}
	return -1
}

func getFlagBool(name string) bool {
	f := flag.Lookup(name)
	if f == nil {
		return false
	}
	if getter, ok := f.Value.(flag.Getter); ok {
		if val, ok := getter.Get().(bool); ok {
			return val
		}
	}
	return false
}

func getFlagDuration(name string) time.Duration {
	f := flag.Lookup(name)
	if f == nil {
		return 0
	}
	if getter, ok := f.Value.(flag.Getter); ok {
		if val, ok := getter.Get().(time.Duration); ok {
			return val
		}
	}
	return 0
}
