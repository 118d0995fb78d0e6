// Package mqttpublish implements ports.Publisher using a single Paho MQTT
// client with a lock-free, copy-on-write subscription handler registry.
package mqttpublish

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"math"
	"os"
	"runtime"
	"sync/atomic"
	"time"

	mqttlib "github.com/eclipse/paho.mqtt.golang"
	"github.com/ibs-source/threadpool/golang/internal/config"
	"github.com/ibs-source/threadpool/golang/internal/ports"
)

// client implements ports.Publisher over a single Paho client.
type client struct {
	client mqttlib.Client
	cfg    *config.MQTTConfig
	logger ports.Logger

	isConnected atomic.Bool

	// handlers is an immutable map behind an atomic pointer, swapped via
	// copy-on-write so onMessage never takes a lock on the hot path.
	handlers atomic.Pointer[map[string]ports.MessageHandler]
}

// NewClient builds a ports.Publisher from cfg.MQTT.
func NewClient(cfg *config.Config, logger ports.Logger) (ports.Publisher, error) {
	c := &client{
		cfg:    &cfg.MQTT,
		logger: logger.WithFields(ports.Field{Key: "component", Value: "mqttpublish"}),
	}

	initial := make(map[string]ports.MessageHandler)
	c.handlers.Store(&initial)

	opts := mqttlib.NewClientOptions()
	opts.AddBroker(cfg.MQTT.Broker)
	opts.SetClientID(cfg.MQTT.ClientID)
	opts.SetCleanSession(true)
	opts.SetOrderMatters(false)
	opts.SetConnectTimeout(cfg.MQTT.ConnectTimeout)
	opts.SetAutoReconnect(true)
	opts.SetProtocolVersion(4) // MQTT 3.1.1

	if cfg.MQTT.TLSEnabled {
		tlsConf, err := createTLSConfig(&cfg.MQTT, cfg.MQTT.Broker)
		if err != nil {
			return nil, fmt.Errorf("create TLS config: %w", err)
		}
		opts.SetTLSConfig(tlsConf)
	}

	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)

	c.client = mqttlib.NewClient(opts)
	return c, nil
}

func (c *client) onConnect(cli mqttlib.Client) {
	c.isConnected.Store(true)
	c.logger.Info("mqtt connected")

	current := c.handlers.Load()
	if current == nil {
		return
	}
	for topic := range *current {
		token := cli.Subscribe(topic, c.cfg.QoS, c.onMessage)
		if ok := token.WaitTimeout(c.cfg.WriteTimeout); !ok || token.Error() != nil {
			c.logger.Error("failed to re-subscribe",
				ports.Field{Key: "topic", Value: topic},
				ports.Field{Key: "error", Value: token.Error()},
			)
		}
	}
}

func (c *client) onConnectionLost(_ mqttlib.Client, err error) {
	c.isConnected.Store(false)
	c.logger.Warn("mqtt connection lost", ports.Field{Key: "error", Value: err})
}

// Connect establishes the broker connection, polling the token in bounded
// ticks so ctx cancellation is observed promptly.
func (c *client) Connect(ctx context.Context) error {
	token := c.client.Connect()

	waitUntil := time.Now().Add(c.cfg.ConnectTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(waitUntil) {
		waitUntil = dl
	}

	tick := clampTick(c.cfg.ConnectTimeout)
	for !token.WaitTimeout(tick) && time.Now().Before(waitUntil) && ctx.Err() == nil {
		runtime.Gosched()
	}

	if err := token.Error(); err != nil {
		return err
	}
	c.isConnected.Store(true)
	return nil
}

// Disconnect closes the connection, waiting up to timeout for in-flight
// publishes to flush.
func (c *client) Disconnect(timeout time.Duration) {
	if c.client == nil {
		return
	}
	c.client.Disconnect(durationToMillisU(timeout))
	c.isConnected.Store(false)
}

// IsConnected reports whether the underlying client believes it is
// connected and hasn't observed a connection-lost callback since.
func (c *client) IsConnected() bool {
	if c.client == nil {
		return false
	}
	return c.client.IsConnected() && c.isConnected.Load()
}

func (c *client) waitForToken(ctx context.Context, token mqttlib.Token, wait time.Duration, op string) error {
	deadline := time.Now().Add(wait)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	tick := clampTick(wait)

	for {
		if token.WaitTimeout(tick) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("%s failed: %w", op, err)
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%s timeout after %s", op, wait)
		}
	}
}

// Publish delivers payload to topic.
func (c *client) Publish(ctx context.Context, topic string, qos byte, retained bool, payload []byte) error {
	if !c.IsConnected() {
		return fmt.Errorf("mqtt not connected")
	}
	token := c.client.Publish(topic, qos, retained, payload)
	return c.waitForToken(ctx, token, c.cfg.WriteTimeout, "publish")
}

// Subscribe registers handler for topic, surviving reconnects.
func (c *client) Subscribe(ctx context.Context, topic string, qos byte, handler ports.MessageHandler) error {
	if !c.IsConnected() {
		return fmt.Errorf("mqtt not connected")
	}
	c.addHandler(topic, handler)
	token := c.client.Subscribe(topic, qos, c.onMessage)
	return c.waitForToken(ctx, token, c.cfg.WriteTimeout, "subscribe")
}

// Unsubscribe removes subscriptions for topics.
func (c *client) Unsubscribe(ctx context.Context, topics ...string) error {
	if !c.IsConnected() {
		return fmt.Errorf("mqtt not connected")
	}
	c.removeHandlers(topics)
	token := c.client.Unsubscribe(topics...)
	return c.waitForToken(ctx, token, c.cfg.WriteTimeout, "unsubscribe")
}

func (c *client) onMessage(_ mqttlib.Client, msg mqttlib.Message) {
	current := c.handlers.Load()
	if current == nil {
		return
	}
	handler, ok := (*current)[msg.Topic()]
	if !ok || handler == nil {
		return
	}
	handler(msg.Topic(), msg.Payload())
}

func (c *client) addHandler(topic string, h ports.MessageHandler) {
	for {
		old := c.handlers.Load()
		var snapshot map[string]ports.MessageHandler
		if old != nil {
			snapshot = *old
		}
		newMap := make(map[string]ports.MessageHandler, len(snapshot)+1)
		for k, v := range snapshot {
			newMap[k] = v
		}
		newMap[topic] = h
		if c.handlers.CompareAndSwap(old, &newMap) {
			return
		}
	}
}

func (c *client) removeHandlers(topics []string) {
	if len(topics) == 0 {
		return
	}
	toRemove := make(map[string]struct{}, len(topics))
	for _, t := range topics {
		toRemove[t] = struct{}{}
	}
	for {
		old := c.handlers.Load()
		if old == nil {
			return
		}
		snapshot := *old
		newMap := make(map[string]ports.MessageHandler, len(snapshot))
		for k, v := range snapshot {
			if _, drop := toRemove[k]; !drop {
				newMap[k] = v
			}
		}
		if c.handlers.CompareAndSwap(old, &newMap) {
			return
		}
	}
}

// clampTick derives a poll interval from a wait budget, clamped to
// [50ms, 500ms] so token waits neither busy-spin nor block too long between
// ctx.Err() checks.
func clampTick(wait time.Duration) time.Duration {
	tick := wait / 20
	if tick < 50*time.Millisecond {
		tick = 50 * time.Millisecond
	}
	if tick > 500*time.Millisecond {
		tick = 500 * time.Millisecond
	}
	return tick
}

func durationToMillisU(d time.Duration) uint {
	ms := d.Milliseconds()
	if ms < 0 {
		return 0
	}
	if ms > int64(math.MaxUint32) {
		return uint(math.MaxUint32)
	}
	return uint(ms)
}

func createTLSConfig(cfg *config.MQTTConfig, broker string) (*tls.Config, error) {
	caCert, err := os.ReadFile(cfg.CACert)
	if err != nil {
		return nil, fmt.Errorf("read CA cert: %w", err)
	}
	caPool := x509.NewCertPool()
	if !caPool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("append CA cert")
	}

	clientCert, err := tls.LoadX509KeyPair(cfg.ClientCert, cfg.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load client cert: %w", err)
	}

	serverName := serverNameFromBroker(broker)

	return &tls.Config{
		RootCAs:            caPool,
		Certificates:       []tls.Certificate{clientCert},
		InsecureSkipVerify: cfg.InsecureSkip,
		ServerName:         serverName,
		MinVersion:         tls.VersionTLS12,
	}, nil
}

func serverNameFromBroker(broker string) string {
	b := broker
	if idx := indexAfterScheme(b); idx >= 0 {
		b = b[idx:]
	}
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] == ':' {
			return b[:i]
		}
	}
	return b
}

func indexAfterScheme(b string) int {
	for i := 0; i+2 < len(b); i++ {
		if b[i] == ':' && b[i+1] == '/' && b[i+2] == '/' {
			return i + 3
		}
	}
	return -1
}
