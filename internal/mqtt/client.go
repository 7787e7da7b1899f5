package mqtt

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// Config holds MQTT connection and topic configuration.
type Config struct {
	Broker          string
	Username        string
	Password        string
	ClientID        string // generated when empty
	TopicPrefix     string // Home Assistant state and command topics
	RawPrefix       string // ZCL tunnel topics
	DiscoveryPrefix string
}

// Client is one broker connection shared by the transport and the bridge.
// Hooks registered with OnConnect run after every (re)connect, so
// subscriptions survive broker restarts.
type Client struct {
	paho    pahomqtt.Client
	logger  *slog.Logger
	timeout time.Duration

	mu    sync.Mutex
	hooks []func()
}

// ClientID returns cfg.ClientID, or a unique fp300-bridge id when empty.
func ClientID(cfg Config) string {
	if cfg.ClientID != "" {
		return cfg.ClientID
	}
	return "fp300-bridge-" + uuid.NewString()[:8]
}

// NewClient creates an unconnected client. The broker keeps
// "<topic_prefix>/bridge/state" at "offline" when the connection drops.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	c := &Client{
		logger:  logger.With("component", "mqtt"),
		timeout: 10 * time.Second,
	}

	id := ClientID(cfg)
	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(id).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetOrderMatters(false).
		SetWill(cfg.TopicPrefix+"/bridge/state", "offline", 1, true).
		SetOnConnectHandler(func(_ pahomqtt.Client) {
			c.logger.Info("MQTT connected", "client_id", id)
			c.runHooks()
		}).
		SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
			c.logger.Warn("MQTT connection lost", "err", err)
		})

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	c.paho = pahomqtt.NewClient(opts)
	return c
}

func newClientWith(p pahomqtt.Client, logger *slog.Logger) *Client {
	return &Client{paho: p, logger: logger.With("component", "mqtt"), timeout: time.Second}
}

// OnConnect registers fn to run after each successful connect.
func (c *Client) OnConnect(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hooks = append(c.hooks, fn)
}

func (c *Client) runHooks() {
	c.mu.Lock()
	hooks := append([]func(){}, c.hooks...)
	c.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
}

// Connect dials the broker and waits for the first connection.
func (c *Client) Connect() error {
	token := c.paho.Connect()
	if !token.WaitTimeout(c.timeout) {
		return fmt.Errorf("mqtt connect timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	return nil
}

// Publish sends a message and waits until the broker acknowledges it or ctx
// is done.
func (c *Client) Publish(ctx context.Context, topic string, qos byte, retained bool, payload []byte) error {
	token := c.paho.Publish(topic, qos, retained, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("publish %s: %w", topic, ctx.Err())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// PublishAsync sends a message and logs a failure instead of waiting.
func (c *Client) PublishAsync(topic string, payload []byte, retained bool) {
	token := c.paho.Publish(topic, 1, retained, payload)
	go func() {
		if !token.WaitTimeout(5 * time.Second) {
			c.logger.Warn("MQTT publish timeout", "topic", topic)
		} else if err := token.Error(); err != nil {
			c.logger.Warn("MQTT publish error", "topic", topic, "err", err)
		}
	}()
}

// Subscribe registers handler for topic.
func (c *Client) Subscribe(topic string, qos byte, handler pahomqtt.MessageHandler) error {
	token := c.paho.Subscribe(topic, qos, handler)
	if !token.WaitTimeout(c.timeout) {
		return fmt.Errorf("subscribe %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	return nil
}

// Unsubscribe removes subscriptions.
func (c *Client) Unsubscribe(topics ...string) error {
	token := c.paho.Unsubscribe(topics...)
	if !token.WaitTimeout(c.timeout) {
		return fmt.Errorf("unsubscribe: timeout")
	}
	return token.Error()
}

// Disconnect closes the connection after pending work drains.
func (c *Client) Disconnect() {
	c.paho.Disconnect(1000)
	c.logger.Info("MQTT disconnected")
}
