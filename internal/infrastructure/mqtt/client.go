package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/prusalink-bridge/internal/infrastructure/config"
)

// Client wraps paho.mqtt.golang with the bridge's connection lifecycle.
//
// Unlike a plain paho client, creation and connection are separate steps so
// the Last Will and Testament can be registered between them:
//
//	c := mqtt.New(cfg.MQTT())
//	c.SetWill(topic, payload, 1, true)
//	err := c.Connect(ctx, host, port)
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - Publish may be called from one goroutine while paho's network goroutines run.
type Client struct {
	client  pahomqtt.Client
	options *pahomqtt.ClientOptions
	cfg     config.MQTTConfig
	mu      sync.Mutex // guards client, options and broker during Connect/SetWill

	broker string

	// connected tracks current connection state.
	connected bool
	connMu    sync.RWMutex

	// Callbacks for connection events (optional, set via SetOnConnect/SetOnDisconnect).
	onConnect    func()
	onDisconnect func(err error)
	callbackMu   sync.RWMutex

	// logger for connection events (optional, set via SetLogger).
	logger   Logger
	loggerMu sync.RWMutex
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

// New creates a client with options built from cfg. No network activity
// happens until Connect.
func New(cfg config.MQTTConfig) *Client {
	c := &Client{
		cfg:     cfg,
		options: buildClientOptions(cfg),
	}

	c.options.SetOnConnectHandler(func(_ pahomqtt.Client) {
		c.handleConnect()
	})

	c.options.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.handleDisconnect(err)
	})

	c.options.SetReconnectingHandler(func(_ pahomqtt.Client, _ *pahomqtt.ClientOptions) {
		if logger := c.getLogger(); logger != nil {
			logger.Info("MQTT reconnecting", "broker", c.brokerURL())
		}
	})

	return c
}

// SetWill registers the Last Will and Testament message.
//
// The broker publishes the will if this client disappears without a clean
// disconnect. It must be registered before Connect: a will set afterwards is
// never sent to the broker, so SetWill returns ErrWillAfterConnect.
func (c *Client) SetWill(topic string, payload []byte, qos byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		return ErrWillAfterConnect
	}

	c.options.SetBinaryWill(topic, payload, qos, retained)
	return nil
}

// Connect establishes a connection to the broker at host:port.
//
// It performs the following setup:
//  1. Adds the broker URL (tcp:// or ssl:// based on TLS setting)
//  2. Creates the paho client from the options (including any will)
//  3. Attempts the connection, bounded by ctx and the connect timeout
//
// Returns:
//   - error: wrapping ErrConnectionFailed if the broker is unreachable,
//     refuses the credentials, or the attempt times out
func (c *Client) Connect(ctx context.Context, host string, port int) error {
	c.mu.Lock()
	if c.client != nil {
		c.mu.Unlock()
		return fmt.Errorf("%w: already connected to %s", ErrConnectionFailed, c.broker)
	}

	scheme := "tcp"
	if c.cfg.TLS {
		scheme = "ssl"
	}
	c.broker = fmt.Sprintf("%s://%s:%d", scheme, host, port)
	c.options.Servers = nil
	c.options.AddBroker(c.broker)

	client := pahomqtt.NewClient(c.options)
	c.client = client
	c.mu.Unlock()

	token := client.Connect()

	timer := time.NewTimer(defaultConnectTimeout)
	defer timer.Stop()

	select {
	case <-token.Done():
	case <-ctx.Done():
		c.abandon(client)
		return fmt.Errorf("%w: %w", ErrConnectionFailed, ctx.Err())
	case <-timer.C:
		c.abandon(client)
		return fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}

	if err := token.Error(); err != nil {
		c.abandon(client)
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// The OnConnectHandler runs asynchronously and may not have executed
	// yet, so the state is set here as well.
	c.connMu.Lock()
	c.connected = true
	c.connMu.Unlock()

	return nil
}

// abandon drops a client whose connect attempt failed, so the will can be
// changed and Connect retried.
func (c *Client) abandon(client pahomqtt.Client) {
	client.Disconnect(0)

	c.mu.Lock()
	if c.client == client {
		c.client = nil
	}
	c.mu.Unlock()
}

// handleConnect is called when the connection is established.
func (c *Client) handleConnect() {
	c.connMu.Lock()
	c.connected = true
	c.connMu.Unlock()

	if logger := c.getLogger(); logger != nil {
		logger.Info("MQTT connected", "broker", c.brokerURL())
	}

	c.callbackMu.RLock()
	callback := c.onConnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback()
	}
}

// handleDisconnect is called when the connection is lost.
func (c *Client) handleDisconnect(err error) {
	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()

	if logger := c.getLogger(); logger != nil {
		logger.Warn("MQTT connection lost", "broker", c.brokerURL(), "error", err)
	}

	c.callbackMu.RLock()
	callback := c.onDisconnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback(err)
	}
}

// Run blocks until ctx is done and then disconnects.
//
// paho runs its own network goroutines once connected; Run gives the
// orchestration shell a task with the same lifetime as that network loop.
func (c *Client) Run(ctx context.Context) error {
	<-ctx.Done()
	return c.Close()
}

// Close gracefully disconnects from the MQTT broker.
//
// A clean disconnect does not trigger the Last Will. Pending publishes get
// the quiesce period to complete.
func (c *Client) Close() error {
	c.mu.Lock()
	client := c.client
	c.mu.Unlock()

	if client == nil {
		return nil
	}

	client.Disconnect(defaultDisconnectQuiesce)

	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()

	return nil
}

// HealthCheck verifies the MQTT connection is alive.
func (c *Client) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("mqtt health check: %w", ctx.Err())
	default:
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	return nil
}

// IsConnected returns the current connection state.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	client := c.client
	c.mu.Unlock()

	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected && client != nil && client.IsConnected()
}

// SetOnConnect sets a callback to be invoked when connection is established.
// This is called on initial connect and on every reconnect.
func (c *Client) SetOnConnect(callback func()) {
	c.callbackMu.Lock()
	c.onConnect = callback
	c.callbackMu.Unlock()
}

// SetOnDisconnect sets a callback to be invoked when connection is lost.
// The error parameter describes why the connection was lost.
func (c *Client) SetOnDisconnect(callback func(err error)) {
	c.callbackMu.Lock()
	c.onDisconnect = callback
	c.callbackMu.Unlock()
}

// SetLogger sets a logger for connection events.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

// getLogger returns the current logger (may be nil).
func (c *Client) getLogger() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}

// brokerURL returns the broker URL set by Connect (empty before).
func (c *Client) brokerURL() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.broker
}
