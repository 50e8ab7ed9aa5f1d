package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/prusalink-bridge/internal/infrastructure/config"
	"github.com/nerrad567/prusalink-bridge/internal/prusalink"
)

// Bridge defaults, used when the configuration leaves a key unset.
const (
	DefaultPollInterval   = time.Second
	DefaultRequestTimeout = 750 * time.Millisecond
	DefaultNozzleLocation = "nozzle"
	DefaultBedLocation    = "bed"
)

// Bridge polls PrusaLink and republishes changed values to MQTT.
//
// One Run loop owns the previous snapshot; nothing else reads or writes it.
// Connection state, metrics and the latest snapshot are exposed through
// atomics so the status API can read them from other goroutines.
//
// Thread Safety: Run must be called once. All other methods are safe for
// concurrent use.
type Bridge struct {
	broker   BrokerClient
	source   StatusSource
	observer PublishObserver
	now      func() time.Time
	logger   Logger

	printer      string
	topics       [signalCount]string
	locations    Locations
	qos          byte
	pollInterval time.Duration
	lastWill     []byte

	state   atomic.Int32
	current atomic.Pointer[Snapshot]
	metrics counters

	// Shutdown coordination
	done     chan struct{}
	stopOnce sync.Once
}

// BrokerClient is the subset of the MQTT client the bridge needs.
// *mqtt.Client satisfies it.
type BrokerClient interface {
	// SetWill registers the last will. It must be called before Connect.
	SetWill(topic string, payload []byte, qos byte, retained bool) error

	// Connect opens the broker connection.
	Connect(ctx context.Context, host string, port int) error

	// Publish sends one message.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// SetOnConnect and SetOnDisconnect register connection callbacks.
	SetOnConnect(callback func())
	SetOnDisconnect(callback func(err error))
}

// ConfigProvider is the typed configuration lookup the bridge reads.
// *config.Config satisfies it.
type ConfigProvider interface {
	Get(section, key string) (string, error)
	GetInt(section, key string) (int, error)
	GetDuration(section, key string) (time.Duration, error)
}

// StatusSource reads the three PrusaLink documents.
// *prusalink.Client satisfies it.
type StatusSource interface {
	FetchInfo(ctx context.Context) (*prusalink.Info, error)
	FetchStatus(ctx context.Context) (*prusalink.Status, error)
	FetchJob(ctx context.Context) (*prusalink.Job, error)
}

// SourceFactory creates the StatusSource for a printer.
type SourceFactory func(address, apiKey string, timeout time.Duration) StatusSource

// Published describes one successful publish.
type Published struct {
	Signal  Signal
	Topic   string
	Payload []byte
	At      time.Time
}

// PublishObserver is called after every successful publish, on the Run
// goroutine. It must not block.
type PublishObserver func(Published)

// Logger is the logging interface the bridge uses.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Options holds optional collaborators for Connect.
type Options struct {
	// Logger is optional structured logger.
	Logger Logger

	// NewSource creates the status source. Defaults to the PrusaLink client.
	NewSource SourceFactory

	// Now is the clock used for reading timestamps. Defaults to time.Now.
	Now func() time.Time

	// Observer is optional and receives every successful publish.
	Observer PublishObserver
}

// Connect reads the configuration, builds the last will from the printer's
// device info and connects the broker client.
//
// The steps run in this order:
//  1. Read the printer address, API key and topics from cfg
//  2. Fetch the device info once
//  3. Build the last will from the device info
//  4. Register the will on job_progress_topic (QoS 1, retained)
//  5. Connect to the broker at mqtt_broker.broker_ip:broker_port
//
// Returns:
//   - ErrInvalidConfig or ErrMissingTopic if cfg is incomplete
//   - ErrPrinterUnavailable if the device info cannot be read
//   - ErrConnection if the broker refuses or cannot be reached
func Connect(ctx context.Context, broker BrokerClient, cfg ConfigProvider, opts Options) (*Bridge, error) {
	if broker == nil {
		return nil, fmt.Errorf("%w: broker client is required", ErrInvalidConfig)
	}
	if cfg == nil {
		return nil, fmt.Errorf("%w: config provider is required", ErrInvalidConfig)
	}

	b := &Bridge{
		broker:   broker,
		observer: opts.Observer,
		now:      opts.Now,
		logger:   opts.Logger,
		done:     make(chan struct{}),
	}
	if b.now == nil {
		b.now = time.Now
	}

	// Step 1: configuration
	address, err := requireString(cfg, config.SectionPrinter, "ip_address")
	if err != nil {
		return nil, err
	}
	apiKey, err := requireString(cfg, config.SectionPrinter, "api_key")
	if err != nil {
		return nil, err
	}
	b.printer = address

	if err := b.readSettings(cfg); err != nil {
		return nil, err
	}
	requestTimeout := durationOr(cfg, config.SectionBridge, "request_timeout", DefaultRequestTimeout)
	if requestTimeout >= b.pollInterval {
		// A request must finish before the next cycle is due.
		requestTimeout = b.pollInterval / 2
		b.logWarn("request timeout clamped below poll interval", "request_timeout", requestTimeout)
	}

	newSource := opts.NewSource
	if newSource == nil {
		newSource = func(address, apiKey string, timeout time.Duration) StatusSource {
			return prusalink.New(address, apiKey, timeout)
		}
	}
	b.source = newSource(address, apiKey, requestTimeout)

	// Step 2: device info
	info, err := b.source.FetchInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPrinterUnavailable, err)
	}
	b.logInfo("printer reachable", "printer", address, "name", info.Name)

	// Step 3: last will
	will, err := BuildLastWill(info)
	if err != nil {
		return nil, err
	}
	b.lastWill = will

	// Step 4: register the will before any network connect
	willTopic := b.topics[JobProgress]
	if err := broker.SetWill(willTopic, will, willQoS, true); err != nil {
		return nil, fmt.Errorf("%w: registering last will: %w", ErrConnection, err)
	}

	// Step 5: broker connect
	host, err := requireString(cfg, config.SectionBroker, "broker_ip")
	if err != nil {
		return nil, err
	}
	port, err := cfg.GetInt(config.SectionBroker, "broker_port")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	broker.SetOnConnect(b.handleConnect)
	broker.SetOnDisconnect(b.handleDisconnect)

	b.state.Store(int32(Connecting))
	b.logInfo("connecting to broker", "host", host, "port", port, "will_topic", willTopic)

	if err := broker.Connect(ctx, host, port); err != nil {
		b.state.Store(int32(Disconnected))
		return nil, fmt.Errorf("%w: %s:%d: %w", ErrConnection, host, port, err)
	}
	b.state.CompareAndSwap(int32(Connecting), int32(Connected))

	return b, nil
}

// readSettings resolves topics, locations, QoS and the poll interval.
func (b *Bridge) readSettings(cfg ConfigProvider) error {
	for _, sig := range AllSignals() {
		topic, err := cfg.Get(config.SectionTopics, sig.Key())
		if err != nil || topic == "" {
			return fmt.Errorf("%w: %s.%s", ErrMissingTopic, config.SectionTopics, sig.Key())
		}
		b.topics[sig] = topic
	}

	b.locations = Locations{
		Nozzle: stringOr(cfg, config.SectionCustom, "nozzle_location", DefaultNozzleLocation),
		Bed:    stringOr(cfg, config.SectionCustom, "bed_location", DefaultBedLocation),
	}

	qos, err := cfg.GetInt(config.SectionBroker, "qos")
	switch {
	case errors.Is(err, config.ErrMissingKey):
		qos = 0
	case err != nil:
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if qos < 0 || qos > 2 {
		return fmt.Errorf("%w: mqtt_broker.qos must be 0, 1, or 2", ErrInvalidConfig)
	}
	b.qos = byte(qos)

	b.pollInterval = durationOr(cfg, config.SectionBridge, "poll_interval", DefaultPollInterval)
	if b.pollInterval <= 0 {
		return fmt.Errorf("%w: bridge.poll_interval must be positive", ErrInvalidConfig)
	}
	return nil
}

// Run polls until Stop is called or ctx is done. It returns nil in both cases.
//
// Each cycle fetches the three documents, publishes the changed signals if
// status and info are present, then waits one poll interval. The stop flag
// is checked before each cycle, between reads and after the fetch, so nothing
// is published once a stop has been observed. Stop also cancels the read in
// flight, so Run returns without waiting out a request timeout.
func (b *Bridge) Run(ctx context.Context) error {
	b.logInfo("polling started", "printer", b.printer, "interval", b.pollInterval)
	defer b.logInfo("polling stopped")

	// Stop cancels reads in flight.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-b.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	var prev *Snapshot
	for {
		if b.stopping(ctx) {
			return nil
		}

		started := b.now()
		c := b.fetchAll(ctx)

		if b.stopping(ctx) {
			return nil
		}

		if c.ready() {
			cur := derive(&c, b.locations)
			published := b.publishDiff(prev, &cur)
			prev = &cur
			b.current.Store(&cur)
			b.logDebug("cycle complete", "published", published)
		} else {
			b.metrics.skipped.Add(1)
			b.logDebug("cycle skipped", "status", c.status != nil, "info", c.info != nil)
		}

		b.metrics.cycles.Add(1)
		b.metrics.lastCycle.Store(started.UnixNano())

		if !b.wait(ctx) {
			return nil
		}
	}
}

// Stop asks Run to exit at the next cycle boundary. Safe to call more than once.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)
		b.logInfo("bridge stopping")
	})
}

func (b *Bridge) stopping(ctx context.Context) bool {
	select {
	case <-b.done:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// handleConnect is called by the broker client on every (re)connect.
func (b *Bridge) handleConnect() {
	b.state.Store(int32(Connected))
	b.logInfo("broker connected")
}

// handleDisconnect is called by the broker client when the connection drops.
// Polling continues; publishes fail until the client reconnects.
func (b *Bridge) handleDisconnect(err error) {
	b.state.Store(int32(Disconnected))
	b.logWarn("broker disconnected", "error", err)
}

// ConnectionState returns the broker connection state.
func (b *Bridge) ConnectionState() ConnectionState {
	return ConnectionState(b.state.Load())
}

// LastWill returns a copy of the registered last will payload.
func (b *Bridge) LastWill() []byte {
	out := make([]byte, len(b.lastWill))
	copy(out, b.lastWill)
	return out
}

// CurrentSnapshot returns the latest published snapshot.
// The bool is false until the first complete cycle.
func (b *Bridge) CurrentSnapshot() (Snapshot, bool) {
	s := b.current.Load()
	if s == nil {
		return Snapshot{}, false
	}
	return *s, true
}

// Topic returns the configured topic for a signal.
func (b *Bridge) Topic(sig Signal) string {
	if !sig.valid() {
		return ""
	}
	return b.topics[sig]
}

// Printer returns the configured printer address.
func (b *Bridge) Printer() string {
	return b.printer
}

// ConnectionState is the broker connection state as reported by callbacks.
type ConnectionState int32

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
)

// String returns the lowercase state name.
func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

type counters struct {
	cycles          atomic.Uint64
	skipped         atomic.Uint64
	publishes       atomic.Uint64
	publishFailures atomic.Uint64
	fetchFailures   atomic.Uint64
	lastCycle       atomic.Int64
}

// Metrics contains bridge counters for the API metrics endpoint.
type Metrics struct {
	State           string
	Printer         string
	Cycles          uint64
	SkippedCycles   uint64
	Publishes       uint64
	PublishFailures uint64
	FetchFailures   uint64
	LastCycle       time.Time
}

// GetMetrics returns current bridge metrics.
func (b *Bridge) GetMetrics() Metrics {
	m := Metrics{
		State:           b.ConnectionState().String(),
		Printer:         b.printer,
		Cycles:          b.metrics.cycles.Load(),
		SkippedCycles:   b.metrics.skipped.Load(),
		Publishes:       b.metrics.publishes.Load(),
		PublishFailures: b.metrics.publishFailures.Load(),
		FetchFailures:   b.metrics.fetchFailures.Load(),
	}
	if ns := b.metrics.lastCycle.Load(); ns != 0 {
		m.LastCycle = time.Unix(0, ns)
	}
	return m
}

func requireString(cfg ConfigProvider, section, key string) (string, error) {
	v, err := cfg.Get(section, key)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if v == "" {
		return "", fmt.Errorf("%w: %s.%s is empty", ErrInvalidConfig, section, key)
	}
	return v, nil
}

func stringOr(cfg ConfigProvider, section, key, fallback string) string {
	v, err := cfg.Get(section, key)
	if err != nil || v == "" {
		return fallback
	}
	return v
}

func durationOr(cfg ConfigProvider, section, key string, fallback time.Duration) time.Duration {
	v, err := cfg.GetDuration(section, key)
	if err != nil || v == 0 {
		return fallback
	}
	return v
}

// logInfo logs an info message if logger is set.
func (b *Bridge) logInfo(msg string, keysAndValues ...any) {
	if b.logger != nil {
		b.logger.Info(msg, keysAndValues...)
	}
}

// logWarn logs a warning if logger is set.
func (b *Bridge) logWarn(msg string, keysAndValues ...any) {
	if b.logger != nil {
		b.logger.Warn(msg, keysAndValues...)
	}
}

// logDebug logs a debug message if logger is set.
func (b *Bridge) logDebug(msg string, keysAndValues ...any) {
	if b.logger != nil {
		b.logger.Debug(msg, keysAndValues...)
	}
}
