package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nerrad567/prusalink-bridge/internal/infrastructure/config"
	"github.com/nerrad567/prusalink-bridge/internal/prusalink"
)

// =============================================================================
// Test Doubles
// =============================================================================

type publishCall struct {
	topic    string
	payload  string
	qos      byte
	retained bool
}

// fakeBroker records the order of will, connect and publish calls.
type fakeBroker struct {
	mu           sync.Mutex
	events       []string
	will         publishCall
	publishes    []publishCall
	connectErr   error
	publishErr   error
	onConnect    func()
	onDisconnect func(error)
}

func (f *fakeBroker) SetWill(topic string, payload []byte, qos byte, retained bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, "will")
	f.will = publishCall{topic: topic, payload: string(payload), qos: qos, retained: retained}
	return nil
}

func (f *fakeBroker) Connect(_ context.Context, host string, port int) error {
	f.mu.Lock()
	f.events = append(f.events, fmt.Sprintf("connect %s:%d", host, port))
	err := f.connectErr
	cb := f.onConnect
	f.mu.Unlock()

	if err == nil && cb != nil {
		cb()
	}
	return err
}

func (f *fakeBroker) Publish(topic string, payload []byte, qos byte, retained bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.publishes = append(f.publishes, publishCall{topic: topic, payload: string(payload), qos: qos, retained: retained})
	return nil
}

func (f *fakeBroker) SetOnConnect(cb func()) {
	f.mu.Lock()
	f.onConnect = cb
	f.mu.Unlock()
}

func (f *fakeBroker) SetOnDisconnect(cb func(error)) {
	f.mu.Lock()
	f.onDisconnect = cb
	f.mu.Unlock()
}

func (f *fakeBroker) publishCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.publishes)
}

func (f *fakeBroker) eventLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}

// fakeSource returns whatever its fields hold at call time.
type fakeSource struct {
	mu        sync.Mutex
	info      *prusalink.Info
	status    *prusalink.Status
	job       *prusalink.Job
	infoErr   error
	statusErr error
	jobErr    error

	// beforeStatus, when set, runs at the start of FetchStatus.
	beforeStatus func()
}

func (f *fakeSource) FetchInfo(context.Context) (*prusalink.Info, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.info, f.infoErr
}

func (f *fakeSource) FetchStatus(context.Context) (*prusalink.Status, error) {
	f.mu.Lock()
	hook := f.beforeStatus
	f.mu.Unlock()
	if hook != nil {
		hook()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status, f.statusErr
}

func (f *fakeSource) FetchJob(context.Context) (*prusalink.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.job, f.jobErr
}

func (f *fakeSource) setStatus(st *prusalink.Status) {
	f.mu.Lock()
	f.status = st
	f.mu.Unlock()
}

// recordingLogger counts log calls per level.
type recordingLogger struct {
	mu     sync.Mutex
	debugs []string
	infos  []string
	warns  []string
	errors []string
}

func (l *recordingLogger) Debug(msg string, _ ...any) { l.add(&l.debugs, msg) }
func (l *recordingLogger) Info(msg string, _ ...any)  { l.add(&l.infos, msg) }
func (l *recordingLogger) Warn(msg string, _ ...any)  { l.add(&l.warns, msg) }
func (l *recordingLogger) Error(msg string, _ ...any) { l.add(&l.errors, msg) }

func (l *recordingLogger) add(dst *[]string, msg string) {
	l.mu.Lock()
	*dst = append(*dst, msg)
	l.mu.Unlock()
}

func (l *recordingLogger) counts() (warns, errs int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.warns), len(l.errors)
}

// =============================================================================
// Fixtures
// =============================================================================

func testSections() map[string]map[string]any {
	topics := make(map[string]any, signalCount)
	for _, key := range TopicKeys() {
		topics[key] = "prusa/" + key
	}
	return map[string]map[string]any{
		config.SectionPrinter: {"ip_address": "192.168.1.20", "api_key": "secret"},
		config.SectionBroker:  {"broker_ip": "127.0.0.1", "broker_port": 1883},
		config.SectionTopics:  topics,
		config.SectionBridge:  {"poll_interval": "20ms", "request_timeout": "10ms"},
	}
}

func testConfig() *config.Config {
	return config.FromSections(testSections())
}

func statusDoc(t *testing.T, body string) *prusalink.Status {
	t.Helper()
	var st prusalink.Status
	if err := json.Unmarshal([]byte(body), &st); err != nil {
		t.Fatalf("status fixture: %v", err)
	}
	return &st
}

func printingStatus(t *testing.T) *prusalink.Status {
	return statusDoc(t, `{
		"job": {"id": 1, "progress": 42, "time_printing": 600, "time_remaining": 900},
		"printer": {"state": "PRINTING", "temp_nozzle": 215, "target_nozzle": 215, "temp_bed": 60.5, "target_bed": 60}
	}`)
}

func printingJob() *prusalink.Job {
	return &prusalink.Job{
		ID:            1,
		TimePrinting:  600,
		TimeRemaining: 900,
		File: prusalink.File{
			Name: "foo.gcode",
			Meta: prusalink.Meta{
				prusalink.MetaEstimatedPrintTime: 1500,
				prusalink.MetaNozzleDiameter:     0.4,
				prusalink.MetaLayerHeight:        0.2,
				prusalink.MetaFilamentUsedMM:     1234.5,
				prusalink.MetaFilamentUsedG:      3.7,
				prusalink.MetaFilamentType:       "PLA",
				prusalink.MetaFillDensity:        "15%",
			},
		},
	}
}

func newSource(t *testing.T) *fakeSource {
	return &fakeSource{
		info:   &prusalink.Info{Name: "MK4"},
		status: printingStatus(t),
		job:    printingJob(),
	}
}

func connectTest(t *testing.T, src *fakeSource, broker *fakeBroker, logger Logger) *Bridge {
	t.Helper()
	b, err := Connect(context.Background(), broker, testConfig(), Options{
		Logger:    logger,
		NewSource: func(string, string, time.Duration) StatusSource { return src },
		Now:       func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	return b
}

// =============================================================================
// Connect Tests
// =============================================================================

func TestConnectRegistersWillBeforeConnect(t *testing.T) {
	broker := &fakeBroker{}
	b := connectTest(t, newSource(t), broker, nil)

	events := broker.eventLog()
	want := []string{"will", "connect 127.0.0.1:1883"}
	if strings.Join(events, ",") != strings.Join(want, ",") {
		t.Fatalf("events = %v, want %v", events, want)
	}

	wantWill := `{"Printer":"MK4","Job":"Not printing","Elapsed_time_s":0,"Progress_percent":0}`
	if broker.will.payload != wantWill {
		t.Errorf("will payload = %s, want %s", broker.will.payload, wantWill)
	}
	if broker.will.topic != "prusa/job_progress_topic" {
		t.Errorf("will topic = %q, want prusa/job_progress_topic", broker.will.topic)
	}
	if broker.will.qos != 1 || !broker.will.retained {
		t.Errorf("will qos/retained = %d/%v, want 1/true", broker.will.qos, broker.will.retained)
	}
	if string(b.LastWill()) != wantWill {
		t.Errorf("LastWill() = %s, want %s", b.LastWill(), wantWill)
	}
	if b.ConnectionState() != Connected {
		t.Errorf("ConnectionState() = %v, want connected", b.ConnectionState())
	}
}

func TestConnectLastWillIgnoresLiveState(t *testing.T) {
	idle := newSource(t)
	idle.status = statusDoc(t, `{"printer":{"state":"IDLE"}}`)
	idle.job = nil

	b1 := connectTest(t, newSource(t), &fakeBroker{}, nil)
	b2 := connectTest(t, idle, &fakeBroker{}, nil)

	if string(b1.LastWill()) != string(b2.LastWill()) {
		t.Errorf("LastWill() differs: %s vs %s", b1.LastWill(), b2.LastWill())
	}
}

func TestConnectErrors(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(sections map[string]map[string]any, src *fakeSource, broker *fakeBroker)
		want      error
		wantCalls int
	}{
		{
			name: "printer unavailable",
			mutate: func(_ map[string]map[string]any, src *fakeSource, _ *fakeBroker) {
				src.info = nil
				src.infoErr = prusalink.ErrUnexpectedStatus
			},
			want: ErrPrinterUnavailable,
		},
		{
			name: "broker unreachable",
			mutate: func(_ map[string]map[string]any, _ *fakeSource, broker *fakeBroker) {
				broker.connectErr = errors.New("connection refused")
			},
			want:      ErrConnection,
			wantCalls: 2,
		},
		{
			name: "missing topic",
			mutate: func(sections map[string]map[string]any, _ *fakeSource, _ *fakeBroker) {
				delete(sections[config.SectionTopics], "printer_bed_temp_topic")
			},
			want: ErrMissingTopic,
		},
		{
			name: "missing api key",
			mutate: func(sections map[string]map[string]any, _ *fakeSource, _ *fakeBroker) {
				delete(sections[config.SectionPrinter], "api_key")
			},
			want: ErrInvalidConfig,
		},
		{
			name: "invalid qos",
			mutate: func(sections map[string]map[string]any, _ *fakeSource, _ *fakeBroker) {
				sections[config.SectionBroker]["qos"] = 5
			},
			want: ErrInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sections := testSections()
			src := newSource(t)
			broker := &fakeBroker{}
			tt.mutate(sections, src, broker)

			_, err := Connect(context.Background(), broker, config.FromSections(sections), Options{
				NewSource: func(string, string, time.Duration) StatusSource { return src },
			})
			if !errors.Is(err, tt.want) {
				t.Fatalf("Connect() error = %v, want %v", err, tt.want)
			}
			if got := len(broker.eventLog()); got != tt.wantCalls {
				t.Errorf("broker calls = %d, want %d (%v)", got, tt.wantCalls, broker.eventLog())
			}
		})
	}
}

func TestConnectClampsRequestTimeout(t *testing.T) {
	sections := testSections()
	sections[config.SectionBridge]["request_timeout"] = "5s"

	var got time.Duration
	src := newSource(t)
	_, err := Connect(context.Background(), &fakeBroker{}, config.FromSections(sections), Options{
		NewSource: func(_, _ string, timeout time.Duration) StatusSource {
			got = timeout
			return src
		},
	})
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if got >= 20*time.Millisecond {
		t.Errorf("request timeout = %v, want below poll interval", got)
	}
}

func TestConnectionStateCallbacks(t *testing.T) {
	broker := &fakeBroker{}
	b := connectTest(t, newSource(t), broker, nil)

	broker.onDisconnect(errors.New("keepalive timeout"))
	if b.ConnectionState() != Disconnected {
		t.Errorf("ConnectionState() = %v, want disconnected", b.ConnectionState())
	}

	broker.onConnect()
	if b.ConnectionState() != Connected {
		t.Errorf("ConnectionState() = %v, want connected", b.ConnectionState())
	}

	if b.GetMetrics().State != "connected" {
		t.Errorf("Metrics.State = %q, want connected", b.GetMetrics().State)
	}
}

func TestConnectionStateString(t *testing.T) {
	tests := map[ConnectionState]string{
		Disconnected:        "disconnected",
		Connecting:          "connecting",
		Connected:           "connected",
		ConnectionState(42): "unknown",
	}
	for state, want := range tests {
		if got := state.String(); got != want {
			t.Errorf("ConnectionState(%d).String() = %q, want %q", state, got, want)
		}
	}
}

// =============================================================================
// Publish Tests
// =============================================================================

func TestPublishDiff(t *testing.T) {
	broker := &fakeBroker{}
	src := newSource(t)
	b := connectTest(t, src, broker, nil)
	ctx := context.Background()

	c := b.fetchAll(ctx)
	first := derive(&c, b.locations)
	if n := b.publishDiff(nil, &first); n != int(signalCount) {
		t.Fatalf("first pass published %d, want %d", n, signalCount)
	}

	c = b.fetchAll(ctx)
	second := derive(&c, b.locations)
	if n := b.publishDiff(&first, &second); n != 0 {
		t.Errorf("identical pass published %d, want 0", n)
	}

	src.setStatus(statusDoc(t, `{
		"job": {"id": 1, "progress": 42, "time_printing": 600, "time_remaining": 900},
		"printer": {"state": "PRINTING", "temp_nozzle": 215, "target_nozzle": 215, "temp_bed": 61, "target_bed": 60}
	}`))
	c = b.fetchAll(ctx)
	third := derive(&c, b.locations)

	before := broker.publishCount()
	if n := b.publishDiff(&second, &third); n != 2 {
		t.Errorf("bed change published %d, want 2 (bed temp and custom bed reading)", n)
	}

	broker.mu.Lock()
	changed := broker.publishes[before:]
	broker.mu.Unlock()
	if changed[0].topic != "prusa/printer_bed_temp_topic" || changed[0].payload != "61" {
		t.Errorf("first changed publish = %+v", changed[0])
	}
	if changed[1].topic != "prusa/printer_custom_bed_temp_topic" {
		t.Errorf("second changed publish topic = %q", changed[1].topic)
	}
	for _, p := range changed {
		if !p.retained {
			t.Errorf("publish to %s not retained", p.topic)
		}
	}
}

func TestPublishDiffOrder(t *testing.T) {
	broker := &fakeBroker{}
	b := connectTest(t, newSource(t), broker, nil)

	c := b.fetchAll(context.Background())
	snap := derive(&c, b.locations)
	b.publishDiff(nil, &snap)

	broker.mu.Lock()
	defer broker.mu.Unlock()
	for i, key := range TopicKeys() {
		if broker.publishes[i].topic != "prusa/"+key {
			t.Errorf("publish %d topic = %q, want prusa/%s", i, broker.publishes[i].topic, key)
		}
	}
}

func TestPublishDiffFailureStillCounts(t *testing.T) {
	broker := &fakeBroker{publishErr: errors.New("not connected")}
	logger := &recordingLogger{}
	b := connectTest(t, newSource(t), broker, logger)

	c := b.fetchAll(context.Background())
	snap := derive(&c, b.locations)
	if n := b.publishDiff(nil, &snap); n != 0 {
		t.Errorf("published %d, want 0", n)
	}

	m := b.GetMetrics()
	if m.PublishFailures != uint64(signalCount) {
		t.Errorf("PublishFailures = %d, want %d", m.PublishFailures, signalCount)
	}
	if warns, _ := logger.counts(); warns != int(signalCount) {
		t.Errorf("warn logs = %d, want %d", warns, signalCount)
	}
}

func TestPublishObserver(t *testing.T) {
	broker := &fakeBroker{}
	src := newSource(t)
	var seen []Published

	b, err := Connect(context.Background(), broker, testConfig(), Options{
		NewSource: func(string, string, time.Duration) StatusSource { return src },
		Observer:  func(p Published) { seen = append(seen, p) },
	})
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	c := b.fetchAll(context.Background())
	snap := derive(&c, b.locations)
	b.publishDiff(nil, &snap)

	if len(seen) != int(signalCount) {
		t.Fatalf("observer calls = %d, want %d", len(seen), signalCount)
	}
	if seen[0].Signal != JobProgress || seen[0].Topic != "prusa/job_progress_topic" {
		t.Errorf("first observed = %+v", seen[0])
	}
}

// =============================================================================
// Run Loop Tests
// =============================================================================

func TestRunIdenticalCyclesPublishOnce(t *testing.T) {
	broker := &fakeBroker{}
	b := connectTest(t, newSource(t), broker, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for b.GetMetrics().Cycles < 3 {
		select {
		case <-deadline:
			t.Fatal("fewer than 3 cycles within 2s")
		case <-time.After(5 * time.Millisecond):
		}
	}
	b.Stop()
	cancel()

	if err := <-done; err != nil {
		t.Errorf("Run() error = %v", err)
	}
	if got := broker.publishCount(); got != int(signalCount) {
		t.Errorf("publishes = %d, want %d (first cycle only)", got, signalCount)
	}

	snap, ok := b.CurrentSnapshot()
	if !ok {
		t.Fatal("CurrentSnapshot() ok = false after cycles")
	}
	if snap.Get(JobName) != Text("foo.gcode") {
		t.Errorf("JobName = %+v, want foo.gcode", snap.Get(JobName))
	}
}

func TestRunSkipsCycleWithoutStatus(t *testing.T) {
	broker := &fakeBroker{}
	src := newSource(t)
	b := connectTest(t, src, broker, nil)
	src.setStatus(nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for b.GetMetrics().SkippedCycles < 2 {
		select {
		case <-deadline:
			t.Fatal("no skipped cycles within 2s")
		case <-time.After(5 * time.Millisecond):
		}
	}
	b.Stop()
	<-done

	if got := broker.publishCount(); got != 0 {
		t.Errorf("publishes = %d, want 0 without status", got)
	}
	if _, ok := b.CurrentSnapshot(); ok {
		t.Error("CurrentSnapshot() ok = true without any complete cycle")
	}
}

func TestRunStopDuringFetchPublishesNothing(t *testing.T) {
	broker := &fakeBroker{}
	src := newSource(t)
	b := connectTest(t, src, broker, nil)

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	src.beforeStatus = func() {
		once.Do(func() { close(entered) })
		<-release
	}

	done := make(chan error, 1)
	go func() { done <- b.Run(context.Background()) }()

	<-entered
	b.Stop()
	b.Stop() // idempotent
	close(release)

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run() did not exit after Stop")
	}

	if got := broker.publishCount(); got != 0 {
		t.Errorf("publishes after stop = %d, want 0", got)
	}
}

func TestRunExitsWithinPollInterval(t *testing.T) {
	sections := testSections()
	sections[config.SectionBridge]["poll_interval"] = "10s"
	sections[config.SectionBridge]["request_timeout"] = "1s"

	src := newSource(t)
	b, err := Connect(context.Background(), &fakeBroker{}, config.FromSections(sections), Options{
		NewSource: func(string, string, time.Duration) StatusSource { return src },
	})
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- b.Run(context.Background()) }()

	for b.GetMetrics().Cycles < 1 {
		time.Sleep(time.Millisecond)
	}
	b.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run() kept waiting for the full interval after Stop")
	}
}

// TestRunStopCancelsHangingRead stops the bridge while the printer is
// holding a status request open.
func TestRunStopCancelsHangingRead(t *testing.T) {
	var hang atomic.Bool
	entered := make(chan struct{}, 3)
	release := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hang.Load() {
			entered <- struct{}{}
			select {
			case <-r.Context().Done():
			case <-release:
			}
			return
		}
		_, _ = w.Write([]byte(`{"name":"MK4"}`))
	}))
	defer srv.Close()
	defer close(release)

	sections := testSections()
	sections[config.SectionPrinter]["ip_address"] = srv.URL
	sections[config.SectionBridge]["poll_interval"] = "1s"
	sections[config.SectionBridge]["request_timeout"] = "750ms"

	broker := &fakeBroker{}
	logger := &recordingLogger{}
	b, err := Connect(context.Background(), broker, config.FromSections(sections), Options{Logger: logger})
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	hang.Store(true)

	done := make(chan error, 1)
	go func() { done <- b.Run(context.Background()) }()

	select {
	case <-entered:
	case <-time.After(time.Second):
		t.Fatal("status read never reached the printer")
	}
	time.Sleep(50 * time.Millisecond)

	start := time.Now()
	b.Stop()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not exit after Stop")
	}

	// Well under a single request timeout: the status read was cancelled and
	// the job and info reads never started.
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("Run() took %v to exit after Stop", elapsed)
	}
	if n := len(entered); n != 0 {
		t.Errorf("%d further reads started after Stop", n)
	}
	if got := broker.publishCount(); got != 0 {
		t.Errorf("publishes after stop = %d, want 0", got)
	}
	if f := b.GetMetrics().FetchFailures; f != 0 {
		t.Errorf("FetchFailures = %d, want 0 for a cancelled read", f)
	}
	if warns, errs := logger.counts(); warns != 0 || errs != 0 {
		t.Errorf("warn/error logs = %d/%d, want 0/0", warns, errs)
	}
}

// TestCycleJobNoContent runs one cycle against a printer that answers the
// job endpoint with 204.
func TestCycleJobNoContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case prusalink.PathInfo:
			_, _ = w.Write([]byte(`{"name":"MK4"}`))
		case prusalink.PathStatus:
			_, _ = w.Write([]byte(`{"printer":{"state":"IDLE","temp_nozzle":24.5,"target_nozzle":0,"temp_bed":23,"target_bed":0}}`))
		case prusalink.PathJob:
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	sections := testSections()
	sections[config.SectionPrinter]["ip_address"] = srv.URL
	sections[config.SectionBridge]["poll_interval"] = "1s"
	sections[config.SectionBridge]["request_timeout"] = "500ms"

	logger := &recordingLogger{}
	b, err := Connect(context.Background(), &fakeBroker{}, config.FromSections(sections), Options{Logger: logger})
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	c := b.fetchAll(context.Background())
	if !c.ready() {
		t.Fatal("cycle not ready with status and info present")
	}
	if c.job != nil {
		t.Errorf("job = %+v, want nil for 204", c.job)
	}
	if warns, errs := logger.counts(); warns != 0 || errs != 0 {
		t.Errorf("warn/error logs = %d/%d, want 0/0", warns, errs)
	}
	if m := b.GetMetrics(); m.FetchFailures != 0 {
		t.Errorf("FetchFailures = %d, want 0", m.FetchFailures)
	}

	snap := derive(&c, b.locations)
	if snap.Get(PrinterStatus) != Text("IDLE") {
		t.Errorf("PrinterStatus = %+v, want IDLE", snap.Get(PrinterStatus))
	}
	if snap.Get(PrinterNozzleTemp) != Number(24.5) {
		t.Errorf("PrinterNozzleTemp = %+v, want 24.5", snap.Get(PrinterNozzleTemp))
	}
	if snap.Get(JobFilamentType) != Text("") || snap.Get(JobLayerHeight) != Number(0) {
		t.Error("job signals not defaulted for 204")
	}
	if snap.Get(JobName) != Text("IDLE") {
		t.Errorf("JobName = %+v, want printer state", snap.Get(JobName))
	}
}

func TestFetchAllFailuresAreIndependent(t *testing.T) {
	src := newSource(t)
	logger := &recordingLogger{}
	b := connectTest(t, src, &fakeBroker{}, logger)

	src.mu.Lock()
	src.job = nil
	src.jobErr = prusalink.ErrUnexpectedStatus
	src.mu.Unlock()

	c := b.fetchAll(context.Background())
	if !c.ready() {
		t.Error("job failure should not block the cycle")
	}
	if warns, _ := logger.counts(); warns != 1 {
		t.Errorf("warn logs = %d, want 1", warns)
	}
	if b.GetMetrics().FetchFailures != 1 {
		t.Errorf("FetchFailures = %d, want 1", b.GetMetrics().FetchFailures)
	}
}
