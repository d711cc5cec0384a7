package bridge

import (
	"context"
	"net"
	"reflect"
	"strconv"
	"sync"
	"testing"
	"time"

	"cuety2mqtt/internal/actions"
	"cuety2mqtt/internal/config"
	"cuety2mqtt/internal/feedback"
	"cuety2mqtt/internal/logger"
	"cuety2mqtt/internal/state"
	"cuety2mqtt/internal/udp"
	"github.com/benbjohnson/clock"
)

type fakeTransport struct {
	mu       sync.Mutex
	host     string
	sent     []string
	closed   bool
	handlers udp.Handlers
}

func (t *fakeTransport) Send(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = append(t.sent, msg)
}

func (t *fakeTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

func (t *fakeTransport) Sent() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.sent...)
}

func (t *fakeTransport) reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = nil
}

type fakeNet struct {
	mu         sync.Mutex
	transports []*fakeTransport
}

func (n *fakeNet) dial(host, _ string, h udp.Handlers) (Transport, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	t := &fakeTransport{host: host, handlers: h}
	n.transports = append(n.transports, t)
	if h.OnStatus != nil {
		h.OnStatus(udp.StatusOK, "")
	}
	return t, nil
}

func (n *fakeNet) last() *fakeTransport {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.transports) == 0 {
		return nil
	}
	return n.transports[len(n.transports)-1]
}

type recordSink struct {
	mu  sync.Mutex
	got map[string]bool
}

func (r *recordSink) PublishFeedback(c feedback.Control, _ feedback.Style, override bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got[c.Name] = override
}

func (r *recordSink) override(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.got[name]
}

type fixture struct {
	bridge *Bridge
	store  *state.Store
	clock  *clock.Mock
	net    *fakeNet
	sink   *recordSink
}

var startupSequence = []string{"hello", "pbxx/int", "pbxx/spd", "pbxx/cue", "pbxx/ac"}

func setup(t *testing.T, device config.DeviceConf) *fixture {
	t.Helper()
	f := &fixture{
		store: state.NewStore(),
		clock: clock.NewMock(),
		net:   &fakeNet{},
		sink:  &recordSink{got: map[string]bool{}},
	}
	checker := feedback.NewChecker(feedback.NewEvaluator(f.store), []feedback.Control{
		{Name: "active10", Kind: feedback.PlaybackActive, Options: feedback.Options{Index: 10}},
		{Name: "blackout", Kind: feedback.BlackoutMode},
	}, f.sink)
	f.bridge = NewBridge(logger.Discard(), f.store, checker, WithClock(f.clock), WithDialer(f.net.dial))
	if err := f.bridge.Start(context.Background(), device); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(f.bridge.Stop)
	f.sync(t)
	return f
}

func (f *fixture) sync(t *testing.T) {
	t.Helper()
	if err := f.bridge.Sync(); err != nil {
		t.Fatal(err)
	}
}

func (f *fixture) receive(t *testing.T, line string) {
	t.Helper()
	f.net.last().handlers.OnData([]byte(line))
	f.sync(t)
}

func (f *fixture) dispatch(t *testing.T, id string, opts actions.Options) {
	t.Helper()
	if err := f.bridge.Dispatch(actions.Action{ID: id, Options: opts}); err != nil {
		t.Fatal(err)
	}
	f.sync(t)
}

// waitSent waits for the transport to hold n messages. Mock timers and
// ticks reach the loop from other goroutines.
func (f *fixture) waitSent(t *testing.T, tr *fakeTransport, n int) []string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		f.sync(t)
		got := tr.Sent()
		if len(got) >= n || time.Now().After(deadline) {
			return got
		}
		time.Sleep(time.Millisecond)
	}
}

var device = config.DeviceConf{Host: "10.0.0.5", Port: "7000", Poll: true}

func TestStartSendsHelloAndBulkQueries(t *testing.T) {
	f := setup(t, device)

	if got := f.net.last().Sent(); !reflect.DeepEqual(got, startupSequence) {
		t.Fatalf("got %v", got)
	}
	if s, _ := f.bridge.Status(); s != udp.StatusOK {
		t.Errorf("got status %s", s)
	}
}

func TestPollTickSendsBulkQueries(t *testing.T) {
	f := setup(t, device)
	tr := f.net.last()
	tr.reset()

	f.clock.Add(PollInterval - time.Millisecond)
	f.sync(t)
	if got := tr.Sent(); len(got) != 0 {
		t.Fatalf("polled early: %v", got)
	}

	queries := startupSequence[1:]
	f.clock.Add(time.Millisecond)
	f.waitSent(t, tr, len(queries))
	f.clock.Add(PollInterval)
	got := f.waitSent(t, tr, 2*len(queries))

	want := append(append([]string{}, queries...), queries...)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v", got)
	}
}

func TestPollDisabled(t *testing.T) {
	f := setup(t, config.DeviceConf{Host: "10.0.0.5", Port: "7000"})
	tr := f.net.last()
	tr.reset()

	f.clock.Add(PollInterval)
	f.clock.Add(PollInterval)
	f.sync(t)
	if got := tr.Sent(); len(got) != 0 {
		t.Fatalf("got %v", got)
	}
	if f.bridge.ticker != nil {
		t.Error("poll ticker created")
	}
}

func TestControlPlaybackGo(t *testing.T) {
	tests := []struct {
		action string
		delay  time.Duration
	}{
		{actions.ControlPlaybackGo, 500 * time.Millisecond},
		{actions.ControlPlaybackRelease, 1000 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.action, func(t *testing.T) {
			// Polling off: the 1000 ms release would coincide with a poll tick.
			f := setup(t, config.DeviceConf{Host: "10.0.0.5", Port: "7000"})
			tr := f.net.last()
			tr.reset()

			f.dispatch(t, tt.action, actions.Options{"index": "5"})
			if got := tr.Sent(); !reflect.DeepEqual(got, []string{"pb05/bu=1"}) {
				t.Fatalf("got %v after press", got)
			}

			f.clock.Add(tt.delay - time.Millisecond)
			f.sync(t)
			if got := tr.Sent(); len(got) != 1 {
				t.Fatalf("released early: %v", got)
			}

			f.clock.Add(time.Millisecond)
			if got := f.waitSent(t, tr, 2); !reflect.DeepEqual(got, []string{"pb05/bu=1", "pb05/bu=0"}) {
				t.Fatalf("got %v after release", got)
			}
		})
	}
}

func TestImmediateActions(t *testing.T) {
	f := setup(t, device)
	tr := f.net.last()
	tr.reset()

	f.dispatch(t, actions.SetIntensity, actions.Options{"index": "1", "intensity": "50"})
	f.dispatch(t, actions.ControlPlaybackButtonOn, actions.Options{"index": "5"})
	f.dispatch(t, actions.SetAllIntensity, actions.Options{"intensity": "1.0"})
	f.dispatch(t, "does_not_exist", actions.Options{"index": "1"})

	want := []string{"pb01/in=50", "pb5/bu=1", "pbxx/int=1.0"}
	if got := tr.Sent(); !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v", got)
	}
}

func TestToggleBlackoutFollowsDevice(t *testing.T) {
	f := setup(t, device)
	tr := f.net.last()

	f.receive(t, "blackout=0")
	f.dispatch(t, actions.ToggleBlackout, nil)
	f.receive(t, "blackout=1")
	f.dispatch(t, actions.ToggleBlackout, nil)

	sent := tr.Sent()
	got := sent[len(sent)-2:]
	if !reflect.DeepEqual(got, []string{"blackout=1", "blackout=0"}) {
		t.Fatalf("got %v", got)
	}
	if !f.sink.override("blackout") {
		t.Error("blackout feedback not re-checked")
	}
}

func TestNoHostDropsCommands(t *testing.T) {
	f := setup(t, config.DeviceConf{Port: "7000", Poll: true})

	f.dispatch(t, actions.SetIntensity, actions.Options{"index": "1", "intensity": "50"})
	f.dispatch(t, actions.ControlPlaybackGo, actions.Options{"index": "1"})
	f.clock.Add(time.Second)
	f.clock.Add(PollInterval)
	f.sync(t)

	if f.net.last() != nil {
		t.Fatal("transport created without a host")
	}
	if s, _ := f.bridge.Status(); s != udp.StatusUnknown {
		t.Errorf("got status %s", s)
	}
}

func TestInboundUpdatesStoreAndFeedback(t *testing.T) {
	f := setup(t, device)

	f.receive(t, "pb10/ac=1")
	if got := f.store.Get("playback_active_10").String(); got != "true" {
		t.Fatalf("got %q", got)
	}
	if !f.sink.override("active10") {
		t.Error("feedback not re-checked")
	}

	f.receive(t, "pbxx/all/ac=[0,0,0,0,0,0,0,0,0,0]")
	if f.sink.override("active10") {
		t.Error("bulk update not re-checked")
	}
}

func TestMalformedInboundKeepsState(t *testing.T) {
	f := setup(t, device)
	f.receive(t, "pb01/in=40")

	f.receive(t, "pb01/in=")
	f.receive(t, "pbzz/in=3")

	if got := f.store.Get("playback_intensity_1").String(); got != "40" {
		t.Fatalf("got %q", got)
	}
}

func TestReconfigureReplacesTransport(t *testing.T) {
	f := setup(t, device)
	first := f.net.last()
	f.receive(t, "pb02/cue=7")

	if err := f.bridge.Reconfigure(config.DeviceConf{Host: "10.0.0.6", Port: "7000"}); err != nil {
		t.Fatal(err)
	}
	f.sync(t)

	second := f.net.last()
	if second == first || second.host != "10.0.0.6" {
		t.Fatal("transport not replaced")
	}
	if !first.closed {
		t.Error("old transport not closed")
	}
	if !reflect.DeepEqual(second.Sent(), startupSequence) {
		t.Errorf("got %v", second.Sent())
	}
	if got := f.store.Get("playback_cue_2").String(); got != "" {
		t.Errorf("store not reset: %q", got)
	}
	f.clock.Add(PollInterval)
	f.clock.Add(PollInterval)
	f.sync(t)
	if n := len(second.Sent()); n != len(startupSequence) {
		t.Errorf("polling restarted with poll=false: %v", second.Sent())
	}
	if n := len(first.Sent()); n != len(startupSequence) {
		t.Errorf("old poll ticker still running: %v", first.Sent())
	}

	// Datagrams of the replaced transport are ignored.
	first.handlers.OnData([]byte("pb02/cue=9"))
	f.sync(t)
	if got := f.store.Get("playback_cue_2").String(); got != "" {
		t.Errorf("stale datagram applied: %q", got)
	}
}

func TestStopCancelsPendingRelease(t *testing.T) {
	f := setup(t, device)
	tr := f.net.last()
	f.dispatch(t, actions.ControlPlaybackGo, actions.Options{"index": "3"})

	f.bridge.Stop()

	if !tr.closed {
		t.Error("transport not closed")
	}
	if n := len(f.bridge.timers); n != 0 {
		t.Errorf("%d pending releases not cancelled", n)
	}
	f.clock.Add(time.Second)
	if got := tr.Sent(); got[len(got)-1] != "pb03/bu=1" {
		t.Errorf("release sent after stop: %v", got)
	}
	if err := f.bridge.Dispatch(actions.Action{ID: actions.ReleaseAll}); err != ErrStopped {
		t.Errorf("got %v, want ErrStopped", err)
	}
}

func TestLoopbackConsole(t *testing.T) {
	console, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatal(err)
	}
	defer console.Close()
	port := strconv.Itoa(console.LocalAddr().(*net.UDPAddr).Port)

	store := state.NewStore()
	b := NewBridge(logger.Discard(), store, feedback.NewChecker(feedback.NewEvaluator(store), nil))
	if err := b.Start(context.Background(), config.DeviceConf{Host: "127.0.0.1", Port: port}); err != nil {
		t.Fatal(err)
	}
	defer b.Stop()

	console.SetReadDeadline(time.Now().Add(5 * time.Second))
	buf := make([]byte, 128)
	var from *net.UDPAddr
	for i, want := range startupSequence {
		n, addr, err := console.ReadFromUDP(buf)
		if err != nil {
			t.Fatalf("datagram %d: %v", i, err)
		}
		if string(buf[:n]) != want {
			t.Fatalf("datagram %d: got %q, want %q", i, buf[:n], want)
		}
		from = addr
	}

	if _, err := console.WriteToUDP([]byte("pbxx/all/intensity=[10,20,30]"), from); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for store.Get("playback_intensity_3").String() != "30" {
		if time.Now().After(deadline) {
			t.Fatal("bulk reply not applied")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if got := store.Get("playback_intensity_1").String(); got != "10" {
		t.Errorf("got %q", got)
	}
}
