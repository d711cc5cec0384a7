// Package bridge keeps the local mirror of the console state. Every mutation
// (received datagram, poll tick, action, release timer, reconfiguration) runs
// on one goroutine, so the loop-owned fields need no locking.
package bridge

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"cuety2mqtt/internal/actions"
	"cuety2mqtt/internal/config"
	"cuety2mqtt/internal/feedback"
	"cuety2mqtt/internal/logger"
	"cuety2mqtt/internal/protocol"
	"cuety2mqtt/internal/state"
	"cuety2mqtt/internal/udp"
	"github.com/benbjohnson/clock"
)

// PollInterval is the period of the full-state refresh.
const PollInterval = 1000 * time.Millisecond

// ErrStopped is returned when the loop is not running.
var ErrStopped = errors.New("bridge stopped")

// Transport is the outbound datagram link to the console.
type Transport interface {
	Send(msg string)
	Close() error
}

// Dialer creates a transport for host:port.
type Dialer func(host, port string, h udp.Handlers) (Transport, error)

// StatusSink receives transport health changes.
type StatusSink interface {
	PublishStatus(status udp.Status, message string)
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithDialer replaces the UDP transport.
func WithDialer(d Dialer) Option {
	return func(b *Bridge) { b.dial = d }
}

// WithClock replaces the wall clock.
func WithClock(c clock.Clock) Option {
	return func(b *Bridge) { b.clock = c }
}

// Bridge связывает пульт с поверхностями управления.
type Bridge struct {
	log      logger.Logger
	store    *state.Store
	checker  *feedback.Checker
	dispatch *actions.Dispatcher
	dial     Dialer
	clock    clock.Clock

	events  chan func()
	done    chan struct{}
	cancel  context.CancelFunc
	started atomic.Bool

	// Owned by the loop goroutine.
	device    config.DeviceConf
	transport Transport
	ticker    *clock.Ticker
	pollC     <-chan time.Time
	timers    map[*pending]struct{}

	// gen identifies the current transport; events of replaced ones are dropped.
	gen atomic.Uint64

	statusMu    sync.RWMutex
	status      udp.Status
	statusMsg   string
	statusSinks []StatusSink
}

type pending struct {
	timer *clock.Timer
}

// NewBridge конструктор.
func NewBridge(log logger.Logger, store *state.Store, checker *feedback.Checker, opts ...Option) *Bridge {
	b := &Bridge{
		log:     log,
		store:   store,
		checker: checker,
		clock:   clock.New(),
		events:  make(chan func(), 256),
		done:    make(chan struct{}),
		timers:  make(map[*pending]struct{}),
		status:  udp.StatusUnknown,
	}
	b.dial = func(host, port string, h udp.Handlers) (Transport, error) {
		return udp.Dial(log, host, port, h)
	}
	for _, opt := range opts {
		opt(b)
	}
	b.dispatch = actions.NewDispatcher(log, store, senderFunc(b.send), schedulerFunc(b.after))
	return b
}

type senderFunc func(cmd string)

func (f senderFunc) Send(cmd string) { f(cmd) }

type schedulerFunc func(d time.Duration, fn func())

func (f schedulerFunc) After(d time.Duration, fn func()) { f(d, fn) }

// AddStatusSink registers s for status changes. Call before Start.
func (b *Bridge) AddStatusSink(s StatusSink) {
	b.statusMu.Lock()
	defer b.statusMu.Unlock()
	b.statusSinks = append(b.statusSinks, s)
}

// Start runs the loop and applies the initial device configuration.
func (b *Bridge) Start(ctx context.Context, device config.DeviceConf) error {
	if b.started.Swap(true) {
		return errors.New("bridge already started")
	}
	ctx, b.cancel = context.WithCancel(ctx)
	go b.run(ctx)
	return b.post(func() { b.configure(device) })
}

// Stop cancels the poll timer and pending releases, closes the transport and
// waits for the loop to exit.
func (b *Bridge) Stop() {
	if !b.started.Load() {
		return
	}
	b.cancel()
	<-b.done
}

// Reconfigure replaces the transport and restarts polling for device.
func (b *Bridge) Reconfigure(device config.DeviceConf) error {
	return b.post(func() { b.configure(device) })
}

// Dispatch runs an already validated action on the loop.
func (b *Bridge) Dispatch(a actions.Action) error {
	return b.post(func() { b.dispatch.Dispatch(a) })
}

// Sync waits until every event posted before it has run.
func (b *Bridge) Sync() error {
	ran := make(chan struct{})
	if err := b.post(func() { close(ran) }); err != nil {
		return err
	}
	select {
	case <-ran:
		return nil
	case <-b.done:
		return ErrStopped
	}
}

// Status returns the last reported transport health.
func (b *Bridge) Status() (udp.Status, string) {
	b.statusMu.RLock()
	defer b.statusMu.RUnlock()
	return b.status, b.statusMsg
}

func (b *Bridge) post(fn func()) error {
	select {
	case <-b.done:
		return ErrStopped
	default:
	}
	select {
	case b.events <- fn:
		return nil
	case <-b.done:
		return ErrStopped
	}
}

func (b *Bridge) run(ctx context.Context) {
	defer close(b.done)
	for {
		select {
		case <-ctx.Done():
			b.teardown()
			return
		case fn := <-b.events:
			fn()
		case <-b.pollC:
			b.poll()
		}
	}
}

func (b *Bridge) configure(device config.DeviceConf) {
	b.stopPolling()
	b.closeTransport()

	b.device = device
	b.store.Reset()
	b.checker.CheckAll()

	if device.Host == "" {
		b.log.With(logger.Fields{"module": "bridge"}).Warn("no device host configured, commands will be dropped")
		b.setStatus(b.gen.Load(), udp.StatusUnknown, "no host configured")
	} else {
		gen := b.gen.Add(1)
		t, err := b.dial(device.Host, device.Port, udp.Handlers{
			OnData: func(data []byte) {
				line := string(data)
				_ = b.post(func() {
					if gen == b.gen.Load() {
						b.handleStatus(line)
					}
				})
			},
			OnStatus: func(s udp.Status, msg string) {
				b.setStatus(gen, s, msg)
			},
		})
		if err != nil {
			b.log.With(logger.Fields{"module": "bridge"}).Errorf("failed to open transport: %v", err)
			b.setStatus(gen, udp.StatusError, err.Error())
		} else {
			b.transport = t
			b.send(protocol.Hello)
			b.sendAll(protocol.BulkQueries())
		}
	}

	if device.Poll {
		b.ticker = b.clock.Ticker(PollInterval)
		b.pollC = b.ticker.C
	}
}

func (b *Bridge) teardown() {
	b.stopPolling()
	for p := range b.timers {
		p.timer.Stop()
		delete(b.timers, p)
	}
	b.closeTransport()
}

func (b *Bridge) stopPolling() {
	if b.ticker != nil {
		b.ticker.Stop()
		b.ticker = nil
	}
	b.pollC = nil
}

func (b *Bridge) closeTransport() {
	if b.transport == nil {
		return
	}
	b.gen.Add(1)
	if err := b.transport.Close(); err != nil {
		b.log.With(logger.Fields{"module": "bridge"}).Warnf("closing transport: %v", err)
	}
	b.transport = nil
}

func (b *Bridge) poll() {
	b.log.With(logger.Fields{"module": "bridge"}).Trace("polling device state")
	b.sendAll(protocol.BulkQueries())
}

// handleStatus applies one inbound message. Malformed input is logged and
// leaves the store as it was.
func (b *Bridge) handleStatus(line string) {
	msg, err := protocol.Parse(line)
	if err != nil {
		b.log.With(logger.Fields{"module": "bridge"}).Warnf("unexpected response in data: %v", err)
		return
	}
	for _, u := range msg.Updates {
		b.store.Set(u.Name, u.Value)
	}
	if len(msg.Feedbacks) > 0 {
		b.checker.Check(msg.Feedbacks...)
	}
}

func (b *Bridge) send(cmd string) {
	if b.transport == nil {
		b.log.With(logger.Fields{"module": "bridge"}).Debugf("no transport, dropping %q", cmd)
		return
	}
	b.log.With(logger.Fields{"module": "bridge"}).Debugf("sending %q to %s", cmd, b.device.Host)
	b.transport.Send(cmd)
}

func (b *Bridge) sendAll(cmds []string) {
	for _, cmd := range cmds {
		b.send(cmd)
	}
}

// after schedules fn on the loop. Pending entries are cancelled by teardown.
func (b *Bridge) after(d time.Duration, fn func()) {
	p := &pending{}
	b.timers[p] = struct{}{}
	p.timer = b.clock.AfterFunc(d, func() {
		_ = b.post(func() {
			if _, ok := b.timers[p]; !ok {
				return
			}
			delete(b.timers, p)
			fn()
		})
	})
}

func (b *Bridge) setStatus(gen uint64, s udp.Status, msg string) {
	if gen != b.gen.Load() {
		return
	}
	b.statusMu.Lock()
	changed := b.status != s || b.statusMsg != msg
	b.status, b.statusMsg = s, msg
	sinks := b.statusSinks
	b.statusMu.Unlock()

	if !changed {
		return
	}
	entry := b.log.With(logger.Fields{"module": "bridge", "status": s})
	if s == udp.StatusError {
		entry.Errorf("transport status changed: %s", msg)
	} else {
		entry.Infof("transport status changed %s", msg)
	}
	for _, sink := range sinks {
		sink.PublishStatus(s, msg)
	}
}
