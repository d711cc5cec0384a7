package actions

import (
	"time"

	"cuety2mqtt/internal/logger"
	"cuety2mqtt/internal/protocol"
	"cuety2mqtt/internal/state"
)

// Press/release delays of the timed button actions.
const (
	GoReleaseDelay      = 500 * time.Millisecond
	ReleaseReleaseDelay = 1000 * time.Millisecond
)

// Sender transmits one command. Implementations drop the command when no
// transport is available.
type Sender interface {
	Send(cmd string)
}

// Scheduler runs fn once after d on the caller's event loop.
type Scheduler interface {
	After(d time.Duration, fn func())
}

// Reader is the read side of the state store.
type Reader interface {
	Get(name string) state.Value
}

// Dispatcher turns actions into console commands.
type Dispatcher struct {
	log    logger.Logger
	store  Reader
	sender Sender
	sched  Scheduler
}

// NewDispatcher конструктор.
func NewDispatcher(log logger.Logger, store Reader, sender Sender, sched Scheduler) *Dispatcher {
	return &Dispatcher{log: log, store: store, sender: sender, sched: sched}
}

// Dispatch sends the command for a. Options are expected to be validated
// already; unknown action ids send nothing.
func (d *Dispatcher) Dispatch(a Action) {
	switch a.ID {
	case ControlPlaybackGo:
		d.pressRelease(a.Options.Int("index"), GoReleaseDelay)
		return
	case ControlPlaybackRelease:
		d.pressRelease(a.Options.Int("index"), ReleaseReleaseDelay)
		return
	}

	cmd, ok := Command(a, d.store)
	if !ok {
		d.log.With(logger.Fields{"module": "actions"}).Debugf("no command for action %q", a.ID)
		return
	}
	d.send(cmd)
}

func (d *Dispatcher) pressRelease(index int, delay time.Duration) {
	d.send(protocol.Press(index))
	d.sched.After(delay, func() {
		d.send(protocol.Release(index))
	})
}

func (d *Dispatcher) send(cmd string) {
	d.log.With(logger.Fields{"module": "actions"}).Debugf("sending %q", cmd)
	d.sender.Send(cmd)
}

// Command builds the single command of an immediate action. The timed
// press/release actions and unknown ids report false.
func Command(a Action, store Reader) (string, bool) {
	opt := a.Options
	idx := opt.Int("index")

	switch a.ID {
	case SetIntensity:
		return protocol.SetIntensity(idx, opt["intensity"]), true
	case IncrementIntensity:
		return protocol.IncrementIntensity(idx, opt["intensity"]), true
	case DecrementIntensity:
		return protocol.DecrementIntensity(idx, opt["intensity"]), true
	case SetSpeed:
		return protocol.SetSpeed(idx, opt["speed"]), true
	case IncrementSpeed:
		return protocol.IncrementSpeed(idx, opt["speed"]), true
	case DecrementSpeed:
		return protocol.DecrementSpeed(idx, opt["speed"]), true
	case ControlPlaybackButtonOn:
		return protocol.ButtonOn(idx), true
	case ControlPlaybackButtonOff:
		return protocol.ButtonOff(idx), true
	case ControlPlaybackFlash:
		return protocol.Flash(idx), true
	case ReleasePlayback:
		return protocol.ReleasePlayback(idx), true
	case PlaybackGoForward:
		return protocol.GoForward(idx), true
	case PlaybackGoBack:
		return protocol.GoBack(idx), true
	case PlaybackJump:
		return protocol.Jump(idx, opt["value"]), true
	case SetAllIntensity:
		return protocol.SetAllIntensity(opt["intensity"]), true
	case SetAllSpeed:
		return protocol.SetAllSpeed(opt["speed"]), true
	case ReleaseAll:
		return protocol.ReleaseAll(), true
	case SetBlackout:
		return protocol.SetBlackout(opt["blackout"]), true
	case ToggleBlackout:
		return protocol.ToggleBlackout(store.Get(state.BlackoutMode)), true
	}
	return "", false
}
