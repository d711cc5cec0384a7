package feedback

import (
	"fmt"

	"cuety2mqtt/internal/state"
)

// Kind identifies a feedback rule.
type Kind string

const (
	BlackoutMode   Kind = "blackout_mode"
	PlaybackButton Kind = "playback_button"
	PlaybackActive Kind = "playback_active"
)

// Kinds lists the supported feedback kinds.
var Kinds = []Kind{BlackoutMode, PlaybackButton, PlaybackActive}

// Options are the per-control parameters of a feedback rule.
type Options struct {
	Index int   `json:"index"`
	Fg    Color `json:"fg"`
	Bg    Color `json:"bg"`
}

// Style is an override of a control's default colors.
type Style struct {
	Color   Color `json:"color"`
	BgColor Color `json:"bgcolor"`
}

// Reader is the read side of the state store.
type Reader interface {
	Get(name string) state.Value
}

// Evaluator maps store contents to style decisions. It never caches results.
type Evaluator struct {
	store Reader
}

// NewEvaluator конструктор.
func NewEvaluator(store Reader) *Evaluator {
	return &Evaluator{store: store}
}

// Evaluate returns the override style for a control and true when the
// variable behind kind reads "true"; otherwise the control keeps its default style.
func (e *Evaluator) Evaluate(kind Kind, opts Options) (Style, bool) {
	name, ok := variableFor(kind, opts.Index)
	if !ok {
		return Style{}, false
	}
	// Text comparison: the value may be a boolean or the string form of one.
	if e.store.Get(name).String() != "true" {
		return Style{}, false
	}
	return Style{Color: opts.Fg, BgColor: opts.Bg}, true
}

func variableFor(kind Kind, index int) (string, bool) {
	switch kind {
	case BlackoutMode:
		return state.BlackoutMode, true
	case PlaybackButton:
		return state.PlaybackName(state.Button, index), true
	case PlaybackActive:
		return state.PlaybackName(state.Active, index), true
	}
	return "", false
}

// ValidKind reports whether kind is a supported feedback kind.
func ValidKind(kind Kind) bool {
	for _, k := range Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// CheckOptions validates options for kind.
func CheckOptions(kind Kind, opts Options) error {
	if !ValidKind(kind) {
		return fmt.Errorf("unknown feedback kind %q", kind)
	}
	if kind != BlackoutMode && (opts.Index < 1 || opts.Index > state.PlaybackCount) {
		return fmt.Errorf("feedback %s: index %d out of range 1..%d", kind, opts.Index, state.PlaybackCount)
	}
	return nil
}
