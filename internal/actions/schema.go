package actions

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"cuety2mqtt/internal/state"
)

// Action identifiers.
const (
	SetIntensity             = "set_intensity"
	IncrementIntensity       = "increment_intensity"
	DecrementIntensity       = "decrement_intensity"
	SetSpeed                 = "set_speed"
	IncrementSpeed           = "increment_speed"
	DecrementSpeed           = "decrement_speed"
	ControlPlaybackButtonOn  = "control_playback_button_on"
	ControlPlaybackButtonOff = "control_playback_button_off"
	ControlPlaybackGo        = "control_playback_go"
	ControlPlaybackRelease   = "control_playback_release"
	ControlPlaybackFlash     = "control_playback_flash"
	ReleasePlayback          = "release_playback"
	PlaybackGoForward        = "playback_goforward"
	PlaybackGoBack           = "playback_goback"
	PlaybackJump             = "playback_jump"
	SetAllIntensity          = "set_all_intensity"
	SetAllSpeed              = "set_all_speed"
	ReleaseAll               = "release_all"
	SetBlackout              = "set_blackout"
	ToggleBlackout           = "toggle_blackout"
)

var (
	ErrUnknownAction = errors.New("unknown action")
	ErrInvalidOption = errors.New("invalid option")
)

// Option types.
const (
	Number   = "number"
	Dropdown = "dropdown"
)

// Choice is one entry of a dropdown option.
type Choice struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// OptionDef declares one option of an action.
type OptionDef struct {
	ID      string   `json:"id"`
	Type    string   `json:"type"`
	Label   string   `json:"label"`
	Min     float64  `json:"min,omitempty"`
	Max     float64  `json:"max,omitempty"`
	Step    float64  `json:"step,omitempty"`
	Default string   `json:"default"`
	Choices []Choice `json:"choices,omitempty"`
}

// Definition declares an action kind.
type Definition struct {
	ID      string      `json:"id"`
	Label   string      `json:"label"`
	Options []OptionDef `json:"options"`
}

func index() OptionDef {
	return OptionDef{ID: "index", Type: Number, Label: "Playback Index", Min: 1, Max: state.PlaybackCount, Step: 1, Default: "1"}
}

func number(id, label string, min, max, step float64, def string) OptionDef {
	return OptionDef{ID: id, Type: Number, Label: label, Min: min, Max: max, Step: step, Default: def}
}

var definitions = []Definition{
	{SetIntensity, "Set Playback Intensity", []OptionDef{index(), number("intensity", "Intensity", 1, 100, 1, "50")}},
	{IncrementIntensity, "Increment Playback Intensity", []OptionDef{index(), number("intensity", "Intensity Increment Amount", -100, 100, 1, "10")}},
	{DecrementIntensity, "Decrement Playback Intensity", []OptionDef{index(), number("intensity", "Intensity Decrement Amount", -100, 100, 1, "10")}},
	{SetSpeed, "Set Playback Speed", []OptionDef{index(), number("speed", "Speed", -100, 100, 1, "10")}},
	{IncrementSpeed, "Increment Playback Speed", []OptionDef{index(), number("speed", "Increment Speed", -100, 100, 1, "10")}},
	{DecrementSpeed, "Decrement Playback Speed", []OptionDef{index(), number("speed", "Decrement Speed", -100, 100, 1, "10")}},
	{ControlPlaybackButtonOn, "Control Playback Button On", []OptionDef{index()}},
	{ControlPlaybackButtonOff, "Control Playback Button Off", []OptionDef{index()}},
	{ControlPlaybackGo, "Control Playback Button (Go)", []OptionDef{index()}},
	{ControlPlaybackRelease, "Control Playback Button (Release)", []OptionDef{index()}},
	{ControlPlaybackFlash, "Control Playback Flash", []OptionDef{index()}},
	{ReleasePlayback, "Release Playback", []OptionDef{index()}},
	{PlaybackGoForward, "Playback Go Forward", []OptionDef{index()}},
	{PlaybackGoBack, "Playback Go Back", []OptionDef{index()}},
	{PlaybackJump, "Playback Jump", []OptionDef{index(), number("value", "Value", 1, 48, 1, "1")}},
	{SetAllIntensity, "Set All Intensity", []OptionDef{number("intensity", "Intensity", 0, 1, 0.1, "1.0")}},
	{SetAllSpeed, "Set All Speed", []OptionDef{number("speed", "Speed", -1, 1, 0.1, "0.0")}},
	{ReleaseAll, "Release All Playbacks", nil},
	{SetBlackout, "Set Blackout On/Off", []OptionDef{{
		ID: "blackout", Type: Dropdown, Label: "On/Off", Default: "1",
		Choices: []Choice{{ID: "0", Label: "Off"}, {ID: "1", Label: "On"}},
	}}},
	{ToggleBlackout, "Toggle Blackout On/Off", nil},
}

// Definitions returns every declared action kind.
func Definitions() []Definition {
	return definitions
}

// Lookup returns the definition of id.
func Lookup(id string) (Definition, bool) {
	for _, d := range definitions {
		if d.ID == id {
			return d, true
		}
	}
	return Definition{}, false
}

// Validate checks an action against its declared schema and fills defaults
// for options the caller left out. Unknown option ids are dropped.
func Validate(a Action) (Action, error) {
	def, ok := Lookup(a.ID)
	if !ok {
		return a, fmt.Errorf("%w: %q", ErrUnknownAction, a.ID)
	}
	out := Action{ID: a.ID, Options: make(Options, len(def.Options))}
	for _, od := range def.Options {
		v, ok := a.Options[od.ID]
		v = strings.TrimSpace(v)
		if !ok || v == "" {
			out.Options[od.ID] = od.Default
			continue
		}
		if err := od.check(v); err != nil {
			return a, fmt.Errorf("%s: %w", a.ID, err)
		}
		out.Options[od.ID] = v
	}
	return out, nil
}

// decimal is the only number form the console accepts. Values are sent as
// written, so only plain decimals without leading zeros pass.
var decimal = regexp.MustCompile(`^-?(0|[1-9][0-9]*)(\.[0-9]+)?$`)

func (od OptionDef) check(v string) error {
	switch od.Type {
	case Dropdown:
		for _, c := range od.Choices {
			if c.ID == v {
				return nil
			}
		}
		return fmt.Errorf("%w: %s=%q is not a choice", ErrInvalidOption, od.ID, v)
	case Number:
		if !decimal.MatchString(v) {
			return fmt.Errorf("%w: %s=%q is not a decimal number", ErrInvalidOption, od.ID, v)
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not a number", ErrInvalidOption, od.ID, v)
		}
		if f < od.Min || f > od.Max {
			return fmt.Errorf("%w: %s=%s outside %g..%g", ErrInvalidOption, od.ID, v, od.Min, od.Max)
		}
		if od.Step == 1 && f != math.Trunc(f) {
			return fmt.Errorf("%w: %s=%s is not a whole number", ErrInvalidOption, od.ID, v)
		}
	}
	return nil
}
