package feedback

import "cuety2mqtt/internal/state"

// OptionDef describes one option of a feedback rule.
type OptionDef struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Label   string `json:"label"`
	Min     int    `json:"min,omitempty"`
	Max     int    `json:"max,omitempty"`
	Default any    `json:"default"`
}

// Definition describes a feedback kind to surfaces.
type Definition struct {
	Kind        Kind        `json:"kind"`
	Label       string      `json:"label"`
	Description string      `json:"description"`
	Options     []OptionDef `json:"options"`
}

var defaultBg = map[Kind]Color{
	BlackoutMode:   RGB(100, 255, 0),
	PlaybackButton: RGB(125, 125, 125),
	PlaybackActive: RGB(219, 126, 68),
}

var defaultFg = RGB(255, 255, 255)

// DefaultOptions returns the options a control gets when it sets none.
func DefaultOptions(kind Kind) Options {
	opts := Options{Fg: defaultFg, Bg: defaultBg[kind]}
	if kind != BlackoutMode {
		opts.Index = 1
	}
	return opts
}

// Definitions returns the schema of every feedback kind.
func Definitions() []Definition {
	colors := func(kind Kind) []OptionDef {
		return []OptionDef{
			{ID: "fg", Type: "colorpicker", Label: "Foreground color", Default: defaultFg},
			{ID: "bg", Type: "colorpicker", Label: "Background color", Default: defaultBg[kind]},
		}
	}
	index := OptionDef{ID: "index", Type: "number", Label: "Playback Index", Min: 1, Max: state.PlaybackCount, Default: 1}

	return []Definition{
		{
			Kind:        BlackoutMode,
			Label:       "Blackout is On",
			Description: "If in blackout mode, color the button",
			Options:     colors(BlackoutMode),
		},
		{
			Kind:        PlaybackButton,
			Label:       "Playback Button is pressed",
			Description: "If the playback button is pressed, change the color of the button.",
			Options:     append([]OptionDef{index}, colors(PlaybackButton)...),
		},
		{
			Kind:        PlaybackActive,
			Label:       "Playback is Active",
			Description: "If the playback is active, change the color of the button.",
			Options:     append([]OptionDef{index}, colors(PlaybackActive)...),
		},
	}
}
