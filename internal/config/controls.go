package config

import (
	"fmt"

	"cuety2mqtt/internal/feedback"
)

// Controls converts the [[feedback]] tables, filling default colors.
func (c *Config) Controls() ([]feedback.Control, error) {
	controls := make([]feedback.Control, 0, len(c.Feedback))
	seen := make(map[string]bool, len(c.Feedback))
	for i, fc := range c.Feedback {
		kind := feedback.Kind(fc.Kind)
		if !feedback.ValidKind(kind) {
			return nil, fmt.Errorf("feedback #%d: unknown kind %q", i+1, fc.Kind)
		}
		if fc.Control == "" {
			return nil, fmt.Errorf("feedback #%d: control name is required", i+1)
		}
		if seen[fc.Control] {
			return nil, fmt.Errorf("feedback #%d: duplicate control %q", i+1, fc.Control)
		}
		seen[fc.Control] = true

		opts := feedback.DefaultOptions(kind)
		if fc.Index != 0 {
			opts.Index = fc.Index
		}
		if fc.Fg != "" {
			col, err := feedback.ParseColor(fc.Fg)
			if err != nil {
				return nil, fmt.Errorf("feedback %s: fg: %w", fc.Control, err)
			}
			opts.Fg = col
		}
		if fc.Bg != "" {
			col, err := feedback.ParseColor(fc.Bg)
			if err != nil {
				return nil, fmt.Errorf("feedback %s: bg: %w", fc.Control, err)
			}
			opts.Bg = col
		}
		if err := feedback.CheckOptions(kind, opts); err != nil {
			return nil, fmt.Errorf("feedback %s: %w", fc.Control, err)
		}
		controls = append(controls, feedback.Control{Name: fc.Control, Kind: kind, Options: opts})
	}
	return controls, nil
}
