package feedback

import (
	"fmt"
	"strconv"
	"strings"
)

// Color is a 24-bit RGB value packed as 0xRRGGBB.
type Color uint32

// RGB packs the three components.
func RGB(r, g, b uint8) Color {
	return Color(uint32(r)<<16 | uint32(g)<<8 | uint32(b))
}

// ParseColor accepts "#RRGGBB" or a decimal packed value.
func ParseColor(s string) (Color, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "#") {
		if len(s) != 7 {
			return 0, fmt.Errorf("color %q: want #RRGGBB", s)
		}
		v, err := strconv.ParseUint(s[1:], 16, 32)
		if err != nil {
			return 0, fmt.Errorf("color %q: %w", s, err)
		}
		return Color(v), nil
	}
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("color %q: %w", s, err)
	}
	if v > 0xFFFFFF {
		return 0, fmt.Errorf("color %q: out of range", s)
	}
	return Color(v), nil
}

func (c Color) String() string {
	return fmt.Sprintf("#%06X", uint32(c))
}

func (c Color) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Color) UnmarshalText(text []byte) error {
	v, err := ParseColor(string(text))
	if err != nil {
		return err
	}
	*c = v
	return nil
}
