package actions

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Options is the option bag of an action, keyed by option id. Values are kept
// as the literal text the caller supplied so numbers reach the console unchanged.
type Options map[string]string

// UnmarshalJSON accepts strings, numbers and booleans as option values.
func (o *Options) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Options, len(raw))
	for k, v := range raw {
		v = bytes.TrimSpace(v)
		if len(v) > 0 && v[0] == '"' {
			var s string
			if err := json.Unmarshal(v, &s); err != nil {
				return fmt.Errorf("option %s: %w", k, err)
			}
			out[k] = s
			continue
		}
		if bytes.Equal(v, []byte("null")) {
			continue
		}
		if len(v) > 0 && (v[0] == '{' || v[0] == '[') {
			return fmt.Errorf("option %s: unsupported value %s", k, v)
		}
		out[k] = string(v)
	}
	*o = out
	return nil
}

// Int returns the option as an integer, 0 when absent or not numeric.
func (o Options) Int(id string) int {
	s := o[id]
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int(f)
	}
	return 0
}

// Action is a logical user action with its options.
type Action struct {
	ID      string  `json:"action"`
	Options Options `json:"options"`
}
