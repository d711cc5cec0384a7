package state

import (
	"encoding/json"
	"strconv"
)

type valueKind uint8

const (
	kindString valueKind = iota
	kindBool
)

// Value is the last known value of a variable: either text or a boolean.
type Value struct {
	kind valueKind
	text string
	b    bool
}

// String builds a text value.
func String(s string) Value {
	return Value{kind: kindString, text: s}
}

// Bool builds a boolean value.
func Bool(b bool) Value {
	return Value{kind: kindBool, b: b}
}

// Empty is the value every variable holds before the device reports anything.
var Empty = String("")

// IsBool reports whether the value was stored as a boolean.
func (v Value) IsBool() bool {
	return v.kind == kindBool
}

// String returns the text form; booleans render as "true"/"false".
func (v Value) String() string {
	if v.kind == kindBool {
		return strconv.FormatBool(v.b)
	}
	return v.text
}

// MarshalJSON keeps booleans as JSON booleans and text as JSON strings.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.kind == kindBool {
		return []byte(strconv.FormatBool(v.b)), nil
	}
	return json.Marshal(v.text)
}
