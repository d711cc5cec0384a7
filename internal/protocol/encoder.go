// Package protocol implements the console's ASCII command set: building
// outbound commands and decoding inbound status messages.
package protocol

import (
	"fmt"
	"strconv"

	"cuety2mqtt/internal/state"
)

// IndexMode selects how a playback index is written into a command.
type IndexMode int

const (
	// Padded writes a two-digit index ("pb05"). Used by almost every command.
	Padded IndexMode = iota
	// Unpadded writes the bare index ("pb5"). The console's button on/off
	// commands are addressed this way.
	Unpadded
)

const (
	bulkSlot = "pbxx"

	increment = "++"
	decrement = "--"
)

// Hello is sent once after the transport comes up.
const Hello = "hello"

// Bulk queries answered with pbxx/all/... arrays.
const (
	QueryAllIntensity = bulkSlot + "/int"
	QueryAllSpeed     = bulkSlot + "/spd"
	QueryAllCue       = bulkSlot + "/cue"
	QueryAllActive    = bulkSlot + "/ac"
)

// BulkQueries returns the full-state refresh sequence.
func BulkQueries() []string {
	return []string{QueryAllIntensity, QueryAllSpeed, QueryAllCue, QueryAllActive}
}

func slot(index int, mode IndexMode) string {
	if mode == Unpadded {
		return "pb" + strconv.Itoa(index)
	}
	return fmt.Sprintf("pb%02d", index)
}

func field(index int, mode IndexMode, name, value string) string {
	return slot(index, mode) + "/" + name + "=" + value
}

func SetIntensity(index int, value string) string {
	return field(index, Padded, "in", value)
}

func IncrementIntensity(index int, amount string) string {
	return field(index, Padded, "in", increment+amount)
}

func DecrementIntensity(index int, amount string) string {
	return field(index, Padded, "in", decrement+amount)
}

func SetSpeed(index int, value string) string {
	return field(index, Padded, "sp", value)
}

func IncrementSpeed(index int, amount string) string {
	return field(index, Padded, "sp", increment+amount)
}

func DecrementSpeed(index int, amount string) string {
	return field(index, Padded, "sp", decrement+amount)
}

// ButtonOn presses the playback button (unpadded index).
func ButtonOn(index int) string {
	return field(index, Unpadded, "bu", "1")
}

// ButtonOff releases the playback button (unpadded index).
func ButtonOff(index int) string {
	return field(index, Unpadded, "bu", "0")
}

// Press is the first half of a timed press/release pair (padded index).
func Press(index int) string {
	return field(index, Padded, "bu", "1")
}

// Release is the second half of a timed press/release pair (padded index).
func Release(index int) string {
	return field(index, Padded, "bu", "0")
}

func Flash(index int) string {
	return slot(index, Padded) + "/fl"
}

func ReleasePlayback(index int) string {
	return slot(index, Padded) + "/re"
}

func GoForward(index int) string {
	return slot(index, Padded) + "/go+"
}

func GoBack(index int) string {
	return slot(index, Padded) + "/go-"
}

func Jump(index int, value string) string {
	return field(index, Padded, "ju", value)
}

func SetAllIntensity(value string) string {
	return bulkSlot + "/int=" + value
}

func SetAllSpeed(value string) string {
	return bulkSlot + "/spd=" + value
}

// ReleaseAll releases every playback.
func ReleaseAll() string {
	return "release"
}

// SetBlackout takes the literal "0" or "1".
func SetBlackout(value string) string {
	return "blackout=" + value
}

// ToggleBlackout emits the complement of the current blackout_mode value.
func ToggleBlackout(current state.Value) string {
	if current.String() == "true" {
		return SetBlackout("0")
	}
	return SetBlackout("1")
}
