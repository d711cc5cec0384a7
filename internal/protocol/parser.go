package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"cuety2mqtt/internal/feedback"
	"cuety2mqtt/internal/state"
)

// ErrMalformed is returned for status messages that cannot be decoded.
var ErrMalformed = errors.New("malformed status message")

// Update is a single variable write decoded from a status message.
type Update struct {
	Name  string
	Value state.Value
}

// Message is the decoded content of one datagram. A zero Message means the
// datagram carried nothing we track.
type Message struct {
	Updates   []Update
	Feedbacks []feedback.Kind
}

// Empty reports whether the message changes nothing.
func (m Message) Empty() bool {
	return len(m.Updates) == 0 && len(m.Feedbacks) == 0
}

var singleFields = map[string]state.Attribute{
	"in":  state.Intensity,
	"sp":  state.Speed,
	"bu":  state.Button,
	"ac":  state.Active,
	"cue": state.Cue,
}

var bulkFields = map[string]state.Attribute{
	"intensity": state.Intensity,
	"speed":     state.Speed,
	"bu":        state.Button,
	"ac":        state.Active,
	"cue":       state.Cue,
}

// Parse decodes one status line. Either the whole message decodes or an
// error wrapping ErrMalformed is returned and nothing should be applied.
func Parse(line string) (Message, error) {
	line = strings.Trim(line, " \t\r\n\x00")

	switch {
	case strings.Contains(line, "blackout"):
		return parseBlackout(line)
	case strings.Contains(line, "pb"):
		return parsePlayback(line)
	}
	return Message{}, nil
}

func parseBlackout(line string) (Message, error) {
	parts := strings.Split(line, "=")
	if len(parts) < 2 {
		return Message{}, malformed(line, "missing value")
	}
	on, err := parseFlag(parts[1])
	if err != nil {
		return Message{}, malformed(line, err.Error())
	}
	return Message{
		Updates:   []Update{{Name: state.BlackoutMode, Value: state.Bool(on)}},
		Feedbacks: []feedback.Kind{feedback.BlackoutMode},
	}, nil
}

func parsePlayback(line string) (Message, error) {
	segments := strings.Split(line, "/")
	if len(segments) < 2 {
		return Message{}, malformed(line, "missing field")
	}
	kv := strings.Split(segments[1], "=")
	name := kv[0]

	if name == "all" {
		if len(segments) < 3 {
			return Message{}, malformed(line, "missing bulk values")
		}
		return parseBulk(line, segments[2])
	}

	attr, ok := singleFields[name]
	if !ok {
		return Message{}, nil
	}

	index, err := strconv.Atoi(strings.Replace(segments[0], "pb", "", 1))
	if err != nil {
		return Message{}, malformed(line, "bad playback index")
	}
	if index < 1 || index > state.PlaybackCount {
		return Message{}, malformed(line, fmt.Sprintf("playback index %d out of range", index))
	}
	if len(kv) < 2 {
		return Message{}, malformed(line, "missing value")
	}
	raw := kv[1]

	varName := state.PlaybackName(attr, index)
	switch attr {
	case state.Button, state.Active:
		on, err := parseFlag(raw)
		if err != nil {
			return Message{}, malformed(line, err.Error())
		}
		msg := Message{Updates: []Update{{Name: varName, Value: state.Bool(on)}}}
		if attr == state.Button {
			msg.Feedbacks = []feedback.Kind{feedback.PlaybackButton, feedback.PlaybackActive}
		} else {
			msg.Feedbacks = []feedback.Kind{feedback.PlaybackActive}
		}
		return msg, nil
	case state.Cue:
		// A blank cue name is a valid report (no cue loaded).
		return Message{Updates: []Update{{Name: varName, Value: state.String(raw)}}}, nil
	default:
		if raw == "" {
			return Message{}, malformed(line, "empty value")
		}
		return Message{Updates: []Update{{Name: varName, Value: state.String(raw)}}}, nil
	}
}

// parseBulk decodes "<subtype>=[v1,v2,...]" into writes for slots 1..n.
func parseBulk(line, segment string) (Message, error) {
	kv := strings.Split(segment, "=")
	if len(kv) < 2 {
		return Message{}, malformed(line, "missing bulk values")
	}
	attr, ok := bulkFields[kv[0]]
	if !ok {
		return Message{}, nil
	}

	list := strings.Replace(strings.Replace(kv[1], "[", "", 1), "]", "", 1)
	// An empty list reports no slots, so slot 1 keeps its value instead of
	// being overwritten with an empty or false element.
	if strings.TrimSpace(list) == "" {
		return Message{}, nil
	}
	values := strings.Split(list, ",")
	if len(values) > state.PlaybackCount {
		values = values[:state.PlaybackCount]
	}

	msg := Message{Updates: make([]Update, 0, len(values))}
	for i, raw := range values {
		raw = strings.TrimSpace(raw)
		value := state.String(raw)
		if attr == state.Active {
			on, err := parseFlag(raw)
			if err != nil {
				return Message{}, malformed(line, fmt.Sprintf("element %d: %v", i, err))
			}
			value = state.Bool(on)
		}
		// Bulk button values are kept as reported, unlike single-slot updates.
		msg.Updates = append(msg.Updates, Update{Name: state.PlaybackName(attr, i+1), Value: value})
	}

	switch attr {
	case state.Button:
		msg.Feedbacks = []feedback.Kind{feedback.PlaybackButton, feedback.PlaybackActive}
	case state.Active:
		msg.Feedbacks = []feedback.Kind{feedback.PlaybackActive}
	}
	return msg, nil
}

func parseFlag(s string) (bool, error) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return false, fmt.Errorf("not an integer: %q", s)
	}
	return v != 0, nil
}

func malformed(line, reason string) error {
	return fmt.Errorf("%w: %q: %s", ErrMalformed, line, reason)
}
