package artnet

import (
	"testing"

	"cuety2mqtt/internal/logger"
	"cuety2mqtt/internal/state"
)

func TestPublishIntensity(t *testing.T) {
	c := newArtNet(logger.Discard(), Conf{Universe: 2}, nil, nil)

	c.Publish(state.PlaybackName(state.Intensity, 3), state.String("50"))
	c.Publish(state.PlaybackName(state.Intensity, 64), state.String("100"))
	c.Publish(state.PlaybackName(state.Intensity, 1), state.String("12.5"))

	u := c.state.Get()[2]
	if u[2] != 127 {
		t.Errorf("channel 2 = %d, want 127", u[2])
	}
	if u[63] != 255 {
		t.Errorf("channel 63 = %d, want 255", u[63])
	}
	if u[0] != 31 {
		t.Errorf("channel 0 = %d, want 31", u[0])
	}

	select {
	case <-c.sendTrigger:
	default:
		t.Error("send not triggered")
	}
}

func TestPublishIgnoresOtherVariables(t *testing.T) {
	c := newArtNet(logger.Discard(), Conf{}, nil, nil)

	c.Publish(state.PlaybackName(state.Speed, 3), state.String("50"))
	c.Publish(state.BlackoutMode, state.Bool(true))

	if len(c.state.Get()) != 0 {
		t.Errorf("state = %v", c.state.Get())
	}
	select {
	case <-c.sendTrigger:
		t.Error("send triggered for a non-intensity variable")
	default:
	}
}

func TestPercentToDMX(t *testing.T) {
	tests := map[string]uint8{
		"":     0,
		"0":    0,
		"-5":   0,
		"abc":  0,
		"1":    2,
		"50":   127,
		"99":   252,
		"100":  255,
		"250":  255,
		" 75 ": 191,
	}
	for in, want := range tests {
		if got := percentToDMX(in); got != want {
			t.Errorf("percentToDMX(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestResetClearsChannel(t *testing.T) {
	c := newArtNet(logger.Discard(), Conf{}, nil, nil)
	name := state.PlaybackName(state.Intensity, 5)

	c.Publish(name, state.String("80"))
	c.Publish(name, state.Empty)

	if v := c.state.Get()[0][4]; v != 0 {
		t.Errorf("channel 4 after reset = %d", v)
	}
}

func TestUniverseToAddress(t *testing.T) {
	a := universeToAddress(0x0102)
	if a.Net != 1 || a.SubUni != 2 {
		t.Errorf("address = %+v", a)
	}
}

func TestStateIgnoresOutOfRange(t *testing.T) {
	s := NewState()
	s.SetChannelValues([]ChannelValue{{Universe: 0, Channel: 511, Value: 9}, {Universe: 0, Channel: 512, Value: 9}})
	if v := s.Get()[0][511]; v != 9 {
		t.Errorf("channel 511 = %d", v)
	}
}
