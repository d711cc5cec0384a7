package artnet

import "sync"

// State хранит текущие значения каналов всех используемых вселенных.
type State struct {
	mu        sync.Mutex
	universes UniverseStateMap
}

// NewState конструктор.
func NewState() *State {
	return &State{universes: make(UniverseStateMap)}
}

// SetChannel stores value for channel (0-511). Channels outside the universe are ignored.
func (s *State) SetChannel(universe, channel uint16, value uint8) {
	if int(channel) >= len(Universe{}) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.universes[universe]
	u[channel] = value
	s.universes[universe] = u
}

func (s *State) SetChannelValues(values []ChannelValue) {
	for _, v := range values {
		s.SetChannel(v.Universe, v.Channel, v.Value)
	}
}

// Get returns a copy of all universes.
func (s *State) Get() UniverseStateMap {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(UniverseStateMap, len(s.universes))
	for k, v := range s.universes {
		out[k] = v
	}
	return out
}
