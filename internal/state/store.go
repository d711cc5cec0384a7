package state

import (
	"fmt"
	"sync"
)

// PlaybackCount is the number of playback slots mirrored from the console.
const PlaybackCount = 64

// BlackoutMode is the name of the global blackout variable.
const BlackoutMode = "blackout_mode"

// Attribute is a per-playback variable family.
type Attribute string

const (
	Intensity Attribute = "intensity"
	Speed     Attribute = "speed"
	Button    Attribute = "button"
	Active    Attribute = "active"
	Cue       Attribute = "cue"
)

// Attributes lists the per-playback families in declaration order.
var Attributes = []Attribute{Intensity, Speed, Button, Active, Cue}

var attributeLabels = map[Attribute]string{
	Intensity: "Intensity",
	Speed:     "Speed",
	Button:    "Button",
	Active:    "Active",
	Cue:       "Cue",
}

// PlaybackName returns the variable name of an attribute of playback index (1-based).
func PlaybackName(attr Attribute, index int) string {
	return fmt.Sprintf("playback_%s_%d", attr, index)
}

// Variable is one declared entry of the store.
type Variable struct {
	Name  string `json:"name"`
	Label string `json:"label"`
	Value Value  `json:"value"`
}

// Publisher receives every value written to the store.
type Publisher interface {
	Publish(name string, value Value)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(name string, value Value)

func (f PublisherFunc) Publish(name string, value Value) { f(name, value) }

// Store holds the last known value of every declared variable.
// The key set is fixed at construction; all entries start empty.
type Store struct {
	mu         sync.RWMutex
	vars       []Variable
	index      map[string]int
	publishers []Publisher
}

// NewStore конструктор.
func NewStore(publishers ...Publisher) *Store {
	s := &Store{
		vars:       make([]Variable, 0, PlaybackCount*len(Attributes)+1),
		index:      make(map[string]int, PlaybackCount*len(Attributes)+1),
		publishers: publishers,
	}
	for i := 1; i <= PlaybackCount; i++ {
		for _, attr := range Attributes {
			s.declare(PlaybackName(attr, i), fmt.Sprintf("Playback %d %s", i, attributeLabels[attr]))
		}
	}
	s.declare(BlackoutMode, "Blackout Mode")
	return s
}

func (s *Store) declare(name, label string) {
	s.index[name] = len(s.vars)
	s.vars = append(s.vars, Variable{Name: name, Label: label, Value: Empty})
}

// AddPublisher registers p for all subsequent writes.
func (s *Store) AddPublisher(p Publisher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publishers = append(s.publishers, p)
}

// Get returns the value of a declared variable.
// Asking for an undeclared name is a programming error and panics.
func (s *Store) Get(name string) Value {
	v, ok := s.Lookup(name)
	if !ok {
		panic(fmt.Sprintf("state: undeclared variable %q", name))
	}
	return v
}

// Lookup returns the value of name and whether it is declared.
func (s *Store) Lookup(name string) (Value, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[name]
	if !ok {
		return Value{}, false
	}
	return s.vars[i].Value, true
}

// Set overwrites the value of a declared variable and publishes it.
func (s *Store) Set(name string, value Value) {
	s.mu.Lock()
	i, ok := s.index[name]
	if !ok {
		s.mu.Unlock()
		panic(fmt.Sprintf("state: undeclared variable %q", name))
	}
	s.vars[i].Value = value
	publishers := s.publishers
	s.mu.Unlock()

	for _, p := range publishers {
		p.Publish(name, value)
	}
}

// Reset empties every variable and publishes the empty values.
func (s *Store) Reset() {
	for _, v := range s.Variables() {
		s.Set(v.Name, Empty)
	}
}

// Variables returns a snapshot of all declared variables in declaration order.
func (s *Store) Variables() []Variable {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Variable, len(s.vars))
	copy(out, s.vars)
	return out
}
