package voice

import (
	"encoding/json"
	"fmt"
)

// State is the discrete conversational mode that drives all visual behavior.
type State int

const (
	// Inactive means no conversation is running.
	Inactive State = iota

	// Connecting means a session is being established.
	Connecting

	// Listening means the assistant is waiting for the user to speak.
	Listening

	// Speaking means the assistant is talking.
	Speaking
)

// States lists every defined state in declaration order.
var States = []State{Inactive, Connecting, Listening, Speaking}

// String returns the wire name of the state.
func (s State) String() string {
	switch s {
	case Inactive:
		return "inactive"
	case Connecting:
		return "connecting"
	case Listening:
		return "listening"
	case Speaking:
		return "speaking"
	default:
		return "unknown"
	}
}

// Valid reports whether s is one of the four defined states.
func (s State) Valid() bool {
	return s >= Inactive && s <= Speaking
}

// Normalize returns s, or Inactive when s is outside the defined range.
func (s State) Normalize() State {
	if !s.Valid() {
		return Inactive
	}
	return s
}

// Active reports whether a conversation is in progress.
func (s State) Active() bool {
	return s.Normalize() != Inactive
}

// Parse maps a wire name to a State. Unknown names yield Inactive.
func Parse(name string) State {
	s, err := ParseStrict(name)
	if err != nil {
		return Inactive
	}
	return s
}

// ParseStrict maps a wire name to a State and reports unknown names.
func ParseStrict(name string) (State, error) {
	switch name {
	case "inactive":
		return Inactive, nil
	case "connecting":
		return Connecting, nil
	case "listening":
		return Listening, nil
	case "speaking":
		return Speaking, nil
	default:
		return Inactive, fmt.Errorf("voice: unknown state %q", name)
	}
}

// MarshalJSON encodes the state as its wire name.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Normalize().String())
}

// UnmarshalJSON decodes a wire name. Unknown names decode to Inactive.
func (s *State) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return fmt.Errorf("voice: decode state: %w", err)
	}
	*s = Parse(name)
	return nil
}
