// Package hub fans messages out to websocket clients through a single
// owner goroutine.
package hub

import "encoding/json"

// MessageType indicates the websocket message format.
type MessageType int

const (
	// JSONMessage is a JSON-encoded text message.
	JSONMessage MessageType = iota
	// BinaryMessage is raw binary data such as an SVG frame.
	BinaryMessage
)

// Message is one broadcast payload.
type Message struct {
	Type MessageType
	Data []byte
}

// NewJSONMessage wraps already encoded JSON.
func NewJSONMessage(data []byte) Message {
	return Message{Type: JSONMessage, Data: data}
}

// NewBinaryMessage wraps raw bytes.
func NewBinaryMessage(data []byte) Message {
	return Message{Type: BinaryMessage, Data: data}
}

// Event is the envelope for typed JSON events.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Event types sent on the streams.
const (
	EventFrame   = "frame"
	EventState   = "state"
	EventHistory = "history"
	EventNotice  = "notice"
)

// EncodeEvent marshals an event envelope.
func EncodeEvent(typ string, data any) (Message, error) {
	b, err := json.Marshal(Event{Type: typ, Data: data})
	if err != nil {
		return Message{}, err
	}
	return NewJSONMessage(b), nil
}
