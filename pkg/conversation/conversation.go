// Package conversation connects Grace to a hosted voice agent.
//
// A Provider owns one live session at a time. Callbacks report the session
// lifecycle (connect, disconnect, error), turn-taking (mode changes) and the
// transcript of both sides. The assistant package turns these callbacks into
// orb state and conversation history.
//
// Basic usage:
//
//	provider, err := conversation.NewElevenLabs(
//	    conversation.WithAPIKey(os.Getenv("ELEVENLABS_API_KEY")),
//	    conversation.WithAgentID(agentID),
//	)
//	provider.OnModeChange(func(m conversation.Mode) { ... })
//	provider.OnUserMessage(func(text string) { ... })
//	if err := provider.StartSession(ctx); err != nil { ... }
//	defer provider.EndSession()
package conversation

import (
	"context"
	"sync"
)

// Mode tells whose turn it is in a live session.
type Mode string

const (
	// ModeSpeaking means the agent is talking.
	ModeSpeaking Mode = "speaking"

	// ModeListening means the agent is waiting for the user.
	ModeListening Mode = "listening"
)

// ConnectionState is the state of the websocket session.
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
)

// String returns a human-readable state name.
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// Provider is a voice agent session.
type Provider interface {
	// StartSession dials the agent. OnConnect fires once the agent has
	// acknowledged the session.
	StartSession(ctx context.Context) error

	// EndSession closes the live session. OnDisconnect fires afterwards.
	// Ending a session that is not live is a no-op.
	EndSession() error

	// IsConnected reports whether a session is live.
	IsConnected() bool

	// ConversationID returns the id assigned by the agent, or "".
	ConversationID() string

	// SendAudio streams user audio (16 kHz PCM16) to the agent.
	SendAudio(audio []byte) error

	OnConnect(fn func(conversationID string))
	OnDisconnect(fn func())
	OnError(fn func(err error))
	OnModeChange(fn func(mode Mode))
	OnUserMessage(fn func(text string))
	OnAssistantMessage(fn func(text string))
	OnAudio(fn func(audio []byte))
}

// callbacks holds the registered handlers shared by every provider.
type callbacks struct {
	cbMu sync.RWMutex

	onConnect          func(conversationID string)
	onDisconnect       func()
	onError            func(err error)
	onModeChange       func(mode Mode)
	onUserMessage      func(text string)
	onAssistantMessage func(text string)
	onAudio            func(audio []byte)
}

// OnConnect sets the connect callback.
func (c *callbacks) OnConnect(fn func(conversationID string)) {
	c.cbMu.Lock()
	defer c.cbMu.Unlock()
	c.onConnect = fn
}

// OnDisconnect sets the disconnect callback.
func (c *callbacks) OnDisconnect(fn func()) {
	c.cbMu.Lock()
	defer c.cbMu.Unlock()
	c.onDisconnect = fn
}

// OnError sets the error callback.
func (c *callbacks) OnError(fn func(err error)) {
	c.cbMu.Lock()
	defer c.cbMu.Unlock()
	c.onError = fn
}

// OnModeChange sets the mode callback.
func (c *callbacks) OnModeChange(fn func(mode Mode)) {
	c.cbMu.Lock()
	defer c.cbMu.Unlock()
	c.onModeChange = fn
}

// OnUserMessage sets the user transcript callback.
func (c *callbacks) OnUserMessage(fn func(text string)) {
	c.cbMu.Lock()
	defer c.cbMu.Unlock()
	c.onUserMessage = fn
}

// OnAssistantMessage sets the agent response callback.
func (c *callbacks) OnAssistantMessage(fn func(text string)) {
	c.cbMu.Lock()
	defer c.cbMu.Unlock()
	c.onAssistantMessage = fn
}

// OnAudio sets the agent audio callback.
func (c *callbacks) OnAudio(fn func(audio []byte)) {
	c.cbMu.Lock()
	defer c.cbMu.Unlock()
	c.onAudio = fn
}

func (c *callbacks) emitConnect(id string) {
	c.cbMu.RLock()
	fn := c.onConnect
	c.cbMu.RUnlock()
	if fn != nil {
		fn(id)
	}
}

func (c *callbacks) emitDisconnect() {
	c.cbMu.RLock()
	fn := c.onDisconnect
	c.cbMu.RUnlock()
	if fn != nil {
		fn()
	}
}

func (c *callbacks) emitError(err error) {
	c.cbMu.RLock()
	fn := c.onError
	c.cbMu.RUnlock()
	if fn != nil {
		fn(err)
	}
}

func (c *callbacks) emitMode(m Mode) {
	c.cbMu.RLock()
	fn := c.onModeChange
	c.cbMu.RUnlock()
	if fn != nil {
		fn(m)
	}
}

func (c *callbacks) emitUserMessage(text string) {
	c.cbMu.RLock()
	fn := c.onUserMessage
	c.cbMu.RUnlock()
	if fn != nil {
		fn(text)
	}
}

func (c *callbacks) emitAssistantMessage(text string) {
	c.cbMu.RLock()
	fn := c.onAssistantMessage
	c.cbMu.RUnlock()
	if fn != nil {
		fn(text)
	}
}

func (c *callbacks) emitAudio(audio []byte) {
	c.cbMu.RLock()
	fn := c.onAudio
	c.cbMu.RUnlock()
	if fn != nil {
		fn(audio)
	}
}
