package conversation

import (
	"context"
	"sync"
)

// Mock is a Provider for tests. Simulate* methods drive the registered
// callbacks as a live agent would.
type Mock struct {
	callbacks

	mu        sync.RWMutex
	connected bool
	id        string

	// StartFunc overrides StartSession. When nil, StartSession connects
	// and fires OnConnect with ID.
	StartFunc func(ctx context.Context) error

	// EndFunc overrides EndSession. When nil, EndSession fires OnDisconnect.
	EndFunc func() error

	// ID is the conversation id reported on connect.
	ID string

	// Captured calls for assertions
	StartCalls int
	EndCalls   int
	AudioSent  [][]byte
}

// NewMock creates a new Mock provider.
func NewMock() *Mock {
	return &Mock{ID: "mock-conversation"}
}

// StartSession implements Provider.
func (m *Mock) StartSession(ctx context.Context) error {
	m.mu.Lock()
	m.StartCalls++
	fn := m.StartFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx)
	}

	m.mu.Lock()
	if m.connected {
		m.mu.Unlock()
		return ErrAlreadyConnected
	}
	m.mu.Unlock()

	m.SimulateConnect()
	return nil
}

// EndSession implements Provider.
func (m *Mock) EndSession() error {
	m.mu.Lock()
	m.EndCalls++
	fn := m.EndFunc
	m.mu.Unlock()
	if fn != nil {
		return fn()
	}
	if !m.IsConnected() {
		return nil
	}
	m.SimulateDisconnect()
	return nil
}

// IsConnected implements Provider.
func (m *Mock) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// ConversationID implements Provider.
func (m *Mock) ConversationID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.id
}

// SendAudio implements Provider.
func (m *Mock) SendAudio(audio []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return ErrNotConnected
	}
	m.AudioSent = append(m.AudioSent, audio)
	return nil
}

// SimulateConnect marks the session live and fires OnConnect.
func (m *Mock) SimulateConnect() {
	m.mu.Lock()
	m.connected = true
	m.id = m.ID
	id := m.id
	m.mu.Unlock()
	m.emitConnect(id)
}

// SimulateDisconnect ends the session and fires OnDisconnect.
func (m *Mock) SimulateDisconnect() {
	m.mu.Lock()
	m.connected = false
	m.mu.Unlock()
	m.emitDisconnect()
}

// SimulateError fires OnError.
func (m *Mock) SimulateError(err error) {
	m.emitError(err)
}

// SimulateMode fires OnModeChange.
func (m *Mock) SimulateMode(mode Mode) {
	m.emitMode(mode)
}

// SimulateUserMessage fires OnUserMessage.
func (m *Mock) SimulateUserMessage(text string) {
	m.emitUserMessage(text)
}

// SimulateAssistantMessage fires OnAssistantMessage.
func (m *Mock) SimulateAssistantMessage(text string) {
	m.emitAssistantMessage(text)
}

// SimulateAudio fires OnAudio.
func (m *Mock) SimulateAudio(audio []byte) {
	m.emitAudio(audio)
}

// Compile-time interface checks.
var (
	_ Provider = (*ElevenLabs)(nil)
	_ Provider = (*Mock)(nil)
)
