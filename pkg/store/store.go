// Package store holds the observable conversation state shared by the
// voice session, the orb and the web surface.
//
// State changes are pushed to subscribers outside the store lock, in the
// order they were applied, and only when the value actually changes. A
// change made while another goroutine is delivering is handed to that
// goroutine, so subscribers never observe an older state last.
package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/teslashibe/go-grace/pkg/voice"
)

// Speakers recorded in the conversation history.
const (
	SpeakerUser      = "user"
	SpeakerAssistant = "assistant"
)

// Entry is one line of the conversation history.
type Entry struct {
	ID        int64  `json:"id"`
	Speaker   string `json:"speaker"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

// Snapshot is the serializable state of a Store.
type Snapshot struct {
	VoiceState     voice.State `json:"voiceState"`
	History        []Entry     `json:"conversationHistory"`
	CurrentQuery   string      `json:"currentQuery"`
	IsProcessing   bool        `json:"isProcessing"`
	ConversationID string      `json:"conversationId"`
}

// StateFunc observes voice state changes.
type StateFunc func(voice.State)

// HistoryFunc observes new history entries.
type HistoryFunc func(Entry)

// Option configures a Store.
type Option func(*Store)

// WithBackend persists the store after every history change.
func WithBackend(b Backend) Option {
	return func(s *Store) {
		s.backend = b
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithNow overrides the time source used for entry ids and timestamps.
func WithNow(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Store is the conversation state container.
type Store struct {
	mu             sync.RWMutex
	state          voice.State
	history        []Entry
	currentQuery   string
	processing     bool
	conversationID string
	lastID         int64
	pending        []voice.State
	dispatching    bool

	saveMu sync.Mutex

	subMu     sync.RWMutex
	stateSubs map[int]StateFunc
	entrySubs map[int]HistoryFunc
	nextSubID int

	backend Backend
	logger  *slog.Logger
	now     func() time.Time
}

// New creates an empty store. When a backend is configured its saved
// snapshot is restored.
func New(opts ...Option) *Store {
	s := &Store{
		state:          voice.Inactive,
		conversationID: uuid.NewString(),
		stateSubs:      make(map[int]StateFunc),
		entrySubs:      make(map[int]HistoryFunc),
		logger:         slog.Default(),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "store")

	if s.backend != nil {
		if err := s.Load(); err != nil {
			s.logger.Warn("failed to load saved conversation", "error", err)
		}
	}
	return s
}

// State returns the current voice state.
func (s *Store) State() voice.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// SetState updates the voice state and notifies subscribers if it changed.
// Unknown states are stored as Inactive.
func (s *Store) SetState(state voice.State) {
	state = state.Normalize()

	s.mu.Lock()
	if s.state == state {
		s.mu.Unlock()
		return
	}
	s.state = state
	s.pending = append(s.pending, state)
	if s.dispatching {
		s.mu.Unlock()
		return
	}
	s.dispatching = true

	for len(s.pending) > 0 {
		next := s.pending[0]
		s.pending = s.pending[1:]
		s.mu.Unlock()
		s.notifyState(next)
		s.mu.Lock()
	}
	s.pending = nil
	s.dispatching = false
	s.mu.Unlock()
}

func (s *Store) notifyState(state voice.State) {
	s.subMu.RLock()
	subs := make([]StateFunc, 0, len(s.stateSubs))
	for _, fn := range s.stateSubs {
		subs = append(subs, fn)
	}
	s.subMu.RUnlock()

	for _, fn := range subs {
		fn(state)
	}
}

// Subscribe registers fn for voice state changes and returns a function
// that removes it.
func (s *Store) Subscribe(fn StateFunc) func() {
	s.subMu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.stateSubs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.stateSubs, id)
		s.subMu.Unlock()
	}
}

// SubscribeHistory registers fn for new history entries.
func (s *Store) SubscribeHistory(fn HistoryFunc) func() {
	s.subMu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.entrySubs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.entrySubs, id)
		s.subMu.Unlock()
	}
}

// AddToHistory appends an entry. Entries spoken by the user also become
// the current query.
func (s *Store) AddToHistory(speaker, text string) Entry {
	now := s.now()

	s.mu.Lock()
	id := now.UnixMilli()
	if id <= s.lastID {
		id = s.lastID + 1
	}
	s.lastID = id

	entry := Entry{
		ID:        id,
		Speaker:   speaker,
		Text:      text,
		Timestamp: now.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}
	s.history = append(s.history, entry)
	if speaker == SpeakerUser {
		s.currentQuery = text
	}
	s.mu.Unlock()

	s.subMu.RLock()
	subs := make([]HistoryFunc, 0, len(s.entrySubs))
	for _, fn := range s.entrySubs {
		subs = append(subs, fn)
	}
	s.subMu.RUnlock()

	for _, fn := range subs {
		fn(entry)
	}

	s.persist()
	return entry
}

// History returns a copy of the conversation history.
func (s *Store) History() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, len(s.history))
	copy(out, s.history)
	return out
}

// Len returns the number of history entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history)
}

// ClearHistory removes every entry, resets the current query and starts a
// new conversation id.
func (s *Store) ClearHistory() {
	s.mu.Lock()
	s.history = nil
	s.currentQuery = ""
	s.conversationID = uuid.NewString()
	s.mu.Unlock()

	s.persist()
}

// LastUserMessage returns the most recent entry spoken by the user.
func (s *Store) LastUserMessage() (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.history) - 1; i >= 0; i-- {
		if s.history[i].Speaker == SpeakerUser {
			return s.history[i], true
		}
	}
	return Entry{}, false
}

// CurrentQuery returns the last thing the user asked.
func (s *Store) CurrentQuery() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentQuery
}

// SetCurrentQuery overrides the current query.
func (s *Store) SetCurrentQuery(query string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentQuery = query
}

// IsProcessing reports whether a session start or stop is in flight.
func (s *Store) IsProcessing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.processing
}

// SetProcessing sets the processing flag.
func (s *Store) SetProcessing(processing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processing = processing
}

// TryBeginProcessing sets the processing flag if it was clear and reports
// whether it did.
func (s *Store) TryBeginProcessing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.processing {
		return false
	}
	s.processing = true
	return true
}

// ConversationID identifies the current conversation.
func (s *Store) ConversationID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conversationID
}

// Snapshot returns a copy of the full store state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := make([]Entry, len(s.history))
	copy(history, s.history)
	return Snapshot{
		VoiceState:     s.state,
		History:        history,
		CurrentQuery:   s.currentQuery,
		IsProcessing:   s.processing,
		ConversationID: s.conversationID,
	}
}

// Restore replaces the history and query with the snapshot's. The voice
// state and processing flag are runtime values and always restart as
// inactive and idle.
func (s *Store) Restore(snap Snapshot) {
	history := make([]Entry, len(snap.History))
	copy(history, snap.History)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = history
	s.currentQuery = snap.CurrentQuery
	if snap.ConversationID != "" {
		s.conversationID = snap.ConversationID
	}
	for _, e := range history {
		if e.ID > s.lastID {
			s.lastID = e.ID
		}
	}
}

// Save writes the current snapshot to the backend. Concurrent saves are
// serialized so the last write carries the newest snapshot.
func (s *Store) Save() error {
	if s.backend == nil {
		return nil
	}
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	data, err := json.MarshalIndent(s.Snapshot(), "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return s.backend.Save(data)
}

// Load restores the snapshot saved in the backend, if any.
func (s *Store) Load() error {
	if s.backend == nil {
		return nil
	}
	data, err := s.backend.Load()
	if err != nil {
		return err
	}
	if data == nil {
		return nil
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}
	s.Restore(snap)
	return nil
}

// Close releases the backend.
func (s *Store) Close() error {
	if s.backend == nil {
		return nil
	}
	return s.backend.Close()
}

func (s *Store) persist() {
	if err := s.Save(); err != nil {
		s.logger.Warn("failed to save conversation", "error", err)
	}
}
