// Package assistant runs a voice session: it feeds conversation callbacks
// into the store, hands the finished transcript to the workflow webhook and
// turns the webhook's actions into notices for the client surface.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/teslashibe/go-grace/internal/observe"
	"github.com/teslashibe/go-grace/pkg/conversation"
	"github.com/teslashibe/go-grace/pkg/store"
	"github.com/teslashibe/go-grace/pkg/voice"
	"github.com/teslashibe/go-grace/pkg/workflow"
)

// Greeting is added to the history when a session connects.
const Greeting = "Go ahead, I'm listening. How can I help you today?"

var (
	// ErrPermissionDenied is returned when the microphone gate refuses.
	ErrPermissionDenied = errors.New("assistant: microphone permission denied")

	// ErrNilProvider is returned by New without a conversation provider.
	ErrNilProvider = errors.New("assistant: conversation provider required")

	// ErrNilStore is returned by New without a store.
	ErrNilStore = errors.New("assistant: store required")
)

// Notice kinds.
const (
	NoticeError    = "error"
	NoticeMessage  = "message"
	NoticeNavigate = "navigate"
)

// Notice is something the client surface should show or do.
type Notice struct {
	Kind    string         `json:"kind"`
	Title   string         `json:"title,omitempty"`
	Message string         `json:"message,omitempty"`
	Screen  string         `json:"screen,omitempty"`
	Params  map[string]any `json:"params,omitempty"`
}

// Processor sends a finished conversation to the workflow backend.
// *workflow.Client implements it.
type Processor interface {
	Process(ctx context.Context, sessionID string, entries []store.Entry) workflow.Result
}

// PermissionFunc decides whether the microphone may be used.
type PermissionFunc func(ctx context.Context) error

// Option configures a Session.
type Option func(*Session)

// WithWorkflow sets the backend that receives finished conversations.
func WithWorkflow(p Processor) Option {
	return func(s *Session) {
		s.workflow = p
	}
}

// WithPermission sets the microphone gate.
func WithPermission(fn PermissionFunc) Option {
	return func(s *Session) {
		s.permission = fn
	}
}

// WithGreeting overrides the connect greeting.
func WithGreeting(text string) Option {
	return func(s *Session) {
		s.greeting = text
	}
}

// WithNotify sets the notice callback.
func WithNotify(fn func(Notice)) Option {
	return func(s *Session) {
		s.notify = fn
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithMetrics records session counts on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Session) {
		s.metrics = m
	}
}

// Session drives one conversation provider against one store.
type Session struct {
	provider   conversation.Provider
	store      *store.Store
	workflow   Processor
	dispatcher *workflow.Dispatcher
	permission PermissionFunc
	greeting   string
	notify     func(Notice)
	logger     *slog.Logger
	metrics    *observe.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	live      bool
	connected bool
}

// New wires provider callbacks into st.
func New(provider conversation.Provider, st *store.Store, opts ...Option) (*Session, error) {
	if provider == nil {
		return nil, ErrNilProvider
	}
	if st == nil {
		return nil, ErrNilStore
	}

	s := &Session{
		provider: provider,
		store:    st,
		greeting: Greeting,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "assistant")
	s.dispatcher = workflow.NewDispatcher(s, s.logger)
	s.ctx, s.cancel = context.WithCancel(context.Background())

	provider.OnConnect(s.handleConnect)
	provider.OnDisconnect(s.handleDisconnect)
	provider.OnError(s.handleError)
	provider.OnModeChange(s.handleMode)
	provider.OnUserMessage(func(text string) {
		s.store.AddToHistory(store.SpeakerUser, text)
	})
	provider.OnAssistantMessage(func(text string) {
		s.store.AddToHistory(store.SpeakerAssistant, text)
	})

	return s, nil
}

// Start opens a conversation. It is a no-op while another start or end is
// in flight.
func (s *Session) Start(ctx context.Context) error {
	if !s.store.TryBeginProcessing() {
		s.logger.Debug("start ignored, busy")
		return nil
	}

	if s.permission != nil {
		if err := s.permission(ctx); err != nil {
			s.store.SetProcessing(false)
			s.emit(Notice{
				Kind:    NoticeError,
				Title:   "Permission Required",
				Message: "Grace needs microphone access to hear you.",
			})
			return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
		}
	}

	s.store.SetState(voice.Connecting)
	s.setLive(true)

	if err := s.provider.StartSession(ctx); err != nil {
		s.logger.Error("failed to start conversation", "error", err)
		s.setLive(false)
		s.store.SetState(voice.Inactive)
		s.store.SetProcessing(false)
		s.emit(Notice{
			Kind:    NoticeError,
			Title:   "Connection Error",
			Message: "Unable to connect to Grace.",
		})
		return fmt.Errorf("assistant: start conversation: %w", err)
	}
	return nil
}

// End closes the conversation. It is a no-op without a live conversation
// or while another start or end is in flight.
func (s *Session) End(ctx context.Context) error {
	s.mu.Lock()
	live := s.live
	s.mu.Unlock()
	if !live {
		return nil
	}
	if !s.store.TryBeginProcessing() {
		s.logger.Debug("end ignored, busy")
		return nil
	}
	defer s.store.SetProcessing(false)

	if err := s.provider.EndSession(); err != nil {
		s.logger.Error("error ending conversation", "error", err)
		return fmt.Errorf("assistant: end conversation: %w", err)
	}

	s.setLive(false)
	s.store.SetState(voice.Inactive)
	return nil
}

// Toggle starts a conversation when inactive and ends it otherwise, like
// the microphone button.
func (s *Session) Toggle(ctx context.Context) error {
	if s.store.State() == voice.Inactive {
		return s.Start(ctx)
	}
	return s.End(ctx)
}

// Live reports whether a conversation is open.
func (s *Session) Live() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live
}

func (s *Session) setLive(live bool) {
	s.mu.Lock()
	s.live = live
	s.mu.Unlock()
}

// Wait blocks until background workflow processing has finished.
func (s *Session) Wait() {
	s.wg.Wait()
}

// Close ends any live conversation and cancels background work.
func (s *Session) Close() error {
	var err error
	if s.Live() {
		err = s.provider.EndSession()
	}
	s.cancel()
	s.wg.Wait()
	return err
}

func (s *Session) handleConnect(conversationID string) {
	s.logger.Info("conversation connected", "conversation_id", conversationID)
	s.store.SetState(voice.Speaking)
	s.store.SetProcessing(false)
	s.store.AddToHistory(store.SpeakerAssistant, s.greeting)

	s.mu.Lock()
	counted := !s.connected
	s.connected = true
	s.mu.Unlock()
	if counted && s.metrics != nil {
		s.metrics.ConversationSessions.Add(s.ctx, 1)
	}
}

func (s *Session) handleDisconnect() {
	s.logger.Info("conversation disconnected")

	s.mu.Lock()
	wasConnected := s.connected
	s.live = false
	s.connected = false
	s.mu.Unlock()

	s.store.SetState(voice.Inactive)
	s.store.SetProcessing(false)
	if wasConnected && s.metrics != nil {
		s.metrics.ConversationSessions.Add(s.ctx, -1)
	}

	history := s.store.History()
	if len(history) == 0 || s.workflow == nil || s.ctx.Err() != nil {
		return
	}

	sessionID := s.store.ConversationID()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		result := s.workflow.Process(s.ctx, sessionID, history)
		if !result.Success {
			s.logger.Error("workflow processing error", "error", result.Error)
			return
		}
		if result.Data != nil && len(result.Data.Actions) > 0 {
			n := s.dispatcher.Dispatch(result.Data.Actions)
			s.logger.Info("workflow actions dispatched", "count", n)
		}
	}()
}

func (s *Session) handleError(err error) {
	s.logger.Error("conversation error", "error", err)
	s.store.SetState(voice.Inactive)
	s.store.SetProcessing(false)
	s.emit(Notice{
		Kind:    NoticeError,
		Title:   "Connection Error",
		Message: "There was a problem connecting to Grace.",
	})
}

func (s *Session) handleMode(mode conversation.Mode) {
	switch mode {
	case conversation.ModeSpeaking:
		s.store.SetState(voice.Speaking)
	case conversation.ModeListening:
		s.store.SetState(voice.Listening)
	}
}

// Navigate implements workflow.Handler.
func (s *Session) Navigate(screen string, params map[string]any) {
	s.emit(Notice{Kind: NoticeNavigate, Screen: screen, Params: params})
}

// ShowMessage implements workflow.Handler.
func (s *Session) ShowMessage(message string) {
	s.emit(Notice{Kind: NoticeMessage, Title: "Message", Message: message})
}

// SetNotify replaces the notice callback.
func (s *Session) SetNotify(fn func(Notice)) {
	s.mu.Lock()
	s.notify = fn
	s.mu.Unlock()
}

func (s *Session) emit(n Notice) {
	s.mu.Lock()
	notify := s.notify
	s.mu.Unlock()
	if notify != nil {
		notify(n)
	}
}
