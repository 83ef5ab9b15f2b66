package conversation

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/teslashibe/go-grace/pkg/tts"
)

// speakingGrace keeps the agent in speaking mode between audio chunks.
const speakingGrace = 300 * time.Millisecond

// ElevenLabs implements Provider for the ElevenLabs conversational agents.
type ElevenLabs struct {
	callbacks

	config Config
	logger *slog.Logger

	mu             sync.RWMutex
	conn           *websocket.Conn
	state          ConnectionState
	conversationID string
	outputFormat   tts.Encoding
	mode           Mode
	speakingUntil  time.Time
	modeTimer      *time.Timer
	modeGen        uint64
	closing        bool

	// modeMu orders mode changes with their callbacks.
	modeMu sync.Mutex

	writeMu sync.Mutex

	messagesSent     atomic.Int64
	messagesReceived atomic.Int64
}

// NewElevenLabs creates a new ElevenLabs conversation provider.
func NewElevenLabs(opts ...Option) (*ElevenLabs, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}

	return &ElevenLabs{
		config: cfg,
		logger: cfg.Logger.With("component", "conversation.elevenlabs"),
	}, nil
}

// StartSession dials the agent and starts the read loop.
func (e *ElevenLabs) StartSession(ctx context.Context) error {
	e.mu.Lock()
	if e.state != StateDisconnected {
		e.mu.Unlock()
		return ErrAlreadyConnected
	}
	e.state = StateConnecting
	e.mu.Unlock()

	conn, err := e.dial(ctx)
	if err != nil {
		e.mu.Lock()
		e.state = StateDisconnected
		e.mu.Unlock()
		return err
	}

	e.mu.Lock()
	e.conn = conn
	e.state = StateConnected
	e.conversationID = ""
	e.outputFormat = e.config.OutputFormat
	e.mode = ""
	e.speakingUntil = time.Time{}
	e.closing = false
	e.mu.Unlock()

	go e.readLoop(conn)

	if err := e.writeJSON(conn, map[string]string{"type": "conversation_initiation_client_data"}); err != nil {
		e.logger.Warn("failed to send session init", "error", err)
	}

	e.logger.Info("session started", "agent_id", e.config.AgentID)
	return nil
}

func (e *ElevenLabs) dial(ctx context.Context) (*websocket.Conn, error) {
	wsURL := e.resolveURL(ctx)

	headers := http.Header{}
	headers.Set("User-Agent", e.config.UserAgent)
	if e.config.APIKey != "" {
		headers.Set("xi-api-key", e.config.APIKey)
	}

	dialer := websocket.Dialer{HandshakeTimeout: e.config.Timeout}

	e.logger.Info("connecting to agent", "agent_id", e.config.AgentID)

	conn, resp, err := dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			return nil, NewConnectionError(
				fmt.Sprintf("dial failed with status %d", resp.StatusCode),
				err,
				resp.StatusCode >= 500,
			)
		}
		return nil, NewConnectionError("dial failed", err, true)
	}
	return conn, nil
}

// resolveURL prefers a signed URL and falls back to the public endpoint.
func (e *ElevenLabs) resolveURL(ctx context.Context) string {
	if e.config.SignedURL && e.config.APIKey != "" {
		signed, err := e.fetchSignedURL(ctx)
		if err == nil {
			return signed
		}
		e.logger.Warn("signed URL unavailable, using public endpoint", "error", err)
	}
	return e.directURL()
}

func (e *ElevenLabs) directURL() string {
	u, err := url.Parse(e.config.WSURL)
	if err != nil {
		return e.config.WSURL + "?agent_id=" + url.QueryEscape(e.config.AgentID)
	}
	q := u.Query()
	q.Set("agent_id", e.config.AgentID)
	u.RawQuery = q.Encode()
	return u.String()
}

func (e *ElevenLabs) fetchSignedURL(ctx context.Context) (string, error) {
	if e.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.Timeout)
		defer cancel()
	}

	endpoint := strings.TrimRight(e.config.BaseURL, "/") +
		"/convai/conversation/get_signed_url?agent_id=" + url.QueryEscape(e.config.AgentID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("conversation: create request: %w", err)
	}
	req.Header.Set("xi-api-key", e.config.APIKey)
	req.Header.Set("User-Agent", e.config.UserAgent)

	resp, err := e.config.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("conversation: signed URL request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("conversation: read signed URL response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", NewAPIError(resp.StatusCode, "", strings.TrimSpace(string(body)))
	}

	var out struct {
		SignedURL string `json:"signed_url"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("conversation: decode signed URL response: %w", err)
	}
	if out.SignedURL == "" {
		return "", ErrNoSignedURL
	}
	return out.SignedURL, nil
}

// EndSession closes the live session. OnDisconnect fires from the read loop.
func (e *ElevenLabs) EndSession() error {
	e.mu.Lock()
	conn := e.conn
	if conn == nil {
		e.mu.Unlock()
		return nil
	}
	e.closing = true
	e.conn = nil
	e.state = StateDisconnected
	e.stopModeTimerLocked()
	e.mu.Unlock()

	e.writeMu.Lock()
	_ = conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	e.writeMu.Unlock()
	conn.Close()

	e.logger.Info("session ended",
		"conversation_id", e.ConversationID(),
		"sent", e.messagesSent.Load(),
		"received", e.messagesReceived.Load(),
	)
	return nil
}

// IsConnected returns true if a session is live.
func (e *ElevenLabs) IsConnected() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state == StateConnected
}

// ConversationID returns the id assigned by the agent.
func (e *ElevenLabs) ConversationID() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.conversationID
}

// Mode returns the current turn-taking mode, or "" before the first turn.
func (e *ElevenLabs) Mode() Mode {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.mode
}

// SendAudio sends a chunk of user audio.
func (e *ElevenLabs) SendAudio(audio []byte) error {
	e.mu.RLock()
	conn := e.conn
	e.mu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}

	msg := map[string]string{
		"user_audio_chunk": base64.StdEncoding.EncodeToString(audio),
	}
	if err := e.writeJSON(conn, msg); err != nil {
		return NewConnectionError("send audio failed", err, true)
	}
	return nil
}

func (e *ElevenLabs) writeJSON(conn *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("conversation: marshal failed: %w", err)
	}
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return err
	}
	e.messagesSent.Add(1)
	return nil
}

// incoming covers the nested event payloads and the older flat format.
type incoming struct {
	Type string `json:"type"`

	Metadata *struct {
		ConversationID         string `json:"conversation_id"`
		AgentOutputAudioFormat string `json:"agent_output_audio_format"`
	} `json:"conversation_initiation_metadata_event,omitempty"`

	AudioEvent *struct {
		AudioBase64 string `json:"audio_base_64"`
		EventID     int    `json:"event_id"`
	} `json:"audio_event,omitempty"`

	AgentResponseEvent *struct {
		AgentResponse string `json:"agent_response"`
	} `json:"agent_response_event,omitempty"`

	UserTranscriptionEvent *struct {
		UserTranscript string `json:"user_transcript"`
	} `json:"user_transcription_event,omitempty"`

	PingEvent *struct {
		EventID int `json:"event_id"`
	} `json:"ping_event,omitempty"`

	ErrorEvent *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error_event,omitempty"`

	Text    string `json:"text,omitempty"`
	Audio   string `json:"audio,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

func (e *ElevenLabs) readLoop(conn *websocket.Conn) {
	defer func() {
		e.mu.Lock()
		if e.conn == conn {
			e.conn = nil
			e.state = StateDisconnected
			e.stopModeTimerLocked()
		}
		e.mu.Unlock()
		conn.Close()
		e.logger.Info("disconnected from agent")
		e.emitDisconnect()
	}()

	for {
		if e.config.ReadTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(e.config.ReadTimeout))
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			e.mu.RLock()
			closing := e.closing
			e.mu.RUnlock()
			if closing || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				e.logger.Debug("connection closed", "error", err)
				return
			}
			e.logger.Error("read error", "error", err)
			e.emitError(NewConnectionError("read failed", err, true))
			return
		}
		e.messagesReceived.Add(1)

		var msg incoming
		if err := json.Unmarshal(data, &msg); err != nil {
			e.logger.Warn("failed to parse message", "error", err)
			continue
		}
		e.handleMessage(conn, msg)
	}
}

func (e *ElevenLabs) handleMessage(conn *websocket.Conn, msg incoming) {
	switch msg.Type {
	case "conversation_initiation_metadata":
		var id string
		if msg.Metadata != nil {
			id = msg.Metadata.ConversationID
			e.mu.Lock()
			e.conversationID = id
			if msg.Metadata.AgentOutputAudioFormat != "" {
				e.outputFormat = tts.Encoding(msg.Metadata.AgentOutputAudioFormat)
			}
			e.mu.Unlock()
		}
		e.logger.Info("connected to agent", "conversation_id", id)
		e.emitConnect(id)

	case "audio":
		encoded := msg.Audio
		if msg.AudioEvent != nil && msg.AudioEvent.AudioBase64 != "" {
			encoded = msg.AudioEvent.AudioBase64
		}
		if encoded == "" {
			return
		}
		audio, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			e.logger.Warn("failed to decode audio", "error", err)
			return
		}
		e.extendSpeaking(len(audio))
		e.emitAudio(audio)

	case "agent_response":
		text := msg.Text
		if msg.AgentResponseEvent != nil {
			text = msg.AgentResponseEvent.AgentResponse
		}
		e.extendSpeaking(0)
		if text != "" {
			e.emitAssistantMessage(text)
		}

	case "audio_done", "agent_response_done":
		e.finishSpeaking()

	case "user_transcript":
		text := msg.Text
		if msg.UserTranscriptionEvent != nil {
			text = msg.UserTranscriptionEvent.UserTranscript
		}
		e.listen()
		if text != "" {
			e.emitUserMessage(text)
		}

	case "interruption":
		e.listen()

	case "error":
		code, message := msg.Code, msg.Message
		if msg.ErrorEvent != nil {
			code, message = msg.ErrorEvent.Code, msg.ErrorEvent.Message
		}
		e.emitError(NewAPIError(0, code, message))

	case "ping":
		eventID := 0
		if msg.PingEvent != nil {
			eventID = msg.PingEvent.EventID
		}
		if err := e.writeJSON(conn, map[string]any{"type": "pong", "event_id": eventID}); err != nil {
			e.logger.Debug("pong failed", "error", err)
		}

	default:
		e.logger.Debug("unhandled message type", "type", msg.Type)
	}
}

// extendSpeaking switches to speaking and pushes the estimated end of
// playback out by the duration of n bytes of agent audio.
func (e *ElevenLabs) extendSpeaking(n int) {
	e.modeMu.Lock()
	defer e.modeMu.Unlock()

	e.mu.Lock()
	now := time.Now()
	if e.speakingUntil.Before(now) {
		e.speakingUntil = now
	}
	e.speakingUntil = e.speakingUntil.Add(playbackDuration(e.outputFormat, n))
	e.armModeTimerLocked(time.Until(e.speakingUntil) + speakingGrace)
	changed := e.mode != ModeSpeaking
	e.mode = ModeSpeaking
	e.mu.Unlock()

	if changed {
		e.emitMode(ModeSpeaking)
	}
}

// finishSpeaking switches to listening once buffered audio has played.
func (e *ElevenLabs) finishSpeaking() {
	e.mu.Lock()
	remaining := time.Until(e.speakingUntil)
	if remaining > 0 {
		e.armModeTimerLocked(remaining)
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()
	e.listen()
}

func (e *ElevenLabs) listen() {
	e.modeMu.Lock()
	defer e.modeMu.Unlock()

	e.mu.Lock()
	changed := e.listenLocked()
	e.mu.Unlock()

	if changed {
		e.emitMode(ModeListening)
	}
}

// modeTimerFired switches to listening unless the timer was re-armed or
// stopped after it fired.
func (e *ElevenLabs) modeTimerFired(gen uint64) {
	e.modeMu.Lock()
	defer e.modeMu.Unlock()

	e.mu.Lock()
	if gen != e.modeGen {
		e.mu.Unlock()
		return
	}
	changed := e.listenLocked()
	e.mu.Unlock()

	if changed {
		e.emitMode(ModeListening)
	}
}

func (e *ElevenLabs) listenLocked() bool {
	e.stopModeTimerLocked()
	e.speakingUntil = time.Time{}
	changed := e.mode != ModeListening
	e.mode = ModeListening
	return changed
}

func (e *ElevenLabs) armModeTimerLocked(d time.Duration) {
	e.stopModeTimerLocked()
	gen := e.modeGen
	e.modeTimer = time.AfterFunc(d, func() { e.modeTimerFired(gen) })
}

func (e *ElevenLabs) stopModeTimerLocked() {
	if e.modeTimer != nil {
		e.modeTimer.Stop()
		e.modeTimer = nil
	}
	e.modeGen++
}

// playbackDuration estimates how long n bytes of agent audio take to play.
func playbackDuration(enc tts.Encoding, n int) time.Duration {
	if n <= 0 {
		return 0
	}
	switch {
	case enc.IsPCM():
		rate := tts.SampleRateFromEncoding(enc)
		return time.Duration(n/2) * time.Second / time.Duration(rate)
	case strings.HasPrefix(string(enc), "ulaw_"):
		return time.Duration(n) * time.Second / 8000
	default:
		// mp3 at 128 kbps
		return time.Duration(n*8) * time.Second / 128000
	}
}
