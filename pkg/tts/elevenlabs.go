package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/teslashibe/go-grace/internal/httpc"
)

// DefaultBaseURL is the ElevenLabs API root.
const DefaultBaseURL = "https://api.elevenlabs.io/v1"

const providerElevenLabs = "elevenlabs"

// ElevenLabs model IDs.
const (
	ModelMonolingualV1  = "eleven_monolingual_v1"
	ModelMultilingualV2 = "eleven_multilingual_v2"
	ModelTurboV2_5      = "eleven_turbo_v2_5"
)

// ElevenLabs implements Provider against the ElevenLabs REST API.
type ElevenLabs struct {
	config       *Config
	client       *http.Client
	streamClient *http.Client
	logger       *slog.Logger
}

// NewElevenLabs creates an ElevenLabs provider.
func NewElevenLabs(opts ...Option) (*ElevenLabs, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.UserAgent == "" {
		cfg.UserAgent = httpc.UserAgent()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &ElevenLabs{
		config:       cfg,
		client:       httpc.NewClient(cfg.Timeout),
		streamClient: httpc.NewClient(cfg.StreamTimeout),
		logger:       cfg.Logger.With("component", "tts.elevenlabs"),
	}, nil
}

type synthesisRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings VoiceSettings `json:"voice_settings"`
}

// Synthesize converts text to audio, returning the complete buffer.
func (e *ElevenLabs) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	start := time.Now()

	body, err := e.payload(text)
	if err != nil {
		return nil, err
	}

	resp, err := e.doWithRetry(ctx, e.endpoint(""), body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, WrapError(providerElevenLabs, fmt.Errorf("read response: %w", err))
	}
	latency := time.Since(start).Milliseconds()

	result := &AudioResult{
		Audio:     audio,
		Format:    e.outputFormat(),
		CharCount: len(text),
		LatencyMs: latency,
	}
	if d, err := ProbeDuration(result); err == nil {
		result.Duration = d
	} else {
		e.logger.Debug("could not probe duration", "error", err)
	}

	e.logger.Debug("synthesized audio",
		"chars", len(text),
		"bytes", len(audio),
		"latency_ms", latency,
		"duration", result.Duration,
		"model", e.config.ModelID,
	)
	return result, nil
}

// Stream converts text to audio and returns chunks as they arrive.
func (e *ElevenLabs) Stream(ctx context.Context, text string) (AudioStream, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	body, err := e.payload(text)
	if err != nil {
		return nil, err
	}

	req, err := e.newRequest(ctx, e.endpoint("/stream"), body)
	if err != nil {
		return nil, err
	}
	resp, err := e.streamClient.Do(req)
	if err != nil {
		return nil, WrapError(providerElevenLabs, fmt.Errorf("stream request: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, e.parseError(resp)
	}

	return &httpStream{body: resp.Body, format: e.outputFormat()}, nil
}

// Health checks connectivity and API key validity.
func (e *ElevenLabs) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.config.BaseURL+"/user", nil)
	if err != nil {
		return WrapError(providerElevenLabs, err)
	}
	req.Header.Set("xi-api-key", e.config.APIKey)
	req.Header.Set("User-Agent", e.config.UserAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		return WrapError(providerElevenLabs, fmt.Errorf("health check: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return e.parseError(resp)
	}
	return nil
}

// Close releases idle connections.
func (e *ElevenLabs) Close() error {
	e.client.CloseIdleConnections()
	e.streamClient.CloseIdleConnections()
	return nil
}

// VoiceID returns the configured voice.
func (e *ElevenLabs) VoiceID() string {
	return e.config.VoiceID
}

// ModelID returns the configured model.
func (e *ElevenLabs) ModelID() string {
	return e.config.ModelID
}

func (e *ElevenLabs) endpoint(suffix string) string {
	url := fmt.Sprintf("%s/text-to-speech/%s%s", e.config.BaseURL, e.config.VoiceID, suffix)
	if e.config.OutputFormat != "" && e.config.OutputFormat != EncodingMP3 {
		url += "?output_format=" + string(e.config.OutputFormat)
	}
	return url
}

func (e *ElevenLabs) payload(text string) ([]byte, error) {
	body, err := json.Marshal(synthesisRequest{
		Text:          text,
		ModelID:       e.config.ModelID,
		VoiceSettings: e.config.VoiceSettings,
	})
	if err != nil {
		return nil, WrapError(providerElevenLabs, fmt.Errorf("marshal payload: %w", err))
	}
	return body, nil
}

func (e *ElevenLabs) newRequest(ctx context.Context, url string, body []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, WrapError(providerElevenLabs, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("xi-api-key", e.config.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", e.config.OutputFormat.MIME())
	req.Header.Set("User-Agent", e.config.UserAgent)
	return req, nil
}

// doWithRetry posts body, retrying rate limits and server errors with a
// linear backoff. Non-200 responses that are not retried become APIErrors.
func (e *ElevenLabs) doWithRetry(ctx context.Context, url string, body []byte) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= e.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(e.config.RetryDelay * time.Duration(attempt)):
			}
		}

		req, err := e.newRequest(ctx, url, body)
		if err != nil {
			return nil, err
		}
		resp, err := e.client.Do(req)
		if err != nil {
			lastErr = WrapError(providerElevenLabs, err)
			continue
		}

		if resp.StatusCode == http.StatusOK {
			return resp, nil
		}

		apiErr := e.parseError(resp)
		resp.Body.Close()
		if !apiErr.IsRetryable() {
			return nil, apiErr
		}
		lastErr = apiErr
		e.logger.Warn("retrying request", "attempt", attempt+1, "status", apiErr.StatusCode)
	}

	return nil, lastErr
}

func (e *ElevenLabs) parseError(resp *http.Response) *APIError {
	body, _ := io.ReadAll(resp.Body)

	var errResp struct {
		Detail json.RawMessage `json:"detail"`
	}
	message := strings.TrimSpace(string(body))
	code := ""
	if json.Unmarshal(body, &errResp) == nil && len(errResp.Detail) > 0 {
		var detail struct {
			Message string `json:"message"`
			Status  string `json:"status"`
		}
		var text string
		switch {
		case json.Unmarshal(errResp.Detail, &detail) == nil && detail.Message != "":
			message, code = detail.Message, detail.Status
		case json.Unmarshal(errResp.Detail, &text) == nil && text != "":
			message = text
		}
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    message,
		Code:       code,
		Provider:   providerElevenLabs,
	}
}

func (e *ElevenLabs) outputFormat() AudioFormat {
	return AudioFormat{
		Encoding:   e.config.OutputFormat,
		SampleRate: SampleRateFromEncoding(e.config.OutputFormat),
		Channels:   1,
		BitDepth:   16,
	}
}

// httpStream wraps an HTTP response body as an AudioStream.
type httpStream struct {
	body   io.ReadCloser
	format AudioFormat
	buf    [4096]byte
}

func (s *httpStream) Read() ([]byte, error) {
	for {
		n, err := s.body.Read(s.buf[:])
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, s.buf[:n])
			return chunk, nil
		}
		if err == io.EOF {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

func (s *httpStream) Close() error {
	return s.body.Close()
}

func (s *httpStream) Format() AudioFormat {
	return s.format
}

var _ Provider = (*ElevenLabs)(nil)
