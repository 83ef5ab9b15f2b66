package tts_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gopxl/beep/wav"

	"github.com/teslashibe/go-grace/pkg/tts"
)

func TestNewElevenLabsValidation(t *testing.T) {
	if _, err := tts.NewElevenLabs(tts.WithVoice("v")); !errors.Is(err, tts.ErrNoAPIKey) {
		t.Errorf("missing key: got %v", err)
	}
	if _, err := tts.NewElevenLabs(tts.WithAPIKey("k")); !errors.Is(err, tts.ErrNoVoiceID) {
		t.Errorf("missing voice: got %v", err)
	}
}

func TestElevenLabsSynthesize(t *testing.T) {
	var body struct {
		Text          string            `json:"text"`
		ModelID       string            `json:"model_id"`
		VoiceSettings tts.VoiceSettings `json:"voice_settings"`
	}
	var headers http.Header
	var path string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		headers = r.Header.Clone()
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Write(make([]byte, 48000)) // 1s of 24kHz mono PCM16
	}))
	defer srv.Close()

	p, err := tts.NewElevenLabs(
		tts.WithAPIKey("secret"),
		tts.WithVoice("grace"),
		tts.WithBaseURL(srv.URL),
		tts.WithOutputFormat(tts.EncodingPCM24),
		tts.WithUserAgent("GraceAssistant/1.0.0 (test)"),
	)
	if err != nil {
		t.Fatalf("NewElevenLabs() error = %v", err)
	}
	defer p.Close()

	result, err := p.Synthesize(context.Background(), "Hello there")
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}

	if path != "/text-to-speech/grace" {
		t.Errorf("path = %q", path)
	}
	if body.Text != "Hello there" || body.ModelID != tts.ModelMonolingualV1 {
		t.Errorf("body = %+v", body)
	}
	if body.VoiceSettings.Stability != 0.5 || body.VoiceSettings.SimilarityBoost != 0.75 {
		t.Errorf("voice settings = %+v", body.VoiceSettings)
	}
	if headers.Get("xi-api-key") != "secret" {
		t.Errorf("xi-api-key = %q", headers.Get("xi-api-key"))
	}
	if headers.Get("User-Agent") != "GraceAssistant/1.0.0 (test)" {
		t.Errorf("User-Agent = %q", headers.Get("User-Agent"))
	}
	if result.Duration != time.Second {
		t.Errorf("duration = %v, want 1s", result.Duration)
	}
	if result.CharCount != 11 {
		t.Errorf("char count = %d, want 11", result.CharCount)
	}
}

func TestElevenLabsDefaultUserAgent(t *testing.T) {
	var ua string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.Header.Get("User-Agent")
	}))
	defer srv.Close()

	p, _ := tts.NewElevenLabs(tts.WithAPIKey("k"), tts.WithVoice("v"), tts.WithBaseURL(srv.URL))
	if err := p.Health(context.Background()); err != nil {
		t.Fatalf("Health() error = %v", err)
	}
	if !strings.HasPrefix(ua, "GraceAssistant/1.0.0 (") {
		t.Errorf("User-Agent = %q", ua)
	}
}

func TestElevenLabsRetriesServerErrors(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write(make([]byte, 480))
	}))
	defer srv.Close()

	p, _ := tts.NewElevenLabs(
		tts.WithAPIKey("k"), tts.WithVoice("v"), tts.WithBaseURL(srv.URL),
		tts.WithOutputFormat(tts.EncodingPCM24),
		tts.WithRetry(2, time.Millisecond),
	)
	if _, err := p.Synthesize(context.Background(), "retry"); err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if n := attempts.Load(); n != 3 {
		t.Errorf("attempts = %d, want 3", n)
	}
}

func TestElevenLabsAPIError(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":{"status":"invalid_api_key","message":"Invalid API key"}}`))
	}))
	defer srv.Close()

	p, _ := tts.NewElevenLabs(tts.WithAPIKey("bad"), tts.WithVoice("v"), tts.WithBaseURL(srv.URL))
	_, err := p.Synthesize(context.Background(), "hi")

	var apiErr *tts.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if !apiErr.IsUnauthorized() || apiErr.Message != "Invalid API key" || apiErr.Code != "invalid_api_key" {
		t.Errorf("api error = %+v", apiErr)
	}
	if n := attempts.Load(); n != 1 {
		t.Errorf("attempts = %d, want 1 (no retry on 401)", n)
	}
}

func TestElevenLabsEmptyText(t *testing.T) {
	p, _ := tts.NewElevenLabs(tts.WithAPIKey("k"), tts.WithVoice("v"))
	if _, err := p.Synthesize(context.Background(), "  "); !errors.Is(err, tts.ErrEmptyText) {
		t.Errorf("error = %v, want ErrEmptyText", err)
	}
}

func TestElevenLabsStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/stream") {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Write(make([]byte, 10000))
	}))
	defer srv.Close()

	p, _ := tts.NewElevenLabs(tts.WithAPIKey("k"), tts.WithVoice("v"), tts.WithBaseURL(srv.URL))
	stream, err := p.Stream(context.Background(), "streaming")
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	defer stream.Close()

	total := 0
	for {
		chunk, err := stream.Read()
		if err != nil {
			t.Fatalf("Read() error = %v", err)
		}
		if chunk == nil {
			break
		}
		total += len(chunk)
	}
	if total != 10000 {
		t.Errorf("streamed %d bytes, want 10000", total)
	}
}

func TestMockProvider(t *testing.T) {
	mock := tts.NewMock()
	ctx := context.Background()

	result, err := mock.Synthesize(ctx, "Hello world")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.CharCount != 11 || len(result.Audio) == 0 {
		t.Errorf("result = %d chars, %d bytes", result.CharCount, len(result.Audio))
	}

	stream, err := mock.Stream(ctx, "Test stream")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	chunk, _ := stream.Read()
	if len(chunk) == 0 {
		t.Error("expected audio chunk")
	}
	stream.Close()
	if _, err := stream.Read(); !errors.Is(err, tts.ErrStreamClosed) {
		t.Errorf("read after close = %v", err)
	}

	if mock.CallCount("Synthesize") != 1 || mock.CallCount("Stream") != 1 {
		t.Errorf("calls = %+v", mock.Calls())
	}
}

func TestProbeDurationPCM(t *testing.T) {
	r := &tts.AudioResult{
		Audio:  make([]byte, 24000),
		Format: tts.AudioFormat{Encoding: tts.EncodingPCM24, SampleRate: 24000, Channels: 1},
	}
	d, err := tts.ProbeDuration(r)
	if err != nil {
		t.Fatalf("ProbeDuration() error = %v", err)
	}
	if d != 500*time.Millisecond {
		t.Errorf("duration = %v, want 500ms", d)
	}
}

func TestProbeDurationBadMP3(t *testing.T) {
	r := &tts.AudioResult{
		Audio:  []byte("definitely not an mp3"),
		Format: tts.AudioFormat{Encoding: tts.EncodingMP3},
	}
	if _, err := tts.ProbeDuration(r); err == nil {
		t.Error("expected decode error")
	}
}

func TestWriteWAV(t *testing.T) {
	mock := tts.NewMock()
	result, _ := mock.Synthesize(context.Background(), "wave")

	path := filepath.Join(t.TempDir(), "out.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := tts.WriteWAV(f, result); err != nil {
		t.Fatalf("WriteWAV() error = %v", err)
	}
	f.Close()

	in, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer in.Close()

	stream, format, err := wav.Decode(in)
	if err != nil {
		t.Fatalf("wav.Decode() error = %v", err)
	}
	if int(format.SampleRate) != 24000 || format.NumChannels != 1 {
		t.Errorf("format = %+v", format)
	}
	if got, want := stream.Len(), len(result.Audio)/2; got != want {
		t.Errorf("samples = %d, want %d", got, want)
	}
}

func TestWriteWAVRejectsMP3(t *testing.T) {
	r := &tts.AudioResult{Format: tts.AudioFormat{Encoding: tts.EncodingMP3}}
	if err := tts.WriteWAV(nil, r); !errors.Is(err, tts.ErrNotPCM) {
		t.Errorf("error = %v, want ErrNotPCM", err)
	}
}
