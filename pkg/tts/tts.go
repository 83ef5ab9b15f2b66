// Package tts turns assistant text into speech.
//
// The ElevenLabs provider posts to the text-to-speech endpoint with the
// voice settings Grace has always used. Results carry the encoded audio and
// its format; ProbeDuration and WriteWAV decode and re-encode it with beep.
//
//	provider, _ := tts.NewElevenLabs(
//	    tts.WithAPIKey(os.Getenv("ELEVENLABS_API_KEY")),
//	    tts.WithVoice(os.Getenv("ELEVENLABS_VOICE_ID")),
//	)
//	defer provider.Close()
//
//	result, _ := provider.Synthesize(ctx, "Go ahead, I'm listening.")
package tts

import (
	"context"
	"time"
)

// Provider synthesizes speech.
type Provider interface {
	// Synthesize converts text to audio, returning the complete buffer.
	Synthesize(ctx context.Context, text string) (*AudioResult, error)

	// Stream converts text to audio, returning chunks as they arrive.
	Stream(ctx context.Context, text string) (AudioStream, error)

	// Health checks connectivity and credentials.
	Health(ctx context.Context) error

	// Close releases any resources held by the provider.
	Close() error
}

// AudioStream is a streaming synthesis response. Read returns nil, nil at
// the end of the stream.
type AudioStream interface {
	Read() ([]byte, error)
	Close() error
	Format() AudioFormat
}

// AudioResult is a complete synthesis result.
type AudioResult struct {
	Audio     []byte
	Format    AudioFormat
	Duration  time.Duration
	CharCount int
	LatencyMs int64
}

// AudioFormat describes encoded audio.
type AudioFormat struct {
	Encoding   Encoding
	SampleRate int
	Channels   int
	BitDepth   int
}

// Encoding is an ElevenLabs output format name.
type Encoding string

const (
	EncodingPCM16 Encoding = "pcm_16000"
	EncodingPCM22 Encoding = "pcm_22050"
	EncodingPCM24 Encoding = "pcm_24000"
	EncodingPCM44 Encoding = "pcm_44100"
	EncodingMP3   Encoding = "mp3_44100_128"
)

// IsPCM reports whether the encoding is raw 16-bit PCM.
func (e Encoding) IsPCM() bool {
	switch e {
	case EncodingPCM16, EncodingPCM22, EncodingPCM24, EncodingPCM44:
		return true
	default:
		return false
	}
}

// MIME returns the content type for the encoding.
func (e Encoding) MIME() string {
	if e.IsPCM() {
		return "audio/pcm"
	}
	return "audio/mpeg"
}

// SampleRateFromEncoding returns the sample rate implied by enc.
func SampleRateFromEncoding(enc Encoding) int {
	switch enc {
	case EncodingPCM16:
		return 16000
	case EncodingPCM22:
		return 22050
	case EncodingPCM24:
		return 24000
	case EncodingPCM44, EncodingMP3:
		return 44100
	default:
		return 44100
	}
}

// VoiceSettings controls voice characteristics.
type VoiceSettings struct {
	// Stability trades expressiveness (low) for consistency (high).
	Stability float64 `json:"stability"`

	// SimilarityBoost controls how closely output matches the source voice.
	SimilarityBoost float64 `json:"similarity_boost"`
}

// DefaultVoiceSettings returns the settings Grace speaks with.
func DefaultVoiceSettings() VoiceSettings {
	return VoiceSettings{
		Stability:       0.5,
		SimilarityBoost: 0.75,
	}
}
