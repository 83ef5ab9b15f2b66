// Grace-say speaks a line of text in Grace's voice and saves it to a file.
// PCM formats are written as WAV; MP3 is written as returned.
//
//	grace-say -o greeting.wav -format pcm_24000 "Go ahead, I'm listening."
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/teslashibe/go-grace/internal/config"
	"github.com/teslashibe/go-grace/internal/log"
	"github.com/teslashibe/go-grace/internal/observe"
	"github.com/teslashibe/go-grace/pkg/assistant"
	"github.com/teslashibe/go-grace/pkg/tts"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file")
	out := flag.String("o", "grace.mp3", "Output file")
	format := flag.String("format", string(tts.EncodingMP3), "Output format, e.g. mp3_44100_128 or pcm_24000")
	voiceID := flag.String("voice", "", "Voice ID (overrides ELEVENLABS_VOICE_ID)")
	timeout := flag.Duration("timeout", 30*time.Second, "Request timeout")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "grace-say: %v\n", err)
		os.Exit(2)
	}
	if *voiceID != "" {
		cfg.ElevenLabs.VoiceID = *voiceID
	}
	if err := cfg.RequireVoice(); err != nil {
		fmt.Fprintf(os.Stderr, "grace-say: %v\n", err)
		os.Exit(2)
	}
	log.Init(cfg.Server.LogLevel)

	text := strings.TrimSpace(strings.Join(flag.Args(), " "))
	if text == "" {
		text = assistant.Greeting
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := say(ctx, cfg, text, tts.Encoding(*format), *out, *timeout); err != nil {
		log.Error("synthesis failed", "error", err)
		os.Exit(1)
	}
}

func say(ctx context.Context, cfg *config.Config, text string, enc tts.Encoding, out string, timeout time.Duration) error {
	provider, err := tts.NewElevenLabs(
		tts.WithAPIKey(cfg.ElevenLabs.APIKey),
		tts.WithVoice(cfg.ElevenLabs.VoiceID),
		tts.WithModel(cfg.ElevenLabs.ModelID),
		tts.WithOutputFormat(enc),
		tts.WithUserAgent(cfg.UserAgent),
		tts.WithTimeout(timeout),
		tts.WithLogger(log.L()),
	)
	if err != nil {
		return err
	}
	defer provider.Close()

	metrics := observe.DefaultMetrics()
	start := time.Now()
	result, err := provider.Synthesize(ctx, text)
	metrics.TTSDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		return err
	}

	f, err := os.Create(out)
	if err != nil {
		return err
	}
	defer f.Close()

	if result.Format.Encoding.IsPCM() {
		err = tts.WriteWAV(f, result)
	} else {
		_, err = f.Write(result.Audio)
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}

	duration, err := tts.ProbeDuration(result)
	if err != nil {
		log.Warn("could not measure audio", "error", err)
	}
	log.Info("saved speech",
		"file", out,
		"format", result.Format.Encoding,
		"bytes", len(result.Audio),
		"duration", duration.Round(time.Millisecond),
		"latency_ms", result.LatencyMs,
	)
	return nil
}
