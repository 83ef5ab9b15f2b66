package tts

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/mp3"
	"github.com/gopxl/beep/wav"
)

// ProbeDuration returns the playback length of a synthesis result. MP3
// audio is decoded to count frames; PCM is measured from its size.
func ProbeDuration(r *AudioResult) (time.Duration, error) {
	if r == nil || len(r.Audio) == 0 {
		return 0, nil
	}
	if r.Format.Encoding.IsPCM() {
		return pcmDuration(r.Audio, r.Format), nil
	}

	stream, format, err := mp3.Decode(io.NopCloser(bytes.NewReader(r.Audio)))
	if err != nil {
		return 0, fmt.Errorf("decode mp3: %w", err)
	}
	defer stream.Close()
	return format.SampleRate.D(stream.Len()), nil
}

func pcmDuration(audio []byte, f AudioFormat) time.Duration {
	channels := f.Channels
	if channels <= 0 {
		channels = 1
	}
	rate := f.SampleRate
	if rate <= 0 {
		rate = SampleRateFromEncoding(f.Encoding)
	}
	samples := len(audio) / (2 * channels)
	return beep.SampleRate(rate).D(samples)
}

// WriteWAV encodes a PCM result as a WAV file.
func WriteWAV(w io.WriteSeeker, r *AudioResult) error {
	if r == nil || !r.Format.Encoding.IsPCM() {
		return ErrNotPCM
	}
	streamer, format := PCMStreamer(r.Audio, r.Format)
	if err := wav.Encode(w, streamer, format); err != nil {
		return fmt.Errorf("encode wav: %w", err)
	}
	return nil
}

// PCMStreamer exposes signed 16-bit little-endian PCM as a beep streamer.
func PCMStreamer(audio []byte, f AudioFormat) (beep.Streamer, beep.Format) {
	channels := f.Channels
	if channels <= 0 {
		channels = 1
	}
	rate := f.SampleRate
	if rate <= 0 {
		rate = SampleRateFromEncoding(f.Encoding)
	}
	format := beep.Format{
		SampleRate:  beep.SampleRate(rate),
		NumChannels: channels,
		Precision:   2,
	}
	return &pcmStreamer{data: audio, channels: channels}, format
}

type pcmStreamer struct {
	data     []byte
	channels int
	pos      int
}

func (s *pcmStreamer) Stream(samples [][2]float64) (int, bool) {
	frame := 2 * s.channels
	n := 0
	for n < len(samples) && s.pos+frame <= len(s.data) {
		left := float64(int16(binary.LittleEndian.Uint16(s.data[s.pos:]))) / 32768
		right := left
		if s.channels > 1 {
			right = float64(int16(binary.LittleEndian.Uint16(s.data[s.pos+2:]))) / 32768
		}
		samples[n] = [2]float64{left, right}
		s.pos += frame
		n++
	}
	return n, n > 0
}

func (s *pcmStreamer) Err() error {
	return nil
}
