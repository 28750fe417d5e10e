package tts

import (
	"context"
	"time"
)

type mockSynth struct {
	sampleRate int
	channels   int
}

// NewMockSynth returns silent WAV clips sized to the text length.
func NewMockSynth(sampleRate, channels int) Synthesizer {
	if sampleRate <= 0 {
		sampleRate = 22050
	}
	if channels <= 0 {
		channels = 1
	}
	return &mockSynth{sampleRate: sampleRate, channels: channels}
}

func (m *mockSynth) Synthesize(ctx context.Context, text, _ string) (Audio, error) {
	select {
	case <-ctx.Done():
		return Audio{}, ctx.Err()
	case <-time.After(20 * time.Millisecond):
	}

	// ~60ms per character, at least a quarter second.
	duration := time.Duration(len([]rune(text))) * 60 * time.Millisecond
	if duration < 250*time.Millisecond {
		duration = 250 * time.Millisecond
	}
	samples := int(duration.Seconds() * float64(m.sampleRate))
	pcm := make([]byte, samples*2*m.channels)

	data, err := encodeWAV(pcm, m.sampleRate, m.channels)
	if err != nil {
		return Audio{}, err
	}
	return Audio{Data: data, ContentType: "audio/wav"}, nil
}
