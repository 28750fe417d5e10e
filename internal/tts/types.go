package tts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/loqalabs/loqa-translate/internal/config"
)

var (
	// ErrStatus marks a non-2xx response from the speech endpoint.
	ErrStatus = errors.New("speech endpoint returned error status")
	// ErrEmptyAudio marks a successful response without audio bytes.
	ErrEmptyAudio = errors.New("speech endpoint returned no audio")
	// ErrTooLarge marks audio exceeding the configured byte limit.
	ErrTooLarge = errors.New("synthesized audio exceeds size limit")
)

const defaultContentType = "audio/mpeg"

// Audio is a complete synthesized clip.
type Audio struct {
	Data        []byte
	ContentType string
}

// Synthesizer is the contract for producing speech audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string) (Audio, error)
}

// Voices maps a language code to a voice identifier.
type Voices struct {
	English string
	Default string
}

// DefaultVoices is the fixed table: en -> alloy, anything else -> nova.
var DefaultVoices = Voices{English: "alloy", Default: "nova"}

func (v Voices) For(language string) string {
	if language == "en" {
		return v.English
	}
	return v.Default
}

// VoicesFromConfig reads the voice table, falling back to DefaultVoices.
func VoicesFromConfig(cfg config.TTSConfig) Voices {
	v := DefaultVoices
	if cfg.EnglishVoice != "" {
		v.English = cfg.EnglishVoice
	}
	if cfg.DefaultVoice != "" {
		v.Default = cfg.DefaultVoice
	}
	return v
}

// New builds the synthesizer selected by cfg.Mode. maxBytes bounds the
// audio read from remote backends.
func New(cfg config.TTSConfig, maxBytes int) (Synthesizer, error) {
	timeout := time.Duration(cfg.TimeoutMS) * time.Millisecond
	switch cfg.Mode {
	case "", "mock":
		return NewMockSynth(cfg.SampleRate, 1), nil
	case "http":
		return NewHTTPSynth(cfg.Endpoint, timeout, maxBytes), nil
	case "openai":
		return NewOpenAISynth(cfg.APIKey, cfg.BaseURL, cfg.Model, maxBytes), nil
	case "exec":
		return NewExecSynth(cfg.Command, cfg.SampleRate, 1)
	default:
		return nil, fmt.Errorf("unknown tts mode %q", cfg.Mode)
	}
}
