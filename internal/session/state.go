package session

import (
	"errors"

	"github.com/loqalabs/loqa-translate/internal/audio"
)

var (
	ErrCaptureUnavailable  = errors.New("speech capture unavailable")
	ErrAlreadyRecording    = errors.New("capture already recording")
	ErrNotRecording        = errors.New("capture not recording")
	ErrEmptyInput          = errors.New("input text is empty")
	ErrUnsupportedLanguage = errors.New("unsupported language")
	ErrUnknownRole         = errors.New("unknown language role")
	ErrClosed              = errors.New("session closed")
)

// Role selects which side of the language pair SetLanguage changes.
type Role string

const (
	RoleSource Role = "source"
	RoleTarget Role = "target"
)

// State is a snapshot of the session. Version increases with every
// transition so consumers can drop snapshots that arrive out of order.
type State struct {
	SessionID         string        `json:"session_id"`
	Version           uint64        `json:"version"`
	SourceLanguage    string        `json:"source_language"`
	TargetLanguage    string        `json:"target_language"`
	InputText         string        `json:"input_text"`
	TranslatedText    string        `json:"translated_text"`
	IsRecording       bool          `json:"is_recording"`
	IsPlaybackEnabled bool          `json:"is_playback_enabled"`
	CaptureAvailable  bool          `json:"capture_available"`
	Audio             *audio.Handle `json:"audio,omitempty"`
}

// Listener receives a snapshot after each transition. Listeners run outside
// the controller lock and may call back into the controller.
type Listener func(State)

// Timeline event types. Details never carry transcript or translation text.
const (
	EventLanguageChanged    = "language.changed"
	EventCaptureStarted     = "capture.started"
	EventCaptureStopped     = "capture.stopped"
	EventCaptureError       = "capture.error"
	EventCaptureEnded       = "capture.ended"
	EventTranslationStarted = "translation.started"
	EventTranslationDone    = "translation.completed"
	EventTranslationFailed  = "translation.failed"
	EventSynthesisStarted   = "synthesis.started"
	EventSynthesisDone      = "synthesis.completed"
	EventSynthesisFailed    = "synthesis.failed"
	EventPlaybackToggled    = "playback.toggled"
	EventResultDiscarded    = "result.discarded"
)
