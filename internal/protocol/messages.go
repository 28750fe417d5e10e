package protocol

import (
	"encoding/json"
	"time"
)

// CaptureControl asks an external recognizer to start or stop listening.
type CaptureControl struct {
	SessionID      string    `json:"session_id"`
	Action         string    `json:"action"`
	Language       string    `json:"language,omitempty"`
	Continuous     bool      `json:"continuous"`
	InterimResults bool      `json:"interim_results"`
	Timestamp      time.Time `json:"timestamp"`
}

// CaptureFragment is one transcript segment inside a result event.
type CaptureFragment struct {
	Transcript string  `json:"transcript"`
	Final      bool    `json:"final"`
	Confidence float64 `json:"confidence,omitempty"`
}

// CaptureResult carries the recognizer's result list. Fragments before
// ResultIndex are unchanged since the previous event.
type CaptureResult struct {
	SessionID   string            `json:"session_id"`
	ResultIndex int               `json:"result_index"`
	Results     []CaptureFragment `json:"results"`
	Timestamp   time.Time         `json:"timestamp"`
}

// CaptureError reports a recognizer failure by code.
type CaptureError struct {
	SessionID string    `json:"session_id"`
	Code      string    `json:"code"`
	Timestamp time.Time `json:"timestamp"`
}

// CaptureEnd signals that the recognizer stopped listening.
type CaptureEnd struct {
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`
}

// SessionCommand drives the session controller from the bus.
type SessionCommand struct {
	Op   string `json:"op"`
	Role string `json:"role,omitempty"`
	Code string `json:"code,omitempty"`
	Text string `json:"text,omitempty"`
}

// SessionCommandReply is sent back when a command carries a reply subject.
// State holds the session snapshot taken after the command was applied.
type SessionCommandReply struct {
	OK    bool            `json:"ok"`
	Error string          `json:"error,omitempty"`
	State json.RawMessage `json:"state,omitempty"`
}

const (
	CaptureActionStart = "start"
	CaptureActionStop  = "stop"
)

const (
	CommandGetState       = "get_state"
	CommandSetLanguage    = "set_language"
	CommandSetInput       = "set_input"
	CommandTranslate      = "translate"
	CommandStartCapture   = "start_capture"
	CommandStopCapture    = "stop_capture"
	CommandSpeakOriginal  = "speak_original"
	CommandTogglePlayback = "toggle_playback"
)

const (
	SubjectCaptureControl = "capture.control"
	SubjectCaptureResult  = "capture.result"
	SubjectCaptureError   = "capture.error"
	SubjectCaptureEnd     = "capture.end"
	SubjectSessionCommand = "session.command"
	SubjectSessionState   = "session.state"
)
