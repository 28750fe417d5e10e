package capture

import (
	"context"
	"errors"
	"strings"
)

// ErrUnavailable is returned by capabilities the host cannot provide.
var ErrUnavailable = errors.New("speech capture unavailable")

// Handler receives transcript events from a capability.
type Handler interface {
	OnCaptureUpdate(interim, final string)
	OnCaptureError(code string)
	OnCaptureEnd()
}

// Capability turns speech into a stream of transcript events.
//
// Start and Stop must not wait for Handler callbacks to return: callers may
// hold locks that the handler also takes.
type Capability interface {
	Available() bool
	Configure(language string)
	Start(ctx context.Context) error
	Stop() error
	Subscribe(h Handler)
	Close() error
}

// Settings are fixed per capability instance.
type Settings struct {
	Continuous     bool
	InterimResults bool
}

// Fragment is a single transcript segment.
type Fragment struct {
	Transcript string
	Final      bool
}

// Result is the recognizer's full result list. Fragments before ResultIndex
// have not changed since the previous event.
type Result struct {
	ResultIndex int
	Fragments   []Fragment
}

// Split concatenates the fragments from ResultIndex on, separated by finality.
func Split(r Result) (interim, final string) {
	start := r.ResultIndex
	if start < 0 {
		start = 0
	}
	var ib, fb strings.Builder
	for i := start; i < len(r.Fragments); i++ {
		f := r.Fragments[i]
		if f.Final {
			fb.WriteString(f.Transcript)
		} else {
			ib.WriteString(f.Transcript)
		}
	}
	return ib.String(), fb.String()
}

type noop struct{}

// NewNoop returns the capability used when the host has no speech capture.
func NewNoop() Capability { return noop{} }

func (noop) Available() bool { return false }
func (noop) Configure(string) {}
func (noop) Start(context.Context) error { return ErrUnavailable }
func (noop) Stop() error { return ErrUnavailable }
func (noop) Subscribe(Handler) {}
func (noop) Close() error { return nil }
