package capture

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

type captureEvent struct {
	kind    string
	interim string
	final   string
	code    string
}

type recordingHandler struct {
	mu     sync.Mutex
	events []captureEvent
	ch     chan captureEvent
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{ch: make(chan captureEvent, 64)}
}

func (h *recordingHandler) push(e captureEvent) {
	h.mu.Lock()
	h.events = append(h.events, e)
	h.mu.Unlock()
	h.ch <- e
}

func (h *recordingHandler) OnCaptureUpdate(interim, final string) {
	h.push(captureEvent{kind: "update", interim: interim, final: final})
}

func (h *recordingHandler) OnCaptureError(code string) {
	h.push(captureEvent{kind: "error", code: code})
}

func (h *recordingHandler) OnCaptureEnd() {
	h.push(captureEvent{kind: "end"})
}

func (h *recordingHandler) next(t *testing.T) captureEvent {
	t.Helper()
	select {
	case e := <-h.ch:
		return e
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for capture event")
		return captureEvent{}
	}
}

func TestSplitFromResultIndex(t *testing.T) {
	r := Result{
		ResultIndex: 1,
		Fragments: []Fragment{
			{Transcript: "ignored ", Final: true},
			{Transcript: "Hola ", Final: true},
			{Transcript: "qué", Final: false},
			{Transcript: " tal", Final: false},
		},
	}
	interim, final := Split(r)
	if interim != "qué tal" {
		t.Fatalf("expected interim %q, got %q", "qué tal", interim)
	}
	if final != "Hola " {
		t.Fatalf("expected final %q, got %q", "Hola ", final)
	}
}

func TestSplitEmptyAndOutOfRange(t *testing.T) {
	if i, f := Split(Result{}); i != "" || f != "" {
		t.Fatalf("expected empty split, got %q/%q", i, f)
	}
	if i, f := Split(Result{ResultIndex: 5, Fragments: []Fragment{{Transcript: "x"}}}); i != "" || f != "" {
		t.Fatalf("expected empty split past end, got %q/%q", i, f)
	}
	if i, _ := Split(Result{ResultIndex: -2, Fragments: []Fragment{{Transcript: "x"}}}); i != "x" {
		t.Fatalf("expected negative index to start at zero, got %q", i)
	}
}

func TestNoopIsUnavailable(t *testing.T) {
	c := NewNoop()
	if c.Available() {
		t.Fatal("noop capability must not be available")
	}
	if err := c.Start(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestMockEmitsInterimThenFinal(t *testing.T) {
	m := NewMock([]string{"hola buenos dias"}, 5*time.Millisecond, Settings{Continuous: false, InterimResults: true})
	h := newRecordingHandler()
	m.Subscribe(h)
	m.Configure("es")
	if m.Language() != "es" {
		t.Fatalf("expected configured language es, got %s", m.Language())
	}

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	want := []captureEvent{
		{kind: "update", interim: "hola"},
		{kind: "update", interim: "hola buenos"},
		{kind: "update", final: "hola buenos dias"},
		{kind: "end"},
	}
	for i, w := range want {
		got := h.next(t)
		if got != w {
			t.Fatalf("event %d: expected %+v, got %+v", i, w, got)
		}
	}
}

func TestMockStopEndsContinuousCapture(t *testing.T) {
	m := NewMock([]string{"hola"}, 5*time.Millisecond, Settings{Continuous: true, InterimResults: true})
	h := newRecordingHandler()
	m.Subscribe(h)
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if got := h.next(t); got.final != "hola" {
		t.Fatalf("expected final hola, got %+v", got)
	}
	if err := m.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if got := h.next(t); got.kind != "end" {
		t.Fatalf("expected end after stop, got %+v", got)
	}
}

func TestMockRestartsAfterNaturalEnd(t *testing.T) {
	m := NewMock([]string{"hola", "adios"}, 2*time.Millisecond, Settings{Continuous: false, InterimResults: false})
	h := newRecordingHandler()
	m.Subscribe(h)

	for i, phrase := range []string{"hola", "adios"} {
		if err := m.Start(context.Background()); err != nil {
			t.Fatalf("start %d: %v", i, err)
		}
		if got := h.next(t); got.final != phrase {
			t.Fatalf("run %d: expected final %q, got %+v", i, phrase, got)
		}
		if got := h.next(t); got.kind != "end" {
			t.Fatalf("run %d: expected end, got %+v", i, got)
		}
	}
}
