package capture

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Mock replays configured phrases word by word as interim results, then as a
// final result. Each Start uses the next phrase.
type Mock struct {
	phrases  []string
	step     time.Duration
	settings Settings

	mu       sync.Mutex
	handler  Handler
	language string
	next     int
	run      uint64
	cancel   context.CancelFunc
}

func NewMock(phrases []string, step time.Duration, settings Settings) *Mock {
	if len(phrases) == 0 {
		phrases = []string{"hola, ¿cómo está usted?"}
	}
	if step <= 0 {
		step = 150 * time.Millisecond
	}
	return &Mock{phrases: phrases, step: step, settings: settings}
}

func (m *Mock) Available() bool { return true }

func (m *Mock) Configure(language string) {
	m.mu.Lock()
	m.language = language
	m.mu.Unlock()
}

// Language reports the language set by the last Configure call.
func (m *Mock) Language() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.language
}

func (m *Mock) Subscribe(h Handler) {
	m.mu.Lock()
	m.handler = h
	m.mu.Unlock()
}

func (m *Mock) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		m.cancel()
	}
	phrase := m.phrases[m.next%len(m.phrases)]
	m.next++
	m.run++
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	go m.replay(runCtx, m.run, phrase, m.handler)
	return nil
}

// current reports whether run is still the latest Start. Events of a
// superseded run are dropped so they cannot end a newer capture.
func (m *Mock) current(run uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.run == run
}

func (m *Mock) replay(ctx context.Context, run uint64, phrase string, h Handler) {
	if h == nil {
		return
	}
	end := func() {
		if m.current(run) {
			h.OnCaptureEnd()
		}
	}
	words := strings.Fields(phrase)
	ticker := time.NewTicker(m.step)
	defer ticker.Stop()
	for i := range words {
		select {
		case <-ctx.Done():
			end()
			return
		case <-ticker.C:
		}
		if m.settings.InterimResults && i < len(words)-1 {
			interim, final := Split(Result{Fragments: []Fragment{{Transcript: strings.Join(words[:i+1], " ")}}})
			h.OnCaptureUpdate(interim, final)
		}
	}
	interim, final := Split(Result{Fragments: []Fragment{{Transcript: phrase, Final: true}}})
	h.OnCaptureUpdate(interim, final)
	if !m.settings.Continuous {
		end()
		return
	}
	<-ctx.Done()
	end()
}

func (m *Mock) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	return nil
}

func (m *Mock) Close() error {
	return m.Stop()
}
