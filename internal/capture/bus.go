package capture

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/loqalabs/loqa-translate/internal/bus"
	"github.com/loqalabs/loqa-translate/internal/protocol"
	"github.com/nats-io/nats.go"
)

// Bus drives an external recognizer over NATS. Start publishes a start
// request on capture.control and subscribes to the result, error and end
// subjects for this session; Stop publishes a stop request and drops the
// subscriptions.
type Bus struct {
	client    *bus.Client
	sessionID string
	settings  Settings
	logger    *slog.Logger

	mu       sync.Mutex
	handler  Handler
	language string
	subs     []*nats.Subscription
}

func NewBus(client *bus.Client, sessionID string, settings Settings, logger *slog.Logger) *Bus {
	return &Bus{
		client:    client,
		sessionID: sessionID,
		settings:  settings,
		logger:    logger.With(slog.String("component", "bus-capture")),
	}
}

func (b *Bus) Available() bool { return b.client.Healthy() }

func (b *Bus) Configure(language string) {
	b.mu.Lock()
	b.language = language
	b.mu.Unlock()
}

func (b *Bus) Subscribe(h Handler) {
	b.mu.Lock()
	b.handler = h
	b.mu.Unlock()
}

func (b *Bus) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	// A recognizer that ended or failed on its own leaves its subscriptions
	// behind; a restart replaces them.
	b.unsubscribeLocked()

	conn := b.client.Conn()
	handlers := map[string]nats.MsgHandler{
		protocol.SubjectCaptureResult: b.handleResult,
		protocol.SubjectCaptureError:  b.handleError,
		protocol.SubjectCaptureEnd:    b.handleEnd,
	}
	for subject, h := range handlers {
		sub, err := conn.Subscribe(subject, h)
		if err != nil {
			b.unsubscribeLocked()
			return fmt.Errorf("subscribe %s: %w", subject, err)
		}
		b.subs = append(b.subs, sub)
	}
	// Subscriptions must be registered before the recognizer answers.
	if err := conn.Flush(); err != nil {
		b.unsubscribeLocked()
		return fmt.Errorf("flush capture subscriptions: %w", err)
	}

	if err := b.publishControl(protocol.CaptureActionStart); err != nil {
		b.unsubscribeLocked()
		return err
	}
	return nil
}

func (b *Bus) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.unsubscribeLocked()
	return b.publishControl(protocol.CaptureActionStop)
}

func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.unsubscribeLocked()
	return nil
}

func (b *Bus) publishControl(action string) error {
	msg := protocol.CaptureControl{
		SessionID:      b.sessionID,
		Action:         action,
		Language:       b.language,
		Continuous:     b.settings.Continuous,
		InterimResults: b.settings.InterimResults,
		Timestamp:      time.Now().UTC(),
	}
	if err := b.client.PublishJSON(protocol.SubjectCaptureControl, msg); err != nil {
		return fmt.Errorf("publish capture %s: %w", action, err)
	}
	return nil
}

func (b *Bus) unsubscribeLocked() {
	for _, sub := range b.subs {
		_ = sub.Unsubscribe()
	}
	b.subs = nil
}

func (b *Bus) currentHandler() Handler {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.handler
}

func (b *Bus) handleResult(msg *nats.Msg) {
	var res protocol.CaptureResult
	if err := json.Unmarshal(msg.Data, &res); err != nil {
		b.logger.Warn("failed to decode capture result", slogError(err))
		return
	}
	if res.SessionID != b.sessionID {
		return
	}
	h := b.currentHandler()
	if h == nil {
		return
	}
	r := Result{ResultIndex: res.ResultIndex, Fragments: make([]Fragment, 0, len(res.Results))}
	for _, f := range res.Results {
		r.Fragments = append(r.Fragments, Fragment{Transcript: f.Transcript, Final: f.Final})
	}
	h.OnCaptureUpdate(Split(r))
}

func (b *Bus) handleError(msg *nats.Msg) {
	var evt protocol.CaptureError
	if err := json.Unmarshal(msg.Data, &evt); err != nil {
		b.logger.Warn("failed to decode capture error", slogError(err))
		return
	}
	if evt.SessionID != b.sessionID {
		return
	}
	if h := b.currentHandler(); h != nil {
		h.OnCaptureError(evt.Code)
	}
}

func (b *Bus) handleEnd(msg *nats.Msg) {
	var evt protocol.CaptureEnd
	if err := json.Unmarshal(msg.Data, &evt); err != nil {
		b.logger.Warn("failed to decode capture end", slogError(err))
		return
	}
	if evt.SessionID != b.sessionID {
		return
	}
	if h := b.currentHandler(); h != nil {
		h.OnCaptureEnd()
	}
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
