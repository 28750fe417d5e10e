package capture

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/loqalabs/loqa-translate/internal/bus"
	"github.com/loqalabs/loqa-translate/internal/config"
	"github.com/loqalabs/loqa-translate/internal/natsserver"
	"github.com/loqalabs/loqa-translate/internal/protocol"
	"github.com/nats-io/nats.go"
)

func startBus(t *testing.T) *bus.Client {
	t.Helper()
	cfg := config.BusConfig{Enabled: true, Embedded: true, Port: -1, StoreDir: t.TempDir(), ConnectTimeout: 2000}
	srv, err := natsserver.Start(cfg, newLogger())
	if err != nil {
		t.Fatalf("start embedded nats: %v", err)
	}
	t.Cleanup(srv.Shutdown)

	cfg.Servers = []string{srv.ClientURL()}
	client, err := bus.Connect(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(client.Close)
	return client
}

func TestBusCaptureRoundTrip(t *testing.T) {
	client := startBus(t)

	controls := make(chan protocol.CaptureControl, 4)
	sub, err := client.Conn().Subscribe(protocol.SubjectCaptureControl, func(msg *nats.Msg) {
		var ctrl protocol.CaptureControl
		if err := json.Unmarshal(msg.Data, &ctrl); err == nil {
			controls <- ctrl
		}
	})
	if err != nil {
		t.Fatalf("subscribe control: %v", err)
	}
	t.Cleanup(func() { _ = sub.Unsubscribe() })

	c := NewBus(client, "session-1", Settings{Continuous: true, InterimResults: true}, newLogger())
	if !c.Available() {
		t.Fatal("expected bus capture available on a connected client")
	}
	h := newRecordingHandler()
	c.Subscribe(h)
	c.Configure("es")
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	select {
	case ctrl := <-controls:
		if ctrl.Action != protocol.CaptureActionStart || ctrl.Language != "es" || !ctrl.Continuous || !ctrl.InterimResults {
			t.Fatalf("unexpected start control %+v", ctrl)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no start control published")
	}

	// Results for other sessions are ignored.
	if err := client.PublishJSON(protocol.SubjectCaptureResult, protocol.CaptureResult{SessionID: "other", Results: []protocol.CaptureFragment{{Transcript: "nope"}}}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := client.PublishJSON(protocol.SubjectCaptureResult, protocol.CaptureResult{
		SessionID: "session-1",
		Results:   []protocol.CaptureFragment{{Transcript: "Hol"}},
	}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if got := h.next(t); got.kind != "update" || got.interim != "Hol" {
		t.Fatalf("expected interim Hol, got %+v", got)
	}

	if err := client.PublishJSON(protocol.SubjectCaptureError, protocol.CaptureError{SessionID: "session-1", Code: "no-speech"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if got := h.next(t); got.kind != "error" || got.code != "no-speech" {
		t.Fatalf("expected error event, got %+v", got)
	}

	if err := c.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	select {
	case ctrl := <-controls:
		if ctrl.Action != protocol.CaptureActionStop {
			t.Fatalf("expected stop control, got %+v", ctrl)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no stop control published")
	}
}

func TestBusCaptureRestartsAfterRecognizerStops(t *testing.T) {
	cases := []struct {
		name    string
		subject string
		msg     any
		kind    string
	}{
		{name: "end", subject: protocol.SubjectCaptureEnd, msg: protocol.CaptureEnd{SessionID: "session-1"}, kind: "end"},
		{name: "error", subject: protocol.SubjectCaptureError, msg: protocol.CaptureError{SessionID: "session-1", Code: "network"}, kind: "error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := startBus(t)
			c := NewBus(client, "session-1", Settings{Continuous: true, InterimResults: true}, newLogger())
			h := newRecordingHandler()
			c.Subscribe(h)
			t.Cleanup(func() { _ = c.Close() })

			if err := c.Start(context.Background()); err != nil {
				t.Fatalf("start: %v", err)
			}
			if err := client.PublishJSON(tc.subject, tc.msg); err != nil {
				t.Fatalf("publish: %v", err)
			}
			if got := h.next(t); got.kind != tc.kind {
				t.Fatalf("expected %s event, got %+v", tc.kind, got)
			}

			if err := c.Start(context.Background()); err != nil {
				t.Fatalf("restart after %s: %v", tc.name, err)
			}
			if err := client.PublishJSON(protocol.SubjectCaptureResult, protocol.CaptureResult{
				SessionID: "session-1",
				Results:   []protocol.CaptureFragment{{Transcript: "otra vez", Final: true}},
			}); err != nil {
				t.Fatalf("publish: %v", err)
			}
			if got := h.next(t); got.kind != "update" || got.final != "otra vez" {
				t.Fatalf("expected final result after restart, got %+v", got)
			}
			// the first run's subscriptions are gone, so the result arrives once
			select {
			case extra := <-h.ch:
				t.Fatalf("result delivered twice: %+v", extra)
			case <-time.After(100 * time.Millisecond):
			}
		})
	}
}
