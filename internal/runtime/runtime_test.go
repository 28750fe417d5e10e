package runtime

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/loqalabs/loqa-translate/internal/config"
	"github.com/loqalabs/loqa-translate/internal/eventstore"
	"github.com/loqalabs/loqa-translate/internal/session"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.HTTP.Bind = "127.0.0.1"
	cfg.HTTP.Port = 0
	cfg.Bus.Enabled = true
	cfg.Bus.Port = -1
	cfg.Bus.StoreDir = t.TempDir()
	cfg.Capture.Mode = "mock"
	cfg.Capture.MockPhrases = []string{"Hola"}
	cfg.Capture.MockStepMS = 2
	cfg.EventStore.RetentionMode = "session"
	cfg.EventStore.Path = filepath.Join(t.TempDir(), "events.db")
	return cfg
}

func startRuntime(t *testing.T, cfg config.Config) (*Runtime, string, func()) {
	t.Helper()
	rt := New(cfg, newLogger())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rt.Start(ctx) }()

	select {
	case <-rt.Ready():
	case err := <-done:
		cancel()
		t.Fatalf("runtime exited early: %v", err)
	case <-time.After(5 * time.Second):
		cancel()
		t.Fatal("runtime did not become ready")
	}

	stop := func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("runtime returned error: %v", err)
			}
		case <-time.After(10 * time.Second):
			t.Error("runtime did not stop")
		}
	}
	return rt, "http://" + rt.Addr(), stop
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func post(t *testing.T, url string) int {
	t.Helper()
	resp, err := http.Post(url, "application/json", nil)
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	resp.Body.Close()
	return resp.StatusCode
}

func TestRuntimeServesSessionFlow(t *testing.T) {
	cfg := testConfig(t)
	rt, base, stop := startRuntime(t, cfg)

	if code, _ := get(t, base+"/healthz"); code != http.StatusOK {
		t.Fatalf("healthz: %d", code)
	}
	if code, _ := get(t, base+"/readyz"); code != http.StatusOK {
		t.Fatalf("readyz: %d", code)
	}

	if code := post(t, base+"/session/capture/start"); code != http.StatusOK {
		t.Fatalf("capture start: %d", code)
	}
	deadline := time.Now().Add(3 * time.Second)
	for rt.Session().State().InputText != "Hola" {
		if time.Now().After(deadline) {
			t.Fatal("mock capture never delivered its phrase")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if code := post(t, base+"/session/capture/stop"); code != http.StatusAccepted {
		t.Fatalf("capture stop: %d", code)
	}
	rt.Session().Wait()

	_, body := get(t, base+"/session")
	var st session.State
	if err := json.Unmarshal([]byte(body), &st); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if st.TranslatedText != "Hello" || st.Audio == nil {
		t.Fatalf("unexpected state %+v", st)
	}
	if code, _ := get(t, base+st.Audio.URL); code != http.StatusOK {
		t.Fatalf("audio: %d", code)
	}

	code, metrics := get(t, base+"/metrics")
	if code != http.StatusOK || !strings.Contains(metrics, "loqa_translate_translations") || !strings.Contains(metrics, "loqa_translate_audio_clips") {
		t.Fatalf("expected session instruments in metrics, got %d", code)
	}

	stop()

	store, err := eventstore.Open(context.Background(), cfg.EventStore, newLogger())
	if err != nil {
		t.Fatalf("reopen event store: %v", err)
	}
	defer store.Close()
	events, err := store.ListSessionEvents(context.Background(), st.SessionID, 100)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) == 0 {
		t.Fatal("expected session timeline to be recorded")
	}
	for _, evt := range events {
		for _, v := range evt.Details {
			if v == "Hola" || v == "Hello" {
				t.Fatalf("timeline event %s carries text", evt.Type)
			}
		}
	}
}

func TestRuntimeWithoutBusOrMetrics(t *testing.T) {
	cfg := testConfig(t)
	cfg.Bus.Enabled = false
	cfg.Capture.Mode = "none"
	cfg.Telemetry.MetricsEnabled = false
	cfg.EventStore.RetentionMode = "ephemeral"
	_, base, stop := startRuntime(t, cfg)
	defer stop()

	if code := post(t, base+"/session/capture/start"); code != http.StatusConflict {
		t.Fatalf("expected 409 without capture, got %d", code)
	}
	if code, _ := get(t, base+"/metrics"); code != http.StatusNotFound {
		t.Fatalf("expected no metrics route, got %d", code)
	}
}

func TestRuntimeRejectsBusCaptureWithoutBus(t *testing.T) {
	cfg := testConfig(t)
	cfg.Bus.Enabled = false
	cfg.Capture.Mode = "bus"
	rt := New(cfg, newLogger())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rt.Start(ctx); err == nil {
		t.Fatal("expected error for bus capture without bus")
	}
}
