package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/wav"
	"github.com/loqalabs/loqa-translate/internal/config"
)

func TestVoiceMapping(t *testing.T) {
	cases := map[string]string{
		"en": "alloy",
		"es": "nova",
		"fr": "nova",
		"":   "nova",
		"EN": "nova",
	}
	for lang, want := range cases {
		if got := DefaultVoices.For(lang); got != want {
			t.Errorf("DefaultVoices.For(%q) = %q, want %q", lang, got, want)
		}
	}
}

func TestVoicesFromConfig(t *testing.T) {
	v := VoicesFromConfig(config.TTSConfig{EnglishVoice: "echo"})
	if v.For("en") != "echo" || v.For("es") != "nova" {
		t.Fatalf("unexpected voices %+v", v)
	}
}

func TestHTTPSynthSuccess(t *testing.T) {
	var got httpRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3fake-mp3"))
	}))
	defer srv.Close()

	s := NewHTTPSynth(srv.URL, time.Second, 1024)
	out, err := s.Synthesize(context.Background(), "Hello", "alloy")
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if string(out.Data) != "ID3fake-mp3" {
		t.Fatalf("unexpected audio %q", out.Data)
	}
	if out.ContentType != "audio/mpeg" {
		t.Fatalf("unexpected content type %s", out.ContentType)
	}
	if got.Text != "Hello" || got.Voice != "alloy" {
		t.Fatalf("unexpected request %+v", got)
	}
}

func TestHTTPSynthFailures(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		limit  int
		want   error
	}{
		{name: "server error", status: http.StatusInternalServerError, body: "boom", limit: 1024, want: ErrStatus},
		{name: "empty body", status: http.StatusOK, body: "", limit: 1024, want: ErrEmptyAudio},
		{name: "too large", status: http.StatusOK, body: "0123456789", limit: 4, want: ErrTooLarge},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := NewHTTPSynth(srv.URL, time.Second, tc.limit).Synthesize(context.Background(), "Hola", "nova")
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestAudioContentTypeDefaults(t *testing.T) {
	cases := map[string]string{
		"":                         "audio/mpeg",
		"application/octet-stream": "audio/mpeg",
		"audio/wav; rate=22050":    "audio/wav",
		"audio/ogg":                "audio/ogg",
	}
	for header, want := range cases {
		if got := audioContentType(header); got != want {
			t.Errorf("audioContentType(%q) = %q, want %q", header, got, want)
		}
	}
}

func TestMockSynthProducesWAV(t *testing.T) {
	s := NewMockSynth(16000, 1)
	out, err := s.Synthesize(context.Background(), "Hello", "alloy")
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if out.ContentType != "audio/wav" {
		t.Fatalf("unexpected content type %s", out.ContentType)
	}
	dec := wav.NewDecoder(bytes.NewReader(out.Data))
	if !dec.IsValidFile() {
		t.Fatal("expected a valid wav file")
	}
	if dec.SampleRate != 16000 {
		t.Fatalf("expected 16000 Hz, got %d", dec.SampleRate)
	}
}

func TestMockSynthHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewMockSynth(16000, 1).Synthesize(ctx, "Hello", "alloy"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestExecSynth(t *testing.T) {
	script := filepath.Join(t.TempDir(), "engine.sh")
	body := "#!/bin/sh\ncat > /dev/null\necho '{\"pcm_base64\":\"AAAAAA==\",\"final\":false}'\necho '{\"pcm_base64\":\"AAAAAA==\",\"final\":true}'\n"
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}

	s, err := NewExecSynth("sh "+script, 8000, 1)
	if err != nil {
		t.Fatalf("new exec synth: %v", err)
	}
	out, err := s.Synthesize(context.Background(), "Hola", "nova")
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	dec := wav.NewDecoder(bytes.NewReader(out.Data))
	if !dec.IsValidFile() {
		t.Fatal("expected a valid wav file")
	}
}

func TestExecSynthRejectsEmptyCommand(t *testing.T) {
	if _, err := NewExecSynth("   ", 8000, 1); err == nil {
		t.Fatal("expected error for empty command")
	}
}

func TestNewSelectsMode(t *testing.T) {
	if _, err := New(config.TTSConfig{Mode: "espeak"}, 1024); err == nil {
		t.Fatal("expected error for unknown mode")
	}
	s, err := New(config.TTSConfig{Mode: "http", Endpoint: "http://localhost", TimeoutMS: 10}, 1024)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, ok := s.(*httpSynth); !ok {
		t.Fatalf("expected http synth, got %T", s)
	}
}
