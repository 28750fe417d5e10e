package translate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/loqalabs/loqa-translate/internal/config"
)

func TestHTTPTranslatorSuccess(t *testing.T) {
	var got httpRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected json content type, got %s", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"translation":"Hello"}`))
	}))
	defer srv.Close()

	tr := NewHTTP(srv.URL, time.Second)
	out, err := tr.Translate(context.Background(), "Hola", "en")
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if out != "Hello" {
		t.Fatalf("expected Hello, got %q", out)
	}
	if got.Text != "Hola" || got.TargetLanguage != "en" {
		t.Fatalf("unexpected request body %+v", got)
	}
}

func TestHTTPTranslatorEmptyTranslationIsValid(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"translation":""}`))
	}))
	defer srv.Close()

	out, err := NewHTTP(srv.URL, time.Second).Translate(context.Background(), "", "en")
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if out != "" {
		t.Fatalf("expected empty translation, got %q", out)
	}
}

func TestHTTPTranslatorFailures(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{name: "server error", status: http.StatusInternalServerError, body: `{"error":"boom"}`, want: ErrStatus},
		{name: "bad request", status: http.StatusBadRequest, body: ``, want: ErrStatus},
		{name: "not json", status: http.StatusOK, body: `<html>`, want: ErrMalformed},
		{name: "missing field", status: http.StatusOK, body: `{"text":"Hello"}`, want: ErrMalformed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := NewHTTP(srv.URL, time.Second).Translate(context.Background(), "Hola", "en")
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestHTTPTranslatorUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	if _, err := NewHTTP(url, time.Second).Translate(context.Background(), "Hola", "en"); err == nil {
		t.Fatal("expected error for unreachable endpoint")
	}
}

func TestMockTranslator(t *testing.T) {
	m := NewMock(nil)
	out, err := m.Translate(context.Background(), "Hola", "en")
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if out != "Hello" {
		t.Fatalf("expected Hello, got %q", out)
	}
	out, _ = m.Translate(context.Background(), "Buenas noches", "en")
	if out != "[en] Buenas noches" {
		t.Fatalf("expected prefixed fallback, got %q", out)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.Translate(ctx, "Hola", "en"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNewSelectsMode(t *testing.T) {
	if _, err := New(config.TranslateConfig{Mode: "carrier-pigeon"}); err == nil {
		t.Fatal("expected error for unknown mode")
	}
	tr, err := New(config.TranslateConfig{Mode: "http", Endpoint: "http://localhost", TimeoutMS: 10})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, ok := tr.(*httpTranslator); !ok {
		t.Fatalf("expected http translator, got %T", tr)
	}
	tr, err = New(config.TranslateConfig{Mode: "openai", APIKey: "sk-test"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, ok := tr.(*openAITranslator); !ok {
		t.Fatalf("expected openai translator, got %T", tr)
	}
}

func TestOpenAITranslatorAgainstStub(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":" Hello \n"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	tr := NewOpenAI("sk-test", srv.URL+"/v1", "")
	out, err := tr.Translate(context.Background(), "Hola", "en")
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if out != "Hello" {
		t.Fatalf("expected trimmed Hello, got %q", out)
	}
}
