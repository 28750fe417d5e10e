package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Session.SourceLanguage != "es" || cfg.Session.TargetLanguage != "en" {
		t.Fatalf("expected es->en defaults, got %s->%s", cfg.Session.SourceLanguage, cfg.Session.TargetLanguage)
	}
	if cfg.Session.ErrorText != "Error al traducir." {
		t.Fatalf("unexpected error text %q", cfg.Session.ErrorText)
	}
	if !cfg.Session.DiscardStaleResults {
		t.Fatal("expected stale result guard on by default")
	}
	if cfg.TTS.EnglishVoice != "alloy" || cfg.TTS.DefaultVoice != "nova" {
		t.Fatalf("unexpected voices %s/%s", cfg.TTS.EnglishVoice, cfg.TTS.DefaultVoice)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loqa.yaml")
	data := []byte(`
session:
  source_language: en
  target_language: es
translate:
  mode: http
  endpoint: http://translator.local/translate
tts:
  mode: exec
  command: "piper --json"
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Session.SourceLanguage != "en" || cfg.Session.TargetLanguage != "es" {
		t.Fatalf("expected file languages, got %s->%s", cfg.Session.SourceLanguage, cfg.Session.TargetLanguage)
	}
	if cfg.Translate.Endpoint != "http://translator.local/translate" {
		t.Fatalf("expected endpoint from file, got %s", cfg.Translate.Endpoint)
	}
	if cfg.TTS.Command != "piper --json" {
		t.Fatalf("expected tts command from file, got %s", cfg.TTS.Command)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LOQA_BUS_ENABLED", "true")
	t.Setenv("LOQA_BUS_SERVERS", "nats://one:4222, nats://two:4222")
	t.Setenv("LOQA_BUS_EMBEDDED", "false")
	t.Setenv("LOQA_CAPTURE_MODE", "bus")
	t.Setenv("LOQA_CAPTURE_MOCK_PHRASES", "hola, buenos dias")
	t.Setenv("LOQA_SESSION_DISCARD_STALE_RESULTS", "false")
	t.Setenv("LOQA_TRANSLATE_TIMEOUT_MS", "5000")
	t.Setenv("LOQA_EVENT_STORE_RETENTION_MODE", "persistent")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Bus.Servers) != 2 {
		t.Fatalf("expected 2 servers, got %v", cfg.Bus.Servers)
	}
	if cfg.Capture.Mode != "bus" {
		t.Fatalf("expected capture mode override, got %s", cfg.Capture.Mode)
	}
	if len(cfg.Capture.MockPhrases) != 2 || cfg.Capture.MockPhrases[1] != "buenos dias" {
		t.Fatalf("expected mock phrases override, got %v", cfg.Capture.MockPhrases)
	}
	if cfg.Session.DiscardStaleResults {
		t.Fatal("expected stale guard override false")
	}
	if cfg.Translate.TimeoutMS != 5000 {
		t.Fatalf("expected timeout 5000, got %d", cfg.Translate.TimeoutMS)
	}
	if cfg.EventStore.RetentionMode != "persistent" {
		t.Fatalf("expected retention override")
	}
	if cfg.Translate.APIKey != "sk-test" || cfg.TTS.APIKey != "sk-test" {
		t.Fatalf("expected OPENAI_API_KEY to fill empty keys")
	}
}

func TestValidateRejectsUnsupportedLanguage(t *testing.T) {
	t.Setenv("LOQA_SESSION_TARGET_LANGUAGE", "fr")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for unsupported target language")
	}
}

func TestValidateBusCaptureNeedsBus(t *testing.T) {
	t.Setenv("LOQA_CAPTURE_MODE", "bus")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error when capture.mode=bus without bus")
	}
}

func TestValidateModeRequirements(t *testing.T) {
	cases := map[string]map[string]string{
		"openai translate without key": {"LOQA_TRANSLATE_MODE": "openai"},
		"exec tts without command":     {"LOQA_TTS_MODE": "exec"},
		"unknown tts mode":             {"LOQA_TTS_MODE": "espeak"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("OPENAI_API_KEY", "")
			for k, v := range env {
				t.Setenv(k, v)
			}
			if _, err := Load(""); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}
