package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel       string `yaml:"log_level"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
	MetricsEnabled bool   `yaml:"metrics_enabled"`
	StdoutTraces   bool   `yaml:"stdout_traces"`
}

type HTTPConfig struct {
	Bind           string   `yaml:"bind"`
	Port           int      `yaml:"port"`
	PublicURL      string   `yaml:"public_url"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type Config struct {
	RuntimeName string           `yaml:"runtime_name"`
	Environment string           `yaml:"environment"`
	HTTP        HTTPConfig       `yaml:"http"`
	Telemetry   TelemetryConfig  `yaml:"telemetry"`
	Bus         BusConfig        `yaml:"bus"`
	Session     SessionConfig    `yaml:"session"`
	Capture     CaptureConfig    `yaml:"capture"`
	Translate   TranslateConfig  `yaml:"translate"`
	TTS         TTSConfig        `yaml:"tts"`
	Audio       AudioConfig      `yaml:"audio"`
	EventStore  EventStoreConfig `yaml:"event_store"`
}

type BusConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	StoreDir       string   `yaml:"store_dir"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type SessionConfig struct {
	SourceLanguage      string `yaml:"source_language"`
	TargetLanguage      string `yaml:"target_language"`
	Placeholder         string `yaml:"placeholder"`
	ErrorText           string `yaml:"error_text"`
	DiscardStaleResults bool   `yaml:"discard_stale_results"`
}

type CaptureConfig struct {
	Mode           string   `yaml:"mode"` // none, mock, bus
	Continuous     bool     `yaml:"continuous"`
	InterimResults bool     `yaml:"interim_results"`
	MockPhrases    []string `yaml:"mock_phrases"`
	MockStepMS     int      `yaml:"mock_step_ms"`
}

type TranslateConfig struct {
	Mode      string `yaml:"mode"` // mock, http, openai
	Endpoint  string `yaml:"endpoint"`
	APIKey    string `yaml:"api_key"`
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
	TimeoutMS int    `yaml:"timeout_ms"`
}

type TTSConfig struct {
	Mode         string `yaml:"mode"` // mock, http, openai, exec
	Endpoint     string `yaml:"endpoint"`
	APIKey       string `yaml:"api_key"`
	BaseURL      string `yaml:"base_url"`
	Model        string `yaml:"model"`
	Command      string `yaml:"command"`
	DefaultVoice string `yaml:"default_voice"`
	EnglishVoice string `yaml:"english_voice"`
	SampleRate   int    `yaml:"sample_rate"`
	TimeoutMS    int    `yaml:"timeout_ms"`
}

type AudioConfig struct {
	MaxBytes int `yaml:"max_bytes"`
}

type EventStoreConfig struct {
	Path          string `yaml:"path"`
	RetentionMode string `yaml:"retention_mode"`
	RetentionDays int    `yaml:"retention_days"`
	MaxSessions   int    `yaml:"max_sessions"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

const (
	DefaultTranslateEndpoint = "https://api-rest-705644627870.us-central1.run.app/translate"
	DefaultTTSEndpoint       = "https://api-rest-705644627870.us-central1.run.app/text-to-speech"
)

func Default() Config {
	return Config{
		RuntimeName: "loqa-translate",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind:           "0.0.0.0",
			Port:           8080,
			AllowedOrigins: []string{"*"},
		},
		Telemetry: TelemetryConfig{
			LogLevel:       "info",
			OTLPInsecure:   true,
			MetricsEnabled: true,
		},
		Bus: BusConfig{
			Enabled:        false,
			Embedded:       true,
			Port:           4222,
			StoreDir:       "./data/nats",
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Session: SessionConfig{
			SourceLanguage:      "es",
			TargetLanguage:      "en",
			Placeholder:         "Texto traducido aparecerá aqui ....",
			ErrorText:           "Error al traducir.",
			DiscardStaleResults: true,
		},
		Capture: CaptureConfig{
			Mode:           "none",
			Continuous:     true,
			InterimResults: true,
			MockStepMS:     150,
		},
		Translate: TranslateConfig{
			Mode:      "mock",
			Endpoint:  DefaultTranslateEndpoint,
			Model:     "gpt-4o-mini",
			TimeoutMS: 15000,
		},
		TTS: TTSConfig{
			Mode:         "mock",
			Endpoint:     DefaultTTSEndpoint,
			Model:        "tts-1",
			DefaultVoice: "nova",
			EnglishVoice: "alloy",
			SampleRate:   22050,
			TimeoutMS:    30000,
		},
		Audio: AudioConfig{
			MaxBytes: 10 << 20,
		},
		EventStore: EventStoreConfig{
			Path:          "./data/loqa-translate.db",
			RetentionMode: "ephemeral",
			RetentionDays: 7,
			MaxSessions:   1000,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.RuntimeName, "LOQA_RUNTIME_NAME")
	overrideString(&cfg.Environment, "LOQA_RUNTIME_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "LOQA_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "LOQA_HTTP_PORT")
	overrideString(&cfg.HTTP.PublicURL, "LOQA_HTTP_PUBLIC_URL")
	overrideStringSlice(&cfg.HTTP.AllowedOrigins, "LOQA_HTTP_ALLOWED_ORIGINS")
	overrideString(&cfg.Telemetry.LogLevel, "LOQA_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "LOQA_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "LOQA_TELEMETRY_OTLP_INSECURE")
	overrideBool(&cfg.Telemetry.MetricsEnabled, "LOQA_TELEMETRY_METRICS_ENABLED")
	overrideBool(&cfg.Telemetry.StdoutTraces, "LOQA_TELEMETRY_STDOUT_TRACES")
	overrideBool(&cfg.Bus.Enabled, "LOQA_BUS_ENABLED")
	overrideBool(&cfg.Bus.Embedded, "LOQA_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "LOQA_BUS_PORT")
	overrideString(&cfg.Bus.StoreDir, "LOQA_BUS_STORE_DIR")
	overrideStringSlice(&cfg.Bus.Servers, "LOQA_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "LOQA_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "LOQA_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "LOQA_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "LOQA_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "LOQA_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.Session.SourceLanguage, "LOQA_SESSION_SOURCE_LANGUAGE")
	overrideString(&cfg.Session.TargetLanguage, "LOQA_SESSION_TARGET_LANGUAGE")
	overrideString(&cfg.Session.Placeholder, "LOQA_SESSION_PLACEHOLDER")
	overrideString(&cfg.Session.ErrorText, "LOQA_SESSION_ERROR_TEXT")
	overrideBool(&cfg.Session.DiscardStaleResults, "LOQA_SESSION_DISCARD_STALE_RESULTS")
	overrideString(&cfg.Capture.Mode, "LOQA_CAPTURE_MODE")
	overrideBool(&cfg.Capture.Continuous, "LOQA_CAPTURE_CONTINUOUS")
	overrideBool(&cfg.Capture.InterimResults, "LOQA_CAPTURE_INTERIM_RESULTS")
	overrideStringSlice(&cfg.Capture.MockPhrases, "LOQA_CAPTURE_MOCK_PHRASES")
	overrideInt(&cfg.Capture.MockStepMS, "LOQA_CAPTURE_MOCK_STEP_MS")
	overrideString(&cfg.Translate.Mode, "LOQA_TRANSLATE_MODE")
	overrideString(&cfg.Translate.Endpoint, "LOQA_TRANSLATE_ENDPOINT")
	overrideString(&cfg.Translate.APIKey, "LOQA_TRANSLATE_API_KEY")
	overrideString(&cfg.Translate.BaseURL, "LOQA_TRANSLATE_BASE_URL")
	overrideString(&cfg.Translate.Model, "LOQA_TRANSLATE_MODEL")
	overrideInt(&cfg.Translate.TimeoutMS, "LOQA_TRANSLATE_TIMEOUT_MS")
	overrideString(&cfg.TTS.Mode, "LOQA_TTS_MODE")
	overrideString(&cfg.TTS.Endpoint, "LOQA_TTS_ENDPOINT")
	overrideString(&cfg.TTS.APIKey, "LOQA_TTS_API_KEY")
	overrideString(&cfg.TTS.BaseURL, "LOQA_TTS_BASE_URL")
	overrideString(&cfg.TTS.Model, "LOQA_TTS_MODEL")
	overrideString(&cfg.TTS.Command, "LOQA_TTS_COMMAND")
	overrideString(&cfg.TTS.DefaultVoice, "LOQA_TTS_DEFAULT_VOICE")
	overrideString(&cfg.TTS.EnglishVoice, "LOQA_TTS_ENGLISH_VOICE")
	overrideInt(&cfg.TTS.SampleRate, "LOQA_TTS_SAMPLE_RATE")
	overrideInt(&cfg.TTS.TimeoutMS, "LOQA_TTS_TIMEOUT_MS")
	overrideInt(&cfg.Audio.MaxBytes, "LOQA_AUDIO_MAX_BYTES")
	overrideString(&cfg.EventStore.Path, "LOQA_EVENT_STORE_PATH")
	overrideString(&cfg.EventStore.RetentionMode, "LOQA_EVENT_STORE_RETENTION_MODE")
	overrideInt(&cfg.EventStore.RetentionDays, "LOQA_EVENT_STORE_RETENTION_DAYS")
	overrideInt(&cfg.EventStore.MaxSessions, "LOQA_EVENT_STORE_MAX_SESSIONS")
	overrideBool(&cfg.EventStore.VacuumOnStart, "LOQA_EVENT_STORE_VACUUM_ON_START")

	// OPENAI_API_KEY is the conventional name; it only fills keys left empty.
	if key := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); key != "" {
		if cfg.Translate.APIKey == "" {
			cfg.Translate.APIKey = key
		}
		if cfg.TTS.APIKey == "" {
			cfg.TTS.APIKey = key
		}
	}
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		var trimmed []string
		for _, p := range strings.Split(value, ",") {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

// SupportedLanguages lists the language codes a session accepts.
var SupportedLanguages = []string{"es", "en"}

// IsSupportedLanguage reports whether code is one of SupportedLanguages.
func IsSupportedLanguage(code string) bool {
	for _, l := range SupportedLanguages {
		if l == code {
			return true
		}
	}
	return false
}

func validate(cfg Config) error {
	if cfg.RuntimeName == "" {
		return errors.New("runtime_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.Bus.Enabled {
		if cfg.Bus.Embedded {
			if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
				return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
			}
		} else if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	if !IsSupportedLanguage(cfg.Session.SourceLanguage) {
		return fmt.Errorf("session.source_language %q must be one of %s", cfg.Session.SourceLanguage, strings.Join(SupportedLanguages, "|"))
	}
	if !IsSupportedLanguage(cfg.Session.TargetLanguage) {
		return fmt.Errorf("session.target_language %q must be one of %s", cfg.Session.TargetLanguage, strings.Join(SupportedLanguages, "|"))
	}
	if cfg.Session.ErrorText == "" {
		return errors.New("session.error_text must not be empty")
	}
	switch cfg.Capture.Mode {
	case "none", "mock":
	case "bus":
		if !cfg.Bus.Enabled {
			return errors.New("capture.mode=bus requires bus.enabled")
		}
	default:
		return errors.New("capture.mode must be one of none|mock|bus")
	}
	switch cfg.Translate.Mode {
	case "mock":
	case "http":
		if cfg.Translate.Endpoint == "" {
			return errors.New("translate.endpoint must be set when mode=http")
		}
	case "openai":
		if cfg.Translate.APIKey == "" {
			return errors.New("translate.api_key must be set when mode=openai")
		}
	default:
		return errors.New("translate.mode must be one of mock|http|openai")
	}
	if cfg.Translate.TimeoutMS <= 0 {
		return errors.New("translate.timeout_ms must be positive")
	}
	switch cfg.TTS.Mode {
	case "mock":
		if cfg.TTS.SampleRate <= 0 {
			return errors.New("tts.sample_rate must be positive")
		}
	case "http":
		if cfg.TTS.Endpoint == "" {
			return errors.New("tts.endpoint must be set when mode=http")
		}
	case "openai":
		if cfg.TTS.APIKey == "" {
			return errors.New("tts.api_key must be set when mode=openai")
		}
	case "exec":
		if cfg.TTS.Command == "" {
			return errors.New("tts.command must be set when mode=exec")
		}
	default:
		return errors.New("tts.mode must be one of mock|http|openai|exec")
	}
	if cfg.TTS.DefaultVoice == "" || cfg.TTS.EnglishVoice == "" {
		return errors.New("tts.default_voice and tts.english_voice must not be empty")
	}
	if cfg.TTS.TimeoutMS <= 0 {
		return errors.New("tts.timeout_ms must be positive")
	}
	if cfg.Audio.MaxBytes <= 0 {
		return errors.New("audio.max_bytes must be positive")
	}
	switch cfg.EventStore.RetentionMode {
	case "ephemeral", "session", "persistent":
		// ok
	default:
		return errors.New("event_store.retention_mode must be one of ephemeral|session|persistent")
	}
	if cfg.EventStore.RetentionMode != "ephemeral" && cfg.EventStore.Path == "" {
		return errors.New("event_store.path must not be empty")
	}
	if cfg.EventStore.RetentionDays < 0 {
		return errors.New("event_store.retention_days must be >= 0")
	}
	return nil
}
