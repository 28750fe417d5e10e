package translate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/loqalabs/loqa-translate/internal/config"
)

var (
	// ErrStatus marks a non-2xx response from the translation endpoint.
	ErrStatus = errors.New("translation endpoint returned error status")
	// ErrMalformed marks a response body that is not a translation.
	ErrMalformed = errors.New("malformed translation response")
)

// Translator converts text into the target language.
type Translator interface {
	Translate(ctx context.Context, text, targetLanguage string) (string, error)
}

// New builds the translator selected by cfg.Mode.
func New(cfg config.TranslateConfig) (Translator, error) {
	timeout := time.Duration(cfg.TimeoutMS) * time.Millisecond
	switch cfg.Mode {
	case "", "mock":
		return NewMock(nil), nil
	case "http":
		return NewHTTP(cfg.Endpoint, timeout), nil
	case "openai":
		return NewOpenAI(cfg.APIKey, cfg.BaseURL, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unknown translate mode %q", cfg.Mode)
	}
}
