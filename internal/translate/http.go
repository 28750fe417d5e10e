package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type httpTranslator struct {
	endpoint string
	client   *http.Client
}

type httpRequest struct {
	Text           string `json:"text"`
	TargetLanguage string `json:"targetLanguage"`
}

type httpResponse struct {
	Translation *string `json:"translation"`
}

// NewHTTP posts {text, targetLanguage} to endpoint and reads {translation}.
func NewHTTP(endpoint string, timeout time.Duration) Translator {
	return &httpTranslator{endpoint: endpoint, client: &http.Client{Timeout: timeout}}
}

func (t *httpTranslator) Translate(ctx context.Context, text, targetLanguage string) (string, error) {
	ctx, span := otel.Tracer("github.com/loqalabs/loqa-translate/translate").Start(ctx, "translate.http", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("translate.target_language", targetLanguage),
		attribute.Int("translate.text_length", len(text)),
	)

	translation, err := t.do(ctx, text, targetLanguage)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	return translation, nil
}

func (t *httpTranslator) do(ctx context.Context, text, targetLanguage string) (string, error) {
	body, err := json.Marshal(httpRequest{Text: text, TargetLanguage: targetLanguage})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("translate request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read translate response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: %s: %s", ErrStatus, resp.Status, bytes.TrimSpace(payload))
	}

	var parsed httpResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if parsed.Translation == nil {
		return "", fmt.Errorf("%w: missing translation field", ErrMalformed)
	}
	return *parsed.Translation, nil
}
