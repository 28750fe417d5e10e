package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type httpSynth struct {
	endpoint string
	client   *http.Client
	maxBytes int
}

type httpRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
}

// NewHTTPSynth posts {text, voice} to endpoint and reads binary audio back.
func NewHTTPSynth(endpoint string, timeout time.Duration, maxBytes int) Synthesizer {
	return &httpSynth{endpoint: endpoint, client: &http.Client{Timeout: timeout}, maxBytes: maxBytes}
}

func (s *httpSynth) Synthesize(ctx context.Context, text, voice string) (Audio, error) {
	ctx, span := otel.Tracer("github.com/loqalabs/loqa-translate/tts").Start(ctx, "tts.http", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.String("tts.voice", voice), attribute.Int("tts.text_length", len(text)))

	out, err := s.do(ctx, text, voice)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Audio{}, err
	}
	span.SetAttributes(attribute.Int("tts.audio_bytes", len(out.Data)))
	return out, nil
}

func (s *httpSynth) do(ctx context.Context, text, voice string) (Audio, error) {
	body, err := json.Marshal(httpRequest{Text: text, Voice: voice})
	if err != nil {
		return Audio{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return Audio{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/*")

	resp, err := s.client.Do(req)
	if err != nil {
		return Audio{}, fmt.Errorf("tts request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Audio{}, fmt.Errorf("%w: %s: %s", ErrStatus, resp.Status, bytes.TrimSpace(detail))
	}

	data, err := readLimited(resp.Body, s.maxBytes)
	if err != nil {
		return Audio{}, err
	}
	return Audio{Data: data, ContentType: audioContentType(resp.Header.Get("Content-Type"))}, nil
}

func readLimited(r io.Reader, maxBytes int) ([]byte, error) {
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	data, err := io.ReadAll(io.LimitReader(r, int64(maxBytes)+1))
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	if len(data) > maxBytes {
		return nil, ErrTooLarge
	}
	if len(data) == 0 {
		return nil, ErrEmptyAudio
	}
	return data, nil
}

func audioContentType(header string) string {
	mediaType, _, err := mime.ParseMediaType(header)
	if err != nil || mediaType == "" || mediaType == "application/octet-stream" {
		return defaultContentType
	}
	return mediaType
}
