package tts

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type openAISynth struct {
	client   *openai.Client
	model    openai.SpeechModel
	maxBytes int
}

// NewOpenAISynth calls the speech endpoint directly; the alloy and nova
// voices of the voice table are OpenAI voice names.
func NewOpenAISynth(apiKey, baseURL, model string, maxBytes int) Synthesizer {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	m := openai.TTSModel1
	if model != "" {
		m = openai.SpeechModel(model)
	}
	return &openAISynth{client: openai.NewClientWithConfig(cfg), model: m, maxBytes: maxBytes}
}

func (s *openAISynth) Synthesize(ctx context.Context, text, voice string) (Audio, error) {
	ctx, span := otel.Tracer("github.com/loqalabs/loqa-translate/tts").Start(ctx, "tts.openai")
	defer span.End()
	span.SetAttributes(attribute.String("tts.voice", voice))

	resp, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          s.model,
		Input:          text,
		Voice:          openai.SpeechVoice(voice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Audio{}, fmt.Errorf("openai speech: %w", err)
	}
	defer resp.Close()

	data, err := readLimited(resp, s.maxBytes)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return Audio{}, err
	}
	return Audio{Data: data, ContentType: "audio/mpeg"}, nil
}
