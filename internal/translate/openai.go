package translate

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var languageNames = map[string]string{
	"en": "English",
	"es": "Spanish",
}

type openAITranslator struct {
	client *openai.Client
	model  string
}

// NewOpenAI translates with a chat completion. An empty baseURL uses the
// public API.
func NewOpenAI(apiKey, baseURL, model string) Translator {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	return &openAITranslator{client: openai.NewClientWithConfig(cfg), model: model}
}

func (t *openAITranslator) Translate(ctx context.Context, text, targetLanguage string) (string, error) {
	ctx, span := otel.Tracer("github.com/loqalabs/loqa-translate/translate").Start(ctx, "translate.openai")
	defer span.End()
	span.SetAttributes(attribute.String("translate.target_language", targetLanguage))

	name, ok := languageNames[targetLanguage]
	if !ok {
		name = targetLanguage
	}
	resp, err := t.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: t.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: fmt.Sprintf("You are a medical interpreter. Translate the user's message into %s. Reply with the translation only.", name),
			},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("openai translate: %w", err)
	}
	if len(resp.Choices) == 0 {
		err := fmt.Errorf("%w: no choices", ErrMalformed)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
