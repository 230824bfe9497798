package ocr

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"idscan/internal/logger"
)

const transcriptionPrompt = `You are an OCR engine. Transcribe every piece of text printed on this identity card exactly as it appears, line by line, in reading order.
Keep labels, numbers, dates and separators as printed. Do not translate, correct, summarize or add anything. Output only the transcription.`

// OpenAIConfig configures the chat-model recognizer.
type OpenAIConfig struct {
	APIKey      string
	Model       string        // must accept image input; default gpt-4o-mini
	MaxAttempts int           // total requests per image; default 2
	Backoff     time.Duration // wait between attempts; default 500ms
}

type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIRecognizer implements Recognizer by asking a vision-capable chat model
// for a verbatim transcription.
type OpenAIRecognizer struct {
	client chatCompleter
	config OpenAIConfig
	log    zerolog.Logger
}

// NewOpenAIRecognizer creates a recognizer using config.APIKey.
func NewOpenAIRecognizer(config OpenAIConfig) (*OpenAIRecognizer, error) {
	const op = "NewOpenAIRecognizer"

	if config.APIKey == "" {
		return nil, NewOCRError(op, ErrInvalidConfiguration, "OPENAI_API_KEY is required")
	}
	return newOpenAIRecognizer(openai.NewClient(config.APIKey), config), nil
}

func newOpenAIRecognizer(client chatCompleter, config OpenAIConfig) *OpenAIRecognizer {
	if config.Model == "" {
		config.Model = "gpt-4o-mini"
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 2
	}
	if config.Backoff <= 0 {
		config.Backoff = 500 * time.Millisecond
	}
	return &OpenAIRecognizer{
		client: client,
		config: config,
		log:    logger.WithComponent("openai-ocr"),
	}
}

// RecognizeText implements Recognizer.
func (o *OpenAIRecognizer) RecognizeText(ctx context.Context, imagePath string) (*OCRResult, error) {
	const op = "RecognizeText"
	startTime := time.Now()

	content, err := readImage(op, imagePath)
	if err != nil {
		return nil, err
	}
	dataURL := fmt.Sprintf("data:%s;base64,%s", http.DetectContentType(content), base64.StdEncoding.EncodeToString(content))

	req := openai.ChatCompletionRequest{
		Model:       o.config.Model,
		Temperature: 0,
		MaxTokens:   1000,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: transcriptionPrompt},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    dataURL,
							Detail: openai.ImageURLDetailHigh,
						},
					},
				},
			},
		},
	}

	var lastErr error
	for attempt := 1; attempt <= o.config.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := o.wait(ctx); err != nil {
				return nil, NewOCRError(op, fmt.Errorf("%w: %w", ErrOCRFailed, err), fmt.Sprintf("after %d attempts: %v", attempt-1, lastErr))
			}
		}

		resp, err := o.client.CreateChatCompletion(ctx, req)
		if err != nil {
			lastErr = err
			o.log.Warn().
				Err(err).
				Int("attempt", attempt).
				Int("max_attempts", o.config.MaxAttempts).
				Msg("Transcription request failed")
			continue
		}
		if len(resp.Choices) == 0 {
			lastErr = fmt.Errorf("no response choices")
			continue
		}

		text := resp.Choices[0].Message.Content
		if strings.TrimSpace(text) == "" {
			return nil, NewOCRError(op, ErrEmptyDocument, imagePath)
		}

		now := time.Now()
		return &OCRResult{
			Text:               text,
			Engine:             EngineOpenAI,
			Variant:            o.config.Model,
			ProcessedAt:        now,
			ProcessingDuration: now.Sub(startTime),
		}, nil
	}

	return nil, NewOCRError(op, ErrOCRFailed, fmt.Sprintf("after %d attempts: %v", o.config.MaxAttempts, lastErr))
}

// wait sleeps for the configured backoff or until ctx is done.
func (o *OpenAIRecognizer) wait(ctx context.Context) error {
	t := time.NewTimer(o.config.Backoff)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
