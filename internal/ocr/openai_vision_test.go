package ocr

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCompleter struct {
	responses []openai.ChatCompletionResponse
	errs      []error
	reqs      []openai.ChatCompletionRequest
}

func (f *fakeCompleter) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	i := len(f.reqs)
	f.reqs = append(f.reqs, req)
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	var resp openai.ChatCompletionResponse
	if i < len(f.responses) {
		resp = f.responses[i]
	}
	return resp, err
}

func reply(text string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: text}},
		},
	}
}

func TestOpenAIRecognizeTextRetries(t *testing.T) {
	client := &fakeCompleter{
		errs:      []error{errors.New("rate limited"), nil},
		responses: []openai.ChatCompletionResponse{{}, reply("VID: 9123 4567 890")},
	}
	r := newOpenAIRecognizer(client, OpenAIConfig{APIKey: "sk-test", Backoff: time.Millisecond})

	res, err := r.RecognizeText(context.Background(), writeCardPNG(t))
	require.NoError(t, err)

	assert.Equal(t, "VID: 9123 4567 890", res.Text)
	assert.Equal(t, EngineOpenAI, res.Engine)
	assert.Equal(t, "gpt-4o-mini", res.Variant)
	require.Len(t, client.reqs, 2)

	parts := client.reqs[0].Messages[0].MultiContent
	require.Len(t, parts, 2)
	assert.Equal(t, transcriptionPrompt, parts[0].Text)
	assert.True(t, strings.HasPrefix(parts[1].ImageURL.URL, "data:image/png;base64,"))
}

func TestOpenAIRecognizeTextGivesUp(t *testing.T) {
	client := &fakeCompleter{errs: []error{errors.New("boom"), errors.New("boom"), errors.New("boom")}}
	r := newOpenAIRecognizer(client, OpenAIConfig{MaxAttempts: 3, Backoff: time.Millisecond})

	_, err := r.RecognizeText(context.Background(), writeCardPNG(t))

	assert.True(t, errors.Is(err, ErrOCRFailed))
	assert.Len(t, client.reqs, 3)
}

func TestOpenAIRecognizeTextDefaults(t *testing.T) {
	r := newOpenAIRecognizer(&fakeCompleter{}, OpenAIConfig{})

	assert.Equal(t, "gpt-4o-mini", r.config.Model)
	assert.Equal(t, 2, r.config.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, r.config.Backoff)
}

// cancellingCompleter fails every request and cancels the caller's context
// after the first one.
type cancellingCompleter struct {
	cancel context.CancelFunc
	calls  int
}

func (c *cancellingCompleter) CreateChatCompletion(context.Context, openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	c.calls++
	c.cancel()
	return openai.ChatCompletionResponse{}, errors.New("rate limited")
}

func TestOpenAIRecognizeTextStopsWaitingOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client := &cancellingCompleter{cancel: cancel}
	r := newOpenAIRecognizer(client, OpenAIConfig{MaxAttempts: 5, Backoff: time.Hour})

	start := time.Now()
	_, err := r.RecognizeText(ctx, writeCardPNG(t))

	assert.Less(t, time.Since(start), time.Minute)
	assert.Equal(t, 1, client.calls)
	assert.True(t, errors.Is(err, ErrOCRFailed))
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Contains(t, err.Error(), "rate limited")
}

func TestOpenAIRecognizeTextEmptyTranscription(t *testing.T) {
	client := &fakeCompleter{responses: []openai.ChatCompletionResponse{reply("   ")}}

	_, err := newOpenAIRecognizer(client, OpenAIConfig{}).RecognizeText(context.Background(), writeCardPNG(t))

	assert.True(t, errors.Is(err, ErrEmptyDocument))
}

func TestNewOpenAIRecognizerRequiresKey(t *testing.T) {
	r, err := NewOpenAIRecognizer(OpenAIConfig{})
	assert.Nil(t, r)
	assert.True(t, errors.Is(err, ErrInvalidConfiguration))
}
