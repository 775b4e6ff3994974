package narrative

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	openai "github.com/sashabaranov/go-openai"

	"github.com/negros-cram/brrs/internal/resilience"
)

// Groq defaults for the OpenAI-compatible backend.
const (
	GroqBaseURL = "https://api.groq.com/openai/v1"
	GroqModel   = "llama-3.3-70b-versatile"
)

// OpenAI summarizes with any OpenAI-compatible chat completions endpoint.
type OpenAI struct {
	client *openai.Client
	model  string
}

// OpenAIOptions configures NewOpenAI. Empty fields use the Groq defaults.
type OpenAIOptions struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

// NewOpenAI creates a chat completions backend.
func NewOpenAI(apiKey string, opts OpenAIOptions) *OpenAI {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = GroqBaseURL
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	if opts.Timeout > 0 {
		cfg.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	model := opts.Model
	if model == "" {
		model = GroqModel
	}
	return &OpenAI{client: openai.NewClientWithConfig(cfg), model: model}
}

// Summarize implements Summarizer.
func (o *OpenAI) Summarize(ctx context.Context, p Prompt) (string, error) {
	var msgs []openai.ChatCompletionMessage
	if p.System != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: p.System})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: p.User})

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Messages:    msgs,
		MaxTokens:   p.MaxTokens,
		Temperature: float32(p.Temperature),
	})
	if err != nil {
		return "", resilience.FromStatus(eris.Wrap(err, "narrative: chat completion"), openAIStatus(err))
	}
	if len(resp.Choices) == 0 {
		return "", eris.New("narrative: chat completion returned no choices")
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", eris.New("narrative: chat completion returned empty content")
	}
	return text, nil
}

func openAIStatus(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
