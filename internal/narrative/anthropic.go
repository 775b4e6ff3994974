package narrative

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/negros-cram/brrs/internal/resilience"
	"github.com/negros-cram/brrs/pkg/anthropic"
)

// Anthropic summarizes with the Messages API.
type Anthropic struct {
	client anthropic.Client
	model  string
}

// NewAnthropic wraps client. An empty model uses anthropic.DefaultModel.
func NewAnthropic(client anthropic.Client, model string) *Anthropic {
	if model == "" {
		model = anthropic.DefaultModel
	}
	return &Anthropic{client: client, model: model}
}

// Summarize implements Summarizer.
func (a *Anthropic) Summarize(ctx context.Context, p Prompt) (string, error) {
	temp := p.Temperature
	req := anthropic.MessageRequest{
		Model:       a.model,
		MaxTokens:   int64(p.MaxTokens),
		Messages:    []anthropic.Message{{Role: "user", Content: p.User}},
		Temperature: &temp,
	}
	if p.System != "" {
		req.System = anthropic.CachedSystem(p.System)
	}

	resp, err := a.client.CreateMessage(ctx, req)
	if err != nil {
		return "", resilience.FromStatus(err, anthropic.StatusCode(err))
	}
	resp.Usage.LogCost(a.model, p.Subject)

	text := resp.Text()
	if text == "" {
		return "", eris.Errorf("narrative: empty anthropic response (stop reason %q)", resp.StopReason)
	}
	return text, nil
}
