package narrative

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/negros-cram/brrs/internal/resilience"
	"github.com/negros-cram/brrs/pkg/anthropic"
)

type mockClient struct {
	mock.Mock
}

func (m *mockClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*anthropic.MessageResponse)
	return resp, args.Error(1)
}

func TestAnthropic_Summarize(t *testing.T) {
	client := &mockClient{}
	client.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.Model == anthropic.DefaultModel &&
			req.MaxTokens == 400 &&
			len(req.System) == 1 && req.System[0].Text == "sys" &&
			len(req.Messages) == 1 && req.Messages[0].Content == "hello" &&
			req.Temperature != nil && *req.Temperature == 0.7
	})).Return(&anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: "  the analysis  "}},
		Usage:   anthropic.TokenUsage{InputTokens: 100, OutputTokens: 50},
	}, nil)

	text, err := NewAnthropic(client, "").Summarize(context.Background(), Prompt{
		Subject: "barangay:1", System: "sys", User: "hello", MaxTokens: 400, Temperature: 0.7,
	})
	require.NoError(t, err)
	assert.Equal(t, "the analysis", text)
	client.AssertExpectations(t)
}

func TestAnthropic_EmptyResponse(t *testing.T) {
	client := &mockClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(&anthropic.MessageResponse{StopReason: "max_tokens"}, nil)

	_, err := NewAnthropic(client, "claude-x").Summarize(context.Background(), Prompt{User: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_tokens")
}

func TestAnthropic_PlainErrorIsPermanent(t *testing.T) {
	client := &mockClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, errors.New("invalid request"))

	_, err := NewAnthropic(client, "").Summarize(context.Background(), Prompt{User: "x"})
	require.Error(t, err)
	assert.False(t, resilience.IsTransient(err))
}

func chatServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, GroqModel, req["model"])

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAI_Summarize(t *testing.T) {
	srv := chatServer(t, http.StatusOK, `{
		"id": "chatcmpl-1",
		"object": "chat.completion",
		"model": "llama-3.3-70b-versatile",
		"choices": [{"index": 0, "message": {"role": "assistant", "content": " Flooding is the main risk. "}, "finish_reason": "stop"}]
	}`)

	backend := NewOpenAI("test-key", OpenAIOptions{BaseURL: srv.URL, Timeout: 5 * time.Second})
	text, err := backend.Summarize(context.Background(), Prompt{System: "sys", User: "hello", MaxTokens: 100})
	require.NoError(t, err)
	assert.Equal(t, "Flooding is the main risk.", text)
}

func TestOpenAI_ServerErrorIsTransient(t *testing.T) {
	srv := chatServer(t, http.StatusServiceUnavailable, `{"error": {"message": "service down", "type": "server_error"}}`)

	_, err := NewOpenAI("test-key", OpenAIOptions{BaseURL: srv.URL}).Summarize(context.Background(), Prompt{User: "hello"})
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
}

func TestOpenAI_ClientErrorIsPermanent(t *testing.T) {
	srv := chatServer(t, http.StatusBadRequest, `{"error": {"message": "model not found", "type": "invalid_request_error"}}`)

	_, err := NewOpenAI("test-key", OpenAIOptions{BaseURL: srv.URL}).Summarize(context.Background(), Prompt{User: "hello"})
	require.Error(t, err)
	assert.False(t, resilience.IsTransient(err))
}

func TestOpenAI_NoChoices(t *testing.T) {
	srv := chatServer(t, http.StatusOK, `{"id": "x", "object": "chat.completion", "choices": []}`)

	_, err := NewOpenAI("test-key", OpenAIOptions{BaseURL: srv.URL}).Summarize(context.Background(), Prompt{User: "hello"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}
