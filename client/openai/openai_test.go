package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/andybalholm/brotli"
	goopenai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chatResponse = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "model": "gpt-4o-mini",
  "choices": [
    {"index": 0, "message": {"role": "assistant", "content": "x := 1"}, "finish_reason": "stop"}
  ]
}`

func testRequest() goopenai.ChatCompletionRequest {
	return goopenai.ChatCompletionRequest{
		Model: "gpt-4o-mini",
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: "system"},
			{Role: goopenai.ChatMessageRoleUser, Content: "Complete this code:\nx :="},
		},
		Temperature: 0.4,
		MaxTokens:   50,
		TopP:        1.0,
		Stop:        []string{"```", "\n\n"},
	}
}

func TestDoChatCompletion_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method, "HTTP method")
		assert.Equal(t, "/chat/completions", r.URL.Path, "path")
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"), "bearer auth")

		body, _ := io.ReadAll(r.Body)
		var req map[string]any
		require.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, "gpt-4o-mini", req["model"], "model")
		assert.Equal(t, 50.0, req["max_tokens"], "max_tokens")
		assert.Equal(t, []any{"```", "\n\n"}, req["stop"], "stop sequences")
		assert.Len(t, req["messages"], 2, "system and user messages")

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, chatResponse)
	}))
	defer server.Close()

	client := NewClient(server.URL, false)
	resp, err := client.DoChatCompletion(context.Background(), "sk-test", testRequest())

	require.NoError(t, err, "DoChatCompletion")
	require.Len(t, resp.Choices, 1, "choices")
	assert.Equal(t, "x := 1", resp.Choices[0].Message.Content, "content")
}

func TestDoChatCompletion_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("server error"))
	}))
	defer server.Close()

	client := NewClient(server.URL, false)
	_, err := client.DoChatCompletion(context.Background(), "sk-test", testRequest())

	require.Error(t, err, "non-2xx is an error")
	assert.Contains(t, err.Error(), "status 500", "status in message")
	assert.Equal(t, http.StatusInternalServerError, StatusCode(err), "status code extracted")
}

func TestDoChatCompletion_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error": {"message": "Incorrect API key provided", "type": "invalid_request_error"}}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, false)
	_, err := client.DoChatCompletion(context.Background(), "sk-bad", testRequest())

	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, StatusCode(err), "status code extracted")
	var apiErr *goopenai.APIError
	assert.True(t, errors.As(err, &apiErr), "APIError preserved in chain")
}

func TestDoChatCompletion_InvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	client := NewClient(server.URL, false)
	_, err := client.DoChatCompletion(context.Background(), "sk-test", testRequest())

	assert.Error(t, err, "undecodable body is an error")
}

func TestDoChatCompletion_MissingKey(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	client := NewClient(server.URL, false)
	_, err := client.DoChatCompletion(context.Background(), "  ", testRequest())

	assert.ErrorIs(t, err, ErrMissingAPIKey)
	assert.False(t, called, "no request without a key")
}

func TestDoChatCompletion_ContextCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, chatResponse)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient(server.URL, false)
	_, err := client.DoChatCompletion(ctx, "sk-test", testRequest())

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled), "cancellation is distinguishable: %v", err)
}

func TestDoChatCompletion_KeyChange(t *testing.T) {
	var mu sync.Mutex
	var auth []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		auth = append(auth, r.Header.Get("Authorization"))
		mu.Unlock()
		io.WriteString(w, chatResponse)
	}))
	defer server.Close()

	client := NewClient(server.URL, false)
	_, err := client.DoChatCompletion(context.Background(), "sk-one", testRequest())
	require.NoError(t, err)
	_, err = client.DoChatCompletion(context.Background(), "sk-two", testRequest())
	require.NoError(t, err)

	assert.Equal(t, []string{"Bearer sk-one", "Bearer sk-two"}, auth, "new key used after change")
}

func TestDoChatCompletion_Brotli(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "br", r.Header.Get("Accept-Encoding"), "brotli requested")

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Encoding", "br")
		bw := brotli.NewWriter(w)
		io.WriteString(bw, chatResponse)
		bw.Close()
	}))
	defer server.Close()

	client := NewClient(server.URL, true)
	resp, err := client.DoChatCompletion(context.Background(), "sk-test", testRequest())

	require.NoError(t, err, "brotli body decoded")
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, "x := 1", resp.Choices[0].Message.Content)
}

func TestNewClient_DefaultURL(t *testing.T) {
	assert.Equal(t, DefaultBaseURL, NewClient("", false).URL)
	assert.Equal(t, "http://localhost:8080/v1", NewClient("http://localhost:8080/v1/", false).URL)
}
