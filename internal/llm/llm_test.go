package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/lawrag/internal/config"
)

func TestOpenAIClient_Complete(t *testing.T) {
	// Given: a chat endpoint that echoes what it received
	var got struct {
		Model          string `json:"model"`
		Messages       []struct{ Role, Content string }
		ResponseFormat *struct {
			Type string `json:"type"`
		} `json:"response_format"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"答复"},"finish_reason":"stop"}],"usage":{"prompt_tokens":3,"completion_tokens":2,"total_tokens":5}}`))
	}))
	defer srv.Close()

	c, err := NewOpenAIClient(OpenAIConfig{APIKey: "k", BaseURL: srv.URL + "/v1/", Model: "deepseek-chat"})
	require.NoError(t, err)

	// When: completing with a system prompt in JSON mode
	out, err := c.Complete(context.Background(), Request{System: "sys", Prompt: "问题", JSON: true})
	require.NoError(t, err)

	// Then: both messages and the response format were sent
	assert.Equal(t, "答复", out)
	assert.Equal(t, "deepseek-chat", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "问题", got.Messages[1].Content)
	require.NotNil(t, got.ResponseFormat)
	assert.Equal(t, "json_object", got.ResponseFormat.Type)
}

func TestOpenAIClient_Errors(t *testing.T) {
	t.Run("api error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"message":"rate limited","type":"rate"}}`))
		}))
		defer srv.Close()

		c, err := NewOpenAIClient(OpenAIConfig{BaseURL: srv.URL, Model: "m"})
		require.NoError(t, err)
		_, err = c.Complete(context.Background(), Request{Prompt: "x"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "429")
	})

	t.Run("no choices", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"1","choices":[]}`))
		}))
		defer srv.Close()

		c, err := NewOpenAIClient(OpenAIConfig{BaseURL: srv.URL, Model: "m"})
		require.NoError(t, err)
		_, err = c.Complete(context.Background(), Request{Prompt: "x"})
		assert.ErrorContains(t, err, "no choices")
	})

	t.Run("missing model", func(t *testing.T) {
		_, err := NewOpenAIClient(OpenAIConfig{})
		assert.Error(t, err)
	})
}

func TestOllamaClient_Complete(t *testing.T) {
	var got generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(generateResponse{Response: "好的", Done: true})
	}))
	defer srv.Close()

	c := NewOllamaClient(OllamaConfig{Host: srv.URL + "/", Model: "qwen2.5:7b"})
	out, err := c.Complete(context.Background(), Request{System: "s", Prompt: "p", Temperature: 0.2, JSON: true})
	require.NoError(t, err)

	assert.Equal(t, "好的", out)
	assert.Equal(t, "qwen2.5:7b", got.Model)
	assert.Equal(t, "s", got.System)
	assert.Equal(t, "json", got.Format)
	assert.False(t, got.Stream)
	assert.InDelta(t, 0.2, got.Options["temperature"], 1e-6)
}

func TestOllamaClient_Failures(t *testing.T) {
	t.Run("status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "model not found", http.StatusNotFound)
		}))
		defer srv.Close()

		_, err := NewOllamaClient(OllamaConfig{Host: srv.URL, Model: "m"}).Complete(context.Background(), Request{Prompt: "p"})
		assert.ErrorContains(t, err, "status 404")
	})

	t.Run("deadline", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-r.Context().Done()
		}))
		defer srv.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err := NewOllamaClient(OllamaConfig{Host: srv.URL, Model: "m"}).Complete(ctx, Request{Prompt: "p"})
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestNew(t *testing.T) {
	c, err := New(config.LLMConfig{Provider: "openai", Model: "deepseek-chat"})
	require.NoError(t, err)
	assert.Equal(t, "deepseek-chat", c.Model())

	c, err = New(config.LLMConfig{Provider: "ollama", Model: "qwen2.5"})
	require.NoError(t, err)
	assert.IsType(t, &OllamaClient{}, c)

	_, err = New(config.LLMConfig{Provider: "anthropic"})
	assert.Error(t, err)
}
