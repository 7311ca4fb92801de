package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/ericjesse/video-translator-sub001/internal/llm"
	"github.com/ericjesse/video-translator-sub001/internal/provider"
)

func newTestClient(t *testing.T, serverURL string) *Client {
	t.Helper()
	llmClient, err := llm.NewClient(&llm.Config{
		APIKey:      "test-key",
		APIURL:      serverURL,
		Model:       "gpt-4o-mini",
		MaxTokens:   2048,
		Temperature: 0.3,
		Timeout:     5,
	})
	require.NoError(t, err)
	return New(llmClient)
}

func respondWith(w http.ResponseWriter, content string) {
	_ = json.NewEncoder(w).Encode(llm.ChatResponse{
		Choices: []llm.Choice{{Message: llm.AssistantMessage(content)}},
	})
}

func TestTranslateBatch_Success(t *testing.T) {
	var gotRequest llm.ChatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotRequest))
		respondWith(w, `["Bonjour","Monde"]`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	outcome := client.TranslateBatch(context.Background(),
		provider.Batch{Segments: []string{"Hello", "World"}},
		language.English, language.French)

	success, ok := outcome.(provider.Success)
	require.True(t, ok, "expected Success, got %#v", outcome)
	assert.Equal(t, []string{"Bonjour", "Monde"}, success.Translations)
	assert.Equal(t, 1, success.APICalls)

	assert.Equal(t, "gpt-4o-mini", gotRequest.Model)
	require.Len(t, gotRequest.Messages, 2)
	assert.Equal(t, llm.RoleSystem, gotRequest.Messages[0].Role)
	assert.Equal(t, llm.RoleUser, gotRequest.Messages[1].Role)
	assert.Equal(t, `["Hello","World"]`, gotRequest.Messages[1].Content)

	systemPrompt := gotRequest.Messages[0].Content
	assert.Contains(t, systemPrompt, "English")
	assert.Contains(t, systemPrompt, "French")
	assert.Contains(t, systemPrompt, "%%")
}

func TestTranslateBatch_SendsContextPairs(t *testing.T) {
	var gotRequest llm.ChatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotRequest))
		respondWith(w, `["D'accord."]`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	batch := provider.Batch{
		Segments: []string{"Okay."},
		ContextPrefix: []provider.ContextPair{
			{Original: "Are you coming?", Translated: "Tu viens ?"},
			{Original: "In a minute.", Translated: "Dans une minute."},
		},
	}
	outcome := client.TranslateBatch(context.Background(), batch, language.English, language.French)

	_, ok := outcome.(provider.Success)
	require.True(t, ok, "expected Success, got %#v", outcome)

	systemPrompt := gotRequest.Messages[0].Content
	assert.Contains(t, systemPrompt, `"Are you coming?" -> "Tu viens ?"`)
	assert.Contains(t, systemPrompt, `"In a minute." -> "Dans une minute."`)
}

func TestTranslateBatch_UndSourceAsksForDetection(t *testing.T) {
	var gotRequest llm.ChatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotRequest))
		respondWith(w, `["Bonjour"]`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	outcome := client.TranslateBatch(context.Background(),
		provider.Batch{Segments: []string{"Hello"}}, language.Und, language.French)

	_, ok := outcome.(provider.Success)
	require.True(t, ok)
	assert.Contains(t, gotRequest.Messages[0].Content, "Detect the source language")
}

func TestTranslateBatch_UnauthorizedMeansBadConfiguration(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	outcome := client.TranslateBatch(context.Background(),
		provider.Batch{Segments: []string{"hi"}}, language.English, language.French)

	_, ok := outcome.(provider.ConfigurationError)
	assert.True(t, ok, "expected ConfigurationError, got %#v", outcome)
}

func TestTranslateBatch_RateLimited(t *testing.T) {
	t.Run("honors Retry-After header", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", "7")
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		outcome := newTestClient(t, server.URL).TranslateBatch(context.Background(),
			provider.Batch{Segments: []string{"hi"}}, language.English, language.French)

		rl, ok := outcome.(provider.RateLimited)
		require.True(t, ok, "expected RateLimited, got %#v", outcome)
		assert.Equal(t, 7, rl.RetryAfterSeconds)
	})

	t.Run("defaults to 60 seconds without header", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		outcome := newTestClient(t, server.URL).TranslateBatch(context.Background(),
			provider.Batch{Segments: []string{"hi"}}, language.English, language.French)

		rl, ok := outcome.(provider.RateLimited)
		require.True(t, ok)
		assert.Equal(t, 60, rl.RetryAfterSeconds)
	})
}

func TestTranslateBatch_StatusRetryability(t *testing.T) {
	tests := []struct {
		status    int
		retryable bool
	}{
		{http.StatusInternalServerError, true},
		{http.StatusServiceUnavailable, true},
		{http.StatusBadRequest, false},
	}

	for _, tt := range tests {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		}))

		outcome := newTestClient(t, server.URL).TranslateBatch(context.Background(),
			provider.Batch{Segments: []string{"hi"}}, language.English, language.French)

		se, ok := outcome.(provider.ServiceError)
		require.True(t, ok, "status %d should map to ServiceError, got %#v", tt.status, outcome)
		assert.Equal(t, tt.retryable, se.Retryable, "status %d", tt.status)
		server.Close()
	}
}

func TestTranslateBatch_EmbeddedAPIErrorIsNotRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(llm.ChatResponse{
			Error: &llm.Error{Message: "model overloaded", Type: "invalid_request_error"},
		})
	}))
	defer server.Close()

	outcome := newTestClient(t, server.URL).TranslateBatch(context.Background(),
		provider.Batch{Segments: []string{"hi"}}, language.English, language.French)

	se, ok := outcome.(provider.ServiceError)
	require.True(t, ok)
	assert.False(t, se.Retryable)
	assert.Contains(t, se.Message, "model overloaded")
}

func TestTranslateBatch_MalformedBodyIsNotRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>gateway page</html>"))
	}))
	defer server.Close()

	outcome := newTestClient(t, server.URL).TranslateBatch(context.Background(),
		provider.Batch{Segments: []string{"hi"}}, language.English, language.French)

	se, ok := outcome.(provider.ServiceError)
	require.True(t, ok)
	assert.False(t, se.Retryable)
}

func TestTranslateBatch_NoChoicesIsNotRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(llm.ChatResponse{})
	}))
	defer server.Close()

	outcome := newTestClient(t, server.URL).TranslateBatch(context.Background(),
		provider.Batch{Segments: []string{"hi"}}, language.English, language.French)

	se, ok := outcome.(provider.ServiceError)
	require.True(t, ok)
	assert.False(t, se.Retryable)
}

func TestTranslateBatch_TransportErrorIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	outcome := newTestClient(t, server.URL).TranslateBatch(context.Background(),
		provider.Batch{Segments: []string{"hi"}}, language.English, language.French)

	se, ok := outcome.(provider.ServiceError)
	require.True(t, ok, "expected ServiceError, got %#v", outcome)
	assert.True(t, se.Retryable)
}

func TestBatchConfig(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	cfg := newTestClient(t, server.URL).BatchConfig()

	assert.Equal(t, 8000, cfg.MaxCharacters)
	assert.Equal(t, 30, cfg.MaxSegments)
	assert.Equal(t, 2048, cfg.MaxTokens)
	assert.Equal(t, 3, cfg.ContextSegments)
}
