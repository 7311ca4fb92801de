package libretranslate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/ericjesse/video-translator-sub001/internal/provider"
)

func newTestBatch(segments ...string) provider.Batch {
	return provider.Batch{Segments: segments}
}

func TestTranslateBatch_OneRequestPerSegment(t *testing.T) {
	var requests []translateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/translate", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)

		var req translateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		requests = append(requests, req)

		_ = json.NewEncoder(w).Encode(translateResponse{
			TranslatedText: fmt.Sprintf("fr(%s)", req.Query),
		})
	}))
	defer server.Close()

	client := New(server.URL, "secret", 0)

	outcome := client.TranslateBatch(context.Background(),
		newTestBatch("Hello", "World"), language.English, language.French)

	success, ok := outcome.(provider.Success)
	require.True(t, ok, "expected Success, got %#v", outcome)
	assert.Equal(t, []string{"fr(Hello)", "fr(World)"}, success.Translations)
	assert.Equal(t, 2, success.APICalls)

	require.Len(t, requests, 2)
	assert.Equal(t, "en", requests[0].Source)
	assert.Equal(t, "fr", requests[0].Target)
	assert.Equal(t, "text", requests[0].Format)
	assert.Equal(t, "secret", requests[0].APIKey)
}

func TestTranslateBatch_UndeterminedSourceBecomesAuto(t *testing.T) {
	var gotSource string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req translateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotSource = req.Source
		_ = json.NewEncoder(w).Encode(translateResponse{TranslatedText: "x"})
	}))
	defer server.Close()

	client := New(server.URL, "", 0)

	client.TranslateBatch(context.Background(), newTestBatch("hi"), language.Und, language.French)

	assert.Equal(t, "auto", gotSource)
}

func TestTranslateBatch_RateLimitedWithRetryAfter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "5")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := New(server.URL, "", 0)

	outcome := client.TranslateBatch(context.Background(),
		newTestBatch("hi"), language.English, language.French)

	rl, ok := outcome.(provider.RateLimited)
	require.True(t, ok, "expected RateLimited, got %#v", outcome)
	assert.Equal(t, 5, rl.RetryAfterSeconds)
}

func TestTranslateBatch_RateLimitedWithoutHeaderDefaultsTo30(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := New(server.URL, "", 0)

	outcome := client.TranslateBatch(context.Background(),
		newTestBatch("hi"), language.English, language.French)

	rl, ok := outcome.(provider.RateLimited)
	require.True(t, ok)
	assert.Equal(t, 30, rl.RetryAfterSeconds)
}

func TestTranslateBatch_ServerErrorIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := New(server.URL, "", 0)

	outcome := client.TranslateBatch(context.Background(),
		newTestBatch("hi"), language.English, language.French)

	se, ok := outcome.(provider.ServiceError)
	require.True(t, ok)
	assert.True(t, se.Retryable)
}

func TestTranslateBatch_ClientErrorIsNotRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer server.Close()

	client := New(server.URL, "", 0)

	outcome := client.TranslateBatch(context.Background(),
		newTestBatch("hi"), language.English, language.French)

	se, ok := outcome.(provider.ServiceError)
	require.True(t, ok)
	assert.False(t, se.Retryable)
	assert.Contains(t, se.Message, "400")
}

func TestTranslateBatch_UnusableBodyIsNotRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))
	defer server.Close()

	client := New(server.URL, "", 0)

	outcome := client.TranslateBatch(context.Background(),
		newTestBatch("hi"), language.English, language.French)

	se, ok := outcome.(provider.ServiceError)
	require.True(t, ok)
	assert.False(t, se.Retryable)
}

func TestTranslateBatch_TransportErrorIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused from here on

	client := New(server.URL, "", 0)

	outcome := client.TranslateBatch(context.Background(),
		newTestBatch("hi"), language.English, language.French)

	se, ok := outcome.(provider.ServiceError)
	require.True(t, ok)
	assert.True(t, se.Retryable)
}

func TestTranslateBatch_FirstFailureStopsTheBatch(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_ = json.NewEncoder(w).Encode(translateResponse{TranslatedText: "ok"})
	}))
	defer server.Close()

	client := New(server.URL, "", 0)

	outcome := client.TranslateBatch(context.Background(),
		newTestBatch("a", "b", "c"), language.English, language.French)

	_, ok := outcome.(provider.RateLimited)
	require.True(t, ok)
	assert.Equal(t, 2, calls)
}

func TestBatchConfig(t *testing.T) {
	cfg := New("", "", 0).BatchConfig()

	assert.Equal(t, 5000, cfg.MaxCharacters)
	assert.Equal(t, 25, cfg.MaxSegments)
	assert.Equal(t, 2000, cfg.MaxTokens)
	assert.Equal(t, 0, cfg.ContextSegments)
}
