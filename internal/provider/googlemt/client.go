// Package googlemt adapts the Google Cloud Translation v2 REST API to
// the provider interface. Authentication uses an API key passed as a
// query parameter, the way the v2 endpoint expects it.
package googlemt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/text/language"

	"github.com/ericjesse/video-translator-sub001/internal/provider"
)

const (
	DefaultEndpoint = "https://translation.googleapis.com"

	defaultRetryAfterSeconds = 60
)

type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

var _ provider.Translator = (*Client)(nil)

func New(endpoint, apiKey string, timeout time.Duration) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		endpoint:   endpoint,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) ID() string {
	return provider.IDGoogle
}

func (c *Client) BatchConfig() provider.BatchConfig {
	return provider.BatchConfig{
		MaxCharacters:   10000,
		MaxSegments:     100,
		MaxTokens:       4000,
		ContextSegments: 0,
	}
}

type translateRequest struct {
	Query  []string `json:"q"`
	Source string   `json:"source,omitempty"`
	Target string   `json:"target"`
	Format string   `json:"format"`
}

type translateResponse struct {
	Data struct {
		Translations []struct {
			TranslatedText string `json:"translatedText"`
		} `json:"translations"`
	} `json:"data"`
}

func (c *Client) TranslateBatch(ctx context.Context, batch provider.Batch, source, target language.Tag) provider.Outcome {
	request := translateRequest{
		Query:  batch.Segments,
		Target: provider.BaseCode(target),
		Format: "text",
	}
	if !source.IsRoot() {
		request.Source = provider.BaseCode(source)
	}

	payload, err := json.Marshal(request)
	if err != nil {
		return provider.ServiceError{
			Message:   fmt.Sprintf("failed to encode request: %v", err),
			Retryable: false,
		}
	}

	endpoint := c.endpoint + "/language/translate/v2?key=" + url.QueryEscape(c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return provider.ServiceError{
			Message:   fmt.Sprintf("failed to build request: %v", err),
			Retryable: false,
		}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return provider.ServiceError{
			Message:   fmt.Sprintf("google translate request failed: %v", err),
			Retryable: true,
		}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return provider.ConfigurationError{
			Message: fmt.Sprintf("google translate rejected the API key (status %d)", resp.StatusCode),
		}
	case resp.StatusCode == http.StatusTooManyRequests:
		return provider.RateLimited{
			RetryAfterSeconds: provider.RetryAfterSeconds(resp.Header, defaultRetryAfterSeconds),
		}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return provider.ServiceError{
			Message: fmt.Sprintf("google translate returned status %d: %s",
				resp.StatusCode, provider.ReadBodySnippet(resp.Body)),
			Retryable: resp.StatusCode >= 500,
		}
	}

	var decoded translateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return provider.ServiceError{
			Message:   fmt.Sprintf("google translate returned unusable body: %v", err),
			Retryable: false,
		}
	}
	if len(decoded.Data.Translations) != len(batch.Segments) {
		return provider.ServiceError{
			Message: fmt.Sprintf("google translate returned %d translations for %d segments",
				len(decoded.Data.Translations), len(batch.Segments)),
			Retryable: false,
		}
	}

	translations := make([]string, len(decoded.Data.Translations))
	for i, tr := range decoded.Data.Translations {
		translations[i] = tr.TranslatedText
	}

	return provider.Success{Translations: translations, APICalls: 1}
}
