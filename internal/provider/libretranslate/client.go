// Package libretranslate adapts a LibreTranslate server to the
// provider interface. The API translates one text per request, so a
// batch becomes a sequence of calls.
package libretranslate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/text/language"

	"github.com/ericjesse/video-translator-sub001/internal/provider"
)

const (
	DefaultEndpoint = "http://localhost:5000"

	// LibreTranslate throttles without a Retry-After header on most
	// deployments; wait this long when the header is missing.
	defaultRetryAfterSeconds = 30
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
	return provider.IDLibreTranslate
}

func (c *Client) BatchConfig() provider.BatchConfig {
	return provider.BatchConfig{
		MaxCharacters:   5000,
		MaxSegments:     25,
		MaxTokens:       2000,
		ContextSegments: 0,
	}
}

type translateRequest struct {
	Query  string `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
	Format string `json:"format"`
	APIKey string `json:"api_key,omitempty"`
}

type translateResponse struct {
	TranslatedText string `json:"translatedText"`
}

// TranslateBatch translates the batch segment by segment. The first
// failing segment decides the outcome for the whole batch.
func (c *Client) TranslateBatch(ctx context.Context, batch provider.Batch, source, target language.Tag) provider.Outcome {
	translations := make([]string, 0, len(batch.Segments))
	calls := 0

	for _, segment := range batch.Segments {
		translated, failure := c.translateOne(ctx, segment, source, target)
		if failure != nil {
			return failure
		}
		calls++
		translations = append(translations, translated)
	}

	return provider.Success{Translations: translations, APICalls: calls}
}

func (c *Client) translateOne(ctx context.Context, text string, source, target language.Tag) (string, provider.Outcome) {
	sourceCode := provider.BaseCode(source)
	if source.IsRoot() {
		sourceCode = "auto"
	}

	payload, err := json.Marshal(translateRequest{
		Query:  text,
		Source: sourceCode,
		Target: provider.BaseCode(target),
		Format: "text",
		APIKey: c.apiKey,
	})
	if err != nil {
		return "", provider.ServiceError{
			Message:   fmt.Sprintf("failed to encode request: %v", err),
			Retryable: false,
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.endpoint+"/translate", bytes.NewReader(payload))
	if err != nil {
		return "", provider.ServiceError{
			Message:   fmt.Sprintf("failed to build request: %v", err),
			Retryable: false,
		}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", provider.ServiceError{
			Message:   fmt.Sprintf("libretranslate request failed: %v", err),
			Retryable: true,
		}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", provider.RateLimited{
			RetryAfterSeconds: provider.RetryAfterSeconds(resp.Header, defaultRetryAfterSeconds),
		}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return "", provider.ServiceError{
			Message: fmt.Sprintf("libretranslate returned status %d: %s",
				resp.StatusCode, provider.ReadBodySnippet(resp.Body)),
			Retryable: resp.StatusCode >= 500,
		}
	}

	var decoded translateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", provider.ServiceError{
			Message:   fmt.Sprintf("libretranslate returned unusable body: %v", err),
			Retryable: false,
		}
	}

	return decoded.TranslatedText, nil
}
