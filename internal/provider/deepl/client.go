// Package deepl adapts the DeepL REST API v2 to the provider
// interface. DeepL accepts whole batches natively and supports a
// context parameter, which receives the previously translated
// segments.
package deepl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/text/language"

	"github.com/ericjesse/video-translator-sub001/internal/provider"
)

const (
	DefaultEndpoint = "https://api-free.deepl.com"

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
	return provider.IDDeepL
}

func (c *Client) BatchConfig() provider.BatchConfig {
	// MaxSegments matches the API's own cap of 50 texts per request.
	return provider.BatchConfig{
		MaxCharacters:   30000,
		MaxSegments:     50,
		MaxTokens:       8192,
		ContextSegments: 5,
	}
}

type translateRequest struct {
	Text       []string `json:"text"`
	SourceLang string   `json:"source_lang,omitempty"`
	TargetLang string   `json:"target_lang"`
	Context    string   `json:"context,omitempty"`
}

type translateResponse struct {
	Translations []struct {
		DetectedSourceLanguage string `json:"detected_source_language"`
		Text                   string `json:"text"`
	} `json:"translations"`
}

func (c *Client) TranslateBatch(ctx context.Context, batch provider.Batch, source, target language.Tag) provider.Outcome {
	request := translateRequest{
		Text:       batch.Segments,
		TargetLang: strings.ToUpper(provider.BaseCode(target)),
		Context:    contextText(batch.ContextPrefix),
	}
	if !source.IsRoot() {
		request.SourceLang = strings.ToUpper(provider.BaseCode(source))
	}

	payload, err := json.Marshal(request)
	if err != nil {
		return provider.ServiceError{
			Message:   fmt.Sprintf("failed to encode request: %v", err),
			Retryable: false,
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.endpoint+"/v2/translate", bytes.NewReader(payload))
	if err != nil {
		return provider.ServiceError{
			Message:   fmt.Sprintf("failed to build request: %v", err),
			Retryable: false,
		}
	}
	req.Header.Set("Authorization", "DeepL-Auth-Key "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return provider.ServiceError{
			Message:   fmt.Sprintf("deepl request failed: %v", err),
			Retryable: true,
		}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden:
		return provider.ConfigurationError{
			Message: "deepl rejected the API key",
		}
	case resp.StatusCode == http.StatusRequestEntityTooLarge:
		return provider.ServiceError{
			Message:   "deepl rejected the batch as too large",
			Retryable: false,
		}
	case resp.StatusCode == http.StatusTooManyRequests:
		return provider.RateLimited{
			RetryAfterSeconds: provider.RetryAfterSeconds(resp.Header, defaultRetryAfterSeconds),
		}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return provider.ServiceError{
			Message: fmt.Sprintf("deepl returned status %d: %s",
				resp.StatusCode, provider.ReadBodySnippet(resp.Body)),
			Retryable: resp.StatusCode >= 500,
		}
	}

	var decoded translateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return provider.ServiceError{
			Message:   fmt.Sprintf("deepl returned unusable body: %v", err),
			Retryable: false,
		}
	}
	if len(decoded.Translations) != len(batch.Segments) {
		return provider.ServiceError{
			Message: fmt.Sprintf("deepl returned %d translations for %d segments",
				len(decoded.Translations), len(batch.Segments)),
			Retryable: false,
		}
	}

	translations := make([]string, len(decoded.Translations))
	for i, tr := range decoded.Translations {
		translations[i] = tr.Text
	}

	return provider.Success{Translations: translations, APICalls: 1}
}

// contextText folds the already-translated prefix into DeepL's context
// parameter. The parameter is free text; it influences the translation
// but is not translated itself.
func contextText(prefix []provider.ContextPair) string {
	if len(prefix) == 0 {
		return ""
	}
	parts := make([]string, 0, len(prefix))
	for _, pair := range prefix {
		parts = append(parts, pair.Translated)
	}
	return strings.Join(parts, "\n")
}
