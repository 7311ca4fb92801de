// Package openai adapts OpenAI-compatible chat models to the provider
// interface. Segments travel as a JSON array inside the prompt and the
// response is parsed leniently, because models do not always honor the
// requested output shape.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/text/language"

	"github.com/ericjesse/video-translator-sub001/internal/llm"
	"github.com/ericjesse/video-translator-sub001/internal/provider"
)

const defaultRetryAfterSeconds = 60

type Client struct {
	llm *llm.Client
}

var _ provider.Translator = (*Client)(nil)

func New(llmClient *llm.Client) *Client {
	return &Client{llm: llmClient}
}

func (c *Client) ID() string {
	return provider.IDOpenAI
}

func (c *Client) Model() string {
	return c.llm.Model()
}

func (c *Client) BatchConfig() provider.BatchConfig {
	return provider.BatchConfig{
		MaxCharacters:   8000,
		MaxSegments:     30,
		MaxTokens:       2048,
		ContextSegments: 3,
	}
}

func (c *Client) TranslateBatch(ctx context.Context, batch provider.Batch, source, target language.Tag) provider.Outcome {
	userMessage, err := buildUserMessage(batch.Segments)
	if err != nil {
		return provider.ServiceError{
			Message:   fmt.Sprintf("failed to encode segments: %v", err),
			Retryable: false,
		}
	}

	messages := []llm.Message{
		llm.SystemMessage(buildSystemPrompt(source, target, batch.ContextPrefix)),
		llm.UserMessage(userMessage),
	}

	response, err := c.llm.ChatCompletion(ctx, messages, nil)
	if err != nil {
		return mapError(err)
	}
	if len(response.Choices) == 0 {
		return provider.ServiceError{
			Message:   "llm returned no choices",
			Retryable: false,
		}
	}

	translations := parseTranslations(response.Choices[0].Message.Content, batch.Segments)
	return provider.Success{Translations: translations, APICalls: 1}
}

func mapError(err error) provider.Outcome {
	var httpErr *llm.HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.StatusCode == http.StatusUnauthorized:
			return provider.ConfigurationError{
				Message: "llm rejected the API key",
			}
		case httpErr.StatusCode == http.StatusTooManyRequests:
			retryAfter := httpErr.RetryAfterSeconds
			if retryAfter <= 0 {
				retryAfter = defaultRetryAfterSeconds
			}
			return provider.RateLimited{RetryAfterSeconds: retryAfter}
		default:
			return provider.ServiceError{
				Message:   err.Error(),
				Retryable: httpErr.StatusCode >= 500,
			}
		}
	}

	var apiErr *llm.Error
	if errors.As(err, &apiErr) {
		return provider.ServiceError{Message: apiErr.Error(), Retryable: false}
	}
	if errors.Is(err, llm.ErrMalformedResponse) {
		return provider.ServiceError{Message: err.Error(), Retryable: false}
	}

	// Anything else is transport trouble.
	return provider.ServiceError{Message: err.Error(), Retryable: true}
}
