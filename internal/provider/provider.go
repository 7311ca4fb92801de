// Package provider defines the uniform surface every translation
// backend implements, plus the batch shapes and outcome types the
// session logic routes on.
package provider

import (
	"context"
	"fmt"

	"golang.org/x/text/language"
)

// Known provider identifiers. They key cache entries and rate-limit
// trackers, so they must stay stable across releases.
const (
	IDLibreTranslate = "libretranslate"
	IDDeepL          = "deepl"
	IDOpenAI         = "openai"
	IDGoogle         = "google"
)

// FallbackPriority is the fixed order in which configured providers
// are tried after the primary one.
var FallbackPriority = []string{IDDeepL, IDGoogle, IDOpenAI, IDLibreTranslate}

// Translator is one translation backend. TranslateBatch never returns
// a Go error; every way a call can end is expressed as an Outcome so
// callers switch on structure instead of parsing error strings.
type Translator interface {
	ID() string
	BatchConfig() BatchConfig
	TranslateBatch(ctx context.Context, batch Batch, source, target language.Tag) Outcome
}

// Outcome is the closed result union of a TranslateBatch call.
type Outcome interface {
	outcome()
}

// Success carries one translation per input segment, in input order.
type Success struct {
	Translations []string
	APICalls     int
}

// RateLimited signals the provider throttled the call.
// RetryAfterSeconds is the provider-announced wait; zero or negative
// means the provider gave no hint and the backoff schedule decides.
type RateLimited struct {
	RetryAfterSeconds int
}

// ServiceError is a failed call that is not a throttle: transport
// trouble, server errors, or an unusable response body.
type ServiceError struct {
	Message   string
	Retryable bool
}

// ConfigurationError means the provider rejected the credentials or
// setup. Retrying cannot help until the operator intervenes.
type ConfigurationError struct {
	Message string
}

func (Success) outcome()            {}
func (RateLimited) outcome()        {}
func (ServiceError) outcome()       {}
func (ConfigurationError) outcome() {}

// FallbackOrder arranges the configured providers into the order a
// session tries them: the primary first, then the remaining ones by
// FallbackPriority. The primary must be configured.
func FallbackOrder(primaryID string, configured map[string]Translator) ([]Translator, error) {
	primary, ok := configured[primaryID]
	if !ok {
		return nil, fmt.Errorf("primary provider %q is not configured", primaryID)
	}

	order := []Translator{primary}
	for _, id := range FallbackPriority {
		if id == primaryID {
			continue
		}
		if p, ok := configured[id]; ok {
			order = append(order, p)
		}
	}
	return order, nil
}
