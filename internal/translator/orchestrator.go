package translator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/text/language"

	"github.com/ericjesse/video-translator-sub001/internal/provider"
	"github.com/ericjesse/video-translator-sub001/internal/ratelimit"
	"github.com/ericjesse/video-translator-sub001/pkg/log"
)

type sleepFunc func(ctx context.Context, d time.Duration) error

// batchResult is one successfully translated batch with attribution.
type batchResult struct {
	Translations []string
	APICalls     int
	ProviderID   string
}

// orchestrator walks the provider chain for one translation run.
// The index only moves forward: once a provider is abandoned, the run
// never returns to it, so a flaky primary cannot make every batch
// re-pay its retry schedule.
type orchestrator struct {
	providers []provider.Translator
	trackers  *ratelimit.Registry
	sleep     sleepFunc
	current   int
}

func newOrchestrator(providers []provider.Translator, trackers *ratelimit.Registry, sleep sleepFunc) *orchestrator {
	return &orchestrator{providers: providers, trackers: trackers, sleep: sleep}
}

func (o *orchestrator) translateBatch(ctx context.Context, batch provider.Batch, source, target language.Tag) (*batchResult, error) {
	var lastFailure error
	var lastProviderID string
	var lastRetryable bool

	for o.current < len(o.providers) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		active := o.providers[o.current]
		tracker := o.trackers.For(active.ID())

		if tracker.ShouldGiveUp() {
			log.Warn("Provider %s used up its retry budget, skipping", active.ID())
			o.current++
			continue
		}

		outcome := active.TranslateBatch(ctx, batch, source, target)
		switch result := outcome.(type) {
		case provider.Success:
			tracker.RecordSuccess()
			return &batchResult{
				Translations: result.Translations,
				APICalls:     result.APICalls,
				ProviderID:   active.ID(),
			}, nil

		case provider.RateLimited:
			lastFailure = fmt.Errorf("rate limited (retry after %ds)", result.RetryAfterSeconds)
			lastProviderID = active.ID()
			lastRetryable = true
			delay := tracker.RecordFailure(time.Duration(result.RetryAfterSeconds) * time.Second)
			if tracker.ShouldGiveUp() {
				log.Warn("Provider %s keeps rate limiting, moving on", active.ID())
				o.current++
				continue
			}
			log.Warn("Provider %s rate limited, waiting %s", active.ID(), delay)
			if err := o.sleep(ctx, delay); err != nil {
				return nil, err
			}

		case provider.ServiceError:
			lastFailure = errors.New(result.Message)
			lastProviderID = active.ID()
			lastRetryable = result.Retryable
			if !result.Retryable {
				log.Error("Provider %s failed permanently: %s", active.ID(), result.Message)
				o.current++
				continue
			}
			delay := tracker.RecordFailure(0)
			if tracker.ShouldGiveUp() {
				log.Warn("Provider %s keeps failing, moving on", active.ID())
				o.current++
				continue
			}
			log.Warn("Provider %s failed (%s), retrying in %s", active.ID(), result.Message, delay)
			if err := o.sleep(ctx, delay); err != nil {
				return nil, err
			}

		case provider.ConfigurationError:
			lastFailure = errors.New(result.Message)
			lastProviderID = active.ID()
			lastRetryable = false
			log.Error("Provider %s is misconfigured: %s", active.ID(), result.Message)
			o.current++
		}
	}

	err := NewErrorWithCause(ErrProvidersExhausted, "all providers failed", lastFailure)
	err.ProviderID = lastProviderID
	err.Retryable = lastRetryable
	return nil, err
}
