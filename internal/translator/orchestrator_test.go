package translator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/ericjesse/video-translator-sub001/internal/provider"
	"github.com/ericjesse/video-translator-sub001/internal/ratelimit"
)

// fakeProvider replays scripted outcomes. When translate is set it is
// called instead, which lets tests echo the batch contents back.
type fakeProvider struct {
	id        string
	config    provider.BatchConfig
	outcomes  []provider.Outcome
	translate func(batch provider.Batch) provider.Outcome
	calls     int
	batches   []provider.Batch
}

func (f *fakeProvider) ID() string { return f.id }

func (f *fakeProvider) BatchConfig() provider.BatchConfig {
	if f.config == (provider.BatchConfig{}) {
		return provider.BatchConfig{MaxCharacters: 5000, MaxSegments: 25}
	}
	return f.config
}

func (f *fakeProvider) TranslateBatch(_ context.Context, batch provider.Batch, _, _ language.Tag) provider.Outcome {
	f.calls++
	f.batches = append(f.batches, batch)
	if f.translate != nil {
		return f.translate(batch)
	}
	i := f.calls - 1
	if i >= len(f.outcomes) {
		i = len(f.outcomes) - 1
	}
	return f.outcomes[i]
}

// echoProvider translates every segment to "<id>:<text>".
func echoProvider(id string) *fakeProvider {
	f := &fakeProvider{id: id}
	f.translate = func(batch provider.Batch) provider.Outcome {
		out := make([]string, len(batch.Segments))
		for i, segment := range batch.Segments {
			out[i] = id + ":" + segment
		}
		return provider.Success{Translations: out, APICalls: 1}
	}
	return f
}

type sleepRecorder struct {
	delays []time.Duration
	err    error
}

func (r *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return r.err
}

func testRegistry() *ratelimit.Registry {
	return ratelimit.NewRegistry(ratelimit.Policy{
		InitialDelay: time.Second,
		MaxDelay:     time.Minute,
		Multiplier:   2,
		MaxRetries:   3,
	})
}

func testBatch(texts ...string) provider.Batch {
	return provider.Batch{Segments: texts}
}

func TestTranslateBatch_PrimarySucceeds(t *testing.T) {
	primary := echoProvider("a")
	sleeper := &sleepRecorder{}
	registry := testRegistry()
	orch := newOrchestrator([]provider.Translator{primary}, registry, sleeper.sleep)

	result, err := orch.translateBatch(context.Background(), testBatch("hi"), language.English, language.French)
	require.NoError(t, err)

	assert.Equal(t, []string{"a:hi"}, result.Translations)
	assert.Equal(t, 1, result.APICalls)
	assert.Equal(t, "a", result.ProviderID)
	assert.Empty(t, sleeper.delays)
	assert.Equal(t, 0, registry.For("a").ConsecutiveFailures())
}

func TestTranslateBatch_RetryAfterIsHonoredVerbatim(t *testing.T) {
	primary := &fakeProvider{id: "a", outcomes: []provider.Outcome{
		provider.RateLimited{RetryAfterSeconds: 5},
		provider.Success{Translations: []string{"ok"}, APICalls: 1},
	}}
	fallback := echoProvider("b")
	sleeper := &sleepRecorder{}
	orch := newOrchestrator([]provider.Translator{primary, fallback}, testRegistry(), sleeper.sleep)

	result, err := orch.translateBatch(context.Background(), testBatch("hi"), language.English, language.French)
	require.NoError(t, err)

	// The same provider serves the batch after the announced wait.
	assert.Equal(t, "a", result.ProviderID)
	assert.Equal(t, 2, primary.calls)
	assert.Equal(t, 0, fallback.calls)
	assert.Equal(t, []time.Duration{5 * time.Second}, sleeper.delays)
}

func TestTranslateBatch_BackoffScheduleOnRetryableErrors(t *testing.T) {
	primary := &fakeProvider{id: "a", outcomes: []provider.Outcome{
		provider.ServiceError{Message: "boom", Retryable: true},
		provider.ServiceError{Message: "boom", Retryable: true},
		provider.Success{Translations: []string{"ok"}, APICalls: 1},
	}}
	sleeper := &sleepRecorder{}
	orch := newOrchestrator([]provider.Translator{primary}, testRegistry(), sleeper.sleep)

	result, err := orch.translateBatch(context.Background(), testBatch("hi"), language.English, language.French)
	require.NoError(t, err)

	assert.Equal(t, "a", result.ProviderID)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, sleeper.delays)
}

func TestTranslateBatch_NonRetryableErrorAdvancesImmediately(t *testing.T) {
	primary := &fakeProvider{id: "a", outcomes: []provider.Outcome{
		provider.ServiceError{Message: "bad request", Retryable: false},
	}}
	fallback := echoProvider("b")
	sleeper := &sleepRecorder{}
	orch := newOrchestrator([]provider.Translator{primary, fallback}, testRegistry(), sleeper.sleep)

	result, err := orch.translateBatch(context.Background(), testBatch("hi"), language.English, language.French)
	require.NoError(t, err)

	assert.Equal(t, "b", result.ProviderID)
	assert.Equal(t, 1, primary.calls)
	assert.Empty(t, sleeper.delays, "a permanent failure must not wait before falling back")
}

func TestTranslateBatch_ConfigurationErrorAdvancesImmediately(t *testing.T) {
	primary := &fakeProvider{id: "a", outcomes: []provider.Outcome{
		provider.ConfigurationError{Message: "invalid key"},
	}}
	fallback := echoProvider("b")
	sleeper := &sleepRecorder{}
	registry := testRegistry()
	orch := newOrchestrator([]provider.Translator{primary, fallback}, registry, sleeper.sleep)

	result, err := orch.translateBatch(context.Background(), testBatch("hi"), language.English, language.French)
	require.NoError(t, err)

	assert.Equal(t, "b", result.ProviderID)
	assert.Empty(t, sleeper.delays)
	// Configuration failures do not burn the retry budget.
	assert.Equal(t, 0, registry.For("a").ConsecutiveFailures())
}

func TestTranslateBatch_GivesUpAfterMaxRetries(t *testing.T) {
	primary := &fakeProvider{id: "a", outcomes: []provider.Outcome{
		provider.RateLimited{},
	}}
	fallback := echoProvider("b")
	sleeper := &sleepRecorder{}
	registry := ratelimit.NewRegistry(ratelimit.Policy{
		InitialDelay: time.Second,
		MaxDelay:     time.Minute,
		Multiplier:   2,
		MaxRetries:   2,
	})
	orch := newOrchestrator([]provider.Translator{primary, fallback}, registry, sleeper.sleep)

	result, err := orch.translateBatch(context.Background(), testBatch("hi"), language.English, language.French)
	require.NoError(t, err)

	assert.Equal(t, "b", result.ProviderID)
	assert.Equal(t, 2, primary.calls)
	// The final failure advances without sleeping first.
	assert.Equal(t, []time.Duration{time.Second}, sleeper.delays)
}

func TestTranslateBatch_NeverReturnsToAbandonedProvider(t *testing.T) {
	primary := &fakeProvider{id: "a", outcomes: []provider.Outcome{
		provider.ServiceError{Message: "broken", Retryable: false},
	}}
	fallback := echoProvider("b")
	sleeper := &sleepRecorder{}
	orch := newOrchestrator([]provider.Translator{primary, fallback}, testRegistry(), sleeper.sleep)

	first, err := orch.translateBatch(context.Background(), testBatch("one"), language.English, language.French)
	require.NoError(t, err)
	require.Equal(t, "b", first.ProviderID)

	second, err := orch.translateBatch(context.Background(), testBatch("two"), language.English, language.French)
	require.NoError(t, err)

	assert.Equal(t, "b", second.ProviderID)
	assert.Equal(t, 1, primary.calls, "later batches must not retry an abandoned provider")
}

func TestTranslateBatch_SkipsProviderAlreadyOverBudget(t *testing.T) {
	primary := echoProvider("a")
	fallback := echoProvider("b")
	registry := testRegistry()
	for i := 0; i < 3; i++ {
		registry.For("a").RecordFailure(0)
	}
	sleeper := &sleepRecorder{}
	orch := newOrchestrator([]provider.Translator{primary, fallback}, registry, sleeper.sleep)

	result, err := orch.translateBatch(context.Background(), testBatch("hi"), language.English, language.French)
	require.NoError(t, err)

	assert.Equal(t, "b", result.ProviderID)
	assert.Equal(t, 0, primary.calls)
}

func TestTranslateBatch_AllProvidersExhausted(t *testing.T) {
	primary := &fakeProvider{id: "a", outcomes: []provider.Outcome{
		provider.ServiceError{Message: "a is down", Retryable: false},
	}}
	fallback := &fakeProvider{id: "b", outcomes: []provider.Outcome{
		provider.ConfigurationError{Message: "b has no key"},
	}}
	sleeper := &sleepRecorder{}
	orch := newOrchestrator([]provider.Translator{primary, fallback}, testRegistry(), sleeper.sleep)

	_, err := orch.translateBatch(context.Background(), testBatch("hi"), language.English, language.French)
	require.Error(t, err)

	assert.True(t, IsErrorType(err, ErrProvidersExhausted))
	assert.Contains(t, err.Error(), "all providers failed")
	assert.Contains(t, err.Error(), "b has no key")

	var translationErr *TranslationError
	require.ErrorAs(t, err, &translationErr)
	assert.Equal(t, "b", translationErr.ProviderID)
	assert.False(t, translationErr.Retryable)
}

func TestTranslateBatch_CanceledDuringWait(t *testing.T) {
	primary := &fakeProvider{id: "a", outcomes: []provider.Outcome{
		provider.RateLimited{RetryAfterSeconds: 30},
	}}
	sleeper := &sleepRecorder{err: context.Canceled}
	orch := newOrchestrator([]provider.Translator{primary}, testRegistry(), sleeper.sleep)

	_, err := orch.translateBatch(context.Background(), testBatch("hi"), language.English, language.French)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestTranslateBatch_CanceledContextStopsBeforeCalling(t *testing.T) {
	primary := echoProvider("a")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	orch := newOrchestrator([]provider.Translator{primary}, testRegistry(), (&sleepRecorder{}).sleep)

	_, err := orch.translateBatch(ctx, testBatch("hi"), language.English, language.French)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, primary.calls)
}
