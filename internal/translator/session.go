// Package translator drives a full subtitle translation run: cache
// lookup, markup masking, glossary application, batching, provider
// fallback, and reassembly of the translated file.
package translator

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"golang.org/x/text/language"

	"github.com/ericjesse/video-translator-sub001/internal/cache"
	"github.com/ericjesse/video-translator-sub001/internal/glossary"
	"github.com/ericjesse/video-translator-sub001/internal/markup"
	"github.com/ericjesse/video-translator-sub001/internal/provider"
	"github.com/ericjesse/video-translator-sub001/internal/ratelimit"
	"github.com/ericjesse/video-translator-sub001/internal/subtitle"
	"github.com/ericjesse/video-translator-sub001/pkg/log"
)

const preprocessProgress = 0.05

// Options tune a translation session.
type Options struct {
	// Glossary pins terminology. It is only applied when it covers the
	// language pair being translated.
	Glossary *glossary.Glossary
	// OnProgress receives progress updates during Translate.
	OnProgress ProgressFunc
}

// Session runs subtitle translations over a fixed provider chain.
// The first provider is the primary, the rest are fallbacks in order.
type Session struct {
	providers  []provider.Translator
	trackers   *ratelimit.Registry
	cache      *cache.Cache
	glossary   *glossary.Glossary
	onProgress ProgressFunc
	sleep      sleepFunc

	mu    sync.Mutex
	stats Stats
}

func NewSession(providers []provider.Translator, trackers *ratelimit.Registry, segmentCache *cache.Cache, opts Options) (*Session, error) {
	if len(providers) == 0 {
		return nil, NewError(ErrConfig, "no translation providers configured")
	}
	if trackers == nil {
		return nil, NewError(ErrConfig, "rate limit registry is required")
	}
	if segmentCache == nil {
		return nil, NewError(ErrConfig, "segment cache is required")
	}

	return &Session{
		providers:  providers,
		trackers:   trackers,
		cache:      segmentCache,
		glossary:   opts.Glossary,
		onProgress: opts.OnProgress,
		sleep:      defaultSleep,
	}, nil
}

// Translate translates source into the target language and returns a
// copy with TranslatedText filled in on every segment. The input is
// not modified.
func (s *Session) Translate(ctx context.Context, source *subtitle.Source, target language.Tag) (*subtitle.Source, error) {
	if source == nil {
		return nil, NewError(ErrValidation, "subtitle source is required")
	}
	if target.IsRoot() {
		return nil, NewError(ErrValidation, "target language is required")
	}

	started := time.Now()
	primary := s.providers[0]
	texts := source.Texts()

	emitter := &progressEmitter{fn: s.onProgress}
	emitter.emit(0, fmt.Sprintf("Translating %d segments to %s", len(texts), target))

	stats := Stats{
		TotalSegments: len(texts),
		ProviderUsed:  primary.ID(),
	}

	translations := make([]string, len(texts))
	var pending []int

	cached := s.cache.GetMultiple(texts, source.Language, target, primary.ID())
	for i, text := range texts {
		if translation, ok := cached[text]; ok {
			translations[i] = translation
			stats.CachedSegments++
		} else {
			pending = append(pending, i)
		}
	}
	if stats.CachedSegments > 0 {
		log.Info("Cache served %d of %d segments", stats.CachedSegments, len(texts))
	}

	if len(pending) > 0 {
		if err := s.translatePending(ctx, source, target, texts, pending, translations, &stats, emitter); err != nil {
			emitter.emit(0, fmt.Sprintf("Translation failed: %v", err))
			return nil, err
		}
	}

	result := &subtitle.Source{
		Segments: make([]subtitle.Segment, len(source.Segments)),
		Language: source.Language,
		Format:   source.Format,
		Path:     source.Path,
	}
	copy(result.Segments, source.Segments)

	leftover := 0
	for i := range result.Segments {
		result.Segments[i].TranslatedText = translations[i]
		if markup.HasTokens(translations[i]) {
			leftover++
		}
	}
	if leftover > 0 {
		log.Warn("%d segments still carry placeholder tokens after restore", leftover)
	}

	stats.DurationMs = time.Since(started).Milliseconds()
	s.setStats(stats)
	emitter.emit(1, "Translation complete")

	return result, nil
}

// translatePending runs the provider pipeline for the segments the
// cache could not serve and fills their slots in translations.
func (s *Session) translatePending(
	ctx context.Context,
	source *subtitle.Source,
	target language.Tag,
	texts []string,
	pending []int,
	translations []string,
	stats *Stats,
	emitter *progressEmitter,
) error {
	activeGlossary := s.glossary
	if !activeGlossary.Matches(source.Language, target) {
		if activeGlossary != nil {
			log.Debug("Glossary %q does not cover %s->%s, skipping", activeGlossary.Name, source.Language, target)
		}
		activeGlossary = nil
	}

	// Mask formatting first so glossary terms never straddle a tag,
	// then lock glossary terms behind tokens of their own.
	masked := make([]string, len(pending))
	restores := make([]markup.RestoreFunc, len(pending))
	termTokens := make([]map[string]string, len(pending))
	for k, idx := range pending {
		text, restore := markup.Extract(texts[idx])
		text, termTokens[k] = activeGlossary.ApplyPre(text)
		masked[k] = text
		restores[k] = restore
	}
	emitter.emit(preprocessProgress, "Prepared segments")

	primary := s.providers[0]
	batchConfig := primary.BatchConfig()
	batches := provider.BuildBatches(masked, batchConfig)
	log.Info("Translating %d segments in %d batches via %s", len(pending), len(batches), primary.ID())

	orch := newOrchestrator(s.providers, s.trackers, s.sleep)
	var contextPairs []provider.ContextPair

	for i, batch := range batches {
		if n := batchConfig.ContextSegments; n > 0 && len(contextPairs) > 0 {
			start := len(contextPairs) - n
			if start < 0 {
				start = 0
			}
			batch.ContextPrefix = contextPairs[start:]
		}

		result, err := orch.translateBatch(ctx, batch, source.Language, target)
		if err != nil {
			return err
		}
		if len(result.Translations) != len(batch.Segments) {
			return NewError(ErrUnknown, fmt.Sprintf("provider %s returned %d translations for %d segments",
				result.ProviderID, len(result.Translations), len(batch.Segments)))
		}

		produced := make(map[string]string, len(batch.Segments))
		for j := range batch.Segments {
			k := batch.StartIndex + j
			idx := pending[k]

			translated := result.Translations[j]
			translated = glossary.ApplyPost(translated, termTokens[k])
			translated = markup.FixInlineBreaks(masked[k], translated)
			translated = restores[k](translated)

			translations[idx] = translated
			produced[texts[idx]] = translated
			contextPairs = append(contextPairs, provider.ContextPair{
				Original:   texts[idx],
				Translated: translated,
			})
		}

		// Cache entries are keyed by the provider that produced them.
		s.cache.PutMultiple(produced, source.Language, target, result.ProviderID)

		stats.APICalls += result.APICalls
		stats.TotalCharacters += batch.TotalCharacters
		stats.ProviderUsed = result.ProviderID
		if result.ProviderID != primary.ID() && !slices.Contains(stats.FallbacksUsed, result.ProviderID) {
			stats.FallbacksUsed = append(stats.FallbacksUsed, result.ProviderID)
		}

		emitter.emit(
			preprocessProgress+(1-2*preprocessProgress)*float64(i+1)/float64(len(batches)),
			fmt.Sprintf("Translated batch %d/%d", i+1, len(batches)),
		)
	}

	return nil
}

// Stats returns the statistics of the last completed run.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *Session) setStats(stats Stats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats = stats
}

func defaultSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
