// Package service wires configuration, provider construction, the
// segment cache, rate-limit trackers, the job queue and the library
// scanner into the operations the HTTP API and the cron scheduler call.
package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/language"

	"github.com/ericjesse/video-translator-sub001/internal/cache"
	"github.com/ericjesse/video-translator-sub001/internal/config"
	"github.com/ericjesse/video-translator-sub001/internal/glossary"
	"github.com/ericjesse/video-translator-sub001/internal/jobs"
	"github.com/ericjesse/video-translator-sub001/internal/library"
	"github.com/ericjesse/video-translator-sub001/internal/llm"
	"github.com/ericjesse/video-translator-sub001/internal/provider"
	"github.com/ericjesse/video-translator-sub001/internal/provider/deepl"
	"github.com/ericjesse/video-translator-sub001/internal/provider/googlemt"
	"github.com/ericjesse/video-translator-sub001/internal/provider/libretranslate"
	"github.com/ericjesse/video-translator-sub001/internal/provider/openai"
	"github.com/ericjesse/video-translator-sub001/internal/ratelimit"
	"github.com/ericjesse/video-translator-sub001/internal/subtitle"
	"github.com/ericjesse/video-translator-sub001/internal/translator"
	"github.com/ericjesse/video-translator-sub001/pkg/file"
	"github.com/ericjesse/video-translator-sub001/pkg/icron"
	"github.com/ericjesse/video-translator-sub001/pkg/log"
)

// Job source labels, recorded on enqueue.
const (
	SourceManual = "manual"
	SourceCron   = "cron"
	SourceScan   = "scan"
)

const suggestSampleLines = 40

// Service owns the shared translation state. The cache and the
// trackers live for the process lifetime; sessions are built per run.
type Service struct {
	queue   *jobs.Queue
	scanner *library.Scanner
	cron    *cron.Cron

	cache    *cache.Cache
	trackers *ratelimit.Registry
	reader   subtitle.Reader
	writer   subtitle.Writer

	mu        sync.RWMutex
	cfg       config.Config
	cronEntry cron.EntryID
	scanFunc  func()
	lastStats *translator.Stats
}

func New(cfg config.Config, queue *jobs.Queue, scanner *library.Scanner, cronEngine *cron.Cron) *Service {
	return &Service{
		queue:    queue,
		scanner:  scanner,
		cron:     cronEngine,
		cache:    cache.New(cfg.Cache.MaxSize),
		trackers: ratelimit.NewRegistry(backoffPolicy(cfg.Backoff)),
		reader:   subtitle.NewReader(),
		writer:   subtitle.NewWriter(),
		cfg:      cfg,
	}
}

// scanGroup collapses concurrent scan requests, whether they come from
// the cron schedule or the HTTP trigger.
var scanGroup singleflight.Group

// Translate translates source into the target language. Stats of the
// run are kept for LastStats once it completes.
func (s *Service) Translate(ctx context.Context, source *subtitle.Source, target language.Tag, onProgress translator.ProgressFunc) (*subtitle.Source, error) {
	if source == nil {
		return nil, translator.NewError(translator.ErrValidation, "subtitle source is required")
	}
	translated, _, err := s.translate(ctx, "", source, target, onProgress)
	return translated, err
}

// ExecuteJob runs one queued translation job. The queue calls it from
// its worker; progress flows back into the job record.
func (s *Service) ExecuteJob(ctx context.Context, job *jobs.TranslationJob) error {
	target, err := language.Parse(job.Payload.TargetLanguage)
	if err != nil {
		return fmt.Errorf("job %s has invalid target language %q: %w", job.ID, job.Payload.TargetLanguage, err)
	}

	onProgress := func(p translator.Progress) {
		s.queue.UpdateProgress(job.ID, p.Percentage, p.Message)
	}

	outputPath, stats, err := s.translateFile(ctx, job.Payload, target, onProgress)
	if err != nil {
		return err
	}

	s.queue.SetStats(job.ID, jobStats(stats))
	s.scanner.Invalidate()
	log.Info("Job %s translated %s into %s", job.ID, job.Payload.SubtitleFile, outputPath)
	return nil
}

// translateFile reads the subtitle named by the payload, translates it
// and writes the result next to the input with the target language
// suffix, matching what the scanner expects to find.
func (s *Service) translateFile(ctx context.Context, payload jobs.JobPayload, target language.Tag, onProgress translator.ProgressFunc) (string, translator.Stats, error) {
	source, err := s.reader.Read(payload.SubtitleFile)
	if err != nil {
		return "", translator.Stats{}, fmt.Errorf("failed to read subtitle file %s: %w", payload.SubtitleFile, err)
	}

	// A language named by the payload wins over content detection; it
	// comes from the filename and keeps cache keys stable across runs.
	if payload.SourceLanguage != "" {
		if tag, err := language.Parse(payload.SourceLanguage); err == nil {
			source.Language = tag
		}
	}

	translated, stats, err := s.translate(ctx, payload.Provider, source, target, onProgress)
	if err != nil {
		return "", stats, err
	}

	targetBase, _ := target.Base()
	outputPath := file.WithLanguageSuffix(payload.SubtitleFile, targetBase.String())
	if err := s.writer.Write(outputPath, translated); err != nil {
		return "", stats, fmt.Errorf("failed to write translated subtitle %s: %w", outputPath, err)
	}
	return outputPath, stats, nil
}

func (s *Service) translate(ctx context.Context, primaryID string, source *subtitle.Source, target language.Tag, onProgress translator.ProgressFunc) (*subtitle.Source, translator.Stats, error) {
	session, err := s.newSession(primaryID, source.Language, target, onProgress)
	if err != nil {
		return nil, translator.Stats{}, err
	}

	translated, err := session.Translate(ctx, source, target)
	if err != nil {
		return nil, translator.Stats{}, err
	}

	stats := session.Stats()
	s.setLastStats(stats)
	return translated, stats, nil
}

func (s *Service) newSession(primaryID string, source, target language.Tag, onProgress translator.ProgressFunc) (*translator.Session, error) {
	configured, err := s.buildProviders()
	if err != nil {
		return nil, err
	}

	if primaryID == "" {
		primaryID = s.primaryProvider()
	}
	ordered, err := provider.FallbackOrder(primaryID, configured)
	if err != nil {
		return nil, err
	}

	return translator.NewSession(ordered, s.trackers, s.cache, translator.Options{
		Glossary:   s.loadGlossary(source, target),
		OnProgress: onProgress,
	})
}

// buildProviders constructs an adapter for every provider that has
// credentials. LibreTranslate needs none, so it is always available.
func (s *Service) buildProviders() (map[string]provider.Translator, error) {
	s.mu.RLock()
	cfg := s.cfg.Providers
	s.mu.RUnlock()

	configured := map[string]provider.Translator{
		provider.IDLibreTranslate: libretranslate.New(
			cfg.LibreTranslate.Endpoint,
			cfg.LibreTranslate.APIKey,
			time.Duration(cfg.LibreTranslate.Timeout)*time.Second,
		),
	}
	if cfg.DeepL.APIKey != "" {
		configured[provider.IDDeepL] = deepl.New(
			cfg.DeepL.Endpoint,
			cfg.DeepL.APIKey,
			time.Duration(cfg.DeepL.Timeout)*time.Second,
		)
	}
	if cfg.Google.APIKey != "" {
		configured[provider.IDGoogle] = googlemt.New(
			cfg.Google.Endpoint,
			cfg.Google.APIKey,
			time.Duration(cfg.Google.Timeout)*time.Second,
		)
	}
	if cfg.OpenAI.APIKey != "" {
		client, err := llm.NewClient(&llm.Config{
			APIKey:      cfg.OpenAI.APIKey,
			APIURL:      cfg.OpenAI.APIURL,
			Model:       cfg.OpenAI.Model,
			MaxTokens:   cfg.OpenAI.MaxTokens,
			Temperature: cfg.OpenAI.Temperature,
			Timeout:     cfg.OpenAI.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create LLM client: %w", err)
		}
		configured[provider.IDOpenAI] = openai.New(client)
	}

	return configured, nil
}

func (s *Service) loadGlossary(source, target language.Tag) *glossary.Glossary {
	s.mu.RLock()
	dir := s.cfg.Glossary.Dir
	enabled := s.cfg.Glossary.Enabled
	s.mu.RUnlock()

	if !enabled || dir == "" {
		return nil
	}

	g, err := glossary.Load(glossary.FilePath(dir, source, target))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Warn("Failed to load glossary for %s->%s: %v", source, target, err)
		}
		return nil
	}
	return g
}

// EnqueueTranslation queues one subtitle file for translation. An
// empty target language falls back to the configured default. The
// returned bool is false when an equivalent job was already queued.
func (s *Service) EnqueueTranslation(payload jobs.JobPayload, source string) (*jobs.TranslationJob, bool, error) {
	if payload.SubtitleFile == "" {
		return nil, false, fmt.Errorf("subtitle file is required")
	}

	target := s.targetLanguage()
	if payload.TargetLanguage != "" {
		parsed, err := language.Parse(payload.TargetLanguage)
		if err != nil {
			return nil, false, fmt.Errorf("invalid target language %q: %w", payload.TargetLanguage, err)
		}
		target = parsed
	}
	payload.TargetLanguage = target.String()

	if payload.Provider != "" && !config.KnownProvider(payload.Provider) {
		return nil, false, fmt.Errorf("unknown provider %q", payload.Provider)
	}

	job, created := s.queue.Enqueue(jobs.EnqueueRequest{
		Source:    source,
		DedupeKey: dedupeKey(payload.SubtitleFile, target),
		Payload:   payload,
	})
	return job, created, nil
}

func (s *Service) Jobs() []*jobs.TranslationJob {
	return s.queue.List()
}

func (s *Service) Job(id string) (*jobs.TranslationJob, bool) {
	return s.queue.Get(id)
}

// Library scans the watch directories and reports every subtitle file
// with its translation status.
func (s *Service) Library(ctx context.Context) (*library.Library, error) {
	return s.scanner.Scan(ctx)
}

// TriggerScan runs a scan and queues a job for every file that still
// needs a translation. Concurrent triggers collapse into one scan.
func (s *Service) TriggerScan(ctx context.Context) (int, error) {
	queued, err, _ := scanGroup.Do("scan", func() (any, error) {
		return s.scanAndEnqueue(ctx, SourceScan)
	})
	if err != nil {
		return 0, err
	}
	return queued.(int), nil
}

func (s *Service) scanAndEnqueue(ctx context.Context, source string) (int, error) {
	lib, err := s.scanner.Scan(ctx)
	if err != nil {
		return 0, err
	}

	queued := 0
	for _, f := range lib.Translatable() {
		job, created, err := s.EnqueueTranslation(jobs.JobPayload{
			SubtitleFile:   f.Path,
			SourceLanguage: f.Language,
		}, source)
		if err != nil {
			log.Error("Failed to queue translation for %s: %v", f.Path, err)
			continue
		}
		if created {
			queued++
			log.Info("Queued job %s for %s", job.ID, f.Path)
		}
	}
	return queued, nil
}

// Schedule registers the periodic library scan with the cron engine.
func (s *Service) Schedule(ctx context.Context) error {
	runFunc := func() {
		_, _, _ = scanGroup.Do("scan", func() (any, error) {
			queued, err := s.scanAndEnqueue(ctx, SourceCron)
			if err != nil {
				log.Error("Scheduled scan failed: %v", err)
				return 0, err
			}
			if queued > 0 {
				log.Info("Scheduled scan queued %d translation jobs", queued)
			}
			return queued, nil
		})
	}

	s.mu.Lock()
	s.scanFunc = runFunc
	expr := s.cfg.Translate.ScanCron
	s.mu.Unlock()

	entry, err := s.cron.AddFunc(expr, runFunc)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.cronEntry = entry
	s.mu.Unlock()

	log.Info("Scheduled library scans: %s", expr)
	return nil
}

// ScheduleInfo reports the previous and next scheduled scan times.
func (s *Service) ScheduleInfo() (*icron.TriggerInfo, error) {
	return icron.GetTriggerInfo(s.scanCron(), time.Now())
}

// ApplyRuntimeSettings applies validated settings to the running
// service: primary provider, target language, scan schedule and the
// glossary toggle. Credentials stay environment-only, so the primary
// can only switch to a provider whose key is already present.
func (s *Service) ApplyRuntimeSettings(settings config.RuntimeSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	tag, err := language.Parse(settings.TargetLanguage)
	if err != nil {
		return fmt.Errorf("invalid target language %q: %w", settings.TargetLanguage, err)
	}

	s.mu.Lock()
	if err := s.checkPrimaryCredentials(settings.PrimaryProvider); err != nil {
		s.mu.Unlock()
		return err
	}
	s.cfg.Providers.Primary = settings.PrimaryProvider
	s.cfg.Translate.TargetLanguage = tag
	rescheduled := settings.ScanCron != s.cfg.Translate.ScanCron
	s.cfg.Translate.ScanCron = settings.ScanCron
	s.cfg.Glossary.Enabled = settings.GlossaryEnabled
	scanFunc := s.scanFunc
	oldEntry := s.cronEntry
	s.mu.Unlock()

	if err := s.scanner.UpdateTargetLanguage(settings.TargetLanguage); err != nil {
		return err
	}

	if rescheduled && scanFunc != nil {
		s.cron.Remove(oldEntry)
		entry, err := s.cron.AddFunc(settings.ScanCron, scanFunc)
		if err != nil {
			return err
		}
		s.mu.Lock()
		s.cronEntry = entry
		s.mu.Unlock()
		log.Info("Rescheduled library scans: %s", settings.ScanCron)
	}

	return nil
}

// checkPrimaryCredentials verifies the key for a credentialed primary
// is present. The caller holds s.mu.
func (s *Service) checkPrimaryCredentials(id string) error {
	switch id {
	case provider.IDDeepL:
		if s.cfg.Providers.DeepL.APIKey == "" {
			return fmt.Errorf("cannot switch primary provider to %q: DEEPL_API_KEY is not set", id)
		}
	case provider.IDOpenAI:
		if s.cfg.Providers.OpenAI.APIKey == "" {
			return fmt.Errorf("cannot switch primary provider to %q: OPENAI_API_KEY is not set", id)
		}
	case provider.IDGoogle:
		if s.cfg.Providers.Google.APIKey == "" {
			return fmt.Errorf("cannot switch primary provider to %q: GOOGLE_API_KEY is not set", id)
		}
	}
	return nil
}

// RuntimeSettings reports the runtime-adjustable part of the current
// configuration.
func (s *Service) RuntimeSettings() config.RuntimeSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.RuntimeSettings()
}

// LastStats returns the stats of the most recent completed run, or nil
// when no run has completed yet.
func (s *Service) LastStats() *translator.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.lastStats == nil {
		return nil
	}
	stats := *s.lastStats
	stats.FallbacksUsed = append([]string(nil), s.lastStats.FallbacksUsed...)
	return &stats
}

func (s *Service) setLastStats(stats translator.Stats) {
	s.mu.Lock()
	s.lastStats = &stats
	s.mu.Unlock()
}

func (s *Service) ClearCache() {
	s.cache.Clear()
	log.Info("Segment cache cleared")
}

func (s *Service) CacheSize() int {
	return s.cache.Size()
}

// Glossary returns the stored glossary for the language pair, or nil
// when none exists.
func (s *Service) Glossary(source, target language.Tag) (*glossary.Glossary, error) {
	s.mu.RLock()
	dir := s.cfg.Glossary.Dir
	s.mu.RUnlock()

	g, err := glossary.Load(glossary.FilePath(dir, source, target))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return g, nil
}

// SetGlossary validates and stores a glossary under its language pair.
func (s *Service) SetGlossary(g *glossary.Glossary) error {
	if g == nil {
		return fmt.Errorf("glossary is required")
	}

	s.mu.RLock()
	dir := s.cfg.Glossary.Dir
	s.mu.RUnlock()

	return glossary.Save(glossary.FilePath(dir, g.SourceLanguage, g.TargetLanguage), g)
}

// RemoveGlossary deletes the stored glossary for the language pair.
// Removing a glossary that does not exist is not an error.
func (s *Service) RemoveGlossary(source, target language.Tag) error {
	s.mu.RLock()
	dir := s.cfg.Glossary.Dir
	s.mu.RUnlock()

	err := os.Remove(glossary.FilePath(dir, source, target))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// SuggestGlossary asks the configured LLM for established translations
// of names and terms in a show. When subtitlePath is set, a sample of
// its dialogue anchors the request.
func (s *Service) SuggestGlossary(ctx context.Context, title, subtitlePath string, source, target language.Tag) (*glossary.Glossary, error) {
	s.mu.RLock()
	cfg := s.cfg.Providers.OpenAI
	s.mu.RUnlock()

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("glossary suggestion requires OPENAI_API_KEY")
	}
	client, err := llm.NewClient(&llm.Config{
		APIKey:      cfg.APIKey,
		APIURL:      cfg.APIURL,
		Model:       cfg.Model,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
		Timeout:     cfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	var sample []string
	if subtitlePath != "" {
		src, err := s.reader.Read(subtitlePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read subtitle file %s: %w", subtitlePath, err)
		}
		sample = src.Texts()
		if len(sample) > suggestSampleLines {
			sample = sample[:suggestSampleLines]
		}
		if source.IsRoot() {
			source = src.Language
		}
	}

	return glossary.NewSuggester(client).Suggest(ctx, title, sample, source, target)
}

func (s *Service) targetLanguage() language.Tag {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Translate.TargetLanguage
}

func (s *Service) primaryProvider() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Providers.Primary
}

func (s *Service) scanCron() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Translate.ScanCron
}

func backoffPolicy(cfg config.BackoffConfig) ratelimit.Policy {
	return ratelimit.Policy{
		InitialDelay: time.Duration(cfg.InitialDelayMs) * time.Millisecond,
		MaxDelay:     time.Duration(cfg.MaxDelayMs) * time.Millisecond,
		Multiplier:   cfg.Multiplier,
		MaxRetries:   cfg.MaxRetries,
	}
}

func jobStats(stats translator.Stats) jobs.JobStats {
	return jobs.JobStats{
		TotalSegments:   stats.TotalSegments,
		CachedSegments:  stats.CachedSegments,
		APICalls:        stats.APICalls,
		TotalCharacters: stats.TotalCharacters,
		DurationMs:      stats.DurationMs,
		ProviderUsed:    stats.ProviderUsed,
		FallbacksUsed:   stats.FallbacksUsed,
	}
}

func dedupeKey(path string, target language.Tag) string {
	return path + "|" + target.String()
}
