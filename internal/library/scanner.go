// Package library scans watch directories for subtitle files and
// reports which ones still need a target-language translation.
package library

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/language"

	"github.com/ericjesse/video-translator-sub001/pkg/file"
)

type scannerOptions struct {
	cacheTTL time.Duration
}

type Option func(*scannerOptions)

func WithCacheTTL(ttl time.Duration) Option {
	return func(o *scannerOptions) {
		o.cacheTTL = ttl
	}
}

type scanCache struct {
	version uint64
	scanned time.Time
	library *Library
}

// Scanner walks the configured watch directories for SRT files. Results
// are cached for a short TTL because the HTTP API and the cron schedule
// both trigger scans.
type Scanner struct {
	sources        []SourceConfig
	targetLanguage language.Tag

	mu            sync.RWMutex
	cacheTTL      time.Duration
	cache         *scanCache
	configVersion uint64
}

func NewScanner(
	sources []SourceConfig,
	targetLanguage language.Tag,
	opts ...Option,
) *Scanner {
	options := scannerOptions{
		cacheTTL: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(&options)
	}

	return &Scanner{
		sources:        sources,
		targetLanguage: targetLanguage,
		cacheTTL:       options.cacheTTL,
	}
}

func (s *Scanner) TargetLanguage() string {
	s.mu.RLock()
	target := s.targetLanguage
	s.mu.RUnlock()

	base, _ := target.Base()
	return base.String()
}

func (s *Scanner) UpdateTargetLanguage(lang string) error {
	tag, err := language.Parse(lang)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.targetLanguage != tag {
		s.targetLanguage = tag
		s.cache = nil
		s.configVersion++
	}
	s.mu.Unlock()
	return nil
}

func (s *Scanner) Invalidate() {
	s.mu.Lock()
	s.cache = nil
	s.configVersion++
	s.mu.Unlock()
}

func (s *Scanner) Scan(ctx context.Context) (*Library, error) {
	s.mu.RLock()
	version := s.configVersion
	cacheTTL := s.cacheTTL
	if s.cache != nil && s.cache.version == version && (cacheTTL <= 0 || time.Since(s.cache.scanned) < cacheTTL) {
		cached := cloneLibrary(s.cache.library)
		s.mu.RUnlock()
		return cached, nil
	}
	sources := append([]SourceConfig(nil), s.sources...)
	targetLanguage := s.targetLanguage
	s.mu.RUnlock()

	targetBase, _ := targetLanguage.Base()
	targetCode := targetBase.String()

	ret := &Library{
		Sources: make([]Source, 0, len(sources)),
		Files:   make([]SubtitleFile, 0),
	}

	for _, sourceCfg := range sources {
		if sourceCfg.Path == "" {
			continue
		}
		if _, err := os.Stat(sourceCfg.Path); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}

		paths, err := file.FindByExt(sourceCfg.Path, []string{".srt"})
		if err != nil {
			return nil, err
		}
		sort.Strings(paths)

		type scanned struct {
			path  string
			stem  string
			token string
		}
		files := make([]scanned, 0, len(paths))
		// Files sharing a stem form one group; a group is covered once
		// any member carries the target language suffix.
		groupHasTarget := make(map[string]bool)
		for _, path := range paths {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}

			stem, token := splitLanguageSuffix(path)
			if token != "" && isTargetLanguage(token, targetLanguage) {
				groupHasTarget[stem] = true
			}
			files = append(files, scanned{path: path, stem: stem, token: token})
		}

		for _, f := range files {
			hasTarget := groupHasTarget[f.stem]
			ret.Files = append(ret.Files, SubtitleFile{
				ID:                f.path,
				SourceID:          sourceCfg.ID,
				Path:              f.path,
				Language:          normalizeLangCode(f.token),
				HasTargetSubtitle: hasTarget,
				TargetPath:        file.WithLanguageSuffix(f.path, targetCode),
				Translatable:      !hasTarget,
			})
		}

		ret.Sources = append(ret.Sources, Source{
			ID:        sourceCfg.ID,
			Name:      sourceCfg.Name,
			Path:      sourceCfg.Path,
			FileCount: len(files),
		})
	}

	s.mu.Lock()
	if s.configVersion == version {
		s.cache = &scanCache{
			version: version,
			scanned: time.Now(),
			library: cloneLibrary(ret),
		}
	}
	s.mu.Unlock()

	return ret, nil
}

// splitLanguageSuffix separates the language token embedded in a
// subtitle filename from the rest of the path. "ep01.fre.srt" yields
// stem "ep01" and token "fre"; a name without a recognized token keeps
// its full stem.
func splitLanguageSuffix(path string) (stem, token string) {
	ext := filepath.Ext(path)
	stem = strings.TrimSuffix(path, ext)

	suffix, ok := file.LanguageSuffix(path)
	if !ok {
		return stem, ""
	}
	lowered := strings.ToLower(suffix)
	if !isLanguageToken(lowered) {
		return stem, ""
	}
	return strings.TrimSuffix(stem, filepath.Ext(stem)), lowered
}

// normalizeLangCode validates a language token and returns its normalized
// ISO 639-1 base code (e.g. "fre"→"fr", "eng"→"en", "chi"→"zh").
// Returns "" if the token is not a recognized language code.
func normalizeLangCode(token string) string {
	if token == "" {
		return ""
	}
	tag, err := language.Parse(token)
	if err != nil {
		return ""
	}
	base, conf := tag.Base()
	if conf == language.No {
		return ""
	}
	return base.String()
}

func isTargetLanguage(token string, target language.Tag) bool {
	token = strings.ToLower(strings.ReplaceAll(token, "_", "-"))
	if token == "" {
		return false
	}

	base, _ := target.Base()
	targetBase := strings.ToLower(base.String())
	if token == targetBase || strings.HasPrefix(token, targetBase+"-") {
		return true
	}

	// common aliases
	switch targetBase {
	case "zh":
		return token == "chi" || token == "chs" || token == "cht"
	case "en":
		return token == "eng"
	}

	return false
}

func isLanguageToken(token string) bool {
	if token == "" {
		return false
	}
	if normalizeLangCode(token) != "" {
		return true
	}
	switch token {
	case "chs", "cht":
		return true
	default:
		return false
	}
}

func cloneLibrary(src *Library) *Library {
	if src == nil {
		return nil
	}

	dst := &Library{
		Sources: make([]Source, len(src.Sources)),
		Files:   make([]SubtitleFile, len(src.Files)),
	}
	copy(dst.Sources, src.Sources)
	copy(dst.Files, src.Files)
	return dst
}
