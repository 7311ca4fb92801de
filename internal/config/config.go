package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/robfig/cron/v3"
	"golang.org/x/text/language"

	"github.com/ericjesse/video-translator-sub001/internal/provider"
	"github.com/ericjesse/video-translator-sub001/pkg/log"
)

// Config holds all application configuration
// Includes provider credentials, translation defaults, cache and backoff
// tuning, watch directories and the HTTP surface
// Supports environment variables with sensible defaults
//
// Environment Variables:
// Provider Configuration:
// - PRIMARY_PROVIDER: Provider tried first (default: libretranslate)
// - LIBRETRANSLATE_ENDPOINT: LibreTranslate base URL (default: http://localhost:5000)
// - LIBRETRANSLATE_API_KEY: LibreTranslate API key (optional)
// - LIBRETRANSLATE_TIMEOUT: Request timeout in seconds (default: 30)
// - DEEPL_API_KEY: DeepL API key (required when DeepL is used)
// - DEEPL_API_URL: DeepL base URL (default: https://api-free.deepl.com)
// - DEEPL_TIMEOUT: Request timeout in seconds (default: 30)
// - OPENAI_API_KEY: OpenAI-compatible API key (required when the LLM provider is used)
// - OPENAI_API_URL: OpenAI-compatible base URL (default: https://api.openai.com/v1)
// - OPENAI_MODEL: Chat model name (default: gpt-4o-mini)
// - OPENAI_MAX_TOKENS: Maximum tokens for responses (default: 4096)
// - OPENAI_TEMPERATURE: Temperature for responses (default: 0.3)
// - OPENAI_TIMEOUT: Request timeout in seconds (default: 60)
// - GOOGLE_API_KEY: Google Translation API key (required when Google is used)
// - GOOGLE_API_URL: Google Translation base URL (default: https://translation.googleapis.com)
// - GOOGLE_TIMEOUT: Request timeout in seconds (default: 30)
//
// Translation Configuration:
// - TARGET_LANGUAGE: BCP 47 tag translations are produced in (required)
// - SOURCE_LANGUAGE: BCP 47 tag of the material; empty means detect per file
// - SCAN_CRON: Cron expression for library scans (default: 0 0 * * *)
//
// Cache and Backoff Configuration:
// - CACHE_MAX_SIZE: Maximum cached segment translations (default: 1000)
// - BACKOFF_INITIAL_DELAY_MS: First retry delay in milliseconds (default: 1000)
// - BACKOFF_MAX_DELAY_MS: Retry delay cap in milliseconds (default: 60000)
// - BACKOFF_MULTIPLIER: Delay growth factor (default: 2.0)
// - BACKOFF_MAX_RETRIES: Consecutive failures before a provider is skipped (default: 5)
//
// Library Configuration:
// - WATCH_DIRS: Comma-separated directories scanned for subtitles (default: /media)
//
// Glossary Configuration:
// - GLOSSARY_DIR: Directory holding glossary JSON files (default: /app/config/glossary)
// - GLOSSARY_ENABLED: Apply glossaries during translation (default: true)
//
// HTTP Configuration:
// - HTTP_ADDR: Listen address (default: :8080)
// - UI_ENABLED: Serve the bundled web UI (default: true)
// - UI_DIR: Directory with the static UI files (default: /app/web)
//
// System Configuration:
// - DATA_DIR: Directory for the job database (default: /app/data)
// - SETTINGS_FILE: Runtime settings JSON path (default: /app/config/settings.json)
// - LOG_LEVEL: DEBUG, INFO, WARN, ERROR or FATAL (default: INFO)

type Config struct {
	// Provider Configuration
	Providers ProvidersConfig `json:"providers"`

	// Translation Configuration
	Translate TranslateConfig `json:"translate"`

	// Cache Configuration
	Cache CacheConfig `json:"cache"`

	// Backoff Configuration
	Backoff BackoffConfig `json:"backoff"`

	// Library Configuration
	Library LibraryConfig `json:"library"`

	// Glossary Configuration
	Glossary GlossaryConfig `json:"glossary"`

	// HTTP Configuration
	HTTP HTTPConfig `json:"http"`

	// System Configuration
	System SystemConfig `json:"system"`
}

// ProvidersConfig names the primary provider and carries the
// per-provider credentials and endpoints.
type ProvidersConfig struct {
	Primary        string               `json:"primary"`
	LibreTranslate LibreTranslateConfig `json:"libretranslate"`
	DeepL          DeepLConfig          `json:"deepl"`
	OpenAI         OpenAIConfig         `json:"openai"`
	Google         GoogleConfig         `json:"google"`
}

type LibreTranslateConfig struct {
	Endpoint string `json:"endpoint"`
	APIKey   string `json:"api_key"`
	Timeout  int    `json:"timeout"`
}

type DeepLConfig struct {
	APIKey   string `json:"api_key"`
	Endpoint string `json:"endpoint"`
	Timeout  int    `json:"timeout"`
}

// OpenAIConfig holds the configuration for the LLM-backed provider.
// Any OpenAI-compatible endpoint works.
type OpenAIConfig struct {
	APIKey      string  `json:"api_key"`
	APIURL      string  `json:"api_url"`
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	Timeout     int     `json:"timeout"`
}

type GoogleConfig struct {
	APIKey   string `json:"api_key"`
	Endpoint string `json:"endpoint"`
	Timeout  int    `json:"timeout"`
}

type TranslateConfig struct {
	TargetLanguage language.Tag `json:"target_language"`
	SourceLanguage language.Tag `json:"source_language"`
	ScanCron       string       `json:"scan_cron"`
}

type CacheConfig struct {
	MaxSize int `json:"max_size"`
}

// BackoffConfig bounds the retry schedule applied after provider
// failures.
type BackoffConfig struct {
	InitialDelayMs int     `json:"initial_delay_ms"`
	MaxDelayMs     int     `json:"max_delay_ms"`
	Multiplier     float64 `json:"multiplier"`
	MaxRetries     int     `json:"max_retries"`
}

// LibraryConfig holds the directories scanned for subtitle files.
type LibraryConfig struct {
	WatchDirs []string `json:"watch_dirs"`
}

type GlossaryConfig struct {
	Dir     string `json:"dir"`
	Enabled bool   `json:"enabled"`
}

// HTTPConfig holds the HTTP server configuration.
type HTTPConfig struct {
	Addr        string `json:"addr"`
	UIEnabled   bool   `json:"ui_enabled"`
	UIStaticDir string `json:"ui_static_dir"`
}

// SystemConfig holds the system configuration.
type SystemConfig struct {
	DataDir  string `json:"data_dir"`
	LogLevel string `json:"log_level"`
}

// DBPath is the location of the job database inside the data directory.
func (c *Config) DBPath() string {
	return filepath.Join(c.System.DataDir, "jobs.db")
}

// Option is a function type for configuring Config
type Option func(*Config)

// NewFromEnv creates a new Config instance with values from environment variables and options
func NewFromEnv(opts ...Option) (*Config, error) {
	config := &Config{
		Providers: ProvidersConfig{
			Primary: getEnvString("PRIMARY_PROVIDER", provider.IDLibreTranslate),
			LibreTranslate: LibreTranslateConfig{
				Endpoint: getEnvString("LIBRETRANSLATE_ENDPOINT", "http://localhost:5000"),
				APIKey:   getEnvString("LIBRETRANSLATE_API_KEY", ""),
				Timeout:  getEnvInt("LIBRETRANSLATE_TIMEOUT", 30),
			},
			DeepL: DeepLConfig{
				APIKey:   getEnvString("DEEPL_API_KEY", ""),
				Endpoint: getEnvString("DEEPL_API_URL", "https://api-free.deepl.com"),
				Timeout:  getEnvInt("DEEPL_TIMEOUT", 30),
			},
			OpenAI: OpenAIConfig{
				APIKey:      getEnvString("OPENAI_API_KEY", ""),
				APIURL:      getEnvString("OPENAI_API_URL", "https://api.openai.com/v1"),
				Model:       getEnvString("OPENAI_MODEL", "gpt-4o-mini"),
				MaxTokens:   getEnvInt("OPENAI_MAX_TOKENS", 4096),
				Temperature: getEnvFloat("OPENAI_TEMPERATURE", 0.3),
				Timeout:     getEnvInt("OPENAI_TIMEOUT", 60),
			},
			Google: GoogleConfig{
				APIKey:   getEnvString("GOOGLE_API_KEY", ""),
				Endpoint: getEnvString("GOOGLE_API_URL", "https://translation.googleapis.com"),
				Timeout:  getEnvInt("GOOGLE_TIMEOUT", 30),
			},
		},
		Translate: TranslateConfig{
			TargetLanguage: getEnvLanguage("TARGET_LANGUAGE", language.Und),
			SourceLanguage: getEnvLanguage("SOURCE_LANGUAGE", language.Und),
			ScanCron:       getEnvString("SCAN_CRON", "0 0 * * *"),
		},
		Cache: CacheConfig{
			MaxSize: getEnvInt("CACHE_MAX_SIZE", 1000),
		},
		Backoff: BackoffConfig{
			InitialDelayMs: getEnvInt("BACKOFF_INITIAL_DELAY_MS", 1000),
			MaxDelayMs:     getEnvInt("BACKOFF_MAX_DELAY_MS", 60000),
			Multiplier:     getEnvFloat("BACKOFF_MULTIPLIER", 2.0),
			MaxRetries:     getEnvInt("BACKOFF_MAX_RETRIES", 5),
		},
		Library: LibraryConfig{
			WatchDirs: getEnvStringSlice("WATCH_DIRS", []string{"/media"}),
		},
		Glossary: GlossaryConfig{
			Dir:     getEnvString("GLOSSARY_DIR", "/app/config/glossary"),
			Enabled: getEnvBool("GLOSSARY_ENABLED", true),
		},
		HTTP: HTTPConfig{
			Addr:        getEnvString("HTTP_ADDR", ":8080"),
			UIEnabled:   getEnvBool("UI_ENABLED", true),
			UIStaticDir: getEnvString("UI_DIR", "/app/web"),
		},
		System: SystemConfig{
			DataDir:  getEnvString("DATA_DIR", "/app/data"),
			LogLevel: getEnvString("LOG_LEVEL", "INFO"),
		},
	}

	// Apply custom options
	for _, opt := range opts {
		opt(config)
	}

	// Validate required configuration
	if err := config.validate(); err != nil {
		return nil, err
	}

	log.Info("Config: primary=%s target=%s watch_dirs=%v",
		config.Providers.Primary, config.Translate.TargetLanguage, config.Library.WatchDirs)

	return config, nil
}

// validate checks if all required configuration is properly set
func (c *Config) validate() error {
	if !KnownProvider(c.Providers.Primary) {
		return fmt.Errorf("unknown PRIMARY_PROVIDER %q", c.Providers.Primary)
	}
	switch c.Providers.Primary {
	case provider.IDDeepL:
		if c.Providers.DeepL.APIKey == "" {
			return fmt.Errorf("DEEPL_API_KEY is required when PRIMARY_PROVIDER is %q", provider.IDDeepL)
		}
	case provider.IDOpenAI:
		if c.Providers.OpenAI.APIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when PRIMARY_PROVIDER is %q", provider.IDOpenAI)
		}
	case provider.IDGoogle:
		if c.Providers.Google.APIKey == "" {
			return fmt.Errorf("GOOGLE_API_KEY is required when PRIMARY_PROVIDER is %q", provider.IDGoogle)
		}
	}
	if c.Translate.TargetLanguage.IsRoot() {
		return fmt.Errorf("TARGET_LANGUAGE is required (a BCP 47 tag such as \"fr\" or \"zh-Hans\")")
	}
	if _, err := cron.ParseStandard(c.Translate.ScanCron); err != nil {
		return fmt.Errorf("invalid SCAN_CRON: %w", err)
	}
	if c.Cache.MaxSize <= 0 {
		return fmt.Errorf("CACHE_MAX_SIZE must be positive")
	}
	if c.Backoff.InitialDelayMs <= 0 {
		return fmt.Errorf("BACKOFF_INITIAL_DELAY_MS must be positive")
	}
	if c.Backoff.MaxDelayMs < c.Backoff.InitialDelayMs {
		return fmt.Errorf("BACKOFF_MAX_DELAY_MS must be at least BACKOFF_INITIAL_DELAY_MS")
	}
	if c.Backoff.Multiplier < 1 {
		return fmt.Errorf("BACKOFF_MULTIPLIER must be at least 1")
	}
	if c.Backoff.MaxRetries <= 0 {
		return fmt.Errorf("BACKOFF_MAX_RETRIES must be positive")
	}
	return nil
}

// KnownProvider reports whether id names one of the built-in provider
// adapters.
func KnownProvider(id string) bool {
	switch id {
	case provider.IDLibreTranslate, provider.IDDeepL, provider.IDOpenAI, provider.IDGoogle:
		return true
	}
	return false
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat gets a float value from environment variables with default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvBool gets a boolean value from environment variables with default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvLanguage gets a BCP 47 language tag from environment variables with default
func getEnvLanguage(key string, defaultValue language.Tag) language.Tag {
	if value := os.Getenv(key); value != "" {
		if tag, err := language.Parse(value); err == nil {
			return tag
		}
	}
	return defaultValue
}

// getEnvStringSlice gets a comma-separated list from environment variables with default
func getEnvStringSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	ret := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			ret = append(ret, trimmed)
		}
	}
	if len(ret) == 0 {
		return defaultValue
	}
	return ret
}
