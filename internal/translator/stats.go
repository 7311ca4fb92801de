package translator

// Stats summarizes one translation run.
type Stats struct {
	// TotalSegments is the number of segments in the input.
	TotalSegments int `json:"total_segments"`
	// CachedSegments is how many of them were served from the cache.
	CachedSegments int `json:"cached_segments"`
	// APICalls counts the provider requests that produced translations.
	APICalls int `json:"api_calls"`
	// TotalCharacters is the number of characters sent to providers.
	TotalCharacters int `json:"total_characters"`
	// DurationMs is the wall-clock duration of the run.
	DurationMs int64 `json:"duration_ms"`
	// ProviderUsed is the provider that served the last batch.
	ProviderUsed string `json:"provider_used"`
	// FallbacksUsed lists non-primary providers that served at least
	// one batch, in first-use order.
	FallbacksUsed []string `json:"fallbacks_used,omitempty"`
}
