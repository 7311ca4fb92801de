package jobs

import "time"

type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

type EnqueueRequest struct {
	Source    string
	DedupeKey string
	Payload   JobPayload
}

// JobPayload names the subtitle file to translate. Languages travel as
// BCP 47 strings so the payload survives JSON persistence unchanged.
type JobPayload struct {
	SubtitleFile   string `json:"subtitle_file"`
	SourceLanguage string `json:"source_language,omitempty"`
	TargetLanguage string `json:"target_language"`
	Provider       string `json:"provider,omitempty"`
}

// JobStats mirrors the session statistics of a finished translation so
// the queue and its store stay free of translator types.
type JobStats struct {
	TotalSegments   int      `json:"total_segments"`
	CachedSegments  int      `json:"cached_segments"`
	APICalls        int      `json:"api_calls"`
	TotalCharacters int      `json:"total_characters"`
	DurationMs      int64    `json:"duration_ms"`
	ProviderUsed    string   `json:"provider_used"`
	FallbacksUsed   []string `json:"fallbacks_used,omitempty"`
}

type TranslationJob struct {
	ID        string     `json:"id"`
	Source    string     `json:"source"`
	DedupeKey string     `json:"dedupe_key"`
	Payload   JobPayload `json:"payload"`
	Status    Status     `json:"status"`
	Error     string     `json:"error,omitempty"`
	Progress  float64    `json:"progress"`
	Message   string     `json:"message,omitempty"`
	Stats     *JobStats  `json:"stats,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}
