package provider

// BatchConfig declares how much a provider accepts per call and how
// much conversational context it wants attached.
type BatchConfig struct {
	MaxCharacters   int
	MaxSegments     int
	MaxTokens       int
	ContextSegments int
}

// ContextPair is one already-translated segment handed to a provider
// as context for the next batch.
type ContextPair struct {
	Original   string
	Translated string
}

// Batch is a run of consecutive segments sent to a provider in one
// call. StartIndex locates the run inside the session's segment list.
type Batch struct {
	Segments        []string
	ContextPrefix   []ContextPair
	StartIndex      int
	TotalCharacters int
	EstimatedTokens int
}

// EstimateTokens approximates the token cost of a text. Four bytes per
// token is coarse but stable, and only has to keep batches safely
// under provider limits.
func EstimateTokens(text string) int {
	return len(text)/4 + 1
}

// BuildBatches packs texts into batches greedily, preserving order. A
// batch closes when appending the next text would break any limit of
// cfg; a text too large for an empty batch still ships alone rather
// than being dropped.
func BuildBatches(texts []string, cfg BatchConfig) []Batch {
	var batches []Batch
	var current Batch

	flush := func() {
		if len(current.Segments) > 0 {
			batches = append(batches, current)
			current = Batch{}
		}
	}

	for i, text := range texts {
		chars := len(text)
		tokens := EstimateTokens(text)

		if len(current.Segments) > 0 && exceeds(current, chars, tokens, cfg) {
			flush()
		}
		if len(current.Segments) == 0 {
			current.StartIndex = i
		}
		current.Segments = append(current.Segments, text)
		current.TotalCharacters += chars
		current.EstimatedTokens += tokens
	}
	flush()

	return batches
}

func exceeds(b Batch, chars, tokens int, cfg BatchConfig) bool {
	if cfg.MaxCharacters > 0 && b.TotalCharacters+chars > cfg.MaxCharacters {
		return true
	}
	if cfg.MaxSegments > 0 && len(b.Segments)+1 > cfg.MaxSegments {
		return true
	}
	if cfg.MaxTokens > 0 && b.EstimatedTokens+tokens > cfg.MaxTokens {
		return true
	}
	return false
}
