package openai

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"
)

// Keys under which models tend to wrap the array when they ignore the
// bare-array instruction.
var wrapperKeys = []string{"translations", "translated", "texts", "lines", "result", "items", "output"}

var listMarkerPattern = regexp.MustCompile(`^(?:\d+[.)]\s*|[-*]\s+)`)

// parseTranslations recovers a slice of translations from whatever the model
// produced. It never fails: entries the response does not cover fall back to
// the corresponding input text, and surplus entries are dropped.
func parseTranslations(content string, originals []string) []string {
	trimmed := strings.TrimSpace(stripCodeFence(content))

	if arr, ok := decodeArray(trimmed); ok {
		return fitToCount(arr, originals)
	}
	if arr, ok := decodeWrappedArray(trimmed); ok {
		return fitToCount(arr, originals)
	}
	if arr, ok := decodeBracketSlice(trimmed); ok {
		return fitToCount(arr, originals)
	}
	return fitToCount(splitLines(trimmed), originals)
}

// stripCodeFence removes a surrounding markdown fence such as ```json ... ```.
func stripCodeFence(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return content
	}
	parts := strings.SplitN(trimmed, "\n", 2)
	if len(parts) < 2 {
		return content
	}
	rest := parts[1]
	if end := strings.LastIndex(rest, "```"); end >= 0 {
		rest = rest[:end]
	}
	return rest
}

// decodeArray accepts both ["a","b"] and [{"index":0,"text":"a"},...] shapes.
func decodeArray(s string) ([]string, bool) {
	var plain []string
	if err := json.Unmarshal([]byte(s), &plain); err == nil {
		return plain, true
	}

	var indexed []struct {
		Index int    `json:"index"`
		Text  string `json:"text"`
	}
	if err := json.Unmarshal([]byte(s), &indexed); err == nil && len(indexed) > 0 {
		sort.SliceStable(indexed, func(i, j int) bool { return indexed[i].Index < indexed[j].Index })
		out := make([]string, 0, len(indexed))
		for _, item := range indexed {
			out = append(out, item.Text)
		}
		return out, true
	}

	return nil, false
}

func decodeWrappedArray(s string) ([]string, bool) {
	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &wrapper); err != nil {
		return nil, false
	}
	for _, key := range wrapperKeys {
		raw, ok := wrapper[key]
		if !ok {
			continue
		}
		if arr, ok := decodeArray(strings.TrimSpace(string(raw))); ok {
			return arr, true
		}
	}
	return nil, false
}

// decodeBracketSlice retries on the substring between the first '[' and the
// last ']', which peels off prose the model wrapped around the array.
func decodeBracketSlice(s string) ([]string, bool) {
	start := strings.Index(s, "[")
	end := strings.LastIndex(s, "]")
	if start < 0 || end <= start {
		return nil, false
	}
	return decodeArray(s[start : end+1])
}

// splitLines is the last resort for responses that are not JSON at all.
func splitLines(s string) []string {
	rawLines := strings.Split(s, "\n")
	out := make([]string, 0, len(rawLines))
	for _, line := range rawLines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, listMarkerPattern.ReplaceAllString(line, ""))
	}
	return out
}

func fitToCount(got, originals []string) []string {
	out := make([]string, len(originals))
	for i := range originals {
		if i < len(got) {
			out[i] = got[i]
		} else {
			out[i] = originals[i]
		}
	}
	return out
}
