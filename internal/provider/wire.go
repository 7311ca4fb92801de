package provider

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/text/language"
)

// RetryAfterSeconds reads an integer Retry-After header. Absent,
// malformed or HTTP-date values yield the fallback.
func RetryAfterSeconds(h http.Header, fallback int) int {
	raw := strings.TrimSpace(h.Get("Retry-After"))
	if raw == "" {
		return fallback
	}
	secs, err := strconv.Atoi(raw)
	if err != nil || secs < 0 {
		return fallback
	}
	return secs
}

// ReadBodySnippet captures the start of an error response body for
// diagnostics without buffering arbitrarily large payloads.
func ReadBodySnippet(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 2048))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// BaseCode reduces a tag to its ISO 639-1 base code, the form most
// translation wire formats expect ("en" for en-US).
func BaseCode(tag language.Tag) string {
	base, _ := tag.Base()
	return base.String()
}
