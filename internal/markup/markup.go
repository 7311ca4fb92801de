// Package markup shields subtitle formatting from translation providers.
// Formatting constructs are swapped for placeholder tokens before a text
// is sent out and swapped back once the translation returns, so providers
// only ever see the translatable words.
package markup

import (
	"fmt"
	"regexp"
	"strings"
)

const subtitleLineBreak = "\n"

// InlineBreak replaces literal line breaks inside a masked text. The
// token is stable across calls so providers learn to carry it through.
const InlineBreak = "%%inline_breaker%%"

// RestoreFunc maps a translated masked text back to real formatting.
type RestoreFunc func(string) string

var (
	openTagPattern   = regexp.MustCompile(`(?i)<(strong|span|font|em|i|b|u|s)(\s[^<>]*)?>`)
	styleCodePattern = regexp.MustCompile(`\{\\[^{}]*\}`)
	musicNotePattern = regexp.MustCompile(`♪[^♪]*♪|♫[^♫]*♫`)
	tokenPattern     = regexp.MustCompile(`%%[a-z]+(?:_[a-z]+)*_\d+%%`)
)

var closeTagPatterns = map[string]*regexp.Regexp{}

func init() {
	for _, name := range []string{"i", "b", "u", "s", "em", "strong", "font", "span"} {
		closeTagPatterns[name] = regexp.MustCompile(`(?i)</` + name + `\s*>`)
	}
}

type substitution struct {
	token    string
	original string
}

type mask struct {
	subs       []substitution
	pairCount  int
	styleCount int
	musicCount int
}

// Extract masks every formatting construct in text and returns the
// masked text together with the function undoing the masking.
//
// Recognition order: paired style tags first (their inner text stays
// translatable between an open and a close token), then style-engine
// override codes and music note spans as opaque tokens, then literal
// line breaks. Restoring twice is safe; the second pass finds no
// tokens and leaves the text unchanged.
func Extract(text string) (string, RestoreFunc) {
	m := &mask{}

	masked := m.maskPairedTags(text)
	masked = m.maskOpaque(masked, styleCodePattern, "style", &m.styleCount)
	masked = m.maskOpaque(masked, musicNotePattern, "music", &m.musicCount)
	masked = strings.ReplaceAll(masked, subtitleLineBreak, InlineBreak)

	restore := func(s string) string {
		s = strings.ReplaceAll(s, InlineBreak, subtitleLineBreak)
		// Reverse order: an opaque original may itself contain a token
		// issued earlier in the same pass.
		for i := len(m.subs) - 1; i >= 0; i-- {
			s = strings.ReplaceAll(s, m.subs[i].token, m.subs[i].original)
		}
		return s
	}

	return masked, restore
}

// HasTokens reports whether s still carries placeholder tokens, which
// after restoration means a provider invented tokens of its own.
func HasTokens(s string) bool {
	return strings.Contains(s, InlineBreak) || tokenPattern.MatchString(s)
}

func (m *mask) maskPairedTags(text string) string {
	searchFrom := 0
	for {
		if searchFrom >= len(text) {
			break
		}
		loc := openTagPattern.FindStringSubmatchIndex(text[searchFrom:])
		if loc == nil {
			break
		}

		openStart := searchFrom + loc[0]
		openEnd := searchFrom + loc[1]
		name := strings.ToLower(text[searchFrom+loc[2] : searchFrom+loc[3]])

		closeLoc := closeTagPatterns[name].FindStringIndex(text[openEnd:])
		if closeLoc == nil {
			// Unpaired open tag, leave it literal.
			searchFrom = openEnd
			continue
		}
		closeStart := openEnd + closeLoc[0]
		closeEnd := openEnd + closeLoc[1]

		openToken := fmt.Sprintf("%%%%tag_open_%d%%%%", m.pairCount)
		closeToken := fmt.Sprintf("%%%%tag_close_%d%%%%", m.pairCount)
		m.pairCount++
		m.subs = append(m.subs,
			substitution{token: openToken, original: text[openStart:openEnd]},
			substitution{token: closeToken, original: text[closeStart:closeEnd]},
		)

		// Replace the close tag first so the open indexes stay valid.
		text = text[:closeStart] + closeToken + text[closeEnd:]
		text = text[:openStart] + openToken + text[openEnd:]

		// Resume right after the open token so nested tags inside the
		// pair are still found.
		searchFrom = openStart + len(openToken)
	}
	return text
}

func (m *mask) maskOpaque(text string, re *regexp.Regexp, prefix string, counter *int) string {
	locs := re.FindAllStringIndex(text, -1)
	if locs == nil {
		return text
	}

	var b strings.Builder
	last := 0
	for _, loc := range locs {
		token := fmt.Sprintf("%%%%%s_%d%%%%", prefix, *counter)
		*counter++
		m.subs = append(m.subs, substitution{token: token, original: text[loc[0]:loc[1]]})

		b.WriteString(text[last:loc[0]])
		b.WriteString(token)
		last = loc[1]
	}
	b.WriteString(text[last:])
	return b.String()
}
