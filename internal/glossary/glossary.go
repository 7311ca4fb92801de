// Package glossary enforces user terminology on translations. Matched
// terms are replaced by placeholder tokens before a text goes to a
// provider and resolved to their target form afterwards, so providers
// can never reword a pinned term.
package glossary

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/language"
)

// Entry pins one source term to one target rendering. Matching is
// case-insensitive and whole-word unless the entry says otherwise.
type Entry struct {
	Source        string `json:"source"`
	Target        string `json:"target"`
	CaseSensitive bool   `json:"case_sensitive,omitempty"`
	WholeWord     bool   `json:"whole_word"`
}

// NewEntry builds an entry with the default matching behavior.
func NewEntry(source, target string) Entry {
	return Entry{Source: source, Target: target, WholeWord: true}
}

// UnmarshalJSON applies the whole-word default: an entry that does not
// mention whole_word matches whole words only.
func (e *Entry) UnmarshalJSON(data []byte) error {
	type plain struct {
		Source        string `json:"source"`
		Target        string `json:"target"`
		CaseSensitive bool   `json:"case_sensitive"`
		WholeWord     *bool  `json:"whole_word"`
	}
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	e.Source = p.Source
	e.Target = p.Target
	e.CaseSensitive = p.CaseSensitive
	e.WholeWord = p.WholeWord == nil || *p.WholeWord
	return nil
}

// Glossary is an ordered term list bound to one language pair. Earlier
// entries win when terms overlap.
type Glossary struct {
	Name           string       `json:"name,omitempty"`
	SourceLanguage language.Tag `json:"source_language"`
	TargetLanguage language.Tag `json:"target_language"`
	Entries        []Entry      `json:"entries"`
}

// Matches reports whether the glossary covers the given language pair.
// Only base languages are compared, so en-US subtitles still use an
// en glossary.
func (g *Glossary) Matches(source, target language.Tag) bool {
	if g == nil {
		return false
	}
	return baseEqual(g.SourceLanguage, source) && baseEqual(g.TargetLanguage, target)
}

func (g *Glossary) Validate() error {
	if g.SourceLanguage.IsRoot() {
		return fmt.Errorf("glossary source language is required")
	}
	if g.TargetLanguage.IsRoot() {
		return fmt.Errorf("glossary target language is required")
	}
	for i, e := range g.Entries {
		if strings.TrimSpace(e.Source) == "" {
			return fmt.Errorf("glossary entry %d: source term is empty", i)
		}
		if strings.TrimSpace(e.Target) == "" {
			return fmt.Errorf("glossary entry %d: target term is empty", i)
		}
	}
	return nil
}

// ApplyPre replaces every matched term with a placeholder token and
// returns the rewritten text plus the token-to-target mapping for
// ApplyPost. Entries are applied in declared order; a term swallowed
// by an earlier token cannot match again, which keeps replacements
// non-overlapping. A nil mapping means nothing matched.
func (g *Glossary) ApplyPre(text string) (string, map[string]string) {
	if g == nil || len(g.Entries) == 0 {
		return text, nil
	}

	var replacements map[string]string
	n := 0
	for _, e := range g.Entries {
		if strings.TrimSpace(e.Source) == "" {
			continue
		}
		re, err := e.pattern()
		if err != nil {
			continue
		}
		text = re.ReplaceAllStringFunc(text, func(string) string {
			token := fmt.Sprintf("%%%%term_%d%%%%", n)
			n++
			if replacements == nil {
				replacements = make(map[string]string)
			}
			replacements[token] = e.Target
			return token
		})
	}

	return text, replacements
}

// ApplyPost resolves the tokens issued by ApplyPre to their target
// terms. Texts without tokens pass through unchanged.
func ApplyPost(text string, replacements map[string]string) string {
	for token, target := range replacements {
		text = strings.ReplaceAll(text, token, target)
	}
	return text
}

func (e Entry) pattern() (*regexp.Regexp, error) {
	p := regexp.QuoteMeta(e.Source)
	if e.WholeWord {
		// Word boundaries only help next to ASCII word characters;
		// terms in scripts without them fall back to plain matching.
		if isASCIIWordByte(e.Source[0]) {
			p = `\b` + p
		}
		if isASCIIWordByte(e.Source[len(e.Source)-1]) {
			p += `\b`
		}
	}
	if !e.CaseSensitive {
		p = `(?i)` + p
	}
	return regexp.Compile(p)
}

func isASCIIWordByte(b byte) bool {
	return b == '_' ||
		('0' <= b && b <= '9') ||
		('a' <= b && b <= 'z') ||
		('A' <= b && b <= 'Z')
}

func baseEqual(a, b language.Tag) bool {
	ab, _ := a.Base()
	bb, _ := b.Base()
	return ab == bb
}
