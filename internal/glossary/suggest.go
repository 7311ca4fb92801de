package glossary

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/ericjesse/video-translator-sub001/internal/llm"
)

// chatClient is the slice of the LLM client the suggester needs.
type chatClient interface {
	ChatCompletion(ctx context.Context, messages []llm.Message, opts *llm.ChatCompletionOptions) (*llm.ChatResponse, error)
}

// Suggester asks an LLM for established translations of names and
// terminology in a show, as a starting point for a glossary.
type Suggester struct {
	llm chatClient
}

func NewSuggester(client chatClient) *Suggester {
	return &Suggester{llm: client}
}

// Suggest returns a glossary draft for the given title. Sample subtitle
// lines, when provided, anchor the suggestions to terms that actually
// occur in the dialogue. The entries come back sorted by source term so
// repeated runs produce stable files.
func (s *Suggester) Suggest(ctx context.Context, title string, sampleLines []string, source, target language.Tag) (*Glossary, error) {
	systemPrompt := buildSuggestPrompt(title, source, target)
	userMessage := fmt.Sprintf(
		"List the established %s translations for names and terms in %q. "+
			"Respond with ONLY the JSON object, starting with { and ending with }.",
		displayName(target), title,
	)
	if len(sampleLines) > 0 {
		userMessage += "\n\nSample dialogue from the subtitles:\n" + strings.Join(sampleLines, "\n")
	}

	response, err := s.llm.ChatCompletion(ctx, []llm.Message{
		llm.SystemMessage(systemPrompt),
		llm.UserMessage(userMessage),
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("glossary suggestion failed: %w", err)
	}
	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("glossary suggestion failed: empty response")
	}

	content := response.Choices[0].Message.Content
	terms, parseErr := parseSuggestions(content)
	if parseErr != nil {
		return nil, fmt.Errorf("%w\nraw response:\n%s", parseErr, content)
	}

	return &Glossary{
		Name:           title,
		SourceLanguage: source,
		TargetLanguage: target,
		Entries:        entriesFromTerms(terms),
	}, nil
}

func buildSuggestPrompt(title string, source, target language.Tag) string {
	sourceLang := displayName(source)
	targetLang := displayName(target)

	var prompt strings.Builder

	prompt.WriteString("You are a terminology machine. You recall a film or TV show and output ONLY a flat JSON object, no markdown, no tables, no prose.\n\n")

	prompt.WriteString("=== TASK ===\n")
	prompt.WriteString(fmt.Sprintf("Collect the official or widely-used %s renderings of character names, place names and recurring terminology in %q.\n", targetLang, title))
	prompt.WriteString("Include names that must stay unchanged, mapped to themselves, so a translator never invents a variant.\n")

	prompt.WriteString("\n=== RESPONSE FORMAT (MANDATORY) ===\n")
	prompt.WriteString("Your message must contain ONLY a JSON object like this:\n")
	prompt.WriteString("{\"" + sourceLang + " term\": \"" + targetLang + " term\", ...}\n\n")
	prompt.WriteString("RULES:\n")
	prompt.WriteString("- Keys are " + sourceLang + " terms, values are " + targetLang + " terms.\n")
	prompt.WriteString("- One value per key (pick the most widely-used translation).\n")
	prompt.WriteString("- NO markdown, NO tables, NO bullet lists, NO explanations.\n")
	prompt.WriteString("- The response must start with { and end with }.\n")

	return prompt.String()
}

// parseSuggestions parses the LLM response into a term map.
// Handles clean JSON, markdown code fences, and JSON embedded in prose.
func parseSuggestions(content string) (map[string]string, error) {
	content = strings.TrimSpace(content)

	var terms map[string]string
	if err := json.Unmarshal([]byte(content), &terms); err == nil {
		return terms, nil
	}

	// Try extracting from markdown code fences
	if idx := strings.Index(content, "```"); idx >= 0 {
		inner := content[idx+3:]
		// Skip language tag on the same line (e.g., ```json)
		if nl := strings.Index(inner, "\n"); nl >= 0 {
			inner = inner[nl+1:]
		}
		if end := strings.Index(inner, "```"); end >= 0 {
			inner = inner[:end]
		}
		if err := json.Unmarshal([]byte(strings.TrimSpace(inner)), &terms); err == nil {
			return terms, nil
		}
	}

	// Try finding the outermost { ... } JSON object in the text
	if extracted := extractJSONObject(content); extracted != "" {
		if err := json.Unmarshal([]byte(extracted), &terms); err == nil {
			return terms, nil
		}
	}

	return nil, fmt.Errorf("failed to parse suggestions from response: no valid JSON object found")
}

// extractJSONObject finds the outermost balanced { ... } block in s.
func extractJSONObject(s string) string {
	start := strings.Index(s, "{")
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		if c == '\\' && inString {
			escaped = true
			continue
		}
		if c == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		if c == '{' {
			depth++
		} else if c == '}' {
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

func entriesFromTerms(terms map[string]string) []Entry {
	keys := make([]string, 0, len(terms))
	for key := range terms {
		if strings.TrimSpace(key) == "" || strings.TrimSpace(terms[key]) == "" {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	entries := make([]Entry, 0, len(keys))
	for _, key := range keys {
		entries = append(entries, NewEntry(strings.TrimSpace(key), strings.TrimSpace(terms[key])))
	}
	return entries
}

func displayName(tag language.Tag) string {
	if tag == language.Und {
		return "the source language"
	}
	if name := display.English.Tags().Name(tag); name != "" {
		return name
	}
	return tag.String()
}
