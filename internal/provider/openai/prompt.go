package openai

import (
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/ericjesse/video-translator-sub001/internal/provider"
)

func buildSystemPrompt(source, target language.Tag, contextPrefix []provider.ContextPair) string {
	var sb strings.Builder

	sb.WriteString("You are a professional subtitle translator.\n\n")
	if source == language.Und {
		fmt.Fprintf(&sb, "Translate every entry of the JSON array you receive into %s. Detect the source language yourself.\n", languageName(target))
	} else {
		fmt.Fprintf(&sb, "Translate every entry of the JSON array you receive from %s into %s.\n", languageName(source), languageName(target))
	}

	if len(contextPrefix) > 0 {
		sb.WriteString("\n=== PRECEDING DIALOGUE ===\n")
		sb.WriteString("These lines come right before the ones you are translating. Use them for tone and continuity only, do not translate them again:\n")
		for _, pair := range contextPrefix {
			fmt.Fprintf(&sb, "- %q -> %q\n", pair.Original, pair.Translated)
		}
	}

	sb.WriteString(`
=== RULES ===
- Keep every placeholder of the form %%...%% exactly as written, in place.
- Translate each entry independently. Never merge, split or reorder entries.
- Keep proper names unless the target language has an established form.
- Preserve the register of the dialogue (formal or informal address).

=== OUTPUT FORMAT ===
Respond with ONLY a JSON array of translated strings, nothing else.
The array must contain exactly as many entries as the input, in the same order.
`)

	return sb.String()
}

func buildUserMessage(segments []string) (string, error) {
	encoded, err := json.Marshal(segments)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

func languageName(tag language.Tag) string {
	name := display.English.Tags().Name(tag)
	if name == "" {
		return tag.String()
	}
	return name
}
