package glossary

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/text/language"
)

const filePrefix = "glossary"

// Filename builds the canonical on-disk name for a language pair,
// e.g. "glossary.en-fr.json".
func Filename(source, target language.Tag) string {
	return fmt.Sprintf("%s.%s-%s.json",
		filePrefix,
		normalizeLanguageCode(source),
		normalizeLanguageCode(target))
}

// FilePath joins dir with the canonical filename for the pair.
func FilePath(dir string, source, target language.Tag) string {
	return filepath.Join(dir, Filename(source, target))
}

// Load reads and validates a glossary file.
func Load(path string) (*Glossary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read glossary file: %w", err)
	}

	var g Glossary
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("failed to parse glossary file %s: %w", path, err)
	}
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("invalid glossary file %s: %w", path, err)
	}

	return &g, nil
}

// Save writes the glossary as indented JSON, creating the parent
// directory when needed.
func Save(path string, g *Glossary) error {
	if err := g.Validate(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal glossary: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create glossary directory: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write glossary file: %w", err)
	}

	return nil
}

func normalizeLanguageCode(tag language.Tag) string {
	base, _ := tag.Base()
	return base.String()
}
