package glossary

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func frenchCityGlossary() *Glossary {
	return &Glossary{
		Name:           "cities",
		SourceLanguage: language.English,
		TargetLanguage: language.French,
		Entries: []Entry{
			NewEntry("New York City", "La Grosse Pomme"),
			NewEntry("New York", "New York"),
			NewEntry("Paris", "Paname"),
		},
	}
}

func TestApplyPre_ReplacesTermsWithTokens(t *testing.T) {
	g := frenchCityGlossary()

	masked, repl := g.ApplyPre("I love Paris in spring")

	assert.Equal(t, "I love %%term_0%% in spring", masked)
	require.Len(t, repl, 1)
	assert.Equal(t, "Paname", repl["%%term_0%%"])
}

func TestApplyPre_DeclaredOrderWinsOnOverlap(t *testing.T) {
	g := frenchCityGlossary()

	masked, repl := g.ApplyPre("Welcome to New York City")

	assert.Equal(t, "Welcome to %%term_0%%", masked)
	require.Len(t, repl, 1)
	assert.Equal(t, "La Grosse Pomme", repl["%%term_0%%"])
}

func TestApplyPre_CaseInsensitiveByDefault(t *testing.T) {
	g := frenchCityGlossary()

	masked, repl := g.ApplyPre("PARIS and paris")

	assert.Equal(t, "%%term_0%% and %%term_1%%", masked)
	assert.Equal(t, "Paname", repl["%%term_0%%"])
	assert.Equal(t, "Paname", repl["%%term_1%%"])
}

func TestApplyPre_CaseSensitiveEntry(t *testing.T) {
	g := &Glossary{
		SourceLanguage: language.English,
		TargetLanguage: language.French,
		Entries: []Entry{
			{Source: "IT", Target: "informatique", CaseSensitive: true, WholeWord: true},
		},
	}

	masked, repl := g.ApplyPre("it is IT")

	assert.Equal(t, "it is %%term_0%%", masked)
	assert.Len(t, repl, 1)
}

func TestApplyPre_WholeWordByDefault(t *testing.T) {
	g := frenchCityGlossary()

	masked, repl := g.ApplyPre("A Parisian walks")

	assert.Equal(t, "A Parisian walks", masked)
	assert.Nil(t, repl)
}

func TestApplyPre_SubstringEntry(t *testing.T) {
	g := &Glossary{
		SourceLanguage: language.English,
		TargetLanguage: language.French,
		Entries: []Entry{
			{Source: "cat", Target: "chat", WholeWord: false},
		},
	}

	masked, repl := g.ApplyPre("concatenate")

	assert.Equal(t, "con%%term_0%%enate", masked)
	assert.Equal(t, "chat", repl["%%term_0%%"])
}

func TestApplyPre_NoMatchIsNoOp(t *testing.T) {
	g := frenchCityGlossary()

	masked, repl := g.ApplyPre("nothing to see here")

	assert.Equal(t, "nothing to see here", masked)
	assert.Nil(t, repl)
}

func TestApplyPost_ResolvesTokens(t *testing.T) {
	g := frenchCityGlossary()
	masked, repl := g.ApplyPre("Paris, then New York")

	// The provider translates around the tokens.
	translated := "D'abord " + masked

	restored := ApplyPost(translated, repl)

	assert.Equal(t, "D'abord Paname, then New York", restored)
}

func TestApplyPost_WithoutReplacements(t *testing.T) {
	assert.Equal(t, "unchanged", ApplyPost("unchanged", nil))
}

func TestMatches_ComparesBaseLanguages(t *testing.T) {
	g := frenchCityGlossary()

	assert.True(t, g.Matches(language.English, language.French))
	assert.True(t, g.Matches(language.AmericanEnglish, language.MustParse("fr-CA")))
	assert.False(t, g.Matches(language.English, language.German))
	assert.False(t, g.Matches(language.Spanish, language.French))
}

func TestEntry_WholeWordDefaultsTrueInJSON(t *testing.T) {
	raw := `{"source":"Paris","target":"Paname"}`

	var e Entry
	require.NoError(t, json.Unmarshal([]byte(raw), &e))

	assert.True(t, e.WholeWord)
	assert.False(t, e.CaseSensitive)
}

func TestEntry_ExplicitWholeWordFalseSurvivesJSON(t *testing.T) {
	raw := `{"source":"cat","target":"chat","whole_word":false}`

	var e Entry
	require.NoError(t, json.Unmarshal([]byte(raw), &e))

	assert.False(t, e.WholeWord)
}

func TestValidate_RejectsEmptyTerms(t *testing.T) {
	g := &Glossary{
		SourceLanguage: language.English,
		TargetLanguage: language.French,
		Entries:        []Entry{{Source: " ", Target: "x", WholeWord: true}},
	}

	err := g.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "source term is empty")
}

func TestSaveAndLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	g := frenchCityGlossary()
	path := FilePath(dir, g.SourceLanguage, g.TargetLanguage)

	require.NoError(t, Save(path, g))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, g.Name, loaded.Name)
	require.Len(t, loaded.Entries, 3)
	assert.Equal(t, "La Grosse Pomme", loaded.Entries[0].Target)
	assert.True(t, loaded.Entries[0].WholeWord)
}

func TestFilename_UsesBaseCodes(t *testing.T) {
	name := Filename(language.AmericanEnglish, language.MustParse("fr-CA"))

	assert.Equal(t, "glossary.en-fr.json", name)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))

	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}
