package library

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func writeSub(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("1\n00:00:01,000 --> 00:00:02,000\nHello\n"), 0o644))
}

func TestScanner_FlagsFilesMissingTargetCounterpart(t *testing.T) {
	tmp := t.TempDir()
	showDir := filepath.Join(tmp, "shows", "Anime")

	writeSub(t, filepath.Join(showDir, "ep01.en.srt"))
	writeSub(t, filepath.Join(showDir, "ep01.zh.srt"))
	writeSub(t, filepath.Join(showDir, "ep02.en.srt"))

	scanner := NewScanner(
		[]SourceConfig{
			{
				ID:   "shows",
				Name: "Shows",
				Path: filepath.Join(tmp, "shows"),
			},
		},
		language.Chinese,
	)

	lib, err := scanner.Scan(context.Background())
	require.NoError(t, err)

	require.Len(t, lib.Sources, 1)
	assert.Equal(t, 3, lib.Sources[0].FileCount)
	require.Len(t, lib.Files, 3)

	byPath := map[string]SubtitleFile{}
	for _, f := range lib.Files {
		byPath[f.Path] = f
	}

	ep01en := byPath[filepath.Join(showDir, "ep01.en.srt")]
	assert.True(t, ep01en.HasTargetSubtitle)
	assert.False(t, ep01en.Translatable)
	assert.Equal(t, "en", ep01en.Language)

	ep01zh := byPath[filepath.Join(showDir, "ep01.zh.srt")]
	assert.True(t, ep01zh.HasTargetSubtitle)
	assert.False(t, ep01zh.Translatable)

	ep02 := byPath[filepath.Join(showDir, "ep02.en.srt")]
	assert.False(t, ep02.HasTargetSubtitle)
	assert.True(t, ep02.Translatable)
	assert.Equal(t, filepath.Join(showDir, "ep02.zh.srt"), ep02.TargetPath)

	pending := lib.Translatable()
	require.Len(t, pending, 1)
	assert.Equal(t, ep02.Path, pending[0].Path)
}

func TestScanner_NormalizesLanguageTokens(t *testing.T) {
	tmp := t.TempDir()
	showDir := filepath.Join(tmp, "shows", "Anime")

	// fre (ISO 639-2 for French) must normalize to "fr", eng to "en",
	// a plain name carries no language.
	writeSub(t, filepath.Join(showDir, "ep01.fre.srt"))
	writeSub(t, filepath.Join(showDir, "ep02.eng.srt"))
	writeSub(t, filepath.Join(showDir, "ep03.srt"))

	scanner := NewScanner(
		[]SourceConfig{{ID: "shows", Name: "Shows", Path: filepath.Join(tmp, "shows")}},
		language.Chinese,
	)
	lib, err := scanner.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, lib.Files, 3)

	langs := map[string]string{}
	for _, f := range lib.Files {
		langs[filepath.Base(f.Path)] = f.Language
	}
	assert.Equal(t, "fr", langs["ep01.fre.srt"])
	assert.Equal(t, "en", langs["ep02.eng.srt"])
	assert.Equal(t, "", langs["ep03.srt"])
}

func TestScanner_TargetAliasCoversGroup(t *testing.T) {
	tmp := t.TempDir()
	showDir := filepath.Join(tmp, "shows", "Anime")

	// chs is a tooling alias for simplified Chinese, not an ISO code.
	writeSub(t, filepath.Join(showDir, "ep01.eng.srt"))
	writeSub(t, filepath.Join(showDir, "ep01.chs.srt"))

	scanner := NewScanner(
		[]SourceConfig{{ID: "shows", Name: "Shows", Path: filepath.Join(tmp, "shows")}},
		language.Chinese,
	)
	lib, err := scanner.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, lib.Files, 2)

	for _, f := range lib.Files {
		assert.True(t, f.HasTargetSubtitle, f.Path)
		assert.False(t, f.Translatable, f.Path)
	}
}

func TestScanner_SkipsMissingSourceDir(t *testing.T) {
	tmp := t.TempDir()

	scanner := NewScanner(
		[]SourceConfig{{ID: "ghost", Name: "Ghost", Path: filepath.Join(tmp, "does-not-exist")}},
		language.French,
	)
	lib, err := scanner.Scan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, lib.Sources)
	assert.Empty(t, lib.Files)
}

func TestScanner_Scan_UsesCacheUntilInvalidate(t *testing.T) {
	tmp := t.TempDir()
	showDir := filepath.Join(tmp, "shows", "Anime")
	writeSub(t, filepath.Join(showDir, "ep01.eng.srt"))

	scanner := NewScanner(
		[]SourceConfig{{ID: "shows", Name: "Shows", Path: filepath.Join(tmp, "shows")}},
		language.Chinese,
		WithCacheTTL(10*time.Second),
	)

	lib, err := scanner.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, lib.Files, 1)

	// A file added between scans stays invisible until the cache is
	// dropped.
	writeSub(t, filepath.Join(showDir, "ep02.eng.srt"))

	lib, err = scanner.Scan(context.Background())
	require.NoError(t, err)
	assert.Len(t, lib.Files, 1)

	scanner.Invalidate()
	lib, err = scanner.Scan(context.Background())
	require.NoError(t, err)
	assert.Len(t, lib.Files, 2)
}

func TestScanner_UpdateTargetLanguage_TakesEffectImmediately(t *testing.T) {
	tmp := t.TempDir()
	showDir := filepath.Join(tmp, "shows", "Anime")
	writeSub(t, filepath.Join(showDir, "ep01.eng.srt"))

	scanner := NewScanner(
		[]SourceConfig{{ID: "shows", Name: "Shows", Path: filepath.Join(tmp, "shows")}},
		language.Chinese,
		WithCacheTTL(10*time.Second),
	)

	lib, err := scanner.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, lib.Files, 1)
	assert.True(t, lib.Files[0].Translatable)

	require.NoError(t, scanner.UpdateTargetLanguage("en"))

	lib, err = scanner.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, lib.Files, 1)
	assert.False(t, lib.Files[0].Translatable)
	assert.True(t, lib.Files[0].HasTargetSubtitle)
}

func TestSplitLanguageSuffix(t *testing.T) {
	tests := []struct {
		path      string
		wantStem  string
		wantToken string
	}{
		{"/media/ep01.en.srt", "/media/ep01", "en"},
		{"/media/ep01.fre.srt", "/media/ep01", "fre"},
		{"/media/ep01.zh-Hans.srt", "/media/ep01", "zh-hans"},
		{"/media/ep01.srt", "/media/ep01", ""},
		{"/media/Show.S01E05.srt", "/media/Show.S01E05", ""},
		{"/media/ep01.chs.srt", "/media/ep01", "chs"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			stem, token := splitLanguageSuffix(tt.path)
			assert.Equal(t, tt.wantStem, stem)
			assert.Equal(t, tt.wantToken, token)
		})
	}
}

func TestNormalizeLangCode(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"en", "en"},
		{"eng", "en"},
		{"fre", "fr"},
		{"fra", "fr"},
		{"chi", "zh"},
		{"zh", "zh"},
		{"ja", "ja"},
		{"jpn", "ja"},
		{"ko", "ko"},
		{"forced", ""},
		{"default", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeLangCode(tt.input))
		})
	}
}
