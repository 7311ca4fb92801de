package file

import (
	"path/filepath"
	"regexp"
	"strings"
)

var languageSuffixPattern = regexp.MustCompile(`^[A-Za-z]{2,3}(?:[-_][A-Za-z0-9]{2,8})*$`)

func ReplaceExt(path, ext string) string {
	if path == "" {
		return path
	}

	dir := filepath.Dir(path)
	filename := filepath.Base(path)

	lastDot := strings.LastIndex(filename, ".")

	if lastDot <= 0 {
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		return filepath.Join(dir, filename+ext)
	}

	nameWithoutExt := filename[:lastDot]

	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	return filepath.Join(dir, nameWithoutExt+ext)
}

// LanguageSuffix extracts the language tag embedded before the file
// extension, following the "name.<lang>.srt" naming convention.
func LanguageSuffix(path string) (string, bool) {
	filename := filepath.Base(path)
	ext := filepath.Ext(filename)
	stem := strings.TrimSuffix(filename, ext)

	innerExt := filepath.Ext(stem)
	if innerExt == "" {
		return "", false
	}

	candidate := strings.TrimPrefix(innerExt, ".")
	if !languageSuffixPattern.MatchString(candidate) {
		return "", false
	}
	return candidate, true
}

// WithLanguageSuffix rewrites path so its language suffix becomes lang,
// inserting the suffix when the name carries none.
func WithLanguageSuffix(path, lang string) string {
	if path == "" {
		return path
	}

	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)

	if _, ok := LanguageSuffix(path); ok {
		stem = strings.TrimSuffix(stem, filepath.Ext(stem))
	}

	return stem + "." + lang + ext
}
