package file

import (
	"io/fs"
	"path/filepath"
	"strings"
)

// FindByExt walks dir and returns every regular file whose extension
// matches one of exts. Extensions are compared case-insensitively and
// may be given with or without the leading dot.
func FindByExt(dir string, exts []string) ([]string, error) {
	normalized := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		normalized[ext] = struct{}{}
	}

	var matches []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := normalized[strings.ToLower(filepath.Ext(path))]; ok {
			matches = append(matches, path)
		}
		return nil
	})

	return matches, err
}
