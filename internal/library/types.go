package library

type SourceConfig struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Path string `json:"path"`
}

type Source struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Path      string `json:"path"`
	FileCount int    `json:"file_count"`
}

// SubtitleFile is one scanned subtitle and its translation status
// against the configured target language.
type SubtitleFile struct {
	ID                string `json:"id"`
	SourceID          string `json:"source_id"`
	Path              string `json:"path"`
	Language          string `json:"language,omitempty"`
	HasTargetSubtitle bool   `json:"has_target_subtitle"`
	TargetPath        string `json:"target_path"`
	Translatable      bool   `json:"translatable"`
}

type Library struct {
	Sources []Source       `json:"sources"`
	Files   []SubtitleFile `json:"files"`
}

// Translatable returns the files still missing a target-language
// counterpart.
func (l *Library) Translatable() []SubtitleFile {
	if l == nil {
		return nil
	}
	ret := make([]SubtitleFile, 0)
	for _, f := range l.Files {
		if f.Translatable {
			ret = append(ret, f)
		}
	}
	return ret
}
