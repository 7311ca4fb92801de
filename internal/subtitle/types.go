package subtitle

import (
	"time"

	"golang.org/x/text/language"
)

// Reader reads a subtitle file from disk.
type Reader interface {
	Read(path string) (*Source, error)
}

// Writer writes a subtitle file to disk.
type Writer interface {
	Write(path string, source *Source) error
}

// Segment is one timed cue of a subtitle file.
type Segment struct {
	Index          int
	StartTime      time.Duration
	EndTime        time.Duration
	Text           string
	TranslatedText string
}

// Source is a parsed subtitle file.
type Source struct {
	Segments []Segment
	Language language.Tag
	Format   string // e.g. SRT
	Path     string
}

// Texts returns the original text of every segment, in order.
func (s *Source) Texts() []string {
	texts := make([]string, len(s.Segments))
	for i, segment := range s.Segments {
		texts[i] = segment.Text
	}
	return texts
}
