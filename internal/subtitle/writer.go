package subtitle

import (
	"bufio"
	"fmt"
	"os"
	"time"
)

// SRTWriter writes SRT subtitle files.
type SRTWriter struct{}

var _ Writer = (*SRTWriter)(nil)

// NewWriter creates a new subtitle file writer.
func NewWriter() Writer {
	return &SRTWriter{}
}

// Write writes the source to path in SRT format. Segments carrying a
// translation are written with it, the rest keep their original text.
func (w *SRTWriter) Write(path string, source *Source) error {
	if source == nil {
		return fmt.Errorf("subtitle data is empty")
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	defer writer.Flush()

	for _, segment := range source.Segments {
		fmt.Fprintf(writer, "%d\n", segment.Index)

		startTime := formatDuration(segment.StartTime)
		endTime := formatDuration(segment.EndTime)
		fmt.Fprintf(writer, "%s --> %s\n", startTime, endTime)

		text := segment.TranslatedText
		if text == "" {
			text = segment.Text
		}
		fmt.Fprintf(writer, "%s\n\n", text)
	}

	return nil
}

// formatDuration formats time.Duration to SRT time format
func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	milliseconds := int(d.Milliseconds()) % 1000

	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, seconds, milliseconds)
}
