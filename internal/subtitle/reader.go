package subtitle

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/abadojack/whatlanggo"
	"golang.org/x/text/language"
)

// SRTReader reads SRT subtitle files.
type SRTReader struct{}

var _ Reader = (*SRTReader)(nil)

// NewReader creates a new subtitle file reader.
func NewReader() Reader {
	return &SRTReader{}
}

// Read parses the SRT file at path and detects its language.
func (r *SRTReader) Read(path string) (*Source, error) {
	if !strings.HasSuffix(strings.ToLower(path), ".srt") {
		return nil, fmt.Errorf("only SRT format subtitle files are supported: %s", path)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open subtitle file: %w", err)
	}
	defer file.Close()

	return parseSRT(file, path)
}

// ReadSRTBytes parses SRT data that did not come from a file on disk.
// The path is recorded verbatim on the returned source.
func ReadSRTBytes(data []byte, path string) (*Source, error) {
	return parseSRT(bytes.NewReader(data), path)
}

func parseSRT(r io.Reader, path string) (*Source, error) {
	var segments []Segment
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	currentSegment := Segment{}
	state := "index" // possible values: "index", "time", "text"
	var textLines []string
	firstLine := true

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if firstLine {
			line = strings.TrimPrefix(line, "\uFEFF")
			firstLine = false
		}

		switch state {
		case "index":
			if line == "" {
				continue
			}
			index, err := strconv.Atoi(line)
			if err != nil {
				continue // skip non-index lines
			}
			currentSegment.Index = index
			state = "time"

		case "time":
			if line == "" {
				continue
			}
			startTime, endTime, err := parseSRTTime(line)
			if err != nil {
				return nil, fmt.Errorf("failed to parse time: %w", err)
			}
			currentSegment.StartTime = startTime
			currentSegment.EndTime = endTime
			state = "text"
			textLines = []string{}

		case "text":
			if line == "" {
				// cue text ends
				if len(textLines) > 0 {
					currentSegment.Text = strings.Join(textLines, "\n")
					segments = append(segments, currentSegment)
					currentSegment = Segment{}
				}
				state = "index"
				textLines = []string{}
			} else {
				textLines = append(textLines, line)
			}
		}
	}

	// handle last cue without trailing blank line
	if state == "text" && len(textLines) > 0 {
		currentSegment.Text = strings.Join(textLines, "\n")
		segments = append(segments, currentSegment)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read subtitle file: %w", err)
	}

	return &Source{
		Segments: segments,
		Language: detectLanguage(segments),
		Format:   "SRT",
		Path:     path,
	}, nil
}

// srtTimePattern also accepts '.' as the millisecond separator, which
// sloppy files use.
var srtTimePattern = regexp.MustCompile(`(\d{2}):(\d{2}):(\d{2})[,.](\d{3}) --> (\d{2}):(\d{2}):(\d{2})[,.](\d{3})`)

// parseSRTTime parses an SRT time line: 00:02:16,612 --> 00:02:19,376
func parseSRTTime(timeString string) (time.Duration, time.Duration, error) {
	matches := srtTimePattern.FindStringSubmatch(timeString)
	if len(matches) != 9 {
		return 0, 0, fmt.Errorf("invalid time format: %s", timeString)
	}

	parseTime := func(hours, minutes, seconds, milliseconds string) time.Duration {
		h, _ := strconv.Atoi(hours)
		m, _ := strconv.Atoi(minutes)
		s, _ := strconv.Atoi(seconds)
		ms, _ := strconv.Atoi(milliseconds)

		return time.Duration(h)*time.Hour +
			time.Duration(m)*time.Minute +
			time.Duration(s)*time.Second +
			time.Duration(ms)*time.Millisecond
	}

	startTime := parseTime(matches[1], matches[2], matches[3], matches[4])
	endTime := parseTime(matches[5], matches[6], matches[7], matches[8])

	return startTime, endTime, nil
}

// detectLanguage picks the language most segments are written in.
func detectLanguage(segments []Segment) language.Tag {
	if len(segments) == 0 {
		return language.Und
	}

	counts := make(map[string]int)
	for _, segment := range segments {
		iso := whatlanggo.DetectLang(segment.Text).Iso6391()
		if iso == "" {
			continue
		}
		counts[iso]++
	}

	var topLang string
	var topCount int
	for iso, count := range counts {
		if count > topCount {
			topLang = iso
			topCount = count
		}
	}
	if topLang == "" {
		return language.Und
	}

	return language.Make(topLang)
}
