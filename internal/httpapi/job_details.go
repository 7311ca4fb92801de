package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	"golang.org/x/text/language"

	"github.com/ericjesse/video-translator-sub001/internal/jobs"
	"github.com/ericjesse/video-translator-sub001/internal/subtitle"
	"github.com/ericjesse/video-translator-sub001/pkg/file"
)

const (
	defaultJobPreviewLimit = 80
	maxJobPreviewLimit     = 500
)

var (
	errJobNotFound     = errors.New("job not found")
	errJobInProgress   = errors.New("job is running")
	errJobNotCompleted = errors.New("job is not completed")
	errNoOutput        = errors.New("translated output file not found")
	errInvalidLine     = errors.New("line index out of range")
)

type jobDetailResponse struct {
	Job            *jobs.TranslationJob `json:"job"`
	TargetLanguage string               `json:"target_language"`
	OutputPath     string               `json:"output_path"`
	Progress       jobProgressResponse  `json:"progress"`
	Preview        []jobPreviewLine     `json:"preview"`
	PreviewOffset  int                  `json:"preview_offset"`
	PreviewLimit   int                  `json:"preview_limit"`
	Editable       bool                 `json:"editable"`
}

type jobProgressResponse struct {
	TranslatedLines int     `json:"translated_lines"`
	TotalLines      int     `json:"total_lines"`
	Percent         float64 `json:"percent"`
}

type jobPreviewLine struct {
	Index          int    `json:"index"`
	OriginalText   string `json:"original_text"`
	TranslatedText string `json:"translated_text"`
}

type updateJobLinesRequest struct {
	Lines []updateJobLineRequest `json:"lines"`
}

type updateJobLineRequest struct {
	Index          int    `json:"index"`
	TranslatedText string `json:"translated_text"`
}

// jobSnapshot pairs a job with its subtitle files on disk. Output is
// nil until the job has written its translation.
type jobSnapshot struct {
	Job        *jobs.TranslationJob
	TargetCode string
	OutputPath string
	Source     *subtitle.Source
	Output     *subtitle.Source
}

func (s *Server) handleJobDetailRoutes(w http.ResponseWriter, r *http.Request) {
	jobID, action, ok := parseJobRoute(r.URL.Path)
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	switch action {
	case "":
		s.handleJobDetail(w, r, jobID)
	case "lines":
		s.handleUpdateJobLines(w, r, jobID)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func parseJobRoute(path string) (jobID string, action string, ok bool) {
	trimmed := strings.TrimPrefix(path, "/api/jobs/")
	trimmed = strings.Trim(trimmed, "/")
	if trimmed == "" {
		return "", "", false
	}
	parts := strings.Split(trimmed, "/")
	if len(parts) > 2 {
		return "", "", false
	}
	rawID, err := url.PathUnescape(parts[0])
	if err != nil || strings.TrimSpace(rawID) == "" {
		return "", "", false
	}
	if len(parts) == 1 {
		return rawID, "", true
	}
	return rawID, parts[1], true
}

func (s *Server) handleJobDetail(w http.ResponseWriter, r *http.Request, jobID string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	offset := parsePositiveIntWithDefault(r.URL.Query().Get("offset"), 0)
	limit := parsePositiveIntWithDefault(r.URL.Query().Get("limit"), defaultJobPreviewLimit)
	if limit <= 0 {
		limit = defaultJobPreviewLimit
	}
	if limit > maxJobPreviewLimit {
		limit = maxJobPreviewLimit
	}

	detail, err := s.buildJobDetail(jobID, offset, limit)
	if err != nil {
		switch {
		case errors.Is(err, errJobNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleUpdateJobLines(w http.ResponseWriter, r *http.Request, jobID string) {
	if r.Method != http.MethodPut {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req updateJobLinesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if len(req.Lines) == 0 {
		writeError(w, http.StatusBadRequest, "lines is required")
		return
	}

	detail, err := s.updateJobLines(jobID, req.Lines)
	if err != nil {
		switch {
		case errors.Is(err, errJobNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, errJobInProgress):
			writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, errJobNotCompleted), errors.Is(err, errNoOutput), errors.Is(err, errInvalidLine):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func parsePositiveIntWithDefault(raw string, def int) int {
	if strings.TrimSpace(raw) == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}
	return v
}

func (s *Server) buildJobDetail(jobID string, offset int, limit int) (jobDetailResponse, error) {
	snapshot, err := s.snapshotJob(jobID)
	if err != nil {
		return jobDetailResponse{}, err
	}

	return jobDetailResponse{
		Job:            snapshot.Job,
		TargetLanguage: snapshot.TargetCode,
		OutputPath:     snapshot.OutputPath,
		Progress:       computeJobProgress(snapshot),
		Preview:        buildPreviewLines(snapshot, offset, limit),
		PreviewOffset:  offset,
		PreviewLimit:   limit,
		Editable:       snapshot.Job.Status == jobs.StatusSuccess && snapshot.Output != nil,
	}, nil
}

// updateJobLines patches translated lines of a completed job and
// rewrites its output file. The output file is the source of truth, so
// edits survive later reads and rescans.
func (s *Server) updateJobLines(jobID string, patches []updateJobLineRequest) (jobDetailResponse, error) {
	job, ok := s.svc.Job(jobID)
	if !ok {
		return jobDetailResponse{}, errJobNotFound
	}
	if job.Status == jobs.StatusPending || job.Status == jobs.StatusRunning {
		return jobDetailResponse{}, errJobInProgress
	}
	if job.Status != jobs.StatusSuccess {
		return jobDetailResponse{}, errJobNotCompleted
	}

	snapshot, err := s.snapshotJob(jobID)
	if err != nil {
		return jobDetailResponse{}, err
	}
	if snapshot.Output == nil {
		return jobDetailResponse{}, errNoOutput
	}

	byIndex := make(map[int]int, len(snapshot.Output.Segments))
	for pos, segment := range snapshot.Output.Segments {
		byIndex[segment.Index] = pos
	}
	for _, patch := range patches {
		pos, ok := byIndex[patch.Index]
		if !ok {
			return jobDetailResponse{}, errInvalidLine
		}
		snapshot.Output.Segments[pos].Text = patch.TranslatedText
	}

	if err := subtitle.NewWriter().Write(snapshot.OutputPath, snapshot.Output); err != nil {
		return jobDetailResponse{}, err
	}

	return s.buildJobDetail(jobID, 0, defaultJobPreviewLimit)
}

func (s *Server) snapshotJob(jobID string) (jobSnapshot, error) {
	job, ok := s.svc.Job(jobID)
	if !ok {
		return jobSnapshot{}, errJobNotFound
	}

	targetCode := s.jobTargetCode(job)
	outputPath := ""
	if job.Payload.SubtitleFile != "" {
		outputPath = file.WithLanguageSuffix(job.Payload.SubtitleFile, targetCode)
	}

	source, err := readSubtitleIfExists(job.Payload.SubtitleFile)
	if err != nil {
		return jobSnapshot{}, err
	}
	output, err := readSubtitleIfExists(outputPath)
	if err != nil {
		return jobSnapshot{}, err
	}

	return jobSnapshot{
		Job:        job,
		TargetCode: targetCode,
		OutputPath: outputPath,
		Source:     source,
		Output:     output,
	}, nil
}

func (s *Server) jobTargetCode(job *jobs.TranslationJob) string {
	if tag, err := language.Parse(job.Payload.TargetLanguage); err == nil {
		base, _ := tag.Base()
		return base.String()
	}
	return s.targetLanguageCode()
}

func readSubtitleIfExists(path string) (*subtitle.Source, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return subtitle.NewReader().Read(path)
}

// computeJobProgress counts lines from the files on disk but takes the
// live percentage from the job record, which the session feeds while a
// run is still writing nothing.
func computeJobProgress(snapshot jobSnapshot) jobProgressResponse {
	total := 0
	if snapshot.Source != nil {
		total = len(snapshot.Source.Segments)
	} else if snapshot.Output != nil {
		total = len(snapshot.Output.Segments)
	}

	done := 0
	if snapshot.Output != nil {
		for _, segment := range snapshot.Output.Segments {
			if strings.TrimSpace(segment.Text) != "" {
				done++
			}
		}
	}

	return jobProgressResponse{
		TranslatedLines: done,
		TotalLines:      total,
		Percent:         snapshot.Job.Progress * 100,
	}
}

func buildPreviewLines(snapshot jobSnapshot, offset int, limit int) []jobPreviewLine {
	var source, output []subtitle.Segment
	if snapshot.Source != nil {
		source = snapshot.Source.Segments
	}
	if snapshot.Output != nil {
		output = snapshot.Output.Segments
	}

	total := max(len(source), len(output))
	if total <= 0 || offset >= total {
		return []jobPreviewLine{}
	}
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = defaultJobPreviewLimit
	}

	end := min(total, offset+limit)
	ret := make([]jobPreviewLine, 0, end-offset)
	for i := offset; i < end; i++ {
		line := jobPreviewLine{Index: i + 1}
		if i < len(source) {
			line.Index = source[i].Index
			line.OriginalText = source[i].Text
		}
		if i < len(output) {
			if i >= len(source) {
				line.Index = output[i].Index
			}
			line.TranslatedText = output[i].Text
		}
		ret = append(ret, line)
	}
	return ret
}
