package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"golang.org/x/text/language"

	"github.com/ericjesse/video-translator-sub001/internal/config"
	"github.com/ericjesse/video-translator-sub001/internal/glossary"
	"github.com/ericjesse/video-translator-sub001/internal/jobs"
	"github.com/ericjesse/video-translator-sub001/internal/library"
	"github.com/ericjesse/video-translator-sub001/internal/service"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	lib, err := s.svc.Library(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, lib.Sources)
}

type fileListResponse struct {
	TargetLanguage string         `json:"target_language"`
	Files          []fileResponse `json:"files"`
}

type fileResponse struct {
	library.SubtitleFile
	InProgress bool        `json:"in_progress"`
	JobStatus  jobs.Status `json:"job_status,omitempty"`
	JobSource  string      `json:"job_source,omitempty"`
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	lib, err := s.svc.Library(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	sourceID := r.URL.Query().Get("source")
	translatableOnly := r.URL.Query().Get("translatable") == "true"
	activeJobs := inProgressJobsBySubtitle(s.svc.Jobs())

	files := make([]fileResponse, 0, len(lib.Files))
	for _, f := range lib.Files {
		if sourceID != "" && f.SourceID != sourceID {
			continue
		}
		if translatableOnly && !f.Translatable {
			continue
		}
		item := fileResponse{SubtitleFile: f}
		if job, ok := activeJobs[f.Path]; ok {
			item.InProgress = true
			item.JobStatus = job.Status
			item.JobSource = job.Source
		}
		files = append(files, item)
	}

	writeJSON(w, http.StatusOK, fileListResponse{
		TargetLanguage: s.targetLanguageCode(),
		Files:          files,
	})
}

func inProgressJobsBySubtitle(jobList []*jobs.TranslationJob) map[string]*jobs.TranslationJob {
	ret := make(map[string]*jobs.TranslationJob)
	for _, job := range jobList {
		if job == nil || job.Payload.SubtitleFile == "" {
			continue
		}
		if job.Status != jobs.StatusPending && job.Status != jobs.StatusRunning {
			continue
		}
		existing, ok := ret[job.Payload.SubtitleFile]
		if !ok || preferInProgressJob(job, existing) {
			ret[job.Payload.SubtitleFile] = job
		}
	}
	return ret
}

func preferInProgressJob(next, current *jobs.TranslationJob) bool {
	nextRank := inProgressRank(next.Status)
	currentRank := inProgressRank(current.Status)
	if nextRank != currentRank {
		return nextRank > currentRank
	}
	return next.UpdatedAt.After(current.UpdatedAt)
}

func inProgressRank(status jobs.Status) int {
	switch status {
	case jobs.StatusRunning:
		return 2
	case jobs.StatusPending:
		return 1
	default:
		return 0
	}
}

type enqueueJobRequest struct {
	Source         string `json:"source"`
	SubtitlePath   string `json:"subtitle_path"`
	SourceLanguage string `json:"source_language"`
	TargetLanguage string `json:"target_language"`
	Provider       string `json:"provider"`
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, sortedJobs(s.svc.Jobs()))
	case http.MethodPost:
		var req enqueueJobRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		if req.Source == "" {
			req.Source = service.SourceManual
		}

		job, created, err := s.svc.EnqueueTranslation(jobs.JobPayload{
			SubtitleFile:   req.SubtitlePath,
			SourceLanguage: req.SourceLanguage,
			TargetLanguage: req.TargetLanguage,
			Provider:       req.Provider,
		}, req.Source)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		code := http.StatusCreated
		if !created {
			code = http.StatusOK
		}
		writeJSON(w, code, map[string]any{
			"created": created,
			"job":     job,
		})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// sortedJobs orders jobs newest first so lists and the SSE stream are
// stable across requests.
func sortedJobs(list []*jobs.TranslationJob) []*jobs.TranslationJob {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].ID < list[j].ID
	})
	return list
}

type scheduleResponse struct {
	Expression    string    `json:"expression"`
	Last          time.Time `json:"last"`
	Next          time.Time `json:"next"`
	TimeSinceLast string    `json:"time_since_last,omitempty"`
	TimeUntilNext string    `json:"time_until_next"`
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		info, err := s.svc.ScheduleInfo()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp := scheduleResponse{
			Expression:    info.Expression,
			Last:          info.Last,
			Next:          info.Next,
			TimeUntilNext: info.TimeUntilNext.String(),
		}
		if !info.Last.IsZero() {
			resp.TimeSinceLast = info.TimeSinceLast.String()
		}
		writeJSON(w, http.StatusOK, resp)
	case http.MethodPost:
		queued, err := s.svc.TriggerScan(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"queued": queued,
		})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	if s.settings == nil {
		writeError(w, http.StatusNotImplemented, "settings store is not configured")
		return
	}

	switch r.Method {
	case http.MethodGet:
		settings, err := s.settings.GetRuntimeSettings()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, settings)
	case http.MethodPut:
		var req config.RuntimeSettings
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		if err := req.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		saved, err := s.settings.UpdateRuntimeSettings(req)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if s.apply != nil {
			if err := s.apply(saved); err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
		}
		writeJSON(w, http.StatusOK, saved)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleGlossary(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		source, target, err := languagePairFromQuery(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		g, err := s.svc.Glossary(source, target)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, g)
	case http.MethodPut:
		var g glossary.Glossary
		if err := json.NewDecoder(r.Body).Decode(&g); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		if err := g.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := s.svc.SetGlossary(&g); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, &g)
	case http.MethodDelete:
		source, target, err := languagePairFromQuery(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := s.svc.RemoveGlossary(source, target); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

type suggestGlossaryRequest struct {
	Title          string `json:"title"`
	SubtitlePath   string `json:"subtitle_path"`
	SourceLanguage string `json:"source_language"`
	TargetLanguage string `json:"target_language"`
}

func (s *Server) handleGlossarySuggest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req suggestGlossaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	target, err := language.Parse(req.TargetLanguage)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid target language %q", req.TargetLanguage))
		return
	}
	source := language.Und
	if req.SourceLanguage != "" {
		source, err = language.Parse(req.SourceLanguage)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid source language %q", req.SourceLanguage))
			return
		}
	}

	g, err := s.svc.SuggestGlossary(r.Context(), req.Title, req.SubtitlePath, source, target)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleCache(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{
			"size": s.svc.CacheSize(),
		})
	case http.MethodDelete:
		s.svc.ClearCache()
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, s.svc.LastStats())
}

func languagePairFromQuery(r *http.Request) (language.Tag, language.Tag, error) {
	source, err := language.Parse(r.URL.Query().Get("source"))
	if err != nil {
		return language.Und, language.Und, fmt.Errorf("invalid source language %q", r.URL.Query().Get("source"))
	}
	target, err := language.Parse(r.URL.Query().Get("target"))
	if err != nil {
		return language.Und, language.Und, fmt.Errorf("invalid target language %q", r.URL.Query().Get("target"))
	}
	return source, target, nil
}

// targetLanguageCode is the base code translations are checked against,
// matching the suffix of generated subtitle files.
func (s *Server) targetLanguageCode() string {
	raw := s.svc.RuntimeSettings().TargetLanguage
	tag, err := language.Parse(raw)
	if err != nil {
		return raw
	}
	base, _ := tag.Base()
	return base.String()
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}
