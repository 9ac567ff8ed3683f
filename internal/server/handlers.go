package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/olegiv/crashlens-ai-go/internal/crashlog"
	internalerrors "github.com/olegiv/crashlens-ai-go/internal/errors"
	"github.com/olegiv/crashlens-ai-go/internal/httpapi"
	"github.com/olegiv/crashlens-ai-go/internal/session"
)

// SourceAutoFetched marks files registered through /fetch-log.
const SourceAutoFetched = "auto-fetched"

func (s *Server) fail(w http.ResponseWriter, err error) {
	httpapi.WriteError(w, s.log, err)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	httpapi.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	body := map[string]interface{}{
		"status":      "online",
		"sessions":    s.sessions.Len(),
		"bug_tracker": s.bugs != nil,
		"sources":     s.sources.Describe(),
	}
	for k, v := range s.chat.ProviderInfo() {
		body[k] = v
	}
	httpapi.WriteJSON(w, http.StatusOK, body)
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Response  string `json:"response"`
	Timestamp string `json:"timestamp"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	sid := sessionID(w, r)

	var req chatRequest
	if err := httpapi.DecodeJSON(r, &req); err != nil {
		s.fail(w, err)
		return
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		s.fail(w, internalerrors.BadRequest("No message provided"))
		return
	}

	response, _, err := s.chat.Chat(r.Context(), sid, message)
	if err != nil {
		s.fail(w, internalerrors.WithStatus(err, http.StatusBadGateway, "Failed to generate a response"))
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, chatResponse{
		Response:  response,
		Timestamp: s.now().Format(time.RFC3339),
	})
}

type analyzeResponse struct {
	Status      string             `json:"status"`
	Analysis    string             `json:"analysis"`
	Findings    *crashlog.Findings `json:"findings"`
	Severity    crashlog.Severity  `json:"severity"`
	LogType     string             `json:"log_type"`
	Suggestions []string           `json:"suggestions"`
	Filename    string             `json:"filename"`
	Error       string             `json:"error,omitempty"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	sid := sessionID(w, r)

	file, content, err := s.loadSessionFile(sid, r)
	if err != nil {
		s.fail(w, err)
		return
	}

	analysis, err := s.chat.AnalyzeLog(r.Context(), sid, content, file.Filename)
	resp := analyzeResponse{
		Status:      "success",
		Analysis:    analysis.Analysis,
		Findings:    analysis.Result.Findings,
		Severity:    analysis.Result.Severity,
		LogType:     analysis.Result.LogType,
		Suggestions: analysis.Result.Suggestions,
		Filename:    analysis.Filename,
	}
	if err != nil {
		s.log.Error().Err(err).Str("file_id", file.ID).Msg("Analysis generation failed")
		resp.Status = "partial"
		resp.Error = "Failed to generate analysis; automated findings are included"
		httpapi.WriteJSON(w, http.StatusBadGateway, resp)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, resp)
}

// loadSessionFile resolves the {id} path value against the session's files and reads it.
func (s *Server) loadSessionFile(sid string, r *http.Request) (session.UploadedFile, string, error) {
	id, err := httpapi.PathID(r)
	if err != nil {
		return session.UploadedFile{}, "", err
	}
	if len(s.sessions.Files(sid)) == 0 {
		return session.UploadedFile{}, "", internalerrors.NotFound("No files uploaded")
	}
	file, ok := s.sessions.FindFile(sid, id)
	if !ok {
		return session.UploadedFile{}, "", internalerrors.NotFound("File not found")
	}

	content, err := s.uploads.Read(file.Path)
	if err != nil {
		return session.UploadedFile{}, "", readerError(err, file.Filename)
	}
	return file, content, nil
}

type fetchLogRequest struct {
	Path     string `json:"path"`
	Filename string `json:"filename"`
}

func (s *Server) handleFetchLog(w http.ResponseWriter, r *http.Request) {
	sid := sessionID(w, r)

	var req fetchLogRequest
	if err := httpapi.DecodeJSON(r, &req); err != nil {
		s.fail(w, err)
		return
	}
	req.Path = strings.TrimSpace(req.Path)
	req.Filename = strings.TrimSpace(req.Filename)
	if req.Path == "" || req.Filename == "" {
		s.fail(w, internalerrors.BadRequest("Missing file path or filename"))
		return
	}

	if err := s.uploads.CheckName(req.Filename); err != nil {
		s.fail(w, readerError(err, req.Filename))
		return
	}

	content, err := s.local.Read(req.Path)
	if err != nil {
		s.fail(w, readerError(err, req.Path))
		return
	}

	stored, err := s.storeUpload(req.Filename, strings.NewReader(content))
	if err != nil {
		s.fail(w, err)
		return
	}

	file := session.UploadedFile{
		ID:           newFileID(),
		Filename:     stored.displayName,
		Path:         stored.path,
		Size:         stored.size,
		Timestamp:    s.now(),
		Source:       SourceAutoFetched,
		OriginalPath: req.Path,
	}
	s.sessions.AddFile(sid, file)

	s.log.Info().
		Str("file_id", file.ID).
		Path("original_path", req.Path).
		Int64("size", file.Size).
		Msg("Log fetched")

	httpapi.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "success",
		"message": fmt.Sprintf("Successfully fetched log file from %s", req.Path),
		"file":    file,
	})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	s.chat.ClearSession(sessionID(w, r))
	httpapi.WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Conversation cleared",
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	httpapi.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"history": s.chat.History(sessionID(w, r)),
	})
}

func (s *Server) handleFiles(w http.ResponseWriter, r *http.Request) {
	httpapi.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"files": s.sessions.Files(sessionID(w, r)),
	})
}

// readerError maps crashlog reader failures to client-facing statuses.
func readerError(err error, name string) error {
	switch {
	case errors.Is(err, crashlog.ErrExtension):
		return internalerrors.WithStatus(err, http.StatusBadRequest, "Invalid file type")
	case errors.Is(err, crashlog.ErrNotFound):
		return internalerrors.WithStatus(err, http.StatusNotFound, "File not found: %s", name)
	case errors.Is(err, crashlog.ErrNotAFile):
		return internalerrors.WithStatus(err, http.StatusBadRequest, "Path is not a file: %s", name)
	case errors.Is(err, crashlog.ErrPermission):
		return internalerrors.WithStatus(err, http.StatusForbidden, "Permission denied reading file: %s", name)
	case errors.Is(err, crashlog.ErrOutsideBase):
		return internalerrors.WithStatus(err, http.StatusForbidden, "Path is outside the allowed directory: %s", name)
	case errors.Is(err, crashlog.ErrTooLarge):
		return internalerrors.WithStatus(err, http.StatusRequestEntityTooLarge, "%s", err.Error())
	case errors.Is(err, crashlog.ErrBinary):
		return internalerrors.WithStatus(err, http.StatusUnsupportedMediaType, "File does not look like a text log: %s", name)
	default:
		return internalerrors.WithStatus(err, http.StatusInternalServerError, "Error reading file: %s", name)
	}
}
