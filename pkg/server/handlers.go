package server

import (
	"encoding/json"
	"net/http"
	"os"
	"strconv"

	"github.com/matzehuels/thumbatlas/pkg/errors"
	"github.com/matzehuels/thumbatlas/pkg/history"
	"github.com/matzehuels/thumbatlas/pkg/status"
)

// TriggerResponse is the body of an accepted trigger.
type TriggerResponse struct {
	RunID  string       `json:"runId"`
	Status status.State `json:"status"`
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// RunsResponse lists recent runs.
type RunsResponse struct {
	Runs []history.Run `json:"runs"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	runID, err := s.Runner.Start(s.runCtx, s.Options)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Location", "/api/atlas/status")
	s.writeJSON(w, http.StatusAccepted, TriggerResponse{RunID: runID, Status: status.StateInProgress})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.Reader.Read(r.Context())
	if err != nil {
		s.writeError(w, errors.Wrap(errors.ErrCodeInternal, err, "read status"))
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	s.writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	s.serveArtifact(w, r, s.Options.AtlasPath, "image/png")
}

func (s *Server) handleCoordinates(w http.ResponseWriter, r *http.Request) {
	s.serveArtifact(w, r, s.Options.CoordinatesPath, "application/json")
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := history.DefaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeError(w, errors.New(errors.ErrCodeInvalidInput, "limit must be a positive integer, got %q", v))
			return
		}
		limit = n
	}
	runs, err := s.Runner.History.List(r.Context(), limit)
	if err != nil {
		s.writeError(w, errors.Wrap(errors.ErrCodeInternal, err, "list runs"))
		return
	}
	if runs == nil {
		runs = []history.Run{}
	}
	s.writeJSON(w, http.StatusOK, RunsResponse{Runs: runs})
}

func (s *Server) serveArtifact(w http.ResponseWriter, r *http.Request, path, contentType string) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			s.writeError(w, errors.New(errors.ErrCodeNotFound, "no atlas has been generated yet"))
			return
		}
		s.writeError(w, errors.Wrap(errors.ErrCodeInternal, err, "open artifact"))
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		s.writeError(w, errors.Wrap(errors.ErrCodeInternal, err, "stat artifact"))
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

// StatusCode maps an error to its HTTP status.
func StatusCode(err error) int {
	switch errors.GetCode(err) {
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidConfig, errors.ErrCodeInvalidPath:
		return http.StatusBadRequest
	case errors.ErrCodeNotFound:
		return http.StatusNotFound
	case errors.ErrCodeRunInProgress:
		return http.StatusConflict
	case errors.ErrCodeDirectoryNotFound, errors.ErrCodeEmptyInventory:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.Logger.Error("encode response", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := StatusCode(err)
	if code >= http.StatusInternalServerError {
		s.Logger.Error("request failed", "err", err)
	} else {
		s.Logger.Debug("request rejected", "code", errors.GetCode(err), "err", err)
	}
	s.writeJSON(w, code, ErrorResponse{
		Error: errors.UserMessage(err),
		Code:  string(errors.GetCode(err)),
	})
}
