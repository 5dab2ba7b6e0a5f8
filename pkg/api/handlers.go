package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/matzehuels/kahnsched/pkg/buildinfo"
	apperrors "github.com/matzehuels/kahnsched/pkg/errors"
	kio "github.com/matzehuels/kahnsched/pkg/io"
	"github.com/matzehuels/kahnsched/pkg/pipeline"
	"github.com/matzehuels/kahnsched/pkg/store"
)

// ScheduleRequest is the body of POST /v1/schedule.
type ScheduleRequest struct {
	Graph       json.RawMessage `json:"graph"`
	TieBreak    string          `json:"tie_break,omitempty"`
	Deadlock    string          `json:"deadlock,omitempty"`
	BreakCycles bool            `json:"break_cycles,omitempty"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    apperrors.Code `json:"code"`
	Message string         `json:"message"`
}

// RunList is the body of GET /v1/runs.
type RunList struct {
	Runs []*store.Run `json:"runs"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": buildinfo.Version,
	})
}

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	var req ScheduleRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, apperrors.Wrap(apperrors.ErrCodeInvalidFormat, err, "decode request"))
		return
	}
	if len(req.Graph) == 0 {
		s.writeError(w, apperrors.New(apperrors.ErrCodeInvalidInput, "graph is required"))
		return
	}
	g, err := kio.UnmarshalGraph(req.Graph)
	if err != nil {
		s.writeError(w, err)
		return
	}

	res, err := s.runner.Schedule(r.Context(), g, pipeline.Options{
		TieBreak:    req.TieBreak,
		Deadlock:    req.Deadlock,
		BreakCycles: req.BreakCycles,
		Archive:     true,
		Logger:      s.logger,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res.Archived)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := apperrors.ValidateRunID(id); err != nil {
		s.writeError(w, apperrors.Wrap(apperrors.ErrCodeRunNotFound, store.ErrNotFound, "run %q", id))
		return
	}
	run, err := s.runner.Store.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := store.DefaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.writeError(w, apperrors.New(apperrors.ErrCodeInvalidInput, "limit must be a positive integer, got %q", v))
			return
		}
		limit = min(n, MaxListLimit)
	}
	runs, err := s.runner.Store.List(r.Context(), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if runs == nil {
		runs = []*store.Run{}
	}
	writeJSON(w, http.StatusOK, RunList{Runs: runs})
}

// writeError maps err to a status code and writes an ErrorResponse.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	msg := apperrors.UserMessage(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "err", err)
		if code == apperrors.ErrCodeInternal {
			msg = "internal error"
		}
	}
	writeJSON(w, status, ErrorResponse{Code: code, Message: msg})
}

func classify(err error) (int, apperrors.Code) {
	if errors.Is(err, store.ErrNotFound) {
		return http.StatusNotFound, apperrors.ErrCodeRunNotFound
	}
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return http.StatusRequestEntityTooLarge, apperrors.ErrCodeInvalidInput
	}
	code := apperrors.GetCode(err)
	switch code {
	case apperrors.ErrCodeInvalidGraph, apperrors.ErrCodeInvalidInput, apperrors.ErrCodeInvalidFormat:
		return http.StatusBadRequest, code
	case apperrors.ErrCodeDeadlock:
		return http.StatusConflict, code
	case apperrors.ErrCodeNotFound, apperrors.ErrCodeRunNotFound:
		return http.StatusNotFound, code
	case apperrors.ErrCodeInvariantViolation:
		return http.StatusInternalServerError, code
	}
	return http.StatusInternalServerError, apperrors.ErrCodeInternal
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
