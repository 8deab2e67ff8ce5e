package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/taskquest/taskquest-bot/internal/infrastructure/scheduler"
	"github.com/taskquest/taskquest-bot/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.deps.Health.Check(r.Context())
	if !status.Healthy {
		writeJSON(w, r, http.StatusServiceUnavailable, status)
		return
	}
	writeJSON(w, r, http.StatusOK, status)
}

// ══════════════════════════════════════════════════════════════════════════════
// JOBS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	if s.deps.Jobs == nil {
		writeJSONError(w, r, http.StatusServiceUnavailable, "scheduler_unavailable", "scheduler is not configured")
		return
	}
	writeJSON(w, r, http.StatusOK, s.deps.Jobs.ListJobs())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.deps.Jobs == nil {
		writeJSONError(w, r, http.StatusServiceUnavailable, "scheduler_unavailable", "scheduler is not configured")
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSONError(w, r, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		limit = n
	}
	writeJSON(w, r, http.StatusOK, s.deps.Jobs.History(limit))
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.deps.Jobs == nil {
		writeJSONError(w, r, http.StatusServiceUnavailable, "scheduler_unavailable", "scheduler is not configured")
		return
	}
	writeJSON(w, r, http.StatusOK, s.deps.Jobs.Metrics().Snapshot())
}

// handleRunJob runs a job synchronously and returns its result.
func (s *Server) handleRunJob(w http.ResponseWriter, r *http.Request) {
	if s.deps.Jobs == nil {
		writeJSONError(w, r, http.StatusServiceUnavailable, "scheduler_unavailable", "scheduler is not configured")
		return
	}
	name := chi.URLParam(r, "name")

	result, err := s.deps.Jobs.RunNow(r.Context(), name)
	switch {
	case errors.Is(err, scheduler.ErrJobNotFound):
		writeJSONError(w, r, http.StatusNotFound, "job_not_found", err.Error())
	case errors.Is(err, scheduler.ErrJobRunning), errors.Is(err, scheduler.ErrJobLocked):
		writeJSONError(w, r, http.StatusConflict, "job_busy", err.Error())
	case errors.Is(err, scheduler.ErrSchedulerNotRunning):
		writeJSONError(w, r, http.StatusServiceUnavailable, "scheduler_stopped", err.Error())
	case err != nil:
		s.logger.Warn("manual job run failed", logger.Job(name), slog.String("run_id", result.RunID), logger.Err(err))
		writeJSON(w, r, http.StatusInternalServerError, result)
	default:
		s.logger.Info("manual job run completed", logger.Job(name), slog.String("run_id", result.RunID))
		writeJSON(w, r, http.StatusOK, result)
	}
}
