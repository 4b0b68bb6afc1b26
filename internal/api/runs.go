package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/AndrewGaspar/parthenon/internal/model"
	"github.com/AndrewGaspar/parthenon/internal/store"
)

const (
	defaultListLimit  = 20
	maxListLimit      = 100
	defaultCycleLimit = 100
	maxCycleListLimit = 1000
)

// listRunsResponse wraps the paginated list response.
type listRunsResponse struct {
	Runs   []*model.Run `json:"runs"`
	Total  int          `json:"total"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
}

// listCyclesResponse is the JSON response for GET /v1/runs/{id}/cycles.
type listCyclesResponse struct {
	RunID  string        `json:"run_id"`
	Cycles []model.Cycle `json:"cycles"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r, defaultListLimit, maxListLimit)

	runs, total, err := s.store.ListRuns(r.Context(), limit, offset)
	if err != nil {
		s.logger.Error("list runs", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}

	if runs == nil {
		runs = []*model.Run{}
	}

	s.writeJSON(w, http.StatusOK, listRunsResponse{
		Runs:   runs,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookupRun(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleListCycles(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookupRun(w, r)
	if !ok {
		return
	}
	limit, offset := parsePagination(r, defaultCycleLimit, maxCycleListLimit)

	cycles, err := s.store.ListCycles(r.Context(), run.ID, limit, offset)
	if err != nil {
		s.logger.Error("list cycles", "run_id", run.ID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list cycles")
		return
	}
	if cycles == nil {
		cycles = []model.Cycle{}
	}

	s.writeJSON(w, http.StatusOK, listCyclesResponse{
		RunID:  run.ID,
		Cycles: cycles,
		Limit:  limit,
		Offset: offset,
	})
}

// lookupRun loads the run named by the {id} URL parameter, writing an error
// response and returning false if it cannot.
func (s *Server) lookupRun(w http.ResponseWriter, r *http.Request) (*model.Run, bool) {
	id := chi.URLParam(r, "id")

	run, err := s.store.GetRun(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "run not found")
		return nil, false
	}
	if err != nil {
		s.logger.Error("get run", "run_id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get run")
		return nil, false
	}
	return run, true
}

// parsePagination reads limit and offset query parameters, replacing
// out-of-range values with defaults.
func parsePagination(r *http.Request, defaultLimit, maxLimit int) (limit, offset int) {
	limit = parseIntQuery(r, "limit", defaultLimit)
	offset = parseIntQuery(r, "offset", 0)

	if limit <= 0 || limit > maxLimit {
		limit = defaultLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// parseIntQuery parses an integer query parameter with a default value.
func parseIntQuery(r *http.Request, key string, defaultVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
