package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/nerrad567/gray-logic-pm/internal/audit"
)

// History is the lifecycle history read by GET /history.
type History interface {
	List(ctx context.Context, filter audit.Filter) (*audit.ListResult, error)
}

// handleListHistory returns stored outcomes, most recent first.
//
// Query parameters:
//   - id: only outcomes of this record id
//   - op: filter by operation (create, start, stop, restart, reset, remove, exit)
//   - severity: filter by severity (ok, warning, error)
//   - limit: max results (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeInternalError(w, "lifecycle history not configured")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Op:       q.Get("op"),
		Severity: q.Get("severity"),
	}

	if v := q.Get("id"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			writeBadRequest(w, fmt.Sprintf("invalid id %q", v))
			return
		}
		filter.RecordID = &id
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}

	result, err := s.history.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list history", "error", err)
		writeInternalError(w, "failed to list history")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
