package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-pm/internal/record"
	"github.com/nerrad567/gray-logic-pm/internal/supervisor"
)

// lifecycleOps are the operations accepted by POST /processes/{selector}/{op}.
var lifecycleOps = map[string]bool{
	supervisor.OpStart:   true,
	supervisor.OpStop:    true,
	supervisor.OpRestart: true,
	supervisor.OpReset:   true,
	supervisor.OpRemove:  true,
	"rm":                 true,
}

// OutcomesResponse wraps the per-record results of one request.
type OutcomesResponse struct {
	Outcomes []supervisor.Outcome `json:"outcomes"`
}

// ListResponse is returned by GET /processes.
type ListResponse struct {
	Processes []supervisor.Entry `json:"processes"`
	Count     int                `json:"count"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	Processes []supervisor.StatusRow `json:"processes"`
	Count     int                    `json:"count"`
}

// selectorParam reads the {selector} path parameter. An absent selector
// means every visible record.
func selectorParam(r *http.Request) (record.Selector, error) {
	raw := chi.URLParam(r, "selector")
	if raw == "" {
		return record.ParseSelector(record.SelectAll), nil
	}
	// chi matches on the raw path only when the request carried escapes
	// the default encoding would not produce, such as %2F.
	if r.URL.RawPath != "" {
		token, err := url.PathUnescape(raw)
		if err != nil {
			return record.Selector{}, fmt.Errorf("invalid selector %q", raw)
		}
		raw = token
	}
	return record.ParseSelector(raw), nil
}

// handleCreateProcess stores a new record. ?rewrite=true replaces records
// that hold the same id or name.
func (s *Server) handleCreateProcess(w http.ResponseWriter, r *http.Request) {
	var def record.Definition
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, ErrCodeBadRequest, "request body too large")
			return
		}
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}

	rewrite := false
	if v := r.URL.Query().Get("rewrite"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeBadRequest(w, "rewrite must be a boolean")
			return
		}
		rewrite = b
	}

	o := s.supervisor.Create(r.Context(), def, rewrite)

	status := http.StatusOK
	if o.Code == supervisor.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, OutcomesResponse{Outcomes: []supervisor.Outcome{o}})
}

// handleListProcesses returns the matched records with resolved liveness.
// A name or id that matches nothing is a 404; group tokens may be empty.
func (s *Server) handleListProcesses(w http.ResponseWriter, r *http.Request) {
	sel, err := selectorParam(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	entries, err := s.supervisor.List(r.Context(), sel)
	if err != nil {
		s.logger.Error("listing processes failed", "selector", sel.Token, "error", err)
		writeInternalError(w, "failed to list processes")
		return
	}
	if len(entries) == 0 && sel.Kind != record.KindReserved {
		writeNotFound(w, fmt.Sprintf("no process matches %q", sel.Token))
		return
	}

	writeJSON(w, http.StatusOK, ListResponse{Processes: entries, Count: len(entries)})
}

// handleStatus returns the matched records merged with live metrics.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	sel, err := selectorParam(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	rows, err := s.supervisor.Status(r.Context(), sel)
	if err != nil {
		s.logger.Error("process status failed", "selector", sel.Token, "error", err)
		writeInternalError(w, "failed to read process status")
		return
	}
	if len(rows) == 0 && sel.Kind != record.KindReserved {
		writeNotFound(w, fmt.Sprintf("no process matches %q", sel.Token))
		return
	}

	writeJSON(w, http.StatusOK, StatusResponse{Processes: rows, Count: len(rows)})
}

// handleProcessOp runs one lifecycle operation on the matched records.
// Per-record failures are reported as outcomes, not as HTTP errors.
func (s *Server) handleProcessOp(w http.ResponseWriter, r *http.Request) {
	op := chi.URLParam(r, "op")
	if !lifecycleOps[op] {
		writeBadRequest(w, fmt.Sprintf("unknown operation %q", op))
		return
	}
	sel, err := selectorParam(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	outcomes := s.supervisor.Dispatch(r.Context(), op, sel.Token)
	writeJSON(w, http.StatusOK, OutcomesResponse{Outcomes: outcomes})
}
