package supervisor

import (
	"fmt"

	"github.com/nerrad567/gray-logic-pm/internal/record"
)

// Code identifies the result of one operation on one record.
type Code string

// Outcome codes.
const (
	Created      Code = "created"
	IDConflict   Code = "id_conflict"
	NameConflict Code = "name_conflict"
	Invalid      Code = "invalid"

	Started            Code = "started"
	AlreadyRunning     Code = "already_running"
	MaxRestartExceeded Code = "max_restart_exceeded"
	SpawnFailed        Code = "spawn_failed"

	Killed     Code = "killed"
	NotRunning Code = "not_running"
	StillAlive Code = "still_alive"

	ResetDone     Code = "reset"
	Removed       Code = "removed"
	Protected     Code = "protected"
	PersistFailed Code = "persist_failed"
	NotFound      Code = "not_found"
)

// Severity grades an outcome.
type Severity string

// Severities.
const (
	SeverityOK      Severity = "ok"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

var severities = map[Code]Severity{
	IDConflict:         SeverityWarning,
	NameConflict:       SeverityWarning,
	Invalid:            SeverityError,
	AlreadyRunning:     SeverityWarning,
	MaxRestartExceeded: SeverityError,
	SpawnFailed:        SeverityError,
	NotRunning:         SeverityWarning,
	StillAlive:         SeverityWarning,
	Protected:          SeverityWarning,
	PersistFailed:      SeverityError,
	NotFound:           SeverityError,
}

// Severity returns the severity of c. Unlisted codes are successes.
func (c Code) Severity() Severity {
	if s, ok := severities[c]; ok {
		return s
	}
	return SeverityOK
}

// Outcome is the result of one operation on one record.
type Outcome struct {
	Op       string   `json:"op"`
	Code     Code     `json:"code"`
	Severity Severity `json:"severity"`
	ID       int      `json:"id"`
	Name     string   `json:"name,omitempty"`
	PID      int      `json:"pid"`
	Message  string   `json:"message"`
	// Alive lists the members of the process tree that survived a stop.
	Alive []int `json:"alive,omitempty"`
	// Record is the record state after the operation, when known.
	Record *record.Record `json:"record,omitempty"`
}

// Failed reports whether the outcome is an error.
func (o Outcome) Failed() bool { return o.Severity == SeverityError }

func newOutcome(op string, code Code, r record.Record, format string, args ...any) Outcome {
	o := Outcome{
		Op:       op,
		Code:     code,
		Severity: code.Severity(),
		ID:       r.ID,
		Name:     r.Name,
		PID:      r.PID,
		Message:  fmt.Sprintf(format, args...),
	}
	rec := r
	o.Record = &rec
	return o
}

func notFound(op string, sel record.Selector) Outcome {
	return Outcome{
		Op:       op,
		Code:     NotFound,
		Severity: NotFound.Severity(),
		ID:       record.NoID,
		PID:      record.NoPID,
		Message:  fmt.Sprintf("no process matches %q", sel.Token),
	}
}
