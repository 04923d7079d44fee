package supervisor

import (
	"context"
	"errors"
	"fmt"

	"github.com/nerrad567/gray-logic-pm/internal/process"
	"github.com/nerrad567/gray-logic-pm/internal/record"
	"github.com/nerrad567/gray-logic-pm/internal/table"
)

// Operation names carried by outcomes.
const (
	OpStart   = "start"
	OpStop    = "stop"
	OpRestart = "restart"
	OpReset   = "reset"
	OpRemove  = "remove"
)

// Start starts every record matched by sel.
func (s *Supervisor) Start(ctx context.Context, sel record.Selector) []Outcome {
	return s.each(ctx, OpStart, sel, s.StartRecord)
}

// Stop stops every record matched by sel.
func (s *Supervisor) Stop(ctx context.Context, sel record.Selector) []Outcome {
	return s.each(ctx, OpStop, sel, s.StopRecord)
}

// Restart stops then starts every record matched by sel. Each record yields
// its stop outcome followed by its start outcome; a tree that survives the
// stop is not started again.
func (s *Supervisor) Restart(ctx context.Context, sel record.Selector) []Outcome {
	recs, err := s.store.Find(ctx, sel)
	if err != nil {
		return []Outcome{s.emit(Outcome{Op: OpRestart, Code: PersistFailed, Severity: SeverityError,
			ID: record.NoID, PID: record.NoPID, Message: fmt.Sprintf("reading table: %v", err)})}
	}
	if len(recs) == 0 {
		return []Outcome{s.emit(notFound(OpRestart, sel))}
	}

	var out []Outcome
	for _, r := range recs {
		stopped := s.StopRecord(ctx, r)
		out = append(out, stopped)
		if stopped.Code == StillAlive || stopped.Failed() || stopped.Code == Protected {
			continue
		}
		out = append(out, s.StartRecord(ctx, r))
	}
	return out
}

// Reset zeroes the restart count of every record matched by sel.
func (s *Supervisor) Reset(ctx context.Context, sel record.Selector) []Outcome {
	return s.each(ctx, OpReset, sel, s.ResetRecord)
}

// Remove stops and deletes every record matched by sel.
func (s *Supervisor) Remove(ctx context.Context, sel record.Selector) []Outcome {
	return s.each(ctx, OpRemove, sel, s.RemoveRecord)
}

func (s *Supervisor) each(ctx context.Context, op string, sel record.Selector, fn func(context.Context, record.Record) Outcome) []Outcome {
	recs, err := s.store.Find(ctx, sel)
	if err != nil {
		return []Outcome{s.emit(Outcome{Op: op, Code: PersistFailed, Severity: SeverityError,
			ID: record.NoID, PID: record.NoPID, Message: fmt.Sprintf("reading table: %v", err)})}
	}
	if len(recs) == 0 {
		return []Outcome{s.emit(notFound(op, sel))}
	}

	out := make([]Outcome, 0, len(recs))
	for _, r := range recs {
		out = append(out, fn(ctx, r))
	}
	return out
}

// reload re-reads r under its record lock so decisions use current state.
func (s *Supervisor) reload(ctx context.Context, op string, r record.Record) (record.Record, *Outcome) {
	fresh, err := s.store.Get(ctx, r.ID)
	if err != nil {
		code := PersistFailed
		if table.IsNotFound(err) {
			code = NotFound
		}
		o := s.emit(newOutcome(op, code, r, "reading record: %v", err))
		return r, &o
	}
	return fresh, nil
}

func (s *Supervisor) isBackend(r record.Record) bool {
	return r.Name == s.cfg.BackendName
}

// StartRecord starts r unless it is already running or has reached its
// restart ceiling.
func (s *Supervisor) StartRecord(ctx context.Context, r record.Record) Outcome {
	unlock := s.lockRecord(r.ID)
	defer unlock()
	return s.startLocked(ctx, r)
}

func (s *Supervisor) startLocked(ctx context.Context, r record.Record) Outcome {
	r, failed := s.reload(ctx, OpStart, r)
	if failed != nil {
		return *failed
	}
	if s.isBackend(r) {
		return s.emit(newOutcome(OpStart, Protected, r, "%s is the daemon itself", r))
	}

	if live := s.checker.ResolveRecord(r); live.Running() {
		return s.emit(newOutcome(OpStart, AlreadyRunning, r, "%s is already running", r))
	}
	if !r.CanRestart() {
		return s.emit(newOutcome(OpStart, MaxRestartExceeded, r,
			"%s reached max_restart (%d/%d); reset it to start again", r, r.RestartCount, r.MaxRestart))
	}

	h, err := s.spawner.Spawn(r)
	if err != nil {
		msg := "spawn failed: %v"
		if errors.Is(err, process.ErrExecutableNotFound) {
			msg = "cannot start: %v"
		}
		return s.emit(newOutcome(OpStart, SpawnFailed, r, msg, err))
	}

	updated, err := s.store.Modify(ctx, r.ID, func(rec *record.Record) error {
		rec.MarkStarted(h.PID)
		return nil
	})
	if err != nil {
		r.MarkStarted(h.PID)
		return s.emit(newOutcome(OpStart, PersistFailed, r, "started pid %d but saving failed: %v", h.PID, err))
	}
	return s.emit(newOutcome(OpStart, Started, updated, "started %s with pid %d", updated, h.PID))
}

// StopRecord terminates r's process tree and suspends its autorun.
func (s *Supervisor) StopRecord(ctx context.Context, r record.Record) Outcome {
	unlock := s.lockRecord(r.ID)
	defer unlock()
	return s.stopLocked(ctx, OpStop, r)
}

func (s *Supervisor) stopLocked(ctx context.Context, op string, r record.Record) Outcome {
	r, failed := s.reload(ctx, op, r)
	if failed != nil {
		return *failed
	}
	if s.isBackend(r) {
		return s.emit(newOutcome(op, Protected, r, "%s is the daemon itself", r))
	}

	live := s.checker.ResolveRecord(r)
	if !live.Running() {
		return s.emit(newOutcome(op, NotRunning, r, "%s is not running (%s)", r, live.State))
	}

	res := s.killer.KillTree(live.PID, s.cfg.StopSignal, s.cfg.StopTimeout)
	s.spawner.ReapPID(live.PID)
	if !res.Clean() {
		o := newOutcome(op, StillAlive, r, "%s: %d process(es) survived %s", r, len(res.Alive), s.cfg.StopTimeout)
		o.Alive = res.Alive
		return s.emit(o)
	}

	updated, err := s.store.Modify(ctx, r.ID, func(rec *record.Record) error {
		rec.MarkStopped()
		return nil
	})
	if err != nil {
		r.MarkStopped()
		return s.emit(newOutcome(op, PersistFailed, r, "stopped but saving failed: %v", err))
	}
	return s.emit(newOutcome(op, Killed, updated, "stopped %s (%d process(es))", updated, len(res.Gone)))
}

// ResetRecord lifts the crash-loop breaker of r.
func (s *Supervisor) ResetRecord(ctx context.Context, r record.Record) Outcome {
	unlock := s.lockRecord(r.ID)
	defer unlock()

	updated, err := s.store.Modify(ctx, r.ID, func(rec *record.Record) error {
		rec.Reset()
		return nil
	})
	switch {
	case table.IsNotFound(err):
		return s.emit(newOutcome(OpReset, NotFound, r, "%s no longer exists", r))
	case err != nil:
		return s.emit(newOutcome(OpReset, PersistFailed, r, "saving failed: %v", err))
	}
	return s.emit(newOutcome(OpReset, ResetDone, updated, "reset restart count of %s", updated))
}

// RemoveRecord stops r if it is running and deletes it.
func (s *Supervisor) RemoveRecord(ctx context.Context, r record.Record) Outcome {
	unlock := s.lockRecord(r.ID)
	defer unlock()

	if s.isBackend(r) {
		return s.emit(newOutcome(OpRemove, Protected, r, "%s is the daemon itself", r))
	}

	if s.checker.ResolveRecord(r).Running() {
		stopped := s.stopLocked(ctx, OpRemove, r)
		if stopped.Code != Killed && stopped.Code != NotRunning {
			return stopped
		}
		if stopped.Record != nil {
			r = *stopped.Record
		}
	}

	found, err := s.store.Delete(ctx, r)
	switch {
	case err != nil:
		return s.emit(newOutcome(OpRemove, PersistFailed, r, "deleting failed: %v", err))
	case !found:
		return s.emit(newOutcome(OpRemove, NotFound, r, "%s no longer exists", r))
	}
	if err := s.spawner.ReleaseLogs(r); err != nil {
		s.logger.Warn("closing log files failed", "id", r.ID, "error", err)
	}
	r.PID = record.NoPID
	return s.emit(newOutcome(OpRemove, Removed, r, "removed %s", r))
}
