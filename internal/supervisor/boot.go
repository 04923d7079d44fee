package supervisor

import (
	"context"
	"os"
	"time"

	"github.com/nerrad567/gray-logic-pm/internal/process"
	"github.com/nerrad567/gray-logic-pm/internal/record"
	"github.com/nerrad567/gray-logic-pm/internal/table"
)

// BackendID is the id of the record describing the daemon itself.
const BackendID = 0

const backendMaxRestart = 100000

// Boot prepares the table for a freshly started daemon: it registers the
// daemon as the backend record, ensures the watchdog record when one is
// configured, and starts every autorun-enabled record. It returns the start
// outcomes.
func (s *Supervisor) Boot(ctx context.Context) ([]Outcome, error) {
	if err := s.registerBackend(ctx); err != nil {
		return nil, err
	}
	if s.cfg.WatchdogCmd != "" {
		if err := s.ensureWatchdog(ctx); err != nil {
			return nil, err
		}
	}

	recs, err := s.store.Find(ctx, autorunEnabled())
	if err != nil {
		return nil, err
	}
	var out []Outcome
	for _, r := range recs {
		out = append(out, s.StartRecord(ctx, r))
	}
	s.logger.Info("boot complete", "autorun", len(recs))
	return out, nil
}

func autorunEnabled() record.Selector {
	return record.ParseSelector(record.SelectAutorunEnabled)
}

// registerBackend upserts the backend record with this process's pid.
func (s *Supervisor) registerBackend(ctx context.Context) error {
	wd, err := os.Getwd()
	if err != nil {
		wd = s.cfg.DefaultCwd
	}
	pid := os.Getpid()

	_, err = s.store.Modify(ctx, BackendID, func(rec *record.Record) error {
		rec.PID = pid
		rec.Cwd = wd
		return nil
	})
	if err == nil {
		s.logger.Debug("backend record updated", "pid", pid)
		return nil
	}
	if !table.IsNotFound(err) {
		return err
	}

	backend := record.Record{
		ID:         BackendID,
		Name:       s.cfg.BackendName,
		Cmd:        record.Argv(os.Args...),
		Cwd:        wd,
		PID:        pid,
		MaxRestart: backendMaxRestart,
	}
	if _, err := s.store.Insert(ctx, backend, true); err != nil {
		return err
	}
	s.logger.Info("backend record created", "pid", pid)
	return nil
}

// ensureWatchdog creates the watchdog record unless one already exists.
// It is autorun so Boot starts it.
func (s *Supervisor) ensureWatchdog(ctx context.Context) error {
	existing, err := s.store.Find(ctx, record.ParseSelector(s.cfg.WatchdogName))
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	id, err := s.store.NextIDFrom(ctx, s.cfg.WatchdogFirstID)
	if err != nil {
		return err
	}
	o := s.Create(ctx, record.Definition{
		ID:          &id,
		Name:        s.cfg.WatchdogName,
		Cmd:         record.Line(s.cfg.WatchdogCmd),
		Interpreter: s.cfg.WatchdogInterpreter,
		Autorun:     true,
	}, false)
	if o.Failed() {
		s.logger.Warn("watchdog not created", "message", o.Message)
	}
	return nil
}

// RunAutorun periodically starts autorun-enabled records that are not
// running, still bounded by each record's restart ceiling. It returns nil
// when the interval is zero or ctx is cancelled.
func (s *Supervisor) RunAutorun(ctx context.Context) error {
	if s.cfg.AutorunInterval <= 0 {
		return nil
	}
	ticker := time.NewTicker(s.cfg.AutorunInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.autorunOnce(ctx)
		}
	}
}

func (s *Supervisor) autorunOnce(ctx context.Context) []Outcome {
	recs, err := s.store.Find(ctx, autorunEnabled())
	if err != nil {
		s.logger.Warn("autorun scan failed", "error", err)
		return nil
	}
	var out []Outcome
	for _, r := range recs {
		if s.checker.ResolveRecord(r).Running() || !r.CanRestart() {
			continue
		}
		out = append(out, s.StartRecord(ctx, r))
	}
	return out
}

// MetricsSink stores periodic process samples.
type MetricsSink interface {
	WriteProcessSample(id int, name string, m process.Metrics)
}

// RunSampler writes a metrics sample for every running record to sink each
// interval until ctx is cancelled.
func (s *Supervisor) RunSampler(ctx context.Context, interval time.Duration, sink MetricsSink) error {
	if interval <= 0 || sink == nil {
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			rows, err := s.Status(ctx, record.ParseSelector(record.SelectAll))
			if err != nil {
				s.logger.Warn("sampling scan failed", "error", err)
				continue
			}
			for _, row := range rows {
				if row.Metrics != nil {
					sink.WriteProcessSample(row.Record.ID, row.Record.Name, *row.Metrics)
				}
			}
		}
	}
}
