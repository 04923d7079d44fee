package main

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"time"

	"github.com/nerrad567/gray-logic-pm/internal/audit"
	"github.com/nerrad567/gray-logic-pm/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-pm/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-pm/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-pm/internal/logcapture"
	"github.com/nerrad567/gray-logic-pm/internal/process"
	"github.com/nerrad567/gray-logic-pm/internal/supervisor"
	"github.com/nerrad567/gray-logic-pm/internal/table"
	"github.com/nerrad567/gray-logic-pm/migrations"
)

// stack is the in-process supervisor: database, table, process registry,
// lifecycle history and the supervisor over them. The daemon runs one for its lifetime; --direct
// builds one per command.
type stack struct {
	db      *database.DB
	table   *table.Table
	history *audit.SQLiteRepository
	procs   *process.Manager
	sup     *supervisor.Supervisor
}

// openStack opens and migrates the database and wires the supervisor.
// Every outcome is recorded in the history before reaching events, which may
// be nil.
func openStack(ctx context.Context, cfg *config.Config, log *logging.Logger, events supervisor.EventPublisher) (*stack, error) {
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	applied, err := db.Migrate(ctx, migrations.FS)
	if err != nil {
		db.Close() //nolint:errcheck // Already failing
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	if applied > 0 {
		log.Info("database migrations applied", "count", applied)
	}

	tbl, err := table.New(db.DB, table.Options{
		LockPath: cfg.Table.LockFile,
		LogDir:   cfg.LogDir(),
	})
	if err != nil {
		db.Close() //nolint:errcheck // Already failing
		return nil, fmt.Errorf("opening process table: %w", err)
	}

	history := audit.NewSQLiteRepository(db.DB)
	publishers := supervisor.Publishers{history}
	if events != nil {
		publishers = append(publishers, events)
	}

	procs := process.NewManager(process.Config{
		Capture:      captureOptions(cfg),
		ReapInterval: cfg.GetReconcileInterval(),
	})
	procs.SetLogger(log.With("component", "process"))

	sup, err := supervisor.New(supervisorConfig(cfg), supervisor.Deps{
		Store:   tbl,
		Spawner: procs,
		Checker: process.NewChecker(process.DefaultProcFS),
		Killer:  process.NewTerminator(process.DefaultProcFS, escalation(cfg), log.With("component", "killtree")),
		Sampler: process.DefaultProcFS,
		Events:  publishers,
		Logger:  log.With("component", "supervisor"),
	})
	if err != nil {
		db.Close() //nolint:errcheck // Already failing
		return nil, err
	}

	return &stack{db: db, table: tbl, history: history, procs: procs, sup: sup}, nil
}

// Close releases the log sinks and the database. Running children are left
// alone.
func (s *stack) Close() error {
	return errors.Join(s.procs.Close(), s.db.Close())
}

func supervisorConfig(cfg *config.Config) supervisor.Config {
	return supervisor.Config{
		DefaultMaxRestart:   cfg.Supervisor.DefaultMaxRestart,
		StopSignal:          syscall.SIGTERM,
		StopTimeout:         cfg.GetStopTimeout(),
		BackendName:         cfg.Supervisor.Backend.Name,
		WatchdogName:        cfg.Supervisor.Watchdog.Name,
		WatchdogCmd:         cfg.Supervisor.Watchdog.Cmd,
		WatchdogInterpreter: cfg.Supervisor.Watchdog.Interpreter,
		WatchdogFirstID:     cfg.Supervisor.Watchdog.FirstID,
		AutorunInterval:     cfg.GetAutorunInterval(),
		Version:             version,
	}
}

func captureOptions(cfg *config.Config) logcapture.Options {
	lc := cfg.LogCapture
	return logcapture.Options{
		RotationEnabled: lc.RotationEnabled,
		When:            lc.RotationWhen,
		Interval:        cfg.GetRotationInterval(),
		MaxSizeMB:       lc.MaxSizeMB,
		BackupCount:     lc.BackupCount,
		Compress:        lc.GzipEnabled,
		LocalTime:       true,
	}
}

func escalation(cfg *config.Config) process.Escalation {
	esc := cfg.Supervisor.Escalation
	if !esc.Enabled {
		return process.Escalation{}
	}
	// Validate already rejected unknown signal names.
	sig, _ := config.ParseSignal(esc.Signal)
	return process.Escalation{
		Enabled: true,
		Signal:  sig,
		Timeout: time.Duration(esc.Timeout) * time.Second,
	}
}
