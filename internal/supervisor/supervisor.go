package supervisor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/nerrad567/gray-logic-pm/internal/process"
	"github.com/nerrad567/gray-logic-pm/internal/record"
	"github.com/nerrad567/gray-logic-pm/internal/table"
)

// Logger is the logging surface used by the supervisor.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Store is the persisted process table.
type Store interface {
	Find(ctx context.Context, sel record.Selector) ([]record.Record, error)
	NextIDFrom(ctx context.Context, start int) (int, error)
	Get(ctx context.Context, id int) (record.Record, error)
	Insert(ctx context.Context, rec record.Record, rewrite bool) (table.InsertResult, error)
	Modify(ctx context.Context, id int, fn func(*record.Record) error) (record.Record, error)
	Delete(ctx context.Context, rec record.Record) (bool, error)
}

// Spawner starts children and tracks the ones it started.
type Spawner interface {
	Spawn(r record.Record) (*process.Handle, error)
	ReapPID(pid int) (process.Exit, bool)
	StartedAt(pid int) (time.Time, bool)
	ReleaseLogs(r record.Record) error
	Len() int
}

// LivenessChecker resolves stored pids.
type LivenessChecker interface {
	ResolveRecord(r record.Record) process.Liveness
}

// TreeKiller terminates process trees.
type TreeKiller interface {
	KillTree(pid int, sig syscall.Signal, timeout time.Duration) process.TreeResult
}

// Sampler reads live metrics for a process and its descendants.
type Sampler interface {
	Sample(pid int, window time.Duration) (process.Tree, error)
}

// EventPublisher receives every lifecycle outcome.
type EventPublisher interface {
	PublishOutcome(o Outcome) error
}

// Config holds the supervisor settings.
type Config struct {
	// DefaultCwd is the working directory of records created without one.
	DefaultCwd string
	// DefaultMaxRestart is the crash-loop ceiling of records created without one.
	DefaultMaxRestart int
	// StopSignal is sent to the whole tree on stop.
	StopSignal syscall.Signal
	// StopTimeout bounds the wait for the tree to exit.
	StopTimeout time.Duration
	// SampleWindow is the CPU measurement window used by Status.
	SampleWindow time.Duration
	// BackendName is the hidden record describing the daemon itself.
	BackendName string
	// WatchdogName and WatchdogCmd describe the optional watchdog record.
	WatchdogName        string
	WatchdogCmd         string
	WatchdogInterpreter string
	// WatchdogFirstID is where the search for the watchdog's id starts.
	WatchdogFirstID int
	// AutorunInterval re-starts stopped autorun records periodically. Zero
	// disables it.
	AutorunInterval time.Duration
	// Version is reported by Ping.
	Version string
}

// Deps are the collaborators of a Supervisor. Events and Logger are optional.
type Deps struct {
	Store   Store
	Spawner Spawner
	Checker LivenessChecker
	Killer  TreeKiller
	Sampler Sampler
	Events  EventPublisher
	Logger  Logger
}

// Supervisor orchestrates the lifecycle of records.
type Supervisor struct {
	cfg     Config
	store   Store
	spawner Spawner
	checker LivenessChecker
	killer  TreeKiller
	sampler Sampler
	events  EventPublisher
	logger  Logger
	now     func() time.Time
	booted  time.Time

	mu    sync.Mutex
	locks map[int]*sync.Mutex
}

// New creates a Supervisor. Store, Spawner, Checker, Killer and Sampler are
// required.
func New(cfg Config, deps Deps) (*Supervisor, error) {
	if deps.Store == nil || deps.Spawner == nil || deps.Checker == nil || deps.Killer == nil || deps.Sampler == nil {
		return nil, errors.New("supervisor: store, spawner, checker, killer and sampler are required")
	}
	if cfg.DefaultCwd == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("supervisor: resolving default cwd: %w", err)
		}
		cfg.DefaultCwd = wd
	}
	if cfg.DefaultMaxRestart <= 0 {
		cfg.DefaultMaxRestart = 1000
	}
	if cfg.StopSignal == 0 {
		cfg.StopSignal = syscall.SIGTERM
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = process.DefaultKillTimeout
	}
	if cfg.SampleWindow <= 0 {
		cfg.SampleWindow = process.DefaultCPUSampleWindow
	}
	if cfg.BackendName == "" {
		cfg.BackendName = "__backend__"
	}
	if cfg.WatchdogName == "" {
		cfg.WatchdogName = "__cron_checker__"
	}
	if cfg.WatchdogFirstID < 1 {
		cfg.WatchdogFirstID = 1
	}

	s := &Supervisor{
		cfg:     cfg,
		store:   deps.Store,
		spawner: deps.Spawner,
		checker: deps.Checker,
		killer:  deps.Killer,
		sampler: deps.Sampler,
		events:  deps.Events,
		logger:  deps.Logger,
		now:     time.Now,
		locks:   make(map[int]*sync.Mutex),
	}
	if s.logger == nil {
		s.logger = noopLogger{}
	}
	s.booted = s.now()
	return s, nil
}

// lockRecord serialises lifecycle operations on one id within this process.
func (s *Supervisor) lockRecord(id int) func() {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// PingInfo answers a liveness check of the daemon.
type PingInfo struct {
	PID     int    `json:"pid"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
	Handles int    `json:"handles"`
}

// Ping reports that the supervisor is up.
func (s *Supervisor) Ping() PingInfo {
	return PingInfo{
		PID:     os.Getpid(),
		Version: s.cfg.Version,
		Uptime:  record.HumanDuration(s.now().Sub(s.booted)),
		Handles: s.spawner.Len(),
	}
}

// Create validates def and stores a new record. rewrite replaces records
// holding the same id or name.
func (s *Supervisor) Create(ctx context.Context, def record.Definition, rewrite bool) Outcome {
	const op = "create"

	rec, err := record.New(def, record.Defaults{Cwd: s.cfg.DefaultCwd, MaxRestart: s.cfg.DefaultMaxRestart})
	if err != nil {
		return newOutcome(op, Invalid, record.Record{ID: record.NoID, PID: record.NoPID, Name: def.Name}, "%v", err)
	}

	res, err := s.store.Insert(ctx, rec, rewrite)
	if err != nil {
		return s.emit(newOutcome(op, PersistFailed, rec, "storing record: %v", err))
	}

	var o Outcome
	switch res.Code {
	case table.IDConflict:
		o = newOutcome(op, IDConflict, rec, "id %d already exists", rec.ID)
		o.Record = nil
	case table.NameConflict:
		o = newOutcome(op, NameConflict, res.Record, "name %q is taken; stored as %q", rec.Name, res.Record.Name)
	default:
		o = newOutcome(op, Created, res.Record, "created %s", res.Record)
		if len(res.Replaced) > 0 {
			o.Message = fmt.Sprintf("created %s, replacing %v", res.Record, res.Replaced)
		}
	}
	return s.emit(o)
}

// Find returns the records matched by sel as stored.
func (s *Supervisor) Find(ctx context.Context, sel record.Selector) ([]record.Record, error) {
	return s.store.Find(ctx, sel)
}

// Entry is one record with its liveness and display projection.
type Entry struct {
	Record   record.Record `json:"record"`
	Liveness string        `json:"liveness"`
	View     record.View   `json:"view"`
}

// List returns the records matched by sel with their liveness resolved.
// Stored pids that no longer resolve are cleared and persisted.
func (s *Supervisor) List(ctx context.Context, sel record.Selector) ([]Entry, error) {
	recs, err := s.store.Find(ctx, sel)
	if err != nil {
		return nil, err
	}

	now := s.now()
	out := make([]Entry, 0, len(recs))
	for _, r := range recs {
		live := s.checker.ResolveRecord(r)
		if !live.Running() && r.PID != record.NoPID {
			r = s.clearStalePID(ctx, r)
		}
		started, _ := s.spawner.StartedAt(r.PID)
		out = append(out, Entry{
			Record:   r,
			Liveness: live.State.String(),
			View:     record.NewView(r, live.Running(), started, now),
		})
	}
	return out, nil
}

// clearStalePID resets a stored pid that no longer names the process. The
// stored pid is compared again under the table lock so a concurrent start is
// not undone.
func (s *Supervisor) clearStalePID(ctx context.Context, r record.Record) record.Record {
	stale := r.PID
	updated, err := s.store.Modify(ctx, r.ID, func(rec *record.Record) error {
		if rec.PID == stale {
			rec.PID = record.NoPID
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("clearing stale pid failed", "id", r.ID, "pid", stale, "error", err)
		r.PID = record.NoPID
		return r
	}
	s.logger.Debug("cleared stale pid", "id", r.ID, "pid", stale)
	return updated
}

// HandleExit records that a child spawned by this daemon was reaped.
func (s *Supervisor) HandleExit(ctx context.Context, e process.Exit) {
	s.logger.Info("process exited", "id", e.RecordID, "name", e.Name, "pid", e.PID, "code", e.Code, "signal", e.Signal)

	_, err := s.store.Modify(ctx, e.RecordID, func(rec *record.Record) error {
		if rec.PID == e.PID {
			rec.PID = record.NoPID
		}
		return nil
	})
	if err != nil && !table.IsNotFound(err) {
		s.logger.Warn("recording exit failed", "id", e.RecordID, "error", err)
	}

	msg := fmt.Sprintf("exited with code %d", e.Code)
	if e.Signal != "" {
		msg = "killed by " + e.Signal
	}
	s.emit(Outcome{
		Op:       "exit",
		Code:     NotRunning,
		Severity: SeverityOK,
		ID:       e.RecordID,
		Name:     e.Name,
		PID:      e.PID,
		Message:  msg,
	})
}

// emit publishes o and returns it unchanged.
func (s *Supervisor) emit(o Outcome) Outcome {
	switch o.Severity {
	case SeverityError:
		s.logger.Error("operation failed", "op", o.Op, "code", o.Code, "id", o.ID, "name", o.Name, "message", o.Message)
	case SeverityWarning:
		s.logger.Warn("operation refused", "op", o.Op, "code", o.Code, "id", o.ID, "name", o.Name, "message", o.Message)
	default:
		s.logger.Info("operation done", "op", o.Op, "code", o.Code, "id", o.ID, "name", o.Name, "pid", o.PID)
	}
	if s.events != nil {
		if err := s.events.PublishOutcome(o); err != nil {
			s.logger.Warn("publishing event failed", "op", o.Op, "id", o.ID, "error", err)
		}
	}
	return o
}
