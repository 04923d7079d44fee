package process

import (
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/nerrad567/gray-logic-pm/internal/logcapture"
	"github.com/nerrad567/gray-logic-pm/internal/record"
)

// DefaultReapInterval is how often the reconciliation loop polls handles.
const DefaultReapInterval = time.Second

// Logger defines the logging interface used by the process package.
// This matches the slog-based logger used across the daemon.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that discards all output.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Config holds the settings for a Manager.
type Config struct {
	// Capture configures rotation for every child's log files.
	Capture logcapture.Options

	// ReapInterval is the reconciliation loop period.
	ReapInterval time.Duration
}

// Handle is a child the daemon spawned and has not yet reaped.
type Handle struct {
	PID      int
	RecordID int
	Name     string
	Argv     []string
	Started  time.Time

	cmd     *exec.Cmd
	capture *logcapture.Capture
}

// Exit describes a reaped child.
type Exit struct {
	PID      int
	RecordID int
	Name     string
	// Code is the exit status, or -1 if the child was killed by a signal.
	Code   int
	Signal string
	At     time.Time
}

// Manager spawns children and owns the registry of their handles.
// The registry is keyed by pid and guarded by a mutex because request
// handlers and the reconciliation loop touch it concurrently.
type Manager struct {
	cfg    Config
	logger Logger
	now    func() time.Time

	// sinks keeps one log sink per path across restarts.
	sinks *logcapture.Pool

	mu      sync.Mutex
	handles map[int]*Handle
}

// NewManager creates a Manager with an empty registry.
func NewManager(cfg Config) *Manager {
	if cfg.ReapInterval <= 0 {
		cfg.ReapInterval = DefaultReapInterval
	}
	return &Manager{
		cfg:     cfg,
		logger:  noopLogger{},
		now:     time.Now,
		sinks:   logcapture.NewPool(cfg.Capture),
		handles: make(map[int]*Handle),
	}
}

// SetLogger sets the logger for the manager.
func (m *Manager) SetLogger(logger Logger) {
	if logger != nil {
		m.logger = logger
	}
}

// Spawn starts the process described by r with its output captured to r's
// log paths. Detached records get their own process group so a signal aimed
// at the daemon's group does not reach them.
//
// The returned error wraps ErrExecutableNotFound when the program is missing.
func (m *Manager) Spawn(r record.Record) (*Handle, error) {
	argv := BuildArgv(r)
	if len(argv) == 0 {
		return nil, record.ErrEmptyCommand
	}
	if err := resolveExecutable(argv, r.Cwd); err != nil {
		return nil, err
	}

	capture, err := logcapture.Open(r.Stdout, r.Stderr, m.sinks, m.logger)
	if err != nil {
		return nil, fmt.Errorf("opening log capture: %w", err)
	}

	cmd := exec.Command(argv[0], argv[1:]...) //nolint:gosec // commands are operator-defined
	cmd.Dir = r.Cwd
	cmd.Stdout = capture.Stdout.Writer()
	cmd.Stderr = capture.Stderr.Writer()
	if r.Nohup {
		cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	}

	if err := cmd.Start(); err != nil {
		capture.Abort()
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, syscall.ENOENT) {
			return nil, fmt.Errorf("%w: %v", ErrExecutableNotFound, err)
		}
		return nil, fmt.Errorf("starting %s: %w", argv[0], err)
	}
	capture.Started()

	h := &Handle{
		PID:      cmd.Process.Pid,
		RecordID: r.ID,
		Name:     r.Name,
		Argv:     argv,
		Started:  m.now(),
		cmd:      cmd,
		capture:  capture,
	}

	m.mu.Lock()
	m.handles[h.PID] = h
	m.mu.Unlock()

	m.logger.Info("process spawned", "id", r.ID, "name", r.Name, "pid", h.PID, "argv", argv)
	return h, nil
}

// ReleaseLogs closes the log sinks of a record that will not be spawned
// again.
func (m *Manager) ReleaseLogs(r record.Record) error {
	return m.sinks.Release(r.Stdout, r.Stderr)
}

// OpenSinks returns the number of log paths with an open sink.
func (m *Manager) OpenSinks() int { return m.sinks.Len() }

// Close closes every log sink. Children keep running.
func (m *Manager) Close() error {
	return m.sinks.Close()
}

// Handle returns the live handle for pid.
func (m *Manager) Handle(pid int) (*Handle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.handles[pid]
	return h, ok
}

// Handles returns a snapshot of the registry ordered by pid.
func (m *Manager) Handles() []Handle {
	m.mu.Lock()
	out := make([]Handle, 0, len(m.handles))
	for _, h := range m.handles {
		out = append(out, *h)
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].PID < out[j].PID })
	return out
}

// Len returns the number of unreaped handles.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.handles)
}

// StartedAt returns when the daemon spawned pid, if it did.
func (m *Manager) StartedAt(pid int) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if h, ok := m.handles[pid]; ok {
		return h.Started, true
	}
	return time.Time{}, false
}

// Reap collects every child that has terminated, without blocking, and
// removes it from the registry.
func (m *Manager) Reap() []Exit {
	m.mu.Lock()
	pids := make([]int, 0, len(m.handles))
	for pid := range m.handles {
		pids = append(pids, pid)
	}
	m.mu.Unlock()

	var exits []Exit
	for _, pid := range pids {
		if e, ok := m.ReapPID(pid); ok {
			exits = append(exits, e)
		}
	}
	return exits
}

// ReapPID collects pid if it is a registered child that has terminated.
func (m *Manager) ReapPID(pid int) (Exit, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.handles[pid]
	if !ok {
		return Exit{}, false
	}

	var ws unix.WaitStatus
	wpid, err := unix.Wait4(pid, &ws, unix.WNOHANG, nil)
	switch {
	case err == nil && wpid == 0:
		return Exit{}, false
	case err != nil && !errors.Is(err, unix.ECHILD):
		m.logger.Warn("wait failed", "pid", pid, "error", err)
		return Exit{}, false
	}

	// Reaped now, or already reaped elsewhere (ECHILD): either way the
	// handle no longer tracks a process.
	delete(m.handles, pid)
	_ = h.cmd.Process.Release()

	e := Exit{PID: pid, RecordID: h.RecordID, Name: h.Name, Code: -1, At: m.now()}
	if err == nil {
		switch {
		case ws.Exited():
			e.Code = ws.ExitStatus()
		case ws.Signaled():
			e.Signal = unix.SignalName(ws.Signal())
		}
	}
	m.logger.Debug("process reaped", "pid", pid, "id", h.RecordID, "code", e.Code, "signal", e.Signal)
	return e, true
}

// WaitOutput blocks until both captured streams have drained or the timeout
// elapses. It reports whether draining finished.
func (h *Handle) WaitOutput(timeout time.Duration) bool {
	select {
	case <-h.capture.Done():
		return true
	case <-time.After(timeout):
		return false
	}
}
