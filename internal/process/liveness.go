package process

import (
	"errors"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/nerrad567/gray-logic-pm/internal/record"
)

// State is the outcome of resolving a stored pid against the OS.
type State int

const (
	// Gone means no process has the pid (or the stored pid was never set).
	Gone State = iota
	// Alive means the pid is running in the record's working directory.
	Alive
	// Zombie means the process exited but has not been reaped.
	Zombie
	// Denied means the OS refused to describe the process.
	Denied
	// Reused means the pid now belongs to a process in another directory.
	Reused
)

func (s State) String() string {
	switch s {
	case Alive:
		return "alive"
	case Zombie:
		return "zombie"
	case Denied:
		return "denied"
	case Reused:
		return "reused"
	default:
		return "gone"
	}
}

// Liveness is the verdict for one stored pid.
type Liveness struct {
	State State
	PID   int
}

// Running reports whether the pid is confirmed to be the recorded process.
// Every state except Alive means "not running".
func (l Liveness) Running() bool { return l.State == Alive }

// Checker resolves stored pids against procfs.
//
// A stored pid is trusted only if the live process's working directory
// matches the recorded one. Treating a live process as dead is tolerated;
// acting on a recycled pid is not.
type Checker struct {
	fs ProcFS
}

// NewChecker returns a Checker reading procfs.
func NewChecker(procfs ProcFS) *Checker {
	return &Checker{fs: procfs}
}

// Resolve checks pid against cwd. OS errors never escape: they become
// Gone, Zombie or Denied.
func (c *Checker) Resolve(pid int, cwd string) Liveness {
	if pid <= 0 {
		return Liveness{State: Gone, PID: record.NoPID}
	}

	st, err := c.fs.Stat(pid)
	if err != nil {
		return Liveness{State: classify(err), PID: pid}
	}
	switch st.State {
	case "Z":
		return Liveness{State: Zombie, PID: pid}
	case "X", "x":
		return Liveness{State: Gone, PID: pid}
	}

	actual, err := c.fs.Cwd(pid)
	switch {
	case err != nil:
		return Liveness{State: classify(err), PID: pid}
	case actual == "":
		// Exited between the two reads.
		return Liveness{State: Gone, PID: pid}
	}
	if !sameDir(actual, cwd) {
		return Liveness{State: Reused, PID: pid}
	}
	return Liveness{State: Alive, PID: pid}
}

// ResolveRecord checks the pid stored in r.
func (c *Checker) ResolveRecord(r record.Record) Liveness {
	return c.Resolve(r.PID, r.Cwd)
}

func classify(err error) State {
	switch {
	case errors.Is(err, fs.ErrPermission):
		return Denied
	default:
		// ENOENT, ESRCH and anything unexpected: the process is not usable.
		return Gone
	}
}

// sameDir compares a procfs cwd link target with a recorded directory.
// Symlinks in the recorded path are resolved when possible, since the kernel
// always reports the physical path.
func sameDir(actual, recorded string) bool {
	if recorded == "" {
		return false
	}
	actual = strings.TrimSuffix(actual, " (deleted)")
	want := filepath.Clean(recorded)
	if resolved, err := filepath.EvalSymlinks(want); err == nil {
		want = resolved
	}
	return filepath.Clean(actual) == want
}
