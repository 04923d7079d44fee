package process

import (
	"errors"
	"io/fs"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// DefaultKillTimeout bounds how long KillTree waits for members to exit.
const DefaultKillTimeout = 5 * time.Second

const killPollInterval = 20 * time.Millisecond

// Escalation is an optional follow-up signal sent to members still alive
// after the first timeout. It is disabled unless Enabled is set.
type Escalation struct {
	Enabled bool
	Signal  syscall.Signal
	Timeout time.Duration
}

// TreeResult partitions a process tree after a kill attempt.
type TreeResult struct {
	Gone  []int
	Alive []int
}

// Clean reports whether every member of the tree exited.
func (r TreeResult) Clean() bool { return len(r.Alive) == 0 }

// Terminator signals process trees and waits for them to exit.
type Terminator struct {
	fs         ProcFS
	escalation Escalation
	logger     Logger
}

// NewTerminator creates a Terminator. A nil logger discards output.
func NewTerminator(procfs ProcFS, esc Escalation, logger Logger) *Terminator {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Terminator{fs: procfs, escalation: esc, logger: logger}
}

// KillTree sends sig to pid and all of its descendants, then waits up to
// timeout for them to exit. Members that vanish before being signalled are
// counted as gone. Members still running after the wait are returned in
// Alive; that is reported to the caller, never treated as a failure.
func (t *Terminator) KillTree(pid int, sig syscall.Signal, timeout time.Duration) TreeResult {
	if !t.exists(pid) {
		return TreeResult{Gone: []int{pid}}
	}

	descendants, err := t.fs.Descendants(pid)
	if err != nil {
		t.logger.Warn("enumerating descendants failed", "pid", pid, "error", err)
	}
	if !t.exists(pid) {
		return TreeResult{Gone: []int{pid}}
	}

	members := append([]int{pid}, descendants...)
	var gone, pending []int
	for _, m := range members {
		if err := unix.Kill(m, sig); err != nil {
			if errors.Is(err, unix.ESRCH) {
				gone = append(gone, m)
				continue
			}
			t.logger.Warn("signal failed", "pid", m, "signal", sig.String(), "error", err)
		}
		pending = append(pending, m)
	}

	exited, alive := t.wait(pending, timeout)
	gone = append(gone, exited...)

	if len(alive) > 0 && t.escalation.Enabled {
		t.logger.Warn("escalating termination", "pid", pid, "alive", alive, "signal", t.escalation.Signal.String())
		for _, m := range alive {
			_ = unix.Kill(m, t.escalation.Signal)
		}
		exited, alive = t.wait(alive, t.escalation.Timeout)
		gone = append(gone, exited...)
	}

	return TreeResult{Gone: gone, Alive: alive}
}

// wait polls pids until all have exited or timeout elapses.
func (t *Terminator) wait(pids []int, timeout time.Duration) (gone, alive []int) {
	deadline := time.Now().Add(timeout)
	alive = pids
	for {
		var still []int
		for _, p := range alive {
			if t.exists(p) {
				still = append(still, p)
			} else {
				gone = append(gone, p)
			}
		}
		alive = still
		if len(alive) == 0 || !time.Now().Before(deadline) {
			return gone, alive
		}
		time.Sleep(killPollInterval)
	}
}

// exists reports whether pid names a process that has not yet exited.
// Zombies have exited; they only await reaping by their parent.
func (t *Terminator) exists(pid int) bool {
	st, err := t.fs.Stat(pid)
	if err != nil {
		return errors.Is(err, fs.ErrPermission)
	}
	switch st.State {
	case "Z", "X", "x":
		return false
	}
	return true
}
