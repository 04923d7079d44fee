package record

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// NoID marks a record whose id has not been assigned yet.
const NoID = -1

// NoPID is the pid of a record that is not running.
const NoPID = -1

// Record is the persisted description and runtime state of one supervised
// process.
type Record struct {
	ID          int     `json:"id"`
	Name        string  `json:"name"`
	Cmd         Command `json:"cmd"`
	Cwd         string  `json:"cwd"`
	Interpreter string  `json:"interpreter,omitempty"`
	Shell       bool    `json:"shell"`
	// Nohup detaches the child: it runs under /usr/bin/nohup in its own
	// process group so the daemon exiting does not signal it.
	Nohup  bool   `json:"nohup"`
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`

	PID          int  `json:"pid"`
	RestartCount int  `json:"restart_count"`
	MaxRestart   int  `json:"max_restart"`
	Autorun      bool `json:"autorun"`
	// AutorunExclude suspends autorun after an explicit stop.
	AutorunExclude bool `json:"autorun_exclude"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Definition is the caller-supplied part of a record, as accepted by create.
// Zero values mean "use the default".
type Definition struct {
	ID          *int    `json:"id,omitempty"`
	Name        string  `json:"name,omitempty"`
	Cmd         Command `json:"cmd"`
	Cwd         string  `json:"cwd,omitempty"`
	Interpreter string  `json:"interpreter,omitempty"`
	Shell       bool    `json:"shell,omitempty"`
	Nohup       bool    `json:"nohup,omitempty"`
	Stdout      string  `json:"stdout,omitempty"`
	Stderr      string  `json:"stderr,omitempty"`
	MaxRestart  int     `json:"max_restart,omitempty"`
	Autorun     bool    `json:"autorun,omitempty"`
}

// Defaults are the values applied to a Definition by New.
type Defaults struct {
	Cwd        string
	MaxRestart int
}

// New builds an unsaved record from a definition. The id stays NoID unless
// the definition carries one; log paths are filled in once the id is known
// (see FillLogPaths).
func New(def Definition, d Defaults) (Record, error) {
	if def.Cmd.IsZero() {
		return Record{}, ErrEmptyCommand
	}

	r := Record{
		ID:          NoID,
		Name:        DeriveName(def.Name, def.Cmd),
		Cmd:         def.Cmd,
		Cwd:         def.Cwd,
		Interpreter: def.Interpreter,
		Shell:       def.Shell,
		Nohup:       def.Nohup,
		Stdout:      def.Stdout,
		Stderr:      def.Stderr,
		PID:         NoPID,
		MaxRestart:  def.MaxRestart,
		Autorun:     def.Autorun,
	}
	if def.ID != nil {
		if *def.ID < 0 {
			return Record{}, fmt.Errorf("%w: %d", ErrInvalidID, *def.ID)
		}
		r.ID = *def.ID
	}
	if err := r.resolvePaths(d.Cwd); err != nil {
		return Record{}, err
	}
	if r.MaxRestart <= 0 {
		r.MaxRestart = d.MaxRestart
	}
	if r.Name == "" {
		return Record{}, ErrEmptyName
	}
	return r, nil
}

// resolvePaths makes Cwd absolute, relative to defaultCwd, and anchors
// relative log paths at Cwd. The kernel reports a process's cwd as an
// absolute path, so a relative one would never match in liveness checks.
func (r *Record) resolvePaths(defaultCwd string) error {
	switch {
	case r.Cwd == "":
		r.Cwd = defaultCwd
	case !filepath.IsAbs(r.Cwd):
		r.Cwd = filepath.Join(defaultCwd, r.Cwd)
	}
	if r.Cwd == "" {
		return nil
	}
	if !filepath.IsAbs(r.Cwd) {
		return fmt.Errorf("%w: %q", ErrRelativeCwd, r.Cwd)
	}
	r.Cwd = filepath.Clean(r.Cwd)

	if r.Stdout != "" && !filepath.IsAbs(r.Stdout) {
		r.Stdout = filepath.Join(r.Cwd, r.Stdout)
	}
	if r.Stderr != "" && !filepath.IsAbs(r.Stderr) {
		r.Stderr = filepath.Join(r.Cwd, r.Stderr)
	}
	return nil
}

// DeriveName returns the sanitized name, taken from name if set and from the
// first token of cmd otherwise.
func DeriveName(name string, cmd Command) string {
	if name == "" {
		if f := cmd.Fields(); len(f) > 0 {
			name = f[0]
		}
	}
	return Sanitize(name)
}

// Sanitize makes a name safe to embed in a log file name: spaces become
// underscores and path separators are dropped.
func Sanitize(name string) string {
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.ReplaceAll(name, "./", "")
	return strings.ReplaceAll(name, "/", "")
}

// IsHidden reports whether name is a bookkeeping name such as __backend__.
func IsHidden(name string) bool {
	return len(name) > 4 && strings.HasPrefix(name, "__") && strings.HasSuffix(name, "__")
}

// Hidden reports whether the record is a bookkeeping record.
func (r Record) Hidden() bool { return IsHidden(r.Name) }

// FillLogPaths defaults Stdout and Stderr to <logDir>/<name>_<id>.log and
// .err. Paths that are already set are left alone, so they stay stable for
// the record's lifetime.
func (r *Record) FillLogPaths(logDir string) {
	base := fmt.Sprintf("%s_%d", r.Name, r.ID)
	if r.Stdout == "" {
		r.Stdout = filepath.Join(logDir, base+".log")
	}
	if r.Stderr == "" {
		r.Stderr = filepath.Join(logDir, base+".err")
	}
}

// CanRestart reports whether the crash-loop breaker still allows a spawn.
func (r Record) CanRestart() bool { return r.RestartCount < r.MaxRestart }

// MarkStarted applies the state change of a successful spawn.
func (r *Record) MarkStarted(pid int) {
	r.PID = pid
	r.RestartCount++
	r.AutorunExclude = false
}

// MarkStopped applies the state change of an explicit stop.
func (r *Record) MarkStopped() {
	r.PID = NoPID
	r.AutorunExclude = true
}

// Reset lifts the crash-loop breaker. Running state and autorun flags are
// untouched.
func (r *Record) Reset() { r.RestartCount = 0 }

func (r Record) String() string {
	return fmt.Sprintf("%s (id=%d)", r.Name, r.ID)
}
