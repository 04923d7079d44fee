package process

import (
	"github.com/prometheus/procfs"
)

// ProcFS reads process information from a procfs mount through
// prometheus/procfs.
type ProcFS struct {
	// Root is the procfs mount point, normally "/proc".
	Root string
}

// DefaultProcFS reads the host's /proc.
var DefaultProcFS = ProcFS{Root: procfs.DefaultMountPoint}

func (p ProcFS) mount() (procfs.FS, error) {
	return procfs.NewFS(p.Root)
}

// Stat reads /proc/<pid>/stat. Errors keep their os identity so callers can
// test them with errors.Is(err, fs.ErrNotExist) or fs.ErrPermission.
func (p ProcFS) Stat(pid int) (procfs.ProcStat, error) {
	fsys, err := p.mount()
	if err != nil {
		return procfs.ProcStat{}, err
	}
	proc, err := fsys.Proc(pid)
	if err != nil {
		return procfs.ProcStat{}, err
	}
	return proc.Stat()
}

// Cwd returns the current working directory of pid. procfs reports a
// vanished process as an empty path.
func (p ProcFS) Cwd(pid int) (string, error) {
	fsys, err := p.mount()
	if err != nil {
		return "", err
	}
	proc, err := fsys.Proc(pid)
	if err != nil {
		return "", err
	}
	return proc.Cwd()
}

// Descendants returns every process below pid, breadth first. Processes that
// exit during the scan are silently skipped.
func (p ProcFS) Descendants(pid int) ([]int, error) {
	fsys, err := p.mount()
	if err != nil {
		return nil, err
	}
	snap, err := takeSnapshot(fsys)
	if err != nil {
		return nil, err
	}
	return snap.descendants(pid), nil
}

// snapshot is one pass over every process in the mount.
type snapshot struct {
	stats    map[int]procfs.ProcStat
	children map[int][]int
}

func takeSnapshot(fsys procfs.FS) (snapshot, error) {
	procs, err := fsys.AllProcs()
	if err != nil {
		return snapshot{}, err
	}
	snap := snapshot{
		stats:    make(map[int]procfs.ProcStat, len(procs)),
		children: make(map[int][]int),
	}
	for _, proc := range procs {
		st, err := proc.Stat()
		if err != nil {
			continue
		}
		snap.stats[proc.PID] = st
		snap.children[st.PPID] = append(snap.children[st.PPID], proc.PID)
	}
	return snap, nil
}

func (s snapshot) descendants(pid int) []int {
	var out []int
	queue := []int{pid}
	seen := map[int]bool{pid: true}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, c := range s.children[cur] {
			if seen[c] {
				continue
			}
			seen[c] = true
			out = append(out, c)
			queue = append(queue, c)
		}
	}
	return out
}
