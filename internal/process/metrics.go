package process

import (
	"fmt"
	"io/fs"
	"math"
	"time"

	"github.com/prometheus/procfs"
)

// DefaultCPUSampleWindow is how long Sample watches CPU time.
const DefaultCPUSampleWindow = 100 * time.Millisecond

// Metrics is a best-effort snapshot of one process.
type Metrics struct {
	PID           int       `json:"pid"`
	PPID          int       `json:"ppid"`
	State         string    `json:"state"`
	CPUPercent    float64   `json:"cpu_percent"`
	MemoryPercent float64   `json:"memory_percent"`
	RSSBytes      uint64    `json:"rss_bytes"`
	OpenFiles     int       `json:"open_files"`
	Threads       int       `json:"threads"`
	StartedAt     time.Time `json:"started_at"`
	Cmdline       []string  `json:"cmdline,omitempty"`
	Children      []int     `json:"children,omitempty"`
}

// Tree is a process and its descendants sampled over the same window.
type Tree struct {
	Root     Metrics
	Children []Metrics
}

// Sample collects metrics for pid and every descendant, measuring CPU usage
// over window. The process table is scanned once before and once after the
// window, and memory totals are read once, however large the tree is.
// Fields that cannot be read (open files of another user's process, for
// example) are left zero.
func (p ProcFS) Sample(pid int, window time.Duration) (Tree, error) {
	fsys, err := p.mount()
	if err != nil {
		return Tree{}, err
	}

	ts := treeSampler{fsys: fsys, window: window}
	if window > 0 {
		if ts.before, err = takeSnapshot(fsys); err != nil {
			return Tree{}, fmt.Errorf("scanning processes: %w", err)
		}
		if _, ok := ts.before.stats[pid]; !ok {
			return Tree{}, fmt.Errorf("reading stat of %d: %w", pid, fs.ErrNotExist)
		}
		time.Sleep(window)
	}
	if ts.after, err = takeSnapshot(fsys); err != nil {
		return Tree{}, fmt.Errorf("scanning processes: %w", err)
	}
	if _, ok := ts.after.stats[pid]; !ok {
		return Tree{}, fmt.Errorf("reading stat of %d: %w", pid, fs.ErrNotExist)
	}

	if mi, err := fsys.Meminfo(); err == nil && mi.MemTotalBytes != nil {
		ts.memTotal = *mi.MemTotalBytes
	}

	t := Tree{Root: ts.metrics(pid)}
	t.Root.Children = ts.after.descendants(pid)
	for _, child := range t.Root.Children {
		t.Children = append(t.Children, ts.metrics(child))
	}
	return t, nil
}

type treeSampler struct {
	fsys     procfs.FS
	window   time.Duration
	before   snapshot
	after    snapshot
	memTotal uint64
}

func (ts treeSampler) metrics(pid int) Metrics {
	st := ts.after.stats[pid]
	m := Metrics{
		PID:     pid,
		PPID:    st.PPID,
		State:   st.State,
		Threads: st.NumThreads,
	}

	if prev, ok := ts.before.stats[pid]; ok && ts.window > 0 {
		used := st.CPUTime() - prev.CPUTime()
		m.CPUPercent = math.Max(0, used/ts.window.Seconds()*100)
	}

	if rss := st.ResidentMemory(); rss > 0 {
		m.RSSBytes = uint64(rss)
		if ts.memTotal > 0 {
			m.MemoryPercent = float64(m.RSSBytes) / float64(ts.memTotal) * 100
		}
	}

	if start, err := st.StartTime(); err == nil {
		sec, frac := math.Modf(start)
		m.StartedAt = time.Unix(int64(sec), int64(frac*float64(time.Second)))
	}

	if proc, err := ts.fsys.Proc(pid); err == nil {
		m.OpenFiles, _ = proc.FileDescriptorsLen()
		m.Cmdline, _ = proc.CmdLine()
	}
	return m
}
