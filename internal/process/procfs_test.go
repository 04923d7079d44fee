package process

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"
)

type fakeEntry struct {
	ppid  int
	state byte
	cwd   string
}

func statLine(pid, ppid int, state byte, comm string) string {
	// pid (comm) state ppid pgrp session tty tpgid flags minflt cminflt majflt
	// cmajflt utime stime cutime cstime priority nice threads itrealvalue
	// starttime vsize rss rsslim, then the remaining fields zeroed.
	return strconv.Itoa(pid) + " (" + comm + ") " + string(state) + " " + strconv.Itoa(ppid) +
		" 1 1 0 -1 0 0 0 0 0 250 50 0 0 20 0 3 0 12345 1000 42 18446744073709551615 " +
		strings.Repeat("0 ", 13) + "17 0 0 0 0 0 0\n"
}

// fakeProc builds a minimal procfs tree.
func fakeProc(t *testing.T, procs map[int]fakeEntry) ProcFS {
	t.Helper()
	root := t.TempDir()
	for pid, e := range procs {
		dir := filepath.Join(root, strconv.Itoa(pid))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
		line := statLine(pid, e.ppid, e.state, "proc "+strconv.Itoa(pid))
		if err := os.WriteFile(filepath.Join(dir, "stat"), []byte(line), 0o644); err != nil {
			t.Fatal(err)
		}
		if e.cwd != "" {
			if err := os.Symlink(e.cwd, filepath.Join(dir, "cwd")); err != nil {
				t.Fatal(err)
			}
		}
	}
	os.WriteFile(filepath.Join(root, "stat"), []byte("cpu  1 2 3 4 5 6 7 8 9 10\nbtime 1700000000\nprocesses 9\n"), 0o644)
	os.WriteFile(filepath.Join(root, "meminfo"), []byte("MemTotal:       16384 kB\nMemFree:        1 kB\n"), 0o644)
	return ProcFS{Root: root}
}

func TestStatFromFakeProc(t *testing.T) {
	p := fakeProc(t, map[int]fakeEntry{42: {ppid: 7, state: 'S'}})

	st, err := p.Stat(42)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if st.PPID != 7 {
		t.Errorf("PPID = %d, want 7", st.PPID)
	}
	if st.State != "S" {
		t.Errorf("State = %q, want %q", st.State, "S")
	}
	if st.NumThreads != 3 {
		t.Errorf("NumThreads = %d, want 3", st.NumThreads)
	}

	if _, err := p.Stat(43); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Stat(missing) error = %v, want fs.ErrNotExist", err)
	}
}

func TestDescendants(t *testing.T) {
	p := fakeProc(t, map[int]fakeEntry{
		1:  {ppid: 0, state: 'S'},
		10: {ppid: 1, state: 'S'},
		11: {ppid: 10, state: 'S'},
		12: {ppid: 10, state: 'S'},
		13: {ppid: 11, state: 'Z'},
		20: {ppid: 1, state: 'S'},
	})

	got, err := p.Descendants(10)
	if err != nil {
		t.Fatalf("Descendants: %v", err)
	}
	sort.Ints(got)
	if want := []int{11, 12, 13}; !reflect.DeepEqual(got, want) {
		t.Errorf("Descendants(10) = %v, want %v", got, want)
	}

	got, _ = p.Descendants(20)
	if len(got) != 0 {
		t.Errorf("Descendants(20) = %v, want none", got)
	}
}

func TestResolveFakeProc(t *testing.T) {
	work := t.TempDir()
	p := fakeProc(t, map[int]fakeEntry{
		100: {ppid: 1, state: 'S', cwd: work},
		101: {ppid: 1, state: 'Z', cwd: work},
		102: {ppid: 1, state: 'X', cwd: work},
		103: {ppid: 1, state: 'S', cwd: "/somewhere/else"},
		104: {ppid: 1, state: 'S'},
	})
	c := NewChecker(p)

	tests := []struct {
		name string
		pid  int
		want State
	}{
		{"alive in recorded cwd", 100, Alive},
		{"zombie", 101, Zombie},
		{"dead", 102, Gone},
		{"pid reused elsewhere", 103, Reused},
		{"cwd vanished", 104, Gone},
		{"no such pid", 105, Gone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Resolve(tt.pid, work); got.State != tt.want {
				t.Errorf("Resolve(%d) = %v, want %v", tt.pid, got.State, tt.want)
			}
		})
	}
}

func TestSampleTreeFromOneScan(t *testing.T) {
	p := fakeProc(t, map[int]fakeEntry{
		1:  {ppid: 0, state: 'S'},
		10: {ppid: 1, state: 'S'},
		11: {ppid: 10, state: 'S'},
		12: {ppid: 11, state: 'R'},
	})

	tree, err := p.Sample(10, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}

	if got, want := tree.Root.Children, []int{11, 12}; !reflect.DeepEqual(got, want) {
		t.Errorf("Root.Children = %v, want %v", got, want)
	}
	if len(tree.Children) != 2 || tree.Children[0].PID != 11 || tree.Children[1].PID != 12 {
		t.Fatalf("Children = %+v, want pids 11 and 12", tree.Children)
	}
	if got := tree.Children[1].State; got != "R" {
		t.Errorf("Children[1].State = %q, want %q", got, "R")
	}

	wantRSS := uint64(42 * os.Getpagesize())
	wantStart := time.Unix(1700000000, 0).Add(123450 * time.Millisecond)
	for _, m := range append([]Metrics{tree.Root}, tree.Children...) {
		if m.RSSBytes != wantRSS {
			t.Errorf("pid %d RSSBytes = %d, want %d", m.PID, m.RSSBytes, wantRSS)
		}
		if want := float64(wantRSS) / (16384 * 1024) * 100; m.MemoryPercent != want {
			t.Errorf("pid %d MemoryPercent = %v, want %v", m.PID, m.MemoryPercent, want)
		}
		if m.Threads != 3 {
			t.Errorf("pid %d Threads = %d, want 3", m.PID, m.Threads)
		}
		if m.CPUPercent != 0 {
			t.Errorf("pid %d CPUPercent = %v, want 0 for unchanged counters", m.PID, m.CPUPercent)
		}
		if d := m.StartedAt.Sub(wantStart); d < -time.Millisecond || d > time.Millisecond {
			t.Errorf("pid %d StartedAt = %v, want %v", m.PID, m.StartedAt, wantStart)
		}
	}

	if _, err := p.Sample(99, 0); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Sample(missing) error = %v, want fs.ErrNotExist", err)
	}
}

func TestStatSelf(t *testing.T) {
	st, err := DefaultProcFS.Stat(os.Getpid())
	if err != nil {
		t.Fatalf("Stat(self): %v", err)
	}
	if st.PID != os.Getpid() {
		t.Errorf("PID = %d, want %d", st.PID, os.Getpid())
	}
	if st.PPID != os.Getppid() {
		t.Errorf("PPID = %d, want %d", st.PPID, os.Getppid())
	}
}

func TestSampleSelf(t *testing.T) {
	tree, err := DefaultProcFS.Sample(os.Getpid(), 10*time.Millisecond)
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	m := tree.Root
	if m.OpenFiles == 0 {
		t.Error("OpenFiles = 0, want > 0")
	}
	if m.RSSBytes == 0 {
		t.Error("RSSBytes = 0, want > 0")
	}
	if m.Threads == 0 {
		t.Error("Threads = 0, want > 0")
	}
	if len(m.Cmdline) == 0 {
		t.Error("Cmdline is empty")
	}
	if m.StartedAt.After(time.Now()) {
		t.Errorf("StartedAt = %v is in the future", m.StartedAt)
	}
}
