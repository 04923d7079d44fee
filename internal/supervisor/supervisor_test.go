package supervisor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-pm/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-pm/internal/process"
	"github.com/nerrad567/gray-logic-pm/internal/record"
	"github.com/nerrad567/gray-logic-pm/internal/table"
	"github.com/nerrad567/gray-logic-pm/migrations"
)

type recordingPublisher struct {
	mu       sync.Mutex
	outcomes []Outcome
}

func (p *recordingPublisher) PublishOutcome(o Outcome) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.outcomes = append(p.outcomes, o)
	return nil
}

func (p *recordingPublisher) codes() []Code {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Code, len(p.outcomes))
	for i, o := range p.outcomes {
		out[i] = o.Code
	}
	return out
}

type harness struct {
	sup    *Supervisor
	tbl    *table.Table
	procs  *process.Manager
	events *recordingPublisher
	dir    string
}

func newHarness(t *testing.T, mutate func(*Config)) *harness {
	t.Helper()
	dir := t.TempDir()

	db, err := database.Open(database.Config{Path: filepath.Join(dir, "graypm.db"), WALMode: true, BusyTimeout: 5})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup
	if _, err := db.Migrate(context.Background(), migrations.FS); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	tbl, err := table.New(db.DB, table.Options{
		LockPath: filepath.Join(dir, "graypm.lock"),
		LogDir:   filepath.Join(dir, "log"),
	})
	if err != nil {
		t.Fatalf("table.New() error = %v", err)
	}

	cfg := Config{
		DefaultCwd:        dir,
		DefaultMaxRestart: 10,
		StopTimeout:       2 * time.Second,
		SampleWindow:      10 * time.Millisecond,
		Version:           "test",
	}
	if mutate != nil {
		mutate(&cfg)
	}

	procs := process.NewManager(process.Config{})
	events := &recordingPublisher{}
	sup, err := New(cfg, Deps{
		Store:   tbl,
		Spawner: procs,
		Checker: process.NewChecker(process.DefaultProcFS),
		Killer:  process.NewTerminator(process.DefaultProcFS, process.Escalation{}, nil),
		Sampler: process.DefaultProcFS,
		Events:  events,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	h := &harness{sup: sup, tbl: tbl, procs: procs, events: events, dir: dir}
	t.Cleanup(h.killAll)
	return h
}

// killAll removes every process the test left running.
func (h *harness) killAll() {
	term := process.NewTerminator(process.DefaultProcFS, process.Escalation{}, nil)
	for _, hd := range h.procs.Handles() {
		term.KillTree(hd.PID, syscall.SIGKILL, 2*time.Second)
		h.procs.ReapPID(hd.PID)
	}
}

func (h *harness) create(t *testing.T, def record.Definition) record.Record {
	t.Helper()
	o := h.sup.Create(context.Background(), def, false)
	if o.Code != Created {
		t.Fatalf("Create() = %s (%s), want %s", o.Code, o.Message, Created)
	}
	return *o.Record
}

func (h *harness) get(t *testing.T, id int) record.Record {
	t.Helper()
	r, err := h.tbl.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get(%d) error = %v", id, err)
	}
	return r
}

func one(t *testing.T, outs []Outcome) Outcome {
	t.Helper()
	if len(outs) != 1 {
		t.Fatalf("got %d outcomes, want 1: %+v", len(outs), outs)
	}
	return outs[0]
}

func byID(id int) record.Selector { return record.ByID(id) }

// waitExited polls until the record's stored pid no longer resolves.
func (h *harness) waitExited(t *testing.T, id int) {
	t.Helper()
	checker := process.NewChecker(process.DefaultProcFS)
	deadline := time.Now().Add(5 * time.Second)
	for checker.ResolveRecord(h.get(t, id)).Running() {
		if time.Now().After(deadline) {
			t.Fatalf("record %d still running", id)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWorkerLifecycle(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	w := h.create(t, record.Definition{Name: "worker", Cmd: record.Line("sleep 100"), MaxRestart: 3})

	o := one(t, h.sup.Start(ctx, byID(w.ID)))
	if o.Code != Started {
		t.Fatalf("start = %s (%s), want %s", o.Code, o.Message, Started)
	}
	p1 := h.get(t, w.ID)
	if p1.PID <= 0 || p1.RestartCount != 1 {
		t.Fatalf("after start pid=%d restart_count=%d, want pid>0 restart_count=1", p1.PID, p1.RestartCount)
	}

	o = one(t, h.sup.Start(ctx, byID(w.ID)))
	if o.Code != AlreadyRunning || o.Severity != SeverityWarning {
		t.Errorf("second start = %s/%s, want %s/%s", o.Code, o.Severity, AlreadyRunning, SeverityWarning)
	}
	if got := h.get(t, w.ID); got.PID != p1.PID || got.RestartCount != 1 {
		t.Errorf("after second start pid=%d restart_count=%d, want %d and 1", got.PID, got.RestartCount, p1.PID)
	}

	o = one(t, h.sup.Stop(ctx, byID(w.ID)))
	if o.Code != Killed {
		t.Fatalf("stop = %s (%s), want %s", o.Code, o.Message, Killed)
	}
	stopped := h.get(t, w.ID)
	if stopped.PID != record.NoPID || !stopped.AutorunExclude {
		t.Errorf("after stop pid=%d autorun_exclude=%v, want -1 and true", stopped.PID, stopped.AutorunExclude)
	}

	o = one(t, h.sup.Start(ctx, record.ParseSelector("worker")))
	if o.Code != Started {
		t.Fatalf("restart via name = %s (%s), want %s", o.Code, o.Message, Started)
	}
	p2 := h.get(t, w.ID)
	if p2.PID == p1.PID || p2.PID <= 0 {
		t.Errorf("new pid = %d, want a fresh pid different from %d", p2.PID, p1.PID)
	}
	if p2.RestartCount != 2 {
		t.Errorf("restart_count = %d, want 2", p2.RestartCount)
	}
	if p2.AutorunExclude {
		t.Error("start should clear autorun_exclude")
	}
}

func TestMaxRestartBreaker(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	r := h.create(t, record.Definition{Name: "flappy", Cmd: record.Line("/bin/true"), MaxRestart: 2})

	for i := 1; i <= 2; i++ {
		if o := one(t, h.sup.Start(ctx, byID(r.ID))); o.Code != Started {
			t.Fatalf("start %d = %s (%s), want %s", i, o.Code, o.Message, Started)
		}
		h.waitExited(t, r.ID)
	}

	before := len(h.procs.Handles())
	o := one(t, h.sup.Start(ctx, byID(r.ID)))
	if o.Code != MaxRestartExceeded || !o.Failed() {
		t.Errorf("third start = %s/%s, want %s/error", o.Code, o.Severity, MaxRestartExceeded)
	}
	if after := len(h.procs.Handles()); after != before {
		t.Errorf("handles = %d after refused start, want %d", after, before)
	}
	if got := h.get(t, r.ID).RestartCount; got != 2 {
		t.Errorf("restart_count = %d, want 2", got)
	}

	if o := one(t, h.sup.Reset(ctx, byID(r.ID))); o.Code != ResetDone {
		t.Fatalf("reset = %s, want %s", o.Code, ResetDone)
	}
	if o := one(t, h.sup.Start(ctx, byID(r.ID))); o.Code != Started {
		t.Errorf("start after reset = %s (%s), want %s", o.Code, o.Message, Started)
	}
}

func TestStartMissingExecutable(t *testing.T) {
	h := newHarness(t, nil)
	r := h.create(t, record.Definition{Name: "ghost", Cmd: record.Line("/nonexistent/ghost --serve")})

	o := one(t, h.sup.Start(context.Background(), byID(r.ID)))
	if o.Code != SpawnFailed || !o.Failed() {
		t.Errorf("start = %s/%s, want %s/error", o.Code, o.Severity, SpawnFailed)
	}
	got := h.get(t, r.ID)
	if got.RestartCount != 0 || got.PID != record.NoPID {
		t.Errorf("restart_count=%d pid=%d, want 0 and -1", got.RestartCount, got.PID)
	}
}

func TestStartRelativeCwdIsIdempotent(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	if err := os.Mkdir(filepath.Join(h.dir, "work"), 0o755); err != nil {
		t.Fatalf("Mkdir() error = %v", err)
	}
	r := h.create(t, record.Definition{Name: "rel", Cmd: record.Line("sleep 30"), Cwd: "work"})
	if want := filepath.Join(h.dir, "work"); r.Cwd != want {
		t.Errorf("stored cwd = %q, want %q", r.Cwd, want)
	}

	first := one(t, h.sup.Start(ctx, byID(r.ID)))
	if first.Code != Started {
		t.Fatalf("first start = %s (%s), want %s", first.Code, first.Message, Started)
	}
	second := one(t, h.sup.Start(ctx, byID(r.ID)))
	if second.Code != AlreadyRunning {
		t.Errorf("second start = %s, want %s", second.Code, AlreadyRunning)
	}
	got := h.get(t, r.ID)
	if got.PID != first.PID || got.RestartCount != 1 {
		t.Errorf("pid=%d restart_count=%d, want %d and 1", got.PID, got.RestartCount, first.PID)
	}
}

func TestStopNotRunning(t *testing.T) {
	h := newHarness(t, nil)
	r := h.create(t, record.Definition{Name: "idle", Cmd: record.Line("sleep 100")})

	o := one(t, h.sup.Stop(context.Background(), byID(r.ID)))
	if o.Code != NotRunning || o.Severity != SeverityWarning {
		t.Errorf("stop = %s/%s, want %s/warning", o.Code, o.Severity, NotRunning)
	}
	if h.get(t, r.ID).AutorunExclude {
		t.Error("refused stop should not change autorun_exclude")
	}
}

func TestStopSurvivorIsWarning(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.StopTimeout = 200 * time.Millisecond })
	ctx := context.Background()
	r := h.create(t, record.Definition{Name: "stubborn", Cmd: record.Argv("/bin/sh", "-c", `trap "" TERM; sleep 100 & wait`)})

	started := one(t, h.sup.Start(ctx, byID(r.ID)))
	if started.Code != Started {
		t.Fatalf("start = %s (%s)", started.Code, started.Message)
	}

	o := one(t, h.sup.Stop(ctx, byID(r.ID)))
	if o.Code != StillAlive || o.Severity != SeverityWarning {
		t.Errorf("stop = %s/%s, want %s/warning", o.Code, o.Severity, StillAlive)
	}
	if len(o.Alive) == 0 {
		t.Error("Alive should list the survivors")
	}
	if got := h.get(t, r.ID); got.PID != started.PID || got.AutorunExclude {
		t.Errorf("record changed after failed stop: pid=%d autorun_exclude=%v", got.PID, got.AutorunExclude)
	}
}

func TestResetLeavesRunningState(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	r := h.create(t, record.Definition{Name: "svc", Cmd: record.Line("sleep 100"), Autorun: true})
	one(t, h.sup.Start(ctx, byID(r.ID)))
	before := h.get(t, r.ID)

	o := one(t, h.sup.Reset(ctx, byID(r.ID)))
	if o.Code != ResetDone {
		t.Fatalf("reset = %s, want %s", o.Code, ResetDone)
	}
	after := h.get(t, r.ID)
	if after.RestartCount != 0 {
		t.Errorf("restart_count = %d, want 0", after.RestartCount)
	}
	if after.PID != before.PID || after.Autorun != before.Autorun || after.AutorunExclude != before.AutorunExclude {
		t.Errorf("reset changed pid/autorun: before %+v after %+v", before, after)
	}
}

func TestRestartAccumulates(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	r := h.create(t, record.Definition{Name: "svc", Cmd: record.Line("sleep 100")})
	one(t, h.sup.Start(ctx, byID(r.ID)))
	first := h.get(t, r.ID).PID

	outs := h.sup.Restart(ctx, byID(r.ID))
	if len(outs) != 2 || outs[0].Code != Killed || outs[1].Code != Started {
		t.Fatalf("restart outcomes = %+v, want killed then started", outs)
	}
	got := h.get(t, r.ID)
	if got.RestartCount != 2 {
		t.Errorf("restart_count = %d, want 2", got.RestartCount)
	}
	if got.PID == first {
		t.Errorf("pid = %d, want a new pid", got.PID)
	}
}

func TestRemoveStopsAndDeletes(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	r := h.create(t, record.Definition{Name: "gone", Cmd: record.Line("sleep 100")})
	one(t, h.sup.Start(ctx, byID(r.ID)))
	pid := h.get(t, r.ID).PID

	outs := h.sup.Remove(ctx, byID(r.ID))
	o := one(t, outs)
	if o.Code != Removed {
		t.Fatalf("remove = %s (%s), want %s", o.Code, o.Message, Removed)
	}
	if _, err := h.tbl.Get(ctx, r.ID); !table.IsNotFound(err) {
		t.Errorf("Get() after remove error = %v, want not found", err)
	}
	if process.NewChecker(process.DefaultProcFS).Resolve(pid, r.Cwd).Running() {
		t.Error("process still running after remove")
	}
	if got := h.procs.OpenSinks(); got != 0 {
		t.Errorf("OpenSinks() after remove = %d, want 0", got)
	}
}

func TestUnknownSelector(t *testing.T) {
	h := newHarness(t, nil)
	for _, sel := range []string{"42", "nobody", "all"} {
		o := one(t, h.sup.Stop(context.Background(), record.ParseSelector(sel)))
		if o.Code != NotFound || !o.Failed() {
			t.Errorf("Stop(%q) = %s/%s, want %s/error", sel, o.Code, o.Severity, NotFound)
		}
	}
}

func TestBatchOutcomes(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.create(t, record.Definition{Name: "a", Cmd: record.Line("sleep 100")})
	h.create(t, record.Definition{Name: "b", Cmd: record.Line("/nonexistent/b")})

	outs := h.sup.Start(ctx, record.ParseSelector(record.SelectAll))
	if len(outs) != 2 {
		t.Fatalf("got %d outcomes, want 2", len(outs))
	}
	codes := map[string]Code{outs[0].Name: outs[0].Code, outs[1].Name: outs[1].Code}
	if codes["a"] != Started || codes["b"] != SpawnFailed {
		t.Errorf("codes = %v, want a=started b=spawn_failed", codes)
	}
}

func TestCreateConflicts(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	first := h.create(t, record.Definition{Name: "web", Cmd: record.Line("sleep 100")})

	o := h.sup.Create(ctx, record.Definition{Name: "web", Cmd: record.Line("sleep 200")}, false)
	if o.Code != NameConflict || o.Severity != SeverityWarning {
		t.Fatalf("Create() = %s/%s, want %s/warning", o.Code, o.Severity, NameConflict)
	}
	if want := "web_2"; o.Record.Name != want {
		t.Errorf("suffixed name = %q, want %q", o.Record.Name, want)
	}

	id := first.ID
	o = h.sup.Create(ctx, record.Definition{ID: &id, Name: "other", Cmd: record.Line("sleep 300")}, false)
	if o.Code != IDConflict {
		t.Errorf("Create() with taken id = %s, want %s", o.Code, IDConflict)
	}
	if got := h.get(t, id); got.Name != "web" {
		t.Errorf("existing record name = %q, want %q", got.Name, "web")
	}

	o = h.sup.Create(ctx, record.Definition{Cmd: record.Line("")}, false)
	if o.Code != Invalid || !o.Failed() {
		t.Errorf("Create() with empty cmd = %s, want %s", o.Code, Invalid)
	}
}

func TestListClearsStalePID(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	r := h.create(t, record.Definition{Name: "blip", Cmd: record.Line("/bin/true")})
	one(t, h.sup.Start(ctx, byID(r.ID)))
	h.waitExited(t, r.ID)

	entries, err := h.sup.List(ctx, byID(r.ID))
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("List() = %d entries, want 1", len(entries))
	}
	if entries[0].View.Running {
		t.Error("View.Running = true for an exited process")
	}
	if got := h.get(t, r.ID).PID; got != record.NoPID {
		t.Errorf("stored pid = %d, want %d", got, record.NoPID)
	}
}

func TestStatusMetrics(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	up := h.create(t, record.Definition{Name: "up", Cmd: record.Argv("/bin/sh", "-c", "sleep 100 & wait")})
	h.create(t, record.Definition{Name: "down", Cmd: record.Line("sleep 100")})
	one(t, h.sup.Start(ctx, byID(up.ID)))

	// Wait for the shell to fork its child.
	pid := h.get(t, up.ID).PID
	deadline := time.Now().Add(5 * time.Second)
	for {
		kids, _ := process.DefaultProcFS.Descendants(pid)
		if len(kids) > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("child never appeared")
		}
		time.Sleep(10 * time.Millisecond)
	}

	rows, err := h.sup.Status(ctx, record.ParseSelector(record.SelectAll))
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("Status() = %d rows, want 2", len(rows))
	}
	for _, row := range rows {
		switch row.Record.Name {
		case "up":
			if row.Metrics == nil {
				t.Fatal("running record has no metrics")
			}
			if row.Metrics.PID != pid {
				t.Errorf("Metrics.PID = %d, want %d", row.Metrics.PID, pid)
			}
			if len(row.Children) != 1 {
				t.Fatalf("Children = %d rows, want 1", len(row.Children))
			}
			if row.Children[0].PPID != pid {
				t.Errorf("Children[0].PPID = %d, want %d", row.Children[0].PPID, pid)
			}
			if want := []int{row.Children[0].PID}; !reflect.DeepEqual(row.Metrics.Children, want) {
				t.Errorf("Metrics.Children = %v, want %v", row.Metrics.Children, want)
			}
		case "down":
			if row.Metrics != nil {
				t.Error("stopped record should have no metrics")
			}
		}
	}
}

func TestBoot(t *testing.T) {
	h := newHarness(t, func(c *Config) {
		c.WatchdogCmd = "sleep 100"
	})
	ctx := context.Background()
	auto := h.create(t, record.Definition{Name: "auto", Cmd: record.Line("sleep 100"), Autorun: true})
	manual := h.create(t, record.Definition{Name: "manual", Cmd: record.Line("sleep 100")})

	outs, err := h.sup.Boot(ctx)
	if err != nil {
		t.Fatalf("Boot() error = %v", err)
	}
	if len(outs) != 2 {
		t.Fatalf("Boot() = %d outcomes, want 2 (autorun record and watchdog): %+v", len(outs), outs)
	}
	for _, o := range outs {
		if o.Code != Started {
			t.Errorf("boot start of %s = %s (%s)", o.Name, o.Code, o.Message)
		}
	}

	backend := h.get(t, BackendID)
	if backend.Name != "__backend__" || backend.PID != os.Getpid() {
		t.Errorf("backend = %s pid %d, want __backend__ pid %d", backend.Name, backend.PID, os.Getpid())
	}
	if h.get(t, auto.ID).PID <= 0 {
		t.Error("autorun record was not started")
	}
	if h.get(t, manual.ID).PID != record.NoPID {
		t.Error("manual record should not be started")
	}

	hidden, err := h.sup.Find(ctx, record.ParseSelector(record.SelectHiddenOnly))
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if len(hidden) != 2 {
		t.Errorf("hidden records = %d, want backend and watchdog", len(hidden))
	}

	for _, o := range h.sup.Stop(ctx, record.ParseSelector(record.SelectAllWithHidden)) {
		if o.ID == BackendID && o.Code != Protected {
			t.Errorf("stopping backend = %s, want %s", o.Code, Protected)
		}
	}

	// A second boot updates the backend in place.
	if _, err := h.sup.Boot(ctx); err != nil {
		t.Fatalf("second Boot() error = %v", err)
	}
	hidden, _ = h.sup.Find(ctx, record.ParseSelector(record.SelectHiddenOnly))
	if len(hidden) != 2 {
		t.Errorf("hidden records after reboot = %d, want 2", len(hidden))
	}
}

func TestBootWatchdogTakesFirstFreeID(t *testing.T) {
	h := newHarness(t, func(c *Config) {
		c.WatchdogCmd = "sleep 100"
		c.WatchdogFirstID = 5
	})
	ctx := context.Background()
	for _, id := range []int{5, 6} {
		h.create(t, record.Definition{ID: &id, Name: fmt.Sprintf("r%d", id), Cmd: record.Line("sleep 100")})
	}

	if _, err := h.sup.Boot(ctx); err != nil {
		t.Fatalf("Boot() error = %v", err)
	}
	found, err := h.sup.Find(ctx, record.ParseSelector("__cron_checker__"))
	if err != nil || len(found) != 1 {
		t.Fatalf("Find(watchdog) = %v, %v; want one record", found, err)
	}
	watchdog := found[0]
	if watchdog.ID != 7 {
		t.Errorf("watchdog id = %d, want 7", watchdog.ID)
	}

	// A user record created afterwards continues after the highest id.
	next := h.create(t, record.Definition{Name: "after", Cmd: record.Line("sleep 100")})
	if next.ID != 8 {
		t.Errorf("next id = %d, want 8", next.ID)
	}

	one(t, h.sup.Stop(ctx, byID(watchdog.ID)))
}

func TestAutorunOnceSkipsSuspended(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	on := h.create(t, record.Definition{Name: "on", Cmd: record.Line("sleep 100"), Autorun: true})
	susp := h.create(t, record.Definition{Name: "suspended", Cmd: record.Line("sleep 100"), Autorun: true})
	if _, err := h.tbl.Modify(ctx, susp.ID, func(r *record.Record) error {
		r.AutorunExclude = true
		return nil
	}); err != nil {
		t.Fatalf("Modify() error = %v", err)
	}

	outs := h.sup.autorunOnce(ctx)
	o := one(t, outs)
	if o.ID != on.ID || o.Code != Started {
		t.Errorf("autorun = %s for %d, want started for %d", o.Code, o.ID, on.ID)
	}
	if outs := h.sup.autorunOnce(ctx); len(outs) != 0 {
		t.Errorf("second autorun pass = %+v, want nothing (already running)", outs)
	}
}

func TestHandleExitClearsPID(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	r := h.create(t, record.Definition{Name: "quick", Cmd: record.Line("/bin/true")})
	o := one(t, h.sup.Start(ctx, byID(r.ID)))

	h.sup.HandleExit(ctx, process.Exit{PID: o.PID, RecordID: r.ID, Name: r.Name})
	if got := h.get(t, r.ID).PID; got != record.NoPID {
		t.Errorf("pid = %d after exit, want %d", got, record.NoPID)
	}
}

func TestEventsPublished(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	r := h.create(t, record.Definition{Name: "ev", Cmd: record.Line("sleep 100")})
	h.sup.Start(ctx, byID(r.ID))
	h.sup.Stop(ctx, byID(r.ID))

	got := h.events.codes()
	want := []Code{Created, Started, Killed}
	if len(got) != len(want) {
		t.Fatalf("published %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestCodeSeverity(t *testing.T) {
	tests := []struct {
		code Code
		want Severity
	}{
		{Started, SeverityOK},
		{Killed, SeverityOK},
		{Created, SeverityOK},
		{AlreadyRunning, SeverityWarning},
		{NotRunning, SeverityWarning},
		{StillAlive, SeverityWarning},
		{IDConflict, SeverityWarning},
		{NameConflict, SeverityWarning},
		{MaxRestartExceeded, SeverityError},
		{SpawnFailed, SeverityError},
		{PersistFailed, SeverityError},
	}
	for _, tt := range tests {
		if got := tt.code.Severity(); got != tt.want {
			t.Errorf("%s.Severity() = %s, want %s", tt.code, got, tt.want)
		}
	}
}
