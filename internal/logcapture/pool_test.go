package logcapture

import (
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func TestPoolReusesSinkPerPath(t *testing.T) {
	dir := t.TempDir()
	p := NewPool(Options{})
	defer p.Close()

	a, err := p.Sink(filepath.Join(dir, "a.log"))
	if err != nil {
		t.Fatalf("Sink: %v", err)
	}
	again, _ := p.Sink(filepath.Join(dir, "a.log"))
	other, _ := p.Sink(filepath.Join(dir, "b.log"))

	if a != again {
		t.Error("Sink() returned a new sink for the same path")
	}
	if a == other {
		t.Error("Sink() shared a sink between different paths")
	}
	if got := p.Len(); got != 2 {
		t.Errorf("Len() = %d, want 2", got)
	}

	if err := p.Release(filepath.Join(dir, "a.log"), filepath.Join(dir, "missing.log")); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if got := p.Len(); got != 1 {
		t.Errorf("Len() after Release = %d, want 1", got)
	}
	fresh, _ := p.Sink(filepath.Join(dir, "a.log"))
	if fresh == a {
		t.Error("Sink() after Release returned the released sink")
	}
}

func TestPoolRestartsAppend(t *testing.T) {
	dir := t.TempDir()
	outPath := filepath.Join(dir, "job.log")
	p := NewPool(Options{})
	defer p.Close()

	for i := 0; i < 3; i++ {
		runCapture(t, p, outPath, filepath.Join(dir, "job.err"), "echo run")
	}
	if got, want := readFile(t, outPath), strings.Repeat("run\n", 3); got != want {
		t.Errorf("stdout = %q, want %q", got, want)
	}
}

func TestPoolGoroutinesBoundedAcrossRestarts(t *testing.T) {
	dir := t.TempDir()
	p := NewPool(Options{})
	defer p.Close()

	// The first cycle starts the one mill goroutine each sink keeps.
	runCapture(t, p, filepath.Join(dir, "job.log"), filepath.Join(dir, "job.err"), "echo out; echo err >&2")
	before := runtime.NumGoroutine()

	for i := 0; i < 50; i++ {
		runCapture(t, p, filepath.Join(dir, "job.log"), filepath.Join(dir, "job.err"), "echo out; echo err >&2")
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		after := runtime.NumGoroutine()
		if after <= before {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("goroutines after 50 restarts = %d, want <= %d", after, before)
		}
		time.Sleep(10 * time.Millisecond)
	}
	if got := p.Len(); got != 2 {
		t.Errorf("Len() = %d, want 2", got)
	}
}

func runCapture(t *testing.T, p *Pool, outPath, errPath, script string) {
	t.Helper()
	c, err := Open(outPath, errPath, p, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	cmd := exec.Command("/bin/sh", "-c", script)
	cmd.Stdout = c.Stdout.Writer()
	cmd.Stderr = c.Stderr.Writer()
	if err := cmd.Start(); err != nil {
		c.Abort()
		t.Fatalf("Start: %v", err)
	}
	c.Started()
	if err := cmd.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	c.Wait()
}
