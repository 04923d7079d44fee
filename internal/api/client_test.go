package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-pm/internal/record"
	"github.com/nerrad567/gray-logic-pm/internal/supervisor"
)

func splitAddr(t *testing.T, addr string) (string, int) {
	t.Helper()
	host, p, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("SplitHostPort(%q) error = %v", addr, err)
	}
	port, err := strconv.Atoi(p)
	if err != nil {
		t.Fatalf("port %q: %v", p, err)
	}
	return host, port
}

func testClient(t *testing.T, sup Supervisor) *Client {
	t.Helper()
	ts := httptest.NewServer(testServer(t, sup, nil).Handler())
	t.Cleanup(ts.Close)
	return NewClient(strings.TrimPrefix(ts.URL, "http://"), 5*time.Second)
}

func TestClientRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := testClient(t, &fakeSupervisor{})

	info, err := c.Ping(ctx)
	if err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	if info.Version != "test" {
		t.Errorf("Ping().Version = %q, want %q", info.Version, "test")
	}

	o, err := c.Create(ctx, record.Definition{Name: "my app", Cmd: record.Argv("sleep", "100")}, false)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if o.Code != supervisor.Created || o.Record == nil {
		t.Fatalf("Create() = %+v, want created with record", o)
	}
	if got := o.Record.Cmd.Fields(); len(got) != 2 || got[0] != "sleep" {
		t.Errorf("stored cmd = %v, want [sleep 100]", got)
	}

	o, err = c.Create(ctx, record.Definition{Name: "my app", Cmd: record.Line("true")}, false)
	if err != nil {
		t.Fatalf("Create() duplicate error = %v", err)
	}
	if o.Code != supervisor.NameConflict {
		t.Errorf("duplicate Create() = %s, want %s", o.Code, supervisor.NameConflict)
	}

	entries, err := c.List(ctx, "my app")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Record.Name != "my app" {
		t.Errorf("List() = %+v, want the one record", entries)
	}

	rows, err := c.Status(ctx, record.SelectAll)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if len(rows) != 1 || rows[0].View.Name != "my app" {
		t.Errorf("Status() = %+v, want the one row", rows)
	}

	outs, err := c.Dispatch(ctx, "stop", "my app")
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if len(outs) != 1 || outs[0].Code != supervisor.Killed {
		t.Errorf("Dispatch() = %+v, want one killed", outs)
	}
}

func TestClientErrors(t *testing.T) {
	ctx := context.Background()
	c := testClient(t, &fakeSupervisor{})

	_, err := c.List(ctx, "ghost")
	if !IsNotFound(err) {
		t.Errorf("List(ghost) error = %v, want not found", err)
	}
	var apiErr *Error
	if !errors.As(err, &apiErr) || apiErr.Code != ErrCodeNotFound {
		t.Errorf("List(ghost) error = %#v, want *Error with code %q", err, ErrCodeNotFound)
	}

	_, err = c.Dispatch(ctx, "launch", "ghost")
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadRequest {
		t.Errorf("Dispatch(launch) error = %v, want 400", err)
	}

	// Nothing listens on a port we just released.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	addr := ln.Addr().String()
	ln.Close() //nolint:errcheck // Port is released on purpose

	_, err = NewClient(addr, time.Second).Ping(ctx)
	if !errors.Is(err, ErrDaemonUnreachable) {
		t.Errorf("Ping() on a closed port error = %v, want ErrDaemonUnreachable", err)
	}
}
