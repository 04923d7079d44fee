// Package supervisor drives the lifecycle of supervised processes.
//
// A [Supervisor] combines the persisted table, the liveness checker, the
// tree terminator and the process manager into the operations exposed by
// the control surface: create, find, list, start, stop, restart, reset,
// remove and status.
//
// Every lifecycle operation returns [Outcome] values, never a Go error, so
// a selector that matches many records yields one outcome per record. An
// outcome carries a [Severity]: warnings mean the request was refused with
// state unchanged (already running, not running), errors mean something
// needs operator attention (crash-loop breaker tripped, spawn or persist
// failure).
//
// Records are serialised per id inside the daemon; the table's file lock
// serialises each read-modify-write against other processes.
package supervisor
