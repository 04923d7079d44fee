// Package process is the supervisor's interface to the operating system.
//
// It covers four concerns:
//
//   - Liveness: [Checker] decides whether a stored pid still belongs to the
//     recorded process. A pid is trusted only when the live process's working
//     directory matches the record, which guards against pid reuse. Every OS
//     fault is folded into a [State] rather than returned as an error.
//   - Termination: [Terminator.KillTree] signals a process and all of its
//     descendants and waits, bounded, for them to exit. Escalation to a
//     second signal is opt-in.
//   - Spawning: [Manager.Spawn] builds the argument vector from a record,
//     wires stdout and stderr through logcapture, and registers the child.
//   - Reconciliation: [Manager.Run] reaps terminated children once a
//     second so the handle registry never accumulates zombies.
//
// Process inspection goes through github.com/prometheus/procfs, so this
// package only runs on Linux.
package process
