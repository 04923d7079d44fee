// Package logcapture routes a child process's stdout and stderr into
// rotating log files.
//
// Each stream gets its own pipe. The child holds the write end; a
// dedicated goroutine in the supervisor reads the other end line by line
// and appends to a [Sink]. The child therefore never waits on disk I/O
// directly, and rotation happens between lines.
//
// Sinks rotate on a schedule (at local midnight or on a fixed interval)
// and on size. Rotated segments are optionally gzip-compressed and pruned
// to a retention count. Rotation, compression and pruning are handled by
// lumberjack; this package adds the time-based trigger, which is checked on
// each write. An idle stream keeps its segment until its next line.
//
// A [Pool] keeps one sink per path, so a restarted child appends through
// the sink its previous run used.
package logcapture
