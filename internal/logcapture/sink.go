package logcapture

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotation schedules.
const (
	WhenMidnight = "midnight"
	WhenInterval = "interval"
)

// unboundedSizeMB stands in for "no size limit"; lumberjack treats zero as
// its 100 MB default.
const unboundedSizeMB = 1 << 20

// Options controls rotation and retention for every sink.
type Options struct {
	// RotationEnabled turns on time-based rotation.
	RotationEnabled bool
	// When is WhenMidnight or WhenInterval.
	When string
	// Interval is the rotation period when When is WhenInterval.
	Interval time.Duration
	// MaxSizeMB rotates a segment once it reaches this size. Zero disables
	// size-based rotation.
	MaxSizeMB int
	// BackupCount is how many rotated segments are kept. Zero keeps all.
	BackupCount int
	// Compress gzips rotated segments.
	Compress bool
	// LocalTime names rotated segments using local rather than UTC time.
	LocalTime bool
}

// Sink is an append-only log file that rotates on a schedule. The schedule
// is evaluated when a line arrives, not by a timer.
// It is safe for concurrent use.
type Sink struct {
	mu   sync.Mutex
	lj   *lumberjack.Logger
	opts Options
	now  func() time.Time
	next time.Time
}

// OpenSink prepares a sink writing to path. The file itself is created on
// first write.
func OpenSink(path string, opts Options) (*Sink, error) {
	if path == "" {
		return nil, fmt.Errorf("sink path is empty")
	}
	if opts.RotationEnabled && opts.When == WhenInterval && opts.Interval <= 0 {
		return nil, fmt.Errorf("rotation interval must be positive")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}

	size := opts.MaxSizeMB
	if size <= 0 {
		size = unboundedSizeMB
	}
	s := &Sink{
		lj: &lumberjack.Logger{
			Filename:   path,
			MaxSize:    size,
			MaxBackups: opts.BackupCount,
			Compress:   opts.Compress,
			LocalTime:  opts.LocalTime,
		},
		opts: opts,
		now:  time.Now,
	}
	s.next = s.nextRotation(s.now())
	return s, nil
}

// Path returns the active segment's file name.
func (s *Sink) Path() string { return s.lj.Filename }

// Write appends p, rotating first if the schedule says so.
func (s *Sink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if now := s.now(); !s.next.IsZero() && !now.Before(s.next) {
		if err := s.lj.Rotate(); err != nil {
			return 0, fmt.Errorf("rotating %s: %w", s.lj.Filename, err)
		}
		s.next = s.nextRotation(now)
	}
	return s.lj.Write(p)
}

// Rotate closes the current segment and starts a new one immediately.
func (s *Sink) Rotate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.lj.Rotate(); err != nil {
		return err
	}
	s.next = s.nextRotation(s.now())
	return nil
}

// Close closes the active segment. A later Write reopens it, so pooled
// sinks can be closed between spawns without being discarded.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lj.Close()
}

// nextRotation returns the zero time when time-based rotation is off.
func (s *Sink) nextRotation(from time.Time) time.Time {
	if !s.opts.RotationEnabled {
		return time.Time{}
	}
	switch s.opts.When {
	case WhenInterval:
		return from.Add(s.opts.Interval)
	default:
		y, m, d := from.Date()
		return time.Date(y, m, d+1, 0, 0, 0, 0, from.Location())
	}
}
