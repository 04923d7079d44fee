package logcapture

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

const readBufferSize = 64 * 1024

// Logger is the logging surface used for sink write failures.
type Logger interface {
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any) {}

// Stream is one pipe feeding one sink.
type Stream struct {
	r, w   *os.File
	sink   *Sink
	logger Logger
	done   chan struct{}
	once   sync.Once
}

// newStream opens a pipe feeding the pool's sink for path. The reader
// goroutine does not run until start is called.
func newStream(path string, pool *Pool, logger Logger) (*Stream, error) {
	sink, err := pool.Sink(path)
	if err != nil {
		return nil, err
	}
	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("creating pipe: %w", err)
	}
	return &Stream{r: r, w: w, sink: sink, logger: logger, done: make(chan struct{})}, nil
}

// Writer is the end handed to the child.
func (s *Stream) Writer() *os.File { return s.w }

// Sink returns the stream's destination.
func (s *Stream) Sink() *Sink { return s.sink }

func (s *Stream) start() {
	go s.pump()
}

// pump copies lines until every holder of the write end has closed it.
func (s *Stream) pump() {
	defer close(s.done)
	defer s.r.Close()
	defer s.sink.Close()

	br := bufio.NewReaderSize(s.r, readBufferSize)
	for {
		line, err := br.ReadSlice('\n')
		if len(line) > 0 {
			if _, werr := s.sink.Write(line); werr != nil {
				s.logger.Warn("log write failed", "path", s.sink.Path(), "error", werr)
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				s.logger.Warn("log read failed", "path", s.sink.Path(), "error", err)
			}
			return
		}
	}
}

// closeWriter drops the parent's copy of the write end. After the child has
// been started, the pipe reaches EOF once the child and all its descendants
// have exited or closed their copies.
func (s *Stream) closeWriter() {
	s.once.Do(func() { _ = s.w.Close() })
}

// Done is closed once the stream has been drained. The sink's file is
// closed at that point but the sink stays in its pool for the next spawn.
func (s *Stream) Done() <-chan struct{} { return s.done }

// Capture holds the stdout and stderr streams of one child.
type Capture struct {
	Stdout *Stream
	Stderr *Stream
}

// Open creates both streams on sinks taken from pool. Call Started once the
// child holds the write ends, or Abort if the child could not be started.
func Open(stdoutPath, stderrPath string, pool *Pool, logger Logger) (*Capture, error) {
	if logger == nil {
		logger = noopLogger{}
	}
	out, err := newStream(stdoutPath, pool, logger)
	if err != nil {
		return nil, fmt.Errorf("opening stdout capture: %w", err)
	}
	errStream, err := newStream(stderrPath, pool, logger)
	if err != nil {
		out.abort()
		return nil, fmt.Errorf("opening stderr capture: %w", err)
	}
	return &Capture{Stdout: out, Stderr: errStream}, nil
}

// Started releases the parent's write ends and begins draining.
func (c *Capture) Started() {
	for _, s := range []*Stream{c.Stdout, c.Stderr} {
		s.closeWriter()
		s.start()
	}
}

// Abort releases every resource without reading.
func (c *Capture) Abort() {
	c.Stdout.abort()
	c.Stderr.abort()
}

func (s *Stream) abort() {
	s.closeWriter()
	_ = s.r.Close()
	_ = s.sink.Close()
	close(s.done)
}

// Wait blocks until both streams are drained.
func (c *Capture) Wait() {
	<-c.Stdout.done
	<-c.Stderr.done
}

// Done is closed once both streams are drained.
func (c *Capture) Done() <-chan struct{} {
	ch := make(chan struct{})
	go func() {
		c.Wait()
		close(ch)
	}()
	return ch
}
