package logcapture

import (
	"errors"
	"sync"
)

// Pool hands out one Sink per path. Restarts of a child append through the
// same Sink, so each log path has exactly one lumberjack.Logger and one
// background mill goroutine for as long as it stays in the pool.
type Pool struct {
	opts Options

	mu    sync.Mutex
	sinks map[string]*Sink
}

// NewPool creates an empty pool whose sinks share opts.
func NewPool(opts Options) *Pool {
	return &Pool{opts: opts, sinks: make(map[string]*Sink)}
}

// Sink returns the sink for path, opening it on first use.
func (p *Pool) Sink(path string) (*Sink, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if s, ok := p.sinks[path]; ok {
		return s, nil
	}
	s, err := OpenSink(path, p.opts)
	if err != nil {
		return nil, err
	}
	p.sinks[path] = s
	return s, nil
}

// Release closes the sinks for paths and forgets them. Unknown paths are
// ignored.
func (p *Pool) Release(paths ...string) error {
	p.mu.Lock()
	var closing []*Sink
	for _, path := range paths {
		if s, ok := p.sinks[path]; ok {
			closing = append(closing, s)
			delete(p.sinks, path)
		}
	}
	p.mu.Unlock()

	var errs []error
	for _, s := range closing {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}

// Close releases every sink.
func (p *Pool) Close() error {
	p.mu.Lock()
	paths := make([]string, 0, len(p.sinks))
	for path := range p.sinks {
		paths = append(paths, path)
	}
	p.mu.Unlock()
	return p.Release(paths...)
}

// Len returns the number of open sinks.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sinks)
}
