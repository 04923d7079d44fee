package supervisor

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/gray-logic-pm/internal/process"
	"github.com/nerrad567/gray-logic-pm/internal/record"
)

// maxConcurrentSamples bounds parallel CPU sampling in Status.
const maxConcurrentSamples = 8

// StatusRow is a record merged with live metrics. Metrics is nil when the
// pid could not be resolved or sampled.
type StatusRow struct {
	Entry
	Metrics  *process.Metrics  `json:"metrics,omitempty"`
	Children []process.Metrics `json:"children,omitempty"`
}

// Status lists the records matched by sel with best-effort metrics for the
// running ones, including one row per descendant process.
func (s *Supervisor) Status(ctx context.Context, sel record.Selector) ([]StatusRow, error) {
	entries, err := s.List(ctx, sel)
	if err != nil {
		return nil, err
	}

	rows := make([]StatusRow, len(entries))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentSamples)

	for i, e := range entries {
		rows[i] = StatusRow{Entry: e}
		if !e.View.Running {
			continue
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			tree, err := s.sampler.Sample(e.Record.PID, s.cfg.SampleWindow)
			if err != nil {
				s.logger.Debug("sampling failed", "id", e.Record.ID, "pid", e.Record.PID, "error", err)
				return nil
			}
			m := tree.Root

			mu.Lock()
			rows[i].Metrics = &m
			rows[i].Children = tree.Children
			if rows[i].View.Age == "" && !m.StartedAt.IsZero() {
				rows[i].View.Age = record.HumanDuration(s.now().Sub(m.StartedAt))
			}
			mu.Unlock()
			return nil
		})
	}
	// Sampling never fails the whole request.
	_ = g.Wait()
	return rows, nil
}
