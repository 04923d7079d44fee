package process

import (
	"context"
	"time"
)

// Run is the reconciliation loop: it reaps terminated children every
// ReapInterval until ctx is cancelled. onExit, if non-nil, is called for
// each reaped child outside the registry lock.
func (m *Manager) Run(ctx context.Context, onExit func(Exit)) error {
	ticker := time.NewTicker(m.cfg.ReapInterval)
	defer ticker.Stop()

	m.logger.Debug("reconciliation loop started", "interval", m.cfg.ReapInterval.String())
	for {
		select {
		case <-ctx.Done():
			m.logger.Debug("reconciliation loop stopped", "unreaped", m.Len())
			return nil
		case <-ticker.C:
			for _, e := range m.Reap() {
				if onExit != nil {
					onExit(e)
				}
			}
		}
	}
}
