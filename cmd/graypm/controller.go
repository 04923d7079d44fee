package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/nerrad567/gray-logic-pm/internal/api"
	"github.com/nerrad567/gray-logic-pm/internal/audit"
	"github.com/nerrad567/gray-logic-pm/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-pm/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-pm/internal/record"
	"github.com/nerrad567/gray-logic-pm/internal/supervisor"
)

// controller is what the client commands need, served either by the daemon
// (api.Client) or in process (--direct).
type controller interface {
	Ping(ctx context.Context) (supervisor.PingInfo, error)
	Create(ctx context.Context, def record.Definition, rewrite bool) (supervisor.Outcome, error)
	List(ctx context.Context, token string) ([]supervisor.Entry, error)
	Status(ctx context.Context, token string) ([]supervisor.StatusRow, error)
	Dispatch(ctx context.Context, op, token string) ([]supervisor.Outcome, error)
	History(ctx context.Context, filter audit.Filter) (*audit.ListResult, error)
}

// openController returns the controller for the global flags and a func
// releasing it.
func openController(ctx context.Context) (controller, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if !directMode {
		return daemonController{api.NewClient(cfg.Address(), api.DefaultClientTimeout)}, func() {}, nil
	}
	return openDirect(ctx, cfg)
}

// daemonController maps transport failures to a hint about the daemon.
type daemonController struct {
	*api.Client
}

func (c daemonController) Ping(ctx context.Context) (supervisor.PingInfo, error) {
	info, err := c.Client.Ping(ctx)
	return info, daemonHint(err)
}

func (c daemonController) Create(ctx context.Context, def record.Definition, rewrite bool) (supervisor.Outcome, error) {
	o, err := c.Client.Create(ctx, def, rewrite)
	return o, daemonHint(err)
}

func (c daemonController) List(ctx context.Context, token string) ([]supervisor.Entry, error) {
	entries, err := c.Client.List(ctx, token)
	if api.IsNotFound(err) {
		return nil, nil
	}
	return entries, daemonHint(err)
}

func (c daemonController) Status(ctx context.Context, token string) ([]supervisor.StatusRow, error) {
	rows, err := c.Client.Status(ctx, token)
	if api.IsNotFound(err) {
		return nil, nil
	}
	return rows, daemonHint(err)
}

func (c daemonController) Dispatch(ctx context.Context, op, token string) ([]supervisor.Outcome, error) {
	outs, err := c.Client.Dispatch(ctx, op, token)
	return outs, daemonHint(err)
}

func (c daemonController) History(ctx context.Context, filter audit.Filter) (*audit.ListResult, error) {
	result, err := c.Client.History(ctx, filter)
	return result, daemonHint(err)
}

func daemonHint(err error) error {
	if errors.Is(err, api.ErrDaemonUnreachable) {
		return fmt.Errorf("%w (start it with `graypm daemon` or use --direct)", err)
	}
	return err
}

// directController runs the supervisor inside the CLI process. The table's
// file lock serialises it against the daemon and other invocations.
type directController struct {
	sup     *supervisor.Supervisor
	history *audit.SQLiteRepository
}

func openDirect(ctx context.Context, cfg *config.Config) (controller, func(), error) {
	log := logging.New(config.LoggingConfig{Level: "warn", Format: "text", Output: "stderr"}, version)
	st, err := openStack(ctx, cfg, log, nil)
	if err != nil {
		return nil, nil, err
	}
	release := func() {
		if err := st.Close(); err != nil {
			log.Warn("closing database", "error", err)
		}
	}
	return directController{sup: st.sup, history: st.history}, release, nil
}

func (c directController) Ping(context.Context) (supervisor.PingInfo, error) {
	return c.sup.Ping(), nil
}

func (c directController) Create(ctx context.Context, def record.Definition, rewrite bool) (supervisor.Outcome, error) {
	return c.sup.Create(ctx, def, rewrite), nil
}

func (c directController) List(ctx context.Context, token string) ([]supervisor.Entry, error) {
	return c.sup.List(ctx, record.ParseSelector(token))
}

func (c directController) Status(ctx context.Context, token string) ([]supervisor.StatusRow, error) {
	return c.sup.Status(ctx, record.ParseSelector(token))
}

// Dispatch refuses to spawn: a child started here would lose its output
// capture as soon as the CLI exits.
func (c directController) Dispatch(ctx context.Context, op, token string) ([]supervisor.Outcome, error) {
	if op == supervisor.OpStart || op == supervisor.OpRestart {
		return nil, fmt.Errorf("%s needs the daemon: output capture lives in the daemon process", op)
	}
	return c.sup.Dispatch(ctx, op, token), nil
}

func (c directController) History(ctx context.Context, filter audit.Filter) (*audit.ListResult, error) {
	return c.history.List(ctx, filter)
}
