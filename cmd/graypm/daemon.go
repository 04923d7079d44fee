package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/gray-logic-pm/internal/api"
	"github.com/nerrad567/gray-logic-pm/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-pm/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-pm/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-pm/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-pm/internal/process"
	"github.com/nerrad567/gray-logic-pm/internal/supervisor"
)

// pingTimeout bounds the check for an already running daemon.
const pingTimeout = 2 * time.Second

func init() {
	rootCmd.AddCommand(cmdDaemon)
}

var cmdDaemon = &cobra.Command{
	Use:   "daemon",
	Short: "Run the supervisor daemon in the foreground",
	Long:  `Runs the daemon until SIGINT or SIGTERM. On start it registers itself in the table, starts every autorun record and serves the control surface. Children keep running when the daemon exits.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return runDaemon(cmd.Context(), cfg)
	},
}

// runDaemon is the daemon's lifetime, separated from the command for
// testability. It returns nil on a clean, signal-driven shutdown.
func runDaemon(ctx context.Context, cfg *config.Config) error {
	log := logging.New(cfg.Logging, version)
	defer log.Close() //nolint:errcheck // Nothing left to report to

	log.Info("starting graypm daemon",
		"version", version,
		"commit", commit,
		"build_date", date,
		"home", cfg.Home,
	)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	info, err := api.NewClient(cfg.Address(), pingTimeout).Ping(pingCtx)
	cancel()
	if err == nil {
		return fmt.Errorf("a daemon is already running at %s (pid %d)", cfg.Address(), info.PID)
	}

	metrics := api.NewMetrics()
	events := supervisor.Publishers{metrics}
	health := map[string]api.HealthChecker{}

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log.With("component", "mqtt"))
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
		events = append(events, supervisor.NewMQTTEvents(mqttClient, mqttClient.Topics(), mqttClient.QoS()))
		health["mqtt"] = mqttClient
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
		health["influxdb"] = influxClient
	} else {
		log.Info("InfluxDB disabled")
	}

	st, err := openStack(ctx, cfg, log, events)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing database")
		if closeErr := st.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	health["database"] = st.db
	log.Info("process table ready", "path", cfg.Database.Path)

	booted, err := st.sup.Boot(ctx)
	if err != nil {
		return fmt.Errorf("booting supervisor: %w", err)
	}
	failed := 0
	for _, o := range booted {
		if o.Failed() {
			failed++
		}
	}
	log.Info("autorun records started", "total", len(booted), "failed", failed)

	g, gctx := errgroup.WithContext(ctx)

	commands := &commandRunner{}
	if mqttClient != nil {
		if err := subscribeCommands(gctx, mqttClient, st.sup, commands, log); err != nil {
			log.Warn("remote commands unavailable", "error", err)
		}
	}

	server, err := api.New(api.Deps{
		Config:     cfg.API,
		Logger:     log.With("component", "api"),
		Supervisor: st.sup,
		Health:     health,
		History:    st.history,
		Metrics:    metrics,
		Version:    version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return err
	}

	g.Go(func() error {
		return st.procs.Run(gctx, func(e process.Exit) {
			st.sup.HandleExit(gctx, e)
		})
	})
	g.Go(func() error {
		return st.sup.RunAutorun(gctx)
	})
	if influxClient != nil {
		interval := time.Duration(cfg.InfluxDB.SampleInterval) * time.Second
		g.Go(func() error {
			return st.sup.RunSampler(gctx, interval, influxClient)
		})
	}

	for name, c := range health {
		if err := c.HealthCheck(ctx); err != nil {
			log.Warn("health check failed", "component", name, "error", err)
		}
	}
	log.Info("initialisation complete, waiting for shutdown signal", "address", server.Addr())

	<-gctx.Done()
	log.Info("shutdown signal received, cleaning up")

	if err := server.Close(); err != nil {
		log.Error("error closing API server", "error", err)
	}
	commands.Close()
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	log.Info("graypm daemon stopped", "unreaped", st.procs.Len())
	return nil
}

// subscribeCommands runs lifecycle operations published on
// <prefix>/command/<op>; the payload is the selector token.
func subscribeCommands(ctx context.Context, client *mqtt.Client, sup *supervisor.Supervisor, runner *commandRunner, log *logging.Logger) error {
	topics := client.Topics()
	return client.Subscribe(topics.AllCommands(), client.QoS(), func(topic string, payload []byte) error {
		op, ok := topics.CommandOp(topic)
		if !ok {
			return nil
		}
		token := strings.TrimSpace(string(payload))
		if token == "" {
			return fmt.Errorf("command %s: empty selector", op)
		}
		log.Info("remote command", "op", op, "selector", token)
		// Stop can wait on a process tree; keep the MQTT router free.
		if !runner.Go(func() { sup.Dispatch(ctx, op, token) }) {
			return fmt.Errorf("command %s: daemon is shutting down", op)
		}
		return nil
	})
}

// commandRunner runs remote commands off the MQTT router. Close refuses new
// commands and waits for the ones in flight, so none outlives the table.
type commandRunner struct {
	mu     sync.Mutex
	closed bool
	group  errgroup.Group
}

// Go starts fn unless the runner is closed.
func (r *commandRunner) Go(fn func()) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	r.group.Go(func() error {
		fn()
		return nil
	})
	return true
}

// Close waits for every command started by Go.
func (r *commandRunner) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	_ = r.group.Wait()
}
