// Gray Logic Node - battery-conscious telemetry node
//
// This is the main entry point for a Gray Logic field node. The node keeps
// one MQTT session to the site broker, samples its sensor buses on a fixed
// duty cycle and publishes each reading as a small JSON document.
//
// The process takes no arguments. Configuration is read from the file named
// by GRAYNODE_CONFIG (default configs/config.yaml). Startup failures end in
// a restart; everything after startup is contained within its cycle.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	_ "github.com/nerrad567/gray-logic-node/migrations"

	"github.com/nerrad567/gray-logic-node/internal/api"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/clock"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-node/internal/journal"
	"github.com/nerrad567/gray-logic-node/internal/node"
	"github.com/nerrad567/gray-logic-node/internal/platform"
	"github.com/nerrad567/gray-logic-node/internal/process"
	"github.com/nerrad567/gray-logic-node/internal/telemetry"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// timeSyncTimeout bounds the post-link clock sync command.
const timeSyncTimeout = 30 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		var exitErr *platform.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

// run wires the node together and drives the control loop until ctx is
// cancelled. It returns an error for configuration problems and for a
// startup failure whose restart did not replace the process.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting Gray Logic Node",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version, cfg.Node.ID)
	log.Info("configuration loaded",
		"path", configPath,
		"sensors", len(cfg.ActiveSensors()),
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
	)

	if needsHost(cfg) {
		if err := platform.InitHost(); err != nil {
			return err
		}
	}

	clk := clock.Real{}

	sources, closeSources, err := buildSources(cfg, clk, log)
	if err != nil {
		return err
	}
	defer closeSources()

	var repo *journal.SQLiteRepository
	if cfg.Journal.Enabled {
		db, err := openJournal(ctx, cfg.Journal)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("closing journal")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing journal", "error", closeErr)
			}
		}()
		repo = journal.NewSQLiteRepository(db.DB)
		log.Info("journal opened", "path", cfg.Journal.Path, "retention_days", cfg.Journal.RetentionDays)
	}

	session := mqtt.NewSession(mqtt.NewSessionConfig(cfg.MQTT))
	session.SetLogger(log.Component("mqtt"))

	publisher, err := telemetry.NewPublisher(session, clk, telemetry.OptionsFromConfig(cfg))
	if err != nil {
		return fmt.Errorf("creating publisher: %w", err)
	}
	publisher.SetLogger(log.Component("telemetry"))

	link := newLink(cfg, clk, log)
	defer func() {
		if closeErr := link.Close(); closeErr != nil {
			log.Error("error stopping link daemon", "error", closeErr)
		}
	}()

	restarter := newRestarter(cfg.Restart)
	loop, err := node.New(node.Deps{
		Link:      link,
		TimeSync:  platform.NewCommandTimeSync(cfg.Network.TimeSyncCommand, timeSyncTimeout),
		Restarter: restarter,
		Session:   session,
		Publisher: publisher,
		Sources:   sources,
		Clock:     clk,
	}, node.OptionsFromConfig(cfg))
	if err != nil {
		return fmt.Errorf("creating control loop: %w", err)
	}
	loop.SetLogger(log.Component("node"))
	loop.SetIndicator(openIndicator(cfg.Indicator, log))
	if repo != nil {
		loop.SetJournal(repo)
	}
	session.RegisterSubscriber("node", loop.HandleMessage)

	if cfg.API.Enabled {
		if srv := startAPI(ctx, cfg, loop, session, repo, log); srv != nil {
			defer func() {
				if closeErr := srv.Close(); closeErr != nil {
					log.Error("error closing API server", "error", closeErr)
				}
			}()
		}
	}

	var influx *influxdb.Client
	if cfg.InfluxDB.Enabled {
		loop.OnStarted(func(context.Context) {
			influx = connectInflux(cfg, log)
			if influx != nil {
				publisher.SetArchive(influx)
				loop.SetCycleRecorder(influx)
			}
		})
		defer func() {
			if influx == nil {
				return
			}
			log.Info("closing InfluxDB connection")
			if closeErr := influx.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
	} else {
		log.Info("InfluxDB disabled")
	}

	if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return exitAfterCleanup(restarter, err)
	}

	log.Info("Gray Logic Node stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses GRAYNODE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("GRAYNODE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// needsHost reports whether any configured hardware needs the periph host drivers.
func needsHost(cfg *config.Config) bool {
	if cfg.Indicator.Enabled {
		return true
	}
	for _, s := range cfg.ActiveSensors() {
		if s.Type == config.SensorTypeDS18B20 {
			return true
		}
	}
	return false
}

// openJournal opens and migrates the local journal database.
func openJournal(ctx context.Context, cfg config.JournalConfig) (*database.DB, error) {
	db, err := database.Open(database.Config{
		Path:        cfg.Path,
		WALMode:     cfg.WALMode,
		BusyTimeout: cfg.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close() //nolint:errcheck // Already returning an error
		return nil, fmt.Errorf("migrating journal: %w", err)
	}
	return db, nil
}

// newLink builds the link adapter, supervising the link daemon when one is configured.
func newLink(cfg *config.Config, clk clock.Clock, log *logging.Logger) *platform.Link {
	var daemon platform.Daemon
	if cfg.Network.Supervisor.Binary != "" {
		s := process.NewSupervisor(supervisorConfig(cfg.Network))
		s.SetLogger(log.Component("process"))
		daemon = s
	}

	link := platform.NewLink(cfg.Network.Interface, time.Duration(cfg.Network.WaitTimeout)*time.Second, daemon, clk)
	link.SetLogger(log.Component("link"))
	return link
}

// supervisorConfig describes the link daemon. With a health interval set, the
// daemon is restarted once the interface has lost its address for three
// checks in a row.
func supervisorConfig(cfg config.NetworkConfig) process.Config {
	sup := cfg.Supervisor
	pc := process.Config{
		Name:   filepath.Base(sup.Binary),
		Binary: sup.Binary,
		Args:   sup.Args,
	}
	if sup.HealthInterval > 0 {
		pc.HealthCheck = platform.AddressCheck(cfg.Interface)
		pc.HealthInterval = time.Duration(sup.HealthInterval) * time.Second
	}
	return pc
}

// newRestarter returns the configured restart primitive.
func newRestarter(cfg config.RestartConfig) node.Restarter {
	if cfg.Mode == config.RestartModeCommand {
		return platform.NewCommandRestarter(cfg.Command)
	}
	return platform.NewExitRestarter(cfg.ExitCode)
}

// exitAfterCleanup turns a pending exit restart into an ExitError. Returning
// it from run lets the deferred closes stop the link daemon first.
func exitAfterCleanup(restarter node.Restarter, err error) error {
	if r, ok := restarter.(*platform.ExitRestarter); ok {
		if code, pending := r.Pending(); pending {
			return &platform.ExitError{Code: code, Err: err}
		}
	}
	return err
}

// openIndicator opens the status LED, falling back to none when it is
// disabled or the pin cannot be claimed.
func openIndicator(cfg config.IndicatorConfig, log *logging.Logger) node.Indicator {
	if !cfg.Enabled {
		return node.NopIndicator{}
	}
	led, err := platform.OpenLED(cfg.Pin)
	if err != nil {
		log.Warn("status indicator unavailable", "pin", cfg.Pin, "error", err)
		return node.NopIndicator{}
	}
	led.SetLogger(log.Component("indicator"))
	return led
}

// startAPI starts the diagnostics server. A failure only disables it.
func startAPI(ctx context.Context, cfg *config.Config, loop *node.Loop, session *mqtt.Session, repo *journal.SQLiteRepository, log *logging.Logger) *api.Server {
	deps := api.Deps{
		Config:  cfg.API,
		Logger:  log.Component("api"),
		Cycles:  loop,
		Session: session,
		NodeID:  cfg.Node.ID,
		Version: version,
	}
	if repo != nil {
		deps.Journal = repo
	}

	srv, err := api.New(deps)
	if err == nil {
		err = srv.Start(ctx)
	}
	if err != nil {
		log.Warn("diagnostics API unavailable", "error", err)
		return nil
	}
	return srv
}

// connectInflux connects the optional archive. A failure only disables it.
func connectInflux(cfg *config.Config, log *logging.Logger) *influxdb.Client {
	client, err := influxdb.Connect(cfg.InfluxDB, cfg.Node.ID)
	if err != nil {
		log.Warn("InfluxDB unavailable, archive disabled", "url", cfg.InfluxDB.URL, "error", err)
		return nil
	}
	client.SetOnError(func(err error) {
		log.Error("InfluxDB write error", "error", err)
	})
	log.Info("InfluxDB connected",
		"url", cfg.InfluxDB.URL,
		"org", cfg.InfluxDB.Org,
		"bucket", cfg.InfluxDB.Bucket,
	)
	return client
}
