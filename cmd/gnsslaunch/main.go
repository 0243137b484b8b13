// gnsslaunch supervises the Septentrio GNSS receiver driver on the
// rover.
//
// It resolves the driver's configuration file, spawns the driver under a
// pseudo-terminal, respawns it after any exit, and shuts it down
// gracefully on SIGINT/SIGTERM. Lifecycle events are persisted to
// SQLite and optionally published to MQTT and recorded in InfluxDB. A
// small HTTP API exposes status and a manual restart.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	_ "github.com/roverlink/gnsslaunch/migrations"

	"github.com/roverlink/gnsslaunch/internal/api"
	"github.com/roverlink/gnsslaunch/internal/driver"
	"github.com/roverlink/gnsslaunch/internal/history"
	"github.com/roverlink/gnsslaunch/internal/infrastructure/config"
	"github.com/roverlink/gnsslaunch/internal/infrastructure/database"
	"github.com/roverlink/gnsslaunch/internal/infrastructure/influxdb"
	"github.com/roverlink/gnsslaunch/internal/infrastructure/logging"
	"github.com/roverlink/gnsslaunch/internal/infrastructure/mqtt"
	"github.com/roverlink/gnsslaunch/internal/launch"
	"github.com/roverlink/gnsslaunch/internal/process"
)

// Version information - set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// defaultConfigPath is used when neither the --config flag nor the
// GNSSLAUNCH_CONFIG environment variable is set.
const defaultConfigPath = "configs/config.yaml"

// recordTimeout bounds history writes from the event fan-out so a wedged
// disk cannot stall supervision.
const recordTimeout = 5 * time.Second

var (
	flagConfigPath   string
	flagFileName     string
	flagPathToConfig string
)

var rootCmd = &cobra.Command{
	Use:          "gnsslaunch",
	Short:        "Supervisor for the Septentrio GNSS receiver driver",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return run(cmd.Context())
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "print version information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("gnsslaunch: %s (commit %s, built %s)\n", version, commit, date)
		if info, ok := debug.ReadBuildInfo(); ok {
			fmt.Printf("go:         %s\n", info.GoVersion)
		}
	},
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rootCmd.PersistentFlags().StringVar(&flagConfigPath, "config", "",
		"supervisor config file (default "+defaultConfigPath+" or GNSSLAUNCH_CONFIG)")
	rootCmd.Flags().StringVar(&flagFileName, "file-name", "",
		"driver config file name within the share directory's config/ subdirectory")
	rootCmd.Flags().StringVar(&flagPathToConfig, "path-to-config", "",
		"explicit driver config path, overrides --file-name")

	rootCmd.AddCommand(versionCmd)

	rootCmd.SilenceErrors = true
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the supervisor lifecycle, separated from main for testability.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting gnsslaunch",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, configPath, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if configPath != "" {
		log.Info("configuration loaded", "path", configPath)
	} else {
		log.Info("no config file found, using defaults")
	}

	log = logging.New(cfg.Logging, version)

	// Open database and apply migrations
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	eventRepo := history.NewSQLiteRepository(db.DB)

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
		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() { log.Info("MQTT connected") })
		mqttClient.SetOnDisconnect(func(err error) { log.Warn("MQTT disconnected", "error", err) })
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
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
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Create the driver manager with the telemetry fan-out
	mgr, fanout, err := newDriverManager(cfg, log, eventRepo, mqttClient, influxClient)
	if err != nil {
		return err
	}
	// Closed after the manager stops so the final events are flushed while
	// the sinks are still open.
	defer fanout.Close()

	if err := mgr.Start(ctx); err != nil {
		return fmt.Errorf("starting driver: %w", err)
	}
	defer func() {
		log.Info("stopping driver")
		if stopErr := mgr.Stop(); stopErr != nil {
			log.Error("error stopping driver", "error", stopErr)
		}
	}()

	// Remote restart via MQTT command topic
	if mqttClient != nil {
		topic := mqtt.Topics{}.SystemCommand("restart")
		err := mqttClient.Subscribe(topic, byte(cfg.MQTT.QoS), func(_ string, _ []byte) error {
			log.Info("restart command received via MQTT")
			return mgr.Restart(ctx)
		})
		if err != nil {
			log.Warn("failed to subscribe to restart command", "error", err)
		}
	}

	// Periodic uptime samples for InfluxDB
	if influxClient != nil {
		go uptimeLoop(ctx, mgr, influxClient)
	}

	// Status API (optional)
	if cfg.API.Enabled {
		server, err := api.New(api.Deps{
			Config:  cfg.API,
			Logger:  log,
			Driver:  mgr,
			History: eventRepo,
			Version: version,
		})
		if err != nil {
			return fmt.Errorf("creating status API: %w", err)
		}
		if err := server.Start(ctx); err != nil {
			return fmt.Errorf("starting status API: %w", err)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing status API", "error", closeErr)
			}
		}()
	}

	log.Info("initialisation complete, supervising driver",
		"session", mgr.Session(),
	)

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// API, driver, event fan-out, InfluxDB, MQTT, database.

	return nil
}

// loadConfig resolves the configuration source and applies the driver
// flag overrides. Flag values win over file and environment values.
func loadConfig() (*config.Config, string, error) {
	path := flagConfigPath
	if path == "" {
		path = os.Getenv("GNSSLAUNCH_CONFIG")
	}

	var cfg *config.Config
	var err error
	switch {
	case path != "":
		cfg, err = config.Load(path)
	case fileExists(defaultConfigPath):
		path = defaultConfigPath
		cfg, err = config.Load(path)
	default:
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		return nil, "", err
	}

	if err := applyLaunchArguments(cfg, flagFileName, flagPathToConfig); err != nil {
		return nil, "", err
	}
	if err := cfg.Driver.Validate(); err != nil {
		return nil, "", err
	}

	return cfg, path, nil
}

// applyLaunchArguments resolves the driver launch arguments onto the
// configuration. CLI flags win over file and environment values, which in
// turn win over the built-in defaults; an unresolvable combination (e.g.
// an empty file name with no explicit path) is a startup error.
func applyLaunchArguments(cfg *config.Config, fileName, pathToConfig string) error {
	fileArg := launch.NewArgument("file_name", cfg.Driver.ConfigFile)
	if fileName != "" {
		fileArg.Set(fileName)
	}

	pathArg := launch.NewArgument("path_to_config", "")
	if cfg.Driver.ConfigPath != "" {
		pathArg.Set(cfg.Driver.ConfigPath)
	}
	if pathToConfig != "" {
		pathArg.Set(pathToConfig)
	}

	if _, err := launch.ResolveConfigArgument(cfg.Driver.ShareDir, fileArg, pathArg); err != nil {
		return fmt.Errorf("resolving driver config path: %w", err)
	}

	cfg.Driver.ConfigFile = fileArg.Value()
	cfg.Driver.ConfigPath = pathArg.Value()
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// eventQueueSize bounds the lifecycle event queue between the supervision
// goroutine and the telemetry fan-out.
const eventQueueSize = 64

// eventFanout decouples lifecycle event delivery from the supervision
// goroutine. Handle never blocks: events are queued and drained by a
// dedicated goroutine, and dropped with a warning when the consumer
// cannot keep up (a wedged disk or broker must not distort the respawn
// cadence).
type eventFanout struct {
	ch   chan driver.Event
	done chan struct{}
	sink func(driver.Event)
	log  *logging.Logger
}

func newEventFanout(sink func(driver.Event), log *logging.Logger) *eventFanout {
	f := &eventFanout{
		ch:   make(chan driver.Event, eventQueueSize),
		done: make(chan struct{}),
		sink: sink,
		log:  log,
	}
	go f.run()
	return f
}

// Handle enqueues one event without blocking. Safe to pass as the driver
// manager's event handler.
func (f *eventFanout) Handle(e driver.Event) {
	select {
	case f.ch <- e:
	default:
		f.log.Warn("event queue full, dropping lifecycle event",
			"type", e.Type,
			"session", e.Session,
		)
	}
}

func (f *eventFanout) run() {
	defer close(f.done)
	for e := range f.ch {
		f.sink(e)
	}
}

// Close drains the queued events and stops the fan-out goroutine. Call
// only after the producing manager has stopped.
func (f *eventFanout) Close() {
	close(f.ch)
	<-f.done
}

// newDriverManager creates the driver manager and wires its lifecycle
// events, via a non-blocking fan-out, into the history repository, MQTT,
// and InfluxDB.
func newDriverManager(
	cfg *config.Config,
	log *logging.Logger,
	eventRepo history.Repository,
	mqttClient *mqtt.Client,
	influxClient *influxdb.Client,
) (*driver.Manager, *eventFanout, error) {
	mgr, err := driver.NewManager(cfg.Driver)
	if err != nil {
		return nil, nil, fmt.Errorf("creating driver manager: %w", err)
	}
	mgr.SetLogger(log.ForProcess(cfg.Driver.Name))

	topics := mqtt.Topics{}
	fanout := newEventFanout(func(e driver.Event) {
		detail := ""
		if e.Err != nil {
			detail = e.Err.Error()
		}

		recordCtx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()

		if err := eventRepo.Record(recordCtx, &history.Event{
			Session:  e.Session,
			Process:  e.Process,
			Type:     string(e.Type),
			PID:      e.PID,
			ExitCode: e.ExitCode,
			Detail:   detail,
		}); err != nil {
			log.Error("recording lifecycle event failed", "error", err, "type", e.Type)
		}

		if mqttClient != nil {
			if err := mqttClient.PublishJSON(topics.ProcessEvent(e.Process), map[string]any{
				"type":      string(e.Type),
				"session":   e.Session,
				"pid":       e.PID,
				"exit_code": e.ExitCode,
				"detail":    detail,
				"timestamp": e.At.UTC().Format(time.RFC3339),
			}, false); err != nil {
				log.Warn("publishing lifecycle event failed", "error", err)
			}

			if err := mqttClient.PublishJSON(topics.ProcessState(e.Process), mgr.Stats(), true); err != nil {
				log.Warn("publishing process state failed", "error", err)
			}
		}

		if influxClient != nil {
			influxClient.WriteLifecycleEvent(e.Process, e.Session, string(e.Type), e.ExitCode)
		}
	}, log)
	mgr.SetEventHandler(fanout.Handle)

	return mgr, fanout, nil
}

// uptimeSampleInterval is how often uptime points are written while the
// driver is running.
const uptimeSampleInterval = 30 * time.Second

// uptimeLoop periodically records driver uptime in InfluxDB.
func uptimeLoop(ctx context.Context, mgr *driver.Manager, influxClient *influxdb.Client) {
	ticker := time.NewTicker(uptimeSampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := mgr.Stats()
			if stats.Process.Status == process.StatusRunning {
				influxClient.WriteUptime(stats.Process.Name, stats.Process.Uptime, stats.Process.RespawnCount)
			}
		}
	}
}
