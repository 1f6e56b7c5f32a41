// Garage Core - remote garage door relay
//
// This is the main entry point for the Garage Core daemon. It relays
// commands from authenticated users to garage door controllers and fans
// controller state out to browser observers, with optional MQTT and
// InfluxDB mirrors and a Telegram admin notifier.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/smartgarage/garage-core/migrations"

	"github.com/smartgarage/garage-core/internal/accesslog"
	"github.com/smartgarage/garage-core/internal/api"
	"github.com/smartgarage/garage-core/internal/auth"
	"github.com/smartgarage/garage-core/internal/garage"
	"github.com/smartgarage/garage-core/internal/infrastructure/config"
	"github.com/smartgarage/garage-core/internal/infrastructure/database"
	"github.com/smartgarage/garage-core/internal/infrastructure/influxdb"
	"github.com/smartgarage/garage-core/internal/infrastructure/logging"
	"github.com/smartgarage/garage-core/internal/infrastructure/mqtt"
	"github.com/smartgarage/garage-core/internal/notifier"
	"github.com/smartgarage/garage-core/internal/relay"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Cancel on interrupt signals (Ctrl+C, SIGTERM) for graceful shutdown.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
func run(ctx context.Context) error { //nolint:gocognit,cyclop // linear startup wiring of every component
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Garage Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised", "level", cfg.Logging.Level, "format", cfg.Logging.Format)

	// Open database
	db, err := database.Open(database.Config{
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
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Repositories
	garageRepo := garage.NewSQLiteRepository(db.DB)
	userRepo := auth.NewUserRepository(db.DB)
	logRepo := accesslog.NewSQLiteRepository(db.DB)

	// Seed the initial admin account on an empty user table. The
	// generated password is printed once in the log.
	if _, seedErr := auth.SeedAdmin(ctx, userRepo, log.Logger); seedErr != nil {
		return fmt.Errorf("seeding admin account: %w", seedErr)
	}

	// Relay core: registry holds live sessions, broadcaster fans state
	// out to observers, relay delivers commands.
	registry := relay.NewRegistry()
	registry.SetLogger(log)

	broadcaster := relay.NewBroadcaster()
	broadcaster.SetLogger(log)
	registry.SetSink(broadcaster)

	commandRelay := relay.NewRelay(registry)
	commandRelay.SetLogger(log)

	defer func() {
		registry.CloseAll()
		broadcaster.CloseAll()
	}()

	// Connect to MQTT broker for the retained state mirror (optional)
	if cfg.MQTT.Enabled {
		mqttClient, mqttErr := mqtt.Connect(cfg.MQTT)
		if mqttErr != nil {
			return fmt.Errorf("connecting to MQTT: %w", mqttErr)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})

		broadcaster.SetStatePublisher(mqtt.NewStateMirror(mqttClient))
		log.Info("MQTT state mirror enabled",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		)
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB for climate and door-state telemetry (optional)
	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(cfg.InfluxDB)
		if influxErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", influxErr)
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

		broadcaster.SetTelemetry(influxClient)
		log.Info("InfluxDB telemetry enabled", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Telegram admin notifier (optional)
	telegram, tgErr := notifier.New(cfg.Notifier)
	switch {
	case tgErr == nil:
		broadcaster.SetNotifier(telegram)
		log.Info("Telegram notifier enabled")
	case errors.Is(tgErr, notifier.ErrDisabled):
		log.Info("Telegram notifier disabled")
	default:
		return fmt.Errorf("configuring Telegram notifier: %w", tgErr)
	}

	// API server: REST plus the WebSocket session gateway
	server, err := api.New(api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		Security:    cfg.Security,
		Logger:      log,
		Registry:    registry,
		Relay:       commandRelay,
		Broadcaster: broadcaster,
		Garages:     garageRepo,
		Users:       userRepo,
		AccessLog:   logRepo,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started", "host", cfg.API.Host, "port", cfg.API.Port)

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server (stops accepting sessions)
	// 2. Notifier has nothing to close
	// 3. InfluxDB (if enabled)
	// 4. MQTT (if enabled)
	// 5. Registry and broadcaster (tear down live sessions)
	// 6. Database

	log.Info("Garage Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses the GARAGE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("GARAGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
