// Package bootstrap wires all dependencies and starts the application.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/artpar/recordbase/adapters/blob"
	"github.com/artpar/recordbase/adapters/cassandra"
	"github.com/artpar/recordbase/adapters/clock"
	"github.com/artpar/recordbase/adapters/disk"
	"github.com/artpar/recordbase/adapters/hasher"
	"github.com/artpar/recordbase/adapters/idgen"
	"github.com/artpar/recordbase/adapters/memory"
	"github.com/artpar/recordbase/adapters/metrics"
	"github.com/artpar/recordbase/config"
	"github.com/artpar/recordbase/core/access"
	"github.com/artpar/recordbase/core/resource"
	"github.com/artpar/recordbase/core/tasks"
	"github.com/artpar/recordbase/core/users"
	"github.com/artpar/recordbase/ports"
	"github.com/artpar/recordbase/web"
)

// App is the assembled application.
type App struct {
	Logger   zerolog.Logger
	Config   *config.Holder
	Metrics  *metrics.Collector
	Store    ports.Store
	Blobs    ports.BlobStore
	Registry *resource.Registry
	Users    *users.Manager
	Access   *access.Evaluator
	Tasks    *tasks.Runner

	HTTPServer *http.Server
}

// New assembles the application from a static configuration.
func New(cfg *config.Config) (*App, error) {
	logger := setupLogger(cfg)
	return build(config.NewStaticHolder(cfg, logger), logger)
}

// NewFromFile assembles the application from a config file with hot
// reload (file watch plus SIGHUP).
func NewFromFile(path string) (*App, error) {
	bootLogger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	holder, err := config.NewHolder(path, bootLogger)
	if err != nil {
		return nil, err
	}

	logger := setupLogger(holder.Get())
	if err := holder.WatchFile(); err != nil {
		logger.Warn().Err(err).Msg("config file watch unavailable")
	}
	holder.WatchSignals()

	return build(holder, logger)
}

func build(holder *config.Holder, logger zerolog.Logger) (*App, error) {
	cfg := holder.Get()
	ctx := context.Background()

	logger.Info().Str("mode", cfg.Mode).Msg("initializing recordbase")

	a := &App{
		Logger: logger,
		Config: holder,
	}

	if cfg.Metrics.Enabled {
		a.Metrics = metrics.New()
		holder.OnChange(func(*config.Config) { a.Metrics.ConfigReloads.Inc() })
		holder.OnError(func(error) { a.Metrics.ConfigReloadErrors.Inc() })
		logger.Info().Msg("prometheus metrics enabled")
	}
	holder.OnChange(func(next *config.Config) { applyLogLevel(next) })

	store, err := openStore(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a.Store = store

	blobs, err := blob.OpenDisk(cfg.Uploads.Dir)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("open uploads: %w", err)
	}
	a.Blobs = blobs

	a.Registry = resource.NewRegistry(resource.Options{
		Store:    store,
		Blobs:    blobs,
		Clock:    clock.Real{},
		IDs:      idgen.UUID{},
		Logger:   logger,
		TestMode: cfg.Mode == config.ModeTest,
	})

	tokenService := users.NewTokenService(cfg.Session.Secret, cfg.Session.ExpiresIn, clock.Real{})
	a.Users, err = users.New(ctx, a.Registry, tokenService, hasher.NewBcrypt(0), logger)
	if err != nil {
		a.closeStores()
		return nil, fmt.Errorf("init users: %w", err)
	}

	a.Access = access.New(a.Registry, logger, cfg.Testing.DisableAuthentication)

	a.Tasks, err = tasks.New(ctx, a.Registry, logger)
	if err != nil {
		a.closeStores()
		return nil, fmt.Errorf("init tasks: %w", err)
	}
	if a.Metrics != nil {
		a.Tasks.OnRun = func(task string, status tasks.RunStatus) {
			a.Metrics.TaskRuns.WithLabelValues(task, string(status)).Inc()
		}
	}

	handler := web.NewHandler(web.Deps{
		Registry:      a.Registry,
		Users:         a.Users,
		Access:        a.Access,
		Metrics:       a.Metrics,
		Logger:        logger,
		EnableMetrics: cfg.Metrics.Enabled,
		MetricsPath:   cfg.Metrics.Path,
		EnableDocs:    cfg.Docs.Enabled,
	})

	a.HTTPServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      handler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return a, nil
}

func openStore(cfg *config.Config, logger zerolog.Logger) (ports.Store, error) {
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		return memory.New(), nil
	case config.DriverDisk:
		return disk.Open(cfg.Storage.DataDir, logger)
	case config.DriverCassandra:
		return cassandra.Connect(cassandra.Config{
			Hosts:    cfg.Storage.Cassandra.Hosts,
			Keyspace: cfg.Storage.Cassandra.Keyspace,
			Timeout:  cfg.Storage.Cassandra.Timeout,
		}, logger)
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}

// Run starts the HTTP server and blocks until a signal or server error.
func (a *App) Run() error {
	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().Str("addr", a.HTTPServer.Addr).Msg("starting http server")
		if err := a.HTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		a.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	return a.Shutdown()
}

// Shutdown gracefully stops the application.
func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if a.Tasks != nil {
		a.Tasks.StopAll()
	}

	if a.HTTPServer != nil {
		if err := a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("http server shutdown error")
		}
	}

	a.Config.Stop()
	a.closeStores()

	a.Logger.Info().Msg("shutdown complete")
	return nil
}

func (a *App) closeStores() {
	if a.Blobs != nil {
		if err := a.Blobs.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("blob store close error")
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("store close error")
		}
	}
}

func setupLogger(cfg *config.Config) zerolog.Logger {
	applyLogLevel(cfg)

	if cfg.Logging.Format == "console" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

func applyLogLevel(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}
