package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vitiko98/mopidy-qobuz/backend/config"
	"github.com/vitiko98/mopidy-qobuz/backend/db"
	logpkg "github.com/vitiko98/mopidy-qobuz/backend/logger"
	"github.com/vitiko98/mopidy-qobuz/backend/metrics"
	"github.com/vitiko98/mopidy-qobuz/backend/platform"
	platformplugins "github.com/vitiko98/mopidy-qobuz/backend/platform/plugins"
	"github.com/vitiko98/mopidy-qobuz/backend/server"
	"github.com/vitiko98/mopidy-qobuz/backend/worker"
	gormlogger "gorm.io/gorm/logger"

	_ "github.com/vitiko98/mopidy-qobuz/plugins/qobuz"
)

var (
	// ErrNoBackends is returned by Start when no plugin contributed a backend.
	ErrNoBackends = errors.New("no backends enabled")
	// ErrPluginsFailed is returned by Start when no backend is registered
	// because every enabled plugin failed to initialise.
	ErrPluginsFailed = errors.New("every enabled plugin failed to initialise")
)

// App wires all application dependencies.
type App struct {
	Config  *config.Config
	Logger  *logpkg.Logger
	DB      *db.Repository
	Pool    *worker.Pool
	Metrics *metrics.Metrics
	Manager *platform.DefaultManager
	Server  *server.Server
	Build   BuildInfo

	pluginErrs []error
}

// BuildInfo provides build-time metadata.
type BuildInfo struct {
	RuntimeVer string
	BinVersion string
	CommitSHA  string
	BuildTime  string
	BuildArch  string
}

// New loads configPath and builds the application container.
func New(configPath string, build BuildInfo) (*App, error) {
	conf, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return NewFromConfig(conf, build)
}

// NewFromConfig builds the application container from an already loaded config.
func NewFromConfig(conf *config.Config, build BuildInfo) (*App, error) {
	log, err := logpkg.New(logpkg.Options{
		Level:     conf.GetString("LogLevel"),
		Format:    conf.GetString("LogFormat"),
		AddSource: conf.GetBool("LogSource"),
		Dir:       conf.GetString("LogDir"),
	})
	if err != nil {
		return nil, err
	}

	gormLogger := logpkg.NewGormLogger(log.Zerolog(), mapLogLevel(conf.GetString("GormLogLevel")))
	databasePath := strings.TrimSpace(conf.GetString("Database"))
	if databasePath == "" {
		databasePath = "qobuz.db"
	}

	repo, err := db.NewSQLiteRepository(databasePath, gormLogger)
	if err != nil {
		_ = log.Close()
		return nil, fmt.Errorf("init db: %w", err)
	}
	poolMaxOpen := conf.GetInt("DBMaxOpenConns")
	poolMaxIdle := conf.GetInt("DBMaxIdleConns")
	poolMaxLifetimeSec := conf.GetInt("DBConnMaxLifetimeSec")
	if err := repo.ConfigurePool(poolMaxOpen, poolMaxIdle, time.Duration(poolMaxLifetimeSec)*time.Second); err != nil {
		_ = repo.Close()
		_ = log.Close()
		return nil, fmt.Errorf("configure db pool: %w", err)
	}

	pool := worker.New(conf.GetInt("WorkerPoolSize"))
	m := metrics.New()
	manager := platform.NewManager(log)
	var pluginErrs []error

	pluginNames := conf.PluginNames()
	if len(pluginNames) == 0 {
		pluginNames = platformplugins.Names()
	}
	for _, name := range pluginNames {
		factory, ok := platformplugins.Get(name)
		if !ok {
			log.Warn("plugin not registered", "plugin", name)
			continue
		}

		contrib, err := factory(platformplugins.Deps{
			Config:   conf,
			Logger:   log,
			Sessions: repo,
			Pool:     pool,
			Metrics:  m,
		})
		if err != nil {
			log.Error("plugin init failed", "plugin", name, "error", err)
			pluginErrs = append(pluginErrs, fmt.Errorf("plugin %s: %w", name, err))
			continue
		}
		if contrib == nil || contrib.Backend == nil {
			log.Info("plugin disabled by config", "plugin", name)
			continue
		}
		if err := manager.Register(contrib.Backend); err != nil {
			log.Error("backend registration failed", "plugin", name, "error", err)
			pluginErrs = append(pluginErrs, fmt.Errorf("plugin %s: %w", name, err))
		}
	}

	srv := server.New(manager, server.Options{
		Addr:               conf.GetString("ListenAddr"),
		RateLimitPerMinute: conf.GetInt("HTTPRateLimitPerMinute"),
		Logger:             log.With("component", "http"),
		Metrics:            m,
	})

	return &App{
		Config:  conf,
		Logger:  log,
		DB:      repo,
		Pool:    pool,
		Metrics: m,
		Manager: manager,
		Server:  srv,
		Build:   build,

		pluginErrs: pluginErrs,
	}, nil
}

// Start starts every registered backend. A single failing backend is logged
// and tolerated as long as another one came up.
func (a *App) Start(ctx context.Context) error {
	names := a.Manager.List()
	if len(names) == 0 {
		if len(a.pluginErrs) > 0 {
			return fmt.Errorf("%w: %w", ErrPluginsFailed, errors.Join(a.pluginErrs...))
		}
		return ErrNoBackends
	}
	if err := a.Manager.Start(ctx); err != nil {
		for _, name := range names {
			if a.Manager.Get(name).Ping() {
				a.Logger.Warn("continuing with partial backends", "error", err)
				return nil
			}
		}
		return err
	}
	a.Logger.Info("application started",
		"backends", names,
		"version", a.Build.BinVersion,
		"commit", a.Build.CommitSHA,
	)
	return nil
}

// Run starts the backends and serves the HTTP bridge until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		return err
	}
	return a.Server.Run(ctx, a.ShutdownTimeout())
}

// ShutdownTimeout bounds the graceful stop of the HTTP bridge and the backends.
func (a *App) ShutdownTimeout() time.Duration {
	sec := a.Config.GetInt("ShutdownTimeoutSec")
	if sec <= 0 {
		sec = 10
	}
	return time.Duration(sec) * time.Second
}

// Shutdown releases resources.
func (a *App) Shutdown(ctx context.Context) error {
	var firstErr error

	if a.Manager != nil {
		if err := a.Manager.Stop(ctx); err != nil {
			a.Logger.Error("failed to stop backends", "error", err)
			firstErr = fmt.Errorf("stop backends: %w", err)
		}
	}

	if a.Pool != nil {
		if err := a.Pool.Shutdown(ctx); err != nil {
			a.Pool.StopNow()
			if firstErr == nil {
				firstErr = fmt.Errorf("shutdown worker pool: %w", err)
			}
		}
	}

	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Error("failed to close database", "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("close database: %w", err)
			}
		}
	}

	if a.Logger != nil {
		if err := a.Logger.Close(); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("close logger: %w", err)
			}
		}
	}

	return firstErr
}

func mapLogLevel(level string) gormlogger.LogLevel {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "silent", "off":
		return gormlogger.Silent
	case "debug", "trace", "info":
		return gormlogger.Info
	case "error", "fatal", "panic":
		return gormlogger.Error
	default:
		return gormlogger.Warn
	}
}
