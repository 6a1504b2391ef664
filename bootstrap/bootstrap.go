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

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/pkkmi/andikar-gate/adapters/clock"
	"github.com/pkkmi/andikar-gate/adapters/idgen"
	"github.com/pkkmi/andikar-gate/adapters/memory"
	"github.com/pkkmi/andikar-gate/adapters/metrics"
	"github.com/pkkmi/andikar-gate/adapters/redis"
	"github.com/pkkmi/andikar-gate/adapters/sqlite"
	"github.com/pkkmi/andikar-gate/adapters/upstream"
	"github.com/pkkmi/andikar-gate/app"
	"github.com/pkkmi/andikar-gate/config"
	"github.com/pkkmi/andikar-gate/ports"
	"github.com/pkkmi/andikar-gate/web"
)

// App represents the running application.
type App struct {
	Logger     zerolog.Logger
	Config     *config.Holder
	HTTPServer *http.Server
	Metrics    *metrics.Collector

	Humanizer *app.HumanizerService
	Detector  *app.DetectService

	// Adapters (for cleanup)
	db          *sqlite.DB
	redisClient *goredis.Client
	memLimiter  *memory.RateLimitStore
}

// Options configures application construction.
type Options struct {
	ConfigPath string // Empty falls back to environment variables
	Version    string
}

// New creates and initializes the application.
func New(opts Options) (*App, error) {
	cfg, holder, err := loadConfig(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	logger := setupLogger(cfg.Logging)
	logger.Info().Msg("initializing andikar-gate")

	a := &App{
		Logger: logger,
		Config: holder,
	}

	if cfg.Metrics.Enabled {
		a.Metrics = metrics.New()
		logger.Info().Msg("prometheus metrics enabled")
	}

	users, usageStore, err := a.initStores(cfg)
	if err != nil {
		return nil, err
	}

	rateLimitStore, err := a.initRateLimitStore(cfg)
	if err != nil {
		return nil, err
	}

	humanizer, err := upstream.New(upstream.Config{
		BaseURL:         cfg.Humanizer.URL,
		Path:            cfg.Humanizer.Path,
		APIKey:          cfg.Humanizer.APIKey,
		Timeout:         cfg.Humanizer.Timeout,
		LongInputWords:  cfg.Humanizer.LongInputWords,
		Formats:         cfg.Humanizer.Formats,
		ResultKeys:      cfg.Humanizer.ResultKeys,
		MaxRetries:      cfg.Humanizer.MaxRetries,
		BackoffInitial:  cfg.Humanizer.BackoffInitial,
		FallbackEnabled: cfg.Humanizer.FallbackOn(),
		UserAgent:       cfg.Humanizer.UserAgent,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("init humanizer client: %w", err)
	}

	a.Humanizer = app.NewHumanizerService(app.Deps{
		Users:     users,
		Usage:     usageStore,
		RateLimit: rateLimitStore,
		Humanizer: humanizer,
		Clock:     clock.Real{},
		IDGen:     idgen.UUID{},
		Logger:    logger,
		Metrics:   a.Metrics,
	}, dynamicConfig(cfg))
	a.Detector = app.NewDetectService(a.Humanizer, logger)

	if holder != nil {
		holder.OnChange(func(newCfg *config.Config) {
			a.Humanizer.UpdateConfig(dynamicConfig(newCfg))
			if a.Metrics != nil {
				a.Metrics.ConfigReloads.Inc()
			}
		})
		holder.OnReloadError(func(error) {
			if a.Metrics != nil {
				a.Metrics.ConfigReloadErrors.Inc()
			}
		})
	}

	a.initHTTPServer(cfg, opts.Version)

	// A startup probe gives an early signal in the logs; the gateway
	// still starts when the upstream is down and serves degraded output.
	go a.logUpstreamStatus()

	return a, nil
}

func loadConfig(path string) (*config.Config, *config.Holder, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			logger := setupLogger(config.LoggingConfig{})
			holder, err := config.NewHolder(path, logger)
			if err != nil {
				return nil, nil, err
			}
			return holder.Get(), holder, nil
		}
	}

	cfg, err := config.LoadWithFallback(path)
	if err != nil {
		return nil, nil, err
	}
	return cfg, nil, nil
}

func (a *App) initStores(cfg *config.Config) (ports.UserStore, ports.UsageStore, error) {
	switch cfg.Database.Driver {
	case "sqlite":
		db, err := sqlite.Open(cfg.Database.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open database: %w", err)
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("migrate database: %w", err)
		}
		a.db = db
		a.Logger.Info().Str("dsn", cfg.Database.DSN).Msg("sqlite storage ready")
		return sqlite.NewUserStore(db), sqlite.NewUsageStore(db), nil

	default:
		a.Logger.Info().Msg("using in-memory storage")
		return memory.NewUserStore(), memory.NewUsageStore(0), nil
	}
}

func (a *App) initRateLimitStore(cfg *config.Config) (ports.RateLimitStore, error) {
	if cfg.RateLimit.Store == "redis" {
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.redisClient = client
		a.Logger.Info().Str("addr", cfg.Redis.Addr).Msg("redis rate limiting ready")
		return redis.NewRateLimitStore(client, ""), nil
	}

	a.memLimiter = memory.NewRateLimitStore(memory.RateLimitConfig{})
	return a.memLimiter, nil
}

func (a *App) initHTTPServer(cfg *config.Config, version string) {
	handler := web.NewHandler(web.Deps{
		Humanizer: a.Humanizer,
		Detector:  a.Detector,
		Logger:    a.Logger,
		Metrics:   a.Metrics,
		Version:   version,
	})

	router := handler.Router(web.RouterConfig{
		Metrics:     a.Metrics,
		MetricsPath: cfg.Metrics.Path,
	})

	a.HTTPServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}

func (a *App) logUpstreamStatus() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.Humanizer.UpstreamStatus(ctx); err != nil {
		a.Logger.Warn().Err(err).Msg("humanizer upstream unreachable, degraded mode available")
		return
	}
	a.Logger.Info().Msg("humanizer upstream reachable")
}

// Run starts the HTTP server and blocks until shutdown.
func (a *App) Run() error {
	if a.Config != nil {
		if err := a.Config.WatchFile(); err != nil {
			a.Logger.Warn().Err(err).Msg("config file watch unavailable")
		}
		a.Config.WatchSignals()
	}

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().
			Str("addr", a.HTTPServer.Addr).
			Msg("starting http server")
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

	if a.Config != nil {
		a.Config.Stop()
	}

	if a.HTTPServer != nil {
		if err := a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("http server shutdown error")
		}
	}

	if a.memLimiter != nil {
		a.memLimiter.Close()
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("redis close error")
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("database close error")
		}
	}

	a.Logger.Info().Msg("shutdown complete")
	return nil
}

func dynamicConfig(cfg *config.Config) app.DynamicConfig {
	return app.DynamicConfig{
		Catalog:      cfg.Catalog(),
		RateWindow:   cfg.RateLimit.Window(),
		RateBurst:    cfg.RateLimit.BurstTokens,
		RateLimitOff: !cfg.RateLimit.Enabled,
	}
}

func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	levelStr := cfg.Level
	if levelStr == "" {
		levelStr = "info"
	}

	level, err := zerolog.ParseLevel(levelStr)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		return zerolog.New(output).With().Timestamp().Logger()
	}

	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}
