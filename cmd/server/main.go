package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/paulmach/orb"
	"github.com/redis/go-redis/v9"

	"mapmeasure/internal/api"
	"mapmeasure/internal/config"
	"mapmeasure/internal/geo"
	"mapmeasure/internal/interaction"
	"mapmeasure/internal/logging"
	"mapmeasure/internal/measure"
	"mapmeasure/internal/metrics"
	"mapmeasure/internal/session"
	"mapmeasure/internal/storage"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}
	logger := logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend := initBackend(ctx, cfg, logger)
	defer backend.Close()
	newIndex := initIndex(ctx, cfg, backend, logger)

	hub := session.NewHub(logger)
	go hub.Run(ctx)

	manager := session.NewManager(session.ManagerOptions{
		Session: session.Config{
			Machine:         machineConfig(cfg),
			ToleranceMeters: cfg.Index.ToleranceMeters,
			Logger:          logger,
		},
		Backend:   backend,
		KeyPrefix: cfg.Storage.KeyPrefix,
		Defaults:  defaultState(cfg),
		Timeout:   cfg.Storage.Timeout,
		NewIndex:  newIndex,
		Publish:   hub.Publish,
		Logger:    logger,
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(api.RequestLogger(logger))
	r.Use(metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	api.AttachRoutes(r, manager, hub, api.Options{StaticRoot: cfg.Server.StaticRoot, Logger: logger})

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           r,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}

	go func() {
		logger.Info("mapmeasure API listening", "addr", cfg.Server.Addr, "storage", backend.Name(), "index", cfg.Index.Backend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	if err := manager.Close(shutdownCtx); err != nil {
		logger.Warn("session flush", "error", err)
	}
}

func loadConfig() (*config.Config, error) {
	if path := os.Getenv("MAPMEASURE_CONFIG"); path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

// initBackend opens the configured backend and falls back to memory so the
// map stays usable without persistence.
func initBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) storage.Backend {
	openCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	backend, err := storage.Open(openCtx, storage.Options{
		Backend:     cfg.Storage.Backend,
		FileDir:     cfg.Storage.FileDir,
		SQLitePath:  cfg.Storage.SQLitePath,
		DatabaseURL: cfg.Storage.DatabaseURL,
		RedisURL:    cfg.Storage.RedisURL,
		ValkeyAddr:  cfg.Storage.ValkeyAddr,
	})
	if err != nil {
		logger.Warn("storage unavailable, falling back to in-memory", "backend", cfg.Storage.Backend, "error", err)
		return storage.NewMemory()
	}
	logger.Info("using storage backend", "backend", backend.Name())
	return backend
}

func initIndex(ctx context.Context, cfg *config.Config, backend storage.Backend, logger *slog.Logger) func(string) geo.HitIndex {
	memory := func(string) geo.HitIndex { return geo.NewMemoryIndex() }
	if cfg.Index.Backend != "redis" {
		return memory
	}

	var client *redis.Client
	if rb, ok := backend.(*storage.Redis); ok {
		client = rb.Client()
	} else {
		opt, err := redis.ParseURL(cfg.Storage.RedisURL)
		if err != nil {
			logger.Warn("redis URL parse error, hit index fallback to in-memory", "error", err)
			return memory
		}
		client = redis.NewClient(opt)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unreachable, hit index fallback to in-memory", "error", err)
		return memory
	}
	logger.Info("using Redis hit index")
	prefix := cfg.Storage.KeyPrefix + ":geo:"
	return func(id string) geo.HitIndex { return geo.NewRedisIndex(client, prefix+id) }
}

func machineConfig(cfg *config.Config) interaction.Config {
	mc := interaction.DefaultConfig()
	mc.Snapper = geo.Snapper{Targets: cfg.Measure.SnapTargets, Threshold: cfg.Measure.SnapThresholdMeters}
	mc.MinCircleRadius = cfg.Measure.MinCircleRadiusMeters
	mc.CircleSteps = cfg.Measure.CircleSteps
	mc.LongPress = cfg.Measure.LongPress
	return mc
}

func defaultState(cfg *config.Config) measure.PersistedState {
	s := measure.DefaultState()
	s.View = measure.ViewState{
		Center: orb.Point{cfg.View.DefaultCenter[0], cfg.View.DefaultCenter[1]},
		Zoom:   cfg.View.DefaultZoom,
	}
	return s
}
