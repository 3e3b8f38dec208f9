package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/football-investment/practice-booking-system-sub003/brackets"
	"github.com/football-investment/practice-booking-system-sub003/config"
	"github.com/football-investment/practice-booking-system-sub003/db"
	"github.com/football-investment/practice-booking-system-sub003/handlers"
	"github.com/football-investment/practice-booking-system-sub003/middleware"
	"github.com/football-investment/practice-booking-system-sub003/models"
	"github.com/football-investment/practice-booking-system-sub003/repositories"
	api "github.com/football-investment/practice-booking-system-sub003/routes"
	"github.com/football-investment/practice-booking-system-sub003/services"
	"github.com/football-investment/practice-booking-system-sub003/storage"
)

const shutdownTimeout = 15 * time.Second

func main() {
	configPath := flag.String("config", "", "directory containing config.yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort), slog.String("storage", cfg.StorageDriver))

	if err := run(cfg, logger); err != nil {
		logger.Error("application stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("application exited")
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (repositories.Store, func(), error) {
	if cfg.StorageDriver == config.StorageMemory {
		logger.Warn("using in-memory storage; state is lost on restart")
		return repositories.NewMemoryStore(), func() {}, nil
	}

	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := db.Migrate(ctx, dbConn); err != nil {
		_ = dbConn.Close()
		return nil, nil, fmt.Errorf("migrate database: %w", err)
	}
	logger.Info("database connection established")

	closeFn := func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
			return
		}
		logger.Info("database connection closed")
	}
	return repositories.NewPostgresStore(dbConn), closeFn, nil
}

func openArchive(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.ArchiveStore, error) {
	if !cfg.R2.Enabled() {
		logger.Warn("R2 bucket not configured; archives are kept in memory")
		return storage.NewMemoryArchive(cfg.R2.PublicBaseURL), nil
	}
	archive, err := storage.NewR2Archive(ctx, storage.R2Config{
		AccountID:       cfg.R2.AccountID,
		AccessKeyID:     cfg.R2.AccessKeyID,
		SecretAccessKey: cfg.R2.SecretAccessKey,
		BucketName:      cfg.R2.BucketName,
		PublicBaseURL:   cfg.R2.PublicBaseURL,
		Endpoint:        cfg.R2.Endpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize R2 archive: %w", err)
	}
	logger.Info("R2 archive initialized", slog.String("bucket", cfg.R2.BucketName))
	return archive, nil
}

func engineDefaults(cfg *config.Config) (services.EngineDefaults, brackets.SupportMatrix, error) {
	competitionCfg, err := cfg.Engine.CompetitionConfig(models.DefaultCompetitionConfig())
	if err != nil {
		return services.EngineDefaults{}, nil, err
	}
	tables, err := cfg.Engine.FormatRewardTables()
	if err != nil {
		return services.EngineDefaults{}, nil, err
	}
	matrix, err := brackets.DefaultSupportMatrix().Restrict(cfg.Engine.SupportMatrix)
	if err != nil {
		return services.EngineDefaults{}, nil, fmt.Errorf("engine support matrix: %w", err)
	}
	return services.EngineDefaults{Config: competitionCfg, RewardTables: tables}, matrix, nil
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	archive, err := openArchive(ctx, cfg, logger)
	if err != nil {
		return err
	}

	defaults, matrix, err := engineDefaults(cfg)
	if err != nil {
		return err
	}
	logger.Info("engine defaults loaded", slog.Any("combinations", matrix.Pairs()))

	wsHub := brackets.NewHub(logger)

	validator := services.NewRosterValidator(matrix)
	competitionService := services.NewCompetitionService(store, archive, validator, defaults, wsHub, logger)
	generationService := services.NewGenerationService(store, validator, wsHub, logger)
	resultService := services.NewResultService(store, wsHub, logger)
	rankingService := services.NewRankingService(store, wsHub, logger)
	rewardService := services.NewRewardService(store, wsHub, logger)
	dispatcher := services.NewDispatcher(services.DispatcherConfig{
		AsyncThreshold:  cfg.Dispatcher.AsyncThreshold,
		Workers:         cfg.Dispatcher.Workers,
		QueueSize:       cfg.Dispatcher.QueueSize,
		MaxRetries:      cfg.Dispatcher.MaxRetries,
		RetryBackoff:    cfg.Dispatcher.RetryBackoff,
		StaleAfter:      cfg.Dispatcher.StaleAfter,
		RequeueInterval: cfg.Dispatcher.RequeueInterval,
	}, store, generationService, wsHub, logger)
	logger.Info("services initialized")

	router := chi.NewRouter()
	var limiter *middleware.RateLimiter
	if cfg.RateLimit.PerSecond > 0 {
		limiter = middleware.NewRateLimiter(cfg.RateLimit.PerSecond, cfg.RateLimit.Burst)
	}
	api.SetupRoutes(router, api.Handlers{
		Competitions: handlers.NewCompetitionHandler(competitionService),
		Matches:      handlers.NewMatchHandler(competitionService, resultService, dispatcher),
		Standings:    handlers.NewStandingsHandler(rankingService, rewardService),
		WebSocket:    handlers.NewWebSocketHandler(wsHub, competitionService, cfg.AllowedOrigins, logger),
	}, api.Options{
		Auth:           middleware.NewAuthenticator(cfg.JWTSecretKey),
		Limiter:        limiter,
		AllowedOrigins: cfg.AllowedOrigins,
		Health:         store.Ping,
		Logger:         logger,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		wsHub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return dispatcher.Run(gctx)
	})
	g.Go(func() error {
		scheduler, err := dispatcher.StartRequeueScheduler(gctx)
		if err != nil {
			return fmt.Errorf("start requeue scheduler: %w", err)
		}
		<-gctx.Done()
		return scheduler.Shutdown()
	})
	g.Go(func() error {
		logger.Info("starting server", slog.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server", slog.Duration("timeout", shutdownTimeout))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			_ = server.Close()
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		logger.Info("server shutdown complete")
		return nil
	})

	return g.Wait()
}
