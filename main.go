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

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"karting-platform/internal"
	"karting-platform/internal/config"
	"karting-platform/internal/karting"
	"karting-platform/internal/logger"
	"karting-platform/internal/metrics"
	"karting-platform/internal/store/memory"
	"karting-platform/internal/store/postgres"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		config.Exitf("config: %v", err)
	}
	log := logger.New(os.Stdout, cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	svc := karting.NewService(store,
		karting.WithLogger(log),
		karting.WithMetrics(metrics.New(prometheus.DefaultRegisterer)),
		karting.WithEligibilityEnforcement(cfg.EnforceEligibility),
		karting.WithPageSizes(cfg.RacePageSize, cfg.KartPageSize),
	)

	gin.SetMode(gin.ReleaseMode)
	router := internal.NewRouter(&internal.App{
		Svc:          svc,
		Log:          log,
		Secret:       []byte(cfg.JWTSecret),
		CookieSecure: cfg.CookieSecure,
		SessionTTL:   cfg.SessionTTL,
	}, prometheus.DefaultGatherer)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", "addr", cfg.HTTPAddr, "store", cfg.Store)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func openStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (karting.Store, func(), error) {
	if cfg.Store == config.StoreMemory {
		log.Warn("using in-memory store, data is lost on exit")
		return memory.New(), func() {}, nil
	}

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL, cfg.DBMaxConns, log)
	if err != nil {
		return nil, nil, err
	}
	if err := postgres.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return postgres.New(pool), pool.Close, nil
}
