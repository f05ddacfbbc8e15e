package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/eaglebank/ledger/internal/command"
	"github.com/eaglebank/ledger/internal/config"
	"github.com/eaglebank/ledger/internal/handler"
	"github.com/eaglebank/ledger/internal/projection"
	"github.com/eaglebank/ledger/internal/service"
	"github.com/eaglebank/ledger/shared/events"
	"github.com/eaglebank/ledger/shared/logger"
	"github.com/eaglebank/ledger/shared/models"
	redisClient "github.com/eaglebank/ledger/shared/redis"
)

// streamMaxLen caps the ledger event stream at roughly this many entries.
const streamMaxLen = 100_000

func main() {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zl, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	for _, w := range cfg.Warnings {
		zl.Warn("config value replaced by default", zap.String("detail", w))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, zl); err != nil {
		zl.Error("ledger service stopped with error", zap.Error(err))
		os.Exit(1)
	}
	zl.Info("ledger service stopped")
}

func run(ctx context.Context, cfg config.Config, zl *zap.Logger) error {
	g, ctx := errgroup.WithContext(ctx)

	// Redis is optional: without it events are dropped and no projection runs.
	var publisher command.EventPublisher = events.NopPublisher{}
	if cfg.EventsEnabled() {
		redis, err := redisClient.NewClient(ctx, redisClient.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return err
		}
		defer redis.Close()
		publisher = events.NewPublisher(redis.Client, streamMaxLen)
		zl.Info("ledger events enabled", zap.String("stream", cfg.EventStream))

		if cfg.ProjectionEnabled {
			projector := projection.NewBalanceProjector(
				redisClient.NewViewCache[models.AccountSnapshot](redis.Client, 0, zl.Named("view_cache")),
				zl.Named("projection"),
			)
			subscriber := events.NewSubscriber(redis.Client, events.SubscriberConfig{
				Group:    cfg.ProjectionGroup,
				Consumer: cfg.ProjectionConsumer,
				Stream:   cfg.EventStream,
				Handler:  projector.HandleEvent,
				Logger:   zl.Named("subscriber"),
			})
			g.Go(func() error {
				if err := subscriber.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
					return fmt.Errorf("projection subscriber: %w", err)
				}
				return nil
			})
		}
	}

	ledger := service.New(service.Options{
		Publisher: publisher,
		Stream:    cfg.EventStream,
		Logger:    zl.Named("ledger"),
	})

	if cfg.Env != logger.EnvDevelopment && cfg.Env != logger.EnvLocal {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handler.NewRouter(
		handler.NewLedgerHandler(ledger, ledger, zl.Named("http")),
		zl.Named("access"),
		cfg.RequestTimeout,
		func() any { return ledger.Stats() },
	)

	server := &http.Server{
		Addr:    cfg.Addr(),
		Handler: router,
	}

	g.Go(func() error {
		zl.Info("ledger service starting", zap.String("addr", server.Addr), zap.String("env", cfg.Env))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		zl.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}
