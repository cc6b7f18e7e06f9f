package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"registrar/internal/eventlog"
	judgementmetrics "registrar/internal/judgement/metrics"
	"registrar/internal/judgement/service"
	"registrar/internal/judgement/store"
	"registrar/internal/notifier"
	notifiermetrics "registrar/internal/notifier/metrics"
	"registrar/internal/notifier/sink/kafka"
	"registrar/internal/platform/config"
	"registrar/internal/platform/httpserver"
	"registrar/internal/platform/logger"
	"registrar/internal/platform/postgres"
	"registrar/internal/platform/redis"
	httptransport "registrar/internal/transport/http"
)

// main wires high-level dependencies and keeps the process lifecycle small.
// Business logic lives in the internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		judgementStore store.Store
		eventLog       eventlog.Log
	)
	if cfg.PostgresURL != "" {
		db, err := postgres.Open(ctx, cfg.PostgresURL)
		if err != nil {
			log.Error("postgres connection failed", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			log.Error("schema setup failed", "error", err)
			os.Exit(1)
		}
		judgementStore = store.NewPostgres(db)
		eventLog = eventlog.NewPostgres(db)
	} else {
		log.Warn("no postgres configured, using in-memory storage")
		judgementStore = store.NewInMemory()
		eventLog = eventlog.NewInMemory()
	}

	var cursors notifier.CursorStore = notifier.NewInMemoryCursors()
	redisClient, err := redis.New(ctx, cfg.RedisURL)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		cursors = notifier.NewRedisCursors(redisClient.Client)
	}

	var sink notifier.Sink = notifier.NewLogSink(log)
	if len(cfg.KafkaBrokers) > 0 {
		kafkaSink, err := kafka.New(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			log.Error("kafka connection failed", "error", err)
			os.Exit(1)
		}
		defer kafkaSink.Close()
		sink = kafkaSink
	}

	svc, err := service.New(judgementStore, eventLog,
		service.WithLogger(log),
		service.WithMetrics(judgementmetrics.New()),
	)
	if err != nil {
		log.Error("service setup failed", "error", err)
		os.Exit(1)
	}

	sessionNotifier, err := notifier.New(eventLog, svc, cursors, sink, cfg.NotifyConsumer,
		notifier.WithInterval(cfg.NotifyInterval),
		notifier.WithLogger(log),
		notifier.WithMetrics(notifiermetrics.New()),
	)
	if err != nil {
		log.Error("notifier setup failed", "error", err)
		os.Exit(1)
	}

	handler := httptransport.NewHandler(svc, log)
	srv := httpserver.New(cfg.Addr, httptransport.NewRouter(handler))

	log.Info("starting registrar", "addr", cfg.Addr)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		if err := sessionNotifier.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		log.Error("shutdown with error", "error", err)
		os.Exit(1)
	}
	log.Info("registrar stopped")
}
