package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"ops-monitor/cmd/opsmonitor/config"
	"ops-monitor/internal/opsmonitor"
	"ops-monitor/internal/opsmonitor/backend"
	"ops-monitor/internal/opsmonitor/data/database"
	"ops-monitor/internal/opsmonitor/data/dbrepository"
	"ops-monitor/internal/opsmonitor/detector"
	"ops-monitor/internal/opsmonitor/metrics"
	"ops-monitor/internal/opsmonitor/notifier"
	"ops-monitor/internal/opsmonitor/ordersmonitor"
	"ops-monitor/internal/opsmonitor/service"
	"ops-monitor/internal/opsmonitor/snapshotstore"
	"ops-monitor/pkg/jwtfactory"
	"ops-monitor/pkg/logging"
	"ops-monitor/pkg/pgxstorage"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/jwtauth/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	logger, err := logging.NewZapLogger(level)
	if err != nil {
		log.Fatal(err)
	}

	rootCtx, cancelCtx := signal.NotifyContext(
		context.Background(),
		syscall.SIGHUP,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT,
		syscall.SIGABRT,
	)
	defer cancelCtx()

	err = run(rootCtx, cfg, logger)
	if err != nil {
		logger.ErrorCtx(rootCtx, "Monitor shutdown with error", zap.Error(err))
	} else {
		logger.InfoCtx(rootCtx, "Monitor shutdown gracefully")
	}
	_ = logger.Sync()
	cancelCtx()

	// a rejected session needs new credentials, the supervisor tells it apart by the exit code
	switch {
	case errors.Is(err, ordersmonitor.ErrSessionExpired):
		os.Exit(2)
	case err != nil:
		os.Exit(1)
	}
}

func run(rootCtx context.Context, cfg *config.Config, logger *logging.ZapLogger) error {
	metrics.RegisterDefault()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	tokenAuth := jwtauth.New(cfg.JWT.Algorithm, []byte(cfg.JWT.Secret), nil)
	tokenFactory := jwtfactory.New(tokenAuth, cfg.JWT.Issuer, cfg.JWT.ExpirationTime)
	backendClient := backend.New(cfg.Backend, tokenFactory, logger.Named("backend"))

	toggle := notifier.NewSwitch(cfg.Notifications.Enabled)
	hub := notifier.NewHub(logger.Named("hub"), cfg.Notifications.AllowedOrigins...)
	sinks := []notifier.Sink{notifier.NewLogSink(logger.Named("notifications")), hub}
	closers := make([]io.Closer, 0)
	defer func() {
		for _, closer := range closers {
			if err := closer.Close(); err != nil {
				logger.WarnCtx(rootCtx, "failed to close notification sink", zap.Error(err))
			}
		}
	}()
	if cfg.Notifications.RedisURL != "" {
		redisSink, err := notifier.NewRedisSink(cfg.Notifications.RedisURL, cfg.Notifications.RedisChannel)
		if err != nil {
			return fmt.Errorf("failed to create redis sink: %w", err)
		}
		sinks = append(sinks, redisSink)
		closers = append(closers, redisSink)
	}
	if cfg.Notifications.AMQP.URL != "" {
		amqpSink, err := notifier.DialAMQP(cfg.Notifications.AMQP)
		if err != nil {
			return fmt.Errorf("failed to create amqp sink: %w", err)
		}
		sinks = append(sinks, amqpSink)
		closers = append(closers, amqpSink)
	}
	dispatcher := notifier.NewDispatcher(cfg.Notifications.Dispatcher, toggle, logger.Named("dispatcher"), sinks...)

	store := snapshotstore.New()
	monitorConfig := cfg.Monitor
	monitorConfig.Location = loc
	monitor := ordersmonitor.NewOrdersMonitor(
		monitorConfig,
		backendClient,
		detector.New(detector.Config{Limits: cfg.SLALimits}, store),
		dispatcher,
		store,
		logger.Named("monitor"),
	)

	journal := service.NewJournal(nil, logger.Named("journal"))
	if cfg.DB.ConnectionString != "" {
		storage, err := pgxstorage.New(rootCtx, database.NewPgxDatabaseFactory(cfg.DB, logger.Named("database")))
		if err != nil {
			return fmt.Errorf("failed to open the audit journal: %w", err)
		}
		defer storage.Close()
		journal = service.NewJournal(dbrepository.New(storage, logger.Named("repository")), logger.Named("journal"))
	} else {
		logger.InfoCtx(rootCtx, "No database configured, audit journal disabled")
	}

	server := opsmonitor.NewServer(cfg.Server, tokenAuth, opsmonitor.Services{
		Monitor:        monitor,
		Notifications:  toggle,
		Stream:         hub,
		Reconciliation: service.NewReconciliation(cfg.Reconciliation, backendClient, logger.Named("reconciliation")),
		Journal:        journal,
	}, logger)

	g, ctx := errgroup.WithContext(rootCtx)

	context.AfterFunc(ctx, func() {
		ctx, cancelCtx := context.WithTimeout(context.Background(), cfg.ShutdownTimeout*2)
		defer cancelCtx()

		<-ctx.Done()
		log.Fatal("failed to gracefully shutdown the monitor")
	})

	g.Go(func() error {
		if err := server.Run(); err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		logger.InfoCtx(ctx, "Orders monitor started",
			zap.Duration("refreshPeriod", monitorConfig.TickPeriod),
			zap.String("timezone", loc.String()),
		)
		if err := monitor.Run(ctx); err != nil {
			return fmt.Errorf("orders monitor stopped: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		defer logger.InfoCtx(ctx, "Shutting down server")
		<-ctx.Done()
		if err := server.Shutdown(); err != nil {
			return fmt.Errorf("failed to shutdown server: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("goroutine error occurred: %w", err)
	}

	return nil
}
