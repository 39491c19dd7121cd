package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/api-sage/txn-settlement-processor/internal/adapter/broker"
	brokermemory "github.com/api-sage/txn-settlement-processor/internal/adapter/broker/memory"
	"github.com/api-sage/txn-settlement-processor/internal/adapter/broker/rabbitmq"
	"github.com/api-sage/txn-settlement-processor/internal/adapter/http/controller"
	"github.com/api-sage/txn-settlement-processor/internal/adapter/http/middleware"
	"github.com/api-sage/txn-settlement-processor/internal/adapter/http/router"
	"github.com/api-sage/txn-settlement-processor/internal/adapter/repository/memory"
	"github.com/api-sage/txn-settlement-processor/internal/adapter/repository/postgres"
	"github.com/api-sage/txn-settlement-processor/internal/adapter/repository/repo_interfaces"
	"github.com/api-sage/txn-settlement-processor/internal/config"
	"github.com/api-sage/txn-settlement-processor/internal/logger"
	"github.com/api-sage/txn-settlement-processor/internal/usecase/services"
	"github.com/api-sage/txn-settlement-processor/pkg/keymutex"
	"github.com/api-sage/txn-settlement-processor/pkg/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	accountRepo, transactionRepo, closeStore, err := buildStore(ctx, cfg)
	if err != nil {
		log.Fatalf("build store: %v", err)
	}
	defer closeStore()

	publisher, consumer, closeBroker, err := buildBroker(cfg)
	if err != nil {
		log.Fatalf("build broker: %v", err)
	}
	defer closeBroker()

	collector := metrics.NewCollector()
	locks := keymutex.New()

	dispatcher := services.NewDispatchService(publisher, cfg.RequestQueue, cfg.DispatchMaxAttempts, cfg.DispatchBackoffBase, collector)
	transactionService := services.NewTransactionService(transactionRepo, accountRepo, dispatcher, locks, collector)
	verdictService := services.NewVerdictService(transactionRepo, accountRepo, locks, collector)

	transactionController := controller.NewTransactionController(transactionService)
	mux := router.New(transactionController, middleware.BasicAuth(cfg.ChannelID, cfg.ChannelKey))

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	metricsServer := collector.StartMetricsServer(cfg.MetricsAddr)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", logger.Fields{"addr": cfg.HTTPAddr})
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		err := consumer.Consume(gctx, cfg.VerdictQueue, verdictService.HandleMessage)
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received", nil)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown failed", err, nil)
		}
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown failed", err, nil)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("server exited: %v", err)
	}

	logger.Info("shutdown complete", nil)
}

func buildStore(ctx context.Context, cfg config.Config) (repo_interfaces.AccountRepository, repo_interfaces.TransactionRepository, func(), error) {
	if cfg.DatabaseDSN == "" {
		logger.Info("no DATABASE_DSN configured, using in-memory store", nil)
		return memory.NewAccountRepository(), memory.NewTransactionRepository(), func() {}, nil
	}

	migrateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := postgres.RunMigrations(migrateCtx, cfg.DatabaseDSN, cfg.MigrationsDir); err != nil {
		return nil, nil, nil, err
	}

	db, err := postgres.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, nil, nil, err
	}

	return postgres.NewAccountRepository(db), postgres.NewTransactionRepository(db), func() { _ = db.Close() }, nil
}

func buildBroker(cfg config.Config) (broker.Publisher, broker.Consumer, func(), error) {
	if cfg.AMQPURL == "" {
		logger.Info("no AMQP_URL configured, using in-process broker", nil)
		b := brokermemory.New()
		return b, b, func() {}, nil
	}

	ch, err := rabbitmq.Connect(cfg.AMQPURL)
	if err != nil {
		return nil, nil, nil, err
	}

	return ch, ch, func() { _ = ch.Close() }, nil
}
