// Command server runs the vehicle ledger API. main wires dependencies and
// the process lifecycle; all business logic lives in internal services.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"carledger/internal/audit"
	certhandler "carledger/internal/certification/handler"
	certmetrics "carledger/internal/certification/metrics"
	certservice "carledger/internal/certification/service"
	identityhandler "carledger/internal/identity/handler"
	identitymetrics "carledger/internal/identity/metrics"
	identityservice "carledger/internal/identity/service"
	"carledger/internal/ledger/store"
	markethandler "carledger/internal/marketplace/handler"
	marketmetrics "carledger/internal/marketplace/metrics"
	marketservice "carledger/internal/marketplace/service"
	"carledger/internal/platform/config"
	"carledger/internal/platform/httpserver"
	"carledger/internal/platform/kafka"
	"carledger/internal/platform/logger"
	platformmetrics "carledger/internal/platform/metrics"
	"carledger/internal/platform/postgres"
	platformredis "carledger/internal/platform/redis"
	registrycache "carledger/internal/registry/cache"
	registryhandler "carledger/internal/registry/handler"
	registrymetrics "carledger/internal/registry/metrics"
	registryservice "carledger/internal/registry/service"
	httptransport "carledger/internal/transport/http"
	"carledger/pkg/platform/tx"
)

const auditInboxSize = 1024

func main() {
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Error("load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Ledger storage: PostgreSQL when configured, the in-memory ledger for
	// local development.
	var (
		ledger interface {
			identityservice.Store
			registryservice.Store
			certservice.Store
			marketservice.Store
		}
		runner      tx.Runner
		healthCheck httptransport.HealthChecker
		auditSink   audit.Store
	)
	if cfg.DatabaseURL != "" {
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error("open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := postgres.Migrate(ctx, db); err != nil {
			log.Error("migrate database", "error", err)
			os.Exit(1)
		}
		ledger = store.NewPostgres(db)
		runner = tx.NewSQLRunner(db)
		healthCheck = func(r *http.Request) error { return db.PingContext(r.Context()) }
		auditSink = audit.NewPostgresStore(db)
		log.Info("ledger storage: postgres")
	} else {
		mem := store.NewMemoryLedger()
		ledger = mem
		runner = mem
		auditSink = audit.NewInMemoryStore()
		log.Warn("ledger storage: in-memory, records are not durable")
	}

	// Kafka replaces the local audit sink when brokers are configured.
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(ctx, cfg.KafkaBrokers, cfg.AuditTopic)
		if err != nil {
			log.Error("connect kafka", "error", err)
			os.Exit(1)
		}
		defer producer.Close()
		auditSink = audit.NewKafkaStore(producer)
		log.Info("audit sink: kafka", "topic", cfg.AuditTopic)
	}

	inbox := make(chan audit.Event, auditInboxSize)
	auditor := audit.NewPublisher(inbox, log)
	worker := audit.NewWorker(auditSink, inbox, log)

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("connect redis", "error", err)
		os.Exit(1)
	}
	var forSale *registrycache.ForSaleCache
	if redisClient != nil {
		defer redisClient.Close()
		forSale = registrycache.New(redisClient.Client, cfg.ForSaleCacheTTL)
		log.Info("for-sale cache: redis")
	}

	government := cfg.GovernmentAuthority

	identitySvc := identityservice.New(ledger, runner, government, auditor, identitymetrics.New(), log)
	registrySvc := registryservice.New(ledger, runner, government, forSale, auditor, registrymetrics.New(), log)
	certSvc := certservice.New(ledger, runner, government, auditor, certmetrics.New(), log)
	marketSvc := marketservice.New(ledger, runner, government, forSale, auditor, marketmetrics.New(), log)

	router := httptransport.NewRouter(platformmetrics.New(), healthCheck,
		identityhandler.New(identitySvc, log),
		registryhandler.New(registrySvc, log),
		certhandler.New(certSvc, log),
		markethandler.New(marketSvc, log),
	)
	srv := httpserver.New(cfg.Addr, router)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		err := worker.Run(groupCtx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
