package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	grpcadapter "github.com/smartbasket/smartbasket-backend/internal/adapter/grpc"
	"github.com/smartbasket/smartbasket-backend/internal/adapter/repository/memory"
	"github.com/smartbasket/smartbasket-backend/internal/adapter/repository/postgres"
	"github.com/smartbasket/smartbasket-backend/internal/config"
	"github.com/smartbasket/smartbasket-backend/internal/domain"
	"github.com/smartbasket/smartbasket-backend/internal/metrics"
	"github.com/smartbasket/smartbasket-backend/internal/usecase/comparison"
	"github.com/smartbasket/smartbasket-backend/internal/usecase/linkage"
	"github.com/smartbasket/smartbasket-backend/internal/usecase/offering"
	"github.com/smartbasket/smartbasket-backend/internal/usecase/pricing"
	"github.com/smartbasket/smartbasket-backend/internal/usecase/reconcile"
	"github.com/smartbasket/smartbasket-backend/internal/usecase/seeder"
	"github.com/smartbasket/smartbasket-backend/pkg/logger"
)

// stores is the record store the services run against
type stores struct {
	markets   domain.MarketRepository
	items     domain.ReferenceItemRepository
	offerings domain.OfferingRepository
	records   domain.PriceRecordRepository
	uow       domain.UnitOfWork
	close     func() error
}

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to the YAML config file")
	flag.Parse()

	log := logger.New()
	if err := run(*configPath, log); err != nil {
		log.WithError(err).Fatal("Service terminated")
	}
}

func run(configPath string, log *logger.Log) error {
	// 1. Configuration and logging
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAgeDays); err != nil {
		return err
	}
	log.WithFields(logger.Fields{
		"service":     cfg.Service.Name,
		"environment": cfg.Service.Environment,
		"storage":     cfg.Storage.Driver,
	}).Info("Starting service")

	ctx := context.Background()

	// 2. Record store
	st, err := openStores(ctx, cfg.Storage, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.close(); err != nil {
			log.WithError(err).Warn("Failed to close record store")
		}
	}()

	// 3. Services
	index := linkage.NewIndex(st.items, st.offerings, st.uow, log)
	priceService := pricing.NewPriceService(st.offerings, st.records, st.uow, pricing.Options{
		DefaultCurrency:    cfg.Pricing.DefaultCurrency,
		BatchRatePerSecond: cfg.Pricing.BatchRatePerSecond,
		BatchBurst:         cfg.Pricing.BatchBurst,
	}, log)
	offeringService := offering.NewOfferingService(st.markets, st.items, st.offerings, st.uow,
		index, priceService, cfg.Offering.RejectDuplicates, log)
	comparisonService := comparison.NewComparisonService(st.markets, st.items, st.offerings,
		cfg.Pricing.DefaultCurrency, cfg.Comparison.MaxParallelLookups, log)

	// 4. Catalog fixture
	if cfg.Seed.FixturePath != "" {
		catalogSeeder := seeder.NewCatalogSeeder(st.markets, st.items, log)
		if _, err := catalogSeeder.SeedFile(ctx, cfg.Seed.FixturePath); err != nil {
			return fmt.Errorf("failed to seed catalog: %w", err)
		}
	}

	// 5. Background reconciliation
	if cfg.Reconcile.Enabled {
		reconciler := reconcile.NewReconciler(index, st.items, st.offerings, st.records, st.uow,
			cfg.Reconcile.Schedule, log)
		if err := reconciler.Start(); err != nil {
			return err
		}
		defer reconciler.Stop()
	}

	// 6. Transports
	transport := grpcadapter.NewTransport(
		grpcadapter.NewServer(comparisonService, priceService, offeringService),
		log, cfg.GRPC.Reflection,
	)
	lis, err := net.Listen("tcp", cfg.GRPC.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.GRPC.Address, err)
	}

	errCh := make(chan error, 2)
	go func() {
		log.WithField("address", cfg.GRPC.Address).Info("gRPC server listening")
		if err := transport.Server.Serve(lis); err != nil {
			errCh <- fmt.Errorf("gRPC server failed: %w", err)
		}
	}()

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, metrics.Handler())
		metricsServer = &http.Server{
			Addr:              cfg.Metrics.Address,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.WithField("address", cfg.Metrics.Address).Info("Metrics server listening")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server failed: %w", err)
			}
		}()
	}

	// 7. Wait for a signal or a failed server, then shut down
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	var runErr error
	select {
	case sig := <-sigChan:
		log.WithField("signal", sig.String()).Info("Shutting down gracefully")
	case runErr = <-errCh:
		log.WithError(runErr).Error("Server stopped unexpectedly")
	}

	shutdown(transport, metricsServer, cfg.Service.ShutdownTimeout, log)
	return runErr
}

func openStores(ctx context.Context, cfg config.StorageConfig, log *logger.Log) (*stores, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		db, err := postgres.NewDB(ctx, cfg.PostgresDSN(), postgres.PoolConfig{
			MaxOpenConns:    cfg.MaxOpenConns,
			MaxIdleConns:    cfg.MaxIdleConns,
			ConnMaxLifetime: cfg.ConnMaxLifetime,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if cfg.Migrate {
			if err := db.Migrate(ctx); err != nil {
				_ = db.Close()
				return nil, err
			}
			log.Info("Database schema applied")
		}
		return &stores{
			markets:   postgres.NewMarketRepository(db),
			items:     postgres.NewReferenceItemRepository(db),
			offerings: postgres.NewOfferingRepository(db),
			records:   postgres.NewPriceRecordRepository(db),
			uow:       postgres.NewUnitOfWork(db),
			close:     db.Close,
		}, nil
	default:
		store := memory.NewStore()
		return &stores{
			markets:   memory.NewMarketRepository(store),
			items:     memory.NewReferenceItemRepository(store),
			offerings: memory.NewOfferingRepository(store),
			records:   memory.NewPriceRecordRepository(store),
			uow:       store,
			close:     func() error { return nil },
		}, nil
	}
}

// shutdown drains the gRPC server and stops the metrics server. A gRPC drain
// that outlives timeout is cut short with a hard stop.
func shutdown(transport *grpcadapter.Transport, metricsServer *http.Server, timeout time.Duration, log *logger.Log) {
	transport.Drain()

	stopped := make(chan struct{})
	go func() {
		transport.Server.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(timeout):
		log.Warn("Graceful stop timed out, forcing")
		transport.Server.Stop()
	}
	log.Info("gRPC server stopped")

	if metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := metricsServer.Shutdown(ctx); err != nil {
			log.WithError(err).Warn("Failed to stop metrics server")
		}
	}
}
