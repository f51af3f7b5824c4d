package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"storefront/internal/config"
	infradynamo "storefront/internal/infrastructure/dynamo"
	"storefront/internal/infrastructure/logger"
	inframysql "storefront/internal/infrastructure/mysql"
	"storefront/internal/metrics"
	"storefront/internal/order"
	"storefront/internal/product"
	"storefront/internal/server"
	"storefront/internal/store"
	dynamostore "storefront/internal/store/dynamo"
	"storefront/internal/store/memory"
	mysqlstore "storefront/internal/store/mysql"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	zapLogger, err := logger.New(cfg.Log.Level)
	if err != nil {
		log.Fatalf("creating logger: %v", err)
	}
	defer zapLogger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	st, closeStore, err := openStore(ctx, cfg, zapLogger)
	cancel()
	if err != nil {
		zapLogger.Fatal("opening store", zap.String("driver", cfg.Store.Driver), zap.Error(err))
	}
	defer closeStore()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	productCtrl := product.NewModule(st, zapLogger)
	orderCtrl := order.NewModule(st, cfg, m, zapLogger)

	router := server.NewRouter(server.RouterConfig{
		AllowedOrigins: cfg.Server.CORSAllowedOrigins,
		Instrument:     m.Middleware,
		Metrics:        m.Handler(),
	}, zapLogger, productCtrl, orderCtrl)

	srv := server.New(cfg.Server.Port, router, zapLogger)

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(runCtx); err != nil {
		zapLogger.Fatal("server error", zap.Error(err))
	}

	zapLogger.Info("server stopped gracefully")
}

func openStore(ctx context.Context, cfg *config.Config, zapLogger *zap.Logger) (store.Store, func(), error) {
	switch cfg.Store.Driver {
	case config.DriverMySQL:
		db, err := inframysql.NewConnection(ctx, cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		zapLogger.Info("database connected", zap.String("host", cfg.Database.Host), zap.String("name", cfg.Database.Name))

		if cfg.Database.Migrate {
			if err := inframysql.Migrate(ctx, db); err != nil {
				db.Close()
				return nil, nil, err
			}
			zapLogger.Info("database migrated")
		}
		return mysqlstore.NewStore(db), func() { db.Close() }, nil

	case config.DriverDynamoDB:
		client, err := infradynamo.NewClient(ctx, cfg.Dynamo)
		if err != nil {
			return nil, nil, err
		}
		if cfg.Dynamo.Endpoint != "" {
			if err := infradynamo.EnsureTables(ctx, client, cfg.Dynamo); err != nil {
				return nil, nil, err
			}
		}
		zapLogger.Info("dynamodb client ready", zap.String("region", cfg.Dynamo.Region), zap.String("endpoint", cfg.Dynamo.Endpoint))
		return dynamostore.NewStore(client, dynamostore.Tables{
			Products: cfg.Dynamo.ProductsTable,
			Orders:   cfg.Dynamo.OrdersTable,
		}), func() {}, nil

	case config.DriverMemory:
		zapLogger.Warn("using in-memory store; data is lost on restart")
		s := memory.New()
		if cfg.Store.SeedFile == "" {
			zapLogger.Warn("MEMORY_SEED_FILE not set; catalog starts empty")
			return s, func() {}, nil
		}
		products, err := memory.LoadSeedFile(cfg.Store.SeedFile)
		if err != nil {
			return nil, nil, err
		}
		zapLogger.Info("memory catalog seeded", zap.String("file", cfg.Store.SeedFile), zap.Int("products", s.Seed(products)))
		return s, func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}
