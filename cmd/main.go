package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/alekenov/figma-product-catalog-sub002/internal/availability"
	"github.com/alekenov/figma-product-catalog-sub002/internal/cache"
	"github.com/alekenov/figma-product-catalog-sub002/internal/cleanup"
	"github.com/alekenov/figma-product-catalog-sub002/internal/config"
	"github.com/alekenov/figma-product-catalog-sub002/internal/consumer"
	h "github.com/alekenov/figma-product-catalog-sub002/internal/http"
	"github.com/alekenov/figma-product-catalog-sub002/internal/metrics"
	"github.com/alekenov/figma-product-catalog-sub002/internal/orderstatus"
	"github.com/alekenov/figma-product-catalog-sub002/internal/repository"
	"github.com/alekenov/figma-product-catalog-sub002/internal/reservation"
	"github.com/alekenov/figma-product-catalog-sub002/internal/store"
	"github.com/alekenov/figma-product-catalog-sub002/internal/warehouse"
	"github.com/alekenov/figma-product-catalog-sub002/pkg/circuitbreaker"
	pkglogger "github.com/alekenov/figma-product-catalog-sub002/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := pkglogger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	// spans carry trace ids into logs; no exporter is configured
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	st, orders, recorder, err := openStore(cfg, logger)
	if err != nil {
		logger.Fatal("failed to open store", zap.Error(err))
	}
	orders = orderstatus.NewGuardedSource(orders, circuitbreaker.DefaultConfig("order-status"), logger)

	var recipes cache.RecipeCache
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		if err := client.Ping(context.Background()).Err(); err != nil {
			logger.Fatal("failed to connect to redis", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		defer client.Close()
		recipes = cache.NewRedisCache(client)
		logger.Info("recipe cache enabled", zap.String("addr", cfg.Redis.Addr))
	}

	manager := reservation.NewManager(st, m, logger)
	checker := availability.NewBatchChecker(st, availability.NewCalculator(), recipes, logger)
	stock := warehouse.NewService(st, logger)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	var wg sync.WaitGroup

	job := cleanup.NewJob(st, manager, orders, cfg.Cleanup.Interval, cfg.Cleanup.MaxAge, m, logger)
	wg.Add(1)
	go func() {
		defer wg.Done()
		job.Run(ctx)
	}()

	var kafkaConsumer *consumer.Consumer
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaConsumer = consumer.NewConsumer(consumer.Config{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
			GroupID: cfg.Kafka.GroupID,
		}, manager, recorder, m, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			kafkaConsumer.Run(ctx)
		}()
		logger.Info("order status consumer started",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic))
	}

	router := h.NewRouter(h.RouterConfig{
		Availability:   h.NewAvailabilityHandler(checker, logger),
		Reservations:   h.NewReservationHandler(manager, logger),
		Warehouse:      h.NewWarehouseHandler(stock, logger),
		Metrics:        m,
		Gatherer:       reg,
		Logger:         logger,
		RequestTimeout: cfg.RequestTimeout,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("inventory service starting", zap.String("port", cfg.HTTPPort), zap.String("store", cfg.StoreDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down inventory service...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	// the store stays open until background work has returned
	if err := waitFor(shutdownCtx, &wg); err != nil {
		logger.Error("background workers did not stop in time", zap.Error(err))
	}
	if kafkaConsumer != nil {
		kafkaConsumer.Close()
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to stop tracer provider", zap.Error(err))
	}
	if err := st.Close(); err != nil {
		logger.Error("failed to close store", zap.Error(err))
	}
	logger.Info("inventory service stopped")
}

// openStore returns the configured store and where order statuses come from.
// The recorder is non-nil only when statuses have to be learned from events.
func openStore(cfg *config.Config, logger *zap.Logger) (store.Store, orderstatus.Source, consumer.StatusRecorder, error) {
	if cfg.StoreDriver == config.DriverMemory {
		mem := store.NewMemoryStore()
		if err := seed(mem); err != nil {
			return nil, nil, nil, err
		}
		logger.Info("initialized in-memory warehouse",
			zap.Int("items", len(initialItems)),
			zap.Int("recipes", len(initialRecipes)))
		statuses := orderstatus.NewMemorySource()
		return mem, statuses, statuses, nil
	}

	cred := &repository.Credentials{
		Host:              cfg.Postgres.Host,
		Port:              cfg.Postgres.Port,
		User:              cfg.Postgres.User,
		Password:          cfg.Postgres.Password,
		DBName:            cfg.Postgres.DBName,
		SSLMode:           cfg.Postgres.SSLMode,
		MigrationsDirPath: cfg.Postgres.MigrationsDir,
	}
	repo, err := repository.NewRepository(cred, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := repo.RunMigrations(cred); err != nil {
		repo.Close()
		return nil, nil, nil, err
	}
	return repo, orderstatus.NewPostgresSource(repo.DB()), nil, nil
}

// waitFor blocks until wg is done or ctx expires
func waitFor(ctx context.Context, wg *sync.WaitGroup) error {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
