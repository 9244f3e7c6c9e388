package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/go-chi/chi/v5"

	"restaurant-pos/internal/config"
	"restaurant-pos/internal/database"
	"restaurant-pos/internal/httpx"
	"restaurant-pos/internal/logger"
	"restaurant-pos/internal/messaging"
	"restaurant-pos/internal/services/catalog"
	"restaurant-pos/internal/services/history"
	"restaurant-pos/internal/services/notification"
	"restaurant-pos/internal/services/order"
	"restaurant-pos/internal/storage"
)

const catalogLoadTimeout = 5 * time.Second

func main() {
	var (
		mode       = flag.String("mode", "", "Service mode (pos-service, receipt-subscriber)")
		configPath = flag.String("config", "config.yaml", "Path to the configuration file")
		port       = flag.Int("port", 0, "HTTP port (overrides http.port)")
		prefetch   = flag.Int("prefetch", 1, "RabbitMQ prefetch count")
	)
	flag.Parse()

	if *mode == "" {
		fmt.Fprintf(os.Stderr, "Error: --mode flag is required\n")
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *port > 0 {
		cfg.HTTP.Port = *port
	}

	log := logger.New(*mode)
	defer log.Sync()
	requestID := logger.GenerateRequestID()

	log.Info("service_started", fmt.Sprintf("Starting %s", *mode), requestID, map[string]interface{}{
		"mode":         *mode,
		"port":         cfg.HTTP.Port,
		"store_driver": cfg.Store.Driver,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info("graceful_shutdown", "Received shutdown signal", requestID, nil)
		cancel()
	}()

	switch *mode {
	case "pos-service":
		err = runPOSService(ctx, cfg, log)
	case "receipt-subscriber":
		err = runReceiptSubscriber(ctx, cfg, log, *prefetch)
	default:
		log.Error("validation_failed", fmt.Sprintf("Unknown mode: %s", *mode), requestID, nil, nil)
		os.Exit(1)
	}
	if err != nil {
		log.Error("service_failed", fmt.Sprintf("%s failed", *mode), requestID, err, nil)
		log.Sync()
		os.Exit(1)
	}

	log.Info("service_stopped", "Service stopped gracefully", requestID, nil)
}

// runPOSService wires the catalog, order book and history onto one store
// and serves them over HTTP until ctx ends.
func runPOSService(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	requestID := logger.GenerateRequestID()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	syncer := storage.NewSyncer(store, log)
	defer func() {
		if err := syncer.Close(); err != nil {
			log.Error("store_close_failed", "Failed to flush pending writes", requestID, err, nil)
		}
	}()

	catalogService := catalog.NewService(syncer, log)
	loadCtx, loadCancel := context.WithTimeout(ctx, catalogLoadTimeout)
	_, err = catalogService.Load(loadCtx)
	loadCancel()
	if err != nil {
		// The compiled-in catalog stays active.
		log.Warn("catalog_load_failed", "Using default catalog", requestID, map[string]interface{}{
			"reason": err.Error(),
		})
	}

	sales := history.New(syncer, log, history.WithLocation(loc))
	if err := sales.Load(ctx); err != nil {
		return err
	}

	node, err := snowflake.NewNode(cfg.POS.NodeID)
	if err != nil {
		return fmt.Errorf("failed to create ticket id generator: %w", err)
	}

	var opts []order.Option
	if cfg.RabbitMQ.Enabled {
		conn, err := messaging.New(ctx, cfg.RabbitMQURL(), log)
		if err != nil {
			return fmt.Errorf("failed to initialize messaging: %w", err)
		}
		publisher := messaging.NewPublisher(conn, log)
		defer publisher.Close()
		opts = append(opts, order.WithPublisher(publisher))
	}

	book := order.NewBook(syncer, sales, catalogService, node, log, opts...)
	if err := book.Load(ctx); err != nil {
		return err
	}

	orderHandler := order.NewHandler(book, catalogService, syncer, log)
	catalogHandler := catalog.NewHandler(catalogService, log)
	historyHandler := history.NewHandler(sales, log)

	r := chi.NewRouter()
	r.Use(httpx.RequestLogger(log))
	r.Get("/health", orderHandler.HealthCheck)
	r.Get("/sync", orderHandler.SyncStatus)
	r.Post("/sync/retry", orderHandler.RetrySync)
	r.Route("/catalog", catalogHandler.Routes)
	r.Route("/tables", orderHandler.Routes)
	r.Route("/tickets", historyHandler.TicketRoutes)
	r.Get("/reports", historyHandler.Report)

	return httpx.Serve(ctx, fmt.Sprintf(":%d", cfg.HTTP.Port), r, log)
}

// openStore builds the snapshot store selected by store.driver.
func openStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (storage.Store, error) {
	requestID := logger.GenerateRequestID()

	switch cfg.Store.Driver {
	case config.DriverMemory:
		log.Warn("store_volatile", "Using in-memory store, nothing survives a restart", requestID, nil)
		return storage.NewMemoryStore(), nil
	case config.DriverFile:
		return storage.NewFileStore(cfg.Store.Path, log)
	case config.DriverSQLite:
		return storage.NewSQLiteStore(cfg.Store.Path)
	case config.DriverPostgres:
		db, err := database.New(ctx, cfg.DatabaseURL(), log)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		log.Info("db_connected", "Connected to PostgreSQL database", requestID, nil)

		if err := db.RunMigrations(ctx, os.DirFS("migrations")); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		return storage.NewPostgresStore(db), nil
	default:
		return nil, fmt.Errorf("unknown store driver: %s", cfg.Store.Driver)
	}
}

// runReceiptSubscriber prints a receipt for every ticket settled by any
// terminal.
func runReceiptSubscriber(ctx context.Context, cfg *config.Config, log *logger.Logger, prefetch int) error {
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	conn, err := messaging.New(ctx, cfg.RabbitMQURL(), log)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("failed to initialize messaging: %w", err)
	}

	consumer := messaging.NewConsumer(conn, log, messaging.ReceiptsQueue, "receipt-subscriber", prefetch)
	return notification.NewSubscriber(consumer, log, loc).Start(ctx)
}
