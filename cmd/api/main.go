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

	"golang.org/x/sync/errgroup"

	"github.com/joao-fontenele/shopflow/internal/auth"
	"github.com/joao-fontenele/shopflow/internal/cache"
	"github.com/joao-fontenele/shopflow/internal/cart"
	"github.com/joao-fontenele/shopflow/internal/catalog"
	"github.com/joao-fontenele/shopflow/internal/config"
	"github.com/joao-fontenele/shopflow/internal/inventory"
	"github.com/joao-fontenele/shopflow/internal/messaging"
	"github.com/joao-fontenele/shopflow/internal/notify"
	"github.com/joao-fontenele/shopflow/internal/orders"
	"github.com/joao-fontenele/shopflow/internal/server"
	"github.com/joao-fontenele/shopflow/internal/telemetry"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	if err := run(logger); err != nil {
		logger.Error("shopflow exited", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	providers, err := telemetry.Setup(ctx, telemetry.Options{
		ServiceName:    config.ServiceName,
		ServiceVersion: config.ServiceVersion,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SampleRatio:    cfg.TraceSampleRatio,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := providers.Shutdown(context.Background()); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	db, err := telemetry.OpenDB(ctx, cfg.PostgresURL)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	var catalogCache cache.Cache = cache.Nop{}
	if cfg.RedisURL != "" {
		client, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()
		catalogCache = cache.NewRedisCache(client)
	} else {
		logger.Warn("REDIS_URL not set, catalog cache disabled")
	}

	hub, err := notify.NewHub(0, logger)
	if err != nil {
		return err
	}

	// Without Kafka, status changes only reach connections on this instance.
	var publisher orders.Publisher = hub
	var relay *notify.Relay
	if len(cfg.KafkaBrokers) > 0 {
		producer := messaging.NewProducer(cfg.KafkaBrokers, cfg.StatusTopic)
		defer func() { _ = producer.Close() }()

		consumer := messaging.NewBroadcastConsumer(cfg.KafkaBrokers, cfg.StatusTopic, config.ServiceName)
		defer func() { _ = consumer.Close() }()

		publisher = notify.NewKafkaPublisher(producer)
		relay = notify.NewRelay(consumer, hub, logger)
		logger.Info("status relay enabled", "topic", cfg.StatusTopic, "group_id", consumer.GroupID())
	}

	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	authn := auth.NewAuthenticator(tokens, logger)
	authSvc := auth.NewService(auth.NewUserRepository(db), tokens, cfg.AllowStaffSignup, logger)

	catalogStore, err := catalog.NewCachedStore(catalog.NewCatalogRepository(db), catalogCache, cfg.CatalogCacheTTL, logger)
	if err != nil {
		return err
	}
	catalogSvc := catalog.NewService(catalogStore, logger)

	stock := inventory.NewInventoryRepository(db)
	cartSvc := cart.NewService(cart.NewCartRepository(db), stock, logger)

	orderSvc, err := orders.NewService(orders.NewSQLTransactor(db), orders.NewOrderRepository(db), publisher, logger)
	if err != nil {
		return err
	}

	router := server.NewRouter(server.Handlers{
		Auth:      auth.NewHandler(authSvc, logger),
		Catalog:   catalog.NewHandler(catalogSvc, logger),
		Cart:      cart.NewHandler(cartSvc, logger),
		Orders:    orders.NewHandler(orderSvc, logger),
		Inventory: inventory.NewHandler(stock, logger),
		Live:      notify.NewWebSocketHandler(hub, logger),
		Metrics:   providers.MetricsHandler,
		DB:        db,
	}, authn, logger)

	srv := server.New(cfg.Port, router)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting shopflow", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if relay != nil {
		g.Go(func() error {
			return relay.Run(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
