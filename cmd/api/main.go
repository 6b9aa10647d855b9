package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"

	"github.com/shopfront/storefront/api/controllers"
	"github.com/shopfront/storefront/api/routes"
	"github.com/shopfront/storefront/internal/cart"
	"github.com/shopfront/storefront/internal/catalog"
	"github.com/shopfront/storefront/internal/checkout"
	"github.com/shopfront/storefront/internal/events"
	"github.com/shopfront/storefront/internal/orders"
	pkgcheckout "github.com/shopfront/storefront/pkg/checkout"
	"github.com/shopfront/storefront/pkg/config"
	"github.com/shopfront/storefront/pkg/db"
	"github.com/shopfront/storefront/pkg/enums"
	"github.com/shopfront/storefront/pkg/kvstore"
	"github.com/shopfront/storefront/pkg/logger"
	"github.com/shopfront/storefront/pkg/metrics"
	"github.com/shopfront/storefront/pkg/migrate"
	"github.com/shopfront/storefront/pkg/pubsub"
	"github.com/shopfront/storefront/pkg/redis"
	"github.com/shopfront/storefront/pkg/shopapi"
)

const shutdownTimeout = 10 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var closers []func() error
	closeAll := func() {
		var errs error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = multierr.Append(errs, closers[i]())
		}
		if errs != nil {
			logg.Error(context.Background(), "error releasing resources", errs)
		}
	}
	defer closeAll()

	ready := map[string]controllers.Pinger{}
	store, err := openStore(ctx, cfg, logg, ready, &closers)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap storage", err)
		closeAll()
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	storefrontMetrics := metrics.NewStorefront(registry)

	hub := events.NewHub(logg)

	shopClient := shopapi.NewClient(
		shopapi.WithBaseURL(cfg.ShopAPI.BaseURL),
		shopapi.WithTimeout(cfg.ShopAPI.Timeout),
		shopapi.WithObserver(storefrontMetrics),
	)

	catalogService, err := catalog.NewService(shopClient, cfg.Catalog, logg, storefrontMetrics)
	if err != nil {
		logg.Error(ctx, "failed to create catalog service", err)
		closeAll()
		os.Exit(1)
	}

	pricing := pkgcheckout.Pricing{
		ExpressFee:       cfg.Checkout.ExpressFee,
		FreeShippingOver: cfg.Checkout.FreeShippingOver,
	}

	cartOpts := cart.Options{
		Store:    store,
		Logger:   logg,
		Products: catalogService,
		Notifier: hub,
		Metrics:  storefrontMetrics,
		Pricing:  pricing,
		UserID:   cfg.Cart.UserID,
	}
	if cfg.Cart.RemoteSync {
		cartOpts.Remote = shopClient
	}
	cartStore, err := cart.NewStore(ctx, cartOpts)
	if err != nil {
		logg.Error(ctx, "failed to create cart store", err)
		closeAll()
		os.Exit(1)
	}

	flow, err := checkout.NewFlow(checkout.Options{
		Cart:     cartStore,
		Logger:   logg,
		Notifier: hub,
		Metrics:  storefrontMetrics,
		Pricing:  pricing,
	})
	if err != nil {
		logg.Error(ctx, "failed to create checkout flow", err)
		closeAll()
		os.Exit(1)
	}

	orderService, err := orders.NewService(orders.Options{
		Store:    store,
		Cart:     cartStore,
		Flow:     flow,
		Logger:   logg,
		Notifier: hub,
		Metrics:  storefrontMetrics,
		Pricing:  pricing,
		Delay:    cfg.Checkout.ProcessingDelay,
	})
	if err != nil {
		logg.Error(ctx, "failed to create order service", err)
		closeAll()
		os.Exit(1)
	}

	if cfg.PubSub.Enabled() {
		if err := forwardOrders(ctx, cfg, logg, hub, ready, &closers); err != nil {
			logg.Error(ctx, "failed to bootstrap pubsub forwarding", err)
			closeAll()
			os.Exit(1)
		}
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":            cfg.App.Env,
		"addr":           addr,
		"storage_driver": cfg.Storage.Driver,
		"remote_sync":    cfg.Cart.RemoteSync,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, routes.Dependencies{
			Catalog:  catalogService,
			Cart:     cartStore,
			Checkout: flow,
			Orders:   orderService,
			Events:   hub,
			Ready:    ready,
			Metrics:  promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		}),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			closeAll()
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(context.WithoutCancel(ctx), "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "api server shutdown failed", err)
		}
	}
}

// openStore selects the durable key-value backend for the configured driver.
func openStore(ctx context.Context, cfg *config.Config, logg *logger.Logger, ready map[string]controllers.Pinger, closers *[]func() error) (kvstore.Store, error) {
	switch {
	case cfg.Storage.UsesSQL():
		dbClient, err := db.New(ctx, cfg.Storage, cfg.DB, logg)
		if err != nil {
			return nil, err
		}
		*closers = append(*closers, dbClient.Close)
		ready["db"] = dbClient
		if err := migrate.MaybeAutoRun(ctx, cfg, logg, dbClient); err != nil {
			return nil, err
		}
		return kvstore.NewSQL(dbClient.DB()), nil

	case cfg.Storage.Driver == config.StorageDriverRedis:
		redisClient, err := redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return nil, err
		}
		*closers = append(*closers, redisClient.Close)
		ready["redis"] = redisClient
		return kvstore.NewRedis(redisClient), nil

	default:
		logg.Warn(ctx, "using in-memory storage; cart and orders are lost on restart")
		return kvstore.NewMemory(), nil
	}
}

// forwardOrders publishes order.placed notifications to the configured topic.
func forwardOrders(ctx context.Context, cfg *config.Config, logg *logger.Logger, hub *events.Hub, ready map[string]controllers.Pinger, closers *[]func() error) error {
	client, err := pubsub.NewClient(ctx, cfg.PubSub, logg)
	if err != nil {
		return err
	}
	*closers = append(*closers, client.Close)
	ready["pubsub"] = client

	publisher, err := pubsub.NewEventPublisher(client)
	if err != nil {
		return err
	}
	*closers = append(*closers, func() error {
		publisher.Close()
		return nil
	})

	forwarder := events.NewForwarder(hub, publisher, logg, enums.EventOrderPlaced)
	*closers = append(*closers, func() error {
		forwarder.Close()
		return nil
	})
	return nil
}
