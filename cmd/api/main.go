package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/Syntia28/nikos/api/controllers"
	"github.com/Syntia28/nikos/api/routes"
	"github.com/Syntia28/nikos/internal/auth"
	"github.com/Syntia28/nikos/internal/cart"
	checkoutsvc "github.com/Syntia28/nikos/internal/checkout"
	"github.com/Syntia28/nikos/internal/orders"
	product "github.com/Syntia28/nikos/internal/products"
	"github.com/Syntia28/nikos/internal/ratings"
	"github.com/Syntia28/nikos/internal/users"
	"github.com/Syntia28/nikos/pkg/auth/session"
	"github.com/Syntia28/nikos/pkg/config"
	"github.com/Syntia28/nikos/pkg/docstore"
	"github.com/Syntia28/nikos/pkg/env"
	"github.com/Syntia28/nikos/pkg/eventbus"
	"github.com/Syntia28/nikos/pkg/logger"
	"github.com/Syntia28/nikos/pkg/metrics"
	"github.com/Syntia28/nikos/pkg/pubsub"
	"github.com/Syntia28/nikos/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

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
		Console:     strings.EqualFold(strings.TrimSpace(cfg.App.LogFormat), "console"),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer closeWith(ctx, logg, "redis", redisClient)

	store, err := docstore.Open(ctx, cfg, redisClient, logg)
	if err != nil {
		return err
	}
	defer closeWith(ctx, logg, "document store", store)

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	storefrontMetrics := metrics.NewStorefrontMetrics(registry)

	bus := eventbus.New(logg)

	ready := map[string]controllers.Pinger{
		"docstore": store,
		"redis":    redisClient,
	}

	var forwarder *eventbus.Forwarder
	if strings.TrimSpace(cfg.PubSub.EventsTopic) != "" {
		psClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			return err
		}
		defer closeWith(ctx, logg, "pubsub", psClient)

		forwarder, err = eventbus.NewForwarder(eventbus.ForwarderParams{
			Publisher: psClient.EventsPublisher(),
			Logger:    logg,
		})
		if err != nil {
			return err
		}
		detach := forwarder.Attach(bus, eventbus.OrderCreated, eventbus.RatingSubmitted)
		defer detach()
		ready["pubsub"] = psClient
	}

	userRepo, err := users.NewRepository(store)
	if err != nil {
		return err
	}
	userService, err := users.NewService(userRepo)
	if err != nil {
		return err
	}
	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       userRepo,
		SessionManager: sessionManager,
		Bus:            bus,
		Logger:         logg,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		return err
	}
	unwatchAuth := authService.OnAuthStateChange(func(ctx context.Context, identity *auth.Identity) {
		if identity == nil {
			logg.Info(ctx, "auth.signed_out")
			return
		}
		logg.Info(logg.WithUserID(ctx, identity.UserID), "auth.signed_in")
	})
	defer unwatchAuth()

	productRepo, err := product.NewRepository(store)
	if err != nil {
		return err
	}
	productService, err := product.NewService(productRepo, logg)
	if err != nil {
		return err
	}

	cartRepo, err := cart.NewRepository(store)
	if err != nil {
		return err
	}
	cartService, err := cart.NewService(cartRepo, productRepo, logg, storefrontMetrics)
	if err != nil {
		return err
	}

	orderRepo, err := orders.NewRepository(store)
	if err != nil {
		return err
	}
	orderService, err := orders.NewService(orderRepo, productRepo, logg)
	if err != nil {
		return err
	}

	checkoutService, err := checkoutsvc.NewService(checkoutsvc.ServiceParams{
		Store:    store,
		Carts:    cartService,
		CartRepo: cartRepo,
		Products: productRepo,
		Orders:   orderRepo,
		Bus:      bus,
		Logger:   logg,
		Metrics:  storefrontMetrics,
		Atomic:   cfg.Checkout.Atomic,
	})
	if err != nil {
		return err
	}

	ratingService, err := ratings.NewService(productService, orderRepo, bus, logg, storefrontMetrics)
	if err != nil {
		return err
	}

	draining := make(chan struct{})

	port := env.First(cfg.App.Port, "PORT")
	server := &http.Server{
		Addr: ":" + port,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:   cfg,
			Logger:   logg,
			Sessions: sessionManager,
			Limiter:  redisClient,
			Ready:    ready,
			Metrics:  promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
			Shutdown: draining,
			Auth:     authService,
			Users:    userService,
			Products: productService,
			Cart:     cartService,
			Checkout: checkoutService,
			Orders:   orderService,
			Ratings:  ratingService,
		}),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	server.RegisterOnShutdown(func() { close(draining) })

	logCtx := logg.WithFields(ctx, map[string]any{
		"env":             cfg.App.Env,
		"addr":            server.Addr,
		"docstore_driver": cfg.DocStore.Driver,
		"checkout_atomic": cfg.Checkout.Atomic,
	})
	logg.Info(logCtx, "starting api server")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logg.Info(logCtx, "shutting down api server")
		return server.Shutdown(shutdownCtx)
	})
	if forwarder != nil {
		g.Go(func() error {
			if err := forwarder.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	return g.Wait()
}

func closeWith(ctx context.Context, logg *logger.Logger, name string, c io.Closer) {
	if err := c.Close(); err != nil {
		logg.Error(logg.WithField(ctx, "resource", name), "error closing resource", err)
	}
}
