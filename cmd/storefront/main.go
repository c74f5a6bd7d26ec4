package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/joao-fontenele/storefront/internal/api"
	"github.com/joao-fontenele/storefront/internal/cart"
	"github.com/joao-fontenele/storefront/internal/catalog"
	"github.com/joao-fontenele/storefront/internal/checkout"
	"github.com/joao-fontenele/storefront/internal/config"
	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/messaging"
	"github.com/joao-fontenele/storefront/internal/orders"
	"github.com/joao-fontenele/storefront/internal/respond"
	"github.com/joao-fontenele/storefront/internal/telemetry"
)

const serviceName = "storefront"

func main() {
	if err := run(); err != nil {
		slog.Error("storefront exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, cfg.OTLPEndpoint, serviceName, cfg.Version)
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider(serviceName, cfg.Version)
	if err != nil {
		return err
	}
	defer func() { _ = shutdownMeter(context.Background()) }()

	db, err := telemetry.OpenDB(cfg.PostgresURL, cfg.DBSchema)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if err := db.PingContext(ctx); err != nil {
		return err
	}

	var publisher checkout.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		producer := messaging.NewProducer(cfg.KafkaBrokers, cfg.OrderTopic, messaging.WithWriteTimeout(cfg.RequestTimeout))
		defer func() { _ = producer.Close() }()
		publisher = producer
	} else {
		logger.Warn("KAFKA_BROKERS not set, order events disabled")
	}

	products := catalog.NewProductRepository(db)
	carts := cart.NewRepository(db)
	ledger := orders.NewOrderRepository(db)

	engine, err := checkout.NewEngine(carts, products, ledger, publisher, logger)
	if err != nil {
		return err
	}

	var policy domain.TransitionPolicy = domain.AnyTransition
	if cfg.StrictTransitions {
		policy = domain.ForwardTransitions
	}

	catalogHandler := catalog.NewHandler(products, logger)
	cartHandler := cart.NewHandler(cart.NewService(carts, products, logger), logger)
	ordersHandler := orders.NewHandler(engine, orders.NewService(ledger, policy, logger), logger)

	mux := api.NewRouter(api.Handlers{
		Catalog: catalogHandler,
		Cart:    cartHandler,
		Orders:  ordersHandler,
		Health:  healthz(db, logger),
		Metrics: metricsHandler,
	}, logger)

	server := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: otelhttp.NewHandler(
			http.TimeoutHandler(mux, cfg.RequestTimeout, `{"error":"request timed out"}`),
			serviceName,
			otelhttp.WithSpanNameFormatter(telemetry.SpanName),
		),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting storefront", "port", cfg.Port, "strict_transitions", cfg.StrictTransitions)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func healthz(db *sql.DB, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			logger.Error("health check failed", "error", err)
			respond.Message(w, logger, http.StatusServiceUnavailable, "database unavailable")
			return
		}
		respond.JSON(w, logger, http.StatusOK, map[string]string{"status": "ok"})
	}
}
