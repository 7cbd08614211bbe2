package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront-orders/internal/catalog"
	"github.com/xenking/storefront-orders/internal/domain/discount"
	"github.com/xenking/storefront-orders/internal/domain/order"
	"github.com/xenking/storefront-orders/internal/domain/product"
	"github.com/xenking/storefront-orders/internal/events"
	"github.com/xenking/storefront-orders/internal/handler"
	"github.com/xenking/storefront-orders/internal/payment"
	"github.com/xenking/storefront-orders/internal/storage/memory"
	"github.com/xenking/storefront-orders/internal/storage/postgres"
	"github.com/xenking/storefront-orders/pkg/health"
	"github.com/xenking/storefront-orders/pkg/httpmiddleware"
)

type storage struct {
	products interface {
		product.Repository
		catalog.ProductWriter
	}
	discounts interface {
		discount.Repository
		catalog.DiscountWriter
	}
	orders order.Store
	close  func()
}

func openStorage(ctx context.Context, lg *zap.Logger, cfg *Config, h *health.Health) (*storage, error) {
	if cfg.Storage == StorageMemory {
		s, err := memory.New()
		if err != nil {
			return nil, err
		}
		lg.Warn("Using in-memory storage, data is lost on restart")
		return &storage{
			products:  memory.NewProductRepository(s),
			discounts: memory.NewDiscountRepository(s),
			orders:    s,
			close:     func() {},
		}, nil
	}

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "create db pool")
	}
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "run migrations")
	}
	h.Add(health.Readiness, "postgres", 5*time.Second, health.PingCheck("postgres", pool))
	return &storage{
		products:  postgres.NewProductRepository(pool),
		discounts: postgres.NewDiscountRepository(pool),
		orders:    postgres.NewStore(pool),
		close:     pool.Close,
	}, nil
}

// Run creates all dependencies, starts the HTTP server and, when Kafka is
// configured, the payment consumer, and handles graceful shutdown. It is the
// single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("storage", cfg.Storage),
	)

	rates, err := cfg.ShippingRates()
	if err != nil {
		return err
	}

	healthSvc := health.New()
	healthSvc.Add(health.Liveness, "goroutines", time.Second, health.GoroutineCountCheck(10000))

	st, err := openStorage(ctx, lg, cfg, healthSvc)
	if err != nil {
		return err
	}
	defer st.close()

	if cfg.SeedFile != "" {
		c, err := catalog.Load(cfg.SeedFile)
		if err != nil {
			return errors.Wrap(err, "load seed")
		}
		if err := c.Apply(ctx, st.products, st.discounts, time.Now().UTC()); err != nil {
			return errors.Wrap(err, "apply seed")
		}
		lg.Info("Catalog seeded",
			zap.String("file", cfg.SeedFile),
			zap.Int("products", len(c.Products)),
			zap.Int("discounts", len(c.Discounts)),
		)
	}

	orderOpts := []order.Option{
		order.WithTxTimeout(cfg.Orders.TxTimeout),
		order.WithTracerProvider(m.TracerProvider()),
		order.WithMeterProvider(m.MeterProvider()),
	}
	kafkaEnabled := len(cfg.Kafka.Brokers) > 0
	if kafkaEnabled {
		producer, err := events.NewSyncProducer(cfg.Kafka.Brokers, cfg.Kafka.ClientID)
		if err != nil {
			return err
		}
		publisher := events.NewPublisher(producer, cfg.Kafka.EventsTopic)
		defer func() {
			if err := publisher.Close(); err != nil {
				lg.Warn("Close event publisher", zap.Error(err))
			}
		}()
		orderOpts = append(orderOpts, order.WithPublisher(publisher))
	}

	orderService, err := order.NewService(st.orders, rates, orderOpts...)
	if err != nil {
		return errors.Wrap(err, "create order service")
	}
	discountService := discount.NewService(st.discounts)

	var paymentOpts []payment.HandlerOption
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() { _ = rdb.Close() }()
		healthSvc.Add(health.Readiness, "redis", 2*time.Second, func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
		paymentOpts = append(paymentOpts, payment.WithRedis(rdb), payment.WithClaimTTL(cfg.Redis.ClaimTTL))
	}

	h := handler.NewHandler(st.products, discountService, orderService)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("GET /readyz", healthSvc.ReadyEndpoint)
	h.Register(mux)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(lg),
			httpmiddleware.Recovery(),
			httpmiddleware.Instrument("storefront-api", m.TracerProvider(), m.MeterProvider()),
			httpmiddleware.LogRequests(),
		),
	}

	g, gctx := errgroup.WithContext(ctx)

	if kafkaEnabled {
		group, err := payment.NewConsumerGroup(cfg.Kafka.Brokers, cfg.Kafka.GroupID)
		if err != nil {
			return err
		}
		consumer := payment.NewConsumer(group, []string{cfg.Kafka.PaymentsTopic},
			payment.NewHandler(orderService, paymentOpts...), lg.Named("payment"))
		g.Go(func() error {
			lg.Info("Consuming payment confirmations", zap.String("topic", cfg.Kafka.PaymentsTopic))
			return consumer.Run(gctx)
		})
		g.Go(func() error {
			<-gctx.Done()
			return consumer.Close()
		})
	} else if cfg.Redis.Addr != "" {
		lg.Warn("Redis is configured but Kafka is not, payment deduplication is unused")
	}

	healthSvc.Start(gctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Graceful shutdown: wait for cancellation, drain, then stop.
	g.Go(func() error {
		<-gctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		defer healthSvc.Stop()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "shutdown")
		}
		return nil
	})

	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})

	return g.Wait()
}
