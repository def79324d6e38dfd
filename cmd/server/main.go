package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fjod/go_shop/internal/cart"
	"github.com/fjod/go_shop/internal/catalog"
	"github.com/fjod/go_shop/internal/checkout"
	"github.com/fjod/go_shop/internal/consumer"
	"github.com/fjod/go_shop/internal/httpapi"
	"github.com/fjod/go_shop/internal/inventory"
	"github.com/fjod/go_shop/internal/order"
	"github.com/fjod/go_shop/internal/outbox"
	"github.com/fjod/go_shop/internal/postgres"
	"github.com/fjod/go_shop/internal/pricing"
	"github.com/fjod/go_shop/internal/telemetry"
)

type Config struct {
	HTTPPort        string
	Store           string // "postgres" or "memory"
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration

	DBHost         string
	DBPort         int
	DBUser         string
	DBPassword     string
	DBName         string
	MigrationsPath string

	MongoURI  string
	MongoDB   string
	RedisAddr string

	KafkaBrokers []string

	Pricing pricing.Config
}

func loadConfig() *Config {
	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		slog.Error("invalid DB_PORT", "error", err)
		os.Exit(1)
	}

	cfg := &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		Store:           getEnv("STORE", "postgres"),
		RequestTimeout:  30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		DBHost:          getEnv("DB_HOST", "localhost"),
		DBPort:          dbPort,
		DBUser:          getEnv("DB_USER", "postgres"),
		DBPassword:      getEnv("DB_PASSWORD", "postgres"),
		DBName:          getEnv("DB_NAME", "shop"),
		MigrationsPath:  getEnv("MIGRATIONS_PATH", "./migrations"),
		MongoURI:        getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:         getEnv("MONGO_DB", "shop"),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		Pricing:         pricing.DefaultConfig(),
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}

	cfg.Pricing.TaxRate = decimalEnv("TAX_RATE", cfg.Pricing.TaxRate)
	cfg.Pricing.FreeShippingThreshold = decimalEnv("FREE_SHIPPING_THRESHOLD", cfg.Pricing.FreeShippingThreshold)
	cfg.Pricing.FlatShipping = decimalEnv("FLAT_SHIPPING", cfg.Pricing.FlatShipping)

	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func decimalEnv(key string, defaultValue decimal.Decimal) decimal.Decimal {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		slog.Error("invalid decimal env var", "key", key, "value", raw, "error", err)
		os.Exit(1)
	}
	return d
}

func main() {
	telemetry.InitLogger()
	cfg := loadConfig()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.SetupTracer(ctx, "go-shop")
	if err != nil {
		slog.Warn("tracing disabled", "error", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracer(shutdownCtx); err != nil {
				slog.Error("tracer shutdown failed", "error", err)
			}
		}()
	}

	pricer := pricing.NewEngine(cfg.Pricing)

	var (
		products     catalog.ProductStore
		repo         order.OrderRepository
		cartRepo     cart.CartRepository
		cache        cart.CartCache
		outboxSource outbox.EventSource
	)

	switch cfg.Store {
	case "memory":
		// Single-process mode for local development and demos. No external
		// infrastructure needed.
		memProducts := catalog.NewMemoryStore()
		products = memProducts
		memRepo := order.NewMemoryRepository(memProducts)
		repo = memRepo
		cartRepo = cart.NewMemoryRepository()
		cache = nil
		slog.Info("running with in-memory stores")

	case "postgres":
		db, err := postgres.Connect(&postgres.Credentials{
			Host:     cfg.DBHost,
			Port:     cfg.DBPort,
			User:     cfg.DBUser,
			Password: cfg.DBPassword,
			DBName:   cfg.DBName,
		})
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		if err := postgres.RunMigrations(db, cfg.MigrationsPath); err != nil {
			slog.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
		slog.Info("database migrations completed")

		products = catalog.NewPostgresStore(db)
		pgRepo := order.NewPostgresRepository(db, inventory.NewLedger())
		repo = pgRepo
		outboxSource = pgRepo

		mongoDB, err := cart.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			slog.Error("failed to connect to mongodb", "error", err)
			os.Exit(1)
		}
		defer mongoDB.Client().Disconnect(context.Background())
		if err := cart.CreateIndexes(ctx, mongoDB); err != nil {
			slog.Error("failed to create mongodb indexes", "error", err)
			os.Exit(1)
		}
		cartRepo = cart.NewMongoRepository(mongoDB)

		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			slog.Warn("redis unavailable, cart cache disabled", "error", err)
			cache = nil
		} else {
			defer redisClient.Close()
			cache = cart.NewBreakerCache(cart.NewRedisCache(redisClient))
		}

	default:
		slog.Error("unknown STORE value, want postgres or memory", "store", cfg.Store)
		os.Exit(1)
	}

	orderSvc := order.NewService(repo, products, pricer)
	cartSvc := cart.NewService(cartRepo, cache, products)
	checkoutSvc := checkout.NewService(cartSvc, orderSvc)

	if outboxSource != nil && len(cfg.KafkaBrokers) > 0 {
		poller := outbox.NewPoller(outboxSource, cfg.KafkaBrokers...)
		defer poller.Close()
		go poller.Run(ctx)

		paymentConsumer := consumer.NewConsumer(orderSvc, cfg.KafkaBrokers...)
		defer paymentConsumer.Close()
		go paymentConsumer.Run(ctx)
	} else if outboxSource != nil {
		slog.Warn("KAFKA_BROKERS not set, outbox poller and payment consumer disabled")
	}

	router := httpapi.NewRouter(
		httpapi.NewCartHandler(cartSvc, cfg.RequestTimeout),
		httpapi.NewCheckoutHandler(checkoutSvc, cfg.RequestTimeout),
		httpapi.NewOrderHandler(orderSvc, checkoutSvc, cfg.RequestTimeout),
		httpapi.NewProductHandler(products, cfg.RequestTimeout),
		cfg.RequestTimeout,
	)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(router, "go-shop"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", cfg.HTTPPort, "store", cfg.Store)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server exited")
}
