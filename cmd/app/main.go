package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	jwtware "github.com/gofiber/jwt/v2"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/pageone/kundeklubb-backend/internal/backoffice"
	"github.com/pageone/kundeklubb-backend/internal/cart"
	"github.com/pageone/kundeklubb-backend/internal/checkout"
	"github.com/pageone/kundeklubb-backend/internal/config"
	"github.com/pageone/kundeklubb-backend/internal/events"
	"github.com/pageone/kundeklubb-backend/internal/logging"
	"github.com/pageone/kundeklubb-backend/internal/metrics"
	"github.com/pageone/kundeklubb-backend/internal/notify"
	"github.com/pageone/kundeklubb-backend/internal/order"
	"github.com/pageone/kundeklubb-backend/internal/payment"
	"github.com/pageone/kundeklubb-backend/internal/product"
	"github.com/pageone/kundeklubb-backend/internal/user"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app := fiber.New()
	setupCORS(app)
	app.Use(logging.Middleware(logger))

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler(registry)))

	var (
		productRepo product.Repository = product.NewInMemoryRepository(nil)
		userRepo    user.Repository    = user.NewInMemoryRepository(nil)
		cartRepo    cart.Repository    = cart.NewInMemoryRepository()
	)

	if cfg.DatabaseURL != "" {
		db := mustOpenDB(cfg.DatabaseURL)
		defer db.Close()
		ensureSchema(db, logger)
		productRepo = product.NewPostgresRepository(db)
		userRepo = user.NewPostgresRepository(db)
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory profiles and catalog")
	}

	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatal("redis unreachable", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		cartRepo = cart.NewRedisRepository(rdb, cfg.Redis.CartTTL)
	}

	publisher := events.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	defer publisher.Close()

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	productService := product.NewService(productRepo)
	userService := user.NewService(userRepo)
	cartService := cart.NewService(cartRepo, productService)

	payments := payment.NewClient(payment.Config{
		TokenURL:     cfg.Payment.TokenURL(),
		Audience:     cfg.Payment.Audience(),
		SessionURL:   cfg.Payment.SessionURL,
		ClientID:     cfg.Payment.ClientID,
		ClientSecret: cfg.Payment.ClientSecret,
	}, httpClient)

	backOffice := backoffice.NewClient(backoffice.Config{
		BaseURL: cfg.BackOffice.BaseURL,
		Tenant:  cfg.BackOffice.Tenant,
		Store:   cfg.BackOffice.Store,
		Token:   cfg.BackOffice.Token,
	}, httpClient, m)

	notifier := notify.New(notify.Config{
		APIURL:    cfg.Mail.APIURL,
		APIKey:    cfg.Mail.APIKey,
		From:      cfg.Mail.From,
		Recipient: cfg.Mail.Recipient,
		Timeout:   cfg.Mail.Timeout,
	}, httpClient, m, logger)

	orchestrator := order.NewOrchestrator(backOffice, userService, cfg.BackOffice.SettleDelay, m, publisher, logger)

	attempts := checkout.NewInMemoryStore(cfg.CheckoutTTL)
	go attempts.RunSweeper(ctx, time.Minute)

	checkoutService := checkout.NewService(checkout.Deps{
		Carts:    cartService,
		Catalog:  productService,
		Payments: payments,
		Orders:   orchestrator,
		Notifier: notifier,
		Store:    attempts,
		Metrics:  m,
		Logger:   logger,
	}, checkout.Settings{
		Currency:    cfg.Payment.Currency,
		VATPercent:  cfg.Payment.VATPercent,
		ReturnURL:   cfg.Payment.ReturnURL,
		CallbackURL: cfg.Payment.CallbackURL,
		TermsURL:    cfg.Payment.TermsURL,
		Shipping: order.ShippingPolicy{
			FreeThreshold: cfg.Shipping.FreeThreshold,
			Surcharge:     cfg.Shipping.Surcharge,
			ProductUID:    cfg.BackOffice.ShippingProductUID,
		},
	})

	product.NewHandler(productService).RegisterPublicRoutes(app)

	app.Use(jwtware.New(jwtware.Config{
		SigningKey: []byte(cfg.JWTSecret),
	}))

	user.NewHandler(userService).RegisterProtectedRoutes(app)
	cart.NewHandler(cartService).RegisterProtectedRoutes(app)
	checkout.NewHandler(checkoutService).RegisterProtectedRoutes(app)

	logger.Info("listening", zap.String("addr", cfg.Addr))
	if err := app.Listen(cfg.Addr); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func setupCORS(app *fiber.App) {
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,HEAD,PUT,DELETE,PATCH",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))
}

func mustOpenDB(dbURL string) *sql.DB {
	db, err := sql.Open("pgx", dbURL)
	if err != nil {
		panic(err)
	}

	if err := db.Ping(); err != nil {
		panic(err)
	}

	return db
}

func ensureSchema(db *sql.DB, logger *zap.Logger) {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS product (
		product_uid TEXT PRIMARY KEY,
		product_name TEXT NOT NULL,
		product_price BIGINT NOT NULL
	)`); err != nil {
		panic(err)
	}
	if _, err := db.Exec(user.EnsureSchemaQuery); err != nil {
		panic(err)
	}
	// profiles created before the back-office link existed
	if _, err := db.Exec(`ALTER TABLE profiles ADD COLUMN IF NOT EXISTS backoffice_customer_uid TEXT`); err != nil {
		logger.Warn("adding backoffice_customer_uid column failed", zap.Error(err))
	}
}

