package main

import (
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"restaurant-backend/config"
	"restaurant-backend/controllers"
	"restaurant-backend/database"
	"restaurant-backend/logger"
	"restaurant-backend/metrics"
	"restaurant-backend/middlewares"
	"restaurant-backend/routes"
	"restaurant-backend/services"
)

func main() {
	cfg := config.Load()

	lg, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	if strings.TrimSpace(cfg.JWTSecret) == "" {
		lg.Fatal("JWT_SECRET_KEY is not set")
	}

	// ---- Database
	db, err := database.Connect(cfg.DB)
	if err != nil {
		lg.Fatal("connect database", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		lg.Fatal("migrate database", zap.Error(err))
	}
	lg.Info("database ready", zap.String("host", cfg.DB.Host), zap.String("name", cfg.DB.Name))

	secret := []byte(cfg.JWTSecret)
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	svc := services.NewService(db, lg).WithMetrics(metrics.NewEngine(reg))
	api := controllers.New(svc, secret, lg)

	// ---- Fiber app with global error handler + body limit
	app := fiber.New(fiber.Config{
		ErrorHandler: middlewares.ErrorHandler(lg),
		BodyLimit:    cfg.BodyLimitBytes,
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowCredentials: false, // bearer tokens, not cookies
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, " + middlewares.IdempotencyHeader,
	}))

	// scrapes are not rate limited
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	// Default KeyGenerator is the client IP.
	app.Use(limiter.New(limiter.Config{
		Max:        cfg.RateLimitMax,
		Expiration: cfg.RateLimitWin,
	}))

	routes.Register(app, db, api, secret, lg)

	lg.Info("API server starting", zap.String("port", cfg.Port))
	if err := app.Listen(":" + cfg.Port); err != nil {
		lg.Fatal("listen", zap.Error(err))
	}
}
