// @title           Image Studio Backend API
// @version         1.0.0
// @description     Backend API for entitlement-gated image transformation. Handles the anonymous trial, account quotas, metered billing and simulated purchases.

// @contact.name   API Support
// @contact.email  support@example.com

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

package main

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"image-studio-backend/docs"
	"image-studio-backend/internal/billing"
	"image-studio-backend/internal/config"
	"image-studio-backend/internal/database"
	"image-studio-backend/internal/gate"
	"image-studio-backend/internal/handlers"
	"image-studio-backend/internal/ledger"
	"image-studio-backend/internal/logging"
	"image-studio-backend/internal/metrics"
	"image-studio-backend/internal/middleware"
	"image-studio-backend/internal/purchase"
	"image-studio-backend/internal/services"
	"image-studio-backend/internal/supabase"
	"image-studio-backend/internal/transform"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	log := logging.Component(logger, "server")

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Update Swagger docs with dynamic base URL
	if cfg.BaseURL != "" {
		baseURL, err := url.Parse(cfg.BaseURL)
		if err == nil {
			docs.SwaggerInfo.Host = baseURL.Host
			if baseURL.Scheme == "https" {
				docs.SwaggerInfo.Schemes = []string{"https", "http"}
			} else {
				docs.SwaggerInfo.Schemes = []string{"http", "https"}
			}
		}
	}

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required: usage counters live in PostgreSQL")
	}

	startCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	db, err := database.Open(startCtx, cfg.DatabaseURL)
	if err != nil {
		cancel()
		log.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	if err := database.NewMigrator(db, logging.Component(logger, "migrator")).Run(startCtx); err != nil {
		log.WithError(err).Warn("Migration failed")
	} else {
		log.Info("Migrations completed successfully")
	}
	cancel()

	dbClient := supabase.NewDatabaseClient(db)

	// Ledger strategies, most atomic first.
	strategies := []ledger.Incrementer{ledger.NewFunctionIncrementer(db)}
	var storage services.ResultStore
	if cfg.StorageEnabled() {
		supabaseClient, err := supabase.NewClient(cfg)
		if err != nil {
			log.WithError(err).Warn("Supabase client unavailable, RPC ledger path disabled")
		} else {
			strategies = append(strategies, ledger.NewRPCIncrementer(supabaseClient))
		}
		storage = supabase.NewStorageClient(cfg.SupabaseURL, cfg.SupabasePublishableKey, cfg.SupabaseStorageBucket)
	} else {
		log.Warn("Supabase storage not configured, results will be returned inline")
	}
	strategies = append(strategies, ledger.NewReadModifyWriteIncrementer(db))
	usageLedger := ledger.New(logging.Component(logger, "ledger"), strategies...)

	var reporter services.UsageReporter
	var asyncReporter *billing.AsyncReporter
	if cfg.StripeSecretKey != "" {
		asyncReporter = billing.NewAsyncReporter(billing.NewStripeReporter(cfg.StripeSecretKey), logging.Component(logger, "billing"), 0)
		reporter = asyncReporter
	} else {
		log.Warn("STRIPE_SECRET_KEY not set, metered usage will not be reported")
	}

	codec, err := purchase.NewCodec([]byte(cfg.PurchaseTokenSecret))
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize purchase token codec")
	}

	transformClient := transform.NewClient(cfg.TransformAPIBaseURL, cfg.TransformAPIKey)

	submissions := services.NewSubmissionService(
		dbClient,
		gate.NewController(cfg.AnonymousFreeLimit),
		transformClient,
		storage,
		usageLedger,
		reporter,
		logging.Component(logger, "submissions"),
	)
	purchases := services.NewPurchaseService(codec, dbClient, cfg.PurchaseTokenTTL, logging.Component(logger, "purchases"))

	submitHandler := handlers.NewSubmitHandler(submissions)
	usageHandler := handlers.NewUsageHandler(submissions, cfg.AnonymousFreeLimit)
	leadsHandler := handlers.NewLeadsHandler(dbClient, logging.Component(logger, "leads"))
	purchaseHandler := handlers.NewPurchaseHandler(purchases)
	limiter := middleware.NewRateLimiter(cfg.SubmitRatePerSecond, cfg.SubmitRateBurst)

	router := gin.New()
	router.Use(logging.RequestLogger(logger))
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	router.GET("/health", handlers.HealthHandler)
	router.GET("/health/ready", handlers.ReadyHandler(dbClient))

	api := router.Group("/api/v1")
	api.Use(middleware.Identity(cfg))

	api.POST("/transform/:mode", limiter.Middleware(), submitHandler.Submit)
	api.GET("/usage", usageHandler.GetUsage)
	api.POST("/leads/email", leadsHandler.RegisterEmail)

	api.GET("/tiers", purchaseHandler.ListTiers)
	api.POST("/checkout/simulate", purchaseHandler.SimulateCheckout)
	api.POST("/purchase/verify", purchaseHandler.VerifyPurchase)
	api.POST("/purchase/claim", middleware.RequireUser(), purchaseHandler.ClaimPurchase)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Infof("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down")

	shutdownCtx, stop := context.WithTimeout(context.Background(), 15*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Graceful shutdown failed")
	}
	// Drain pending metered usage reports after in-flight requests finish.
	if asyncReporter != nil {
		asyncReporter.Close()
	}
}
