package main

import (
	"log"

	"github.com/coindeck/coindeck/pkg/coindeck/alerts"
	"github.com/coindeck/coindeck/pkg/coindeck/apikeys"
	"github.com/coindeck/coindeck/pkg/coindeck/auth"
	"github.com/coindeck/coindeck/pkg/coindeck/config"
	"github.com/coindeck/coindeck/pkg/coindeck/database"
	"github.com/coindeck/coindeck/pkg/coindeck/health"
	"github.com/coindeck/coindeck/pkg/coindeck/middleware"
	"github.com/coindeck/coindeck/pkg/coindeck/models"
	"github.com/coindeck/coindeck/pkg/coindeck/prices"
	"github.com/coindeck/coindeck/pkg/coindeck/ratelimit"
	"github.com/coindeck/coindeck/pkg/coindeck/usage"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// @title Coindeck API
// @version 1.0
// @description API key management and cryptocurrency price proxy.

// @host localhost:8080
// @BasePath /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT token. Format: "Bearer {token}"

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
// @description API key issued by /api/keys/generate

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()
	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	// Connect to database
	db, err := database.Connect(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close(db)

	// Run auto-migrations
	if err := models.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database migrations completed")

	// Price providers
	gecko := prices.NewCoinGeckoClient(cfg.CoinGeckoBaseURL, logger)
	var uniswap prices.EthPricer
	if cfg.EthereumRPCURL != "" {
		client, err := prices.NewUniswapClient(cfg.EthereumRPCURL, cfg.UniswapPairAddr, logger)
		if err != nil {
			log.Fatalf("Failed to connect to Ethereum RPC: %v", err)
		}
		defer client.Close()
		uniswap = client
	} else {
		log.Println("No ETHEREUM_RPC_URL set - /api/v1/price/dev disabled")
	}

	// Alert checker
	checker := alerts.NewChecker(db, gecko, logger)
	if cfg.AlertCheckSpec != "" {
		if err := checker.Start(cfg.AlertCheckSpec); err != nil {
			log.Fatalf("Failed to start alert checker: %v", err)
		}
		defer checker.Stop()
	}

	// Rate limiter runs before any authentication
	limiter := ratelimit.New(ratelimit.Config{
		Max:      cfg.RateLimitMax,
		Window:   cfg.RateLimitWindow,
		KeyBurst: cfg.RateLimitKeyBurst,
	})

	// Set up Gin router
	r := gin.Default()
	r.Use(middleware.RequestID())
	r.Use(ratelimit.Middleware(limiter, ratelimit.Options{
		SkipPaths: cfg.RateLimitSkip,
		BudgetFor: apikeys.RateLimitOverride(db),
	}))

	// Health probes (excluded from rate limiting by default)
	healthHandler := health.NewHandler(db)
	healthHandler.RegisterRoutes(r)

	// Auth routes (public + JWT profile)
	authHandler := auth.NewHandler(db)
	authHandler.RegisterRoutes(r.Group("/auth"))

	// Key management (credentials in body; list and analytics need a JWT)
	keysGroup := r.Group("/api/keys")
	apiKeysHandler := apikeys.NewHandler(db)
	apiKeysHandler.RegisterRoutes(keysGroup)

	usageHandler := usage.NewHandler(db)
	usageHandler.RegisterRoutes(keysGroup)

	// Alerts (JWT)
	alertsHandler := alerts.NewHandler(db)
	alertsHandler.RegisterRoutes(r.Group("/api/alerts"))

	// Price proxy (API key required, usage logged, prices scope enforced)
	pricesHandler := prices.NewHandler(gecko, uniswap, cfg.PriceCacheTTL, logger)
	pricesGroup := r.Group("/api/v1",
		apikeys.AuthMiddleware(db, logger),
		apikeys.RequireScope(prices.ScopePrices))
	pricesHandler.RegisterRoutes(pricesGroup)

	log.Printf("Starting coindeck server on :%s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
