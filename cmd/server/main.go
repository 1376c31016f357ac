package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/kitabpay/backend/docs"
	"github.com/kitabpay/backend/internal/config"
	"github.com/kitabpay/backend/internal/database"
	"github.com/kitabpay/backend/internal/events"
	"github.com/kitabpay/backend/internal/handlers"
	mW "github.com/kitabpay/backend/internal/middleware"
	"github.com/kitabpay/backend/internal/services"
	"github.com/kitabpay/backend/internal/store"
)

// @title KitabPay Backend API
// @version 1.0
// @description Ledger and marketplace API for the KitabPay book wallet
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

func main() {
	// Initialize config
	viper.SetConfigFile(".env") // explicitly point to .env file
	viper.AutomaticEnv()        // allow environment variables to override .env
	viper.ReadInConfig()        // read .env file

	viper.SetEnvPrefix("")

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")
	viper.BindEnv("jwt.expiry_hours", "JWT_EXPIRY_HOURS")
	viper.BindEnv("argon2.time", "ARGON2_TIME")
	viper.BindEnv("argon2.memory", "ARGON2_MEMORY")
	viper.BindEnv("argon2.threads", "ARGON2_THREADS")
	viper.BindEnv("argon2.key_length", "ARGON2_KEY_LENGTH")
	viper.BindEnv("argon2.salt_length", "ARGON2_SALT_LENGTH")

	viper.SetDefault("jwt.expiry_hours", 24)
	viper.SetDefault("argon2.time", 1)
	viper.SetDefault("argon2.memory", 64*1024)
	viper.SetDefault("argon2.threads", 4)
	viper.SetDefault("argon2.key_length", 32)
	viper.SetDefault("argon2.salt_length", 16)

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(os.Stdout)

	walletCfg := config.LoadWalletConfig()

	// Initialize Swagger docs
	docs.SwaggerInfo.Title = "KitabPay Backend API"
	docs.SwaggerInfo.Description = "Ledger and marketplace API for the KitabPay book wallet"
	docs.SwaggerInfo.Version = "1.0"
	docs.SwaggerInfo.Host = "localhost:8080"
	docs.SwaggerInfo.BasePath = "/api/v1"
	docs.SwaggerInfo.Schemes = []string{"http", "https"}

	db, err := database.InitDB(log)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize database")
	}
	defer db.Close()

	redisClient := database.InitRedis(log)
	if redisClient != nil {
		defer redisClient.Close()
	}

	var publisher *events.Publisher
	if walletCfg.EventsURL != "" {
		publisher, err = events.NewPublisher(walletCfg.EventsURL, walletCfg.EventsQueue, log)
		if err != nil {
			log.WithError(err).Warn("event publisher unavailable, continuing without events")
		} else {
			defer publisher.Close()
		}
	}

	accountStore := store.NewPostgresAccountStore(db)
	listingStore := store.NewPostgresListingStore(db)

	ledgerService := services.NewLedgerService(accountStore, log)
	catalogService := services.NewCatalogService(listingStore, accountStore, walletCfg.MarketplaceLimit, log)
	transactionService := services.NewTransactionService(ledgerService, catalogService, accountStore, publisher, walletCfg.HistoryLimit, log)
	transferCodeService := services.NewTransferCodeService(accountStore, redisClient, walletCfg.TransferCodeTTL)
	authService := services.NewAuthService(db, redisClient, log)

	walletHandler := handlers.NewWalletHandler(transactionService, transferCodeService)
	marketHandler := handlers.NewMarketHandler(catalogService, transactionService)

	// Initialize auth middleware with Redis
	mW.InitAuthMiddleware(redisClient)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(walletCfg.RequestTimeout))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Access-Control-Allow-Origin"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("http://localhost:8080/swagger/doc.json"),
	))

	// Static file server for book covers
	r.Handle("/static/book-covers/*", http.StripPrefix("/static/book-covers/",
		mW.StaticFileServer("./static/book-covers")))

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints (no auth required)
		r.Post("/auth/register", authService.Register)
		r.Post("/auth/login", authService.Login)
		r.Post("/auth/logout", authService.Logout)
		r.Get("/marketplace", marketHandler.ListMarketplace)
		r.Get("/marketplace/{listingId}", marketHandler.GetListing)

		// Protected endpoints (auth required)
		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware)

			r.Get("/auth/account", authService.GetUserAccount)

			r.Post("/marketplace", marketHandler.CreateListing)
			r.Post("/marketplace/{listingId}/purchase", marketHandler.Purchase)

			r.Get("/library", marketHandler.ListLibrary)
			r.Post("/library", marketHandler.AddLibraryItem)
			r.Post("/library/{itemId}/publish", marketHandler.PublishItem)
			r.Post("/library/{itemId}/unpublish", marketHandler.UnpublishItem)
			r.Delete("/library/{itemId}", marketHandler.DeleteLibraryItem)
			r.Get("/purchases", marketHandler.ListPurchases)

			r.Get("/wallet/balance", walletHandler.Balance)
			r.Get("/wallet/history", walletHandler.History)
			r.Post("/wallet/transfer", walletHandler.Transfer)
			r.Get("/wallet/code", walletHandler.GenerateCode)
			r.Post("/wallet/code/decode", walletHandler.DecodeCode)
			r.Post("/wallet/add-balance", walletHandler.AddBalance)
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Start server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.WithField("port", port).Info("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("server shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), walletCfg.ShutdownGracetime)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Fatal("server forced to shutdown")
	}

	log.Info("server stopped")
}
