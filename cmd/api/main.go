package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pricedesk-api/internal/cache"
	"pricedesk-api/internal/config"
	"pricedesk-api/internal/handler"
	"pricedesk-api/internal/middleware"
	"pricedesk-api/internal/repository"
	"pricedesk-api/internal/router"
	"pricedesk-api/internal/service"
	"pricedesk-api/internal/upstream"

	_ "github.com/go-sql-driver/mysql"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting PriceDesk API...")

	// Load configuration
	cfg := config.MustLoad()
	log.Printf("Environment: %s", cfg.App.Environment)

	// Initialize floor repository based on config
	var floorRepo repository.FloorRepository
	switch cfg.FloorDB.Type {
	case "sqlite":
		sqliteRepo, err := repository.NewSQLiteFloorRepository(cfg.FloorDB.SQLitePath)
		if err != nil {
			log.Fatalf("Failed to initialize SQLite floor repository: %v", err)
		}
		defer sqliteRepo.Close()
		floorRepo = sqliteRepo
		log.Println("SQLite floor repository initialized")
	case "postgres", "postgresql":
		pgRepo, err := repository.NewPostgresFloorRepository(cfg.FloorDB.PostgresDSN())
		if err != nil {
			log.Fatalf("Failed to initialize PostgreSQL floor repository: %v", err)
		}
		defer pgRepo.Close()
		floorRepo = pgRepo
		log.Println("PostgreSQL floor repository initialized")
	default: // file
		fileRepo, err := repository.NewFileFloorRepository(cfg.FloorDB.Path)
		if err != nil {
			log.Fatalf("Failed to initialize file floor repository: %v", err)
		}
		defer fileRepo.Close()
		floorRepo = fileRepo
		log.Println("File floor repository initialized")
	}

	// Schedule persistence
	scheduleRepo, err := repository.NewFileScheduleRepository(cfg.Scheduler.StatePath)
	if err != nil {
		log.Fatalf("Failed to initialize schedule store: %v", err)
	}

	// MySQL run history log (optional)
	var runRepo repository.RunLogRepository
	if cfg.RunDB.Enabled {
		mysqlDB, err := sql.Open("mysql", cfg.RunDB.DSN())
		if err != nil {
			log.Printf("Warning: MySQL connection failed: %v", err)
		} else {
			mysqlDB.SetMaxOpenConns(10)
			mysqlDB.SetMaxIdleConns(5)
			mysqlDB.SetConnMaxLifetime(5 * time.Minute)

			if err := mysqlDB.Ping(); err != nil {
				log.Printf("Warning: MySQL ping failed, run history disabled: %v", err)
				mysqlDB.Close()
			} else {
				mysqlRepo, err := repository.NewMySQLRunLogRepository(mysqlDB)
				if err != nil {
					log.Printf("Warning: run log setup failed, run history disabled: %v", err)
					mysqlDB.Close()
				} else {
					defer mysqlDB.Close()
					runRepo = mysqlRepo
					log.Println("MySQL run history initialized")
				}
			}
		}
	}

	// Session store: redis when configured, in-process memory otherwise
	var sessions cache.Cache
	if cfg.Sessions.Store == "redis" {
		redisCache, err := cache.NewRedisCache(cache.RedisConfig{
			Addr:     cfg.Sessions.RedisAddress(),
			Password: cfg.Sessions.RedisPassword,
			DB:       cfg.Sessions.RedisDB,
		})
		if err != nil {
			log.Printf("Warning: Redis connection failed, falling back to memory sessions: %v", err)
			sessions = cache.NewMemoryCache()
		} else {
			sessions = redisCache
			log.Println("Redis session store initialized")
		}
	} else {
		sessions = cache.NewMemoryCache()
	}
	defer sessions.Close()

	// Upstream auth and catalog plumbing
	tokens := service.NewTokenStore(cfg.Auth.ServiceUsername, cfg.Auth.ServicePassword)
	client := upstream.New(cfg.Upstream.BaseURL, cfg.Upstream.Timeout, tokens)
	auth := service.NewAuthManager(cfg.Upstream.BaseURL, cfg.Upstream.Timeout, tokens, sessions, cfg.Auth.AdminAllowList())

	catalog := service.NewCatalogService(service.CatalogConfig{
		CatalogURL:   cfg.Upstream.CatalogURL,
		PerPage:      cfg.Upstream.PerPage,
		MerchantUUID: cfg.Upstream.MerchantUUID,
	}, client, floorRepo)

	pricing := service.NewPriceService(service.PricingConfig{
		GlobalURL:        cfg.Upstream.GlobalURL,
		ExcludedSellerID: cfg.Upstream.ExcludedSellerID,
		MaxRetries:       cfg.Pricing.MaxRetries,
		BaseDelay:        cfg.Pricing.BaseDelay,
		BatchSize:        cfg.Pricing.BatchSize,
		BatchPause:       cfg.Pricing.BatchPause,
		RecoveryPause:    cfg.Pricing.RecoveryPause,
	}, catalog, client, auth, tokens, floorRepo, runRepo)

	scheduler := service.NewSchedulerService(pricing, scheduleRepo)
	if err := scheduler.Restore(context.Background()); err != nil {
		log.Printf("Warning: failed to restore schedules: %v", err)
	}
	defer scheduler.Shutdown()

	// Initialize handlers
	healthHandler := handler.NewHealthHandler(auth, catalog)
	authHandler := handler.NewAuthHandler(auth)
	productHandler := handler.NewProductHandler(catalog, pricing)
	floorHandler := handler.NewFloorHandler(catalog)
	schedulerHandler := handler.NewSchedulerHandler(scheduler)

	var runHandler *handler.RunHandler
	if runRepo != nil {
		runHandler = handler.NewRunHandler(runRepo)
	}

	// Create auth middleware with injected dependencies (NO GLOBALS!)
	authMiddleware := middleware.NewAuthMiddleware(auth)

	// Create router
	r := router.New(router.Config{
		HealthHandler:    healthHandler,
		AuthHandler:      authHandler,
		ProductHandler:   productHandler,
		FloorHandler:     floorHandler,
		SchedulerHandler: schedulerHandler,
		RunHandler:       runHandler,
		AuthMiddleware:   authMiddleware,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server listening on %s", cfg.Server.Address())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}
