package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storyland-backend/internal/config"
	"storyland-backend/internal/database"
	"storyland-backend/internal/handlers"
	"storyland-backend/internal/middleware"
	"storyland-backend/internal/observability"
	"storyland-backend/internal/repository"
	"storyland-backend/internal/router"
	"storyland-backend/internal/services"
	"storyland-backend/internal/tracking"
	"storyland-backend/internal/websocket"
	"storyland-backend/internal/worker"
)

func main() {
	log.Println("🚀 Starting Storyland Backend...")

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	log.Println("✓ Environment variables loaded")

	// ──── Step 2: Initialize PostgreSQL Connection Pool ────
	pool, err := database.NewPostgresPool(cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		log.Fatalf("✗ PostgreSQL connection failed: %v", err)
	}
	defer pool.Close()
	log.Println("✓ PostgreSQL connected")

	// ──── Step 3: Initialize Redis Clients ────
	redisClients, err := database.NewRedisClients(cfg.RedisURL)
	if err != nil {
		log.Fatalf("✗ Redis connection failed: %v", err)
	}
	defer redisClients.Close()
	log.Println("✓ Redis connected")

	// ──── Step 4: Run Database Migrations ────
	if err := database.RunMigrations(pool, "migrations"); err != nil {
		log.Fatalf("✗ Database migration failed: %v", err)
	}
	log.Println("✓ Database migrations applied")

	// ──── Initialize Repositories ────
	sessionRepo := repository.NewSessionRepo(pool)
	adminRepo := repository.NewAdminRepo(pool)
	contentRepo := repository.NewContentRepo(pool)
	analyticsRepo := repository.NewAnalyticsRepo(pool)
	sessionChanges := repository.NewSessionChanges(redisClients.PubSub)

	// ──── Metrics ────
	metrics := observability.NewMetrics("storyland")

	// ──── Step 5: Start Dashboard Feed ────
	feed := tracking.NewFeed(tracking.Config{
		InactiveThreshold:   cfg.InactiveThreshold,
		PullRefreshInterval: cfg.PullRefreshInterval,
		TopPagesLimit:       cfg.TopPagesLimit,
	}, sessionRepo, sessionChanges, metrics)

	feedCtx, stopFeed := context.WithCancel(context.Background())
	defer stopFeed()
	go feed.Run(feedCtx)
	log.Println("✓ Dashboard feed started")

	// ──── Initialize Services ────
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)
	authService := services.NewAuthService(adminRepo, redisClients.Queue, jwtAuth)
	trackingService := services.NewTrackingService(sessionRepo, sessionChanges)
	contentService := services.NewContentService(contentRepo)

	if err := authService.EnsureAdmin(context.Background(), cfg.AdminEmail, cfg.AdminPassword); err != nil {
		log.Fatalf("✗ Admin bootstrap failed: %v", err)
	}

	// ──── Step 6: Start Rollup Worker ────
	rollupWorker := worker.NewRollupWorker(
		redisClients.Queue,
		sessionRepo,
		analyticsRepo,
		metrics,
		cfg.RollupInterval,
		cfg.InactiveThreshold,
		cfg.SessionRetention,
		cfg.TopPagesLimit,
	)
	rollupWorker.Start()

	// ──── Step 7: Start WebSocket Hub ────
	wsHub := websocket.NewHub(feed, jwtAuth, metrics)
	log.Println("✓ WebSocket hub started")

	// ──── Initialize Handlers ────
	authHandler := handlers.NewAuthHandler(authService)
	trackHandler := handlers.NewTrackHandler(trackingService, metrics)
	analyticsHandler := handlers.NewAnalyticsHandler(feed, analyticsRepo, rollupWorker)
	storyHandler := handlers.NewContentHandler(contentService, "story")
	videoHandler := handlers.NewContentHandler(contentService, "video")
	postHandler := handlers.NewContentHandler(contentService, "post")

	// ──── Step 8: Start HTTP Server ────
	// Auth endpoints get a tight per-IP budget; heartbeats a looser one
	// sized for one tab ticking plus navigation.
	authLimiter := middleware.NewRateLimiter(10, time.Minute)
	trackLimiter := middleware.NewRateLimiter(120, time.Minute)

	r := router.New(
		jwtAuth,
		authHandler,
		trackHandler,
		analyticsHandler,
		storyHandler,
		videoHandler,
		postHandler,
		wsHub,
		authLimiter,
		trackLimiter,
		cfg.FrontendURL,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")
		stopFeed()
		rollupWorker.Stop()
		authLimiter.Stop()
		trackLimiter.Stop()
		wsHub.CloseAll()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("✓ Storyland Backend ready on http://localhost:%s", cfg.Port)
	log.Printf("  API: http://localhost:%s/api/v1", cfg.Port)
	log.Printf("  WS:  ws://localhost:%s/api/v1/ws", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}
