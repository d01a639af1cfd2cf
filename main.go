package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"marketgist_backend/config"
	"marketgist_backend/routes"
	"marketgist_backend/scheduler"
	"marketgist_backend/services"
	"marketgist_backend/services/alerting"
	"marketgist_backend/services/mailer"

	"github.com/gin-gonic/gin"
)

// storeReady tracks whether the MongoDB store has been initialized, so the
// /ready endpoint can report readiness while the store connects in the
// background
var storeReady bool
var storeMutex sync.RWMutex
var storeClient *services.MongoClient

func main() {
	log.Println("==============================================")
	log.Println("  MarketGist Backend API - Starting...")
	log.Println("==============================================")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Printf("Warning: Config load issue: %v", err)
	}

	// Set Gin mode based on environment
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Create Gin router
	router := gin.New()

	// Add middlewares
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(requestLogger())

	// Setup health check endpoints FIRST so the platform can detect the
	// service is up; the store is initialized in the background
	setupHealthEndpoints(router)

	server := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MB
	}

	// Start server immediately so the platform knows we're listening
	go func() {
		log.Printf("Server listening on 0.0.0.0:%s", cfg.Port)
		log.Println("==============================================")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Initialize the store, routes and scheduler in background
	var jobScheduler *scheduler.Scheduler
	go func() {
		log.Printf("Connecting to MongoDB: %s (db=%s)", config.MaskURI(cfg.MongoURI), cfg.MongoDBName)

		client, err := services.NewMongoClient(cfg.MongoURI, cfg.MongoDBName)
		if err != nil {
			log.Printf("ERROR: MongoDB connection failed: %v", err)
			log.Println("Service will continue in limited mode (health check only)")
			return
		}

		store := services.NewAlertStore(client)
		quotes := services.NewQuoteService(cfg.FinnhubAPIKey, cfg.QuoteRatePerMinute)
		users := services.NewUserDirectory(client)
		emitter := mailer.New(cfg)
		dispatcher := alerting.NewDispatcher(emitter, store)
		monitor := alerting.NewMonitor(store, quotes, users, dispatcher, cfg.AlertBatchSize)

		storeMutex.Lock()
		storeClient = client
		storeReady = true
		storeMutex.Unlock()

		// Setup all API routes
		routes.SetupRoutes(router, store, quotes)

		// Start background scheduler
		jobScheduler = scheduler.NewScheduler(monitor, cfg.AlertCheckMinutes)
		go jobScheduler.Start()

		log.Println("Application fully initialized with store")
	}()

	// Graceful shutdown
	gracefulShutdown(server, &jobScheduler)
}

// setupHealthEndpoints sets up liveness and readiness endpoints
func setupHealthEndpoints(router *gin.Engine) {
	// Root endpoint
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "MarketGist Backend API",
			"version": "1.0.0",
		})
	})

	// Liveness probe - always returns OK if server is running
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})

	// Readiness probe - checks if the store is connected
	router.GET("/ready", func(c *gin.Context) {
		storeMutex.RLock()
		ready := storeReady
		client := storeClient
		storeMutex.RUnlock()

		if !ready || client == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "not_ready",
				"message": "Store not connected",
			})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "not_ready",
				"message": "Store ping failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "ready",
		})
	})
}

// corsMiddleware returns a CORS middleware handler
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-User-ID")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// requestLogger returns a request logging middleware
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Skip logging for health checks to reduce noise
		path := c.Request.URL.Path
		if path == "/health" || path == "/ready" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		duration := time.Since(start)

		// Only log errors or slow requests
		if c.Writer.Status() >= 400 || duration > 1*time.Second {
			log.Printf("%s %s %d %v", c.Request.Method, path, c.Writer.Status(), duration)
		}
	}
}

// gracefulShutdown handles graceful shutdown of the server
func gracefulShutdown(server *http.Server, jobScheduler **scheduler.Scheduler) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	log.Printf("Received signal %v, shutting down gracefully...", sig)

	// Stop scheduler first so no new cycles start
	if *jobScheduler != nil {
		(*jobScheduler).Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	storeMutex.RLock()
	client := storeClient
	storeMutex.RUnlock()
	if client != nil {
		if err := client.Close(); err != nil {
			log.Printf("Error closing MongoDB connection: %v", err)
		}
	}

	log.Println("Server exited")
}
