package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fslongjin/bandsweep/internal/fakeband"
	"github.com/fslongjin/bandsweep/internal/logx"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	logger, closeLogger, err := logx.Init("fakeband", logx.ServerDefaults)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		if err := closeLogger(); err != nil {
			slog.Error("failed to close logger", "error", err)
		}
	}()

	stdLog := slog.NewLogLogger(logger.Handler(), slog.LevelInfo)
	log.SetFlags(0)
	log.SetOutput(stdLog.Writer())

	fixture := fakeband.DefaultFixture()
	if path := os.Getenv("FAKEBAND_FIXTURE"); path != "" {
		fixture, err = fakeband.LoadFixture(path)
		if err != nil {
			log.Fatalf("Failed to load fixture: %v", err)
		}
		slog.Info("fixture loaded", "component", "fakeband", "path", path, "bands", len(fixture.Bands))
	}

	opts := fakeband.Options{
		ItemDelay:        envDuration("FAKEBAND_ITEM_DELAY", 200*time.Millisecond),
		ProgressInterval: envDuration("FAKEBAND_PROGRESS_INTERVAL", 0),
	}
	fake := fakeband.New(fixture, opts)
	drainState := fake.Drain()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logx.RequestIDMiddleware())
	r.Use(logx.AccessLogMiddleware("fakeband_http"))

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Upgrade", "Connection", "Sec-WebSocket-Key", "Sec-WebSocket-Version", "Sec-WebSocket-Extensions", "Sec-WebSocket-Protocol"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(func(c *gin.Context) {
		if drainState.IsDraining() && c.Request.URL.Path != "/health" && c.Request.URL.Path != "/readyz" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": gin.H{"message": "service is draining"}})
			return
		}
		c.Next()
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/readyz", func(c *gin.Context) {
		if drainState.IsDraining() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "draining"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	fake.RegisterRoutes(r.Group("/api"))

	port := os.Getenv("PORT")
	if port == "" {
		port = "4000"
	}
	shutdownTimeout := envDuration("SHUTDOWN_TIMEOUT", 30*time.Second)

	// Deletions sleep per item, so responses can take minutes.
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("fake band api starting", "component", "http_server", "port", port, "item_delay", opts.ItemDelay.String())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down fake band API...")

	drainState.StartDraining()

	ctxShutdown, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctxShutdown); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	drainCtx, drainCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer drainCancel()
	if err := drainState.WaitStreams(drainCtx); err != nil {
		log.Printf("API drained with timeout, remaining progress streams: %d", drainState.ActiveStreams())
	}

	log.Println("Fake band API stopped")
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
