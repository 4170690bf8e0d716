/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the Incentive Engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (if present) and parse command-line flags
  2. Initialize SQLite store
  3. Create API handler with dependencies
  4. Start the run scheduler (optional)
  5. Start server with graceful shutdown

CONFIGURATION:
  Flags take precedence over environment variables:
  -port / PORT             HTTP server port (default: 8080)
  -db / DATABASE_PATH      SQLite database path (default: incentive.db)
                           Use ":memory:" for in-memory database
  -log-level / LOG_LEVEL   debug | info | warn | error (default: warn)
  -scheduler / SCHEDULER   Enable the background recompute sweep (default: false)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/incentive.db"

  # Run with in-memory database and verbose engine logging
  ./server -db=":memory:" -log-level=debug

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/warp/incentive-engine/api"
	"github.com/warp/incentive-engine/engine"
	"github.com/warp/incentive-engine/store/sqlite"
)

func main() {
	// .env is optional; absence is not an error
	_ = godotenv.Load()

	port := flag.Int("port", envInt("PORT", 8080), "HTTP server port")
	dbPath := flag.String("db", envStr("DATABASE_PATH", "incentive.db"), "SQLite database path")
	logLevel := flag.String("log-level", envStr("LOG_LEVEL", "warn"), "Engine log level (debug|info|warn|error)")
	schedulerOn := flag.Bool("scheduler", envBool("SCHEDULER", false), "Enable background run recompute sweep")
	flag.Parse()

	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	handler := api.NewHandler(store, engine.NewLogger(parseLogLevel(*logLevel)))
	router := api.NewRouter(handler)

	scheduler := api.NewRunScheduler(store, handler)
	scheduler.Enabled = *schedulerOn
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("🚀 Server starting on http://localhost:%d", *port)
		log.Printf("📊 API available at http://localhost:%d/api", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func parseLogLevel(s string) engine.LogLevel {
	switch s {
	case "debug":
		return engine.LevelDebug
	case "info":
		return engine.LevelInfo
	case "error":
		return engine.LevelError
	default:
		return engine.LevelWarn
	}
}
