/*
main.go - Application entry point

PURPOSE:
  Starts the syndicate ledger HTTP server.

STARTUP SEQUENCE:
  1. Load config (.env, environment), then apply flags
  2. Open SQLite store (runs migrations)
  3. Build syndicate service with configured rules and clock
  4. Configure HTTP router
  5. Serve until SIGINT/SIGTERM, then shut down gracefully

COMMAND-LINE FLAGS (override environment):
  -port    HTTP server port
  -db      SQLite database path, ":memory:" for an in-memory database

EXAMPLES:
  ./server -db="./data/syndicate.db"
  ./server -db=":memory:" -port=3000

SEE ALSO:
  - config/config.go: environment variables
  - api/server.go: router configuration
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/warp/syndicate/api"
	"github.com/warp/syndicate/config"
	"github.com/warp/syndicate/store/sqlite"
	"github.com/warp/syndicate/syndicate"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	port := flag.Int("port", cfg.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.DBPath, "SQLite database path")
	flag.Parse()
	cfg.Port = *port
	cfg.DBPath = *dbPath
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	logger := cfg.Logger()
	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Fatal("server failed")
	}
	logger.Info("server stopped")
}

func run(cfg *config.Config, logger *log.Logger) error {
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer store.Close()

	svc, err := syndicate.NewService(store,
		syndicate.WithRules(cfg.Rules()),
		syndicate.WithClock(cfg.Clock()),
		syndicate.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	handler := api.NewHandler(svc, logger)
	router := api.NewRouter(handler, api.RouterOptions{CORSOrigins: cfg.CORSOrigins, Logger: logger})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithFields(log.Fields{"port": cfg.Port, "db": cfg.DBPath}).Info("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
