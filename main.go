package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"hectar-intel/internal/api"
	"hectar-intel/internal/budget"
	"hectar-intel/internal/config"
	"hectar-intel/internal/eximpedia"
	"hectar-intel/internal/harvest"
	"hectar-intel/internal/logger"
	"hectar-intel/internal/store"
)

var version = "dev"

func main() {
	// Load .env for local runs. A missing file is fine, and OS env vars are
	// never overridden.
	godotenv.Load()

	port := flag.Int("port", 8700, "HTTP server port")
	host := flag.String("host", "127.0.0.1", "Host to bind to (use 0.0.0.0 to allow LAN/remote access)")
	dbPath := flag.String("db", "", "SQLite path for durable record storage (empty = in-memory)")
	noHarvest := flag.Bool("no-harvest", false, "Skip the bootstrap harvest")
	flag.Parse()

	logger.Banner(version)

	cfg := config.FromEnv()

	// Record store: in-memory by default, SQLite adapter behind -db.
	var records store.RecordStore
	var sqliteStore *store.SQLiteStore
	if *dbPath != "" {
		var err error
		sqliteStore, err = store.OpenSQLite(*dbPath)
		if err != nil {
			logger.Error("DB", fmt.Sprintf("Failed to open database: %v", err))
			os.Exit(1)
		}
		defer sqliteStore.Close()
		records = sqliteStore
	} else {
		records = store.NewMemoryStore()
	}

	tracker := budget.NewTracker()
	ground := store.NewGroundPriceStore()

	// The upstream client only exists with credentials; the analytics
	// surface still serves whatever is already in the store without them.
	var upstream api.Upstream
	var client *eximpedia.Client
	if err := cfg.Validate(); err != nil {
		logger.Warn("Config", err.Error())
	} else {
		tokens := eximpedia.NewTokenManager(cfg.BaseURL, cfg.ClientID, cfg.ClientSecret, cfg.TokenRefreshBuffer, tracker)
		client = eximpedia.NewClient(cfg.BaseURL, tokens, cfg.MaxConcurrentRequests, cfg.MinRequestInterval, cfg.PageSize, tracker)
		upstream = client
	}

	var fetcher harvest.Fetcher
	if client != nil {
		fetcher = client
	}
	harvester := harvest.NewEngine(fetcher, records, tracker)
	srv := api.NewServer(cfg, upstream, tracker, records, ground, harvester)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Bootstrap harvest in the background so the API is up immediately.
	if client != nil && !*noHarvest {
		go func() {
			results := harvester.Bootstrap(ctx)
			failed := 0
			for _, r := range results {
				if r.Status == harvest.StatusFailed {
					failed++
				}
			}
			if failed > 0 {
				logger.Warn("Harvest", fmt.Sprintf("Bootstrap finished with %d failed job(s)", failed))
			} else {
				logger.Success("Harvest", "Bootstrap complete")
			}
		}()
	}

	addr := fmt.Sprintf("%s:%d", *host, *port)
	logger.Server(addr)

	httpServer := &http.Server{Addr: addr, Handler: srv.Handler()}

	go func() {
		<-ctx.Done()
		logger.Info("Server", "Shutting down gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server", fmt.Sprintf("Shutdown error: %v", err))
		}
	}()

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server", fmt.Sprintf("Failed: %v", err))
		os.Exit(1)
	}
	logger.Info("Server", "Stopped")
}
