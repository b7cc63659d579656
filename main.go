package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"chatrelaygo/internal/chat"
	"chatrelaygo/internal/config"
	"chatrelaygo/internal/database/db_client"
	"chatrelaygo/internal/http/http_server"
	"chatrelaygo/internal/store"
	"chatrelaygo/internal/ws"
)

var (
	Log, _ = zap.NewDevelopment()
)

func main() {
	defer Log.Sync()
	zap.ReplaceGlobals(Log)

	// 1. Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		Log.Fatal("Failed to load configuration", zap.Error(err))
	}
	Log.Debug("Configuration loaded successfully", zap.Any("config", cfg))

	// 2. Context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGINT, syscall.SIGTERM,
	)
	defer stop()

	// 3. Message store: Postgres when configured, otherwise memory-only
	// mode. A failed database init degrades to memory-only instead of
	// aborting startup.
	st := store.NewDisabled()
	if cfg.DatabaseURL == "" {
		Log.Info("message store not configured - running in memory-only mode")
	} else {
		pgDb, err := db_client.Open(cfg.DatabaseURL)
		if err != nil {
			Log.Warn("message store init failed - running in memory-only mode", zap.Error(err))
		} else {
			defer pgDb.Close()
			st = store.NewPostgresStore(pgDb, cfg.StoreTimeout)
			Log.Info("message store initialized")
		}
	}

	// 4. Background: retention sweep (dry run)
	store.RunRetention(ctx, st, cfg.RetentionDays)

	// 5. Room registry + session manager
	hub := ws.NewHub()
	sessions := chat.NewSessionManager()

	// 6. WS gateway
	wsSrv := ws.NewWsServer(hub, sessions, st, cfg.HistoryLimit, cfg.StoreTimeout)

	// 7. HTTP + WS server
	httpServer := http_server.NewHttpServer(ctx, cfg.HttpServerPort, wsSrv, st)
	go func() {
		<-ctx.Done()
		_ = httpServer.Dispose()
	}()
	if err := httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		Log.Fatal("Failed to start HTTP server", zap.Error(err))
	}
}
