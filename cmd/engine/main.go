package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"tradepost/internal/config"
	"tradepost/internal/database"
	"tradepost/internal/engine"
	"tradepost/internal/handlers"
	"tradepost/internal/middleware"
	"tradepost/internal/push"
	"tradepost/internal/utils"
	"tradepost/internal/websocket"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/lmittmann/tint"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: level})))

	middleware.Configure(cfg.Auth.JWTSecret)
	metrics := utils.NewMetricsCollector()

	store, err := database.NewMongoDB(cfg.Database.URI, cfg.Database.Name)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.Close(ctx); err != nil {
			slog.Warn("failed to close database", "error", err)
		}
	}()

	hub := websocket.NewHub()
	notifier := push.NewService(store, cfg.Push)

	system := actor.NewActorSystem()
	conversationEngine := engine.NewEngine(system, store, hub, notifier, metrics)

	server := handlers.NewServer(system, conversationEngine, hub, store, metrics, cfg)

	cors := middleware.CORSMiddleware(cfg.AllowedOrigins)
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", server.HandleWebSocket())
	mux.HandleFunc("/health", server.HandleHealth())
	mux.Handle("/conversations", middleware.AuthMiddleware(server.HandleConversations()))
	mux.Handle("/messages", middleware.AuthMiddleware(server.HandleMessages()))
	mux.Handle("/push/subscribe", middleware.AuthMiddleware(server.HandleSubscribePush()))

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	slog.Info("starting realtime engine", "addr", serverAddr)
	if err := http.ListenAndServe(serverAddr, cors(mux)); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
