package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"tradepost/internal/config"
	"tradepost/internal/database"
	"tradepost/internal/middleware"
	"tradepost/simulator"

	"github.com/lmittmann/tint"
)

func main() {
	serverURL := flag.String("server", "ws://localhost:8080/ws", "websocket endpoint of a running engine")
	pairs := flag.Int("pairs", 4, "concurrent conversation pairs")
	messages := flag.Int("messages", 10, "messages exchanged per pair")
	interval := flag.Duration("interval", 200*time.Millisecond, "pause between messages")
	flag.Parse()

	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      slog.LevelInfo,
		TimeFormat: time.Kitchen,
	})))

	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	middleware.Configure(cfg.Auth.JWTSecret)

	store, err := database.NewMongoDB(cfg.Database.URI, cfg.Database.Name)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer store.Close(context.Background())

	sim := simulator.New(simulator.Config{
		ServerURL:       *serverURL,
		Pairs:           *pairs,
		MessagesPerPair: *messages,
		Interval:        *interval,
	}, store)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := sim.Run(ctx); err != nil {
		slog.Error("simulation failed", "error", err)
		os.Exit(1)
	}
}
