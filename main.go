package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"spoons-server/api"
	"spoons-server/config"
	"spoons-server/loghandler"
	"spoons-server/registry"
	"spoons-server/storage"
	"spoons-server/ws"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Print("No .env file found; using environment variables.")
	}

	cfg := config.Load()
	slog.SetDefault(slog.New(loghandler.NewCompactHandler(os.Stdout, slog.LevelInfo)))

	log.Printf("Configuration: MinPlayers=%d, CardsPerPlayer=%d, TotalMatches=%d, ReconnectWindowSec=%d, WSPort=%d",
		cfg.MinPlayers, cfg.CardsPerPlayer, cfg.TotalMatches, cfg.ReconnectWindowSec, cfg.WSPort)

	secret := []byte(cfg.ReconnectTokenSecret)
	if len(secret) == 0 {
		// Tokens minted with an ephemeral secret die with the process,
		// which is acceptable since rooms do too.
		secret = []byte(uuid.NewString())
		log.Print("RECONNECT_TOKEN_SECRET is not set; using an ephemeral secret.")
	}

	ctx := context.Background()
	store, err := storage.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Printf("History store disabled: %v", err)
	}

	reg := registry.New(cfg)
	hub := ws.NewHub(cfg, reg, secret)
	if store != nil {
		hub.Recorder = store
		defer store.Close()
	}

	// Periodic sweep of empty and stale rooms.
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			reg.Cleanup()
		}
	}()

	var recorder storage.GameRecorder
	if store != nil {
		recorder = store
	}
	handler := api.NewHandler(cfg, recorder)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.ServeWS)
	mux.HandleFunc("/health", handler.Health)
	mux.HandleFunc("/games/recent", handler.RecentGames)

	addr := fmt.Sprintf(":%d", cfg.WSPort)
	log.Printf("Spoons server listening on %s", addr)
	log.Fatal(http.ListenAndServe(addr, mux))
}
