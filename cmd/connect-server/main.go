package main

import (
	"context"
	"flag"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/connect-button/connect/internal/config"
	"github.com/connect-button/connect/internal/server"
)

const (
	authExpireEvery = time.Minute
	authTTL         = 10 * time.Minute
)

func main() {
	configPath := flag.String("config", "connect.yaml", "Path to config file (defaults apply when missing)")
	port := flag.Int("port", 0, "Override server port")
	token := flag.String("token", "", "Override the API token")
	verbose := flag.Bool("v", false, "Debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		log.Error("load config", "error", err)
		os.Exit(1)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}
	if *token != "" {
		cfg.Server.Token = *token
	}

	store := server.NewStore(cfg.Connections)
	broadcaster := server.NewBroadcaster(log)
	defer broadcaster.Close()
	srv := server.NewServer(store, broadcaster, cfg.Server.Token, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go srv.ExpireLoop(ctx, authExpireEvery, authTTL)

	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	log.Info("serving connections", "count", len(cfg.Connections))
	if err := server.ListenAndServe(ctx, addr, srv.Handler(), log); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	log.Info("shut down")
}
