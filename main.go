package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/pyama86/ticketbot/handler"
)

func init() {
	// .env が無くても環境変数だけで動く
	_ = godotenv.Load()

	if os.Getenv("LOG_FORMAT") == "json" {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))
	}

	requiredEnv := []string{
		"DISCORD_TOKEN",
	}
	for _, env := range requiredEnv {
		if os.Getenv(env) == "" {
			slog.Error("required environment variable not set", slog.String("env", env))
			os.Exit(1)
		}
	}
}

func main() {
	h, err := handler.NewHandler()
	if err != nil {
		slog.Error("NewHandler failed", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 設定の再読み込み
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	go func() {
		for {
			select {
			case <-hup:
				if err := h.Reload(); err != nil {
					slog.Error("Reload failed", slog.Any("err", err))
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	slog.Info("ticket bot starting")
	if err := h.Handle(ctx); err != nil {
		slog.Error("Handle failed", slog.Any("err", err))
		os.Exit(1)
	}
}
