package main

import (
	"context"
	"log/slog"
	"os"

	"wiki-comic-web/internal/server"

	"github.com/joho/godotenv"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	// ローカル実行時の .env 読み込みです。本番 (Cloud Run) では存在しません。
	if err := godotenv.Load(); err == nil {
		slog.Info("Loaded environment variables from .env")
	}

	if err := server.Run(context.Background()); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}
