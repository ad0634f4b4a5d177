// Command migrate applies the embedded goose migrations.
//
//	migrate [up|down|status|version|redo|reset]
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/BradenHooton/keypass/internal/config"
	"github.com/BradenHooton/keypass/internal/database"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	command := "up"
	var args []string
	if len(os.Args) > 1 {
		command = os.Args[1]
		args = os.Args[2:]
	}

	switch command {
	case "up", "down", "status", "version", "redo", "reset", "up-to", "down-to":
	default:
		logger.Error("unknown migrate command", slog.String("command", command))
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := database.Migrate(ctx, cfg.Database.URL(), command, args...); err != nil {
		logger.Error("migration failed", slog.String("command", command), slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("migration complete", slog.String("command", command))
}
