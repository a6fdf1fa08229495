package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/odyssey-erp/odyssey-commerce/internal/app"
	"github.com/odyssey-erp/odyssey-commerce/internal/platform/db"
)

func main() {
	_ = godotenv.Load()

	down := flag.Int("down", 0, "roll back this many migrations instead of migrating up")
	flag.Parse()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)
	if cfg.StoreDriver != app.DriverPostgres {
		logger.Info("nothing to migrate", slog.String("driver", cfg.StoreDriver))
		return
	}

	if *down > 0 {
		if err := db.Rollback(cfg.PGDSN, *down); err != nil {
			logger.Error("rollback", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("rolled back", slog.Int("steps", *down))
		return
	}

	version, err := db.Migrate(cfg.PGDSN)
	if err != nil {
		logger.Error("migrate", slog.Any("error", err))
		os.Exit(1)
	}
	fmt.Printf("database at version %d\n", version)
}
