// Package main applies database migrations.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/parcelgrid/parcelgrid/internal/migrations"
)

func main() {
	path := flag.String("path", "migrations", "directory containing migration files")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	if err := migrations.Run(databaseURL, *path); err != nil {
		logger.Error("migration failed", "error", err)
		os.Exit(1)
	}

	fmt.Println("migrations applied")
}
