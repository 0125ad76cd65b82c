package main

import (
	"fmt"
	"os"

	"github.com/vibehealth/healthsync/internal/config"
	"github.com/vibehealth/healthsync/internal/repository/postgres"
	"github.com/vibehealth/healthsync/migrations"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	db, err := postgres.New(cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	fmt.Println("Connected to database successfully")

	if err := postgres.RunMigrations(db, migrations.FS); err != nil {
		fmt.Fprintf(os.Stderr, "Migration failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Migrations applied successfully")
}
