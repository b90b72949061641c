package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"activation-backend/internal/config"
	"activation-backend/internal/db"
)

func main() {
	fmt.Println("========================================")
	fmt.Println("   Reset Import Data for Testing")
	fmt.Println("========================================")
	fmt.Println()
	fmt.Println("WARNING: This will DELETE ALL IMPORT DATA!")
	fmt.Println()
	fmt.Println("This will:")
	fmt.Println("  - Delete all import runs and staged rows")
	fmt.Println("  - Delete all promoted assignments")
	fmt.Println("  - Delete the admin action log")
	fmt.Println("  - Keep users and reference data")
	fmt.Println()
	fmt.Print("Type 'yes' to confirm: ")

	var confirm string
	fmt.Scanln(&confirm)

	if confirm != "yes" {
		fmt.Println("Reset cancelled.")
		return
	}

	path := "configs/config.yaml"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		log.Fatalf("Unable to load config: %v\n", err)
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v\n", err)
	}
	defer pool.Close()

	fmt.Println()
	fmt.Println("Resetting database...")

	tx, err := pool.Begin(ctx)
	if err != nil {
		log.Fatalf("Failed to begin transaction: %v\n", err)
	}
	defer tx.Rollback(ctx)

	// children first; RESTART IDENTITY resets the serial columns
	tables := []string{
		"staging_rows",
		"assignments",
		"import_runs",
		"admin_action_logs",
	}
	for _, table := range tables {
		if _, err := tx.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", table)); err != nil {
			log.Fatalf("Failed to truncate %s: %v\n", table, err)
		}
		fmt.Printf("  - Cleared %s\n", table)
	}

	if err := tx.Commit(ctx); err != nil {
		log.Fatalf("Failed to commit transaction: %v\n", err)
	}

	fmt.Println()
	fmt.Printf("Database %s reset. Users and reference data were kept.\n", cfg.Database.Name)
}
