package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"event-planner-core/config"
	"event-planner-core/pkg/database"
)

const usage = `
Event Planner Core - Database CLI Tool

Usage:
  migrate [command] [flags]

Commands:
  up          Run all SQL migrations
  status      Show database connection status and table counts

Flags:
  -migrations string   Path to migrations directory (default "migrations")

Examples:
  go run cmd/migrate/main.go up
  go run cmd/migrate/main.go status
`

var coreTables = []string{
	"events",
	"guests",
	"event_guests",
	"ticket_types",
	"tickets",
	"ticket_generation_jobs",
	"webhook_deliveries",
	"payments",
	"system_logs",
}

func main() {
	migrationsDir := flag.String("migrations", "migrations", "Path to migrations directory")

	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}
	command := flag.Arg(0)

	cfg := config.LoadConfig()
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()

	switch command {
	case "up":
		if err := database.ApplyMigrations(ctx, db, *migrationsDir); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		fmt.Println("Migrations applied successfully")

	case "status":
		if err := database.HealthCheck(ctx, db); err != nil {
			log.Fatalf("Database unreachable: %v", err)
		}
		fmt.Println("Database connection: OK")
		for _, table := range coreTables {
			exists, err := database.TableExists(ctx, db, table)
			if err != nil {
				log.Fatalf("Failed to inspect table %s: %v", table, err)
			}
			if !exists {
				fmt.Printf("  %-24s missing\n", table)
				continue
			}
			count, err := database.TableCount(ctx, db, table)
			if err != nil {
				log.Fatalf("Failed to count table %s: %v", table, err)
			}
			fmt.Printf("  %-24s %d rows\n", table, count)
		}

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
}
