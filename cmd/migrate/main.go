// Command migrate runs the embedded goose migrations.
//
// Usage:
//
//	go run ./cmd/migrate up          # Apply all pending migrations
//	go run ./cmd/migrate down        # Roll back the last migration
//	go run ./cmd/migrate status      # Show migration status
//	go run ./cmd/migrate version     # Show current schema version
//	go run ./cmd/migrate redo        # Roll back and re-apply last migration
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/spf13/pflag"

	"github.com/BradenHooton/riskgate/migrations"
)

func main() {
	dbURL := pflag.StringP("database-url", "d", os.Getenv("DATABASE_URL"), "postgres connection URL")
	pflag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: migrate [--database-url URL] <command> [args]")
		fmt.Fprintln(os.Stderr, "Commands: up, down, status, version, redo, up-to <version>, down-to <version>")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if pflag.NArg() < 1 {
		pflag.Usage()
		os.Exit(1)
	}
	if *dbURL == "" {
		log.Fatal("--database-url or DATABASE_URL is required")
	}

	db, err := sql.Open("postgres", *dbURL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() { _ = db.Close() }()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		log.Fatalf("Failed to set dialect: %v", err)
	}

	command := pflag.Arg(0)
	if err := goose.RunContext(context.Background(), command, db, ".", pflag.Args()[1:]...); err != nil {
		log.Fatalf("Migration %s failed: %v", command, err)
	}
}
