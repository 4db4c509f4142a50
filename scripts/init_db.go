package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5"

	"rental-application-engine/internal/config"
)

func main() {
	fmt.Println("=== Database Initialization Script ===")
	fmt.Println()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("❌ Failed to load config: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	fmt.Println("📡 Connecting to database...")
	conn, err := pgx.Connect(ctx, cfg.DatabaseURL())
	if err != nil {
		fmt.Printf("❌ Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close(ctx)

	fmt.Println("✅ Connected to database successfully!")
	fmt.Println()

	fmt.Println("📖 Reading SQL schema file...")
	sqlBytes, err := os.ReadFile("scripts/init_database.sql")
	if err != nil {
		fmt.Printf("❌ Failed to read SQL file: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("🚀 Executing database schema...")
	if _, err := conn.Exec(ctx, string(sqlBytes)); err != nil {
		fmt.Printf("❌ Failed to execute SQL: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("✅ Database schema executed successfully!")
	fmt.Println()

	fmt.Println("🔍 Verifying database setup...")
	for _, table := range []string{"properties", "accounts", "applications"} {
		var count int
		if err := conn.QueryRow(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count); err != nil {
			fmt.Printf("⚠️  Warning: Could not count %s: %v\n", table, err)
			continue
		}
		fmt.Printf("   📦 %s: %d rows\n", table, count)
	}

	fmt.Println()
	fmt.Println("🎉 Database initialization completed successfully!")
}
