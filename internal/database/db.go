package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"diagramdb/internal/config"
)

func Connect(cfg config.Config) (*pgxpool.Pool, error) {
	if cfg.DBHost == "" {
		return nil, fmt.Errorf("DB_HOST environment variable is required")
	}
	if cfg.DBUsername == "" {
		return nil, fmt.Errorf("DB_USERNAME environment variable is required")
	}
	if cfg.DBDatabase == "" {
		return nil, fmt.Errorf("DB_DATABASE environment variable is required")
	}

	log.Printf("Connecting to database: postgres://%s:***@%s:%s/%s",
		cfg.DBUsername, cfg.DBHost, cfg.DBPort, cfg.DBDatabase)

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string (check your .env file): %w", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = 5 * time.Minute
	poolConfig.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("Database connection pool established successfully")
	return pool, nil
}
