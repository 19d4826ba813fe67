// Package database bootstraps the Postgres connection the round
// repository (internal/rounds) and migration CLI (cmd/migrate) share.
// Reconstructed to match the teacher's own database_test.go and
// cmd/migrate/main.go, which reference this package but ship with no
// database.go in the retrieved tree.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Service wraps the database/sql handle the way the teacher's
// internal/cache.Service wraps its Redis client.
type Service interface {
	DB() *sql.DB
	Health() map[string]string
	Close() error
}

type service struct {
	db *sql.DB
}

var (
	database = getEnv("BLUEPRINT_DB_DATABASE", "crashcore")
	password = getEnv("BLUEPRINT_DB_PASSWORD", "postgres")
	username = getEnv("BLUEPRINT_DB_USERNAME", "postgres")
	host     = getEnv("BLUEPRINT_DB_HOST", "localhost")
	port     = getEnv("BLUEPRINT_DB_PORT", "5432")
	schema   = getEnv("BLUEPRINT_DB_SCHEMA", "public")

	dbInstance *service
)

// New opens (or returns the existing singleton) Postgres connection
// pool, mirroring the teacher's internal/cache.New() singleton pattern.
func New() Service {
	if dbInstance != nil {
		return dbInstance
	}

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable&search_path=%s",
		username, password, host, port, database, schema)

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		log.Fatalf("[DATABASE] failed to open connection: %v", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	dbInstance = &service{db: db}
	return dbInstance
}

// DB exposes the underlying *sql.DB for the round repository.
func (s *service) DB() *sql.DB {
	return s.db
}

// Health pings the database and reports pool stats, matching the
// teacher's internal/cache.Service.Health() shape and the assertions
// in database_test.go.
func (s *service) Health() map[string]string {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	stats := make(map[string]string)

	if err := s.db.PingContext(ctx); err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db down: %v", err)
		return stats
	}

	stats["status"] = "up"
	stats["message"] = "It's healthy"

	dbStats := s.db.Stats()
	stats["open_connections"] = strconv.Itoa(dbStats.OpenConnections)
	stats["in_use"] = strconv.Itoa(dbStats.InUse)
	stats["idle"] = strconv.Itoa(dbStats.Idle)
	stats["wait_count"] = strconv.FormatInt(dbStats.WaitCount, 10)

	return stats
}

// Close closes the pool.
func (s *service) Close() error {
	log.Println("[DATABASE] Disconnecting from Postgres")
	return s.db.Close()
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
