package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// Database holds the database connection pool and provides access to repositories
type Database struct {
	Pool *pgxpool.Pool

	// Repositories
	PlayerGames *PlayerGameRepository
	Schedule    *ScheduleRepository
	Events      *EventRepository
	Lines       *LineOfferRepository
}

// Config holds database configuration
type Config struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
}

// DSN builds the connection string
func (c Config) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
		c.SSLMode,
	)
}

// NewDatabase creates a new database connection pool and initializes repositories
func NewDatabase(ctx context.Context, cfg Config) (*Database, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	// Batch reads only; a small pool is enough
	poolConfig.MaxConns = 8
	poolConfig.MinConns = 1
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().
		Str("host", cfg.Host).
		Str("port", cfg.Port).
		Str("database", cfg.Database).
		Msg("Successfully connected to database")

	db := &Database{
		Pool: pool,
	}

	db.PlayerGames = &PlayerGameRepository{db: db}
	db.Schedule = &ScheduleRepository{db: db}
	db.Events = &EventRepository{db: db}
	db.Lines = &LineOfferRepository{db: db}

	return db, nil
}

// Close closes the database connection pool
func (db *Database) Close() {
	if db.Pool != nil {
		log.Debug().Fields(db.PoolStats()).Msg("Database pool stats at close")
		db.Pool.Close()
		log.Info().Msg("Database connection pool closed")
	}
}

// Health checks if the database is healthy
func (db *Database) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.Pool.Ping(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	return nil
}

// PoolStats returns database pool statistics
func (db *Database) PoolStats() map[string]interface{} {
	stat := db.Pool.Stat()
	return map[string]interface{}{
		"total_conns":    stat.TotalConns(),
		"acquired_conns": stat.AcquiredConns(),
		"idle_conns":     stat.IdleConns(),
		"max_conns":      stat.MaxConns(),
	}
}

const schema = `
CREATE TABLE IF NOT EXISTS player_game_lines (
	sport       TEXT NOT NULL,
	player_id   TEXT NOT NULL,
	player_name TEXT NOT NULL DEFAULT '',
	team        TEXT NOT NULL DEFAULT '',
	opponent    TEXT NOT NULL DEFAULT '',
	game_date   DATE NOT NULL,
	is_home     BOOLEAN NOT NULL DEFAULT FALSE,
	minutes     DOUBLE PRECISION NOT NULL DEFAULT 0,
	pitches     DOUBLE PRECISION NOT NULL DEFAULT 0,
	shots       INTEGER NOT NULL DEFAULT 0,
	goals       INTEGER NOT NULL DEFAULT 0,
	assists     INTEGER NOT NULL DEFAULT 0,
	strikeouts  INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (sport, player_id, game_date)
);

CREATE TABLE IF NOT EXISTS schedule (
	sport      TEXT NOT NULL,
	game_id    TEXT NOT NULL,
	team       TEXT NOT NULL,
	opponent   TEXT NOT NULL,
	game_date  DATE NOT NULL,
	is_home    BOOLEAN NOT NULL DEFAULT FALSE,
	start_time TIMESTAMPTZ,
	PRIMARY KEY (sport, game_id, team)
);

CREATE TABLE IF NOT EXISTS raw_events (
	event_id      TEXT PRIMARY KEY,
	sport         TEXT NOT NULL,
	subject_id    TEXT NOT NULL,
	subject_name  TEXT NOT NULL DEFAULT '',
	game_id       TEXT NOT NULL,
	team_id       TEXT NOT NULL DEFAULT '',
	opponent_id   TEXT NOT NULL DEFAULT '',
	event_ts      TIMESTAMPTZ NOT NULL,
	is_home       BOOLEAN NOT NULL DEFAULT FALSE,
	count_type    TEXT NOT NULL,
	outcome_flags TEXT[] NOT NULL DEFAULT '{}',
	value         DOUBLE PRECISION NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS line_offers (
	id            BIGSERIAL PRIMARY KEY,
	player_id     TEXT NOT NULL DEFAULT '',
	player_name   TEXT NOT NULL DEFAULT '',
	game_date     DATE NOT NULL,
	stat          TEXT NOT NULL,
	side          TEXT NOT NULL,
	line          DOUBLE PRECISION NOT NULL,
	decimal_price DOUBLE PRECISION NOT NULL,
	book          TEXT NOT NULL,
	fetched_at    TIMESTAMPTZ NOT NULL,
	game_start    TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_line_offers_date_stat ON line_offers (game_date, stat);
`

// Migrate creates the tables if they do not exist
func (db *Database) Migrate(ctx context.Context) error {
	if _, err := db.Pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}
