package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/onchainfund/fundops/internal/config"
	"github.com/onchainfund/fundops/internal/logger"
)

var (
	ErrNotInitialized = errors.New("database not initialized")
	ErrNotFound       = errors.New("record not found")
)

// Store is the Postgres-backed journal of broadcasts, outcomes and vault snapshots.
type Store struct {
	db *sql.DB
}

// NewStore wraps an open connection pool.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// InitDB opens and pings the connection pool.
func InitDB(cfg config.Database) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	stateLog := logger.GetForComponent("state")
	stateLog.Info().Str("host", cfg.Host).Str("db", cfg.Name).Msg("Connected to PostgreSQL")
	return db, nil
}

// Close closes the connection pool.
func (s *Store) Close() {
	if s == nil || s.db == nil {
		return
	}
	log := logger.GetForComponent("state")
	log.Info().Msg("Closing database connection...")
	if err := s.db.Close(); err != nil {
		log.Error().Err(err).Msg("Error closing database connection")
	}
}

const schemaSQL = `
	CREATE TABLE IF NOT EXISTS fund_transactions (
		tx_id UUID PRIMARY KEY,
		action VARCHAR(32) NOT NULL,
		tx_hash CHAR(66) NOT NULL,
		from_address CHAR(42) NOT NULL,
		to_address CHAR(42) NOT NULL,
		amount TEXT NOT NULL DEFAULT '',
		explorer_url TEXT NOT NULL DEFAULT '',
		submitted_at TIMESTAMPTZ NOT NULL,
		status VARCHAR(16) NOT NULL DEFAULT 'PENDING',
		block_number BIGINT,
		gas_used BIGINT,
		message TEXT NOT NULL DEFAULT '',
		resolved_at TIMESTAMPTZ
	);
	CREATE INDEX IF NOT EXISTS idx_fund_transactions_submitted ON fund_transactions(submitted_at DESC);
	CREATE INDEX IF NOT EXISTS idx_fund_transactions_hash ON fund_transactions(tx_hash);

	CREATE TABLE IF NOT EXISTS vault_snapshots (
		snapshot_id SERIAL PRIMARY KEY,
		vault_address CHAR(42) NOT NULL,
		nav_per_share NUMERIC(78, 36) NOT NULL,
		gross_asset_value NUMERIC(78, 36) NOT NULL,
		as_of TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_vault_snapshots_as_of ON vault_snapshots(vault_address, as_of DESC);

	CREATE TABLE IF NOT EXISTS flow_parameters (
		params_id SERIAL PRIMARY KEY,
		config_name VARCHAR(255) NOT NULL DEFAULT 'default',
		version INTEGER NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT FALSE,
		entrance_fee_percent NUMERIC(10, 6) NOT NULL,
		exit_fee_percent NUMERIC(10, 6) NOT NULL,
		slippage_percent NUMERIC(10, 6) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		CONSTRAINT uq_flow_parameters_config_version UNIQUE (config_name, version)
	);
	CREATE INDEX IF NOT EXISTS idx_flow_parameters_active ON flow_parameters(config_name, is_active);
`

// Tables lists every table EnsureSchema creates, in drop order.
var Tables = []string{"flow_parameters", "vault_snapshots", "fund_transactions"}

// EnsureSchema creates the tables if they don't exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if s == nil || s.db == nil {
		return ErrNotInitialized
	}
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema DDL: %w", err)
	}
	stateLog := logger.GetForComponent("state")
	stateLog.Info().Msg("Database schema ensured")
	return nil
}

// DropAll drops every table EnsureSchema creates.
func (s *Store) DropAll(ctx context.Context) error {
	if s == nil || s.db == nil {
		return ErrNotInitialized
	}
	for _, table := range Tables {
		if _, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE"); err != nil {
			return fmt.Errorf("failed to drop %s: %w", table, err)
		}
	}
	return nil
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return ErrNotInitialized
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}
