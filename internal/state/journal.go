package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/onchainfund/fundops/internal/logger"
	"github.com/onchainfund/fundops/internal/types"
)

// StatusPending marks a journaled broadcast without a known outcome.
const StatusPending = "PENDING"

// TransactionRecord is one journaled broadcast with its outcome, if known.
type TransactionRecord struct {
	types.Broadcast
	Status      string     `json:"status"`
	BlockNumber uint64     `json:"block_number,omitempty"`
	GasUsed     uint64     `json:"gas_used,omitempty"`
	Message     string     `json:"message,omitempty"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
}

const maxPageSize = 100

const selectTransactions = `
	SELECT tx_id, action, tx_hash, from_address, to_address, amount, explorer_url, submitted_at,
		status, block_number, gas_used, message, resolved_at
	FROM fund_transactions`

// RecordSubmission journals a broadcast as pending.
func (s *Store) RecordSubmission(ctx context.Context, b types.Broadcast) error {
	if s == nil || s.db == nil {
		return ErrNotInitialized
	}
	query := `
		INSERT INTO fund_transactions (tx_id, action, tx_hash, from_address, to_address, amount, explorer_url, submitted_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (tx_id) DO NOTHING;
	`
	_, err := s.db.ExecContext(ctx, query,
		b.ID, string(b.Action), b.Hash.Hex(), b.From.Hex(), b.To.Hex(), b.Amount, b.ExplorerURL, b.SubmittedAt, StatusPending)
	if err != nil {
		return fmt.Errorf("failed to record submission %s: %w", b.Hash.Hex(), err)
	}

	stateLog := logger.GetForComponent("state")
	stateLog.Debug().Str("id", b.ID).Str("txHash", b.Hash.Hex()).Msg("Submission journaled")
	return nil
}

// RecordOutcome stores the final status of a journaled broadcast.
func (s *Store) RecordOutcome(ctx context.Context, id string, o types.Outcome) error {
	if s == nil || s.db == nil {
		return ErrNotInitialized
	}
	query := `
		UPDATE fund_transactions
		SET status = $2, block_number = $3, gas_used = $4, message = $5, resolved_at = $6
		WHERE tx_id = $1;
	`
	res, err := s.db.ExecContext(ctx, query,
		id, string(o.Status), nullUint(o.BlockNumber), nullUint(o.GasUsed), o.Message, o.ResolvedAt)
	if err != nil {
		return fmt.Errorf("failed to record outcome for %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: transaction %s", ErrNotFound, id)
	}
	return nil
}

// GetRecentTransactions returns the newest journal entries first.
func (s *Store) GetRecentTransactions(ctx context.Context, limit int) ([]TransactionRecord, error) {
	if s == nil || s.db == nil {
		return nil, ErrNotInitialized
	}
	if limit <= 0 || limit > maxPageSize {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, selectTransactions+` ORDER BY submitted_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent transactions: %w", err)
	}
	defer rows.Close()

	var records []TransactionRecord
	for rows.Next() {
		record, err := scanTransaction(rows)
		if err != nil {
			stateLog := logger.GetForComponent("state")
			stateLog.Error().Err(err).Msg("Failed to scan transaction row")
			continue
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return records, nil
}

// GetTransaction returns one journal entry by its ID.
func (s *Store) GetTransaction(ctx context.Context, id string) (TransactionRecord, error) {
	if s == nil || s.db == nil {
		return TransactionRecord{}, ErrNotInitialized
	}
	record, err := scanTransaction(s.db.QueryRowContext(ctx, selectTransactions+` WHERE tx_id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return TransactionRecord{}, fmt.Errorf("%w: transaction %s", ErrNotFound, id)
	}
	if err != nil {
		return TransactionRecord{}, fmt.Errorf("failed to query transaction %s: %w", id, err)
	}
	return record, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row scanner) (TransactionRecord, error) {
	var (
		r                TransactionRecord
		action, hash     string
		from, to         string
		blockNumber, gas sql.NullInt64
		resolvedAt       sql.NullTime
	)
	err := row.Scan(&r.ID, &action, &hash, &from, &to, &r.Amount, &r.ExplorerURL, &r.SubmittedAt,
		&r.Status, &blockNumber, &gas, &r.Message, &resolvedAt)
	if err != nil {
		return TransactionRecord{}, err
	}
	r.Action = types.Action(action)
	r.Hash = common.HexToHash(hash)
	r.From = common.HexToAddress(from)
	r.To = common.HexToAddress(to)
	if blockNumber.Valid {
		r.BlockNumber = uint64(blockNumber.Int64)
	}
	if gas.Valid {
		r.GasUsed = uint64(gas.Int64)
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time
		r.ResolvedAt = &t
	}
	return r, nil
}

func nullUint(v uint64) sql.NullInt64 {
	if v == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(v), Valid: true}
}
