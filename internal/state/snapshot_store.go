package state

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/onchainfund/fundops/internal/logger"
	"github.com/onchainfund/fundops/internal/types"
)

// SnapshotRecord is one persisted vault snapshot.
type SnapshotRecord struct {
	ID    int64          `json:"id"`
	Vault common.Address `json:"vault"`
	types.VaultSnapshot
}

// SaveSnapshot appends a published snapshot to the history.
func (s *Store) SaveSnapshot(ctx context.Context, vault common.Address, snapshot types.VaultSnapshot) (int64, error) {
	if s == nil || s.db == nil {
		return 0, ErrNotInitialized
	}
	query := `
		INSERT INTO vault_snapshots (vault_address, nav_per_share, gross_asset_value, as_of)
		VALUES ($1, $2, $3, $4)
		RETURNING snapshot_id;
	`

	var id int64
	err := s.db.QueryRowContext(ctx, query,
		vault.Hex(), snapshot.NavPerShare, snapshot.GrossAssetValue, snapshot.AsOf,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to save vault snapshot: %w", err)
	}

	stateLog := logger.GetForComponent("state")
	stateLog.Debug().
		Int64("snapshot_id", id).
		Str("nav", snapshot.NavPerShare.String()).
		Msg("Vault snapshot saved")
	return id, nil
}

// GetRecentSnapshots returns the newest snapshots of vault first.
func (s *Store) GetRecentSnapshots(ctx context.Context, vault common.Address, limit int) ([]SnapshotRecord, error) {
	if s == nil || s.db == nil {
		return nil, ErrNotInitialized
	}
	if limit <= 0 || limit > maxPageSize {
		limit = 20
	}

	query := `
		SELECT snapshot_id, vault_address, nav_per_share, gross_asset_value, as_of
		FROM vault_snapshots
		WHERE vault_address = $1
		ORDER BY as_of DESC
		LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, query, vault.Hex(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query vault snapshots: %w", err)
	}
	defer rows.Close()

	var records []SnapshotRecord
	for rows.Next() {
		var (
			r    SnapshotRecord
			addr string
		)
		if err := rows.Scan(&r.ID, &addr, &r.NavPerShare, &r.GrossAssetValue, &r.AsOf); err != nil {
			stateLog := logger.GetForComponent("state")
			stateLog.Error().Err(err).Msg("Failed to scan snapshot row")
			continue
		}
		r.Vault = common.HexToAddress(addr)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return records, nil
}
