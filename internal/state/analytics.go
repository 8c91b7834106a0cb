package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// ActivitySummary aggregates the journal and the snapshot history of one vault.
type ActivitySummary struct {
	TotalTransactions int            `json:"total_transactions"`
	ByStatus          map[string]int `json:"by_status"`
	ByAction          map[string]int `json:"by_action"`

	LatestNav   decimal.Decimal `json:"latest_nav"`
	NavChange   decimal.Decimal `json:"nav_change"` // latest minus oldest in the window
	WindowStart *time.Time      `json:"window_start,omitempty"`
	LastUpdated *time.Time      `json:"last_updated,omitempty"`
}

// GetActivitySummary summarises transactions since since and the NAV move over the same window.
func (s *Store) GetActivitySummary(ctx context.Context, vault common.Address, since time.Time) (*ActivitySummary, error) {
	if s == nil || s.db == nil {
		return nil, ErrNotInitialized
	}

	summary := &ActivitySummary{ByStatus: map[string]int{}, ByAction: map[string]int{}}

	rows, err := s.db.QueryContext(ctx, `
		SELECT action, status, COUNT(*)
		FROM fund_transactions
		WHERE submitted_at >= $1
		GROUP BY action, status
	`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate transactions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var action, status string
		var count int
		if err := rows.Scan(&action, &status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan aggregate row: %w", err)
		}
		summary.TotalTransactions += count
		summary.ByStatus[status] += count
		summary.ByAction[action] += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	var (
		oldestNav, latestNav decimal.NullDecimal
		oldestAt, latestAt   sql.NullTime
	)
	err = s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT nav_per_share FROM vault_snapshots WHERE vault_address = $1 AND as_of >= $2 ORDER BY as_of ASC LIMIT 1),
			(SELECT as_of FROM vault_snapshots WHERE vault_address = $1 AND as_of >= $2 ORDER BY as_of ASC LIMIT 1),
			(SELECT nav_per_share FROM vault_snapshots WHERE vault_address = $1 ORDER BY as_of DESC LIMIT 1),
			(SELECT as_of FROM vault_snapshots WHERE vault_address = $1 ORDER BY as_of DESC LIMIT 1)
	`, vault.Hex(), since).Scan(&oldestNav, &oldestAt, &latestNav, &latestAt)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to read NAV window: %w", err)
	}

	if latestNav.Valid {
		summary.LatestNav = latestNav.Decimal
		t := latestAt.Time
		summary.LastUpdated = &t
	}
	if oldestNav.Valid && latestNav.Valid {
		summary.NavChange = latestNav.Decimal.Sub(oldestNav.Decimal)
		t := oldestAt.Time
		summary.WindowStart = &t
	}
	return summary, nil
}
