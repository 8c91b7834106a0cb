package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/onchainfund/fundops/internal/logger"
	"github.com/shopspring/decimal"
)

// FlowParameters are the investor-flow rates an operator can change without a restart.
type FlowParameters struct {
	ID                 int64           `json:"id"`
	ConfigName         string          `json:"config_name"`
	Version            int             `json:"version"`
	EntranceFeePercent decimal.Decimal `json:"entrance_fee_percent"`
	ExitFeePercent     decimal.Decimal `json:"exit_fee_percent"`
	SlippagePercent    decimal.Decimal `json:"slippage_percent"`
}

// SaveFlowParameters stores params as the next version of configName, optionally making it the
// only active version.
func (s *Store) SaveFlowParameters(ctx context.Context, params FlowParameters, makeActive bool) (saved FlowParameters, err error) {
	if s == nil || s.db == nil {
		return FlowParameters{}, ErrNotInitialized
	}
	if params.ConfigName == "" {
		params.ConfigName = "default"
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return FlowParameters{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var version int
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) + 1 FROM flow_parameters WHERE config_name = $1`,
		params.ConfigName).Scan(&version)
	if err != nil {
		return FlowParameters{}, fmt.Errorf("failed to read next version of %s: %w", params.ConfigName, err)
	}

	if makeActive {
		_, err = tx.ExecContext(ctx,
			`UPDATE flow_parameters SET is_active = FALSE WHERE config_name = $1 AND is_active = TRUE`,
			params.ConfigName)
		if err != nil {
			return FlowParameters{}, fmt.Errorf("failed to deactivate parameters of %s: %w", params.ConfigName, err)
		}
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO flow_parameters (config_name, version, is_active, entrance_fee_percent, exit_fee_percent, slippage_percent)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING params_id;
	`, params.ConfigName, version, makeActive, params.EntranceFeePercent, params.ExitFeePercent, params.SlippagePercent,
	).Scan(&params.ID)
	if err != nil {
		return FlowParameters{}, fmt.Errorf("failed to insert parameters: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return FlowParameters{}, fmt.Errorf("failed to commit parameters: %w", err)
	}
	params.Version = version

	stateLog := logger.GetForComponent("state")
	stateLog.Info().
		Str("config", params.ConfigName).
		Int("version", version).
		Bool("active", makeActive).
		Msg("Flow parameters saved")
	return params, nil
}

// GetActiveFlowParameters returns the active version of configName, or ErrNotFound.
func (s *Store) GetActiveFlowParameters(ctx context.Context, configName string) (FlowParameters, error) {
	if s == nil || s.db == nil {
		return FlowParameters{}, ErrNotInitialized
	}
	if configName == "" {
		configName = "default"
	}

	p := FlowParameters{ConfigName: configName}
	err := s.db.QueryRowContext(ctx, `
		SELECT params_id, version, entrance_fee_percent, exit_fee_percent, slippage_percent
		FROM flow_parameters
		WHERE config_name = $1 AND is_active = TRUE
		ORDER BY version DESC
		LIMIT 1
	`, configName).Scan(&p.ID, &p.Version, &p.EntranceFeePercent, &p.ExitFeePercent, &p.SlippagePercent)
	if errors.Is(err, sql.ErrNoRows) {
		return FlowParameters{}, fmt.Errorf("%w: active parameters of %s", ErrNotFound, configName)
	}
	if err != nil {
		return FlowParameters{}, fmt.Errorf("failed to query active parameters of %s: %w", configName, err)
	}
	return p, nil
}
