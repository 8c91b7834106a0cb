package analyzer

import (
	"errors"
	"math"
	"sort"
	"time"

	"github.com/onchainfund/fundops/internal/types"
	"github.com/shopspring/decimal"
)

// ErrInsufficientData indicates that fewer than two usable snapshots were provided.
var ErrInsufficientData = errors.New("insufficient snapshots to measure performance")

const year = 365 * 24 * time.Hour

// NavPerformance summarizes how NAV per share moved over a window of snapshots.
type NavPerformance struct {
	Samples   int             `json:"samples"`
	From      time.Time       `json:"from"`
	To        time.Time       `json:"to"`
	StartNav  decimal.Decimal `json:"start_nav"`
	EndNav    decimal.Decimal `json:"end_nav"`
	ReturnPct decimal.Decimal `json:"return_percent"`
	// AnnualizedVolatility is the standard deviation of log returns scaled by the mean sampling
	// interval to one year.
	AnnualizedVolatility float64 `json:"annualized_volatility"`
	// MaxDrawdownPct is the largest peak-to-trough NAV decline, as a positive percentage.
	MaxDrawdownPct float64 `json:"max_drawdown_percent"`
}

// MeasureNav computes NavPerformance over snapshots. Snapshots are sorted by time first and
// those with a non-positive NAV are ignored.
func MeasureNav(snapshots []types.VaultSnapshot) (NavPerformance, error) {
	points := make([]types.VaultSnapshot, 0, len(snapshots))
	for _, s := range snapshots {
		if s.NavPerShare.IsPositive() {
			points = append(points, s)
		}
	}
	if len(points) < 2 {
		return NavPerformance{}, ErrInsufficientData
	}
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].AsOf.Before(points[j].AsOf)
	})

	first, last := points[0], points[len(points)-1]
	perf := NavPerformance{
		Samples:   len(points),
		From:      first.AsOf,
		To:        last.AsOf,
		StartNav:  first.NavPerShare,
		EndNav:    last.NavPerShare,
		ReturnPct: last.NavPerShare.Sub(first.NavPerShare).Div(first.NavPerShare).Mul(decimal.NewFromInt(100)),
	}

	logReturns := make([]float64, 0, len(points)-1)
	peak := first.NavPerShare.InexactFloat64()
	for i := 1; i < len(points); i++ {
		prev := points[i-1].NavPerShare.InexactFloat64()
		cur := points[i].NavPerShare.InexactFloat64()
		logReturns = append(logReturns, math.Log(cur/prev))

		if cur > peak {
			peak = cur
		}
		if dd := (peak - cur) / peak * 100; dd > perf.MaxDrawdownPct {
			perf.MaxDrawdownPct = dd
		}
	}

	// Population standard deviation of the log returns.
	var sum float64
	for _, r := range logReturns {
		sum += r
	}
	mean := sum / float64(len(logReturns))
	var sumSqDiff float64
	for _, r := range logReturns {
		sumSqDiff += (r - mean) * (r - mean)
	}
	stdDev := math.Sqrt(sumSqDiff / float64(len(logReturns)))

	span := last.AsOf.Sub(first.AsOf)
	if span > 0 {
		interval := span / time.Duration(len(logReturns))
		perf.AnnualizedVolatility = stdDev * math.Sqrt(float64(year)/float64(interval))
	}
	return perf, nil
}
