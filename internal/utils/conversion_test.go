package utils

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePositiveAmount(t *testing.T) {
	amount, err := ParsePositiveAmount(" 12.50 ")
	require.NoError(t, err)
	assert.Equal(t, "12.5", amount.String())

	_, err = ParsePositiveAmount("")
	assert.ErrorIs(t, err, ErrAmountEmpty)

	_, err = ParsePositiveAmount("abc")
	assert.ErrorIs(t, err, ErrAmountMalformed)

	_, err = ParsePositiveAmount("0")
	assert.ErrorIs(t, err, ErrAmountNotPositive)

	_, err = ParsePositiveAmount("-3")
	assert.ErrorIs(t, err, ErrAmountNotPositive)
}

func TestToBaseUnits(t *testing.T) {
	units, err := ToBaseUnits(decimal.RequireFromString("1000.5"), 6)
	require.NoError(t, err)
	assert.Equal(t, "1000500000", units.String())

	units, err = ToBaseUnits(decimal.RequireFromString("1"), 18)
	require.NoError(t, err)
	assert.Equal(t, "1000000000000000000", units.String())

	_, err = ToBaseUnits(decimal.RequireFromString("0.0000001"), 6)
	assert.ErrorIs(t, err, ErrExcessPrecision)

	_, err = ToBaseUnits(decimal.RequireFromString("-1"), 6)
	assert.ErrorIs(t, err, ErrAmountNegative)

	_, err = ToBaseUnits(decimal.RequireFromString("1"), 40)
	assert.ErrorIs(t, err, ErrInvalidPrecision)
}

func TestTruncateToBaseUnits(t *testing.T) {
	units, err := TruncateToBaseUnits(decimal.RequireFromString("1.2345679"), 6)
	require.NoError(t, err)
	assert.Equal(t, "1234567", units.String())
}

func TestFromBaseUnits(t *testing.T) {
	value := FromBaseUnits(big.NewInt(1_050_000), 6)
	assert.True(t, value.Equal(decimal.RequireFromString("1.05")))
	assert.True(t, FromBaseUnits(nil, 6).IsZero())
}

func TestPercentToFixedPoint(t *testing.T) {
	cases := map[string]string{
		"0":         "0",
		"0.5":       "5000000000000000",
		"1":         "10000000000000000",
		"2":         "20000000000000000",
		"20":        "200000000000000000",
		"33.333333": "333333330000000000",
		"100":       "1000000000000000000",
	}
	for rate, want := range cases {
		got, err := PercentToFixedPoint(decimal.RequireFromString(rate))
		require.NoError(t, err, rate)
		assert.Equal(t, want, got.String(), rate)
	}

	_, err := PercentToFixedPoint(decimal.RequireFromString("100.01"))
	assert.ErrorIs(t, err, ErrRateOutOfRange)
	_, err = PercentToFixedPoint(decimal.RequireFromString("-1"))
	assert.ErrorIs(t, err, ErrRateOutOfRange)
}

func TestFixedPointToDec(t *testing.T) {
	fixed, err := PercentToFixedPoint(decimal.RequireFromString("2"))
	require.NoError(t, err)
	assert.Equal(t, "0.020000000000000000", FixedPointToDec(fixed).String())
}
