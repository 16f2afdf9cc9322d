package util

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatUnits(t *testing.T) {
	tests := []struct {
		name     string
		value    *big.Int
		decimals int
		expected string
	}{
		{name: "whole amount keeps one fractional digit", value: big.NewInt(10000000), decimals: 6, expected: "10.0"},
		{name: "trailing zeros trimmed", value: big.NewInt(10500000), decimals: 6, expected: "10.5"},
		{name: "sub-unit amount", value: big.NewInt(10000), decimals: 6, expected: "0.01"},
		{name: "full precision preserved", value: big.NewInt(123456), decimals: 6, expected: "0.123456"},
		{name: "zero", value: big.NewInt(0), decimals: 6, expected: "0.0"},
		{name: "nil treated as zero", value: nil, decimals: 6, expected: "0.0"},
		{name: "negative", value: big.NewInt(-1500000), decimals: 6, expected: "-1.5"},
		{name: "eighteen decimals", value: big.NewInt(1500000000000000000), decimals: 18, expected: "1.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatUnits(tt.value, tt.decimals))
		})
	}
}

func TestParseUnits(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		decimals int
		expected int64
		wantErr  bool
	}{
		{name: "integer", value: "10", decimals: 6, expected: 10000000},
		{name: "decimal", value: "0.1", decimals: 6, expected: 100000},
		{name: "full precision", value: "0.123456", decimals: 6, expected: 123456},
		{name: "leading dot", value: ".5", decimals: 6, expected: 500000},
		{name: "negative", value: "-2.5", decimals: 6, expected: -2500000},
		{name: "excess precision rejected", value: "0.1234567", decimals: 6, wantErr: true},
		{name: "empty rejected", value: "", decimals: 6, wantErr: true},
		{name: "garbage rejected", value: "ten", decimals: 6, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseUnits(tt.value, tt.decimals)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got.Int64())
		})
	}
}

// Formatting then reparsing must return the exact raw amount. A deposit
// quoted through the API and then re-submitted must not drift by a single
// base unit.
func TestFormatParseRoundTrip(t *testing.T) {
	amounts := []int64{1, 10000, 100000, 123456, 10000000, 999999999}
	for _, raw := range amounts {
		value := big.NewInt(raw)
		parsed, err := ParseUsdc(FormatUsdc(value))
		require.NoError(t, err)
		assert.Zero(t, value.Cmp(parsed), "round trip drifted for %d", raw)
	}
}

func TestUsdcFromFloatString(t *testing.T) {
	got, err := UsdcFromFloatString("10.5")
	require.NoError(t, err)
	assert.Equal(t, int64(10500000), got.Int64())

	_, err = UsdcFromFloatString("0")
	require.Error(t, err)

	_, err = UsdcFromFloatString("-1")
	require.Error(t, err)
}
