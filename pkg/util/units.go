package util

import (
	"fmt"
	"math/big"
	"strings"
)

// UsdcDecimals is the fixed-point precision of all reward, fee and balance
// figures on the marketplace contract.
const UsdcDecimals = 6

// FormatUnits renders a raw fixed-point amount as a decimal string with
// trailing zeros trimmed and at least one fractional digit, matching the
// rendering agents already see from ethers-based tooling ("10.0", "0.01").
func FormatUnits(value *big.Int, decimals int) string {
	if value == nil {
		return "0.0"
	}

	base := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	abs := new(big.Int).Abs(value)
	whole := new(big.Int)
	frac := new(big.Int)
	whole.DivMod(abs, base, frac)

	fracStr := frac.String()
	if pad := decimals - len(fracStr); pad > 0 {
		fracStr = strings.Repeat("0", pad) + fracStr
	}
	fracStr = strings.TrimRight(fracStr, "0")
	if fracStr == "" {
		fracStr = "0"
	}

	out := whole.String() + "." + fracStr
	if value.Sign() < 0 {
		out = "-" + out
	}
	return out
}

// ParseUnits converts a decimal string to its raw fixed-point amount.
// More fractional digits than the precision allows is an error, not a
// silent truncation.
func ParseUnits(value string, decimals int) (*big.Int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, fmt.Errorf("empty amount")
	}

	neg := false
	if strings.HasPrefix(value, "-") {
		neg = true
		value = value[1:]
	}

	wholePart := value
	fracPart := ""
	if idx := strings.Index(value, "."); idx >= 0 {
		wholePart = value[:idx]
		fracPart = value[idx+1:]
	}
	if wholePart == "" {
		wholePart = "0"
	}
	if len(fracPart) > decimals {
		return nil, fmt.Errorf("amount %q exceeds %d decimal precision", value, decimals)
	}

	whole, ok := new(big.Int).SetString(wholePart, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}

	base := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	raw := new(big.Int).Mul(whole, base)

	if fracPart != "" {
		frac, ok := new(big.Int).SetString(fracPart, 10)
		if !ok {
			return nil, fmt.Errorf("invalid amount %q", value)
		}
		scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals-len(fracPart))), nil)
		raw.Add(raw, new(big.Int).Mul(frac, scale))
	}

	if neg {
		raw.Neg(raw)
	}
	return raw, nil
}

// FormatUsdc renders a raw USDC amount at the marketplace precision.
func FormatUsdc(value *big.Int) string {
	return FormatUnits(value, UsdcDecimals)
}

// ParseUsdc parses a decimal USDC amount into its raw fixed-point form.
func ParseUsdc(value string) (*big.Int, error) {
	amount, err := ParseUnits(value, UsdcDecimals)
	if err != nil {
		return nil, err
	}
	return amount, nil
}

// UsdcFromFloatString accepts the loose numeric strings agents send in
// request bodies ("10", "10.5") and rejects anything non-positive.
func UsdcFromFloatString(value string) (*big.Int, error) {
	amount, err := ParseUsdc(value)
	if err != nil {
		return nil, err
	}
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be positive, got %q", value)
	}
	return amount, nil
}
