// Package ethunit provides shared ether parsing and formatting utilities.
//
// The native currency uses 18 decimal places. All amounts are handled as
// big.Int wei (1 ETH = 10^18 wei); 256-bit values must round-trip exactly,
// so no floating-point math is used anywhere.
package ethunit

import (
	"math/big"
	"strings"
)

const Decimals = 18

var weiPerEther = new(big.Int).Exp(big.NewInt(10), big.NewInt(Decimals), nil)

// ParseEther converts a decimal ETH string (e.g. "1.5") to its wei
// big.Int representation. Returns (nil, false) on invalid input.
//
// Rules:
//   - Empty string returns (0, true)
//   - Negative amounts are rejected
//   - Multiple decimal points are rejected
//   - Fractional parts are padded/truncated to 18 decimal places
func ParseEther(s string) (*big.Int, bool) {
	if s == "" {
		return big.NewInt(0), true
	}

	if strings.HasPrefix(s, "-") {
		return nil, false
	}

	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return nil, false
	}
	whole := parts[0]
	frac := ""
	if len(parts) > 1 {
		frac = parts[1]
	}
	if whole == "" {
		whole = "0"
	}

	// Pad or trim to 18 decimals
	for len(frac) < Decimals {
		frac += "0"
	}
	frac = frac[:Decimals]

	combined := whole + frac
	result, ok := new(big.Int).SetString(combined, 10)
	if !ok || result.Sign() < 0 {
		return nil, false
	}
	return result, true
}

// FormatEther converts a wei big.Int to a human-readable decimal string
// with trailing zeros trimmed (e.g. "1.5", "0.05").
func FormatEther(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	neg := wei.Sign() < 0
	abs := new(big.Int).Abs(wei)

	whole := new(big.Int).Div(abs, weiPerEther)
	remainder := new(big.Int).Mod(abs, weiPerEther)

	result := whole.String()
	if remainder.Sign() != 0 {
		frac := remainder.String()
		for len(frac) < Decimals {
			frac = "0" + frac
		}
		frac = strings.TrimRight(frac, "0")
		result += "." + frac
	}
	if neg {
		result = "-" + result
	}
	return result
}
