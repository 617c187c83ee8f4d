package ethunit

import (
	"math/big"
	"testing"
)

func TestParseEther_ValidAmounts(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string // wei, decimal
	}{
		{"one ether", "1", "1000000000000000000"},
		{"one point five", "1.5", "1500000000000000000"},
		{"five hundredths", "0.05", "50000000000000000"},
		{"one wei", "0.000000000000000001", "1"},
		{"no leading zero", ".5", "500000000000000000"},
		{"large amount", "123456789", "123456789000000000000000000"},
		{"trailing zeros", "2.500", "2500000000000000000"},
		{"truncates past 18", "1.1234567890123456789", "1123456789012345678"},
		{"empty is zero", "", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseEther(tt.input)
			if !ok {
				t.Fatalf("ParseEther(%q) returned ok=false", tt.input)
			}
			want, _ := new(big.Int).SetString(tt.expected, 10)
			if got.Cmp(want) != 0 {
				t.Errorf("ParseEther(%q) = %s, want %s", tt.input, got, want)
			}
		})
	}
}

func TestParseEther_Invalid(t *testing.T) {
	for _, input := range []string{"-1", "1.2.3", "abc", "1e18", "0x10"} {
		if _, ok := ParseEther(input); ok {
			t.Errorf("ParseEther(%q) should be rejected", input)
		}
	}
}

func TestFormatEther(t *testing.T) {
	tests := []struct {
		wei      string
		expected string
	}{
		{"1000000000000000000", "1"},
		{"1500000000000000000", "1.5"},
		{"50000000000000000", "0.05"},
		{"1", "0.000000000000000001"},
		{"0", "0"},
	}

	for _, tt := range tests {
		wei, _ := new(big.Int).SetString(tt.wei, 10)
		if got := FormatEther(wei); got != tt.expected {
			t.Errorf("FormatEther(%s) = %q, want %q", tt.wei, got, tt.expected)
		}
	}
}

func TestFormatEther_Nil(t *testing.T) {
	if got := FormatEther(nil); got != "0" {
		t.Errorf("FormatEther(nil) = %q, want \"0\"", got)
	}
}

// Parse→Format→Parse must round-trip exactly for 256-bit scale values.
func TestRoundTrip_LargeValues(t *testing.T) {
	huge, _ := new(big.Int).SetString("115792089237316195423570985008687907853269984665640564039457", 10)
	formatted := FormatEther(huge)
	back, ok := ParseEther(formatted)
	if !ok {
		t.Fatalf("ParseEther(%q) failed", formatted)
	}
	if back.Cmp(huge) != 0 {
		t.Errorf("round-trip mismatch: %s != %s", back, huge)
	}
}
