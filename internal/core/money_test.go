package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseCurrency(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1", true},
		{"20000", "20000", true},
		{"$20.000.000", "20000000", true},
		{"$ 20.000.000", "20000000", true},
		{"1.234,56", "1234.56", true},
		{"1,234.56", "1234.56", true},
		{"12,5", "12.5", true},
		{"12.50", "12.5", true},
		{"20.000", "20000", true},
		{"0.875", "0.875", true},
		{"0,875", "0.875", true},
		{"0.050", "0.05", true},
		{"00.500", "0.5", true},
		{"0", "0", true},
		{" 2,50 ", "2.5", true},
		{"-1", "", false},
		{"abc", "", false},
		{"1.2.3,4,5", "", false},
		{"", "", false},
		{"$", "", false},
		{"12.", "", false},
	}
	for _, tc := range cases {
		got, err := ParseCurrency(tc.in)
		if tc.ok {
			want := decimal.RequireFromString(tc.out)
			if err != nil || !got.Equal(want) {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, want, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error, got %s", tc.in, got)
		}
	}
}

func TestParsePercent(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1.5", "1.5", true},
		{"1,5", "1.5", true},
		{"0.875", "0.875", true},
		{"0,875", "0.875", true},
		{"0.050", "0.05", true},
		{"1.125", "1.125", true},
		{"33.333", "33.333", true},
		{"20", "20", true},
		{" 12,5 % ", "12.5", true},
		{"0", "0", true},
		{"1.000,5", "", false},
		{"1.2.3", "", false},
		{"-1", "", false},
		{".5", "", false},
		{"5.", "", false},
		{"", "", false},
		{"%", "", false},
		{"abc", "", false},
	}
	for _, tc := range cases {
		got, err := ParsePercent(tc.in)
		if tc.ok {
			want := decimal.RequireFromString(tc.out)
			if err != nil || !got.Equal(want) {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, want, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error, got %s", tc.in, got)
		}
	}
}

func TestFormatCurrency(t *testing.T) {
	cases := []struct {
		in  string
		out string
	}{
		{"0", "$0,00"},
		{"798.7856315121439", "$798,79"},
		{"1234567.891", "$1.234.567,89"},
		{"1000", "$1.000,00"},
		{"100", "$100,00"},
		{"0.005", "$0,01"},
		{"-1500.5", "-$1.500,50"},
	}
	for _, tc := range cases {
		if got := FormatCurrency(decimal.RequireFromString(tc.in)); got != tc.out {
			t.Fatalf("FormatCurrency(%s) = %q, want %q", tc.in, got, tc.out)
		}
	}
}

func TestRoundCurrencyHalfUp(t *testing.T) {
	got := RoundCurrency(decimal.RequireFromString("2.345"))
	if !got.Equal(decimal.RequireFromString("2.35")) {
		t.Fatalf("expected 2.35, got %s", got)
	}
}
