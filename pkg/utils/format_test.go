package utils

import (
	"testing"
	"time"
)

func TestFormatIndianCurrencyExamples(t *testing.T) {
	testCases := []struct {
		amount   float64
		expected string
	}{
		{0, "₹0.00"},
		{1234.5, "₹1,234.50"},
		{100000, "₹1,00,000.00"},
		{10000000, "₹1,00,00,000.00"},
		{-1234.56, "-₹1,234.56"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			if got := FormatIndianCurrency(tc.amount); got != tc.expected {
				t.Errorf("FormatIndianCurrency(%v) = %s, want %s", tc.amount, got, tc.expected)
			}
		})
	}
}

func TestFormatLargeNumberExamples(t *testing.T) {
	testCases := []struct {
		amount   float64
		expected string
	}{
		{150000, "1.50L"},
		{100000, "1.00L"},
		{25000000, "2.50Cr"},
		{2500, "2.50K"},
		{950, "950.00"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			if got := FormatLargeNumber(tc.amount); got != tc.expected {
				t.Errorf("FormatLargeNumber(%v) = %s, want %s", tc.amount, got, tc.expected)
			}
		})
	}
}

func TestMarketStatusAt(t *testing.T) {
	mk := func(day, hour, min int) time.Time {
		// 2025-06-02 is a Monday
		return time.Date(2025, 6, day, hour, min, 0, 0, IndiaLocation)
	}

	testCases := []struct {
		name string
		ts   time.Time
		want string
	}{
		{"monday mid session", mk(2, 11, 0), "OPEN"},
		{"monday open bell", mk(2, 9, 15), "OPEN"},
		{"monday pre open", mk(2, 9, 5), "PRE_OPEN"},
		{"monday after close", mk(2, 15, 30), "CLOSED"},
		{"saturday", mk(7, 11, 0), "CLOSED"},
		{"sunday", mk(8, 11, 0), "CLOSED"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			status := MarketStatusAt(tc.ts)
			if string(status) != tc.want {
				t.Errorf("MarketStatusAt = %s, want %s", status, tc.want)
			}
		})
	}
}
