package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestSuggestedAllocation(t *testing.T) {
	cases := []struct {
		income   string
		expected string
	}{
		{"10000", "1000"},
		{"12345.67", "1234.57"},
		{"0", "0"},
		{"-500", "0"},
	}
	for _, tc := range cases {
		got := SuggestedAllocation(decimal.RequireFromString(tc.income))
		if !got.Equal(decimal.RequireFromString(tc.expected)) {
			t.Fatalf("SuggestedAllocation(%s) = %s, expected %s", tc.income, got, tc.expected)
		}
	}
}

func TestNewSalaryRecord_Validate(t *testing.T) {
	valid := NewSalaryRecord{Amount: decimal.NewFromInt(800), Month: 3, Year: 2025}
	if err := valid.validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, bad := range []NewSalaryRecord{
		{Amount: decimal.Zero, Month: 3, Year: 2025},
		{Amount: decimal.NewFromInt(800), Month: 0, Year: 2025},
		{Amount: decimal.NewFromInt(800), Month: 13, Year: 2025},
		{Amount: decimal.NewFromInt(800), Month: 3, Year: 1990},
	} {
		if err := bad.validate(); err == nil {
			t.Fatalf("expected validation error for %+v", bad)
		}
	}
}
