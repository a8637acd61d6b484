package utils

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestWindowForScope_Month(t *testing.T) {
	now := time.Date(2025, time.March, 15, 10, 30, 0, 0, time.UTC)
	w := WindowForScope("month", now)

	if !w.Contains(time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatal("first of month should be inside the window")
	}
	if w.Contains(time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatal("first of next month should be outside the window")
	}
	if w.Contains(time.Date(2025, time.February, 28, 23, 59, 0, 0, time.UTC)) {
		t.Fatal("previous month should be outside the window")
	}
}

func TestWindowForScope_WeekStartsMonday(t *testing.T) {
	// 2025-03-12 is a Wednesday; the week starts Monday 2025-03-10.
	now := time.Date(2025, time.March, 12, 12, 0, 0, 0, time.UTC)
	w := WindowForScope("week", now)

	if !w.From.Equal(time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("week window starts %v, expected Monday 2025-03-10", w.From)
	}
	if !w.Contains(time.Date(2025, time.March, 16, 23, 0, 0, 0, time.UTC)) {
		t.Fatal("Sunday of the same week should be inside the window")
	}
}

func TestWindowForScope_UnknownScopeMatchesEverything(t *testing.T) {
	w := WindowForScope("", time.Now())
	if !w.Contains(time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatal("zero window must contain every time")
	}
}

func TestSumDecimals(t *testing.T) {
	values := []decimal.Decimal{
		decimal.NewFromInt(1000),
		decimal.RequireFromString("500.25"),
		decimal.RequireFromString("0.75"),
	}
	if got := SumDecimals(values); !got.Equal(decimal.RequireFromString("1501")) {
		t.Fatalf("SumDecimals = %s, expected 1501", got)
	}
}
