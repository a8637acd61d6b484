package utils

import (
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

func IsValidEmail(email string) bool {
	// Basic email validation regex pattern
	pattern := `^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`
	regex := regexp.MustCompile(pattern)
	return regex.MatchString(email)
}

// ValidateStruct runs validator tags on an input struct.
func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}

func DereferencePtr[T any](ptr *T, defaults ...T) T {
	if ptr != nil {
		return *ptr
	}
	if len(defaults) > 0 {
		return defaults[0]
	}
	var zero T
	return zero
}

func Ptr[T any](v T) *T {
	return &v
}

// SumDecimals adds a slice of decimals without float drift.
func SumDecimals(values []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// TimeWindow is a half-open [From, To) interval used to scope projections.
type TimeWindow struct {
	From time.Time
	To   time.Time
}

func (w TimeWindow) Contains(t time.Time) bool {
	if w.From.IsZero() && w.To.IsZero() {
		return true
	}
	if !w.From.IsZero() && t.Before(w.From) {
		return false
	}
	if !w.To.IsZero() && !t.Before(w.To) {
		return false
	}
	return true
}

// WindowForScope resolves "week" | "month" | "year" relative to now.
// Unknown scopes return the zero window (no filtering).
func WindowForScope(scope string, now time.Time) TimeWindow {
	switch scope {
	case "week":
		// start of the current week (Monday)
		weekday := int(now.Weekday())
		if weekday == 0 {
			weekday = 7
		}
		start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).
			AddDate(0, 0, -(weekday - 1))
		return TimeWindow{From: start, To: start.AddDate(0, 0, 7)}
	case "month":
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return TimeWindow{From: start, To: start.AddDate(0, 1, 0)}
	case "year":
		start := time.Date(now.Year(), 1, 1, 0, 0, 0, 0, now.Location())
		return TimeWindow{From: start, To: start.AddDate(1, 0, 0)}
	}
	return TimeWindow{}
}

// MonthWindow is the [first, next-first) interval of a calendar month.
func MonthWindow(year int, month time.Month, loc *time.Location) TimeWindow {
	if loc == nil {
		loc = time.UTC
	}
	start := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	return TimeWindow{From: start, To: start.AddDate(0, 1, 0)}
}
