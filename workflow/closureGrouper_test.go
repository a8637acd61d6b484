package workflow

import (
	"testing"
	"time"

	"bitbucket.org/iglesiacentral/comunidad_backend/models"
	"bitbucket.org/iglesiacentral/comunidad_backend/utils"
	"github.com/shopspring/decimal"
)

func incomeEntry(id int, amount string, eventId *int, subType *models.EntrySubType) *models.LedgerEntry {
	return &models.LedgerEntry{
		ID:           id,
		Concept:      "Donación",
		SignedAmount: d(amount),
		EntryType:    models.EntryTypeIncome,
		SubType:      subType,
		EventId:      eventId,
		CreatedAt:    time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC).Add(time.Duration(id) * time.Minute),
	}
}

func TestGroupClosures(t *testing.T) {
	tithe := models.EntrySubTypeTithe
	offering := models.EntrySubTypeOffering
	ev1, ev2 := 1, 2

	entries := []*models.LedgerEntry{
		incomeEntry(1, "100", &ev1, &tithe),
		incomeEntry(2, "50", &ev1, &offering),
		incomeEntry(3, "200", &ev2, &offering),
		incomeEntry(4, "75", nil, &offering), // manual, must stay ungrouped
		{ID: 5, Concept: "Luz", SignedAmount: d("-30"), EntryType: models.EntryTypeExpense,
			EventId: &ev1, CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
	}

	closures, ungrouped := GroupClosures(entries, func(eventId int) (string, bool) {
		if eventId == 1 {
			return "Culto dominical", true
		}
		return "", false
	})

	if len(closures) != 2 {
		t.Fatalf("expected 2 closures, got %d", len(closures))
	}
	if len(ungrouped) != 1 || ungrouped[0].ID != 4 {
		t.Fatalf("expected entry 4 ungrouped, got %v", ungrouped)
	}

	first := closures[0]
	if first.EventId != 1 || first.Title != "Culto dominical" {
		t.Errorf("closure 1: id=%d title=%q", first.EventId, first.Title)
	}
	if !first.TotalIncome.Equal(d("150")) {
		t.Errorf("closure 1 total = %s, want 150", first.TotalIncome)
	}
	if first.EntryCount != 2 || first.TithesCount != 1 || first.OfferingsCount != 1 {
		t.Errorf("closure 1 counts = %d/%d/%d", first.EntryCount, first.TithesCount, first.OfferingsCount)
	}

	second := closures[1]
	if second.EventId != 2 {
		t.Fatalf("closure 2 id = %d", second.EventId)
	}
	// unknown event falls back to the first entry's concept
	if second.Title != "Donación" {
		t.Errorf("closure 2 title = %q", second.Title)
	}
	if !second.TotalIncome.Equal(d("200")) {
		t.Errorf("closure 2 total = %s", second.TotalIncome)
	}
}

func TestGroupClosures_ExpenseNeverGrouped(t *testing.T) {
	ev := 7
	entries := []*models.LedgerEntry{
		{ID: 1, SignedAmount: d("-100"), EntryType: models.EntryTypeExpense, EventId: &ev},
	}
	closures, ungrouped := GroupClosures(entries, func(int) (string, bool) { return "", false })
	if len(closures) != 0 || len(ungrouped) != 0 {
		t.Fatalf("expense entries must not appear in the closure view: %d/%d", len(closures), len(ungrouped))
	}
}

// The closure view and the plain balance are two folds over the same
// snapshot; they must agree.
func TestGroupClosures_TotalsMatchSnapshot(t *testing.T) {
	offering := models.EntrySubTypeOffering
	ev1, ev2 := 1, 2
	entries := []*models.LedgerEntry{
		incomeEntry(1, "100.10", &ev1, &offering),
		incomeEntry(2, "0.90", &ev2, &offering),
		incomeEntry(3, "49", &ev1, nil),
		incomeEntry(4, "25", nil, &offering),
	}

	closures, ungrouped := GroupClosures(entries, func(int) (string, bool) { return "", false })

	var amounts []decimal.Decimal
	for _, closure := range closures {
		amounts = append(amounts, closure.TotalIncome)
	}
	for _, entry := range ungrouped {
		amounts = append(amounts, entry.SignedAmount)
	}
	if got := utils.SumDecimals(amounts); !got.Equal(d("175")) {
		t.Errorf("closure totals + ungrouped = %s, want 175", got)
	}
}
