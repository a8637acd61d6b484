package workflow

import (
	"errors"
	"testing"
	"time"

	"bitbucket.org/iglesiacentral/comunidad_backend/models"
	"bitbucket.org/iglesiacentral/comunidad_backend/utils"
	"github.com/shopspring/decimal"
)

func TestCheckManualAccept(t *testing.T) {
	sunday := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)

	if err := checkManualAccept(nil); err != nil {
		t.Fatalf("empty agenda day: unexpected error: %v", err)
	}

	dayEvents := []*models.Event{{ID: 7, Title: "Culto dominical", StartsAt: sunday}}
	err := checkManualAccept(dayEvents)
	if !errors.Is(err, utils.ErrorEventSelectionRequired) {
		t.Fatalf("day with scheduled event: error = %v, expected ErrorEventSelectionRequired", err)
	}
}

func TestEntryFromIntent_ManualConcept(t *testing.T) {
	intent := &models.DonationIntent{
		ID:             3,
		DonorName:      "Juan Gómez",
		DeclaredAmount: decimal.NewFromInt(500),
		IntentType:     models.IntentTypeTithe,
	}

	manual := entryFromIntent(intent, &AcceptIntentInput{})
	if manual.Concept != "Donación validada: Juan Gómez (manual)" {
		t.Fatalf("manual concept = %q", manual.Concept)
	}
	if manual.EventId != nil {
		t.Fatal("manual entry must not reference an event")
	}

	linked := entryFromIntent(intent, &AcceptIntentInput{EventId: utils.Ptr(7)})
	if linked.Concept != "Donación validada: Juan Gómez" {
		t.Fatalf("linked concept = %q", linked.Concept)
	}
	if linked.EventId == nil || *linked.EventId != 7 {
		t.Fatal("linked entry must carry the chosen event id")
	}
	if *linked.DonorKey != "juan gomez" {
		t.Fatalf("donor key = %q", *linked.DonorKey)
	}
}
