package workflow

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/iglesiacentral/comunidad_backend/config"
	"bitbucket.org/iglesiacentral/comunidad_backend/models"
	"bitbucket.org/iglesiacentral/comunidad_backend/utils"
	"gorm.io/gorm"
)

// The validation workflow moves a DonationIntent to its terminal state:
// accepted (one LedgerEntry, intent consumed) or rejected (intent deleted,
// nothing written). An intent is consumed exactly once; when two admins race
// on the same intent the loser observes ErrorAlreadyProcessed.

// AcceptIntentInput carries the reviewing administrator's choices.
type AcceptIntentInput struct {
	// EventId associates the resulting entry with a service closure. May be
	// nil only when no event exists for the submission's date scope; the
	// entry is then marked manual via its concept.
	EventId *int                 `json:"event_id"`
	SubType *models.EntrySubType `json:"sub_type"`
}

// AcceptDonationIntent consumes the intent and creates its ledger entry in
// one transaction. The consume-then-create sequence is atomic with respect
// to concurrent accept/reject calls on the same intent: the row lock inside
// ConsumeDonationIntent lets exactly one caller win.
func AcceptDonationIntent(ctx context.Context, intentId int, input *AcceptIntentInput) (*models.LedgerEntry, error) {
	ctx, span := tracer.Start(ctx, "workflow.AcceptDonationIntent")
	defer span.End()

	logger := config.GetLogger()

	if err := models.RequireRole(ctx, models.UserRoleAdmin, models.UserRolePastor); err != nil {
		return nil, err
	}

	if input.EventId != nil {
		if err := utils.ValidateResourceId[models.Event](ctx, *input.EventId); err != nil {
			return nil, errors.New("event not found")
		}
	}

	db := config.GetDB()
	var entry *models.LedgerEntry
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		intent, err := models.ConsumeDonationIntent(tx, ctx, intentId)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				// another administrator won the race; no side effects
				return utils.ErrorAlreadyProcessed
			}
			return err
		}

		if input.EventId == nil {
			dayEvents, err := models.ListEventsOnDate(ctx, intent.SubmittedAt)
			if err != nil {
				return err
			}
			// aborting here rolls the consume back; the intent stays pending
			if err := checkManualAccept(dayEvents); err != nil {
				return err
			}
		}

		entry = entryFromIntent(intent, input)
		return models.PostLedgerEntry(tx, ctx, entry)
	})
	if err != nil {
		if !errors.Is(err, utils.ErrorAlreadyProcessed) {
			config.LogError(logger, "validationWorkflow.go", "AcceptDonationIntent", "Transaction", intentId, err)
		}
		return nil, err
	}

	models.BumpIntentRevision(ctx)
	models.BumpLedgerRevision(ctx)

	// fire-and-forget; never blocks the accept
	notifyDonorEntry(ctx, entry)

	return entry, nil
}

// RejectDonationIntent deletes the intent without producing a ledger entry.
// Irreversible, and idempotent: rejecting an absent intent is a no-op.
func RejectDonationIntent(ctx context.Context, intentId int) error {
	if err := models.RequireRole(ctx, models.UserRoleAdmin, models.UserRolePastor); err != nil {
		return err
	}
	return models.RejectDonationIntent(ctx, intentId)
}

// checkManualAccept decides whether an intent may be filed without an event.
// Manual entries are a fallback for dates with no scheduled service; when the
// agenda has events that day the administrator must pick one.
func checkManualAccept(dayEvents []*models.Event) error {
	if len(dayEvents) > 0 {
		return utils.ErrorEventSelectionRequired
	}
	return nil
}

// entryFromIntent builds the single ledger entry an accepted intent becomes.
// Donor-submitted intents always arrive by transfer; cash reaches the ledger
// through counted bundles instead.
func entryFromIntent(intent *models.DonationIntent, input *AcceptIntentInput) *models.LedgerEntry {
	subType := intent.IntentType.SubType()
	if input.SubType != nil {
		subType = *input.SubType
	}

	concept := "Donación validada: " + intent.DonorName
	if input.EventId == nil {
		concept += " (manual)"
	}

	donorName := intent.DonorName
	donorKey := utils.NormalizeDonorName(donorName)

	return &models.LedgerEntry{
		Concept:       concept,
		SignedAmount:  intent.DeclaredAmount,
		EntryType:     models.EntryTypeIncome,
		SubType:       &subType,
		PaymentMethod: models.PaymentMethodTransfer,
		DonorName:     &donorName,
		DonorKey:      &donorKey,
		EventId:       input.EventId,
		PrayerRequest: intent.PrayerRequest,
		CreatedAt:     time.Now().UTC(),
	}
}
