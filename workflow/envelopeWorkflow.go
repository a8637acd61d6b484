package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bitbucket.org/iglesiacentral/comunidad_backend/config"
	"bitbucket.org/iglesiacentral/comunidad_backend/models"
	"bitbucket.org/iglesiacentral/comunidad_backend/utils"
	"github.com/bsm/redislock"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// NewEnvelope is one named sub-contribution within a counted bundle.
type NewEnvelope struct {
	Name          string               `json:"name"`
	Amount        decimal.Decimal      `json:"amount"`
	PrayerRequest *string              `json:"prayer_request"`
	SubType       *models.EntrySubType `json:"sub_type"`
	Method        models.PaymentMethod `json:"method"`
}

// NewOfferingBundle is one administrator-entered cash count: loose totals
// plus named envelopes, all sharing a date and an optional event.
type NewOfferingBundle struct {
	LooseCash     decimal.Decimal `json:"loose_cash"`
	LooseTransfer decimal.Decimal `json:"loose_transfer"`
	Envelopes     []NewEnvelope   `json:"envelopes"`
	Concept       string          `json:"concept" binding:"required"`
	Date          time.Time       `json:"date" binding:"required"`
	EventId       *int            `json:"event_id"`
}

// Total is what the splitter must conserve.
func (b *NewOfferingBundle) Total() decimal.Decimal {
	total := b.LooseCash.Add(b.LooseTransfer)
	for _, env := range b.Envelopes {
		total = total.Add(env.Amount)
	}
	return total
}

func (b *NewOfferingBundle) validate() error {
	if strings.TrimSpace(b.Concept) == "" {
		return errors.New("concept is required")
	}
	if b.Date.IsZero() {
		return errors.New("date is required")
	}
	if b.LooseCash.IsNegative() || b.LooseTransfer.IsNegative() {
		return utils.ErrorInvalidAmount
	}
	for _, env := range b.Envelopes {
		if env.Amount.IsNegative() {
			return utils.ErrorInvalidAmount
		}
	}
	if !b.Total().IsPositive() {
		return utils.ErrorInvalidAmount
	}
	return nil
}

// SplitOfferingBundle decomposes a bundle into independent entries: one for
// the loose-cash total, one for the loose-transfer total, one per non-empty
// envelope. Zero or blank sub-amounts are silently skipped. Pure: the sum of
// the derived amounts always equals the bundle total.
func SplitOfferingBundle(bundle *NewOfferingBundle) []*models.LedgerEntry {
	var entries []*models.LedgerEntry

	offering := models.EntrySubTypeOffering

	if bundle.LooseCash.IsPositive() {
		entries = append(entries, &models.LedgerEntry{
			Concept:       bundle.Concept + " (efectivo)",
			SignedAmount:  bundle.LooseCash,
			EntryType:     models.EntryTypeIncome,
			SubType:       &offering,
			PaymentMethod: models.PaymentMethodCash,
			EventId:       bundle.EventId,
			CreatedAt:     bundle.Date,
		})
	}
	if bundle.LooseTransfer.IsPositive() {
		entries = append(entries, &models.LedgerEntry{
			Concept:       bundle.Concept + " (transferencia)",
			SignedAmount:  bundle.LooseTransfer,
			EntryType:     models.EntryTypeIncome,
			SubType:       &offering,
			PaymentMethod: models.PaymentMethodTransfer,
			EventId:       bundle.EventId,
			CreatedAt:     bundle.Date,
		})
	}

	for _, env := range bundle.Envelopes {
		if !env.Amount.IsPositive() {
			continue
		}

		subType := offering
		if env.SubType != nil {
			subType = *env.SubType
		}
		method := env.Method
		if method == "" {
			method = models.PaymentMethodCash
		}

		entry := models.LedgerEntry{
			Concept:       bundle.Concept + ": " + env.Name,
			SignedAmount:  env.Amount,
			EntryType:     models.EntryTypeIncome,
			SubType:       &subType,
			PaymentMethod: method,
			PrayerRequest: env.PrayerRequest,
			EventId:       bundle.EventId,
			CreatedAt:     bundle.Date,
		}
		if name := strings.TrimSpace(env.Name); name != "" {
			entry.DonorName = &name
			key := utils.NormalizeDonorName(name)
			entry.DonorKey = &key
		}
		entries = append(entries, &entry)
	}

	return entries
}

// PostOfferingBundle validates, splits and persists a bundle as one atomic
// batch: either every derived entry (with its event record and summary
// update) commits, or none do. A failed batch is retried in full.
func PostOfferingBundle(ctx context.Context, bundle *NewOfferingBundle) ([]*models.LedgerEntry, error) {
	ctx, span := tracer.Start(ctx, "workflow.PostOfferingBundle")
	defer span.End()

	logger := config.GetLogger()

	if err := models.RequireRole(ctx, models.UserRoleAdmin, models.UserRolePastor); err != nil {
		return nil, err
	}
	if err := bundle.validate(); err != nil {
		return nil, err
	}
	if bundle.EventId != nil {
		if err := utils.ValidateResourceId[models.Event](ctx, *bundle.EventId); err != nil {
			return nil, errors.New("event not found")
		}
	}

	entries := SplitOfferingBundle(bundle)
	if len(entries) == 0 {
		return nil, utils.ErrorInvalidAmount
	}

	// Best-effort lock keeps two admins from double-posting the same count.
	// Correctness does not depend on it; the transaction below does the work.
	releaseLock := obtainBundleLock(ctx, bundle)
	defer releaseLock()

	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, entry := range entries {
			if err := models.PostLedgerEntry(tx, ctx, entry); err != nil {
				return fmt.Errorf("%w: %v", utils.ErrorPartialBatchFailure, err)
			}
		}
		return nil
	})
	if err != nil {
		config.LogError(logger, "envelopeWorkflow.go", "PostOfferingBundle", "Transaction", bundle.Concept, err)
		return nil, err
	}

	models.BumpLedgerRevision(ctx)
	for _, entry := range entries {
		notifyDonorEntry(ctx, entry)
	}

	return entries, nil
}

func obtainBundleLock(ctx context.Context, bundle *NewOfferingBundle) func() {
	redisLock := config.GetRedisLock()
	if redisLock == nil {
		return func() {}
	}

	key := fmt.Sprintf("lock:bundle:%s", bundle.Date.Format("2006-01-02"))
	lock, err := redisLock.Obtain(ctx, key, 30*time.Second, nil)
	if err != nil {
		if err != redislock.ErrNotObtained {
			config.GetLogger().Warn("error obtaining bundle lock; proceeding without lock: " + err.Error())
		}
		return func() {}
	}
	return func() {
		if releaseErr := lock.Release(ctx); releaseErr != nil {
			config.GetLogger().Warn("failed to release bundle lock: " + releaseErr.Error())
		}
	}
}
