package models

import (
	"context"
	"time"

	"bitbucket.org/iglesiacentral/comunidad_backend/config"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DonorSummary is the maintained per-donor aggregate, updated in the same
// transaction as every income-entry write. It exists so donor totals stay
// consistent under concurrent writers without re-deriving from scratch on
// each read; cmd/ledger-verify cross-checks it against a full recompute.
type DonorSummary struct {
	DonorKey           string          `gorm:"primary_key;size:191" json:"donor_key"`
	DisplayName        string          `gorm:"size:255;not null" json:"display_name"`
	ContributionCount  int             `gorm:"not null;default:0" json:"contribution_count"`
	TotalContributed   decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"total_contributed"`
	CashTotal          decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"cash_total"`
	TransferTotal      decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"transfer_total"`
	LastContributionAt *time.Time      `json:"last_contribution_at"`
	UpdatedAt          time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// applyEntryToSummary folds one income entry into (direction=1) or out of
// (direction=-1) its donor's summary row. Expense entries and entries with
// no donor are not summarized. Must run inside the same transaction as the
// entry write; the row lock serializes concurrent writers on one donor.
func applyEntryToSummary(tx *gorm.DB, entry *LedgerEntry, direction int) error {
	if entry.EntryType != EntryTypeIncome || entry.DonorKey == nil {
		return nil
	}

	key := *entry.DonorKey
	amount := entry.SignedAmount.Mul(decimal.NewFromInt(int64(direction)))

	var summary DonorSummary
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("donor_key = ?", key).First(&summary).Error
	if err != nil {
		if direction < 0 {
			// removing an entry whose summary row is already gone: tolerate,
			// ledger-verify reports the drift
			return nil
		}
		displayName := key
		if entry.DonorName != nil {
			displayName = *entry.DonorName
		}
		summary = DonorSummary{
			DonorKey:    key,
			DisplayName: displayName,
		}
		if err := tx.Create(&summary).Error; err != nil {
			if !isDuplicateKeyErr(err) {
				return err
			}
			// lost the first-insert race; re-read under lock and fold on top
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("donor_key = ?", key).First(&summary).Error; err != nil {
				return err
			}
		}
	}

	summary.ContributionCount += direction
	summary.TotalContributed = summary.TotalContributed.Add(amount)
	if entry.PaymentMethod.IsCash() {
		summary.CashTotal = summary.CashTotal.Add(amount)
	} else {
		summary.TransferTotal = summary.TransferTotal.Add(amount)
	}
	if direction > 0 {
		if summary.LastContributionAt == nil || entry.CreatedAt.After(*summary.LastContributionAt) {
			t := entry.CreatedAt
			summary.LastContributionAt = &t
		}
	}

	if summary.ContributionCount <= 0 {
		return tx.Delete(&DonorSummary{}, "donor_key = ?", key).Error
	}

	return tx.Model(&DonorSummary{}).Where("donor_key = ?", key).
		Updates(map[string]interface{}{
			"contribution_count":   summary.ContributionCount,
			"total_contributed":    summary.TotalContributed,
			"cash_total":           summary.CashTotal,
			"transfer_total":       summary.TransferTotal,
			"last_contribution_at": summary.LastContributionAt,
		}).Error
}

// PurgeDonorEntries deletes every ledger entry belonging to one donor key in
// a single transaction, together with its summary row. Each removed entry
// still lands in entry_events, so the purge stays reconstructable. Returns
// the removed entries; all-or-nothing.
func PurgeDonorEntries(ctx context.Context, donorKey string, auditNote string) ([]*LedgerEntry, error) {
	db := config.GetDB()
	var removed []*LedgerEntry
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("donor_key = ?", donorKey).Find(&removed).Error; err != nil {
			return err
		}
		for _, entry := range removed {
			if err := appendEntryEvent(tx, ctx, EntryEventActionDelete, entry.ID, entry, nil, &auditNote); err != nil {
				return err
			}
			if err := tx.Delete(&LedgerEntry{}, entry.ID).Error; err != nil {
				return err
			}
		}
		return tx.Where("donor_key = ?", donorKey).Delete(&DonorSummary{}).Error
	})
	if err != nil {
		return nil, err
	}
	if len(removed) > 0 {
		bumpLedgerRevision(ctx)
	}
	return removed, nil
}

func GetDonorSummaries(ctx context.Context) ([]*DonorSummary, error) {
	db := config.GetDB()
	var results []*DonorSummary
	if err := db.WithContext(ctx).Order("total_contributed DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func GetDonorSummary(ctx context.Context, donorKey string) (*DonorSummary, error) {
	db := config.GetDB()
	var summary DonorSummary
	if err := db.WithContext(ctx).Where("donor_key = ?", donorKey).First(&summary).Error; err != nil {
		return nil, err
	}
	return &summary, nil
}
