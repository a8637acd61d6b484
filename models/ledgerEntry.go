package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"bitbucket.org/iglesiacentral/comunidad_backend/config"
	"bitbucket.org/iglesiacentral/comunidad_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// LedgerEntry is a validated, financially authoritative record. Income is a
// positive signed amount, expense a negative one; the two must always agree.
// Entries are immutable by default: edits and deletes go through the
// versioned, audited paths below and every change lands in entry_events.
type LedgerEntry struct {
	ID            int              `gorm:"primary_key" json:"id"`
	Concept       string           `gorm:"size:255;not null" json:"concept" binding:"required"`
	SignedAmount  decimal.Decimal  `gorm:"type:decimal(20,4);not null" json:"signed_amount"`
	EntryType     EntryType        `gorm:"type:enum('income','expense');index;not null;index:idx_le_type_event,priority:1" json:"entry_type"`
	SubType       *EntrySubType    `gorm:"type:enum('tithe','offering');default:null" json:"sub_type"`
	PaymentMethod PaymentMethod    `gorm:"type:enum('cash','transfer','check');not null;default:'cash'" json:"payment_method"`
	DonorName     *string          `gorm:"size:255" json:"donor_name"`
	DonorKey      *string          `gorm:"size:191;index" json:"donor_key"`
	EventId       *int             `gorm:"index;index:idx_le_type_event,priority:2" json:"event_id"`
	Category      *ExpenseCategory `gorm:"type:enum('maintenance','utilities','outreach','supplies','honoraria','other');default:null" json:"category"`
	PrayerRequest *string          `gorm:"type:text" json:"prayer_request"`
	AuditNotes    *string          `gorm:"type:text" json:"audit_notes"`
	Version       int              `gorm:"not null;default:1" json:"version"`
	CreatedAt     time.Time        `gorm:"index;not null" json:"created_at"`
	UpdatedAt     time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

func (e LedgerEntry) GetId() int {
	return e.ID
}

// CheckSign enforces the core sign/type invariant.
func (e *LedgerEntry) CheckSign() error {
	if e.SignedAmount.IsZero() {
		return utils.ErrorInvalidAmount
	}
	if e.EntryType == EntryTypeIncome && e.SignedAmount.IsNegative() {
		return errors.New("income entry must carry a positive amount")
	}
	if e.EntryType == EntryTypeExpense && e.SignedAmount.IsPositive() {
		return errors.New("expense entry must carry a negative amount")
	}
	return nil
}

func (e *LedgerEntry) BeforeSave(tx *gorm.DB) error {
	return e.CheckSign()
}

// NewLedgerEntry is the direct administrative entry input.
type NewLedgerEntry struct {
	Concept       string           `json:"concept" binding:"required"`
	SignedAmount  decimal.Decimal  `json:"signed_amount"`
	EntryType     EntryType        `json:"entry_type" binding:"required"`
	SubType       *EntrySubType    `json:"sub_type"`
	PaymentMethod PaymentMethod    `json:"payment_method"`
	DonorName     *string          `json:"donor_name"`
	EventId       *int             `json:"event_id"`
	Category      *ExpenseCategory `json:"category"`
	PrayerRequest *string          `json:"prayer_request"`
	Date          *time.Time       `json:"date"`
}

// validate input before any write reaches storage.
func (input *NewLedgerEntry) validate(ctx context.Context) error {
	if input.EntryType != EntryTypeIncome && input.EntryType != EntryTypeExpense {
		return errors.New("invalid entry type")
	}
	if input.EntryType == EntryTypeIncome {
		if !input.SignedAmount.IsPositive() {
			return utils.ErrorInvalidAmount
		}
		if input.Category != nil {
			return errors.New("category applies to expense entries only")
		}
	} else {
		if !input.SignedAmount.IsNegative() {
			return errors.New("expense entry must carry a negative amount")
		}
		if input.SubType != nil {
			return errors.New("sub type applies to income entries only")
		}
		if input.DonorName != nil {
			return errors.New("donor name applies to income entries only")
		}
	}
	if input.EventId != nil {
		if err := utils.ValidateResourceId[Event](ctx, *input.EventId); err != nil {
			return errors.New("event not found")
		}
	}
	return nil
}

func (input *NewLedgerEntry) toEntry() *LedgerEntry {
	entry := LedgerEntry{
		Concept:       input.Concept,
		SignedAmount:  input.SignedAmount,
		EntryType:     input.EntryType,
		SubType:       input.SubType,
		PaymentMethod: input.PaymentMethod,
		DonorName:     input.DonorName,
		EventId:       input.EventId,
		Category:      input.Category,
		PrayerRequest: input.PrayerRequest,
	}
	if entry.PaymentMethod == "" {
		entry.PaymentMethod = PaymentMethodCash
	}
	if input.Date != nil {
		entry.CreatedAt = *input.Date
	} else {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.EntryType == EntryTypeIncome && entry.DonorName != nil {
		key := utils.NormalizeDonorName(*entry.DonorName)
		entry.DonorKey = &key
	}
	return &entry
}

// PostLedgerEntry inserts an entry inside the caller's transaction, appends
// the create event and maintains the donor summary. All three writes commit
// or roll back together.
func PostLedgerEntry(tx *gorm.DB, ctx context.Context, entry *LedgerEntry) error {
	if err := entry.CheckSign(); err != nil {
		return err
	}
	if entry.EntryType == EntryTypeIncome && entry.DonorName != nil && entry.DonorKey == nil {
		key := utils.NormalizeDonorName(*entry.DonorName)
		entry.DonorKey = &key
	}
	if err := tx.Create(entry).Error; err != nil {
		return err
	}
	if err := appendEntryEvent(tx, ctx, EntryEventActionCreate, entry.ID, nil, entry, nil); err != nil {
		return err
	}
	return applyEntryToSummary(tx, entry, 1)
}

// CreateLedgerEntry is the direct administrative entry path.
func CreateLedgerEntry(ctx context.Context, input *NewLedgerEntry) (*LedgerEntry, error) {
	if err := input.validate(ctx); err != nil {
		return nil, err
	}

	entry := input.toEntry()
	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return PostLedgerEntry(tx, ctx, entry)
	})
	if err != nil {
		return nil, err
	}
	bumpLedgerRevision(ctx)
	return entry, nil
}

// UpdateLedgerEntry carries the fields an administrator may edit.
// Version must match the entry read by the client; AuditNote must explain
// the change.
type UpdateLedgerEntry struct {
	Concept       *string          `json:"concept"`
	SignedAmount  *decimal.Decimal `json:"signed_amount"`
	PaymentMethod *PaymentMethod   `json:"payment_method"`
	Category      *ExpenseCategory `json:"category"`
	AuditNote     string           `json:"audit_note"`
	Version       int              `json:"version" binding:"required"`
}

// validateAgainst checks an edit against the stored entry. The sign/type
// invariant has a per-type corollary at create time (category is
// expense-only); edits must not reintroduce what validate rejected.
func (input *UpdateLedgerEntry) validateAgainst(old *LedgerEntry) error {
	if input.Category != nil && old.EntryType == EntryTypeIncome {
		return errors.New("category applies to expense entries only")
	}
	return nil
}

// EditLedgerEntry applies an audited, optimistically-locked edit.
// A stale Version returns ErrorVersionConflict instead of overwriting.
func EditLedgerEntry(ctx context.Context, id int, input *UpdateLedgerEntry) (*LedgerEntry, error) {
	input.AuditNote = strings.TrimSpace(input.AuditNote)
	if input.AuditNote == "" {
		return nil, utils.ErrorAuditNoteRequired
	}

	db := config.GetDB()
	var updated LedgerEntry
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var old LedgerEntry
		if err := tx.First(&old, id).Error; err != nil {
			return utils.ErrorRecordNotFound
		}
		if err := input.validateAgainst(&old); err != nil {
			return err
		}

		next := old
		if input.Concept != nil {
			next.Concept = *input.Concept
		}
		if input.SignedAmount != nil {
			next.SignedAmount = *input.SignedAmount
		}
		if input.PaymentMethod != nil {
			next.PaymentMethod = *input.PaymentMethod
		}
		if input.Category != nil {
			next.Category = input.Category
		}
		next.AuditNotes = &input.AuditNote
		if err := next.CheckSign(); err != nil {
			return err
		}

		res := tx.Model(&LedgerEntry{}).
			Where("id = ? AND version = ?", id, input.Version).
			Updates(map[string]interface{}{
				"concept":        next.Concept,
				"signed_amount":  next.SignedAmount,
				"payment_method": next.PaymentMethod,
				"category":       next.Category,
				"audit_notes":    next.AuditNotes,
				"version":        gorm.Expr("version + 1"),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return utils.ErrorVersionConflict
		}
		next.Version = input.Version + 1

		if err := appendEntryEvent(tx, ctx, EntryEventActionUpdate, id, &old, &next, &input.AuditNote); err != nil {
			return err
		}
		// maintained aggregates: remove the old contribution, add the new one
		if err := applyEntryToSummary(tx, &old, -1); err != nil {
			return err
		}
		if err := applyEntryToSummary(tx, &next, 1); err != nil {
			return err
		}
		updated = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	bumpLedgerRevision(ctx)
	return &updated, nil
}

// RemoveLedgerEntry hard-deletes an entry. The delete, its event record and
// the summary adjustment are one transaction.
func RemoveLedgerEntry(ctx context.Context, id int, auditNote string) (*LedgerEntry, error) {
	auditNote = strings.TrimSpace(auditNote)
	if auditNote == "" {
		return nil, utils.ErrorAuditNoteRequired
	}

	db := config.GetDB()
	var removed LedgerEntry
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&removed, id).Error; err != nil {
			return utils.ErrorRecordNotFound
		}
		if err := appendEntryEvent(tx, ctx, EntryEventActionDelete, id, &removed, nil, &auditNote); err != nil {
			return err
		}
		if err := tx.Delete(&LedgerEntry{}, id).Error; err != nil {
			return err
		}
		return applyEntryToSummary(tx, &removed, -1)
	})
	if err != nil {
		return nil, err
	}
	bumpLedgerRevision(ctx)
	return &removed, nil
}

func GetLedgerEntry(ctx context.Context, id int) (*LedgerEntry, error) {
	return utils.FetchModel[LedgerEntry](ctx, id)
}

// LedgerEntryFilter narrows the live entry view.
type LedgerEntryFilter struct {
	From      *time.Time
	To        *time.Time
	EventId   *int
	DonorName *string
	EntryType *EntryType
}

func (f *LedgerEntryFilter) apply(dbCtx *gorm.DB) *gorm.DB {
	if f == nil {
		return dbCtx
	}
	if f.From != nil {
		dbCtx = dbCtx.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		dbCtx = dbCtx.Where("created_at < ?", *f.To)
	}
	if f.EventId != nil {
		dbCtx = dbCtx.Where("event_id = ?", *f.EventId)
	}
	if f.DonorName != nil && *f.DonorName != "" {
		dbCtx = dbCtx.Where("donor_name LIKE ?", "%"+*f.DonorName+"%")
	}
	if f.EntryType != nil {
		dbCtx = dbCtx.Where("entry_type = ?", *f.EntryType)
	}
	return dbCtx
}

func GetLedgerEntries(ctx context.Context, filter *LedgerEntryFilter) ([]*LedgerEntry, error) {
	db := config.GetDB()
	var results []*LedgerEntry
	dbCtx := filter.apply(db.WithContext(ctx).Model(&LedgerEntry{}))
	if err := dbCtx.Order("created_at DESC, id DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// GetLedgerBalance recomputes the balance from the surviving entry set.
// There is no cached total; SUM over signed_amount is the truth.
func GetLedgerBalance(ctx context.Context, filter *LedgerEntryFilter) (decimal.Decimal, error) {
	db := config.GetDB()
	var balance decimal.NullDecimal
	dbCtx := filter.apply(db.WithContext(ctx).Model(&LedgerEntry{}))
	if err := dbCtx.Select("SUM(signed_amount)").Scan(&balance).Error; err != nil {
		return decimal.Zero, err
	}
	if !balance.Valid {
		return decimal.Zero, nil
	}
	return balance.Decimal, nil
}

const ledgerRevisionKey = "rev:ledger_entries"

// bumpLedgerRevision lets polling clients detect collection changes cheaply.
// Best-effort: a missed bump only delays a refresh.
func bumpLedgerRevision(ctx context.Context) {
	if _, err := config.IncrRedisCounter(ctx, ledgerRevisionKey); err != nil {
		config.LogError(config.GetLogger(), "ledgerEntry.go", "bumpLedgerRevision", "IncrRedisCounter", nil, err)
	}
}

func GetLedgerRevision(ctx context.Context) (int64, error) {
	return config.GetRedisCounter(ctx, ledgerRevisionKey)
}

// BumpLedgerRevision is used by workflows that write entries in their own
// transactions.
func BumpLedgerRevision(ctx context.Context) {
	bumpLedgerRevision(ctx)
}
