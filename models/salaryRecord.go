package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/iglesiacentral/comunidad_backend/config"
	"bitbucket.org/iglesiacentral/comunidad_backend/utils"
	"github.com/shopspring/decimal"
)

// SalaryRecord tracks honoraria paid out to the pastoral team. Separately
// access-controlled (pastor role) and independent of the main ledger; the
// only ledger-derived figure is the month's income used for the suggestion.
type SalaryRecord struct {
	ID        int             `gorm:"primary_key" json:"id"`
	Amount    decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	Month     int             `gorm:"not null;index:idx_sr_period,priority:2" json:"month"`
	Year      int             `gorm:"not null;index:idx_sr_period,priority:1" json:"year"`
	Status    SalaryStatus    `gorm:"type:enum('D','P');not null;default:'D'" json:"status"`
	Notes     string          `gorm:"type:text" json:"notes"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewSalaryRecord struct {
	Amount decimal.Decimal `json:"amount"`
	Month  int             `json:"month" binding:"required"`
	Year   int             `json:"year" binding:"required"`
	Notes  string          `json:"notes"`
}

func (input *NewSalaryRecord) validate() error {
	if !input.Amount.IsPositive() {
		return utils.ErrorInvalidAmount
	}
	if input.Month < 1 || input.Month > 12 {
		return errors.New("invalid month")
	}
	if input.Year < 2000 {
		return errors.New("invalid year")
	}
	return nil
}

func CreateSalaryRecord(ctx context.Context, input *NewSalaryRecord) (*SalaryRecord, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	record := SalaryRecord{
		Amount: input.Amount,
		Month:  input.Month,
		Year:   input.Year,
		Status: SalaryStatusDraft,
		Notes:  input.Notes,
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func GetSalaryRecords(ctx context.Context, year *int) ([]*SalaryRecord, error) {
	db := config.GetDB()
	var results []*SalaryRecord
	dbCtx := db.WithContext(ctx).Model(&SalaryRecord{})
	if year != nil {
		dbCtx = dbCtx.Where("year = ?", *year)
	}
	if err := dbCtx.Order("year DESC, month DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func MarkSalaryRecordPaid(ctx context.Context, id int) (*SalaryRecord, error) {
	record, err := utils.FetchModel[SalaryRecord](ctx, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(record).
		Update("status", SalaryStatusPaid).Error
	if err != nil {
		return nil, err
	}
	record.Status = SalaryStatusPaid
	return record, nil
}

// SuggestSalaryAllocation returns 10% of the month's total income. A
// suggestion only: nothing enforces the allocation.
func SuggestSalaryAllocation(ctx context.Context, month time.Month, year int) (decimal.Decimal, error) {
	window := utils.MonthWindow(year, month, time.UTC)

	income := EntryTypeIncome
	total, err := GetLedgerBalance(ctx, &LedgerEntryFilter{
		From:      &window.From,
		To:        &window.To,
		EntryType: &income,
	})
	if err != nil {
		return decimal.Zero, err
	}
	return SuggestedAllocation(total), nil
}

var salaryAllocationRate = decimal.RequireFromString("0.1")

// SuggestedAllocation is the pure calculation, separated for testing.
func SuggestedAllocation(monthIncome decimal.Decimal) decimal.Decimal {
	if monthIncome.IsNegative() {
		return decimal.Zero
	}
	return monthIncome.Mul(salaryAllocationRate).Round(2)
}
