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
	"gorm.io/gorm/clause"
)

// DonationIntent is a donor's claim to have sent money, awaiting human
// confirmation. An intent never transitions in place: rejection deletes it,
// acceptance consumes it and produces exactly one LedgerEntry.
type DonationIntent struct {
	ID             int             `gorm:"primary_key" json:"id"`
	DonorName      string          `gorm:"size:255;not null" json:"donor_name" binding:"required"`
	DeclaredAmount decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"declared_amount"`
	PrayerRequest  *string         `gorm:"type:text" json:"prayer_request"`
	IntentType     IntentType      `gorm:"type:enum('tithe','offering');not null;default:'offering'" json:"intent_type"`
	SubmittedById  int             `gorm:"index;not null" json:"submitted_by_id"`
	SubmittedAt    time.Time       `gorm:"autoCreateTime;index" json:"submitted_at"`
}

func (i DonationIntent) GetId() int {
	return i.ID
}

type NewDonationIntent struct {
	DonorName      string          `json:"donor_name" binding:"required"`
	DeclaredAmount decimal.Decimal `json:"declared_amount"`
	PrayerRequest  *string         `json:"prayer_request"`
	IntentType     IntentType      `json:"intent_type"`
}

func (input *NewDonationIntent) validate() error {
	if strings.TrimSpace(input.DonorName) == "" {
		return errors.New("donor name is required")
	}
	if !input.DeclaredAmount.IsPositive() {
		return utils.ErrorInvalidAmount
	}
	if input.IntentType != "" && input.IntentType != IntentTypeTithe && input.IntentType != IntentTypeOffering {
		return errors.New("invalid intent type")
	}
	return nil
}

// SubmitDonationIntent records a donor claim. Validation failures are
// rejected before any write.
func SubmitDonationIntent(ctx context.Context, input *NewDonationIntent) (*DonationIntent, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok {
		return nil, utils.ErrorUnauthorized
	}

	intent := DonationIntent{
		DonorName:      strings.TrimSpace(input.DonorName),
		DeclaredAmount: input.DeclaredAmount,
		PrayerRequest:  input.PrayerRequest,
		IntentType:     input.IntentType,
		SubmittedById:  userId,
	}
	if intent.IntentType == "" {
		intent.IntentType = IntentTypeOffering
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&intent).Error; err != nil {
		return nil, err
	}
	bumpIntentRevision(ctx)
	return &intent, nil
}

// GetDonationIntents lists pending intents, newest first.
func GetDonationIntents(ctx context.Context) ([]*DonationIntent, error) {
	db := config.GetDB()
	var results []*DonationIntent
	if err := db.WithContext(ctx).Order("submitted_at DESC, id DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// RejectDonationIntent deletes the intent. Idempotent: rejecting an
// already-consumed or absent intent is a no-op, not an error.
func RejectDonationIntent(ctx context.Context, id int) error {
	db := config.GetDB()
	res := db.WithContext(ctx).Delete(&DonationIntent{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		bumpIntentRevision(ctx)
	}
	return nil
}

// ConsumeDonationIntent atomically reads and deletes an intent inside the
// caller's transaction. The row lock guarantees exactly one concurrent
// caller wins; losers get ErrorRecordNotFound.
func ConsumeDonationIntent(tx *gorm.DB, ctx context.Context, id int) (*DonationIntent, error) {
	var intent DonationIntent
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&intent, id).Error
	if err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	if err := tx.Delete(&DonationIntent{}, id).Error; err != nil {
		return nil, err
	}
	return &intent, nil
}

const intentRevisionKey = "rev:intents"

func bumpIntentRevision(ctx context.Context) {
	if _, err := config.IncrRedisCounter(ctx, intentRevisionKey); err != nil {
		config.LogError(config.GetLogger(), "intent.go", "bumpIntentRevision", "IncrRedisCounter", nil, err)
	}
}

func GetIntentRevision(ctx context.Context) (int64, error) {
	return config.GetRedisCounter(ctx, intentRevisionKey)
}

// BumpIntentRevision is used by the validation workflow after a commit that
// consumed an intent outside this package.
func BumpIntentRevision(ctx context.Context) {
	bumpIntentRevision(ctx)
}
