package workflow

import (
	"context"
	"time"

	"bitbucket.org/iglesiacentral/comunidad_backend/config"
	"bitbucket.org/iglesiacentral/comunidad_backend/models"
	"bitbucket.org/iglesiacentral/comunidad_backend/utils"
)

// notifyDonorEntry tells the push-notification dispatcher that a new entry
// affects a donor. Fire-and-forget: failures are logged and swallowed, a
// notification must never block or roll back a ledger write.
func notifyDonorEntry(ctx context.Context, entry *models.LedgerEntry) {
	if entry == nil || entry.EntryType != models.EntryTypeIncome || entry.DonorKey == nil {
		return
	}

	logger := config.GetLogger()
	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)

	db := config.GetDB()
	var userIds []int
	// donors who are also app users get the push; anonymous cash does not.
	// normalized_name is maintained by the User save hook with the same
	// normalization that produced the entry's donor key.
	if entry.DonorName != nil {
		if err := db.WithContext(ctx).Model(&models.User{}).
			Where("normalized_name = ?", *entry.DonorKey).
			Pluck("id", &userIds).Error; err != nil {
			config.LogError(logger, "notify.go", "notifyDonorEntry", "Pluck user ids", entry.ID, err)
			return
		}
	}
	if len(userIds) == 0 {
		return
	}

	msg := config.NotificationMessage{
		UserIds:       userIds,
		Title:         "Donación registrada",
		Body:          entry.Concept,
		EntryId:       entry.ID,
		SentAt:        time.Now().UTC(),
		CorrelationId: correlationId,
	}

	pubCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := config.PublishNotification(pubCtx, msg); err != nil {
		config.LogError(logger, "notify.go", "notifyDonorEntry", "PublishNotification", entry.ID, err)
	}
}
