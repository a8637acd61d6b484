package models

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"bitbucket.org/iglesiacentral/comunidad_backend/config"
	"bitbucket.org/iglesiacentral/comunidad_backend/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EntryEvent is the append-only change log underneath the mutable ledger
// projection. Every create/edit/delete of a LedgerEntry writes one row here
// in the same transaction. Rows are never updated or deleted.
type EntryEvent struct {
	ID            int              `gorm:"primary_key" json:"id"`
	EntryId       int              `gorm:"index;not null" json:"entry_id"`
	Action        EntryEventAction `gorm:"type:enum('C','U','D');not null" json:"action"`
	OldObj        []byte           `gorm:"type:blob" json:"old_obj"`
	NewObj        []byte           `gorm:"type:blob" json:"new_obj"`
	ActorId       int              `gorm:"index" json:"actor_id"`
	ActorName     string           `gorm:"size:255" json:"actor_name"`
	AuditNote     *string          `gorm:"type:text" json:"audit_note"`
	CorrelationId string           `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt     time.Time        `gorm:"autoCreateTime;index" json:"created_at"`
}

// Audit log guardrails: entry_events are append-only.

func (e *EntryEvent) BeforeUpdate(tx *gorm.DB) error {
	return errors.New("audit log: entry_events cannot be updated")
}

func (e *EntryEvent) BeforeDelete(tx *gorm.DB) error {
	return errors.New("audit log: entry_events cannot be deleted")
}

func appendEntryEvent(tx *gorm.DB, ctx context.Context, action EntryEventAction, entryId int, oldEntry *LedgerEntry, newEntry *LedgerEntry, auditNote *string) error {
	var oldObj, newObj []byte
	var err error

	if oldEntry != nil {
		if oldObj, err = json.Marshal(oldEntry); err != nil {
			return err
		}
	}
	if newEntry != nil {
		if newObj, err = json.Marshal(newEntry); err != nil {
			return err
		}
	}

	actorId, _ := utils.GetUserIdFromContext(ctx)
	actorName, _ := utils.GetDisplayNameFromContext(ctx)

	event := EntryEvent{
		EntryId:       entryId,
		Action:        action,
		OldObj:        oldObj,
		NewObj:        newObj,
		ActorId:       actorId,
		ActorName:     actorName,
		AuditNote:     auditNote,
		CorrelationId: correlationIdFromContextOrNew(ctx),
	}
	return tx.Create(&event).Error
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}

// GetEntryEvents returns the change history of one entry, oldest first.
func GetEntryEvents(ctx context.Context, entryId int) ([]*EntryEvent, error) {
	db := config.GetDB()
	var events []*EntryEvent
	if err := db.WithContext(ctx).Where("entry_id = ?", entryId).Order("id").Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}
