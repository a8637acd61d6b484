package models

import (
	"context"
	"strconv"
	"time"

	"bitbucket.org/iglesiacentral/comunidad_backend/config"
	"bitbucket.org/iglesiacentral/comunidad_backend/utils"
)

// Event mirrors the agenda service's events table. The reconciliation core
// only ever reads it: entries reference events, closures resolve titles from
// it. Never written from this codebase.
type Event struct {
	ID       int       `gorm:"primary_key" json:"id"`
	Title    string    `gorm:"size:255;not null" json:"title"`
	StartsAt time.Time `gorm:"index;not null" json:"starts_at"`
	Location string    `gorm:"size:255" json:"location"`
}

func (e Event) GetId() int {
	return e.ID
}

// ResolveEvent returns an event's title data, redis-cached. Events rarely
// change after creation so the cache has no expiry; a deleted event simply
// stops resolving and callers fall back to entry concepts.
func ResolveEvent(ctx context.Context, id int) (*Event, error) {
	key := "Event:" + strconv.Itoa(id)

	var event Event
	exists, err := config.GetRedisObject(key, &event)
	if err != nil {
		return nil, err
	}
	if exists {
		return &event, nil
	}

	result, err := utils.FetchModel[Event](ctx, id)
	if err != nil {
		return nil, err
	}
	if err := config.SetRedisObject(key, result, 0); err != nil {
		config.LogError(config.GetLogger(), "event.go", "ResolveEvent", "SetRedisObject", key, err)
	}
	return result, nil
}

// ListEventsOnDate returns the agenda's events for one calendar day, used by
// the validation dialog to offer a closure selection.
func ListEventsOnDate(ctx context.Context, date time.Time) ([]*Event, error) {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	db := config.GetDB()
	var results []*Event
	err := db.WithContext(ctx).
		Where("starts_at >= ? AND starts_at < ?", dayStart, dayEnd).
		Order("starts_at").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// GetEventsByIds batch-fetches events; used by the dataloader middleware.
func GetEventsByIds(ctx context.Context, ids []int) ([]*Event, error) {
	db := config.GetDB()
	var results []*Event
	if err := db.WithContext(ctx).Where("id IN ?", ids).Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
