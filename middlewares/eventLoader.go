package middlewares

import (
	"context"

	"bitbucket.org/iglesiacentral/comunidad_backend/models"
	"github.com/graph-gophers/dataloader/v7"
	"gorm.io/gorm"
)

type eventReader struct {
	db *gorm.DB
}

func (r *eventReader) getEvents(ctx context.Context, ids []int) []*dataloader.Result[*models.Event] {
	var results []*models.Event
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&results).Error
	if err != nil {
		return handleError[*models.Event](len(ids), err)
	}

	resultMap := make(map[int]*models.Event)
	for _, result := range results {
		resultMap[result.ID] = result
	}
	loaderResults := make([]*dataloader.Result[*models.Event], 0, len(ids))
	for _, id := range ids {
		// missing events resolve to nil; callers fall back to the entry concept
		loaderResults = append(loaderResults, &dataloader.Result[*models.Event]{Data: resultMap[id]})
	}
	return loaderResults
}

// GetEvent returns a single agenda event by id, batched per request.
func GetEvent(ctx context.Context, id int) (*models.Event, error) {
	loaders := For(ctx)
	return loaders.eventLoader.Load(ctx, id)()
}

// GetEvents returns many agenda events by ids efficiently
func GetEvents(ctx context.Context, ids []int) ([]*models.Event, []error) {
	loaders := For(ctx)
	return loaders.eventLoader.LoadMany(ctx, ids)()
}
