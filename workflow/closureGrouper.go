package workflow

import (
	"context"
	"sort"

	"bitbucket.org/iglesiacentral/comunidad_backend/config"
	"bitbucket.org/iglesiacentral/comunidad_backend/models"
	"github.com/shopspring/decimal"
)

// EventClosure is the derived per-service report: every income entry tied to
// one event, with totals and sub-type counts. Computed from the current
// ledger snapshot on demand, never stored.
type EventClosure struct {
	EventId        int                   `json:"event_id"`
	Title          string                `json:"title"`
	TotalIncome    decimal.Decimal       `json:"total_income"`
	EntryCount     int                   `json:"entry_count"`
	TithesCount    int                   `json:"tithes_count"`
	OfferingsCount int                   `json:"offerings_count"`
	Entries        []*models.LedgerEntry `json:"entries"`
}

// GroupClosures partitions income entries by event id. Entries with no event
// are never grouped; they come back in the second return value and are
// reported individually. Pure fold over the snapshot.
//
// resolveTitle maps an event id to a display title; when it reports false
// (event deleted since) the closure falls back to its first entry's concept.
func GroupClosures(entries []*models.LedgerEntry, resolveTitle func(eventId int) (string, bool)) ([]*EventClosure, []*models.LedgerEntry) {
	closuresById := make(map[int]*EventClosure)
	var ungrouped []*models.LedgerEntry

	for _, entry := range entries {
		if entry.EntryType != models.EntryTypeIncome {
			continue
		}
		if entry.EventId == nil {
			ungrouped = append(ungrouped, entry)
			continue
		}

		closure, ok := closuresById[*entry.EventId]
		if !ok {
			closure = &EventClosure{EventId: *entry.EventId, TotalIncome: decimal.Zero}
			closuresById[*entry.EventId] = closure
		}

		closure.TotalIncome = closure.TotalIncome.Add(entry.SignedAmount)
		closure.EntryCount++
		if entry.SubType != nil {
			switch *entry.SubType {
			case models.EntrySubTypeTithe:
				closure.TithesCount++
			case models.EntrySubTypeOffering:
				closure.OfferingsCount++
			}
		}
		closure.Entries = append(closure.Entries, entry)
	}

	closures := make([]*EventClosure, 0, len(closuresById))
	for _, closure := range closuresById {
		if title, ok := resolveTitle(closure.EventId); ok {
			closure.Title = title
		} else if len(closure.Entries) > 0 {
			closure.Title = closure.Entries[0].Concept
		}
		closures = append(closures, closure)
	}
	sort.Slice(closures, func(i, j int) bool {
		return closures[i].EventId < closures[j].EventId
	})

	return closures, ungrouped
}

// GetEventClosures recomputes the closure view from the current ledger.
// Titles are resolved in one batched read against the agenda's events table.
func GetEventClosures(ctx context.Context, filter *models.LedgerEntryFilter) ([]*EventClosure, []*models.LedgerEntry, error) {
	income := models.EntryTypeIncome
	if filter == nil {
		filter = &models.LedgerEntryFilter{}
	}
	filter.EntryType = &income

	entries, err := models.GetLedgerEntries(ctx, filter)
	if err != nil {
		return nil, nil, err
	}

	titles, err := eventTitlesFor(ctx, entries)
	if err != nil {
		// title resolution failing must not hide the money; fall back to concepts
		config.LogError(config.GetLogger(), "closureGrouper.go", "GetEventClosures", "eventTitlesFor", nil, err)
		titles = map[int]string{}
	}

	closures, ungrouped := GroupClosures(entries, func(eventId int) (string, bool) {
		title, ok := titles[eventId]
		return title, ok
	})
	return closures, ungrouped, nil
}

func eventTitlesFor(ctx context.Context, entries []*models.LedgerEntry) (map[int]string, error) {
	idSet := make(map[int]struct{})
	for _, entry := range entries {
		if entry.EventId != nil {
			idSet[*entry.EventId] = struct{}{}
		}
	}
	if len(idSet) == 0 {
		return map[int]string{}, nil
	}

	ids := make([]int, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}

	events, err := models.GetEventsByIds(ctx, ids)
	if err != nil {
		return nil, err
	}
	titles := make(map[int]string, len(events))
	for _, event := range events {
		titles[event.ID] = event.Title
	}
	return titles, nil
}
