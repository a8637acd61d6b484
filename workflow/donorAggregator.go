package workflow

import (
	"context"
	"sort"
	"strings"
	"time"

	"bitbucket.org/iglesiacentral/comunidad_backend/config"
	"bitbucket.org/iglesiacentral/comunidad_backend/models"
	"bitbucket.org/iglesiacentral/comunidad_backend/utils"
	"github.com/shopspring/decimal"
)

// PrayerNote is one prayer request in a donor's history, kept in
// chronological order.
type PrayerNote struct {
	Text string    `json:"text"`
	Date time.Time `json:"date"`
}

// DonorProfile is the derived per-donor view over the scoped ledger
// snapshot. Unlike models.DonorSummary it is recomputed per request, so it
// can honor arbitrary scope filters.
type DonorProfile struct {
	DonorKey             string          `json:"donor_key"`
	DisplayName          string          `json:"display_name"`
	ContributionCount    int             `json:"contribution_count"`
	TotalContributed     decimal.Decimal `json:"total_contributed"`
	CashTotal            decimal.Decimal `json:"cash_total"`
	TransferTotal        decimal.Decimal `json:"transfer_total"`
	LastContributionDate *time.Time      `json:"last_contribution_date"`
	PrayerRequests       []PrayerNote    `json:"prayer_requests"`
	SourceEntryIds       []int           `json:"source_entry_ids"`
}

// FoldDonorProfiles groups income entries by donor key. Expense entries and
// entries with no donor are skipped; display name is first-seen in
// chronological order. Pure fold, deterministic for a given snapshot.
func FoldDonorProfiles(entries []*models.LedgerEntry) []*DonorProfile {
	ordered := make([]*models.LedgerEntry, len(entries))
	copy(ordered, entries)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].CreatedAt.Equal(ordered[j].CreatedAt) {
			return ordered[i].ID < ordered[j].ID
		}
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})

	profilesByKey := make(map[string]*DonorProfile)
	var keys []string

	for _, entry := range ordered {
		if entry.EntryType != models.EntryTypeIncome || entry.DonorKey == nil {
			continue
		}
		key := *entry.DonorKey

		profile, ok := profilesByKey[key]
		if !ok {
			profile = &DonorProfile{
				DonorKey:         key,
				TotalContributed: decimal.Zero,
				CashTotal:        decimal.Zero,
				TransferTotal:    decimal.Zero,
			}
			if entry.DonorName != nil {
				profile.DisplayName = *entry.DonorName
			} else {
				profile.DisplayName = key
			}
			profilesByKey[key] = profile
			keys = append(keys, key)
		}

		profile.ContributionCount++
		profile.TotalContributed = profile.TotalContributed.Add(entry.SignedAmount)
		if entry.PaymentMethod.IsCash() {
			profile.CashTotal = profile.CashTotal.Add(entry.SignedAmount)
		} else {
			profile.TransferTotal = profile.TransferTotal.Add(entry.SignedAmount)
		}
		if profile.LastContributionDate == nil || entry.CreatedAt.After(*profile.LastContributionDate) {
			t := entry.CreatedAt
			profile.LastContributionDate = &t
		}
		if entry.PrayerRequest != nil && strings.TrimSpace(*entry.PrayerRequest) != "" {
			profile.PrayerRequests = append(profile.PrayerRequests, PrayerNote{
				Text: *entry.PrayerRequest,
				Date: entry.CreatedAt,
			})
		}
		profile.SourceEntryIds = append(profile.SourceEntryIds, entry.ID)
	}

	profiles := make([]*DonorProfile, 0, len(keys))
	for _, key := range keys {
		profiles = append(profiles, profilesByKey[key])
	}
	sort.Slice(profiles, func(i, j int) bool {
		return profiles[i].TotalContributed.GreaterThan(profiles[j].TotalContributed)
	})
	return profiles
}

// DonorScope narrows the profile view: a relative time scope
// ("week" | "month" | "year", empty means all time) and an optional
// case-insensitive event-title fragment.
type DonorScope struct {
	Scope      string `form:"scope" json:"scope"`
	EventTitle string `form:"event_title" json:"event_title"`
}

// GetDonorProfiles recomputes donor profiles from the scoped ledger
// snapshot. The maintained donor_summaries table stays untouched; this is
// the read path that supports filtering.
func GetDonorProfiles(ctx context.Context, scope DonorScope) ([]*DonorProfile, error) {
	income := models.EntryTypeIncome
	filter := &models.LedgerEntryFilter{EntryType: &income}

	if scope.Scope != "" {
		window := utils.WindowForScope(scope.Scope, time.Now())
		if !window.From.IsZero() {
			filter.From = &window.From
			filter.To = &window.To
		}
	}

	entries, err := models.GetLedgerEntries(ctx, filter)
	if err != nil {
		return nil, err
	}

	if fragment := strings.TrimSpace(scope.EventTitle); fragment != "" {
		entries, err = filterByEventTitle(ctx, entries, fragment)
		if err != nil {
			return nil, err
		}
	}

	return FoldDonorProfiles(entries), nil
}

func filterByEventTitle(ctx context.Context, entries []*models.LedgerEntry, fragment string) ([]*models.LedgerEntry, error) {
	titles, err := eventTitlesFor(ctx, entries)
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(fragment)
	var matched []*models.LedgerEntry
	for _, entry := range entries {
		if entry.EventId == nil {
			continue
		}
		if title, ok := titles[*entry.EventId]; ok && strings.Contains(strings.ToLower(title), needle) {
			matched = append(matched, entry)
		}
	}
	return matched, nil
}

// DeleteDonorFamily removes every ledger entry behind one donor profile in a
// single transaction, for data-correction and privacy requests. Admin only;
// the audit note is mandatory since this rewrites financial history.
func DeleteDonorFamily(ctx context.Context, donorKey string, auditNote string) (int, error) {
	if err := models.RequireRole(ctx, models.UserRoleAdmin); err != nil {
		return 0, err
	}
	auditNote = strings.TrimSpace(auditNote)
	if auditNote == "" {
		return 0, utils.ErrorAuditNoteRequired
	}
	key := utils.NormalizeDonorName(donorKey)

	removed, err := models.PurgeDonorEntries(ctx, key, auditNote)
	if err != nil {
		config.LogError(config.GetLogger(), "donorAggregator.go", "DeleteDonorFamily", "PurgeDonorEntries", key, err)
		return 0, err
	}
	if len(removed) == 0 {
		return 0, utils.ErrorRecordNotFound
	}
	return len(removed), nil
}
