package workflow

import (
	"testing"
	"time"

	"bitbucket.org/iglesiacentral/comunidad_backend/models"
	"bitbucket.org/iglesiacentral/comunidad_backend/utils"
	"github.com/shopspring/decimal"
)

func donorEntry(id int, name string, amount string, method models.PaymentMethod, prayer *string, at time.Time) *models.LedgerEntry {
	key := utils.NormalizeDonorName(name)
	return &models.LedgerEntry{
		ID:            id,
		Concept:       "Donación validada: " + name,
		SignedAmount:  d(amount),
		EntryType:     models.EntryTypeIncome,
		PaymentMethod: method,
		DonorName:     &name,
		DonorKey:      &key,
		PrayerRequest: prayer,
		CreatedAt:     at,
	}
}

func TestFoldDonorProfiles(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	p1, p2 := "por mi madre", "gracias"

	entries := []*models.LedgerEntry{
		// deliberately out of chronological order
		donorEntry(3, "maria perez", "200", models.PaymentMethodTransfer, &p2, base.Add(48*time.Hour)),
		donorEntry(1, "María Pérez", "100", models.PaymentMethodCash, &p1, base),
		donorEntry(2, "Juan", "50", models.PaymentMethodCash, nil, base.Add(time.Hour)),
		{ID: 4, Concept: "Luz", SignedAmount: d("-30"), EntryType: models.EntryTypeExpense, CreatedAt: base},
	}

	profiles := FoldDonorProfiles(entries)
	if len(profiles) != 2 {
		t.Fatalf("expected 2 profiles, got %d", len(profiles))
	}

	// sorted by total contributed, María first
	maria := profiles[0]
	if maria.DonorKey != "maria perez" {
		t.Fatalf("top profile key = %q", maria.DonorKey)
	}
	// first-seen display name is chronological, so the accented original wins
	if maria.DisplayName != "María Pérez" {
		t.Errorf("display name = %q, want first-seen María Pérez", maria.DisplayName)
	}
	if maria.ContributionCount != 2 || !maria.TotalContributed.Equal(d("300")) {
		t.Errorf("maria totals = %d/%s", maria.ContributionCount, maria.TotalContributed)
	}
	if !maria.CashTotal.Equal(d("100")) || !maria.TransferTotal.Equal(d("200")) {
		t.Errorf("maria cash/transfer = %s/%s", maria.CashTotal, maria.TransferTotal)
	}
	if maria.LastContributionDate == nil || !maria.LastContributionDate.Equal(base.Add(48*time.Hour)) {
		t.Errorf("maria last contribution = %v", maria.LastContributionDate)
	}
	if len(maria.PrayerRequests) != 2 || maria.PrayerRequests[0].Text != p1 || maria.PrayerRequests[1].Text != p2 {
		t.Errorf("prayer history out of order: %v", maria.PrayerRequests)
	}
	if len(maria.SourceEntryIds) != 2 || maria.SourceEntryIds[0] != 1 || maria.SourceEntryIds[1] != 3 {
		t.Errorf("source entry ids = %v", maria.SourceEntryIds)
	}

	juan := profiles[1]
	if juan.DonorKey != "juan" || juan.ContributionCount != 1 || !juan.TotalContributed.Equal(d("50")) {
		t.Errorf("juan profile = %+v", juan)
	}
}

// Every scoped income amount must land in exactly one profile: the sum of
// profile totals equals the income sum of the snapshot.
func TestFoldDonorProfiles_ConservesIncome(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	entries := []*models.LedgerEntry{
		donorEntry(1, "Ana", "10.10", models.PaymentMethodCash, nil, base),
		donorEntry(2, "ana", "20.20", models.PaymentMethodTransfer, nil, base.Add(time.Hour)),
		donorEntry(3, "Pedro", "30.30", models.PaymentMethodCheck, nil, base.Add(2*time.Hour)),
		donorEntry(4, utils.AnonymousDonorKey, "5", models.PaymentMethodCash, nil, base),
	}

	profiles := FoldDonorProfiles(entries)

	var totals, perMethod []decimal.Decimal
	for _, profile := range profiles {
		totals = append(totals, profile.TotalContributed)
		perMethod = append(perMethod, profile.CashTotal, profile.TransferTotal)
	}
	want := d("65.60")
	if got := utils.SumDecimals(totals); !got.Equal(want) {
		t.Errorf("profile totals sum = %s, want %s", got, want)
	}
	// cash + transfer buckets also partition the same money
	if got := utils.SumDecimals(perMethod); !got.Equal(want) {
		t.Errorf("cash+transfer sum = %s, want %s", got, want)
	}
}

func TestFoldDonorProfiles_SkipsEntriesWithoutDonor(t *testing.T) {
	entries := []*models.LedgerEntry{
		{ID: 1, SignedAmount: d("500"), EntryType: models.EntryTypeIncome,
			CreatedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
	}
	if profiles := FoldDonorProfiles(entries); len(profiles) != 0 {
		t.Fatalf("donorless income must not produce a profile, got %d", len(profiles))
	}
}

func TestFoldDonorProfiles_BlankPrayerRequestIgnored(t *testing.T) {
	blank := "   "
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	entries := []*models.LedgerEntry{
		donorEntry(1, "Ana", "10", models.PaymentMethodCash, &blank, base),
	}
	profiles := FoldDonorProfiles(entries)
	if len(profiles) != 1 {
		t.Fatalf("expected 1 profile, got %d", len(profiles))
	}
	if len(profiles[0].PrayerRequests) != 0 {
		t.Errorf("blank prayer request must be dropped, got %v", profiles[0].PrayerRequests)
	}
}
