// ledger-verify recomputes donor aggregates from the surviving ledger
// entries and diffs them against the maintained donor_summaries rows. The
// summaries are updated transactionally with every entry write, so any drift
// reported here points at a bug or manual DB surgery; the entry_events log
// is the place to reconstruct what happened.
//
// Usage:
//   DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/ledger-verify
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"bitbucket.org/iglesiacentral/comunidad_backend/config"
	"bitbucket.org/iglesiacentral/comunidad_backend/models"
	"bitbucket.org/iglesiacentral/comunidad_backend/workflow"
	"github.com/shopspring/decimal"
)

func main() {
	fix := flag.Bool("fix", false, "Rewrite drifted donor_summaries rows from the recomputed values")
	flag.Parse()

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	entries, err := models.GetLedgerEntries(ctx, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load ledger entries: %v\n", err)
		os.Exit(1)
	}
	summaries, err := models.GetDonorSummaries(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load donor summaries: %v\n", err)
		os.Exit(1)
	}

	recomputed := workflow.FoldDonorProfiles(entries)
	recomputedByKey := make(map[string]*workflow.DonorProfile, len(recomputed))
	for _, profile := range recomputed {
		recomputedByKey[profile.DonorKey] = profile
	}
	summariesByKey := make(map[string]*models.DonorSummary, len(summaries))
	for _, summary := range summaries {
		summariesByKey[summary.DonorKey] = summary
	}

	drift := 0
	for _, profile := range recomputed {
		summary, ok := summariesByKey[profile.DonorKey]
		if !ok {
			drift++
			fmt.Printf("MISSING  %-30s recomputed total=%s count=%d, no summary row\n",
				profile.DonorKey, profile.TotalContributed, profile.ContributionCount)
			continue
		}
		if !summary.TotalContributed.Equal(profile.TotalContributed) ||
			!summary.CashTotal.Equal(profile.CashTotal) ||
			!summary.TransferTotal.Equal(profile.TransferTotal) ||
			summary.ContributionCount != profile.ContributionCount {
			drift++
			fmt.Printf("DRIFT    %-30s summary total=%s/count=%d, recomputed total=%s/count=%d\n",
				profile.DonorKey, summary.TotalContributed, summary.ContributionCount,
				profile.TotalContributed, profile.ContributionCount)
		}
	}
	for _, summary := range summaries {
		if _, ok := recomputedByKey[summary.DonorKey]; !ok {
			drift++
			fmt.Printf("ORPHAN   %-30s summary total=%s/count=%d, no surviving entries\n",
				summary.DonorKey, summary.TotalContributed, summary.ContributionCount)
		}
	}

	// Balance sanity: SUM(signed_amount) equals the fold over the loaded set.
	balance, err := models.GetLedgerBalance(ctx, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to compute balance: %v\n", err)
		os.Exit(1)
	}
	folded := decimal.Zero
	for _, entry := range entries {
		folded = folded.Add(entry.SignedAmount)
	}
	if !balance.Equal(folded) {
		drift++
		fmt.Printf("BALANCE  SUM(signed_amount)=%s, fold over %d entries=%s\n", balance, len(entries), folded)
	}

	if drift == 0 {
		fmt.Printf("OK: %d donors, %d entries, balance %s, no drift\n", len(recomputed), len(entries), balance)
		return
	}

	if !*fix {
		fmt.Printf("%d drifted rows (run with -fix to rewrite donor_summaries)\n", drift)
		os.Exit(3)
	}

	fixed := 0
	for _, profile := range recomputed {
		if err := db.WithContext(ctx).Model(&models.DonorSummary{}).Where("donor_key = ?", profile.DonorKey).
			Updates(map[string]any{
				"display_name":         profile.DisplayName,
				"contribution_count":   profile.ContributionCount,
				"total_contributed":    profile.TotalContributed,
				"cash_total":           profile.CashTotal,
				"transfer_total":       profile.TransferTotal,
				"last_contribution_at": profile.LastContributionDate,
			}).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to fix %s: %v\n", profile.DonorKey, err)
			os.Exit(1)
		}
		if _, ok := summariesByKey[profile.DonorKey]; !ok {
			summary := models.DonorSummary{
				DonorKey:           profile.DonorKey,
				DisplayName:        profile.DisplayName,
				ContributionCount:  profile.ContributionCount,
				TotalContributed:   profile.TotalContributed,
				CashTotal:          profile.CashTotal,
				TransferTotal:      profile.TransferTotal,
				LastContributionAt: profile.LastContributionDate,
			}
			if err := db.WithContext(ctx).Create(&summary).Error; err != nil {
				fmt.Fprintf(os.Stderr, "failed to create summary for %s: %v\n", profile.DonorKey, err)
				os.Exit(1)
			}
		}
		fixed++
	}
	for _, summary := range summaries {
		if _, ok := recomputedByKey[summary.DonorKey]; !ok {
			if err := db.WithContext(ctx).Where("donor_key = ?", summary.DonorKey).
				Delete(&models.DonorSummary{}).Error; err != nil {
				fmt.Fprintf(os.Stderr, "failed to delete orphan %s: %v\n", summary.DonorKey, err)
				os.Exit(1)
			}
			fixed++
		}
	}
	fmt.Printf("rewrote %d donor_summaries rows\n", fixed)
}
