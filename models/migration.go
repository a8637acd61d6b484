package models

import (
	"log"

	"bitbucket.org/iglesiacentral/comunidad_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&DonationIntent{},
		&LedgerEntry{}, &EntryEvent{},
		&DonorSummary{},
		&Event{},
		&SalaryRecord{},
		&User{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
