package models

import (
	"log"

	"bitbucket.org/mmdatafocus/lottery_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Store{},
		&Shift{}, &Pack{},
		&ShiftOpening{}, &ShiftClosing{}, &ShiftVariance{},
		&TicketSale{},
		&History{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
