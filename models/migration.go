package models

import (
	"log"

	"github.com/venpus/labsemble-v1-1-sub002/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&User{},
		&Project{},
		&ProjectPayment{}, &PaymentCostItem{},
		&WarehouseEntry{},
		&SupplierLedgerEntry{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
