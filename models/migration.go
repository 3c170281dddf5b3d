package models

import (
	"log"

	"bitbucket.org/mmdatafocus/pharma_procure/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Medicine{}, &Supplier{},
		&ProcurementTask{}, &Quote{},
		&Negotiation{}, &NegotiationRound{},
		&SupplierScore{}, &Decision{},
		&PurchaseOrder{},
		&TaskEvent{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
