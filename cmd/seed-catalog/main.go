// seed-catalog loads a starter set of medicines and suppliers for local
// development and demos.
//
// Usage (from backend directory):
//   DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/seed-catalog
package main

import (
	"context"
	"fmt"
	"os"

	"bitbucket.org/mmdatafocus/pharma_procure/config"
	"bitbucket.org/mmdatafocus/pharma_procure/models"
	"bitbucket.org/mmdatafocus/pharma_procure/utils"
	"github.com/shopspring/decimal"
)

func main() {
	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}
	models.MigrateTable()

	medicines := []models.NewMedicine{
		{Name: "Paracetamol 500mg", Dosage: "500mg", Form: "tablet", Category: "analgesic",
			CurrentStock: 1200, AverageDailySales: decimal.NewFromInt(150), SafetyStock: 1000, ReorderPoint: 2000},
		{Name: "Amoxicillin 250mg", Dosage: "250mg", Form: "capsule", Category: "antibiotic",
			CurrentStock: 400, AverageDailySales: decimal.NewFromInt(60), SafetyStock: 500, ReorderPoint: 900},
		{Name: "Metformin 850mg", Dosage: "850mg", Form: "tablet", Category: "antidiabetic",
			CurrentStock: 2500, AverageDailySales: decimal.NewFromInt(80), SafetyStock: 800, ReorderPoint: 1500},
		{Name: "Omeprazole 20mg", Dosage: "20mg", Form: "capsule", Category: "antacid",
			CurrentStock: 300, AverageDailySales: decimal.NewFromInt(40), SafetyStock: 400, ReorderPoint: 700},
	}
	for i := range medicines {
		if _, err := models.CreateMedicine(ctx, &medicines[i]); err != nil {
			fmt.Fprintf(os.Stderr, "failed to seed medicine %s: %v\n", medicines[i].Name, err)
			os.Exit(1)
		}
		fmt.Println("seeded medicine:", medicines[i].Name)
	}

	suppliers := []models.NewSupplier{
		{Code: "SUP-001", Name: "MediSupply Co.", Email: "quotes@medisupply.example", ReliabilityScore: 92},
		{Code: "SUP-002", Name: "QuickPharm Ltd.", Email: "sales@quickpharm.example", ReliabilityScore: 88},
		{Code: "SUP-003", Name: "BulkMeds Inc.", Email: "orders@bulkmeds.example", ReliabilityScore: 85},
		{Code: "SUP-004", Name: "ValueRx Partners", Email: "procurement@valuerx.example", ReliabilityScore: 78},
		{Code: "SUP-005", Name: "Apex Pharma Distribution", Email: "supply@apexpharma.example", ReliabilityScore: 70},
	}
	for i := range suppliers {
		if _, err := models.GetSupplierByCode(ctx, suppliers[i].Code); err == nil {
			fmt.Println("supplier exists, skipping:", suppliers[i].Code)
			continue
		} else if err != utils.ErrorRecordNotFound {
			fmt.Fprintf(os.Stderr, "failed to lookup supplier %s: %v\n", suppliers[i].Code, err)
			os.Exit(1)
		}
		if _, err := models.CreateSupplier(ctx, &suppliers[i]); err != nil {
			fmt.Fprintf(os.Stderr, "failed to seed supplier %s: %v\n", suppliers[i].Code, err)
			os.Exit(1)
		}
		fmt.Println("seeded supplier:", suppliers[i].Code)
	}

	fmt.Println("catalog seeded")
}
