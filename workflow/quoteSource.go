package workflow

import (
	"context"
	"fmt"

	"bitbucket.org/mmdatafocus/pharma_procure/config"
	"bitbucket.org/mmdatafocus/pharma_procure/models"
	"bitbucket.org/mmdatafocus/pharma_procure/utils"
	"github.com/shopspring/decimal"
)

// QuoteSource requests quotes from suppliers for a task. The simulated source
// answers synchronously; a real integration would fan out RFQs and let quotes
// arrive through the API.
type QuoteSource interface {
	CollectQuotes(ctx context.Context, task *models.ProcurementTask, medicine *models.Medicine) error
}

// supplierScenario describes one simulated supplier's standing behavior.
// Price factors multiply the medicine's last purchase price; when the medicine
// has no purchase history the factor stands in as the unit price itself.
type supplierScenario struct {
	Code              string
	Name              string
	Email             string
	Reliability       float64
	PriceFactor       decimal.Decimal
	DeliveryDays      int
	QuantityAvailable int
	BulkDiscount      bool
	BulkPriceFactor   decimal.Decimal
	BulkQuantity      int
	OutOfStock        bool
}

var simulatedScenarios = []supplierScenario{
	{
		Code: "SUP-001", Name: "MediSupply Co.", Email: "quotes@medisupply.example",
		Reliability: 92, PriceFactor: decimal.NewFromFloat(0.15),
		DeliveryDays: 7, QuantityAvailable: 10000,
	},
	{
		Code: "SUP-002", Name: "QuickPharm Ltd.", Email: "sales@quickpharm.example",
		Reliability: 88, PriceFactor: decimal.NewFromFloat(0.22),
		DeliveryDays: 1, QuantityAvailable: 5000,
	},
	{
		Code: "SUP-003", Name: "BulkMeds Inc.", Email: "orders@bulkmeds.example",
		Reliability: 85, PriceFactor: decimal.NewFromFloat(0.18),
		DeliveryDays: 5, QuantityAvailable: 10000,
		BulkDiscount: true, BulkPriceFactor: decimal.NewFromFloat(0.16), BulkQuantity: 8000,
	},
	{
		Code: "SUP-004", Name: "ValueRx Partners", Email: "procurement@valuerx.example",
		Reliability: 78, PriceFactor: decimal.NewFromFloat(0.20),
		DeliveryDays: 3, QuantityAvailable: 8000,
	},
	{
		Code: "SUP-005", Name: "Apex Pharma Distribution", Email: "supply@apexpharma.example",
		Reliability: 70, PriceFactor: decimal.NewFromFloat(0.17),
		DeliveryDays: 4, OutOfStock: true,
	},
}

// SimulatedQuoteSource plays five fixed supplier scenarios against a task.
// It is idempotent: re-running collection for the same task records nothing
// new because the ledger rejects duplicate (task, supplier) pairs.
type SimulatedQuoteSource struct{}

func NewSimulatedQuoteSource() *SimulatedQuoteSource {
	return &SimulatedQuoteSource{}
}

func (s *SimulatedQuoteSource) CollectQuotes(ctx context.Context, task *models.ProcurementTask, medicine *models.Medicine) error {
	basePrice := medicine.LastPurchasePrice
	if !basePrice.IsPositive() {
		basePrice = decimal.NewFromInt(1)
	}

	for _, scenario := range simulatedScenarios {
		supplier, err := s.ensureSupplier(ctx, scenario)
		if err != nil {
			return err
		}
		if scenario.OutOfStock {
			config.LogActivity(config.GetLogger(), "QUOTE_COLLECTION", task.ID,
				fmt.Sprintf("%s reports out of stock, no quote", supplier.Name), nil)
			continue
		}

		input := &models.NewQuote{
			SupplierId:          supplier.ID,
			UnitPrice:           basePrice.Mul(scenario.PriceFactor).Round(4),
			QuantityAvailable:   scenario.QuantityAvailable,
			DeliveryDays:        scenario.DeliveryDays,
			ResponseTimeSeconds: scenario.DeliveryDays * 60,
		}
		if scenario.BulkDiscount {
			input.BulkDiscountAvailable = true
			input.BulkDiscountPrice = basePrice.Mul(scenario.BulkPriceFactor).Round(4)
			input.BulkDiscountQuantity = scenario.BulkQuantity
		}
		if _, err := RecordTaskQuote(ctx, task, input); err != nil {
			return err
		}
	}
	return nil
}

func (s *SimulatedQuoteSource) ensureSupplier(ctx context.Context, scenario supplierScenario) (*models.Supplier, error) {
	supplier, err := models.GetSupplierByCode(ctx, scenario.Code)
	if err == nil {
		return supplier, nil
	}
	if err != utils.ErrorRecordNotFound {
		return nil, err
	}
	return models.CreateSupplier(ctx, &models.NewSupplier{
		Code:             scenario.Code,
		Name:             scenario.Name,
		Email:            scenario.Email,
		ReliabilityScore: scenario.Reliability,
		Notes:            "simulated supplier",
	})
}

// ActiveQuoteSource picks the configured source. Only the simulation exists
// today; a live RFQ integration would slot in here.
func ActiveQuoteSource() QuoteSource {
	if config.SimulateSuppliers() {
		return NewSimulatedQuoteSource()
	}
	return noopQuoteSource{}
}

// noopQuoteSource covers deployments where quotes arrive only via the API.
type noopQuoteSource struct{}

func (noopQuoteSource) CollectQuotes(ctx context.Context, task *models.ProcurementTask, medicine *models.Medicine) error {
	return nil
}
