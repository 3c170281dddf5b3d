package workflow

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/pharma_procure/config"
	"bitbucket.org/mmdatafocus/pharma_procure/models"
	"bitbucket.org/mmdatafocus/pharma_procure/utils"
	"github.com/shopspring/decimal"
)

// QuoteSummary condenses the quotes collected for a task.
type QuoteSummary struct {
	TotalQuotes    int             `json:"total_quotes"`
	AwaitingQuotes bool            `json:"awaiting_quotes"`
	TimeoutReached bool            `json:"timeout_reached"`
	CheapestPrice  decimal.Decimal `json:"cheapest_price"`
	FastestDays    int             `json:"fastest_delivery_days"`
	AveragePrice   decimal.Decimal `json:"average_price"`
	MaxPrice       decimal.Decimal `json:"max_price"`
	SpreadPercent  decimal.Decimal `json:"spread_percent"`
}

// QuoteComparisonRow carries per-quote color coding for the comparison table.
type QuoteComparisonRow struct {
	QuoteId       int             `json:"quote_id"`
	SupplierId    int             `json:"supplier_id"`
	SupplierName  string          `json:"supplier_name"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	TotalPrice    decimal.Decimal `json:"total_price"`
	DeliveryDays  int             `json:"delivery_days"`
	StockAvail    int             `json:"stock_available"`
	PriceColor    string          `json:"price_color"`
	DeliveryColor string          `json:"delivery_color"`
	Reliability   float64         `json:"reliability_score"`
}

type PriceSpikeResult struct {
	SpikeDetected bool            `json:"spike_detected"`
	CurrentAvg    decimal.Decimal `json:"current_avg"`
	HistoricalAvg decimal.Decimal `json:"historical_avg"`
	SpikePercent  decimal.Decimal `json:"spike_percent"`
	HasHistory    bool            `json:"has_history"`
}

// SummarizeQuotes is the pure core of the ledger summary.
func SummarizeQuotes(quotes []models.Quote, timeoutReached bool) QuoteSummary {
	if len(quotes) == 0 {
		return QuoteSummary{AwaitingQuotes: true, TimeoutReached: timeoutReached}
	}

	cheapest := quotes[0].UnitPrice
	maxPrice := quotes[0].UnitPrice
	fastest := quotes[0].DeliveryDays
	sum := decimal.Zero
	for _, q := range quotes {
		if q.UnitPrice.LessThan(cheapest) {
			cheapest = q.UnitPrice
		}
		if q.UnitPrice.GreaterThan(maxPrice) {
			maxPrice = q.UnitPrice
		}
		if q.DeliveryDays < fastest {
			fastest = q.DeliveryDays
		}
		sum = sum.Add(q.UnitPrice)
	}

	spread := decimal.Zero
	if cheapest.IsPositive() {
		spread = maxPrice.Sub(cheapest).Div(cheapest).Mul(decimal.NewFromInt(100)).Round(2)
	}

	return QuoteSummary{
		TotalQuotes:    len(quotes),
		TimeoutReached: timeoutReached,
		CheapestPrice:  cheapest,
		FastestDays:    fastest,
		AveragePrice:   sum.Div(decimal.NewFromInt(int64(len(quotes)))).Round(4),
		MaxPrice:       maxPrice,
		SpreadPercent:  spread,
	}
}

// CollectionTimedOut reports whether the collection window has elapsed.
func CollectionTimedOut(taskCreatedAt time.Time, now time.Time, window time.Duration) bool {
	return now.Sub(taskCreatedAt) >= window
}

// ReadyForNextStage decides whether quote collection is complete: two or more
// quotes, or the window has elapsed with at least one. A timed-out window
// with zero quotes is an escalation, not a silent continue.
func ReadyForNextStage(quoteCount int, timedOut bool) (ready bool, escalate bool) {
	if quoteCount >= 2 {
		return true, false
	}
	if timedOut {
		if quoteCount >= 1 {
			return true, false
		}
		return false, true
	}
	return false, false
}

const quoteSummaryCacheTTL = 30 * time.Second

func quoteSummaryCacheKey(taskId int) string {
	return fmt.Sprintf("quoteSummary:%d", taskId)
}

// SummarizeTask is the DB edge: loads the task's quotes and caches the result
// briefly since the dashboard polls it.
func SummarizeTask(ctx context.Context, task *models.ProcurementTask) (QuoteSummary, error) {
	var cached QuoteSummary
	if ok, err := config.GetRedisObject(quoteSummaryCacheKey(task.ID), &cached); err == nil && ok {
		return cached, nil
	}

	quotes, err := models.QuotesForTask(ctx, task.ID)
	if err != nil {
		return QuoteSummary{}, err
	}
	timedOut := CollectionTimedOut(task.CreatedAt, time.Now().UTC(), config.QuoteCollectionWindow())
	summary := SummarizeQuotes(quotes, timedOut)

	_ = config.SetRedisObject(quoteSummaryCacheKey(task.ID), summary, quoteSummaryCacheTTL)
	return summary, nil
}

// InvalidateQuoteSummary clears the cached summary after a new quote lands.
func InvalidateQuoteSummary(taskId int) {
	_ = config.RemoveRedisKey(quoteSummaryCacheKey(taskId))
}

// ComparisonTable builds the color-coded quote table for review.
func ComparisonTable(ctx context.Context, task *models.ProcurementTask) ([]QuoteComparisonRow, error) {
	quotes, err := models.QuotesForTask(ctx, task.ID)
	if err != nil {
		return nil, err
	}
	if len(quotes) == 0 {
		return []QuoteComparisonRow{}, nil
	}

	supplierIds := make([]int, 0, len(quotes))
	for _, q := range quotes {
		supplierIds = append(supplierIds, q.SupplierId)
	}
	suppliers, err := models.SuppliersByIds(ctx, supplierIds)
	if err != nil {
		return nil, err
	}

	minPrice := quotes[0].UnitPrice
	minDelivery := quotes[0].DeliveryDays
	for _, q := range quotes[1:] {
		if q.UnitPrice.LessThan(minPrice) {
			minPrice = q.UnitPrice
		}
		if q.DeliveryDays < minDelivery {
			minDelivery = q.DeliveryDays
		}
	}

	rows := make([]QuoteComparisonRow, 0, len(quotes))
	for _, q := range quotes {
		supplier := suppliers[q.SupplierId]
		rows = append(rows, QuoteComparisonRow{
			QuoteId:       q.ID,
			SupplierId:    q.SupplierId,
			SupplierName:  supplier.Name,
			UnitPrice:     q.UnitPrice,
			TotalPrice:    q.UnitPrice.Mul(decimal.NewFromInt(int64(task.RequiredQuantity))),
			DeliveryDays:  q.DeliveryDays,
			StockAvail:    q.QuantityAvailable,
			PriceColor:    priceColor(q.UnitPrice, minPrice),
			DeliveryColor: deliveryColor(q.DeliveryDays, minDelivery),
			Reliability:   reliabilityOrDefault(supplier.ReliabilityScore),
		})
	}
	return rows, nil
}

func priceColor(price decimal.Decimal, minPrice decimal.Decimal) string {
	if price.Equal(minPrice) {
		return "green"
	}
	// 20% over the cheapest reads as expensive.
	if price.GreaterThan(minPrice.Mul(decimal.NewFromFloat(1.2))) {
		return "red"
	}
	return "yellow"
}

func deliveryColor(days int, minDays int) string {
	if days == minDays {
		return "green"
	}
	if float64(days) > float64(minDays)*1.5 {
		return "red"
	}
	return "yellow"
}

func reliabilityOrDefault(score float64) float64 {
	if score <= 0 {
		return DefaultReliability
	}
	return score
}

// CheckPriceSpike compares the current quote average for a task's medicine
// against the trailing 30-day average from other tasks.
func CheckPriceSpike(ctx context.Context, task *models.ProcurementTask) (PriceSpikeResult, error) {
	quotes, err := models.QuotesForTask(ctx, task.ID)
	if err != nil {
		return PriceSpikeResult{}, err
	}
	if len(quotes) == 0 {
		return PriceSpikeResult{}, nil
	}

	sum := decimal.Zero
	for _, q := range quotes {
		sum = sum.Add(q.UnitPrice)
	}
	currentAvg := sum.Div(decimal.NewFromInt(int64(len(quotes))))

	since := time.Now().UTC().AddDate(0, 0, -30)
	historical, err := models.HistoricalQuotesForMedicine(ctx, task.MedicineId, task.ID, since)
	if err != nil {
		return PriceSpikeResult{}, err
	}
	if len(historical) == 0 {
		return PriceSpikeResult{CurrentAvg: currentAvg.Round(4)}, nil
	}

	histSum := decimal.Zero
	for _, q := range historical {
		histSum = histSum.Add(q.UnitPrice)
	}
	historicalAvg := histSum.Div(decimal.NewFromInt(int64(len(historical))))

	spikePercent := decimal.Zero
	if historicalAvg.IsPositive() {
		spikePercent = currentAvg.Sub(historicalAvg).Div(historicalAvg).Mul(decimal.NewFromInt(100)).Round(2)
	}
	threshold := decimal.NewFromInt(int64(config.PriceSpikePercent()))

	result := PriceSpikeResult{
		SpikeDetected: spikePercent.GreaterThan(threshold),
		CurrentAvg:    currentAvg.Round(4),
		HistoricalAvg: historicalAvg.Round(4),
		SpikePercent:  spikePercent,
		HasHistory:    true,
	}
	if result.SpikeDetected {
		config.LogActivity(config.GetLogger(), "QUOTE_LEDGER", task.ID,
			fmt.Sprintf("price spike detected: current avg %s vs historical %s (%s%%)",
				result.CurrentAvg, result.HistoricalAvg, result.SpikePercent), nil)
	}
	return result, nil
}

// RecordTaskQuote persists an inbound quote and refreshes the cached summary.
func RecordTaskQuote(ctx context.Context, task *models.ProcurementTask, input *models.NewQuote) (*models.Quote, error) {
	quote, err := models.RecordQuote(ctx, task.ID, input)
	if err != nil {
		if err == utils.ErrorDuplicateQuote {
			// Second quote for the same pair is ignored, never duplicated.
			return quote, nil
		}
		return nil, err
	}
	InvalidateQuoteSummary(task.ID)
	config.LogActivity(config.GetLogger(), "QUOTE_LEDGER", task.ID,
		fmt.Sprintf("quote received: $%s/unit, %d days (supplier %d)",
			quote.UnitPrice.StringFixed(2), quote.DeliveryDays, quote.SupplierId), nil)
	return quote, nil
}
