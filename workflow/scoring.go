package workflow

import (
	"sort"

	"bitbucket.org/mmdatafocus/pharma_procure/models"
	"github.com/shopspring/decimal"
)

// DefaultReliability is used when a supplier has no delivery history yet.
const DefaultReliability = 75.0

type ScoreWeights struct {
	Price       float64
	Speed       float64
	Reliability float64
	Stock       float64
}

func (w ScoreWeights) Sum() float64 {
	return w.Price + w.Speed + w.Reliability + w.Stock
}

// ScenarioWeights picks the weight set for the task's context. Every set sums
// to 1.0.
func ScenarioWeights(urgency models.UrgencyLevel, budgetMode bool) ScoreWeights {
	if urgency == models.UrgencyCritical {
		return ScoreWeights{Price: 0.25, Speed: 0.50, Reliability: 0.15, Stock: 0.10}
	}
	if budgetMode {
		return ScoreWeights{Price: 0.60, Speed: 0.15, Reliability: 0.15, Stock: 0.10}
	}
	return ScoreWeights{Price: 0.40, Speed: 0.25, Reliability: 0.20, Stock: 0.15}
}

// Candidate is one supplier's best known offer, after any negotiation.
type Candidate struct {
	SupplierId        int
	SupplierName      string
	QuoteId           int
	NegotiationId     int
	UnitPrice         decimal.Decimal
	DeliveryDays      int
	QuantityAvailable int
	// Reliability 0-100; zero means unknown and gets DefaultReliability.
	Reliability float64
}

// ScoreCandidates computes the weighted multi-criteria score for each
// candidate and returns them ranked descending, rank 1 best.
//
// Price and speed scores are relative to the candidate set: the cheapest
// offer scores 100 on price and the fastest scores 100 on speed, whatever
// their absolute values. A single candidate therefore trivially scores 100 on
// both; that is intended, the scale compares offers, it does not grade them.
func ScoreCandidates(candidates []Candidate, requiredQuantity int, urgency models.UrgencyLevel, budgetMode bool) []models.SupplierScore {
	if len(candidates) == 0 {
		return nil
	}

	weights := ScenarioWeights(urgency, budgetMode)

	cheapest := candidates[0].UnitPrice
	fastest := candidates[0].DeliveryDays
	for _, c := range candidates[1:] {
		if c.UnitPrice.LessThan(cheapest) {
			cheapest = c.UnitPrice
		}
		if c.DeliveryDays < fastest {
			fastest = c.DeliveryDays
		}
	}

	budget := budgetMode
	scores := make([]models.SupplierScore, 0, len(candidates))
	for _, c := range candidates {
		priceScore := 100.0
		if c.UnitPrice.IsPositive() {
			ratio, _ := cheapest.Div(c.UnitPrice).Float64()
			priceScore = ratio * 100
		}
		speedScore := 100.0
		if c.DeliveryDays > 0 {
			speedScore = float64(fastest) / float64(c.DeliveryDays) * 100
		}
		reliabilityScore := c.Reliability
		if reliabilityScore <= 0 {
			reliabilityScore = DefaultReliability
		}
		stockScore := 100.0
		if requiredQuantity > 0 {
			stockScore = float64(c.QuantityAvailable) / float64(requiredQuantity) * 100
			if stockScore > 100 {
				stockScore = 100
			}
			if stockScore < 0 {
				stockScore = 0
			}
		}

		total := priceScore*weights.Price +
			speedScore*weights.Speed +
			reliabilityScore*weights.Reliability +
			stockScore*weights.Stock

		scores = append(scores, models.SupplierScore{
			SupplierId:        c.SupplierId,
			QuoteId:           c.QuoteId,
			PriceScore:        round2(priceScore),
			SpeedScore:        round2(speedScore),
			ReliabilityScore:  round2(reliabilityScore),
			StockScore:        round2(stockScore),
			PriceWeight:       weights.Price,
			SpeedWeight:       weights.Speed,
			ReliabilityWeight: weights.Reliability,
			StockWeight:       weights.Stock,
			TotalScore:        round2(total),
			Urgency:           urgency,
			BudgetMode:        &budget,
		})
	}

	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].TotalScore > scores[j].TotalScore
	})
	for i := range scores {
		scores[i].Rank = i + 1
	}
	return scores
}

func round2(v float64) float64 {
	d := decimal.NewFromFloat(v).Round(2)
	f, _ := d.Float64()
	return f
}
