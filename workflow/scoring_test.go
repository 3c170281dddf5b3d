package workflow

import (
	"math"
	"testing"

	"bitbucket.org/mmdatafocus/pharma_procure/models"
	"github.com/shopspring/decimal"
)

// NOTE: These tests are intentionally DB-free. They validate scoring semantics
// on in-memory candidates; persistence is exercised separately.

func candidateSet() []Candidate {
	return []Candidate{
		{SupplierId: 1, SupplierName: "MediSupply Co.", QuoteId: 11, UnitPrice: decimal.NewFromFloat(0.15), DeliveryDays: 7, QuantityAvailable: 10000, Reliability: 92},
		{SupplierId: 2, SupplierName: "QuickPharm Ltd.", QuoteId: 12, UnitPrice: decimal.NewFromFloat(0.22), DeliveryDays: 1, QuantityAvailable: 5000, Reliability: 88},
		{SupplierId: 3, SupplierName: "BulkMeds Inc.", QuoteId: 13, UnitPrice: decimal.NewFromFloat(0.18), DeliveryDays: 5, QuantityAvailable: 10000, Reliability: 85},
		{SupplierId: 4, SupplierName: "ValueRx Partners", QuoteId: 14, UnitPrice: decimal.NewFromFloat(0.20), DeliveryDays: 3, QuantityAvailable: 8000, Reliability: 78},
	}
}

func TestScenarioWeights_SumToOne(t *testing.T) {
	cases := []struct {
		urgency    models.UrgencyLevel
		budgetMode bool
	}{
		{models.UrgencyCritical, false},
		{models.UrgencyHigh, false},
		{models.UrgencyMedium, false},
		{models.UrgencyLow, false},
		{models.UrgencyMedium, true},
		{models.UrgencyCritical, true},
	}
	for _, tc := range cases {
		w := ScenarioWeights(tc.urgency, tc.budgetMode)
		if math.Abs(w.Sum()-1.0) > 1e-9 {
			t.Errorf("weights for %s budget=%v sum to %v, want 1.0", tc.urgency, tc.budgetMode, w.Sum())
		}
	}
}

func TestScenarioWeights_CriticalFavorsSpeed(t *testing.T) {
	w := ScenarioWeights(models.UrgencyCritical, false)
	if w.Speed <= w.Price || w.Speed <= w.Reliability || w.Speed <= w.Stock {
		t.Errorf("critical urgency should weight speed highest, got %+v", w)
	}
}

func TestScenarioWeights_BudgetModeFavorsPrice(t *testing.T) {
	w := ScenarioWeights(models.UrgencyMedium, true)
	if w.Price <= w.Speed || w.Price <= w.Reliability || w.Price <= w.Stock {
		t.Errorf("budget mode should weight price highest, got %+v", w)
	}
}

func TestScoreCandidates_ExtremaScoreFull(t *testing.T) {
	scores := ScoreCandidates(candidateSet(), 5000, models.UrgencyMedium, false)

	bySupplier := map[int]models.SupplierScore{}
	for _, s := range scores {
		bySupplier[s.SupplierId] = s
	}
	if bySupplier[1].PriceScore != 100 {
		t.Errorf("cheapest supplier price score = %v, want 100", bySupplier[1].PriceScore)
	}
	if bySupplier[2].SpeedScore != 100 {
		t.Errorf("fastest supplier speed score = %v, want 100", bySupplier[2].SpeedScore)
	}
}

func TestScoreCandidates_StockScoreCapped(t *testing.T) {
	scores := ScoreCandidates(candidateSet(), 10000, models.UrgencyMedium, false)
	for _, s := range scores {
		if s.StockScore < 0 || s.StockScore > 100 {
			t.Errorf("stock score %v for supplier %d outside [0,100]", s.StockScore, s.SupplierId)
		}
	}

	bySupplier := map[int]models.SupplierScore{}
	for _, s := range scores {
		bySupplier[s.SupplierId] = s
	}
	// 5000 available against 10000 required is half coverage.
	if bySupplier[2].StockScore != 50 {
		t.Errorf("half coverage stock score = %v, want 50", bySupplier[2].StockScore)
	}
	if bySupplier[1].StockScore != 100 {
		t.Errorf("full coverage stock score = %v, want 100", bySupplier[1].StockScore)
	}
}

func TestScoreCandidates_PriceScoreMonotone(t *testing.T) {
	scores := ScoreCandidates(candidateSet(), 5000, models.UrgencyMedium, false)

	byPrice := map[int]float64{}
	for _, s := range scores {
		byPrice[s.SupplierId] = s.PriceScore
	}
	// cheapest to dearest: 1 (0.15), 3 (0.18), 4 (0.20), 2 (0.22)
	order := []int{1, 3, 4, 2}
	for i := 1; i < len(order); i++ {
		if byPrice[order[i]] >= byPrice[order[i-1]] {
			t.Errorf("supplier %d (dearer) scored %v, not below supplier %d at %v",
				order[i], byPrice[order[i]], order[i-1], byPrice[order[i-1]])
		}
	}
}

func TestScoreCandidates_RanksAreDenseAndOrdered(t *testing.T) {
	scores := ScoreCandidates(candidateSet(), 5000, models.UrgencyMedium, false)
	if len(scores) != 4 {
		t.Fatalf("got %d scores, want 4", len(scores))
	}
	for i, s := range scores {
		if s.Rank != i+1 {
			t.Errorf("position %d has rank %d", i, s.Rank)
		}
		if i > 0 && s.TotalScore > scores[i-1].TotalScore {
			t.Errorf("scores not descending at position %d: %v > %v", i, s.TotalScore, scores[i-1].TotalScore)
		}
	}
}

func TestScoreCandidates_DefaultWeightsWinner(t *testing.T) {
	// Hand check under default weights {0.40, 0.25, 0.20, 0.15}:
	//   supplier 1: 40.00 + 3.57 + 18.40 + 15.00 = 76.97
	//   supplier 2: 27.27 + 25.00 + 17.60 + 15.00 = 84.87
	// The fastest supplier wins because the cheapest one's week-long delivery
	// drags its speed score to 14.29.
	scores := ScoreCandidates(candidateSet(), 5000, models.UrgencyMedium, false)
	if scores[0].SupplierId != 2 {
		t.Errorf("winner = supplier %d, want supplier 2", scores[0].SupplierId)
	}
	if math.Abs(scores[0].TotalScore-84.87) > 0.02 {
		t.Errorf("winner total = %v, want ~84.87", scores[0].TotalScore)
	}
	bySupplier := map[int]models.SupplierScore{}
	for _, s := range scores {
		bySupplier[s.SupplierId] = s
	}
	if math.Abs(bySupplier[1].TotalScore-76.97) > 0.02 {
		t.Errorf("supplier 1 total = %v, want ~76.97", bySupplier[1].TotalScore)
	}
}

func TestScoreCandidates_BudgetModeFlipsToCheapest(t *testing.T) {
	// With price weighted 0.60 the 0.15/unit supplier overtakes the fast one:
	//   supplier 1: 60.00 + 2.14 + 13.80 + 10.00 = 85.94
	//   supplier 2: 40.91 + 15.00 + 13.20 + 10.00 = 79.11
	scores := ScoreCandidates(candidateSet(), 5000, models.UrgencyMedium, true)
	if scores[0].SupplierId != 1 {
		t.Errorf("budget winner = supplier %d, want supplier 1 (cheapest)", scores[0].SupplierId)
	}
}

func TestScoreCandidates_CriticalUrgencyKeepsFastestOnTop(t *testing.T) {
	scores := ScoreCandidates(candidateSet(), 5000, models.UrgencyCritical, false)
	if scores[0].SupplierId != 2 {
		t.Errorf("critical winner = supplier %d, want supplier 2 (fastest)", scores[0].SupplierId)
	}
}

func TestScoreCandidates_ReliabilityDefaultsWhenMissing(t *testing.T) {
	candidates := []Candidate{
		{SupplierId: 1, UnitPrice: decimal.NewFromFloat(0.15), DeliveryDays: 3, QuantityAvailable: 5000, Reliability: 0},
	}
	scores := ScoreCandidates(candidates, 5000, models.UrgencyMedium, false)
	if scores[0].ReliabilityScore != DefaultReliability {
		t.Errorf("missing reliability scored %v, want default %v", scores[0].ReliabilityScore, DefaultReliability)
	}
}

func TestScoreCandidates_SingleCandidateScoresFull(t *testing.T) {
	candidates := []Candidate{
		{SupplierId: 9, UnitPrice: decimal.NewFromFloat(0.50), DeliveryDays: 14, QuantityAvailable: 5000, Reliability: 60},
	}
	scores := ScoreCandidates(candidates, 5000, models.UrgencyMedium, false)
	if len(scores) != 1 {
		t.Fatalf("got %d scores, want 1", len(scores))
	}
	if scores[0].PriceScore != 100 || scores[0].SpeedScore != 100 {
		t.Errorf("sole candidate should take full relative scores, got price=%v speed=%v",
			scores[0].PriceScore, scores[0].SpeedScore)
	}
}

func TestScoreCandidates_Empty(t *testing.T) {
	if scores := ScoreCandidates(nil, 5000, models.UrgencyMedium, false); len(scores) != 0 {
		t.Errorf("empty candidates produced %d scores", len(scores))
	}
}
