package workflow

import (
	"context"
	"testing"

	"bitbucket.org/mmdatafocus/pharma_procure/models"
	"github.com/shopspring/decimal"
)

func boolPtr(b bool) *bool { return &b }

func quoteSet() []models.Quote {
	no := boolPtr(false)
	yes := boolPtr(true)
	return []models.Quote{
		{ID: 11, SupplierId: 1, UnitPrice: decimal.NewFromFloat(0.15), DeliveryDays: 7, QuantityAvailable: 10000, BulkDiscountAvailable: no},
		{ID: 12, SupplierId: 2, UnitPrice: decimal.NewFromFloat(0.22), DeliveryDays: 1, QuantityAvailable: 5000, BulkDiscountAvailable: no},
		{ID: 13, SupplierId: 3, UnitPrice: decimal.NewFromFloat(0.18), DeliveryDays: 5, QuantityAvailable: 10000, BulkDiscountAvailable: yes, BulkDiscountPrice: decimal.NewFromFloat(0.16), BulkDiscountQuantity: 8000},
		{ID: 14, SupplierId: 4, UnitPrice: decimal.NewFromFloat(0.20), DeliveryDays: 3, QuantityAvailable: 8000, BulkDiscountAvailable: no},
	}
}

func actionsBySupplier(targets []NegotiationTarget) map[int]models.NegotiationAction {
	out := map[int]models.NegotiationAction{}
	for _, tg := range targets {
		out[tg.Quote.SupplierId] = tg.Action
	}
	return out
}

func TestClassifyQuoteActions_PremiumGetsPriceMatch(t *testing.T) {
	actions := actionsBySupplier(ClassifyQuoteActions(quoteSet(), 5000, 10, 2))

	// 0.22 and 0.20 are both >10% over the 0.15 best.
	if actions[2] != models.ActionPriceMatch {
		t.Errorf("supplier 2 action = %s, want price_match", actions[2])
	}
	if actions[4] != models.ActionPriceMatch {
		t.Errorf("supplier 4 action = %s, want price_match", actions[4])
	}
}

func TestClassifyQuoteActions_BestPriceSkipsDespiteSlowDelivery(t *testing.T) {
	actions := actionsBySupplier(ClassifyQuoteActions(quoteSet(), 5000, 10, 2))
	// Supplier 1 holds the best price but lags 6 days behind the fastest.
	if actions[1] != models.ActionExpedite {
		t.Errorf("supplier 1 action = %s, want expedite", actions[1])
	}
}

func TestClassifyQuoteActions_BulkDiscountWhenQuantityQualifies(t *testing.T) {
	// Required 8000 meets supplier 3's bulk tier.
	actions := actionsBySupplier(ClassifyQuoteActions(quoteSet(), 8000, 10, 2))
	if actions[3] != models.ActionBulkDiscount {
		t.Errorf("supplier 3 action = %s, want bulk_discount", actions[3])
	}

	// Required 5000 does not; supplier 3's 0.18 is also under the premium
	// cutoff, so only the delivery lag remains.
	actions = actionsBySupplier(ClassifyQuoteActions(quoteSet(), 5000, 10, 2))
	if actions[3] != models.ActionExpedite {
		t.Errorf("supplier 3 action = %s, want expedite", actions[3])
	}
}

func TestClassifyQuoteActions_SingleQuoteSkips(t *testing.T) {
	no := boolPtr(false)
	quotes := []models.Quote{
		{ID: 11, SupplierId: 1, UnitPrice: decimal.NewFromFloat(0.15), DeliveryDays: 7, BulkDiscountAvailable: no},
	}
	actions := actionsBySupplier(ClassifyQuoteActions(quotes, 5000, 10, 2))
	if actions[1] != models.ActionSkip {
		t.Errorf("lone quote action = %s, want skip", actions[1])
	}
}

func TestTargetPriceForRound_Schedule(t *testing.T) {
	current := decimal.NewFromFloat(0.22)
	best := decimal.NewFromFloat(0.15)

	r1 := TargetPriceForRound(1, current, best)
	if !r1.Equal(decimal.NewFromFloat(0.1575)) {
		t.Errorf("round 1 target = %s, want 0.1575 (best x 1.05)", r1)
	}

	r2 := TargetPriceForRound(2, current, best)
	if !r2.Equal(decimal.NewFromFloat(0.185)) {
		t.Errorf("round 2 target = %s, want 0.185 (midpoint)", r2)
	}

	r3 := TargetPriceForRound(3, current, best)
	if !r3.Equal(decimal.NewFromFloat(0.153)) {
		t.Errorf("round 3 target = %s, want 0.153 (best x 1.02)", r3)
	}
}

func TestTargetPriceForRound_NeverAboveCurrent(t *testing.T) {
	// When the supplier is already near the best price, the formula result
	// would exceed their current offer; it must clamp.
	current := decimal.NewFromFloat(0.152)
	best := decimal.NewFromFloat(0.15)
	for round := 1; round <= 3; round++ {
		target := TargetPriceForRound(round, current, best)
		if target.GreaterThan(current) {
			t.Errorf("round %d target %s exceeds current price %s", round, target, current)
		}
	}
}

func TestAcceptanceProbability_Bounds(t *testing.T) {
	current := decimal.NewFromFloat(0.22)

	// Huge ask still leaves the floor plus the round bonus.
	p := AcceptanceProbability(current, decimal.NewFromFloat(0.01), 1)
	if p < 0.2 {
		t.Errorf("probability %v below floor", p)
	}

	// Tiny ask is near certain.
	p = AcceptanceProbability(current, decimal.NewFromFloat(0.219), 3)
	if p < 0.9 {
		t.Errorf("near-zero gap probability = %v, want high", p)
	}

	if p := AcceptanceProbability(current, decimal.NewFromFloat(0.10), 3); p > 1 {
		t.Errorf("probability %v exceeds 1", p)
	}
}

func TestAcceptanceProbability_RisesWithRounds(t *testing.T) {
	current := decimal.NewFromFloat(0.22)
	target := decimal.NewFromFloat(0.19)
	p1 := AcceptanceProbability(current, target, 1)
	p3 := AcceptanceProbability(current, target, 3)
	if p3 <= p1 {
		t.Errorf("round 3 probability %v not above round 1 %v", p3, p1)
	}
}

func TestSimulatedResponder_Deterministic(t *testing.T) {
	current := decimal.NewFromFloat(0.22)
	target := decimal.NewFromFloat(0.1575)

	a := NewSimulatedResponder(42)
	b := NewSimulatedResponder(42)
	for round := 1; round <= 3; round++ {
		ra := a.Respond(context.Background(), "QuickPharm Ltd.", current, target, round)
		rb := b.Respond(context.Background(), "QuickPharm Ltd.", current, target, round)
		if ra.Accepted != rb.Accepted || !ra.CounterPrice.Equal(rb.CounterPrice) {
			t.Fatalf("same seed diverged at round %d: %+v vs %+v", round, ra, rb)
		}
	}
}

func TestSimulatedResponder_FinalRoundRejects(t *testing.T) {
	// On the last round a supplier who does not accept walks away at their
	// current price instead of countering again.
	current := decimal.NewFromFloat(0.22)
	target := decimal.NewFromFloat(0.1575)

	nonAccepting := 0
	for seed := int64(0); seed < 500; seed++ {
		resp := NewSimulatedResponder(seed).Respond(context.Background(), "QuickPharm Ltd.", current, target, 3)
		if resp.Accepted {
			continue
		}
		nonAccepting++
		if !resp.Rejected {
			t.Fatalf("seed %d: final-round non-accept did not reject: %+v", seed, resp)
		}
		if !resp.CounterPrice.Equal(current) {
			t.Fatalf("seed %d: rejection moved the price to %s", seed, resp.CounterPrice)
		}
	}
	if nonAccepting == 0 {
		t.Fatal("every seed accepted; rejection path never exercised")
	}
}

func TestSimulatedResponder_EarlyRoundsNeverReject(t *testing.T) {
	current := decimal.NewFromFloat(0.22)
	target := decimal.NewFromFloat(0.1575)
	for seed := int64(0); seed < 100; seed++ {
		for round := 1; round <= 2; round++ {
			resp := NewSimulatedResponder(seed).Respond(context.Background(), "QuickPharm Ltd.", current, target, round)
			if resp.Rejected {
				t.Fatalf("seed %d round %d rejected before the final round", seed, round)
			}
		}
	}
}

func TestExhaustedOutcome_FailsKeepingReachedPrice(t *testing.T) {
	initial := decimal.NewFromFloat(0.22)

	// Counters gained ground: still FAILED, savings reflect the movement.
	status, savings := exhaustedOutcome(initial, decimal.NewFromFloat(0.19), 5000)
	if status != models.NegotiationFailed {
		t.Errorf("status = %s, want FAILED", status)
	}
	if !savings.Equal(decimal.NewFromInt(150)) {
		t.Errorf("savings = %s, want 150", savings)
	}

	// No movement at all.
	status, savings = exhaustedOutcome(initial, initial, 5000)
	if status != models.NegotiationFailed {
		t.Errorf("status = %s, want FAILED", status)
	}
	if !savings.IsZero() {
		t.Errorf("savings = %s, want 0", savings)
	}
}

func TestSimulatedResponder_CounterSplitsDifference(t *testing.T) {
	// Seed chosen so the first roll counters: probability for this gap at
	// round 1 is ~0.35 and rand.New(rand.NewSource(1)).Float64() > 0.6.
	r := NewSimulatedResponder(1)
	current := decimal.NewFromFloat(0.22)
	target := decimal.NewFromFloat(0.1575)
	resp := r.Respond(context.Background(), "QuickPharm Ltd.", current, target, 1)
	if resp.Accepted {
		t.Skip("rng accepted; counter path not taken with this library version")
	}
	want := decimal.NewFromFloat(0.18875)
	if !resp.CounterPrice.Equal(want) {
		t.Errorf("counter = %s, want %s", resp.CounterPrice, want)
	}
	if !resp.CounterPrice.LessThan(current) {
		t.Errorf("counter %s not below current %s", resp.CounterPrice, current)
	}
}
