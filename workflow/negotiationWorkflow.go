package workflow

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"bitbucket.org/mmdatafocus/pharma_procure/config"
	"bitbucket.org/mmdatafocus/pharma_procure/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// NegotiationTarget pairs a quote with the tactic chosen for its supplier.
type NegotiationTarget struct {
	Quote  models.Quote
	Action models.NegotiationAction
}

// ClassifyQuoteActions decides which suppliers to push back on and how.
// The market-best quote is never negotiated. A price premium above the
// configured percent over the best price asks for a price match; a delivery
// lag beyond the configured days past the fastest asks to expedite; an
// unexploited bulk discount asks for the discount tier.
func ClassifyQuoteActions(quotes []models.Quote, requiredQuantity int, premiumPercent int, lagDays int) []NegotiationTarget {
	if len(quotes) == 0 {
		return nil
	}

	bestPrice := quotes[0].UnitPrice
	fastest := quotes[0].DeliveryDays
	for _, q := range quotes[1:] {
		if q.UnitPrice.LessThan(bestPrice) {
			bestPrice = q.UnitPrice
		}
		if q.DeliveryDays < fastest {
			fastest = q.DeliveryDays
		}
	}
	premiumCutoff := bestPrice.Mul(decimal.NewFromInt(100 + int64(premiumPercent))).Div(decimal.NewFromInt(100))

	targets := make([]NegotiationTarget, 0, len(quotes))
	for _, q := range quotes {
		action := models.ActionSkip
		switch {
		case q.UnitPrice.GreaterThan(premiumCutoff):
			action = models.ActionPriceMatch
		case q.BulkDiscountAvailable != nil && *q.BulkDiscountAvailable &&
			q.BulkDiscountQuantity > 0 && requiredQuantity >= q.BulkDiscountQuantity &&
			q.BulkDiscountPrice.IsPositive() && q.BulkDiscountPrice.LessThan(q.UnitPrice):
			action = models.ActionBulkDiscount
		case q.DeliveryDays > fastest+lagDays:
			action = models.ActionExpedite
		}
		targets = append(targets, NegotiationTarget{Quote: q, Action: action})
	}
	return targets
}

// TargetPriceForRound computes the price we ask for in a given round.
// Round one anchors just above the market best, round two meets in the
// middle, the last round concedes to near the best. Targets never exceed
// the supplier's current price.
func TargetPriceForRound(round int, currentPrice decimal.Decimal, bestPrice decimal.Decimal) decimal.Decimal {
	var target decimal.Decimal
	switch round {
	case 1:
		target = bestPrice.Mul(decimal.NewFromFloat(1.05))
	case 2:
		target = currentPrice.Add(bestPrice).Div(decimal.NewFromInt(2))
	default:
		target = bestPrice.Mul(decimal.NewFromFloat(1.02))
	}
	if target.GreaterThan(currentPrice) {
		target = currentPrice
	}
	return target.Round(4)
}

// SupplierResponse is the supplier's reaction to one round's offer. Exactly
// one of Accepted/Rejected may be set; neither means a counter-offer.
type SupplierResponse struct {
	Accepted     bool
	Rejected     bool
	CounterPrice decimal.Decimal
	Message      string
}

// SupplierResponder produces the supplier side of a round. Simulated in this
// deployment; a live channel would parse real replies.
type SupplierResponder interface {
	Respond(ctx context.Context, supplierName string, currentPrice decimal.Decimal, targetPrice decimal.Decimal, round int) SupplierResponse
}

// SimulatedResponder accepts with probability rising as the asked discount
// shrinks and as rounds progress, counters by splitting the difference, and
// walks away on the final round instead of countering again.
type SimulatedResponder struct {
	rng *rand.Rand
	mu  sync.Mutex
}

func NewSimulatedResponder(seed int64) *SimulatedResponder {
	return &SimulatedResponder{rng: rand.New(rand.NewSource(seed))}
}

// AcceptanceProbability is the simulation's core curve.
func AcceptanceProbability(currentPrice decimal.Decimal, targetPrice decimal.Decimal, round int) float64 {
	if !currentPrice.IsPositive() {
		return 0
	}
	gap := currentPrice.Sub(targetPrice)
	gapRatio, _ := gap.Div(currentPrice).Float64()
	p := 1 - gapRatio*5
	if p < 0.2 {
		p = 0.2
	}
	p += 0.15 * float64(round)
	if p > 1 {
		p = 1
	}
	return p
}

func (r *SimulatedResponder) Respond(ctx context.Context, supplierName string, currentPrice decimal.Decimal, targetPrice decimal.Decimal, round int) SupplierResponse {
	r.mu.Lock()
	roll := r.rng.Float64()
	r.mu.Unlock()

	if roll < AcceptanceProbability(currentPrice, targetPrice, round) {
		return SupplierResponse{
			Accepted:     true,
			CounterPrice: targetPrice,
			Message:      fmt.Sprintf("We can accept $%s per unit for this order.", targetPrice.StringFixed(4)),
		}
	}
	if round >= config.MaxNegotiationRounds() {
		return SupplierResponse{
			Rejected:     true,
			CounterPrice: currentPrice,
			Message:      fmt.Sprintf("We appreciate your offer but cannot go below $%s per unit.", currentPrice.StringFixed(4)),
		}
	}
	counter := currentPrice.Sub(currentPrice.Sub(targetPrice).Div(decimal.NewFromInt(2))).Round(4)
	return SupplierResponse{
		CounterPrice: counter,
		Message:      fmt.Sprintf("$%s is below our floor, but we could do $%s per unit.", targetPrice.StringFixed(4), counter.StringFixed(4)),
	}
}

// NegotiationEngine runs bounded counter-offer exchanges against the
// suppliers targeted for a task. Suppliers are worked concurrently; rounds
// within one supplier are strictly sequential.
type NegotiationEngine struct {
	Text      TextGenerator
	Responder SupplierResponder
	MaxRounds int
}

func NewNegotiationEngine(text TextGenerator, responder SupplierResponder) *NegotiationEngine {
	return &NegotiationEngine{
		Text:      text,
		Responder: responder,
		MaxRounds: config.MaxNegotiationRounds(),
	}
}

// Run targets, opens and drives all negotiations for the task. It reports
// how many negotiations were actually opened; zero means the decision stage
// can proceed straight from the raw quotes.
func (e *NegotiationEngine) Run(ctx context.Context, task *models.ProcurementTask, medicine *models.Medicine) (int, error) {
	quotes, err := models.QuotesForTask(ctx, task.ID)
	if err != nil {
		return 0, err
	}
	targets := ClassifyQuoteActions(quotes, task.RequiredQuantity,
		config.NegotiationPricePremiumPercent(), config.NegotiationDeliveryLagDays())

	bestPrice := decimal.Zero
	for _, q := range quotes {
		if bestPrice.IsZero() || q.UnitPrice.LessThan(bestPrice) {
			bestPrice = q.UnitPrice
		}
	}

	opened := 0
	var wg sync.WaitGroup
	for _, target := range targets {
		if target.Action == models.ActionSkip {
			continue
		}
		negotiation, created, err := models.OpenNegotiation(ctx, task.ID, target.Quote.SupplierId,
			target.Quote.ID, target.Action, target.Quote.UnitPrice, e.MaxRounds)
		if err != nil {
			return opened, err
		}
		if !created && negotiation.Status != models.NegotiationInProgress {
			// Already settled on a previous pass.
			continue
		}
		opened++

		wg.Add(1)
		go func(negotiation *models.Negotiation, quote models.Quote) {
			defer wg.Done()
			if err := e.runSupplier(ctx, task, medicine, negotiation, quote, bestPrice); err != nil {
				config.LogError(config.GetLogger(), "workflow", "NegotiationEngine.Run",
					fmt.Sprintf("negotiation %d", negotiation.ID), logrus.Fields{"taskId": task.ID}, err)
			}
		}(negotiation, target.Quote)
	}
	wg.Wait()
	return opened, nil
}

func (e *NegotiationEngine) runSupplier(ctx context.Context, task *models.ProcurementTask, medicine *models.Medicine, negotiation *models.Negotiation, quote models.Quote, bestPrice decimal.Decimal) error {
	supplier, err := models.GetSupplier(ctx, negotiation.SupplierId)
	if err != nil {
		return err
	}

	currentPrice := negotiation.InitialUnitPrice
	deliveryDays := quote.DeliveryDays

	for round := negotiation.CurrentRound + 1; round <= negotiation.MaxRounds; round++ {
		targetPrice := TargetPriceForRound(round, currentPrice, bestPrice)

		message, generated := e.roundMessage(ctx, supplier.Name, medicine.Name, task.RequiredQuantity,
			currentPrice, bestPrice, targetPrice, string(negotiation.Action), round)

		response := e.Responder.Respond(ctx, supplier.Name, currentPrice, targetPrice, round)

		roundRecord := &models.NegotiationRound{
			RoundNumber:          round,
			OurMessage:           message,
			OurOfferPrice:        targetPrice,
			SupplierResponse:     response.Message,
			SupplierCounterPrice: response.CounterPrice,
			Status:               models.RoundStatusCounterOffer,
			GeneratedByAI:        &generated,
		}
		if response.Accepted {
			roundRecord.Status = models.RoundStatusAccepted
		} else if response.Rejected {
			roundRecord.Status = models.RoundStatusRejected
		}
		if err := models.AppendRound(ctx, negotiation, roundRecord); err != nil {
			return err
		}

		if response.Accepted {
			final := response.CounterPrice
			savings := negotiation.InitialUnitPrice.Sub(final).Mul(decimal.NewFromInt(int64(task.RequiredQuantity))).Round(4)
			config.LogActivity(config.GetLogger(), "NEGOTIATION", task.ID,
				fmt.Sprintf("%s accepted $%s/unit in round %d (saving $%s)",
					supplier.Name, final.StringFixed(4), round, savings.StringFixed(2)), nil)
			return models.CloseNegotiation(ctx, negotiation, models.NegotiationSuccessful, final, deliveryDays, savings)
		}
		if response.Rejected {
			break
		}
		currentPrice = response.CounterPrice
	}

	// The supplier walked away or the round cap ran out. The negotiation
	// failed, but the best counter reached is kept so the decision stage can
	// still weigh it against the original quote.
	status, savings := exhaustedOutcome(negotiation.InitialUnitPrice, currentPrice, task.RequiredQuantity)
	config.LogActivity(config.GetLogger(), "NEGOTIATION", task.ID,
		fmt.Sprintf("%s negotiation closed %s at $%s/unit after %d rounds",
			supplier.Name, status, currentPrice.StringFixed(4), negotiation.MaxRounds), nil)
	return models.CloseNegotiation(ctx, negotiation, status, currentPrice, deliveryDays, savings)
}

// exhaustedOutcome settles a negotiation that ended without an accepted
// offer. The status is always FAILED; any ground the counters gained is
// still reported as savings against the initial price.
func exhaustedOutcome(initialPrice decimal.Decimal, reachedPrice decimal.Decimal, quantity int) (models.NegotiationStatus, decimal.Decimal) {
	savings := decimal.Zero
	if reachedPrice.LessThan(initialPrice) {
		savings = initialPrice.Sub(reachedPrice).Mul(decimal.NewFromInt(int64(quantity))).Round(4)
	}
	return models.NegotiationFailed, savings
}

func (e *NegotiationEngine) roundMessage(ctx context.Context, supplierName string, medicineName string, quantity int, currentPrice decimal.Decimal, bestPrice decimal.Decimal, targetPrice decimal.Decimal, strategy string, round int) (string, bool) {
	if e.Text != nil {
		result := e.Text.Generate(ctx, negotiationSystemInstruction,
			buildNegotiationPrompt(supplierName, medicineName, quantity, currentPrice, bestPrice, targetPrice, strategy, round))
		if !result.Unavailable {
			return result.Text, true
		}
	}
	return NegotiationFallbackMessage(supplierName, medicineName, quantity, currentPrice, targetPrice, round), false
}
