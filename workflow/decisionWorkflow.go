package workflow

import (
	"context"
	"fmt"

	"bitbucket.org/mmdatafocus/pharma_procure/config"
	"bitbucket.org/mmdatafocus/pharma_procure/models"
	"bitbucket.org/mmdatafocus/pharma_procure/utils"
	"github.com/shopspring/decimal"
)

// MergeBestOffers folds settled negotiation outcomes into the raw quotes.
// A reached price replaces the quoted one only when it is strictly lower,
// even for a failed negotiation whose counters gained ground before the
// supplier walked away. A delivery concession stands only when the supplier
// accepted. A negotiation that went nowhere must not worsen a supplier's
// standing.
func MergeBestOffers(quotes []models.Quote, negotiations []models.Negotiation, suppliers map[int]models.Supplier) []Candidate {
	bySupplier := make(map[int]models.Negotiation, len(negotiations))
	for _, n := range negotiations {
		bySupplier[n.SupplierId] = n
	}

	candidates := make([]Candidate, 0, len(quotes))
	for _, q := range quotes {
		supplier := suppliers[q.SupplierId]
		candidate := Candidate{
			SupplierId:        q.SupplierId,
			SupplierName:      supplier.Name,
			QuoteId:           q.ID,
			UnitPrice:         q.UnitPrice,
			DeliveryDays:      q.DeliveryDays,
			QuantityAvailable: q.QuantityAvailable,
			Reliability:       supplier.ReliabilityScore,
		}
		if n, ok := bySupplier[q.SupplierId]; ok && n.Status != models.NegotiationInProgress {
			if n.FinalUnitPrice.IsPositive() && n.FinalUnitPrice.LessThan(candidate.UnitPrice) {
				candidate.UnitPrice = n.FinalUnitPrice
				candidate.NegotiationId = n.ID
			}
			if n.Status == models.NegotiationSuccessful &&
				n.FinalDeliveryDays > 0 && n.FinalDeliveryDays < candidate.DeliveryDays {
				candidate.DeliveryDays = n.FinalDeliveryDays
			}
		}
		candidates = append(candidates, candidate)
	}
	return candidates
}

// DecisionEngine scores merged offers and commits the winning selection.
type DecisionEngine struct {
	Text TextGenerator
}

func NewDecisionEngine(text TextGenerator) *DecisionEngine {
	return &DecisionEngine{Text: text}
}

// Decide loads everything known about a task's suppliers, scores the merged
// offers and persists both the score set and the final decision. Zero usable
// candidates fails the decision outright rather than guessing.
func (e *DecisionEngine) Decide(ctx context.Context, task *models.ProcurementTask, budgetMode bool) (*models.Decision, error) {
	quotes, err := models.QuotesForTask(ctx, task.ID)
	if err != nil {
		return nil, err
	}
	if len(quotes) == 0 {
		return nil, utils.ErrorDecisionFailed
	}
	negotiations, err := models.NegotiationsForTask(ctx, task.ID)
	if err != nil {
		return nil, err
	}
	supplierIds := make([]int, 0, len(quotes))
	for _, q := range quotes {
		supplierIds = append(supplierIds, q.SupplierId)
	}
	suppliers, err := models.SuppliersByIds(ctx, supplierIds)
	if err != nil {
		return nil, err
	}

	candidates := MergeBestOffers(quotes, negotiations, suppliers)
	scores := ScoreCandidates(candidates, task.RequiredQuantity, task.Urgency, budgetMode)
	if len(scores) == 0 {
		return nil, utils.ErrorDecisionFailed
	}
	for i := range scores {
		scores[i].ProcurementTaskId = task.ID
	}
	if err := models.SaveSupplierScores(ctx, scores); err != nil {
		return nil, err
	}

	winner := scores[0]
	var winning Candidate
	for _, c := range candidates {
		if c.SupplierId == winner.SupplierId {
			winning = c
			break
		}
	}

	totalAmount := winning.UnitPrice.Mul(decimal.NewFromInt(int64(task.RequiredQuantity))).Round(4)
	reasoning := e.explain(ctx, winning, winner.TotalScore, scores, suppliers)

	decision := &models.Decision{
		ProcurementTaskId:     task.ID,
		SelectedSupplierId:    winner.SupplierId,
		SelectedQuoteId:       winning.QuoteId,
		SelectedNegotiationId: winning.NegotiationId,
		WinningScore:          winner.TotalScore,
		UnitPrice:             winning.UnitPrice,
		TotalAmount:           totalAmount,
		DeliveryDays:          winning.DeliveryDays,
		ReasoningText:         reasoning,
		Urgency:               task.Urgency,
		BudgetMode:            &budgetMode,
	}
	if err := decision.SetAllScores(scores); err != nil {
		return nil, err
	}
	if err := models.CreateDecision(ctx, decision); err != nil {
		return nil, err
	}

	config.LogActivity(config.GetLogger(), "DECISION", task.ID,
		fmt.Sprintf("selected %s at $%s/unit (score %.2f, total $%s)",
			winning.SupplierName, winning.UnitPrice.StringFixed(4), winner.TotalScore, totalAmount.StringFixed(2)), nil)
	return decision, nil
}

func (e *DecisionEngine) explain(ctx context.Context, winning Candidate, totalScore float64, scores []models.SupplierScore, suppliers map[int]models.Supplier) string {
	runnersUp := make([]string, 0, len(scores)-1)
	for _, s := range scores[1:] {
		runnersUp = append(runnersUp, fmt.Sprintf("%s (%.2f)", suppliers[s.SupplierId].Name, s.TotalScore))
	}
	if e.Text != nil {
		result := e.Text.Generate(ctx, "",
			buildExplanationPrompt(winning.SupplierName, winning.UnitPrice, winning.DeliveryDays, totalScore, runnersUp))
		if !result.Unavailable {
			return result.Text
		}
	}
	return DecisionFallbackExplanation(winning.SupplierName, winning.UnitPrice, winning.DeliveryDays, totalScore, runnersUp)
}
