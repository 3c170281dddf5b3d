package workflow

import (
	"strings"
	"testing"

	"bitbucket.org/mmdatafocus/pharma_procure/models"
	"bitbucket.org/mmdatafocus/pharma_procure/utils"
	"github.com/shopspring/decimal"
)

func TestMergeBestOffers_SuccessfulNegotiationLowersPrice(t *testing.T) {
	quotes := quoteSet()
	negotiations := []models.Negotiation{
		{ID: 31, SupplierId: 2, Status: models.NegotiationSuccessful,
			InitialUnitPrice: decimal.NewFromFloat(0.22), FinalUnitPrice: decimal.NewFromFloat(0.19)},
	}
	suppliers := map[int]models.Supplier{
		1: {ID: 1, Name: "MediSupply Co."},
		2: {ID: 2, Name: "QuickPharm Ltd."},
		3: {ID: 3, Name: "BulkMeds Inc."},
		4: {ID: 4, Name: "ValueRx Partners"},
	}

	candidates := MergeBestOffers(quotes, negotiations, suppliers)
	byId := map[int]Candidate{}
	for _, c := range candidates {
		byId[c.SupplierId] = c
	}

	if !byId[2].UnitPrice.Equal(decimal.NewFromFloat(0.19)) {
		t.Errorf("negotiated supplier price = %s, want 0.19", byId[2].UnitPrice)
	}
	if byId[2].NegotiationId != 31 {
		t.Errorf("negotiation id = %d, want 31", byId[2].NegotiationId)
	}
	if !byId[1].UnitPrice.Equal(decimal.NewFromFloat(0.15)) {
		t.Errorf("untouched supplier price = %s, want 0.15", byId[1].UnitPrice)
	}
}

func TestMergeBestOffers_FailedNegotiationBetterPriceStillMerges(t *testing.T) {
	// Counters gained ground before the supplier walked away: the reached
	// price is real and usable even though the negotiation failed.
	quotes := quoteSet()
	negotiations := []models.Negotiation{
		{ID: 32, SupplierId: 2, Status: models.NegotiationFailed,
			InitialUnitPrice: decimal.NewFromFloat(0.22), FinalUnitPrice: decimal.NewFromFloat(0.21),
			FinalDeliveryDays: 1},
	}
	candidates := MergeBestOffers(quotes, negotiations, map[int]models.Supplier{})
	for _, c := range candidates {
		if c.SupplierId != 2 {
			continue
		}
		if !c.UnitPrice.Equal(decimal.NewFromFloat(0.21)) {
			t.Errorf("failed negotiation price = %s, want reached 0.21", c.UnitPrice)
		}
		if c.NegotiationId != 32 {
			t.Errorf("negotiation id = %d, want 32", c.NegotiationId)
		}
	}
}

func TestMergeBestOffers_FailedNegotiationWithoutGroundKeepsQuote(t *testing.T) {
	quotes := quoteSet()
	negotiations := []models.Negotiation{
		{ID: 34, SupplierId: 2, Status: models.NegotiationFailed,
			InitialUnitPrice: decimal.NewFromFloat(0.22), FinalUnitPrice: decimal.NewFromFloat(0.22)},
	}
	candidates := MergeBestOffers(quotes, negotiations, map[int]models.Supplier{})
	for _, c := range candidates {
		if c.SupplierId == 2 && !c.UnitPrice.Equal(decimal.NewFromFloat(0.22)) {
			t.Errorf("failed negotiation without movement changed price to %s", c.UnitPrice)
		}
	}
}

func TestMergeBestOffers_FailedNegotiationDeliveryDoesNotMerge(t *testing.T) {
	// An expedite concession only stands when the supplier accepted.
	quotes := quoteSet()
	negotiations := []models.Negotiation{
		{ID: 35, SupplierId: 1, Status: models.NegotiationFailed,
			InitialUnitPrice: decimal.NewFromFloat(0.15), FinalUnitPrice: decimal.NewFromFloat(0.15),
			FinalDeliveryDays: 2},
	}
	candidates := MergeBestOffers(quotes, negotiations, map[int]models.Supplier{})
	for _, c := range candidates {
		if c.SupplierId == 1 && c.DeliveryDays != 7 {
			t.Errorf("failed negotiation changed delivery to %d days", c.DeliveryDays)
		}
	}
}

func TestMergeBestOffers_NegotiatedPriceNeverWorsens(t *testing.T) {
	// A "successful" close at a price above the quote must not replace it.
	quotes := quoteSet()
	negotiations := []models.Negotiation{
		{ID: 33, SupplierId: 1, Status: models.NegotiationSuccessful,
			InitialUnitPrice: decimal.NewFromFloat(0.15), FinalUnitPrice: decimal.NewFromFloat(0.17)},
	}
	candidates := MergeBestOffers(quotes, negotiations, map[int]models.Supplier{})
	for _, c := range candidates {
		if c.SupplierId == 1 && !c.UnitPrice.Equal(decimal.NewFromFloat(0.15)) {
			t.Errorf("price worsened to %s", c.UnitPrice)
		}
	}
}

func TestRequiresHumanApproval_Threshold(t *testing.T) {
	under := &models.Decision{TotalAmount: decimal.NewFromFloat(999.99)}
	if RequiresHumanApproval(under) {
		t.Error("999.99 should auto-approve under the default 1000 threshold")
	}
	atThreshold := &models.Decision{TotalAmount: decimal.NewFromInt(1000)}
	if !RequiresHumanApproval(atThreshold) {
		t.Error("exactly 1000 should require approval")
	}
	over := &models.Decision{TotalAmount: decimal.NewFromFloat(1500.50)}
	if !RequiresHumanApproval(over) {
		t.Error("1500.50 should require approval")
	}
}

func TestEnsureAwaitingApproval(t *testing.T) {
	cases := []struct {
		status  models.TaskStatus
		wantErr bool
	}{
		{models.TaskStatusPendingApproval, false},
		{models.TaskStatusQueued, true},
		{models.TaskStatusInProgress, true},
		{models.TaskStatusNegotiating, true},
		{models.TaskStatusApproved, true},
		{models.TaskStatusCompleted, true},
		{models.TaskStatusFailed, true},
		{models.TaskStatusRejected, true},
	}
	for _, tc := range cases {
		err := ensureAwaitingApproval(tc.status)
		if tc.wantErr && err != utils.ErrorInvalidTransition {
			t.Errorf("%s: err = %v, want invalid transition", tc.status, err)
		}
		if !tc.wantErr && err != nil {
			t.Errorf("%s: err = %v, want nil", tc.status, err)
		}
	}
}

func TestDecisionFallbackExplanation_NamesTheFacts(t *testing.T) {
	text := DecisionFallbackExplanation("MediSupply Co.", decimal.NewFromFloat(0.15), 7, 84.87,
		[]string{"QuickPharm Ltd. (76.97)"})

	for _, want := range []string{"MediSupply Co.", "0.15", "7", "84.87"} {
		if !strings.Contains(text, want) {
			t.Errorf("explanation missing %q: %s", want, text)
		}
	}
}

func TestNegotiationFallbackMessage_NamesTheOffer(t *testing.T) {
	text := NegotiationFallbackMessage("QuickPharm Ltd.", "Paracetamol 500mg", 5000,
		decimal.NewFromFloat(0.22), decimal.NewFromFloat(0.1575), 1)

	for _, want := range []string{"QuickPharm Ltd.", "Paracetamol 500mg", "5000", "0.1575"} {
		if !strings.Contains(text, want) {
			t.Errorf("message missing %q: %s", want, text)
		}
	}
}
