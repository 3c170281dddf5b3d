package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestAutoApproveThreshold_Default(t *testing.T) {
	t.Setenv("AUTO_APPROVE_THRESHOLD", "")
	if got := AutoApproveThreshold(); !got.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("default threshold = %s, want 1000", got)
	}
}

func TestAutoApproveThreshold_Override(t *testing.T) {
	t.Setenv("AUTO_APPROVE_THRESHOLD", "2500.50")
	if got := AutoApproveThreshold(); !got.Equal(decimal.NewFromFloat(2500.50)) {
		t.Errorf("threshold = %s, want 2500.50", got)
	}
}

func TestAutoApproveThreshold_IgnoresGarbage(t *testing.T) {
	t.Setenv("AUTO_APPROVE_THRESHOLD", "not-a-number")
	if got := AutoApproveThreshold(); !got.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("garbage threshold = %s, want default 1000", got)
	}
}

func TestQuoteCollectionWindow_Default(t *testing.T) {
	t.Setenv("QUOTE_COLLECTION_WINDOW_HOURS", "")
	if got := QuoteCollectionWindow(); got != 2*time.Hour {
		t.Errorf("default window = %s, want 2h", got)
	}
}

func TestNegotiationKnobs_Defaults(t *testing.T) {
	t.Setenv("MAX_NEGOTIATION_ROUNDS", "")
	t.Setenv("NEGOTIATION_PRICE_PREMIUM_PERCENT", "")
	t.Setenv("NEGOTIATION_DELIVERY_LAG_DAYS", "")
	t.Setenv("PRICE_SPIKE_PERCENT", "")

	if got := MaxNegotiationRounds(); got != 3 {
		t.Errorf("max rounds = %d, want 3", got)
	}
	if got := NegotiationPricePremiumPercent(); got != 10 {
		t.Errorf("premium percent = %d, want 10", got)
	}
	if got := NegotiationDeliveryLagDays(); got != 2 {
		t.Errorf("lag days = %d, want 2", got)
	}
	if got := PriceSpikePercent(); got != 30 {
		t.Errorf("spike percent = %d, want 30", got)
	}
}
