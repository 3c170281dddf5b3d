package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Procurement policy knobs. All env-overridable; defaults match the
// operational values the pipeline was tuned with.
//
// - AUTO_APPROVE_THRESHOLD            (default 1000)
// - QUOTE_COLLECTION_WINDOW_HOURS     (default 2)
// - MAX_NEGOTIATION_ROUNDS            (default 3)
// - NEGOTIATION_PRICE_PREMIUM_PERCENT (default 10)
// - NEGOTIATION_DELIVERY_LAG_DAYS     (default 2)
// - PRICE_SPIKE_PERCENT               (default 30)
// - SIMULATE_SUPPLIERS                (default false)

func AutoApproveThreshold() decimal.Decimal {
	v := strings.TrimSpace(os.Getenv("AUTO_APPROVE_THRESHOLD"))
	if v != "" {
		if d, err := decimal.NewFromString(v); err == nil && d.IsPositive() {
			return d
		}
	}
	return decimal.NewFromInt(1000)
}

func QuoteCollectionWindow() time.Duration {
	return time.Duration(intEnv("QUOTE_COLLECTION_WINDOW_HOURS", 2)) * time.Hour
}

func MaxNegotiationRounds() int {
	return intEnv("MAX_NEGOTIATION_ROUNDS", 3)
}

// NegotiationPricePremiumPercent is the price delta over the cheapest quote
// above which a supplier becomes a price_match target.
func NegotiationPricePremiumPercent() int {
	return intEnv("NEGOTIATION_PRICE_PREMIUM_PERCENT", 10)
}

// NegotiationDeliveryLagDays is the delivery delta over the fastest quote
// above which a supplier becomes an expedite target.
func NegotiationDeliveryLagDays() int {
	return intEnv("NEGOTIATION_DELIVERY_LAG_DAYS", 2)
}

func PriceSpikePercent() int {
	return intEnv("PRICE_SPIKE_PERCENT", 30)
}

// SimulateSuppliers selects the simulated quote source and supplier
// responder instead of the live correspondence-backed ones.
func SimulateSuppliers() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("SIMULATE_SUPPLIERS")))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

func TextGenModel() string {
	if v := strings.TrimSpace(os.Getenv("TEXTGEN_MODEL")); v != "" {
		return v
	}
	return "gemini-1.5-pro"
}

func TextGenAPIKey() string {
	return strings.TrimSpace(os.Getenv("TEXTGEN_API_KEY"))
}

func intEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
