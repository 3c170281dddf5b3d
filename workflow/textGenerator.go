package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"bitbucket.org/mmdatafocus/pharma_procure/config"
	"github.com/shopspring/decimal"
)

// TextGenerationResult is either generated text or an unavailability marker.
// Callers supply their own deterministic fallback; a missing credential or a
// provider outage must never change business outcomes.
type TextGenerationResult struct {
	Text        string
	Unavailable bool
}

func TextOk(text string) TextGenerationResult {
	return TextGenerationResult{Text: text}
}

func TextUnavailable() TextGenerationResult {
	return TextGenerationResult{Unavailable: true}
}

// TextGenerator phrases negotiation messages and decision explanations.
// Injected into the engines so tests can pin the result either way.
type TextGenerator interface {
	Generate(ctx context.Context, systemInstruction string, prompt string) TextGenerationResult
}

// GeminiTextGenerator calls the Generative Language REST API.
type GeminiTextGenerator struct {
	APIKey     string
	Model      string
	HTTPClient *http.Client
}

func NewGeminiTextGenerator() *GeminiTextGenerator {
	return &GeminiTextGenerator{
		APIKey:     config.TextGenAPIKey(),
		Model:      config.TextGenModel(),
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type geminiRequest struct {
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
	GenerationConfig  geminiGenConfig `json:"generationConfig"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

func (g *GeminiTextGenerator) Generate(ctx context.Context, systemInstruction string, prompt string) TextGenerationResult {
	logger := config.GetLogger()

	if g.APIKey == "" {
		return TextUnavailable()
	}

	reqBody := geminiRequest{
		Contents:         []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: geminiGenConfig{Temperature: 0.2, MaxOutputTokens: 2048},
	}
	if systemInstruction != "" {
		reqBody.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: systemInstruction}}}
	}
	raw, err := json.Marshal(reqBody)
	if err != nil {
		config.LogError(logger, "textGenerator.go", "Generate", "json.Marshal", nil, err)
		return TextUnavailable()
	}

	url := fmt.Sprintf(
		"https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent?key=%s",
		g.Model, g.APIKey,
	)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return TextUnavailable()
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.HTTPClient.Do(req)
	if err != nil {
		config.LogError(logger, "textGenerator.go", "Generate", "HTTPClient.Do", nil, err)
		return TextUnavailable()
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		config.LogError(logger, "textGenerator.go", "Generate", "status", resp.StatusCode, fmt.Errorf("text generation returned %d", resp.StatusCode))
		return TextUnavailable()
	}

	var parsed geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return TextUnavailable()
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return TextUnavailable()
	}
	return TextOk(parsed.Candidates[0].Content.Parts[0].Text)
}

// NegotiationFallbackMessage is the deterministic stand-in for a generated
// negotiation email. It carries the same substance: their quote, the
// competing price, and our counter-offer.
func NegotiationFallbackMessage(supplierName string, medicineName string, quantity int, currentPrice decimal.Decimal, targetPrice decimal.Decimal, roundNumber int) string {
	return fmt.Sprintf(
		"Dear %s Team,\n\n"+
			"Thank you for your quote of $%s/unit for %d units of %s. "+
			"We have received competitive offers and, as a regular customer purchasing monthly volume, "+
			"we would like to propose $%s/unit for this order (round %d of our discussion). "+
			"Could you match this pricing?\n\n"+
			"Best regards,\nProcurement Team",
		supplierName,
		currentPrice.StringFixed(4),
		quantity,
		medicineName,
		targetPrice.StringFixed(4),
		roundNumber,
	)
}

// DecisionFallbackExplanation is the deterministic stand-in for a generated
// decision explanation. It still names supplier, price, delivery and score.
func DecisionFallbackExplanation(supplierName string, unitPrice decimal.Decimal, deliveryDays int, totalScore float64, runnersUp []string) string {
	msg := fmt.Sprintf(
		"Selected %s at $%s/unit with %d-day delivery, weighted score %.2f/100, "+
			"based on the best balance of price, delivery speed, reliability and stock coverage.",
		supplierName,
		unitPrice.StringFixed(4),
		deliveryDays,
		totalScore,
	)
	if len(runnersUp) > 0 {
		msg += " Alternatives considered: "
		for i, name := range runnersUp {
			if i > 0 {
				msg += ", "
			}
			msg += name
		}
		msg += "."
	}
	return msg
}

const negotiationSystemInstruction = `You are an expert procurement negotiator for a pharmacy.
Your goal is to negotiate better prices and terms while maintaining good supplier relationships.
Be professional, data-driven, and persuasive. Always provide clear value propositions.`

func buildNegotiationPrompt(supplierName string, medicineName string, quantity int, currentPrice decimal.Decimal, bestPrice decimal.Decimal, targetPrice decimal.Decimal, strategy string, roundNumber int) string {
	return fmt.Sprintf(`Generate a professional negotiation email for the following scenario:

Supplier: %s
Medicine: %s
Quantity: %d units
Negotiation Round: %d

Current offer: $%s/unit
Best competing price: $%s/unit
Our counter-offer: $%s/unit
Strategy: %s

Generate a concise, professional email (3-4 paragraphs) that acknowledges their quote, presents our position with data, and makes the specific counter-offer. Email body only, no subject line.`,
		supplierName,
		medicineName,
		quantity,
		roundNumber,
		currentPrice.StringFixed(2),
		bestPrice.StringFixed(2),
		targetPrice.StringFixed(2),
		strategy,
	)
}

func buildExplanationPrompt(supplierName string, unitPrice decimal.Decimal, deliveryDays int, totalScore float64, alternatives []string) string {
	prompt := fmt.Sprintf(`Explain this procurement decision professionally.

Selected: %s
Price: $%s/unit, Delivery: %d days
Weighted score: %.1f/100
`, supplierName, unitPrice.StringFixed(2), deliveryDays, totalScore)
	if len(alternatives) > 0 {
		prompt += "Alternatives considered:\n"
		for _, alt := range alternatives {
			prompt += "- " + alt + "\n"
		}
	}
	prompt += "\nExplain in 2-3 paragraphs why this supplier was chosen over the alternatives."
	return prompt
}
