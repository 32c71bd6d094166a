// Package cost accounts for model token usage. Prices are per million tokens
// in USD, keyed by model name, with a conservative default for unknown
// models so spend is never silently under-reported.
package cost

import (
	"sync"

	"github.com/AdamTheFirstGitman/scribe/model"
)

// Price holds per-million-token USD rates for one model.
type Price struct {
	InputPerMTok  float64
	OutputPerMTok float64
}

// defaultPrices covers the models the service ships with. Unknown models use
// defaultPrice.
var defaultPrices = map[string]Price{
	"claude-3-5-sonnet-20241022": {InputPerMTok: 3.00, OutputPerMTok: 15.00},
	"claude-3-5-haiku-20241022":  {InputPerMTok: 0.80, OutputPerMTok: 4.00},
	"gpt-4o":                     {InputPerMTok: 2.50, OutputPerMTok: 10.00},
	"gpt-4o-mini":                {InputPerMTok: 0.15, OutputPerMTok: 0.60},
	"whisper-1":                  {InputPerMTok: 0, OutputPerMTok: 0},
}

var defaultPrice = Price{InputPerMTok: 5.00, OutputPerMTok: 20.00}

// Tracker converts token usage into USD and accumulates session totals. Safe
// for concurrent use across requests.
type Tracker struct {
	mu     sync.RWMutex
	prices map[string]Price
	totals map[string]float64 // session id -> USD
}

// NewTracker creates a tracker over the default price table.
func NewTracker() *Tracker {
	prices := make(map[string]Price, len(defaultPrices))
	for name, p := range defaultPrices {
		prices[name] = p
	}
	return &Tracker{prices: prices, totals: map[string]float64{}}
}

// SetPrice overrides or adds a model price.
func (t *Tracker) SetPrice(modelName string, p Price) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.prices[modelName] = p
}

// Cost computes the USD cost of one usage sample.
func (t *Tracker) Cost(modelName string, usage model.TokenUsage) float64 {
	t.mu.RLock()
	price, ok := t.prices[modelName]
	t.mu.RUnlock()
	if !ok {
		price = defaultPrice
	}
	return float64(usage.PromptTokens)/1e6*price.InputPerMTok +
		float64(usage.CompletionTokens)/1e6*price.OutputPerMTok
}

// Record computes the cost of a sample and adds it to the session total.
func (t *Tracker) Record(sessionID, modelName string, usage model.TokenUsage) float64 {
	cost := t.Cost(modelName, usage)
	t.mu.Lock()
	t.totals[sessionID] += cost
	t.mu.Unlock()
	return cost
}

// SessionTotal returns the accumulated USD for a session.
func (t *Tracker) SessionTotal(sessionID string) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.totals[sessionID]
}
