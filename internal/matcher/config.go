// Package matcher implements the invoice / goods-receipt matching engine.
//
// The engine resolves each invoice against a pool of candidate receipts held
// in an external ledger, under uncertainty: amounts rarely match exactly
// because of taxes, partial deliveries and supplier-side rounding; receipts
// precede invoices by days or weeks; and one invoice may legitimately cover
// several receipts whose totals must sum to the invoice total.
//
// Matching proceeds in stages per invoice:
//  1. Reference lookup from auxiliary-document codes
//  2. Direct lookup of a receipt number the invoice itself encodes
//  3. Heuristic scored search for a single receipt
//  4. Bounded subset search for a multi-receipt combination
//  5. A widening retry with a larger window and candidate pool
//
// For whole batches, a global minimum-cost assignment resolves conflicts so
// that no receipt is claimed by two invoices.
//
// Example usage:
//
//	config := matcher.DefaultMatchingConfig()
//	config.DayWindow = 30
//
//	engine := matcher.NewEngine(repo, config)
//	results, err := engine.ReconcileBatch(invoices)
package matcher

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MatchingConfig holds the tunable parameters of the matching engine.
// Use the factory functions for common scenarios:
//   - DefaultMatchingConfig(): balanced settings for day-to-day runs
//   - StrictMatchingConfig(): tight tolerances for closing periods
//   - RelaxedMatchingConfig(): loose tolerances for exploratory runs
type MatchingConfig struct {
	// AmountTolerancePercent is the percentage difference under which an
	// amount is considered reconciled (0.0 to 100.0).
	AmountTolerancePercent float64 `json:"amount_tolerance_percent"`

	// DayWindow is the day range around the invoice date searched for
	// candidate receipts.
	DayWindow int `json:"day_window"`

	// WidenedDayWindow is the day range used by the widening retry when no
	// exact combination was found in the first pass.
	WidenedDayWindow int `json:"widened_day_window"`

	// SimilarityThreshold is the minimum fuzzy similarity ratio (0-100) for
	// a line-item description to count as matched.
	SimilarityThreshold int `json:"similarity_threshold"`

	// MaxCombinationSize caps how many receipts a combination may contain.
	MaxCombinationSize int `json:"max_combination_size"`

	// CombinationPoolSize bounds the candidate pool fed to the subset
	// search; the widening retry uses WidenedPoolSize instead.
	CombinationPoolSize int `json:"combination_pool_size"`
	WidenedPoolSize     int `json:"widened_pool_size"`

	// MinConfidenceScore is the score below which a match is recorded but
	// flagged unsuccessful.
	MinConfidenceScore float64 `json:"min_confidence_score"`

	// DayGapAlertThreshold is the day gap above which a date alert is
	// attached to the match.
	DayGapAlertThreshold int `json:"day_gap_alert_threshold"`

	// Weights are the relative weights of the scoring criteria.
	Weights MatchingWeights `json:"weights"`
}

// MatchingWeights defines the relative importance of the scoring criteria.
type MatchingWeights struct {
	AmountWeight   float64 `json:"amount_weight"`
	DateWeight     float64 `json:"date_weight"`
	LineItemWeight float64 `json:"line_item_weight"`
}

// DefaultMatchingConfig returns a configuration with the defaults the
// reconciliation agent runs with in production.
func DefaultMatchingConfig() *MatchingConfig {
	return &MatchingConfig{
		AmountTolerancePercent: 2.0,
		DayWindow:              15,
		WidenedDayWindow:       30,
		SimilarityThreshold:    80,
		MaxCombinationSize:     10,
		CombinationPoolSize:    15,
		WidenedPoolSize:        30,
		MinConfidenceScore:     0.70,
		DayGapAlertThreshold:   7,
		Weights: MatchingWeights{
			AmountWeight:   0.50,
			DateWeight:     0.30,
			LineItemWeight: 0.20,
		},
	}
}

// StrictMatchingConfig returns a configuration for strict matching.
func StrictMatchingConfig() *MatchingConfig {
	return &MatchingConfig{
		AmountTolerancePercent: 0.5,
		DayWindow:              7,
		WidenedDayWindow:       15,
		SimilarityThreshold:    90,
		MaxCombinationSize:     5,
		CombinationPoolSize:    10,
		WidenedPoolSize:        15,
		MinConfidenceScore:     0.85,
		DayGapAlertThreshold:   3,
		Weights: MatchingWeights{
			AmountWeight:   0.60,
			DateWeight:     0.25,
			LineItemWeight: 0.15,
		},
	}
}

// RelaxedMatchingConfig returns a configuration for relaxed matching.
func RelaxedMatchingConfig() *MatchingConfig {
	return &MatchingConfig{
		AmountTolerancePercent: 5.0,
		DayWindow:              30,
		WidenedDayWindow:       60,
		SimilarityThreshold:    70,
		MaxCombinationSize:     10,
		CombinationPoolSize:    20,
		WidenedPoolSize:        40,
		MinConfidenceScore:     0.60,
		DayGapAlertThreshold:   14,
		Weights: MatchingWeights{
			AmountWeight:   0.50,
			DateWeight:     0.30,
			LineItemWeight: 0.20,
		},
	}
}

// Validate checks if the matching configuration is valid.
func (mc *MatchingConfig) Validate() error {
	if mc.AmountTolerancePercent < 0.0 || mc.AmountTolerancePercent > 100.0 {
		return fmt.Errorf("amount tolerance percent must be between 0.0 and 100.0: %f", mc.AmountTolerancePercent)
	}

	if mc.DayWindow <= 0 {
		return fmt.Errorf("day window must be positive: %d", mc.DayWindow)
	}

	if mc.WidenedDayWindow < mc.DayWindow {
		return fmt.Errorf("widened day window %d cannot be smaller than day window %d", mc.WidenedDayWindow, mc.DayWindow)
	}

	if mc.SimilarityThreshold < 0 || mc.SimilarityThreshold > 100 {
		return fmt.Errorf("similarity threshold must be between 0 and 100: %d", mc.SimilarityThreshold)
	}

	if mc.MaxCombinationSize < 2 {
		return fmt.Errorf("max combination size must be at least 2: %d", mc.MaxCombinationSize)
	}

	if mc.CombinationPoolSize < 2 {
		return fmt.Errorf("combination pool size must be at least 2: %d", mc.CombinationPoolSize)
	}

	if mc.WidenedPoolSize < mc.CombinationPoolSize {
		return fmt.Errorf("widened pool size %d cannot be smaller than pool size %d", mc.WidenedPoolSize, mc.CombinationPoolSize)
	}

	if mc.MinConfidenceScore < 0.0 || mc.MinConfidenceScore > 1.0 {
		return fmt.Errorf("minimum confidence score must be between 0.0 and 1.0: %f", mc.MinConfidenceScore)
	}

	if err := mc.Weights.Validate(); err != nil {
		return fmt.Errorf("invalid weights: %w", err)
	}

	return nil
}

// Validate checks if the matching weights are valid.
func (mw *MatchingWeights) Validate() error {
	if mw.AmountWeight < 0.0 || mw.AmountWeight > 1.0 {
		return fmt.Errorf("amount weight must be between 0.0 and 1.0: %f", mw.AmountWeight)
	}

	if mw.DateWeight < 0.0 || mw.DateWeight > 1.0 {
		return fmt.Errorf("date weight must be between 0.0 and 1.0: %f", mw.DateWeight)
	}

	if mw.LineItemWeight < 0.0 || mw.LineItemWeight > 1.0 {
		return fmt.Errorf("line item weight must be between 0.0 and 1.0: %f", mw.LineItemWeight)
	}

	total := mw.AmountWeight + mw.DateWeight + mw.LineItemWeight
	if total < 0.9 || total > 1.1 {
		return fmt.Errorf("weights should sum to approximately 1.0, got %f", total)
	}

	return nil
}

// Clone creates a deep copy of the matching configuration.
func (mc *MatchingConfig) Clone() *MatchingConfig {
	if mc == nil {
		return nil
	}

	clone := *mc
	return &clone
}

// AmountTolerance returns the absolute tolerance for a given amount.
func (mc *MatchingConfig) AmountTolerance(amount decimal.Decimal) decimal.Decimal {
	percentage := decimal.NewFromFloat(mc.AmountTolerancePercent / 100.0)
	return amount.Abs().Mul(percentage)
}

// String returns a human-readable description of the configuration.
func (mc *MatchingConfig) String() string {
	return fmt.Sprintf("MatchingConfig{AmountTolerance: %.2f%%, DayWindow: %d, PoolSize: %d, MaxCombination: %d, MinConfidence: %.2f}",
		mc.AmountTolerancePercent, mc.DayWindow, mc.CombinationPoolSize, mc.MaxCombinationSize, mc.MinConfidenceScore)
}
