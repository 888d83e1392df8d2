package matcher

import (
	"sort"

	"invoice-reconciler/internal/models"

	"github.com/shopspring/decimal"
)

// exactSumTolerance is the absolute difference, in currency units, under
// which a combination sum counts as exact and short-circuits the search.
var exactSumTolerance = decimal.NewFromFloat(0.50)

// CombinationSearch looks for a subset of receipts whose totals sum to the
// invoice total. The search space is Σ C(n,k) for k up to the configured
// maximum, so the candidate pool is bounded and exact sums terminate the
// enumeration early.
type CombinationSearch struct {
	config     *MatchingConfig
	calculator *ScoreCalculator
}

// NewCombinationSearch creates a CombinationSearch sharing the engine's
// score calculator.
func NewCombinationSearch(config *MatchingConfig, calculator *ScoreCalculator) *CombinationSearch {
	return &CombinationSearch{
		config:     config,
		calculator: calculator,
	}
}

// Find searches candidates for the best-reconciling combination of 2 or more
// receipts, bounded to poolSize. Candidates must already be filtered for
// consumption; Find additionally drops linked receipts and receipts larger
// than the invoice total, which cannot participate in a sum. It returns nil
// when no combination falls within the amount tolerance.
//
// Priority policy, first satisfied wins:
//  1. Exact sum (within half a currency unit): returned immediately.
//  2. Combination whose member line count equals the invoice's line-item
//     count: best such is kept, and returned immediately if its difference
//     is also effectively zero (<=0.5%).
//  3. Fallback best by ascending difference percentage, then descending
//     score.
func (cs *CombinationSearch) Find(inv *models.Invoice, candidates []*models.ReceiptCandidate, poolSize int) *models.MatchScore {
	eligible := make([]*models.ReceiptCandidate, 0, len(candidates))
	for _, rc := range candidates {
		if rc.Linked {
			continue
		}
		if rc.Total.GreaterThan(inv.Total) {
			continue
		}
		eligible = append(eligible, rc)
	}

	if len(eligible) < 2 {
		return nil
	}

	// Order the pool before truncating so the bound is deterministic and
	// favors the receipts that constrain the sum most, not whatever order
	// the ledger returned.
	sort.SliceStable(eligible, func(i, j int) bool {
		if !eligible[i].Total.Equal(eligible[j].Total) {
			return eligible[i].Total.GreaterThan(eligible[j].Total)
		}

		gi := models.DaysBetween(inv.IssueDate, eligible[i].Date)
		gj := models.DaysBetween(inv.IssueDate, eligible[j].Date)
		if gi != gj {
			return gi < gj
		}

		return eligible[i].ID() < eligible[j].ID()
	})

	if len(eligible) > poolSize {
		eligible = eligible[:poolSize]
	}

	tolerance := cs.config.AmountTolerance(inv.Total)
	invoiceLineCount := inv.LineItemCount()

	var best, bestLineExact *models.MatchScore

	maxSize := cs.config.MaxCombinationSize
	if maxSize > len(eligible) {
		maxSize = len(eligible)
	}

	combo := make([]*models.ReceiptCandidate, 0, maxSize)

	var walk func(start int, sum decimal.Decimal, lines int, size int) *models.MatchScore
	walk = func(start int, sum decimal.Decimal, lines int, size int) *models.MatchScore {
		if len(combo) == size {
			diff := inv.Total.Sub(sum).Abs()
			if diff.GreaterThan(tolerance) {
				return nil
			}

			members := make([]*models.ReceiptCandidate, len(combo))
			copy(members, combo)
			score := cs.calculator.ScoreCombination(inv, members)

			if diff.LessThanOrEqual(exactSumTolerance) {
				return score
			}

			if invoiceLineCount > 0 && lines == invoiceLineCount {
				if bestLineExact == nil || score.Total > bestLineExact.Total {
					bestLineExact = score
					if score.AmountDiffPct <= 0.5 {
						return bestLineExact
					}
				}
				return nil
			}

			if best == nil ||
				score.AmountDiffPct < best.AmountDiffPct ||
				(score.AmountDiffPct == best.AmountDiffPct && score.Total > best.Total) {
				best = score
			}
			return nil
		}

		for i := start; i < len(eligible); i++ {
			rc := eligible[i]
			combo = append(combo, rc)
			if exact := walk(i+1, sum.Add(rc.Total), lines+rc.LineCount(), size); exact != nil {
				return exact
			}
			combo = combo[:len(combo)-1]
		}
		return nil
	}

	for size := 2; size <= maxSize; size++ {
		if exact := walk(0, decimal.Zero, 0, size); exact != nil {
			return exact
		}
	}

	if bestLineExact != nil {
		return bestLineExact
	}

	return best
}
