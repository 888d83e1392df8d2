package matcher

import (
	"sort"
	"strings"

	hungarianAlgorithm "github.com/oddg/hungarian-algorithm"

	"invoice-reconciler/internal/models"
	apperrors "invoice-reconciler/pkg/errors"
)

// sentinelCost marks invoice/candidate pairs that must never be assigned.
// It dwarfs any feasible cost: scores map to at most costScale and day gaps
// stay within the widened window.
const sentinelCost = 1 << 20

// costScale converts a match score into an integer cost for the solver.
const costScale = 1000

// assignmentColumn is one exact-sum candidate shared across the batch. Two
// invoices that can consume the same receipt set point at the same column,
// which is what lets the solver arbitrate between them.
type assignmentColumn struct {
	key      string
	receipts []*models.ReceiptCandidate
}

// ReconcileBatch reconciles a batch of invoices with a global assignment
// pass before the per-invoice stage pipeline runs.
//
// The assignment considers only exact candidates, single receipts or
// combinations whose amount difference is within the exact-sum tolerance,
// and picks the receipt-to-invoice pairing of minimum total cost. Invoices
// left unassigned fall back to the stage pipeline, sharing the run's
// ConsumedSet so that assigned receipts stay claimed.
func (e *Engine) ReconcileBatch(invoices []*models.Invoice) ([]*models.ReconciliationResult, error) {
	for _, inv := range invoices {
		if err := inv.Validate(); err != nil {
			return nil, apperrors.ValidationError(apperrors.CodeInvalidInvoice, err.Error()).
				WithContextValue("invoice", inv.Identifier())
		}
	}

	consumed := NewConsumedSet()
	results := make([]*models.ReconciliationResult, len(invoices))

	columns, feasible := e.collectExactCandidates(invoices)

	if len(columns) > 0 {
		e.assignExactCandidates(invoices, columns, feasible, consumed, results)
	}

	// Fallback pass for every invoice the assignment left unmatched.
	for i, inv := range invoices {
		if results[i] != nil {
			continue
		}

		result, err := e.reconcileOne(inv, consumed)
		if err != nil {
			return nil, err
		}
		results[i] = result
	}

	return results, nil
}

// collectExactCandidates gathers, for each invoice, every single receipt and
// the best combination whose amount difference is within the exact-sum
// tolerance. Columns are deduplicated across invoices by receipt-set key so
// the solver sees one column per distinct receipt set.
func (e *Engine) collectExactCandidates(invoices []*models.Invoice) ([]assignmentColumn, []map[int]*models.MatchScore) {
	var columns []assignmentColumn
	columnIndex := make(map[string]int)
	feasible := make([]map[int]*models.MatchScore, len(invoices))

	registerColumn := func(score *models.MatchScore) int {
		key := receiptSetKey(score.Receipts)
		if idx, ok := columnIndex[key]; ok {
			return idx
		}
		idx := len(columns)
		columns = append(columns, assignmentColumn{key: key, receipts: score.Receipts})
		columnIndex[key] = idx
		return idx
	}

	for i, inv := range invoices {
		candidates, err := e.repo.RetrieveCandidates(inv.IssuerTaxID, inv.IssueDate, inv.Total, e.config.DayWindow)
		if err != nil {
			e.log.WithError(err).WithField("invoice", inv.Identifier()).Warn("candidate retrieval failed, invoice deferred to fallback")
			continue
		}

		feasible[i] = make(map[int]*models.MatchScore)

		for _, rc := range candidates {
			if inv.Total.Sub(rc.Total).Abs().GreaterThan(exactSumTolerance) {
				continue
			}
			score := e.calculator.Score(inv, rc)
			score.Stage = models.StageHeuristic
			idx := registerColumn(score)
			if existing, ok := feasible[i][idx]; !ok || score.Total > existing.Total {
				feasible[i][idx] = score
			}
		}

		combo := e.combinations.Find(inv, candidates, e.config.CombinationPoolSize)
		if combo != nil && !combo.AmountDiff.GreaterThan(exactSumTolerance) {
			idx := registerColumn(combo)
			if existing, ok := feasible[i][idx]; !ok || combo.Total > existing.Total {
				feasible[i][idx] = combo
			}
		}
	}

	return columns, feasible
}

// assignExactCandidates solves the minimum-cost assignment over the exact
// candidates and commits the accepted pairings. Pairings whose receipts were
// already claimed by an earlier row are dropped; those invoices go through
// the fallback pass instead.
func (e *Engine) assignExactCandidates(
	invoices []*models.Invoice,
	columns []assignmentColumn,
	feasible []map[int]*models.MatchScore,
	consumed *ConsumedSet,
	results []*models.ReconciliationResult,
) {
	n := len(invoices)
	if len(columns) > n {
		n = len(columns)
	}

	matrix := make([][]int, n)
	for row := range matrix {
		matrix[row] = make([]int, n)
		for col := range matrix[row] {
			matrix[row][col] = sentinelCost
		}
		if row >= len(invoices) {
			continue
		}
		for col, score := range feasible[row] {
			matrix[row][col] = assignmentCost(score)
		}
	}

	assignment, err := hungarianAlgorithm.Solve(matrix)
	if err != nil {
		e.log.WithError(err).Warn(apperrors.AssignmentError(apperrors.CodeSolverFailure, err).Error())
		return
	}

	for row, col := range assignment {
		if row >= len(invoices) || col >= len(columns) {
			continue
		}

		score, ok := feasible[row][col]
		if !ok {
			// Sentinel pairing, no exact candidate connects this pair.
			continue
		}

		if consumed.ContainsAny(score.Receipts) {
			continue
		}

		inv := invoices[row]
		result := models.NewReconciliationResult(inv)
		e.applyMatch(inv, result, score, consumed)
		results[row] = result
	}
}

// assignmentCost maps a candidate score to an integer solver cost. Higher
// scores cost less; the day gap breaks ties between equally scored
// candidates in favor of the closer receipt.
func assignmentCost(score *models.MatchScore) int {
	cost := int((1-score.Total)*costScale) + score.DaysGap
	if cost < 0 {
		cost = 0
	}
	return cost
}

// receiptSetKey produces a stable identity for a set of receipts,
// independent of member order.
func receiptSetKey(receipts []*models.ReceiptCandidate) string {
	ids := models.ReceiptIDs(receipts)
	sort.Strings(ids)
	return strings.Join(ids, "+")
}
