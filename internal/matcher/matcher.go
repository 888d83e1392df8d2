package matcher

import (
	"fmt"

	"invoice-reconciler/internal/ledger"
	"invoice-reconciler/internal/models"
	apperrors "invoice-reconciler/pkg/errors"
	"invoice-reconciler/pkg/logger"
)

// Engine is the core reconciliation engine. It resolves invoices against
// receipt candidates retrieved from the ledger, either sequentially (stage
// router per invoice) or batch-optimally (global assignment first, stage
// router as fallback).
//
// An Engine is safe for sequential use only: each call to ReconcileBatch or
// ReconcileSequential owns a fresh ConsumedSet for the duration of the run.
type Engine struct {
	repo         ledger.Repository
	config       *MatchingConfig
	calculator   *ScoreCalculator
	combinations *CombinationSearch
	log          logger.Logger
}

// NewEngine creates an Engine with the default token-sort similarity.
func NewEngine(repo ledger.Repository, config *MatchingConfig) (*Engine, error) {
	return NewEngineWithSimilarity(repo, config, nil)
}

// NewEngineWithSimilarity creates an Engine with a custom similarity
// measure; nil selects the default.
func NewEngineWithSimilarity(repo ledger.Repository, config *MatchingConfig, similarity Similarity) (*Engine, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository is required")
	}

	if config == nil {
		config = DefaultMatchingConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid matching configuration: %w", err)
	}

	calculator := NewScoreCalculator(config, similarity)

	return &Engine{
		repo:         repo,
		config:       config,
		calculator:   calculator,
		combinations: NewCombinationSearch(config, calculator),
		log:          logger.GetGlobalLogger().WithComponent("matcher"),
	}, nil
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() *MatchingConfig {
	return e.config.Clone()
}

// ReconcileOne reconciles a single invoice with a fresh run scope.
func (e *Engine) ReconcileOne(inv *models.Invoice) (*models.ReconciliationResult, error) {
	return e.reconcileOne(inv, NewConsumedSet())
}

// ReconcileSequential reconciles a batch invoice by invoice, threading one
// ConsumedSet through every stage so that no receipt is claimed twice.
// Earlier invoices win contested receipts; use ReconcileBatch to resolve
// contested receipts optimally instead.
func (e *Engine) ReconcileSequential(invoices []*models.Invoice) ([]*models.ReconciliationResult, error) {
	consumed := NewConsumedSet()
	results := make([]*models.ReconciliationResult, 0, len(invoices))

	for _, inv := range invoices {
		result, err := e.reconcileOne(inv, consumed)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}

	return results, nil
}

// reconcileOne runs the per-invoice stage pipeline:
//  1. reference lookup from auxiliary-document codes
//  2. direct lookup of the receipt number the invoice encodes
//  3. heuristic single-receipt scoring, always paired with
//  4. combination subset search, then
//  5. a widening retry when no exact combination appeared.
func (e *Engine) reconcileOne(inv *models.Invoice, consumed *ConsumedSet) (*models.ReconciliationResult, error) {
	if err := inv.Validate(); err != nil {
		return nil, apperrors.ValidationError(apperrors.CodeInvalidInvoice, err.Error()).
			WithContextValue("invoice", inv.Identifier())
	}

	result := models.NewReconciliationResult(inv)
	log := e.log.WithField("invoice", inv.Identifier())

	if len(inv.ReferenceCodes) > 0 {
		if e.referenceStage(inv, result, consumed) {
			log.WithField("receipts", result.ReceiptNumbers()).Info("matched by auxiliary reference")
			return result, nil
		}
	}

	if inv.ReceiptNumberHint != "" {
		if e.directNumberStage(inv, result, consumed) {
			log.WithField("receipts", result.ReceiptNumbers()).Info("matched by direct receipt number")
			return result, nil
		}
		log.WithField("hint", inv.ReceiptNumberHint).Warn("hinted receipt not found, falling back to heuristic search")
	}

	candidates, err := e.repo.RetrieveCandidates(inv.IssuerTaxID, inv.IssueDate, inv.Total, e.config.DayWindow)
	if err != nil {
		log.WithError(err).Error("candidate retrieval failed")
		result.Alerts = append(result.Alerts, fmt.Sprintf("LEDGER_ERROR: candidate retrieval failed: %v", err))
		return result, nil
	}

	available := consumed.FilterAvailable(candidates)
	if len(available) == 0 {
		result.Alerts = append(result.Alerts, "NO_RECEIPT: no candidate receipts found in search window")
		return result, nil
	}

	var bestSingle *models.MatchScore
	for _, rc := range available {
		score := e.calculator.Score(inv, rc)
		score.Stage = models.StageHeuristic
		if bestSingle == nil || score.Total > bestSingle.Total {
			bestSingle = score
		}
	}

	// The combination search always runs even when a single receipt looks
	// acceptable: an exact multi-receipt sum can outrank an approximate
	// single match.
	combo := e.combinations.Find(inv, available, e.config.CombinationPoolSize)

	if combo == nil || combo.AmountDiff.GreaterThan(exactSumTolerance) {
		if widened := e.widenedCombination(inv, consumed); widened != nil {
			if combo == nil || betterCombination(widened, combo) {
				combo = widened
			}
		}
	}

	useCombo := false
	switch {
	case combo != nil && bestSingle != nil:
		useCombo = combo.Total > bestSingle.Total || abs(combo.AmountDiffPct) < abs(bestSingle.AmountDiffPct)
	case combo != nil:
		useCombo = true
	}

	switch {
	case useCombo:
		e.applyMatch(inv, result, combo, consumed)
	case bestSingle != nil:
		e.applyMatch(inv, result, bestSingle, consumed)
	}

	return result, nil
}

// referenceStage resolves receipt or purchase-order codes extracted from an
// auxiliary document. A reference hit is accepted regardless of amount
// closeness, with a difference alert when the sum falls outside tolerance.
func (e *Engine) referenceStage(inv *models.Invoice, result *models.ReconciliationResult, consumed *ConsumedSet) bool {
	var found []*models.ReceiptCandidate
	seen := make(map[string]bool)

	for _, code := range inv.ReferenceCodes {
		receipts, err := e.repo.RetrieveByReference(code, inv.IssuerTaxID)
		if err != nil {
			e.log.WithError(err).WithField("reference", code).Warn("reference lookup failed")
			continue
		}

		if len(receipts) == 0 {
			// Retry without the issuer filter; ledgers record tax IDs
			// inconsistently across supplier catalogs.
			if receipts, err = e.repo.RetrieveByReference(code, ""); err != nil {
				continue
			}
		}

		for _, rc := range receipts {
			if consumed.Contains(rc.ID()) || seen[rc.ID()] {
				continue
			}
			seen[rc.ID()] = true
			found = append(found, rc)
		}
	}

	if len(found) == 0 {
		return false
	}

	combined := models.SumReceiptTotals(found)
	diff := inv.Total.Sub(combined).Abs()
	diffPct := 100.0
	if inv.Total.IsPositive() {
		diffPct = diff.InexactFloat64() / inv.Total.InexactFloat64() * 100.0
	}

	total := 1.0
	if diffPct >= 1 {
		total = 1 - diffPct/100
		if total < 0 {
			total = 0
		}
	}

	score := &models.MatchScore{
		Total:         total,
		AmountScore:   total,
		DateScore:     1.0,
		LineItemScore: 1.0,
		AmountDiff:    diff,
		AmountDiffPct: diffPct,
		MultiReceipt:  len(found) > 1,
		Receipts:      found,
		Stage:         models.StageReference,
		Notes: []string{fmt.Sprintf(
			"REFERENCE_MATCH: %d receipts resolved from auxiliary document", len(found))},
	}

	e.applyMatch(inv, result, score, consumed)
	return true
}

// directNumberStage resolves the receipt number encoded on the invoice
// itself. A unique hit is accepted; among several hits the issuer-matching
// one wins.
func (e *Engine) directNumberStage(inv *models.Invoice, result *models.ReconciliationResult, consumed *ConsumedSet) bool {
	receipts, err := e.repo.RetrieveByNumber(inv.ReceiptNumberHint, inv.IssuerTaxID)
	if err != nil {
		e.log.WithError(err).WithField("hint", inv.ReceiptNumberHint).Warn("direct number lookup failed")
		return false
	}

	if len(receipts) == 0 {
		if receipts, err = e.repo.RetrieveByNumber(inv.ReceiptNumberHint, ""); err != nil {
			return false
		}
	}

	receipts = consumed.FilterAvailable(receipts)
	if len(receipts) == 0 {
		return false
	}

	var chosen *models.ReceiptCandidate
	if len(receipts) == 1 {
		chosen = receipts[0]
	} else {
		for _, rc := range receipts {
			if rc.IssuerTaxID == inv.IssuerTaxID {
				chosen = rc
				break
			}
		}
	}

	if chosen == nil {
		return false
	}

	score := e.calculator.Score(inv, chosen)
	score.Stage = models.StageDirectNumber
	score.Notes = append([]string{fmt.Sprintf(
		"DIRECT_MATCH: receipt %s referenced on invoice", inv.ReceiptNumberHint)}, score.Notes...)

	e.applyMatch(inv, result, score, consumed)
	return true
}

// widenedCombination reruns the combination search with the widened day
// window and pool bound.
func (e *Engine) widenedCombination(inv *models.Invoice, consumed *ConsumedSet) *models.MatchScore {
	widened, err := e.repo.RetrieveCandidates(inv.IssuerTaxID, inv.IssueDate, inv.Total, e.config.WidenedDayWindow)
	if err != nil {
		e.log.WithError(err).Warn("widened candidate retrieval failed")
		return nil
	}

	return e.combinations.Find(inv, consumed.FilterAvailable(widened), e.config.WidenedPoolSize)
}

// applyMatch is the single result-assembly path shared by every stage and
// by the batch assigner, for single and multi-receipt matches alike. It
// fills the result, decides success, appends alerts and commits the
// receipts to the run's ConsumedSet.
//
// Success policy: reference and direct-number matches succeed when the
// amount difference is within tolerance; heuristic and combination matches
// additionally require the composite score to reach the confidence floor.
func (e *Engine) applyMatch(inv *models.Invoice, result *models.ReconciliationResult, score *models.MatchScore, consumed *ConsumedSet) {
	result.ApplyScore(score)

	withinTolerance := abs(score.AmountDiffPct) <= e.config.AmountTolerancePercent
	confident := score.Total >= e.config.MinConfidenceScore

	switch score.Stage {
	case models.StageReference, models.StageDirectNumber:
		result.Success = withinTolerance
	default:
		result.Success = confident && withinTolerance
	}

	if !confident && score.Stage != models.StageReference && score.Stage != models.StageDirectNumber {
		result.Alerts = append(result.Alerts, fmt.Sprintf("LOW_CONFIDENCE: match score %.2f below threshold", score.Total))
	}

	if score.MultiReceipt {
		result.Alerts = append(result.Alerts, fmt.Sprintf("MULTI_RECEIPT: invoice covered by %d receipts", len(score.Receipts)))
	}

	result.Alerts = append(result.Alerts, score.Notes...)

	consumed.CommitAll(score.Receipts, inv.FiscalID)
}

// DetectDuplicateReceiptUsage audits a slice of results for receipts linked
// to more than one invoice. It inspects committed results only and does not
// consult the ConsumedSet.
func (e *Engine) DetectDuplicateReceiptUsage(results []*models.ReconciliationResult) []string {
	var alerts []string
	used := make(map[string]string)

	for _, result := range results {
		for _, rc := range result.Receipts {
			id := rc.ID()
			if firstInvoice, ok := used[id]; ok {
				alerts = append(alerts, fmt.Sprintf(
					"DUPLICATE_RECEIPT: receipt %s linked to invoices %s and %s",
					id, firstInvoice, result.InvoiceFiscalID))
				continue
			}
			used[id] = result.InvoiceFiscalID
		}
	}

	return alerts
}

func betterCombination(a, b *models.MatchScore) bool {
	if a.AmountDiffPct != b.AmountDiffPct {
		return a.AmountDiffPct < b.AmountDiffPct
	}
	return a.Total > b.Total
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
