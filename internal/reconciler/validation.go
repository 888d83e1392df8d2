package reconciler

import (
	"fmt"

	"invoice-reconciler/internal/matcher"
	"invoice-reconciler/internal/models"
)

// Severity grades how much attention a reconciliation result needs.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityOK       Severity = "ok"
)

// ResultValidation is the post-run assessment of a single result.
type ResultValidation struct {
	InvoiceFiscalID   string   `json:"invoice_fiscal_id"`
	InvoiceIdentifier string   `json:"invoice_identifier"`
	Severity          Severity `json:"severity"`
	Issues            []string `json:"issues,omitempty"`
}

// NeedsReview reports whether the result should be routed to a human.
func (rv *ResultValidation) NeedsReview() bool {
	return rv.Severity == SeverityCritical || rv.Severity == SeverityHigh
}

// ValidateResults grades every result in a run. Grading is independent of
// the success flag: a technically successful match with a wide date gap
// still deserves a look.
func ValidateResults(results []*models.ReconciliationResult, config *matcher.MatchingConfig) []*ResultValidation {
	if config == nil {
		config = matcher.DefaultMatchingConfig()
	}

	validations := make([]*ResultValidation, 0, len(results))
	for _, result := range results {
		validations = append(validations, validateResult(result, config))
	}
	return validations
}

func validateResult(result *models.ReconciliationResult, config *matcher.MatchingConfig) *ResultValidation {
	rv := &ResultValidation{
		InvoiceFiscalID:   result.InvoiceFiscalID,
		InvoiceIdentifier: result.InvoiceIdentifier,
		Severity:          SeverityOK,
	}

	if !result.HasMatch() {
		rv.Severity = SeverityCritical
		rv.Issues = append(rv.Issues, "no receipt found for invoice")
		return rv
	}

	diffPct := result.AmountDiffPct
	if diffPct < 0 {
		diffPct = -diffPct
	}

	switch {
	case diffPct > config.AmountTolerancePercent*2:
		rv.raise(SeverityHigh)
		rv.Issues = append(rv.Issues, fmt.Sprintf(
			"amount difference %.2f%% is more than twice the tolerance", diffPct))
	case diffPct > config.AmountTolerancePercent:
		rv.raise(SeverityMedium)
		rv.Issues = append(rv.Issues, fmt.Sprintf(
			"amount difference %.2f%% exceeds the %.2f%% tolerance", diffPct, config.AmountTolerancePercent))
	}

	if result.Score < config.MinConfidenceScore {
		rv.raise(SeverityHigh)
		rv.Issues = append(rv.Issues, fmt.Sprintf(
			"match score %.2f is below the %.2f confidence floor", result.Score, config.MinConfidenceScore))
	}

	if gap := models.DaysBetween(result.InvoiceDate, result.ReceiptDate); gap > config.DayGapAlertThreshold {
		rv.raise(SeverityMedium)
		rv.Issues = append(rv.Issues, fmt.Sprintf(
			"receipt date is %d days away from the invoice date", gap))
	}

	// Goods are normally received before the supplier invoices them.
	if result.ReceiptDate.After(result.InvoiceDate) {
		rv.raise(SeverityLow)
		rv.Issues = append(rv.Issues, "receipt is dated after the invoice")
	}

	if result.MultiReceipt && result.ReceiptCount() > 5 {
		rv.raise(SeverityMedium)
		rv.Issues = append(rv.Issues, fmt.Sprintf(
			"invoice covered by %d receipts, verify the grouping", result.ReceiptCount()))
	}

	if rv.Severity == SeverityOK && result.HasAlerts() {
		rv.raise(SeverityLow)
		rv.Issues = append(rv.Issues, "result carries informational alerts")
	}

	return rv
}

// raise escalates the severity, never lowering it.
func (rv *ResultValidation) raise(severity Severity) {
	if severityRank(severity) > severityRank(rv.Severity) {
		rv.Severity = severity
	}
}

func severityRank(s Severity) int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}
