package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MatchStage identifies which matching stage produced a match.
type MatchStage int

const (
	// StageNone means no stage produced a match.
	StageNone MatchStage = iota

	// StageReference is a match resolved from reference codes extracted from
	// an auxiliary document accompanying the invoice.
	StageReference

	// StageDirectNumber is a match resolved from a receipt number the invoice
	// itself encodes.
	StageDirectNumber

	// StageHeuristic is a single-receipt match found by scored search.
	StageHeuristic

	// StageCombination is a multi-receipt match found by subset search.
	StageCombination
)

// String returns the string representation of MatchStage.
func (ms MatchStage) String() string {
	switch ms {
	case StageReference:
		return "reference"
	case StageDirectNumber:
		return "direct_number"
	case StageHeuristic:
		return "heuristic"
	case StageCombination:
		return "combination"
	default:
		return "none"
	}
}

// MatchScore is the computed confidence of a match between one invoice and
// one or more receipts.
type MatchScore struct {
	Total         float64 `json:"total"`
	AmountScore   float64 `json:"amount_score"`
	DateScore     float64 `json:"date_score"`
	LineItemScore float64 `json:"line_item_score"`

	AmountDiff    decimal.Decimal `json:"amount_diff"`
	AmountDiffPct float64         `json:"amount_diff_pct"`
	DaysGap       int             `json:"days_gap"`

	Notes []string `json:"notes,omitempty"`

	MultiReceipt bool                `json:"multi_receipt"`
	Receipts     []*ReceiptCandidate `json:"receipts,omitempty"`
	Stage        MatchStage          `json:"stage"`
}

// ReceiptCount returns the number of receipts involved in the match.
func (ms *MatchScore) ReceiptCount() int {
	return len(ms.Receipts)
}

// ReconciliationResult is the per-invoice outcome of a reconciliation run.
type ReconciliationResult struct {
	InvoiceFiscalID   string          `json:"invoice_fiscal_id"`
	InvoiceIdentifier string          `json:"invoice_identifier"`
	IssuerTaxID       string          `json:"issuer_tax_id"`
	IssuerName        string          `json:"issuer_name,omitempty"`
	InvoiceDate       time.Time       `json:"invoice_date"`
	InvoiceTotal      decimal.Decimal `json:"invoice_total"`

	Receipts     []*ReceiptCandidate `json:"receipts,omitempty"`
	ReceiptDate  time.Time           `json:"receipt_date,omitempty"`
	ReceiptTotal decimal.Decimal     `json:"receipt_total"`
	MultiReceipt bool                `json:"multi_receipt"`

	Success bool       `json:"success"`
	Score   float64    `json:"score"`
	Stage   MatchStage `json:"stage"`

	AmountDiff    decimal.Decimal `json:"amount_diff"`
	AmountDiffPct float64         `json:"amount_diff_pct"`

	Alerts []string `json:"alerts,omitempty"`

	ProcessedAt time.Time `json:"processed_at"`
}

// NewReconciliationResult creates the base result for an invoice before any
// matching stage has run.
func NewReconciliationResult(inv *Invoice) *ReconciliationResult {
	return &ReconciliationResult{
		InvoiceFiscalID:   inv.FiscalID,
		InvoiceIdentifier: inv.Identifier(),
		IssuerTaxID:       inv.IssuerTaxID,
		IssuerName:        inv.IssuerName,
		InvoiceDate:       inv.IssueDate,
		InvoiceTotal:      inv.Total,
		ProcessedAt:       time.Now(),
	}
}

// HasMatch reports whether any receipt was matched.
func (rr *ReconciliationResult) HasMatch() bool {
	return len(rr.Receipts) > 0
}

// ReceiptNumbers returns the matched receipt IDs joined by commas.
func (rr *ReconciliationResult) ReceiptNumbers() string {
	return strings.Join(ReceiptIDs(rr.Receipts), ", ")
}

// ReceiptCount returns the number of matched receipts.
func (rr *ReconciliationResult) ReceiptCount() int {
	return len(rr.Receipts)
}

// HasAlerts reports whether any alert was recorded.
func (rr *ReconciliationResult) HasAlerts() bool {
	return len(rr.Alerts) > 0
}

// Status summarizes the reconciliation outcome.
func (rr *ReconciliationResult) Status() string {
	switch {
	case rr.Success && rr.MultiReceipt:
		return "RECONCILED_MULTI"
	case rr.Success:
		return "RECONCILED"
	case rr.HasMatch():
		return "WITH_DIFFERENCES"
	default:
		return "NO_RECEIPT"
	}
}

// ApplyScore fills the match fields of the result from a computed score.
func (rr *ReconciliationResult) ApplyScore(score *MatchScore) {
	rr.Receipts = score.Receipts
	rr.ReceiptTotal = SumReceiptTotals(score.Receipts)
	rr.MultiReceipt = score.MultiReceipt
	rr.Score = score.Total
	rr.Stage = score.Stage
	rr.AmountDiff = score.AmountDiff
	rr.AmountDiffPct = score.AmountDiffPct

	if len(score.Receipts) > 0 {
		// Earliest member date for combinations, the receipt date otherwise.
		earliest := score.Receipts[0].Date
		for _, rc := range score.Receipts[1:] {
			if rc.Date.Before(earliest) {
				earliest = rc.Date
			}
		}
		rr.ReceiptDate = earliest
	}
}

// String returns a short human-readable representation of the result.
func (rr *ReconciliationResult) String() string {
	return fmt.Sprintf("Result{Invoice: %s, Status: %s, Receipts: [%s], Score: %.2f}",
		rr.InvoiceIdentifier, rr.Status(), rr.ReceiptNumbers(), rr.Score)
}
