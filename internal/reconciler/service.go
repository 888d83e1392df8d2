// Package reconciler provides high-level orchestration for the invoice
// reconciliation process.
//
// The ReconciliationService coordinates the complete workflow: parsing the
// invoice and receipt export files, loading the in-memory receipt ledger,
// running the matching engine in batch or sequential mode, auditing the
// results, and compiling the run summary consumed by the reporter.
package reconciler

import (
	"context"
	"fmt"
	"time"

	"invoice-reconciler/internal/ledger"
	"invoice-reconciler/internal/matcher"
	"invoice-reconciler/internal/models"
	"invoice-reconciler/internal/parsers"
	"invoice-reconciler/pkg/errors"
	"invoice-reconciler/pkg/logger"

	"github.com/shopspring/decimal"
)

// RunMode selects how contested receipts are arbitrated during a run.
type RunMode string

const (
	// BatchMode resolves contested receipts with a global assignment pass
	// before falling back to per-invoice matching.
	BatchMode RunMode = "batch"

	// SequentialMode matches invoices strictly in input order; earlier
	// invoices win contested receipts.
	SequentialMode RunMode = "sequential"
)

// ReconciliationService orchestrates the complete reconciliation process
type ReconciliationService struct {
	invoiceParser  *parsers.InvoiceParser
	receiptParser  *parsers.ReceiptParser
	matchingConfig *matcher.MatchingConfig
	config         *Config
	logger         logger.Logger
}

// Config holds configuration options for the reconciliation service
type Config struct {
	// Mode selects batch or sequential receipt arbitration.
	Mode RunMode

	// Date range filtering applied to parsed invoices.
	StartDate *time.Time
	EndDate   *time.Time

	// ProgressReporting enables interval progress logs for large runs.
	ProgressReporting bool

	// IncludeUnmatchedReceipts lists never-matched receipts in the summary.
	IncludeUnmatchedReceipts bool
}

// DefaultConfig returns a default configuration for the reconciliation service
func DefaultConfig() *Config {
	return &Config{
		Mode:                     BatchMode,
		ProgressReporting:        false,
		IncludeUnmatchedReceipts: true,
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Mode != BatchMode && c.Mode != SequentialMode {
		return fmt.Errorf("invalid run mode: %s", c.Mode)
	}

	if c.StartDate != nil && c.EndDate != nil && c.StartDate.After(*c.EndDate) {
		return fmt.Errorf("start date must be before end date")
	}

	return nil
}

// ReconciliationRequest represents a request for a reconciliation run
type ReconciliationRequest struct {
	InvoiceFile string
	ReceiptFile string

	InvoiceConfig *parsers.InvoiceParserConfig
	ReceiptConfig *parsers.ReceiptParserConfig
}

// Validate validates the reconciliation request
func (r *ReconciliationRequest) Validate() error {
	if r.InvoiceFile == "" {
		return fmt.Errorf("invoice file path is required")
	}

	if r.ReceiptFile == "" {
		return fmt.Errorf("receipt file path is required")
	}

	return nil
}

// RunResult contains the complete results of a reconciliation run
type RunResult struct {
	Summary *RunSummary `json:"summary"`

	Results []*models.ReconciliationResult `json:"results"`

	// UnmatchedReceipts are ledger receipts no invoice claimed.
	UnmatchedReceipts []*models.ReceiptCandidate `json:"unmatched_receipts,omitempty"`

	// DuplicateAlerts flag receipts linked to more than one invoice.
	DuplicateAlerts []string `json:"duplicate_alerts,omitempty"`

	// Validations carry per-result severity assessments.
	Validations []*ResultValidation `json:"validations,omitempty"`

	ProcessedAt time.Time              `json:"processed_at"`
	Request     *ReconciliationRequest `json:"request,omitempty"`
}

// RunSummary provides a high-level overview of a reconciliation run
type RunSummary struct {
	TotalInvoices    int `json:"total_invoices"`
	Reconciled       int `json:"reconciled"`
	ReconciledMulti  int `json:"reconciled_multi"`
	WithDifferences  int `json:"with_differences"`
	WithoutReceipt   int `json:"without_receipt"`

	TotalReceipts     int `json:"total_receipts"`
	ReceiptsConsumed  int `json:"receipts_consumed"`
	ReceiptsUnmatched int `json:"receipts_unmatched"`

	// Stage breakdown of matched invoices.
	ByStage map[string]int `json:"by_stage"`

	TotalInvoiceAmount decimal.Decimal `json:"total_invoice_amount"`
	TotalMatchedAmount decimal.Decimal `json:"total_matched_amount"`
	NetDifference      decimal.Decimal `json:"net_difference"`

	InvoiceParseErrors int `json:"invoice_parse_errors"`
	ReceiptParseErrors int `json:"receipt_parse_errors"`

	Mode               RunMode       `json:"mode"`
	ProcessingDuration time.Duration `json:"processing_duration"`
}

// SuccessRate returns the fraction of invoices reconciled successfully.
func (rs *RunSummary) SuccessRate() float64 {
	if rs.TotalInvoices == 0 {
		return 0
	}
	return float64(rs.Reconciled+rs.ReconciledMulti) / float64(rs.TotalInvoices)
}

// NewReconciliationService creates a new reconciliation service
func NewReconciliationService(
	invoiceConfig *parsers.InvoiceParserConfig,
	receiptConfig *parsers.ReceiptParserConfig,
	matchingConfig *matcher.MatchingConfig,
	config *Config,
) (*ReconciliationService, error) {
	if config == nil {
		config = DefaultConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "reconciliation_config", config, err)
	}

	invoiceParser, err := parsers.NewInvoiceParser(invoiceConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create invoice parser: %w", err)
	}

	receiptParser, err := parsers.NewReceiptParser(receiptConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create receipt parser: %w", err)
	}

	if matchingConfig == nil {
		matchingConfig = matcher.DefaultMatchingConfig()
	}

	return &ReconciliationService{
		invoiceParser:  invoiceParser,
		receiptParser:  receiptParser,
		matchingConfig: matchingConfig,
		config:         config,
		logger:         logger.GetGlobalLogger().WithComponent("reconciliation_service"),
	}, nil
}

// ProcessReconciliation performs the complete reconciliation run
func (rs *ReconciliationService) ProcessReconciliation(
	ctx context.Context,
	request *ReconciliationRequest,
) (*RunResult, error) {
	if err := request.Validate(); err != nil {
		return nil, errors.ValidationError(errors.CodeMissingField, err.Error())
	}

	op := logger.NewOperationLogger("reconciliation_run", rs.logger)
	startTime := time.Now()

	result := &RunResult{
		ProcessedAt: startTime,
		Request:     request,
		Summary: &RunSummary{
			Mode:    rs.config.Mode,
			ByStage: make(map[string]int),
		},
	}

	op.Step("parse_invoices")
	invoices, invoiceStats, err := rs.invoiceParser.ParseInvoicesWithContext(ctx, request.InvoiceFile)
	if err != nil {
		op.Error(err, "Invoice parsing failed")
		return nil, errors.WrapIfNeeded(err, errors.CategoryParse, errors.CodeInvalidFormat, "failed to parse invoice file")
	}

	op.Step("parse_receipts")
	receipts, receiptStats, err := rs.receiptParser.ParseReceiptsWithContext(ctx, request.ReceiptFile)
	if err != nil {
		op.Error(err, "Receipt parsing failed")
		return nil, errors.WrapIfNeeded(err, errors.CategoryParse, errors.CodeInvalidFormat, "failed to parse receipt file")
	}

	invoices = rs.applyDateFilter(invoices)

	op.Step("load_ledger")
	repo := ledger.NewMemoryRepository(receipts)

	engine, err := matcher.NewEngine(repo, rs.matchingConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create matching engine: %w", err)
	}

	op.Step("match")
	results, err := rs.runEngine(ctx, engine, invoices)
	if err != nil {
		op.Error(err, "Matching failed")
		return nil, err
	}

	op.Step("audit")
	result.Results = results
	result.DuplicateAlerts = engine.DetectDuplicateReceiptUsage(results)
	result.Validations = ValidateResults(results, rs.matchingConfig)

	rs.buildSummary(result, invoices, receipts, invoiceStats, receiptStats)
	result.Summary.ProcessingDuration = time.Since(startTime)

	if rs.config.IncludeUnmatchedReceipts {
		result.UnmatchedReceipts = unmatchedReceipts(receipts, results)
		result.Summary.ReceiptsUnmatched = len(result.UnmatchedReceipts)
	}

	op.WithField("invoices", len(invoices)).
		WithField("reconciled", result.Summary.Reconciled+result.Summary.ReconciledMulti).
		Success("Reconciliation run completed")

	return result, nil
}

// runEngine dispatches to the configured run mode.
func (rs *ReconciliationService) runEngine(ctx context.Context, engine *matcher.Engine, invoices []*models.Invoice) ([]*models.ReconciliationResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.InternalError("reconciliation", err)
	}

	if rs.config.ProgressReporting {
		progress := logger.NewProgressTracker("matching", int64(len(invoices)), 0, rs.logger)
		defer progress.Complete()
	}

	if rs.config.Mode == BatchMode {
		return engine.ReconcileBatch(invoices)
	}

	return engine.ReconcileSequential(invoices)
}

// applyDateFilter drops invoices outside the configured date range.
func (rs *ReconciliationService) applyDateFilter(invoices []*models.Invoice) []*models.Invoice {
	if rs.config.StartDate == nil && rs.config.EndDate == nil {
		return invoices
	}

	filtered := make([]*models.Invoice, 0, len(invoices))
	for _, inv := range invoices {
		if rs.config.StartDate != nil && inv.IssueDate.Before(*rs.config.StartDate) {
			continue
		}
		if rs.config.EndDate != nil && inv.IssueDate.After(*rs.config.EndDate) {
			continue
		}
		filtered = append(filtered, inv)
	}

	if len(filtered) != len(invoices) {
		rs.logger.WithFields(logger.Fields{
			"total":    len(invoices),
			"filtered": len(filtered),
		}).Info("Applied date range filter to invoices")
	}

	return filtered
}

// buildSummary compiles run totals from the per-invoice results.
func (rs *ReconciliationService) buildSummary(
	result *RunResult,
	invoices []*models.Invoice,
	receipts []*models.ReceiptCandidate,
	invoiceStats, receiptStats *parsers.ParseStats,
) {
	summary := result.Summary
	summary.TotalInvoices = len(invoices)
	summary.TotalReceipts = len(receipts)
	summary.TotalInvoiceAmount = decimal.Zero
	summary.TotalMatchedAmount = decimal.Zero

	if invoiceStats != nil {
		summary.InvoiceParseErrors = invoiceStats.ErrorCount
	}
	if receiptStats != nil {
		summary.ReceiptParseErrors = receiptStats.ErrorCount
	}

	for _, r := range result.Results {
		summary.TotalInvoiceAmount = summary.TotalInvoiceAmount.Add(r.InvoiceTotal)

		switch r.Status() {
		case "RECONCILED":
			summary.Reconciled++
		case "RECONCILED_MULTI":
			summary.ReconciledMulti++
		case "WITH_DIFFERENCES":
			summary.WithDifferences++
		default:
			summary.WithoutReceipt++
		}

		if r.HasMatch() {
			summary.ByStage[r.Stage.String()]++
			summary.ReceiptsConsumed += r.ReceiptCount()
			summary.TotalMatchedAmount = summary.TotalMatchedAmount.Add(r.ReceiptTotal)
		}
	}

	summary.NetDifference = summary.TotalInvoiceAmount.Sub(summary.TotalMatchedAmount)

	if summary.TotalInvoices > 0 && summary.WithoutReceipt*2 > summary.TotalInvoices {
		rs.logger.WithFields(logger.Fields{
			"without_receipt": summary.WithoutReceipt,
			"total_invoices":  summary.TotalInvoices,
		}).Warn("More than half of the invoices found no receipt, check the ledger export coverage")
	}
}

// unmatchedReceipts returns the receipts no result claimed.
func unmatchedReceipts(receipts []*models.ReceiptCandidate, results []*models.ReconciliationResult) []*models.ReceiptCandidate {
	claimed := make(map[string]bool)
	for _, r := range results {
		for _, rc := range r.Receipts {
			claimed[rc.ID()] = true
		}
	}

	var unmatched []*models.ReceiptCandidate
	for _, rc := range receipts {
		if !claimed[rc.ID()] && !rc.Linked {
			unmatched = append(unmatched, rc)
		}
	}
	return unmatched
}

// GetMatchingConfig returns the matching configuration in use.
func (rs *ReconciliationService) GetMatchingConfig() *matcher.MatchingConfig {
	return rs.matchingConfig
}
