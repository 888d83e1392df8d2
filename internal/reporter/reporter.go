// Package reporter renders reconciliation run results for people and
// programs.
//
// Supported output formats:
//   - Console: human-readable sections for terminal display
//   - JSON: structured output for programmatic consumption
//   - CSV: one row per invoice for spreadsheet review
package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"invoice-reconciler/internal/models"
	"invoice-reconciler/internal/reconciler"
)

// OutputFormat represents the supported report output formats.
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
	FormatCSV     OutputFormat = "csv"
)

// IsValid checks if the output format is supported
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON, FormatCSV:
		return true
	default:
		return false
	}
}

// ReportConfig holds configuration options for report generation
type ReportConfig struct {
	Format OutputFormat `json:"format"`

	// Detail level options
	IncludeResults           bool `json:"include_results"`
	IncludeUnmatchedReceipts bool `json:"include_unmatched_receipts"`
	IncludeValidations       bool `json:"include_validations"`
	OnlyProblems             bool `json:"only_problems"`

	// CSV options
	CSVDelimiter rune `json:"csv_delimiter"`
	CSVHeaders   bool `json:"csv_headers"`

	// Console options
	SortByAmount bool `json:"sort_by_amount"`
	MaxListItems int  `json:"max_list_items"`
}

// DefaultReportConfig returns a default report configuration
func DefaultReportConfig() *ReportConfig {
	return &ReportConfig{
		Format:                   FormatConsole,
		IncludeResults:           true,
		IncludeUnmatchedReceipts: true,
		IncludeValidations:       true,
		OnlyProblems:             false,
		CSVDelimiter:             ',',
		CSVHeaders:               true,
		SortByAmount:             false,
		MaxListItems:             10,
	}
}

// Validate validates the report configuration
func (c *ReportConfig) Validate() error {
	if !c.Format.IsValid() {
		return fmt.Errorf("invalid output format: %s", c.Format)
	}

	if c.MaxListItems < 1 {
		return fmt.Errorf("max list items must be at least 1, got %d", c.MaxListItems)
	}

	return nil
}

// ReportGenerator generates reconciliation reports in various formats
type ReportGenerator struct {
	config *ReportConfig
}

// NewReportGenerator creates a new report generator with the specified configuration
func NewReportGenerator(config *ReportConfig) (*ReportGenerator, error) {
	if config == nil {
		config = DefaultReportConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid report configuration: %w", err)
	}

	return &ReportGenerator{config: config}, nil
}

// GenerateReport renders the run result to the provided writer
func (rg *ReportGenerator) GenerateReport(result *reconciler.RunResult, writer io.Writer) error {
	if result == nil {
		return fmt.Errorf("run result cannot be nil")
	}

	switch rg.config.Format {
	case FormatConsole:
		return rg.generateConsoleReport(result, writer)
	case FormatJSON:
		return rg.generateJSONReport(result, writer)
	case FormatCSV:
		return rg.generateCSVReport(result, writer)
	default:
		return fmt.Errorf("unsupported output format: %s", rg.config.Format)
	}
}

// generateConsoleReport generates a human-readable console report
func (rg *ReportGenerator) generateConsoleReport(result *reconciler.RunResult, writer io.Writer) error {
	fmt.Fprintf(writer, "INVOICE RECONCILIATION REPORT\n")
	fmt.Fprintf(writer, "Generated: %s\n", result.ProcessedAt.Format(time.RFC3339))
	fmt.Fprintf(writer, "Mode: %s\n", result.Summary.Mode)
	fmt.Fprintf(writer, "Processing Duration: %v\n\n", result.Summary.ProcessingDuration)

	fmt.Fprintf(writer, "=== SUMMARY ===\n")
	rg.printSummary(result.Summary, writer)
	fmt.Fprintf(writer, "\n")

	fmt.Fprintf(writer, "=== FINANCIAL SUMMARY ===\n")
	rg.printFinancialSummary(result.Summary, writer)
	fmt.Fprintf(writer, "\n")

	if len(result.Summary.ByStage) > 0 {
		fmt.Fprintf(writer, "=== MATCH STAGE BREAKDOWN ===\n")
		rg.printStageBreakdown(result.Summary, writer)
		fmt.Fprintf(writer, "\n")
	}

	if rg.config.IncludeResults {
		fmt.Fprintf(writer, "=== INVOICES ===\n")
		rg.printResults(result.Results, writer)
		fmt.Fprintf(writer, "\n")
	}

	if rg.config.IncludeValidations && len(result.Validations) > 0 {
		fmt.Fprintf(writer, "=== REVIEW QUEUE ===\n")
		rg.printValidations(result.Validations, writer)
		fmt.Fprintf(writer, "\n")
	}

	if len(result.DuplicateAlerts) > 0 {
		fmt.Fprintf(writer, "=== DUPLICATE RECEIPT ALERTS ===\n")
		for _, alert := range result.DuplicateAlerts {
			fmt.Fprintf(writer, "  - %s\n", alert)
		}
		fmt.Fprintf(writer, "\n")
	}

	if rg.config.IncludeUnmatchedReceipts && len(result.UnmatchedReceipts) > 0 {
		fmt.Fprintf(writer, "=== UNMATCHED RECEIPTS ===\n")
		rg.printUnmatchedReceipts(result.UnmatchedReceipts, writer)
	}

	return nil
}

// generateJSONReport generates a structured JSON report
func (rg *ReportGenerator) generateJSONReport(result *reconciler.RunResult, writer io.Writer) error {
	output := map[string]interface{}{
		"summary":      result.Summary,
		"processed_at": result.ProcessedAt,
	}

	if rg.config.IncludeResults {
		output["results"] = rg.filterResults(result.Results)
	}
	if rg.config.IncludeValidations && result.Validations != nil {
		output["validations"] = result.Validations
	}
	if rg.config.IncludeUnmatchedReceipts && result.UnmatchedReceipts != nil {
		output["unmatched_receipts"] = result.UnmatchedReceipts
	}
	if len(result.DuplicateAlerts) > 0 {
		output["duplicate_alerts"] = result.DuplicateAlerts
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")

	return encoder.Encode(output)
}

// generateCSVReport generates a CSV report with one row per invoice
func (rg *ReportGenerator) generateCSVReport(result *reconciler.RunResult, writer io.Writer) error {
	csvWriter := csv.NewWriter(writer)
	csvWriter.Comma = rg.config.CSVDelimiter
	defer csvWriter.Flush()

	if rg.config.CSVHeaders {
		headers := []string{
			"Invoice",
			"Fiscal_ID",
			"Issuer_Tax_ID",
			"Invoice_Date",
			"Invoice_Total",
			"Status",
			"Stage",
			"Receipts",
			"Receipt_Total",
			"Score",
			"Amount_Diff",
			"Amount_Diff_Pct",
			"Alerts",
		}
		if err := csvWriter.Write(headers); err != nil {
			return fmt.Errorf("failed to write CSV headers: %w", err)
		}
	}

	for _, r := range rg.filterResults(result.Results) {
		record := []string{
			r.InvoiceIdentifier,
			r.InvoiceFiscalID,
			r.IssuerTaxID,
			r.InvoiceDate.Format("2006-01-02"),
			r.InvoiceTotal.StringFixed(2),
			r.Status(),
			r.Stage.String(),
			r.ReceiptNumbers(),
			r.ReceiptTotal.StringFixed(2),
			fmt.Sprintf("%.2f", r.Score),
			r.AmountDiff.StringFixed(2),
			fmt.Sprintf("%.2f", r.AmountDiffPct),
			strings.Join(r.Alerts, "; "),
		}
		if err := csvWriter.Write(record); err != nil {
			return fmt.Errorf("failed to write invoice record: %w", err)
		}
	}

	if rg.config.IncludeUnmatchedReceipts {
		for _, rc := range result.UnmatchedReceipts {
			record := []string{
				"",
				"",
				rc.IssuerTaxID,
				rc.Date.Format("2006-01-02"),
				"",
				"UNMATCHED_RECEIPT",
				"",
				rc.ID(),
				rc.Total.StringFixed(2),
				"",
				"",
				"",
				"receipt never claimed by an invoice",
			}
			if err := csvWriter.Write(record); err != nil {
				return fmt.Errorf("failed to write unmatched receipt record: %w", err)
			}
		}
	}

	return nil
}

// Helper methods for console output formatting

func (rg *ReportGenerator) printSummary(summary *reconciler.RunSummary, writer io.Writer) {
	fmt.Fprintf(writer, "Invoices:\n")
	fmt.Fprintf(writer, "  Total:              %d\n", summary.TotalInvoices)
	fmt.Fprintf(writer, "  Reconciled:         %d (%.1f%%)\n",
		summary.Reconciled, percentage(summary.Reconciled, summary.TotalInvoices))
	fmt.Fprintf(writer, "  Reconciled (multi): %d (%.1f%%)\n",
		summary.ReconciledMulti, percentage(summary.ReconciledMulti, summary.TotalInvoices))
	fmt.Fprintf(writer, "  With differences:   %d (%.1f%%)\n",
		summary.WithDifferences, percentage(summary.WithDifferences, summary.TotalInvoices))
	fmt.Fprintf(writer, "  Without receipt:    %d (%.1f%%)\n",
		summary.WithoutReceipt, percentage(summary.WithoutReceipt, summary.TotalInvoices))

	fmt.Fprintf(writer, "\nReceipts:\n")
	fmt.Fprintf(writer, "  Total:     %d\n", summary.TotalReceipts)
	fmt.Fprintf(writer, "  Consumed:  %d\n", summary.ReceiptsConsumed)
	fmt.Fprintf(writer, "  Unmatched: %d\n", summary.ReceiptsUnmatched)

	if summary.InvoiceParseErrors > 0 || summary.ReceiptParseErrors > 0 {
		fmt.Fprintf(writer, "\nParse errors: %d invoice rows, %d receipt rows\n",
			summary.InvoiceParseErrors, summary.ReceiptParseErrors)
	}
}

func (rg *ReportGenerator) printFinancialSummary(summary *reconciler.RunSummary, writer io.Writer) {
	fmt.Fprintf(writer, "Total Invoice Amount: %s\n", summary.TotalInvoiceAmount.StringFixed(2))
	fmt.Fprintf(writer, "Total Matched Amount: %s\n", summary.TotalMatchedAmount.StringFixed(2))
	fmt.Fprintf(writer, "Net Difference:       %s\n", summary.NetDifference.StringFixed(2))
}

func (rg *ReportGenerator) printStageBreakdown(summary *reconciler.RunSummary, writer io.Writer) {
	stages := make([]string, 0, len(summary.ByStage))
	for stage := range summary.ByStage {
		stages = append(stages, stage)
	}
	sort.Strings(stages)

	for _, stage := range stages {
		fmt.Fprintf(writer, "%-15s %d\n", stage+":", summary.ByStage[stage])
	}
}

func (rg *ReportGenerator) printResults(results []*models.ReconciliationResult, writer io.Writer) {
	filtered := rg.filterResults(results)

	if rg.config.SortByAmount {
		sorted := make([]*models.ReconciliationResult, len(filtered))
		copy(sorted, filtered)
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].InvoiceTotal.GreaterThan(sorted[j].InvoiceTotal)
		})
		filtered = sorted
	}

	for i, r := range filtered {
		fmt.Fprintf(writer, "  %d. %s [%s] total %s", i+1, r.InvoiceIdentifier, r.Status(), r.InvoiceTotal.StringFixed(2))
		if r.HasMatch() {
			fmt.Fprintf(writer, " -> %s (score %.2f, stage %s)", r.ReceiptNumbers(), r.Score, r.Stage)
		}
		fmt.Fprintf(writer, "\n")

		for _, alert := range r.Alerts {
			fmt.Fprintf(writer, "       ! %s\n", alert)
		}

		if i+1 >= rg.config.MaxListItems && len(filtered) > rg.config.MaxListItems {
			fmt.Fprintf(writer, "  ... and %d more\n", len(filtered)-rg.config.MaxListItems)
			break
		}
	}
}

func (rg *ReportGenerator) printValidations(validations []*reconciler.ResultValidation, writer io.Writer) {
	bySeverity := make(map[reconciler.Severity][]*reconciler.ResultValidation)
	for _, v := range validations {
		if v.Severity == reconciler.SeverityOK {
			continue
		}
		bySeverity[v.Severity] = append(bySeverity[v.Severity], v)
	}

	order := []reconciler.Severity{
		reconciler.SeverityCritical,
		reconciler.SeverityHigh,
		reconciler.SeverityMedium,
		reconciler.SeverityLow,
	}

	for _, severity := range order {
		group := bySeverity[severity]
		if len(group) == 0 {
			continue
		}

		fmt.Fprintf(writer, "%s (%d):\n", strings.ToUpper(string(severity)), len(group))
		for _, v := range group {
			fmt.Fprintf(writer, "  - %s: %s\n", v.InvoiceIdentifier, strings.Join(v.Issues, "; "))
		}
		fmt.Fprintf(writer, "\n")
	}
}

func (rg *ReportGenerator) printUnmatchedReceipts(receipts []*models.ReceiptCandidate, writer io.Writer) {
	fmt.Fprintf(writer, "Total Unmatched Receipts: %d\n\n", len(receipts))

	listed := receipts
	if rg.config.SortByAmount {
		listed = make([]*models.ReceiptCandidate, len(receipts))
		copy(listed, receipts)
		sort.SliceStable(listed, func(i, j int) bool {
			return listed[i].Total.GreaterThan(listed[j].Total)
		})
	}

	for i, rc := range listed {
		fmt.Fprintf(writer, "  %d. %s, Supplier: %s, Total: %s, Date: %s\n",
			i+1, rc.ID(), rc.IssuerTaxID, rc.Total.StringFixed(2), rc.Date.Format("2006-01-02"))

		if i+1 >= rg.config.MaxListItems && len(listed) > rg.config.MaxListItems {
			fmt.Fprintf(writer, "  ... and %d more\n", len(listed)-rg.config.MaxListItems)
			break
		}
	}
}

// filterResults applies the OnlyProblems filter.
func (rg *ReportGenerator) filterResults(results []*models.ReconciliationResult) []*models.ReconciliationResult {
	if !rg.config.OnlyProblems {
		return results
	}

	var filtered []*models.ReconciliationResult
	for _, r := range results {
		if !r.Success || r.HasAlerts() {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

func percentage(part, total int) float64 {
	if total == 0 {
		return 0.0
	}
	return float64(part) / float64(total) * 100.0
}

// UpdateConfiguration updates the report generator configuration
func (rg *ReportGenerator) UpdateConfiguration(config *ReportConfig) error {
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid report configuration: %w", err)
	}

	rg.config = config
	return nil
}

// GetConfiguration returns the current configuration
func (rg *ReportGenerator) GetConfiguration() *ReportConfig {
	return rg.config
}
