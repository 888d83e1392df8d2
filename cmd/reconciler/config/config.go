package config

import (
	"fmt"
	"time"

	"invoice-reconciler/internal/matcher"
	"invoice-reconciler/internal/parsers"
	"invoice-reconciler/internal/reconciler"
	"invoice-reconciler/internal/reporter"

	"github.com/spf13/viper"
)

// CreateInvoiceParserConfig creates the invoice parser configuration for
// CLI runs. ColumnAliases maps each logical field to the header the export
// actually carries; the viper key "invoice-columns.<field>" overrides the
// default header per field, e.g.
//
//	RECONCILER_INVOICE_COLUMNS.FISCAL_ID=uuid
func CreateInvoiceParserConfig() *parsers.InvoiceParserConfig {
	config := parsers.DefaultInvoiceParserConfig()

	for field, header := range viper.GetStringMapString("invoice-columns") {
		config.ColumnAliases[field] = header
	}

	return config
}

// CreateReceiptParserConfig creates the receipt parser configuration for
// CLI runs, honoring "receipt-columns.<field>" header overrides.
func CreateReceiptParserConfig() *parsers.ReceiptParserConfig {
	config := parsers.DefaultReceiptParserConfig()

	for field, header := range viper.GetStringMapString("receipt-columns") {
		config.ColumnAliases[field] = header
	}

	return config
}

// CreateMatchingConfig creates a matching configuration with the specified
// CLI overrides. Zero values leave the defaults untouched.
func CreateMatchingConfig(dayWindow int, amountTolerance float64) *matcher.MatchingConfig {
	config := matcher.DefaultMatchingConfig()

	// Apply CLI overrides
	if dayWindow > 0 {
		config.DayWindow = dayWindow
		if config.WidenedDayWindow < dayWindow*2 {
			config.WidenedDayWindow = dayWindow * 2
		}
	}
	if amountTolerance > 0 {
		config.AmountTolerancePercent = amountTolerance
	}

	return config
}

// CreateReconcilerConfig creates a reconciler configuration
func CreateReconcilerConfig(mode string, showProgress bool, startDate, endDate *time.Time) *reconciler.Config {
	config := reconciler.DefaultConfig()

	// Apply CLI overrides
	config.Mode = reconciler.RunMode(mode)
	config.ProgressReporting = showProgress
	config.StartDate = startDate
	config.EndDate = endDate

	return config
}

// CreateReportConfig creates a report configuration for the specified output format
func CreateReportConfig(format string) *reporter.ReportConfig {
	config := reporter.DefaultReportConfig()

	// Set output format
	switch format {
	case "console":
		config.Format = reporter.FormatConsole
		config.IncludeResults = true
		config.IncludeUnmatchedReceipts = true
		config.IncludeValidations = true
	case "json":
		config.Format = reporter.FormatJSON
		config.IncludeResults = true
		config.IncludeUnmatchedReceipts = true
		config.IncludeValidations = true
	case "csv":
		config.Format = reporter.FormatCSV
		config.CSVHeaders = true
		config.CSVDelimiter = ','
		config.IncludeResults = true
		config.IncludeUnmatchedReceipts = true
		config.IncludeValidations = false // CSV is for row data
	}

	return config
}

// ValidateConfig validates that all required configurations are valid
func ValidateConfig(invoiceConfig *parsers.InvoiceParserConfig, receiptConfig *parsers.ReceiptParserConfig, matchingConfig *matcher.MatchingConfig) error {
	// Validate invoice config
	if err := invoiceConfig.Validate(); err != nil {
		return fmt.Errorf("invalid invoice config: %w", err)
	}

	// Validate receipt config
	if err := receiptConfig.Validate(); err != nil {
		return fmt.Errorf("invalid receipt config: %w", err)
	}

	// Validate matching config
	if err := matchingConfig.Validate(); err != nil {
		return fmt.Errorf("invalid matching config: %w", err)
	}

	return nil
}
