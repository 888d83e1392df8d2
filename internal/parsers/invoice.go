package parsers

import (
	"context"
	"io"
	"strings"

	"invoice-reconciler/internal/models"
	"invoice-reconciler/pkg/errors"
	"invoice-reconciler/pkg/logger"

	"github.com/shopspring/decimal"
)

// InvoiceParser handles parsing of invoice export CSV files
type InvoiceParser struct {
	*BaseParser
	config *InvoiceParserConfig
	logger logger.Logger
}

// NewInvoiceParser creates a new InvoiceParser with the given configuration
func NewInvoiceParser(config *InvoiceParserConfig) (*InvoiceParser, error) {
	if config == nil {
		config = DefaultInvoiceParserConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "invoice_parser_config", config, err)
	}

	parseConfig := &ParseConfig{
		HasHeader:        config.HasHeader,
		Delimiter:        config.Delimiter,
		TrimLeadingSpace: true,
		SkipEmptyRows:    true,
	}

	return &InvoiceParser{
		BaseParser: NewBaseParser(parseConfig),
		config:     config,
		logger:     logger.GetGlobalLogger().WithComponent("invoice_parser"),
	}, nil
}

// ParseInvoices parses a CSV file containing invoices
func (ip *InvoiceParser) ParseInvoices(filePath string) ([]*models.Invoice, *ParseStats, error) {
	return ip.ParseInvoicesWithContext(context.Background(), filePath)
}

// ParseInvoicesWithContext parses invoices with cancellation support.
// Malformed rows are collected into the stats; only file-level failures
// abort the parse.
func (ip *InvoiceParser) ParseInvoicesWithContext(ctx context.Context, filePath string) ([]*models.Invoice, *ParseStats, error) {
	ip.logger.WithField("file_path", filePath).Info("Starting invoice parsing")

	file, reader, err := ip.OpenFile(filePath)
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	parseCtx := NewParseContext(ctx)
	stats := NewParseStats()

	requiredHeaders := []string{
		ip.config.GetColumnName("fiscal_id"),
		ip.config.GetColumnName("issuer_tax_id"),
		ip.config.GetColumnName("date"),
		ip.config.GetColumnName("total"),
	}
	if err := ip.ReadHeaders(reader, parseCtx, requiredHeaders); err != nil {
		return nil, stats, errors.WrapIfNeeded(err, errors.CategoryParse, errors.CodeMissingColumn, "invalid invoice file headers")
	}

	var invoices []*models.Invoice

	for {
		record, err := ip.ReadRecord(reader, parseCtx)
		if err != nil {
			if err == io.EOF {
				break
			}
			if parseCtx.IsCancelled() {
				return nil, stats, err
			}
			stats.AddError(&ParseError{
				Line:    parseCtx.LineNumber,
				Message: "failed to read record",
				Err:     err,
			})
			continue
		}

		stats.RecordsParsed++

		inv, parseErr := ip.parseInvoiceFromRecord(record, parseCtx)
		if parseErr != nil {
			ip.logger.WithError(parseErr).WithField("line_number", parseCtx.LineNumber).Warn("Skipping invalid invoice row")
			stats.AddError(parseErr)
			continue
		}

		invoices = append(invoices, inv)
		stats.RecordsValid++
	}

	stats.TotalLines = parseCtx.LineNumber

	ip.logger.WithFields(logger.Fields{
		"file_path":      filePath,
		"total_lines":    stats.TotalLines,
		"records_parsed": stats.RecordsParsed,
		"records_valid":  stats.RecordsValid,
		"error_count":    stats.ErrorCount,
	}).Info("Invoice parsing completed")

	if stats.HasErrors() {
		ip.logger.WithField("sample_errors", stats.GetSampleErrors(3)).Warn("Encountered errors during parsing")
	}

	return invoices, stats, nil
}

// parseInvoiceFromRecord creates an Invoice from a CSV record
func (ip *InvoiceParser) parseInvoiceFromRecord(record []string, parseCtx *ParseContext) (*models.Invoice, *ParseError) {
	get := func(standardName string) string {
		return ip.GetFieldValue(record, parseCtx, ip.config.GetColumnName(standardName))
	}

	inv, err := models.CreateInvoiceFromCSV(
		get("fiscal_id"),
		get("series"),
		get("folio"),
		get("issuer_tax_id"),
		get("issuer_name"),
		get("date"),
		get("subtotal"),
		get("tax"),
		get("total"),
		get("receipt_hint"),
	)
	if err != nil {
		return nil, &ParseError{
			Line:    parseCtx.LineNumber,
			Field:   ip.config.GetColumnName("fiscal_id"),
			Value:   get("fiscal_id"),
			Message: "invalid invoice record",
			Err:     err,
		}
	}

	inv.ReferenceCodes = splitListField(get("references"))

	items, err := parseLineItems(get("line_items"))
	if err != nil {
		return nil, &ParseError{
			Line:    parseCtx.LineNumber,
			Field:   ip.config.GetColumnName("line_items"),
			Value:   get("line_items"),
			Message: "invalid line items",
			Err:     err,
		}
	}
	inv.LineItems = items

	return inv, nil
}

// splitListField splits a multi-valued CSV field on pipes or semicolons.
func splitListField(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}

	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == '|' || r == ';'
	})

	var values []string
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}

// parseLineItems parses a pipe-separated list of "quantity x description"
// entries. An entry without the quantity prefix defaults to quantity 1.
func parseLineItems(s string) ([]models.LineItem, error) {
	entries := splitListField(s)
	if len(entries) == 0 {
		return nil, nil
	}

	items := make([]models.LineItem, 0, len(entries))
	for _, entry := range entries {
		item := models.LineItem{
			Description: entry,
			Quantity:    decimal.NewFromInt(1),
		}

		if qty, rest, found := strings.Cut(entry, " x "); found {
			if parsed, err := models.ParseDecimalFromString(qty); err == nil {
				item.Quantity = parsed
				item.Description = strings.TrimSpace(rest)
			}
		}

		if item.Description == "" {
			continue
		}
		items = append(items, item)
	}

	return items, nil
}
