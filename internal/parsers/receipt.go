package parsers

import (
	"context"
	"io"

	"invoice-reconciler/internal/models"
	"invoice-reconciler/pkg/errors"
	"invoice-reconciler/pkg/logger"
)

// ReceiptParser handles parsing of goods-receipt ledger export CSV files
type ReceiptParser struct {
	*BaseParser
	config *ReceiptParserConfig
	logger logger.Logger
}

// NewReceiptParser creates a new ReceiptParser with the given configuration
func NewReceiptParser(config *ReceiptParserConfig) (*ReceiptParser, error) {
	if config == nil {
		config = DefaultReceiptParserConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "receipt_parser_config", config, err)
	}

	parseConfig := &ParseConfig{
		HasHeader:        config.HasHeader,
		Delimiter:        config.Delimiter,
		TrimLeadingSpace: true,
		SkipEmptyRows:    true,
	}

	return &ReceiptParser{
		BaseParser: NewBaseParser(parseConfig),
		config:     config,
		logger:     logger.GetGlobalLogger().WithComponent("receipt_parser"),
	}, nil
}

// ParseReceipts parses a CSV file containing goods receipts
func (rp *ReceiptParser) ParseReceipts(filePath string) ([]*models.ReceiptCandidate, *ParseStats, error) {
	return rp.ParseReceiptsWithContext(context.Background(), filePath)
}

// ParseReceiptsWithContext parses receipts with cancellation support.
func (rp *ReceiptParser) ParseReceiptsWithContext(ctx context.Context, filePath string) ([]*models.ReceiptCandidate, *ParseStats, error) {
	rp.logger.WithField("file_path", filePath).Info("Starting receipt parsing")

	file, reader, err := rp.OpenFile(filePath)
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	parseCtx := NewParseContext(ctx)
	stats := NewParseStats()

	requiredHeaders := []string{
		rp.config.GetColumnName("number"),
		rp.config.GetColumnName("issuer_tax_id"),
		rp.config.GetColumnName("date"),
		rp.config.GetColumnName("total"),
	}
	if err := rp.ReadHeaders(reader, parseCtx, requiredHeaders); err != nil {
		return nil, stats, errors.WrapIfNeeded(err, errors.CategoryParse, errors.CodeMissingColumn, "invalid receipt file headers")
	}

	var receipts []*models.ReceiptCandidate

	for {
		record, err := rp.ReadRecord(reader, parseCtx)
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

		rc, parseErr := rp.parseReceiptFromRecord(record, parseCtx)
		if parseErr != nil {
			rp.logger.WithError(parseErr).WithField("line_number", parseCtx.LineNumber).Warn("Skipping invalid receipt row")
			stats.AddError(parseErr)
			continue
		}

		receipts = append(receipts, rc)
		stats.RecordsValid++
	}

	stats.TotalLines = parseCtx.LineNumber

	rp.logger.WithFields(logger.Fields{
		"file_path":      filePath,
		"total_lines":    stats.TotalLines,
		"records_parsed": stats.RecordsParsed,
		"records_valid":  stats.RecordsValid,
		"error_count":    stats.ErrorCount,
	}).Info("Receipt parsing completed")

	if stats.HasErrors() {
		rp.logger.WithField("sample_errors", stats.GetSampleErrors(3)).Warn("Encountered errors during parsing")
	}

	return receipts, stats, nil
}

// parseReceiptFromRecord creates a ReceiptCandidate from a CSV record
func (rp *ReceiptParser) parseReceiptFromRecord(record []string, parseCtx *ParseContext) (*models.ReceiptCandidate, *ParseError) {
	get := func(standardName string) string {
		return rp.GetFieldValue(record, parseCtx, rp.config.GetColumnName(standardName))
	}

	rc, err := models.CreateReceiptFromCSV(
		get("series"),
		get("number"),
		get("issuer_tax_id"),
		get("supplier_name"),
		get("date"),
		get("subtotal"),
		get("tax"),
		get("total"),
		get("reference"),
		get("linked_invoice"),
	)
	if err != nil {
		return nil, &ParseError{
			Line:    parseCtx.LineNumber,
			Field:   rp.config.GetColumnName("number"),
			Value:   get("number"),
			Message: "invalid receipt record",
			Err:     err,
		}
	}

	items, err := parseLineItems(get("lines"))
	if err != nil {
		return nil, &ParseError{
			Line:    parseCtx.LineNumber,
			Field:   rp.config.GetColumnName("lines"),
			Value:   get("lines"),
			Message: "invalid receipt lines",
			Err:     err,
		}
	}
	for _, item := range items {
		rc.Lines = append(rc.Lines, models.ReceiptLine{
			Description: item.Description,
			Quantity:    item.Quantity,
		})
	}

	return rc, nil
}
