package parsers

import (
	"fmt"
	"strings"
)

// InvoiceParserConfig holds configuration for parsing invoice export files
type InvoiceParserConfig struct {
	FiscalIDColumn    string            `json:"fiscal_id_column"`
	SeriesColumn      string            `json:"series_column"`
	FolioColumn       string            `json:"folio_column"`
	IssuerTaxIDColumn string            `json:"issuer_tax_id_column"`
	IssuerNameColumn  string            `json:"issuer_name_column"`
	DateColumn        string            `json:"date_column"`
	SubtotalColumn    string            `json:"subtotal_column"`
	TaxColumn         string            `json:"tax_column"`
	TotalColumn       string            `json:"total_column"`
	ReceiptHintColumn string            `json:"receipt_hint_column"`
	ReferencesColumn  string            `json:"references_column"`
	LineItemsColumn   string            `json:"line_items_column"`
	HasHeader         bool              `json:"has_header"`
	Delimiter         rune              `json:"delimiter"`
	ColumnAliases     map[string]string `json:"column_aliases,omitempty"`
}

// Validate checks if the invoice parser configuration is valid
func (ipc *InvoiceParserConfig) Validate() error {
	if strings.TrimSpace(ipc.FiscalIDColumn) == "" {
		return fmt.Errorf("fiscal ID column cannot be empty")
	}

	if strings.TrimSpace(ipc.IssuerTaxIDColumn) == "" {
		return fmt.Errorf("issuer tax ID column cannot be empty")
	}

	if strings.TrimSpace(ipc.DateColumn) == "" {
		return fmt.Errorf("date column cannot be empty")
	}

	if strings.TrimSpace(ipc.TotalColumn) == "" {
		return fmt.Errorf("total column cannot be empty")
	}

	return nil
}

// GetColumnName returns the actual column name, checking aliases first
func (ipc *InvoiceParserConfig) GetColumnName(standardName string) string {
	if alias, exists := ipc.ColumnAliases[standardName]; exists {
		return alias
	}

	switch standardName {
	case "fiscal_id":
		return ipc.FiscalIDColumn
	case "series":
		return ipc.SeriesColumn
	case "folio":
		return ipc.FolioColumn
	case "issuer_tax_id":
		return ipc.IssuerTaxIDColumn
	case "issuer_name":
		return ipc.IssuerNameColumn
	case "date":
		return ipc.DateColumn
	case "subtotal":
		return ipc.SubtotalColumn
	case "tax":
		return ipc.TaxColumn
	case "total":
		return ipc.TotalColumn
	case "receipt_hint":
		return ipc.ReceiptHintColumn
	case "references":
		return ipc.ReferencesColumn
	case "line_items":
		return ipc.LineItemsColumn
	default:
		return standardName
	}
}

// DefaultInvoiceParserConfig returns a configuration with standard defaults
func DefaultInvoiceParserConfig() *InvoiceParserConfig {
	return &InvoiceParserConfig{
		FiscalIDColumn:    "fiscal_id",
		SeriesColumn:      "series",
		FolioColumn:       "folio",
		IssuerTaxIDColumn: "issuer_tax_id",
		IssuerNameColumn:  "issuer_name",
		DateColumn:        "issue_date",
		SubtotalColumn:    "subtotal",
		TaxColumn:         "tax",
		TotalColumn:       "total",
		ReceiptHintColumn: "receipt_number",
		ReferencesColumn:  "references",
		LineItemsColumn:   "line_items",
		HasHeader:         true,
		Delimiter:         ',',
		ColumnAliases:     make(map[string]string),
	}
}

// ReceiptParserConfig holds configuration for parsing receipt ledger exports
type ReceiptParserConfig struct {
	SeriesColumn       string            `json:"series_column"`
	NumberColumn       string            `json:"number_column"`
	IssuerTaxIDColumn  string            `json:"issuer_tax_id_column"`
	SupplierNameColumn string            `json:"supplier_name_column"`
	DateColumn         string            `json:"date_column"`
	SubtotalColumn     string            `json:"subtotal_column"`
	TaxColumn          string            `json:"tax_column"`
	TotalColumn        string            `json:"total_column"`
	LinkedInvoiceColumn string           `json:"linked_invoice_column"`
	LinesColumn        string            `json:"lines_column"`
	HasHeader          bool              `json:"has_header"`
	Delimiter          rune              `json:"delimiter"`
	ColumnAliases      map[string]string `json:"column_aliases,omitempty"`
}

// Validate checks if the receipt parser configuration is valid
func (rpc *ReceiptParserConfig) Validate() error {
	if strings.TrimSpace(rpc.NumberColumn) == "" {
		return fmt.Errorf("receipt number column cannot be empty")
	}

	if strings.TrimSpace(rpc.IssuerTaxIDColumn) == "" {
		return fmt.Errorf("issuer tax ID column cannot be empty")
	}

	if strings.TrimSpace(rpc.DateColumn) == "" {
		return fmt.Errorf("date column cannot be empty")
	}

	if strings.TrimSpace(rpc.TotalColumn) == "" {
		return fmt.Errorf("total column cannot be empty")
	}

	return nil
}

// GetColumnName returns the actual column name, checking aliases first
func (rpc *ReceiptParserConfig) GetColumnName(standardName string) string {
	if alias, exists := rpc.ColumnAliases[standardName]; exists {
		return alias
	}

	switch standardName {
	case "series":
		return rpc.SeriesColumn
	case "number":
		return rpc.NumberColumn
	case "issuer_tax_id":
		return rpc.IssuerTaxIDColumn
	case "supplier_name":
		return rpc.SupplierNameColumn
	case "date":
		return rpc.DateColumn
	case "subtotal":
		return rpc.SubtotalColumn
	case "tax":
		return rpc.TaxColumn
	case "total":
		return rpc.TotalColumn
	case "linked_invoice":
		return rpc.LinkedInvoiceColumn
	case "lines":
		return rpc.LinesColumn
	default:
		return standardName
	}
}

// DefaultReceiptParserConfig returns a configuration with standard defaults
func DefaultReceiptParserConfig() *ReceiptParserConfig {
	return &ReceiptParserConfig{
		SeriesColumn:        "series",
		NumberColumn:        "number",
		IssuerTaxIDColumn:   "issuer_tax_id",
		SupplierNameColumn:  "supplier_name",
		DateColumn:          "date",
		SubtotalColumn:      "subtotal",
		TaxColumn:           "tax",
		TotalColumn:         "total",
		LinkedInvoiceColumn: "linked_invoice",
		LinesColumn:         "lines",
		HasHeader:           true,
		Delimiter:           ',',
		ColumnAliases:       make(map[string]string),
	}
}
