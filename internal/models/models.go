package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LineItem represents a billed concept on an electronic invoice.
type LineItem struct {
	Description string          `json:"description" csv:"description"`
	Quantity    decimal.Decimal `json:"quantity" csv:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price,omitempty" csv:"unit_price"`
	Amount      decimal.Decimal `json:"amount,omitempty" csv:"amount"`
}

// Invoice represents a parsed electronic invoice. It is created by the
// upstream document parser and is never mutated by the matching engine.
type Invoice struct {
	// FiscalID is the unique fiscal identifier (UUID) of the invoice.
	FiscalID string `json:"fiscal_id" csv:"fiscal_id"`

	Series string `json:"series,omitempty" csv:"series"`
	Folio  string `json:"folio,omitempty" csv:"folio"`

	IssuerTaxID string `json:"issuer_tax_id" csv:"issuer_tax_id"`
	IssuerName  string `json:"issuer_name,omitempty" csv:"issuer_name"`

	IssueDate time.Time `json:"issue_date" csv:"issue_date"`

	Subtotal decimal.Decimal `json:"subtotal" csv:"subtotal"`
	Tax      decimal.Decimal `json:"tax" csv:"tax"`
	Total    decimal.Decimal `json:"total" csv:"total"`

	LineItems []LineItem `json:"line_items,omitempty"`

	// ReceiptNumberHint is a receipt number the invoice text itself encodes,
	// when the supplier printed it on the invoice.
	ReceiptNumberHint string `json:"receipt_number_hint,omitempty" csv:"receipt_number_hint"`

	// ReferenceCodes are receipt or purchase-order numbers extracted upstream
	// from an auxiliary document accompanying the invoice.
	ReferenceCodes []string `json:"reference_codes,omitempty"`
}

// NewInvoice creates an Invoice with the required identifying fields.
func NewInvoice(fiscalID, issuerTaxID string, issueDate time.Time, total decimal.Decimal) *Invoice {
	return &Invoice{
		FiscalID:    fiscalID,
		IssuerTaxID: issuerTaxID,
		IssueDate:   issueDate,
		Total:       total,
	}
}

// Identifier returns the human-readable invoice identifier: series-folio when
// present, otherwise a truncated fiscal ID.
func (inv *Invoice) Identifier() string {
	switch {
	case inv.Series != "" && inv.Folio != "":
		return fmt.Sprintf("%s-%s", inv.Series, inv.Folio)
	case inv.Folio != "":
		return inv.Folio
	case len(inv.FiscalID) >= 8:
		return inv.FiscalID[:8]
	default:
		return inv.FiscalID
	}
}

// Validate performs basic validation on the Invoice. Every scoring
// computation requires a well-defined total, so a negative total is a hard
// error rather than a recoverable result.
func (inv *Invoice) Validate() error {
	if strings.TrimSpace(inv.FiscalID) == "" {
		return fmt.Errorf("invoice fiscal ID cannot be empty")
	}

	if _, err := uuid.Parse(inv.FiscalID); err != nil {
		return fmt.Errorf("invoice fiscal ID %q is not a valid UUID: %w", inv.FiscalID, err)
	}

	if strings.TrimSpace(inv.IssuerTaxID) == "" {
		return fmt.Errorf("invoice issuer tax ID cannot be empty")
	}

	if inv.IssueDate.IsZero() {
		return fmt.Errorf("invoice issue date cannot be zero")
	}

	if inv.Total.IsNegative() {
		return fmt.Errorf("invoice total cannot be negative: %s", inv.Total.String())
	}

	return nil
}

// LineItemCount returns the number of line items on the invoice.
func (inv *Invoice) LineItemCount() int {
	return len(inv.LineItems)
}

// String returns a string representation of the Invoice.
func (inv *Invoice) String() string {
	return fmt.Sprintf("Invoice{ID: %s, Issuer: %s, Total: %s, Date: %s}",
		inv.Identifier(), inv.IssuerTaxID, inv.Total.String(), inv.IssueDate.Format("2006-01-02"))
}

// MarshalJSON implements custom JSON marshaling for Invoice so decimal
// amounts serialize as plain strings.
func (inv *Invoice) MarshalJSON() ([]byte, error) {
	type Alias Invoice
	return json.Marshal(&struct {
		Subtotal  string `json:"subtotal"`
		Tax       string `json:"tax"`
		Total     string `json:"total"`
		IssueDate string `json:"issue_date"`
		*Alias
	}{
		Subtotal:  inv.Subtotal.String(),
		Tax:       inv.Tax.String(),
		Total:     inv.Total.String(),
		IssueDate: inv.IssueDate.Format("2006-01-02"),
		Alias:     (*Alias)(inv),
	})
}

// ReceiptLine represents a product line on a goods receipt.
type ReceiptLine struct {
	ProductCode string          `json:"product_code,omitempty" csv:"product_code"`
	Description string          `json:"description" csv:"description"`
	Quantity    decimal.Decimal `json:"quantity" csv:"quantity"`
	Unit        string          `json:"unit,omitempty" csv:"unit"`
	UnitCost    decimal.Decimal `json:"unit_cost" csv:"unit_cost"`
	Amount      decimal.Decimal `json:"amount" csv:"amount"`
}

// ExtendedAmount returns quantity times unit cost.
func (rl *ReceiptLine) ExtendedAmount() decimal.Decimal {
	return rl.Quantity.Mul(rl.UnitCost)
}

// ReceiptCandidate represents a goods-receipt record retrieved from the
// external ledger. It is read-only to the matching engine.
type ReceiptCandidate struct {
	Series string `json:"series" csv:"series"`
	Number string `json:"number" csv:"number"`

	IssuerTaxID  string `json:"issuer_tax_id" csv:"issuer_tax_id"`
	SupplierName string `json:"supplier_name,omitempty" csv:"supplier_name"`

	Date time.Time `json:"date" csv:"date"`

	Subtotal decimal.Decimal `json:"subtotal" csv:"subtotal"`
	Tax      decimal.Decimal `json:"tax" csv:"tax"`
	Total    decimal.Decimal `json:"total" csv:"total"`

	Lines []ReceiptLine `json:"lines,omitempty"`

	// Reference holds the supplier reference recorded on the receipt, such as
	// a purchase order or the supplier's own document number.
	Reference string `json:"reference,omitempty" csv:"reference"`

	// Linked is true when the ledger already ties this receipt to an invoice.
	Linked          bool   `json:"linked" csv:"linked"`
	LinkedInvoiceID string `json:"linked_invoice_id,omitempty" csv:"linked_invoice_id"`
}

// NewReceiptCandidate creates a ReceiptCandidate with the required fields.
func NewReceiptCandidate(series, number, issuerTaxID string, date time.Time, total decimal.Decimal) *ReceiptCandidate {
	return &ReceiptCandidate{
		Series:      series,
		Number:      number,
		IssuerTaxID: issuerTaxID,
		Date:        date,
		Total:       total,
	}
}

// ID returns the composed receipt identifier (series plus sequence number).
func (rc *ReceiptCandidate) ID() string {
	if rc.Series == "" {
		return rc.Number
	}
	return fmt.Sprintf("%s-%s", rc.Series, rc.Number)
}

// Validate performs basic validation on the ReceiptCandidate.
func (rc *ReceiptCandidate) Validate() error {
	if strings.TrimSpace(rc.Number) == "" {
		return fmt.Errorf("receipt number cannot be empty")
	}

	if strings.TrimSpace(rc.IssuerTaxID) == "" {
		return fmt.Errorf("receipt issuer tax ID cannot be empty")
	}

	if rc.Date.IsZero() {
		return fmt.Errorf("receipt date cannot be zero")
	}

	if rc.Total.IsNegative() {
		return fmt.Errorf("receipt total cannot be negative: %s", rc.Total.String())
	}

	return nil
}

// LineCount returns the number of product lines on the receipt.
func (rc *ReceiptCandidate) LineCount() int {
	return len(rc.Lines)
}

// String returns a string representation of the ReceiptCandidate.
func (rc *ReceiptCandidate) String() string {
	return fmt.Sprintf("Receipt{ID: %s, Supplier: %s, Total: %s, Date: %s}",
		rc.ID(), rc.IssuerTaxID, rc.Total.String(), rc.Date.Format("2006-01-02"))
}

// MarshalJSON implements custom JSON marshaling for ReceiptCandidate.
func (rc *ReceiptCandidate) MarshalJSON() ([]byte, error) {
	type Alias ReceiptCandidate
	return json.Marshal(&struct {
		Subtotal string `json:"subtotal"`
		Tax      string `json:"tax"`
		Total    string `json:"total"`
		Date     string `json:"date"`
		*Alias
	}{
		Subtotal: rc.Subtotal.String(),
		Tax:      rc.Tax.String(),
		Total:    rc.Total.String(),
		Date:     rc.Date.Format("2006-01-02"),
		Alias:    (*Alias)(rc),
	})
}

// SumReceiptTotals returns the combined total of a set of receipts.
func SumReceiptTotals(receipts []*ReceiptCandidate) decimal.Decimal {
	total := decimal.Zero
	for _, rc := range receipts {
		total = total.Add(rc.Total)
	}
	return total
}

// ReceiptIDs returns the IDs of a set of receipts in order.
func ReceiptIDs(receipts []*ReceiptCandidate) []string {
	ids := make([]string, 0, len(receipts))
	for _, rc := range receipts {
		ids = append(ids, rc.ID())
	}
	return ids
}

// Utility functions for parsing CSV field values.

// ParseDecimalFromString parses a decimal value from string, stripping
// currency symbols and thousand separators.
func ParseDecimalFromString(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("amount string cannot be empty")
	}

	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal format '%s': %w", s, err)
	}

	return d, nil
}

// ParseTimeWithFormats attempts to parse a date from string using the
// formats commonly seen in ledger exports and invoice feeds.
func ParseTimeWithFormats(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("time string cannot be empty")
	}

	formats := []string{
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02",
		"02/01/2006",
		"2006/01/02",
	}

	var lastErr error
	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		} else {
			lastErr = err
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse time '%s': %w", s, lastErr)
}

// DaysBetween returns the absolute whole-day gap between two dates.
func DaysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)

	days := int(da.Sub(db).Hours() / 24)
	if days < 0 {
		days = -days
	}
	return days
}

// CreateInvoiceFromCSV creates an Invoice from CSV field values.
func CreateInvoiceFromCSV(fiscalID, series, folio, issuerTaxID, issuerName, dateStr, subtotalStr, taxStr, totalStr, receiptHint string) (*Invoice, error) {
	issueDate, err := ParseTimeWithFormats(dateStr)
	if err != nil {
		return nil, fmt.Errorf("invalid issue date in CSV: %w", err)
	}

	total, err := ParseDecimalFromString(totalStr)
	if err != nil {
		return nil, fmt.Errorf("invalid total in CSV: %w", err)
	}

	inv := NewInvoice(strings.TrimSpace(fiscalID), strings.TrimSpace(issuerTaxID), issueDate, total)
	inv.Series = strings.TrimSpace(series)
	inv.Folio = strings.TrimSpace(folio)
	inv.IssuerName = strings.TrimSpace(issuerName)
	inv.ReceiptNumberHint = strings.TrimSpace(receiptHint)

	if s := strings.TrimSpace(subtotalStr); s != "" {
		if inv.Subtotal, err = ParseDecimalFromString(s); err != nil {
			return nil, fmt.Errorf("invalid subtotal in CSV: %w", err)
		}
	}

	if s := strings.TrimSpace(taxStr); s != "" {
		if inv.Tax, err = ParseDecimalFromString(s); err != nil {
			return nil, fmt.Errorf("invalid tax in CSV: %w", err)
		}
	}

	if err := inv.Validate(); err != nil {
		return nil, fmt.Errorf("invalid invoice data: %w", err)
	}

	return inv, nil
}

// CreateReceiptFromCSV creates a ReceiptCandidate from CSV field values.
func CreateReceiptFromCSV(series, number, issuerTaxID, supplierName, dateStr, subtotalStr, taxStr, totalStr, reference, linkedInvoiceID string) (*ReceiptCandidate, error) {
	date, err := ParseTimeWithFormats(dateStr)
	if err != nil {
		return nil, fmt.Errorf("invalid receipt date in CSV: %w", err)
	}

	total, err := ParseDecimalFromString(totalStr)
	if err != nil {
		return nil, fmt.Errorf("invalid total in CSV: %w", err)
	}

	rc := NewReceiptCandidate(strings.TrimSpace(series), strings.TrimSpace(number), strings.TrimSpace(issuerTaxID), date, total)
	rc.SupplierName = strings.TrimSpace(supplierName)
	rc.Reference = strings.TrimSpace(reference)

	if s := strings.TrimSpace(subtotalStr); s != "" {
		if rc.Subtotal, err = ParseDecimalFromString(s); err != nil {
			return nil, fmt.Errorf("invalid subtotal in CSV: %w", err)
		}
	}

	if s := strings.TrimSpace(taxStr); s != "" {
		if rc.Tax, err = ParseDecimalFromString(s); err != nil {
			return nil, fmt.Errorf("invalid tax in CSV: %w", err)
		}
	}

	if id := strings.TrimSpace(linkedInvoiceID); id != "" {
		rc.Linked = true
		rc.LinkedInvoiceID = id
	}

	if err := rc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid receipt data: %w", err)
	}

	return rc, nil
}
