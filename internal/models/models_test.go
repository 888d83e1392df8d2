package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

const validFiscalID = "f47ac10b-58cc-4372-a567-0e02b2c3d479"

func validInvoice() *Invoice {
	inv := NewInvoice(validFiscalID, "CEM840101AAA",
		time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), decimal.NewFromFloat(1000.00))
	inv.Series = "A"
	inv.Folio = "000123"
	return inv
}

func TestInvoice_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Invoice)
		wantErr bool
	}{
		{"valid invoice", func(inv *Invoice) {}, false},
		{"empty fiscal ID", func(inv *Invoice) { inv.FiscalID = "" }, true},
		{"malformed fiscal ID", func(inv *Invoice) { inv.FiscalID = "not-a-uuid" }, true},
		{"empty issuer", func(inv *Invoice) { inv.IssuerTaxID = "" }, true},
		{"zero date", func(inv *Invoice) { inv.IssueDate = time.Time{} }, true},
		{"negative total", func(inv *Invoice) { inv.Total = decimal.NewFromInt(-1) }, true},
		{"zero total", func(inv *Invoice) { inv.Total = decimal.Zero }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := validInvoice()
			tt.mutate(inv)

			err := inv.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestInvoice_Identifier(t *testing.T) {
	inv := validInvoice()
	if got := inv.Identifier(); got != "A-000123" {
		t.Errorf("Expected series-folio identifier, got %s", got)
	}

	inv.Series = ""
	if got := inv.Identifier(); got != "000123" {
		t.Errorf("Expected bare folio, got %s", got)
	}

	inv.Folio = ""
	if got := inv.Identifier(); got != validFiscalID[:8] {
		t.Errorf("Expected truncated fiscal ID, got %s", got)
	}
}

func TestReceiptCandidate_ID(t *testing.T) {
	rc := NewReceiptCandidate("REM", "000456", "CEM840101AAA",
		time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), decimal.NewFromInt(500))
	if got := rc.ID(); got != "REM-000456" {
		t.Errorf("Expected composed ID, got %s", got)
	}

	rc.Series = ""
	if got := rc.ID(); got != "000456" {
		t.Errorf("Expected bare number, got %s", got)
	}
}

func TestReceiptCandidate_Validate(t *testing.T) {
	rc := NewReceiptCandidate("REM", "000456", "CEM840101AAA",
		time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), decimal.NewFromInt(500))

	if err := rc.Validate(); err != nil {
		t.Errorf("Expected valid receipt, got %v", err)
	}

	rc.Total = decimal.NewFromInt(-5)
	if err := rc.Validate(); err == nil {
		t.Error("Expected error for negative total")
	}
}

func TestSumReceiptTotals(t *testing.T) {
	receipts := []*ReceiptCandidate{
		{Total: decimal.NewFromFloat(100.25)},
		{Total: decimal.NewFromFloat(200.50)},
		{Total: decimal.NewFromFloat(0.25)},
	}

	got := SumReceiptTotals(receipts)
	if !got.Equal(decimal.NewFromFloat(301.00)) {
		t.Errorf("Expected 301.00, got %s", got.String())
	}

	if !SumReceiptTotals(nil).IsZero() {
		t.Error("Expected zero sum for no receipts")
	}
}

func TestParseDecimalFromString(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"1234.56", "1234.56", false},
		{"$1,234.56", "1234.56", false},
		{"  99 ", "99", false},
		{"", "", true},
		{"abc", "", true},
	}

	for _, tt := range tests {
		got, err := ParseDecimalFromString(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDecimalFromString(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got.String() != tt.want {
			t.Errorf("ParseDecimalFromString(%q) = %s, want %s", tt.input, got.String(), tt.want)
		}
	}
}

func TestParseTimeWithFormats(t *testing.T) {
	valid := []string{
		"2024-03-15",
		"2024-03-15 10:30:00",
		"2024-03-15T10:30:00",
		"15/03/2024",
		"2024/03/15",
	}

	for _, input := range valid {
		got, err := ParseTimeWithFormats(input)
		if err != nil {
			t.Errorf("ParseTimeWithFormats(%q) failed: %v", input, err)
			continue
		}
		if got.Year() != 2024 || got.Month() != time.March || got.Day() != 15 {
			t.Errorf("ParseTimeWithFormats(%q) = %v, want 2024-03-15", input, got)
		}
	}

	if _, err := ParseTimeWithFormats("not a date"); err == nil {
		t.Error("Expected error for unparseable date")
	}
	if _, err := ParseTimeWithFormats(""); err == nil {
		t.Error("Expected error for empty date")
	}
}

func TestDaysBetween(t *testing.T) {
	a := time.Date(2024, 3, 15, 23, 59, 0, 0, time.UTC)
	b := time.Date(2024, 3, 10, 0, 1, 0, 0, time.UTC)

	if got := DaysBetween(a, b); got != 5 {
		t.Errorf("Expected 5 whole days, got %d", got)
	}
	if got := DaysBetween(b, a); got != 5 {
		t.Errorf("Expected symmetric gap, got %d", got)
	}
	if got := DaysBetween(a, a); got != 0 {
		t.Errorf("Expected zero gap, got %d", got)
	}
}

func TestCreateInvoiceFromCSV(t *testing.T) {
	inv, err := CreateInvoiceFromCSV(validFiscalID, "A", "000123", "CEM840101AAA",
		"Cementos del Norte SA", "2024-03-15", "862.07", "137.93", "$1,000.00", "REM-000456")
	if err != nil {
		t.Fatalf("CreateInvoiceFromCSV failed: %v", err)
	}

	if inv.Identifier() != "A-000123" {
		t.Errorf("Expected identifier A-000123, got %s", inv.Identifier())
	}
	if !inv.Total.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("Expected total 1000, got %s", inv.Total.String())
	}
	if inv.ReceiptNumberHint != "REM-000456" {
		t.Errorf("Expected receipt hint, got %q", inv.ReceiptNumberHint)
	}

	if _, err := CreateInvoiceFromCSV(validFiscalID, "A", "1", "CEM840101AAA", "",
		"not-a-date", "", "", "100", ""); err == nil {
		t.Error("Expected error for bad date")
	}
	if _, err := CreateInvoiceFromCSV(validFiscalID, "A", "1", "CEM840101AAA", "",
		"2024-03-15", "", "", "not-a-number", ""); err == nil {
		t.Error("Expected error for bad total")
	}
}

func TestCreateReceiptFromCSV(t *testing.T) {
	rc, err := CreateReceiptFromCSV("REM", "000456", "CEM840101AAA",
		"Cementos del Norte SA", "2024-03-10", "431.03", "68.97", "500.00", "PO-4411", "")
	if err != nil {
		t.Fatalf("CreateReceiptFromCSV failed: %v", err)
	}

	if rc.ID() != "REM-000456" {
		t.Errorf("Expected ID REM-000456, got %s", rc.ID())
	}
	if rc.Reference != "PO-4411" {
		t.Errorf("Expected reference PO-4411, got %q", rc.Reference)
	}
	if rc.Linked {
		t.Error("Expected receipt without linked invoice to be unlinked")
	}

	linked, err := CreateReceiptFromCSV("REM", "000457", "CEM840101AAA",
		"", "2024-03-10", "", "", "500.00", "", validFiscalID)
	if err != nil {
		t.Fatalf("CreateReceiptFromCSV failed: %v", err)
	}
	if !linked.Linked || linked.LinkedInvoiceID != validFiscalID {
		t.Error("Expected receipt with linked invoice ID to be flagged linked")
	}
}

func TestReconciliationResult_Status(t *testing.T) {
	inv := validInvoice()
	result := NewReconciliationResult(inv)

	if result.Status() != "NO_RECEIPT" {
		t.Errorf("Expected NO_RECEIPT before matching, got %s", result.Status())
	}

	receipt := NewReceiptCandidate("REM", "000456", inv.IssuerTaxID,
		inv.IssueDate.AddDate(0, 0, -2), inv.Total)

	result.ApplyScore(&MatchScore{
		Total:    0.9,
		Receipts: []*ReceiptCandidate{receipt},
		Stage:    StageHeuristic,
	})

	if result.Status() != "WITH_DIFFERENCES" {
		t.Errorf("Expected WITH_DIFFERENCES while unsuccessful, got %s", result.Status())
	}

	result.Success = true
	if result.Status() != "RECONCILED" {
		t.Errorf("Expected RECONCILED, got %s", result.Status())
	}

	result.MultiReceipt = true
	if result.Status() != "RECONCILED_MULTI" {
		t.Errorf("Expected RECONCILED_MULTI, got %s", result.Status())
	}
}

func TestReconciliationResult_ApplyScoreEarliestDate(t *testing.T) {
	inv := validInvoice()
	result := NewReconciliationResult(inv)

	early := NewReceiptCandidate("REM", "000001", inv.IssuerTaxID,
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), decimal.NewFromInt(400))
	late := NewReceiptCandidate("REM", "000002", inv.IssuerTaxID,
		time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC), decimal.NewFromInt(600))

	result.ApplyScore(&MatchScore{
		Total:        0.9,
		MultiReceipt: true,
		Receipts:     []*ReceiptCandidate{late, early},
		Stage:        StageCombination,
	})

	if !result.ReceiptDate.Equal(early.Date) {
		t.Errorf("Expected earliest member date, got %v", result.ReceiptDate)
	}
	if !result.ReceiptTotal.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("Expected combined total 1000, got %s", result.ReceiptTotal.String())
	}
}

func TestMatchStage_String(t *testing.T) {
	stages := map[MatchStage]string{
		StageNone:         "none",
		StageReference:    "reference",
		StageDirectNumber: "direct_number",
		StageHeuristic:    "heuristic",
		StageCombination:  "combination",
	}

	for stage, want := range stages {
		if got := stage.String(); got != want {
			t.Errorf("Stage %d = %q, want %q", stage, got, want)
		}
	}
}
