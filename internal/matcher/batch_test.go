package matcher

import (
	"testing"

	"invoice-reconciler/internal/models"

	"github.com/shopspring/decimal"
)

func TestReconcileBatch_ContestedReceiptsGetDistinctAssignments(t *testing.T) {
	// Three identical invoices compete for three identical receipts. A
	// first-come-first-served pass could starve nobody here, but the
	// assignment must hand out three distinct receipts regardless of order.
	receipts := []*models.ReceiptCandidate{
		testReceipt("000300", "ELE880915EEE", 3, 2112.00),
		testReceipt("000301", "ELE880915EEE", 2, 2112.00),
		testReceipt("000302", "ELE880915EEE", 1, 2112.00),
	}

	engine := newTestEngine(t, receipts)

	invoices := []*models.Invoice{
		testInvoice(40, "ELE880915EEE", 2112.00),
		testInvoice(41, "ELE880915EEE", 2112.00),
		testInvoice(42, "ELE880915EEE", 2112.00),
	}

	results, err := engine.ReconcileBatch(invoices)
	if err != nil {
		t.Fatalf("Batch reconciliation failed: %v", err)
	}

	assigned := make(map[string]string)
	for _, result := range results {
		if !result.Success {
			t.Errorf("Expected invoice %s to reconcile, status %s", result.InvoiceIdentifier, result.Status())
		}
		if result.ReceiptCount() != 1 {
			t.Fatalf("Expected exactly one receipt per invoice, got %d", result.ReceiptCount())
		}
		id := result.Receipts[0].ID()
		if previous, ok := assigned[id]; ok {
			t.Errorf("Receipt %s assigned to both %s and %s", id, previous, result.InvoiceIdentifier)
		}
		assigned[id] = result.InvoiceIdentifier
	}

	if len(assigned) != 3 {
		t.Errorf("Expected 3 distinct receipts assigned, got %d", len(assigned))
	}
}

func TestReconcileBatch_Idempotent(t *testing.T) {
	receipts := []*models.ReceiptCandidate{
		testReceipt("000310", "CEM840101AAA", 2, 1000.00),
		testReceipt("000311", "CEM840101AAA", 4, 1000.00),
	}

	engine := newTestEngine(t, receipts)

	invoices := []*models.Invoice{
		testInvoice(50, "CEM840101AAA", 1000.00),
		testInvoice(51, "CEM840101AAA", 1000.00),
	}

	first, err := engine.ReconcileBatch(invoices)
	if err != nil {
		t.Fatalf("First batch run failed: %v", err)
	}
	second, err := engine.ReconcileBatch(invoices)
	if err != nil {
		t.Fatalf("Second batch run failed: %v", err)
	}

	for i := range first {
		if receiptSetKey(first[i].Receipts) != receiptSetKey(second[i].Receipts) {
			t.Errorf("Run output differs for invoice %s: %s vs %s",
				first[i].InvoiceIdentifier,
				first[i].ReceiptNumbers(), second[i].ReceiptNumbers())
		}
	}
}

func TestReconcileBatch_FallbackForInexactInvoices(t *testing.T) {
	// One invoice has an exact receipt, the other only an approximate one.
	// The second must still come back from the stage pipeline fallback.
	receipts := []*models.ReceiptCandidate{
		testReceipt("000320", "CEM840101AAA", 1, 5000.00),
		testReceipt("000321", "CEM840101AAA", 2, 7050.00),
	}

	engine := newTestEngine(t, receipts)

	invoices := []*models.Invoice{
		testInvoice(60, "CEM840101AAA", 5000.00),
		testInvoice(61, "CEM840101AAA", 7000.00),
	}

	results, err := engine.ReconcileBatch(invoices)
	if err != nil {
		t.Fatalf("Batch reconciliation failed: %v", err)
	}

	if !results[0].Success || results[0].ReceiptNumbers() != "REM-000320" {
		t.Errorf("Expected exact assignment for first invoice, got %s (%s)",
			results[0].ReceiptNumbers(), results[0].Status())
	}

	if !results[1].HasMatch() {
		t.Fatal("Expected the inexact invoice to match via fallback")
	}
	if results[1].ReceiptNumbers() != "REM-000321" {
		t.Errorf("Expected fallback to pick the remaining receipt, got %s", results[1].ReceiptNumbers())
	}
}

func TestReconcileBatch_CombinationColumn(t *testing.T) {
	// The only exact cover for the invoice is a two-receipt combination;
	// the assignment must use it as a column.
	receipts := []*models.ReceiptCandidate{
		testReceipt("000330", "TRA910422DDD", 1, 2200.00),
		testReceipt("000331", "TRA910422DDD", 2, 1800.00),
	}

	engine := newTestEngine(t, receipts)

	invoices := []*models.Invoice{
		testInvoice(70, "TRA910422DDD", 4000.00),
	}

	results, err := engine.ReconcileBatch(invoices)
	if err != nil {
		t.Fatalf("Batch reconciliation failed: %v", err)
	}

	if results[0].Stage != models.StageCombination {
		t.Errorf("Expected combination stage, got %s", results[0].Stage)
	}
	if results[0].ReceiptCount() != 2 {
		t.Errorf("Expected 2 receipts, got %d", results[0].ReceiptCount())
	}
	if !results[0].Success {
		t.Errorf("Expected exact combination to succeed, score %.2f", results[0].Score)
	}
}

func TestReconcileBatch_InvalidInvoiceFailsFast(t *testing.T) {
	engine := newTestEngine(t, nil)

	invoices := []*models.Invoice{
		testInvoice(80, "CEM840101AAA", 100.00),
		models.NewInvoice("not-a-uuid", "CEM840101AAA", testBaseDate, decimal.NewFromInt(100)),
	}

	if _, err := engine.ReconcileBatch(invoices); err == nil {
		t.Error("Expected batch to reject a malformed invoice up front")
	}
}

func TestAssignmentCost(t *testing.T) {
	perfect := &models.MatchScore{Total: 1.0, DaysGap: 0}
	if got := assignmentCost(perfect); got != 0 {
		t.Errorf("Expected zero cost for a perfect match, got %d", got)
	}

	good := &models.MatchScore{Total: 0.9, DaysGap: 1}
	worse := &models.MatchScore{Total: 0.8, DaysGap: 5}

	if assignmentCost(good) >= assignmentCost(worse) {
		t.Errorf("Expected higher score to cost less: %d vs %d",
			assignmentCost(good), assignmentCost(worse))
	}
	if assignmentCost(worse) >= sentinelCost {
		t.Error("Feasible costs must stay below the sentinel")
	}
}

func TestReceiptSetKey_OrderIndependent(t *testing.T) {
	a := testReceipt("000001", "CEM840101AAA", 1, 100.00)
	b := testReceipt("000002", "CEM840101AAA", 2, 200.00)

	forward := receiptSetKey([]*models.ReceiptCandidate{a, b})
	reverse := receiptSetKey([]*models.ReceiptCandidate{b, a})

	if forward != reverse {
		t.Errorf("Expected order-independent key, got %q vs %q", forward, reverse)
	}
}
