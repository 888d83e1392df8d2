package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceGenerator generates paired invoice and goods-receipt CSV files
type InvoiceGenerator struct {
	Count     int
	StartDate time.Time
	EndDate   time.Time
	MinAmount decimal.Decimal
	MaxAmount decimal.Decimal
	Seed      int64

	rng *rand.Rand
}

// InvoiceTemplate represents an invoice record with its covering receipts
type InvoiceTemplate struct {
	FiscalID    string
	Series      string
	Folio       string
	IssuerTaxID string
	IssuerName  string
	IssueDate   time.Time
	Subtotal    decimal.Decimal
	Tax         decimal.Decimal
	Total       decimal.Decimal
	ReceiptHint string
	References  string
	LineItems   string

	Receipts []ReceiptTemplate
}

// ReceiptTemplate represents a goods-receipt ledger entry
type ReceiptTemplate struct {
	Series       string
	Number       string
	IssuerTaxID  string
	SupplierName string
	Date         time.Time
	Subtotal     decimal.Decimal
	Tax          decimal.Decimal
	Total        decimal.Decimal
	Reference    string
	Lines        string
}

var suppliers = []struct {
	TaxID string
	Name  string
}{
	{"CEM840101AAA", "Cementos del Norte SA"},
	{"ACE900215BBB", "Aceros Industriales SA"},
	{"FER850630CCC", "Ferreteria Central SA"},
	{"TRA910422DDD", "Transportes Unidos SA"},
	{"ELE880915EEE", "Electricos y Cables SA"},
}

var lineItemPool = []string{
	"cement bags", "steel rods", "gravel load", "sand load",
	"copper wire roll", "pvc pipe", "paint bucket", "wood planks",
}

func main() {
	var (
		invoiceOut = flag.String("invoices", "generated_invoices.csv", "Output invoice CSV file path")
		receiptOut = flag.String("receipts", "generated_receipts.csv", "Output receipt CSV file path")
		count      = flag.Int("count", 500, "Number of invoices to generate")
		startDate  = flag.String("start-date", "2024-01-01", "Start date (YYYY-MM-DD)")
		endDate    = flag.String("end-date", "2024-12-31", "End date (YYYY-MM-DD)")
		minAmount  = flag.Float64("min-amount", 100.00, "Minimum invoice amount")
		maxAmount  = flag.Float64("max-amount", 250000.00, "Maximum invoice amount")
		seed       = flag.Int64("seed", time.Now().UnixNano(), "Random seed for reproducible generation")
		pattern    = flag.String("pattern", "paired", "Generation pattern: paired, combinations, noisy, orphans")
	)
	flag.Parse()

	start, err := time.Parse("2006-01-02", *startDate)
	if err != nil {
		log.Fatalf("Invalid start date: %v", err)
	}

	end, err := time.Parse("2006-01-02", *endDate)
	if err != nil {
		log.Fatalf("Invalid end date: %v", err)
	}

	generator := &InvoiceGenerator{
		Count:     *count,
		StartDate: start,
		EndDate:   end,
		MinAmount: decimal.NewFromFloat(*minAmount),
		MaxAmount: decimal.NewFromFloat(*maxAmount),
		Seed:      *seed,
	}
	generator.rng = rand.New(rand.NewSource(*seed))

	var invoices []InvoiceTemplate
	switch *pattern {
	case "combinations":
		invoices = generator.GenerateCombinations()
	case "noisy":
		invoices = generator.GenerateNoisy()
	case "orphans":
		invoices = generator.GenerateOrphans()
	default:
		invoices = generator.GeneratePaired()
	}

	if err := writeInvoiceCSV(*invoiceOut, invoices); err != nil {
		log.Fatalf("Failed to write invoices: %v", err)
	}
	if err := writeReceiptCSV(*receiptOut, invoices); err != nil {
		log.Fatalf("Failed to write receipts: %v", err)
	}

	fmt.Printf("Generated %d invoices to %s\n", len(invoices), *invoiceOut)
	fmt.Printf("Receipts written to %s\n", *receiptOut)
	fmt.Printf("Seed used: %d\n", *seed)
}

// GeneratePaired generates invoices each covered by exactly one receipt
// whose total matches within rounding noise.
func (ig *InvoiceGenerator) GeneratePaired() []InvoiceTemplate {
	invoices := make([]InvoiceTemplate, 0, ig.Count)

	for i := 0; i < ig.Count; i++ {
		inv := ig.randomInvoice(i)

		receipt := ig.receiptFor(inv, i, inv.Total)
		// Small rounding noise on a fraction of receipts
		if ig.rng.Float64() < 0.2 {
			noise := decimal.NewFromFloat(float64(ig.rng.Intn(50)-25) / 100.0)
			receipt.Total = receipt.Total.Add(noise)
		}
		inv.Receipts = []ReceiptTemplate{receipt}

		invoices = append(invoices, inv)
	}

	return invoices
}

// GenerateCombinations generates invoices covered by 2-4 receipts whose
// totals sum exactly to the invoice total.
func (ig *InvoiceGenerator) GenerateCombinations() []InvoiceTemplate {
	invoices := make([]InvoiceTemplate, 0, ig.Count)

	for i := 0; i < ig.Count; i++ {
		inv := ig.randomInvoice(i)

		parts := 2 + ig.rng.Intn(3)
		remaining := inv.Total
		for p := 0; p < parts; p++ {
			var amount decimal.Decimal
			if p == parts-1 {
				amount = remaining
			} else {
				share := remaining.Div(decimal.NewFromInt(int64(parts - p))).Round(2)
				amount = share
			}
			remaining = remaining.Sub(amount)

			receipt := ig.receiptFor(inv, i*10+p, amount)
			receipt.Date = inv.IssueDate.AddDate(0, 0, -(p + 1))
			inv.Receipts = append(inv.Receipts, receipt)
		}

		invoices = append(invoices, inv)
	}

	return invoices
}

// GenerateNoisy generates paired invoices where a quarter of the receipts
// drift outside the default amount and date tolerances.
func (ig *InvoiceGenerator) GenerateNoisy() []InvoiceTemplate {
	invoices := ig.GeneratePaired()

	for i := range invoices {
		if ig.rng.Float64() >= 0.25 {
			continue
		}
		receipt := &invoices[i].Receipts[0]
		// Push the amount 5-10% off and the date past the alert threshold
		drift := decimal.NewFromFloat(1.05 + ig.rng.Float64()*0.05)
		receipt.Total = receipt.Total.Mul(drift).Round(2)
		receipt.Date = invoices[i].IssueDate.AddDate(0, 0, -(8 + ig.rng.Intn(7)))
	}

	return invoices
}

// GenerateOrphans generates paired invoices plus a tail of invoices with
// no covering receipt at all.
func (ig *InvoiceGenerator) GenerateOrphans() []InvoiceTemplate {
	invoices := ig.GeneratePaired()

	orphanCount := ig.Count / 10
	if orphanCount == 0 {
		orphanCount = 1
	}
	for i := 0; i < orphanCount; i++ {
		inv := ig.randomInvoice(ig.Count + i)
		inv.Receipts = nil
		invoices = append(invoices, inv)
	}

	return invoices
}

func (ig *InvoiceGenerator) randomInvoice(seq int) InvoiceTemplate {
	supplier := suppliers[ig.rng.Intn(len(suppliers))]

	span := int(ig.EndDate.Sub(ig.StartDate).Hours() / 24)
	if span < 1 {
		span = 1
	}
	issueDate := ig.StartDate.AddDate(0, 0, ig.rng.Intn(span))

	amountRange := ig.MaxAmount.Sub(ig.MinAmount)
	total := ig.MinAmount.Add(amountRange.Mul(decimal.NewFromFloat(ig.rng.Float64()))).Round(2)
	subtotal := total.Div(decimal.NewFromFloat(1.16)).Round(2)
	tax := total.Sub(subtotal)

	id, err := uuid.NewRandomFromReader(ig.rng)
	if err != nil {
		log.Fatalf("Failed to generate UUID: %v", err)
	}

	items := fmt.Sprintf("%d x %s|%d x %s",
		1+ig.rng.Intn(20), lineItemPool[ig.rng.Intn(len(lineItemPool))],
		1+ig.rng.Intn(20), lineItemPool[ig.rng.Intn(len(lineItemPool))])

	return InvoiceTemplate{
		FiscalID:    id.String(),
		Series:      "A",
		Folio:       fmt.Sprintf("%06d", seq+1),
		IssuerTaxID: supplier.TaxID,
		IssuerName:  supplier.Name,
		IssueDate:   issueDate,
		Subtotal:    subtotal,
		Tax:         tax,
		Total:       total,
		LineItems:   items,
	}
}

func (ig *InvoiceGenerator) receiptFor(inv InvoiceTemplate, seq int, total decimal.Decimal) ReceiptTemplate {
	subtotal := total.Div(decimal.NewFromFloat(1.16)).Round(2)

	return ReceiptTemplate{
		Series:       "REM",
		Number:       fmt.Sprintf("%06d", seq+1),
		IssuerTaxID:  inv.IssuerTaxID,
		SupplierName: inv.IssuerName,
		Date:         inv.IssueDate.AddDate(0, 0, -(1 + ig.rng.Intn(5))),
		Subtotal:     subtotal,
		Tax:          total.Sub(subtotal),
		Total:        total,
		Lines:        inv.LineItems,
	}
}

func writeInvoiceCSV(path string, invoices []InvoiceTemplate) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"fiscal_id", "series", "folio", "issuer_tax_id", "issuer_name",
		"issue_date", "subtotal", "tax", "total", "receipt_number", "references", "line_items"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, inv := range invoices {
		record := []string{
			inv.FiscalID, inv.Series, inv.Folio, inv.IssuerTaxID, inv.IssuerName,
			inv.IssueDate.Format("2006-01-02"),
			inv.Subtotal.StringFixed(2), inv.Tax.StringFixed(2), inv.Total.StringFixed(2),
			inv.ReceiptHint, inv.References, inv.LineItems,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return nil
}

func writeReceiptCSV(path string, invoices []InvoiceTemplate) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"series", "number", "issuer_tax_id", "supplier_name",
		"date", "subtotal", "tax", "total", "reference", "linked_invoice", "lines"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, inv := range invoices {
		for _, receipt := range inv.Receipts {
			record := []string{
				receipt.Series, receipt.Number, receipt.IssuerTaxID, receipt.SupplierName,
				receipt.Date.Format("2006-01-02"),
				receipt.Subtotal.StringFixed(2), receipt.Tax.StringFixed(2), receipt.Total.StringFixed(2),
				receipt.Reference, "", receipt.Lines,
			}
			if err := writer.Write(record); err != nil {
				return err
			}
		}
	}

	return nil
}
