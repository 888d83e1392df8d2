package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// ScenarioGenerator creates fixed datasets that exercise specific matching paths
type ScenarioGenerator struct {
	OutputDir string
}

func main() {
	var (
		outputDir = flag.String("output-dir", "generated_scenarios", "Output directory for scenario files")
		scenario  = flag.String("scenario", "all", "Scenario to generate: all, reference, direct, combination, contention, duplicates")
	)
	flag.Parse()

	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	generator := &ScenarioGenerator{OutputDir: *outputDir}

	switch *scenario {
	case "reference":
		generator.GenerateReferenceScenario()
	case "direct":
		generator.GenerateDirectNumberScenario()
	case "combination":
		generator.GenerateCombinationScenario()
	case "contention":
		generator.GenerateContentionScenario()
	case "duplicates":
		generator.GenerateDuplicateScenario()
	case "all":
		generator.GenerateAllScenarios()
	default:
		log.Fatalf("Unknown scenario: %s", *scenario)
	}

	fmt.Printf("Generated scenarios in %s\n", *outputDir)
}

// GenerateAllScenarios generates all predefined scenarios
func (sg *ScenarioGenerator) GenerateAllScenarios() {
	fmt.Println("Generating all scenarios...")
	sg.GenerateReferenceScenario()
	sg.GenerateDirectNumberScenario()
	sg.GenerateCombinationScenario()
	sg.GenerateContentionScenario()
	sg.GenerateDuplicateScenario()
}

// scenarioUUID derives a stable fiscal ID from a label so scenario files
// are identical across runs.
func scenarioUUID(label string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(label)).String()
}

// GenerateReferenceScenario creates invoices whose reference codes resolve
// receipts directly, including one with an amount outside tolerance.
func (sg *ScenarioGenerator) GenerateReferenceScenario() {
	fmt.Println("Generating reference lookup scenario...")

	base := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)

	invoices := [][]string{
		invoiceHeader(),
		// Reference resolves a receipt with a matching amount
		{scenarioUUID("ref-1"), "A", "000001", "CEM840101AAA", "Cementos del Norte SA",
			base.Format("2006-01-02"), "8620.69", "1379.31", "10000.00", "", "PO-4411", "10 x cement bags"},
		// Reference resolves a receipt whose amount is 12% off
		{scenarioUUID("ref-2"), "A", "000002", "ACE900215BBB", "Aceros Industriales SA",
			base.Format("2006-01-02"), "4310.34", "689.66", "5000.00", "", "PO-4412", "5 x steel rods"},
	}

	receipts := [][]string{
		receiptHeader(),
		{"REM", "000001", "CEM840101AAA", "Cementos del Norte SA",
			base.AddDate(0, 0, -3).Format("2006-01-02"), "8620.69", "1379.31", "10000.00", "PO-4411", "", "10 x cement bags"},
		{"REM", "000002", "ACE900215BBB", "Aceros Industriales SA",
			base.AddDate(0, 0, -2).Format("2006-01-02"), "4827.59", "772.41", "5600.00", "PO-4412", "", "5 x steel rods"},
	}

	sg.writeCSV("reference_invoices.csv", invoices)
	sg.writeCSV("reference_receipts.csv", receipts)
}

// GenerateDirectNumberScenario creates invoices carrying the receipt number
// they were issued against.
func (sg *ScenarioGenerator) GenerateDirectNumberScenario() {
	fmt.Println("Generating direct number scenario...")

	base := time.Date(2024, 4, 5, 0, 0, 0, 0, time.UTC)

	invoices := [][]string{
		invoiceHeader(),
		{scenarioUUID("dir-1"), "A", "000010", "FER850630CCC", "Ferreteria Central SA",
			base.Format("2006-01-02"), "2586.21", "413.79", "3000.00", "REM-000110", "", "3 x paint bucket"},
	}

	receipts := [][]string{
		receiptHeader(),
		{"REM", "000110", "FER850630CCC", "Ferreteria Central SA",
			base.AddDate(0, 0, -4).Format("2006-01-02"), "2586.21", "413.79", "3000.00", "", "", "3 x paint bucket"},
		// Same amount and window, wrong number; direct lookup must not pick it
		{"REM", "000111", "FER850630CCC", "Ferreteria Central SA",
			base.AddDate(0, 0, -4).Format("2006-01-02"), "2586.21", "413.79", "3000.00", "", "", "3 x paint bucket"},
	}

	sg.writeCSV("direct_invoices.csv", invoices)
	sg.writeCSV("direct_receipts.csv", receipts)
}

// GenerateCombinationScenario creates an invoice covered only by a
// multi-receipt combination summing exactly to the invoice total.
func (sg *ScenarioGenerator) GenerateCombinationScenario() {
	fmt.Println("Generating combination scenario...")

	base := time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC)

	invoices := [][]string{
		invoiceHeader(),
		{scenarioUUID("comb-1"), "A", "000020", "TRA910422DDD", "Transportes Unidos SA",
			base.Format("2006-01-02"), "5172.41", "827.59", "6000.00", "", "", "2 x gravel load|1 x sand load"},
	}

	receipts := [][]string{
		receiptHeader(),
		{"REM", "000201", "TRA910422DDD", "Transportes Unidos SA",
			base.AddDate(0, 0, -2).Format("2006-01-02"), "1896.55", "303.45", "2200.00", "", "", "1 x gravel load"},
		{"REM", "000202", "TRA910422DDD", "Transportes Unidos SA",
			base.AddDate(0, 0, -5).Format("2006-01-02"), "1551.72", "248.28", "1800.00", "", "", "1 x gravel load"},
		{"REM", "000203", "TRA910422DDD", "Transportes Unidos SA",
			base.AddDate(0, 0, -7).Format("2006-01-02"), "1724.14", "275.86", "2000.00", "", "", "1 x sand load"},
		// Decoy outside the combination
		{"REM", "000204", "TRA910422DDD", "Transportes Unidos SA",
			base.AddDate(0, 0, -1).Format("2006-01-02"), "4310.34", "689.66", "5000.00", "", "", "1 x gravel load"},
	}

	sg.writeCSV("combination_invoices.csv", invoices)
	sg.writeCSV("combination_receipts.csv", receipts)
}

// GenerateContentionScenario creates several identical invoices competing
// for identical receipts, which only batch assignment resolves cleanly.
func (sg *ScenarioGenerator) GenerateContentionScenario() {
	fmt.Println("Generating batch contention scenario...")

	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	invoices := [][]string{invoiceHeader()}
	receipts := [][]string{receiptHeader()}

	for i := 0; i < 3; i++ {
		invoices = append(invoices, []string{
			scenarioUUID(fmt.Sprintf("cont-%d", i)), "A", fmt.Sprintf("0000%d0", 3+i),
			"ELE880915EEE", "Electricos y Cables SA",
			base.AddDate(0, 0, i).Format("2006-01-02"),
			"1820.69", "291.31", "2112.00", "", "", "4 x copper wire roll",
		})
		receipts = append(receipts, []string{
			"REM", fmt.Sprintf("0003%02d", i), "ELE880915EEE", "Electricos y Cables SA",
			base.AddDate(0, 0, i-3).Format("2006-01-02"),
			"1820.69", "291.31", "2112.00", "", "", "4 x copper wire roll",
		})
	}

	sg.writeCSV("contention_invoices.csv", invoices)
	sg.writeCSV("contention_receipts.csv", receipts)
}

// GenerateDuplicateScenario creates two invoices that both carry the same
// receipt number; matching gives the receipt to the first invoice and must
// leave the second without it.
func (sg *ScenarioGenerator) GenerateDuplicateScenario() {
	fmt.Println("Generating duplicate receipt scenario...")

	base := time.Date(2024, 7, 12, 0, 0, 0, 0, time.UTC)

	invoices := [][]string{
		invoiceHeader(),
		{scenarioUUID("dup-1"), "A", "000040", "CEM840101AAA", "Cementos del Norte SA",
			base.Format("2006-01-02"), "6896.55", "1103.45", "8000.00", "REM-000400", "", "8 x cement bags"},
		{scenarioUUID("dup-2"), "B", "000041", "CEM840101AAA", "Cementos del Norte SA",
			base.AddDate(0, 0, 1).Format("2006-01-02"), "6896.55", "1103.45", "8000.00", "REM-000400", "", "8 x cement bags"},
	}

	receipts := [][]string{
		receiptHeader(),
		{"REM", "000400", "CEM840101AAA", "Cementos del Norte SA",
			base.AddDate(0, 0, -2).Format("2006-01-02"), "6896.55", "1103.45", "8000.00", "", "", "8 x cement bags"},
	}

	sg.writeCSV("duplicate_invoices.csv", invoices)
	sg.writeCSV("duplicate_receipts.csv", receipts)
}

func invoiceHeader() []string {
	return []string{"fiscal_id", "series", "folio", "issuer_tax_id", "issuer_name",
		"issue_date", "subtotal", "tax", "total", "receipt_number", "references", "line_items"}
}

func receiptHeader() []string {
	return []string{"series", "number", "issuer_tax_id", "supplier_name",
		"date", "subtotal", "tax", "total", "reference", "linked_invoice", "lines"}
}

func (sg *ScenarioGenerator) writeCSV(filename string, records [][]string) {
	path := filepath.Join(sg.OutputDir, filename)

	file, err := os.Create(path)
	if err != nil {
		log.Fatalf("Failed to create %s: %v", path, err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.WriteAll(records); err != nil {
		log.Fatalf("Failed to write %s: %v", path, err)
	}
}
