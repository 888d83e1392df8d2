package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"invoice-reconciler/cmd/reconciler/config"
	"invoice-reconciler/internal/reconciler"
	"invoice-reconciler/internal/reporter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flags for the reconcile command
var (
	invoiceFile     string
	receiptFile     string
	outputFormat    string
	outputFile      string
	startDate       string
	endDate         string
	runMode         string
	dayWindow       int
	amountTolerance float64
	showProgress    bool
	onlyProblems    bool
)

// reconcileCmd represents the reconcile command
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile supplier invoices with goods receipts",
	Long: `Reconcile matches supplier invoice records against goods-receipt
ledger entries to identify which receipts cover each invoice, flag amount
and date discrepancies, and list receipts no invoice ever claimed.

This command requires:
- An invoice export file (CSV format)
- A goods-receipt ledger export file (CSV format)

Examples:
  # Basic reconciliation
  reconciler reconcile --invoices invoices.csv --receipts receipts.csv

  # Date filtering with a JSON report
  reconciler reconcile -i invoices.csv -r receipts.csv \
    --start-date 2024-01-01 --end-date 2024-01-31 \
    --output-format json --output-file report.json

  # Sequential first-come-first-served matching instead of global assignment
  reconciler reconcile -i invoices.csv -r receipts.csv --mode sequential

  # Custom tolerances
  reconciler reconcile -i invoices.csv -r receipts.csv \
    --amount-tolerance 1.0 --day-window 30

  # With progress indicators
  reconciler reconcile -i invoices.csv -r receipts.csv --progress`,

	PreRunE: validateReconcileFlags,
	RunE:    runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	// Required flags
	reconcileCmd.Flags().StringVarP(&invoiceFile, "invoices", "i", "", "path to invoice CSV file (required)")
	reconcileCmd.Flags().StringVarP(&receiptFile, "receipts", "r", "", "path to goods-receipt CSV file (required)")

	// Output flags
	reconcileCmd.Flags().StringVarP(&outputFormat, "output-format", "f", "console", "output format: console, json, csv")
	reconcileCmd.Flags().StringVarP(&outputFile, "output-file", "o", "", "output file path (default: stdout)")
	reconcileCmd.Flags().BoolVar(&onlyProblems, "only-problems", false, "report only invoices with differences or alerts")

	// Date filtering flags
	reconcileCmd.Flags().StringVar(&startDate, "start-date", "", "filter start date (YYYY-MM-DD)")
	reconcileCmd.Flags().StringVar(&endDate, "end-date", "", "filter end date (YYYY-MM-DD)")

	// Matching configuration flags
	reconcileCmd.Flags().StringVarP(&runMode, "mode", "m", "batch", "matching mode: batch (global assignment) or sequential")
	reconcileCmd.Flags().IntVarP(&dayWindow, "day-window", "d", 0, "candidate search window in days (0 uses the default)")
	reconcileCmd.Flags().Float64VarP(&amountTolerance, "amount-tolerance", "a", 0.0, "amount tolerance percentage (0 uses the default)")

	// UI flags
	reconcileCmd.Flags().BoolVar(&showProgress, "progress", false, "show progress indicators")

	// Mark required flags
	reconcileCmd.MarkFlagRequired("invoices")
	reconcileCmd.MarkFlagRequired("receipts")

	// Bind flags to viper
	viper.BindPFlag("invoices", reconcileCmd.Flags().Lookup("invoices"))
	viper.BindPFlag("receipts", reconcileCmd.Flags().Lookup("receipts"))
	viper.BindPFlag("output-format", reconcileCmd.Flags().Lookup("output-format"))
	viper.BindPFlag("output-file", reconcileCmd.Flags().Lookup("output-file"))
	viper.BindPFlag("only-problems", reconcileCmd.Flags().Lookup("only-problems"))
	viper.BindPFlag("start-date", reconcileCmd.Flags().Lookup("start-date"))
	viper.BindPFlag("end-date", reconcileCmd.Flags().Lookup("end-date"))
	viper.BindPFlag("mode", reconcileCmd.Flags().Lookup("mode"))
	viper.BindPFlag("day-window", reconcileCmd.Flags().Lookup("day-window"))
	viper.BindPFlag("amount-tolerance", reconcileCmd.Flags().Lookup("amount-tolerance"))
	viper.BindPFlag("progress", reconcileCmd.Flags().Lookup("progress"))
}

func validateReconcileFlags(cmd *cobra.Command, args []string) error {
	// Get values from viper (allows override from config file)
	invoiceFile = viper.GetString("invoices")
	receiptFile = viper.GetString("receipts")
	outputFormat = viper.GetString("output-format")
	outputFile = viper.GetString("output-file")
	onlyProblems = viper.GetBool("only-problems")
	startDate = viper.GetString("start-date")
	endDate = viper.GetString("end-date")
	runMode = viper.GetString("mode")
	dayWindow = viper.GetInt("day-window")
	amountTolerance = viper.GetFloat64("amount-tolerance")
	showProgress = viper.GetBool("progress")

	// Validate required flags
	if invoiceFile == "" {
		return fmt.Errorf("invoices file is required")
	}
	if receiptFile == "" {
		return fmt.Errorf("receipts file is required")
	}

	// Validate file existence
	if err := validateFileExists(invoiceFile, "invoice file"); err != nil {
		return err
	}
	if err := validateFileExists(receiptFile, "receipt file"); err != nil {
		return err
	}

	// Validate output format
	validFormats := map[string]bool{"console": true, "json": true, "csv": true}
	if !validFormats[outputFormat] {
		return fmt.Errorf("invalid output format '%s'. Valid formats: console, json, csv", outputFormat)
	}

	// Validate run mode
	if runMode != string(reconciler.BatchMode) && runMode != string(reconciler.SequentialMode) {
		return fmt.Errorf("invalid mode '%s'. Valid modes: batch, sequential", runMode)
	}

	// Validate dates
	if startDate != "" {
		if _, err := time.Parse("2006-01-02", startDate); err != nil {
			return fmt.Errorf("invalid start date format. Use YYYY-MM-DD: %w", err)
		}
	}
	if endDate != "" {
		if _, err := time.Parse("2006-01-02", endDate); err != nil {
			return fmt.Errorf("invalid end date format. Use YYYY-MM-DD: %w", err)
		}
	}

	// Validate date range
	if startDate != "" && endDate != "" {
		start, _ := time.Parse("2006-01-02", startDate)
		end, _ := time.Parse("2006-01-02", endDate)
		if start.After(end) {
			return fmt.Errorf("start date cannot be after end date")
		}
	}

	// Validate tolerances
	if dayWindow < 0 {
		return fmt.Errorf("day window cannot be negative")
	}
	if amountTolerance < 0.0 || amountTolerance > 100.0 {
		return fmt.Errorf("amount tolerance must be between 0.0 and 100.0")
	}

	// Validate output file directory exists if specified
	if outputFile != "" {
		dir := filepath.Dir(outputFile)
		if dir != "." {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				return fmt.Errorf("output directory does not exist: %s", dir)
			}
		}
	}

	return nil
}

func validateFileExists(filePath, description string) error {
	if filePath == "" {
		return fmt.Errorf("%s path cannot be empty", description)
	}

	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return fmt.Errorf("%s does not exist: %s", description, filePath)
	}
	if err != nil {
		return fmt.Errorf("error accessing %s: %w", description, err)
	}

	if info.IsDir() {
		return fmt.Errorf("%s is a directory, expected a file: %s", description, filePath)
	}

	// Check if file is readable
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("%s is not readable: %w", description, err)
	}
	file.Close()

	return nil
}

func runReconcile(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	errorHandler := NewCLIErrorHandler()

	if viper.GetBool("verbose") {
		fmt.Fprintf(os.Stderr, "Starting reconciliation...\n")
		fmt.Fprintf(os.Stderr, "Invoice file: %s\n", invoiceFile)
		fmt.Fprintf(os.Stderr, "Receipt file: %s\n", receiptFile)
		fmt.Fprintf(os.Stderr, "Mode: %s\n", runMode)
		fmt.Fprintf(os.Stderr, "Output format: %s\n", outputFormat)
		if outputFile != "" {
			fmt.Fprintf(os.Stderr, "Output file: %s\n", outputFile)
		}
	}

	// Create configurations
	invoiceConfig := config.CreateInvoiceParserConfig()
	receiptConfig := config.CreateReceiptParserConfig()
	matchingConfig := config.CreateMatchingConfig(dayWindow, amountTolerance)

	// Parse date range
	var startTime, endTime *time.Time
	if startDate != "" {
		t, _ := time.Parse("2006-01-02", startDate)
		startTime = &t
	}
	if endDate != "" {
		t, _ := time.Parse("2006-01-02", endDate)
		// Set to end of day
		t = t.Add(23*time.Hour + 59*time.Minute + 59*time.Second)
		endTime = &t
	}

	reconcilerConfig := config.CreateReconcilerConfig(runMode, showProgress, startTime, endTime)

	if err := config.ValidateConfig(invoiceConfig, receiptConfig, matchingConfig); err != nil {
		os.Exit(errorHandler.HandleError(err))
	}

	// Create reconciliation service
	service, err := reconciler.NewReconciliationService(
		invoiceConfig,
		receiptConfig,
		matchingConfig,
		reconcilerConfig,
	)
	if err != nil {
		os.Exit(errorHandler.HandleError(err))
	}

	// Create reconciliation request
	request := &reconciler.ReconciliationRequest{
		InvoiceFile:   invoiceFile,
		ReceiptFile:   receiptFile,
		InvoiceConfig: invoiceConfig,
		ReceiptConfig: receiptConfig,
	}

	if showProgress {
		fmt.Fprintf(os.Stderr, "Processing reconciliation...\n")
	}

	result, err := service.ProcessReconciliation(ctx, request)
	if err != nil {
		os.Exit(errorHandler.HandleError(err))
	}

	// Generate report
	reportConfig := config.CreateReportConfig(outputFormat)
	reportConfig.OnlyProblems = onlyProblems
	reportGenerator, err := reporter.NewReportGenerator(reportConfig)
	if err != nil {
		return fmt.Errorf("failed to create report generator: %w", err)
	}

	// Determine output destination
	var output *os.File
	if outputFile != "" {
		output, err = os.Create(outputFile)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer output.Close()
	} else {
		output = os.Stdout
	}

	if err := reportGenerator.GenerateReport(result, output); err != nil {
		return fmt.Errorf("failed to generate report: %w", err)
	}

	// Show completion message
	if viper.GetBool("verbose") {
		fmt.Fprintf(os.Stderr, "\nReconciliation completed successfully.\n")
		fmt.Fprintf(os.Stderr, "Processed %d invoices against %d receipts.\n",
			result.Summary.TotalInvoices, result.Summary.TotalReceipts)
		fmt.Fprintf(os.Stderr, "Reconciled %d (%d multi-receipt), %d with differences, %d without receipt.\n",
			result.Summary.Reconciled+result.Summary.ReconciledMulti, result.Summary.ReconciledMulti,
			result.Summary.WithDifferences, result.Summary.WithoutReceipt)
		if len(result.DuplicateAlerts) > 0 {
			fmt.Fprintf(os.Stderr, "Detected %d duplicate receipt usages.\n", len(result.DuplicateAlerts))
		}
		fmt.Fprintf(os.Stderr, "Processing time: %v\n", result.Summary.ProcessingDuration)
	}

	return nil
}
