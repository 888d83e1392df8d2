package errors

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrorCategory represents different categories of errors
type ErrorCategory string

const (
	CategoryFile          ErrorCategory = "file"
	CategoryParse         ErrorCategory = "parse"
	CategoryValidation    ErrorCategory = "validation"
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryMatching      ErrorCategory = "matching"
	CategoryAssignment    ErrorCategory = "assignment"
	CategoryLedger        ErrorCategory = "ledger"
	CategoryInternal      ErrorCategory = "internal"
)

// ErrorCode represents specific error codes within categories
type ErrorCode string

const (
	// File errors
	CodeFileNotFound   ErrorCode = "file_not_found"
	CodeFilePermission ErrorCode = "file_permission"

	// Parse errors
	CodeInvalidFormat ErrorCode = "invalid_format"
	CodeMissingColumn ErrorCode = "missing_column"
	CodeInvalidData   ErrorCode = "invalid_data"

	// Validation errors
	CodeInvalidInvoice ErrorCode = "invalid_invoice"
	CodeInvalidAmount  ErrorCode = "invalid_amount"
	CodeInvalidDate    ErrorCode = "invalid_date"
	CodeMissingField   ErrorCode = "missing_field"

	// Configuration errors
	CodeInvalidConfig ErrorCode = "invalid_config"
	CodeMissingConfig ErrorCode = "missing_config"

	// Matching errors
	CodeNoCandidates  ErrorCode = "no_candidates"
	CodeLowConfidence ErrorCode = "low_confidence"
	CodeAmountMismatch ErrorCode = "amount_mismatch"

	// Assignment errors
	CodeAssignmentInfeasible ErrorCode = "assignment_infeasible"
	CodeSolverFailure        ErrorCode = "solver_failure"

	// Ledger errors
	CodeLedgerUnavailable ErrorCode = "ledger_unavailable"

	// Internal errors
	CodeUnexpectedError ErrorCode = "unexpected_error"
)

// ReconcilerError is the base error type for all application errors
type ReconcilerError struct {
	Category   ErrorCategory `json:"category"`
	Code       ErrorCode     `json:"code"`
	Message    string        `json:"message"`
	Suggestion string        `json:"suggestion,omitempty"`
	Context    Context       `json:"context,omitempty"`
	Cause      error         `json:"-"`
	StackTrace errors.StackTrace `json:"-"`
}

// Context provides additional information about the error
type Context map[string]interface{}

// Error implements the error interface
func (e *ReconcilerError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s (suggestion: %s)", e.Message, e.Suggestion)
	}
	return e.Message
}

// Unwrap returns the underlying cause error
func (e *ReconcilerError) Unwrap() error {
	return e.Cause
}

// GetExitCode returns an appropriate exit code for the error
func (e *ReconcilerError) GetExitCode() int {
	switch e.Category {
	case CategoryFile:
		return 2
	case CategoryParse, CategoryValidation:
		return 3
	case CategoryConfiguration:
		return 4
	case CategoryMatching, CategoryAssignment, CategoryInternal:
		return 5
	case CategoryLedger:
		return 6
	default:
		return 1
	}
}

// WithContextValue adds context information to the error
func (e *ReconcilerError) WithContextValue(key string, value interface{}) *ReconcilerError {
	if e.Context == nil {
		e.Context = make(Context)
	}
	e.Context[key] = value
	return e
}

// WithSuggestion adds a suggestion for fixing the error
func (e *ReconcilerError) WithSuggestion(suggestion string) *ReconcilerError {
	e.Suggestion = suggestion
	return e
}

// New creates a new ReconcilerError
func New(category ErrorCategory, code ErrorCode, message string) *ReconcilerError {
	return &ReconcilerError{
		Category:   category,
		Code:       code,
		Message:    message,
		StackTrace: errors.New("").(stackTracer).StackTrace(),
	}
}

// Wrap wraps an existing error with ReconcilerError context
func Wrap(err error, category ErrorCategory, code ErrorCode, message string) *ReconcilerError {
	if err == nil {
		return nil
	}

	return &ReconcilerError{
		Category:   category,
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: errors.WithStack(err).(stackTracer).StackTrace(),
	}
}

// stackTracer interface for extracting stack traces
type stackTracer interface {
	StackTrace() errors.StackTrace
}

// Specific error constructors

// FileError creates a file-related error
func FileError(code ErrorCode, path string, err error) *ReconcilerError {
	var message, suggestion string

	switch code {
	case CodeFileNotFound:
		message = fmt.Sprintf("file not found: %s", path)
		suggestion = "check if the file path is correct and the file exists"
	case CodeFilePermission:
		message = fmt.Sprintf("permission denied accessing file: %s", path)
		suggestion = "check file permissions and ensure you have read access"
	default:
		message = fmt.Sprintf("file error: %s", path)
		suggestion = "check the file and try again"
	}

	result := wrapOrNew(err, CategoryFile, code, message)
	return result.
		WithSuggestion(suggestion).
		WithContextValue("file_path", path)
}

// ParseError creates a parsing-related error carrying the file position
func ParseError(code ErrorCode, file string, line int, column string, value string, err error) *ReconcilerError {
	var message, suggestion string

	switch code {
	case CodeMissingColumn:
		message = fmt.Sprintf("missing required column '%s' in file %s", column, file)
		suggestion = "verify the file has all required columns with correct headers"
	case CodeInvalidData:
		message = fmt.Sprintf("invalid data in file %s at line %d, column '%s': '%s'", file, line, column, value)
		suggestion = "correct the data format or remove the invalid entry"
	default:
		message = fmt.Sprintf("parse error in file %s at line %d", file, line)
		suggestion = "check the file format and data integrity"
	}

	result := wrapOrNew(err, CategoryParse, code, message)
	return result.
		WithSuggestion(suggestion).
		WithContextValue("file", file).
		WithContextValue("line", line).
		WithContextValue("column", column)
}

// ValidationError creates a validation-related error
func ValidationError(code ErrorCode, message string) *ReconcilerError {
	var suggestion string

	switch code {
	case CodeInvalidInvoice:
		suggestion = "check the fiscal ID, issuer tax ID, date and total of the invoice"
	case CodeInvalidAmount:
		suggestion = "ensure amounts are valid decimal numbers (e.g., '12.34')"
	case CodeInvalidDate:
		suggestion = "use date format YYYY-MM-DD or YYYY-MM-DDTHH:MM:SS"
	case CodeMissingField:
		suggestion = "provide a value for this required field"
	default:
		suggestion = "check the field value and format"
	}

	return New(CategoryValidation, code, message).WithSuggestion(suggestion)
}

// ConfigurationError creates a configuration-related error
func ConfigurationError(code ErrorCode, setting string, value interface{}, err error) *ReconcilerError {
	var message, suggestion string

	switch code {
	case CodeInvalidConfig:
		message = fmt.Sprintf("invalid configuration for '%s': %v", setting, value)
		suggestion = "check the configuration documentation for valid values"
	case CodeMissingConfig:
		message = fmt.Sprintf("missing required configuration: %s", setting)
		suggestion = "provide this configuration setting or use a config file"
	default:
		message = fmt.Sprintf("configuration error: %s", setting)
		suggestion = "check your configuration and try again"
	}

	result := wrapOrNew(err, CategoryConfiguration, code, message)
	return result.
		WithSuggestion(suggestion).
		WithContextValue("setting", setting).
		WithContextValue("value", value)
}

// MatchingError creates a matching-related error
func MatchingError(code ErrorCode, invoice string, err error) *ReconcilerError {
	var message, suggestion string

	switch code {
	case CodeNoCandidates:
		message = fmt.Sprintf("no candidate receipts found for invoice %s", invoice)
		suggestion = "widen the day window or verify the receipt ledger covers the period"
	case CodeLowConfidence:
		message = fmt.Sprintf("no match above the confidence threshold for invoice %s", invoice)
		suggestion = "review the invoice manually or relax the matching configuration"
	case CodeAmountMismatch:
		message = fmt.Sprintf("matched amount outside tolerance for invoice %s", invoice)
		suggestion = "review the amount difference and the receipt composition"
	default:
		message = fmt.Sprintf("matching error for invoice %s", invoice)
		suggestion = "review the data and configuration"
	}

	result := wrapOrNew(err, CategoryMatching, code, message)
	return result.
		WithSuggestion(suggestion).
		WithContextValue("invoice", invoice)
}

// AssignmentError creates a batch-assignment error
func AssignmentError(code ErrorCode, err error) *ReconcilerError {
	var message, suggestion string

	switch code {
	case CodeAssignmentInfeasible:
		message = "no feasible batch assignment over exact candidates"
		suggestion = "invoices fall back to per-invoice matching"
	case CodeSolverFailure:
		message = "batch assignment solver failed"
		suggestion = "invoices fall back to per-invoice matching"
	default:
		message = "batch assignment error"
		suggestion = "invoices fall back to per-invoice matching"
	}

	return wrapOrNew(err, CategoryAssignment, code, message).WithSuggestion(suggestion)
}

// LedgerError creates a receipt-ledger access error
func LedgerError(operation string, err error) *ReconcilerError {
	message := fmt.Sprintf("ledger access failed during %s", operation)
	return wrapOrNew(err, CategoryLedger, CodeLedgerUnavailable, message).
		WithSuggestion("verify the receipt ledger source is reachable").
		WithContextValue("operation", operation)
}

// InternalError creates an internal error
func InternalError(operation string, err error) *ReconcilerError {
	message := fmt.Sprintf("unexpected error during %s", operation)
	return wrapOrNew(err, CategoryInternal, CodeUnexpectedError, message).
		WithSuggestion("this is likely a bug - please report it with the error details").
		WithContextValue("operation", operation)
}

func wrapOrNew(err error, category ErrorCategory, code ErrorCode, message string) *ReconcilerError {
	if err != nil {
		return Wrap(err, category, code, message)
	}
	return New(category, code, message)
}

// ErrorSummary provides a summary of multiple errors
type ErrorSummary struct {
	Total      int                   `json:"total"`
	ByCategory map[ErrorCategory]int `json:"by_category"`
	ByCode     map[ErrorCode]int     `json:"by_code"`
	Errors     []*ReconcilerError    `json:"errors"`
}

// NewErrorSummary creates a new error summary
func NewErrorSummary(errs []*ReconcilerError) *ErrorSummary {
	summary := &ErrorSummary{
		Total:      len(errs),
		ByCategory: make(map[ErrorCategory]int),
		ByCode:     make(map[ErrorCode]int),
		Errors:     errs,
	}

	for _, err := range errs {
		summary.ByCategory[err.Category]++
		summary.ByCode[err.Code]++
	}

	return summary
}

// Error returns a formatted error message for the summary
func (es *ErrorSummary) Error() string {
	if es.Total == 0 {
		return "no errors"
	}

	if es.Total == 1 {
		return es.Errors[0].Error()
	}

	var categories []string
	for category, count := range es.ByCategory {
		categories = append(categories, fmt.Sprintf("%s: %d", category, count))
	}

	return fmt.Sprintf("%d errors occurred (%s)", es.Total, strings.Join(categories, ", "))
}

// HasCategory checks if the summary contains errors of the given category
func (es *ErrorSummary) HasCategory(category ErrorCategory) bool {
	return es.ByCategory[category] > 0
}

// GetExitCode returns the highest priority exit code from all errors
func (es *ErrorSummary) GetExitCode() int {
	if es.Total == 0 {
		return 0
	}

	maxCode := 1
	for _, err := range es.Errors {
		if code := err.GetExitCode(); code > maxCode {
			maxCode = code
		}
	}

	return maxCode
}

// IsReconcilerError checks if an error is a ReconcilerError
func IsReconcilerError(err error) bool {
	_, ok := err.(*ReconcilerError)
	return ok
}

// AsReconcilerError extracts a ReconcilerError from an error chain
func AsReconcilerError(err error) (*ReconcilerError, bool) {
	var reconcilerErr *ReconcilerError
	if errors.As(err, &reconcilerErr) {
		return reconcilerErr, true
	}
	return nil, false
}

// WrapIfNeeded wraps an error if it's not already a ReconcilerError
func WrapIfNeeded(err error, category ErrorCategory, code ErrorCode, message string) *ReconcilerError {
	if err == nil {
		return nil
	}

	if reconcilerErr, ok := AsReconcilerError(err); ok {
		return reconcilerErr
	}

	return Wrap(err, category, code, message)
}
