// Package ledger defines the retrieval interface to the external
// goods-receipt ledger and provides an in-memory implementation used by the
// CLI and by tests. Persistence of reconciliation outcomes back into the
// ledger is an external concern and is deliberately absent here.
package ledger

import (
	"sort"
	"strings"
	"time"

	"invoice-reconciler/internal/models"

	"github.com/shopspring/decimal"
)

// Repository is the candidate-retrieval contract the matching engine
// consumes. Every method excludes receipts already flagged as linked to an
// invoice in the ledger; results are ordered by relevance but callers must
// not rely on any particular ordering.
type Repository interface {
	// RetrieveCandidates returns unlinked receipts for the issuer dated
	// within dayWindow days of refDate, ordered by closeness to amount and
	// then by day gap.
	RetrieveCandidates(issuerTaxID string, refDate time.Time, amount decimal.Decimal, dayWindow int) ([]*models.ReceiptCandidate, error)

	// RetrieveByNumber returns unlinked receipts whose sequence number
	// matches. The number may carry a series prefix ("R-12345") or be bare.
	// An empty issuerTaxID disables issuer filtering.
	RetrieveByNumber(number string, issuerTaxID string) ([]*models.ReceiptCandidate, error)

	// RetrieveByReference returns unlinked receipts whose supplier reference
	// field (purchase order or supplier invoice number) matches the code.
	// An empty issuerTaxID disables issuer filtering.
	RetrieveByReference(code string, issuerTaxID string) ([]*models.ReceiptCandidate, error)
}

// MemoryRepository implements Repository over a slice of receipts loaded
// from a ledger export. References are indexed by the supplier reference
// codes attached via SetReference.
type MemoryRepository struct {
	receipts   []*models.ReceiptCandidate
	references map[string][]*models.ReceiptCandidate
}

// NewMemoryRepository creates a MemoryRepository over the given receipts.
// Supplier references carried on the receipts are indexed automatically.
func NewMemoryRepository(receipts []*models.ReceiptCandidate) *MemoryRepository {
	mr := &MemoryRepository{
		receipts:   receipts,
		references: make(map[string][]*models.ReceiptCandidate),
	}
	for _, rc := range receipts {
		mr.SetReference(rc.Reference, rc)
	}
	return mr
}

// SetReference associates a supplier reference code (purchase order or the
// supplier's own document number) with a receipt for reference lookups.
func (mr *MemoryRepository) SetReference(code string, receipt *models.ReceiptCandidate) {
	key := normalizeReference(code)
	if key == "" {
		return
	}
	mr.references[key] = append(mr.references[key], receipt)
}

// RetrieveCandidates implements Repository.
func (mr *MemoryRepository) RetrieveCandidates(issuerTaxID string, refDate time.Time, amount decimal.Decimal, dayWindow int) ([]*models.ReceiptCandidate, error) {
	var candidates []*models.ReceiptCandidate

	for _, rc := range mr.receipts {
		if rc.Linked {
			continue
		}
		if !strings.EqualFold(rc.IssuerTaxID, issuerTaxID) {
			continue
		}
		if models.DaysBetween(refDate, rc.Date) > dayWindow {
			continue
		}
		candidates = append(candidates, rc)
	}

	// Mirror the ledger's relevance ordering: closest amount first, then
	// smallest day gap, then ID for determinism.
	sort.SliceStable(candidates, func(i, j int) bool {
		di := candidates[i].Total.Sub(amount).Abs()
		dj := candidates[j].Total.Sub(amount).Abs()
		if !di.Equal(dj) {
			return di.LessThan(dj)
		}

		gi := models.DaysBetween(refDate, candidates[i].Date)
		gj := models.DaysBetween(refDate, candidates[j].Date)
		if gi != gj {
			return gi < gj
		}

		return candidates[i].ID() < candidates[j].ID()
	})

	return candidates, nil
}

// RetrieveByNumber implements Repository.
func (mr *MemoryRepository) RetrieveByNumber(number string, issuerTaxID string) ([]*models.ReceiptCandidate, error) {
	series, seq := splitReceiptNumber(number)

	var matches []*models.ReceiptCandidate
	for _, rc := range mr.receipts {
		if rc.Linked {
			continue
		}
		if !strings.EqualFold(rc.Number, seq) {
			continue
		}
		if series != "" && !strings.EqualFold(rc.Series, series) {
			continue
		}
		if issuerTaxID != "" && !strings.EqualFold(rc.IssuerTaxID, issuerTaxID) {
			continue
		}
		matches = append(matches, rc)
	}

	return matches, nil
}

// RetrieveByReference implements Repository.
func (mr *MemoryRepository) RetrieveByReference(code string, issuerTaxID string) ([]*models.ReceiptCandidate, error) {
	var matches []*models.ReceiptCandidate

	for _, rc := range mr.references[normalizeReference(code)] {
		if rc.Linked {
			continue
		}
		if issuerTaxID != "" && !strings.EqualFold(rc.IssuerTaxID, issuerTaxID) {
			continue
		}
		matches = append(matches, rc)
	}

	return matches, nil
}

// UnlinkedReceipts returns receipts without a linked invoice, optionally
// restricted to those dated on or after since. Used by reporting to surface
// receipts that never found an invoice.
func (mr *MemoryRepository) UnlinkedReceipts(since time.Time) []*models.ReceiptCandidate {
	var unlinked []*models.ReceiptCandidate
	for _, rc := range mr.receipts {
		if rc.Linked {
			continue
		}
		if !since.IsZero() && rc.Date.Before(since) {
			continue
		}
		unlinked = append(unlinked, rc)
	}
	return unlinked
}

// Len returns the number of receipts held.
func (mr *MemoryRepository) Len() int {
	return len(mr.receipts)
}

// splitReceiptNumber splits "R-12345" into series and sequence; a bare
// number returns an empty series.
func splitReceiptNumber(number string) (series, seq string) {
	number = strings.TrimSpace(number)
	if idx := strings.Index(number, "-"); idx > 0 {
		return number[:idx], number[idx+1:]
	}
	return "", number
}

func normalizeReference(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
