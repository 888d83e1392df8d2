package matcher

import (
	"sort"

	"invoice-reconciler/internal/models"
)

// ConsumedSet is the run-scoped registry of receipts already committed to
// some invoice. It prevents a receipt from being offered to, or taken by, a
// second invoice within the same reconciliation run, across all matching
// stages and both widening passes.
//
// A ConsumedSet is exclusively owned by one run: it must be created (or
// Reset) at the start of each batch and must not be shared across concurrent
// runs.
type ConsumedSet struct {
	ids map[string]string // receipt ID -> invoice fiscal ID that claimed it
}

// NewConsumedSet creates an empty ConsumedSet.
func NewConsumedSet() *ConsumedSet {
	return &ConsumedSet{ids: make(map[string]string)}
}

// Contains reports whether the receipt is already committed.
func (cs *ConsumedSet) Contains(receiptID string) bool {
	_, ok := cs.ids[receiptID]
	return ok
}

// ClaimedBy returns the invoice that committed the receipt, if any.
func (cs *ConsumedSet) ClaimedBy(receiptID string) (string, bool) {
	invoiceID, ok := cs.ids[receiptID]
	return invoiceID, ok
}

// Commit registers a single receipt as claimed by an invoice.
func (cs *ConsumedSet) Commit(receiptID, invoiceID string) {
	cs.ids[receiptID] = invoiceID
}

// CommitAll registers every receipt of a match as claimed by an invoice.
func (cs *ConsumedSet) CommitAll(receipts []*models.ReceiptCandidate, invoiceID string) {
	for _, rc := range receipts {
		cs.ids[rc.ID()] = invoiceID
	}
}

// ContainsAny reports whether any receipt of the set is already committed.
func (cs *ConsumedSet) ContainsAny(receipts []*models.ReceiptCandidate) bool {
	for _, rc := range receipts {
		if cs.Contains(rc.ID()) {
			return true
		}
	}
	return false
}

// FilterAvailable returns the receipts not yet committed, preserving order.
func (cs *ConsumedSet) FilterAvailable(receipts []*models.ReceiptCandidate) []*models.ReceiptCandidate {
	available := make([]*models.ReceiptCandidate, 0, len(receipts))
	for _, rc := range receipts {
		if !cs.Contains(rc.ID()) {
			available = append(available, rc)
		}
	}
	return available
}

// Reset clears the set for reuse at the start of a new run.
func (cs *ConsumedSet) Reset() {
	cs.ids = make(map[string]string)
}

// Len returns the number of committed receipts.
func (cs *ConsumedSet) Len() int {
	return len(cs.ids)
}

// IDs returns the committed receipt IDs in sorted order.
func (cs *ConsumedSet) IDs() []string {
	ids := make([]string, 0, len(cs.ids))
	for id := range cs.ids {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
