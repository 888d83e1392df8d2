package ledger

import (
	"testing"
	"time"

	"invoice-reconciler/internal/models"

	"github.com/shopspring/decimal"
)

var refDate = time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

func receipt(number, issuerTaxID string, daysBefore int, total float64) *models.ReceiptCandidate {
	return models.NewReceiptCandidate("REM", number, issuerTaxID,
		refDate.AddDate(0, 0, -daysBefore), decimal.NewFromFloat(total))
}

func TestMemoryRepository_RetrieveCandidates(t *testing.T) {
	near := receipt("000001", "CEM840101AAA", 2, 1005.00)
	exact := receipt("000002", "CEM840101AAA", 5, 1000.00)
	far := receipt("000003", "CEM840101AAA", 12, 900.00)
	outside := receipt("000004", "CEM840101AAA", 20, 1000.00)
	otherIssuer := receipt("000005", "ACE900215BBB", 1, 1000.00)
	linked := receipt("000006", "CEM840101AAA", 1, 1000.00)
	linked.Linked = true

	repo := NewMemoryRepository([]*models.ReceiptCandidate{
		near, exact, far, outside, otherIssuer, linked,
	})

	got, err := repo.RetrieveCandidates("CEM840101AAA", refDate, decimal.NewFromInt(1000), 15)
	if err != nil {
		t.Fatalf("RetrieveCandidates failed: %v", err)
	}

	if len(got) != 3 {
		t.Fatalf("Expected 3 candidates, got %d", len(got))
	}

	// Closest amount first, then growing distance.
	wantOrder := []string{"REM-000002", "REM-000001", "REM-000003"}
	for i, want := range wantOrder {
		if got[i].ID() != want {
			t.Errorf("Position %d: expected %s, got %s", i, want, got[i].ID())
		}
	}
}

func TestMemoryRepository_RetrieveCandidatesDayGapTieBreak(t *testing.T) {
	closeGap := receipt("000010", "CEM840101AAA", 1, 500.00)
	wideGap := receipt("000011", "CEM840101AAA", 9, 500.00)

	repo := NewMemoryRepository([]*models.ReceiptCandidate{wideGap, closeGap})

	got, err := repo.RetrieveCandidates("CEM840101AAA", refDate, decimal.NewFromInt(500), 15)
	if err != nil {
		t.Fatalf("RetrieveCandidates failed: %v", err)
	}

	if len(got) != 2 || got[0].ID() != "REM-000010" {
		t.Errorf("Expected equal amounts ordered by day gap, got %v", got)
	}
}

func TestMemoryRepository_RetrieveCandidatesCaseInsensitiveIssuer(t *testing.T) {
	rc := receipt("000020", "CEM840101AAA", 1, 100.00)
	repo := NewMemoryRepository([]*models.ReceiptCandidate{rc})

	got, err := repo.RetrieveCandidates("cem840101aaa", refDate, decimal.NewFromInt(100), 15)
	if err != nil {
		t.Fatalf("RetrieveCandidates failed: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("Expected case-insensitive issuer match, got %d candidates", len(got))
	}
}

func TestMemoryRepository_RetrieveByNumber(t *testing.T) {
	target := receipt("000110", "CEM840101AAA", 3, 1000.00)
	otherSeries := models.NewReceiptCandidate("ALM", "000110", "CEM840101AAA",
		refDate.AddDate(0, 0, -3), decimal.NewFromInt(1000))
	otherNumber := receipt("000111", "CEM840101AAA", 3, 1000.00)
	linked := receipt("000112", "CEM840101AAA", 3, 1000.00)
	linked.Number = "000110"
	linked.Linked = true

	repo := NewMemoryRepository([]*models.ReceiptCandidate{target, otherSeries, otherNumber, linked})

	t.Run("composed number restricts series", func(t *testing.T) {
		got, err := repo.RetrieveByNumber("REM-000110", "")
		if err != nil {
			t.Fatalf("RetrieveByNumber failed: %v", err)
		}
		if len(got) != 1 || got[0] != target {
			t.Errorf("Expected only the REM receipt, got %d matches", len(got))
		}
	})

	t.Run("bare number matches any series", func(t *testing.T) {
		got, err := repo.RetrieveByNumber("000110", "")
		if err != nil {
			t.Fatalf("RetrieveByNumber failed: %v", err)
		}
		if len(got) != 2 {
			t.Errorf("Expected both series to match, got %d", len(got))
		}
	})

	t.Run("issuer filter applies", func(t *testing.T) {
		got, err := repo.RetrieveByNumber("000110", "ACE900215BBB")
		if err != nil {
			t.Fatalf("RetrieveByNumber failed: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("Expected no matches for foreign issuer, got %d", len(got))
		}
	})
}

func TestMemoryRepository_RetrieveByReference(t *testing.T) {
	matched := receipt("000200", "CEM840101AAA", 2, 1000.00)
	matched.Reference = "PO-4411"
	foreign := receipt("000201", "ACE900215BBB", 2, 1000.00)
	foreign.Reference = "po-4411"
	unrelated := receipt("000202", "CEM840101AAA", 2, 1000.00)
	unrelated.Reference = "PO-9999"

	repo := NewMemoryRepository([]*models.ReceiptCandidate{matched, foreign, unrelated})

	got, err := repo.RetrieveByReference("  po-4411 ", "")
	if err != nil {
		t.Fatalf("RetrieveByReference failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("Expected normalized lookup to find both receipts, got %d", len(got))
	}

	got, err = repo.RetrieveByReference("PO-4411", "CEM840101AAA")
	if err != nil {
		t.Fatalf("RetrieveByReference failed: %v", err)
	}
	if len(got) != 1 || got[0] != matched {
		t.Errorf("Expected issuer filter to keep one receipt, got %d", len(got))
	}

	got, err = repo.RetrieveByReference("", "")
	if err != nil {
		t.Fatalf("RetrieveByReference failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Expected no matches for empty reference, got %d", len(got))
	}
}

func TestMemoryRepository_SetReferenceLinkedExcluded(t *testing.T) {
	rc := receipt("000300", "CEM840101AAA", 1, 100.00)
	repo := NewMemoryRepository([]*models.ReceiptCandidate{rc})
	repo.SetReference("EXTRA-REF", rc)

	got, _ := repo.RetrieveByReference("extra-ref", "")
	if len(got) != 1 {
		t.Fatalf("Expected indexed receipt, got %d", len(got))
	}

	rc.Linked = true
	got, _ = repo.RetrieveByReference("extra-ref", "")
	if len(got) != 0 {
		t.Errorf("Expected linked receipt excluded from reference lookup, got %d", len(got))
	}
}

func TestMemoryRepository_UnlinkedReceipts(t *testing.T) {
	old := receipt("000400", "CEM840101AAA", 40, 100.00)
	recent := receipt("000401", "CEM840101AAA", 5, 100.00)
	linked := receipt("000402", "CEM840101AAA", 5, 100.00)
	linked.Linked = true

	repo := NewMemoryRepository([]*models.ReceiptCandidate{old, recent, linked})

	all := repo.UnlinkedReceipts(time.Time{})
	if len(all) != 2 {
		t.Errorf("Expected 2 unlinked receipts, got %d", len(all))
	}

	since := refDate.AddDate(0, 0, -10)
	windowed := repo.UnlinkedReceipts(since)
	if len(windowed) != 1 || windowed[0] != recent {
		t.Errorf("Expected one receipt since %s, got %d", since.Format("2006-01-02"), len(windowed))
	}

	if repo.Len() != 3 {
		t.Errorf("Expected Len 3, got %d", repo.Len())
	}
}
