package matcher

import (
	"fmt"
	"strings"

	"invoice-reconciler/internal/models"
)

// ScoreCalculator computes composite match scores between an invoice and one
// receipt or a set of receipts. It is a pure computation with no side
// effects; diagnostic notes are returned on the score itself.
type ScoreCalculator struct {
	config     *MatchingConfig
	similarity Similarity
}

// NewScoreCalculator creates a ScoreCalculator. A nil similarity falls back
// to the default token-sort measure.
func NewScoreCalculator(config *MatchingConfig, similarity Similarity) *ScoreCalculator {
	if similarity == nil {
		similarity = NewTokenSortSimilarity()
	}

	return &ScoreCalculator{
		config:     config,
		similarity: similarity,
	}
}

// Score computes the match score between an invoice and a single receipt.
func (sc *ScoreCalculator) Score(inv *models.Invoice, receipt *models.ReceiptCandidate) *models.MatchScore {
	score := &models.MatchScore{
		Receipts: []*models.ReceiptCandidate{receipt},
	}

	score.AmountDiff = inv.Total.Sub(receipt.Total).Abs()
	score.AmountDiffPct = sc.amountDiffPercent(inv, score.AmountDiff)
	score.AmountScore = sc.amountBand(score.AmountDiffPct, false)

	if score.AmountDiffPct > sc.config.AmountTolerancePercent {
		score.Notes = append(score.Notes, fmt.Sprintf(
			"AMOUNT_DIFF: difference of $%s (%.2f%%)", score.AmountDiff.StringFixed(2), score.AmountDiffPct))
	}

	score.DaysGap = models.DaysBetween(inv.IssueDate, receipt.Date)
	score.DateScore = singleDateBand(score.DaysGap)

	if score.DaysGap > sc.config.DayGapAlertThreshold {
		score.Notes = append(score.Notes, fmt.Sprintf(
			"DATE_GAP: %d days between invoice and receipt", score.DaysGap))
	}

	score.LineItemScore = sc.lineItemScore(inv, receipt.Lines)

	weights := sc.config.Weights
	score.Total = score.AmountScore*weights.AmountWeight +
		score.DateScore*weights.DateWeight +
		score.LineItemScore*weights.LineItemWeight

	return score
}

// ScoreCombination computes the match score between an invoice and a set of
// receipts whose totals are meant to sum to the invoice total.
func (sc *ScoreCalculator) ScoreCombination(inv *models.Invoice, receipts []*models.ReceiptCandidate) *models.MatchScore {
	score := &models.MatchScore{
		MultiReceipt: true,
		Receipts:     receipts,
		Stage:        models.StageCombination,
	}

	combined := models.SumReceiptTotals(receipts)
	score.AmountDiff = inv.Total.Sub(combined).Abs()
	score.AmountDiffPct = sc.amountDiffPercent(inv, score.AmountDiff)
	score.AmountScore = sc.amountBand(score.AmountDiffPct, true)

	// The widest member gap governs the date band; an average would hide a
	// single far-off receipt in an otherwise tight combination.
	maxGap, sumGap := 0, 0
	for _, rc := range receipts {
		gap := models.DaysBetween(inv.IssueDate, rc.Date)
		sumGap += gap
		if gap > maxGap {
			maxGap = gap
		}
	}
	if len(receipts) > 0 {
		score.DaysGap = sumGap / len(receipts)
	}
	score.DateScore = combinationDateBand(maxGap)

	// Line items are commonly split across receipts in ways that make
	// aggregate comparison unreliable, so combinations score neutral here.
	score.LineItemScore = 1.0

	penalty := 0.02 * float64(len(receipts)-1)

	weights := sc.config.Weights
	total := score.AmountScore*weights.AmountWeight +
		score.DateScore*weights.DateWeight +
		score.LineItemScore*weights.LineItemWeight - penalty
	if total < 0 {
		total = 0
	}
	score.Total = total

	score.Notes = append(score.Notes, fmt.Sprintf(
		"COMBINATION: %d receipts (%s)", len(receipts), strings.Join(models.ReceiptIDs(receipts), ", ")))

	if score.AmountDiffPct > sc.config.AmountTolerancePercent {
		score.Notes = append(score.Notes, fmt.Sprintf(
			"AMOUNT_DIFF: combined difference of $%s (%.2f%%)", score.AmountDiff.StringFixed(2), score.AmountDiffPct))
	}

	if maxGap > sc.config.DayGapAlertThreshold {
		score.Notes = append(score.Notes, fmt.Sprintf(
			"DATE_GAP: up to %d days between receipts and invoice", maxGap))
	}

	return score
}

// amountDiffPercent returns the difference as a percentage of the invoice
// total. A zero invoice total is treated as a 100% difference.
func (sc *ScoreCalculator) amountDiffPercent(inv *models.Invoice, diff interface{ InexactFloat64() float64 }) float64 {
	if !inv.Total.IsPositive() {
		return 100.0
	}
	return diff.InexactFloat64() / inv.Total.InexactFloat64() * 100.0
}

// amountBand maps a percentage difference onto the amount sub-score.
// Combinations band slightly higher because their differences already
// aggregate several receipt-level rounding errors.
func (sc *ScoreCalculator) amountBand(diffPct float64, combination bool) float64 {
	tolerance := sc.config.AmountTolerancePercent

	switch {
	case diffPct <= tolerance:
		return 1.0
	case diffPct <= tolerance*2:
		if combination {
			return 0.8
		}
		return 0.7
	case diffPct <= 10:
		if combination {
			return 0.6
		}
		return 0.5
	default:
		s := 1 - diffPct/50
		if s < 0 {
			return 0
		}
		return s
	}
}

func singleDateBand(days int) float64 {
	switch {
	case days <= 1:
		return 1.0
	case days <= 3:
		return 0.9
	case days <= 7:
		return 0.7
	case days <= 14:
		return 0.5
	default:
		s := 1 - float64(days)/30
		if s < 0 {
			return 0
		}
		return s
	}
}

func combinationDateBand(maxDays int) float64 {
	switch {
	case maxDays <= 3:
		return 1.0
	case maxDays <= 7:
		return 0.8
	case maxDays <= 14:
		return 0.6
	default:
		s := 1 - float64(maxDays)/30
		if s < 0 {
			return 0
		}
		return s
	}
}

// lineItemScore returns the fraction of invoice line items that find at
// least one receipt line whose description similarity meets the configured
// threshold. A neutral 0.5 is returned when either side has no line items.
func (sc *ScoreCalculator) lineItemScore(inv *models.Invoice, lines []models.ReceiptLine) float64 {
	if len(inv.LineItems) == 0 || len(lines) == 0 {
		return 0.5
	}

	matched := 0
	for _, item := range inv.LineItems {
		best := 0
		for _, line := range lines {
			ratio := sc.similarity.Ratio(item.Description, line.Description)
			if ratio > best {
				best = ratio
			}
		}

		if best >= sc.config.SimilarityThreshold {
			matched++
		}
	}

	return float64(matched) / float64(len(inv.LineItems))
}
