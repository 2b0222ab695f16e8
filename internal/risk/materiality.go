// Package risk folds per-claim verdicts into materiality scores and a
// run-level risk view. Scoring is deterministic and makes no provider
// calls; the optional narrative is the only LLM touchpoint and its failure
// never affects the scores.
package risk

import (
	"fmt"
	"strings"

	"cardaudit/internal/claims"
)

// Base scores by verdict status. An absent verdict (claim whose pipeline
// failed outright) scores the fixed ceiling: nothing is known about it, so
// it is maximally material.
const (
	baseNotVerified          = 70
	baseInsufficientEvidence = 60
	basePartiallyVerified    = 40
	baseVerified             = 10
	baseAbsent               = 100
)

// Materiality computes the 0-100 severity of one verdict. Pass nil for a
// claim with no verdict at all. The function is pure and total: any valid
// ClaimVerification yields a defined score, and a fully verified claim with
// confidence 1 and no contradictions yields 10/low.
func Materiality(v *claims.ClaimVerification) claims.MaterialityScore {
	if v == nil {
		return claims.MaterialityScore{
			Score:  baseAbsent,
			Level:  levelFor(baseAbsent),
			Reason: "No verification outcome recorded",
		}
	}

	var reasons []string
	score := 0.0

	switch v.VerificationStatus {
	case claims.StatusNotVerified:
		score = baseNotVerified
		reasons = append(reasons, "claim not verified")
	case claims.StatusInsufficientEvidence:
		score = baseInsufficientEvidence
		reasons = append(reasons, "insufficient evidence")
	case claims.StatusPartiallyVerified:
		score = basePartiallyVerified
		reasons = append(reasons, "only partially verified")
	case claims.StatusVerified:
		score = baseVerified
	default:
		// Unknown status is treated like a missing verdict.
		score = baseAbsent
		reasons = append(reasons, fmt.Sprintf("unrecognized status %q", v.VerificationStatus))
	}

	confidence := clamp01(v.ConfidenceScore)
	if penalty := (1 - confidence) * 30; penalty > 0 {
		score += penalty
		reasons = append(reasons, fmt.Sprintf("confidence %.2f below full", confidence))
	}

	for _, c := range v.Contradictions {
		switch c.Severity {
		case claims.SeverityHigh:
			score += 20
			reasons = append(reasons, "high-severity contradiction: "+c.Description)
		case claims.SeverityMedium:
			score += 10
			reasons = append(reasons, "medium-severity contradiction: "+c.Description)
		default:
			score += 5
			reasons = append(reasons, "contradiction: "+c.Description)
		}
	}

	total := int(score + 0.5)
	if total > 100 {
		total = 100
	}
	if total < 0 {
		total = 0
	}

	reason := "Fully verified"
	if len(reasons) > 0 {
		reason = strings.Join(reasons, "; ")
	}
	return claims.MaterialityScore{Score: total, Level: levelFor(total), Reason: reason}
}

func levelFor(score int) claims.RiskLevel {
	switch {
	case score >= 75:
		return claims.RiskCritical
	case score >= 50:
		return claims.RiskHigh
	case score >= 25:
		return claims.RiskMedium
	default:
		return claims.RiskLow
	}
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
