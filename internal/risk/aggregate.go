package risk

import (
	"fmt"
	"strings"

	"cardaudit/internal/claims"
)

// Aggregate folds every verdict and failure into per-claim assessments and
// the run-level risk. Failed claims are assessed as absent verdicts; no
// claim is dropped.
func Aggregate(verifications []claims.ClaimVerification, failures []claims.ClaimFailure) ([]claims.RiskAssessment, claims.RunRisk) {
	assessments := make([]claims.RiskAssessment, 0, len(verifications)+len(failures))
	counts := map[claims.RiskLevel]int{}

	for i := range verifications {
		v := &verifications[i]
		m := Materiality(v)
		counts[m.Level]++

		a := claims.RiskAssessment{
			ClaimID:         v.ClaimID,
			MatchStatus:     string(v.VerificationStatus),
			RiskLevel:       m.Level,
			Confidence:      v.ConfidenceScore,
			EvidenceSummary: evidenceSummary(v),
			Impact:          m.Reason,
			Recommendation:  recommendation(m.Level),
		}
		for _, c := range v.Contradictions {
			a.Discrepancies = append(a.Discrepancies, c.Description)
		}
		assessments = append(assessments, a)
	}

	for _, f := range failures {
		m := Materiality(nil)
		counts[m.Level]++
		assessments = append(assessments, claims.RiskAssessment{
			ClaimID:        f.ClaimID,
			MatchStatus:    "verification_failed",
			RiskLevel:      m.Level,
			Impact:         fmt.Sprintf("pipeline failed during %s: %s", f.Phase, f.Error),
			Recommendation: "re-run verification for this claim; the tooling failed before a verdict",
		})
	}

	return assessments, runRisk(counts, len(assessments))
}

func runRisk(counts map[claims.RiskLevel]int, total int) claims.RunRisk {
	overall := claims.RiskLow
	for _, level := range []claims.RiskLevel{claims.RiskCritical, claims.RiskHigh, claims.RiskMedium} {
		if counts[level] > 0 {
			overall = level
			break
		}
	}

	var parts []string
	for _, level := range []claims.RiskLevel{claims.RiskCritical, claims.RiskHigh, claims.RiskMedium, claims.RiskLow} {
		if n := counts[level]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, level))
		}
	}
	summary := fmt.Sprintf("%d claims assessed", total)
	if len(parts) > 0 {
		summary += ": " + strings.Join(parts, ", ")
	}
	return claims.RunRisk{OverallRisk: overall, Summary: summary}
}

func evidenceSummary(v *claims.ClaimVerification) string {
	if len(v.EvidenceFound) == 0 {
		return "no evidence located"
	}
	sources := make([]string, 0, len(v.EvidenceFound))
	seen := map[string]bool{}
	for _, e := range v.EvidenceFound {
		if !seen[e.Source] {
			seen[e.Source] = true
			sources = append(sources, e.Source)
		}
	}
	return fmt.Sprintf("%d evidence items across %s", len(v.EvidenceFound), strings.Join(sources, ", "))
}

func recommendation(level claims.RiskLevel) string {
	switch level {
	case claims.RiskCritical:
		return "correct the model card or provide the missing artifacts before release"
	case claims.RiskHigh:
		return "reconcile the claim with the repository before relying on it"
	case claims.RiskMedium:
		return "review the cited evidence and tighten the claim wording"
	default:
		return "no action needed"
	}
}
