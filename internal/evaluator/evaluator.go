// Package evaluator turns an execution result into a verdict. One provider
// call per claim; the verdict is degraded, never dropped, when the provider
// misbehaves, so every claim still ends up in the report.
package evaluator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"cardaudit/internal/claims"
	"cardaudit/internal/llm"
	"cardaudit/internal/logging"
	"cardaudit/internal/stream"
)

const systemPrompt = `You judge whether repository evidence supports a
model-card claim. You receive the claim and the structured result of a
search program that already ran against the repository. Judge ONLY from
that evidence; never assume code you were not shown.

Respond with a single JSON object:

{
  "verification_status": "verified" | "partially_verified" | "not_verified" | "insufficient_evidence",
  "confidence_score": 0.0-1.0,
  "evidence_found": [{"source": "path or path:line", "cell_number": null, "evidence_type": "...", "evidence_text": "...", "relevance_score": 0.0-1.0}],
  "verification_notes": "...",
  "code_references": ["path:line", ...],
  "contradictions": [{"type": "...", "description": "...", "severity": "low" | "medium" | "high"}]
}

Cite only sources present in the evidence. Use "not_verified" when the
evidence contradicts the claim, "insufficient_evidence" when it neither
supports nor contradicts it.`

// Evaluator produces claim verdicts.
type Evaluator struct {
	client llm.Client
}

// New creates an Evaluator.
func New(client llm.Client) *Evaluator {
	return &Evaluator{client: client}
}

// Evaluate judges claim against result. It never returns an error: provider
// or parse failures degrade to an insufficient_evidence verdict carrying the
// failure in its notes. Failed executions and empty evidence short-circuit
// without a provider call, so the verdict cannot be fabricated from nothing.
func (e *Evaluator) Evaluate(ctx context.Context, claim claims.Claim, result claims.ExecutionResult) claims.ClaimVerification {
	log := logging.Named("evaluator")

	if result.Failed {
		return insufficient(claim, 0,
			fmt.Sprintf("verification program failed: %s", result.Error))
	}
	if !result.Found && len(result.EvidenceDetails) == 0 {
		return insufficient(claim, 0.3,
			"search found no evidence for or against the claim")
	}

	user := fmt.Sprintf("Claim:\n%s\n\nSearch result:\n%s\n",
		claims.MarshalCompact(claim), claims.MarshalCompact(result))

	response, err := e.client.CompleteWithSystem(ctx, systemPrompt, user)
	if err != nil {
		log.Warn("evaluation call failed", zap.String("claim_id", claim.ID), zap.Error(err))
		return insufficient(claim, 0, fmt.Sprintf("evaluation call failed: %v", err))
	}

	verdict, err := parseVerdict(response)
	if err != nil {
		log.Warn("unparseable verdict", zap.String("claim_id", claim.ID), zap.Error(err))
		return insufficient(claim, 0, fmt.Sprintf("evaluator returned unparseable verdict: %v", err))
	}

	verdict.ClaimID = claim.ID
	verdict.ClaimDescription = claim.Description
	if !verdict.VerificationStatus.Valid() {
		verdict.VerificationStatus = claims.StatusInsufficientEvidence
		verdict.VerificationNotes = strings.TrimSpace(verdict.VerificationNotes +
			" (evaluator returned an unknown status)")
	}
	verdict.ConfidenceScore = clamp01(verdict.ConfidenceScore)
	for i := range verdict.EvidenceFound {
		verdict.EvidenceFound[i].RelevanceScore = clamp01(verdict.EvidenceFound[i].RelevanceScore)
	}
	return verdict
}

func parseVerdict(response string) (claims.ClaimVerification, error) {
	var verdict claims.ClaimVerification
	raw := stream.StripFences(response)
	if err := json.Unmarshal([]byte(raw), &verdict); err != nil {
		return verdict, err
	}
	return verdict, nil
}

func insufficient(claim claims.Claim, confidence float64, notes string) claims.ClaimVerification {
	return claims.ClaimVerification{
		ClaimID:            claim.ID,
		ClaimDescription:   claim.Description,
		VerificationStatus: claims.StatusInsufficientEvidence,
		ConfidenceScore:    confidence,
		VerificationNotes:  notes,
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
