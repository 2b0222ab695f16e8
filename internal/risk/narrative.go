package risk

import (
	"context"
	"fmt"

	"cardaudit/internal/claims"
	"cardaudit/internal/llm"
	"cardaudit/internal/stream"
)

const narrativeSystemPrompt = `You are a model risk reviewer. Given claim
verification results for a model card, write a concise risk table in
markdown: one row per claim with its status, risk level, and the single
most important finding. End with a two-sentence overall assessment. Do not
invent findings that are not in the input.`

// Narrative asks the provider for a human-readable risk table over the
// aggregated report. It is presentation only: a failure here leaves the
// deterministic scores untouched and is reported to the caller, not fatal
// to the run.
func Narrative(ctx context.Context, client llm.Client, report *claims.Report) (string, error) {
	if client == nil {
		return "", fmt.Errorf("no LLM client configured")
	}
	input := claims.MarshalCompact(map[string]any{
		"assessments":  report.Assessments,
		"overall_risk": report.Risk.OverallRisk,
		"summary":      report.Risk.Summary,
	})
	out, err := client.CompleteWithSystem(ctx, narrativeSystemPrompt, input)
	if err != nil {
		return "", fmt.Errorf("narrative generation: %w", err)
	}
	return stream.StripFences(out), nil
}
