// Package generator turns one claim into one verification program via a
// single provider call. Generation failure is terminal for the claim: the
// engine records it and moves on, it is never silently substituted.
package generator

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"cardaudit/internal/claims"
	"cardaudit/internal/llm"
	"cardaudit/internal/logging"
	"cardaudit/internal/stream"
	"cardaudit/internal/tools"
)

const systemPrompt = `You write small Go verification programs that check a
model-card claim against a repository snapshot. The program runs in a
sandbox where ONLY the functions below and the packages strings, strconv,
and sort exist. No other imports resolve; do not use os, net, io, fmt, or
time.

%s
The program must define exactly:

	func Verify() map[string]any

returning keys "found" (bool), "evidence" (slice of Match values or of
map[string]any with source/text/kind/cell_number), and "summary" (string).
Search broadly first, then narrow. Return the evidence you actually found;
never invent matches. Respond with only the Go code.`

// Generator produces verification programs.
type Generator struct {
	client      llm.Client
	maxAttempts int
}

// New creates a Generator. maxAttempts bounds provider calls per claim;
// there is no backoff between attempts.
func New(client llm.Client, maxAttempts int) *Generator {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return &Generator{client: client, maxAttempts: maxAttempts}
}

// Generate asks the provider for claim's verification program. The response
// is fence-stripped and checked for the Verify entry point; a response
// without it counts as a failed attempt.
func (g *Generator) Generate(ctx context.Context, claim claims.Claim) (claims.VerificationProgram, error) {
	log := logging.Named("generator")
	system := fmt.Sprintf(systemPrompt, tools.PromptSurface())
	user := buildUserPrompt(claim)

	var lastErr error
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		response, err := g.client.CompleteWithSystem(ctx, system, user)
		if err != nil {
			lastErr = fmt.Errorf("attempt %d: %w", attempt, err)
			log.Warn("program generation attempt failed",
				zap.String("claim_id", claim.ID), zap.Int("attempt", attempt), zap.Error(err))
			continue
		}

		program := stream.StripFences(response)
		if !strings.Contains(program, "func Verify") {
			lastErr = fmt.Errorf("attempt %d: response contains no Verify function", attempt)
			log.Warn("generated program missing entry point",
				zap.String("claim_id", claim.ID), zap.Int("attempt", attempt))
			continue
		}
		return claims.VerificationProgram(program), nil
	}
	return "", fmt.Errorf("program generation failed for %s: %w", claim.ID, lastErr)
}

func buildUserPrompt(claim claims.Claim) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Claim: %s\n", claim.Description)
	if claim.ClaimType != "" {
		fmt.Fprintf(&sb, "Type: %s\n", claim.ClaimType)
	}
	if claim.VerificationStrategy != "" {
		fmt.Fprintf(&sb, "Suggested strategy: %s\n", claim.VerificationStrategy)
	}
	if len(claim.SearchQueries) > 0 {
		fmt.Fprintf(&sb, "Suggested search queries: %s\n", strings.Join(claim.SearchQueries, ", "))
	}
	if claim.ExpectedEvidence != "" {
		fmt.Fprintf(&sb, "Expected evidence: %s\n", claim.ExpectedEvidence)
	}
	return sb.String()
}
