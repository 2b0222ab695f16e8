package evaluator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardaudit/internal/claims"
)

type fakeClient struct {
	response string
	err      error
	calls    int
	prompt   string
}

func (c *fakeClient) Complete(ctx context.Context, prompt string) (string, error) {
	return c.CompleteWithSystem(ctx, "", prompt)
}

func (c *fakeClient) CompleteWithSystem(ctx context.Context, system, prompt string) (string, error) {
	c.calls++
	c.prompt = prompt
	return c.response, c.err
}

var testClaim = claims.Claim{
	ID:          "claim-7",
	Description: "Training uses XGBoost with 500 estimators",
}

func foundResult() claims.ExecutionResult {
	return claims.ExecutionResult{
		ClaimID:       testClaim.ID,
		Found:         true,
		EvidenceCount: 1,
		EvidenceDetails: []claims.EvidenceDetail{
			{Source: "train.py:42", Kind: "text", Text: "XGBClassifier(n_estimators=500)"},
		},
		Summary: "found estimator configuration",
	}
}

func TestEvaluateParsesVerdict(t *testing.T) {
	client := &fakeClient{response: "```json\n" + `{
		"verification_status": "verified",
		"confidence_score": 0.9,
		"evidence_found": [{"source": "train.py:42", "evidence_type": "code", "evidence_text": "XGBClassifier(n_estimators=500)", "relevance_score": 0.95}],
		"verification_notes": "estimator count matches",
		"code_references": ["train.py:42"]
	}` + "\n```"}

	v := New(client).Evaluate(context.Background(), testClaim, foundResult())

	assert.Equal(t, claims.StatusVerified, v.VerificationStatus)
	assert.Equal(t, testClaim.ID, v.ClaimID)
	assert.Equal(t, testClaim.Description, v.ClaimDescription)
	assert.InDelta(t, 0.9, v.ConfidenceScore, 1e-9)
	require.Len(t, v.EvidenceFound, 1)
	assert.Equal(t, "train.py:42", v.EvidenceFound[0].Source)
}

func TestEvaluatePromptCarriesClaimAndResult(t *testing.T) {
	client := &fakeClient{response: `{"verification_status": "verified", "confidence_score": 1}`}
	New(client).Evaluate(context.Background(), testClaim, foundResult())

	assert.Contains(t, client.prompt, testClaim.Description)
	assert.Contains(t, client.prompt, "XGBClassifier(n_estimators=500)")
}

func TestEvaluateFailedExecutionSkipsProvider(t *testing.T) {
	client := &fakeClient{}
	result := claims.FailedResult(testClaim.ID, errors.New("program panicked"))

	v := New(client).Evaluate(context.Background(), testClaim, result)

	assert.Zero(t, client.calls)
	assert.Equal(t, claims.StatusInsufficientEvidence, v.VerificationStatus)
	assert.Zero(t, v.ConfidenceScore)
	assert.Contains(t, v.VerificationNotes, "program panicked")
}

func TestEvaluateEmptyEvidenceSkipsProvider(t *testing.T) {
	client := &fakeClient{}
	result := claims.ExecutionResult{ClaimID: testClaim.ID, Summary: "nothing found"}

	v := New(client).Evaluate(context.Background(), testClaim, result)

	assert.Zero(t, client.calls)
	assert.Equal(t, claims.StatusInsufficientEvidence, v.VerificationStatus)
}

func TestEvaluateProviderErrorDegrades(t *testing.T) {
	client := &fakeClient{err: errors.New("rate limited")}

	v := New(client).Evaluate(context.Background(), testClaim, foundResult())

	assert.Equal(t, claims.StatusInsufficientEvidence, v.VerificationStatus)
	assert.Contains(t, v.VerificationNotes, "rate limited")
}

func TestEvaluateUnparseableVerdictDegrades(t *testing.T) {
	client := &fakeClient{response: "the claim looks fine to me"}

	v := New(client).Evaluate(context.Background(), testClaim, foundResult())

	assert.Equal(t, claims.StatusInsufficientEvidence, v.VerificationStatus)
	assert.Contains(t, v.VerificationNotes, "unparseable")
}

func TestEvaluateUnknownStatusBecomesInsufficient(t *testing.T) {
	client := &fakeClient{response: `{"verification_status": "probably_fine", "confidence_score": 0.8}`}

	v := New(client).Evaluate(context.Background(), testClaim, foundResult())

	assert.Equal(t, claims.StatusInsufficientEvidence, v.VerificationStatus)
	assert.Contains(t, v.VerificationNotes, "unknown status")
}

func TestEvaluateClampsScores(t *testing.T) {
	client := &fakeClient{response: `{
		"verification_status": "partially_verified",
		"confidence_score": 1.7,
		"evidence_found": [{"source": "a.py", "evidence_type": "code", "evidence_text": "x", "relevance_score": -0.2}]
	}`}

	v := New(client).Evaluate(context.Background(), testClaim, foundResult())

	assert.Equal(t, 1.0, v.ConfidenceScore)
	require.Len(t, v.EvidenceFound, 1)
	assert.Zero(t, v.EvidenceFound[0].RelevanceScore)
}
