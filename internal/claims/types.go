// Package claims defines the data model shared by the verification pipeline:
// extracted claims, sandbox execution results, evaluator verdicts, risk
// assessments, and the streamed event union.
package claims

import (
	"encoding/json"
	"fmt"
)

// Claim is a single verifiable assertion extracted from a model card.
// Claims are immutable once extracted; the pipeline keys all derived state
// by ID, never by position.
type Claim struct {
	ID                   string   `json:"id"`
	Category             string   `json:"category,omitempty"`
	ClaimType            string   `json:"claim_type,omitempty"`
	Description          string   `json:"description"`
	VerificationStrategy string   `json:"verification_strategy,omitempty"`
	SearchQueries        []string `json:"search_queries,omitempty"`
	ExpectedEvidence     string   `json:"expected_evidence,omitempty"`
}

// VerificationProgram is the opaque program text generated for one claim.
// It references only the search tool surface and is discarded after the run.
type VerificationProgram string

// EvidenceDetail is one structured finding returned by a sandboxed program.
type EvidenceDetail struct {
	Source     string `json:"source"`
	CellNumber *int   `json:"cell_number,omitempty"`
	Kind       string `json:"kind,omitempty"`
	Text       string `json:"text"`
}

// ExecutionResult is the outcome of running one verification program.
// Exactly one per claim per run; Failed results carry the captured error
// text instead of evidence.
type ExecutionResult struct {
	ClaimID         string           `json:"claim_id"`
	Found           bool             `json:"found"`
	EvidenceCount   int              `json:"evidence_count"`
	EvidenceDetails []EvidenceDetail `json:"evidence_details,omitempty"`
	Summary         string           `json:"summary,omitempty"`
	Failed          bool             `json:"failed,omitempty"`
	Error           string           `json:"error,omitempty"`
}

// Evidence is a located excerpt cited by the evaluator.
type Evidence struct {
	Source         string  `json:"source"`
	CellNumber     *int    `json:"cell_number,omitempty"`
	EvidenceType   string  `json:"evidence_type"`
	EvidenceText   string  `json:"evidence_text"`
	RelevanceScore float64 `json:"relevance_score"`
}

// Severity classifies how strongly a contradiction undermines a claim.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Contradiction records evidence that conflicts with the claim text.
type Contradiction struct {
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
}

// VerificationStatus is the evaluator's verdict category for one claim.
type VerificationStatus string

const (
	StatusVerified             VerificationStatus = "verified"
	StatusPartiallyVerified    VerificationStatus = "partially_verified"
	StatusNotVerified          VerificationStatus = "not_verified"
	StatusInsufficientEvidence VerificationStatus = "insufficient_evidence"
)

// Valid reports whether s is one of the defined verdict categories.
func (s VerificationStatus) Valid() bool {
	switch s {
	case StatusVerified, StatusPartiallyVerified, StatusNotVerified, StatusInsufficientEvidence:
		return true
	}
	return false
}

// ClaimVerification is the evaluator's full verdict for one claim.
type ClaimVerification struct {
	ClaimID            string             `json:"claim_id"`
	ClaimDescription   string             `json:"claim_description"`
	VerificationStatus VerificationStatus `json:"verification_status"`
	ConfidenceScore    float64            `json:"confidence_score"`
	EvidenceFound      []Evidence         `json:"evidence_found,omitempty"`
	VerificationNotes  string             `json:"verification_notes,omitempty"`
	CodeReferences     []string           `json:"code_references,omitempty"`
	Contradictions     []Contradiction    `json:"contradictions,omitempty"`
}

// ClaimFailure marks a claim whose pipeline failed outright (generation,
// execution, or evaluation). Failures are first-class report entries so a
// consumer can tell "not verifiable" apart from "tooling broke".
type ClaimFailure struct {
	ClaimID string `json:"claim_id"`
	Phase   string `json:"phase"`
	Error   string `json:"error"`
}

// RiskLevel grades materiality.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// MaterialityScore is the deterministic 0-100 severity measure derived from
// a verdict. It is recomputed on demand and never persisted as authoritative
// state.
type MaterialityScore struct {
	Score  int       `json:"score"`
	Level  RiskLevel `json:"level"`
	Reason string    `json:"reason"`
}

// RiskAssessment is the per-claim entry of the aggregated risk view.
type RiskAssessment struct {
	ClaimID         string    `json:"claim_id"`
	MatchStatus     string    `json:"match_status"`
	RiskLevel       RiskLevel `json:"risk_level"`
	Confidence      float64   `json:"confidence"`
	EvidenceSummary string    `json:"evidence_summary,omitempty"`
	Discrepancies   []string  `json:"discrepancies,omitempty"`
	Impact          string    `json:"impact,omitempty"`
	Recommendation  string    `json:"recommendation,omitempty"`
}

// RunRisk is the run-level rollup.
type RunRisk struct {
	OverallRisk RiskLevel `json:"overall_risk"`
	Summary     string    `json:"summary"`
}

// Report is the terminal payload of a run: every claim accounted for either
// in Verifications or Failures, plus the aggregated risk view.
type Report struct {
	RunID         string              `json:"run_id"`
	Verifications []ClaimVerification `json:"verifications"`
	Failures      []ClaimFailure      `json:"failures,omitempty"`
	Assessments   []RiskAssessment    `json:"assessments,omitempty"`
	Risk          RunRisk             `json:"risk"`
	Narrative     string              `json:"narrative,omitempty"`
	Metadata      map[string]any      `json:"metadata,omitempty"`
}

// EventType discriminates the streamed event union.
type EventType string

const (
	EventProgress EventType = "progress"
	EventComplete EventType = "complete"
	EventError    EventType = "error"
)

// StreamEvent is one frame of the verification stream. Exactly one complete
// or error event terminates a run; all progress events precede it.
type StreamEvent struct {
	Type    EventType      `json:"type"`
	Message string         `json:"message,omitempty"`
	Step    string         `json:"step,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
	Report  *Report        `json:"report,omitempty"`

	// Raw holds the unparsed frame payload when a transport hop failed to
	// decode it and forwarded the bytes unmodified. Empty otherwise.
	Raw string `json:"-"`
}

// Terminal reports whether e ends the stream.
func (e StreamEvent) Terminal() bool {
	return e.Type == EventComplete || e.Type == EventError
}

// RawPayload returns the unparsed payload for forwarded frames, or "" when
// the event was built locally and should be marshaled normally.
func (e StreamEvent) RawPayload() string {
	return e.Raw
}

// Progress builds a progress event.
func Progress(step, format string, args ...any) StreamEvent {
	return StreamEvent{Type: EventProgress, Step: step, Message: fmt.Sprintf(format, args...)}
}

// ProgressData builds a progress event carrying structured data.
func ProgressData(step, message string, data map[string]any) StreamEvent {
	return StreamEvent{Type: EventProgress, Step: step, Message: message, Data: data}
}

// Complete builds the terminal success event.
func Complete(report *Report) StreamEvent {
	return StreamEvent{Type: EventComplete, Report: report}
}

// Errorf builds the terminal error event.
func Errorf(format string, args ...any) StreamEvent {
	return StreamEvent{Type: EventError, Message: fmt.Sprintf(format, args...)}
}

// FailedResult builds the ExecutionResult for a claim whose program could
// not be generated or run.
func FailedResult(claimID string, err error) ExecutionResult {
	return ExecutionResult{ClaimID: claimID, Failed: true, Error: err.Error()}
}

// MarshalCompact renders v as single-line JSON for prompts and logs.
func MarshalCompact(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
