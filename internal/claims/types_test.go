package claims

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestVerificationStatusValid(t *testing.T) {
	valid := []VerificationStatus{
		StatusVerified, StatusPartiallyVerified, StatusNotVerified, StatusInsufficientEvidence,
	}
	for _, s := range valid {
		if !s.Valid() {
			t.Errorf("%q should be valid", s)
		}
	}
	for _, s := range []VerificationStatus{"", "maybe", "VERIFIED"} {
		if s.Valid() {
			t.Errorf("%q should be invalid", s)
		}
	}
}

func TestStreamEventTerminal(t *testing.T) {
	tests := []struct {
		event    StreamEvent
		terminal bool
	}{
		{Progress("generation", "claim %s started", "claim_1"), false},
		{ProgressData("milestone", "2/5 complete", map[string]any{"done": 2}), false},
		{Complete(&Report{RunID: "r1"}), true},
		{Errorf("origin unreachable"), true},
	}
	for _, tt := range tests {
		if got := tt.event.Terminal(); got != tt.terminal {
			t.Errorf("Terminal(%s) = %v, want %v", tt.event.Type, got, tt.terminal)
		}
	}
}

func TestClaimJSONRoundTrip(t *testing.T) {
	in := Claim{
		ID:            "claim_1",
		Category:      "architecture",
		Description:   "PD model uses XGBoost classifier",
		SearchQueries: []string{"XGBoost", "XGBClassifier"},
	}
	b, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out Claim
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.ID != in.ID || out.Description != in.Description || len(out.SearchQueries) != 2 {
		t.Errorf("round trip mismatch: %+v", out)
	}
}

func TestFailedResult(t *testing.T) {
	res := FailedResult("claim_9", errors.New("interpreter panic"))
	if !res.Failed || res.ClaimID != "claim_9" || res.Error != "interpreter panic" {
		t.Errorf("unexpected failed result: %+v", res)
	}
	if res.Found || res.EvidenceCount != 0 {
		t.Errorf("failed result must carry no evidence: %+v", res)
	}
}

func TestProgressFormatting(t *testing.T) {
	e := Progress("execution", "claim %s: %d hits", "claim_2", 3)
	if e.Message != "claim claim_2: 3 hits" {
		t.Errorf("got %q", e.Message)
	}
	if e.Step != "execution" || e.Type != EventProgress {
		t.Errorf("unexpected event: %+v", e)
	}
}
