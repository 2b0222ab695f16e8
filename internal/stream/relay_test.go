package stream

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"cardaudit/internal/claims"
)

type failingReader struct {
	data []byte
	err  error
}

func (r *failingReader) Read(p []byte) (int, error) {
	if len(r.data) > 0 {
		n := copy(p, r.data)
		r.data = r.data[n:]
		return n, nil
	}
	return 0, r.err
}

// failAfterWriter accepts n writes, then reports a closed connection.
type failAfterWriter struct {
	n  int
	sb strings.Builder
}

func (w *failAfterWriter) Write(p []byte) (int, error) {
	if w.n <= 0 {
		return 0, errors.New("broken pipe")
	}
	w.n--
	return w.sb.Write(p)
}

func completeFrame(t *testing.T) string {
	t.Helper()
	var sb strings.Builder
	report := &claims.Report{
		RunID: "r1",
		Verifications: []claims.ClaimVerification{{
			ClaimID:            "claim_1",
			ClaimDescription:   "uses XGBoost",
			VerificationStatus: claims.StatusNotVerified,
			CodeReferences:     []string{"src/train.py:3"},
		}},
		Risk: claims.RunRisk{OverallRisk: claims.RiskHigh, Summary: "1 unverified"},
	}
	if err := NewEncoder(&sb).WriteEvent(claims.Complete(report)); err != nil {
		t.Fatal(err)
	}
	return sb.String()
}

func progressFrame() string {
	return "data: {\"type\":\"progress\",\"message\":\"working\",\"step\":\"execution\"}\n\n"
}

func TestRelayPassesProgressUnaltered(t *testing.T) {
	upstream := strings.NewReader(progressFrame() + completeFrame(t))
	var sb strings.Builder

	err := Relay(context.Background(), upstream, NewEncoder(&sb), nil)
	if err != nil {
		t.Fatalf("Relay: %v", err)
	}
	if !strings.HasPrefix(sb.String(), progressFrame()) {
		t.Errorf("progress frame rewritten:\n%s", sb.String())
	}
}

func TestRelayAugmentsComplete(t *testing.T) {
	upstream := strings.NewReader(completeFrame(t))
	var sb strings.Builder

	err := Relay(context.Background(), upstream, NewEncoder(&sb), AttachFileDiscrepancies)
	if err != nil {
		t.Fatalf("Relay: %v", err)
	}

	events := NewDecoder().Feed([]byte(sb.String()))
	if len(events) != 1 || events[0].Type != claims.EventComplete {
		t.Fatalf("events = %+v", events)
	}
	meta := events[0].Report.Metadata
	if meta == nil {
		t.Fatal("augmentation missing from relayed report")
	}
	if _, ok := meta["file_discrepancies"]; !ok {
		t.Fatalf("file_discrepancies missing: %+v", meta)
	}
}

func TestRelayStopsAtTerminal(t *testing.T) {
	// Frames after the terminal event must not be forwarded.
	upstream := strings.NewReader(completeFrame(t) + progressFrame())
	var sb strings.Builder

	if err := Relay(context.Background(), upstream, NewEncoder(&sb), nil); err != nil {
		t.Fatalf("Relay: %v", err)
	}
	events := NewDecoder().Feed([]byte(sb.String()))
	if len(events) != 1 {
		t.Errorf("frames after terminal forwarded: %+v", events)
	}
}

// Consumer disconnect closes cleanly: no error frame is written anywhere.
func TestRelayConsumerDisconnect(t *testing.T) {
	upstream := strings.NewReader(progressFrame() + progressFrame() + completeFrame(t))
	w := &failAfterWriter{n: 1}

	if err := Relay(context.Background(), upstream, NewEncoder(w), nil); err != nil {
		t.Fatalf("consumer disconnect must close cleanly, got %v", err)
	}
	if strings.Contains(w.sb.String(), `"error"`) {
		t.Errorf("error frame emitted on consumer disconnect:\n%s", w.sb.String())
	}
}

// Upstream protocol fault after streaming began: exactly one error frame,
// nothing after it.
func TestRelayUpstreamFault(t *testing.T) {
	upstream := &failingReader{
		data: []byte(progressFrame()),
		err:  errors.New("connection reset"),
	}
	var sb strings.Builder

	err := Relay(context.Background(), upstream, NewEncoder(&sb), nil)
	if err == nil {
		t.Fatal("upstream fault must surface an error to the caller")
	}

	events := NewDecoder().Feed([]byte(sb.String()))
	errorFrames := 0
	for i, ev := range events {
		if ev.Type == claims.EventError {
			errorFrames++
			if i != len(events)-1 {
				t.Error("frames emitted after the error frame")
			}
		}
	}
	if errorFrames != 1 {
		t.Errorf("error frames = %d, want exactly 1", errorFrames)
	}
}

func TestRelayEOFWithoutTerminal(t *testing.T) {
	upstream := &failingReader{data: []byte(progressFrame()), err: io.EOF}
	var sb strings.Builder

	err := Relay(context.Background(), upstream, NewEncoder(&sb), nil)
	if err == nil {
		t.Fatal("EOF without terminal frame is a protocol fault")
	}
	if !strings.Contains(sb.String(), "upstream closed") {
		t.Errorf("missing error frame:\n%s", sb.String())
	}
}

func TestRelayContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	upstream := strings.NewReader(progressFrame())
	var sb strings.Builder

	if err := Relay(ctx, upstream, NewEncoder(&sb), nil); err != nil {
		t.Fatalf("canceled relay must close cleanly, got %v", err)
	}
	if strings.Contains(sb.String(), `"error"`) {
		t.Error("error frame emitted on cancellation")
	}
}

func TestFileDiscrepancies(t *testing.T) {
	report := &claims.Report{
		Verifications: []claims.ClaimVerification{
			{
				ClaimID:            "c1",
				ClaimDescription:   "uses XGBoost",
				VerificationStatus: claims.StatusVerified,
				CodeReferences:     []string{"src/train.py:1"},
			},
			{
				ClaimID:            "c2",
				ClaimDescription:   "AUC is 0.85",
				VerificationStatus: claims.StatusPartiallyVerified,
				CodeReferences:     []string{"notebooks/eval.ipynb", "src/train.py:9"},
			},
		},
	}
	byFile := FileDiscrepancies(report)
	if len(byFile) != 2 {
		t.Fatalf("files = %d, want 2: %+v", len(byFile), byFile)
	}
	if len(byFile["src/train.py"]) != 1 {
		t.Errorf("verified claims must not appear: %+v", byFile["src/train.py"])
	}
	if len(byFile["notebooks/eval.ipynb"]) != 1 {
		t.Errorf("missing notebook discrepancy: %+v", byFile)
	}
}
