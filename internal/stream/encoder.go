package stream

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Encoder writes events as `data: <payload>` frames terminated by a blank
// line, flushing after each frame so consumers see progress immediately.
// It is safe for concurrent use; events from different sources interleave
// at frame granularity, never mid-frame.
type Encoder struct {
	mu sync.Mutex
	w  io.Writer
}

// NewEncoder wraps w. If w implements http.Flusher semantics via Flush(),
// each frame is flushed through it.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

type flusher interface{ Flush() }

// WriteEvent marshals e and writes one frame. Events carrying a Raw payload
// are forwarded byte-for-byte instead of re-marshaled, so a hop never
// rewrites frames it did not understand.
func (e *Encoder) WriteEvent(ev any) error {
	if raw, ok := rawPayload(ev); ok {
		return e.WriteRaw(raw)
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return e.WriteRaw(string(payload))
}

// WriteRaw writes payload as one frame. Multi-line payloads become multiple
// data: lines of the same frame, per the SSE framing rules.
func (e *Encoder) WriteRaw(payload string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var sb strings.Builder
	for _, line := range strings.Split(payload, "\n") {
		sb.WriteString("data: ")
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	sb.WriteByte('\n')

	if _, err := io.WriteString(e.w, sb.String()); err != nil {
		return err
	}
	if f, ok := e.w.(flusher); ok {
		f.Flush()
	}
	return nil
}

// rawPayload extracts a pre-serialized payload from event types that carry
// one.
func rawPayload(ev any) (string, bool) {
	type rawCarrier interface{ RawPayload() string }
	if rc, ok := ev.(rawCarrier); ok {
		if raw := rc.RawPayload(); raw != "" {
			return raw, true
		}
	}
	return "", false
}
