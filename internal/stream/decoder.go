package stream

import (
	"bytes"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"cardaudit/internal/claims"
	"cardaudit/internal/logging"
)

// Decoder reassembles events from raw byte chunks. It keeps a residual
// buffer of bytes not yet forming a complete frame, so feeding the same
// stream one byte at a time or as a single buffer yields the same events.
type Decoder struct {
	buf bytes.Buffer
}

// NewDecoder creates an empty decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed appends chunk to the residual buffer and returns every event whose
// frame completed. A frame is one or more `data:` lines followed by a blank
// line; payload lines are joined, fence-stripped, and parsed. A payload
// that fails to parse is returned as a raw event rather than dropped, so
// one hop's parse bug degrades the stream instead of truncating it.
func (d *Decoder) Feed(chunk []byte) []claims.StreamEvent {
	d.buf.Write(chunk)

	var events []claims.StreamEvent
	for {
		data := d.buf.Bytes()
		idx, sepLen := frameBoundary(data)
		if idx < 0 {
			break
		}
		frame := string(data[:idx])
		d.buf.Next(idx + sepLen)

		if ev, ok := parseFrame(frame); ok {
			events = append(events, ev)
		}
	}
	return events
}

// Flush drains a trailing partial frame after the upstream closed. A
// partial frame with data lines is surfaced raw; pure whitespace is
// discarded.
func (d *Decoder) Flush() []claims.StreamEvent {
	rest := d.buf.String()
	d.buf.Reset()
	if strings.TrimSpace(rest) == "" {
		return nil
	}
	if ev, ok := parseFrame(rest); ok {
		return []claims.StreamEvent{ev}
	}
	return nil
}

// Pending reports whether undecoded bytes remain buffered.
func (d *Decoder) Pending() bool {
	return strings.TrimSpace(d.buf.String()) != ""
}

// frameBoundary finds the first blank-line separator, tolerating CRLF.
// Returns the frame end index and separator length, or -1.
func frameBoundary(data []byte) (int, int) {
	lf := bytes.Index(data, []byte("\n\n"))
	crlf := bytes.Index(data, []byte("\r\n\r\n"))
	switch {
	case lf < 0 && crlf < 0:
		return -1, 0
	case crlf >= 0 && (lf < 0 || crlf < lf):
		return crlf, 4
	default:
		return lf, 2
	}
}

// parseFrame extracts the data payload of one frame and parses it. Frames
// without data lines (comments, heartbeats) yield no event.
func parseFrame(frame string) (claims.StreamEvent, bool) {
	var payloadLines []string
	for _, line := range strings.Split(frame, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if rest, ok := strings.CutPrefix(line, "data:"); ok {
			payloadLines = append(payloadLines, strings.TrimPrefix(rest, " "))
		}
	}
	if len(payloadLines) == 0 {
		return claims.StreamEvent{}, false
	}

	payload := strings.Join(payloadLines, "\n")
	cleaned := StripFences(payload)

	var ev claims.StreamEvent
	if err := json.Unmarshal([]byte(cleaned), &ev); err != nil || ev.Type == "" {
		logging.Named("stream").Debug("forwarding unparseable frame",
			zap.String("payload", truncate(payload, 200)))
		return claims.StreamEvent{Raw: payload}, true
	}
	// Keep the original payload so pass-through hops can forward the exact
	// bytes instead of re-serializing.
	ev.Raw = payload
	return ev, true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
