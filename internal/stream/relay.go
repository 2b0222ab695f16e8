package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"go.uber.org/zap"

	"cardaudit/internal/claims"
	"cardaudit/internal/logging"
)

// AugmentFunc mutates a complete event's report before the relay re-emits
// it. Progress events are never passed through an AugmentFunc.
type AugmentFunc func(*claims.Report)

// Relay pipes events from upstream to enc until a terminal event, the
// upstream closes, or the consumer disconnects.
//
// Progress frames and frames this hop could not parse are forwarded with
// their original payload bytes. Complete frames may be augmented. Consumer
// disconnects (ctx canceled or a failed write) close the relay cleanly with
// no error frame; an upstream protocol fault (read error, or stream end
// with no terminal event) emits exactly one error frame and stops.
func Relay(ctx context.Context, upstream io.Reader, enc *Encoder, augment AugmentFunc) error {
	log := logging.Named("relay")
	dec := NewDecoder()
	buf := make([]byte, 4096)

	emit := func(ev claims.StreamEvent) (done bool) {
		if ev.Type == claims.EventComplete && ev.Report != nil && augment != nil {
			augment(ev.Report)
			ev.Raw = "" // re-serialize the augmented report
		}
		if err := enc.WriteEvent(ev); err != nil {
			// The consumer went away; nobody is listening for an error
			// frame, so close without one.
			log.Debug("consumer disconnected", zap.Error(err))
			return true
		}
		return ev.Terminal()
	}

	for {
		if ctx.Err() != nil {
			log.Debug("relay canceled by consumer")
			return nil
		}

		n, readErr := upstream.Read(buf)
		if n > 0 {
			for _, ev := range dec.Feed(buf[:n]) {
				if emit(ev) {
					return nil
				}
			}
		}
		if readErr == nil {
			continue
		}
		if errors.Is(readErr, io.EOF) {
			for _, ev := range dec.Flush() {
				if emit(ev) {
					return nil
				}
			}
			// Upstream ended without a terminal frame: protocol fault.
			emit(claims.Errorf("upstream closed before completing the verification stream"))
			return fmt.Errorf("upstream ended without terminal event")
		}
		if errors.Is(readErr, context.Canceled) || ctx.Err() != nil {
			log.Debug("relay canceled by consumer")
			return nil
		}
		log.Warn("upstream read failed", zap.Error(readErr))
		emit(claims.Errorf("upstream error: %v", readErr))
		return fmt.Errorf("upstream read: %w", readErr)
	}
}

// FileDiscrepancies derives a per-file view of unverified claims from the
// report's code references. Relay hops attach it to the complete payload so
// file-oriented consumers need not re-join verdicts themselves.
func FileDiscrepancies(report *claims.Report) map[string][]string {
	byFile := make(map[string][]string)
	for _, v := range report.Verifications {
		if v.VerificationStatus == claims.StatusVerified {
			continue
		}
		note := fmt.Sprintf("%s: %s", v.VerificationStatus, v.ClaimDescription)
		for _, ref := range v.CodeReferences {
			file := ref
			if idx := lastColon(ref); idx > 0 {
				file = ref[:idx]
			}
			byFile[file] = append(byFile[file], note)
		}
	}
	for file := range byFile {
		sort.Strings(byFile[file])
	}
	return byFile
}

// AttachFileDiscrepancies is the default relay augmentation.
func AttachFileDiscrepancies(report *claims.Report) {
	byFile := FileDiscrepancies(report)
	if len(byFile) == 0 {
		return
	}
	if report.Metadata == nil {
		report.Metadata = make(map[string]any)
	}
	report.Metadata["file_discrepancies"] = byFile
}

// lastColon finds the line-number separator in a file:line reference,
// returning -1 for bare paths.
func lastColon(ref string) int {
	for i := len(ref) - 1; i >= 0; i-- {
		if ref[i] == ':' {
			return i
		}
		if ref[i] < '0' || ref[i] > '9' {
			return -1
		}
	}
	return -1
}
