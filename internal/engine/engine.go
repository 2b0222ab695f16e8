// Package engine drives the verification pipeline: it fans claims out to a
// bounded worker pool, runs generate/execute/evaluate per claim, aggregates
// risk, and streams progress as events. One run emits any number of progress
// events followed by exactly one terminal event, then closes the channel.
package engine

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"cardaudit/internal/claims"
	"cardaudit/internal/config"
	"cardaudit/internal/evaluator"
	"cardaudit/internal/generator"
	"cardaudit/internal/llm"
	"cardaudit/internal/logging"
	"cardaudit/internal/risk"
	"cardaudit/internal/sandbox"
	"cardaudit/internal/snapshot"
	"cardaudit/internal/tools"
)

// Engine verifies batches of claims against one repository snapshot.
type Engine struct {
	client  llm.Client
	snap    *snapshot.Snapshot
	gen     *generator.Generator
	eval    *evaluator.Evaluator
	runner  *sandbox.Runner
	workers int
	audit   *logging.AuditTrail
}

// New builds an Engine for snap using cfg's worker count, per-claim timeout,
// and generation attempt limit.
func New(client llm.Client, snap *snapshot.Snapshot, cfg config.Config) *Engine {
	workers := cfg.Engine.Workers
	if workers <= 0 {
		workers = config.Default().Engine.Workers
	}
	return &Engine{
		client:  client,
		snap:    snap,
		gen:     generator.New(client, cfg.Engine.MaxAttempts),
		eval:    evaluator.New(client),
		runner:  sandbox.New(cfg.ClaimTimeoutDuration()),
		workers: workers,
	}
}

// WithAudit attaches an audit trail; every run then appends its lifecycle
// events there. A nil trail disables recording.
func (e *Engine) WithAudit(trail *logging.AuditTrail) *Engine {
	e.audit = trail
	return e
}

// unitResult is the outcome of one claim's pipeline: exactly one of the two
// fields is set.
type unitResult struct {
	verification *claims.ClaimVerification
	failure      *claims.ClaimFailure
}

// Verify runs the pipeline for claimList and returns the event stream. The
// channel is closed after the terminal event. Cancelling ctx stops the run;
// a cancelled run still terminates with a single error event if the consumer
// keeps reading.
func (e *Engine) Verify(ctx context.Context, claimList []claims.Claim) <-chan claims.StreamEvent {
	events := make(chan claims.StreamEvent)
	go e.run(ctx, claimList, events)
	return events
}

func (e *Engine) run(ctx context.Context, claimList []claims.Claim, events chan<- claims.StreamEvent) {
	defer close(events)
	log := logging.Named("engine")
	start := time.Now()
	runID := uuid.NewString()

	emit := func(ev claims.StreamEvent) bool {
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	total := len(claimList)
	e.audit.Record("run_start", "", map[string]any{"run_id": runID, "total": total})
	emit(claims.ProgressData("start", fmt.Sprintf("verifying %d claims", total),
		map[string]any{"run_id": runID, "total": total, "workers": e.workers}))

	tasks := make(chan claims.Claim)
	results := make(chan unitResult)

	var wg sync.WaitGroup
	for i := 0; i < e.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for claim := range tasks {
				res := e.verifyOne(ctx, claim, emit)
				select {
				case results <- res:
				case <-ctx.Done():
					return
				}
			}
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()
	go func() {
		defer close(tasks)
		for _, claim := range claimList {
			select {
			case tasks <- claim:
			case <-ctx.Done():
				return
			}
		}
	}()

	var verifications []claims.ClaimVerification
	var failures []claims.ClaimFailure
	done := 0
	for res := range results {
		done++
		var claimID string
		switch {
		case res.verification != nil:
			verifications = append(verifications, *res.verification)
			claimID = res.verification.ClaimID
			e.audit.Record("claim_verified", claimID, map[string]any{
				"status":     string(res.verification.VerificationStatus),
				"confidence": res.verification.ConfidenceScore,
			})
		case res.failure != nil:
			failures = append(failures, *res.failure)
			claimID = res.failure.ClaimID
			e.audit.Record("claim_failed", claimID, map[string]any{
				"phase": res.failure.Phase,
				"error": res.failure.Error,
			})
		}
		emit(claims.ProgressData("claims", fmt.Sprintf("completed %d/%d claims", done, total),
			map[string]any{"claim_id": claimID, "completed": done, "total": total}))
	}

	if err := ctx.Err(); err != nil {
		log.Warn("run cancelled", zap.String("run_id", runID),
			zap.Int("completed", done), zap.Int("total", total))
		emit(claims.Errorf("verification cancelled after %d/%d claims: %v", done, total, err))
		return
	}

	emit(claims.Progress("aggregate", "scoring materiality and aggregating risk"))
	assessments, runRisk := risk.Aggregate(verifications, failures)
	report := &claims.Report{
		RunID:         runID,
		Verifications: verifications,
		Failures:      failures,
		Assessments:   assessments,
		Risk:          runRisk,
		Metadata: map[string]any{
			"total_claims":    total,
			"verified_claims": len(verifications),
			"failed_claims":   len(failures),
			"duration_ms":     time.Since(start).Milliseconds(),
		},
	}
	if narrative, err := risk.Narrative(ctx, e.client, report); err != nil {
		log.Warn("risk narrative failed", zap.String("run_id", runID), zap.Error(err))
	} else {
		report.Narrative = narrative
	}

	e.audit.Record("run_complete", "", map[string]any{
		"run_id":       runID,
		"overall_risk": string(report.Risk.OverallRisk),
		"failures":     len(failures),
	})
	log.Info("run complete", zap.String("run_id", runID),
		zap.Int("verifications", len(verifications)), zap.Int("failures", len(failures)),
		zap.String("overall_risk", string(report.Risk.OverallRisk)),
		zap.Duration("duration", time.Since(start)))
	emit(claims.Complete(report))
}

// verifyOne runs the generate -> execute -> evaluate pipeline for a single
// claim. A panic anywhere inside becomes a failure for this claim only.
func (e *Engine) verifyOne(ctx context.Context, claim claims.Claim, emit func(claims.StreamEvent) bool) (res unitResult) {
	log := logging.Named("engine")
	defer func() {
		if r := recover(); r != nil {
			log.Error("claim pipeline panicked", zap.String("claim_id", claim.ID),
				zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			res = unitResult{failure: &claims.ClaimFailure{
				ClaimID: claim.ID,
				Phase:   "internal",
				Error:   fmt.Sprintf("panic: %v", r),
			}}
		}
	}()

	emit(claims.Progress("generate", "generating verification program for %s", claim.ID))
	program, err := e.gen.Generate(ctx, claim)
	if err != nil {
		return unitResult{failure: &claims.ClaimFailure{
			ClaimID: claim.ID, Phase: "generation", Error: err.Error(),
		}}
	}

	emit(claims.Progress("execute", "executing verification program for %s", claim.ID))
	binding := tools.NewBinding(e.snap)
	result := e.runner.Run(ctx, claim.ID, program, binding)
	if result.Failed {
		return unitResult{failure: &claims.ClaimFailure{
			ClaimID: claim.ID, Phase: "execution", Error: result.Error,
		}}
	}

	emit(claims.Progress("evaluate", "evaluating evidence for %s", claim.ID))
	verdict := e.eval.Evaluate(ctx, claim, result)
	return unitResult{verification: &verdict}
}
