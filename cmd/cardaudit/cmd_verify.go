package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"cardaudit/internal/claims"
	"cardaudit/internal/engine"
	"cardaudit/internal/llm"
	"cardaudit/internal/logging"
	"cardaudit/internal/snapshot"
)

var (
	verifyRepo     string
	verifyClaims   string
	verifyJSON     bool
	verifyAuditDir string
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify a claims file against a repository",
	Long: `Runs the full pipeline locally: loads the repository snapshot, reads
the claims file (a JSON array of claims), verifies each claim, and writes
the final report to stdout.`,
	RunE: runVerify,
}

func init() {
	verifyCmd.Flags().StringVar(&verifyRepo, "repo", ".", "repository directory to verify against")
	verifyCmd.Flags().StringVar(&verifyClaims, "claims", "", "path to claims JSON file (required)")
	verifyCmd.Flags().BoolVar(&verifyJSON, "json", false, "emit the full report as JSON instead of a summary")
	verifyCmd.Flags().StringVar(&verifyAuditDir, "audit-dir", "", "write a JSON-lines audit trail of the run to this directory")
	_ = verifyCmd.MarkFlagRequired("claims")
}

func runVerify(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	claimList, err := readClaims(verifyClaims)
	if err != nil {
		return err
	}

	snap, err := snapshot.Load(ctx, verifyRepo)
	if err != nil {
		return fmt.Errorf("load repository: %w", err)
	}

	client, err := llm.NewClient(ctx, cfg.LLM, cfg.LLMTimeoutDuration())
	if err != nil {
		return err
	}

	eng := engine.New(client, snap, cfg)
	if verifyAuditDir != "" {
		trail, err := logging.NewAuditTrail(verifyAuditDir, uuid.NewString())
		if err != nil {
			return err
		}
		defer trail.Close()
		eng.WithAudit(trail)
		fmt.Fprintf(os.Stderr, "audit trail: %s\n", trail.Path())
	}

	var report *claims.Report
	for ev := range eng.Verify(ctx, claimList) {
		switch ev.Type {
		case claims.EventProgress:
			fmt.Fprintf(os.Stderr, "[%s] %s\n", ev.Step, ev.Message)
		case claims.EventComplete:
			report = ev.Report
		case claims.EventError:
			return fmt.Errorf("verification failed: %s", ev.Message)
		}
	}
	if report == nil {
		return fmt.Errorf("verification produced no report")
	}

	if verifyJSON {
		out, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}
	printSummary(report)
	return nil
}

func readClaims(path string) ([]claims.Claim, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read claims file: %w", err)
	}
	var claimList []claims.Claim
	if err := json.Unmarshal(data, &claimList); err != nil {
		return nil, fmt.Errorf("parse claims file: %w", err)
	}
	if len(claimList) == 0 {
		return nil, fmt.Errorf("claims file %s contains no claims", path)
	}
	return claimList, nil
}

func printSummary(report *claims.Report) {
	fmt.Printf("Run %s (overall risk: %s)\n\n", report.RunID, report.Risk.OverallRisk)
	for _, a := range report.Assessments {
		fmt.Printf("  %-24s %-22s risk=%-8s confidence=%.2f\n",
			a.ClaimID, a.MatchStatus, a.RiskLevel, a.Confidence)
	}
	if report.Risk.Summary != "" {
		fmt.Printf("\n%s\n", report.Risk.Summary)
	}
	if report.Narrative != "" {
		fmt.Printf("\n%s\n", report.Narrative)
	}
}
