package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"cardaudit/internal/claims"
	"cardaudit/internal/stream"
)

var (
	relayOrigin string
	relayRepo   string
	relayClaims string
)

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Send a verification to a remote origin and stream the results",
	Long: `Posts a verification request to a running cardaudit server and prints
the event stream as it arrives. The final report is written to stdout as
JSON; progress goes to stderr.`,
	RunE: runRelay,
}

func init() {
	relayCmd.Flags().StringVar(&relayOrigin, "origin", "", "origin server URL, e.g. http://localhost:8085 (required)")
	relayCmd.Flags().StringVar(&relayRepo, "repo", ".", "repository path as seen by the origin server")
	relayCmd.Flags().StringVar(&relayClaims, "claims", "", "path to claims JSON file (required)")
	_ = relayCmd.MarkFlagRequired("origin")
	_ = relayCmd.MarkFlagRequired("claims")
}

func runRelay(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	claimList, err := readClaims(relayClaims)
	if err != nil {
		return err
	}
	body, err := json.Marshal(map[string]any{
		"repo_path": relayRepo,
		"claims":    claimList,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		relayOrigin+"/api/verify", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("invalid origin URL: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("origin unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("origin rejected request: %s: %s", resp.Status, bytes.TrimSpace(msg))
	}

	return consumeStream(resp.Body)
}

// consumeStream decodes the SSE stream chunk by chunk and renders each
// event. Returns an error when the stream ends without a terminal event.
func consumeStream(r io.Reader) error {
	dec := stream.NewDecoder()
	buf := make([]byte, 4096)
	terminal := false

	handle := func(ev claims.StreamEvent) error {
		switch ev.Type {
		case claims.EventProgress:
			fmt.Fprintf(os.Stderr, "[%s] %s\n", ev.Step, ev.Message)
		case claims.EventComplete:
			terminal = true
			out, err := json.MarshalIndent(ev.Report, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
		case claims.EventError:
			terminal = true
			return fmt.Errorf("verification failed: %s", ev.Message)
		default:
			// Unparseable frame forwarded verbatim by a relay hop.
			fmt.Fprintln(os.Stderr, ev.Raw)
		}
		return nil
	}

	for {
		n, err := r.Read(buf)
		for _, ev := range dec.Feed(buf[:n]) {
			if herr := handle(ev); herr != nil {
				return herr
			}
			if terminal {
				return nil
			}
		}
		if err == io.EOF {
			for _, ev := range dec.Flush() {
				if herr := handle(ev); herr != nil {
					return herr
				}
				if terminal {
					return nil
				}
			}
			return fmt.Errorf("stream closed before completing")
		}
		if err != nil {
			return fmt.Errorf("read stream: %w", err)
		}
	}
}
