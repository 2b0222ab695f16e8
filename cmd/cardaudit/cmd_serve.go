package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"cardaudit/internal/llm"
	"cardaudit/internal/server"
)

var (
	serveAddr   string
	serveOrigin string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the verification HTTP server",
	Long: `Serves POST /api/verify (runs verifications and streams SSE events),
POST /api/relay (forwards to an upstream origin and augments its stream),
and GET /healthz.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides config)")
	serveCmd.Flags().StringVar(&serveOrigin, "origin", "", "upstream origin URL for relay requests (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}
	if serveOrigin != "" {
		cfg.Server.OriginURL = serveOrigin
	}

	client, err := llm.NewClient(ctx, cfg.LLM, cfg.LLMTimeoutDuration())
	if err != nil {
		return err
	}

	err = server.New(cfg, client).Run(ctx)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
