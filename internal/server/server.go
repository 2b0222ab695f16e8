// Package server exposes the pipeline over HTTP. Two streaming endpoints:
// /api/verify runs a verification as the origin and streams its events as
// SSE; /api/relay forwards a request to an upstream origin and re-streams
// its SSE while augmenting the terminal report. Request validation happens
// before the first byte of the stream; once streaming starts, failures
// travel inside the stream, not as status codes.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"cardaudit/internal/claims"
	"cardaudit/internal/config"
	"cardaudit/internal/engine"
	"cardaudit/internal/llm"
	"cardaudit/internal/logging"
	"cardaudit/internal/snapshot"
	"cardaudit/internal/stream"
)

// Verifier is what the verify endpoint needs from the engine.
type Verifier interface {
	Verify(ctx context.Context, claimList []claims.Claim) <-chan claims.StreamEvent
}

// Server wires the HTTP surface.
type Server struct {
	cfg        config.Config
	httpClient *http.Client

	// newVerifier builds the engine for one request's snapshot. Tests swap
	// it for a scripted stream.
	newVerifier func(snap *snapshot.Snapshot) Verifier
}

// New builds a Server backed by client.
func New(cfg config.Config, client llm.Client) *Server {
	return &Server{
		cfg:        cfg,
		httpClient: &http.Client{}, // no client timeout, streams are long-lived
		newVerifier: func(snap *snapshot.Snapshot) Verifier {
			return engine.New(client, snap, cfg)
		},
	}
}

// Router builds the gin handler.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())
	r.GET("/healthz", s.handleHealth)
	r.POST("/api/verify", s.handleVerify)
	r.POST("/api/relay", s.handleRelay)
	return r
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.cfg.Server.Addr, Handler: s.Router()}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	logging.Named("server").Info("listening", zap.String("addr", s.cfg.Server.Addr))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// verifyRequest is the body of /api/verify.
type verifyRequest struct {
	RepoPath string         `json:"repo_path"`
	Claims   []claims.Claim `json:"claims"`
}

func (r verifyRequest) validate() error {
	if r.RepoPath == "" {
		return fmt.Errorf("repo_path is required")
	}
	if len(r.Claims) == 0 {
		return fmt.Errorf("claims must not be empty")
	}
	seen := map[string]bool{}
	for i, claim := range r.Claims {
		if claim.ID == "" || claim.Description == "" {
			return fmt.Errorf("claims[%d]: id and description are required", i)
		}
		if seen[claim.ID] {
			return fmt.Errorf("duplicate claim id %q", claim.ID)
		}
		seen[claim.ID] = true
	}
	return nil
}

func (s *Server) handleVerify(c *gin.Context) {
	log := logging.Named("server")

	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request body: %v", err)})
		return
	}
	if err := req.validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	snap, err := snapshot.Load(c.Request.Context(), req.RepoPath)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("cannot load repository: %v", err)})
		return
	}

	sseHeaders(c)
	enc := stream.NewEncoder(c.Writer)

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	events := s.newVerifier(snap).Verify(ctx, req.Claims)
	for ev := range events {
		if err := enc.WriteEvent(ev); err != nil {
			// Consumer is gone. Stop the run and drain so the engine exits.
			log.Debug("verify consumer disconnected", zap.Error(err))
			cancel()
			for range events {
			}
			return
		}
	}
}

// relayRequest is the body of /api/relay; the verify payload is forwarded
// to the upstream origin untouched.
type relayRequest struct {
	OriginURL string `json:"origin_url"`
}

func (s *Server) handleRelay(c *gin.Context) {
	log := logging.Named("server")

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read request body"})
		return
	}
	var req relayRequest
	_ = json.Unmarshal(body, &req) // origin_url is optional, config is the fallback

	origin := req.OriginURL
	if origin == "" {
		origin = s.cfg.Server.OriginURL
	}
	if origin == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no origin_url configured"})
		return
	}

	upstreamReq, err := http.NewRequestWithContext(c.Request.Context(),
		http.MethodPost, origin+"/api/verify", bytes.NewReader(body))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid origin_url: %v", err)})
		return
	}
	upstreamReq.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(upstreamReq)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": fmt.Sprintf("origin unreachable: %v", err)})
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Origin rejected the request before streaming; pass its answer on.
		c.DataFromReader(resp.StatusCode, resp.ContentLength,
			resp.Header.Get("Content-Type"), resp.Body, nil)
		return
	}

	sseHeaders(c)
	enc := stream.NewEncoder(c.Writer)
	err = stream.Relay(c.Request.Context(), resp.Body, enc, stream.AttachFileDiscrepancies)
	if err != nil {
		log.Warn("relay ended on upstream fault", zap.String("origin", origin), zap.Error(err))
	}
}

func sseHeaders(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logging.Named("server").Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)))
	}
}
