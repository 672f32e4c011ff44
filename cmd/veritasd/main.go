// Command veritasd serves the Decide and TrustLog HTTP surface (spec.md
// §6). Its composition root wires every collaborator package into one
// pipeline.Orchestrator: the five FUJI layers, the policy store, an
// opaque-LLM/safety-head client (mock by default, real OpenAI-compatible
// endpoint when configured), the TrustLog, and the ambient middleware
// stack (structured logging, CORS, rate limiting, nonce replay
// protection). Grounded on the teacher's NewResearchAgent +
// core.NewFramework composition root, generalized from one agent's HTTP
// surface to VERITAS's Decide/TrustLog surface.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/veritasfuji-japan/veritas/core"
	"github.com/veritasfuji-japan/veritas/fuji"
	"github.com/veritasfuji-japan/veritas/fuji/layers"
	"github.com/veritasfuji-japan/veritas/llmclient"
	"github.com/veritasfuji-japan/veritas/llmclient/mock"
	"github.com/veritasfuji-japan/veritas/pipeline"
	"github.com/veritasfuji-japan/veritas/policy"
	"github.com/veritasfuji-japan/veritas/ratelimit"
	"github.com/veritasfuji-japan/veritas/resilience"
	"github.com/veritasfuji-japan/veritas/telemetry"
	"github.com/veritasfuji-japan/veritas/trustlog"

	goredis "github.com/go-redis/redis/v8"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	cfg := core.DefaultConfig()
	if err := cfg.LoadFromEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "veritasd: failed to load environment configuration: %v\n", err)
		os.Exit(1)
	}
	cfg.DetectEnvironment()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "veritasd: invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := telemetry.NewTelemetryLogger(cfg.Name)
	logger.Info("starting veritasd", map[string]interface{}{
		"port":      cfg.Port,
		"namespace": cfg.Namespace,
	})

	var tel core.Telemetry = &core.NoOpTelemetry{}
	if cfg.Telemetry.Enabled {
		provider, err := telemetry.EnableTelemetry(cfg.Telemetry.ServiceName, cfg.Telemetry.Endpoint)
		if err != nil {
			logger.Error("telemetry init failed, continuing with no-op telemetry", map[string]interface{}{"error": err.Error()})
		} else {
			tel = provider
			defer func() {
				if shutdowner, ok := provider.(interface{ Shutdown(context.Context) error }); ok {
					_ = shutdowner.Shutdown(context.Background())
				}
			}()
		}
	}

	trustLog, err := trustlog.Open(trustlog.Config{
		Dir:              cfg.TrustLog.Dir,
		RotationMaxBytes: cfg.TrustLog.RotationMaxBytes,
		MirrorEnabled:    cfg.TrustLog.MirrorEnabled,
		LockTimeout:      cfg.TrustLog.LockTimeout,
		Logger:           logger,
	})
	if err != nil {
		logger.Error("failed to open trust log", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}

	gate, fujiCfg := buildFujiGate(cfg, logger)

	services := core.Services{
		Memory:     core.Unavailable[core.Memory](core.ErrNotInitialized),
		World:      core.Unavailable[core.World](core.ErrNotInitialized),
		LLM:        buildLLM(cfg),
		SafetyHead: buildLLM(cfg),
		Clock:      core.SystemClock{},
		Logger:     loggerAdapter{logger},
		Telemetry:  tel,
	}

	orchestrator := pipeline.New(services, cfg,
		pipeline.WithFujiGate(gate, fujiCfg),
		pipeline.WithTrustLog(trustLog),
		pipeline.WithValueStatsStore(pipeline.NewFileValueStatsStore(cfg.TrustLog.Dir)),
	)

	rl, nonces := buildRateLimiting(cfg, services.Clock, logger)

	mux := http.NewServeMux()
	srv := &server{orchestrator: orchestrator, trustLog: trustLog, logger: logger, limiter: rl, nonces: nonces, cfg: cfg}
	mux.HandleFunc("POST /v1/decide", srv.handleDecide)
	mux.HandleFunc("GET /v1/trustlog/tail", srv.handleTrustLogTail)
	mux.HandleFunc("GET /v1/trustlog/{id}", srv.handleTrustLogByID)
	mux.HandleFunc("GET /healthz", srv.handleHealthz)

	var handler http.Handler = mux
	handler = otelhttp.NewHandler(handler, "veritasd")
	handler = core.CORSMiddleware(&cfg.HTTP.CORS)(handler)
	handler = core.LoggingMiddleware(logger, cfg.Development.Enabled)(handler)
	handler = srv.rateLimitMiddleware(handler)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
	}

	go func() {
		logger.Info("listening", map[string]interface{}{"addr": httpServer.Addr})
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", map[string]interface{}{"error": err.Error()})
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down", nil)
	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", map[string]interface{}{"error": err.Error()})
	}
}

// buildFujiGate assembles the full five-layer gate in spec.md §4.3's
// declared evaluation order: keyword, safety-head, policy, evidence-gate,
// PII.
func buildFujiGate(cfg *core.Config, logger core.Logger) (*fuji.Gate, fuji.Config) {
	var store *policy.Store
	if cfg.Fuji.PolicyFile != "" {
		s, err := policy.NewStoreFromFile(cfg.Fuji.PolicyFile, logger)
		if err != nil {
			logger.Warn("failed to load policy file, falling back to default policy", map[string]interface{}{"error": err.Error()})
			store = policy.NewStore(policy.Default())
		} else {
			store = s
		}
	} else {
		store = policy.NewStore(policy.Default())
	}

	doc := store.Current()

	cb, err := resilience.CreateCircuitBreaker("safety-head", resilience.ResilienceDependencies{Logger: logger})
	if err != nil {
		logger.Warn("circuit breaker init failed, safety-head layer runs unprotected", map[string]interface{}{"error": err.Error()})
	}

	safetyHead := &layers.SafetyHead{
		Client:  buildLLM(cfg),
		Breaker: cb,
		Retry:   &resilience.RetryConfig{MaxAttempts: cfg.Resilience.Retry.MaxAttempts, InitialDelay: cfg.Resilience.Retry.InitialInterval, MaxDelay: cfg.Resilience.Retry.MaxInterval, BackoffFactor: cfg.Resilience.Retry.Multiplier, JitterEnabled: true},
		Timeout: cfg.Fuji.SafetyHeadTimeout,
		Logger:  logger,
	}

	gate := fuji.NewGate(
		layers.NewKeyword(layers.DefaultCategories()...),
		safetyHead,
		layers.NewPolicy(store, layers.DefaultCategoryScorer),
		layers.NewEvidenceGate(doc.MinEvidence),
		layers.NewPII(layers.DefaultDetector(), doc.PIIConfidenceThreshold),
	)

	fujiCfg := fuji.Config{
		Weights: fuji.Weights{
			Keyword:    cfg.Fuji.WeightKeyword,
			SafetyHead: cfg.Fuji.WeightSafetyHead,
			Policy:     cfg.Fuji.WeightPolicy,
		},
		RejectThreshold: cfg.Fuji.RejectThreshold,
		HoldThreshold:   cfg.Fuji.HoldThreshold,
		MinEvidence:     doc.MinEvidence,
		Logger:          logger,
	}
	return gate, fujiCfg
}

// buildLLM wires the opaque LLM/safety-head collaborator: a real
// OpenAI-compatible client when VERITAS_LLM_API_KEY is set, a canned mock
// when cfg.Development.MockLLM is set, or Unavailable otherwise (spec.md §9 "explicit
// dependencies, degrade rather than fail").
func buildLLM(cfg *core.Config) core.Service[core.AIClient] {
	if apiKey := os.Getenv("VERITAS_LLM_API_KEY"); apiKey != "" {
		client := llmclient.NewClient(llmclient.Config{
			ProviderAlias: os.Getenv("VERITAS_LLM_PROVIDER"),
			APIKey:        apiKey,
			BaseURL:       os.Getenv("VERITAS_LLM_BASE_URL"),
			Timeout:       cfg.Resilience.Timeout.DefaultTimeout,
		})
		return core.Available[core.AIClient](client)
	}
	if cfg.Development.MockLLM {
		return core.Available[core.AIClient](mock.NewClient())
	}
	return core.Unavailable[core.AIClient](core.ErrNotInitialized)
}

// rateLimiter and nonceChecker abstract over the in-process
// (single-worker) and Redis-backed (multi-worker) implementations so the
// HTTP handlers don't care which one is active.
type rateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type nonceChecker interface {
	CheckAndStore(ctx context.Context, nonce string) (bool, error)
}

type localLimiter struct{ l *ratelimit.Limiter }

func (a localLimiter) Allow(_ context.Context, key string) (bool, error) { return a.l.Allow(key), nil }

type localNonceStore struct{ s *ratelimit.NonceStore }

func (a localNonceStore) CheckAndStore(_ context.Context, nonce string) (bool, error) {
	return a.s.CheckAndStore(nonce), nil
}

// buildRateLimiting selects the in-process token bucket and nonce store by
// default, or their Redis-backed counterparts when VERITAS_REDIS_URL is
// set — spec.md §9's "if multiple workers are deployed, these must be
// externalized" carve-out.
func buildRateLimiting(cfg *core.Config, clock core.Clock, logger core.Logger) (rateLimiter, nonceChecker) {
	redisURL := os.Getenv("VERITAS_REDIS_URL")
	if redisURL == "" {
		return localLimiter{ratelimit.NewLimiter(20, 5, clock)}, localNonceStore{ratelimit.NewNonceStore(5*time.Minute, clock)}
	}

	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		logger.Warn("invalid VERITAS_REDIS_URL, falling back to in-process rate limiting", map[string]interface{}{"error": err.Error()})
		return localLimiter{ratelimit.NewLimiter(20, 5, clock)}, localNonceStore{ratelimit.NewNonceStore(5*time.Minute, clock)}
	}
	client := goredis.NewClient(opts)
	logger.Info("using redis-backed rate limiting and nonce store", map[string]interface{}{"addr": opts.Addr})
	return ratelimit.NewRedisLimiter(client, cfg.Name+":ratelimit:", 20, time.Minute),
		ratelimit.NewRedisNonceStore(client, cfg.Name+":nonce:", 5*time.Minute)
}

// loggerAdapter satisfies core.ComponentAwareLogger for
// *telemetry.TelemetryLogger, which doesn't implement WithComponent.
type loggerAdapter struct{ *telemetry.TelemetryLogger }

func (l loggerAdapter) WithComponent(component string) core.Logger {
	return componentLogger{base: l.TelemetryLogger, component: component}
}

type componentLogger struct {
	base      *telemetry.TelemetryLogger
	component string
}

func (c componentLogger) withComponent(fields map[string]interface{}) map[string]interface{} {
	if fields == nil {
		fields = map[string]interface{}{}
	}
	fields["component"] = c.component
	return fields
}

func (c componentLogger) Info(msg string, fields map[string]interface{}) {
	c.base.Info(msg, c.withComponent(fields))
}
func (c componentLogger) Error(msg string, fields map[string]interface{}) {
	c.base.Error(msg, c.withComponent(fields))
}
func (c componentLogger) Warn(msg string, fields map[string]interface{}) {
	c.base.Warn(msg, c.withComponent(fields))
}
func (c componentLogger) Debug(msg string, fields map[string]interface{}) {
	c.base.Debug(msg, c.withComponent(fields))
}
func (c componentLogger) InfoWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	c.base.InfoWithContext(ctx, msg, c.withComponent(fields))
}
func (c componentLogger) ErrorWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	c.base.ErrorWithContext(ctx, msg, c.withComponent(fields))
}
func (c componentLogger) WarnWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	c.base.WarnWithContext(ctx, msg, c.withComponent(fields))
}
func (c componentLogger) DebugWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	c.base.DebugWithContext(ctx, msg, c.withComponent(fields))
}

// server holds the handler state for the Decide/TrustLog endpoints.
type server struct {
	orchestrator *pipeline.Orchestrator
	trustLog     *trustlog.Log
	logger       core.Logger
	limiter      rateLimiter
	nonces       nonceChecker
	cfg          *core.Config
}

type decideRequest struct {
	Query   string                  `json:"query"`
	Context map[string]interface{} `json:"context"`
	Options []core.CandidateOption `json:"options,omitempty"`
}

func (s *server) handleDecide(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.HTTP.MaxBodyBytes)

	var body decideRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	if nonce := r.Header.Get("X-Idempotency-Key"); nonce != "" {
		fresh, err := s.nonces.CheckAndStore(r.Context(), nonce)
		if err != nil {
			s.logger.Warn("nonce store unavailable, allowing request through", map[string]interface{}{"error": err.Error()})
		} else if !fresh {
			writeError(w, http.StatusConflict, "duplicate_request", "this idempotency key was already used")
			return
		}
	}

	req := &core.Request{Query: body.Query, Context: body.Context, Options: body.Options}
	resp, err := s.orchestrator.Decide(r.Context(), req)
	if err != nil {
		var ve *core.VeritasError
		if errors.As(err, &ve) && ve.Kind == "validation" {
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		s.logger.ErrorWithContext(r.Context(), "decide failed", map[string]interface{}{"error": err.Error()})
		writeError(w, http.StatusInternalServerError, "internal_error", "decision could not be completed")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *server) handleTrustLogTail(w http.ResponseWriter, r *http.Request) {
	n := 50
	if raw := r.URL.Query().Get("n"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			n = v
		}
	}
	records, err := s.trustLog.Tail(n)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "tail_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"records": records})
}

// handleTrustLogByID aggregates every sealed record for one request_id and
// reports the chain-continuity verdict over just that subsequence (spec.md
// §6 "by-request_id aggregation returning the chain-continuity verdict for
// that request's stage records") — a read-side convenience over Tail, not
// part of TrustLog's own write-path contract.
func (s *server) handleTrustLogByID(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing_id", "request id is required")
		return
	}
	records, err := s.trustLog.Tail(2000)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "tail_failed", err.Error())
		return
	}
	matched := make([]trustlog.Record, 0)
	for _, rec := range records {
		if rec.RequestID == id {
			matched = append(matched, rec)
		}
	}
	if len(matched) == 0 {
		writeError(w, http.StatusNotFound, "not_found", "no trust log records for this request id")
		return
	}
	verdict := trustlog.VerifySubsequence(matched)
	writeJSON(w, http.StatusOK, map[string]interface{}{"records": matched, "chain_continuity": verdict})
}

func (s *server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// rateLimitMiddleware enforces a token bucket per client key (API key
// header, falling back to remote address) ahead of every other middleware
// (spec.md §5 "Rate limiter: token buckets per client key").
func (s *server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-API-Key")
		if key == "" {
			key = strings.SplitN(r.RemoteAddr, ":", 2)[0]
		}
		allowed, err := s.limiter.Allow(r.Context(), key)
		if err != nil {
			s.logger.Warn("rate limiter unavailable, allowing request through", map[string]interface{}{"error": err.Error()})
		} else if !allowed {
			writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"error": code, "message": message})
}
