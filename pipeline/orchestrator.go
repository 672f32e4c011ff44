package pipeline

import (
	"context"
	"time"

	"github.com/veritasfuji-japan/veritas/core"
	"github.com/veritasfuji-japan/veritas/fuji"
	"github.com/veritasfuji-japan/veritas/fuji/layers"
	"github.com/veritasfuji-japan/veritas/trustlog"
)

// Orchestrator runs the fixed ten-stage Decision Pipeline (spec.md §4.1)
// against one core.Request at a time, threading a RequestState through
// every stage in order and sealing the outcome to a TrustLog before
// returning. It is the generalization of the teacher's
// orchestration.WorkflowDAG execution loop (GetReadyNodes/MarkNodeRunning/
// MarkNodeCompleted) collapsed from a general graph scheduler down to the
// fixed linear order spec.md fixes for VERITAS.
type Orchestrator struct {
	services core.Services
	cfg      *core.Config
	stages   []Stage

	fujiGate *fuji.Gate
	fujiCfg  fuji.Config
	log      *trustlog.Log
	values   ValueStatsStore
}

// Option configures an Orchestrator at construction time.
type Option func(*Orchestrator)

// WithFujiGate wires the safety gate and its aggregation config.
func WithFujiGate(gate *fuji.Gate, cfg fuji.Config) Option {
	return func(o *Orchestrator) {
		o.fujiGate = gate
		o.fujiCfg = cfg
	}
}

// WithTrustLog wires the audit log seal_trust_log writes to.
func WithTrustLog(log *trustlog.Log) Option {
	return func(o *Orchestrator) { o.log = log }
}

// WithValueStatsStore overrides the default in-memory EMA store.
func WithValueStatsStore(store ValueStatsStore) Option {
	return func(o *Orchestrator) { o.values = store }
}

// New builds an Orchestrator wired with the standard ten stages in
// spec.md §4.1's exact order.
func New(services core.Services, cfg *core.Config, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		services: services,
		cfg:      cfg,
		values:   NewInMemoryValueStats(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.fujiGate == nil {
		o.fujiGate = defaultFujiGate()
	}
	if o.fujiCfg.RejectThreshold == 0 && o.fujiCfg.HoldThreshold == 0 {
		o.fujiCfg = fujiConfigFrom(cfg)
	}
	o.stages = []Stage{
		normalizeInputStage,
		collectOptionsStage,
		gatherEvidenceStage,
		runCritiqueStage,
		runDebateStage,
		runPlannerStage,
		newEvaluateValuesStage(o.values),
		newFujiGateStage(o.fujiGate, o.fujiCfg),
		newSealTrustLogStage(o.log),
		finalizeResponseStage,
	}
	return o
}

// defaultFujiGate ships a minimally functional keyword-only gate for
// callers that construct an Orchestrator without WithFujiGate; real
// deployments wire the full five-layer gate in cmd/veritasd's composition
// root (policy file, safety-head classifier, PII detector all configured
// from core.Config).
func defaultFujiGate() *fuji.Gate {
	return fuji.NewGate(layers.NewKeyword(layers.DefaultCategories()...))
}

// fujiConfigFrom derives a fuji.Config from core.Config.Fuji, the defaults
// used whenever a caller wires a gate via WithFujiGate but leaves the
// aggregation thresholds at zero value.
func fujiConfigFrom(cfg *core.Config) fuji.Config {
	return fuji.Config{
		Weights: fuji.Weights{
			Keyword:    cfg.Fuji.WeightKeyword,
			SafetyHead: cfg.Fuji.WeightSafetyHead,
			Policy:     cfg.Fuji.WeightPolicy,
		},
		RejectThreshold: cfg.Fuji.RejectThreshold,
		HoldThreshold:   cfg.Fuji.HoldThreshold,
	}
}

// Decide runs req through the full pipeline, returning the sealed
// DecisionResponse. Apart from a request that ValidateRequest rejects
// before any stage runs (InputInvalid), the only error returned is the
// Fatal class (spec.md §4.1 "Fatal (TrustLog seal failed durably)"); every other
// failure mode — including FUJI denial, gate unavailability, and
// best-effort stage failures — is represented inside the returned
// DecisionResponse itself.
func (o *Orchestrator) Decide(ctx context.Context, req *core.Request) (*DecisionResponse, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	req.RequestID = resolveRequestID(req)
	deadline := o.cfg.Pipeline.RequestDeadline
	if deadline <= 0 {
		deadline = core.DefaultRequestTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	state := NewRequestState()

	for _, stage := range o.stages {
		if state.FailedStage != "" && stage.Name != "seal_trust_log" && stage.Name != "finalize_response" {
			state.recordMetric(stage.Name, 0, false, true, state.FailureReason)
			continue
		}

		if err := runCtx.Err(); err != nil && stage.Name != "seal_trust_log" && stage.Name != "finalize_response" {
			state.FailedStage = stage.Name
			state.FailureReason = rejectionTimeout
			state.recordMetric(stage.Name, 0, false, true, rejectionTimeout)
			continue
		}

		if raw, ok := req.SkipStages[stage.Name]; ok && stage.ApplySkip != nil {
			start := o.now()
			err := stage.ApplySkip(state, raw)
			latency := o.elapsedMS(start)
			if err != nil {
				state.recordMetric(stage.Name, latency, false, false, err.Error())
				if stage.Critical {
					state.FailedStage = stage.Name
					state.FailureReason = rejectionFujiUnavailable
				}
				continue
			}
			state.recordMetric(stage.Name, latency, true, true, "skipped_by_caller")
			continue
		}

		start := o.now()
		spanCtx, span := o.services.Telemetry.StartSpan(runCtx, "pipeline."+stage.Name)
		result := stage.Run(spanCtx, req, state, o.cfg, o.services)
		span.End()
		latency := o.elapsedMS(start)

		switch result.Kind {
		case ResultUpdate:
			state.recordMetric(stage.Name, latency, true, false, "")
		case ResultSkip:
			state.recordMetric(stage.Name, latency, true, true, result.Reason)
		case ResultFail:
			reason := ""
			if result.Err != nil {
				reason = result.Err.Error()
			}
			state.recordMetric(stage.Name, latency, false, false, reason)
			state.addCritique("", core.Critique{
				Issue:    "stage_failure",
				Severity: core.SeverityMedium,
				Fix:      "inspect the stage error for remediation",
				Details:  map[string]interface{}{"stage": stage.Name, "error": reason},
			}, o.cfg.Pipeline.MaxCritiques)
			if stage.Critical {
				if result.Err != nil && core.IsFatal(result.Err) {
					return nil, result.Err
				}
				state.FailedStage = stage.Name
				state.FailureReason = criticalFailureReason(stage.Name)
			}
		}
	}

	if state.Response == nil {
		return nil, core.NewVeritasError("pipeline.Decide", "fatal", core.ErrStageFailed)
	}
	return state.Response, nil
}

func criticalFailureReason(stage string) string {
	switch stage {
	case "normalize_input":
		return "normalize_input_failed"
	case "fuji_gate":
		return rejectionFujiUnavailable
	case "seal_trust_log":
		return rejectionTrustLogUnavailable
	default:
		return "critical_stage_failed"
	}
}

func (o *Orchestrator) now() time.Time {
	if o.services.Clock != nil {
		return o.services.Clock.Now()
	}
	return time.Now()
}

func (o *Orchestrator) elapsedMS(start time.Time) int64 {
	return o.now().Sub(start).Milliseconds()
}
