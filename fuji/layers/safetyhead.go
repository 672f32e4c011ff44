package layers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/veritasfuji-japan/veritas/core"
	"github.com/veritasfuji-japan/veritas/fuji"
	"github.com/veritasfuji-japan/veritas/resilience"
)

// safetyHeadBaselineRisk is the documented non-zero baseline risk
// contributed when the external classifier can't be reached (spec.md
// §4.3.2: "On failure to reach the classifier, contributes a baseline
// risk_head = 0.30 (not 0)").
const safetyHeadBaselineRisk = 0.30

// safetyHeadVerdict is the structured shape the external classifier is
// expected to return, encoded as JSON in AIResponse.Content.
type safetyHeadVerdict struct {
	Risk       float64            `json:"risk"`
	Categories map[string]float64 `json:"categories"`
}

// SafetyHead is the layer-2 "Safety-head layer" (spec.md §4.3.2): an
// optional external LLM classifier call wrapped in a circuit breaker +
// retry, adapted verbatim in spirit from resilience/circuit_breaker.go and
// resilience/retry.go — the same pattern the teacher uses to protect any
// external tool call.
type SafetyHead struct {
	Client  core.Service[core.AIClient]
	Breaker *resilience.CircuitBreaker
	Retry   *resilience.RetryConfig
	Timeout time.Duration
	Logger  core.Logger
}

func (s *SafetyHead) Name() string { return "safety_head" }

func (s *SafetyHead) Evaluate(ctx context.Context, in fuji.Input, cfg fuji.Config) fuji.LayerOutcome {
	client, ok := s.Client.Value()
	if !ok {
		return s.baseline("safety_head_unavailable", s.Client.Reason())
	}

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var resp core.AIResponse
	call := func() error {
		r, err := client.Generate(callCtx, in.Query)
		if err != nil {
			return err
		}
		resp = r
		return nil
	}

	var err error
	if s.Breaker != nil {
		retry := s.Retry
		if retry == nil {
			retry = resilience.DefaultRetryConfig()
		}
		err = resilience.RetryWithCircuitBreaker(callCtx, retry, s.Breaker, call)
	} else {
		err = call()
	}
	if err != nil {
		return s.baseline("safety_head_error", err)
	}

	var verdict safetyHeadVerdict
	if unmarshalErr := json.Unmarshal([]byte(resp.Content), &verdict); unmarshalErr != nil {
		return s.baseline("safety_head_malformed_response", unmarshalErr)
	}

	risk := fuji.Clamp01(verdict.Risk)
	status := fuji.StatusAllow
	var violations []fuji.ViolationTag
	if risk >= cfg.RejectThreshold {
		status = fuji.StatusDeny
		violations = append(violations, fuji.ViolationTag{Layer: "safety_head", Code: "safety_head_high_risk", Detail: "classifier risk above reject threshold"})
	} else if risk >= cfg.HoldThreshold {
		status = fuji.StatusHumanReview
	}

	return fuji.LayerOutcome{
		Layer:      "safety_head",
		Risk:       risk,
		Proposed:   status,
		Violations: violations,
	}
}

func (s *SafetyHead) baseline(code string, err error) fuji.LayerOutcome {
	detail := ""
	if err != nil {
		detail = err.Error()
	}
	if s.Logger != nil {
		s.Logger.Warn("fuji: safety-head layer degraded to baseline risk", map[string]interface{}{"code": code, "err": detail})
	}
	return fuji.LayerOutcome{
		Layer:    "safety_head",
		Risk:     safetyHeadBaselineRisk,
		Proposed: fuji.StatusWarn,
		Violations: []fuji.ViolationTag{
			{Layer: "safety_head", Code: code, Detail: detail},
		},
	}
}
