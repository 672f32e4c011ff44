// Package pipeline implements the Decision Pipeline Orchestrator of
// spec.md §4.1: a fixed ten-stage sequence that turns a core.Request into
// a DecisionResponse, threading a RequestState through each stage,
// collecting per-stage metrics, and honoring the skip/critical-failure
// rules spec.md documents. The stage envelope (Update/Skip/Fail) mirrors
// the NodeStatus-driven shape of the teacher's orchestration.WorkflowDAG,
// generalized from a graph-scheduling state machine to a fixed linear
// pipeline with the same tri-state per-step outcome; its cycle-detection
// algorithm survives in planner.go's findCycle.
package pipeline

import (
	"github.com/veritasfuji-japan/veritas/core"
	"github.com/veritasfuji-japan/veritas/fuji"
	"github.com/veritasfuji-japan/veritas/trustlog"
)

// StageMetric is one stage's contribution to the response's metrics block
// (spec.md §4.1 "Metrics").
type StageMetric struct {
	Stage     string `json:"stage"`
	LatencyMS int64  `json:"latency_ms"`
	OK        bool   `json:"ok"`
	Skipped   bool   `json:"skipped"`
	Reason    string `json:"reason,omitempty"`
}

// RequestState accumulates every stage's output for one Decide call. It is
// the systems-language analogue of the dynamically typed state dict the
// source threaded through its pipeline (spec.md §9); it is owned by the
// orchestrator and discarded once the response is returned (spec.md §3
// "Lifecycle").
type RequestState struct {
	Options           []core.CandidateOption
	CritiquesByOption map[string][]core.Critique
	Evidence          []core.EvidenceItem
	Critiques         []core.Critique
	Debate            *core.DebateResult
	Plan              *core.Plan
	Values            *core.ValueResult
	Fuji              *fuji.Decision
	TrustLog          *trustlog.Record

	Metrics []StageMetric

	// FailedStage/FailureReason are set by a critical stage's failure or by
	// a request-deadline timeout; once set, the orchestrator skips every
	// remaining pipeline stage except seal_trust_log/finalize_response
	// (spec.md §4.1 "Failure policy").
	FailedStage   string
	FailureReason string

	// Response is populated by the finalize_response stage; Decide returns
	// it (or a Fatal error if it was never populated).
	Response *DecisionResponse
}

// NewRequestState returns a zero-value RequestState ready for one Decide
// call.
func NewRequestState() *RequestState {
	return &RequestState{
		CritiquesByOption: make(map[string][]core.Critique),
	}
}

// recordMetric appends one stage's metric, matching spec.md §4.1's exact
// per-stage fields.
func (s *RequestState) recordMetric(stage string, latencyMS int64, ok, skipped bool, reason string) {
	s.Metrics = append(s.Metrics, StageMetric{
		Stage: stage, LatencyMS: latencyMS, OK: ok, Skipped: skipped, Reason: reason,
	})
}

// totalLatencyMS sums every stage's latency, the basis for the response's
// overall latency_ms (spec.md §4.1 "The total latency_ms is the sum plus
// orchestrator overhead").
func (s *RequestState) totalLatencyMS() int64 {
	var total int64
	for _, m := range s.Metrics {
		total += m.LatencyMS
	}
	return total
}

// addCritique appends c to both the per-option and the flat critique sets,
// deduping the flat set by Issue (spec.md §3 "unordered set keyed by
// issue") and enforcing the configured cap.
func (s *RequestState) addCritique(optionID string, c core.Critique, cap int) {
	if optionID != "" {
		s.CritiquesByOption[optionID] = append(s.CritiquesByOption[optionID], c)
	}
	for _, existing := range s.Critiques {
		if existing.Issue == c.Issue {
			return
		}
	}
	if cap > 0 && len(s.Critiques) >= cap {
		return
	}
	s.Critiques = append(s.Critiques, c)
}
