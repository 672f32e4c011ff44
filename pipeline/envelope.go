package pipeline

import (
	"context"

	"github.com/veritasfuji-japan/veritas/core"
)

// ResultKind is StageResult's closed tag, mirroring spec.md §4.1's
// "returns either Update(state_patch, metrics) or Skip(reason) or
// Fail(error)".
type ResultKind int

const (
	ResultUpdate ResultKind = iota
	ResultSkip
	ResultFail
)

// StageResult is one stage invocation's outcome. A stage mutates
// *RequestState directly for the Update case (the Go equivalent of
// returning a state patch) rather than returning a separate patch value,
// matching the teacher's preference for direct mutation of a
// request-scoped accumulator over building intermediate diff objects.
type StageResult struct {
	Kind   ResultKind
	Reason string // populated for ResultSkip
	Err    error  // populated for ResultFail
}

func Update() StageResult           { return StageResult{Kind: ResultUpdate} }
func Skip(reason string) StageResult { return StageResult{Kind: ResultSkip, Reason: reason} }
func Fail(err error) StageResult     { return StageResult{Kind: ResultFail, Err: err} }

// Stage is one named step of the Decision Pipeline (spec.md §4.1 "Ordered
// stages"). Critical stages (normalize_input, fuji_gate, seal_trust_log)
// abort the pipeline to a structured hold on failure; best-effort stages
// degrade to an empty/neutral output plus a stage_failure critique and let
// the pipeline continue.
type Stage struct {
	Name     string
	Critical bool

	// Run executes the stage against the accumulated state. It receives the
	// full Services bundle so I/O-bound stages (gather_evidence,
	// fuji_gate's safety-head layer) can reach external collaborators while
	// pure stages (run_critique, run_debate, evaluate_values) simply ignore
	// the parameter, matching spec.md §5 "pure stages MUST be non-blocking".
	Run func(ctx context.Context, req *core.Request, state *RequestState, cfg *core.Config, svc core.Services) StageResult

	// ApplySkip writes a caller pre-supplied output (req.SkipStages[Name])
	// directly into state, used when the Skip semantics of spec.md §4.1
	// apply: "if a caller pre-populates a stage's output slot in state,
	// that stage is skipped". A stage with no ApplySkip cannot be
	// pre-filled (normalize_input, seal_trust_log, finalize_response never
	// are — normalization and sealing must always run for real).
	ApplySkip func(state *RequestState, raw interface{}) error
}
