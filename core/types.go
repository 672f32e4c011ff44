package core

// This file holds the shared domain types threaded through the Decision
// Pipeline and the FUJI gate (spec.md §3 "Data Model"). They live in core
// rather than in package pipeline or package fuji so neither of those two
// packages needs to import the other — both depend only on core, mirroring
// the teacher's own core.AIOptions/core.AIResponse sitting below both
// core.Discovery and the ai/ providers that use them. Every dynamically
// typed dict from the source ("duck-typed dicts throughout", spec.md §9) is
// a tagged struct here with explicit optional fields, using pointers where
// the spec marks a field optional and the zero value is a valid present
// value (e.g. *float64 for an optional score of exactly 0).

// Request is the input to Decide (spec.md §3 "Request").
type Request struct {
	Query      string                 `json:"query"`
	Context    map[string]interface{} `json:"context"`
	Options    []CandidateOption      `json:"options,omitempty"`
	SkipStages map[string]interface{} `json:"-"` // pre-filled stage outputs, see Skip semantics
	RequestID  string                 `json:"-"` // assigned once at the entry point, never from client input
}

// Verdict is CandidateOption.Verdict's closed enumeration.
type Verdict string

const (
	VerdictAccepted    Verdict = "accepted"
	VerdictNeedsReview Verdict = "needs_review"
	VerdictRejected    Verdict = "rejected"
)

// CandidateOption is one candidate decision option (spec.md §3).
type CandidateOption struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Score      *float64 `json:"score,omitempty"`
	Verdict    Verdict  `json:"verdict,omitempty"`
	Rationale  string   `json:"rationale,omitempty"`
	Risk       *float64 `json:"risk,omitempty"`
	Complexity *float64 `json:"complexity,omitempty"`
}

// ScoreOrZero returns Score's value, or 0 if unset.
func (o CandidateOption) ScoreOrZero() float64 {
	if o.Score == nil {
		return 0
	}
	return *o.Score
}

// RiskOrZero returns Risk's value, or 0 if unset.
func (o CandidateOption) RiskOrZero() float64 {
	if o.Risk == nil {
		return 0
	}
	return *o.Risk
}

// ComplexityOrZero returns Complexity's value, or 0 if unset.
func (o CandidateOption) ComplexityOrZero() float64 {
	if o.Complexity == nil {
		return 0
	}
	return *o.Complexity
}

// EvidenceKind is EvidenceItem.Kind's closed enumeration.
type EvidenceKind string

const (
	EvidenceMemoryEpisodic EvidenceKind = "memory_episodic"
	EvidenceMemorySemantic EvidenceKind = "memory_semantic"
	EvidenceWorld          EvidenceKind = "world"
	EvidenceTool           EvidenceKind = "tool"
	EvidenceExternal       EvidenceKind = "external"
)

// EvidenceItem is one piece of supporting evidence (spec.md §3).
type EvidenceItem struct {
	Source     string       `json:"source"`
	Text       string       `json:"text"`
	Confidence float64      `json:"confidence"`
	Kind       EvidenceKind `json:"kind"`
}

// CritiqueSeverity is Critique.Severity's closed enumeration.
type CritiqueSeverity string

const (
	SeverityLow    CritiqueSeverity = "low"
	SeverityMedium CritiqueSeverity = "medium"
	SeverityHigh   CritiqueSeverity = "high"
)

// Critique is one flaw identified in a candidate option (spec.md §3). The
// set is keyed by Issue; callers dedupe on that field.
type Critique struct {
	Issue    string                 `json:"issue"`
	Severity CritiqueSeverity       `json:"severity"`
	Fix      string                 `json:"fix"`
	Details  map[string]interface{} `json:"details,omitempty"`
}

// IsBlocker reports whether this critique is high-severity (spec.md §3
// "high-severity critiques are blockers").
func (c Critique) IsBlocker() bool { return c.Severity == SeverityHigh }

// DebateMode is DebateResult.Mode's closed enumeration.
type DebateMode string

const (
	DebateNormal       DebateMode = "normal"
	DebateDegraded     DebateMode = "degraded"
	DebateSafeFallback DebateMode = "safe_fallback"
)

// DebateResult is run_debate's output (spec.md §3/§4.2).
type DebateResult struct {
	Chosen          *CandidateOption  `json:"chosen"`
	EnrichedOptions []CandidateOption `json:"enriched_options"`
	Mode            DebateMode        `json:"mode"`
	Warnings        []string          `json:"warnings,omitempty"`
	RiskDelta       float64           `json:"risk_delta"`
}

// PlanStep is one step of run_planner's output (spec.md §4.2).
type PlanStep struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Objective     string   `json:"objective"`
	Tasks         []string `json:"tasks,omitempty"`
	Metrics       []string `json:"metrics,omitempty"`
	Risks         []string `json:"risks,omitempty"`
	DoneCriteria  []string `json:"done_criteria,omitempty"`
	Dependencies  []string `json:"dependencies,omitempty"`
}

// Plan is run_planner's full output.
type Plan struct {
	Steps []PlanStep `json:"steps"`
}

// ValueResult is evaluate_values's output (spec.md §4.2).
type ValueResult struct {
	Total   float64            `json:"total"`
	Factors map[string]float64 `json:"factors,omitempty"`
	EMA     float64            `json:"ema"`
}
