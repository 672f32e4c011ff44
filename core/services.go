package core

import (
	"context"
	"time"
)

// Clock abstracts wall-clock and monotonic time so nonce stores and rate
// limiters can be driven by a fake clock in tests (spec §5 "clock skew
// backward" handling).
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock backed by time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// RNG abstracts randomness so debate/value-scoring tie-breaks are
// reproducible in tests.
type RNG interface {
	Float64() float64
}

// Memory is the external episodic/semantic recall collaborator consulted by
// gather_evidence. It is modeled as a narrow interface per spec.md §9
// ("global state / monkey-patching → explicit dependencies"); VERITAS ships
// only an in-memory default (see pipeline/evidence.go).
type Memory interface {
	Recall(ctx context.Context, query string, limit int) ([]MemoryHit, error)
}

// MemoryHit is a single recalled memory record, enriched into an
// EvidenceItem by gather_evidence.
type MemoryHit struct {
	Source     string
	Text       string
	Confidence float64
	Kind       string
}

// World is the external world-model state collaborator. Out of core scope
// per spec.md §1; modeled as a narrow interface for the same reason as
// Memory.
type World interface {
	Read(key string) (interface{}, bool)
}

// Services bundles every external collaborator the pipeline and FUJI gate
// may call, each wrapped in Service[T] so a stage can check availability
// and degrade instead of nil-checking a concrete pointer. Mirrors the
// teacher's single dependency-injection struct threaded through
// core.NewFrameworkWithConfig (Discovery/Memory/AI/Telemetry), generalized
// to VERITAS's own collaborator set.
type Services struct {
	Memory     Service[Memory]
	World      Service[World]
	LLM        Service[AIClient]
	SafetyHead Service[AIClient]
	Clock      Clock
	RNG        RNG
	Logger     ComponentAwareLogger
	Telemetry  Telemetry
}

// AIClient is the minimal interface VERITAS needs from an opaque LLM or a
// safety-head classifier: a single request/response round trip. Concrete
// implementations live in package llmclient.
type AIClient interface {
	Generate(ctx context.Context, prompt string) (AIResponse, error)
}

// AIResponse is the provider-agnostic response shape.
type AIResponse struct {
	Content string
	Model   string
	Usage   TokenUsage
}

// TokenUsage mirrors the teacher's core.TokenUsage shape.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// DefaultServices returns a Services value with every collaborator
// unavailable, a SystemClock, no-op Logger/Telemetry and a nil RNG,
// matching the "narrow interface degrading to
// best-effort" design note (spec.md §9).
func DefaultServices() Services {
	return Services{
		Memory:     Unavailable[Memory](ErrNotInitialized),
		World:      Unavailable[World](ErrNotInitialized),
		LLM:        Unavailable[AIClient](ErrNotInitialized),
		SafetyHead: Unavailable[AIClient](ErrNotInitialized),
		Clock:      SystemClock{},
		Logger:     &noopComponentLogger{},
		Telemetry:  &NoOpTelemetry{},
	}
}

type noopComponentLogger struct{ NoOpLogger }

func (n *noopComponentLogger) WithComponent(component string) Logger { return n }
