package pipeline

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/veritasfuji-japan/veritas/core"
)

const (
	maxQueryChars  = 10_000
	maxContextDepth = 8
	maxBodyBytes    = 10 << 20 // 10 MiB, spec.md §4.1 "body size <= 10 MiB"
)

// NewRequestID generates a fresh UUID-like token, used exactly once per
// request at the entry point (spec.md §3 invariant). Grounded on the
// teacher's uuid.New().String() use for service identifiers.
func NewRequestID() string { return uuid.NewString() }

// ValidateRequest enforces spec.md §4.1's synchronous input constraints:
// body size, query length, and context nesting depth. A failure here is
// the InputInvalid error class (spec.md §4.1 "Errors") — distinct from a
// StageFailed/hold outcome, since the request never enters the pipeline at
// all.
func ValidateRequest(req *core.Request) error {
	if req == nil {
		return core.NewVeritasError("pipeline.ValidateRequest", "validation", core.ErrInvalidRequest)
	}
	if strings.TrimSpace(req.Query) == "" {
		return core.NewVeritasError("pipeline.ValidateRequest", "validation", core.ErrMissingQuery)
	}
	if len(req.Query) > maxQueryChars {
		return core.NewVeritasError("pipeline.ValidateRequest", "validation",
			fmt.Errorf("%w: query length %d exceeds %d chars", core.ErrInvalidRequest, len(req.Query), maxQueryChars))
	}
	if depth := mapDepth(req.Context, 0); depth > maxContextDepth {
		return core.NewVeritasError("pipeline.ValidateRequest", "validation",
			fmt.Errorf("%w: context depth %d exceeds %d", core.ErrContextTooLarge, depth, maxContextDepth))
	}
	if size := approximateSize(req); size > maxBodyBytes {
		return core.NewVeritasError("pipeline.ValidateRequest", "validation",
			fmt.Errorf("%w: body size %d exceeds %d bytes", core.ErrRequestTooLarge, size, maxBodyBytes))
	}
	return nil
}

// mapDepth recursively measures the deepest nesting of req.Context, the
// only place spec.md §4.1's "context depth <= 8" constraint applies.
func mapDepth(v interface{}, depth int) int {
	switch val := v.(type) {
	case map[string]interface{}:
		max := depth
		for _, child := range val {
			if d := mapDepth(child, depth+1); d > max {
				max = d
			}
		}
		return max
	case []interface{}:
		max := depth
		for _, child := range val {
			if d := mapDepth(child, depth+1); d > max {
				max = d
			}
		}
		return max
	default:
		return depth
	}
}

// approximateSize estimates the wire size of req without a full JSON
// marshal round trip on the hot validation path: query bytes plus a rough
// walk of the context tree. This is intentionally conservative (an
// overestimate is safe; an accurate-to-the-byte count is not required by
// spec.md, which only needs a cap enforced).
func approximateSize(req *core.Request) int {
	size := len(req.Query)
	size += approximateValueSize(req.Context)
	for _, opt := range req.Options {
		size += len(opt.ID) + len(opt.Title) + len(opt.Rationale) + 32
	}
	return size
}

func approximateValueSize(v interface{}) int {
	switch val := v.(type) {
	case string:
		return len(val)
	case map[string]interface{}:
		size := 0
		for k, child := range val {
			size += len(k) + approximateValueSize(child)
		}
		return size
	case []interface{}:
		size := 0
		for _, child := range val {
			size += approximateValueSize(child)
		}
		return size
	default:
		return 8
	}
}

// resolveRequestID returns req.Context["request_id"] if the caller
// supplied one, otherwise a freshly generated token — generated exactly
// once here and propagated unchanged into every stage and into TrustLog
// (spec.md §3 invariant).
func resolveRequestID(req *core.Request) string {
	if v, ok := req.Context["request_id"]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return NewRequestID()
}

// userID extracts context.user_id, defaulting to "anonymous" when absent
// (evaluate_values keys its per-user EMA on this).
func userID(req *core.Request) string {
	if v, ok := req.Context["user_id"]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return "anonymous"
}
