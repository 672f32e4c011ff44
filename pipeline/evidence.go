package pipeline

import (
	"context"
	"sort"

	"github.com/veritasfuji-japan/veritas/core"
)

// InMemoryMemory is the default core.Memory implementation: a fixed set of
// seeded hits returned regardless of query, sufficient to drive the
// pipeline end-to-end in tests and in deployments with no real vector
// store wired up (spec.md §1 "memory/vector store" is out of core scope,
// modeled as a narrow interface per §9).
type InMemoryMemory struct {
	Hits []core.MemoryHit
}

// NewInMemoryMemory builds an InMemoryMemory seeded with hits.
func NewInMemoryMemory(hits ...core.MemoryHit) *InMemoryMemory {
	return &InMemoryMemory{Hits: hits}
}

// Recall returns up to limit seeded hits, highest confidence first.
func (m *InMemoryMemory) Recall(_ context.Context, _ string, limit int) ([]core.MemoryHit, error) {
	out := make([]core.MemoryHit, len(m.Hits))
	copy(out, m.Hits)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

// gatherEvidenceStage is the best-effort "gather_evidence" stage (spec.md
// §4.2). It recalls from core.Services.Memory, enriches any world-model
// hint from core.Services.World, and ranks the merged set by confidence
// descending with a lexicographic source tie-break, capped at
// cfg.Pipeline.MaxEvidenceItems. A Memory collaborator that is unavailable
// degrades to an empty evidence set rather than failing the stage — an
// empty evidence set is itself meaningful input to FUJI's evidence-gate
// layer (spec.md §4.3.4), not an error condition.
var gatherEvidenceStage = Stage{
	Name:     "gather_evidence",
	Critical: false,
	Run: func(ctx context.Context, req *core.Request, state *RequestState, cfg *core.Config, svc core.Services) StageResult {
		max := cfg.Pipeline.MaxEvidenceItems
		if max <= 0 {
			max = core.MaxEvidenceItems
		}

		var items []core.EvidenceItem
		if mem, ok := svc.Memory.Value(); ok {
			hits, err := mem.Recall(ctx, req.Query, max)
			if err != nil {
				state.addCritique("", core.Critique{
					Issue:    "stage_failure",
					Severity: core.SeverityLow,
					Fix:      "check the memory collaborator's availability",
					Details:  map[string]interface{}{"stage": "gather_evidence", "error": err.Error()},
				}, cfg.Pipeline.MaxCritiques)
			} else {
				for _, h := range hits {
					items = append(items, core.EvidenceItem{
						Source: h.Source, Text: h.Text, Confidence: h.Confidence, Kind: core.EvidenceKind(h.Kind),
					})
				}
			}
		}

		if world, ok := svc.World.Value(); ok {
			if v, found := world.Read(req.Query); found {
				if text, ok := v.(string); ok && text != "" {
					items = append(items, core.EvidenceItem{
						Source: "world", Text: text, Confidence: 0.5, Kind: core.EvidenceWorld,
					})
				}
			}
		}

		sort.SliceStable(items, func(i, j int) bool {
			if items[i].Confidence != items[j].Confidence {
				return items[i].Confidence > items[j].Confidence
			}
			return items[i].Source < items[j].Source
		})

		if len(items) > max {
			items = items[:max]
		}
		state.Evidence = items
		return Update()
	},
	ApplySkip: func(state *RequestState, raw interface{}) error {
		items, err := castEvidence(raw)
		if err != nil {
			return err
		}
		state.Evidence = items
		return nil
	},
}

func castEvidence(raw interface{}) ([]core.EvidenceItem, error) {
	switch v := raw.(type) {
	case []core.EvidenceItem:
		return v, nil
	case nil:
		return nil, nil
	default:
		return nil, errCastType("gather_evidence", "[]core.EvidenceItem", v)
	}
}
