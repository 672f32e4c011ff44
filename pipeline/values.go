package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/veritasfuji-japan/veritas/canon"
	"github.com/veritasfuji-japan/veritas/core"
)

// emaAlpha is evaluate_values's fixed smoothing factor (spec.md §4.2 "ema is
// an exponential moving average with α=0.1 of total").
const emaAlpha = 0.1

// ValueStatsStore persists the per-user EMA that evaluate_values carries
// across calls (spec.md §4.2 "persisted per-user across calls"). It is not
// part of core.Services because it is internal bookkeeping for a single
// stage, not an external collaborator the rest of the pipeline shares.
type ValueStatsStore interface {
	Load(ctx context.Context, userID string) (ema float64, ok bool, err error)
	Save(ctx context.Context, userID string, ema float64) error
}

// InMemoryValueStats is the default ValueStatsStore: EMA state lives only
// for the process lifetime, adequate for tests and single-node deployments
// without a shared log directory.
type InMemoryValueStats struct {
	mu   sync.Mutex
	data map[string]float64
}

// NewInMemoryValueStats builds an empty InMemoryValueStats.
func NewInMemoryValueStats() *InMemoryValueStats {
	return &InMemoryValueStats{data: make(map[string]float64)}
}

func (s *InMemoryValueStats) Load(_ context.Context, userID string) (float64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[userID]
	return v, ok, nil
}

func (s *InMemoryValueStats) Save(_ context.Context, userID string, ema float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[userID] = ema
	return nil
}

// FileValueStatsStore persists each user's EMA to
// <dir>/value_stats.<user>.json via write-temp → fsync → rename, the same
// durable-write pattern TrustLog's mirror uses (canon.AtomicWriteFile).
type FileValueStatsStore struct {
	Dir string
}

// NewFileValueStatsStore builds a FileValueStatsStore rooted at dir.
func NewFileValueStatsStore(dir string) *FileValueStatsStore {
	return &FileValueStatsStore{Dir: dir}
}

type valueStatsFile struct {
	EMA float64 `json:"ema"`
}

func (s *FileValueStatsStore) path(userID string) string {
	return filepath.Join(s.Dir, "value_stats."+sanitizeUserID(userID)+".json")
}

func sanitizeUserID(userID string) string {
	out := make([]rune, 0, len(userID))
	for _, r := range userID {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	if len(out) == 0 {
		return "anonymous"
	}
	return string(out)
}

func (s *FileValueStatsStore) Load(_ context.Context, userID string) (float64, bool, error) {
	data, err := os.ReadFile(s.path(userID))
	if os.IsNotExist(err) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	var f valueStatsFile
	if err := json.Unmarshal(data, &f); err != nil {
		return 0, false, err
	}
	return f.EMA, true, nil
}

func (s *FileValueStatsStore) Save(_ context.Context, userID string, ema float64) error {
	data, err := canon.Marshal(valueStatsFile{EMA: ema})
	if err != nil {
		return err
	}
	return canon.AtomicWriteFile(s.path(userID), data, 0o644)
}

// newEvaluateValuesStage builds the best-effort "evaluate_values" stage
// (spec.md §4.2), closing over the store the orchestrator was configured
// with so the stage's Run signature stays uniform across all ten stages.
func newEvaluateValuesStage(store ValueStatsStore) Stage {
	return Stage{
		Name:     "evaluate_values",
		Critical: false,
		Run: func(ctx context.Context, req *core.Request, state *RequestState, _ *core.Config, _ core.Services) StageResult {
			total, factors := computeValueFactors(state)
			uid := userID(req)

			prevEMA, ok, err := store.Load(ctx, uid)
			if err != nil {
				ok = false
			}
			ema := total
			if ok {
				ema = emaAlpha*total + (1-emaAlpha)*prevEMA
			}
			_ = store.Save(ctx, uid, ema)

			state.Values = &core.ValueResult{Total: total, Factors: factors, EMA: ema}
			return Update()
		},
		ApplySkip: func(state *RequestState, raw interface{}) error {
			v, err := castValueResult(raw)
			if err != nil {
				return err
			}
			state.Values = v
			return nil
		},
	}
}

// computeValueFactors derives evaluate_values's factors from the chosen
// option and the critique set: value rises with score, falls with risk,
// complexity, and blocking critiques. Latitude-preserving per spec.md §4.2;
// grounded on run_critique's own thresholds so both stages agree on what
// "high risk"/"excessive complexity" mean.
func computeValueFactors(state *RequestState) (float64, map[string]float64) {
	var chosen core.CandidateOption
	if state.Debate != nil && state.Debate.Chosen != nil {
		chosen = *state.Debate.Chosen
	}

	scoreFactor := chosen.ScoreOrZero()
	riskFactor := 1 - chosen.RiskOrZero()
	complexityFactor := 1 - clamp01(chosen.ComplexityOrZero()/10)

	blockers := 0
	for _, c := range state.Critiques {
		if c.IsBlocker() {
			blockers++
		}
	}
	critiqueFactor := 1 - clamp01(float64(blockers)/4)

	factors := map[string]float64{
		"score":      clamp01(scoreFactor),
		"risk":       clamp01(riskFactor),
		"complexity": clamp01(complexityFactor),
		"critique":   clamp01(critiqueFactor),
	}

	total := (factors["score"] + factors["risk"] + factors["complexity"] + factors["critique"]) / 4
	return clamp01(total), factors
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func castValueResult(raw interface{}) (*core.ValueResult, error) {
	switch v := raw.(type) {
	case *core.ValueResult:
		return v, nil
	case nil:
		return nil, nil
	default:
		return nil, errCastType("evaluate_values", "*core.ValueResult", v)
	}
}
