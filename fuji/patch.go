package fuji

import "github.com/veritasfuji-japan/veritas/core"

// ApplyPatches applies a sequence of Patch values to a CandidateOption,
// producing a modified copy. Each Patch op is defined so that applying the
// same patch twice yields the same result as applying it once (spec.md
// §4.3 invariant "Modifications MUST be a sequence of idempotent
// patches"), grounded on the general decision+modification contract shape
// of the retrieval pack's Mindburn-Labs-helm governance module.
//
//   - PatchRedact sets the field at Path to a fixed redaction marker:
//     redacting an already-redacted field is a no-op change.
//   - PatchReplace sets the field at Path to Value outright: replacing with
//     the same Value twice is trivially idempotent.
func ApplyPatches(option core.CandidateOption, patches []Patch) core.CandidateOption {
	out := option
	for _, p := range patches {
		out = applyOne(out, p)
	}
	return out
}

const redactionMarker = "[REDACTED]"

func applyOne(o core.CandidateOption, p Patch) core.CandidateOption {
	switch p.Op {
	case PatchRedact:
		switch p.Path {
		case "title":
			o.Title = redactionMarker
		case "rationale":
			o.Rationale = redactionMarker
		}
	case PatchReplace:
		switch p.Path {
		case "title":
			o.Title = p.Value
		case "rationale":
			o.Rationale = p.Value
		}
	}
	return o
}

// Idempotent reports whether applying patches to option twice produces the
// same result as applying them once — the property spec.md §8 tests
// directly.
func Idempotent(option core.CandidateOption, patches []Patch) bool {
	once := ApplyPatches(option, patches)
	twice := ApplyPatches(once, patches)
	return once == twice
}
