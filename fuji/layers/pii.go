package layers

import (
	"context"
	"regexp"

	"github.com/veritasfuji-japan/veritas/fuji"
)

// PIIMatch is one confirmed personally-identifying match a Detector finds
// in a piece of text.
type PIIMatch struct {
	Kind       string
	Path       string
	Confidence float64
}

// Detector finds PII in text. The default regexDetector below covers the
// common structured forms (email, phone, looks-like-SSN); nothing in the
// retrieval pack ships a dedicated PII scanner, so this stays on stdlib
// regexp per DESIGN.md's justified-stdlib-use policy.
type Detector interface {
	Detect(path, text string) []PIIMatch
}

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phonePattern = regexp.MustCompile(`\b(?:\+?\d{1,2}[\s.\-]?)?\(?\d{3}\)?[\s.\-]?\d{3}[\s.\-]?\d{4}\b`)
	ssnPattern   = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)
)

// regexDetector is the built-in Detector.
type regexDetector struct{}

func (regexDetector) Detect(path, text string) []PIIMatch {
	var matches []PIIMatch
	if emailPattern.MatchString(text) {
		matches = append(matches, PIIMatch{Kind: "email", Path: path, Confidence: 0.95})
	}
	if ssnPattern.MatchString(text) {
		matches = append(matches, PIIMatch{Kind: "ssn", Path: path, Confidence: 0.97})
	}
	if phonePattern.MatchString(text) {
		matches = append(matches, PIIMatch{Kind: "phone", Path: path, Confidence: 0.80})
	}
	return matches
}

// DefaultDetector returns the built-in regex-based Detector.
func DefaultDetector() Detector { return regexDetector{} }

const defaultPIIConfidenceThreshold = 0.85

// PII is the layer-5 "PII layer" (spec.md §4.3.5): proposes redaction
// patches for confirmed PII at or above ConfidenceThreshold, leaving
// lower-confidence matches unflagged rather than guessing.
type PII struct {
	Detector            Detector
	ConfidenceThreshold float64
}

// NewPII builds a PII layer, defaulting to DefaultDetector and the
// spec's 0.85 confidence floor.
func NewPII(detector Detector, confidenceThreshold float64) *PII {
	if detector == nil {
		detector = DefaultDetector()
	}
	if confidenceThreshold <= 0 {
		confidenceThreshold = defaultPIIConfidenceThreshold
	}
	return &PII{Detector: detector, ConfidenceThreshold: confidenceThreshold}
}

func (p *PII) Name() string { return "pii" }

func (p *PII) Evaluate(_ context.Context, in fuji.Input, _ fuji.Config) fuji.LayerOutcome {
	type field struct{ path, text string }
	fields := []field{{"query", in.Query}}
	if in.Candidate != nil {
		fields = append(fields, field{"title", in.Candidate.Title}, field{"rationale", in.Candidate.Rationale})
	}

	var violations []fuji.ViolationTag
	var patches []fuji.Patch
	status := fuji.StatusAllow

	for _, f := range fields {
		path, text := f.path, f.text
		for _, m := range p.Detector.Detect(path, text) {
			if m.Confidence < p.ConfidenceThreshold {
				continue
			}
			violations = append(violations, fuji.ViolationTag{
				Layer: "pii", Code: "pii_" + m.Kind, Detail: "confirmed " + m.Kind + " in " + path,
			})
			if path == "title" || path == "rationale" {
				patches = append(patches, fuji.Patch{Op: fuji.PatchRedact, Path: path})
			}
			status = fuji.Stricter(status, fuji.StatusWarn)
		}
	}

	return fuji.LayerOutcome{
		Layer:         "pii",
		Proposed:      status,
		Violations:    violations,
		Modifications: patches,
	}
}
