package pipeline

import "fmt"

// errCastType builds a consistent error for a skip-stage payload of the
// wrong Go type (req.SkipStages values are untyped interface{} per
// core.Request, so every ApplySkip implementation needs this check).
func errCastType(stage, want string, got interface{}) error {
	return fmt.Errorf("pipeline: skip_stages[%s] must be %s, got %T", stage, want, got)
}
