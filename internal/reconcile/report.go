package reconcile

import (
	"sort"

	"github.com/specialistvlad/resgraph/internal/diag"
)

// Report describes the outcome of one reconciliation pass.
type Report struct {
	Pass         uint64
	ChangedFiles []string
	// Affected lists the objects the pass considered for rebuilding.
	Affected []string
	Added    []string
	Replaced []string
	Removed  []string
	// Retained lists objects deleted from the scene but kept alive because
	// an object that failed to rebuild still points at them.
	Retained       []string
	Failed         []string
	ClonesCreated  []string
	ClonesReleased []string
	Diagnostics    diag.Diagnostics
}

// Changed returns the ids whose identity or state changed in the pass.
func (r *Report) Changed() []string {
	if r == nil {
		return nil
	}
	seen := make(map[string]struct{})
	var out []string
	for _, group := range [][]string{r.Added, r.Replaced, r.Removed, r.ClonesCreated, r.ClonesReleased} {
		for _, id := range group {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// Empty reports whether the pass changed nothing and found no problems.
func (r *Report) Empty() bool {
	return len(r.Changed()) == 0 && len(r.Failed) == 0 && len(r.Diagnostics) == 0
}
