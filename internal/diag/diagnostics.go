package diag

import (
	"errors"
	"sort"
)

// Severity distinguishes failures that exclude an object from informational
// findings that leave the result usable.
type Severity int

const (
	// SeverityError excludes the owning object from the result.
	SeverityError Severity = iota
	// SeverityWarning is reported but does not exclude anything.
	SeverityWarning
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return "unknown"
	}
}

// Diagnostic is a single classified failure.
type Diagnostic struct {
	Severity Severity
	Err      error
}

// Error creates an error-severity diagnostic.
func Error(err error) Diagnostic {
	return Diagnostic{Severity: SeverityError, Err: err}
}

// Warning creates a warning-severity diagnostic.
func Warning(err error) Diagnostic {
	return Diagnostic{Severity: SeverityWarning, Err: err}
}

// Owner returns the id of the object the diagnostic belongs to, or "" for
// diagnostics that are not tied to one object (cycles).
func (d Diagnostic) Owner() string {
	var owned Owned
	if errors.As(d.Err, &owned) {
		return owned.Owner()
	}
	return ""
}

// Diagnostics is an ordered list of diagnostics collected during one pass.
type Diagnostics []Diagnostic

// HasErrors reports whether any entry has error severity.
func (ds Diagnostics) HasErrors() bool {
	for _, d := range ds {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Errs returns the errors of all error-severity entries.
func (ds Diagnostics) Errs() []error {
	return ds.bySeverity(SeverityError)
}

// Warnings returns the errors of all warning-severity entries.
func (ds Diagnostics) Warnings() []error {
	return ds.bySeverity(SeverityWarning)
}

func (ds Diagnostics) bySeverity(s Severity) []error {
	var out []error
	for _, d := range ds {
		if d.Severity == s {
			out = append(out, d.Err)
		}
	}
	return out
}

// ForOwner returns the entries that belong to the given object.
func (ds Diagnostics) ForOwner(id string) Diagnostics {
	var out Diagnostics
	for _, d := range ds {
		if d.Owner() == id {
			out = append(out, d)
		}
	}
	return out
}

// Err joins all error-severity entries into one error, or returns nil.
func (ds Diagnostics) Err() error {
	return errors.Join(ds.Errs()...)
}

// Sort orders entries by severity, owner and message so reports are stable
// across runs.
func (ds Diagnostics) Sort() {
	sort.SliceStable(ds, func(i, j int) bool {
		if ds[i].Severity != ds[j].Severity {
			return ds[i].Severity < ds[j].Severity
		}
		oi, oj := ds[i].Owner(), ds[j].Owner()
		if oi != oj {
			return oi < oj
		}
		return ds[i].Err.Error() < ds[j].Err.Error()
	})
}

// As returns every error in the list that matches the target type T.
func As[T error](ds Diagnostics) []T {
	var out []T
	for _, d := range ds {
		var target T
		if errors.As(d.Err, &target) {
			out = append(out, target)
		}
	}
	return out
}
