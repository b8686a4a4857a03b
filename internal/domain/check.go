package domain

import "time"

// CheckKind identifies the type of a pre-flight dependency check.
type CheckKind string

// Supported check kinds.
const (
	// CheckKindExecutable verifies a tool is on PATH.
	CheckKindExecutable CheckKind = "executable"

	// CheckKindService verifies an HTTP health endpoint responds.
	CheckKindService CheckKind = "service"

	// CheckKindWritableDir verifies a directory exists and is writable.
	CheckKindWritableDir CheckKind = "writable_dir"
)

// Check describes one pre-flight dependency requirement.
type Check struct {
	// Name identifies the check in reports (e.g. "git", "mcp-server").
	Name string `json:"name" yaml:"name"`

	// Kind selects how the check is performed.
	Kind CheckKind `json:"kind" yaml:"kind"`

	// Target is the executable name, health URL, or directory path.
	Target string `json:"target" yaml:"target"`

	// Required marks the check as gating: a required failure aborts
	// startup, an optional failure is a warning only.
	Required bool `json:"required" yaml:"required"`
}

// CheckResult is the outcome of a single pre-flight check.
type CheckResult struct {
	// Check is the definition that was evaluated.
	Check Check `json:"check"`

	// Passed reports whether the check succeeded.
	Passed bool `json:"passed"`

	// Detail carries the failure reason or a short success note.
	Detail string `json:"detail,omitempty"`

	// Duration is how long the check took.
	Duration time.Duration `json:"duration"`
}

// CheckReport aggregates the results of one pre-flight run.
// A report is never partial: every configured check appears exactly once.
type CheckReport struct {
	// Results holds one entry per configured check, in manifest order.
	Results []CheckResult `json:"results"`

	// RanAt is when the run started.
	RanAt time.Time `json:"ran_at"`
}

// Ok reports whether every required check passed. Optional failures do not
// affect the outcome.
func (r *CheckReport) Ok() bool {
	for _, res := range r.Results {
		if res.Check.Required && !res.Passed {
			return false
		}
	}
	return true
}

// FailedRequired returns the names of required checks that failed.
func (r *CheckReport) FailedRequired() []string {
	var names []string
	for _, res := range r.Results {
		if res.Check.Required && !res.Passed {
			names = append(names, res.Check.Name)
		}
	}
	return names
}
