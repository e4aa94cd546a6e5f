package orchestrator

import "fmt"

// Step outcomes. Best-effort failures never abort a sequence; they surface
// as warnings on the step result so callers (and tests) can see them.
const (
	OutcomeWritten      = "written"
	OutcomeReplaced     = "replaced"
	OutcomeLinked       = "linked"
	OutcomeLinkFailed   = "link failed"
	OutcomeCertPresent  = "already present"
	OutcomeCertIssued   = "issued"
	OutcomeSelfSigned   = "self-signed"
	OutcomeKeyPreserved = "existing key preserved"
	OutcomeUnavailable  = "unavailable"
	OutcomeReloaded     = "reloaded"
)

// Result describes the outcome of a single orchestrator step.
type Result struct {
	// Outcome is one of the Outcome* constants.
	Outcome string

	// Detail carries step-specific context, e.g. the backup path written
	// by a config replacement.
	Detail string

	// Warnings records best-effort failures that did not abort the step.
	Warnings []string
}

func (r *Result) warnf(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}
