package sweep

import "github.com/fslongjin/bandsweep/pkg/model"

// Phase is the orchestrator's position in the workflow.
type Phase string

const (
	PhaseIdle                 Phase = "idle"
	PhaseCounting             Phase = "counting"
	PhaseAwaitingConfirmation Phase = "awaiting-confirmation"
	PhaseExecuting            Phase = "executing"
	PhaseCompleted            Phase = "completed"
)

// Busy reports whether a remote call or a prompt is pending.
func (p Phase) Busy() bool {
	return p == PhaseCounting || p == PhaseAwaitingConfirmation || p == PhaseExecuting
}

// Snapshot is a read-only view of the orchestrator.
type Snapshot struct {
	Phase       Phase
	Band        *model.Band
	Scope       *model.DeleteScope
	Count       int
	Prompt      *Prompt
	Progress    *model.ProgressEstimate
	LastOutcome *model.DeleteOutcome
	LastError   error
	// Interrupted is set when a confirmed deletion call failed in transit.
	Interrupted *Interrupted
}

// Interrupted records a confirmed deletion whose result never arrived. The
// server may or may not have finished it; Retry re-runs the same scope.
type Interrupted struct {
	Count int
	Err   error
}

// OutcomeKind is the Completed sub-state, or "" outside Completed.
func (s Snapshot) OutcomeKind() model.OutcomeKind {
	if s.Phase != PhaseCompleted || s.LastOutcome == nil {
		return ""
	}
	return s.LastOutcome.Kind()
}

// CanRetry reports whether Retry would call the remote API.
func (s Snapshot) CanRetry() bool {
	if s.Phase == PhaseIdle && s.Interrupted != nil {
		return true
	}
	return s.Phase == PhaseCompleted && s.LastOutcome != nil && s.LastOutcome.HasFailures()
}

// RetryCount is the number of items a retry expects to handle.
func (s Snapshot) RetryCount() int {
	if s.Phase == PhaseIdle && s.Interrupted != nil {
		return s.Interrupted.Count
	}
	if s.LastOutcome != nil {
		return s.LastOutcome.Failed
	}
	return 0
}

// Result is what one Sweep or Retry call produced.
type Result struct {
	OperationID    string
	Count          int
	Declined       bool
	NothingToRetry bool
	Outcome        *model.DeleteOutcome
}

// Kind classifies the outcome, or "" when no deletion ran.
func (r *Result) Kind() model.OutcomeKind {
	if r == nil || r.Outcome == nil {
		return ""
	}
	return r.Outcome.Kind()
}
