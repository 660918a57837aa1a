package sweep

import (
	"context"

	"github.com/fslongjin/bandsweep/pkg/model"
)

// RetryCoordinator re-runs the whole scope after a partial failure. It never
// re-probes or re-confirms, and never retries on its own.
type RetryCoordinator struct {
	executor *Executor
}

func NewRetryCoordinator(executor *Executor) *RetryCoordinator {
	return &RetryCoordinator{executor: executor}
}

// Retry re-invokes the executor when last has failures. retried is false,
// with no remote call, when there is nothing to retry. The progress total is
// last.Failed.
func (r *RetryCoordinator) Retry(ctx context.Context, last *model.DeleteOutcome, scope model.DeleteScope, band *model.Band, cred *model.Credential, sink ProgressSink) (outcome *model.DeleteOutcome, retried bool, err error) {
	if err := checkRequest(scope, band, cred); err != nil {
		return nil, false, err
	}
	if last == nil || !last.HasFailures() {
		return nil, false, nil
	}
	outcome, err = r.executor.Execute(ctx, ExecuteRequest{
		Scope:         scope,
		Band:          band,
		Credential:    cred,
		ExpectedTotal: last.Failed,
	}, sink)
	if err != nil {
		return nil, true, err
	}
	return outcome, true, nil
}

// Resume re-runs a confirmed deletion whose previous call failed in transit.
// expected is the probed count of that attempt.
func (r *RetryCoordinator) Resume(ctx context.Context, expected int, scope model.DeleteScope, band *model.Band, cred *model.Credential, sink ProgressSink) (*model.DeleteOutcome, error) {
	return r.executor.Execute(ctx, ExecuteRequest{
		Scope:         scope,
		Band:          band,
		Credential:    cred,
		ExpectedTotal: expected,
	}, sink)
}
