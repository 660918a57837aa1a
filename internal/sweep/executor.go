package sweep

import (
	"context"
	"time"

	"github.com/fslongjin/bandsweep/internal/lifecycle"
	"github.com/fslongjin/bandsweep/internal/logx"
	"github.com/fslongjin/bandsweep/internal/security"
	"github.com/fslongjin/bandsweep/pkg/model"
)

// DefaultDeleteTimeout bounds the wait on one remote deletion.
const DefaultDeleteTimeout = 2 * time.Minute

// ExecuteRequest is one deletion call. ExpectedTotal seeds the progress
// estimate: the probed count, or the failed count on retry.
type ExecuteRequest struct {
	Scope         model.DeleteScope
	Band          *model.Band
	Credential    *model.Credential
	ExpectedTotal int
}

// Executor runs the remote deletion with a single in-flight guard per band,
// drives progress while waiting, and classifies the result.
type Executor struct {
	api      ContentAPI
	progress ProgressSource
	inflight *lifecycle.Tracker
	timeout  time.Duration
}

func NewExecutor(api ContentAPI, progress ProgressSource, inflight *lifecycle.Tracker, timeout time.Duration) *Executor {
	if progress == nil {
		progress = NewRandomEstimator(DefaultProgressInterval)
	}
	if inflight == nil {
		inflight = lifecycle.NewTracker()
	}
	if timeout <= 0 {
		timeout = DefaultDeleteTimeout
	}
	return &Executor{api: api, progress: progress, inflight: inflight, timeout: timeout}
}

// InFlight exposes the guard so the auth session can refuse credential swaps.
func (e *Executor) InFlight() *lifecycle.Tracker {
	return e.inflight
}

// Execute performs the deletion. Failed items are attached verbatim. A
// second call for a band already in flight gets ConflictError and does not
// disturb the first.
func (e *Executor) Execute(ctx context.Context, req ExecuteRequest, sink ProgressSink) (*model.DeleteOutcome, error) {
	if err := checkRequest(req.Scope, req.Band, req.Credential); err != nil {
		return nil, err
	}
	if sink == nil {
		sink = nopSink{}
	}

	release, ok := e.inflight.TryAcquire(req.Band.BandKey)
	if !ok {
		return nil, &ConflictError{
			Resource: "band " + req.Band.BandKey,
			Message:  "a deletion for this band is already in flight",
		}
	}
	defer release()

	logger := logx.WithComponent(ctx, "executor")
	logger.Info("deletion started",
		"band_key", req.Band.BandKey,
		"scope", req.Scope.Key(),
		"expected_total", req.ExpectedTotal,
		"token_fp", security.Fingerprint(req.Credential.AccessToken),
	)
	start := time.Now()

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	run := e.progress.Begin(callCtx, ProgressRequest{
		AccessToken: req.Credential.AccessToken,
		BandKey:     req.Band.BandKey,
		Scope:       req.Scope,
		Total:       req.ExpectedTotal,
	}, sink)
	outcome, err := e.api.Delete(callCtx, req.Credential.AccessToken, req.Band.BandKey, req.Scope)
	run.Stop()
	defer sink.Clear()

	if err != nil {
		classified := classifyDelete(err)
		logger.Warn("deletion failed",
			"band_key", req.Band.BandKey,
			"scope", req.Scope.Key(),
			"timeout", IsTimeout(classified),
			"elapsed_ms", time.Since(start).Milliseconds(),
			"error", err,
		)
		return nil, classified
	}
	if outcome == nil {
		return nil, &TransportError{Op: "delete", Message: "empty result"}
	}
	if err := outcome.Validate(); err != nil {
		logger.Warn("malformed deletion result", "band_key", req.Band.BandKey, "error", err)
		return nil, &TransportError{Op: "delete", Message: "malformed result", Err: err}
	}

	sink.Update(model.ProgressEstimate{Current: req.ExpectedTotal, Total: req.ExpectedTotal})
	logger.Info("deletion finished",
		"band_key", req.Band.BandKey,
		"scope", req.Scope.Key(),
		"total", outcome.Total,
		"successful", outcome.Successful,
		"failed", outcome.Failed,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	result := outcome.Clone()
	return &result, nil
}
