package sweep

import (
	"context"
	"testing"
	"time"

	"github.com/fslongjin/bandsweep/internal/lifecycle"
	"github.com/fslongjin/bandsweep/pkg/model"
	bandsweep "github.com/fslongjin/bandsweep/sdk/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execReq(scope model.DeleteScope, total int) ExecuteRequest {
	b := testBand
	return ExecuteRequest{Scope: scope, Band: &b, Credential: testCred, ExpectedTotal: total}
}

func TestExecuteSnapsProgressThenClears(t *testing.T) {
	failed := []model.FailedItem{{ItemID: "c1", ErrorMessage: "rate limited"}, {ItemID: "c2", ErrorMessage: "rate limited"}}
	api := &fakeAPI{DeleteFn: deleteConst(model.DeleteOutcome{Total: 12, Successful: 10, Failed: 2, FailedItems: failed})}
	sink := &recordingSink{}
	e := NewExecutor(api, &RandomEstimator{Interval: time.Hour}, nil, time.Second)

	outcome, err := e.Execute(context.Background(), execReq(model.AllComments(), 12), sink)
	require.NoError(t, err)
	assert.Equal(t, failed, outcome.FailedItems, "failed items are attached verbatim")

	updates, cleared := sink.snapshot()
	require.Len(t, updates, 2)
	assert.Equal(t, model.ProgressEstimate{Current: 0, Total: 12}, updates[0])
	assert.Equal(t, model.ProgressEstimate{Current: 12, Total: 12}, updates[1])
	assert.Equal(t, 1, cleared)
	assert.False(t, e.InFlight().Busy())
}

func TestExecuteConflictLeavesFirstCallUndisturbed(t *testing.T) {
	entered := make(chan struct{})
	unblock := make(chan struct{})
	api := &fakeAPI{DeleteFn: func(context.Context, string, string, model.DeleteScope) (*model.DeleteOutcome, error) {
		close(entered)
		<-unblock
		return &model.DeleteOutcome{Total: 1, Successful: 1}, nil
	}}
	e := NewExecutor(api, noProgress{}, lifecycle.NewTracker(), time.Second)

	type res struct {
		o   *model.DeleteOutcome
		err error
	}
	first := make(chan res, 1)
	go func() {
		o, err := e.Execute(context.Background(), execReq(model.AllComments(), 1), nil)
		first <- res{o, err}
	}()
	<-entered

	_, err := e.Execute(context.Background(), execReq(model.AllComments(), 1), nil)
	assert.True(t, IsConflict(err))
	_, err = e.Execute(context.Background(), execReq(model.AllPosts(), 1), nil)
	assert.True(t, IsConflict(err), "never two executor calls for the same band")

	close(unblock)
	r := <-first
	require.NoError(t, r.err)
	assert.Equal(t, 1, r.o.Successful)
	assert.EqualValues(t, 1, api.deleteCalls.Load())
}

func TestExecuteTimeout(t *testing.T) {
	api := &fakeAPI{DeleteFn: func(ctx context.Context, _, _ string, _ model.DeleteScope) (*model.DeleteOutcome, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	sink := &recordingSink{}
	e := NewExecutor(api, noProgress{}, nil, 20*time.Millisecond)

	outcome, err := e.Execute(context.Background(), execReq(model.AllComments(), 4), sink)
	assert.Nil(t, outcome)
	require.Error(t, err)
	assert.True(t, IsTimeout(err))
	assert.Contains(t, err.Error(), "timed out")

	updates, cleared := sink.snapshot()
	assert.Empty(t, updates, "no completion snap on failure")
	assert.Equal(t, 1, cleared)
}

func TestExecuteRejectsBrokenInvariant(t *testing.T) {
	api := &fakeAPI{DeleteFn: deleteConst(model.DeleteOutcome{Total: 5, Successful: 3, Failed: 1})}
	_, err := NewExecutor(api, noProgress{}, nil, time.Second).Execute(context.Background(), execReq(model.AllPosts(), 5), nil)
	require.Error(t, err)
	assert.True(t, IsTransport(err))
	assert.ErrorIs(t, err, model.ErrOutcomeInvariant)
}

func TestExecuteStructuredFailureIsRemote(t *testing.T) {
	api := &fakeAPI{DeleteFn: func(context.Context, string, string, model.DeleteScope) (*model.DeleteOutcome, error) {
		return nil, &bandsweep.APIError{StatusCode: 403, Message: "not a band admin", Structured: true}
	}}
	_, err := NewExecutor(api, noProgress{}, nil, time.Second).Execute(context.Background(), execReq(model.AllComments(), 2), nil)
	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, "not a band admin", remote.Error())
}

func TestExecuteRejectsInvalidRequest(t *testing.T) {
	api := &fakeAPI{DeleteFn: deleteConst(model.DeleteOutcome{})}
	e := NewExecutor(api, noProgress{}, nil, time.Second)
	_, err := e.Execute(context.Background(), execReq(model.DeleteScope{Kind: model.ScopeKeywordComments}, 1), nil)
	assert.True(t, IsValidation(err))
	assert.Zero(t, api.deleteCalls.Load())
}

func TestRetryCoordinator(t *testing.T) {
	var gotTotal int
	progress := sourceFunc(func(_ context.Context, req ProgressRequest, _ ProgressSink) ProgressRun {
		gotTotal = req.Total
		return stopNoop{}
	})
	api := &fakeAPI{DeleteFn: deleteConst(model.DeleteOutcome{Total: 3, Successful: 3})}
	r := NewRetryCoordinator(NewExecutor(api, progress, nil, time.Second))
	b := testBand

	_, retried, err := r.Retry(context.Background(), nil, model.AllPosts(), &b, testCred, nil)
	require.NoError(t, err)
	assert.False(t, retried)

	_, retried, err = r.Retry(context.Background(), &model.DeleteOutcome{Total: 4, Successful: 4}, model.AllPosts(), &b, testCred, nil)
	require.NoError(t, err)
	assert.False(t, retried)
	assert.Zero(t, api.deleteCalls.Load())

	outcome, retried, err := r.Retry(context.Background(), &model.DeleteOutcome{Total: 10, Successful: 7, Failed: 3}, model.AllPosts(), &b, testCred, nil)
	require.NoError(t, err)
	assert.True(t, retried)
	assert.Equal(t, 3, gotTotal, "retry progress total is the previous failed count")
	assert.Equal(t, 3, outcome.Successful)
}
