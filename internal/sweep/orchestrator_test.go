package sweep

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fslongjin/bandsweep/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingConfirmer struct {
	answer bool
	calls  atomic.Int32
	last   Prompt
}

func (c *countingConfirmer) Confirm(_ context.Context, p Prompt) (bool, error) {
	c.calls.Add(1)
	c.last = p
	return c.answer, nil
}

func newTestOrchestrator(t *testing.T, api *fakeAPI, confirmer Confirmer, opts ...func(*Config)) *Orchestrator {
	t.Helper()
	session := NewAuthSession(NewMemoryStore(testCred), nil)
	_, err := session.Load(context.Background())
	require.NoError(t, err)
	cfg := Config{
		API:           api,
		Session:       session,
		Confirmer:     confirmer,
		Progress:      noProgress{},
		DeleteTimeout: time.Second,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	o := New(cfg)
	require.NoError(t, o.SelectBand(testBand))
	return o
}

func TestSweepTwelveCommentsFullSuccess(t *testing.T) {
	api := &fakeAPI{
		CountFn:  countConst(12),
		DeleteFn: deleteConst(model.DeleteOutcome{Total: 12, Successful: 12}),
	}
	confirmer := &countingConfirmer{answer: true}
	sink := &recordingSink{}
	o := newTestOrchestrator(t, api, confirmer, func(c *Config) { c.Sink = sink })
	require.NoError(t, o.SelectScope(model.AllComments()))

	res, err := o.Sweep(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, res.OperationID)
	assert.Equal(t, 12, res.Count)
	assert.Equal(t, model.OutcomeSuccess, res.Kind())
	assert.Contains(t, confirmer.last.Message, "12")

	snap := o.Snapshot()
	assert.Equal(t, PhaseCompleted, snap.Phase)
	assert.Equal(t, model.OutcomeSuccess, snap.OutcomeKind())
	assert.False(t, snap.CanRetry())
	assert.Nil(t, snap.Progress, "progress is cleared after completion")

	updates, cleared := sink.snapshot()
	assert.Equal(t, []model.ProgressEstimate{{Current: 12, Total: 12}}, updates)
	assert.Equal(t, 1, cleared)

	res, err = o.Retry(context.Background())
	require.NoError(t, err)
	assert.True(t, res.NothingToRetry)
	assert.EqualValues(t, 1, api.deleteCalls.Load())
}

func TestSweepKeywordZeroShortCircuits(t *testing.T) {
	api := &fakeAPI{CountFn: countConst(0)}
	confirmer := &countingConfirmer{answer: true}
	o := newTestOrchestrator(t, api, confirmer)
	scope, err := model.KeywordComments("zzz")
	require.NoError(t, err)
	require.NoError(t, o.SelectScope(scope))

	res, err := o.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Count)
	assert.Equal(t, model.OutcomeNothing, res.Kind())
	assert.Zero(t, confirmer.calls.Load(), "no prompt for zero items")
	assert.Zero(t, api.deleteCalls.Load())

	snap := o.Snapshot()
	assert.Equal(t, PhaseCompleted, snap.Phase)
	assert.Equal(t, model.OutcomeNothing, snap.OutcomeKind())
}

func TestSweepPartialPostsThenRetry(t *testing.T) {
	calls := 0
	var totals []int
	api := &fakeAPI{
		CountFn: countConst(10),
		DeleteFn: func(context.Context, string, string, model.DeleteScope) (*model.DeleteOutcome, error) {
			calls++
			if calls == 1 {
				return &model.DeleteOutcome{Total: 10, Successful: 7, Failed: 3, FailedItems: []model.FailedItem{
					{ItemID: "p1", ErrorMessage: "rate limited"},
					{ItemID: "p2", ErrorMessage: "rate limited"},
					{ItemID: "p3", ErrorMessage: "rate limited"},
				}}, nil
			}
			return &model.DeleteOutcome{Total: 3, Successful: 3}, nil
		},
	}
	confirmer := &countingConfirmer{answer: true}
	o := newTestOrchestrator(t, api, confirmer, func(c *Config) {
		c.Progress = sourceFunc(func(_ context.Context, req ProgressRequest, _ ProgressSink) ProgressRun {
			totals = append(totals, req.Total)
			return stopNoop{}
		})
	})
	require.NoError(t, o.SelectScope(model.AllPosts()))

	res, err := o.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.OutcomePartial, res.Kind())
	assert.Contains(t, confirmer.last.Message, "comments on these posts")
	require.True(t, o.Snapshot().CanRetry())

	res, err = o.Retry(context.Background())
	require.NoError(t, err)
	assert.False(t, res.NothingToRetry)
	assert.Equal(t, model.DeleteOutcome{Total: 3, Successful: 3}, *res.Outcome)

	assert.EqualValues(t, 1, api.countCalls.Load(), "retry does not re-probe")
	assert.EqualValues(t, 1, confirmer.calls.Load(), "retry does not re-confirm")
	assert.Equal(t, []int{10, 3}, totals)

	snap := o.Snapshot()
	assert.Equal(t, model.OutcomeSuccess, snap.OutcomeKind())
	assert.Equal(t, 3, snap.LastOutcome.Total, "retry replaces the previous outcome")
}

func TestSweepTimeout(t *testing.T) {
	var calls atomic.Int32
	var totals []int
	api := &fakeAPI{
		CountFn: countConst(50),
		DeleteFn: func(ctx context.Context, _, _ string, _ model.DeleteScope) (*model.DeleteOutcome, error) {
			if calls.Add(1) == 1 {
				<-ctx.Done()
				return nil, ctx.Err()
			}
			return &model.DeleteOutcome{Total: 50, Successful: 50}, nil
		},
	}
	confirmer := &countingConfirmer{answer: true}
	o := newTestOrchestrator(t, api, confirmer, func(c *Config) {
		c.DeleteTimeout = 20 * time.Millisecond
		c.Progress = sourceFunc(func(_ context.Context, req ProgressRequest, _ ProgressSink) ProgressRun {
			totals = append(totals, req.Total)
			return stopNoop{}
		})
	})
	require.NoError(t, o.SelectScope(model.AllComments()))

	res, err := o.Sweep(context.Background())
	assert.Nil(t, res)
	require.Error(t, err)
	assert.True(t, IsTimeout(err))

	snap := o.Snapshot()
	assert.Equal(t, PhaseIdle, snap.Phase)
	assert.Nil(t, snap.LastOutcome, "no outcome is fabricated after a timeout")
	assert.True(t, IsTimeout(snap.LastError))
	assert.NotNil(t, snap.Band)
	assert.NotNil(t, snap.Scope)
	require.NotNil(t, snap.Interrupted)
	assert.True(t, snap.CanRetry(), "a timed out deletion is offered for retry")
	assert.Equal(t, 50, snap.RetryCount())

	res, err = o.Retry(context.Background())
	require.NoError(t, err)
	assert.False(t, res.NothingToRetry)
	assert.Equal(t, 50, res.Count)
	assert.Equal(t, model.OutcomeSuccess, res.Kind())

	assert.EqualValues(t, 1, api.countCalls.Load(), "retry does not re-probe")
	assert.EqualValues(t, 1, confirmer.calls.Load(), "retry does not re-confirm")
	assert.Equal(t, []int{50, 50}, totals)

	snap = o.Snapshot()
	assert.Equal(t, PhaseCompleted, snap.Phase)
	assert.Nil(t, snap.Interrupted)
	assert.False(t, snap.CanRetry())
}

func TestRetryAfterTimeoutTimesOutAgain(t *testing.T) {
	api := &fakeAPI{
		CountFn: countConst(8),
		DeleteFn: func(ctx context.Context, _, _ string, _ model.DeleteScope) (*model.DeleteOutcome, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	o := newTestOrchestrator(t, api, AlwaysConfirm, func(c *Config) { c.DeleteTimeout = 20 * time.Millisecond })
	require.NoError(t, o.SelectScope(model.AllPosts()))

	_, err := o.Sweep(context.Background())
	require.True(t, IsTimeout(err))
	_, err = o.Retry(context.Background())
	require.True(t, IsTimeout(err))

	snap := o.Snapshot()
	assert.Equal(t, PhaseIdle, snap.Phase)
	assert.True(t, snap.CanRetry(), "still retryable after a second timeout")
	assert.Equal(t, 8, snap.RetryCount())
	assert.EqualValues(t, 1, api.countCalls.Load())
	assert.EqualValues(t, 2, api.deleteCalls.Load())
}

func TestSelectionChangeDropsInterruptedDeletion(t *testing.T) {
	api := &fakeAPI{
		CountFn: countConst(3),
		DeleteFn: func(ctx context.Context, _, _ string, _ model.DeleteScope) (*model.DeleteOutcome, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	o := newTestOrchestrator(t, api, AlwaysConfirm, func(c *Config) { c.DeleteTimeout = 20 * time.Millisecond })
	require.NoError(t, o.SelectScope(model.AllComments()))

	_, err := o.Sweep(context.Background())
	require.True(t, IsTimeout(err))
	require.True(t, o.Snapshot().CanRetry())

	require.NoError(t, o.SelectScope(model.AllPosts()))
	assert.False(t, o.Snapshot().CanRetry())

	res, err := o.Retry(context.Background())
	require.NoError(t, err)
	assert.True(t, res.NothingToRetry)
	assert.EqualValues(t, 1, api.deleteCalls.Load())
}

func TestSweepDeclineKeepsSelection(t *testing.T) {
	api := &fakeAPI{CountFn: countConst(4)}
	o := newTestOrchestrator(t, api, &countingConfirmer{answer: false})
	require.NoError(t, o.SelectScope(model.AllComments()))

	res, err := o.Sweep(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Declined)
	assert.Zero(t, api.deleteCalls.Load())

	snap := o.Snapshot()
	assert.Equal(t, PhaseIdle, snap.Phase)
	assert.Equal(t, testBand.BandKey, snap.Band.BandKey)
	assert.Equal(t, model.ScopeAllComments, snap.Scope.Kind)
	assert.Nil(t, snap.Prompt)
}

func TestSweepEmptyKeywordRejectedBeforeRemoteCall(t *testing.T) {
	api := &fakeAPI{CountFn: countConst(4)}
	o := newTestOrchestrator(t, api, AlwaysConfirm)
	require.NoError(t, o.SelectScope(model.DeleteScope{Kind: model.ScopeKeywordComments, Keyword: "  "}))

	_, err := o.Sweep(context.Background())
	require.Error(t, err)
	assert.True(t, IsValidation(err))
	assert.Zero(t, api.countCalls.Load())
	assert.Equal(t, PhaseIdle, o.Snapshot().Phase)
}

func TestSelectionChangeClearsLastOutcome(t *testing.T) {
	api := &fakeAPI{
		CountFn:  countConst(2),
		DeleteFn: deleteConst(model.DeleteOutcome{Total: 2, Successful: 1, Failed: 1, FailedItems: []model.FailedItem{{ItemID: "c", ErrorMessage: "x"}}}),
	}
	o := newTestOrchestrator(t, api, AlwaysConfirm)
	require.NoError(t, o.SelectScope(model.AllComments()))
	_, err := o.Sweep(context.Background())
	require.NoError(t, err)
	require.True(t, o.Snapshot().CanRetry())

	require.NoError(t, o.SelectScope(model.AllComments()), "re-selecting the same scope is not a change")
	require.True(t, o.Snapshot().CanRetry())

	require.NoError(t, o.SelectScope(model.AllPosts()))
	snap := o.Snapshot()
	assert.Nil(t, snap.LastOutcome)
	assert.Equal(t, PhaseIdle, snap.Phase)

	res, err := o.Retry(context.Background())
	require.NoError(t, err)
	assert.True(t, res.NothingToRetry)
	assert.EqualValues(t, 1, api.deleteCalls.Load())

	require.NoError(t, o.SelectScope(model.AllComments()))
	_, err = o.Sweep(context.Background())
	require.NoError(t, err)
	require.NoError(t, o.SelectBand(model.Band{BandKey: "band-2", Name: "Other"}))
	assert.Nil(t, o.Snapshot().LastOutcome)
}

func TestChangesRefusedWhileExecuting(t *testing.T) {
	entered := make(chan struct{})
	unblock := make(chan struct{})
	api := &fakeAPI{
		CountFn: countConst(1),
		DeleteFn: func(context.Context, string, string, model.DeleteScope) (*model.DeleteOutcome, error) {
			close(entered)
			<-unblock
			return &model.DeleteOutcome{Total: 1, Successful: 1}, nil
		},
	}
	o := newTestOrchestrator(t, api, AlwaysConfirm)
	require.NoError(t, o.SelectScope(model.AllComments()))

	done := make(chan error, 1)
	go func() {
		_, err := o.Sweep(context.Background())
		done <- err
	}()
	<-entered

	assert.Equal(t, PhaseExecuting, o.Snapshot().Phase)
	assert.True(t, IsConflict(o.SelectBand(model.Band{BandKey: "other"})))
	assert.True(t, IsConflict(o.SelectScope(model.AllPosts())))
	assert.True(t, IsConflict(o.Cancel()))
	_, err := o.Sweep(context.Background())
	assert.True(t, IsConflict(err))
	_, err = o.Retry(context.Background())
	assert.True(t, IsConflict(err))
	assert.True(t, IsConflict(o.Session().Replace(context.Background(), &model.Credential{AccessToken: "new", IdentityID: "u2"})))
	assert.True(t, IsConflict(o.Session().Clear(context.Background())))

	close(unblock)
	require.NoError(t, <-done)
	assert.Equal(t, PhaseCompleted, o.Snapshot().Phase)
	assert.Equal(t, "tok", o.Session().Current().AccessToken, "credential untouched")
}

func TestRetryErrorKeepsPreviousOutcome(t *testing.T) {
	calls := 0
	api := &fakeAPI{
		CountFn: countConst(5),
		DeleteFn: func(ctx context.Context, _, _ string, _ model.DeleteScope) (*model.DeleteOutcome, error) {
			calls++
			if calls == 1 {
				return &model.DeleteOutcome{Total: 5, Successful: 0, Failed: 5}, nil
			}
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	o := newTestOrchestrator(t, api, AlwaysConfirm, func(c *Config) { c.DeleteTimeout = 20 * time.Millisecond })
	require.NoError(t, o.SelectScope(model.AllComments()))

	res, err := o.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeFailure, res.Kind(), "full failure is still a qualified success")

	_, err = o.Retry(context.Background())
	assert.True(t, IsTimeout(err))

	snap := o.Snapshot()
	assert.Equal(t, PhaseCompleted, snap.Phase)
	assert.Equal(t, 5, snap.LastOutcome.Failed)
	assert.True(t, snap.CanRetry())
	assert.True(t, IsTimeout(snap.LastError))
}

func TestSweepRequiresCredential(t *testing.T) {
	api := &fakeAPI{CountFn: countConst(1)}
	o := New(Config{API: api, Confirmer: AlwaysConfirm, Progress: noProgress{}})
	require.NoError(t, o.SelectBand(testBand))
	require.NoError(t, o.SelectScope(model.AllComments()))

	_, err := o.Sweep(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.Zero(t, api.countCalls.Load())

	require.NoError(t, o.Session().Replace(context.Background(), testCred))
	api.DeleteFn = deleteConst(model.DeleteOutcome{Total: 1, Successful: 1})
	_, err = o.Sweep(context.Background())
	assert.NoError(t, err)
}
