package sweep

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/fslongjin/bandsweep/pkg/model"
)

type fakeAPI struct {
	CountFn  func(ctx context.Context, token, bandKey string, scope model.DeleteScope) (int, error)
	DeleteFn func(ctx context.Context, token, bandKey string, scope model.DeleteScope) (*model.DeleteOutcome, error)

	countCalls  atomic.Int32
	deleteCalls atomic.Int32
}

func (f *fakeAPI) Count(ctx context.Context, token, bandKey string, scope model.DeleteScope) (int, error) {
	f.countCalls.Add(1)
	return f.CountFn(ctx, token, bandKey, scope)
}

func (f *fakeAPI) Delete(ctx context.Context, token, bandKey string, scope model.DeleteScope) (*model.DeleteOutcome, error) {
	f.deleteCalls.Add(1)
	return f.DeleteFn(ctx, token, bandKey, scope)
}

type recordingSink struct {
	mu      sync.Mutex
	updates []model.ProgressEstimate
	cleared int
}

func (r *recordingSink) Update(est model.ProgressEstimate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, est)
}

func (r *recordingSink) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cleared++
}

func (r *recordingSink) snapshot() ([]model.ProgressEstimate, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.ProgressEstimate, len(r.updates))
	copy(out, r.updates)
	return out, r.cleared
}

// noProgress never emits intermediate estimates.
type noProgress struct{}

func (noProgress) Begin(context.Context, ProgressRequest, ProgressSink) ProgressRun { return stopNoop{} }

type stopNoop struct{}

func (stopNoop) Stop() {}

var (
	testCred = &model.Credential{AccessToken: "tok", IdentityID: "u1", DisplayName: "Alice"}
	testBand = model.Band{BandKey: "band-1", Name: "Hikers", MemberCount: 5}
)

func countConst(n int) func(context.Context, string, string, model.DeleteScope) (int, error) {
	return func(context.Context, string, string, model.DeleteScope) (int, error) { return n, nil }
}

func deleteConst(o model.DeleteOutcome) func(context.Context, string, string, model.DeleteScope) (*model.DeleteOutcome, error) {
	return func(context.Context, string, string, model.DeleteScope) (*model.DeleteOutcome, error) {
		c := o.Clone()
		return &c, nil
	}
}
