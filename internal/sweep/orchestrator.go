package sweep

import (
	"context"
	"sync"
	"time"

	"github.com/fslongjin/bandsweep/internal/lifecycle"
	"github.com/fslongjin/bandsweep/internal/logx"
	"github.com/fslongjin/bandsweep/pkg/model"
)

// Config wires an Orchestrator.
type Config struct {
	API           ContentAPI
	Session       *AuthSession
	Confirmer     Confirmer
	Progress      ProgressSource
	Sink          ProgressSink
	InFlight      *lifecycle.Tracker
	CountTimeout  time.Duration
	DeleteTimeout time.Duration
}

// Orchestrator drives Idle -> Counting -> AwaitingConfirmation -> Executing
// -> Completed for one session. Session state is exactly the selected band,
// the scope and the last outcome.
type Orchestrator struct {
	session  *AuthSession
	prober   *Prober
	gate     *Gate
	executor *Executor
	retry    *RetryCoordinator
	sink     ProgressSink

	mu          sync.Mutex
	phase       Phase
	band        *model.Band
	scope       *model.DeleteScope
	count       int
	prompt      *Prompt
	progress    *model.ProgressEstimate
	lastOutcome *model.DeleteOutcome
	lastErr     error
	interrupted *Interrupted
}

func New(cfg Config) *Orchestrator {
	inflight := cfg.InFlight
	if inflight == nil && cfg.Session != nil {
		inflight = cfg.Session.inflight
	}
	if inflight == nil {
		inflight = lifecycle.NewTracker()
	}
	session := cfg.Session
	if session == nil {
		session = NewAuthSession(NewMemoryStore(nil), inflight)
	}
	sink := cfg.Sink
	if sink == nil {
		sink = nopSink{}
	}
	executor := NewExecutor(cfg.API, cfg.Progress, inflight, cfg.DeleteTimeout)
	return &Orchestrator{
		session:  session,
		prober:   NewProber(cfg.API, cfg.CountTimeout),
		gate:     NewGate(cfg.Confirmer),
		executor: executor,
		retry:    NewRetryCoordinator(executor),
		sink:     sink,
		phase:    PhaseIdle,
	}
}

func (o *Orchestrator) Session() *AuthSession {
	return o.session
}

// SelectBand makes band the single selected band and returns to Idle.
// Refused while a call or prompt is pending.
func (o *Orchestrator) SelectBand(band model.Band) error {
	if band.BandKey == "" {
		return validationErr(ErrNoBand)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.phase.Busy() {
		return o.busyErr()
	}
	if o.band != nil && o.band.BandKey == band.BandKey {
		return nil
	}
	o.lastOutcome = nil
	b := band
	o.band = &b
	o.resetLocked()
	return nil
}

// SelectScope sets the active scope and returns to Idle. A keyword scope
// with an empty keyword is accepted here and rejected by Sweep.
func (o *Orchestrator) SelectScope(scope model.DeleteScope) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.phase.Busy() {
		return o.busyErr()
	}
	if o.scope != nil && o.scope.Kind == scope.Kind && o.scope.Keyword == scope.Keyword {
		return nil
	}
	o.lastOutcome = nil
	s := scope
	o.scope = &s
	o.resetLocked()
	return nil
}

// Cancel returns to Idle, discarding the displayed outcome and error.
// There is no mid-flight cancellation.
func (o *Orchestrator) Cancel() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.phase.Busy() {
		return o.busyErr()
	}
	o.lastOutcome = nil
	o.resetLocked()
	return nil
}

func (o *Orchestrator) resetLocked() {
	o.phase = PhaseIdle
	o.count = 0
	o.prompt = nil
	o.progress = nil
	o.lastErr = nil
	o.interrupted = nil
}

func (o *Orchestrator) busyErr() error {
	return &ConflictError{Resource: "session", Message: "an operation is already in progress (" + string(o.phase) + ")"}
}

// Snapshot returns a copy of the current state.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	s := Snapshot{Phase: o.phase, Count: o.count, LastError: o.lastErr}
	if o.band != nil {
		b := *o.band
		s.Band = &b
	}
	if o.scope != nil {
		sc := *o.scope
		s.Scope = &sc
	}
	if o.prompt != nil {
		p := *o.prompt
		s.Prompt = &p
	}
	if o.progress != nil {
		p := *o.progress
		s.Progress = &p
	}
	if o.lastOutcome != nil {
		c := o.lastOutcome.Clone()
		s.LastOutcome = &c
	}
	if o.interrupted != nil {
		in := *o.interrupted
		s.Interrupted = &in
	}
	return s
}

// beginLocked moves from a resting phase to next and captures the request
// inputs. The caller holds o.mu.
func (o *Orchestrator) beginLocked(next Phase) (model.DeleteScope, *model.Band, *model.Credential, error) {
	if o.phase.Busy() {
		return model.DeleteScope{}, nil, nil, o.busyErr()
	}
	cred := o.session.Current()
	var scope model.DeleteScope
	if o.scope != nil {
		scope = *o.scope
	}
	var band *model.Band
	if o.band != nil {
		b := *o.band
		band = &b
	}
	if err := checkRequest(scope, band, cred); err != nil {
		o.lastErr = err
		return model.DeleteScope{}, nil, nil, err
	}
	o.phase = next
	o.lastErr = nil
	return scope, band, cred, nil
}

// Sweep runs the full workflow for the selected band and scope: count,
// confirm, delete. A zero count completes with an empty outcome and never
// prompts. Declining returns to Idle with band and scope kept.
func (o *Orchestrator) Sweep(ctx context.Context) (*Result, error) {
	ctx = ensureOperationID(ctx)
	result := &Result{OperationID: logx.OperationIDFromContext(ctx)}
	logger := logx.WithComponent(ctx, "orchestrator")

	o.mu.Lock()
	scope, band, cred, err := o.beginLocked(PhaseCounting)
	if err == nil {
		o.lastOutcome = nil
		o.interrupted = nil
		o.count = 0
	}
	o.mu.Unlock()
	if err != nil {
		return nil, err
	}

	count, err := o.prober.Probe(ctx, scope, band, cred)
	if err != nil {
		o.fail(PhaseIdle, err)
		return nil, err
	}
	result.Count = count

	if count == 0 {
		nothing := model.DeleteOutcome{}
		o.mu.Lock()
		o.count = 0
		o.lastOutcome = &nothing
		o.phase = PhaseCompleted
		o.mu.Unlock()
		logger.Info("nothing to delete", "band_key", band.BandKey, "scope", scope.Key())
		result.Outcome = &nothing
		return result, nil
	}

	prompt := NewPrompt(scope, *band, count)
	o.mu.Lock()
	o.count = count
	o.prompt = &prompt
	o.phase = PhaseAwaitingConfirmation
	o.mu.Unlock()

	ok, err := o.gate.Ask(ctx, prompt)
	if err != nil || !ok {
		o.mu.Lock()
		o.prompt = nil
		o.phase = PhaseIdle
		o.mu.Unlock()
		if err != nil {
			o.fail(PhaseIdle, err)
			return nil, err
		}
		logger.Info("deletion declined", "band_key", band.BandKey, "scope", scope.Key())
		result.Declined = true
		return result, nil
	}

	o.mu.Lock()
	o.prompt = nil
	o.phase = PhaseExecuting
	o.mu.Unlock()

	outcome, err := o.executor.Execute(ctx, ExecuteRequest{
		Scope:         scope,
		Band:          band,
		Credential:    cred,
		ExpectedTotal: count,
	}, o.progressSink())
	if err != nil {
		o.mu.Lock()
		o.lastOutcome = nil
		if IsTransport(err) {
			o.interrupted = &Interrupted{Count: count, Err: err}
		}
		o.mu.Unlock()
		o.fail(PhaseIdle, err)
		if IsTransport(err) {
			logger.Warn("deletion result unknown, retry offered",
				"band_key", band.BandKey, "scope", scope.Key(), "count", count, "timeout", IsTimeout(err))
		}
		return nil, err
	}

	o.complete(outcome)
	result.Outcome = outcome
	return result, nil
}

// Retry re-runs the whole scope after a completed outcome with failures, or
// after a confirmed deletion failed in transit, without counting or
// confirming again. With nothing to retry it makes no remote call and
// reports NothingToRetry. On error the previous outcome or interruption is
// kept so the user can retry again.
func (o *Orchestrator) Retry(ctx context.Context) (*Result, error) {
	ctx = ensureOperationID(ctx)
	result := &Result{OperationID: logx.OperationIDFromContext(ctx)}

	o.mu.Lock()
	last := o.lastOutcome
	if o.phase.Busy() {
		err := o.busyErr()
		o.mu.Unlock()
		return nil, err
	}
	if o.phase == PhaseIdle && o.interrupted != nil {
		return o.resumeLocked(ctx, result)
	}
	if o.phase != PhaseCompleted || last == nil || !last.HasFailures() {
		o.mu.Unlock()
		result.NothingToRetry = true
		return result, nil
	}
	scope, band, cred, err := o.beginLocked(PhaseExecuting)
	if err != nil {
		o.mu.Unlock()
		return nil, err
	}
	o.count = last.Failed
	o.mu.Unlock()

	outcome, retried, err := o.retry.Retry(ctx, last, scope, band, cred, o.progressSink())
	if err != nil {
		o.fail(PhaseCompleted, err)
		return nil, err
	}
	if !retried {
		o.mu.Lock()
		o.phase = PhaseCompleted
		o.mu.Unlock()
		result.NothingToRetry = true
		return result, nil
	}

	o.complete(outcome)
	result.Count = last.Failed
	result.Outcome = outcome
	return result, nil
}

// resumeLocked re-executes an interrupted deletion. It is entered with o.mu
// held and releases it.
func (o *Orchestrator) resumeLocked(ctx context.Context, result *Result) (*Result, error) {
	interrupted := *o.interrupted
	scope, band, cred, err := o.beginLocked(PhaseExecuting)
	if err != nil {
		o.mu.Unlock()
		return nil, err
	}
	o.count = interrupted.Count
	o.mu.Unlock()

	outcome, err := o.retry.Resume(ctx, interrupted.Count, scope, band, cred, o.progressSink())
	if err != nil {
		if IsTransport(err) {
			o.mu.Lock()
			o.interrupted = &Interrupted{Count: interrupted.Count, Err: err}
			o.mu.Unlock()
		}
		o.fail(PhaseIdle, err)
		return nil, err
	}

	o.mu.Lock()
	o.interrupted = nil
	o.mu.Unlock()
	o.complete(outcome)
	result.Count = interrupted.Count
	result.Outcome = outcome
	return result, nil
}

func (o *Orchestrator) complete(outcome *model.DeleteOutcome) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.lastOutcome = outcome
	o.progress = nil
	o.phase = PhaseCompleted
}

func (o *Orchestrator) fail(next Phase, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.lastErr = err
	o.progress = nil
	o.prompt = nil
	o.phase = next
}

func (o *Orchestrator) progressSink() ProgressSink {
	record := SinkFuncs{
		OnUpdate: func(est model.ProgressEstimate) {
			o.mu.Lock()
			o.progress = &est
			o.mu.Unlock()
		},
		OnClear: func() {
			o.mu.Lock()
			o.progress = nil
			o.mu.Unlock()
		},
	}
	return multiSink{record, o.sink}
}

func ensureOperationID(ctx context.Context) context.Context {
	if logx.OperationIDFromContext(ctx) != "" {
		return ctx
	}
	return logx.WithOperationID(ctx, logx.NewOperationID())
}
