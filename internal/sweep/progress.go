package sweep

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/fslongjin/bandsweep/internal/logx"
	"github.com/fslongjin/bandsweep/pkg/model"
)

// DefaultProgressInterval is how often the random estimate advances.
const DefaultProgressInterval = 2 * time.Second

// ProgressSink displays estimates. Update is never called after Clear.
type ProgressSink interface {
	Update(est model.ProgressEstimate)
	Clear()
}

// ProgressRequest describes the deletion being estimated.
type ProgressRequest struct {
	AccessToken string
	BandKey     string
	Scope       model.DeleteScope
	Total       int
}

// ProgressRun is one active estimate. Stop returns once no further updates
// will be sent.
type ProgressRun interface {
	Stop()
}

// ProgressSource produces estimates while a deletion is in flight. The
// estimate never reaches Total; the executor snaps it on completion.
type ProgressSource interface {
	Begin(ctx context.Context, req ProgressRequest, sink ProgressSink) ProgressRun
}

type nopSink struct{}

func (nopSink) Update(model.ProgressEstimate) {}
func (nopSink) Clear()                        {}

// SinkFuncs adapts a pair of functions to ProgressSink. Nil fields are skipped.
type SinkFuncs struct {
	OnUpdate func(model.ProgressEstimate)
	OnClear  func()
}

func (s SinkFuncs) Update(est model.ProgressEstimate) {
	if s.OnUpdate != nil {
		s.OnUpdate(est)
	}
}

func (s SinkFuncs) Clear() {
	if s.OnClear != nil {
		s.OnClear()
	}
}

type multiSink []ProgressSink

func (m multiSink) Update(est model.ProgressEstimate) {
	for _, s := range m {
		s.Update(est)
	}
}

func (m multiSink) Clear() {
	for _, s := range m {
		s.Clear()
	}
}

// RandomEstimator advances current by max(1, r*total/8) every Interval,
// floored and capped at total-1. It is a display heuristic, not telemetry.
type RandomEstimator struct {
	Interval time.Duration
	// Float returns values in [0, 1). Defaults to math/rand/v2.
	Float func() float64
}

func NewRandomEstimator(interval time.Duration) *RandomEstimator {
	return &RandomEstimator{Interval: interval}
}

// Next computes the estimate after one tick.
func Next(current, total int, r float64) int {
	if total <= 1 {
		return 0
	}
	inc := math.Max(1, r*float64(total)/8)
	next := int(math.Floor(math.Min(float64(current)+inc, float64(total-1))))
	if next < current {
		return current
	}
	return next
}

func (e *RandomEstimator) Begin(ctx context.Context, req ProgressRequest, sink ProgressSink) ProgressRun {
	interval := e.Interval
	if interval <= 0 {
		interval = DefaultProgressInterval
	}
	float := e.Float
	if float == nil {
		float = rand.Float64
	}

	run := newTickerRun()
	sink.Update(model.ProgressEstimate{Current: 0, Total: req.Total})
	go func() {
		defer close(run.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		current := 0
		for {
			select {
			case <-run.stop:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				current = Next(current, req.Total, float())
				sink.Update(model.ProgressEstimate{Current: current, Total: req.Total})
			}
		}
	}()
	return run
}

type tickerRun struct {
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func newTickerRun() *tickerRun {
	return &tickerRun{stop: make(chan struct{}), done: make(chan struct{})}
}

func (r *tickerRun) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
	<-r.done
}

// ProgressFeed is a server-sent progress source.
type ProgressFeed interface {
	Updates() <-chan model.ProgressEstimate
	Close() error
}

// StreamOpener opens a ProgressFeed for one deletion.
type StreamOpener func(ctx context.Context, accessToken, bandKey string, scope model.DeleteScope) (ProgressFeed, error)

// StreamEstimator relays server-sent progress, rescaled to the probed total
// and kept monotonic and below total. When the stream cannot be opened it
// falls back to Fallback.
type StreamEstimator struct {
	Open     StreamOpener
	Fallback ProgressSource
}

func (e *StreamEstimator) Begin(ctx context.Context, req ProgressRequest, sink ProgressSink) ProgressRun {
	feed, err := e.Open(ctx, req.AccessToken, req.BandKey, req.Scope)
	if err != nil {
		logx.WithComponent(ctx, "progress").Debug("progress stream unavailable, using estimate", "error", err)
		fallback := e.Fallback
		if fallback == nil {
			fallback = NewRandomEstimator(DefaultProgressInterval)
		}
		return fallback.Begin(ctx, req, sink)
	}

	run := newTickerRun()
	sink.Update(model.ProgressEstimate{Current: 0, Total: req.Total})
	go func() {
		defer close(run.done)
		defer feed.Close()
		current := 0
		updates := feed.Updates()
		for {
			select {
			case <-run.stop:
				return
			case <-ctx.Done():
				return
			case est, ok := <-updates:
				if !ok {
					updates = nil
					continue
				}
				next := rescale(est, req.Total)
				if next > current {
					current = next
					sink.Update(model.ProgressEstimate{Current: current, Total: req.Total})
				}
			}
		}
	}()
	return run
}

func rescale(est model.ProgressEstimate, total int) int {
	if total <= 1 || est.Total <= 0 {
		return 0
	}
	v := est.Current
	if est.Total != total {
		v = int(math.Floor(float64(est.Current) * float64(total) / float64(est.Total)))
	}
	if v > total-1 {
		v = total - 1
	}
	if v < 0 {
		v = 0
	}
	return v
}
