package lifecycle

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

var errDrainTimeout = errors.New("timeout waiting for progress streams to drain")

// DrainManager tracks draining state and active progress stream sessions.
type DrainManager struct {
	draining atomic.Bool
	active   atomic.Int64
	wg       sync.WaitGroup
}

func NewDrainManager() *DrainManager {
	return &DrainManager{}
}

func (m *DrainManager) StartDraining() {
	m.draining.Store(true)
}

func (m *DrainManager) IsDraining() bool {
	return m.draining.Load()
}

func (m *DrainManager) ActiveStreams() int64 {
	return m.active.Load()
}

// TrackStream registers a stream session and returns a release callback.
func (m *DrainManager) TrackStream() func() {
	m.wg.Add(1)
	m.active.Add(1)

	var once sync.Once
	return func() {
		once.Do(func() {
			m.active.Add(-1)
			m.wg.Done()
		})
	}
}

func (m *DrainManager) WaitStreams(ctx context.Context) error {
	return waitGroup(ctx, &m.wg, errDrainTimeout)
}

func waitGroup(ctx context.Context, wg *sync.WaitGroup, timeoutErr error) error {
	waitDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitDone)
	}()

	select {
	case <-ctx.Done():
		return timeoutErr
	case <-waitDone:
		return nil
	}
}
