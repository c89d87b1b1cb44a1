package timeutils

import (
	"context"
	"sync"
	"time"
)

// Interval runs a function periodically on its own goroutine. At most one
// timer is active per Interval: Start stops the running one first, so calling
// it repeatedly never stacks timers.
type Interval struct {
	mux    *sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewInterval() *Interval {
	return &Interval{
		mux: &sync.Mutex{},
	}
}

// Start calls fn every period until Stop or until ctx is done. When immediate
// is set fn also runs right away.
func (i *Interval) Start(ctx context.Context, period time.Duration, immediate bool, fn func(ctx context.Context)) {
	i.mux.Lock()
	defer i.mux.Unlock()
	i.stopLocked()

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	i.cancel = cancel
	i.done = done

	go func() {
		defer close(done)
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		if immediate {
			fn(ctx)
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fn(ctx)
			}
		}
	}()
}

// Stop cancels the timer and waits for a running fn to return.
func (i *Interval) Stop() {
	i.mux.Lock()
	defer i.mux.Unlock()
	i.stopLocked()
}

func (i *Interval) stopLocked() {
	if i.cancel == nil {
		return
	}
	i.cancel()
	<-i.done
	i.cancel = nil
	i.done = nil
}
