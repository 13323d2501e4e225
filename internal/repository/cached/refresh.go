package cached

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Restart stops the refresh task, if running, and starts a new one.
func (r *Repository[E]) Restart() {
	r.loopMu.Lock()
	defer r.loopMu.Unlock()
	r.stopLocked()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	r.cancel, r.done = cancel, done
	go r.run(ctx, done)
}

// Stop cancels the refresh task and waits for it to exit.
func (r *Repository[E]) Stop() {
	r.loopMu.Lock()
	defer r.loopMu.Unlock()
	r.stopLocked()
}

// Running reports whether the refresh task is active.
func (r *Repository[E]) Running() bool {
	r.loopMu.Lock()
	defer r.loopMu.Unlock()
	return r.cancel != nil
}

// Close stops the refresh task and releases the cache.
// The repository must not be used afterwards.
func (r *Repository[E]) Close() {
	r.Stop()
	r.cache.Close()
}

func (r *Repository[E]) stopLocked() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	<-r.done
	r.cancel, r.done = nil, nil
}

func (r *Repository[E]) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	t := time.NewTicker(r.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if r.Pending() == 0 {
				continue
			}
			n := r.Flush()
			r.log.Debug("refresh", zap.Int("flushed", n))
		}
	}
}
