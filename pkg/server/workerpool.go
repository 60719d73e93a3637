package server

import (
	"context"
	"net/http"
	"runtime"
)

// Pool bounds the number of concurrent blocking generation calls in flight,
// so request goroutines queue behind a fixed number of slots instead of
// piling up unboundedly underneath net/http's per-connection goroutine model.
//
// Grounded on the teacher's pkg/pool object-pool idiom (a PoolConfig struct
// plus a package-level Configure entrypoint): adapted from reusable-object
// pooling to goroutine-slot pooling, since there is no object here worth
// recycling, only a scarce resource (CPU threads, a GPU context) not to
// oversubscribe. Unlike the teacher's sync.Pool, a generation slot is not
// returned early — it is held for the whole request, so a buffered channel
// used as a semaphore is the right shape, not sync.Pool itself.
type Pool struct {
	slots chan struct{}
}

// NewPool builds a Pool with size concurrent slots. size <= 0 defaults to
// GOMAXPROCS, matching the number of OS threads Go can usefully run CPU-bound
// work on at once.
func NewPool(size int) *Pool {
	if size <= 0 {
		size = runtime.GOMAXPROCS(0)
	}
	return &Pool{slots: make(chan struct{}, size)}
}

// Size reports the pool's configured concurrency.
func (p *Pool) Size() int { return cap(p.slots) }

// Run blocks until a slot is available, then runs fn while holding it. If
// ctx is cancelled before a slot frees up, Run returns ctx.Err() without
// running fn at all.
func (p *Pool) Run(ctx context.Context, fn func()) error {
	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-p.slots }()
	fn()
	return nil
}

// workerPoolMiddleware wraps the handlers that trigger blocking generation
// work (chat completions, messages, native generate) with the pool's
// semaphore, so a burst of concurrent requests queues here rather than
// starving every loaded model's context mutex at once. Routes that do no
// generation (health, models listing, admin) are never wrapped.
func (s *Server) workerPoolMiddleware(next http.HandlerFunc) http.HandlerFunc {
	if s.pool == nil {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		err := s.pool.Run(r.Context(), func() {
			next(w, r)
		})
		if err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"error": "request cancelled while waiting for a free generation slot",
			})
		}
	}
}
