package loop

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/KatanaGraph/katana-sub004/internal/threadpool"
	"github.com/KatanaGraph/katana-sub004/internal/worklist"
)

// sharedQueue is the default Worklist used when Options.WL is nil: a single
// mutex-protected slice, sufficient for DoAll's fixed, non-growing item set
// where per-socket chunking would be pure overhead.
type sharedQueue[T any] struct {
	mu    sync.Mutex
	items []T
}

func (q *sharedQueue[T]) Push(item T) {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()
}

func (q *sharedQueue[T]) Pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	last := len(q.items) - 1
	v := q.items[last]
	q.items = q.items[:last]
	return v, true
}

func (q *sharedQueue[T]) Empty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) == 0
}

// DoAll runs body once for every item in a fixed set, fanned out across
// pool's worker threads with work stealing from a shared queue. Unlike
// ForEach, bodies passed to DoAll cannot push new work: the item set is
// closed for the duration of the call (Options.NoPushes is implied).
func DoAll[T any](ctx context.Context, pool *threadpool.ThreadPool, items []T, body func(item T), opts Options[T]) error {
	q := &sharedQueue[T]{items: append([]T(nil), items...)}
	return pool.Run(ctx, func(ctx context.Context, threadID int) error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			item, ok := q.Pop()
			if !ok {
				return nil
			}
			body(item)
		}
	})
}

// Context is handed to a ForEach body so it can push newly discovered work
// (e.g. BFS neighbors) back onto the loop's worklist, and observe whether
// the loop has been asked to stop early (ParallelBreak bodies).
type Context[T any] struct {
	loop *forEachState[T]
}

// Push adds item to the loop's worklist for a (possibly different) worker
// to pick up. A no-op if Options.NoPushes was set.
func (c *Context[T]) Push(item T) {
	if c.loop.noPushes {
		return
	}
	c.loop.outstanding.Add(1)
	c.loop.wl.Push(item)
}

// Break signals the loop to stop scheduling new items once the current
// round of in-flight bodies completes. Only meaningful when
// Options.ParallelBreak is set; otherwise it is a no-op, matching the
// "ParallelBreak must be requested, not implied" contract in spec.md.
func (c *Context[T]) Break() {
	if c.loop.parallelBreak {
		c.loop.broken.Store(true)
	}
}

type forEachState[T any] struct {
	wl            worklist.Worklist[T]
	outstanding   atomic.Int64
	noPushes      bool
	parallelBreak bool
	broken        atomic.Bool
}

// ForEach runs body over an initially-seeded worklist that bodies may grow
// via Context.Push, terminating once every pushed item has been processed
// (quiescence) or Context.Break has been called from a ParallelBreak loop.
// If Options.WL is nil, a default shared LIFO queue is used.
func ForEach[T any](ctx context.Context, pool *threadpool.ThreadPool, initial []T, body func(item T, lctx *Context[T]), opts Options[T]) error {
	wl := opts.WL
	if wl == nil {
		wl = &sharedQueue[T]{}
	}
	state := &forEachState[T]{wl: wl, noPushes: opts.NoPushes, parallelBreak: opts.ParallelBreak}
	for _, item := range initial {
		state.outstanding.Add(1)
		wl.Push(item)
	}
	lctx := &Context[T]{loop: state}

	return pool.Run(ctx, func(ctx context.Context, threadID int) error {
		for {
			if state.parallelBreak && state.broken.Load() {
				return nil
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			item, ok := wl.Pop()
			if !ok {
				if state.outstanding.Load() == 0 {
					return nil
				}
				runtime.Gosched()
				continue
			}
			body(item, lctx)
			state.outstanding.Add(-1)
		}
	})
}

// OnEach invokes body once per worker thread with that thread's ID and the
// pool's total thread count — used for topology-aware per-thread
// initialization (e.g. seeding PerThread scratch state) rather than for
// processing a work item set.
func OnEach(ctx context.Context, pool *threadpool.ThreadPool, body func(threadID, total int)) error {
	total := pool.NumThreads()
	return pool.Run(ctx, func(ctx context.Context, threadID int) error {
		body(threadID, total)
		return nil
	})
}
