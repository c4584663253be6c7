// Package threadpool implements the fixed-size worker pool (C5) that the
// internal/loop drivers run on: a socket topology,
// per-thread local storage, and associative reducers. Run's fixed-worker,
// fail-fast fan-out is a genuinely different shape from pkg/parallel's
// ad-hoc task pool, so it stays on errgroup/semaphore directly; RunTasks
// instead wraps pkg/parallel.WorkerPool for the ad-hoc batch work a
// ThreadPool's callers sometimes need (e.g. loader property fetches)
// without spinning up a second, differently-sized pool for it.
package threadpool

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/KatanaGraph/katana-sub004/pkg/parallel"
)

// Socket groups the core IDs belonging to one NUMA/socket domain.
type Socket struct {
	ID      int
	CoreIDs []int
}

// Topology describes the pool's socket/core layout. discoverTopology always
// reports a single flat socket containing every worker; real socket
// boundaries are not detected.
type Topology struct {
	Sockets []Socket
}

// discoverTopology builds a Topology from runtime.NumCPU. A fuller
// implementation would consult golang.org/x/sys/cpu or /sys/devices/system/node
// for real socket boundaries; lacking that without a live machine to probe,
// this treats every core as belonging to one socket, which is always a
// safe (if sometimes imprecise) over-approximation for the steal-within-
// socket worklists in internal/worklist.
func discoverTopology(numThreads int) Topology {
	cores := make([]int, numThreads)
	for i := range cores {
		cores[i] = i
	}
	return Topology{Sockets: []Socket{{ID: 0, CoreIDs: cores}}}
}

// ThreadPool is a fixed-size pool: its worker count and topology are fixed
// at construction. Each Run call starts one goroutine per worker thread ID
// through an errgroup and blocks until every worker's body function
// returns; no goroutine outlives the call.
type ThreadPool struct {
	topology Topology
	numThreads int
	allocSem *semaphore.Weighted
}

// Option configures a ThreadPool at construction.
type Option func(*ThreadPool)

// WithPerIterAllocLimit bounds how many goroutines may simultaneously hold
// a per_iter_alloc scratch buffer, throttling allocator pressure under
// PerIterAlloc loops (see internal/loop.Options.PerIterAlloc).
func WithPerIterAllocLimit(n int64) Option {
	return func(p *ThreadPool) { p.allocSem = semaphore.NewWeighted(n) }
}

// New creates a ThreadPool with numThreads workers. numThreads <= 0 defaults
// to runtime.NumCPU(), capped at 8 (matching pkg/parallel's default pool
// sizing convention).
func New(numThreads int, opts ...Option) *ThreadPool {
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
		if numThreads > 8 {
			numThreads = 8
		}
	}
	p := &ThreadPool{
		topology:   discoverTopology(numThreads),
		numThreads: numThreads,
		allocSem:   semaphore.NewWeighted(int64(numThreads)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NumThreads returns the number of workers in the pool.
func (p *ThreadPool) NumThreads() int { return p.numThreads }

// Topology returns the pool's discovered socket/core layout.
func (p *ThreadPool) Topology() Topology { return p.topology }

// Run fans body out across every worker thread ID [0, NumThreads), via an
// errgroup.Group so the first worker error cancels the rest and is
// propagated to the caller — this is the primitive internal/loop.OnEach and
// the do_all/for_each drivers are built on.
func (p *ThreadPool) Run(ctx context.Context, body func(ctx context.Context, threadID int) error) error {
	g, gctx := errgroup.WithContext(ctx)
	for tid := 0; tid < p.numThreads; tid++ {
		tid := tid
		g.Go(func() error {
			return body(gctx, tid)
		})
	}
	return g.Wait()
}

// RunTasks runs one ad-hoc task per element of inputs, sized to p's worker
// count rather than spinning up a differently-sized pool of its own. Unlike
// Run, a single failing task does not cancel the others — every input gets
// a TaskResult, matching pkg/parallel.WorkerPool's Execute semantics.
func RunTasks[T any, R any](ctx context.Context, p *ThreadPool, inputs []T, fn func(ctx context.Context, input T) (R, error)) []parallel.TaskResult[T, R] {
	wp := parallel.NewWorkerPool[T, R](parallel.DefaultPoolConfig().WithWorkers(p.NumThreads()).WithMetrics())
	return wp.ExecuteFunc(ctx, inputs, fn)
}

// AcquireAllocSlot blocks until a per_iter_alloc scratch-buffer slot is
// available, returning a release function. Used by loop bodies constructed
// with Options.PerIterAlloc so allocator churn under high parallelism stays
// bounded by the pool's configured limit rather than one buffer per task.
func (p *ThreadPool) AcquireAllocSlot(ctx context.Context) (release func(), err error) {
	if err := p.allocSem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return func() { p.allocSem.Release(1) }, nil
}
