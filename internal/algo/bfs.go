// Package algo implements graph analytics kernels (breadth-first search,
// delta-stepping single-source shortest paths, and triangle counting) built
// entirely on internal/loop, internal/worklist, and internal/threadpool —
// the kernels this runtime substrate exists to run.
package algo

import (
	"context"
	"sync/atomic"

	"github.com/KatanaGraph/katana-sub004/internal/graph"
	"github.com/KatanaGraph/katana-sub004/internal/loop"
	"github.com/KatanaGraph/katana-sub004/internal/threadpool"
)

// Unreached marks a node BFS/SSSP never discovered a path to.
const Unreached = int64(-1)

// BFSResult holds one node-indexed distance array, in hops from the source.
type BFSResult struct {
	Distance []int64
}

// BFS computes single-source breadth-first distances over topo using a
// for_each loop whose bodies push newly discovered neighbors back onto the
// frontier; a node's distance is lowered by compare-and-swap whenever a
// shorter hop count reaches it, and the node is pushed again each time, so
// the result is the shortest hop count whatever order the worklist pops in.
func BFS(ctx context.Context, pool *threadpool.ThreadPool, topo *graph.Topology, source uint32) (*BFSResult, error) {
	n := topo.NumNodes()
	dist := make([]atomic.Int64, n)
	for i := range dist {
		dist[i].Store(Unreached)
	}
	dist[source].Store(0)

	body := func(u uint32, lctx *loop.Context[uint32]) {
		d := dist[u].Load()
		for _, v := range topo.Neighbors(u) {
			for {
				cur := dist[v].Load()
				if cur != Unreached && cur <= d+1 {
					break
				}
				if dist[v].CompareAndSwap(cur, d+1) {
					lctx.Push(v)
					break
				}
			}
		}
	}

	opts := loop.Options[uint32]{LoopName: "bfs"}
	if err := loop.ForEach(ctx, pool, []uint32{source}, body, opts); err != nil {
		return nil, err
	}

	out := make([]int64, n)
	for i := range out {
		out[i] = dist[i].Load()
	}
	return &BFSResult{Distance: out}, nil
}
