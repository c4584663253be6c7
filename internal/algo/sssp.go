package algo

import (
	"context"
	"sync/atomic"

	"github.com/apache/arrow/go/v17/arrow/array"

	"github.com/KatanaGraph/katana-sub004/internal/graph"
	"github.com/KatanaGraph/katana-sub004/internal/loop"
	"github.com/KatanaGraph/katana-sub004/internal/threadpool"
	"github.com/KatanaGraph/katana-sub004/internal/worklist"
	"github.com/KatanaGraph/katana-sub004/pkg/perrors"
)

// ssspItem is one OBIM entry: a node paired with the tentative distance
// that earned it this bucket. A node may be pushed more than once as
// shorter paths are discovered; stale entries are detected and dropped at
// pop time by comparing against the node's current best distance.
type ssspItem struct {
	Node uint32
	Dist int64
}

// SSSPResult holds one node-indexed distance array, in edge-weight units
// from the source.
type SSSPResult struct {
	Distance []int64
}

// SSSP computes single-source shortest paths over g's topology using its
// weight edge property, via delta-stepping: nodes are bucketed by
// floor(dist/delta) in an OBIM worklist so light (within-bucket) edges
// relax before heavy (next-bucket) ones are even considered, bounding how
// many times a node can be re-opened.
func SSSP(ctx context.Context, pool *threadpool.ThreadPool, g *graph.PropertyGraph, source uint32, delta int64) (*SSSPResult, error) {
	weightCol, ok := g.EdgeProperty("weight")
	if !ok {
		return nil, perrors.Wrap(perrors.CodeNotFound, "sssp requires a \"weight\" edge property", nil)
	}
	weights, ok := weightCol.(*array.Float64)
	if !ok {
		return nil, perrors.Wrap(perrors.CodeInvalidArgument, "\"weight\" edge property must be float64", nil)
	}
	if delta <= 0 {
		delta = 1
	}

	topo := g.Topology
	n := topo.NumNodes()
	dist := make([]atomic.Int64, n)
	for i := range dist {
		dist[i].Store(Unreached)
	}
	dist[source].Store(0)

	bucketOf := func(item ssspItem) uint32 { return uint32(item.Dist / delta) }
	wl := worklist.NewOBIM[ssspItem](bucketOf)

	body := func(item ssspItem, lctx *loop.Context[ssspItem]) {
		if dist[item.Node].Load() != item.Dist {
			return // stale entry: a shorter path already settled this node
		}
		start := topo.OutIndex[item.Node]
		end := topo.OutIndex[item.Node+1]
		for edgeID := start; edgeID < end; edgeID++ {
			v := topo.OutDest[edgeID]
			w := int64(weights.Value(int(edgeID)))
			newDist := item.Dist + w
			for {
				cur := dist[v].Load()
				if cur != Unreached && cur <= newDist {
					break
				}
				if dist[v].CompareAndSwap(cur, newDist) {
					lctx.Push(ssspItem{Node: v, Dist: newDist})
					break
				}
			}
		}
	}

	opts := loop.Options[ssspItem]{LoopName: "sssp_delta_stepping", WL: wl}
	if err := loop.ForEach(ctx, pool, []ssspItem{{Node: source, Dist: 0}}, body, opts); err != nil {
		return nil, err
	}

	out := make([]int64, n)
	for i := range out {
		out[i] = dist[i].Load()
	}
	return &SSSPResult{Distance: out}, nil
}
