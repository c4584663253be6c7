package algo

import (
	"context"
	"sync/atomic"

	"github.com/KatanaGraph/katana-sub004/internal/graph"
	"github.com/KatanaGraph/katana-sub004/internal/threadpool"
	"github.com/KatanaGraph/katana-sub004/pkg/perrors"
)

// TriangleCount counts triangles in topo using the standard
// sorted-adjacency merge-intersection: for every edge (u, v) with u < v, the
// number of common neighbors w > v of u and v is exactly the number of
// triangles anchored at that edge in that orientation, so summing over
// every such edge counts each triangle exactly once. Requires
// topo.IsSortedByDest(); call topo.SortAllEdgesByDest() first if unsure.
func TriangleCount(ctx context.Context, pool *threadpool.ThreadPool, topo *graph.Topology) (int64, error) {
	if !topo.IsSortedByDest() {
		return 0, perrors.Wrap(perrors.CodeInvariantViolation, "triangle counting requires edges sorted by destination", nil)
	}

	n := topo.NumNodes()
	counts := threadpool.NewPerThread[int64](pool)
	var next atomic.Int64 // shared cursor: each worker claims the next unprocessed node

	err := pool.Run(ctx, func(ctx context.Context, threadID int) error {
		var local int64
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			u64 := next.Add(1) - 1
			if u64 >= int64(n) {
				break
			}
			u := uint32(u64)
			for _, v := range topo.Neighbors(u) {
				if v <= u {
					continue
				}
				local += countCommonNeighborsAbove(topo.Neighbors(u), topo.Neighbors(v), v)
			}
		}
		*counts.At(threadID) += local
		return nil
	})
	if err != nil {
		return 0, err
	}

	return threadpool.Reduce[int64](counts, threadpool.SumReducer[int64]{}), nil
}

// countCommonNeighborsAbove counts elements common to both sorted slices a
// and b that are strictly greater than floor, via a linear merge — valid
// because both neighbor lists are sorted by destination.
func countCommonNeighborsAbove(a, b []uint32, floor uint32) int64 {
	var i, j int
	var count int64
	for i < len(a) && j < len(b) {
		av, bv := a[i], b[j]
		if av <= floor {
			i++
			continue
		}
		if bv <= floor {
			j++
			continue
		}
		switch {
		case av == bv:
			count++
			i++
			j++
		case av < bv:
			i++
		default:
			j++
		}
	}
	return count
}
