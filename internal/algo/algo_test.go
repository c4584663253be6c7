package algo

import (
	"context"
	"testing"

	"github.com/KatanaGraph/katana-sub004/internal/graph"
	"github.com/KatanaGraph/katana-sub004/internal/manager"
	"github.com/KatanaGraph/katana-sub004/internal/memsup"
	"github.com/KatanaGraph/katana-sub004/internal/threadpool"
)

func newTestPropertyManager() *manager.PropertyManager {
	sup := memsup.New(memsup.NewNullPolicy())
	pm := manager.NewPropertyManager("property_cache", manager.NewPropertyCache(1<<20), sup)
	if err := sup.Register(pm); err != nil {
		panic(err)
	}
	return pm
}

// chainTopology builds 0 -> 1 -> 2 -> 3, undirected (edges both ways), for
// a predictable shortest-path/BFS shape.
func chainTopology() *graph.Topology {
	return graph.NewTopology([][]uint32{
		{1},
		{0, 2},
		{1, 3},
		{2},
	})
}

func TestBFS_DistancesFollowShortestHopCount(t *testing.T) {
	pool := threadpool.New(4)
	topo := chainTopology()

	result, err := BFS(context.Background(), pool, topo, 0)
	if err != nil {
		t.Fatalf("BFS: %v", err)
	}
	want := []int64{0, 1, 2, 3}
	for i, w := range want {
		if result.Distance[i] != w {
			t.Errorf("Distance[%d] = %d, want %d", i, result.Distance[i], w)
		}
	}
}

func TestBFS_UnreachableNodeStaysUnreached(t *testing.T) {
	pool := threadpool.New(2)
	topo := graph.NewTopology([][]uint32{{1}, {0}, {}})

	result, err := BFS(context.Background(), pool, topo, 0)
	if err != nil {
		t.Fatalf("BFS: %v", err)
	}
	if result.Distance[2] != Unreached {
		t.Errorf("Distance[2] = %d, want Unreached", result.Distance[2])
	}
}

func newWeightedGraph() *graph.PropertyGraph {
	topo := graph.NewTopology([][]uint32{
		{1, 2},
		{3},
		{3},
		{},
	})
	pm := newTestPropertyManager()
	g := graph.NewPropertyGraph(topo, pm, "reader", "sssp-test")
	// edges in order: 0->1 (w=5), 0->2 (w=1), 1->3 (w=1), 2->3 (w=10)
	col := graph.NewFloat64Column(g.Allocator(), []float64{5, 1, 1, 10})
	if err := g.AddEdgeProperty("weight", col); err != nil {
		panic(err)
	}
	return g
}

func TestSSSP_FindsShorterTwoHopPathOverLongerDirectEdge(t *testing.T) {
	pool := threadpool.New(4)
	g := newWeightedGraph()

	result, err := SSSP(context.Background(), pool, g, 0, 2)
	if err != nil {
		t.Fatalf("SSSP: %v", err)
	}
	// 0->2->3 costs 1+10=11, 0->1->3 costs 5+1=6: the cheaper path must win.
	if result.Distance[3] != 6 {
		t.Errorf("Distance[3] = %d, want 6", result.Distance[3])
	}
	if result.Distance[1] != 5 {
		t.Errorf("Distance[1] = %d, want 5", result.Distance[1])
	}
}

func TestSSSP_MissingWeightPropertyErrors(t *testing.T) {
	pool := threadpool.New(2)
	topo := graph.NewTopology([][]uint32{{1}, {}})
	pm := newTestPropertyManager()
	g := graph.NewPropertyGraph(topo, pm, "reader", "no-weight")

	if _, err := SSSP(context.Background(), pool, g, 0, 2); err == nil {
		t.Error("expected an error when the weight edge property is missing")
	}
}

func TestTriangleCount_CountsSingleTriangle(t *testing.T) {
	pool := threadpool.New(4)
	topo := graph.NewTopology([][]uint32{
		{1, 2},
		{0, 2},
		{0, 1},
	})
	topo.SortAllEdgesByDest()

	count, err := TriangleCount(context.Background(), pool, topo)
	if err != nil {
		t.Fatalf("TriangleCount: %v", err)
	}
	if count != 1 {
		t.Errorf("TriangleCount() = %d, want 1", count)
	}
}

func TestTriangleCount_RequiresSortedAdjacency(t *testing.T) {
	pool := threadpool.New(2)
	topo := graph.NewTopology([][]uint32{{2, 1}, {0}, {0}})

	if _, err := TriangleCount(context.Background(), pool, topo); err == nil {
		t.Error("expected an error on unsorted adjacency")
	}
}
