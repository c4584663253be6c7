// Package graph implements the column-oriented property graph (C9):
// CSR topology, an interned entity-type registry, and Arrow-backed typed
// property columns for nodes and edges.
package graph

import "sort"

// Topology is the graph's compressed-sparse-row adjacency: node i's
// out-edges are OutDest[OutIndex[i]:OutIndex[i+1]]. len(OutIndex) ==
// NumNodes()+1 and OutIndex is non-decreasing, matching spec.md's CSR
// invariant.
type Topology struct {
	OutIndex []uint64
	OutDest  []uint32
}

// NewTopology builds a Topology from an edge list grouped by source node;
// edgesBySource[i] lists node i's out-neighbors in arbitrary order.
func NewTopology(edgesBySource [][]uint32) *Topology {
	n := len(edgesBySource)
	outIndex := make([]uint64, n+1)
	var total uint64
	for i, edges := range edgesBySource {
		outIndex[i] = total
		total += uint64(len(edges))
		_ = i
	}
	outIndex[n] = total
	outDest := make([]uint32, 0, total)
	for _, edges := range edgesBySource {
		outDest = append(outDest, edges...)
	}
	return &Topology{OutIndex: outIndex, OutDest: outDest}
}

// TopologyFromCSR wraps pre-built CSR arrays directly, for callers (such as
// the property loader) that decode a topology from storage rather than an
// edge list.
func TopologyFromCSR(outIndex []uint64, outDest []uint32) *Topology {
	return &Topology{OutIndex: outIndex, OutDest: outDest}
}

// NumNodes returns the number of nodes in the topology.
func (t *Topology) NumNodes() int {
	if len(t.OutIndex) == 0 {
		return 0
	}
	return len(t.OutIndex) - 1
}

// NumEdges returns the total number of directed edges.
func (t *Topology) NumEdges() int { return len(t.OutDest) }

// Neighbors returns node id's out-neighbor slice (a view into OutDest, not
// a copy).
func (t *Topology) Neighbors(id uint32) []uint32 {
	return t.OutDest[t.OutIndex[id]:t.OutIndex[id+1]]
}

// Degree returns node id's out-degree.
func (t *Topology) Degree(id uint32) int {
	return int(t.OutIndex[id+1] - t.OutIndex[id])
}

// SortAllEdgesByDest sorts each node's out-edge slice by destination id.
// Idempotent — resolves spec open question 2: kernels that need
// sorted-by-destination adjacency (e.g. triangle counting's merge-based
// intersection) call this once as an asserted precondition rather than
// having it silently re-run inside every kernel.
func (t *Topology) SortAllEdgesByDest() {
	for id := 0; id < t.NumNodes(); id++ {
		nbrs := t.Neighbors(uint32(id))
		sort.Slice(nbrs, func(i, j int) bool { return nbrs[i] < nbrs[j] })
	}
}

// IsSortedByDest reports whether every node's out-edges are already sorted
// by destination, the precondition triangle counting and similar kernels
// assert rather than silently re-establish.
func (t *Topology) IsSortedByDest() bool {
	for id := 0; id < t.NumNodes(); id++ {
		nbrs := t.Neighbors(uint32(id))
		for i := 1; i < len(nbrs); i++ {
			if nbrs[i-1] > nbrs[i] {
				return false
			}
		}
	}
	return true
}

// SortNodesByDegree returns the node IDs in decreasing-degree order, i.e.
// order[i] is the old ID that a relabel would place at new position i; it
// does not mutate the topology in place,
// since node relabeling must also update every property column and the
// entity-type arrays in lockstep (see PropertyGraph.Relabel).
func (t *Topology) SortNodesByDegree() []uint32 {
	n := t.NumNodes()
	order := make([]uint32, n)
	for i := range order {
		order[i] = uint32(i)
	}
	sort.Slice(order, func(i, j int) bool {
		return t.Degree(order[i]) > t.Degree(order[j])
	})
	return order
}
