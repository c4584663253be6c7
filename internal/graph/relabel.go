package graph

// Relabel reorders nodes according to newOrder (new position -> old id,
// i.e. newOrder[newID] = oldID), as produced by Topology.SortNodesByDegree.
// It rewrites the topology's adjacency and the entity-type array in
// lockstep, then removes every node property column from the graph without
// caching it (dropNodeProperty): the columns are keyed by name and would
// otherwise silently describe the wrong node after relabeling. Entries
// already in the property cache are not touched.
func (g *PropertyGraph) Relabel(newOrder []uint32) {
	n := g.Topology.NumNodes()
	oldDest := g.Topology.OutDest
	oldIndex := g.Topology.OutIndex

	newID := make([]uint32, n)
	for pos, old := range newOrder {
		newID[old] = uint32(pos)
	}

	newAdj := make([][]uint32, n)
	for oldID := 0; oldID < n; oldID++ {
		id := newID[oldID]
		nbrs := oldDest[oldIndex[oldID]:oldIndex[oldID+1]]
		remapped := make([]uint32, len(nbrs))
		for i, d := range nbrs {
			remapped[i] = newID[d]
		}
		newAdj[id] = remapped
	}
	g.Topology = NewTopology(newAdj)

	newTypeIDs := make([]uint16, n)
	for oldID := 0; oldID < n; oldID++ {
		newTypeIDs[newID[oldID]] = g.nodeTypeIDs[oldID]
	}
	g.nodeTypeIDs = newTypeIDs

	for _, name := range g.nodeProps.names() {
		_ = g.dropNodeProperty(name)
	}
}
