package graph

import (
	"fmt"
	"sync"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"

	"github.com/KatanaGraph/katana-sub004/internal/manager"
	"github.com/KatanaGraph/katana-sub004/pkg/perrors"
)

// columnSet holds a graph's node or edge property columns, chunked the way
// a loaded Arrow table naturally arrives (one arrow.Array per column,
// itself potentially backed by multiple chunks upstream — this package
// only needs the single-array view, not arrow.Table's multi-chunk
// indirection, since properties are held fully materialized in memory
// once loaded).
type columnSet struct {
	mu      sync.RWMutex
	order   []string
	columns map[string]arrow.Array
}

func newColumnSet() *columnSet {
	return &columnSet{columns: make(map[string]arrow.Array)}
}

func (c *columnSet) add(name string, col arrow.Array) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.columns[name]; exists {
		return perrors.Wrap(perrors.CodeAlreadyExists, fmt.Sprintf("property %q already exists", name), nil)
	}
	c.columns[name] = col
	c.order = append(c.order, name)
	return nil
}

func (c *columnSet) remove(name string) (arrow.Array, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	col, ok := c.columns[name]
	if !ok {
		return nil, perrors.Wrap(perrors.CodeNotFound, fmt.Sprintf("property %q not found", name), nil)
	}
	delete(c.columns, name)
	for i, n := range c.order {
		if n == name {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return col, nil
}

func (c *columnSet) get(name string) (arrow.Array, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	col, ok := c.columns[name]
	return col, ok
}

func (c *columnSet) names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.order...)
}

// columnByteSize sums the length of every data/validity buffer backing
// col's ArrayData, the arrow-native equivalent of array.Data.SizeOf
// footprint accounting the domain stack calls for.
func columnByteSize(col arrow.Array) int64 {
	var total int64
	for _, buf := range col.Data().Buffers() {
		if buf != nil {
			total += int64(buf.Len())
		}
	}
	return total
}

// PropertyGraph bundles CSR topology with node/edge property columns and
// per-entity type-ID arrays, notifying a PropertyManager of every
// materialized/evicted column so the memory supervisor can account for and
// reclaim cached property bytes.
type PropertyGraph struct {
	Topology *Topology
	Types    *EntityTypeRegistry

	nodeProps *columnSet
	edgeProps *columnSet

	nodeTypeIDs []uint16 // grounded on the teacher's IndexedObjectStore: a plain slice indexed by node id, not map[uint64]T
	edgeTypeIDs []uint16

	alloc   memory.Allocator
	manager *manager.PropertyManager
	role    string
	graphID string
}

// NewPropertyGraph creates a PropertyGraph over topology. role and graphID
// form two of the three components of every property cache key this graph
// produces (graphID is typically a loader-assigned URI or a
// google/uuid-stamped identity for in-memory-built graphs).
func NewPropertyGraph(topology *Topology, pm *manager.PropertyManager, role, graphID string) *PropertyGraph {
	return &PropertyGraph{
		Topology:    topology,
		Types:       NewEntityTypeRegistry(),
		nodeProps:   newColumnSet(),
		edgeProps:   newColumnSet(),
		nodeTypeIDs: make([]uint16, topology.NumNodes()),
		edgeTypeIDs: make([]uint16, topology.NumEdges()),
		alloc:       memory.NewGoAllocator(),
		manager:     pm,
		role:        role,
		graphID:     graphID,
	}
}

// Allocator returns the Arrow memory allocator backing this graph's
// property columns, for callers building new columns to add.
func (g *PropertyGraph) Allocator() memory.Allocator { return g.alloc }

func (g *PropertyGraph) cacheKey(name string) manager.CacheKey {
	return manager.CacheKey{Role: g.role, GraphIdentity: g.graphID, PropertyName: name}
}

// AddNodeProperty adds a new node property column, borrowing its byte
// footprint as active memory through the property manager (OnPropertyLoaded).
func (g *PropertyGraph) AddNodeProperty(name string, col arrow.Array) error {
	if col.Len() != g.Topology.NumNodes() {
		return perrors.Wrap(perrors.CodeInvalidArgument, fmt.Sprintf("property %q length %d != node count %d", name, col.Len(), g.Topology.NumNodes()), nil)
	}
	if err := g.nodeProps.add(name, col); err != nil {
		return err
	}
	if g.manager != nil {
		if err := g.manager.OnPropertyLoaded(columnByteSize(col)); err != nil {
			return err
		}
	}
	return nil
}

// RemoveNodeProperty drops a node property column from the live graph and
// hands it to the property manager, which reclassifies its bytes from
// active to standby and caches it for possible reuse.
func (g *PropertyGraph) RemoveNodeProperty(name string) error {
	col, err := g.nodeProps.remove(name)
	if err != nil {
		return err
	}
	if g.manager != nil {
		return g.manager.UnloadProperty(g.cacheKey(name), col, columnByteSize(col))
	}
	return nil
}

// dropNodeProperty removes a node property column without caching it,
// unlike RemoveNodeProperty — used where the column's key would describe
// stale data afterward (Relabel) and must never be served from a later
// AddProperty hit.
func (g *PropertyGraph) dropNodeProperty(name string) error {
	col, err := g.nodeProps.remove(name)
	if err != nil {
		return err
	}
	if g.manager != nil {
		return g.manager.DiscardProperty(columnByteSize(col))
	}
	return nil
}

// NodeProperty returns a node property column by name.
func (g *PropertyGraph) NodeProperty(name string) (arrow.Array, bool) { return g.nodeProps.get(name) }

// NodePropertyNames returns the names of every node property column, in
// the order they were added.
func (g *PropertyGraph) NodePropertyNames() []string { return g.nodeProps.names() }

// AddEdgeProperty adds a new edge property column, borrowing its byte
// footprint as active memory through the property manager (OnPropertyLoaded).
func (g *PropertyGraph) AddEdgeProperty(name string, col arrow.Array) error {
	if col.Len() != g.Topology.NumEdges() {
		return perrors.Wrap(perrors.CodeInvalidArgument, fmt.Sprintf("property %q length %d != edge count %d", name, col.Len(), g.Topology.NumEdges()), nil)
	}
	if err := g.edgeProps.add(name, col); err != nil {
		return err
	}
	if g.manager != nil {
		if err := g.manager.OnPropertyLoaded(columnByteSize(col)); err != nil {
			return err
		}
	}
	return nil
}

// RemoveEdgeProperty drops an edge property column from the live graph and
// hands it to the property manager, which reclassifies its bytes from
// active to standby and caches it for possible reuse.
func (g *PropertyGraph) RemoveEdgeProperty(name string) error {
	col, err := g.edgeProps.remove(name)
	if err != nil {
		return err
	}
	if g.manager != nil {
		return g.manager.UnloadProperty(g.cacheKey(name), col, columnByteSize(col))
	}
	return nil
}

// EdgeProperty returns an edge property column by name.
func (g *PropertyGraph) EdgeProperty(name string) (arrow.Array, bool) { return g.edgeProps.get(name) }

// EdgePropertyNames returns the names of every edge property column, in
// the order they were added.
func (g *PropertyGraph) EdgePropertyNames() []string { return g.edgeProps.names() }

// SetNodeType assigns node id's entity-type ID.
func (g *PropertyGraph) SetNodeType(id uint32, typeID uint16) { g.nodeTypeIDs[id] = typeID }

// NodeType returns node id's entity-type ID.
func (g *PropertyGraph) NodeType(id uint32) uint16 { return g.nodeTypeIDs[id] }

// SetEdgeType assigns edge id's entity-type ID.
func (g *PropertyGraph) SetEdgeType(id uint32, typeID uint16) { g.edgeTypeIDs[id] = typeID }

// EdgeType returns edge id's entity-type ID.
func (g *PropertyGraph) EdgeType(id uint32) uint16 { return g.edgeTypeIDs[id] }

// NewFloat64Column is a convenience builder for a dense node/edge property
// column of float64 values, using the graph's own Arrow allocator.
func NewFloat64Column(alloc memory.Allocator, values []float64) arrow.Array {
	b := array.NewFloat64Builder(alloc)
	defer b.Release()
	b.AppendValues(values, nil)
	return b.NewArray()
}

// NewUint32Column is a convenience builder for a dense node/edge property
// column of uint32 values.
func NewUint32Column(alloc memory.Allocator, values []uint32) arrow.Array {
	b := array.NewUint32Builder(alloc)
	defer b.Release()
	b.AppendValues(values, nil)
	return b.NewArray()
}

// NewStringColumn is a convenience builder for a dense node/edge property
// column of string values.
func NewStringColumn(alloc memory.Allocator, values []string) arrow.Array {
	b := array.NewStringBuilder(alloc)
	defer b.Release()
	b.AppendValues(values, nil)
	return b.NewArray()
}
