// Package projection implements the projected view (C10): a non-owning,
// type-filtered logical view over a PropertyGraph, used by algorithms that
// only want to see nodes/edges of particular entity types (e.g. "Person"
// nodes and "FollowedBy" edges out of a mixed-type graph).
package projection

import (
	"fmt"

	"github.com/KatanaGraph/katana-sub004/internal/graph"
	"github.com/KatanaGraph/katana-sub004/pkg/collections"
	"github.com/KatanaGraph/katana-sub004/pkg/perrors"
)

// View is a non-owning reference to a PropertyGraph plus the set of node
// and edge type IDs visible through it. It holds no copy of the
// underlying topology or property columns.
type View struct {
	Graph     *graph.PropertyGraph
	NodeTypes *collections.Bitset
	EdgeTypes *collections.Bitset
}

// HasNode reports whether id's entity type is visible in this view.
func (v *View) HasNode(id uint32) bool {
	return v.NodeTypes.Test(int(v.Graph.NodeType(id)))
}

// HasEdge reports whether id's entity type is visible in this view.
func (v *View) HasEdge(id uint32) bool {
	return v.EdgeTypes.Test(int(v.Graph.EdgeType(id)))
}

// MakeProjectedGraph builds a View over g restricted to the named node and
// edge types. An empty nodeTypeNames/edgeTypeNames means "all types" for
// that axis (the projection is a pure pass-through on that dimension).
func MakeProjectedGraph(g *graph.PropertyGraph, nodeTypeNames, edgeTypeNames []string) (*View, error) {
	nodeTypes := collections.NewBitset(g.Types.NumTypes() + 1)
	if len(nodeTypeNames) == 0 {
		nodeTypes.SetAll()
	} else {
		for _, name := range nodeTypeNames {
			id, ok := g.Types.IDForName(name)
			if !ok {
				return nil, perrors.Wrap(perrors.CodeNotFound, fmt.Sprintf("node type %q not registered", name), nil)
			}
			nodeTypes.Set(int(id))
		}
	}

	edgeTypes := collections.NewBitset(g.Types.NumTypes() + 1)
	if len(edgeTypeNames) == 0 {
		edgeTypes.SetAll()
	} else {
		for _, name := range edgeTypeNames {
			id, ok := g.Types.IDForName(name)
			if !ok {
				return nil, perrors.Wrap(perrors.CodeNotFound, fmt.Sprintf("edge type %q not registered", name), nil)
			}
			edgeTypes.Set(int(id))
		}
	}

	return &View{Graph: g, NodeTypes: nodeTypes, EdgeTypes: edgeTypes}, nil
}
