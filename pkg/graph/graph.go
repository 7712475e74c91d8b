// Package graph holds the in-memory node registry and edge collection built
// during one conversion run.
package graph

import (
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/soundprediction/go-tabgraph/pkg/types"
)

// Graph is an insertion-ordered set of nodes keyed by identity and edges keyed
// by (source, target, relation type). A Graph is owned by a single run and is
// not safe for concurrent mutation.
type Graph struct {
	nodes *orderedmap.OrderedMap[string, *types.Node]
	edges *orderedmap.OrderedMap[types.EdgeKey, *types.Edge]

	// first-seen spelling of attribute keys, indexed by their lower-case form
	nodeKeys map[string]string
	edgeKeys map[string]string
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		nodes:    orderedmap.New[string, *types.Node](),
		edges:    orderedmap.New[types.EdgeKey, *types.Edge](),
		nodeKeys: make(map[string]string),
		edgeKeys: make(map[string]string),
	}
}

// Node returns the node registered under id.
func (g *Graph) Node(id string) (*types.Node, bool) {
	return g.nodes.Get(id)
}

// Edge returns the edge registered under the given triple.
func (g *Graph) Edge(source, target, relationType string) (*types.Edge, bool) {
	return g.edges.Get(types.EdgeKey{Source: source, Target: target, RelationType: relationType})
}

// NodeCount returns the number of distinct nodes.
func (g *Graph) NodeCount() int {
	return g.nodes.Len()
}

// EdgeCount returns the number of distinct edges.
func (g *Graph) EdgeCount() int {
	return g.edges.Len()
}

// Nodes returns the nodes in first-insertion order.
func (g *Graph) Nodes() []*types.Node {
	out := make([]*types.Node, 0, g.nodes.Len())
	for pair := g.nodes.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

// Edges returns the edges in first-insertion order.
func (g *Graph) Edges() []*types.Edge {
	out := make([]*types.Edge, 0, g.edges.Len())
	for pair := g.edges.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

// upsertNode returns the node for id, creating it with the given attributes
// when absent. The boolean reports whether the node was created.
func (g *Graph) upsertNode(id string, attrs *types.Attributes) (*types.Node, bool) {
	if node, ok := g.nodes.Get(id); ok {
		return node, false
	}
	if attrs == nil {
		attrs = types.NewAttributes()
	}
	node := &types.Node{ID: id, Label: id, Attributes: attrs}
	g.nodes.Set(id, node)
	return node, true
}

// upsertEdge adds one observation of key. The first observation creates the
// edge with weight 1 and keeps extra; later ones only increment the weight.
func (g *Graph) upsertEdge(key types.EdgeKey, extra *types.Attributes) (*types.Edge, bool) {
	if edge, ok := g.edges.Get(key); ok {
		edge.Weight++
		return edge, false
	}
	if extra == nil {
		extra = types.NewAttributes()
	}
	edge := &types.Edge{
		Source:       key.Source,
		Target:       key.Target,
		RelationType: key.RelationType,
		Weight:       1,
		Extra:        extra,
	}
	g.edges.Set(key, edge)
	return edge, true
}

// canonical copies attrs, renaming each key to the first spelling registered
// for it in keys so that "Role" and "role" from different files share a column.
func canonical(keys map[string]string, attrs *types.Attributes) *types.Attributes {
	out := types.NewAttributes()
	for _, key := range attrs.Keys() {
		folded := strings.ToLower(key)
		name, ok := keys[folded]
		if !ok {
			name = key
			keys[folded] = key
		}
		out.SetIfAbsent(name, attrs.Value(key))
	}
	return out
}
