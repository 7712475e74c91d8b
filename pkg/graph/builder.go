package graph

import (
	"github.com/soundprediction/go-tabgraph/pkg/types"
)

// Stats summarizes what a Builder has done to its graph.
type Stats struct {
	RowsIngested        int `json:"rows_ingested"`
	ImplicitNodes       int `json:"implicit_nodes"`
	MergedAttributes    int `json:"merged_attributes"`
	ConnectionsObserved int `json:"connections_observed"`
	SelfLoops           int `json:"self_loops"`
}

// Builder folds normalized rows into a Graph it does not own.
type Builder struct {
	graph *Graph
	stats Stats
}

// NewBuilder creates a Builder that mutates g.
func NewBuilder(g *Graph) *Builder {
	return &Builder{graph: g}
}

// Graph returns the graph being built.
func (b *Builder) Graph() *Graph {
	return b.graph
}

// Stats returns counters accumulated since the Builder was created.
func (b *Builder) Stats() Stats {
	return b.stats
}

// Ingest adds one row to the graph.
//
// The row's identity becomes a node; if it already exists, only attribute keys
// it does not carry yet are copied in. Attribute keys are matched without
// regard to case. Each connection ensures its target node
// exists and records one observation of the (identity, target, relation) edge.
func (b *Builder) Ingest(row types.NormalizedRow) {
	b.stats.RowsIngested++

	attrs := canonical(b.graph.nodeKeys, row.Attributes)
	node, created := b.graph.upsertNode(row.Identity, attrs)
	if !created {
		for _, key := range attrs.Keys() {
			if node.Attributes.SetIfAbsent(key, attrs.Value(key)) {
				b.stats.MergedAttributes++
			}
		}
	}

	for _, conn := range row.Connections {
		b.stats.ConnectionsObserved++
		if _, created := b.graph.upsertNode(conn.TargetIdentity, nil); created {
			b.stats.ImplicitNodes++
		}

		key := types.EdgeKey{
			Source:       row.Identity,
			Target:       conn.TargetIdentity,
			RelationType: conn.RelationType,
		}
		edge, created := b.graph.upsertEdge(key, canonical(b.graph.edgeKeys, conn.Extra))
		if created && edge.IsSelfLoop() {
			b.stats.SelfLoops++
		}
	}
}
