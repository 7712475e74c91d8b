package graph_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/go-tabgraph/pkg/graph"
	"github.com/soundprediction/go-tabgraph/pkg/types"
)

func row(identity string, attrs []string, conns ...types.ConnectionRef) types.NormalizedRow {
	return types.NormalizedRow{
		Identity:    identity,
		Attributes:  types.AttributesFrom(attrs...),
		Connections: conns,
	}
}

func conn(target, relation string, extra ...string) types.ConnectionRef {
	return types.ConnectionRef{
		TargetIdentity: target,
		RelationType:   relation,
		Extra:          types.AttributesFrom(extra...),
	}
}

func nodeIDs(g *graph.Graph) []string {
	var ids []string
	for _, n := range g.Nodes() {
		ids = append(ids, n.ID)
	}
	return ids
}

func TestReciprocalConnectionsStayDirected(t *testing.T) {
	g := graph.New()
	b := graph.NewBuilder(g)

	b.Ingest(row("ALICE", nil, conn("BOB", "KNOWS")))
	b.Ingest(row("BOB", nil, conn("ALICE", "KNOWS")))

	assert.Equal(t, []string{"ALICE", "BOB"}, nodeIDs(g))
	require.Equal(t, 2, g.EdgeCount())

	ab, ok := g.Edge("ALICE", "BOB", "KNOWS")
	require.True(t, ok)
	assert.Equal(t, 1, ab.Weight)

	ba, ok := g.Edge("BOB", "ALICE", "KNOWS")
	require.True(t, ok)
	assert.Equal(t, 1, ba.Weight)
}

func TestRepeatedConnectionAccumulatesWeight(t *testing.T) {
	g := graph.New()
	b := graph.NewBuilder(g)

	b.Ingest(row("ALICE", nil, conn("CAROL", "KNOWS", "since", "2019")))
	b.Ingest(row("ALICE", nil, conn("CAROL", "KNOWS", "since", "2021")))

	assert.Equal(t, 2, g.NodeCount())
	require.Equal(t, 1, g.EdgeCount())

	edge, ok := g.Edge("ALICE", "CAROL", "KNOWS")
	require.True(t, ok)
	assert.Equal(t, 2, edge.Weight)
	assert.Equal(t, "2019", edge.Extra.Value("since"))
}

func TestDistinctRelationTypesAreDistinctEdges(t *testing.T) {
	g := graph.New()
	b := graph.NewBuilder(g)

	b.Ingest(row("ALICE", nil, conn("BOB", "KNOWS"), conn("BOB", "MANAGES"), conn("BOB", "KNOWS")))

	require.Equal(t, 2, g.EdgeCount())
	edges := g.Edges()
	assert.Equal(t, "KNOWS", edges[0].RelationType)
	assert.Equal(t, 2, edges[0].Weight)
	assert.Equal(t, "MANAGES", edges[1].RelationType)
	assert.Equal(t, 1, edges[1].Weight)
}

func TestAttributeMergeIsFirstWriteWins(t *testing.T) {
	g := graph.New()
	b := graph.NewBuilder(g)

	b.Ingest(row("X", []string{"role", "CHAIR"}))
	b.Ingest(row("X", []string{"role", "MEMBER", "team", "BLUE"}))

	node, ok := g.Node("X")
	require.True(t, ok)
	assert.Equal(t, "X", node.Label)
	assert.Equal(t, "CHAIR", node.Attributes.Value("role"))
	assert.Equal(t, "BLUE", node.Attributes.Value("team"))
	assert.Equal(t, []string{"role", "team"}, node.Attributes.Keys())
	assert.Equal(t, 1, b.Stats().MergedAttributes)
}

func TestImplicitTargetNodes(t *testing.T) {
	g := graph.New()
	b := graph.NewBuilder(g)

	b.Ingest(row("ALICE", []string{"team", "RED"}, conn("ZED", "KNOWS")))

	zed, ok := g.Node("ZED")
	require.True(t, ok)
	assert.Equal(t, "ZED", zed.Label)
	assert.Zero(t, zed.Attributes.Len())
	assert.Equal(t, 1, b.Stats().ImplicitNodes)

	// A later explicit row for the implicit node fills its attributes in.
	b.Ingest(row("ZED", []string{"team", "GREEN"}))
	assert.Equal(t, "GREEN", zed.Attributes.Value("team"))
	assert.Equal(t, []string{"ALICE", "ZED"}, nodeIDs(g))

	for _, e := range g.Edges() {
		_, srcOK := g.Node(e.Source)
		_, dstOK := g.Node(e.Target)
		assert.True(t, srcOK && dstOK, "edge %v references an undeclared node", e.Key())
	}
}

func TestSelfLoopsArePermitted(t *testing.T) {
	g := graph.New()
	b := graph.NewBuilder(g)

	b.Ingest(row("ALICE", nil, conn("ALICE", "ADMIRES")))

	assert.Equal(t, 1, g.NodeCount())
	edge, ok := g.Edge("ALICE", "ALICE", "ADMIRES")
	require.True(t, ok)
	assert.True(t, edge.IsSelfLoop())
	assert.Equal(t, 1, b.Stats().SelfLoops)
}

func TestNoConnectionsMeansNoEdges(t *testing.T) {
	g := graph.New()
	b := graph.NewBuilder(g)

	for _, id := range []string{"A", "B", "A", "C"} {
		b.Ingest(row(id, nil))
	}

	assert.Equal(t, 3, g.NodeCount())
	assert.Zero(t, g.EdgeCount())
	assert.Equal(t, 4, b.Stats().RowsIngested)
}

func TestDuplicateRowOnlyChangesWeight(t *testing.T) {
	r := row("ALICE", []string{"role", "CHAIR"}, conn("BOB", "KNOWS"), conn("CAROL", "KNOWS"))

	once := graph.New()
	graph.NewBuilder(once).Ingest(r)

	twice := graph.New()
	b := graph.NewBuilder(twice)
	b.Ingest(r)
	b.Ingest(r)

	assert.Equal(t, once.NodeCount(), twice.NodeCount())
	assert.Equal(t, once.EdgeCount(), twice.EdgeCount())
	assert.Equal(t, nodeIDs(once), nodeIDs(twice))
	for i, e := range twice.Edges() {
		assert.Equal(t, once.Edges()[i].Weight+1, e.Weight)
	}
}

func TestIngestDoesNotAliasRowAttributes(t *testing.T) {
	g := graph.New()
	b := graph.NewBuilder(g)

	r := row("ALICE", []string{"role", "CHAIR"})
	b.Ingest(r)
	r.Attributes.Set("role", "MEMBER")

	node, _ := g.Node("ALICE")
	assert.Equal(t, "CHAIR", node.Attributes.Value("role"))
}

func TestAttributeKeysMatchIgnoringCase(t *testing.T) {
	g := graph.New()
	b := graph.NewBuilder(g)

	b.Ingest(row("X", []string{"Role", "CHAIR"}))
	b.Ingest(row("X", []string{"role", "MEMBER", "TEAM", "RED"}))
	b.Ingest(row("Y", []string{"role", "MEMBER", "team", "BLUE"}))

	x, _ := g.Node("X")
	assert.Equal(t, map[string]string{"Role": "CHAIR", "TEAM": "RED"}, x.Attributes.Map())
	y, _ := g.Node("Y")
	assert.Equal(t, []string{"Role", "TEAM"}, y.Attributes.Keys())
}
