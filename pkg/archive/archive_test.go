package archive_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/go-tabgraph/pkg/archive"
	"github.com/soundprediction/go-tabgraph/pkg/graph"
	"github.com/soundprediction/go-tabgraph/pkg/types"
)

func sampleGraph() *graph.Graph {
	g := graph.New()
	b := graph.NewBuilder(g)
	b.Ingest(types.NormalizedRow{
		Identity:   "ALICE",
		Attributes: types.AttributesFrom("team", "RED"),
		Connections: []types.ConnectionRef{
			{TargetIdentity: "BOB", RelationType: "KNOWS", Extra: types.AttributesFrom("since", "2019")},
		},
	})
	b.Ingest(types.NormalizedRow{
		Identity:    "BOB",
		Connections: []types.ConnectionRef{{TargetIdentity: "ALICE", RelationType: "KNOWS"}},
	})
	return g
}

func TestWriteAndReadBack(t *testing.T) {
	ctx := context.Background()
	w, err := archive.Open(filepath.Join(t.TempDir(), "nested", "graph.duckdb"))
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Write(ctx, "run-1", sampleGraph()))

	nodes, edges, err := w.Counts(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 2, nodes)
	assert.Equal(t, 2, edges)

	ids, err := w.NodeIDs(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"ALICE", "BOB"}, ids)
}

func TestSinkReplacesRun(t *testing.T) {
	ctx := context.Background()
	w, err := archive.Open(filepath.Join(t.TempDir(), "graph.duckdb"))
	require.NoError(t, err)
	defer w.Close()

	sink := w.Sink("run-1")
	require.NoError(t, sink(ctx, sampleGraph()))
	require.NoError(t, sink(ctx, graph.New()))

	nodes, edges, err := w.Counts(ctx, "run-1")
	require.NoError(t, err)
	assert.Zero(t, nodes)
	assert.Zero(t, edges)

	ids, err := w.NodeIDs(ctx, "run-1")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestCountsUnknownRun(t *testing.T) {
	w, err := archive.Open(filepath.Join(t.TempDir(), "graph.duckdb"))
	require.NoError(t, err)
	defer w.Close()

	_, _, err = w.Counts(context.Background(), "missing")
	assert.Error(t, err)
}

func TestLogHandlerArchivesWarnings(t *testing.T) {
	ctx := context.Background()
	w, err := archive.Open(filepath.Join(t.TempDir(), "graph.duckdb"))
	require.NoError(t, err)
	defer w.Close()

	var console bytes.Buffer
	next := slog.NewTextHandler(&console, &slog.HandlerOptions{Level: slog.LevelError})
	logger := slog.New(w.LogHandler(next, "run-1")).With("file", "people.csv")

	logger.Info("converting files")
	logger.Warn("ignoring malformed connections", "line", 3, "error", errors.New("no target"))
	logger.Error("conversion failed")

	events, err := w.Events(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "WARN", events[0].Level)
	assert.Equal(t, "ignoring malformed connections", events[0].Message)
	assert.Equal(t, map[string]any{"file": "people.csv", "line": float64(3), "error": "no target"}, events[0].Attributes)
	assert.Equal(t, "ERROR", events[1].Level)

	assert.NotContains(t, console.String(), "malformed", "console keeps its own level")
	assert.Contains(t, console.String(), "conversion failed")

	other, err := w.Events(ctx, "run-2")
	require.NoError(t, err)
	assert.Empty(t, other)
}
