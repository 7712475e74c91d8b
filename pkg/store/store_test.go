package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/go-tabgraph"
	"github.com/soundprediction/go-tabgraph/pkg/types"
)

func newStore(t *testing.T, ttl time.Duration) *BadgerStore {
	t.Helper()
	s, err := Open("", ttl)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutGet(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, time.Hour)

	result := &tabgraph.Result{
		NodesFile: "people_gephi_nodes.csv",
		EdgesFile: "people_gephi_edges.csv",
		NodeCount: 3,
		EdgeCount: 2,
		Format:    types.FormatGephi,
		Diagnostics: []types.Diagnostic{
			{File: "people.csv", Line: 4, Column: "connections", Message: "no target"},
		},
	}
	rec := NewRecord(result, []string{"people.csv"})
	require.NotEmpty(t, rec.ID)
	require.NoError(t, s.Put(ctx, rec))

	got, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "Converted (3 nodes, 2 edges) → format: GEPHI", got.Message)
	assert.Equal(t, []string{"people.csv"}, got.Inputs)
	assert.Equal(t, result.Diagnostics, got.Diagnostics)
	assert.True(t, rec.CreatedAt.Equal(got.CreatedAt))
}

func TestPutAssignsID(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, 0)

	rec := &Record{NodeCount: 1}
	require.NoError(t, s.Put(ctx, rec))
	assert.NotEmpty(t, rec.ID)
	assert.False(t, rec.CreatedAt.IsZero())

	got, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.NodeCount)
}

func TestGetMissing(t *testing.T) {
	s := newStore(t, time.Hour)
	_, err := s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, time.Hour)

	rec := &Record{ID: "abc"}
	require.NoError(t, s.Put(ctx, rec))
	require.NoError(t, s.Delete(ctx, "abc"))

	_, err := s.Get(ctx, "abc")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecordsExpire(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, time.Second)

	rec := &Record{ID: "short-lived"}
	require.NoError(t, s.Put(ctx, rec))

	assert.Eventually(t, func() bool {
		_, err := s.Get(ctx, "short-lived")
		return err == ErrNotFound
	}, 5*time.Second, 100*time.Millisecond)
}

func TestCanceledContext(t *testing.T) {
	s := newStore(t, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, s.Put(ctx, &Record{}), context.Canceled)
	_, err := s.Get(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
}
