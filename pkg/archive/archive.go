// Package archive snapshots finished graphs into a DuckDB database so runs
// can be queried with SQL after their CSV files have been handed off.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/soundprediction/go-tabgraph/pkg/graph"
)

// Writer appends graph snapshots to a DuckDB file. Each snapshot is tagged
// with a run ID; writing the same run ID again replaces its rows.
type Writer struct {
	db *sql.DB
}

// Open opens or creates the DuckDB database at path.
func Open(path string) (*Writer, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create archive directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open DuckDB: %w", err)
	}

	w := &Writer{db: db}
	if err := w.createTables(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return w, nil
}

func (w *Writer) createTables(ctx context.Context) error {
	statements := []struct{ table, ddl string }{
		{"runs", `
			CREATE TABLE IF NOT EXISTS runs (
				id VARCHAR PRIMARY KEY,
				created_at TIMESTAMP,
				node_count INTEGER,
				edge_count INTEGER
			)`},
		{"nodes", `
			CREATE TABLE IF NOT EXISTS nodes (
				run_id VARCHAR,
				position INTEGER,
				id VARCHAR,
				label VARCHAR,
				attributes JSON,
				PRIMARY KEY (run_id, id)
			)`},
		{"edges", `
			CREATE TABLE IF NOT EXISTS edges (
				run_id VARCHAR,
				position INTEGER,
				source VARCHAR,
				target VARCHAR,
				relation_type VARCHAR,
				weight INTEGER,
				extra JSON,
				PRIMARY KEY (run_id, source, target, relation_type)
			)`},
		{"run_events", `
			CREATE TABLE IF NOT EXISTS run_events (
				id VARCHAR PRIMARY KEY,
				run_id VARCHAR,
				timestamp TIMESTAMP,
				level VARCHAR,
				message VARCHAR,
				attributes JSON
			)`},
	}
	for _, s := range statements {
		if _, err := w.db.ExecContext(ctx, s.ddl); err != nil {
			return fmt.Errorf("failed to create %s table: %w", s.table, err)
		}
	}
	return nil
}

// Write stores g under runID in one transaction.
func (w *Writer) Write(ctx context.Context, runID string, g *graph.Graph) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"runs", "nodes", "edges"} {
		column := "run_id"
		if table == "runs" {
			column = "id"
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE %s = ?", table, column), runID); err != nil {
			return fmt.Errorf("failed to clear %s for run %s: %w", table, runID, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, created_at, node_count, edge_count) VALUES (?, ?, ?, ?)`,
		runID, time.Now().UTC(), g.NodeCount(), g.EdgeCount(),
	); err != nil {
		return fmt.Errorf("failed to insert run %s: %w", runID, err)
	}

	if err := writeNodes(ctx, tx, runID, g); err != nil {
		return err
	}
	if err := writeEdges(ctx, tx, runID, g); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func writeNodes(ctx context.Context, tx *sql.Tx, runID string, g *graph.Graph) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO nodes (run_id, position, id, label, attributes)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, node := range g.Nodes() {
		attrs, err := json.Marshal(node.Attributes)
		if err != nil {
			return fmt.Errorf("failed to marshal attributes of node %s: %w", node.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, runID, i, node.ID, node.Label, string(attrs)); err != nil {
			return fmt.Errorf("failed to insert node %s: %w", node.ID, err)
		}
	}
	return nil
}

func writeEdges(ctx context.Context, tx *sql.Tx, runID string, g *graph.Graph) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO edges (run_id, position, source, target, relation_type, weight, extra)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, edge := range g.Edges() {
		extra, err := json.Marshal(edge.Extra)
		if err != nil {
			return fmt.Errorf("failed to marshal extra of edge %s->%s: %w", edge.Source, edge.Target, err)
		}
		if _, err := stmt.ExecContext(ctx,
			runID, i, edge.Source, edge.Target, edge.RelationType, edge.Weight, string(extra),
		); err != nil {
			return fmt.Errorf("failed to insert edge %s->%s: %w", edge.Source, edge.Target, err)
		}
	}
	return nil
}

// Sink returns a graph hook that writes each finished graph under runID.
func (w *Writer) Sink(runID string) func(context.Context, *graph.Graph) error {
	return func(ctx context.Context, g *graph.Graph) error {
		return w.Write(ctx, runID, g)
	}
}

// Counts returns the stored node and edge counts of runID.
func (w *Writer) Counts(ctx context.Context, runID string) (nodes, edges int, err error) {
	err = w.db.QueryRowContext(ctx,
		`SELECT node_count, edge_count FROM runs WHERE id = ?`, runID,
	).Scan(&nodes, &edges)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read run %s: %w", runID, err)
	}
	return nodes, edges, nil
}

// NodeIDs returns the node identities of runID in graph order.
func (w *Writer) NodeIDs(ctx context.Context, runID string) ([]string, error) {
	rows, err := w.db.QueryContext(ctx,
		`SELECT id FROM nodes WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close closes the DuckDB connection
func (w *Writer) Close() error {
	if w.db != nil {
		return w.db.Close()
	}
	return nil
}
