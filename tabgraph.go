// Package tabgraph converts tables of entities and their connections into the
// node and edge files that network visualization tools import.
//
// A conversion reads one or more CSV, TSV or XLSX files, normalizes every row,
// folds all rows into a single graph (so entities split across files merge into
// one node) and writes the graph in the Gephi or Kumu column layout.
package tabgraph

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/soundprediction/go-tabgraph/pkg/emitter"
	"github.com/soundprediction/go-tabgraph/pkg/graph"
	"github.com/soundprediction/go-tabgraph/pkg/normalize"
	"github.com/soundprediction/go-tabgraph/pkg/table"
	"github.com/soundprediction/go-tabgraph/pkg/types"
	"github.com/soundprediction/go-tabgraph/pkg/utils"
)

// Config holds configuration for a Converter.
type Config struct {
	// IdentityColumn names the column holding each row's entity key.
	IdentityColumn string
	// ConnectionsColumn names the column holding each row's connections list.
	ConnectionsColumn string
	// Sheet selects the worksheet of spreadsheet inputs. Empty reads the first.
	Sheet string
	// Workers bounds how many files are read and normalized concurrently.
	Workers int
}

// Result describes a finished conversion.
type Result struct {
	NodesFile   string             `json:"nodes_file"`
	EdgesFile   string             `json:"edges_file"`
	NodeCount   int                `json:"node_count"`
	EdgeCount   int                `json:"edge_count"`
	Format      types.Format       `json:"format"`
	Stats       graph.Stats        `json:"stats"`
	Diagnostics []types.Diagnostic `json:"diagnostics,omitempty"`
}

// Summary renders the one-line status message shown to users.
func (r *Result) Summary() string {
	return fmt.Sprintf("Converted (%d nodes, %d edges) → format: %s",
		r.NodeCount, r.EdgeCount, strings.ToUpper(string(r.Format)))
}

// Converter runs conversions. It holds no state between runs and is safe for
// concurrent use.
type Converter struct {
	config     Config
	normalizer *normalize.Normalizer
	logger     *slog.Logger
}

// NewConverter creates a Converter. A nil logger discards log output.
func NewConverter(config Config, logger *slog.Logger) *Converter {
	if config.Workers <= 0 {
		config.Workers = utils.GetWorkerLimit()
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	n := normalize.New(config.IdentityColumn, config.ConnectionsColumn)
	config.IdentityColumn = n.IdentityColumn
	config.ConnectionsColumn = n.ConnectionsColumn

	return &Converter{
		config:     config,
		normalizer: n,
		logger:     logger,
	}
}

// Config returns the effective configuration.
func (c *Converter) Config() Config {
	return c.config
}

// Normalizer returns the row normalizer configured for this Converter.
func (c *Converter) Normalizer() *normalize.Normalizer {
	return c.normalizer
}

// Sink receives the finished graph of a conversion before its files are
// written. A Sink error aborts the conversion.
type Sink func(ctx context.Context, g *graph.Graph) error

// ConvertMany converts the files at paths, in the given order, into one graph
// and writes it to outputDir in the requested format. Unknown formats fall back
// to types.DefaultFormat. Either both output files are written or, on error,
// none are.
func (c *Converter) ConvertMany(ctx context.Context, paths []string, outputDir, format string) (*Result, error) {
	return c.Convert(ctx, paths, outputDir, format)
}

// Convert is ConvertMany with additional sinks for the built graph.
func (c *Converter) Convert(ctx context.Context, paths []string, outputDir, format string, sinks ...Sink) (*Result, error) {
	if len(paths) == 0 {
		return nil, types.ErrNoInput
	}

	start := time.Now()
	f := emitter.NormalizeFormat(format)
	if string(f) != format {
		c.logger.Debug("format resolved", "requested", format, "format", f)
	}
	c.logger.Info("converting files", "files", len(paths), "format", f, "output_dir", outputDir)

	g, stats, diags, err := c.build(ctx, paths)
	if err != nil {
		return nil, err
	}
	for _, sink := range sinks {
		if err := sink(ctx, g); err != nil {
			return nil, fmt.Errorf("graph sink failed: %w", err)
		}
	}

	nodesFile, edgesFile, err := c.Emit(g, f, outputDir, BaseName(paths, f))
	if err != nil {
		return nil, err
	}

	result := &Result{
		NodesFile:   nodesFile,
		EdgesFile:   edgesFile,
		NodeCount:   g.NodeCount(),
		EdgeCount:   g.EdgeCount(),
		Format:      f,
		Stats:       stats,
		Diagnostics: diags,
	}
	c.logger.Info("conversion complete",
		"nodes", result.NodeCount,
		"edges", result.EdgeCount,
		"diagnostics", len(diags),
		"nodes_file", nodesFile,
		"edges_file", edgesFile,
		"duration", time.Since(start),
	)
	return result, nil
}

// Build reads and normalizes the files at paths and folds their rows, in file
// order, into a new graph.
func (c *Converter) Build(ctx context.Context, paths []string) (*graph.Graph, []types.Diagnostic, error) {
	if len(paths) == 0 {
		return nil, nil, types.ErrNoInput
	}
	g, _, diags, err := c.build(ctx, paths)
	return g, diags, err
}

// Emit writes g to outputDir under base.
func (c *Converter) Emit(g *graph.Graph, format types.Format, outputDir, base string) (string, string, error) {
	nodesFile, edgesFile, err := emitter.Emit(g, format, outputDir, emitter.WithBaseName(base))
	if err != nil {
		return "", "", fmt.Errorf("failed to emit graph: %w", err)
	}
	return nodesFile, edgesFile, nil
}

type fileRows struct {
	rows  []types.NormalizedRow
	diags []types.Diagnostic
	err   error
}

func (c *Converter) build(ctx context.Context, paths []string) (*graph.Graph, graph.Stats, []types.Diagnostic, error) {
	results := make([]fileRows, len(paths))

	// Files are read in parallel; each result lands in its own slot.
	var eg errgroup.Group
	eg.SetLimit(c.config.Workers)
	for i, path := range paths {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i].err = err
				return nil
			}
			results[i] = c.readFile(ctx, path)
			return nil
		})
	}
	eg.Wait()

	var errs []error
	for i, r := range results {
		if r.err != nil {
			errs = append(errs, &FileError{Path: paths[i], Err: r.err})
		}
	}
	if len(errs) > 0 {
		err := errors.Join(errs...)
		c.logger.Error("conversion failed", "failed_files", len(errs), "error", err)
		return nil, graph.Stats{}, nil, err
	}

	// Rows are committed in submission order, never completion order.
	g := graph.New()
	b := graph.NewBuilder(g)
	var diags []types.Diagnostic
	for _, r := range results {
		for _, row := range r.rows {
			b.Ingest(row)
		}
		diags = append(diags, r.diags...)
	}

	stats := b.Stats()
	c.logger.Debug("graph built",
		"rows", stats.RowsIngested,
		"nodes", g.NodeCount(),
		"edges", g.EdgeCount(),
		"implicit_nodes", stats.ImplicitNodes,
		"self_loops", stats.SelfLoops,
	)
	return g, stats, diags, nil
}

func (c *Converter) readFile(ctx context.Context, path string) fileRows {
	r, err := table.Open(path, table.Options{Sheet: c.config.Sheet})
	if err != nil {
		return fileRows{err: err}
	}
	defer r.Close()

	var out fileRows
	name := filepath.Base(path)
	for {
		raw, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fileRows{err: err}
		}
		if len(out.rows)%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return fileRows{err: err}
			}
		}

		row, diag, err := c.normalizer.Normalize(raw)
		if err != nil {
			return fileRows{err: err}
		}
		if diag != nil {
			diag.File = name
			c.logger.Warn("ignoring malformed connections", "file", name, "line", diag.Line, "error", diag.Message)
			out.diags = append(out.diags, *diag)
		}
		out.rows = append(out.rows, row)
	}

	c.logger.Debug("file read", "file", name, "rows", len(out.rows), "diagnostics", len(out.diags))
	return out
}

// BaseName derives the output file prefix from the inputs: the first input's
// name, marked as merged when several files were combined, and the format.
func BaseName(paths []string, format types.Format) string {
	if len(paths) == 0 {
		return string(format)
	}
	base := utils.SanitizeFilename(utils.Stem(paths[0]), "graph")
	if len(paths) > 1 {
		base += "_merged"
	}
	return base + "_" + string(format)
}
