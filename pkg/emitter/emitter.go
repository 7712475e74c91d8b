// Package emitter renders a finished graph as the node and edge CSV files a
// network visualization tool imports.
package emitter

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/soundprediction/go-tabgraph/pkg/graph"
	"github.com/soundprediction/go-tabgraph/pkg/types"
	"github.com/soundprediction/go-tabgraph/pkg/utils"
)

const (
	// NodesSuffix ends every emitted node file name.
	NodesSuffix = "_nodes.csv"
	// EdgesSuffix ends every emitted edge file name.
	EdgesSuffix = "_edges.csv"

	defaultBaseName = "graph"
)

type options struct {
	baseName string
}

// Option configures Emit.
type Option func(*options)

// WithBaseName sets the prefix of the emitted file names.
func WithBaseName(name string) Option {
	return func(o *options) {
		if name = utils.SanitizeFilename(name, ""); name != "" {
			o.baseName = name
		}
	}
}

// Emit writes g in the given format to a node file and an edge file inside
// outputDir and returns their base names.
//
// Nothing becomes visible under the final names until both files are
// complete. Existing files are never overwritten: if <base>_nodes.csv or
// <base>_edges.csv exists, the pair is written as <base>_1_nodes.csv and
// <base>_1_edges.csv, and so on.
func Emit(g *graph.Graph, format types.Format, outputDir string, opts ...Option) (nodesFile, edgesFile string, err error) {
	o := options{baseName: defaultBaseName}
	for _, opt := range opts {
		opt(&o)
	}

	s, err := schemaFor(format)
	if err != nil {
		return "", "", err
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", "", fmt.Errorf("failed to create output directory: %w", err)
	}

	nodesTmp, err := writeTemp(outputDir, func(w io.Writer) error { return writeNodes(w, g, s) })
	if err != nil {
		return "", "", fmt.Errorf("failed to write nodes: %w", err)
	}
	defer os.Remove(nodesTmp)

	edgesTmp, err := writeTemp(outputDir, func(w io.Writer) error { return writeEdges(w, g, s) })
	if err != nil {
		return "", "", fmt.Errorf("failed to write edges: %w", err)
	}
	defer os.Remove(edgesTmp)

	final, err := utils.LinkGroup(outputDir, o.baseName, []string{nodesTmp, edgesTmp}, NodesSuffix, EdgesSuffix)
	if err != nil {
		return "", "", fmt.Errorf("failed to publish output files: %w", err)
	}

	return filepath.Base(final[0]), filepath.Base(final[1]), nil
}

// Render writes g in the given format to two writers without touching the
// filesystem.
func Render(g *graph.Graph, format types.Format, nodes, edges io.Writer) error {
	s, err := schemaFor(format)
	if err != nil {
		return err
	}
	if err := writeNodes(nodes, g, s); err != nil {
		return fmt.Errorf("failed to write nodes: %w", err)
	}
	if err := writeEdges(edges, g, s); err != nil {
		return fmt.Errorf("failed to write edges: %w", err)
	}
	return nil
}

func writeNodes(w io.Writer, g *graph.Graph, s schema) error {
	nodes := g.Nodes()
	attrs := make([]*types.Attributes, len(nodes))
	for i, n := range nodes {
		attrs[i] = n.Attributes
	}
	keys := columnKeys(attrs)

	cw := csv.NewWriter(w)
	if err := cw.Write(append(append([]string{}, s.nodeColumns...), headerNames(keys, s.nodeColumns)...)); err != nil {
		return err
	}
	for _, n := range nodes {
		if err := cw.Write(append(s.nodeCells(n), cells(n.Attributes, keys)...)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeEdges(w io.Writer, g *graph.Graph, s schema) error {
	edges := g.Edges()
	extras := make([]*types.Attributes, len(edges))
	for i, e := range edges {
		extras[i] = e.Extra
	}
	keys := columnKeys(extras)

	cw := csv.NewWriter(w)
	if err := cw.Write(append(append([]string{}, s.edgeColumns...), headerNames(keys, s.edgeColumns)...)); err != nil {
		return err
	}
	for _, e := range edges {
		if err := cw.Write(append(s.edgeCells(e), cells(e.Extra, keys)...)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// columnKeys returns the distinct keys of sets in first-seen order.
func columnKeys(sets []*types.Attributes) []string {
	seen := make(map[string]bool)
	var keys []string
	for _, set := range sets {
		for _, key := range set.Keys() {
			if !seen[key] {
				seen[key] = true
				keys = append(keys, key)
			}
		}
	}
	return keys
}

// headerNames prefixes keys that would shadow a fixed schema column with
// attr_, repeating the prefix until the name is free among the fixed columns
// and every other key.
func headerNames(keys, fixed []string) []string {
	taken := make(map[string]bool, len(keys)+len(fixed))
	for _, name := range append(append([]string{}, fixed...), keys...) {
		taken[strings.ToLower(name)] = true
	}

	names := make([]string, len(keys))
	for i, key := range keys {
		names[i] = key
		if !slices.ContainsFunc(fixed, func(col string) bool { return strings.EqualFold(key, col) }) {
			continue
		}
		name := "attr_" + key
		for taken[strings.ToLower(name)] {
			name = "attr_" + name
		}
		taken[strings.ToLower(name)] = true
		names[i] = name
	}
	return names
}

func cells(set *types.Attributes, keys []string) []string {
	out := make([]string, len(keys))
	for i, key := range keys {
		out[i] = set.Value(key)
	}
	return out
}

// writeTemp writes a hidden temp file in dir and returns its path. The file is
// removed if write fails.
func writeTemp(dir string, write func(io.Writer) error) (string, error) {
	f, err := os.CreateTemp(dir, ".tabgraph-*.tmp")
	if err != nil {
		return "", err
	}
	path := f.Name()

	if err := write(f); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}
