package emitter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/soundprediction/go-tabgraph/pkg/types"
)

// ParseFormat resolves a format token. Matching ignores case and surrounding
// whitespace; unknown tokens fail with types.ErrUnsupportedFormat.
func ParseFormat(token string) (types.Format, error) {
	f := types.Format(strings.ToLower(strings.TrimSpace(token)))
	if !f.Valid() {
		return "", fmt.Errorf("%w: %q (expected one of %v)", types.ErrUnsupportedFormat, token, types.Formats())
	}
	return f, nil
}

// NormalizeFormat resolves a format token, falling back to types.DefaultFormat
// for empty or unknown tokens.
func NormalizeFormat(token string) types.Format {
	f, err := ParseFormat(token)
	if err != nil {
		return types.DefaultFormat
	}
	return f
}

// schema describes the column layout of one output format.
type schema struct {
	nodeColumns []string
	edgeColumns []string
	nodeCells   func(n *types.Node) []string
	edgeCells   func(e *types.Edge) []string
}

var schemas = map[types.Format]schema{
	types.FormatGephi: {
		nodeColumns: []string{"Id", "Label"},
		edgeColumns: []string{"Source", "Target", "Type", "Weight"},
		nodeCells: func(n *types.Node) []string {
			return []string{n.ID, n.Label}
		},
		edgeCells: func(e *types.Edge) []string {
			return []string{e.Source, e.Target, e.RelationType, strconv.Itoa(e.Weight)}
		},
	},
	// Kumu joins connections to elements by label, so there is no Id column.
	types.FormatKumu: {
		nodeColumns: []string{"Label"},
		edgeColumns: []string{"From", "To", "Type", "Strength"},
		nodeCells: func(n *types.Node) []string {
			return []string{n.Label}
		},
		edgeCells: func(e *types.Edge) []string {
			return []string{e.Source, e.Target, e.RelationType, strconv.Itoa(e.Weight)}
		},
	},
}

func schemaFor(format types.Format) (schema, error) {
	s, ok := schemas[format]
	if !ok {
		return schema{}, fmt.Errorf("%w: %q", types.ErrUnsupportedFormat, format)
	}
	return s, nil
}
