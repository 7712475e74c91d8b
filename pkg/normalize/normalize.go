// Package normalize turns raw table rows into canonical graph input.
//
// Every string value is trimmed and upper-cased so that identities written
// with different spacing or case across uploads resolve to the same node.
// The connections column is decoded here, once, into typed references; the
// serialized form never leaves this package.
package normalize

import (
	"fmt"
	"strings"

	"github.com/soundprediction/go-tabgraph/pkg/types"
)

const (
	// DefaultIdentityColumn names the column holding a row's entity key.
	DefaultIdentityColumn = "id"
	// DefaultConnectionsColumn names the column holding a row's connections list.
	DefaultConnectionsColumn = "connections"
)

// NormalizeValue trims and upper-cases strings. Other values are returned as is.
func NormalizeValue(v any) any {
	if s, ok := v.(string); ok {
		return strings.ToUpper(strings.TrimSpace(s))
	}
	return v
}

// Normalizer resolves raw rows against a designated identity and connections column.
type Normalizer struct {
	IdentityColumn    string
	ConnectionsColumn string
}

// New creates a Normalizer, substituting defaults for empty column names.
func New(identityColumn, connectionsColumn string) *Normalizer {
	if identityColumn == "" {
		identityColumn = DefaultIdentityColumn
	}
	if connectionsColumn == "" {
		connectionsColumn = DefaultConnectionsColumn
	}
	return &Normalizer{
		IdentityColumn:    identityColumn,
		ConnectionsColumn: connectionsColumn,
	}
}

// Normalize converts raw into a NormalizedRow. A row without an identity fails
// with types.ErrMissingIdentity. A connections payload that cannot be decoded
// does not fail the row; it yields no connections and a Diagnostic instead.
func (n *Normalizer) Normalize(raw types.RawRow) (types.NormalizedRow, *types.Diagnostic, error) {
	identityValue, _ := raw.Get(n.IdentityColumn)
	identity := types.FormatValue(NormalizeValue(identityValue))
	if identity == "" {
		return types.NormalizedRow{}, nil, fmt.Errorf("%w: line %d has an empty %q column",
			types.ErrMissingIdentity, raw.Line, n.IdentityColumn)
	}

	row := types.NormalizedRow{
		Identity:   identity,
		Attributes: types.NewAttributes(),
	}

	var diag *types.Diagnostic
	for _, column := range raw.Columns() {
		value, ok := raw.Values[column]
		if !ok {
			continue
		}
		switch {
		case strings.EqualFold(column, n.IdentityColumn):
			// already resolved
		case strings.EqualFold(column, n.ConnectionsColumn):
			conns, err := DecodeConnections(value)
			if err != nil {
				diag = &types.Diagnostic{
					Line:    raw.Line,
					Column:  column,
					Message: err.Error(),
				}
				continue
			}
			row.Connections = conns
		default:
			if s := types.FormatValue(NormalizeValue(value)); s != "" {
				row.Attributes.Set(column, s)
			}
		}
	}

	return row, diag, nil
}
