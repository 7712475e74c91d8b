package types

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// RawRow is a single record as read from a tabular source, before normalization.
type RawRow struct {
	// Line is the 1-based line (CSV) or sheet row (XLSX) the record came from.
	Line int
	// Header is the column order of the source; shared by every row of a file.
	Header []string
	// Values maps column name to raw cell value.
	Values map[string]any
}

// Get returns the value of column name, matched case-insensitively. An exact
// match wins over case variants, which are tried in sorted order.
func (r RawRow) Get(name string) (any, bool) {
	if v, ok := r.Values[name]; ok {
		return v, true
	}
	for _, k := range sortedKeys(r.Values) {
		if strings.EqualFold(k, name) {
			return r.Values[k], true
		}
	}
	return nil, false
}

// Columns returns the row's column names in source order. Columns present in
// Values but not in Header (submission payloads) follow in sorted order.
func (r RawRow) Columns() []string {
	if len(r.Header) > 0 {
		return r.Header
	}
	return sortedKeys(r.Values)
}

// NormalizedRow is a RawRow resolved into an identity, scalar attributes and
// decoded connections.
type NormalizedRow struct {
	Identity    string
	Attributes  *Attributes
	Connections []ConnectionRef
}

// ConnectionRef is one decoded entry of a row's connections field.
type ConnectionRef struct {
	TargetIdentity string
	RelationType   string
	Extra          *Attributes
}

// Node represents a node in the converted graph.
type Node struct {
	ID         string      `json:"id"`
	Label      string      `json:"label"`
	Attributes *Attributes `json:"attributes"`
}

// Edge represents a directed, weighted relationship between two nodes.
type Edge struct {
	Source       string      `json:"source"`
	Target       string      `json:"target"`
	RelationType string      `json:"relation_type"`
	Weight       int         `json:"weight"`
	Extra        *Attributes `json:"extra"`
}

// Key returns the deduplication key of the edge.
func (e *Edge) Key() EdgeKey {
	return EdgeKey{Source: e.Source, Target: e.Target, RelationType: e.RelationType}
}

// IsSelfLoop reports whether the edge starts and ends at the same node.
func (e *Edge) IsSelfLoop() bool {
	return e.Source == e.Target
}

// EdgeKey identifies an edge: at most one edge exists per key.
type EdgeKey struct {
	Source       string
	Target       string
	RelationType string
}

// Diagnostic records a non-fatal, row-level problem found during a conversion.
type Diagnostic struct {
	File    string `json:"file,omitempty"`
	Line    int    `json:"line"`
	Column  string `json:"column"`
	Message string `json:"message"`
}

func (d Diagnostic) String() string {
	if d.File != "" {
		return fmt.Sprintf("%s:%d: %s: %s", d.File, d.Line, d.Column, d.Message)
	}
	return fmt.Sprintf("line %d: %s: %s", d.Line, d.Column, d.Message)
}

// FormatValue renders a raw or normalized value as a cell string. Strings are
// returned unchanged, nil becomes "", integral floats drop their fraction and
// composite values are JSON encoded.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		if val == math.Trunc(val) && math.Abs(val) < 1e15 {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return FormatValue(float64(val))
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case map[string]any, []any:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	default:
		return fmt.Sprint(val)
	}
}
