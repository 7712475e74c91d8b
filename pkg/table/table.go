// Package table reads delimited-text and spreadsheet files as a forward-only
// sequence of rows keyed by their header.
package table

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/soundprediction/go-tabgraph/pkg/types"
)

// Kind identifies the container format of a tabular file.
type Kind string

const (
	KindCSV  Kind = "csv"
	KindTSV  Kind = "tsv"
	KindXLSX Kind = "xlsx"
)

// Reader is a lazy, single-pass row iterator. Next returns io.EOF once the
// last row has been read; re-open the file to read it again.
type Reader interface {
	Header() []string
	Next() (types.RawRow, error)
	Close() error
}

// Options tune how a file is opened.
type Options struct {
	// Sheet is the worksheet to read from a spreadsheet. Empty selects the first.
	Sheet string
}

// KindFromPath returns the Kind declared by the file extension.
func KindFromPath(path string) (Kind, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return KindCSV, nil
	case ".tsv", ".tab":
		return KindTSV, nil
	case ".xlsx", ".xlsm":
		return KindXLSX, nil
	default:
		return "", fmt.Errorf("%w: unsupported extension %q", types.ErrMalformedInput, filepath.Ext(path))
	}
}

// Open opens path and picks the reader from its extension.
func Open(path string, opts Options) (Reader, error) {
	kind, err := KindFromPath(path)
	if err != nil {
		return nil, err
	}
	return OpenKind(path, kind, opts)
}

// OpenKind opens path as the given kind regardless of its extension.
func OpenKind(path string, kind Kind, opts Options) (Reader, error) {
	switch kind {
	case KindCSV:
		return openDelimited(path, ',')
	case KindTSV:
		return openDelimited(path, '\t')
	case KindXLSX:
		return openSpreadsheet(path, opts.Sheet)
	default:
		return nil, fmt.Errorf("%w: unknown table kind %q", types.ErrMalformedInput, kind)
	}
}

// ReadAll drains r into a slice.
func ReadAll(r Reader) ([]types.RawRow, error) {
	var rows []types.RawRow
	for {
		row, err := r.Next()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return rows, err
		}
		rows = append(rows, row)
	}
}

// header holds the cleaned column names and the source cell index of each.
type header struct {
	names   []string
	indices []int
}

// parseHeader trims header cells, drops blank ones and rejects duplicates.
func parseHeader(cells []string) (header, error) {
	var h header
	seen := make(map[string]bool, len(cells))
	for i, cell := range cells {
		if i == 0 {
			cell = strings.TrimPrefix(cell, "\ufeff")
		}
		name := strings.TrimSpace(cell)
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if seen[key] {
			return header{}, fmt.Errorf("%w: duplicate column %q", types.ErrMalformedInput, name)
		}
		seen[key] = true
		h.names = append(h.names, name)
		h.indices = append(h.indices, i)
	}
	if len(h.names) == 0 {
		return header{}, fmt.Errorf("%w: header row has no column names", types.ErrMalformedInput)
	}
	return h, nil
}

// row maps record cells onto the header. Cells past the end of a short record
// are absent; cells with no header are dropped. It returns false when every
// mapped cell is blank.
func (h header) row(line int, record []string) (types.RawRow, bool) {
	values := make(map[string]any, len(h.names))
	blank := true
	for i, name := range h.names {
		idx := h.indices[i]
		if idx >= len(record) {
			continue
		}
		values[name] = record[idx]
		if strings.TrimSpace(record[idx]) != "" {
			blank = false
		}
	}
	return types.RawRow{Line: line, Header: h.names, Values: values}, !blank
}
