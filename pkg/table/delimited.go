package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"github.com/soundprediction/go-tabgraph/pkg/types"
)

type delimitedReader struct {
	file   *os.File
	reader *csv.Reader
	header header
}

func openDelimited(path string, comma rune) (*delimitedReader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrMalformedInput, err)
	}

	reader := csv.NewReader(file)
	reader.Comma = comma
	reader.FieldsPerRecord = -1 // ragged rows are tolerated
	reader.LazyQuotes = comma == '\t'

	cells, err := reader.Read()
	if err != nil {
		file.Close()
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: file has no header row", types.ErrMalformedInput)
		}
		return nil, fmt.Errorf("%w: reading header: %v", types.ErrMalformedInput, err)
	}
	if err := checkUTF8(cells); err != nil {
		file.Close()
		return nil, fmt.Errorf("%w: header: %v", types.ErrMalformedInput, err)
	}

	h, err := parseHeader(cells)
	if err != nil {
		file.Close()
		return nil, err
	}

	return &delimitedReader{file: file, reader: reader, header: h}, nil
}

func (r *delimitedReader) Header() []string {
	return r.header.names
}

func (r *delimitedReader) Next() (types.RawRow, error) {
	for {
		record, err := r.reader.Read()
		if err == io.EOF {
			return types.RawRow{}, io.EOF
		}
		if err != nil {
			return types.RawRow{}, fmt.Errorf("%w: %v", types.ErrMalformedInput, err)
		}
		line, _ := r.reader.FieldPos(0)
		if err := checkUTF8(record); err != nil {
			return types.RawRow{}, fmt.Errorf("%w: line %d: %v", types.ErrMalformedInput, line, err)
		}
		if row, ok := r.header.row(line, record); ok {
			return row, nil
		}
	}
}

func (r *delimitedReader) Close() error {
	return r.file.Close()
}

func checkUTF8(cells []string) error {
	for i, cell := range cells {
		if !utf8.ValidString(cell) {
			return fmt.Errorf("column %d is not valid UTF-8", i+1)
		}
	}
	return nil
}
