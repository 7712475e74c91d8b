package table

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/soundprediction/go-tabgraph/pkg/types"
)

type spreadsheetReader struct {
	file   *excelize.File
	rows   *excelize.Rows
	header header
	line   int
}

func openSpreadsheet(path, sheet string) (*spreadsheetReader, error) {
	file, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening spreadsheet: %v", types.ErrMalformedInput, err)
	}

	if sheet == "" {
		sheets := file.GetSheetList()
		if len(sheets) == 0 {
			file.Close()
			return nil, fmt.Errorf("%w: spreadsheet has no worksheets", types.ErrMalformedInput)
		}
		sheet = sheets[0]
	}

	rows, err := file.Rows(sheet)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("%w: worksheet %q: %v", types.ErrMalformedInput, sheet, err)
	}

	r := &spreadsheetReader{file: file, rows: rows}
	if !rows.Next() {
		err := rows.Error()
		r.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: worksheet %q: %v", types.ErrMalformedInput, sheet, err)
		}
		return nil, fmt.Errorf("%w: worksheet %q has no header row", types.ErrMalformedInput, sheet)
	}
	r.line = 1

	cells, err := rows.Columns()
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("%w: reading header: %v", types.ErrMalformedInput, err)
	}
	if r.header, err = parseHeader(cells); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

func (r *spreadsheetReader) Header() []string {
	return r.header.names
}

func (r *spreadsheetReader) Next() (types.RawRow, error) {
	for r.rows.Next() {
		r.line++
		cells, err := r.rows.Columns()
		if err != nil {
			return types.RawRow{}, fmt.Errorf("%w: row %d: %v", types.ErrMalformedInput, r.line, err)
		}
		if row, ok := r.header.row(r.line, cells); ok {
			return row, nil
		}
	}
	if err := r.rows.Error(); err != nil {
		return types.RawRow{}, fmt.Errorf("%w: %v", types.ErrMalformedInput, err)
	}
	return types.RawRow{}, io.EOF
}

func (r *spreadsheetReader) Close() error {
	rowsErr := r.rows.Close()
	if err := r.file.Close(); err != nil {
		return err
	}
	return rowsErr
}
