// Package ingest turns uploaded tabular files into mapped, normalized rows:
// grid reading, schema gating, header detection and column mapping.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tealeg/xlsx/v2"

	"github.com/flowledger/ledgerd/internal/common"
	"github.com/flowledger/ledgerd/internal/model"
)

// ReadFile reads a CSV or XLSX file into a RawGrid. Unsupported extensions
// and unreadable files are format rejections, fatal for the whole upload.
func ReadFile(path string) (*model.RawGrid, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, common.NewRejection(common.ErrUnsupportedFormat, "FORMAT_REJECTED", fmt.Sprintf("cannot open file: %v", err))
		}
		defer func() { _ = f.Close() }()
		return ReadCSV(f, filepath.Base(path))
	case ".xlsx":
		return ReadXLSX(path, filepath.Base(path))
	default:
		return nil, common.NewRejection(common.ErrUnsupportedFormat, "FORMAT_REJECTED",
			fmt.Sprintf("unsupported extension %q, expected .csv or .xlsx", filepath.Ext(path)))
	}
}

// ReadCSV reads CSV content into a RawGrid. Ragged rows are allowed; header
// detection has to see the grid exactly as uploaded.
func ReadCSV(r io.Reader, sourceName string) (*model.RawGrid, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, common.NewRejection(common.ErrUnsupportedFormat, "FORMAT_REJECTED",
				fmt.Sprintf("malformed CSV: %v", err))
		}
		rows = append(rows, record)
	}

	return &model.RawGrid{SourceName: sourceName, Rows: rows}, nil
}

// ReadXLSX reads the first sheet of an XLSX file into a RawGrid. sourceName
// is the upload's original filename; it feeds the kind-detection filename
// hints, so callers reading from a spool file must not pass the spool path.
func ReadXLSX(path, sourceName string) (*model.RawGrid, error) {
	if sourceName == "" {
		sourceName = filepath.Base(path)
	}
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, common.NewRejection(common.ErrUnsupportedFormat, "FORMAT_REJECTED",
			fmt.Sprintf("cannot open workbook: %v", err))
	}

	if len(f.Sheets) == 0 {
		return nil, common.NewRejection(common.ErrEmptyFile, "EMPTY_FILE", "workbook has no sheets")
	}

	sheet := f.Sheets[0]
	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for i, cell := range row.Cells {
			cells[i] = strings.TrimSpace(cell.String())
		}
		rows = append(rows, cells)
	}

	return &model.RawGrid{SourceName: sourceName, Rows: rows}, nil
}
