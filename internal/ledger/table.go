// Package ledger turns exchange ledger exports into reward matrices.
package ledger

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Table is a ledger export as header plus raw string rows.
type Table struct {
	Header []string
	Rows   [][]string
}

// ReadCSV reads a comma-separated ledger export. The first record is the header.
func ReadCSV(r io.Reader) (Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return Table{}, fmt.Errorf("reading CSV ledger: %w", err)
	}
	return newTable(records)
}

// ReadXLSX reads the first sheet of a spreadsheet ledger export.
func ReadXLSX(r io.Reader) (Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return Table{}, fmt.Errorf("opening XLSX ledger: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return Table{}, errors.New("XLSX ledger has no sheets")
	}

	records, err := f.GetRows(sheets[0])
	if err != nil {
		return Table{}, fmt.Errorf("reading XLSX sheet %s: %w", sheets[0], err)
	}
	return newTable(records)
}

// ReadFile reads a ledger export from disk, choosing the format by extension.
func ReadFile(path string) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return Table{}, fmt.Errorf("opening ledger: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return ReadXLSX(f)
	default:
		return ReadCSV(f)
	}
}

func newTable(records [][]string) (Table, error) {
	if len(records) == 0 {
		return Table{}, errors.New("ledger is empty")
	}
	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		// Spreadsheet exports sometimes carry a UTF-8 BOM on the first cell.
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}
	return Table{Header: header, Rows: records[1:]}, nil
}
