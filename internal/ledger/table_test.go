package ledger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestReadCSVStripsBOMAndSpaces(t *testing.T) {
	tbl, err := ReadCSV(strings.NewReader("\ufefftxid, refid ,time\nL1,R1,2023-01-05 02:14:31\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := strings.Join(tbl.Header, "|"); got != "txid|refid|time" {
		t.Errorf("header = %q", got)
	}
	if len(tbl.Rows) != 1 {
		t.Errorf("rows = %d, want 1", len(tbl.Rows))
	}
}

func TestReadCSVEmpty(t *testing.T) {
	if _, err := ReadCSV(strings.NewReader("")); err == nil {
		t.Error("expected error for empty ledger")
	}
}

func writeXLSX(t *testing.T, records [][]string) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	for i, rec := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		row := make([]any, len(rec))
		for j, v := range rec {
			row[j] = v
		}
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatalf("SetSheetRow: %v", err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("writing workbook: %v", err)
	}
	return buf.Bytes()
}

func TestReadXLSX(t *testing.T) {
	data := writeXLSX(t, [][]string{
		strings.Split(strings.TrimSpace(header), ","),
		{"L1", "R1", "2023-01-05 02:14:31", "staking", "", "currency", "ETH2.S", "0.01", "0", "0.01"},
	})

	tbl, err := ReadXLSX(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tbl.Header) != 10 || tbl.Header[6] != "asset" {
		t.Errorf("header = %v", tbl.Header)
	}

	m, err := Normalize(tbl)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if m.Len() != 1 {
		t.Errorf("days = %d, want 1", m.Len())
	}
}

func TestReadFileDispatchesOnExtension(t *testing.T) {
	dir := t.TempDir()

	csvPath := filepath.Join(dir, "ledgers.csv")
	if err := os.WriteFile(csvPath, []byte(header+"L1,R1,2023-01-05 02:14:31,staking,,currency,ETH2.S,0.01,0,0.01\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	tbl, err := ReadFile(csvPath)
	if err != nil {
		t.Fatalf("ReadFile csv: %v", err)
	}
	if len(tbl.Rows) != 1 {
		t.Errorf("csv rows = %d, want 1", len(tbl.Rows))
	}

	xlsxPath := filepath.Join(dir, "ledgers.xlsx")
	data := writeXLSX(t, [][]string{{"txid", "time"}, {"L1", "2023-01-05"}})
	if err := os.WriteFile(xlsxPath, data, 0o600); err != nil {
		t.Fatal(err)
	}
	tbl, err = ReadFile(xlsxPath)
	if err != nil {
		t.Fatalf("ReadFile xlsx: %v", err)
	}
	if len(tbl.Rows) != 1 || tbl.Rows[0][1] != "2023-01-05" {
		t.Errorf("xlsx rows = %v", tbl.Rows)
	}

	if _, err := ReadFile(filepath.Join(dir, "missing.csv")); err == nil {
		t.Error("expected error for missing file")
	}
}
