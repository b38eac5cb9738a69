package export

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/xuri/excelize/v2"

	"github.com/mtlprog/stakingcalc/internal/report"
)

// XLSXWriter implements Writer by saving an Excel workbook to a file.
type XLSXWriter struct {
	path string
}

// NewXLSXWriter creates a writer that saves workbooks to path.
func NewXLSXWriter(path string) *XLSXWriter {
	return &XLSXWriter{path: path}
}

// Write renders the report and saves it to the writer's path.
func (w *XLSXWriter) Write(ctx context.Context, rep report.Report) error {
	f, err := os.Create(w.path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", w.path, err)
	}
	defer f.Close()

	if err := WriteXLSX(ctx, f, rep); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", w.path, err)
	}
	return nil
}

// WriteXLSX renders the report as a workbook with one sheet per view and
// streams it to out.
func WriteXLSX(ctx context.Context, out io.Writer, rep report.Report) error {
	f := excelize.NewFile()
	defer f.Close()

	for i, sd := range buildSheets(rep) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), sd.name); err != nil {
				return fmt.Errorf("renaming first sheet: %w", err)
			}
		} else if _, err := f.NewSheet(sd.name); err != nil {
			return fmt.Errorf("adding sheet %s: %w", sd.name, err)
		}

		if err := writeRows(f, sd); err != nil {
			return err
		}
	}

	if err := f.Write(out); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sd sheetData) error {
	for i, row := range sd.values {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("sheet %s row %d: %w", sd.name, i+1, err)
		}
		if err := f.SetSheetRow(sd.name, cell, &row); err != nil {
			return fmt.Errorf("sheet %s row %d: %w", sd.name, i+1, err)
		}
	}
	if len(sd.values) > 0 {
		if err := f.SetPanes(sd.name, &excelize.Panes{
			Freeze:      true,
			YSplit:      1,
			TopLeftCell: "A2",
			ActivePane:  "bottomLeft",
		}); err != nil {
			return fmt.Errorf("freezing header of %s: %w", sd.name, err)
		}
	}
	return nil
}
