// Package export writes extracted tables to spreadsheet workbooks.
package export

import (
	"context"
	"fmt"

	"github.com/toricodesthings/document-processor/internal/tables"
	"github.com/xuri/excelize/v2"
)

// MaxRowsPerSheet caps data rows written for a single table.
const MaxRowsPerSheet = 100000

// SheetName is "p<page>_t<table>", unique within one extraction.
func SheetName(t tables.Table) string {
	return fmt.Sprintf("p%d_t%d", t.Page, t.Index)
}

// WriteXLSX writes one sheet per table with the headers as the first row.
// An empty table list produces a workbook with a single empty sheet.
func WriteXLSX(ctx context.Context, path string, tbls []tables.Table) error {
	f := excelize.NewFile()
	defer f.Close()

	first := true
	for _, t := range tbls {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		name := SheetName(t)
		if first {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				return fmt.Errorf("rename sheet: %w", err)
			}
			first = false
		} else if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("new sheet %s: %w", name, err)
		}

		if err := writeTable(f, name, t); err != nil {
			return fmt.Errorf("sheet %s: %w", name, err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

func writeTable(f *excelize.File, sheet string, t tables.Table) error {
	header := make([]any, len(t.Headers))
	for i, h := range t.Headers {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	if len(t.Headers) > 0 {
		style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
		if err != nil {
			return err
		}
		last, err := excelize.CoordinatesToCellName(len(t.Headers), 1)
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
			return err
		}
	}

	rows := t.Data
	if len(rows) > MaxRowsPerSheet {
		rows = rows[:MaxRowsPerSheet]
	}
	for i, row := range rows {
		values := make([]any, len(t.Headers))
		for j, h := range t.Headers {
			v, _ := row.Get(h)
			values[j] = cellValue(v)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
	}
	return nil
}

func cellValue(v tables.Value) any {
	switch v.Kind() {
	case tables.KindInt:
		if n, ok := v.Int64(); ok {
			return n
		}
		return v.Text()
	case tables.KindFloat:
		f, _ := v.Float64()
		return f
	case tables.KindString:
		return v.Text()
	default:
		return nil
	}
}
