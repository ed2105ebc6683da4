package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/roach88/serownia/internal/store"
)

// Sheet names, in workbook order.
const (
	SheetProtocols         = "Protokoły"
	SheetAdditives         = "Dodatki"
	SheetAdditivesRegister = "Rejestr dodatków"
	SheetPackagingRegister = "Rejestr opakowań"
	SheetTotals            = "Stany"
)

type sheet struct {
	name    string
	headers []string
	widths  []float64
	rows    [][]any
}

// WriteXLSX writes d as a workbook with one sheet per section. Header rows
// are bold; received totals are numeric cells.
func WriteXLSX(w io.Writer, d *Data) error {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	for i, sh := range sheets(d) {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sh.name); err != nil {
				return fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(sh.name); err != nil {
			return fmt.Errorf("create sheet %s: %w", sh.name, err)
		}
		if err := writeSheet(f, sh, headerStyle); err != nil {
			return fmt.Errorf("write sheet %s: %w", sh.name, err)
		}
	}
	f.SetActiveSheet(0)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sh sheet, headerStyle int) error {
	for i, h := range sh.headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sh.name, cell, h); err != nil {
			return err
		}
		if err := f.SetCellStyle(sh.name, cell, cell, headerStyle); err != nil {
			return err
		}
	}
	for r, row := range sh.rows {
		for c, v := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sh.name, cell, v); err != nil {
				return err
			}
		}
	}
	for i, width := range sh.widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sh.name, col, col, width); err != nil {
			return err
		}
	}
	return nil
}

func sheets(d *Data) []sheet {
	protocols := sheet{
		name:    SheetProtocols,
		headers: []string{"ID", "Data", "Seria", "Produkt", "Rodzaj"},
		widths:  []float64{8, 12, 14, 30, 14},
	}
	for _, p := range d.Protocols {
		protocols.rows = append(protocols.rows, []any{p.ID, p.Date, p.Series, p.ProductName, p.Kind})
	}

	additives := sheet{
		name:    SheetAdditives,
		headers: []string{"ID protokołu", "Data", "Seria", "Kategoria", "Dodatek", "Dawka"},
		widths:  []float64{12, 12, 14, 22, 30, 12},
	}
	for _, a := range d.Additives {
		additives.rows = append(additives.rows, []any{a.RecordID, a.Date, a.Series, a.Category, a.Name, a.Dose})
	}

	registers := []sheet{
		{name: SheetAdditivesRegister, headers: []string{"ID", "Data", "Ilość", "Dodatek"}},
		{name: SheetPackagingRegister, headers: []string{"ID", "Data", "Ilość", "Opakowanie"}},
	}
	for i, entries := range [][]store.RegisterEntry{d.AdditivesRegister, d.PackagingRegister} {
		registers[i].widths = []float64{8, 12, 10, 30}
		for _, e := range entries {
			registers[i].rows = append(registers[i].rows, []any{e.ID, e.Date, e.Quantity, e.ItemName})
		}
	}

	totals := sheet{
		name:    SheetTotals,
		headers: []string{"Rejestr", "Pozycja", "Przyjęto", "Wpisy", "Pominięte"},
		widths:  []float64{12, 30, 12, 8, 10},
	}
	for _, t := range d.Totals {
		totals.rows = append(totals.rows, []any{
			t.Register, t.ItemName, t.Quantity.InexactFloat64(), t.Entries, t.Skipped,
		})
	}

	return []sheet{protocols, additives, registers[0], registers[1], totals}
}
