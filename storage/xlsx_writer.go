package storage

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"worldbank-panel/models"
)

// PanelSheet is the worksheet the panel is written to.
const PanelSheet = "panel"

// XLSXWriter exports the panel as a workbook with the CSV column layout.
type XLSXWriter struct {
	path string
}

// NewXLSXWriter creates a writer targeting path.
func NewXLSXWriter(path string) *XLSXWriter {
	return &XLSXWriter{path: path}
}

// WritePanel writes the panel to a fresh workbook, replacing any existing
// file. NaN cells are left blank; infinities are written as text.
func (x *XLSXWriter) WritePanel(panel *models.Panel) error {
	if err := os.MkdirAll(filepath.Dir(x.path), 0755); err != nil {
		return &FileAccessError{Op: "create dir", Path: filepath.Dir(x.path), Err: err}
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", PanelSheet); err != nil {
		return fmt.Errorf("xlsx: rename sheet: %w", err)
	}
	sw, err := f.NewStreamWriter(PanelSheet)
	if err != nil {
		return fmt.Errorf("xlsx: stream writer: %w", err)
	}

	header := append(append([]string{}, PanelKeyColumns...), panel.Columns...)
	headerCells := make([]any, len(header))
	for i, h := range header {
		headerCells[i] = h
	}
	if err := sw.SetRow("A1", headerCells); err != nil {
		return fmt.Errorf("xlsx: write header: %w", err)
	}

	for i, r := range panel.Rows {
		cells := make([]any, 0, len(header))
		cells = append(cells, r.Country, r.CountryCode)
		if r.Year.Valid {
			cells = append(cells, r.Year.Int64)
		} else {
			cells = append(cells, nil)
		}
		for _, v := range r.Values {
			cells = append(cells, xlsxCell(v))
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("xlsx: cell name: %w", err)
		}
		if err := sw.SetRow(cell, cells); err != nil {
			return fmt.Errorf("xlsx: write row %d: %w", i, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("xlsx: flush: %w", err)
	}
	if err := f.SaveAs(x.path); err != nil {
		return &FileAccessError{Op: "save", Path: x.path, Err: err}
	}
	return nil
}

// Close is a no-op; each WritePanel produces a complete workbook.
func (x *XLSXWriter) Close() error { return nil }

func xlsxCell(v float64) any {
	switch {
	case math.IsNaN(v):
		return nil
	case math.IsInf(v, 0):
		return FormatFloat(v)
	}
	return v
}
