// Package encode serializes rich-cell workbooks to spreadsheet and document
// blobs, and reads tabular sources back in.
package encode

import (
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/tablefold/tablefold/internal/domain"
	"github.com/tablefold/tablefold/internal/sheet"
)

// XLSX reads and writes spreadsheet files via excelize.
type XLSX struct{}

// NewXLSX creates a spreadsheet codec.
func NewXLSX() *XLSX {
	return &XLSX{}
}

// ReadSheets reads raw tabular data per named sheet. Sheets without any data
// are skipped; an entirely empty workbook is a read error.
func (x *XLSX) ReadSheets(_ context.Context, path string) ([]domain.RawTable, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, domain.ReadError("failed to open spreadsheet", err)
	}
	defer f.Close()

	var tables []domain.RawTable
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, domain.ReadError(fmt.Sprintf("failed to read sheet %q", name), err)
		}
		if len(rows) == 0 {
			continue
		}
		tables = append(tables, domain.RawTable{Name: name, Rows: rows})
	}

	if len(tables) == 0 {
		return nil, domain.ReadError("spreadsheet contains no sheets with data", nil)
	}
	return tables, nil
}

// EncodeSpreadsheet serializes the sheets, mapping cell styles onto real
// spreadsheet styles.
func (x *XLSX) EncodeSpreadsheet(sheets []sheet.Sheet) ([]byte, error) {
	if len(sheets) == 0 {
		return nil, domain.SelectionError("no sheets to encode", nil)
	}

	f := excelize.NewFile()
	defer f.Close()

	styleIDs := make(map[sheet.Style]int)
	used := make(map[string]bool)

	for i, s := range sheets {
		name := sheetName(s.Name, i)
		if used[name] {
			name = sheetName(fmt.Sprintf("%.27s %d", name, i+1), i)
		}
		used[name] = true
		if i == 0 {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				return nil, domain.IOError("failed to rename sheet", err)
			}
		} else {
			if _, err := f.NewSheet(name); err != nil {
				return nil, domain.IOError("failed to add sheet", err)
			}
		}

		for r, row := range s.Rows {
			for c, cell := range row {
				axis, err := excelize.CoordinatesToCellName(c+1, r+1)
				if err != nil {
					return nil, domain.IOError("invalid cell coordinates", err)
				}
				if err := f.SetCellValue(name, axis, cell.Value); err != nil {
					return nil, domain.IOError("failed to set cell value", err)
				}

				if cell.Style == (sheet.Style{}) {
					continue
				}
				styleID, err := x.styleID(f, styleIDs, cell.Style)
				if err != nil {
					return nil, domain.IOError("failed to build cell style", err)
				}
				if err := f.SetCellStyle(name, axis, axis, styleID); err != nil {
					return nil, domain.IOError("failed to set cell style", err)
				}
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, domain.IOError("failed to serialize spreadsheet", err)
	}
	return buf.Bytes(), nil
}

// styleID resolves a cell style to an excelize style id, reusing ids for
// repeated styles.
func (x *XLSX) styleID(f *excelize.File, cache map[sheet.Style]int, st sheet.Style) (int, error) {
	if id, ok := cache[st]; ok {
		return id, nil
	}

	font := &excelize.Font{
		Bold:   st.Bold,
		Italic: st.Italic,
		Strike: st.Strikethrough,
	}
	if st.Underline {
		font.Underline = "single"
	}
	if st.Color != "" {
		font.Color = strings.TrimPrefix(st.Color, "#")
	}

	style := &excelize.Style{Font: font}
	if st.Align != "" {
		style.Alignment = &excelize.Alignment{Horizontal: st.Align}
	}

	id, err := f.NewStyle(style)
	if err != nil {
		return 0, err
	}
	cache[st] = id
	return id, nil
}

func sheetName(name string, index int) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Sprintf("Sheet%d", index+1)
	}
	// excelize rejects names over 31 chars and a handful of characters
	for _, bad := range []string{":", "\\", "/", "?", "*", "[", "]"} {
		name = strings.ReplaceAll(name, bad, " ")
	}
	if len(name) > 31 {
		name = name[:31]
	}
	return name
}
