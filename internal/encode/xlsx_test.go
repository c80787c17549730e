package encode

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/tablefold/tablefold/internal/domain"
	"github.com/tablefold/tablefold/internal/sheet"
)

func styledSheets() []sheet.Sheet {
	s := sheet.FromRaw("Quarterly Figures", [][]string{
		{"Region", "Revenue"},
		{"North", "1200"},
		{"South", "900"},
	})
	s.Rows[0][0].Style = sheet.Style{Bold: true, Align: "center"}
	s.Rows[1][1].Style = sheet.Style{Color: "#ff0000"}
	return []sheet.Sheet{s, sheet.FromRaw("Notes", [][]string{{"n"}})}
}

func TestEncodeSpreadsheet(t *testing.T) {
	x := NewXLSX()
	data, err := x.EncodeSpreadsheet(styledSheets())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Quarterly Figures", "Notes"}, f.GetSheetList())

	v, err := f.GetCellValue("Quarterly Figures", "B2")
	require.NoError(t, err)
	assert.Equal(t, "1200", v)
}

func TestEncodeSpreadsheetEmpty(t *testing.T) {
	_, err := NewXLSX().EncodeSpreadsheet(nil)
	require.Error(t, err)
	assert.Equal(t, domain.ErrorTypeSelection, domain.TypeOf(err))
}

func TestReadSheetsRoundTrip(t *testing.T) {
	x := NewXLSX()
	data, err := x.EncodeSpreadsheet(styledSheets())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "figures.xlsx")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	tables, err := x.ReadSheets(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, tables, 2)
	assert.Equal(t, "Quarterly Figures", tables[0].Name)
	assert.Equal(t, "North", tables[0].Rows[1][0])
}

func TestReadSheetsMissingFile(t *testing.T) {
	_, err := NewXLSX().ReadSheets(context.Background(), "/nonexistent/figures.xlsx")
	require.Error(t, err)
	assert.Equal(t, domain.ErrorTypeRead, domain.TypeOf(err))
}

func TestSheetNameSanitized(t *testing.T) {
	tests := []struct {
		name  string
		index int
		want  string
	}{
		{"", 0, "Sheet1"},
		{"  ", 2, "Sheet3"},
		{"Sales: Q1/Q2", 0, "Sales  Q1 Q2"},
		{"This sheet name is far too long to keep", 0, "This sheet name is far too long"},
	}
	for _, tt := range tests {
		got := sheetName(tt.name, tt.index)
		assert.Equal(t, tt.want, got)
		assert.LessOrEqual(t, len(got), 31)
	}
}

func TestEncodeSpreadsheetDuplicateNames(t *testing.T) {
	sheets := []sheet.Sheet{
		sheet.FromRaw("Data", [][]string{{"a"}}),
		sheet.FromRaw("Data", [][]string{{"b"}}),
	}
	data, err := NewXLSX().EncodeSpreadsheet(sheets)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()
	assert.Len(t, f.GetSheetList(), 2)
}
