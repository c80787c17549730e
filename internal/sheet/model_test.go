package sheet

import "testing"

func testWorkbook() Workbook {
	return NewWorkbook(
		FromRaw("Alpha", [][]string{
			{"h1", "h2", "h3"},
			{"a", "b", "c"},
			{"d", "e"}, // ragged on purpose
		}),
		FromRaw("Beta", [][]string{
			{"x"},
		}),
	)
}

func TestWorkbookCloneNoAliasing(t *testing.T) {
	orig := testWorkbook()
	clone := orig.Clone()

	clone.Sheets[0].Rows[1][0].Value = "changed"
	clone.Sheets[0].Rows[1][0].Style.Bold = true

	if orig.Sheets[0].Rows[1][0].Value != "a" {
		t.Errorf("clone mutation leaked into original value: %q", orig.Sheets[0].Rows[1][0].Value)
	}
	if orig.Sheets[0].Rows[1][0].Style.Bold {
		t.Error("clone mutation leaked into original style")
	}
}

func TestSetCellValuePreservesStyle(t *testing.T) {
	wb := testWorkbook()
	wb = wb.ApplyStyle(0, &Rect{Start: Coord{1, 0}, End: Coord{1, 0}}, StylePatch{Bold: boolPtr(true)})

	next := wb.SetCellValue(0, 1, 0, "edited")

	cell := next.Sheets[0].Rows[1][0]
	if cell.Value != "edited" {
		t.Errorf("value = %q, want %q", cell.Value, "edited")
	}
	if !cell.Style.Bold {
		t.Error("style lost on value edit")
	}
	if wb.Sheets[0].Rows[1][0].Value != "a" {
		t.Error("SetCellValue mutated the receiver")
	}
}

func TestApplyStyleMergePreservesUnsetFields(t *testing.T) {
	wb := testWorkbook()
	sel := &Rect{Start: Coord{0, 0}, End: Coord{0, 0}}

	wb = wb.ApplyStyle(0, sel, StylePatch{Color: strPtr("#ff0000")})
	wb = wb.ApplyStyle(0, sel, StylePatch{Bold: boolPtr(true)})

	st := wb.Sheets[0].Rows[0][0].Style
	if !st.Bold {
		t.Error("bold not applied")
	}
	if st.Color != "#ff0000" {
		t.Errorf("color clobbered by later patch: %q", st.Color)
	}
}

func TestApplyStyleRaggedRows(t *testing.T) {
	wb := testWorkbook()
	// Covers column 2, which row 2 does not have.
	sel := &Rect{Start: Coord{0, 2}, End: Coord{2, 2}}

	next := wb.ApplyStyle(0, sel, StylePatch{Italic: boolPtr(true)})

	if !next.Sheets[0].Rows[0][2].Style.Italic {
		t.Error("in-bounds cell not styled")
	}
	if len(next.Sheets[0].Rows[2]) != 2 {
		t.Error("ragged row was padded")
	}
}

func TestApplyStyleNilSelection(t *testing.T) {
	wb := testWorkbook()
	next := wb.ApplyStyle(0, nil, StylePatch{Bold: boolPtr(true)})
	for i, row := range next.Sheets[0].Rows {
		for j, cell := range row {
			if cell.Style.Bold {
				t.Errorf("cell (%d,%d) styled despite nil selection", i, j)
			}
		}
	}
}

func TestNewRectNormalizes(t *testing.T) {
	r := NewRect(Coord{3, 4}, Coord{1, 2})
	if r.Start != (Coord{1, 2}) || r.End != (Coord{3, 4}) {
		t.Errorf("rect not normalized: %+v", r)
	}
	if !r.Contains(Coord{2, 3}) {
		t.Error("interior cell not contained")
	}
	if r.Contains(Coord{0, 3}) {
		t.Error("exterior cell contained")
	}
}

func TestWithActiveClamps(t *testing.T) {
	wb := testWorkbook()
	if got := wb.WithActive(5).Active; got != 1 {
		t.Errorf("active clamped to %d, want 1", got)
	}
	if got := wb.WithActive(-2).Active; got != 0 {
		t.Errorf("active clamped to %d, want 0", got)
	}
}

func boolPtr(b bool) *bool       { return &b }
func strPtr(s string) *string    { return &s }
