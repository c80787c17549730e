// Package sheet provides the rich-cell table model: per-cell value plus style,
// a multi-sheet container, and value-semantics mutation operations.
package sheet

// Cell is a single rich cell: a string value plus an optional style record.
// Numeric formatting is an encoding concern; the model stores only strings.
type Cell struct {
	Value string `json:"value"`
	Style Style  `json:"style,omitempty"`
}

// Style holds the concrete style attributes of a cell.
type Style struct {
	Bold          bool   `json:"bold,omitempty"`
	Italic        bool   `json:"italic,omitempty"`
	Underline     bool   `json:"underline,omitempty"`
	Strikethrough bool   `json:"strikethrough,omitempty"`
	Color         string `json:"color,omitempty"` // foreground, #rrggbb
	Align         string `json:"align,omitempty"` // left, center or right
}

// StylePatch carries the style fields to merge into a cell. Nil fields are
// left untouched; applying {Bold: true} does not clear an existing color.
type StylePatch struct {
	Bold          *bool   `json:"bold,omitempty"`
	Italic        *bool   `json:"italic,omitempty"`
	Underline     *bool   `json:"underline,omitempty"`
	Strikethrough *bool   `json:"strikethrough,omitempty"`
	Color         *string `json:"color,omitempty"`
	Align         *string `json:"align,omitempty"`
}

// Merge applies the patch onto a style, returning the merged result.
func (p StylePatch) Merge(s Style) Style {
	if p.Bold != nil {
		s.Bold = *p.Bold
	}
	if p.Italic != nil {
		s.Italic = *p.Italic
	}
	if p.Underline != nil {
		s.Underline = *p.Underline
	}
	if p.Strikethrough != nil {
		s.Strikethrough = *p.Strikethrough
	}
	if p.Color != nil {
		s.Color = *p.Color
	}
	if p.Align != nil {
		s.Align = *p.Align
	}
	return s
}

// Sheet is one named table. Row 0 is conventionally the header row. Rows may
// be ragged; writes address cells within a row's own bounds and never pad
// neighbouring rows.
type Sheet struct {
	Name string   `json:"name"`
	Rows [][]Cell `json:"rows"`
}

// Clone returns a deep copy of the sheet.
func (s Sheet) Clone() Sheet {
	rows := make([][]Cell, len(s.Rows))
	for i, row := range s.Rows {
		rows[i] = make([]Cell, len(row))
		copy(rows[i], row)
	}
	return Sheet{Name: s.Name, Rows: rows}
}

// FromRaw wraps raw string rows into a sheet of unstyled cells.
func FromRaw(name string, rows [][]string) Sheet {
	out := Sheet{Name: name, Rows: make([][]Cell, len(rows))}
	for i, row := range rows {
		out.Rows[i] = make([]Cell, len(row))
		for j, v := range row {
			out.Rows[i][j] = Cell{Value: v}
		}
	}
	return out
}

// Rect is an axis-aligned cell rectangle, normalized so Start <= End
// componentwise on both axes.
type Rect struct {
	Start Coord `json:"start"`
	End   Coord `json:"end"`
}

// Coord addresses a single cell within a sheet.
type Coord struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// NewRect builds a normalized rectangle spanning two corner cells.
func NewRect(a, b Coord) Rect {
	return Rect{
		Start: Coord{Row: min(a.Row, b.Row), Col: min(a.Col, b.Col)},
		End:   Coord{Row: max(a.Row, b.Row), Col: max(a.Col, b.Col)},
	}
}

// Contains reports whether the rectangle covers the given cell.
func (r Rect) Contains(c Coord) bool {
	return c.Row >= r.Start.Row && c.Row <= r.End.Row &&
		c.Col >= r.Start.Col && c.Col <= r.End.Col
}

// Workbook is the multi-sheet container. The Active cursor is for display
// only; mutation operations always address sheets by explicit index.
type Workbook struct {
	Sheets []Sheet `json:"sheets"`
	Active int     `json:"active"`
}

// NewWorkbook builds a workbook from the given sheets.
func NewWorkbook(sheets ...Sheet) Workbook {
	return Workbook{Sheets: sheets}
}

// Clone returns a deep copy with no aliasing against the receiver.
func (w Workbook) Clone() Workbook {
	sheets := make([]Sheet, len(w.Sheets))
	for i, s := range w.Sheets {
		sheets[i] = s.Clone()
	}
	return Workbook{Sheets: sheets, Active: w.Active}
}

// IsEmpty reports whether the workbook holds no sheets.
func (w Workbook) IsEmpty() bool {
	return len(w.Sheets) == 0
}

// WithActive returns a copy of the workbook with the display cursor moved.
// Out-of-range indices are clamped.
func (w Workbook) WithActive(index int) Workbook {
	out := w
	if index < 0 {
		index = 0
	}
	if n := len(w.Sheets); index >= n && n > 0 {
		index = n - 1
	}
	out.Active = index
	return out
}

// SetCellValue replaces a cell's value, preserving its style, and returns a
// new workbook snapshot. The addressed cell must exist: callers only target
// cells they rendered, so an out-of-range address is a programming error.
func (w Workbook) SetCellValue(sheetIndex, row, col int, value string) Workbook {
	out := w.Clone()
	out.Sheets[sheetIndex].Rows[row][col].Value = value
	return out
}

// ApplyStyle merges the patch into every cell inside the rectangle and
// returns a new workbook snapshot. A nil selection is a no-op. Cells outside
// a ragged row's own bounds are skipped.
func (w Workbook) ApplyStyle(sheetIndex int, sel *Rect, patch StylePatch) Workbook {
	if sel == nil {
		return w
	}
	out := w.Clone()
	rows := out.Sheets[sheetIndex].Rows
	for r := sel.Start.Row; r <= sel.End.Row && r < len(rows); r++ {
		if r < 0 {
			continue
		}
		row := rows[r]
		for c := sel.Start.Col; c <= sel.End.Col && c < len(row); c++ {
			if c < 0 {
				continue
			}
			row[c].Style = patch.Merge(row[c].Style)
		}
	}
	return out
}
