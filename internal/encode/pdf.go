package encode

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"

	"github.com/tablefold/tablefold/internal/domain"
	"github.com/tablefold/tablefold/internal/sheet"
)

// PDF renders workbook sheets as document tables via fpdf.
type PDF struct{}

// NewPDF creates a document encoder.
func NewPDF() *PDF {
	return &PDF{}
}

// EncodeDocument serializes the selected sheets into a PDF. The selection is
// a list of 1-based sheet indices; an empty selection is a selection error.
func (p *PDF) EncodeDocument(sheets []sheet.Sheet, opts domain.OutputOptions, selection []int) ([]byte, error) {
	if len(selection) == 0 {
		return nil, domain.SelectionError("resolved sheet selection is empty", nil)
	}

	orientation := "P"
	if opts.Orientation == domain.OrientationLandscape {
		orientation = "L"
	}
	fontSize := fontSizeFor(opts.FontSize)

	doc := fpdf.New(orientation, "mm", "A4", "")
	doc.SetAutoPageBreak(true, 12)

	for _, idx := range selection {
		if idx < 1 || idx > len(sheets) {
			continue
		}
		s := sheets[idx-1]

		doc.AddPage()
		doc.SetFont("Helvetica", "B", fontSize+2)
		doc.SetTextColor(0, 0, 0)
		doc.CellFormat(0, rowHeight(fontSize)+2, s.Name, "", 1, "L", false, 0, "")
		doc.Ln(2)

		widths := columnWidths(doc, s, fontSize, opts.AutoWidth)
		for r, row := range s.Rows {
			renderRow(doc, row, widths, fontSize, r == 0)
		}
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, domain.IOError("failed to serialize document", err)
	}
	return buf.Bytes(), nil
}

func renderRow(doc *fpdf.Fpdf, row []sheet.Cell, widths []float64, fontSize float64, header bool) {
	h := rowHeight(fontSize)
	for c, cell := range row {
		style := fontStyleFor(cell.Style, header)
		doc.SetFont("Helvetica", style, fontSize)

		r, g, b := parseHexColor(cell.Style.Color)
		doc.SetTextColor(r, g, b)

		align := "L"
		switch cell.Style.Align {
		case "center":
			align = "C"
		case "right":
			align = "R"
		}

		w := widths[len(widths)-1]
		if c < len(widths) {
			w = widths[c]
		}
		doc.CellFormat(w, h, cell.Value, "1", 0, align, false, 0, "")
	}
	doc.Ln(-1)
}

// columnWidths sizes columns to fit content when auto width is on, otherwise
// divides the printable width evenly over the widest row.
func columnWidths(doc *fpdf.Fpdf, s sheet.Sheet, fontSize float64, auto bool) []float64 {
	cols := 0
	for _, row := range s.Rows {
		if len(row) > cols {
			cols = len(row)
		}
	}
	if cols == 0 {
		return []float64{0}
	}

	pageW, _ := doc.GetPageSize()
	left, _, right, _ := doc.GetMargins()
	printable := pageW - left - right

	widths := make([]float64, cols)
	if !auto {
		for i := range widths {
			widths[i] = printable / float64(cols)
		}
		return widths
	}

	doc.SetFont("Helvetica", "", fontSize)
	total := 0.0
	for c := 0; c < cols; c++ {
		maxW := doc.GetStringWidth("MM")
		for _, row := range s.Rows {
			if c < len(row) {
				if w := doc.GetStringWidth(row[c].Value) + 4; w > maxW {
					maxW = w
				}
			}
		}
		widths[c] = maxW
		total += maxW
	}

	// Scale down proportionally when the content overflows the page.
	if total > printable {
		for i := range widths {
			widths[i] = widths[i] * printable / total
		}
	}
	return widths
}

func fontStyleFor(st sheet.Style, header bool) string {
	style := ""
	if st.Bold || header {
		style += "B"
	}
	if st.Italic {
		style += "I"
	}
	if st.Underline {
		style += "U"
	}
	if st.Strikethrough {
		style += "S"
	}
	return style
}

func fontSizeFor(tier string) float64 {
	switch tier {
	case domain.FontSizeSmall:
		return 8
	case domain.FontSizeLarge:
		return 12
	default:
		return 10
	}
}

func rowHeight(fontSize float64) float64 {
	return fontSize * 0.6
}

// parseHexColor converts a #rrggbb string to RGB components, defaulting to
// black on malformed input.
func parseHexColor(hex string) (int, int, int) {
	if len(hex) != 7 || hex[0] != '#' {
		return 0, 0, 0
	}
	var r, g, b int
	if _, err := fmt.Sscanf(hex[1:], "%02x%02x%02x", &r, &g, &b); err != nil {
		return 0, 0, 0
	}
	return r, g, b
}
