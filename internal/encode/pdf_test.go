package encode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablefold/tablefold/internal/domain"
	"github.com/tablefold/tablefold/internal/sheet"
)

func TestEncodeDocument(t *testing.T) {
	sheets := []sheet.Sheet{
		sheet.FromRaw("One", [][]string{{"h1", "h2"}, {"a", "b"}}),
		sheet.FromRaw("Two", [][]string{{"x"}, {"y"}}),
	}
	opts := domain.DefaultOutputOptions(domain.ModeSheetToDoc)

	data, err := NewPDF().EncodeDocument(sheets, opts, []int{1, 2})
	require.NoError(t, err)
	require.NotEmpty(t, data)
	assert.Equal(t, "%PDF", string(data[:4]))
}

func TestEncodeDocumentEmptySelection(t *testing.T) {
	sheets := []sheet.Sheet{sheet.FromRaw("One", [][]string{{"h"}})}
	opts := domain.DefaultOutputOptions(domain.ModeSheetToDoc)

	_, err := NewPDF().EncodeDocument(sheets, opts, nil)
	require.Error(t, err)
	assert.Equal(t, domain.ErrorTypeSelection, domain.TypeOf(err))
}

func TestEncodeDocumentSubsetSelection(t *testing.T) {
	sheets := []sheet.Sheet{
		sheet.FromRaw("One", [][]string{{"only-in-one"}}),
		sheet.FromRaw("Two", [][]string{{"only-in-two"}}),
	}
	opts := domain.DefaultOutputOptions(domain.ModeSheetToDoc)

	full, err := NewPDF().EncodeDocument(sheets, opts, []int{1, 2})
	require.NoError(t, err)
	subset, err := NewPDF().EncodeDocument(sheets, opts, []int{2})
	require.NoError(t, err)

	// One page per selected sheet.
	assert.Less(t, len(subset), len(full))
}

func TestEncodeDocumentStyledCells(t *testing.T) {
	s := sheet.FromRaw("Styled", [][]string{{"h"}, {"v"}})
	s.Rows[1][0].Style = sheet.Style{
		Bold:      true,
		Italic:    true,
		Underline: true,
		Color:     "#00ff00",
		Align:     "right",
	}
	opts := domain.OutputOptions{Orientation: domain.OrientationPortrait, FontSize: domain.FontSizeLarge}

	data, err := NewPDF().EncodeDocument([]sheet.Sheet{s}, opts, []int{1})
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func TestFontStyleFor(t *testing.T) {
	assert.Equal(t, "B", fontStyleFor(sheet.Style{}, true))
	assert.Equal(t, "", fontStyleFor(sheet.Style{}, false))
	assert.Equal(t, "BIUS", fontStyleFor(sheet.Style{
		Bold: true, Italic: true, Underline: true, Strikethrough: true,
	}, false))
	// Header rows are bold even without an explicit style.
	assert.Equal(t, "BI", fontStyleFor(sheet.Style{Italic: true}, true))
}

func TestFontSizeFor(t *testing.T) {
	assert.Equal(t, 8.0, fontSizeFor(domain.FontSizeSmall))
	assert.Equal(t, 10.0, fontSizeFor(domain.FontSizeMedium))
	assert.Equal(t, 12.0, fontSizeFor(domain.FontSizeLarge))
	assert.Equal(t, 10.0, fontSizeFor("unknown"))
}

func TestParseHexColor(t *testing.T) {
	tests := []struct {
		in      string
		r, g, b int
	}{
		{"#ff0000", 255, 0, 0},
		{"#00ff7f", 0, 255, 127},
		{"", 0, 0, 0},
		{"red", 0, 0, 0},
		{"#zzzzzz", 0, 0, 0},
	}
	for _, tt := range tests {
		r, g, b := parseHexColor(tt.in)
		assert.Equal(t, []int{tt.r, tt.g, tt.b}, []int{r, g, b}, "input %q", tt.in)
	}
}
