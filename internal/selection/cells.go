package selection

import (
	"sync"

	"github.com/tablefold/tablefold/internal/sheet"
)

// Direction of an arrow-key move.
type Direction int

const (
	Up Direction = iota
	Down
	Left
	Right
)

// CellSelection tracks the editor's cell rectangle per sheet. Every click
// replaces the rectangle wholesale; navigation collapses it to the new
// anchor cell.
type CellSelection struct {
	mu      sync.Mutex
	rects   map[int]*sheet.Rect
	anchors map[int]sheet.Coord
}

// NewCellSelection creates an empty cell selection.
func NewCellSelection() *CellSelection {
	return &CellSelection{
		rects:   make(map[int]*sheet.Rect),
		anchors: make(map[int]sheet.Coord),
	}
}

// Rect returns the active rectangle for a sheet, or nil when nothing is
// selected there.
func (s *CellSelection) Rect(sheetIndex int) *sheet.Rect {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rects[sheetIndex]
	if !ok {
		return nil
	}
	out := *r
	return &out
}

// Click anchors a one-cell rectangle at the clicked cell.
func (s *CellSelection) Click(sheetIndex int, cell sheet.Coord) sheet.Rect {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.set(sheetIndex, cell, cell)
}

// ShiftClick spans a rectangle between the last anchored cell and the
// clicked cell, normalized on both axes. Without a prior anchor it behaves
// like a plain click.
func (s *CellSelection) ShiftClick(sheetIndex int, cell sheet.Coord) sheet.Rect {
	s.mu.Lock()
	defer s.mu.Unlock()

	anchor, ok := s.anchors[sheetIndex]
	if !ok {
		anchor = cell
	}
	r := sheet.NewRect(anchor, cell)
	s.rects[sheetIndex] = &r
	s.anchors[sheetIndex] = anchor
	return r
}

// Move shifts the anchor one cell in the given direction and collapses the
// rectangle to it. rowLen reports the length of a given row so movement
// respects ragged rows; rows is the sheet's row count.
func (s *CellSelection) Move(sheetIndex int, dir Direction, rows int, rowLen func(row int) int) *sheet.Rect {
	s.mu.Lock()
	defer s.mu.Unlock()

	anchor, ok := s.anchors[sheetIndex]
	if !ok {
		return nil
	}

	next := anchor
	switch dir {
	case Up:
		next.Row--
	case Down:
		next.Row++
	case Left:
		next.Col--
	case Right:
		next.Col++
	}

	if next.Row < 0 || next.Row >= rows {
		next.Row = anchor.Row
	}
	if l := rowLen(next.Row); l == 0 {
		next = anchor
	} else {
		if next.Col < 0 {
			next.Col = 0
		}
		if next.Col >= l {
			next.Col = l - 1
		}
	}

	r := s.set(sheetIndex, next, next)
	return &r
}

// Tab advances the anchor one cell to the right, wrapping to the next row's
// first column at a row boundary and stopping at the grid's last cell.
func (s *CellSelection) Tab(sheetIndex int, rows int, rowLen func(row int) int) *sheet.Rect {
	s.mu.Lock()
	defer s.mu.Unlock()

	anchor, ok := s.anchors[sheetIndex]
	if !ok {
		return nil
	}

	next := anchor
	next.Col++
	if next.Col >= rowLen(next.Row) {
		if next.Row+1 < rows {
			next.Row++
			next.Col = 0
		} else {
			next = anchor
		}
	}

	r := s.set(sheetIndex, next, next)
	return &r
}

// ClearSheet drops the selection on one sheet.
func (s *CellSelection) ClearSheet(sheetIndex int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rects, sheetIndex)
	delete(s.anchors, sheetIndex)
}

func (s *CellSelection) set(sheetIndex int, anchor, cell sheet.Coord) sheet.Rect {
	r := sheet.NewRect(anchor, cell)
	s.rects[sheetIndex] = &r
	s.anchors[sheetIndex] = anchor
	return r
}
