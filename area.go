package geosheet

import "fmt"

// copyCells builds the cell grid of src after applying s. Cells inside a
// deleted span are dropped and cells at or after a pivot are translated.
// An inserted span is pre-styled from its neighbour so it looks like the
// surrounding area before real data is written into it. src is not modified.
func copyCells(src *Sheet, s Shift) (map[CellPos]Cell, error) {
	if (s.Rows != 0 && s.PivotRow < 1) || (s.Cols != 0 && s.PivotCol < 1) {
		return nil, fmt.Errorf("%w: pivot must be positive (%s)", ErrGeometry, s)
	}

	target := make(map[CellPos]Cell, len(src.Cells))
	for pos, cell := range src.Cells {
		row, ok := s.row(pos.Row)
		if !ok {
			continue
		}
		col, ok := s.col(pos.Col)
		if !ok {
			continue
		}
		if row < 1 || col < 1 {
			return nil, fmt.Errorf("%w: cell %s would move to row %d col %d", ErrGeometry, cellName(pos.Row, pos.Col), row, col)
		}
		target[CellPos{Row: row, Col: col}] = cell
	}

	if s.Rows > 0 {
		backfillRows(src, target, s)
	}
	if s.Cols > 0 {
		backfillCols(src, target, s)
	}
	return target, nil
}

// backfillRows styles the inserted rows like the row that sat at the pivot.
// Only the style is copied; values stay empty until written by the caller.
func backfillRows(src *Sheet, target map[CellPos]Cell, s Shift) {
	maxCol := src.MaxCol()
	for row := s.PivotRow; row < s.PivotRow+s.Rows; row++ {
		for col := 1; col <= maxCol; col++ {
			styleID := src.Cell(s.PivotRow, col).StyleID
			if styleID == 0 {
				continue
			}
			target[CellPos{Row: row, Col: col}] = Cell{StyleID: styleID}
		}
	}
}

// backfillCols styles the inserted columns like the column left of the
// pivot. Its comments come along so header notes repeat on new file columns.
func backfillCols(src *Sheet, target map[CellPos]Cell, s Shift) {
	ref := s.PivotCol - 1
	if ref < 1 {
		ref = s.PivotCol
	}
	maxRow := src.MaxRow()
	for col := s.PivotCol; col < s.PivotCol+s.Cols; col++ {
		for row := 1; row <= maxRow; row++ {
			srcCell := src.Cell(row, ref)
			if srcCell.StyleID == 0 && srcCell.Comment == nil {
				continue
			}
			target[CellPos{Row: row, Col: col}] = Cell{StyleID: srcCell.StyleID, Comment: srcCell.Comment}
		}
	}
}
