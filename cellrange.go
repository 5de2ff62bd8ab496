package geosheet

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// CellRange is a rectangular block of cells with 1-based inclusive bounds.
// A single cell has MinRow == MaxRow and MinCol == MaxCol.
type CellRange struct {
	MinRow int
	MaxRow int
	MinCol int
	MaxCol int
}

// NewCellRange creates a CellRange from its corners, normalizing the order.
func NewCellRange(row1, col1, row2, col2 int) CellRange {
	if row2 < row1 {
		row1, row2 = row2, row1
	}
	if col2 < col1 {
		col1, col2 = col2, col1
	}
	return CellRange{MinRow: row1, MaxRow: row2, MinCol: col1, MaxCol: col2}
}

// SingleCell returns the range covering exactly one cell.
func SingleCell(row, col int) CellRange {
	return CellRange{MinRow: row, MaxRow: row, MinCol: col, MaxCol: col}
}

// ParseRange parses "B5", "$A$1", "A1:C3", "A:C" (whole columns) or "3:5" (whole rows).
func ParseRange(s string) (CellRange, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), "$", "")
	if s == "" {
		return CellRange{}, fmt.Errorf("empty range reference")
	}
	if idx := strings.LastIndex(s, "!"); idx >= 0 {
		s = s[idx+1:]
	}

	first, last, isArea := strings.Cut(s, ":")
	if !isArea {
		col, row, err := excelize.CellNameToCoordinates(first)
		if err != nil {
			return CellRange{}, fmt.Errorf("invalid range reference %q: %w", s, err)
		}
		return SingleCell(row, col), nil
	}

	// Whole-row reference, e.g. "3:5".
	if r1, err1 := strconv.Atoi(first); err1 == nil {
		r2, err := strconv.Atoi(last)
		if err != nil || r1 < 1 || r2 < 1 {
			return CellRange{}, fmt.Errorf("invalid row range %q", s)
		}
		return NewCellRange(r1, 1, r2, excelize.MaxColumns), nil
	}

	// Whole-column reference, e.g. "A:C".
	if isColumnName(first) && isColumnName(last) {
		c1, err := excelize.ColumnNameToNumber(first)
		if err != nil {
			return CellRange{}, fmt.Errorf("invalid column range %q: %w", s, err)
		}
		c2, err := excelize.ColumnNameToNumber(last)
		if err != nil {
			return CellRange{}, fmt.Errorf("invalid column range %q: %w", s, err)
		}
		return NewCellRange(1, c1, excelize.TotalRows, c2), nil
	}

	c1, r1, err := excelize.CellNameToCoordinates(first)
	if err != nil {
		return CellRange{}, fmt.Errorf("invalid range reference %q: %w", s, err)
	}
	c2, r2, err := excelize.CellNameToCoordinates(last)
	if err != nil {
		return CellRange{}, fmt.Errorf("invalid range reference %q: %w", s, err)
	}
	return NewCellRange(r1, c1, r2, c2), nil
}

func isColumnName(s string) bool {
	if s == "" {
		return false
	}
	for _, ch := range s {
		if (ch < 'A' || ch > 'Z') && (ch < 'a' || ch > 'z') {
			return false
		}
	}
	return true
}

// ParseSqref parses a whitespace separated list of ranges as stored in
// data validation and conditional formatting sqref attributes.
func ParseSqref(sqref string) ([]CellRange, error) {
	fields := strings.Fields(strings.ReplaceAll(sqref, ",", " "))
	ranges := make([]CellRange, 0, len(fields))
	for _, f := range fields {
		r, err := ParseRange(f)
		if err != nil {
			return nil, err
		}
		ranges = append(ranges, r)
	}
	return ranges, nil
}

// FormatSqref joins ranges into an sqref string, dropping exact duplicates.
func FormatSqref(ranges []CellRange) string {
	seen := make(map[CellRange]bool, len(ranges))
	parts := make([]string, 0, len(ranges))
	for _, r := range ranges {
		if seen[r] {
			continue
		}
		seen[r] = true
		parts = append(parts, r.String())
	}
	return strings.Join(parts, " ")
}

// String formats the range as "B5" or "A1:C3".
func (r CellRange) String() string {
	first := cellName(r.MinRow, r.MinCol)
	if r.IsSingle() {
		return first
	}
	return first + ":" + cellName(r.MaxRow, r.MaxCol)
}

// IsSingle reports whether the range covers exactly one cell.
func (r CellRange) IsSingle() bool {
	return r.MinRow == r.MaxRow && r.MinCol == r.MaxCol
}

// Contains reports whether (row, col) lies inside the range.
func (r CellRange) Contains(row, col int) bool {
	return row >= r.MinRow && row <= r.MaxRow && col >= r.MinCol && col <= r.MaxCol
}

// Rows returns the number of rows the range spans.
func (r CellRange) Rows() int { return r.MaxRow - r.MinRow + 1 }

// Valid reports whether the range respects 1 <= min <= max <= bound on both axes.
func (r CellRange) Valid() bool {
	return r.MinRow >= 1 && r.MinRow <= r.MaxRow && r.MaxRow <= excelize.TotalRows &&
		r.MinCol >= 1 && r.MinCol <= r.MaxCol && r.MaxCol <= excelize.MaxColumns
}

// cellName formats 1-based coordinates as "A1". Coordinates are assumed valid.
func cellName(row, col int) string {
	name, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return fmt.Sprintf("R%dC%d", row, col)
	}
	return name
}

// columnName formats a 1-based column number as its letters.
func columnName(col int) string {
	name, err := excelize.ColumnNumberToName(col)
	if err != nil {
		return strconv.Itoa(col)
	}
	return name
}

// Shift describes one structural edit. Rows/Cols are the deltas applied at
// PivotRow/PivotCol: positive inserts, negative deletes. An axis whose delta
// is zero is left untouched.
type Shift struct {
	PivotRow int
	Rows     int
	PivotCol int
	Cols     int
}

// RowShift builds a Shift that only touches rows.
func RowShift(pivot, delta int) Shift { return Shift{PivotRow: pivot, Rows: delta} }

// ColShift builds a Shift that only touches columns.
func ColShift(pivot, delta int) Shift { return Shift{PivotCol: pivot, Cols: delta} }

// String formats the shift for logs.
func (s Shift) String() string {
	switch {
	case s.Rows != 0 && s.Cols != 0:
		return fmt.Sprintf("rows %+d at %d, cols %+d at %d", s.Rows, s.PivotRow, s.Cols, s.PivotCol)
	case s.Cols != 0:
		return fmt.Sprintf("cols %+d at %d", s.Cols, s.PivotCol)
	default:
		return fmt.Sprintf("rows %+d at %d", s.Rows, s.PivotRow)
	}
}

// deletedRow reports whether row falls inside the span removed by a row deletion.
func (s Shift) deletedRow(row int) bool {
	return s.Rows < 0 && row >= s.PivotRow && row < s.PivotRow-s.Rows
}

// deletedCol reports whether col falls inside the span removed by a column deletion.
func (s Shift) deletedCol(col int) bool {
	return s.Cols < 0 && col >= s.PivotCol && col < s.PivotCol-s.Cols
}

// row maps a source row index to its target index. ok is false for deleted rows.
func (s Shift) row(row int) (int, bool) {
	if s.Rows == 0 || row < s.PivotRow {
		return row, true
	}
	if s.deletedRow(row) {
		return 0, false
	}
	return row + s.Rows, true
}

// col maps a source column index to its target index. ok is false for deleted columns.
func (s Shift) col(col int) (int, bool) {
	if s.Cols == 0 || col < s.PivotCol {
		return col, true
	}
	if s.deletedCol(col) {
		return 0, false
	}
	return col + s.Cols, true
}

// axisRule selects the behaviour of an extent hit by an insertion.
type axisRule struct {
	// rideAlong moves both bounds of a one-cell extent sitting at the pivot
	// instead of widening it.
	rideAlong bool
	// anchored moves the whole extent when the insertion lands on its first
	// index, the way the cell holding the range's content moves.
	anchored bool
}

// rangeRule pairs the per-axis rules used by one kind of range collection.
type rangeRule struct {
	rows axisRule
	cols axisRule
}

var (
	validationRule = rangeRule{rows: axisRule{rideAlong: true}, cols: axisRule{rideAlong: true}}
	// Conditional formats only ride along on columns; on rows a one-row
	// format widens over the inserted row.
	condFormatRule = rangeRule{rows: axisRule{rideAlong: false}, cols: axisRule{rideAlong: true}}
	mergeRule      = rangeRule{rows: axisRule{anchored: true}, cols: axisRule{anchored: true}}
)

// shiftAxis applies one edit to the [lo, hi] extent of a range on one axis.
// keep is false when the extent no longer exists; ok is false when the
// pivot lies before the first index.
//
// A deletion removes [pivot, pivot-delta) from the extent: bounds inside the
// deleted span snap to its edges and bounds after it move by delta.
func shiftAxis(lo, hi, pivot, delta, limit int, rule axisRule) (newLo, newHi int, keep bool, ok bool) {
	if delta == 0 || pivot > hi {
		return lo, hi, true, true
	}
	if pivot < 1 {
		return 0, 0, false, false
	}

	if delta < 0 {
		end := pivot - delta
		newLo, newHi = lo, hi+delta
		if lo >= pivot {
			newLo = max(pivot, lo+delta)
		}
		if hi < end {
			newHi = pivot - 1
		}
		if newHi < newLo {
			return 0, 0, false, true
		}
		return newLo, newHi, true, true
	}

	if pivot < lo || (pivot == lo && (rule.anchored || (lo == hi && rule.rideAlong))) {
		return min(lo+delta, limit), min(hi+delta, limit), true, true
	}
	// lo <= pivot <= hi: the far edge moves.
	return lo, min(hi+delta, limit), true, true
}

// Shift applies s to the range. The bool result is false when the range was
// removed by a deletion.
func (r CellRange) Shift(s Shift, rule rangeRule) (CellRange, bool, error) {
	minRow, maxRow, keep, ok := shiftAxis(r.MinRow, r.MaxRow, s.PivotRow, s.Rows, excelize.TotalRows, rule.rows)
	if !ok {
		return CellRange{}, false, &GeometryError{Axis: "row", Range: r, Pivot: s.PivotRow, Delta: s.Rows}
	}
	if !keep {
		return CellRange{}, false, nil
	}
	minCol, maxCol, keep, ok := shiftAxis(r.MinCol, r.MaxCol, s.PivotCol, s.Cols, excelize.MaxColumns, rule.cols)
	if !ok {
		return CellRange{}, false, &GeometryError{Axis: "col", Range: r, Pivot: s.PivotCol, Delta: s.Cols}
	}
	if !keep {
		return CellRange{}, false, nil
	}
	return CellRange{MinRow: minRow, MaxRow: maxRow, MinCol: minCol, MaxCol: maxCol}, true, nil
}

// shiftRanges applies s to every range, dropping removed ones.
func shiftRanges(ranges []CellRange, s Shift, rule rangeRule) ([]CellRange, error) {
	out := make([]CellRange, 0, len(ranges))
	for _, r := range ranges {
		shifted, keep, err := r.Shift(s, rule)
		if err != nil {
			return nil, err
		}
		if keep {
			out = append(out, shifted)
		}
	}
	return out, nil
}
