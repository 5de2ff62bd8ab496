package geosheet

import (
	"maps"
	"slices"

	"github.com/xuri/excelize/v2"
)

// CellPos is a 1-based (row, col) coordinate.
type CellPos struct {
	Row int
	Col int
}

// Cell holds everything copied when a cell moves.
type Cell struct {
	Value     any    // string, float64, bool or nil
	Formula   string // without the leading "="
	StyleID   int    // excelize style index; 0 is the default style
	Hyperlink *Hyperlink
	Comment   *Comment
}

// IsEmpty reports whether the cell carries nothing worth writing.
func (c Cell) IsEmpty() bool {
	return isBlank(c.Value) && c.Formula == "" && c.StyleID == 0 && c.Hyperlink == nil && c.Comment == nil
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

// Comment is a cell note.
type Comment struct {
	Author    string
	Text      string
	Paragraph []excelize.RichTextRun
}

// ValidationRule is one data-validation definition and the ranges it governs.
// Definition is opaque: only its ranges move during a structural edit.
type ValidationRule struct {
	Definition excelize.DataValidation
	Sqref      []CellRange
}

// ConditionalFormatRule is an ordered set of format rules over a list of ranges.
type ConditionalFormatRule struct {
	Rules []excelize.ConditionalFormatOptions
	Sqref []CellRange
}

// RowDimension is a row override.
type RowDimension struct {
	Height float64 // 0 means default height
	Hidden bool
}

// ColDimension is a column override.
type ColDimension struct {
	Width   float64 // 0 means default width
	Hidden  bool
	StyleID int
}

// Sheet is an in-memory snapshot of one worksheet. Edits never mutate a
// Sheet in place; they build a new one.
type Sheet struct {
	Name        string
	Cells       map[CellPos]Cell
	Validations []ValidationRule
	CondFormats []ConditionalFormatRule
	Rows        map[int]RowDimension
	Cols        map[int]ColDimension
	Merges      []CellRange
	Props       *excelize.SheetPropsOptions
	Panes       *excelize.Panes
}

// NewSheet creates an empty snapshot.
func NewSheet(name string) *Sheet {
	return &Sheet{
		Name:  name,
		Cells: make(map[CellPos]Cell),
		Rows:  make(map[int]RowDimension),
		Cols:  make(map[int]ColDimension),
	}
}

// Cell returns the cell at (row, col); absent cells are empty.
func (s *Sheet) Cell(row, col int) Cell {
	return s.Cells[CellPos{Row: row, Col: col}]
}

// Value returns the value at (row, col) or nil.
func (s *Sheet) Value(row, col int) any {
	return s.Cells[CellPos{Row: row, Col: col}].Value
}

// SetValue sets a cell value, keeping the rest of the cell.
func (s *Sheet) SetValue(row, col int, v any) {
	pos := CellPos{Row: row, Col: col}
	c := s.Cells[pos]
	c.Value = v
	s.put(pos, c)
}

func (s *Sheet) put(pos CellPos, c Cell) {
	if c.IsEmpty() {
		delete(s.Cells, pos)
		return
	}
	s.Cells[pos] = c
}

// MaxRow returns the last row that holds a cell or a row override.
func (s *Sheet) MaxRow() int {
	m := 0
	for pos := range s.Cells {
		m = max(m, pos.Row)
	}
	for r := range s.Rows {
		m = max(m, r)
	}
	return m
}

// MaxCol returns the last column that holds a cell or a column override.
func (s *Sheet) MaxCol() int {
	m := 0
	for pos := range s.Cells {
		m = max(m, pos.Col)
	}
	for c := range s.Cols {
		m = max(m, c)
	}
	return m
}

// ValidationAt returns the index of the first rule whose sqref covers (row, col), or -1.
func (s *Sheet) ValidationAt(row, col int) int {
	for i, rule := range s.Validations {
		for _, r := range rule.Sqref {
			if r.Contains(row, col) {
				return i
			}
		}
	}
	return -1
}

// Clone returns a deep copy of the snapshot structure. Opaque rule
// definitions and comment runs are shared since nothing mutates them.
func (s *Sheet) Clone() *Sheet {
	out := &Sheet{
		Name:  s.Name,
		Cells: maps.Clone(s.Cells),
		Rows:  maps.Clone(s.Rows),
		Cols:  maps.Clone(s.Cols),
		Props: s.Props,
		Panes: s.Panes,
	}
	if out.Cells == nil {
		out.Cells = make(map[CellPos]Cell)
	}
	if out.Rows == nil {
		out.Rows = make(map[int]RowDimension)
	}
	if out.Cols == nil {
		out.Cols = make(map[int]ColDimension)
	}
	for _, v := range s.Validations {
		out.Validations = append(out.Validations, ValidationRule{Definition: v.Definition, Sqref: slices.Clone(v.Sqref)})
	}
	for _, cf := range s.CondFormats {
		out.CondFormats = append(out.CondFormats, ConditionalFormatRule{Rules: slices.Clone(cf.Rules), Sqref: slices.Clone(cf.Sqref)})
	}
	out.Merges = slices.Clone(s.Merges)
	return out
}
