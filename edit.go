package geosheet

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// RowKind selects the template-specific behaviour of InsertRow.
type RowKind string

const (
	RowPlain         RowKind = "plain"
	RowContributor   RowKind = "contributor"
	RowStep          RowKind = "step"
	RowFormat        RowKind = "format"
	RowSupplementary RowKind = "supplementary"
)

// ParseRowKind converts a string to a RowKind; "" means RowPlain.
func ParseRowKind(s string) (RowKind, error) {
	switch k := RowKind(strings.ToLower(strings.TrimSpace(s))); k {
	case "":
		return RowPlain, nil
	case RowPlain, RowContributor, RowStep, RowFormat, RowSupplementary:
		return k, nil
	}
	return "", fmt.Errorf("unknown row kind %q", s)
}

// Shifted returns a new snapshot with sh applied to cells, formulas,
// validations, conditional formats, dimensions and merged regions.
func (s *Sheet) Shifted(sh Shift) (*Sheet, error) {
	if err := checkShift(sh); err != nil {
		return nil, err
	}
	cells, err := copyCells(s, sh)
	if err != nil {
		return nil, err
	}
	for pos, c := range cells {
		if c.Formula == "" && c.Hyperlink == nil {
			continue
		}
		c.Formula = shiftFormula(c.Formula, s.Name, sh)
		c.Hyperlink = c.Hyperlink.shifted(s.Name, s.Name, sh)
		cells[pos] = c
	}
	validations, err := shiftValidations(s.Validations, sh)
	if err != nil {
		return nil, err
	}
	condFormats, err := shiftCondFormats(s.CondFormats, sh)
	if err != nil {
		return nil, err
	}
	merges, err := shiftMerges(s.Merges, sh)
	if err != nil {
		return nil, err
	}
	rows, cols := shiftDimensions(s.Rows, s.Cols, sh)

	return &Sheet{
		Name:        s.Name,
		Cells:       cells,
		Validations: validations,
		CondFormats: condFormats,
		Rows:        rows,
		Cols:        cols,
		Merges:      merges,
		Props:       s.Props,
		Panes:       s.Panes,
	}, nil
}

func checkShift(sh Shift) error {
	if sh.Rows != 0 && (sh.PivotRow < 1 || sh.PivotRow > excelize.TotalRows) {
		return fmt.Errorf("%w: row pivot %d out of range", ErrGeometry, sh.PivotRow)
	}
	if sh.Cols != 0 && (sh.PivotCol < 1 || sh.PivotCol > excelize.MaxColumns) {
		return fmt.Errorf("%w: column pivot %d out of range", ErrGeometry, sh.PivotCol)
	}
	return nil
}

// InsertRow inserts one row at row. Contributor, step and format rows take
// the label of the row they were inserted above, keep the required-field
// star on the first row of the group and swap column 2 so the new empty row
// appears below. Supplementary rows get the supplementary label and join
// the validator of the row above, or get a new one.
func (s *Sheet) InsertRow(row int, kind RowKind, t *Template) (*Sheet, error) {
	out, err := s.Shifted(RowShift(row, 1))
	if err != nil {
		return nil, err
	}

	switch kind {
	case RowContributor, RowStep, RowFormat:
		out.pullLabelDown(row, t)
	case RowSupplementary:
		if row < 2 {
			return nil, fmt.Errorf("%w: supplementary row needs a row above it", ErrGeometry)
		}
		out.addSupplementaryRow(row, t)
	}
	return out, nil
}

func (s *Sheet) pullLabelDown(row int, t *Template) {
	newPos, belowPos := CellPos{Row: row, Col: 1}, CellPos{Row: row + 1, Col: 1}
	label, below := s.Cells[newPos], s.Cells[belowPos]

	label.Value = below.Value
	label.Comment = below.Comment
	for _, sentinel := range []string{t.StepLabel, t.FormatLabel} {
		if textValue(below.Value) == StarredLabel(sentinel) {
			below.Value = sentinel
			label.Value = StarredLabel(sentinel)
		}
	}
	s.put(newPos, label)
	s.put(belowPos, below)

	top, bottom := s.Value(row, 2), s.Value(row+1, 2)
	s.SetValue(row, 2, bottom)
	s.SetValue(row+1, 2, top)
}

func (s *Sheet) addSupplementaryRow(row int, t *Template) {
	prev := s.Cell(row-1, 1)
	pos := CellPos{Row: row, Col: 1}
	c := s.Cells[pos]
	c.Value = t.SupplementaryLabel
	c.StyleID = prev.StyleID
	s.put(pos, c)

	if textValue(prev.Value) == t.SupplementaryLabel {
		if rules, ok := extendValidation(s.Validations, row-1, t.SupplementaryColumn, row); ok {
			s.Validations = rules
			return
		}
	}
	s.Validations = append(s.Validations, ValidationRule{
		Definition: supplementaryValidation(t),
		Sqref:      []CellRange{SingleCell(row, t.SupplementaryColumn)},
	})
}

func supplementaryValidation(t *Template) excelize.DataValidation {
	dv := excelize.NewDataValidation(true)
	if t.SupplementaryFormula != "" {
		dv.SetSqrefDropList(t.SupplementaryFormula)
	}
	dv.SetInput("", t.SupplementaryPrompt)
	dv.SetError(excelize.DataValidationErrorStyleStop, "", t.DropdownError)
	return *dv
}

// RemoveRow deletes row.
func (s *Sheet) RemoveRow(row int) (*Sheet, error) {
	return s.Shifted(RowShift(row, -1))
}

// InsertColumn inserts one column at col. A file column copies its header
// at headerRow from the column to its left.
func (s *Sheet) InsertColumn(col, headerRow int, fileColumn bool) (*Sheet, error) {
	out, err := s.Shifted(ColShift(col, 1))
	if err != nil {
		return nil, err
	}
	if fileColumn && col > 1 && headerRow >= 1 {
		out.SetValue(headerRow, col, out.Value(headerRow, col-1))
	}
	return out, nil
}

// RemoveColumn deletes col.
func (s *Sheet) RemoveColumn(col int) (*Sheet, error) {
	return s.Shifted(ColShift(col, -1))
}

// ResizeColumns inserts (delta > 0) or removes (delta < 0) |delta| columns
// one at a time at col.
func (s *Sheet) ResizeColumns(col, delta, headerRow int) (*Sheet, error) {
	out := s
	for ; delta != 0; delta -= sign(delta) {
		var err error
		if delta > 0 {
			out, err = out.InsertColumn(col, headerRow, false)
		} else {
			out, err = out.RemoveColumn(col)
		}
		if err != nil {
			return nil, err
		}
	}
	if out == s {
		out = s.Clone()
	}
	return out, nil
}

func sign(n int) int {
	if n < 0 {
		return -1
	}
	return 1
}

// InsertRows inserts count rows at row in one pass and re-creates the
// template's sample dropdowns over the grown section.
func (s *Sheet) InsertRows(row, count int, t *Template) (*Sheet, error) {
	if count < 1 {
		return nil, fmt.Errorf("%w: cannot insert %d rows", ErrGeometry, count)
	}
	sh := RowShift(row, count)
	out, err := s.Shifted(sh)
	if err != nil {
		return nil, err
	}
	if err := out.reapplyDropdowns(t, sh); err != nil {
		return nil, err
	}
	return out, nil
}

// ReapplyDropdowns re-creates the template's sample dropdowns at their
// template ranges, replacing any existing copy.
func (s *Sheet) ReapplyDropdowns(t *Template) (*Sheet, error) {
	out := s.Clone()
	if err := out.reapplyDropdowns(t, Shift{}); err != nil {
		return nil, err
	}
	return out, nil
}

// reapplyDropdowns drops any existing copy of the template dropdowns and
// adds them afresh at their template range moved through sh.
func (s *Sheet) reapplyDropdowns(t *Template, sh Shift) error {
	formulas := make(map[string]bool, len(t.SampleDropdowns))
	for _, d := range t.SampleDropdowns {
		formulas[normalizeFormula(d.Formula)] = true
	}
	s.Validations = removeValidations(s.Validations, func(rule ValidationRule) bool {
		return formulas[normalizeFormula(rule.Definition.Formula1)]
	})

	for _, d := range t.SampleDropdowns {
		base, err := ParseSqref(d.Sqref)
		if err != nil {
			return fmt.Errorf("template dropdown %q: %w", d.Sqref, err)
		}
		sqref, err := shiftRanges(base, sh, validationRule)
		if err != nil {
			return fmt.Errorf("template dropdown %q: %w", d.Sqref, err)
		}
		if len(sqref) == 0 {
			continue
		}
		s.Validations = append(s.Validations, ValidationRule{Definition: dropdownValidation(t, d.Formula), Sqref: sqref})
	}
	return nil
}

func dropdownValidation(t *Template, formula string) excelize.DataValidation {
	dv := excelize.NewDataValidation(true)
	dv.SetSqrefDropList(formula)
	dv.SetInput("", t.DropdownPrompt)
	dv.SetError(excelize.DataValidationErrorStyleStop, "", t.DropdownError)
	return *dv
}

// normalizeFormula strips XML wrappers and the leading "=" so formulas read
// back from a workbook compare equal to the ones written.
func normalizeFormula(f string) string {
	f = strings.TrimSpace(f)
	f = strings.TrimPrefix(f, "<formula1>")
	f = strings.TrimSuffix(f, "</formula1>")
	f = strings.TrimPrefix(f, "=")
	return strings.ReplaceAll(f, "$", "")
}

// textValue renders a cell value the way it reads in the sheet.
func textValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		if val {
			return "TRUE"
		}
		return "FALSE"
	default:
		return fmt.Sprint(val)
	}
}
