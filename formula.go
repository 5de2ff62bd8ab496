package geosheet

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// formulaRefRegex matches cell references and ranges in formulas, with an
// optional sheet qualifier: A1, $A$1, Sheet1!A1, 'Data validation'!$A$2:$A$73.
var formulaRefRegex = regexp.MustCompile(`(?:('(?:[^']|'')+'|[A-Za-z_][A-Za-z0-9_.]*)!)?(\$?)([A-Za-z]{1,3})(\$?)([0-9]+)(?::(\$?)([A-Za-z]{1,3})(\$?)([0-9]+))?`)

const refError = "#REF!"

// shiftFormula rewrites references to sheet inside formula so they follow s.
// The formula lives on sheet, so unqualified references are shifted too.
// References to other sheets and text inside string literals are untouched.
func shiftFormula(formula, sheet string, s Shift) string {
	return shiftRefs(formula, sheet, s, true)
}

// shiftForeignFormula is shiftFormula for a formula living on another sheet:
// only references qualified with sheet move.
func shiftForeignFormula(formula, sheet string, s Shift) string {
	return shiftRefs(formula, sheet, s, false)
}

func shiftRefs(formula, sheet string, s Shift, local bool) string {
	if formula == "" || (s.Rows == 0 && s.Cols == 0) {
		return formula
	}

	var b strings.Builder
	inString := false
	start := 0
	for i := 0; i < len(formula); i++ {
		if formula[i] != '"' {
			continue
		}
		if inString {
			b.WriteString(formula[start : i+1])
		} else {
			b.WriteString(shiftFormulaSegment(formula[start:i], sheet, s, local))
			b.WriteByte('"')
		}
		inString = !inString
		start = i + 1
	}
	if inString {
		b.WriteString(formula[start:])
	} else {
		b.WriteString(shiftFormulaSegment(formula[start:], sheet, s, local))
	}
	return b.String()
}

func shiftFormulaSegment(seg, sheet string, s Shift, local bool) string {
	matches := formulaRefRegex.FindAllStringSubmatchIndex(seg, -1)
	if len(matches) == 0 {
		return seg
	}

	result := seg
	// Replace from the end so earlier indices stay valid.
	for i := len(matches) - 1; i >= 0; i-- {
		m := matches[i]
		if !isRefBoundary(seg, m[0], m[1]) {
			continue
		}
		if m[2] >= 0 {
			qualifier := strings.ReplaceAll(strings.Trim(seg[m[2]:m[3]], "'"), "''", "'")
			if qualifier != sheet {
				continue
			}
		} else if !local {
			continue
		}
		replacement, ok := shiftFormulaRef(seg, m, s)
		if !ok {
			continue
		}
		prefix := ""
		if m[2] >= 0 {
			prefix = seg[m[2]:m[3]] + "!"
		}
		if replacement == refError {
			prefix = ""
		}
		result = result[:m[0]] + prefix + replacement + result[m[1]:]
	}
	return result
}

// isRefBoundary rejects matches that are part of a function name or identifier.
func isRefBoundary(seg string, start, end int) bool {
	if start > 0 {
		prev := seg[start-1]
		if isIdentChar(prev) || prev == '$' {
			return false
		}
	}
	if end < len(seg) {
		next := seg[end]
		if isIdentChar(next) || next == '(' || next == '!' {
			return false
		}
	}
	return true
}

func isIdentChar(b byte) bool {
	return b == '_' || b == '.' || (b >= '0' && b <= '9') || (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z')
}

// shiftFormulaRef computes the replacement text for one matched reference.
func shiftFormulaRef(seg string, m []int, s Shift) (string, bool) {
	col1, err := excelize.ColumnNameToNumber(seg[m[6]:m[7]])
	if err != nil {
		return "", false
	}
	row1, err := strconv.Atoi(seg[m[10]:m[11]])
	if err != nil {
		return "", false
	}
	absCol1, absRow1 := m[5] > m[4], m[9] > m[8]

	if m[12] < 0 {
		row, okRow := s.row(row1)
		col, okCol := s.col(col1)
		if !okRow || !okCol {
			return refError, true
		}
		return formatRef(row, col, absRow1, absCol1), true
	}

	col2, err := excelize.ColumnNameToNumber(seg[m[14]:m[15]])
	if err != nil {
		return "", false
	}
	row2, err := strconv.Atoi(seg[m[18]:m[19]])
	if err != nil {
		return "", false
	}
	absCol2, absRow2 := m[13] > m[12], m[17] > m[16]

	r1 := rangeStart(row1, s.PivotRow, s.Rows)
	r2 := rangeEnd(row2, s.PivotRow, s.Rows)
	c1 := rangeStart(col1, s.PivotCol, s.Cols)
	c2 := rangeEnd(col2, s.PivotCol, s.Cols)
	if r1 > r2 || c1 > c2 || r1 < 1 || c1 < 1 {
		return refError, true
	}
	return formatRef(r1, c1, absRow1, absCol1) + ":" + formatRef(r2, c2, absRow2, absCol2), true
}

// rangeStart maps the first index of a formula range; a deleted start snaps
// to the first surviving index after the deleted span.
func rangeStart(idx, pivot, delta int) int {
	if delta == 0 || idx < pivot {
		return idx
	}
	if delta < 0 && idx < pivot-delta {
		return pivot
	}
	return idx + delta
}

// rangeEnd maps the last index of a formula range; a deleted end snaps to
// the last surviving index before the deleted span.
func rangeEnd(idx, pivot, delta int) int {
	if delta == 0 || idx < pivot {
		return idx
	}
	if delta < 0 && idx < pivot-delta {
		return pivot - 1
	}
	return idx + delta
}

func formatRef(row, col int, absRow, absCol bool) string {
	var b strings.Builder
	if absCol {
		b.WriteByte('$')
	}
	b.WriteString(columnName(col))
	if absRow {
		b.WriteByte('$')
	}
	b.WriteString(strconv.Itoa(row))
	return b.String()
}
