package geosheet

import (
	"fmt"
	"slices"
)

// shiftCondFormats moves conditional formatting ranges through s. Order and
// duplicates are preserved. Unlike validations, a one-row format at an
// inserted row widens over the new row; on columns it moves along.
// Extents collapsed by a deletion are dropped, as are rules left empty.
func shiftCondFormats(rules []ConditionalFormatRule, s Shift) ([]ConditionalFormatRule, error) {
	out := make([]ConditionalFormatRule, 0, len(rules))
	for _, rule := range rules {
		sqref, err := shiftRanges(rule.Sqref, s, condFormatRule)
		if err != nil {
			return nil, fmt.Errorf("shift conditional format %s: %w", FormatSqref(rule.Sqref), err)
		}
		if len(sqref) == 0 {
			continue
		}
		out = append(out, ConditionalFormatRule{Rules: slices.Clone(rule.Rules), Sqref: sqref})
	}
	return out, nil
}

// shiftMerges moves merged regions through s, dropping those that collapse
// to a single cell.
func shiftMerges(merges []CellRange, s Shift) ([]CellRange, error) {
	shifted, err := shiftRanges(merges, s, mergeRule)
	if err != nil {
		return nil, fmt.Errorf("shift merged cells: %w", err)
	}
	out := shifted[:0]
	for _, m := range shifted {
		if !m.IsSingle() {
			out = append(out, m)
		}
	}
	return out, nil
}
