package geosheet

import (
	"fmt"
	"slices"
)

// shiftValidations moves every validation range through s. A one-cell
// extent sitting on a deleted row or column disappears, one sitting at an
// insertion pivot moves with it, and a wider range grows or shrinks from
// its far edge. Rules left without ranges are omitted.
func shiftValidations(rules []ValidationRule, s Shift) ([]ValidationRule, error) {
	out := make([]ValidationRule, 0, len(rules))
	for _, rule := range rules {
		sqref, err := shiftRanges(rule.Sqref, s, validationRule)
		if err != nil {
			return nil, fmt.Errorf("shift validation %s: %w", FormatSqref(rule.Sqref), err)
		}
		if len(sqref) == 0 {
			continue
		}
		out = append(out, ValidationRule{Definition: rule.Definition, Sqref: dedupeRanges(sqref)})
	}
	return out, nil
}

// extendValidation grows the range of the rule governing (row, col) so it
// also covers toRow. It returns false when no rule governs the cell.
func extendValidation(rules []ValidationRule, row, col, toRow int) ([]ValidationRule, bool) {
	for i, rule := range rules {
		for j, r := range rule.Sqref {
			if !r.Contains(row, col) {
				continue
			}
			out := slices.Clone(rules)
			sqref := slices.Clone(rule.Sqref)
			sqref[j] = NewCellRange(min(r.MinRow, toRow), r.MinCol, max(r.MaxRow, toRow), r.MaxCol)
			out[i] = ValidationRule{Definition: rule.Definition, Sqref: dedupeRanges(sqref)}
			return out, true
		}
	}
	return rules, false
}

// removeValidations drops every rule matching fn.
func removeValidations(rules []ValidationRule, fn func(ValidationRule) bool) []ValidationRule {
	out := make([]ValidationRule, 0, len(rules))
	for _, rule := range rules {
		if !fn(rule) {
			out = append(out, rule)
		}
	}
	return out
}

// dedupeRanges keeps the first occurrence of each range; sqref is a set.
func dedupeRanges(ranges []CellRange) []CellRange {
	seen := make(map[CellRange]bool, len(ranges))
	out := ranges[:0:0]
	for _, r := range ranges {
		if seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	return out
}
