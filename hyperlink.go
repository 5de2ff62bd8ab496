package geosheet

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Hyperlink is a clickable link attached to a cell. External links point to
// a URL; the others point to a location inside the workbook ("Sheet!A1").
type Hyperlink struct {
	Target   string
	External bool
}

// linkType returns the excelize link type string for SetCellHyperLink.
func (h Hyperlink) linkType() string {
	if h.External {
		return "External"
	}
	return "Location"
}

// newHyperlink classifies a link target read back from a workbook.
func newHyperlink(target string) *Hyperlink {
	lower := strings.ToLower(target)
	external := strings.Contains(lower, "://") || strings.HasPrefix(lower, "mailto:")
	return &Hyperlink{Target: target, External: external}
}

// shifted returns the link after s was applied to sheet. Only location links
// move; an unqualified location is read as pointing into holder.
func (h *Hyperlink) shifted(holder, sheet string, s Shift) *Hyperlink {
	if h == nil || h.External {
		return h
	}
	target := strings.TrimPrefix(h.Target, "#")
	var moved string
	if holder == sheet {
		moved = shiftFormula(target, sheet, s)
	} else {
		moved = shiftForeignFormula(target, sheet, s)
	}
	if moved == target {
		return h
	}
	return &Hyperlink{Target: moved}
}

// shiftLinkedRefs rewrites the formulas and location links on every other
// sheet of f that point into sheet, so they follow s.
func shiftLinkedRefs(f *excelize.File, sheet string, s Shift) error {
	if s.Rows == 0 && s.Cols == 0 {
		return nil
	}
	for _, name := range f.GetSheetList() {
		if name == sheet {
			continue
		}
		extent, err := sheetExtent(f, name)
		if err != nil {
			return err
		}
		for row := 1; row <= extent.MaxRow; row++ {
			for col := 1; col <= extent.MaxCol; col++ {
				if err := shiftLinkedCell(f, name, cellName(row, col), sheet, s); err != nil {
					return fmt.Errorf("shift references in %s: %w", name, err)
				}
			}
		}
	}
	return nil
}

func shiftLinkedCell(f *excelize.File, holder, cell, sheet string, s Shift) error {
	if formula, err := f.GetCellFormula(holder, cell); err == nil && formula != "" {
		if moved := shiftForeignFormula(formula, sheet, s); moved != formula {
			if err := f.SetCellFormula(holder, cell, moved); err != nil {
				return err
			}
		}
	}
	ok, target, err := f.GetCellHyperLink(holder, cell)
	if err != nil || !ok || target == "" {
		return nil
	}
	h := newHyperlink(target)
	if moved := h.shifted(holder, sheet, s); moved != h {
		return f.SetCellHyperLink(holder, cell, moved.Target, moved.linkType())
	}
	return nil
}
