package geosheet

import (
	"cmp"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

const (
	placeholderSheet = "geosheet~"
	defaultRowHeight = 15
	defaultColWidth  = 9.140625
)

// formulaEscaper re-escapes validation formulas; excelize unescapes them on
// read but writes them back as inner XML.
var formulaEscaper = strings.NewReplacer(`&`, `&amp;`, `<`, `&lt;`, `>`, `&gt;`)

// LoadSheet reads the named worksheet into a snapshot.
func LoadSheet(f *excelize.File, name string) (*Sheet, error) {
	if idx, err := f.GetSheetIndex(name); err != nil || idx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrSheetNotFound, name)
	}
	sh := NewSheet(name)

	props, err := f.GetSheetProps(name)
	if err != nil {
		return nil, fmt.Errorf("read sheet properties: %w", err)
	}
	sh.Props = &props
	if panes, err := f.GetPanes(name); err == nil && (panes.Freeze || panes.Split) {
		sh.Panes = &panes
	}

	extent, err := sheetExtent(f, name)
	if err != nil {
		return nil, err
	}
	if err := loadComments(f, sh, &extent); err != nil {
		return nil, err
	}
	if err := loadCells(f, sh, extent); err != nil {
		return nil, err
	}
	if err := loadDimensions(f, sh, extent); err != nil {
		return nil, err
	}
	if err := loadValidations(f, sh); err != nil {
		return nil, err
	}
	if err := loadCondFormats(f, sh); err != nil {
		return nil, err
	}
	if err := loadMerges(f, sh); err != nil {
		return nil, err
	}
	return sh, nil
}

// sheetExtent returns the block that can hold cells: the recorded sheet
// dimension widened by whatever GetRows actually returns.
func sheetExtent(f *excelize.File, name string) (CellRange, error) {
	extent := SingleCell(1, 1)
	if dim, err := f.GetSheetDimension(name); err == nil && dim != "" {
		if r, err := ParseRange(dim); err == nil {
			extent = CellRange{MinRow: 1, MaxRow: r.MaxRow, MinCol: 1, MaxCol: r.MaxCol}
		}
	}
	rows, err := f.GetRows(name)
	if err != nil {
		return extent, fmt.Errorf("read rows of %q: %w", name, err)
	}
	extent.MaxRow = max(extent.MaxRow, len(rows))
	for _, row := range rows {
		extent.MaxCol = max(extent.MaxCol, len(row))
	}
	return extent, nil
}

func loadComments(f *excelize.File, sh *Sheet, extent *CellRange) error {
	comments, err := f.GetComments(sh.Name)
	if err != nil {
		return fmt.Errorf("read comments: %w", err)
	}
	for _, c := range comments {
		col, row, err := excelize.CellNameToCoordinates(c.Cell)
		if err != nil {
			continue
		}
		pos := CellPos{Row: row, Col: col}
		cell := sh.Cells[pos]
		cell.Comment = &Comment{Author: c.Author, Text: c.Text, Paragraph: c.Paragraph}
		sh.Cells[pos] = cell
		extent.MaxRow = max(extent.MaxRow, row)
		extent.MaxCol = max(extent.MaxCol, col)
	}
	return nil
}

func loadCells(f *excelize.File, sh *Sheet, extent CellRange) error {
	for row := extent.MinRow; row <= extent.MaxRow; row++ {
		for col := extent.MinCol; col <= extent.MaxCol; col++ {
			name := cellName(row, col)
			pos := CellPos{Row: row, Col: col}
			cell := sh.Cells[pos]

			value, err := readValue(f, sh.Name, name)
			if err != nil {
				return fmt.Errorf("read %s!%s: %w", sh.Name, name, err)
			}
			cell.Value = value
			if formula, err := f.GetCellFormula(sh.Name, name); err == nil {
				cell.Formula = formula
			}
			styleID, err := f.GetCellStyle(sh.Name, name)
			if err != nil {
				return fmt.Errorf("read style of %s!%s: %w", sh.Name, name, err)
			}
			cell.StyleID = styleID
			if ok, target, err := f.GetCellHyperLink(sh.Name, name); err == nil && ok && target != "" {
				cell.Hyperlink = newHyperlink(target)
			}
			sh.put(pos, cell)
		}
	}
	return nil
}

func readValue(f *excelize.File, sheet, cell string) (any, error) {
	raw, err := f.GetCellValue(sheet, cell, excelize.Options{RawCellValue: true})
	if err != nil || raw == "" {
		return nil, err
	}
	typ, err := f.GetCellType(sheet, cell)
	if err != nil {
		return nil, err
	}
	switch typ {
	case excelize.CellTypeBool:
		return raw == "1" || strings.EqualFold(raw, "true"), nil
	case excelize.CellTypeNumber, excelize.CellTypeUnset:
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			return v, nil
		}
	}
	return raw, nil
}

func loadDimensions(f *excelize.File, sh *Sheet, extent CellRange) error {
	rowHeight, colWidth := float64(defaultRowHeight), defaultColWidth
	if p := sh.Props; p != nil {
		if p.CustomHeight != nil && *p.CustomHeight && p.DefaultRowHeight != nil {
			rowHeight = *p.DefaultRowHeight
		}
		if p.DefaultColWidth != nil && *p.DefaultColWidth > 0 {
			colWidth = *p.DefaultColWidth
		}
	}

	for row := 1; row <= extent.MaxRow; row++ {
		height, err := f.GetRowHeight(sh.Name, row)
		if err != nil {
			return fmt.Errorf("read height of row %d: %w", row, err)
		}
		visible, err := f.GetRowVisible(sh.Name, row)
		if err != nil {
			return fmt.Errorf("read visibility of row %d: %w", row, err)
		}
		var dim RowDimension
		if height != rowHeight {
			dim.Height = height
		}
		dim.Hidden = !visible
		if dim != (RowDimension{}) {
			sh.Rows[row] = dim
		}
	}

	for col := 1; col <= extent.MaxCol; col++ {
		name := columnName(col)
		width, err := f.GetColWidth(sh.Name, name)
		if err != nil {
			return fmt.Errorf("read width of column %s: %w", name, err)
		}
		visible, err := f.GetColVisible(sh.Name, name)
		if err != nil {
			return fmt.Errorf("read visibility of column %s: %w", name, err)
		}
		styleID, err := f.GetColStyle(sh.Name, name)
		if err != nil {
			return fmt.Errorf("read style of column %s: %w", name, err)
		}
		var dim ColDimension
		if width != colWidth {
			dim.Width = width
		}
		dim.Hidden = !visible
		dim.StyleID = styleID
		if dim != (ColDimension{}) {
			sh.Cols[col] = dim
		}
	}
	return nil
}

func loadValidations(f *excelize.File, sh *Sheet) error {
	dvs, err := f.GetDataValidations(sh.Name)
	if err != nil {
		return fmt.Errorf("read data validations: %w", err)
	}
	for _, dv := range dvs {
		sqref, err := ParseSqref(dv.Sqref)
		if err != nil {
			return fmt.Errorf("data validation %q: %w", dv.Sqref, err)
		}
		if len(sqref) == 0 {
			continue
		}
		def := *dv
		def.Sqref = ""
		sh.Validations = append(sh.Validations, ValidationRule{Definition: def, Sqref: sqref})
	}
	return nil
}

// loadCondFormats reads conditional formats ordered by sqref; excelize keys
// them by range so document order is not recoverable.
func loadCondFormats(f *excelize.File, sh *Sheet) error {
	formats, err := f.GetConditionalFormats(sh.Name)
	if err != nil {
		return fmt.Errorf("read conditional formats: %w", err)
	}
	for _, key := range slices.Sorted(maps.Keys(formats)) {
		sqref, err := ParseSqref(key)
		if err != nil {
			return fmt.Errorf("conditional format %q: %w", key, err)
		}
		if len(sqref) == 0 || len(formats[key]) == 0 {
			continue
		}
		sh.CondFormats = append(sh.CondFormats, ConditionalFormatRule{Rules: formats[key], Sqref: sqref})
	}
	return nil
}

func loadMerges(f *excelize.File, sh *Sheet) error {
	merges, err := f.GetMergeCells(sh.Name, true)
	if err != nil {
		return fmt.Errorf("read merged cells: %w", err)
	}
	for _, m := range merges {
		r, err := ParseRange(m.GetStartAxis() + ":" + m.GetEndAxis())
		if err != nil {
			return fmt.Errorf("merged cell %s:%s: %w", m.GetStartAxis(), m.GetEndAxis(), err)
		}
		sh.Merges = append(sh.Merges, r)
	}
	slices.SortFunc(sh.Merges, compareRanges)
	return nil
}

func compareRanges(a, b CellRange) int {
	return cmp.Or(cmp.Compare(a.MinRow, b.MinRow), cmp.Compare(a.MinCol, b.MinCol),
		cmp.Compare(a.MaxRow, b.MaxRow), cmp.Compare(a.MaxCol, b.MaxCol))
}

// storeSheet replaces the worksheet named sh.Name with the snapshot. The
// snapshot is written to a placeholder sheet that then takes the original's
// name, position and active state.
func storeSheet(f *excelize.File, sh *Sheet) error {
	list := f.GetSheetList()
	pos := slices.Index(list, sh.Name)
	if pos < 0 {
		return fmt.Errorf("%w: %q", ErrSheetNotFound, sh.Name)
	}
	active := f.GetSheetName(f.GetActiveSheetIndex())

	if _, err := f.NewSheet(placeholderSheet); err != nil {
		return fmt.Errorf("create placeholder sheet: %w", err)
	}
	if err := writeSheet(f, placeholderSheet, sh); err != nil {
		_ = f.DeleteSheet(placeholderSheet)
		return err
	}
	if err := f.DeleteSheet(sh.Name); err != nil {
		return fmt.Errorf("delete sheet %q: %w", sh.Name, err)
	}
	if err := f.SetSheetName(placeholderSheet, sh.Name); err != nil {
		return fmt.Errorf("rename placeholder to %q: %w", sh.Name, err)
	}
	if pos+1 < len(list) {
		if err := f.MoveSheet(sh.Name, list[pos+1]); err != nil {
			return fmt.Errorf("move sheet %q: %w", sh.Name, err)
		}
	}
	if idx, err := f.GetSheetIndex(active); err == nil && idx >= 0 {
		f.SetActiveSheet(idx)
	}
	return nil
}

// writeSheet writes every part of sh into the empty sheet name. Column
// styles go first so they do not overwrite cell styles.
func writeSheet(f *excelize.File, name string, sh *Sheet) error {
	if sh.Props != nil {
		if err := f.SetSheetProps(name, sh.Props); err != nil {
			return fmt.Errorf("write sheet properties: %w", err)
		}
	}
	if sh.Panes != nil {
		if err := f.SetPanes(name, sh.Panes); err != nil {
			return fmt.Errorf("write panes: %w", err)
		}
	}

	for _, col := range slices.Sorted(maps.Keys(sh.Cols)) {
		dim, colName := sh.Cols[col], columnName(col)
		if dim.StyleID != 0 {
			if err := f.SetColStyle(name, colName, dim.StyleID); err != nil {
				return fmt.Errorf("write style of column %s: %w", colName, err)
			}
		}
		if dim.Width > 0 {
			if err := f.SetColWidth(name, colName, colName, dim.Width); err != nil {
				return fmt.Errorf("write width of column %s: %w", colName, err)
			}
		}
		if dim.Hidden {
			if err := f.SetColVisible(name, colName, false); err != nil {
				return fmt.Errorf("hide column %s: %w", colName, err)
			}
		}
	}
	for _, row := range slices.Sorted(maps.Keys(sh.Rows)) {
		dim := sh.Rows[row]
		if dim.Height > 0 {
			if err := f.SetRowHeight(name, row, dim.Height); err != nil {
				return fmt.Errorf("write height of row %d: %w", row, err)
			}
		}
		if dim.Hidden {
			if err := f.SetRowVisible(name, row, false); err != nil {
				return fmt.Errorf("hide row %d: %w", row, err)
			}
		}
	}

	positions := slices.SortedFunc(maps.Keys(sh.Cells), func(a, b CellPos) int {
		return cmp.Or(cmp.Compare(a.Row, b.Row), cmp.Compare(a.Col, b.Col))
	})
	for _, pos := range positions {
		if err := writeCell(f, name, pos, sh.Cells[pos]); err != nil {
			return err
		}
	}

	for _, m := range sh.Merges {
		if err := f.MergeCell(name, cellName(m.MinRow, m.MinCol), cellName(m.MaxRow, m.MaxCol)); err != nil {
			return fmt.Errorf("merge %s: %w", m, err)
		}
	}
	for _, rule := range sh.Validations {
		def := rule.Definition
		def.Sqref = FormatSqref(rule.Sqref)
		def.Formula1 = formulaEscaper.Replace(def.Formula1)
		def.Formula2 = formulaEscaper.Replace(def.Formula2)
		if err := f.AddDataValidation(name, &def); err != nil {
			return fmt.Errorf("write data validation %s: %w", def.Sqref, err)
		}
	}
	for _, rule := range sh.CondFormats {
		sqref := FormatSqref(rule.Sqref)
		if err := f.SetConditionalFormat(name, sqref, rule.Rules); err != nil {
			return fmt.Errorf("write conditional format %s: %w", sqref, err)
		}
	}
	return nil
}

func writeCell(f *excelize.File, sheet string, pos CellPos, c Cell) error {
	name := cellName(pos.Row, pos.Col)
	var err error
	switch v := c.Value.(type) {
	case nil:
	case string:
		err = f.SetCellStr(sheet, name, v)
	case float64:
		err = f.SetCellFloat(sheet, name, v, -1, 64)
	case bool:
		err = f.SetCellBool(sheet, name, v)
	default:
		err = f.SetCellValue(sheet, name, v)
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if c.Formula != "" {
		if err := f.SetCellFormula(sheet, name, c.Formula); err != nil {
			return fmt.Errorf("write formula %s: %w", name, err)
		}
	}
	if c.StyleID != 0 {
		if err := f.SetCellStyle(sheet, name, name, c.StyleID); err != nil {
			return fmt.Errorf("write style %s: %w", name, err)
		}
	}
	if c.Hyperlink != nil {
		if err := f.SetCellHyperLink(sheet, name, c.Hyperlink.Target, c.Hyperlink.linkType()); err != nil {
			return fmt.Errorf("write hyperlink %s: %w", name, err)
		}
	}
	if c.Comment != nil {
		comment := excelize.Comment{Author: c.Comment.Author, Cell: name, Text: c.Comment.Text, Paragraph: c.Comment.Paragraph}
		if err := f.AddComment(sheet, comment); err != nil {
			return fmt.Errorf("write comment %s: %w", name, err)
		}
	}
	return nil
}

// saveAtomic writes the workbook next to path and renames it into place, so
// readers never observe a partially written file.
func saveAtomic(f *excelize.File, path string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := f.WriteTo(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("write workbook: %w", err)
	}
	if info, err := os.Stat(path); err == nil {
		_ = tmp.Chmod(info.Mode().Perm())
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync workbook: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
