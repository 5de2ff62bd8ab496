// Package testtemplate builds a small workbook laid out like the GEO
// sequencing metadata template, for tests.
package testtemplate

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/geouploader/geosheet"
)

// Study labels from the first study row on.
var StudyLabels = []string{
	"title", "summary", "overall design",
	"contributor", "contributor", "contributor", "contributor",
	"contributor", "contributor", "contributor",
	"supplementary file",
}

// SampleHeader is the sample table header row.
var SampleHeader = []string{
	"library name", "title", "library strategy", "organism", "tissue",
	"cell line", "cell type", "genotype", "treatment", "batch",
	"molecule", "single or paired-end", "instrument model", "description",
	"processed data file", "processed data file",
	"raw file", "raw file", "raw file", "raw file",
}

// ProtocolLabels are the protocol rows from the first protocol row on.
var ProtocolLabels = []string{
	"growth protocol", "treatment protocol", "extract protocol",
	"library construction protocol", "library strategy",
	"*data processing step", "data processing step", "data processing step",
	"data processing step", "data processing step",
	"*genome build/assembly",
	"*processed data files format and content", "processed data files format and content",
}

// PairedEndHeader is the paired-end section header row.
var PairedEndHeader = []string{"file name 1", "file name 2", "file name 3", "file name 4"}

// Instruments and Libraries fill the validation sheet lists.
var (
	Instruments = []string{"Illumina NovaSeq 6000", "Illumina HiSeq 2500", "Illumina NextSeq 500"}
	Libraries   = []string{"RNA-Seq", "ChIP-Seq", "ATAC-seq"}
)

// Styles used by the builder, exposed so tests can compare style indexes.
type Styles struct {
	Header int
	Label  int
	Fill   int
}

// New builds the template workbook for t.
func New(t *geosheet.Template) (*excelize.File, Styles, error) {
	f := excelize.NewFile()
	var st Styles
	if err := f.SetSheetName("Sheet1", t.MetadataSheet); err != nil {
		return nil, st, err
	}
	for _, name := range []string{t.ValidationSheet, t.ChecksumSheet} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, st, err
		}
	}

	var err error
	if st.Header, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err != nil {
		return nil, st, err
	}
	if st.Label, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Italic: true}}); err != nil {
		return nil, st, err
	}
	if st.Fill, err = f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"FFF2CC"}, Pattern: 1},
	}); err != nil {
		return nil, st, err
	}

	b := &builder{f: f, sheet: t.MetadataSheet}
	b.set(1, 1, "METADATA TEMPLATE")
	b.merge(geosheet.NewCellRange(1, 1, 1, 4))
	b.column(1, 1, 40)

	// study
	for i, label := range StudyLabels {
		b.set(t.StudyStartRow+i, 1, label)
		b.style(t.StudyStartRow+i, 1, st.Label)
	}
	b.validation(supplementary(t), geosheet.SingleCell(t.StudyStartRow+len(StudyLabels)-1, t.SupplementaryColumn))

	// samples
	for i, h := range SampleHeader {
		b.set(t.SamplesStartRow, i+1, h)
		b.style(t.SamplesStartRow, i+1, st.Header)
	}
	b.comment(t.SamplesStartRow, t.SamplesColumnRaw, "raw file name as uploaded")
	b.rowHeight(t.SamplesStartRow, 30)
	for row := t.SamplesStartRow + 1; row < t.ProtocolInstructionsRow-1; row++ {
		b.style(row, 1, st.Fill)
	}
	for _, d := range t.SampleDropdowns {
		dv := excelize.NewDataValidation(true)
		dv.SetSqrefDropList(d.Formula)
		dv.SetInput("", t.DropdownPrompt)
		dv.SetError(excelize.DataValidationErrorStyleStop, "", t.DropdownError)
		ranges, err := geosheet.ParseSqref(d.Sqref)
		if err != nil {
			return nil, st, err
		}
		b.validation(dv, ranges...)
	}
	b.condFormat(geosheet.NewCellRange(t.SamplesStartRow+1, 1, t.ProtocolInstructionsRow-1, len(SampleHeader)))
	b.set(t.ProtocolInstructionsRow, 1, "PROTOCOLS")

	// protocol
	for i, label := range ProtocolLabels {
		b.set(t.ProtocolStartRow+i, 1, label)
		b.style(t.ProtocolStartRow+i, 1, st.Label)
	}

	// paired-end
	b.set(t.PairedEndStartRow-1, 1, "PAIRED-END EXPERIMENTS")
	for i, h := range PairedEndHeader {
		b.set(t.PairedEndStartRow, i+1, h)
		b.style(t.PairedEndStartRow, i+1, st.Header)
	}

	// validation lists
	for i, v := range Instruments {
		b.setOn(t.ValidationSheet, i+2, 1, v)
	}
	for i, v := range Libraries {
		b.setOn(t.ValidationSheet, i+2, 2, v)
	}

	// checksum sheet headers
	b.setOn(t.ChecksumSheet, t.ChecksumStartRow-1, 1, "file name")
	b.setOn(t.ChecksumSheet, t.ChecksumStartRow-1, 2, "file checksum")
	b.setOn(t.ChecksumSheet, t.ChecksumStartRow-1, 6, "file name")
	b.setOn(t.ChecksumSheet, t.ChecksumStartRow-1, 7, "file checksum")

	if b.err != nil {
		return nil, st, b.err
	}
	return f, st, nil
}

// Save builds the template workbook and writes it to path.
func Save(t *geosheet.Template, path string) (Styles, error) {
	f, st, err := New(t)
	if err != nil {
		return st, err
	}
	defer f.Close()
	if err := f.SaveAs(path); err != nil {
		return st, fmt.Errorf("save template: %w", err)
	}
	return st, nil
}

func supplementary(t *geosheet.Template) *excelize.DataValidation {
	dv := excelize.NewDataValidation(true)
	dv.SetInput("", t.SupplementaryPrompt)
	dv.SetError(excelize.DataValidationErrorStyleStop, "", t.DropdownError)
	return dv
}

// builder records the first error and skips everything after it.
type builder struct {
	f     *excelize.File
	sheet string
	err   error
}

func (b *builder) cell(row, col int) string {
	name, err := excelize.CoordinatesToCellName(col, row)
	if err != nil && b.err == nil {
		b.err = err
	}
	return name
}

func (b *builder) set(row, col int, v string) { b.setOn(b.sheet, row, col, v) }

func (b *builder) setOn(sheet string, row, col int, v string) {
	if b.err != nil {
		return
	}
	b.err = b.f.SetCellStr(sheet, b.cell(row, col), v)
}

func (b *builder) style(row, col, id int) {
	if b.err != nil {
		return
	}
	c := b.cell(row, col)
	b.err = b.f.SetCellStyle(b.sheet, c, c, id)
}

func (b *builder) merge(r geosheet.CellRange) {
	if b.err != nil {
		return
	}
	b.err = b.f.MergeCell(b.sheet, b.cell(r.MinRow, r.MinCol), b.cell(r.MaxRow, r.MaxCol))
}

func (b *builder) column(from, to int, width float64) {
	if b.err != nil {
		return
	}
	first, _ := excelize.ColumnNumberToName(from)
	last, _ := excelize.ColumnNumberToName(to)
	b.err = b.f.SetColWidth(b.sheet, first, last, width)
}

func (b *builder) rowHeight(row int, h float64) {
	if b.err != nil {
		return
	}
	b.err = b.f.SetRowHeight(b.sheet, row, h)
}

func (b *builder) comment(row, col int, text string) {
	if b.err != nil {
		return
	}
	b.err = b.f.AddComment(b.sheet, excelize.Comment{Cell: b.cell(row, col), Author: "GEO", Text: text})
}

func (b *builder) validation(dv *excelize.DataValidation, ranges ...geosheet.CellRange) {
	if b.err != nil {
		return
	}
	dv.Sqref = geosheet.FormatSqref(ranges)
	b.err = b.f.AddDataValidation(b.sheet, dv)
}

func (b *builder) condFormat(r geosheet.CellRange) {
	if b.err != nil {
		return
	}
	format, err := b.f.NewConditionalStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"FFC7CE"}, Pattern: 1},
	})
	if err != nil {
		b.err = err
		return
	}
	b.err = b.f.SetConditionalFormat(b.sheet, r.String(), []excelize.ConditionalFormatOptions{
		{Type: "blanks", Format: &format},
	})
}
