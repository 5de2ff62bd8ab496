package geosheet

import (
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Describe opens a metadata workbook and returns a human-readable summary
// of its sections at layout l, with the validation, conditional formatting
// and merged ranges of the edited sheet. Useful for checking a workbook
// after structural edits.
func Describe(path string, l LayoutState, opts ...Option) (string, error) {
	var out string
	err := NewEditor(path, opts...).View(context.Background(), func(f *excelize.File) error {
		var err error
		out, err = describeWorkbook(f, path, opts, l)
		return err
	})
	return out, err
}

func describeWorkbook(f *excelize.File, path string, opts []Option, l LayoutState) (string, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	t := o.template
	sh, err := LoadSheet(f, o.sheetName())
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Workbook: %s\n", path)
	fmt.Fprintf(&b, "Sheets: %s\n", strings.Join(f.GetSheetList(), ", "))
	fmt.Fprintf(&b, "%s: %d rows x %d cols, %d cells\n", sh.Name, sh.MaxRow(), sh.MaxCol(), len(sh.Cells))

	b.WriteString("Sections:\n")
	studyEnd := t.StudyStartRow + l.StudyLength - 1
	fmt.Fprintf(&b, "  study      rows %d-%d (%d contributors, %d supplementary files)\n",
		t.StudyStartRow, studyEnd, l.ContributorsNumber, l.SupplementaryNumber)
	samples := l.SamplesStart(t)
	fmt.Fprintf(&b, "  samples    header row %d, %d samples x %d columns\n", samples, l.SamplesLength, l.SamplesWidth)
	protocol := l.ProtocolStart(t)
	fmt.Fprintf(&b, "  protocol   rows %d-%d (%d steps, %d formats)\n",
		protocol, protocol+l.ProtocolLength-1, l.DatastepsNumber, l.ProcessedfilesNumber)
	fmt.Fprintf(&b, "  paired-end header row %d\n", l.PairedEndStart(t))

	if len(sh.Validations) > 0 {
		b.WriteString("Data validations:\n")
		for _, rule := range sh.Validations {
			fmt.Fprintf(&b, "  %s%s\n", FormatSqref(rule.Sqref), describeValidation(rule.Definition))
		}
	}
	if len(sh.CondFormats) > 0 {
		b.WriteString("Conditional formats:\n")
		for _, rule := range sh.CondFormats {
			types := make([]string, 0, len(rule.Rules))
			for _, r := range rule.Rules {
				types = append(types, r.Type)
			}
			fmt.Fprintf(&b, "  %s %s\n", FormatSqref(rule.Sqref), strings.Join(types, ","))
		}
	}
	if len(sh.Merges) > 0 {
		merges := make([]string, 0, len(sh.Merges))
		for _, m := range sh.Merges {
			merges = append(merges, m.String())
		}
		fmt.Fprintf(&b, "Merged: %s\n", strings.Join(merges, " "))
	}
	return b.String(), nil
}

// describeValidation returns the key attributes of a validation for display.
func describeValidation(dv excelize.DataValidation) string {
	var parts []string
	if dv.Type != "" {
		parts = append(parts, fmt.Sprintf("type=%q", dv.Type))
	}
	if dv.Formula1 != "" {
		parts = append(parts, fmt.Sprintf("formula=%q", dv.Formula1))
	}
	if dv.ShowInputMessage && dv.Prompt != nil {
		parts = append(parts, "prompt")
	}
	if len(parts) == 0 {
		return ""
	}
	return " " + strings.Join(parts, " ")
}
