package geosheet

import (
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Severity indicates the severity of a validation issue.
type Severity int

const (
	SeverityError   Severity = iota // edits at this layout will land on the wrong rows
	SeverityWarning                 // the workbook drifted from the template but edits still work
)

// Issue is a single problem found while checking a workbook against a layout.
type Issue struct {
	Severity Severity
	Cell     string // "Sheet!A1" or the sheet name alone
	Message  string
}

// String formats the issue as "[ERROR] Metadata!A62: message" or "[WARN] ...".
func (i Issue) String() string {
	sev := "ERROR"
	if i.Severity == SeverityWarning {
		sev = "WARN"
	}
	return fmt.Sprintf("[%s] %s: %s", sev, i.Cell, i.Message)
}

// Validate checks that the workbook at path matches layout l: the sections
// sit where the layout says, the section labels are in place and the sample
// dropdowns exist. A non-nil error means the workbook could not be read.
func Validate(path string, l LayoutState, opts ...Option) ([]Issue, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	var issues []Issue
	err := NewEditor(path, opts...).View(context.Background(), func(f *excelize.File) error {
		var err error
		issues, err = validateWorkbook(f, o.template, o.sheetName(), l)
		return err
	})
	return issues, err
}

func validateWorkbook(f *excelize.File, t *Template, sheet string, l LayoutState) ([]Issue, error) {
	var issues []Issue
	for _, name := range []string{t.ValidationSheet, t.ChecksumSheet} {
		if idx, err := f.GetSheetIndex(name); err != nil || idx < 0 {
			issues = append(issues, Issue{Severity: SeverityWarning, Cell: name, Message: "sheet is missing"})
		}
	}
	sh, err := LoadSheet(f, sheet)
	if err != nil {
		return nil, err
	}

	issues = append(issues, validatePivots(t, l, sheet)...)
	issues = append(issues, validateSections(sh, t, l)...)
	issues = append(issues, validateLabels(sh, t, l)...)
	issues = append(issues, validateDropdowns(sh, t, l)...)
	issues = append(issues, validateRanges(sh)...)
	return issues, nil
}

// validatePivots evaluates every action's pivot at l.
func validatePivots(t *Template, l LayoutState, sheet string) []Issue {
	if err := t.CheckPivots(); err != nil {
		return []Issue{{Severity: SeverityError, Cell: sheet, Message: err.Error()}}
	}
	var issues []Issue
	for _, a := range Actions {
		if _, err := t.Pivot(a, l); err != nil {
			issues = append(issues, Issue{Severity: SeverityError, Cell: sheet, Message: err.Error()})
		}
	}
	return issues
}

// validateSections checks that sections do not overlap and their headers are present.
func validateSections(sh *Sheet, t *Template, l LayoutState) []Issue {
	var issues []Issue
	ref := func(row, col int) string { return sh.Name + "!" + cellName(row, col) }

	studyEnd := t.StudyStartRow + l.StudyLength - 1
	samples := l.SamplesStart(t)
	if studyEnd >= samples {
		issues = append(issues, Issue{Severity: SeverityError, Cell: ref(studyEnd, 1),
			Message: fmt.Sprintf("study section ends at row %d, at or below the sample header at row %d", studyEnd, samples)})
	}
	protocol := l.ProtocolStart(t)
	if end := samples + l.SamplesLength; end >= protocol {
		issues = append(issues, Issue{Severity: SeverityError, Cell: ref(end, 1),
			Message: fmt.Sprintf("sample section ends at row %d, at or below the protocol start at row %d", end, protocol)})
	}
	pairedEnd := l.PairedEndStart(t)
	if end := protocol + l.ProtocolLength - 1; end >= pairedEnd {
		issues = append(issues, Issue{Severity: SeverityError, Cell: ref(end, 1),
			Message: fmt.Sprintf("protocol section ends at row %d, at or below the paired-end header at row %d", end, pairedEnd)})
	}
	if l.SamplesWidth < 1 {
		issues = append(issues, Issue{Severity: SeverityError, Cell: ref(samples, 1), Message: "sample table has no columns"})
	}
	if isBlank(sh.Value(samples, 1)) {
		issues = append(issues, Issue{Severity: SeverityWarning, Cell: ref(samples, 1), Message: "sample header is empty"})
	}
	if isBlank(sh.Value(pairedEnd, 1)) {
		issues = append(issues, Issue{Severity: SeverityWarning, Cell: ref(pairedEnd, 1), Message: "paired-end header is empty"})
	}
	return issues
}

// validateLabels checks the labels of the repeatable rows: the first data
// processing step and the first format row carry the starred label, the rest
// the plain one, and every supplementary row carries the supplementary label.
func validateLabels(sh *Sheet, t *Template, l LayoutState) []Issue {
	var issues []Issue
	check := func(row int, want string) {
		got := strings.TrimSpace(textValue(sh.Value(row, 1)))
		if got != want {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Cell:     sh.Name + "!" + cellName(row, 1),
				Message:  fmt.Sprintf("expected label %q, found %q", want, got),
			})
		}
	}
	series := func(first, n int, label string) {
		for i := range n {
			want := label
			if i == 0 {
				want = StarredLabel(label)
			}
			check(first+i, want)
		}
	}

	protocolEnd := l.ProtocolStart(t) + l.ProtocolLength - 1
	formats := protocolEnd - l.ProcessedfilesNumber + 1
	// one genome build row sits between the steps and the formats
	steps := formats - 1 - l.DatastepsNumber
	series(steps, l.DatastepsNumber, t.StepLabel)
	series(formats, l.ProcessedfilesNumber, t.FormatLabel)

	studyEnd := t.StudyStartRow + l.StudyLength - 1
	for i := range l.SupplementaryNumber {
		check(studyEnd-i, t.SupplementaryLabel)
	}
	return issues
}

// validateDropdowns checks that the first sample row of every dropdown
// column is governed by its dropdown. Columns inserted into the sample table
// move the template columns right of the insertion point.
func validateDropdowns(sh *Sheet, t *Template, l LayoutState) []Issue {
	var issues []Issue
	first := l.SamplesStart(t) + 1
	for _, d := range t.SampleDropdowns {
		want := normalizeFormula(d.Formula)
		ranges, err := ParseSqref(d.Sqref)
		if err != nil || len(ranges) == 0 {
			issues = append(issues, Issue{Severity: SeverityError, Cell: sh.Name, Message: fmt.Sprintf("bad dropdown range %q", d.Sqref)})
			continue
		}
		col := l.SampleColumn(t, ranges[0].MinCol)
		idx := sh.ValidationAt(first, col)
		found := idx >= 0 && normalizeFormula(sh.Validations[idx].Definition.Formula1) == want
		if !found {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Cell:     sh.Name + "!" + cellName(first, col),
				Message:  fmt.Sprintf("no dropdown with list %s", d.Formula),
			})
		}
	}
	return issues
}

// validateRanges reports validation, conditional format and merge ranges
// that left the sheet bounds.
func validateRanges(sh *Sheet) []Issue {
	var issues []Issue
	report := func(kind string, r CellRange) {
		if !r.Valid() {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Cell:     sh.Name,
				Message:  fmt.Sprintf("%s range rows %d-%d cols %d-%d is out of bounds", kind, r.MinRow, r.MaxRow, r.MinCol, r.MaxCol),
			})
		}
	}
	for _, rule := range sh.Validations {
		for _, r := range rule.Sqref {
			report("validation", r)
		}
	}
	for _, rule := range sh.CondFormats {
		for _, r := range rule.Sqref {
			report("conditional format", r)
		}
	}
	for _, r := range sh.Merges {
		report("merge", r)
	}
	return issues
}
