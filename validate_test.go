package geosheet_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/geouploader/geosheet"
)

func errorsOnly(issues []geosheet.Issue) []geosheet.Issue {
	var out []geosheet.Issue
	for _, i := range issues {
		if i.Severity == geosheet.SeverityError {
			out = append(out, i)
		}
	}
	return out
}

func TestValidate_Template(t *testing.T) {
	path, _ := newWorkbook(t)
	issues, err := geosheet.Validate(path, geosheet.DefaultLayout())
	require.NoError(t, err)
	assert.Empty(t, issues)
}

func TestValidate_TracksLayoutAcrossEdits(t *testing.T) {
	path, _ := newWorkbook(t)
	ctx := context.Background()
	tmpl := geosheet.DefaultTemplate()
	ed := newEditor(t, path)

	l := geosheet.DefaultLayout()
	for _, a := range []geosheet.Action{geosheet.AddContributor, geosheet.AddSupplementaryFile, geosheet.AddFormat, geosheet.RemoveStep} {
		row, err := tmpl.Pivot(a, l)
		require.NoError(t, err, a)
		if a.Insert() {
			require.NoError(t, ed.InsertRow(ctx, row, a.RowKind()), a)
		} else {
			require.NoError(t, ed.RemoveRow(ctx, row), a)
		}
		l, err = l.Apply(a)
		require.NoError(t, err, a)
	}

	issues, err := geosheet.Validate(path, l)
	require.NoError(t, err)
	assert.Empty(t, issues)
}

func TestValidate_StaleLayout(t *testing.T) {
	path, _ := newWorkbook(t)
	require.NoError(t, newEditor(t, path).InsertRow(context.Background(), 21, geosheet.RowContributor))

	issues, err := geosheet.Validate(path, geosheet.DefaultLayout())
	require.NoError(t, err)
	errs := errorsOnly(issues)
	require.NotEmpty(t, errs)
	assert.Contains(t, errs[0].String(), "[ERROR] Metadata!")
}

func TestValidate_MissingDropdown(t *testing.T) {
	path, _ := newWorkbook(t)
	err := newEditor(t, path).Update(context.Background(), func(f *excelize.File) error {
		return f.DeleteDataValidation("Metadata", "M39:M53")
	})
	require.NoError(t, err)

	issues, err := geosheet.Validate(path, geosheet.DefaultLayout())
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, geosheet.SeverityWarning, issues[0].Severity)
	assert.Equal(t, "Metadata!M39", issues[0].Cell)
}

func TestValidate_OverlappingSections(t *testing.T) {
	path, _ := newWorkbook(t)
	l := geosheet.DefaultLayout()
	l.SamplesLength = 30

	issues, err := geosheet.Validate(path, l)
	require.NoError(t, err)
	errs := errorsOnly(issues)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, "sample section ends at row 68")
}

func TestValidate_FollowsSampleColumns(t *testing.T) {
	path, _ := newWorkbook(t)
	tmpl := geosheet.DefaultTemplate()
	require.NoError(t, newEditor(t, path).ResizeColumns(context.Background(), tmpl.SamplesColumnInsert, 2, tmpl.SamplesStartRow))

	l := geosheet.DefaultLayout()
	l.SamplesWidth = 22
	issues, err := geosheet.Validate(path, l)
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, "Metadata!M39", issues[0].Cell)

	l.SamplesColumnShift = 2
	assert.Equal(t, 15, l.SampleColumn(tmpl, 13))
	assert.Equal(t, 3, l.SampleColumn(tmpl, 3))
	issues, err = geosheet.Validate(path, l)
	require.NoError(t, err)
	assert.Empty(t, issues)
}
