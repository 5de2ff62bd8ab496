package geosheet_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/geouploader/geosheet"
	"github.com/geouploader/geosheet/internal/testtemplate"
)

// newWorkbook writes the template workbook to a temp dir and returns its
// path and styles.
func newWorkbook(t *testing.T) (string, testtemplate.Styles) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "Metadata.xlsx")
	st, err := testtemplate.Save(geosheet.DefaultTemplate(), path)
	require.NoError(t, err)
	return path, st
}

func newEditor(t *testing.T, path string, opts ...geosheet.Option) *geosheet.Editor {
	t.Helper()
	logger, _ := test.NewNullLogger()
	return geosheet.NewEditor(path, append([]geosheet.Option{geosheet.WithLogger(logger)}, opts...)...)
}

func openWorkbook(t *testing.T, path string) *excelize.File {
	t.Helper()
	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func cellValue(t *testing.T, f *excelize.File, sheet, cell string) string {
	t.Helper()
	v, err := f.GetCellValue(sheet, cell)
	require.NoError(t, err)
	return v
}

func validationSqrefs(t *testing.T, f *excelize.File, sheet string) []string {
	t.Helper()
	dvs, err := f.GetDataValidations(sheet)
	require.NoError(t, err)
	var out []string
	for _, dv := range dvs {
		out = append(out, dv.Sqref)
	}
	return out
}

func TestEditor_InsertContributorRow(t *testing.T) {
	path, st := newWorkbook(t)
	ed := newEditor(t, path)
	require.NoError(t, ed.InsertRow(context.Background(), 21, geosheet.RowContributor))

	f := openWorkbook(t, path)
	assert.Equal(t, []string{"Metadata", "Data validation", "MD5 Checksums"}, f.GetSheetList())

	assert.Equal(t, "contributor", cellValue(t, f, "Metadata", "A21"))
	assert.Equal(t, "contributor", cellValue(t, f, "Metadata", "A22"))
	assert.Equal(t, "supplementary file", cellValue(t, f, "Metadata", "A23"))
	style, err := f.GetCellStyle("Metadata", "A21")
	require.NoError(t, err)
	assert.Equal(t, st.Label, style)

	assert.Equal(t, "library name", cellValue(t, f, "Metadata", "A39"))
	assert.Equal(t, "PROTOCOLS", cellValue(t, f, "Metadata", "A55"))
	assert.Equal(t, "file name 1", cellValue(t, f, "Metadata", "A77"))

	sqrefs := validationSqrefs(t, f, "Metadata")
	assert.Contains(t, sqrefs, "B23")
	assert.Contains(t, sqrefs, "M40:M54")
	assert.Contains(t, sqrefs, "C40:C54")

	merges, err := f.GetMergeCells("Metadata")
	require.NoError(t, err)
	require.Len(t, merges, 1)
	assert.Equal(t, "A1", merges[0].GetStartAxis())
	assert.Equal(t, "D1", merges[0].GetEndAxis())

	comments, err := f.GetComments("Metadata")
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "Q39", comments[0].Cell)

	height, err := f.GetRowHeight("Metadata", 39)
	require.NoError(t, err)
	assert.Equal(t, 30.0, height)
	width, err := f.GetColWidth("Metadata", "A")
	require.NoError(t, err)
	assert.Equal(t, 40.0, width)

	cf, err := f.GetConditionalFormats("Metadata")
	require.NoError(t, err)
	assert.Contains(t, cf, "A40:T54")
}

func TestEditor_InsertThenRemoveRestoresLayout(t *testing.T) {
	path, _ := newWorkbook(t)
	ed := newEditor(t, path)
	ctx := context.Background()
	require.NoError(t, ed.InsertRow(ctx, 66, geosheet.RowStep))
	require.NoError(t, ed.RemoveRow(ctx, 66))

	f := openWorkbook(t, path)
	assert.Equal(t, "*data processing step", cellValue(t, f, "Metadata", "A62"))
	assert.Equal(t, "data processing step", cellValue(t, f, "Metadata", "A66"))
	assert.Equal(t, "*genome build/assembly", cellValue(t, f, "Metadata", "A67"))
	assert.Equal(t, "file name 1", cellValue(t, f, "Metadata", "A76"))
}

func TestEditor_InsertFileColumn(t *testing.T) {
	path, _ := newWorkbook(t)
	ed := newEditor(t, path)
	require.NoError(t, ed.InsertColumn(context.Background(), 17, 38, true))

	f := openWorkbook(t, path)
	assert.Equal(t, "processed data file", cellValue(t, f, "Metadata", "Q38"))
	assert.Equal(t, "raw file", cellValue(t, f, "Metadata", "R38"))
	assert.Equal(t, "raw file", cellValue(t, f, "Metadata", "U38"))
	assert.Equal(t, "", cellValue(t, f, "Metadata", "V38"))
	assert.Equal(t, "Illumina NovaSeq 6000", cellValue(t, f, "Data validation", "A2"))
}

func TestEditor_FailedEditLeavesFileUntouched(t *testing.T) {
	path, _ := newWorkbook(t)
	ed := newEditor(t, path)
	err := ed.InsertRow(context.Background(), 0, geosheet.RowPlain)
	assert.ErrorIs(t, err, geosheet.ErrGeometry)

	err = ed.Update(context.Background(), func(f *excelize.File) error {
		require.NoError(t, f.SetCellStr("Metadata", "B12", "changed"))
		return errors.New("boom")
	})
	assert.EqualError(t, err, "boom")

	f := openWorkbook(t, path)
	assert.Equal(t, "", cellValue(t, f, "Metadata", "B12"))
	assert.Equal(t, "contributor", cellValue(t, f, "Metadata", "A21"))
}

func TestEditor_MissingSheet(t *testing.T) {
	path, _ := newWorkbook(t)
	ed := newEditor(t, path, geosheet.WithSheet("Nope"))
	err := ed.RemoveRow(context.Background(), 3)
	assert.ErrorIs(t, err, geosheet.ErrSheetNotFound)
}

func TestEditor_LockTimeout(t *testing.T) {
	path, _ := newWorkbook(t)
	holder := newEditor(t, path)
	waiter := newEditor(t, path, geosheet.WithLockTimeout(50*time.Millisecond))

	held, release := make(chan struct{}), make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = holder.View(context.Background(), func(*excelize.File) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held
	err := waiter.RemoveRow(context.Background(), 21)
	close(release)
	wg.Wait()
	assert.ErrorIs(t, err, geosheet.ErrLocked)

	require.NoError(t, waiter.RemoveRow(context.Background(), 21))
}

func TestEditor_LockedHoldsAcrossCalls(t *testing.T) {
	path, _ := newWorkbook(t)
	ctx := context.Background()
	waiter := newEditor(t, path, geosheet.WithLockTimeout(50*time.Millisecond))

	err := newEditor(t, path).Locked(ctx, func(ed *geosheet.Editor) error {
		require.NoError(t, ed.InsertRow(ctx, 21, geosheet.RowContributor))
		assert.ErrorIs(t, waiter.RemoveRow(ctx, 21), geosheet.ErrLocked)
		return ed.View(ctx, func(f *excelize.File) error {
			assert.Equal(t, "supplementary file", cellValue(t, f, "Metadata", "A23"))
			return nil
		})
	})
	require.NoError(t, err)
	require.NoError(t, waiter.RemoveRow(ctx, 21))
}

func TestEditor_LinksFollowEdit(t *testing.T) {
	path, _ := newWorkbook(t)
	ctx := context.Background()
	ed := newEditor(t, path)
	require.NoError(t, ed.Update(ctx, func(f *excelize.File) error {
		require.NoError(t, f.SetCellFormula("Data validation", "B1", "'Metadata'!B22&A22"))
		require.NoError(t, f.SetCellHyperLink("MD5 Checksums", "C1", "Metadata!A38", "Location"))
		require.NoError(t, f.SetCellHyperLink("Metadata", "E12", "Metadata!A22", "Location"))
		return f.SetCellHyperLink("Metadata", "E13", "https://www.ncbi.nlm.nih.gov/geo/", "External")
	}))

	require.NoError(t, ed.InsertRow(ctx, 21, geosheet.RowContributor))

	f := openWorkbook(t, path)
	formula, err := f.GetCellFormula("Data validation", "B1")
	require.NoError(t, err)
	assert.Equal(t, "'Metadata'!B23&A22", formula)
	for _, tt := range []struct{ sheet, cell, want string }{
		{"MD5 Checksums", "C1", "Metadata!A39"},
		{"Metadata", "E12", "Metadata!A23"},
		{"Metadata", "E13", "https://www.ncbi.nlm.nih.gov/geo/"},
	} {
		ok, target, err := f.GetCellHyperLink(tt.sheet, tt.cell)
		require.NoError(t, err)
		require.True(t, ok, tt.cell)
		assert.Equal(t, tt.want, target, tt.cell)
	}
}

func TestEditor_ConcurrentEditsSerialize(t *testing.T) {
	path, _ := newWorkbook(t)
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, newEditor(t, path).InsertRow(ctx, 21, geosheet.RowContributor))
		}()
	}
	wg.Wait()

	f := openWorkbook(t, path)
	assert.Equal(t, "supplementary file", cellValue(t, f, "Metadata", "A26"))
	assert.Equal(t, "library name", cellValue(t, f, "Metadata", "A42"))
}

func TestEditor_InsertRowsGrowsSampleSection(t *testing.T) {
	path, _ := newWorkbook(t)
	ed := newEditor(t, path)
	require.NoError(t, ed.InsertRows(context.Background(), 39, 5))

	f := openWorkbook(t, path)
	sqrefs := validationSqrefs(t, f, "Metadata")
	assert.Contains(t, sqrefs, "M39:M58")
	assert.Contains(t, sqrefs, "C39:C58")
	assert.Equal(t, "PROTOCOLS", cellValue(t, f, "Metadata", "A59"))
}
