package geosheet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayoutApply_StudyEditsMoveLaterSections(t *testing.T) {
	l, err := DefaultLayout().Apply(AddContributor)
	require.NoError(t, err)
	assert.Equal(t, 8, l.ContributorsNumber)
	assert.Equal(t, 12, l.StudyLength)
	assert.Equal(t, 1, l.SamplesDisplacement)
	assert.Equal(t, 1, l.ProtocolDisplacement)
	assert.Equal(t, 1, l.PairedendDisplacement)

	l, err = l.Apply(RemoveSupplementaryFile)
	require.NoError(t, err)
	assert.Equal(t, 0, l.SupplementaryNumber)
	assert.Equal(t, 11, l.StudyLength)
	assert.Equal(t, 0, l.SamplesDisplacement)
}

func TestLayoutApply_ProtocolEditsOnlyMovePairedEnd(t *testing.T) {
	l, err := DefaultLayout().Apply(AddStep)
	require.NoError(t, err)
	assert.Equal(t, 6, l.DatastepsNumber)
	assert.Equal(t, 14, l.ProtocolLength)
	assert.Equal(t, 0, l.SamplesDisplacement)
	assert.Equal(t, 0, l.ProtocolDisplacement)
	assert.Equal(t, 1, l.PairedendDisplacement)

	l, err = l.Apply(RemoveFormat)
	require.NoError(t, err)
	assert.Equal(t, 1, l.ProcessedfilesNumber)
	assert.Equal(t, 13, l.ProtocolLength)
	assert.Equal(t, 0, l.PairedendDisplacement)
}

func TestLayoutApply_LastRowGuards(t *testing.T) {
	base := DefaultLayout()
	tests := []struct {
		name   string
		layout LayoutState
		action Action
	}{
		{"last contributor", func() LayoutState { l := base; l.ContributorsNumber = 1; return l }(), RemoveContributor},
		{"no supplementary file", func() LayoutState { l := base; l.SupplementaryNumber = 0; return l }(), RemoveSupplementaryFile},
		{"last step", func() LayoutState { l := base; l.DatastepsNumber = 1; return l }(), RemoveStep},
		{"last format", func() LayoutState { l := base; l.ProcessedfilesNumber = 1; return l }(), RemoveFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.layout.Apply(tt.action)
			assert.ErrorIs(t, err, ErrLastRow)
			assert.Equal(t, tt.layout, got)
		})
	}
}

func TestLayoutApply_UnknownAction(t *testing.T) {
	_, err := DefaultLayout().Apply("add_sample")
	assert.ErrorIs(t, err, ErrUnknownAction)
	assert.False(t, Action("add_sample").Valid())
}

func TestLayoutApply_InsertThenRemoveIsIdentity(t *testing.T) {
	for _, a := range []Action{AddContributor, AddSupplementaryFile, AddStep, AddFormat} {
		l, err := DefaultLayout().Apply(a)
		require.NoError(t, err)
		remove := Action("remove" + string(a)[len("add"):])
		require.True(t, remove.Valid(), remove)
		l, err = l.Apply(remove)
		require.NoError(t, err)
		assert.Equal(t, DefaultLayout(), l, a)
	}
}

func TestSectionStarts(t *testing.T) {
	tmpl := DefaultTemplate()
	l := DefaultLayout()
	l.SamplesDisplacement = 2
	l = l.GrowSamples(3)
	assert.Equal(t, 40, l.SamplesStart(tmpl))
	assert.Equal(t, 60, l.ProtocolStart(tmpl))
	assert.Equal(t, 79, l.PairedEndStart(tmpl))
}

func TestPivot_Defaults(t *testing.T) {
	tmpl := DefaultTemplate()
	want := map[Action]int{
		AddContributor:          21,
		RemoveContributor:       21,
		AddSupplementaryFile:    23,
		RemoveSupplementaryFile: 22,
		AddStep:                 66,
		RemoveStep:              66,
		AddFormat:               69,
		RemoveFormat:            69,
	}
	for a, row := range want {
		got, err := tmpl.Pivot(a, DefaultLayout())
		require.NoError(t, err, a)
		assert.Equal(t, row, got, a)
	}
}

func TestPivot_FollowsDisplacement(t *testing.T) {
	tmpl := DefaultTemplate()
	l, err := DefaultLayout().Apply(AddContributor)
	require.NoError(t, err)
	row, err := tmpl.Pivot(AddStep, l)
	require.NoError(t, err)
	assert.Equal(t, 67, row)
}

func TestPivot_Errors(t *testing.T) {
	tmpl := DefaultTemplate()
	_, err := tmpl.Pivot("add_sample", DefaultLayout())
	assert.ErrorIs(t, err, ErrUnknownAction)

	tmpl.Pivots[AddStep] = "protocol_start +"
	assert.Error(t, tmpl.CheckPivots())

	tmpl.Pivots[AddStep] = "1 - study_length"
	_, err = tmpl.Pivot(AddStep, DefaultLayout())
	assert.ErrorIs(t, err, ErrGeometry)
}

func TestGrowSamples(t *testing.T) {
	tmpl := DefaultTemplate()
	tests := []struct {
		name       string
		samples    int
		singleCell bool
		raw        int
		want       SampleGrowth
	}{
		{"bulk fits", 10, false, 2, SampleGrowth{}},
		{"bulk at the edge", 16, false, 2, SampleGrowth{ExtraRows: 1}},
		{"bulk overflows", 20, false, 2, SampleGrowth{ExtraRows: 5}},
		{"single cell fits", 10, true, 3, SampleGrowth{ProcessedColumn: true}},
		{"single cell many reads", 16, true, 6, SampleGrowth{ExtraRows: 2, ProcessedColumn: true, ExtraRawColumns: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tmpl.GrowSamples(tt.samples, tt.singleCell, tt.raw)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Equal(t, 3, SampleGrowth{ProcessedColumn: true, ExtraRawColumns: 2}.Columns())
}
