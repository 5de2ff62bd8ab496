package geosheet

import "fmt"

// LayoutState locates the sections of one session's metadata sheet. The
// displacements are the net rows inserted above each section since the
// template was copied; the counters track repeatable rows inside sections.
// It must change in lockstep with every structural edit of the document.
type LayoutState struct {
	StudyLength           int `json:"study_length"`
	ContributorsNumber    int `json:"contributors_number"`
	SupplementaryNumber   int `json:"supplementary_number"`
	SamplesDisplacement   int `json:"samples_displacement"`
	SamplesLength         int `json:"samples_length"`
	SamplesWidth          int `json:"samples_width"`
	ProtocolDisplacement  int `json:"protocol_displacement"`
	ProtocolLength        int `json:"protocol_length"`
	DatastepsNumber       int `json:"datasteps_number"`
	ProcessedfilesNumber  int `json:"processedfiles_number"`
	PairedendDisplacement int `json:"pairedend_displacement"`
	// SamplesColumnShift is the net number of columns inserted at the
	// template's sample insertion column.
	SamplesColumnShift int `json:"samples_column_shift"`
}

// DefaultLayout is the layout of a freshly copied template.
func DefaultLayout() LayoutState {
	return LayoutState{
		StudyLength:          11,
		ContributorsNumber:   7,
		SupplementaryNumber:  1,
		SamplesWidth:         20,
		ProtocolLength:       13,
		DatastepsNumber:      5,
		ProcessedfilesNumber: 2,
	}
}

// Action is a repeatable-row edit requested by the metadata forms.
type Action string

const (
	AddContributor          Action = "add_contributor"
	RemoveContributor       Action = "remove_contributor"
	AddSupplementaryFile    Action = "add_supplementary_file"
	RemoveSupplementaryFile Action = "remove_supplementary_file"
	AddStep                 Action = "add_step"
	RemoveStep              Action = "remove_step"
	AddFormat               Action = "add_format"
	RemoveFormat            Action = "remove_format"
)

// Actions lists every action in a stable order.
var Actions = []Action{
	AddContributor, RemoveContributor,
	AddSupplementaryFile, RemoveSupplementaryFile,
	AddStep, RemoveStep,
	AddFormat, RemoveFormat,
}

// Insert reports whether the action adds a row.
func (a Action) Insert() bool {
	switch a {
	case AddContributor, AddSupplementaryFile, AddStep, AddFormat:
		return true
	}
	return false
}

// RowKind returns the row kind an inserting action uses.
func (a Action) RowKind() RowKind {
	switch a {
	case AddContributor:
		return RowContributor
	case AddSupplementaryFile:
		return RowSupplementary
	case AddStep:
		return RowStep
	case AddFormat:
		return RowFormat
	}
	return RowPlain
}

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	for _, known := range Actions {
		if a == known {
			return true
		}
	}
	return false
}

// Apply returns the layout after the action's row edit. Study edits move
// every section below the study; protocol edits only move paired-end.
func (l LayoutState) Apply(a Action) (LayoutState, error) {
	indel := -1
	if a.Insert() {
		indel = 1
	}

	switch a {
	case AddContributor, RemoveContributor:
		if a == RemoveContributor && l.ContributorsNumber <= 1 {
			return l, fmt.Errorf("%w: contributors", ErrLastRow)
		}
		l.ContributorsNumber += indel
	case AddSupplementaryFile, RemoveSupplementaryFile:
		if a == RemoveSupplementaryFile && l.SupplementaryNumber <= 0 {
			return l, fmt.Errorf("%w: supplementary files", ErrLastRow)
		}
		l.SupplementaryNumber += indel
	case AddStep, RemoveStep:
		if a == RemoveStep && l.DatastepsNumber <= 1 {
			return l, fmt.Errorf("%w: data processing steps", ErrLastRow)
		}
		l.DatastepsNumber += indel
	case AddFormat, RemoveFormat:
		if a == RemoveFormat && l.ProcessedfilesNumber <= 1 {
			return l, fmt.Errorf("%w: processed file formats", ErrLastRow)
		}
		l.ProcessedfilesNumber += indel
	default:
		return l, fmt.Errorf("%w: %q", ErrUnknownAction, a)
	}

	switch a {
	case AddContributor, RemoveContributor, AddSupplementaryFile, RemoveSupplementaryFile:
		l.StudyLength += indel
		l.SamplesDisplacement += indel
		l.ProtocolDisplacement += indel
		l.PairedendDisplacement += indel
	default:
		l.ProtocolLength += indel
		l.PairedendDisplacement += indel
	}
	return l, nil
}

// GrowSamples returns the layout after rows were inserted inside the sample
// section. The section start is unchanged; everything below it moves.
func (l LayoutState) GrowSamples(rows int) LayoutState {
	l.ProtocolDisplacement += rows
	l.PairedendDisplacement += rows
	return l
}

// SamplesStart returns the current row of the sample header.
func (l LayoutState) SamplesStart(t *Template) int {
	return t.SamplesStartRow + l.SamplesDisplacement
}

// SampleColumn returns the current column of template column col of the
// sample table.
func (l LayoutState) SampleColumn(t *Template, col int) int {
	if col >= t.SamplesColumnInsert {
		return col + l.SamplesColumnShift
	}
	return col
}

// ProtocolStart returns the current first protocol row.
func (l LayoutState) ProtocolStart(t *Template) int {
	return t.ProtocolStartRow + l.ProtocolDisplacement
}

// PairedEndStart returns the current paired-end header row.
func (l LayoutState) PairedEndStart(t *Template) int {
	return t.PairedEndStartRow + l.PairedendDisplacement
}
