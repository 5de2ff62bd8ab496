package geosheet

import (
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Dropdown is a list validation the template owns outright: it is always
// re-created at its range rather than shifted.
type Dropdown struct {
	Sqref   string `toml:"sqref"`
	Formula string `toml:"formula"`
}

// Template holds the fixed coordinates of the GEO metadata workbook. These
// values come from the spreadsheet design and are supplied, never derived.
type Template struct {
	MetadataSheet   string `toml:"metadata_sheet"`
	ValidationSheet string `toml:"validation_sheet"`
	ChecksumSheet   string `toml:"checksum_sheet"`

	StudyStartRow           int `toml:"study_start_row"`           // first study row, no header
	SamplesStartRow         int `toml:"samples_start_row"`         // sample header row
	ProtocolInstructionsRow int `toml:"protocol_instructions_row"` // first row the samples must not reach
	ProtocolStartRow        int `toml:"protocol_start_row"`        // first protocol row, no header
	PairedEndStartRow       int `toml:"pairedend_start_row"`       // paired-end header row
	ChecksumStartRow        int `toml:"checksum_start_row"`

	SamplesColumnInsert int            `toml:"samples_column_insert"` // where free sample columns are added/removed
	SamplesColumnRaw    int            `toml:"samples_column_raw"`    // first raw file column
	SamplesColumns      int            `toml:"samples_columns"`       // default sample table width
	RawFileColumns      int            `toml:"raw_file_columns"`      // raw file columns present in the template
	SampleColumns       map[string]int `toml:"sample_columns"`

	StepLabel            string `toml:"step_label"`
	FormatLabel          string `toml:"format_label"`
	SupplementaryLabel   string `toml:"supplementary_label"`
	SupplementaryColumn  int    `toml:"supplementary_column"`
	SupplementaryPrompt  string `toml:"supplementary_prompt"`
	SupplementaryFormula string `toml:"supplementary_formula"`

	DropdownPrompt  string     `toml:"dropdown_prompt"`
	DropdownError   string     `toml:"dropdown_error"`
	SampleDropdowns []Dropdown `toml:"sample_dropdowns"`

	InstrumentRange string   `toml:"instrument_range"` // on the validation sheet
	LibraryRange    string   `toml:"library_range"`    // on the validation sheet
	MoleculeTypes   []string `toml:"molecule_types"`

	Pivots map[Action]string `toml:"pivots"`

	programs sync.Map // expression → *vm.Program
}

// DefaultTemplate returns the coordinates of the current GEO sequencing template.
func DefaultTemplate() *Template {
	return &Template{
		MetadataSheet:   "Metadata",
		ValidationSheet: "Data validation",
		ChecksumSheet:   "MD5 Checksums",

		StudyStartRow:           12,
		SamplesStartRow:         38,
		ProtocolInstructionsRow: 54,
		ProtocolStartRow:        57,
		PairedEndStartRow:       76,
		ChecksumStartRow:        9,

		SamplesColumnInsert: 6,
		SamplesColumnRaw:    17,
		SamplesColumns:      20,
		RawFileColumns:      4,
		SampleColumns: map[string]int{
			"name":                1,
			"title":               2,
			"library":             3,
			"organism":            4,
			"tissue":              5,
			"cell_line":           6,
			"cell_type":           7,
			"genotype":            8,
			"treatment":           9,
			"batch":               10,
			"molecule":            11,
			"single_or_pairedend": 12,
			"instrument_model":    13,
			"description":         14,
			"processed_file_1":    15,
			"processed_file_2":    16,
			"raw_file_1":          17,
			"raw_file_2":          18,
			"raw_file_3":          19,
			"raw_file_4":          20,
		},

		StepLabel:           "data processing step",
		FormatLabel:         "processed data files format and content",
		SupplementaryLabel:  "supplementary file",
		SupplementaryColumn: 2,
		SupplementaryPrompt: "List the name of any processed data files (one per row) that were derived from multiple samples. " +
			"For instance, bulkRNA-seq tables that include library names as headers, or 'merged' peak files.",

		DropdownPrompt: "Click on arrowhead.  To view complete list, use scrollbar or up/down arrows on keyboard " +
			"(increasing window size or zoom level may improve scroll bar function).",
		DropdownError: "Select a value from the drop down menu",
		SampleDropdowns: []Dropdown{
			{Sqref: "M39:M53", Formula: "'Data validation'!$A$2:$A$73"},
			{Sqref: "C39:C53", Formula: "'Data validation'!$B$2:$B$49"},
		},

		InstrumentRange: "A2:A72",
		LibraryRange:    "B2:B48",
		MoleculeTypes: []string{
			"polyA RNA", "total RNA", "nuclear RNA", "cytoplasmic RNA", "genomic DNA", "protein", "other",
		},

		Pivots: map[Action]string{
			AddContributor:          "study_start + study_length - 1 - supplementary_number",
			RemoveContributor:       "study_start + study_length - supplementary_number - 1",
			AddSupplementaryFile:    "study_start + study_length",
			RemoveSupplementaryFile: "study_start + study_length - 1",
			AddStep:                 "protocol_start + protocol_displacement + protocol_length - 1 - (processedfiles_number + 1)",
			RemoveStep:              "protocol_start + protocol_displacement + protocol_length - 1 - (processedfiles_number + 1)",
			AddFormat:               "protocol_start + protocol_displacement + protocol_length - 1",
			RemoveFormat:            "protocol_start + protocol_displacement + protocol_length - 1",
		},
	}
}

// StarredLabel returns the required-field form of a section label.
func StarredLabel(label string) string { return "*" + label }

// pivotEnv is the variable set available to pivot expressions.
type pivotEnv struct {
	StudyStart            int `expr:"study_start"`
	SamplesStart          int `expr:"samples_start"`
	ProtocolStart         int `expr:"protocol_start"`
	PairedEndStart        int `expr:"pairedend_start"`
	StudyLength           int `expr:"study_length"`
	ContributorsNumber    int `expr:"contributors_number"`
	SupplementaryNumber   int `expr:"supplementary_number"`
	SamplesDisplacement   int `expr:"samples_displacement"`
	SamplesLength         int `expr:"samples_length"`
	SamplesWidth          int `expr:"samples_width"`
	ProtocolDisplacement  int `expr:"protocol_displacement"`
	ProtocolLength        int `expr:"protocol_length"`
	DatastepsNumber       int `expr:"datasteps_number"`
	ProcessedfilesNumber  int `expr:"processedfiles_number"`
	PairedendDisplacement int `expr:"pairedend_displacement"`
}

func (t *Template) env(l LayoutState) pivotEnv {
	return pivotEnv{
		StudyStart:            t.StudyStartRow,
		SamplesStart:          t.SamplesStartRow,
		ProtocolStart:         t.ProtocolStartRow,
		PairedEndStart:        t.PairedEndStartRow,
		StudyLength:           l.StudyLength,
		ContributorsNumber:    l.ContributorsNumber,
		SupplementaryNumber:   l.SupplementaryNumber,
		SamplesDisplacement:   l.SamplesDisplacement,
		SamplesLength:         l.SamplesLength,
		SamplesWidth:          l.SamplesWidth,
		ProtocolDisplacement:  l.ProtocolDisplacement,
		ProtocolLength:        l.ProtocolLength,
		DatastepsNumber:       l.DatastepsNumber,
		ProcessedfilesNumber:  l.ProcessedfilesNumber,
		PairedendDisplacement: l.PairedendDisplacement,
	}
}

// Pivot returns the row a structural edit for action must be anchored at,
// given the current layout.
func (t *Template) Pivot(action Action, l LayoutState) (int, error) {
	src, ok := t.Pivots[action]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	program, err := t.compile(src)
	if err != nil {
		return 0, fmt.Errorf("compile pivot for %s: %w", action, err)
	}
	out, err := expr.Run(program, t.env(l))
	if err != nil {
		return 0, fmt.Errorf("evaluate pivot for %s: %w", action, err)
	}
	row, ok := out.(int)
	if !ok {
		return 0, fmt.Errorf("pivot for %s evaluated to %T, expected int", action, out)
	}
	if row < 1 {
		return 0, fmt.Errorf("%w: pivot for %s evaluated to %d", ErrGeometry, action, row)
	}
	return row, nil
}

func (t *Template) compile(src string) (*vm.Program, error) {
	if cached, ok := t.programs.Load(src); ok {
		return cached.(*vm.Program), nil
	}
	program, err := expr.Compile(src, expr.Env(pivotEnv{}), expr.AsInt())
	if err != nil {
		return nil, err
	}
	t.programs.Store(src, program)
	return program, nil
}

// CheckPivots compiles every pivot expression, reporting the first failure.
func (t *Template) CheckPivots() error {
	for action, src := range t.Pivots {
		if _, err := t.compile(src); err != nil {
			return fmt.Errorf("pivot for %s: %w", action, err)
		}
	}
	return nil
}

// SampleGrowth is the structural change a new session's samples require.
type SampleGrowth struct {
	ExtraRows       int // rows inserted below the sample header
	ProcessedColumn bool
	ExtraRawColumns int
}

// Columns returns the number of columns the growth inserts.
func (g SampleGrowth) Columns() int {
	n := g.ExtraRawColumns
	if g.ProcessedColumn {
		n++
	}
	return n
}

// GrowSamples computes how far the sample section must grow so samples
// rows fit above the protocol instructions, and which file columns a
// single-cell session adds.
func (t *Template) GrowSamples(samples int, singleCell bool, rawFiles int) SampleGrowth {
	length := samples
	if !singleCell {
		// bulk sessions keep one row of slack for the paired-end flag
		length = samples - 1
	}
	var g SampleGrowth
	if end := t.SamplesStartRow + length + 1; end >= t.ProtocolInstructionsRow {
		g.ExtraRows = 1 + end - t.ProtocolInstructionsRow
	}
	if singleCell {
		g.ProcessedColumn = true
		if rawFiles > t.RawFileColumns {
			g.ExtraRawColumns = rawFiles - t.RawFileColumns
		}
	}
	return g
}
