package geosheet

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// Metadata is the editable content of the metadata sheet, one slice per
// section. Study and Protocol rows are label/value pairs; Samples starts
// with its header row; PairedEnd starts with its header row and has four
// file columns.
type Metadata struct {
	Study     [][]string `json:"study"`
	Samples   [][]string `json:"samples"`
	Protocol  [][]string `json:"protocol"`
	PairedEnd [][]string `json:"paired_end"`
}

// pairedEndColumns is the width of the paired-end section.
const pairedEndColumns = 4

// ReadMetadata reads every section at the positions l gives.
func ReadMetadata(f *excelize.File, t *Template, l LayoutState) (*Metadata, error) {
	sheet := t.MetadataSheet
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrSheetNotFound, sheet)
	}
	m := &Metadata{}
	var err error

	if m.Study, err = readUntilBlank(f, sheet, t.StudyStartRow, 2); err != nil {
		return nil, fmt.Errorf("read study: %w", err)
	}

	start := l.SamplesStart(t)
	if m.Samples, err = readBlock(f, sheet, start, l.SamplesLength+1, l.SamplesWidth); err != nil {
		return nil, fmt.Errorf("read samples: %w", err)
	}

	if m.Protocol, err = readBlock(f, sheet, l.ProtocolStart(t), l.ProtocolLength, 2); err != nil {
		return nil, fmt.Errorf("read protocol: %w", err)
	}

	if m.PairedEnd, err = readUntilBlank(f, sheet, l.PairedEndStart(t), pairedEndColumns); err != nil {
		return nil, fmt.Errorf("read paired-end: %w", err)
	}
	return m, nil
}

func readBlock(f *excelize.File, sheet string, row, rows, cols int) ([][]string, error) {
	out := make([][]string, 0, rows)
	for r := row; r < row+rows; r++ {
		line, err := readLine(f, sheet, r, cols)
		if err != nil {
			return nil, err
		}
		out = append(out, line)
	}
	return out, nil
}

// readUntilBlank reads rows from row on until column A is empty.
func readUntilBlank(f *excelize.File, sheet string, row, cols int) ([][]string, error) {
	var out [][]string
	for r := row; r <= excelize.TotalRows; r++ {
		line, err := readLine(f, sheet, r, cols)
		if err != nil {
			return nil, err
		}
		if line[0] == "" {
			break
		}
		out = append(out, line)
	}
	return out, nil
}

func readLine(f *excelize.File, sheet string, row, cols int) ([]string, error) {
	line := make([]string, cols)
	for c := 1; c <= cols; c++ {
		v, err := f.GetCellValue(sheet, cellName(row, c))
		if err != nil {
			return nil, err
		}
		line[c-1] = v
	}
	return line, nil
}

// WriteStudy writes label/value pairs from the first study row on. Only
// columns 1 and 2 of the given rows are touched.
func WriteStudy(f *excelize.File, t *Template, study [][]string) error {
	return writePairs(f, t.MetadataSheet, t.StudyStartRow, study)
}

// WriteProtocol writes label/value pairs from the current first protocol row.
func WriteProtocol(f *excelize.File, t *Template, l LayoutState, protocol [][]string) error {
	return writePairs(f, t.MetadataSheet, l.ProtocolStart(t), protocol)
}

func writePairs(f *excelize.File, sheet string, start int, rows [][]string) error {
	for i, pair := range rows {
		for c := 0; c < 2; c++ {
			v := ""
			if c < len(pair) {
				v = pair[c]
			}
			if err := writeText(f, sheet, start+i, c+1, v); err != nil {
				return err
			}
		}
	}
	return nil
}

// WriteSamples writes the sample table, header included, from the current
// sample header row. The width is the width of the first row.
func WriteSamples(f *excelize.File, t *Template, l LayoutState, samples [][]string) error {
	if len(samples) == 0 {
		return nil
	}
	start, width := l.SamplesStart(t), len(samples[0])
	for i, line := range samples {
		for c := 0; c < width; c++ {
			v := ""
			if c < len(line) {
				v = line[c]
			}
			if err := writeText(f, t.MetadataSheet, start+i, c+1, v); err != nil {
				return err
			}
		}
	}
	return nil
}

// writeText sets a cell value, clearing it for "". The cell keeps its style.
func writeText(f *excelize.File, sheet string, row, col int, v string) error {
	name := cellName(row, col)
	var err error
	if v == "" {
		err = f.SetCellValue(sheet, name, nil)
	} else {
		err = f.SetCellStr(sheet, name, v)
	}
	if err != nil {
		return fmt.Errorf("write %s!%s: %w", sheet, name, err)
	}
	return nil
}

// Dropdowns are the choice lists offered by the metadata forms.
type Dropdowns struct {
	Molecule   []string `json:"molecule"`
	Instrument []string `json:"instrument"`
	Library    []string `json:"library"`
}

// ReadDropdowns reads the instrument and library lists from the validation
// sheet; molecule types are fixed by the template.
func ReadDropdowns(f *excelize.File, t *Template) (*Dropdowns, error) {
	instruments, err := readColumnRange(f, t.ValidationSheet, t.InstrumentRange)
	if err != nil {
		return nil, fmt.Errorf("read instruments: %w", err)
	}
	libraries, err := readColumnRange(f, t.ValidationSheet, t.LibraryRange)
	if err != nil {
		return nil, fmt.Errorf("read library strategies: %w", err)
	}
	return &Dropdowns{
		Molecule:   append([]string(nil), t.MoleculeTypes...),
		Instrument: instruments,
		Library:    libraries,
	}, nil
}

func readColumnRange(f *excelize.File, sheet, ref string) ([]string, error) {
	r, err := ParseRange(ref)
	if err != nil {
		return nil, err
	}
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrSheetNotFound, sheet)
	}
	out := make([]string, 0, r.Rows())
	for row := r.MinRow; row <= r.MaxRow; row++ {
		v, err := f.GetCellValue(sheet, cellName(row, r.MinCol))
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
