package geosheet

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

const (
	pairedEndValue = "paired-end"
	singleEndValue = "single"
)

// FillSamples writes what is known about each sample into the sample table
// and lists the read files of paired-end samples in the paired-end section.
// growth is the structural change applied to the sheet for these samples; a
// single-cell processed column moves the raw file columns one to the right.
func FillSamples(f *excelize.File, t *Template, l LayoutState, m *SampleFileManifest, growth SampleGrowth) error {
	sheet := t.MetadataSheet
	cols := t.SampleColumns
	rawStart := cols["raw_file_1"]
	processedColumns := 2
	if growth.ProcessedColumn {
		rawStart++
		processedColumns++
	}

	row := l.SamplesStart(t) + 1
	for _, s := range m.Samples {
		for key, v := range map[string]string{"name": s.Name, "organism": s.Organism, "instrument_model": s.Instrument} {
			if col, ok := cols[key]; ok && v != "" {
				if err := writeText(f, sheet, row, col, v); err != nil {
					return err
				}
			}
		}
		for i, file := range s.RawFiles {
			if err := writeText(f, sheet, row, rawStart+i, file.FileName); err != nil {
				return err
			}
		}
		for i, file := range s.ProcessedFiles {
			if i >= processedColumns {
				break
			}
			if err := writeText(f, sheet, row, cols["processed_file_1"]+i, file.FileName); err != nil {
				return err
			}
		}
		layout := singleEndValue
		if s.PairedEnd() {
			layout = pairedEndValue
		}
		if col, ok := cols["single_or_pairedend"]; ok {
			if err := writeText(f, sheet, row, col, layout); err != nil {
				return err
			}
		}
		row++
	}
	return fillPairedEnd(f, t, l, m)
}

// fillPairedEnd lists up to four read files per paired-end sample below the
// paired-end header.
func fillPairedEnd(f *excelize.File, t *Template, l LayoutState, m *SampleFileManifest) error {
	row := l.PairedEndStart(t) + 1
	for _, s := range m.Samples {
		if !s.PairedEnd() {
			continue
		}
		for i, file := range s.RawFiles {
			if i >= pairedEndColumns {
				break
			}
			if err := writeText(f, t.MetadataSheet, row, i+1, file.FileName); err != nil {
				return fmt.Errorf("paired-end row for %s: %w", s.Name, err)
			}
		}
		row++
	}
	return nil
}
