package geosheet

import (
	"context"
	"crypto/md5"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
	"golang.org/x/sync/errgroup"
)

// File types in a checksum table.
const (
	FileTypeRaw       = "raw"
	FileTypeProcessed = "processed"
)

var checksumHeader = []string{"file_name", "file_type", "md5sum", "path", "sample"}

// ChecksumEntry is one line of the checksum table.
type ChecksumEntry struct {
	FileName string `json:"file_name"`
	FileType string `json:"file_type"`
	MD5      string `json:"md5sum"`
	Path     string `json:"path"`
	Sample   string `json:"sample"`
}

// ComputeChecksums hashes every raw and processed file of the manifest with
// up to workers files in flight. Missing files are logged and skipped. The
// result follows manifest order.
func ComputeChecksums(ctx context.Context, m *SampleFileManifest, workers int, log logrus.FieldLogger) ([]ChecksumEntry, error) {
	var entries []ChecksumEntry
	for _, s := range m.Samples {
		for _, file := range s.RawFiles {
			entries = append(entries, ChecksumEntry{FileName: file.FileName, FileType: FileTypeRaw, Path: file.Path, Sample: s.Name})
		}
		for _, file := range s.ProcessedFiles {
			entries = append(entries, ChecksumEntry{FileName: file.FileName, FileType: FileTypeProcessed, Path: file.Path, Sample: s.Name})
		}
	}

	found := make([]bool, len(entries))
	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i := range entries {
		g.Go(func() error {
			sum, err := fileMD5(ctx, entries[i].Path)
			switch {
			case errors.Is(err, fs.ErrNotExist):
				log.WithField("path", entries[i].Path).Warn("file not found, skipping checksum")
				return nil
			case err != nil:
				return fmt.Errorf("checksum %s: %w", entries[i].Path, err)
			}
			entries[i].MD5 = sum
			found[i] = true
			log.WithFields(logrus.Fields{"sample": entries[i].Sample, "file": entries[i].FileName}).Debug("checksum computed")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := entries[:0]
	for i, e := range entries {
		if found[i] {
			out = append(out, e)
		}
	}
	return out, nil
}

func fileMD5(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return "", err
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%s: not a regular file: %w", path, fs.ErrNotExist)
	}
	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// WriteChecksumTSV writes entries as a tab separated table with a header.
func WriteChecksumTSV(w io.Writer, entries []ChecksumEntry) error {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'
	if err := cw.Write(checksumHeader); err != nil {
		return err
	}
	for _, e := range entries {
		if err := cw.Write([]string{e.FileName, e.FileType, e.MD5, e.Path, e.Sample}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadChecksumTSV reads a table written by WriteChecksumTSV. Columns are
// located by header name, so extra or reordered columns are accepted.
func ReadChecksumTSV(r io.Reader) ([]ChecksumEntry, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read checksum header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[name] = i
	}
	for _, required := range []string{"file_name", "file_type", "md5sum"} {
		if _, ok := index[required]; !ok {
			return nil, fmt.Errorf("checksum table has no %q column", required)
		}
	}
	field := func(rec []string, name string) string {
		if i, ok := index[name]; ok && i < len(rec) {
			return rec[i]
		}
		return ""
	}

	var entries []ChecksumEntry
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read checksum table: %w", err)
		}
		entries = append(entries, ChecksumEntry{
			FileName: field(rec, "file_name"),
			FileType: field(rec, "file_type"),
			MD5:      field(rec, "md5sum"),
			Path:     field(rec, "path"),
			Sample:   field(rec, "sample"),
		})
	}
	return entries, nil
}

// Checksum sheet columns: file name and md5 for raw files, then for
// processed files.
const (
	checksumRawNameCol       = 1
	checksumRawMD5Col        = 2
	checksumProcessedNameCol = 6
	checksumProcessedMD5Col  = 7
)

// FillChecksums lists raw and processed files with their md5 on the checksum
// sheet, each kind in its own pair of columns.
func FillChecksums(f *excelize.File, t *Template, entries []ChecksumEntry) error {
	sheet := t.ChecksumSheet
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return fmt.Errorf("%w: %q", ErrSheetNotFound, sheet)
	}
	raw, processed := t.ChecksumStartRow, t.ChecksumStartRow
	for _, e := range entries {
		var err error
		switch e.FileType {
		case FileTypeRaw:
			err = writeChecksumRow(f, sheet, raw, checksumRawNameCol, checksumRawMD5Col, e)
			raw++
		case FileTypeProcessed:
			err = writeChecksumRow(f, sheet, processed, checksumProcessedNameCol, checksumProcessedMD5Col, e)
			processed++
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func writeChecksumRow(f *excelize.File, sheet string, row, nameCol, md5Col int, e ChecksumEntry) error {
	if err := writeText(f, sheet, row, nameCol, e.FileName); err != nil {
		return err
	}
	return writeText(f, sheet, row, md5Col, e.MD5)
}
