package geosheet

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

// Editor applies structural edits to one workbook on disk. Each call takes
// the document lock, loads the sheet, builds the edited snapshot, swaps it in
// and saves atomically. A failed call leaves the file untouched.
type Editor struct {
	path string
	opts *Options
}

// NewEditor creates an Editor for the workbook at path.
func NewEditor(path string, opts ...Option) *Editor {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return &Editor{path: path, opts: o}
}

// Path returns the workbook path.
func (e *Editor) Path() string { return e.path }

// Template returns the template coordinates the editor uses.
func (e *Editor) Template() *Template { return e.opts.template }

// Sheet returns the name of the edited worksheet.
func (e *Editor) Sheet() string { return e.opts.sheetName() }

// InsertRow inserts one row at row; kind selects the template behaviour.
func (e *Editor) InsertRow(ctx context.Context, row int, kind RowKind) error {
	return e.edit(ctx, "insert_row", logrus.Fields{"row": row, "kind": kind}, RowShift(row, 1), func(s *Sheet) (*Sheet, error) {
		return s.InsertRow(row, kind, e.opts.template)
	})
}

// RemoveRow deletes row.
func (e *Editor) RemoveRow(ctx context.Context, row int) error {
	return e.edit(ctx, "remove_row", logrus.Fields{"row": row}, RowShift(row, -1), func(s *Sheet) (*Sheet, error) {
		return s.RemoveRow(row)
	})
}

// InsertColumn inserts one column at col. When fileColumn is set the header
// at headerRow is copied from the column to the left.
func (e *Editor) InsertColumn(ctx context.Context, col, headerRow int, fileColumn bool) error {
	fields := logrus.Fields{"col": col, "header_row": headerRow, "file_column": fileColumn}
	return e.edit(ctx, "insert_column", fields, ColShift(col, 1), func(s *Sheet) (*Sheet, error) {
		return s.InsertColumn(col, headerRow, fileColumn)
	})
}

// RemoveColumn deletes col.
func (e *Editor) RemoveColumn(ctx context.Context, col int) error {
	return e.edit(ctx, "remove_column", logrus.Fields{"col": col}, ColShift(col, -1), func(s *Sheet) (*Sheet, error) {
		return s.RemoveColumn(col)
	})
}

// ResizeColumns inserts or removes |delta| plain columns at col in a single
// save.
func (e *Editor) ResizeColumns(ctx context.Context, col, delta, headerRow int) error {
	return e.edit(ctx, "resize_columns", logrus.Fields{"col": col, "delta": delta}, ColShift(col, delta), func(s *Sheet) (*Sheet, error) {
		return s.ResizeColumns(col, delta, headerRow)
	})
}

// InsertRows inserts count rows at row and re-creates the sample dropdowns.
func (e *Editor) InsertRows(ctx context.Context, row, count int) error {
	return e.edit(ctx, "insert_rows", logrus.Fields{"row": row, "count": count}, RowShift(row, count), func(s *Sheet) (*Sheet, error) {
		return s.InsertRows(row, count, e.opts.template)
	})
}

// ReapplyDropdowns re-creates the sample dropdowns at their template ranges.
func (e *Editor) ReapplyDropdowns(ctx context.Context) error {
	return e.edit(ctx, "reapply_dropdowns", nil, Shift{}, func(s *Sheet) (*Sheet, error) {
		return s.ReapplyDropdowns(e.opts.template)
	})
}

// edit rebuilds the edited sheet with build. linked is the shift build
// applies; references to the sheet from other sheets follow it.
func (e *Editor) edit(ctx context.Context, op string, fields logrus.Fields, linked Shift, build func(*Sheet) (*Sheet, error)) error {
	log := e.opts.logger.WithFields(fields).WithFields(logrus.Fields{"op": op, "sheet": e.Sheet(), "path": e.path})
	err := e.Update(ctx, func(f *excelize.File) error {
		src, err := LoadSheet(f, e.Sheet())
		if err != nil {
			return err
		}
		out, err := build(src)
		if err != nil {
			return err
		}
		log.WithFields(logrus.Fields{
			"validations":  len(out.Validations),
			"cond_formats": len(out.CondFormats),
			"merges":       len(out.Merges),
		}).Debug("storing edited sheet")
		if err := storeSheet(f, out); err != nil {
			return err
		}
		return shiftLinkedRefs(f, out.Name, linked)
	})
	if err != nil {
		log.WithError(err).Error("structural edit failed")
		return fmt.Errorf("%s: %w", op, err)
	}
	log.Info("structural edit applied")
	return nil
}

// Update opens the workbook under the document lock, runs fn and saves the
// result atomically. Nothing is written when fn fails.
func (e *Editor) Update(ctx context.Context, fn func(*excelize.File) error) error {
	unlock, err := e.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	f, err := excelize.OpenFile(e.path)
	if err != nil {
		return fmt.Errorf("open %s: %w", e.path, err)
	}
	defer f.Close()

	if err := fn(f); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return saveAtomic(f, e.path)
}

// View opens the workbook under the document lock and runs fn without saving.
func (e *Editor) View(ctx context.Context, fn func(*excelize.File) error) error {
	unlock, err := e.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	f, err := excelize.OpenFile(e.path)
	if err != nil {
		return fmt.Errorf("open %s: %w", e.path, err)
	}
	defer f.Close()
	return fn(f)
}

// Locked runs fn while holding the document lock. The Editor passed to fn
// edits without taking the lock again, so a caller can read its own state,
// edit the workbook and commit that state as one step. The inner Editor
// must not be used after fn returns.
func (e *Editor) Locked(ctx context.Context, fn func(*Editor) error) error {
	unlock, err := e.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	o := *e.opts
	o.held = true
	return fn(&Editor{path: e.path, opts: &o})
}

func (e *Editor) lock(ctx context.Context) (func(), error) {
	if e.opts.held {
		return func() {}, nil
	}
	return lockDocument(ctx, e.path, e.opts)
}
