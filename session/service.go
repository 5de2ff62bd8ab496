// Package session keeps each session's layout state and its metadata
// workbook in lockstep. Every structural edit of a session workbook goes
// through a Service so the stored layout always describes the document.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"github.com/geouploader/geosheet"
	"github.com/geouploader/geosheet/store"
)

// ChecksumFile is the name of the checksum table kept next to a session workbook.
const ChecksumFile = "md5sums.tsv"

var (
	// ErrInvalidTitle is returned for titles that cannot name a session folder.
	ErrInvalidTitle = errors.New("invalid session title")
	// ErrInvalidWidth is returned when a sample table width would remove
	// columns left of the insertion column.
	ErrInvalidWidth = errors.New("invalid sample table width")
)

var titleRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// Service runs session workflows over a store and a template.
type Service struct {
	store *store.Store
	cfg   *geosheet.Config
	log   logrus.FieldLogger
}

// New creates a Service.
func New(st *store.Store, cfg *geosheet.Config, log logrus.FieldLogger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{store: st, cfg: cfg, log: log}
}

// Template returns the template coordinates sessions use.
func (s *Service) Template() *geosheet.Template { return s.cfg.Template }

func (s *Service) options() []geosheet.Option {
	return []geosheet.Option{
		geosheet.WithTemplate(s.cfg.Template),
		geosheet.WithLogger(s.log),
		geosheet.WithLockTimeout(s.cfg.LockTimeout()),
	}
}

func (s *Service) editor(sess *store.Session) *geosheet.Editor {
	return geosheet.NewEditor(sess.WorkbookPath, s.options()...)
}

// List returns every session.
func (s *Service) List(ctx context.Context) ([]store.Session, error) {
	return s.store.List(ctx)
}

// Get returns one session.
func (s *Service) Get(ctx context.Context, id uint) (*store.Session, error) {
	return s.store.Get(ctx, id)
}

// Create copies the base workbook into a new session folder, grows the
// sample section for the manifest's samples, fills in what the manifest
// knows and records the resulting layout. On failure the folder is removed.
func (s *Service) Create(ctx context.Context, title string, m *geosheet.SampleFileManifest) (*store.Session, error) {
	if title == "" {
		title = m.Session
	}
	if !titleRe.MatchString(title) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTitle, title)
	}
	if err := m.Check(); err != nil {
		return nil, err
	}
	if _, err := s.store.GetByTitle(ctx, title); err == nil {
		return nil, fmt.Errorf("%w: %q", store.ErrDuplicateTitle, title)
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	dir := filepath.Join(s.cfg.SessionsDir, title)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create session folder: %w", err)
	}
	sess := &store.Session{
		Title:        title,
		SingleCell:   m.SingleCell,
		WorkbookPath: filepath.Join(dir, s.cfg.WorkbookName),
	}
	log := s.log.WithFields(logrus.Fields{"session": title, "samples": len(m.Samples), "single_cell": m.SingleCell})

	layout, err := s.buildWorkbook(ctx, sess, m)
	if err == nil {
		sess.Layout = layout
		err = s.store.Create(ctx, sess)
	}
	if err != nil {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			log.WithError(rmErr).Warn("could not remove session folder")
		}
		log.WithError(err).Error("session creation failed")
		return nil, err
	}
	log.WithField("id", sess.ID).Info("session created")
	return sess, nil
}

func (s *Service) buildWorkbook(ctx context.Context, sess *store.Session, m *geosheet.SampleFileManifest) (geosheet.LayoutState, error) {
	t := s.cfg.Template
	layout := geosheet.DefaultLayout()
	if err := copyFile(s.cfg.BaseWorkbook, sess.WorkbookPath); err != nil {
		return layout, fmt.Errorf("copy base workbook: %w", err)
	}

	ed := s.editor(sess)
	growth := t.GrowSamples(len(m.Samples), m.SingleCell, m.MaxRawFiles())
	if growth.ExtraRows > 0 {
		if err := ed.InsertRows(ctx, t.SamplesStartRow+1, growth.ExtraRows); err != nil {
			return layout, err
		}
		layout = layout.GrowSamples(growth.ExtraRows)
	} else if err := ed.ReapplyDropdowns(ctx); err != nil {
		return layout, err
	}

	if growth.ProcessedColumn {
		if err := ed.InsertColumn(ctx, t.SamplesColumnRaw, t.SamplesStartRow, true); err != nil {
			return layout, err
		}
	}
	for range growth.ExtraRawColumns {
		if err := ed.InsertColumn(ctx, t.SamplesColumnRaw+3, t.SamplesStartRow, true); err != nil {
			return layout, err
		}
	}
	layout.SamplesLength = len(m.Samples)
	layout.SamplesWidth = t.SamplesColumns + growth.Columns()

	err := ed.Update(ctx, func(f *excelize.File) error {
		return geosheet.FillSamples(f, t, layout, m, growth)
	})
	return layout, err
}

// Resize adds or removes one repeatable row. The document lock is held from
// reading the layout until it is committed, and the structural edit runs
// inside the store transaction: if the edit fails the layout is not touched.
func (s *Service) Resize(ctx context.Context, id uint, action geosheet.Action) (*store.Session, error) {
	if !action.Valid() {
		return nil, fmt.Errorf("%w: %q", geosheet.ErrUnknownAction, action)
	}
	t := s.cfg.Template
	var out *store.Session
	err := s.locked(ctx, id, func(ed *geosheet.Editor) error {
		return s.store.Update(ctx, id, func(sess *store.Session) error {
			pivot, err := t.Pivot(action, sess.Layout)
			if err != nil {
				return err
			}
			next, err := sess.Layout.Apply(action)
			if err != nil {
				return err
			}
			if action.Insert() {
				err = ed.InsertRow(ctx, pivot, action.RowKind())
			} else {
				err = ed.RemoveRow(ctx, pivot)
			}
			if err != nil {
				return err
			}
			sess.Layout = next
			out = sess
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", action, err)
	}
	return out, nil
}

// ResizeSampleColumns sets the sample table width by inserting or removing
// plain columns at the template's insertion column.
func (s *Service) ResizeSampleColumns(ctx context.Context, id uint, width int) (*store.Session, error) {
	var out *store.Session
	err := s.locked(ctx, id, func(ed *geosheet.Editor) error {
		var err error
		out, err = s.resizeSampleColumns(ctx, ed, id, width)
		return err
	})
	return out, err
}

func (s *Service) resizeSampleColumns(ctx context.Context, ed *geosheet.Editor, id uint, width int) (*store.Session, error) {
	t := s.cfg.Template
	if width < t.SamplesColumnInsert {
		return nil, fmt.Errorf("%w: %d is narrower than column %d", ErrInvalidWidth, width, t.SamplesColumnInsert)
	}
	var out *store.Session
	err := s.store.Update(ctx, id, func(sess *store.Session) error {
		delta := width - sess.Layout.SamplesWidth
		if delta != 0 {
			if err := ed.ResizeColumns(ctx, t.SamplesColumnInsert, delta, sess.Layout.SamplesStart(t)); err != nil {
				return err
			}
		}
		sess.Layout.SamplesWidth = width
		sess.Layout.SamplesColumnShift += delta
		out = sess
		return nil
	})
	return out, err
}

// locked runs fn with the session's document lock held.
func (s *Service) locked(ctx context.Context, id uint, fn func(*geosheet.Editor) error) error {
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	return s.editor(sess).Locked(ctx, fn)
}

// Metadata reads every section of the session workbook.
func (s *Service) Metadata(ctx context.Context, id uint) (*geosheet.Metadata, error) {
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	var md *geosheet.Metadata
	err = s.editor(sess).View(ctx, func(f *excelize.File) error {
		var err error
		md, err = geosheet.ReadMetadata(f, s.cfg.Template, sess.Layout)
		return err
	})
	return md, err
}

// Dropdowns reads the choice lists offered for the session's samples.
func (s *Service) Dropdowns(ctx context.Context, id uint) (*geosheet.Dropdowns, error) {
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	var d *geosheet.Dropdowns
	err = s.editor(sess).View(ctx, func(f *excelize.File) error {
		var err error
		d, err = geosheet.ReadDropdowns(f, s.cfg.Template)
		return err
	})
	return d, err
}

// SaveMetadata writes every section back. The sample table is first resized
// to the width of its header row; then the contents are written in one save.
// Both happen under one hold of the document lock.
func (s *Service) SaveMetadata(ctx context.Context, id uint, md *geosheet.Metadata) error {
	t := s.cfg.Template
	var title string
	err := s.locked(ctx, id, func(ed *geosheet.Editor) error {
		sess, err := s.store.Get(ctx, id)
		if err != nil {
			return err
		}
		if len(md.Samples) > 0 && len(md.Samples[0]) != sess.Layout.SamplesWidth {
			if sess, err = s.resizeSampleColumns(ctx, ed, id, len(md.Samples[0])); err != nil {
				return err
			}
		}
		title = sess.Title
		return ed.Update(ctx, func(f *excelize.File) error {
			if err := geosheet.WriteStudy(f, t, md.Study); err != nil {
				return fmt.Errorf("save study: %w", err)
			}
			if err := geosheet.WriteSamples(f, t, sess.Layout, md.Samples); err != nil {
				return fmt.Errorf("save samples: %w", err)
			}
			if err := geosheet.WriteProtocol(f, t, sess.Layout, md.Protocol); err != nil {
				return fmt.Errorf("save protocol: %w", err)
			}
			return nil
		})
	})
	if err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{"session": title, "samples": max(0, len(md.Samples)-1)}).Info("metadata saved")
	return nil
}

// FillChecksums reads a checksum table and lists its files on the
// checksum sheet.
func (s *Service) FillChecksums(ctx context.Context, id uint, r io.Reader) (int, error) {
	entries, err := geosheet.ReadChecksumTSV(r)
	if err != nil {
		return 0, err
	}
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	err = s.editor(sess).Update(ctx, func(f *excelize.File) error {
		return geosheet.FillChecksums(f, s.cfg.Template, entries)
	})
	return len(entries), err
}

// ComputeChecksums hashes the manifest's files, keeps the table next to the
// workbook and fills the checksum sheet.
func (s *Service) ComputeChecksums(ctx context.Context, id uint, m *geosheet.SampleFileManifest) ([]geosheet.ChecksumEntry, error) {
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	log := s.log.WithField("session", sess.Title)
	entries, err := geosheet.ComputeChecksums(ctx, m, s.cfg.ChecksumWorkers, log)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	if err := geosheet.WriteChecksumTSV(&b, entries); err != nil {
		return nil, err
	}
	tsv := filepath.Join(filepath.Dir(sess.WorkbookPath), ChecksumFile)
	if err := os.WriteFile(tsv, []byte(b.String()), 0o644); err != nil {
		return nil, fmt.Errorf("write checksum table: %w", err)
	}

	err = s.editor(sess).Update(ctx, func(f *excelize.File) error {
		return geosheet.FillChecksums(f, s.cfg.Template, entries)
	})
	if err != nil {
		return nil, err
	}
	log.WithField("files", len(entries)).Info("checksums filled")
	return entries, nil
}

// Validate checks the session workbook against its stored layout.
func (s *Service) Validate(ctx context.Context, id uint) ([]geosheet.Issue, error) {
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return geosheet.Validate(sess.WorkbookPath, sess.Layout, s.options()...)
}

// Describe summarizes the session workbook.
func (s *Service) Describe(ctx context.Context, id uint) (string, error) {
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return geosheet.Describe(sess.WorkbookPath, sess.Layout, s.options()...)
}

func copyFile(src, dst string) error {
	if src == "" {
		return errors.New("no base workbook configured")
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
