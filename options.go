package geosheet

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Options holds configuration for the Editor.
type Options struct {
	sheet       string
	template    *Template
	logger      logrus.FieldLogger
	lockTimeout time.Duration
	lockRetry   time.Duration
	fileLock    bool
	held        bool
}

func defaultOptions() *Options {
	return &Options{
		template:    DefaultTemplate(),
		logger:      logrus.StandardLogger(),
		lockTimeout: 30 * time.Second,
		lockRetry:   50 * time.Millisecond,
		fileLock:    true,
	}
}

// Option configures the Editor.
type Option func(*Options)

// WithSheet sets the worksheet the structural edits apply to (default: the
// template's metadata sheet).
func WithSheet(name string) Option {
	return func(o *Options) { o.sheet = name }
}

// WithTemplate sets the template coordinates used by row-kind specific edits.
func WithTemplate(t *Template) Option {
	return func(o *Options) {
		if t != nil {
			o.template = t
		}
	}
}

// WithLogger sets the logger edits report to.
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *Options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithLockTimeout bounds how long an edit waits for the document lock. Zero waits
// until the context is done.
func WithLockTimeout(d time.Duration) Option {
	return func(o *Options) { o.lockTimeout = d }
}

// WithFileLock controls whether a "<document>.lock" file guards the document
// against other processes (default: true).
func WithFileLock(enabled bool) Option {
	return func(o *Options) { o.fileLock = enabled }
}

func (o *Options) sheetName() string {
	if o.sheet != "" {
		return o.sheet
	}
	return o.template.MetadataSheet
}
