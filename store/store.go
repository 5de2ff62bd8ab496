// Package store persists session records: the workbook a session edits and
// the layout state that locates its sections.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/geouploader/geosheet"
)

const busyTimeout = 5 * time.Second

// ErrNotFound is returned when no session matches the lookup.
var ErrNotFound = errors.New("session not found")

// ErrDuplicateTitle is returned when a session title is already taken.
var ErrDuplicateTitle = errors.New("session title already exists")

// Session is one upload session. Layout must change in the same transaction
// as every structural edit of the workbook.
type Session struct {
	ID           uint                 `gorm:"column:id;primaryKey" json:"id"`
	Title        string               `gorm:"column:title;size:190;not null;uniqueIndex" json:"title"`
	SingleCell   bool                 `gorm:"column:single_cell;not null;default:false" json:"single_cell"`
	WorkbookPath string               `gorm:"column:workbook_path;not null" json:"workbook_path"`
	Layout       geosheet.LayoutState `gorm:"embedded;embeddedPrefix:metadata_" json:"layout"`
	CreatedAt    time.Time            `json:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

// TableName provides the explicit table binding for GORM.
func (Session) TableName() string {
	return "sessions"
}

// Store is a sqlite-backed session store.
type Store struct {
	db *gorm.DB
}

// Open opens (creating if needed) the sqlite database at path and migrates
// the schema. Writers wait up to busyTimeout for each other.
func Open(path string) (*Store, error) {
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += fmt.Sprintf("?_busy_timeout=%d", busyTimeout.Milliseconds())
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}
	if err := db.AutoMigrate(&Session{}); err != nil {
		return nil, fmt.Errorf("migrate store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Create inserts a new session and fills in its ID.
func (s *Store) Create(ctx context.Context, sess *Session) error {
	var n int64
	if err := s.db.WithContext(ctx).Model(&Session{}).Where("title = ?", sess.Title).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("%w: %q", ErrDuplicateTitle, sess.Title)
	}
	return s.db.WithContext(ctx).Create(sess).Error
}

// Get returns the session with the given id.
func (s *Store) Get(ctx context.Context, id uint) (*Session, error) {
	var sess Session
	err := s.db.WithContext(ctx).First(&sess, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// GetByTitle returns the session with the given title.
func (s *Store) GetByTitle(ctx context.Context, title string) (*Session, error) {
	var sess Session
	err := s.db.WithContext(ctx).Where("title = ?", title).First(&sess).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, title)
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// List returns every session, oldest first.
func (s *Store) List(ctx context.Context) ([]Session, error) {
	var out []Session
	if err := s.db.WithContext(ctx).Order("id").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Update loads the session inside a transaction, runs fn on it and saves
// the result. When fn fails nothing is written and its error is returned.
func (s *Store) Update(ctx context.Context, id uint, fn func(*Session) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sess Session
		err := tx.First(&sess, id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: id %d", ErrNotFound, id)
		}
		if err != nil {
			return err
		}
		if err := fn(&sess); err != nil {
			return err
		}
		return tx.Save(&sess).Error
	})
}

// Delete removes the session record.
func (s *Store) Delete(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&Session{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return nil
}
