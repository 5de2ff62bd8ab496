package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geouploader/geosheet"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateAndGet(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	sess := &Session{Title: "liver", WorkbookPath: "/tmp/liver.xlsx", Layout: geosheet.DefaultLayout()}
	require.NoError(t, s.Create(ctx, sess))
	require.NotZero(t, sess.ID)

	got, err := s.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "liver", got.Title)
	assert.Equal(t, geosheet.DefaultLayout(), got.Layout)

	byTitle, err := s.GetByTitle(ctx, "liver")
	require.NoError(t, err)
	assert.Equal(t, sess.ID, byTitle.ID)
}

func TestCreateDuplicateTitle(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.Create(ctx, &Session{Title: "a", WorkbookPath: "a.xlsx"}))
	err := s.Create(ctx, &Session{Title: "a", WorkbookPath: "b.xlsx"})
	assert.ErrorIs(t, err, ErrDuplicateTitle)
}

func TestGetMissing(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Get(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetByTitle(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdatePersistsLayout(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	sess := &Session{Title: "x", WorkbookPath: "x.xlsx", Layout: geosheet.DefaultLayout()}
	require.NoError(t, s.Create(ctx, sess))

	err := s.Update(ctx, sess.ID, func(cur *Session) error {
		next, err := cur.Layout.Apply(geosheet.AddContributor)
		if err != nil {
			return err
		}
		cur.Layout = next
		return nil
	})
	require.NoError(t, err)

	got, err := s.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, got.Layout.ContributorsNumber)
	assert.Equal(t, 12, got.Layout.StudyLength)
	assert.Equal(t, 1, got.Layout.SamplesDisplacement)
}

func TestUpdateRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	sess := &Session{Title: "x", WorkbookPath: "x.xlsx", Layout: geosheet.DefaultLayout()}
	require.NoError(t, s.Create(ctx, sess))

	boom := errors.New("edit failed")
	err := s.Update(ctx, sess.ID, func(cur *Session) error {
		cur.Layout.StudyLength = 99
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 11, got.Layout.StudyLength)
}

func TestListAndDelete(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	for _, title := range []string{"one", "two"} {
		require.NoError(t, s.Create(ctx, &Session{Title: title, WorkbookPath: title + ".xlsx"}))
	}
	all, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "one", all[0].Title)

	require.NoError(t, s.Delete(ctx, all[0].ID))
	assert.ErrorIs(t, s.Delete(ctx, all[0].ID), ErrNotFound)
	all, err = s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
