package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geouploader/geosheet"
	"github.com/geouploader/geosheet/internal/testtemplate"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), "none.toml")}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestInsertRowThenValidate(t *testing.T) {
	dir := t.TempDir()
	wb := filepath.Join(dir, "Metadata.xlsx")
	_, err := testtemplate.Save(geosheet.DefaultTemplate(), wb)
	require.NoError(t, err)

	_, err = run(t, "insert-row", wb, "21", "--kind", "contributor")
	require.NoError(t, err)

	out, err := run(t, "validate", wb)
	assert.Error(t, err, "stale layout")
	assert.Contains(t, out, "[ERROR]")

	l, err := geosheet.DefaultLayout().Apply(geosheet.AddContributor)
	require.NoError(t, err)
	b, err := json.Marshal(l)
	require.NoError(t, err)
	layout := filepath.Join(dir, "layout.json")
	require.NoError(t, os.WriteFile(layout, b, 0o644))

	out, err = run(t, "validate", wb, "--layout", layout)
	require.NoError(t, err, out)
	assert.Empty(t, out)

	out, err = run(t, "describe", wb, "--layout", layout)
	require.NoError(t, err)
	assert.Contains(t, out, "study      rows 12-23 (8 contributors, 1 supplementary files)")
}

func TestArgumentErrors(t *testing.T) {
	_, err := run(t, "insert-row", "x.xlsx", "zero")
	assert.ErrorContains(t, err, "ROW must be a positive integer")

	_, err = run(t, "insert-row", "x.xlsx", "3", "--kind", "sample")
	assert.ErrorContains(t, err, "unknown row kind")
}

func TestChecksumsCommand(t *testing.T) {
	dir := t.TempDir()
	data := filepath.Join(dir, "a.fq")
	require.NoError(t, os.WriteFile(data, []byte("hello"), 0o644))
	manifest := filepath.Join(dir, "manifest.yaml")
	m := &geosheet.SampleFileManifest{Samples: []geosheet.Sample{{
		Name: "S1", RawFiles: []geosheet.FileInfo{{Path: data, FileName: "a.fq"}},
	}}}
	f, err := os.Create(manifest)
	require.NoError(t, err)
	require.NoError(t, m.Write(f))
	require.NoError(t, f.Close())

	out, err := run(t, "checksums", manifest)
	require.NoError(t, err)
	assert.Contains(t, out, "a.fq\traw\t5d41402abc4b2a76b9719d911017c592\t"+data+"\tS1\n")
}
