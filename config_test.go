package geosheet

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.Equal(t, 30*time.Second, cfg.LockTimeout())
}

func TestLoadConfig_Overrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "geosheet.toml")
	doc := `
listen = "127.0.0.1:9000"
checksum_workers = 8

[template]
metadata_sheet = "Metadata"
samples_start_row = 40
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.Listen)
	assert.Equal(t, 8, cfg.ChecksumWorkers)
	assert.Equal(t, "geosheet.db", cfg.Database)
	assert.Equal(t, 40, cfg.Template.SamplesStartRow)
	assert.Equal(t, DefaultTemplate().StudyStartRow, cfg.Template.StudyStartRow)
}

func TestLoadConfig_Invalid(t *testing.T) {
	dir := t.TempDir()
	tests := map[string]string{
		"syntax":       "listen = ",
		"workers":      "checksum_workers = -1",
		"pivot":        "[template.pivots]\nadd_step = \"protocol_start +\"",
		"sheet erased": "[template]\nmetadata_sheet = \"\"",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name+".toml")
			require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
			_, err := LoadConfig(path)
			assert.Error(t, err)
		})
	}
}

func TestConfigSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.toml")
	cfg := DefaultConfig()
	cfg.SessionsDir = "/srv/geo"
	require.NoError(t, cfg.Save(path))

	got, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/geo", got.SessionsDir)
	assert.Equal(t, cfg.Template.Pivots, got.Template.Pivots)
}
