package geosheet

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// FileInfo is one data file of a sample.
type FileInfo struct {
	Path     string `yaml:"path" json:"path"`
	FileName string `yaml:"file_name" json:"file_name"`
	Size     int64  `yaml:"size,omitempty" json:"size,omitempty"`
}

// Sample is a sequencing sample and its files as discovered on disk.
type Sample struct {
	Name           string     `yaml:"name" json:"name"`
	Organism       string     `yaml:"organism,omitempty" json:"organism,omitempty"`
	Instrument     string     `yaml:"instrument,omitempty" json:"instrument,omitempty"`
	RawFiles       []FileInfo `yaml:"raw_files,omitempty" json:"raw_files,omitempty"`
	ProcessedFiles []FileInfo `yaml:"processed_files,omitempty" json:"processed_files,omitempty"`
}

// PairedEnd reports whether the sample has more than one raw read file.
func (s Sample) PairedEnd() bool { return len(s.RawFiles) > 1 }

// SampleFileManifest lists the samples of one upload session.
type SampleFileManifest struct {
	Session    string   `yaml:"session,omitempty" json:"session,omitempty"`
	SingleCell bool     `yaml:"single_cell" json:"single_cell"`
	Samples    []Sample `yaml:"samples" json:"samples"`
}

// ParseManifest decodes a YAML manifest.
func ParseManifest(r io.Reader) (*SampleFileManifest, error) {
	var m SampleFileManifest
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if err := m.Check(); err != nil {
		return nil, err
	}
	return &m, nil
}

// LoadManifest reads a YAML manifest from path.
func LoadManifest(path string) (*SampleFileManifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()
	return ParseManifest(f)
}

// Write encodes the manifest as YAML.
func (m *SampleFileManifest) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	return enc.Close()
}

// Check rejects manifests the sheet cannot be filled from.
func (m *SampleFileManifest) Check() error {
	if len(m.Samples) == 0 {
		return fmt.Errorf("manifest has no samples")
	}
	seen := make(map[string]bool, len(m.Samples))
	for i, s := range m.Samples {
		if s.Name == "" {
			return fmt.Errorf("sample %d has no name", i+1)
		}
		if seen[s.Name] {
			return fmt.Errorf("duplicate sample %q", s.Name)
		}
		seen[s.Name] = true
	}
	return nil
}

// MaxRawFiles returns the largest number of raw files of any sample.
func (m *SampleFileManifest) MaxRawFiles() int {
	n := 0
	for _, s := range m.Samples {
		n = max(n, len(s.RawFiles))
	}
	return n
}
