// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Cilium

package sysdump

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// ManifestFileName is the name of the run manifest inside the archive.
const ManifestFileName = "manifest.yaml"

// Collection step names as recorded in the manifest.
const (
	stepPodsOverview = "pods-overview"
	stepLogs         = "logs"
	stepGops         = "gops"
	stepCNP          = "cnp"
	stepBugtool      = "bugtool"
)

// ArtifactRecord describes one collection attempt.
type ArtifactRecord struct {
	Name      string `yaml:"name"`
	Step      string `yaml:"step"`
	Collected bool   `yaml:"collected"`
	Error     string `yaml:"error,omitempty"`
}

// Manifest describes a single sysdump run: identity, timing and the outcome
// of every collection attempt. It is written into the working directory
// before archival, so the archive is self-describing.
//
// Collection is strictly sequential, so no locking is needed.
type Manifest struct {
	RunID     string           `yaml:"runId"`
	Version   string           `yaml:"version"`
	StartTime time.Time        `yaml:"startTime"`
	EndTime   time.Time        `yaml:"endTime"`
	Artifacts []ArtifactRecord `yaml:"artifacts"`
}

// NewManifest creates an empty manifest with a fresh run ID.
func NewManifest() *Manifest {
	return &Manifest{
		RunID:     uuid.NewString(),
		Artifacts: make([]ArtifactRecord, 0),
	}
}

// Start stamps the tool version and the run start time.
func (m *Manifest) Start(version string) {
	m.Version = version
	m.StartTime = time.Now().UTC()
}

// Finish stamps the run end time.
func (m *Manifest) Finish() {
	m.EndTime = time.Now().UTC()
}

// Record appends the outcome of one collection attempt. A nil err marks the
// artifact as collected.
func (m *Manifest) Record(step, name string, err error) {
	rec := ArtifactRecord{
		Name:      name,
		Step:      step,
		Collected: err == nil,
	}
	if err != nil {
		rec.Error = err.Error()
	}
	m.Artifacts = append(m.Artifacts, rec)
}

// Write serializes the manifest as YAML into dir.
func (m *Manifest) Write(dir string) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	path := filepath.Join(dir, ManifestFileName)
	if err := os.WriteFile(path, data, fileMode); err != nil {
		return fmt.Errorf("failed to write manifest %s: %w", path, err)
	}
	return nil
}
