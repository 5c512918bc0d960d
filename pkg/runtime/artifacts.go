package runtime

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/axionsec/axion/pkg/artifact"
)

// ArtifactStore holds the run's labelled artifacts. Labels are
// last-write-wins; a step that reuses a label replaces the earlier
// artifact without complaint.
type ArtifactStore struct {
	artifacts map[string]artifact.Stored
	order     []string
}

func NewArtifactStore() *ArtifactStore {
	return &ArtifactStore{artifacts: make(map[string]artifact.Stored)}
}

// Put registers an artifact under its label, replacing any previous
// holder of the same label.
func (s *ArtifactStore) Put(a artifact.Stored) {
	if _, exists := s.artifacts[a.Name]; !exists {
		s.order = append(s.order, a.Name)
	}
	s.artifacts[a.Name] = a
}

// Get returns the artifact registered under label.
func (s *ArtifactStore) Get(label string) (artifact.Stored, bool) {
	a, ok := s.artifacts[label]
	return a, ok
}

// All returns the stored artifacts in first-registration order.
func (s *ArtifactStore) All() map[string]artifact.Stored {
	out := make(map[string]artifact.Stored, len(s.artifacts))
	for label, a := range s.artifacts {
		out[label] = a
	}
	return out
}

// Labels returns registration order, useful for stable rendering.
func (s *ArtifactStore) Labels() []string {
	return append([]string(nil), s.order...)
}

// sanitizeLabel maps an artifact label to a filesystem-safe base name.
// Anything outside [A-Za-z0-9._-] becomes an underscore.
func sanitizeLabel(label string) string {
	out := []byte(label)
	for i, c := range out {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '.', c == '_', c == '-':
		default:
			out[i] = '_'
		}
	}
	return string(out)
}

// persist writes an artifact's masked payload to <dir>/<label>.json.
// Persistence failures are logged and swallowed; the in-memory store is
// the source of truth and a disk error never fails the producing step.
func (s *ArtifactStore) persist(dir string, a artifact.Stored, mask func(string) string) string {
	if dir == "" {
		return ""
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logrus.WithError(err).WithField("artifact", a.Name).Warn("could not create artifacts directory")
		return ""
	}
	data, err := json.MarshalIndent(a.Data, "", "  ")
	if err != nil {
		logrus.WithError(err).WithField("artifact", a.Name).Warn("could not encode artifact")
		return ""
	}
	if mask != nil {
		data = []byte(mask(string(data)))
	}
	path := filepath.Join(dir, fmt.Sprintf("%s.json", sanitizeLabel(a.Name)))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		logrus.WithError(err).WithField("artifact", a.Name).Warn("could not persist artifact")
		return ""
	}
	return path
}
