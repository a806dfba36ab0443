package ml

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"neo-guard/internal/features"
)

const artifactSchemaVersion = 1

// Artifact is the single serialized blob persisted between training and
// serving: the fitted model plus the metadata needed to audit it.
type Artifact struct {
	SchemaVersion int           `json:"schema_version"`
	Version       string        `json:"version"`
	TrainedAt     time.Time     `json:"trained_at"`
	TrainingRows  int           `json:"training_rows"`
	CVRecall      float64       `json:"cv_recall"`
	Metrics       ModelMetrics  `json:"metrics"`
	Importance    []FeatureGain `json:"importance"`
	Model         *Model        `json:"model"`
}

// Save writes the artifact atomically: marshal, write to a temp file in the
// target directory, fsync, rename. A reader either sees the previous
// complete artifact or the new one, never a partial write.
func Save(a *Artifact, path string) error {
	a.SchemaVersion = artifactSchemaVersion
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal artifact: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".neo_classifier-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write artifact: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close artifact: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return fmt.Errorf("chmod artifact: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("publish artifact: %w", err)
	}
	return nil
}

// Load reads a previously saved artifact. Absence is ErrModelNotFound; a
// corrupt or truncated file is a decode error. Artifacts whose feature
// schema or positive class disagree with the current deriver are rejected,
// so a stale model can never score skewed vectors.
func Load(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrModelNotFound, path)
		}
		return nil, fmt.Errorf("read artifact: %w", err)
	}

	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decode artifact %s: %w", path, err)
	}
	if a.Model == nil || len(a.Model.Trees) == 0 {
		return nil, fmt.Errorf("artifact %s holds no fitted model", path)
	}
	if !slices.Equal(a.Model.FeatureNames, features.Names()) {
		return nil, fmt.Errorf("artifact %s feature schema %v does not match deriver %v",
			path, a.Model.FeatureNames, features.Names())
	}
	if a.Model.PositiveClass != features.PositiveClass {
		return nil, fmt.Errorf("artifact %s positive class %q, expected %q",
			path, a.Model.PositiveClass, features.PositiveClass)
	}
	if err := validateTrees(a.Model); err != nil {
		return nil, fmt.Errorf("artifact %s: %w", path, err)
	}
	return &a, nil
}

// validateTrees checks the structural integrity of the ensemble so a
// corrupt-but-decodable artifact is rejected here instead of panicking
// inside tree traversal at serve time.
func validateTrees(m *Model) error {
	for ti, tree := range m.Trees {
		if len(tree.Nodes) == 0 {
			return fmt.Errorf("tree %d has no nodes", ti)
		}
		for ni, n := range tree.Nodes {
			if n.Leaf {
				continue
			}
			if n.Feature < 0 || n.Feature >= len(m.FeatureNames) {
				return fmt.Errorf("tree %d node %d routes on unknown feature %d", ti, ni, n.Feature)
			}
			if n.Left < 0 || n.Left >= len(tree.Nodes) || n.Right < 0 || n.Right >= len(tree.Nodes) {
				return fmt.Errorf("tree %d node %d child index out of range", ti, ni)
			}
		}
	}
	return nil
}
