package ml

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
)

// ModelVersion records one training run in the version ledger.
type ModelVersion struct {
	Version   string       `json:"version"`
	Path      string       `json:"path"`
	CreatedAt time.Time    `json:"created_at"`
	Metrics   ModelMetrics `json:"metrics"`
	IsActive  bool         `json:"is_active"`
}

// ModelManager keeps a JSON ledger of trained model versions next to the
// artifacts, so a bad retrain can be rolled back to the previous model.
type ModelManager struct {
	modelsDir    string
	versionsFile string
	versions     []ModelVersion
	currentModel *ModelVersion
}

// NewModelManager opens (or starts) the version ledger in modelsDir.
func NewModelManager(modelsDir string) (*ModelManager, error) {
	mm := &ModelManager{
		modelsDir:    modelsDir,
		versionsFile: filepath.Join(modelsDir, "model_versions.json"),
		versions:     make([]ModelVersion, 0),
	}
	if err := mm.loadVersions(); err != nil {
		log.Warn().Err(err).Msg("failed to load model versions, starting fresh")
	}
	return mm, nil
}

// AddVersion appends a newly trained model to the ledger.
func (mm *ModelManager) AddVersion(modelPath, version string, metrics ModelMetrics) error {
	mm.versions = append(mm.versions, ModelVersion{
		Version:   version,
		Path:      modelPath,
		CreatedAt: time.Now().UTC(),
		Metrics:   metrics,
	})
	sort.Slice(mm.versions, func(i, j int) bool {
		return mm.versions[i].CreatedAt.After(mm.versions[j].CreatedAt)
	})
	return mm.saveVersions()
}

// ActivateVersion marks one version as the authoritative model.
func (mm *ModelManager) ActivateVersion(version string) error {
	found := false
	for i := range mm.versions {
		if mm.versions[i].Version == version {
			mm.versions[i].IsActive = true
			mm.currentModel = &mm.versions[i]
			found = true
		} else {
			mm.versions[i].IsActive = false
		}
	}
	if !found {
		return fmt.Errorf("version %s not found", version)
	}
	return mm.saveVersions()
}

// Rollback reactivates the version preceding the currently active one.
func (mm *ModelManager) Rollback() error {
	if len(mm.versions) < 2 {
		return fmt.Errorf("no previous version available for rollback")
	}

	currentIdx := -1
	for i, v := range mm.versions {
		if v.IsActive {
			currentIdx = i
			break
		}
	}
	if currentIdx == -1 {
		return fmt.Errorf("no active version found")
	}
	if currentIdx+1 < len(mm.versions) {
		return mm.ActivateVersion(mm.versions[currentIdx+1].Version)
	}
	return fmt.Errorf("no previous version available")
}

// CurrentVersion returns the active ledger entry, nil when none is active.
func (mm *ModelManager) CurrentVersion() *ModelVersion {
	return mm.currentModel
}

// ListVersions returns all recorded versions, newest first.
func (mm *ModelManager) ListVersions() []ModelVersion {
	return mm.versions
}

func (mm *ModelManager) loadVersions() error {
	data, err := os.ReadFile(mm.versionsFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := json.Unmarshal(data, &mm.versions); err != nil {
		return err
	}
	for i := range mm.versions {
		if mm.versions[i].IsActive {
			mm.currentModel = &mm.versions[i]
			break
		}
	}
	return nil
}

func (mm *ModelManager) saveVersions() error {
	data, err := json.MarshalIndent(mm.versions, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(mm.versionsFile, data, 0o600)
}
