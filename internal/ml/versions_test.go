package ml

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addVersions(t *testing.T, mm *ModelManager, versions ...string) {
	t.Helper()
	for _, v := range versions {
		path := filepath.Join(mm.modelsDir, v+".json")
		require.NoError(t, mm.AddVersion(path, v, ModelMetrics{Recall: 0.9}))
		// Ledger ordering is by creation time.
		time.Sleep(2 * time.Millisecond)
	}
}

func TestModelManagerAddAndActivate(t *testing.T) {
	dir := t.TempDir()
	mm, err := NewModelManager(dir)
	require.NoError(t, err)
	assert.Nil(t, mm.CurrentVersion())

	addVersions(t, mm, "v1", "v2")

	versions := mm.ListVersions()
	require.Len(t, versions, 2)
	assert.Equal(t, "v2", versions[0].Version, "newest first")
	assert.Equal(t, "v1", versions[1].Version)

	require.NoError(t, mm.ActivateVersion("v2"))
	require.NotNil(t, mm.CurrentVersion())
	assert.Equal(t, "v2", mm.CurrentVersion().Version)
	assert.True(t, mm.CurrentVersion().IsActive)
}

func TestModelManagerActivateUnknown(t *testing.T) {
	mm, err := NewModelManager(t.TempDir())
	require.NoError(t, err)

	addVersions(t, mm, "v1")
	assert.Error(t, mm.ActivateVersion("missing"))
}

func TestModelManagerRollback(t *testing.T) {
	mm, err := NewModelManager(t.TempDir())
	require.NoError(t, err)

	addVersions(t, mm, "v1", "v2", "v3")
	require.NoError(t, mm.ActivateVersion("v3"))

	require.NoError(t, mm.Rollback())
	assert.Equal(t, "v2", mm.CurrentVersion().Version)

	require.NoError(t, mm.Rollback())
	assert.Equal(t, "v1", mm.CurrentVersion().Version)

	// Oldest version has nothing to roll back to.
	assert.Error(t, mm.Rollback())
}

func TestModelManagerRollbackRequiresHistory(t *testing.T) {
	mm, err := NewModelManager(t.TempDir())
	require.NoError(t, err)

	addVersions(t, mm, "only")
	require.NoError(t, mm.ActivateVersion("only"))
	assert.Error(t, mm.Rollback())
}

func TestRollbackRestoresPreviousArtifact(t *testing.T) {
	dir := t.TempDir()
	mm, err := NewModelManager(dir)
	require.NoError(t, err)

	for _, v := range []string{"v1", "v2"} {
		a := testArtifact()
		a.Version = v
		path := filepath.Join(dir, "neo_classifier-"+v+".json")
		require.NoError(t, Save(a, path))
		require.NoError(t, mm.AddVersion(path, v, a.Metrics))
		require.NoError(t, mm.ActivateVersion(v))
		time.Sleep(2 * time.Millisecond)
	}

	require.NoError(t, mm.Rollback())

	// The reactivated entry must point at a loadable artifact of its own
	// version, so the serving copy can be republished from it.
	current := mm.CurrentVersion()
	require.NotNil(t, current)
	restored, err := Load(current.Path)
	require.NoError(t, err)
	assert.Equal(t, "v1", restored.Version)
}

func TestModelManagerLedgerPersists(t *testing.T) {
	dir := t.TempDir()

	mm, err := NewModelManager(dir)
	require.NoError(t, err)
	addVersions(t, mm, "v1", "v2")
	require.NoError(t, mm.ActivateVersion("v1"))

	reopened, err := NewModelManager(dir)
	require.NoError(t, err)
	require.Len(t, reopened.ListVersions(), 2)
	require.NotNil(t, reopened.CurrentVersion())
	assert.Equal(t, "v1", reopened.CurrentVersion().Version)
	assert.InDelta(t, 0.9, reopened.CurrentVersion().Metrics.Recall, 1e-12)
}
