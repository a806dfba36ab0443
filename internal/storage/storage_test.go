package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neo-guard/internal/features"
	"neo-guard/internal/neo"
)

func observation(id string, hazardous bool) neo.Observation {
	return neo.Observation{
		NeoID: id,
		LabeledRecord: features.LabeledRecord{
			RawObservation: features.RawObservation{
				EstDiameterMin:    0.37,
				RelativeVelocity:  108000,
				MissDistance:      31000,
				AbsoluteMagnitude: 19.7,
			},
			IsHazardous: hazardous,
		},
	}
}

func TestStoreRoundTrip(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.PutObservations([]neo.Observation{
		observation("2099942", true),
		observation("54016476", false),
	}))

	n, err := store.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	obs, err := store.Observations()
	require.NoError(t, err)
	require.Len(t, obs, 2)

	byID := map[string]neo.Observation{}
	for _, o := range obs {
		byID[o.NeoID] = o
	}
	assert.True(t, byID["2099942"].IsHazardous)
	assert.False(t, byID["54016476"].IsHazardous)
	assert.Equal(t, 0.37, byID["2099942"].EstDiameterMin)
}

func TestStoreUpsertByCatalogID(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.PutObservations([]neo.Observation{observation("2099942", false)}))
	require.NoError(t, store.PutObservations([]neo.Observation{observation("2099942", true)}))

	n, err := store.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n, "re-fetching the same object must refresh, not duplicate")

	obs, err := store.Observations()
	require.NoError(t, err)
	require.Len(t, obs, 1)
	assert.True(t, obs[0].IsHazardous)
}

func TestStoreEmpty(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	obs, err := store.Observations()
	require.NoError(t, err)
	assert.Empty(t, obs)

	n, err := store.Count()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStoreReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := New(dir)
	require.NoError(t, err)
	require.NoError(t, store.PutObservations([]neo.Observation{observation("1", true)}))
	require.NoError(t, store.Close())

	reopened, err := New(dir)
	require.NoError(t, err)
	defer reopened.Close()

	n, err := reopened.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
