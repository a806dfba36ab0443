package ml

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neo-guard/internal/features"
)

func fitOnSynthetic(t *testing.T, seed int64) (*Model, []features.LabeledRecord) {
	t.Helper()
	records := syntheticRecords(120, 40, seed)
	x := make([][]float64, len(records))
	y := make([]int, len(records))
	for i, rec := range records {
		x[i] = features.Derive(rec.RawObservation).Values()
		if rec.IsHazardous {
			y[i] = 1
		}
	}
	m := fitModel(x, y, fitConfig{
		HyperParams:    HyperParams{NEstimators: 30, MaxDepth: 3, LearningRate: 0.3, Subsample: 0.9},
		ScalePosWeight: 3.0,
		Lambda:         1.0,
		MinChildWeight: 1.0,
		Seed:           seed,
	})
	return m, records
}

func TestFitModelLearnsSeparableData(t *testing.T) {
	m, records := fitOnSynthetic(t, 5)

	correct := 0
	for _, rec := range records {
		x := features.Derive(rec.RawObservation).Values()
		prob := m.Probability(x)
		require.GreaterOrEqual(t, prob, 0.0)
		require.LessOrEqual(t, prob, 1.0)
		assert.Equal(t, prob >= m.Threshold, m.Classify(x))
		if m.Classify(x) == rec.IsHazardous {
			correct++
		}
	}
	assert.Greater(t, float64(correct)/float64(len(records)), 0.95,
		"boosted trees should separate the synthetic classes")
}

func TestFitModelMetadata(t *testing.T) {
	m, _ := fitOnSynthetic(t, 6)

	assert.Equal(t, features.Names(), m.FeatureNames)
	assert.Equal(t, features.PositiveClass, m.PositiveClass)
	assert.Equal(t, 0.5, m.Threshold)
	assert.Len(t, m.Trees, 30)
	assert.NotEmpty(t, m.Gain, "split gain should be accumulated during fitting")
}

func TestFitModelDeterministic(t *testing.T) {
	a, records := fitOnSynthetic(t, 7)
	b, _ := fitOnSynthetic(t, 7)

	for _, rec := range records[:20] {
		x := features.Derive(rec.RawObservation).Values()
		assert.Equal(t, a.Probability(x), b.Probability(x))
	}
}

func TestSubsampleRows(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	all := subsampleRows(10, 1.0, rng)
	assert.Len(t, all, 10)

	half := subsampleRows(10, 0.5, rng)
	require.Len(t, half, 5)
	seen := map[int]bool{}
	for i, r := range half {
		assert.False(t, seen[r], "row %d sampled twice", r)
		seen[r] = true
		if i > 0 {
			assert.Greater(t, r, half[i-1], "sampled rows should be sorted")
		}
	}
}

func TestTreePredictRouting(t *testing.T) {
	m := stumpModel()
	small := make([]float64, len(features.Names()))
	small[0] = 0.1
	large := make([]float64, len(features.Names()))
	large[0] = 1.0

	assert.Less(t, m.Probability(small), 0.5)
	assert.Greater(t, m.Probability(large), 0.5)
	assert.False(t, m.Classify(small))
	assert.True(t, m.Classify(large))
}
