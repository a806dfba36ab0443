package ml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neo-guard/internal/features"
)

func TestTrainEmptySet(t *testing.T) {
	_, _, err := Train(nil, testTrainConfig())
	require.ErrorIs(t, err, ErrNoTrainingData)
}

func TestTrainSingleClass(t *testing.T) {
	records := syntheticRecords(50, 0, 1)
	_, _, err := Train(records, testTrainConfig())
	require.ErrorIs(t, err, ErrSingleClass)

	records = syntheticRecords(0, 50, 1)
	_, _, err = Train(records, testTrainConfig())
	require.ErrorIs(t, err, ErrSingleClass)
}

func TestTrainEmptyGrid(t *testing.T) {
	cfg := testTrainConfig()
	cfg.Grid = Grid{}
	_, _, err := Train(syntheticRecords(50, 10, 1), cfg)
	require.Error(t, err)
}

func TestTrainOnImbalancedData(t *testing.T) {
	records := syntheticRecords(200, 20, 42)

	model, report, err := Train(records, testTrainConfig())
	require.NoError(t, err)
	require.NotNil(t, model)
	require.NotNil(t, report)

	assert.Equal(t, 220, report.Samples)
	assert.Equal(t, 20, report.Positives)
	assert.Equal(t, 200, report.Negatives)
	assert.InDelta(t, 10.0, report.ImbalanceRatio, 1e-9)
	assert.Equal(t, smallGrid().NEstimators[0], report.BestParams.NEstimators)

	// Recall is the selection metric; on cleanly separable data the
	// held-out hazardous objects should essentially all be caught.
	assert.GreaterOrEqual(t, report.Metrics.Recall, 0.75)
	assert.GreaterOrEqual(t, report.CVRecall, 0.75)
	assert.Equal(t, report.Metrics.Samples,
		report.Metrics.TruePositives+report.Metrics.FalsePositives+
			report.Metrics.TrueNegatives+report.Metrics.FalseNegatives)
}

func TestTrainProbabilityRange(t *testing.T) {
	records := syntheticRecords(100, 15, 3)
	model, _, err := Train(records, testTrainConfig())
	require.NoError(t, err)

	for _, rec := range records {
		x := features.Derive(rec.RawObservation).Values()
		prob := model.Probability(x)
		require.GreaterOrEqual(t, prob, 0.0)
		require.LessOrEqual(t, prob, 1.0)
		require.Equal(t, prob >= model.Threshold, model.Classify(x))
	}
}

func TestTrainDeterministicAcrossWorkerCounts(t *testing.T) {
	records := syntheticRecords(100, 15, 8)

	cfgA := testTrainConfig()
	cfgA.Workers = 1
	cfgB := testTrainConfig()
	cfgB.Workers = 4

	a, ra, err := Train(records, cfgA)
	require.NoError(t, err)
	b, rb, err := Train(records, cfgB)
	require.NoError(t, err)

	assert.Equal(t, ra.BestParams, rb.BestParams)
	assert.Equal(t, ra.CVRecall, rb.CVRecall)
	for _, rec := range records[:25] {
		x := features.Derive(rec.RawObservation).Values()
		assert.Equal(t, a.Probability(x), b.Probability(x))
	}
}

func TestGridCandidatesOrder(t *testing.T) {
	g := Grid{
		NEstimators:  []int{100, 200},
		MaxDepth:     []int{4, 6},
		LearningRate: []float64{0.01},
		Subsample:    []float64{0.9},
	}
	cands := g.candidates()
	require.Len(t, cands, 4)
	assert.Equal(t, HyperParams{100, 4, 0.01, 0.9}, cands[0])
	assert.Equal(t, HyperParams{200, 6, 0.01, 0.9}, cands[3])
}

func TestStratifiedSplitPreservesClassBalance(t *testing.T) {
	records := syntheticRecords(80, 20, 4)
	y := make([]int, len(records))
	for i, rec := range records {
		if rec.IsHazardous {
			y[i] = 1
		}
	}

	train, test := stratifiedSplit(y, 0.2, newTestRNG(1))
	assert.Len(t, test, 20)
	assert.Len(t, train, 80)

	testPos := 0
	for _, idx := range test {
		testPos += y[idx]
	}
	assert.Equal(t, 4, testPos, "test split should hold 20%% of each class")

	seen := map[int]bool{}
	for _, idx := range append(append([]int{}, train...), test...) {
		assert.False(t, seen[idx], "row %d assigned twice", idx)
		seen[idx] = true
	}
	assert.Len(t, seen, len(y))
}

func TestStratifiedFoldsCoverTrainingRows(t *testing.T) {
	y := make([]int, 30)
	for i := 24; i < 30; i++ {
		y[i] = 1
	}
	trainIdx := make([]int, 30)
	for i := range trainIdx {
		trainIdx[i] = i
	}

	folds := stratifiedFolds(y, trainIdx, 3, newTestRNG(2))
	require.Len(t, folds, 3)

	seen := map[int]bool{}
	for _, fold := range folds {
		pos := 0
		for _, idx := range fold {
			seen[idx] = true
			pos += y[idx]
		}
		assert.Equal(t, 2, pos, "each fold should carry its share of positives")
	}
	assert.Len(t, seen, 30)
}
