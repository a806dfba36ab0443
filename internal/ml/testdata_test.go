package ml

import (
	"math/rand"

	"neo-guard/internal/features"
)

// syntheticRecords builds a strongly separable, imbalanced data set:
// hazardous objects are large, fast and close; safe objects are small,
// slow and distant.
func syntheticRecords(safe, hazardous int, seed int64) []features.LabeledRecord {
	rng := rand.New(rand.NewSource(seed))
	out := make([]features.LabeledRecord, 0, safe+hazardous)

	for i := 0; i < safe; i++ {
		out = append(out, features.LabeledRecord{
			RawObservation: features.RawObservation{
				EstDiameterMin:    0.01 + 0.15*rng.Float64(),
				RelativeVelocity:  20000 + 40000*rng.Float64(),
				MissDistance:      1e6 + 6e7*rng.Float64(),
				AbsoluteMagnitude: 24 + 4*rng.Float64(),
			},
			IsHazardous: false,
		})
	}
	for i := 0; i < hazardous; i++ {
		out = append(out, features.LabeledRecord{
			RawObservation: features.RawObservation{
				EstDiameterMin:    0.5 + 1.0*rng.Float64(),
				RelativeVelocity:  80000 + 40000*rng.Float64(),
				MissDistance:      10000 + 90000*rng.Float64(),
				AbsoluteMagnitude: 16 + 3*rng.Float64(),
			},
			IsHazardous: true,
		})
	}

	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

func newTestRNG(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// smallGrid keeps test-time grid searches cheap.
func smallGrid() Grid {
	return Grid{
		NEstimators:  []int{25},
		MaxDepth:     []int{3},
		LearningRate: []float64{0.3},
		Subsample:    []float64{1.0},
	}
}

func testTrainConfig() TrainConfig {
	cfg := DefaultTrainConfig()
	cfg.Grid = smallGrid()
	cfg.Workers = 2
	return cfg
}

// stumpModel builds a hand-wired single-tree model splitting on
// est_diameter_min at 0.5: small objects score ~0.12, large ~0.88.
func stumpModel() *Model {
	return &Model{
		FeatureNames:  features.Names(),
		PositiveClass: features.PositiveClass,
		Threshold:     0.5,
		Trees: []Tree{{Nodes: []TreeNode{
			{Feature: 0, Threshold: 0.5, Left: 1, Right: 2},
			{Leaf: true, Value: -2},
			{Leaf: true, Value: 2},
		}}},
		Gain: map[string]float64{"est_diameter_min": 1},
	}
}
