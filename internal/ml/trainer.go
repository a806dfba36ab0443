package ml

import (
	"fmt"
	"math/rand"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"neo-guard/internal/features"
)

// Grid spans the hyperparameter search space. Candidates are enumerated in
// a fixed nested order so selection ties resolve deterministically.
type Grid struct {
	NEstimators  []int     `yaml:"nEstimators" json:"n_estimators"`
	MaxDepth     []int     `yaml:"maxDepth" json:"max_depth"`
	LearningRate []float64 `yaml:"learningRate" json:"learning_rate"`
	Subsample    []float64 `yaml:"subsample" json:"subsample"`
}

func (g Grid) candidates() []HyperParams {
	var out []HyperParams
	for _, n := range g.NEstimators {
		for _, d := range g.MaxDepth {
			for _, lr := range g.LearningRate {
				for _, sub := range g.Subsample {
					out = append(out, HyperParams{
						NEstimators:  n,
						MaxDepth:     d,
						LearningRate: lr,
						Subsample:    sub,
					})
				}
			}
		}
	}
	return out
}

// TrainConfig controls the training procedure. Zero values are filled from
// DefaultTrainConfig by the config layer.
type TrainConfig struct {
	Seed           int64
	TestFraction   float64
	CVFolds        int
	PosWeightBoost float64
	SMOTENeighbors int
	TargetRatio    float64
	Lambda         float64
	MinChildWeight float64
	Workers        int
	Grid           Grid
}

// DefaultTrainConfig mirrors the production training recipe: stratified
// 80/20 split at seed 42, 3-fold CV, positive-class weight 1.5x the global
// imbalance ratio, SMOTE to parity with 5 neighbors.
func DefaultTrainConfig() TrainConfig {
	return TrainConfig{
		Seed:           42,
		TestFraction:   0.2,
		CVFolds:        3,
		PosWeightBoost: 1.5,
		SMOTENeighbors: 5,
		TargetRatio:    1.0,
		Lambda:         1.0,
		MinChildWeight: 1.0,
		Workers:        runtime.NumCPU(),
		Grid: Grid{
			NEstimators:  []int{500},
			MaxDepth:     []int{4, 6},
			LearningRate: []float64{0.01, 0.05},
			Subsample:    []float64{0.9},
		},
	}
}

// Report summarizes one training run for logging and the version ledger.
type Report struct {
	BestParams     HyperParams
	CVRecall       float64
	Metrics        ModelMetrics
	Samples        int
	Positives      int
	Negatives      int
	ImbalanceRatio float64
	Elapsed        time.Duration
}

// Train fits the full pipeline: derive features, stratified train/test
// split, recall-scored grid search under k-fold cross-validation with
// per-fold oversampling, refit of the best candidate, held-out evaluation.
// Fails fast on empty or single-class data; no partial model is produced.
func Train(records []features.LabeledRecord, cfg TrainConfig) (*Model, *Report, error) {
	start := time.Now()
	if len(records) == 0 {
		return nil, nil, ErrNoTrainingData
	}

	x := make([][]float64, len(records))
	y := make([]int, len(records))
	pos := 0
	for i, rec := range records {
		x[i] = features.Derive(rec.RawObservation).Values()
		if rec.IsHazardous {
			y[i] = 1
			pos++
		}
	}
	neg := len(records) - pos
	if pos == 0 || neg == 0 {
		return nil, nil, fmt.Errorf("%w: %d hazardous, %d safe", ErrSingleClass, pos, neg)
	}

	candidates := cfg.Grid.candidates()
	if len(candidates) == 0 {
		return nil, nil, fmt.Errorf("hyperparameter grid is empty")
	}

	ratio := float64(neg) / float64(pos)
	spw := cfg.PosWeightBoost * ratio
	log.Info().
		Int("samples", len(records)).
		Int("hazardous", pos).
		Int("safe", neg).
		Float64("imbalance_ratio", ratio).
		Int("candidates", len(candidates)).
		Msg("starting grid search")

	rng := rand.New(rand.NewSource(cfg.Seed))
	trainIdx, testIdx := stratifiedSplit(y, cfg.TestFraction, rng)

	folds := stratifiedFolds(y, trainIdx, cfg.CVFolds, rng)

	scores := make([]float64, len(candidates))
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	// Candidate fits are data-disjoint; each worker writes only its own
	// score slot. Per-cell seeds keep results independent of worker count.
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ci := range jobs {
				scores[ci] = crossValidateRecall(x, y, folds, candidates[ci], spw, cfg, ci)
			}
		}()
	}
	for ci := range candidates {
		jobs <- ci
	}
	close(jobs)
	wg.Wait()

	best := 0
	for ci := range candidates {
		if scores[ci] > scores[best] {
			best = ci
		}
	}
	log.Info().
		Interface("params", candidates[best]).
		Float64("cv_recall", scores[best]).
		Msg("best candidate selected")

	// Refit on the full training split with the winning combination.
	trX, trY := gather(x, y, trainIdx)
	trX, trY = Oversample(trX, trY, cfg.SMOTENeighbors, cfg.TargetRatio, rand.New(rand.NewSource(cfg.Seed)))
	model := fitModel(trX, trY, fitConfig{
		HyperParams:    candidates[best],
		ScalePosWeight: spw,
		Lambda:         cfg.Lambda,
		MinChildWeight: cfg.MinChildWeight,
		Seed:           cfg.Seed,
	})

	heldOut := make([]features.LabeledRecord, len(testIdx))
	for i, idx := range testIdx {
		heldOut[i] = records[idx]
	}
	metrics := Evaluate(model, heldOut)

	report := &Report{
		BestParams:     candidates[best],
		CVRecall:       scores[best],
		Metrics:        metrics,
		Samples:        len(records),
		Positives:      pos,
		Negatives:      neg,
		ImbalanceRatio: ratio,
		Elapsed:        time.Since(start),
	}
	return model, report, nil
}

// crossValidateRecall scores one candidate: for each fold, oversample the
// fold's training portion only, fit, and measure positive-class recall on
// the untouched validation portion.
func crossValidateRecall(x [][]float64, y []int, folds [][]int, hp HyperParams, spw float64, cfg TrainConfig, ci int) float64 {
	var sum float64
	for f := range folds {
		var trainRows, valRows []int
		for g, fold := range folds {
			if g == f {
				valRows = append(valRows, fold...)
			} else {
				trainRows = append(trainRows, fold...)
			}
		}

		seed := cfg.Seed + int64(ci)*srStride + int64(f)
		fx, fy := gather(x, y, trainRows)
		fx, fy = Oversample(fx, fy, cfg.SMOTENeighbors, cfg.TargetRatio, rand.New(rand.NewSource(seed)))
		m := fitModel(fx, fy, fitConfig{
			HyperParams:    hp,
			ScalePosWeight: spw,
			Lambda:         cfg.Lambda,
			MinChildWeight: cfg.MinChildWeight,
			Seed:           seed,
		})

		var tp, fn int
		for _, r := range valRows {
			if y[r] != 1 {
				continue
			}
			if m.Classify(x[r]) {
				tp++
			} else {
				fn++
			}
		}
		if tp+fn > 0 {
			sum += float64(tp) / float64(tp+fn)
		}
	}
	return sum / float64(len(folds))
}

// srStride spaces per-candidate seeds so candidate and fold seeds never
// collide for any practical grid size.
const srStride = 1_000_003

func gather(x [][]float64, y []int, rows []int) ([][]float64, []int) {
	gx := make([][]float64, len(rows))
	gy := make([]int, len(rows))
	for i, r := range rows {
		gx[i] = x[r]
		gy[i] = y[r]
	}
	return gx, gy
}

// stratifiedSplit shuffles each class independently and carves off frac of
// each for the test side, preserving the label distribution.
func stratifiedSplit(y []int, frac float64, rng *rand.Rand) (train, test []int) {
	byClass := [2][]int{}
	for i, l := range y {
		byClass[l] = append(byClass[l], i)
	}
	for _, class := range byClass {
		rng.Shuffle(len(class), func(i, j int) { class[i], class[j] = class[j], class[i] })
		cut := int(frac * float64(len(class)))
		test = append(test, class[:cut]...)
		train = append(train, class[cut:]...)
	}
	return train, test
}

// stratifiedFolds deals the training rows of each class round-robin into k
// folds after a shuffle, so every fold keeps roughly the global class mix.
func stratifiedFolds(y []int, trainIdx []int, k int, rng *rand.Rand) [][]int {
	if k < 2 {
		k = 2
	}
	byClass := [2][]int{}
	for _, idx := range trainIdx {
		byClass[y[idx]] = append(byClass[y[idx]], idx)
	}
	folds := make([][]int, k)
	for _, class := range byClass {
		rng.Shuffle(len(class), func(i, j int) { class[i], class[j] = class[j], class[i] })
		for i, idx := range class {
			folds[i%k] = append(folds[i%k], idx)
		}
	}
	return folds
}
