// Package ml implements the hazard classification pipeline: class
// rebalancing, gradient-boosted tree training with hyperparameter search,
// evaluation, artifact persistence and the scoring service.
package ml

import (
	"math"
	"math/rand"
	"sort"

	"neo-guard/internal/features"
)

// HyperParams is one candidate of the hyperparameter grid.
type HyperParams struct {
	NEstimators  int     `json:"n_estimators"`
	MaxDepth     int     `json:"max_depth"`
	LearningRate float64 `json:"learning_rate"`
	Subsample    float64 `json:"subsample"`
}

// Model is a fitted gradient-boosted binary classifier. Immutable after
// fit; the scoring service shares a single instance across all requests.
type Model struct {
	FeatureNames   []string           `json:"feature_names"`
	PositiveClass  string             `json:"positive_class"`
	Threshold      float64            `json:"threshold"`
	BaseScore      float64            `json:"base_score"`
	ScalePosWeight float64            `json:"scale_pos_weight"`
	Params         HyperParams        `json:"params"`
	Trees          []Tree             `json:"trees"`
	Gain           map[string]float64 `json:"feature_gain"`
}

func (m *Model) raw(x []float64) float64 {
	s := m.BaseScore
	for _, t := range m.Trees {
		s += t.predict(x)
	}
	return s
}

// Probability returns the positive-class probability for a feature vector
// in the canonical order given by features.Names.
func (m *Model) Probability(x []float64) float64 {
	return sigmoid(m.raw(x))
}

// Classify applies the model's fixed decision threshold. The threshold is
// baked into the fitted model, not a request-time parameter.
func (m *Model) Classify(x []float64) bool {
	return m.Probability(x) >= m.Threshold
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

type fitConfig struct {
	HyperParams
	ScalePosWeight float64
	Lambda         float64
	MinChildWeight float64
	Seed           int64
}

// fitModel runs the boosting loop: logistic-loss gradients with the
// positive class up-weighted by ScalePosWeight, row subsampling per tree,
// and learning-rate-scaled leaf contributions.
func fitModel(x [][]float64, y []int, cfg fitConfig) *Model {
	n := len(x)
	raw := make([]float64, n)
	grad := make([]float64, n)
	hess := make([]float64, n)
	rng := rand.New(rand.NewSource(cfg.Seed))

	m := &Model{
		FeatureNames:   features.Names(),
		PositiveClass:  features.PositiveClass,
		Threshold:      0.5,
		ScalePosWeight: cfg.ScalePosWeight,
		Params:         cfg.HyperParams,
		Gain:           make(map[string]float64),
	}

	b := &treeBuilder{
		x:              x,
		grad:           grad,
		hess:           hess,
		maxDepth:       cfg.MaxDepth,
		lambda:         cfg.Lambda,
		minChildWeight: cfg.MinChildWeight,
		gain:           make([]float64, len(m.FeatureNames)),
	}

	for round := 0; round < cfg.NEstimators; round++ {
		for i := 0; i < n; i++ {
			p := sigmoid(raw[i])
			w := 1.0
			if y[i] == 1 {
				w = cfg.ScalePosWeight
			}
			grad[i] = w * (p - float64(y[i]))
			h := w * p * (1 - p)
			if h < 1e-16 {
				h = 1e-16
			}
			hess[i] = h
		}

		tree := b.build(subsampleRows(n, cfg.Subsample, rng))
		for j := range tree.Nodes {
			if tree.Nodes[j].Leaf {
				tree.Nodes[j].Value *= cfg.LearningRate
			}
		}
		for i := 0; i < n; i++ {
			raw[i] += tree.predict(x[i])
		}
		m.Trees = append(m.Trees, tree)
	}

	for i, name := range m.FeatureNames {
		if b.gain[i] > 0 {
			m.Gain[name] = b.gain[i]
		}
	}
	return m
}

// subsampleRows picks a sorted fraction of row indices without replacement.
func subsampleRows(n int, frac float64, rng *rand.Rand) []int {
	if frac >= 1 || frac <= 0 {
		rows := make([]int, n)
		for i := range rows {
			rows[i] = i
		}
		return rows
	}
	k := int(math.Round(frac * float64(n)))
	if k < 1 {
		k = 1
	}
	rows := rng.Perm(n)[:k]
	sort.Ints(rows)
	return rows
}
