package ml

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"neo-guard/internal/features"
)

// MetricsSink receives scoring telemetry. A nil sink disables tracking.
type MetricsSink interface {
	PredictionsInc()
	FailuresInc()
	ValidationErrorsInc()
	UnreadyInc()
	LatencyObserve(float64)
	ScoreObserve(float64)
	ModelLoadedSet(bool)
	ModelAgeSet(float64)
}

// Prediction is the scoring result for one observation.
type Prediction struct {
	IsHazardous       bool    `json:"is_hazardous"`
	HazardProbability float64 `json:"hazard_probability"`
}

// Predictor serves a loaded model. The artifact handle is assigned once at
// construction and never mutated afterwards, so Score needs no locking and
// is safe for unbounded concurrent callers; replacing the model means
// constructing a new Predictor.
type Predictor struct {
	artifact *Artifact
	metrics  MetricsSink
}

// NewPredictor loads the artifact at path. A missing or corrupt artifact
// yields an unready predictor: the service starts, reports unready, and
// refuses predictions instead of fabricating them.
func NewPredictor(path string, sink MetricsSink) *Predictor {
	p := &Predictor{metrics: sink}

	a, err := Load(path)
	if err != nil {
		log.Warn().Err(err).Str("model_path", path).Msg("model not loaded, serving unready")
		if sink != nil {
			sink.ModelLoadedSet(false)
		}
		return p
	}

	p.artifact = a
	log.Info().
		Str("model_path", path).
		Str("version", a.Version).
		Time("trained_at", a.TrainedAt).
		Int("trees", len(a.Model.Trees)).
		Float64("cv_recall", a.CVRecall).
		Msg("model loaded")
	if sink != nil {
		sink.ModelLoadedSet(true)
		if !a.TrainedAt.IsZero() {
			sink.ModelAgeSet(time.Since(a.TrainedAt).Seconds())
		}
	}
	return p
}

// Ready reports whether a model is loaded.
func (p *Predictor) Ready() bool {
	return p != nil && p.artifact != nil
}

// Artifact returns the loaded artifact, nil when unready.
func (p *Predictor) Artifact() *Artifact {
	return p.artifact
}

// Score validates the observation, derives its features through the shared
// deriver and classifies them. Fails closed: no loaded model or invalid
// input never yields a prediction.
func (p *Predictor) Score(raw features.RawObservation) (Prediction, error) {
	start := time.Now()

	if !p.Ready() {
		if p.metrics != nil {
			p.metrics.UnreadyInc()
		}
		return Prediction{}, ErrModelUnavailable
	}
	if err := raw.Validate(); err != nil {
		if p.metrics != nil {
			p.metrics.ValidationErrorsInc()
		}
		return Prediction{}, err
	}

	m := p.artifact.Model
	prob := m.Probability(features.Derive(raw).Values())
	if math.IsNaN(prob) || prob < 0 || prob > 1 {
		if p.metrics != nil {
			p.metrics.FailuresInc()
		}
		return Prediction{}, fmt.Errorf("model produced invalid probability %v", prob)
	}

	if p.metrics != nil {
		p.metrics.PredictionsInc()
		p.metrics.ScoreObserve(prob)
		p.metrics.LatencyObserve(time.Since(start).Seconds())
	}
	return Prediction{
		IsHazardous:       prob >= m.Threshold,
		HazardProbability: prob,
	}, nil
}
