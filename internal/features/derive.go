// Package features implements the feature derivation shared by the training
// pipeline and the scoring service. Both sides must call Derive here; the
// canonical feature order is fixed by Names and Values.
package features

import (
	"fmt"
	"math"
)

// Eps guards the ratio features when an object's recorded miss distance is
// zero, and dampens extreme values at near-zero distances.
const Eps = 1e-5

// PositiveClass is the label name of the class the pipeline optimizes
// recall for. Persisted in every model artifact so a retrained model cannot
// silently swap class indices.
const PositiveClass = "hazardous"

// RawObservation holds the four orbital measurements a caller must supply.
// All fields are required; validation rejects NaN/Inf and negative
// magnitudes for the physical quantities.
type RawObservation struct {
	EstDiameterMin    float64 `json:"est_diameter_min"`  // km
	RelativeVelocity  float64 `json:"relative_velocity"` // km/h
	MissDistance      float64 `json:"miss_distance"`     // km
	AbsoluteMagnitude float64 `json:"absolute_magnitude"`
}

// FeatureVector is a RawObservation plus the three derived interaction
// features the classifier is trained on.
type FeatureVector struct {
	RawObservation
	SizeDistRatio     float64 `json:"size_dist_ratio"`
	KineticProxy      float64 `json:"kinetic_proxy"`
	VelocityDistRatio float64 `json:"velocity_dist_ratio"`
}

// LabeledRecord is a training example: derived-feature inputs plus the
// ground-truth hazard label from the catalog.
type LabeledRecord struct {
	RawObservation
	IsHazardous bool `json:"is_hazardous"`
}

// ValidationError reports a malformed input field. It is caller error, not
// a system fault, and is never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid field %s: %s", e.Field, e.Reason)
}

// Validate checks the observation against the schema: every field finite,
// diameter/velocity/distance non-negative.
func (r RawObservation) Validate() error {
	checks := []struct {
		name   string
		value  float64
		nonNeg bool
	}{
		{"est_diameter_min", r.EstDiameterMin, true},
		{"relative_velocity", r.RelativeVelocity, true},
		{"miss_distance", r.MissDistance, true},
		{"absolute_magnitude", r.AbsoluteMagnitude, false},
	}
	for _, c := range checks {
		if math.IsNaN(c.value) {
			return &ValidationError{Field: c.name, Reason: "must be numeric, got NaN"}
		}
		if math.IsInf(c.value, 0) {
			return &ValidationError{Field: c.name, Reason: "must be finite"}
		}
		if c.nonNeg && c.value < 0 {
			return &ValidationError{Field: c.name, Reason: "must be non-negative"}
		}
	}
	return nil
}

// Derive maps a raw observation to the full feature vector. Pure and
// deterministic: the same input always yields bit-identical output, and the
// Eps guard keeps both ratios finite at miss distance zero.
func Derive(r RawObservation) FeatureVector {
	return FeatureVector{
		RawObservation:    r,
		SizeDistRatio:     r.EstDiameterMin / (r.MissDistance + Eps),
		KineticProxy:      r.RelativeVelocity * r.RelativeVelocity * r.EstDiameterMin,
		VelocityDistRatio: r.RelativeVelocity / (r.MissDistance + Eps),
	}
}

// Names returns the canonical feature order. Training matrices and serve-time
// vectors are both built from this list; the model artifact records it and
// refuses to load against a different order.
func Names() []string {
	return []string{
		"est_diameter_min",
		"relative_velocity",
		"miss_distance",
		"absolute_magnitude",
		"size_dist_ratio",
		"kinetic_proxy",
		"velocity_dist_ratio",
	}
}

// Values flattens the vector in the canonical order given by Names.
func (v FeatureVector) Values() []float64 {
	return []float64{
		v.EstDiameterMin,
		v.RelativeVelocity,
		v.MissDistance,
		v.AbsoluteMagnitude,
		v.SizeDistRatio,
		v.KineticProxy,
		v.VelocityDistRatio,
	}
}
