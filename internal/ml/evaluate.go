package ml

import (
	"sort"

	"neo-guard/internal/features"
)

// ModelMetrics holds held-out classification metrics for the positive
// (hazardous) class plus the confusion matrix counts.
type ModelMetrics struct {
	Precision      float64 `json:"precision"`
	Recall         float64 `json:"recall"`
	F1             float64 `json:"f1"`
	TruePositives  int     `json:"true_positives"`
	FalsePositives int     `json:"false_positives"`
	TrueNegatives  int     `json:"true_negatives"`
	FalseNegatives int     `json:"false_negatives"`
	Samples        int     `json:"samples"`
}

// Evaluate scores a fitted model on a held-out set. Read-only; reporting
// only, never part of the serving path.
func Evaluate(m *Model, heldOut []features.LabeledRecord) ModelMetrics {
	mm := ModelMetrics{Samples: len(heldOut)}
	for _, rec := range heldOut {
		predicted := m.Classify(features.Derive(rec.RawObservation).Values())
		switch {
		case predicted && rec.IsHazardous:
			mm.TruePositives++
		case predicted && !rec.IsHazardous:
			mm.FalsePositives++
		case !predicted && rec.IsHazardous:
			mm.FalseNegatives++
		default:
			mm.TrueNegatives++
		}
	}

	if mm.TruePositives+mm.FalsePositives > 0 {
		mm.Precision = float64(mm.TruePositives) / float64(mm.TruePositives+mm.FalsePositives)
	}
	if mm.TruePositives+mm.FalseNegatives > 0 {
		mm.Recall = float64(mm.TruePositives) / float64(mm.TruePositives+mm.FalseNegatives)
	}
	if mm.Precision+mm.Recall > 0 {
		mm.F1 = 2 * mm.Precision * mm.Recall / (mm.Precision + mm.Recall)
	}
	return mm
}

// FeatureGain is one entry of the importance ranking.
type FeatureGain struct {
	Name string  `json:"name"`
	Gain float64 `json:"gain"`
}

// Importance ranks features by total split gain accumulated during fitting.
func (m *Model) Importance() []FeatureGain {
	out := make([]FeatureGain, 0, len(m.Gain))
	for name, g := range m.Gain {
		out = append(out, FeatureGain{Name: name, Gain: g})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Gain == out[j].Gain {
			return out[i].Name < out[j].Name
		}
		return out[i].Gain > out[j].Gain
	})
	return out
}
