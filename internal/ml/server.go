package ml

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"neo-guard/internal/features"
)

// ScoreServer is the thin HTTP wrapper over the scoring contract. Transport
// concerns stop here; all classification semantics live in the Predictor.
type ScoreServer struct {
	predictor *Predictor
	server    *http.Server
}

// scoreRequest uses pointer fields so absent keys are distinguishable from
// zero values: every field is required.
type scoreRequest struct {
	EstDiameterMin    *float64 `json:"est_diameter_min"`
	RelativeVelocity  *float64 `json:"relative_velocity"`
	MissDistance      *float64 `json:"miss_distance"`
	AbsoluteMagnitude *float64 `json:"absolute_magnitude"`
}

func (r scoreRequest) observation() (features.RawObservation, error) {
	fields := []struct {
		name  string
		value *float64
	}{
		{"est_diameter_min", r.EstDiameterMin},
		{"relative_velocity", r.RelativeVelocity},
		{"miss_distance", r.MissDistance},
		{"absolute_magnitude", r.AbsoluteMagnitude},
	}
	for _, f := range fields {
		if f.value == nil {
			return features.RawObservation{}, &features.ValidationError{Field: f.name, Reason: "required"}
		}
	}
	return features.RawObservation{
		EstDiameterMin:    *r.EstDiameterMin,
		RelativeVelocity:  *r.RelativeVelocity,
		MissDistance:      *r.MissDistance,
		AbsoluteMagnitude: *r.AbsoluteMagnitude,
	}, nil
}

type scoreResponse struct {
	IsHazardous       bool    `json:"is_hazardous"`
	HazardProbability float64 `json:"hazard_probability"`
	ProbabilityPct    string  `json:"probability_pct"`
}

type healthResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewScoreServer builds the HTTP server for the scoring service. The
// predictor must be constructed first; its load resolves before the server
// ever accepts a request, and a failed load serves 503s rather than faults.
func NewScoreServer(predictor *Predictor, port int, metricsHandler http.Handler) *ScoreServer {
	s := &ScoreServer{predictor: predictor}

	mux := http.NewServeMux()
	mux.HandleFunc("/predict", s.handlePredict)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/model/info", s.handleModelInfo)
	if metricsHandler != nil {
		mux.Handle("/metrics", metricsHandler)
	}

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Start begins serving HTTP requests.
func (s *ScoreServer) Start() error {
	log.Info().Str("addr", s.server.Addr).Bool("model_loaded", s.predictor.Ready()).Msg("starting score server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *ScoreServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *ScoreServer) handlePredict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	var req scoreRequest
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return
	}

	raw, err := req.observation()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	pred, err := s.predictor.Score(raw)
	if err != nil {
		var verr *features.ValidationError
		switch {
		case errors.Is(err, ErrModelUnavailable):
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "model not loaded on server"})
		case errors.As(err, &verr):
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: verr.Error()})
		default:
			log.Error().Err(err).Msg("prediction failed")
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "prediction failed"})
		}
		return
	}

	writeJSON(w, http.StatusOK, scoreResponse{
		IsHazardous:       pred.IsHazardous,
		HazardProbability: pred.HazardProbability,
		ProbabilityPct:    fmt.Sprintf("%.2f%%", pred.HazardProbability*100),
	})
}

func (s *ScoreServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "healthy", ModelLoaded: true}
	status := http.StatusOK
	if !s.predictor.Ready() {
		resp = healthResponse{Status: "unavailable", ModelLoaded: false}
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func (s *ScoreServer) handleModelInfo(w http.ResponseWriter, r *http.Request) {
	if !s.predictor.Ready() {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "model not loaded on server"})
		return
	}

	a := s.predictor.Artifact()
	writeJSON(w, http.StatusOK, map[string]any{
		"version":        a.Version,
		"trained_at":     a.TrainedAt,
		"training_rows":  a.TrainingRows,
		"cv_recall":      a.CVRecall,
		"metrics":        a.Metrics,
		"importance":     a.Importance,
		"features":       a.Model.FeatureNames,
		"positive_class": a.Model.PositiveClass,
		"threshold":      a.Model.Threshold,
		"params":         a.Model.Params,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
