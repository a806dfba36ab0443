package metrics

// Wrapper adapts Metrics to the ml.MetricsSink and neo.Recorder interfaces
// without those packages depending on Prometheus directly.
type Wrapper struct {
	m *Metrics
}

// NewWrapper creates a wrapper around the given metrics.
func NewWrapper(m *Metrics) *Wrapper {
	return &Wrapper{m: m}
}

func (w *Wrapper) PredictionsInc() {
	w.m.PredictionsTotal.Inc()
}

func (w *Wrapper) FailuresInc() {
	w.m.PredictionFailures.Inc()
}

func (w *Wrapper) ValidationErrorsInc() {
	w.m.ValidationErrors.Inc()
}

func (w *Wrapper) UnreadyInc() {
	w.m.UnreadyRequests.Inc()
}

func (w *Wrapper) LatencyObserve(seconds float64) {
	w.m.PredictionLatency.Observe(seconds)
}

func (w *Wrapper) ScoreObserve(probability float64) {
	w.m.HazardScores.Observe(probability)
}

func (w *Wrapper) ModelLoadedSet(loaded bool) {
	if loaded {
		w.m.ModelLoaded.Set(1)
	} else {
		w.m.ModelLoaded.Set(0)
	}
}

func (w *Wrapper) ModelAgeSet(seconds float64) {
	w.m.ModelAge.Set(seconds)
}

func (w *Wrapper) CatalogPageInc() {
	w.m.CatalogPages.Inc()
}

func (w *Wrapper) ObservationsAdd(n int) {
	w.m.ObservationsFetched.Add(float64(n))
}
