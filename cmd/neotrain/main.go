// neotrain runs the offline training job: fetch (or replay) the labeled
// catalog, train the hazard classifier, evaluate it and persist the model
// artifact. A failed run leaves the previous artifact authoritative.
package main

import (
	"context"
	"flag"
	"fmt"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"neo-guard/internal/cfg"
	"neo-guard/internal/features"
	"neo-guard/internal/metrics"
	"neo-guard/internal/ml"
	"neo-guard/internal/neo"
	"neo-guard/internal/storage"
)

func main() {
	_ = godotenv.Load()

	refresh := flag.Bool("refresh", false, "fetch fresh catalog data even when the cache is populated")
	pages := flag.Int("pages", 0, "override the catalog page budget")
	rollback := flag.Bool("rollback", false, "reactivate the previous model version instead of training")
	flag.Parse()

	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	if *pages > 0 {
		c.MaxPages = *pages
	}

	if *rollback {
		runRollback(c)
		return
	}

	store := openStore(c)
	if store != nil {
		defer store.Close()
	}

	observations := loadObservations(c, store, *refresh)
	records := make([]features.LabeledRecord, len(observations))
	for i, o := range observations {
		records[i] = o.LabeledRecord
	}

	model, report, err := ml.Train(records, c.Train)
	if err != nil {
		log.Fatal().Err(err).Msg("training failed, no artifact written")
	}

	log.Info().
		Interface("best_params", report.BestParams).
		Float64("cv_recall", report.CVRecall).
		Float64("precision", report.Metrics.Precision).
		Float64("recall", report.Metrics.Recall).
		Float64("f1", report.Metrics.F1).
		Int("true_positives", report.Metrics.TruePositives).
		Int("false_positives", report.Metrics.FalsePositives).
		Int("true_negatives", report.Metrics.TrueNegatives).
		Int("false_negatives", report.Metrics.FalseNegatives).
		Dur("elapsed", report.Elapsed).
		Msg("training complete")
	for _, fg := range model.Importance() {
		log.Info().Str("feature", fg.Name).Float64("gain", fg.Gain).Msg("feature importance")
	}

	artifact := &ml.Artifact{
		Version:      time.Now().UTC().Format("20060102-150405"),
		TrainedAt:    time.Now().UTC(),
		TrainingRows: report.Samples,
		CVRecall:     report.CVRecall,
		Metrics:      report.Metrics,
		Importance:   model.Importance(),
		Model:        model,
	}
	if err := ml.Save(artifact, c.ModelPath); err != nil {
		log.Fatal().Err(err).Str("model_path", c.ModelPath).Msg("artifact save failed")
	}

	// Each run also keeps a versioned copy so the ledger can restore it.
	versionedPath := versionedArtifactPath(c.ModelPath, artifact.Version)
	if err := ml.Save(artifact, versionedPath); err != nil {
		log.Fatal().Err(err).Str("model_path", versionedPath).Msg("versioned artifact save failed")
	}

	ledger, err := ml.NewModelManager(filepath.Dir(c.ModelPath))
	if err != nil {
		log.Fatal().Err(err).Msg("version ledger open failed")
	}
	if err := ledger.AddVersion(versionedPath, artifact.Version, report.Metrics); err != nil {
		log.Fatal().Err(err).Msg("version ledger update failed")
	}
	if err := ledger.ActivateVersion(artifact.Version); err != nil {
		log.Fatal().Err(err).Msg("version activation failed")
	}

	log.Info().Str("model_path", c.ModelPath).Str("version", artifact.Version).Msg("model artifact saved")
}

func versionedArtifactPath(modelPath, version string) string {
	dir := filepath.Dir(modelPath)
	return filepath.Join(dir, fmt.Sprintf("neo_classifier-%s.json", version))
}

// runRollback reactivates the previous ledger version and republishes its
// artifact at the serving path.
func runRollback(c cfg.Settings) {
	ledger, err := ml.NewModelManager(filepath.Dir(c.ModelPath))
	if err != nil {
		log.Fatal().Err(err).Msg("version ledger open failed")
	}
	if err := ledger.Rollback(); err != nil {
		log.Fatal().Err(err).Msg("rollback failed")
	}

	current := ledger.CurrentVersion()
	artifact, err := ml.Load(current.Path)
	if err != nil {
		log.Fatal().Err(err).Str("model_path", current.Path).Msg("rolled-back artifact unreadable")
	}
	if err := ml.Save(artifact, c.ModelPath); err != nil {
		log.Fatal().Err(err).Str("model_path", c.ModelPath).Msg("artifact republish failed")
	}
	log.Info().
		Str("version", current.Version).
		Str("model_path", c.ModelPath).
		Float64("recall", current.Metrics.Recall).
		Msg("previous model version reactivated")
}

func openStore(c cfg.Settings) *storage.Store {
	if c.DataPath == "" {
		return nil
	}
	store, err := storage.New(c.DataPath)
	if err != nil {
		log.Warn().Err(err).Msg("observation cache unavailable, continuing without persistence")
		return nil
	}
	return store
}

// loadObservations replays the cache when it is populated and -refresh was
// not given; otherwise it fetches from the catalog and refreshes the cache.
func loadObservations(c cfg.Settings, store *storage.Store, refresh bool) []neo.Observation {
	if store != nil && !refresh {
		cached, err := store.Observations()
		if err != nil {
			log.Warn().Err(err).Msg("cache read failed, fetching from catalog")
		} else if len(cached) > 0 {
			log.Info().Int("observations", len(cached)).Msg("training from cached catalog data")
			return cached
		}
	}

	client := neo.NewClient(c.APIBase, c.APIKey, c.FetchTimeout, metrics.NewWrapper(metrics.New()))
	observations, err := client.FetchLabeled(context.Background(), c.MaxPages)
	if err != nil {
		log.Fatal().Err(err).Msg("catalog fetch failed")
	}
	if store != nil {
		if err := store.PutObservations(observations); err != nil {
			log.Warn().Err(err).Msg("cache write failed")
		}
	}
	return observations
}
