// Package cfg loads service configuration from a YAML file (CONFIG_FILE)
// with environment-variable overrides, falling back to environment-only
// configuration with sensible defaults.
package cfg

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"neo-guard/internal/ml"
)

// Settings is the resolved runtime configuration.
type Settings struct {
	APIKey       string
	APIBase      string
	MaxPages     int
	FetchTimeout time.Duration
	DataPath     string
	ModelPath    string
	HTTPPort     int
	Train        ml.TrainConfig
}

// ConfigFile mirrors the YAML layout.
type ConfigFile struct {
	API struct {
		Key     string `yaml:"key"`
		BaseURL string `yaml:"baseURL"`
	} `yaml:"api"`

	Catalog struct {
		MaxPages     int    `yaml:"maxPages"`
		FetchTimeout string `yaml:"fetchTimeout"`
	} `yaml:"catalog"`

	Training struct {
		Seed           int64   `yaml:"seed"`
		TestFraction   float64 `yaml:"testFraction"`
		CVFolds        int     `yaml:"cvFolds"`
		PosWeightBoost float64 `yaml:"posWeightBoost"`
		SMOTENeighbors int     `yaml:"smoteNeighbors"`
		TargetRatio    float64 `yaml:"targetRatio"`
		Workers        int     `yaml:"workers"`
		Grid           ml.Grid `yaml:"grid"`
	} `yaml:"training"`

	Model struct {
		Path string `yaml:"path"`
	} `yaml:"model"`

	System struct {
		DataPath string `yaml:"dataPath"`
		HTTPPort int    `yaml:"httpPort"`
	} `yaml:"system"`
}

// Load resolves settings from CONFIG_FILE when set, otherwise from the
// environment alone.
func Load() (Settings, error) {
	if configPath := os.Getenv("CONFIG_FILE"); configPath != "" {
		return loadFromYAML(configPath)
	}
	return loadFromEnv()
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var file ConfigFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	fetchTimeout, err := time.ParseDuration(file.Catalog.FetchTimeout)
	if err != nil {
		fetchTimeout = 10 * time.Second
	}

	train := ml.DefaultTrainConfig()
	if file.Training.Seed != 0 {
		train.Seed = file.Training.Seed
	}
	if file.Training.TestFraction > 0 {
		train.TestFraction = file.Training.TestFraction
	}
	if file.Training.CVFolds > 0 {
		train.CVFolds = file.Training.CVFolds
	}
	if file.Training.PosWeightBoost > 0 {
		train.PosWeightBoost = file.Training.PosWeightBoost
	}
	if file.Training.SMOTENeighbors > 0 {
		train.SMOTENeighbors = file.Training.SMOTENeighbors
	}
	if file.Training.TargetRatio > 0 {
		train.TargetRatio = file.Training.TargetRatio
	}
	if file.Training.Workers > 0 {
		train.Workers = file.Training.Workers
	}
	if len(file.Training.Grid.NEstimators) > 0 {
		train.Grid.NEstimators = file.Training.Grid.NEstimators
	}
	if len(file.Training.Grid.MaxDepth) > 0 {
		train.Grid.MaxDepth = file.Training.Grid.MaxDepth
	}
	if len(file.Training.Grid.LearningRate) > 0 {
		train.Grid.LearningRate = file.Training.Grid.LearningRate
	}
	if len(file.Training.Grid.Subsample) > 0 {
		train.Grid.Subsample = file.Training.Grid.Subsample
	}

	settings := Settings{
		APIKey:       getEnvOrDefault("NEO_API_KEY", file.API.Key),
		APIBase:      getEnvOrDefault("NEO_API_BASE", file.API.BaseURL),
		MaxPages:     getIntFromEnvOrConfig("MAX_PAGES", file.Catalog.MaxPages),
		FetchTimeout: fetchTimeout,
		DataPath:     getEnvOrDefault("DATA_PATH", file.System.DataPath),
		ModelPath:    getEnvOrDefault("MODEL_PATH", file.Model.Path),
		HTTPPort:     getIntFromEnvOrConfig("HTTP_PORT", file.System.HTTPPort),
		Train:        train,
	}
	applyDefaults(&settings)

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return settings, nil
}

func loadFromEnv() (Settings, error) {
	settings := Settings{
		APIKey:       getEnvOrDefault("NEO_API_KEY", ""),
		APIBase:      getEnvOrDefault("NEO_API_BASE", ""),
		MaxPages:     getIntOrDefault("MAX_PAGES", 0),
		FetchTimeout: getDurationOrDefault("FETCH_TIMEOUT", 10*time.Second),
		DataPath:     os.Getenv("DATA_PATH"), // optional
		ModelPath:    getEnvOrDefault("MODEL_PATH", ""),
		HTTPPort:     getIntOrDefault("HTTP_PORT", 0),
		Train:        ml.DefaultTrainConfig(),
	}
	if seed := getInt64OrDefault("TRAIN_SEED", 0); seed != 0 {
		settings.Train.Seed = seed
	}
	applyDefaults(&settings)

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return settings, nil
}

func applyDefaults(s *Settings) {
	if s.APIKey == "" {
		s.APIKey = "DEMO_KEY"
	}
	if s.APIBase == "" {
		s.APIBase = "https://api.nasa.gov"
	}
	if s.MaxPages <= 0 {
		s.MaxPages = 500
	}
	if s.ModelPath == "" {
		s.ModelPath = "models/neo_classifier.json"
	}
	if s.HTTPPort <= 0 {
		s.HTTPPort = 8000
	}
}

func validateSettings(s *Settings) error {
	if s.HTTPPort < 1 || s.HTTPPort > 65535 {
		return fmt.Errorf("httpPort %d out of range", s.HTTPPort)
	}
	if s.Train.TestFraction <= 0 || s.Train.TestFraction >= 1 {
		return fmt.Errorf("testFraction %v must be in (0, 1)", s.Train.TestFraction)
	}
	if s.Train.CVFolds < 2 {
		return fmt.Errorf("cvFolds %d must be at least 2", s.Train.CVFolds)
	}
	return nil
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getIntOrDefault(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getInt64OrDefault(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func getIntFromEnvOrConfig(key string, configValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return configValue
}

func getDurationOrDefault(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
