// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"path/filepath"
	"time"
)

// RunIDLayout formats the per-run artifact directory name from the run start time.
const RunIDLayout = "01_02_2006_15_04_05"

// MongoConfig holds connection settings for the source collection.
type MongoConfig struct {
	// URL is the MongoDB connection string. Usually supplied via
	// MONGO_DB_URL or the mongo-db-url secret rather than the config file.
	URL string `json:"-" yaml:"-" mapstructure:"url"`

	// Database and Collection name the source collection.
	Database   string `json:"database" yaml:"database" mapstructure:"database"`
	Collection string `json:"collection" yaml:"collection" mapstructure:"collection"`

	// ConnectTimeout bounds connection and server selection (default 10s).
	ConnectTimeout time.Duration `json:"connect_timeout" yaml:"connect_timeout" mapstructure:"connect_timeout"`
}

// SourceKind selects where Ingestion reads raw records from.
type SourceKind string

const (
	SourceMongo SourceKind = "mongo"
	SourceCSV   SourceKind = "csv"
)

// SourceConfig selects and configures the source collection reader.
type SourceConfig struct {
	Kind  SourceKind  `json:"kind" yaml:"kind" mapstructure:"kind"`
	Mongo MongoConfig `json:"mongo" yaml:"mongo" mapstructure:"mongo"`

	// CSVPath is the file read when Kind is "csv".
	CSVPath string `json:"csv_path" yaml:"csv_path" mapstructure:"csv_path"`
}

// IngestionSettings holds the user-facing ingestion options.
type IngestionSettings struct {
	FeatureStoreFile string  `json:"feature_store_file" yaml:"feature_store_file" mapstructure:"feature_store_file"`
	TrainFile        string  `json:"train_file" yaml:"train_file" mapstructure:"train_file"`
	TestFile         string  `json:"test_file" yaml:"test_file" mapstructure:"test_file"`
	TestRatio        float64 `json:"test_ratio" yaml:"test_ratio" mapstructure:"test_ratio"`
}

// ValidationSettings holds the user-facing validation options.
type ValidationSettings struct {
	// DriftThreshold is the KS p-value below which a column is flagged (default 0.05).
	DriftThreshold float64 `json:"drift_threshold" yaml:"drift_threshold" mapstructure:"drift_threshold"`
}

// TransformationSettings holds the user-facing transformation options.
type TransformationSettings struct {
	// Neighbors is k for the KNN imputer (default 3).
	Neighbors int `json:"neighbors" yaml:"neighbors" mapstructure:"neighbors"`
}

// CandidateConfig declares one candidate model: a display name, the
// estimator kind, and its hyperparameter grid.
type CandidateConfig struct {
	Name string           `json:"name" yaml:"name" mapstructure:"name"`
	Kind string           `json:"kind" yaml:"kind" mapstructure:"kind"`
	Grid map[string][]any `json:"grid" yaml:"grid" mapstructure:"grid"`
}

// TrainerSettings holds the user-facing model selection options.
type TrainerSettings struct {
	// CVFolds is the number of cross-validation folds used by the search (default 3).
	CVFolds int `json:"cv_folds" yaml:"cv_folds" mapstructure:"cv_folds"`

	// Workers bounds how many candidates are searched concurrently (default 2).
	Workers int `json:"workers" yaml:"workers" mapstructure:"workers"`

	// SearchTimeout bounds each candidate's search. Zero means no limit.
	SearchTimeout time.Duration `json:"search_timeout" yaml:"search_timeout" mapstructure:"search_timeout"`

	// MaxSearchCombinations switches a candidate to randomized search when
	// its grid expands to more combinations than this (default 24).
	MaxSearchCombinations int `json:"max_search_combinations" yaml:"max_search_combinations" mapstructure:"max_search_combinations"`

	// Candidates overrides the built-in candidate set when non-empty.
	Candidates []CandidateConfig `json:"candidates" yaml:"candidates" mapstructure:"candidates"`
}

// TrackingBackend selects the metric tracking sink.
type TrackingBackend string

const (
	TrackingNone   TrackingBackend = "none"
	TrackingSQLite TrackingBackend = "sqlite"
	TrackingMLflow TrackingBackend = "mlflow"
)

// TrackingConfig configures the metric tracking sink.
type TrackingConfig struct {
	Backend TrackingBackend `json:"backend" yaml:"backend" mapstructure:"backend"`

	// DBPath is the SQLite tracking database (default "mlruns/tracking.db").
	DBPath string `json:"db_path" yaml:"db_path" mapstructure:"db_path"`

	// MLflowURI is the MLflow tracking server base URL.
	MLflowURI string `json:"mlflow_uri" yaml:"mlflow_uri" mapstructure:"mlflow_uri"`

	// ExperimentID is the MLflow experiment that receives runs (default "0").
	ExperimentID string `json:"experiment_id" yaml:"experiment_id" mapstructure:"experiment_id"`

	// Token is an optional bearer token for the MLflow server.
	Token string `json:"-" yaml:"-" mapstructure:"token"`

	// Timeout is the HTTP request timeout for remote sinks.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// MaxRetries is the number of retries on HTTP 429 for remote sinks.
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`
}

// PipelineConfig is the process-wide configuration, resolved once at start
// and never read by components directly. Stage configs are derived from it.
type PipelineConfig struct {
	// Name labels the pipeline in logs and tracking runs.
	Name string `json:"name" yaml:"name" mapstructure:"name"`

	// ArtifactDir is the base directory for per-run artifacts (default "Artifacts").
	ArtifactDir string `json:"artifact_dir" yaml:"artifact_dir" mapstructure:"artifact_dir"`

	// FinalModelDir receives the deployable model and preprocessor (default "final_model").
	FinalModelDir string `json:"final_model_dir" yaml:"final_model_dir" mapstructure:"final_model_dir"`

	// SchemaFile is the schema contract location (default "data_schema/schema.yaml").
	SchemaFile string `json:"schema_file" yaml:"schema_file" mapstructure:"schema_file"`

	// RandomState seeds the split, the CV folds, and every estimator.
	RandomState int64 `json:"random_state" yaml:"random_state" mapstructure:"random_state"`

	Source         SourceConfig           `json:"source" yaml:"source" mapstructure:"source"`
	Ingestion      IngestionSettings      `json:"ingestion" yaml:"ingestion" mapstructure:"ingestion"`
	Validation     ValidationSettings     `json:"validation" yaml:"validation" mapstructure:"validation"`
	Transformation TransformationSettings `json:"transformation" yaml:"transformation" mapstructure:"transformation"`
	Trainer        TrainerSettings        `json:"trainer" yaml:"trainer" mapstructure:"trainer"`
	Tracking       TrackingConfig         `json:"tracking" yaml:"tracking" mapstructure:"tracking"`
}

// RunConfig identifies one pipeline run and its artifact directory.
type RunConfig struct {
	RunID  string
	RunDir string
}

// NewRunConfig derives the run identifier from start and places the run
// directory under cfg.ArtifactDir.
func NewRunConfig(cfg PipelineConfig, start time.Time) RunConfig {
	return ExistingRun(cfg, start.Format(RunIDLayout))
}

// ExistingRun returns the RunConfig for a previously started run.
func ExistingRun(cfg PipelineConfig, runID string) RunConfig {
	return RunConfig{RunID: runID, RunDir: filepath.Join(cfg.ArtifactDir, runID)}
}

// stageDir returns the directory holding one stage's artifacts.
func (r RunConfig) stageDir(stage string) string {
	return filepath.Join(r.RunDir, stage)
}

// ManifestPath returns where a stage records its artifact.
func (r RunConfig) ManifestPath(stage string) string {
	return filepath.Join(r.stageDir(stage), "artifact.yaml")
}

// IngestionConfig is the StageConfig for Ingestion.
type IngestionConfig struct {
	Database         string
	Collection       string
	FeatureStorePath string
	TrainPath        string
	TestPath         string
	TestRatio        float64
	RandomState      int64
	ManifestPath     string
}

// IngestionConfig derives the Ingestion stage config for run r.
func (c PipelineConfig) IngestionConfig(r RunConfig) IngestionConfig {
	dir := r.stageDir(StageIngestion)
	return IngestionConfig{
		Database:         c.Source.Mongo.Database,
		Collection:       c.Source.Mongo.Collection,
		FeatureStorePath: filepath.Join(dir, "feature_store", c.Ingestion.FeatureStoreFile),
		TrainPath:        filepath.Join(dir, "ingested", c.Ingestion.TrainFile),
		TestPath:         filepath.Join(dir, "ingested", c.Ingestion.TestFile),
		TestRatio:        c.Ingestion.TestRatio,
		RandomState:      c.RandomState,
		ManifestPath:     r.ManifestPath(StageIngestion),
	}
}

// ValidationConfig is the StageConfig for Validation.
type ValidationConfig struct {
	ValidTrainPath   string
	ValidTestPath    string
	InvalidTrainPath string
	InvalidTestPath  string
	DriftReportPath  string
	DriftThreshold   float64
	ManifestPath     string
}

// ValidationConfig derives the Validation stage config for run r.
func (c PipelineConfig) ValidationConfig(r RunConfig) ValidationConfig {
	dir := r.stageDir(StageValidation)
	return ValidationConfig{
		ValidTrainPath:   filepath.Join(dir, "validated", c.Ingestion.TrainFile),
		ValidTestPath:    filepath.Join(dir, "validated", c.Ingestion.TestFile),
		InvalidTrainPath: filepath.Join(dir, "invalid", c.Ingestion.TrainFile),
		InvalidTestPath:  filepath.Join(dir, "invalid", c.Ingestion.TestFile),
		DriftReportPath:  filepath.Join(dir, "drift_report", r.RunID+"-report.yaml"),
		DriftThreshold:   c.Validation.DriftThreshold,
		ManifestPath:     r.ManifestPath(StageValidation),
	}
}

// TransformationConfig is the StageConfig for Transformation.
type TransformationConfig struct {
	TransformedTrainPath string
	TransformedTestPath  string
	TransformerPath      string
	Neighbors            int
	ManifestPath         string
}

// TransformationConfig derives the Transformation stage config for run r.
func (c PipelineConfig) TransformationConfig(r RunConfig) TransformationConfig {
	dir := r.stageDir(StageTransformation)
	return TransformationConfig{
		TransformedTrainPath: filepath.Join(dir, "transformed", "train.bin"),
		TransformedTestPath:  filepath.Join(dir, "transformed", "test.bin"),
		TransformerPath:      filepath.Join(dir, "transformed_object", "preprocessing.gob"),
		Neighbors:            c.Transformation.Neighbors,
		ManifestPath:         r.ManifestPath(StageTransformation),
	}
}

// TrainerConfig is the StageConfig for ModelSelection.
type TrainerConfig struct {
	ModelPath             string
	FinalModelPath        string
	FinalPreprocessorPath string
	ReportPath            string
	PipelineName          string
	CVFolds               int
	Workers               int
	SearchTimeout         time.Duration
	MaxSearchCombinations int
	RandomState           int64
	Candidates            []CandidateConfig
	ManifestPath          string
}

// TrainerConfig derives the ModelSelection stage config for run r.
func (c PipelineConfig) TrainerConfig(r RunConfig) TrainerConfig {
	dir := r.stageDir(StageModelTrainer)
	return TrainerConfig{
		ModelPath:             filepath.Join(dir, "trained_model", "model.gob"),
		FinalModelPath:        filepath.Join(c.FinalModelDir, "model.gob"),
		FinalPreprocessorPath: filepath.Join(c.FinalModelDir, "preprocessor.gob"),
		ReportPath:            filepath.Join(dir, "candidates.yaml"),
		PipelineName:          c.Name,
		CVFolds:               c.Trainer.CVFolds,
		Workers:               c.Trainer.Workers,
		SearchTimeout:         c.Trainer.SearchTimeout,
		MaxSearchCombinations: c.Trainer.MaxSearchCombinations,
		RandomState:           c.RandomState,
		Candidates:            c.Trainer.Candidates,
		ManifestPath:          r.ManifestPath(StageModelTrainer),
	}
}

// DefaultPipelineConfig returns the configuration used when no config file
// or environment override is present.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Name:          "Web Shield",
		ArtifactDir:   "Artifacts",
		FinalModelDir: "final_model",
		SchemaFile:    filepath.Join("data_schema", "schema.yaml"),
		RandomState:   42,
		Source: SourceConfig{
			Kind: SourceMongo,
			Mongo: MongoConfig{
				Database:       "Ishant",
				Collection:     "WebData",
				ConnectTimeout: 10 * time.Second,
			},
		},
		Ingestion: IngestionSettings{
			FeatureStoreFile: "phisingData.csv",
			TrainFile:        "train.csv",
			TestFile:         "test.csv",
			TestRatio:        0.2,
		},
		Validation:     ValidationSettings{DriftThreshold: 0.05},
		Transformation: TransformationSettings{Neighbors: 3},
		Trainer: TrainerSettings{
			CVFolds:               3,
			Workers:               2,
			MaxSearchCombinations: 24,
		},
		Tracking: TrackingConfig{
			Backend:      TrackingSQLite,
			DBPath:       filepath.Join("mlruns", "tracking.db"),
			ExperimentID: "0",
			Timeout:      30 * time.Second,
			MaxRetries:   3,
		},
	}
}
