// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the webshield CLI.
// The train subcommand runs the full pipeline; ingest, validate, transform,
// and select run one stage of an existing run; push, predict, and runs
// cover data loading, batch inference, and tracking history.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/webshield/internal/artifact"
	"github.com/pdiddy/webshield/internal/pipeline"
	"github.com/pdiddy/webshield/internal/schema"
	"github.com/pdiddy/webshield/internal/secrets"
	"github.com/pdiddy/webshield/internal/source"
	"github.com/pdiddy/webshield/internal/tracking"
	"github.com/pdiddy/webshield/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	// loadedSecrets holds credentials loaded from .secrets/ at startup.
	loadedSecrets secrets.Secrets

	// logger is configured from --log-level before any subcommand runs.
	logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
)

// rootCmd is the base command for the webshield CLI.
var rootCmd = &cobra.Command{
	Use:   "webshield",
	Short: "Train and select phishing-site classifiers",
	Long: `webshield runs the phishing detection training pipeline. Records are
ingested from a MongoDB collection (or a CSV file), validated against the
schema contract, imputed and converted to numeric arrays, and used to train
and compare a fixed set of candidate classifiers. The winning model and its
preprocessor are persisted under final_model/.

Each run writes its artifacts under Artifacts/<run-id>/, one directory per
stage, so a failed run can be resumed from any stage.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, _ := cmd.Flags().GetString("log-level")
		var lvl slog.Level
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return fmt.Errorf("invalid --log-level %q: %w", level, err)
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))

		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading .env: %w", err)
		}

		s, err := secrets.Load(".secrets/", logger)
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			logger.Debug("loaded secrets", "keys", s.Keys())
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./webshield.yaml or ~/.config/webshield/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("webshield")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "webshield"))
		}
	}

	setDefaults(types.DefaultPipelineConfig())
	viper.SetEnvPrefix("WEBSHIELD")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	viper.BindEnv("source.mongo.url", "WEBSHIELD_SOURCE_MONGO_URL", "MONGO_DB_URL")

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// setDefaults registers every scalar setting so that automatic environment
// lookup can override it.
func setDefaults(d types.PipelineConfig) {
	for key, value := range map[string]any{
		"name":                            d.Name,
		"artifact_dir":                    d.ArtifactDir,
		"final_model_dir":                 d.FinalModelDir,
		"schema_file":                     d.SchemaFile,
		"random_state":                    d.RandomState,
		"source.kind":                     string(d.Source.Kind),
		"source.csv_path":                 d.Source.CSVPath,
		"source.mongo.database":           d.Source.Mongo.Database,
		"source.mongo.collection":         d.Source.Mongo.Collection,
		"source.mongo.connect_timeout":    d.Source.Mongo.ConnectTimeout,
		"ingestion.feature_store_file":    d.Ingestion.FeatureStoreFile,
		"ingestion.train_file":            d.Ingestion.TrainFile,
		"ingestion.test_file":             d.Ingestion.TestFile,
		"ingestion.test_ratio":            d.Ingestion.TestRatio,
		"validation.drift_threshold":      d.Validation.DriftThreshold,
		"transformation.neighbors":        d.Transformation.Neighbors,
		"trainer.cv_folds":                d.Trainer.CVFolds,
		"trainer.workers":                 d.Trainer.Workers,
		"trainer.search_timeout":          d.Trainer.SearchTimeout,
		"trainer.max_search_combinations": d.Trainer.MaxSearchCombinations,
		"tracking.backend":                string(d.Tracking.Backend),
		"tracking.db_path":                d.Tracking.DBPath,
		"tracking.mlflow_uri":             d.Tracking.MLflowURI,
		"tracking.experiment_id":          d.Tracking.ExperimentID,
		"tracking.timeout":                d.Tracking.Timeout,
		"tracking.max_retries":            d.Tracking.MaxRetries,
	} {
		viper.SetDefault(key, value)
	}
}

// loadConfig resolves the pipeline configuration once from defaults, the
// config file, the environment, flags, and secrets.
func loadConfig() (types.PipelineConfig, error) {
	cfg := types.DefaultPipelineConfig()
	if err := viper.Unmarshal(&cfg); err != nil {
		return types.PipelineConfig{}, fmt.Errorf("decoding configuration: %w", err)
	}
	cfg.Source.Mongo.URL = loadedSecrets.Default(secrets.MongoURL, cfg.Source.Mongo.URL)
	cfg.Tracking.Token = loadedSecrets.Default(secrets.MLflowToken, cfg.Tracking.Token)
	return cfg, nil
}

// closer is implemented by sources that hold a connection.
type closer interface {
	Close(ctx context.Context) error
}

// openPipeline builds a Pipeline for run. The source is dialed only when
// withSource is set. The returned cleanup releases the source and sink.
func openPipeline(ctx context.Context, cfg types.PipelineConfig, run types.RunConfig, withSource bool) (*pipeline.Pipeline, func(), error) {
	contract, err := schema.Load(cfg.SchemaFile)
	if err != nil {
		return nil, nil, err
	}

	sink, err := tracking.New(cfg.Tracking, logger)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := sink.Close(); err != nil {
			logger.Warn("closing tracking sink", "error", err)
		}
	}

	opts := []pipeline.Option{pipeline.WithSink(sink), pipeline.WithLogger(logger)}
	if withSource {
		src, err := source.New(ctx, cfg.Source)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		opts = append(opts, pipeline.WithSource(src))
		if c, ok := src.(closer); ok {
			closeSink := cleanup
			cleanup = func() {
				if err := c.Close(context.Background()); err != nil {
					logger.Warn("closing source", "error", err)
				}
				closeSink()
			}
		}
	}

	store := artifact.NewStore("")
	return pipeline.New(cfg, run, store, contract, opts...), cleanup, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
