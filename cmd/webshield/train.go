// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/webshield/internal/pipeline"
	"github.com/pdiddy/webshield/pkg/types"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Run the full training pipeline",
	Long: `Train runs ingestion, validation, transformation, and model selection in
order. Each produced artifact path is printed as it is written. On failure the
partial artifact list and the failing stage are printed and the command exits
non-zero.

With --run-id and --from, a previous run is resumed from the named stage using
the manifests already in its run directory.`,
	RunE: runTrain,
}

func init() {
	trainCmd.Flags().String("run-id", "", "resume an existing run instead of starting a new one")
	trainCmd.Flags().String("from", types.StageIngestion, "stage to resume from (with --run-id)")
	trainCmd.Flags().String("source", "", "source kind: mongo or csv")
	trainCmd.Flags().String("csv", "", "CSV file to ingest when --source=csv")
	trainCmd.Flags().String("tracking", "", "tracking backend: none, sqlite, or mlflow")

	viper.BindPFlag("source.kind", trainCmd.Flags().Lookup("source"))
	viper.BindPFlag("source.csv_path", trainCmd.Flags().Lookup("csv"))
	viper.BindPFlag("tracking.backend", trainCmd.Flags().Lookup("tracking"))

	rootCmd.AddCommand(trainCmd)
}

func runTrain(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	runID, _ := cmd.Flags().GetString("run-id")
	from, _ := cmd.Flags().GetString("from")
	run := types.NewRunConfig(cfg, time.Now())
	if runID != "" {
		run = types.ExistingRun(cfg, runID)
	} else if from != types.StageIngestion {
		return fmt.Errorf("--from requires --run-id")
	}

	ctx := cmd.Context()
	p, cleanup, err := openPipeline(ctx, cfg, run, from == types.StageIngestion)
	if err != nil {
		return err
	}
	defer cleanup()

	fmt.Fprintf(os.Stdout, "Run %s (%s)\n", run.RunID, run.RunDir)
	res, err := p.Resume(ctx, from, os.Stdout)
	pipeline.Summary(os.Stdout, res)
	return err
}
