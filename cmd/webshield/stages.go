// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/webshield/internal/pipeline"
	"github.com/pdiddy/webshield/pkg/types"
)

// stageCommands maps each single-stage subcommand to its stage.
var stageCommands = []struct {
	use   string
	stage string
	short string
}{
	{"ingest", types.StageIngestion, "Fetch the source collection and split it into train and test"},
	{"validate", types.StageValidation, "Check a run's partitions against the schema and report drift"},
	{"transform", types.StageTransformation, "Impute and encode a run's validated partitions"},
	{"select", types.StageModelTrainer, "Train the candidates on a run's arrays and promote the winner"},
}

func init() {
	for _, sc := range stageCommands {
		cmd := &cobra.Command{
			Use:   sc.use,
			Short: sc.short,
			Long: fmt.Sprintf(`Run the %s stage alone. Every stage except ingestion reads the manifest
of the stage before it from the run directory named by --run-id.`, sc.stage),
			RunE: stageRunner(sc.stage),
		}
		cmd.Flags().String("run-id", "", "run directory under the artifact dir")
		rootCmd.AddCommand(cmd)
	}
}

func stageRunner(stage string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		runID, _ := cmd.Flags().GetString("run-id")
		var run types.RunConfig
		switch {
		case runID != "":
			run = types.ExistingRun(cfg, runID)
		case stage == types.StageIngestion:
			run = types.NewRunConfig(cfg, time.Now())
		default:
			return fmt.Errorf("%s requires --run-id", cmd.Name())
		}

		ctx := cmd.Context()
		p, cleanup, err := openPipeline(ctx, cfg, run, stage == types.StageIngestion)
		if err != nil {
			return err
		}
		defer cleanup()

		fmt.Fprintf(os.Stdout, "Run %s: %s\n", run.RunID, stage)
		res, err := p.RunStage(ctx, stage, os.Stdout)
		pipeline.Summary(os.Stdout, res)
		return err
	}
}
