// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pdiddy/webshield/internal/artifact"
	"github.com/pdiddy/webshield/internal/predictor"
	"github.com/pdiddy/webshield/internal/selection"
	"github.com/pdiddy/webshield/internal/transform"
	"github.com/pdiddy/webshield/pkg/types"
)

var predictCmd = &cobra.Command{
	Use:   "predict <input.csv>",
	Short: "Label records with a trained model",
	Long: `Predict loads a trained model and its preprocessor, labels every row of the
input CSV file, and writes the rows with a predicted_column appended.

By default the exported model under final_model/ is used. With --run-id the
predictor persisted by that run is used instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runPredict,
}

func init() {
	predictCmd.Flags().String("run-id", "", "use the predictor from this run")
	predictCmd.Flags().StringP("output", "o", "", "output CSV file (default: prediction_output/output.csv)")

	rootCmd.AddCommand(predictCmd)
}

func runPredict(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store := artifact.NewStore("")

	runID, _ := cmd.Flags().GetString("run-id")
	p, err := loadPredictor(store, cfg, runID)
	if err != nil {
		return err
	}

	in, err := store.ReadTable(args[0])
	if err != nil {
		return err
	}
	out, err := p.Annotate(in)
	if err != nil {
		return err
	}

	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		output = filepath.Join("prediction_output", "output.csv")
	}
	if err := store.WriteTable(output, out); err != nil {
		return err
	}

	positives := 0
	for _, r := range out.Records {
		if r[predictor.PredictionColumn] == 1.0 {
			positives++
		}
	}
	fmt.Fprintf(os.Stdout, "%s: labeled %d record(s), %d predicted 1 -> %s\n", p.Name, out.Len(), positives, output)
	return nil
}

// loadPredictor returns the run's persisted Predictor, or one assembled
// from the exported final model and preprocessor when runID is empty.
func loadPredictor(store *artifact.Store, cfg types.PipelineConfig, runID string) (*predictor.Predictor, error) {
	tc := cfg.TrainerConfig(types.ExistingRun(cfg, runID))
	if runID != "" {
		return predictor.Load(store, tc.ModelPath)
	}
	model, err := selection.LoadFinalModel(store, tc.FinalModelPath)
	if err != nil {
		return nil, err
	}
	t, err := transform.LoadTransformer(store, tc.FinalPreprocessorPath)
	if err != nil {
		return nil, err
	}
	return predictor.New(model.Kind(), t, model)
}
