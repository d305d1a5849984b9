// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package selection

import (
	"context"
	"fmt"
	"log/slog"

	"gonum.org/v1/gonum/mat"

	"github.com/pdiddy/webshield/internal/artifact"
	"github.com/pdiddy/webshield/internal/estimator"
	"github.com/pdiddy/webshield/internal/metrics"
	"github.com/pdiddy/webshield/internal/predictor"
	"github.com/pdiddy/webshield/internal/tracking"
	"github.com/pdiddy/webshield/internal/transform"
	"github.com/pdiddy/webshield/pkg/types"
)

// Run executes the model selection stage. It evaluates the candidates,
// promotes the winner, persists the Predictor, the final model and
// preprocessor, and the candidate report, then logs the winner's train and
// test metrics to sink and writes the stage manifest. Tracking runs only
// after the model artifacts are on disk; its failures are logged and never
// fail the stage.
func Run(ctx context.Context, store *artifact.Store, in types.DataTransformationArtifact, cfg types.TrainerConfig, sink tracking.Sink, logger *slog.Logger) (types.ModelTrainerArtifact, error) {
	data, err := loadData(store, in)
	if err != nil {
		return types.ModelTrainerArtifact{}, err
	}
	transformer, err := transform.LoadTransformer(store, in.TransformedObjectFilePath)
	if err != nil {
		return types.ModelTrainerArtifact{}, fmt.Errorf("loading transformer: %w", err)
	}

	candidates := cfg.Candidates
	if len(candidates) == 0 {
		candidates = DefaultCandidates()
	}
	report, err := EvaluateModels(ctx, data, candidates, Options{
		CVFolds:         cfg.CVFolds,
		Workers:         cfg.Workers,
		Timeout:         cfg.SearchTimeout,
		MaxCombinations: cfg.MaxSearchCombinations,
		Seed:            cfg.RandomState,
	}, logger)
	if err != nil {
		return types.ModelTrainerArtifact{}, err
	}
	if err := store.WriteYAML(cfg.ReportPath, report.Results()); err != nil {
		return types.ModelTrainerArtifact{}, fmt.Errorf("writing candidate report: %w", err)
	}

	name, err := SelectBest(report)
	if err != nil {
		return types.ModelTrainerArtifact{}, err
	}
	winner, _ := report.Find(name)
	logger.Info("selected model", "model", name, "test_score", winner.Result.TestScore)

	trainMetrics, err := score(winner.Model, data.XTrain, data.YTrain)
	if err != nil {
		return types.ModelTrainerArtifact{}, fmt.Errorf("scoring train partition: %w", err)
	}
	testMetrics, err := score(winner.Model, data.XTest, data.YTest)
	if err != nil {
		return types.ModelTrainerArtifact{}, fmt.Errorf("scoring test partition: %w", err)
	}

	p, err := predictor.New(name, transformer, winner.Model)
	if err != nil {
		return types.ModelTrainerArtifact{}, err
	}
	if err := p.Save(store, cfg.ModelPath); err != nil {
		return types.ModelTrainerArtifact{}, fmt.Errorf("saving predictor: %w", err)
	}
	blob, err := estimator.Encode(winner.Model)
	if err != nil {
		return types.ModelTrainerArtifact{}, err
	}
	if err := store.Write(cfg.FinalModelPath, blob); err != nil {
		return types.ModelTrainerArtifact{}, fmt.Errorf("saving final model: %w", err)
	}
	if err := store.WriteObject(cfg.FinalPreprocessorPath, transformer); err != nil {
		return types.ModelTrainerArtifact{}, fmt.Errorf("saving final preprocessor: %w", err)
	}

	model := tracking.ModelInfo{
		Name:         name,
		Kind:         winner.Result.Kind,
		ArtifactPath: cfg.ModelPath,
		Features:     in.Features,
		InputExample: data.XTrain.RawRowView(0),
	}
	for _, stage := range []struct {
		name string
		m    types.ClassificationMetricArtifact
	}{{"train", trainMetrics}, {"test", testMetrics}} {
		if err := track(ctx, sink, cfg.PipelineName, stage.name, model, stage.m, winner.Result.BestParams); err != nil {
			logger.Warn("tracking failed", "stage", stage.name, "error", err)
		}
	}

	out := types.ModelTrainerArtifact{
		ModelName:            name,
		TrainedModelFilePath: cfg.ModelPath,
		FinalModelFilePath:   cfg.FinalModelPath,
		TrainMetricArtifact:  trainMetrics,
		TestMetricArtifact:   testMetrics,
		Candidates:           report.Results(),
	}
	if err := store.WriteYAML(cfg.ManifestPath, out); err != nil {
		return types.ModelTrainerArtifact{}, fmt.Errorf("writing trainer manifest: %w", err)
	}
	return out, nil
}

// LoadFinalModel reads the bare estimator written by Run.
func LoadFinalModel(store *artifact.Store, path string) (estimator.Estimator, error) {
	data, err := store.Read(path)
	if err != nil {
		return nil, err
	}
	est, err := estimator.Decode(data)
	if err != nil {
		return nil, &types.ContractError{Artifact: path, Err: err}
	}
	return est, nil
}

func loadData(store *artifact.Store, in types.DataTransformationArtifact) (Data, error) {
	trainArr, err := store.ReadMatrix(in.TransformedTrainFilePath)
	if err != nil {
		return Data{}, fmt.Errorf("reading train array: %w", err)
	}
	testArr, err := store.ReadMatrix(in.TransformedTestFilePath)
	if err != nil {
		return Data{}, fmt.Errorf("reading test array: %w", err)
	}
	var d Data
	if d.XTrain, d.YTrain, err = transform.Split(trainArr); err != nil {
		return Data{}, err
	}
	if d.XTest, d.YTest, err = transform.Split(testArr); err != nil {
		return Data{}, err
	}
	return d, nil
}

func score(est estimator.Estimator, x *mat.Dense, y []float64) (types.ClassificationMetricArtifact, error) {
	pred, err := est.Predict(x)
	if err != nil {
		return types.ClassificationMetricArtifact{}, err
	}
	return metrics.Score(y, pred)
}

// track logs one stage's metrics and the model to a fresh run.
func track(ctx context.Context, sink tracking.Sink, pipeline, stage string, model tracking.ModelInfo, m types.ClassificationMetricArtifact, params map[string]any) error {
	model.RegisteredName = model.Name + "_" + stage
	tags := map[string]string{"stage": stage, "pipeline": pipeline, "kind": model.Kind}
	return tracking.WithRun(ctx, sink, model.Name, tags, func(run tracking.Run) error {
		for _, kv := range []struct {
			key   string
			value float64
		}{
			{stage + "_f1_score", m.F1Score},
			{stage + "_precision", m.PrecisionScore},
			{stage + "_recall", m.RecallScore},
		} {
			if err := run.LogMetric(ctx, kv.key, kv.value); err != nil {
				return err
			}
		}
		for k, v := range params {
			if err := run.LogParam(ctx, k, fmt.Sprint(v)); err != nil {
				return err
			}
		}
		return run.LogModel(ctx, model)
	})
}
