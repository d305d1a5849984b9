// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/webshield/internal/artifact"
	"github.com/pdiddy/webshield/internal/estimator"
	"github.com/pdiddy/webshield/internal/predictor"
	"github.com/pdiddy/webshield/internal/schema"
	"github.com/pdiddy/webshield/pkg/types"
)

const testSchema = `
target: Result
columns:
  - name: a
    type: int64
  - name: b
    type: float64
  - name: Result
    type: int64
`

type fakeSource struct {
	data types.Dataset
	err  error
}

func (f fakeSource) Name() string { return "fake" }

func (f fakeSource) Fetch(context.Context, string, string) (types.Dataset, error) {
	return f.data, f.err
}

func collection(n int, extra ...string) types.Dataset {
	d := types.Dataset{Columns: append([]string{"a", "b", "Result"}, extra...)}
	for i := 0; i < n; i++ {
		label := -1.0
		if i >= n/2 {
			label = 1
		}
		r := types.Record{"a": float64(i), "b": float64(i%4) * 0.5, "Result": label}
		for _, e := range extra {
			r[e] = 1.0
		}
		d.Records = append(d.Records, r)
	}
	return d
}

func fixture(t *testing.T, src fakeSource) (*Pipeline, *artifact.Store, types.PipelineConfig, types.RunConfig) {
	t.Helper()
	contract, err := schema.Parse([]byte(testSchema))
	require.NoError(t, err)

	cfg := types.DefaultPipelineConfig()
	cfg.Trainer.Candidates = []types.CandidateConfig{
		{Name: "Decision Tree", Kind: estimator.KindDecisionTree, Grid: map[string][]any{"criterion": {"gini", "entropy"}}},
		{Name: "Logistic Regression", Kind: estimator.KindLogisticRegression},
	}
	run := types.ExistingRun(cfg, "10_17_2026_09_30_00")
	store := artifact.NewStore(t.TempDir())
	return New(cfg, run, store, contract, WithSource(src)), store, cfg, run
}

func TestRunAllStages(t *testing.T) {
	p, store, _, run := fixture(t, fakeSource{data: collection(50)})

	var out bytes.Buffer
	res, err := p.Run(context.Background(), &out)
	require.NoError(t, err)
	assert.False(t, res.HasFailures())
	assert.NotEmpty(t, res.Model.ModelName)

	for _, stage := range Stages {
		assert.True(t, store.Exists(run.ManifestPath(stage)), stage)
		assert.Contains(t, res.Paths, run.ManifestPath(stage))
		assert.Contains(t, out.String(), stage+":")
	}
	assert.Contains(t, res.Paths, res.Validation.DriftReportFilePath)
	assert.Contains(t, res.Paths, res.Model.FinalModelFilePath)

	pred, err := predictor.Load(store, res.Model.TrainedModelFilePath)
	require.NoError(t, err)
	labels, err := pred.Predict(collection(4))
	require.NoError(t, err)
	assert.Len(t, labels, 4)

	var summary bytes.Buffer
	Summary(&summary, res)
	assert.Contains(t, summary.String(), "selected "+res.Model.ModelName)
}

func TestRunStopsAtSchemaFailure(t *testing.T) {
	p, store, cfg, run := fixture(t, fakeSource{data: collection(50, "extra")})

	res, err := p.Run(context.Background(), &bytes.Buffer{})
	require.Error(t, err)

	var se *types.StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, types.StageValidation, se.Stage)
	var schemaErr *types.SchemaError
	require.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, []string{"extra"}, schemaErr.Unexpected)

	assert.Equal(t, types.StageValidation, res.FailedStage)
	vcfg := cfg.ValidationConfig(run)
	assert.Contains(t, res.Paths, res.Ingestion.TrainFilePath)
	assert.Contains(t, res.Paths, vcfg.InvalidTrainPath)
	assert.NotContains(t, res.Paths, vcfg.ValidTrainPath)
	assert.False(t, store.Exists(vcfg.DriftReportPath))
	assert.False(t, store.Exists(run.ManifestPath(types.StageTransformation)))
}

func TestRunSourceUnreachable(t *testing.T) {
	down := &types.ConnectivityError{Target: "mongodb", Err: fmt.Errorf("connection refused")}
	p, _, _, _ := fixture(t, fakeSource{err: down})

	res, err := p.Run(context.Background(), &bytes.Buffer{})
	var ce *types.ConnectivityError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, types.StageIngestion, res.FailedStage)
	assert.Empty(t, res.Paths)
}

func TestRunReportsPartialOutputOfFailedStage(t *testing.T) {
	p, store, cfg, run := fixture(t, fakeSource{data: collection(1)})

	var out bytes.Buffer
	res, err := p.Run(context.Background(), &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot split")
	assert.Equal(t, types.StageIngestion, res.FailedStage)

	snapshot := cfg.IngestionConfig(run).FeatureStorePath
	require.True(t, store.Exists(snapshot))
	assert.Equal(t, []string{snapshot}, res.Paths)
	assert.Contains(t, out.String(), snapshot)
}

func TestRunWithoutSource(t *testing.T) {
	contract, err := schema.Parse([]byte(testSchema))
	require.NoError(t, err)
	cfg := types.DefaultPipelineConfig()
	p := New(cfg, types.ExistingRun(cfg, "r"), artifact.NewStore(t.TempDir()), contract)

	_, err = p.Run(context.Background(), &bytes.Buffer{})
	var se *types.StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, types.StageIngestion, se.Stage)
}

func TestRunStageReadsPreviousManifest(t *testing.T) {
	p, _, _, _ := fixture(t, fakeSource{data: collection(50)})
	first, err := p.Run(context.Background(), &bytes.Buffer{})
	require.NoError(t, err)

	res, err := p.RunStage(context.Background(), types.StageModelTrainer, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, first.Transformation, res.Transformation)
	assert.Equal(t, first.Model.ModelName, res.Model.ModelName)
	assert.Empty(t, res.Ingestion.TrainFilePath)
}

func TestResumeWithoutManifest(t *testing.T) {
	p, _, _, _ := fixture(t, fakeSource{data: collection(50)})

	res, err := p.Resume(context.Background(), types.StageTransformation, &bytes.Buffer{})
	var ce *types.ContractError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, types.StageTransformation, res.FailedStage)
}

func TestUnknownStage(t *testing.T) {
	p, _, _, _ := fixture(t, fakeSource{})
	_, err := p.RunStage(context.Background(), "deploy", &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown stage")
}

func TestRunCanceled(t *testing.T) {
	p, _, _, _ := fixture(t, fakeSource{data: collection(50)})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := p.Run(ctx, &bytes.Buffer{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, types.StageIngestion, res.FailedStage)
}
