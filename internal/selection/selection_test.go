// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package selection

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/pdiddy/webshield/internal/artifact"
	"github.com/pdiddy/webshield/internal/estimator"
	"github.com/pdiddy/webshield/internal/predictor"
	"github.com/pdiddy/webshield/internal/schema"
	"github.com/pdiddy/webshield/internal/tracking"
	"github.com/pdiddy/webshield/internal/transform"
	"github.com/pdiddy/webshield/pkg/types"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// matrix returns n rows of two features where class 1 is x0 >= n/2.
func matrix(n, offset int) (*mat.Dense, []float64) {
	x := mat.NewDense(n, 2, nil)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		x.Set(i, 0, float64(i+offset))
		x.Set(i, 1, float64((i*7)%5))
		if i >= n/2 {
			y[i] = 1
		}
	}
	return x, y
}

func testData() Data {
	xTr, yTr := matrix(60, 0)
	xTe, yTe := matrix(20, 0)
	for i := 0; i < 20; i++ {
		xTe.Set(i, 0, xTe.At(i, 0)*3)
	}
	return Data{XTrain: xTr, YTrain: yTr, XTest: xTe, YTest: yTe}
}

func testOptions() Options {
	return Options{CVFolds: 3, Workers: 2, MaxCombinations: 24, Seed: 42}
}

// --- grid ---

func TestExpand(t *testing.T) {
	combos, err := Expand(map[string][]any{
		"b": {1, 2},
		"a": {"x", "y", "z"},
	})
	require.NoError(t, err)
	require.Len(t, combos, 6)
	assert.Equal(t, estimator.Params{"a": "x", "b": 1}, combos[0])
	assert.Equal(t, estimator.Params{"a": "x", "b": 2}, combos[1])
	assert.Equal(t, estimator.Params{"a": "z", "b": 2}, combos[5])

	empty, err := Expand(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = Expand(map[string][]any{"a": {}})
	assert.Error(t, err)
}

func TestSample(t *testing.T) {
	combos, err := Expand(DefaultCandidates()[2].Grid)
	require.NoError(t, err)
	assert.Len(t, combos, 2*4*5*2*2*6)

	a := Sample(combos, 10, 42)
	b := Sample(combos, 10, 42)
	assert.Len(t, a, 10)
	assert.Equal(t, a, b)
	assert.Equal(t, combos, Sample(combos, 0, 42))
	assert.Equal(t, combos[:3], Sample(combos[:3], 5, 42))
}

func TestStratifiedFolds(t *testing.T) {
	y := []float64{0, 0, 0, 0, 0, 0, 1, 1, 1}
	folds, err := StratifiedFolds(y, 3)
	require.NoError(t, err)
	require.Len(t, folds, 3)

	seen := map[int]bool{}
	for _, f := range folds {
		pos := 0
		for _, i := range f {
			assert.False(t, seen[i])
			seen[i] = true
			if y[i] == 1 {
				pos++
			}
		}
		assert.Equal(t, 1, pos)
		assert.Len(t, f, 3)
	}
	assert.Len(t, seen, len(y))

	_, err = StratifiedFolds(y, 1)
	assert.Error(t, err)
	_, err = StratifiedFolds(y[:2], 3)
	assert.Error(t, err)
}

func TestStratifiedFoldsMoreFoldsThanClassRows(t *testing.T) {
	_, err := StratifiedFolds([]float64{0, 0, 0, 0, 1, 1, 1, 1}, 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")

	folds, err := StratifiedFolds([]float64{0, 0, 0, 0, 1, 1, 1, 1}, 4)
	require.NoError(t, err)
	for _, f := range folds {
		assert.Len(t, f, 2)
	}
}

func TestEvaluateModelsRejectsTooManyFolds(t *testing.T) {
	x, y := matrix(8, 0)
	data := Data{XTrain: x, YTrain: y, XTest: x, YTest: y}
	opts := testOptions()
	opts.CVFolds = 5
	candidates := []types.CandidateConfig{{Name: "Decision Tree", Kind: estimator.KindDecisionTree, Grid: map[string][]any{"criterion": {"gini"}}}}

	report, err := EvaluateModels(context.Background(), data, candidates, opts, quietLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "5 folds")
	assert.Nil(t, report)
}

// --- evaluation ---

func TestEvaluateModelsPreservesDeclarationOrder(t *testing.T) {
	candidates := []types.CandidateConfig{
		{Name: "Logistic Regression", Kind: estimator.KindLogisticRegression},
		{Name: "Decision Tree", Kind: estimator.KindDecisionTree, Grid: map[string][]any{"criterion": {"gini", "entropy"}}},
		{Name: "AdaBoost", Kind: estimator.KindAdaBoost, Grid: map[string][]any{"n_estimators": {4, 8}}},
	}
	report, err := EvaluateModels(context.Background(), testData(), candidates, testOptions(), quietLogger())
	require.NoError(t, err)
	require.Len(t, report, 3)
	for i, c := range candidates {
		assert.Equal(t, c.Name, report[i].Result.Name)
		assert.Equal(t, types.CandidateTrained, report[i].Result.Status, report[i].Result.Error)
		assert.NotNil(t, report[i].Model)
		assert.GreaterOrEqual(t, report[i].Result.TestScore, 0.0)
		assert.LessOrEqual(t, report[i].Result.TestScore, 1.0)
		assert.LessOrEqual(t, report[i].Result.CVScore, 1.0)
	}
	assert.Len(t, report.Scores(), 3)
	assert.Equal(t, SearchGrid, report[1].Result.Search)
	assert.Equal(t, 2, report[1].Result.Combinations)
	assert.Greater(t, report[1].Result.CVScore, 0.0)
}

func TestEmptyGridIsPlainFit(t *testing.T) {
	candidates := []types.CandidateConfig{{Name: "Logistic Regression", Kind: estimator.KindLogisticRegression, Grid: map[string][]any{}}}
	report, err := EvaluateModels(context.Background(), testData(), candidates, testOptions(), quietLogger())
	require.NoError(t, err)

	r := report[0].Result
	assert.Equal(t, types.CandidateTrained, r.Status)
	assert.Equal(t, SearchNone, r.Search)
	assert.Equal(t, 0, r.Combinations)
	assert.Empty(t, r.BestParams)
	assert.Equal(t, 0.0, r.CVScore)
	assert.GreaterOrEqual(t, r.TestScore, 0.0)
	assert.LessOrEqual(t, r.TestScore, 1.0)
	assert.Greater(t, r.TestScore, 0.5)
}

func TestGridParamNamesIgnoreCase(t *testing.T) {
	candidates := []types.CandidateConfig{{Name: "Logistic Regression", Kind: estimator.KindLogisticRegression, Grid: map[string][]any{"c": {0.1, 1.0}}}}
	report, err := EvaluateModels(context.Background(), testData(), candidates, testOptions(), quietLogger())
	require.NoError(t, err)

	r := report[0].Result
	require.Equal(t, types.CandidateTrained, r.Status, r.Error)
	assert.Equal(t, 2, r.Combinations)
	assert.Contains(t, r.BestParams, "C")
	assert.NotContains(t, r.BestParams, "c")

	dup := []types.CandidateConfig{{Name: "Logistic Regression", Kind: estimator.KindLogisticRegression, Grid: map[string][]any{"c": {0.1}, "C": {1.0}}}}
	report, err = EvaluateModels(context.Background(), testData(), dup, testOptions(), quietLogger())
	require.NoError(t, err)
	assert.Equal(t, types.CandidateFailed, report[0].Result.Status)
	assert.Contains(t, report[0].Result.Error, "more than once")
}

func TestCandidateFailureIsIsolated(t *testing.T) {
	candidates := []types.CandidateConfig{
		{Name: "Broken", Kind: estimator.KindDecisionTree, Grid: map[string][]any{"n_neighbors": {3}}},
		{Name: "Unknown", Kind: "svm"},
		{Name: "Decision Tree", Kind: estimator.KindDecisionTree},
	}
	report, err := EvaluateModels(context.Background(), testData(), candidates, testOptions(), quietLogger())
	require.NoError(t, err)

	assert.Equal(t, types.CandidateFailed, report[0].Result.Status)
	assert.Contains(t, report[0].Result.Error, "n_neighbors")
	assert.Nil(t, report[0].Model)
	assert.Equal(t, types.CandidateFailed, report[1].Result.Status)
	assert.Equal(t, types.CandidateTrained, report[2].Result.Status)

	name, err := SelectBest(report)
	require.NoError(t, err)
	assert.Equal(t, "Decision Tree", name)
	assert.Len(t, report.Failures(), 2)
}

func TestRandomizedSearchCapsCombinations(t *testing.T) {
	opts := testOptions()
	opts.MaxCombinations = 2
	candidates := []types.CandidateConfig{{
		Name: "AdaBoost",
		Kind: estimator.KindAdaBoost,
		Grid: map[string][]any{"learning_rate": {.1, .5, 1.0}, "n_estimators": {2, 4}},
	}}
	report, err := EvaluateModels(context.Background(), testData(), candidates, opts, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, SearchRandom, report[0].Result.Search)
	assert.Equal(t, 2, report[0].Result.Combinations)
}

func TestSearchTimeoutFailsCandidate(t *testing.T) {
	opts := testOptions()
	opts.Timeout = time.Nanosecond
	candidates := []types.CandidateConfig{{Name: "Decision Tree", Kind: estimator.KindDecisionTree, Grid: map[string][]any{"criterion": {"gini"}}}}

	report, err := EvaluateModels(context.Background(), testData(), candidates, opts, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, types.CandidateFailed, report[0].Result.Status)
	assert.Contains(t, report[0].Result.Error, "deadline exceeded")
}

func TestEvaluateModelsRejectsDuplicateNames(t *testing.T) {
	candidates := []types.CandidateConfig{
		{Name: "A", Kind: estimator.KindDecisionTree},
		{Name: "A", Kind: estimator.KindAdaBoost},
	}
	_, err := EvaluateModels(context.Background(), testData(), candidates, testOptions(), quietLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestEvaluateModelsShapeMismatch(t *testing.T) {
	d := testData()
	d.YTest = d.YTest[:5]
	_, err := EvaluateModels(context.Background(), d, DefaultCandidates(), testOptions(), quietLogger())
	var se *types.ShapeError
	require.True(t, errors.As(err, &se))
}

// --- selection ---

func trained(name string, score float64) Evaluation {
	return Evaluation{Result: types.CandidateResult{Name: name, Status: types.CandidateTrained, TestScore: score}}
}

func TestSelectBestTieGoesToFirstDeclared(t *testing.T) {
	report := Report{trained("Random Forest", 0.9), trained("Decision Tree", 0.95), trained("AdaBoost", 0.95)}
	for i := 0; i < 5; i++ {
		name, err := SelectBest(report)
		require.NoError(t, err)
		assert.Equal(t, "Decision Tree", name)
	}

	swapped := Report{report[2], report[1], report[0]}
	name, err := SelectBest(swapped)
	require.NoError(t, err)
	assert.Equal(t, "AdaBoost", name)

	pair := Report{trained("A", 0.91), trained("B", 0.91)}
	for i := 0; i < 5; i++ {
		name, err := SelectBest(pair)
		require.NoError(t, err)
		assert.Equal(t, "A", name)
	}
}

func TestSelectBestTieFromIdenticalCandidates(t *testing.T) {
	candidates := []types.CandidateConfig{
		{Name: "First", Kind: estimator.KindDecisionTree},
		{Name: "Second", Kind: estimator.KindDecisionTree},
	}
	report, err := EvaluateModels(context.Background(), testData(), candidates, testOptions(), quietLogger())
	require.NoError(t, err)
	require.Equal(t, report[0].Result.TestScore, report[1].Result.TestScore)

	name, err := SelectBest(report)
	require.NoError(t, err)
	assert.Equal(t, "First", name)
}

func TestSelectBestAllFailed(t *testing.T) {
	report := Report{
		{Result: types.CandidateResult{Name: "A", Status: types.CandidateFailed, Error: "boom"}},
		{Result: types.CandidateResult{Name: "B", Status: types.CandidateFailed, Error: "bang"}},
	}
	_, err := SelectBest(report)
	require.Error(t, err)
	var cf *types.CandidateFailure
	require.True(t, errors.As(err, &cf))
	assert.Contains(t, err.Error(), "boom")
	assert.Contains(t, err.Error(), "bang")
}

// --- stage ---

type recordingSink struct {
	mu      sync.Mutex
	metrics map[string]float64
	models  []string
	failing bool
	onStart func()
}

func (s *recordingSink) StartRun(context.Context, string, map[string]string) (tracking.Run, error) {
	if s.onStart != nil {
		s.onStart()
	}
	if s.failing {
		return nil, errors.New("tracking server down")
	}
	return &recordingRun{s: s}, nil
}

func (s *recordingSink) Close() error { return nil }

type recordingRun struct{ s *recordingSink }

func (r *recordingRun) ID() string { return "run" }

func (r *recordingRun) LogMetric(_ context.Context, key string, value float64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.metrics == nil {
		r.s.metrics = map[string]float64{}
	}
	r.s.metrics[key] = value
	return nil
}

func (r *recordingRun) LogParam(context.Context, string, string) error { return nil }

func (r *recordingRun) LogModel(_ context.Context, m tracking.ModelInfo) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.models = append(r.s.models, m.RegisteredName)
	return nil
}

func (r *recordingRun) End(context.Context, tracking.Status) error { return nil }

const stageSchema = `
target: Result
columns:
  - name: a
    type: float64
  - name: b
    type: float64
  - name: Result
    type: int64
`

func stageFixture(t *testing.T) (*artifact.Store, types.DataTransformationArtifact, types.TrainerConfig) {
	t.Helper()
	store := artifact.NewStore(t.TempDir())

	d := types.Dataset{Columns: []string{"a", "b", "Result"}}
	for i := 0; i < 40; i++ {
		label := -1.0
		if i >= 20 {
			label = 1
		}
		d.Records = append(d.Records, types.Record{"a": float64(i), "b": float64(i % 3), "Result": label})
	}
	contract, err := schema.Parse([]byte(stageSchema))
	require.NoError(t, err)
	td, err := transform.FitTransform(d, d, contract, 3)
	require.NoError(t, err)
	arr, err := transform.Join(td.XTrain, td.YTrain)
	require.NoError(t, err)

	in := types.DataTransformationArtifact{
		TransformedObjectFilePath: "transformed_object/preprocessing.gob",
		TransformedTrainFilePath:  "transformed/train.bin",
		TransformedTestFilePath:   "transformed/test.bin",
		Features:                  []string{"a", "b"},
	}
	require.NoError(t, store.WriteMatrix(in.TransformedTrainFilePath, arr))
	require.NoError(t, store.WriteMatrix(in.TransformedTestFilePath, arr))
	require.NoError(t, store.WriteObject(in.TransformedObjectFilePath, td.Transformer))

	cfg := types.DefaultPipelineConfig()
	cfg.Trainer.Candidates = []types.CandidateConfig{
		{Name: "Decision Tree", Kind: estimator.KindDecisionTree, Grid: map[string][]any{"criterion": {"gini", "entropy"}}},
		{Name: "Logistic Regression", Kind: estimator.KindLogisticRegression},
	}
	return store, in, cfg.TrainerConfig(types.ExistingRun(cfg, "r1"))
}

func TestRunPersistsWinner(t *testing.T) {
	store, in, cfg := stageFixture(t)
	sink := &recordingSink{}

	out, err := Run(context.Background(), store, in, cfg, sink, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, "Decision Tree", out.ModelName)
	assert.Equal(t, 1.0, out.TrainMetricArtifact.F1Score)
	require.Len(t, out.Candidates, 2)

	for _, key := range []string{"train_f1_score", "train_precision", "train_recall", "test_f1_score", "test_precision", "test_recall"} {
		assert.Contains(t, sink.metrics, key)
	}
	assert.Equal(t, []string{"Decision Tree_train", "Decision Tree_test"}, sink.models)

	p, err := predictor.Load(store, out.TrainedModelFilePath)
	require.NoError(t, err)
	assert.Equal(t, "Decision Tree", p.Name)

	final, err := LoadFinalModel(store, out.FinalModelFilePath)
	require.NoError(t, err)
	assert.Equal(t, estimator.KindDecisionTree, final.Kind())
	assert.True(t, store.Exists(cfg.FinalPreprocessorPath))

	var results []types.CandidateResult
	require.NoError(t, store.ReadYAML(cfg.ReportPath, &results))
	assert.Len(t, results, 2)

	var manifest types.ModelTrainerArtifact
	require.NoError(t, store.ReadYAML(cfg.ManifestPath, &manifest))
	assert.Equal(t, out.ModelName, manifest.ModelName)
}

func TestRunSurvivesTrackingFailure(t *testing.T) {
	store, in, cfg := stageFixture(t)
	out, err := Run(context.Background(), store, in, cfg, &recordingSink{failing: true}, quietLogger())
	require.NoError(t, err)
	assert.True(t, store.Exists(out.TrainedModelFilePath))
}

func TestRunPersistsModelBeforeTracking(t *testing.T) {
	store, in, cfg := stageFixture(t)
	starts := 0
	sink := &recordingSink{onStart: func() {
		starts++
		assert.True(t, store.Exists(cfg.ModelPath))
		assert.True(t, store.Exists(cfg.FinalModelPath))
		assert.True(t, store.Exists(cfg.FinalPreprocessorPath))
	}}

	_, err := Run(context.Background(), store, in, cfg, sink, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, 2, starts)
}

func TestRunAllCandidatesFail(t *testing.T) {
	store, in, cfg := stageFixture(t)
	cfg.Candidates = []types.CandidateConfig{{Name: "Bad", Kind: "svm"}}

	_, err := Run(context.Background(), store, in, cfg, tracking.Nop{}, quietLogger())
	var cf *types.CandidateFailure
	require.True(t, errors.As(err, &cf))
	assert.False(t, store.Exists(cfg.ModelPath))
}
