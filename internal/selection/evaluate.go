// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package selection trains the candidate classifiers, searches their
// hyperparameter grids with cross-validation on the train partition, and
// selects the winner by held-out test accuracy.
package selection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/pdiddy/webshield/internal/estimator"
	"github.com/pdiddy/webshield/internal/metrics"
	"github.com/pdiddy/webshield/pkg/types"
)

// Search modes recorded in the candidate report.
const (
	SearchGrid   = "grid"
	SearchRandom = "random"
	SearchNone   = "none"
)

// Data is the numeric train and test partitions.
type Data struct {
	XTrain *mat.Dense
	YTrain []float64
	XTest  *mat.Dense
	YTest  []float64
}

func (d Data) check() error {
	if d.XTrain == nil || d.XTest == nil {
		return fmt.Errorf("missing train or test matrix")
	}
	r, c := d.XTrain.Dims()
	if len(d.YTrain) != r {
		return &types.ShapeError{Op: "train targets", Want: r, Got: len(d.YTrain)}
	}
	tr, tc := d.XTest.Dims()
	if len(d.YTest) != tr {
		return &types.ShapeError{Op: "test targets", Want: tr, Got: len(d.YTest)}
	}
	if tc != c {
		return &types.ShapeError{Op: "test features", Want: c, Got: tc}
	}
	return nil
}

// Options controls the search.
type Options struct {
	CVFolds         int
	Workers         int
	Timeout         time.Duration
	MaxCombinations int
	Seed            int64
}

// Evaluation is the outcome of one candidate. Model is nil when the
// candidate failed.
type Evaluation struct {
	Result types.CandidateResult
	Model  estimator.Estimator
}

// Report holds one Evaluation per candidate in declaration order.
type Report []Evaluation

// Scores maps each trained candidate's name to its held-out test accuracy.
func (r Report) Scores() map[string]float64 {
	out := make(map[string]float64, len(r))
	for _, e := range r {
		if e.Result.Status == types.CandidateTrained {
			out[e.Result.Name] = e.Result.TestScore
		}
	}
	return out
}

// Results returns the candidate report rows.
func (r Report) Results() []types.CandidateResult {
	out := make([]types.CandidateResult, len(r))
	for i, e := range r {
		out[i] = e.Result
	}
	return out
}

// Failures returns the CandidateFailure of every failed candidate.
func (r Report) Failures() []error {
	var out []error
	for _, e := range r {
		if e.Result.Status == types.CandidateFailed {
			out = append(out, &types.CandidateFailure{Candidate: e.Result.Name, Err: errors.New(e.Result.Error)})
		}
	}
	return out
}

// Find returns the evaluation named name.
func (r Report) Find(name string) (Evaluation, bool) {
	for _, e := range r {
		if e.Result.Name == name {
			return e, true
		}
	}
	return Evaluation{}, false
}

// EvaluateModels searches every candidate concurrently, at most
// opts.Workers at a time. Each candidate's best configuration by mean CV
// accuracy is refit on the full train partition and scored on the test
// partition. A failing candidate is recorded and never stops the others.
// The report lists candidates in declaration order.
func EvaluateModels(ctx context.Context, data Data, candidates []types.CandidateConfig, opts Options, logger *slog.Logger) (Report, error) {
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no candidates configured")
	}
	seen := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		if c.Name == "" {
			return nil, fmt.Errorf("candidate of kind %q has no name", c.Kind)
		}
		if seen[c.Name] {
			return nil, fmt.Errorf("duplicate candidate name %q", c.Name)
		}
		seen[c.Name] = true
	}
	if err := data.check(); err != nil {
		return nil, err
	}
	if opts.CVFolds == 0 {
		opts.CVFolds = 3
	}
	workers := opts.Workers
	if workers <= 0 || workers > len(candidates) {
		workers = len(candidates)
	}

	folds, err := StratifiedFolds(data.YTrain, opts.CVFolds)
	if err != nil {
		return nil, err
	}

	report := make(Report, len(candidates))
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for i, c := range candidates {
		wg.Add(1)
		go func(i int, c types.CandidateConfig) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			start := time.Now()
			eval := evaluate(ctx, data, folds, c, opts)
			eval.Result.Duration = time.Since(start).Round(time.Millisecond)
			report[i] = eval

			if eval.Result.Status == types.CandidateFailed {
				logger.Warn("candidate failed", "candidate", c.Name, "error", eval.Result.Error)
				return
			}
			logger.Info("candidate evaluated",
				"candidate", c.Name,
				"search", eval.Result.Search,
				"combinations", eval.Result.Combinations,
				"cv_score", eval.Result.CVScore,
				"test_score", eval.Result.TestScore,
				"duration", eval.Result.Duration)
		}(i, c)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

// evaluate runs one candidate's search, refit, and test scoring. Panics
// inside an estimator become a failure of this candidate only.
func evaluate(ctx context.Context, data Data, folds [][]int, c types.CandidateConfig, opts Options) (eval Evaluation) {
	eval.Result = types.CandidateResult{Name: c.Name, Kind: c.Kind}
	fail := func(err error) Evaluation {
		eval.Result.Status = types.CandidateFailed
		eval.Result.Error = err.Error()
		eval.Model = nil
		return eval
	}
	defer func() {
		if r := recover(); r != nil {
			eval = fail(fmt.Errorf("panic: %v", r))
		}
	}()

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	best, cvScore, combos, mode, err := search(ctx, data, folds, c, opts)
	if err != nil {
		return fail(err)
	}
	eval.Result.BestParams = best
	eval.Result.CVScore = cvScore
	eval.Result.Combinations = combos
	eval.Result.Search = mode

	if err := ctx.Err(); err != nil {
		return fail(err)
	}
	model, err := estimator.New(c.Kind, best, opts.Seed)
	if err != nil {
		return fail(err)
	}
	if err := model.Fit(data.XTrain, data.YTrain); err != nil {
		return fail(fmt.Errorf("refit: %w", err))
	}
	pred, err := model.Predict(data.XTest)
	if err != nil {
		return fail(fmt.Errorf("scoring: %w", err))
	}
	score, err := metrics.Accuracy(data.YTest, pred)
	if err != nil {
		return fail(err)
	}

	eval.Result.Status = types.CandidateTrained
	eval.Result.TestScore = score
	eval.Model = model
	return eval
}

// search returns the grid point with the highest mean CV accuracy. Earlier
// points win ties. An empty grid skips the search and returns no params.
func search(ctx context.Context, data Data, folds [][]int, c types.CandidateConfig, opts Options) (estimator.Params, float64, int, string, error) {
	if _, err := estimator.New(c.Kind, nil, opts.Seed); err != nil {
		return nil, 0, 0, "", err
	}
	grid, err := canonicalGrid(c.Kind, c.Grid)
	if err != nil {
		return nil, 0, 0, "", err
	}
	combos, err := Expand(grid)
	if err != nil {
		return nil, 0, 0, "", err
	}
	if len(combos) == 0 {
		return estimator.Params{}, 0, 0, SearchNone, nil
	}

	mode := SearchGrid
	if opts.MaxCombinations > 0 && len(combos) > opts.MaxCombinations {
		combos = Sample(combos, opts.MaxCombinations, opts.Seed)
		mode = SearchRandom
	}

	var best estimator.Params
	bestScore := -1.0
	for _, p := range combos {
		score, err := CrossValidate(ctx, c.Kind, p, opts.Seed, data.XTrain, data.YTrain, folds)
		if err != nil {
			return nil, 0, 0, "", fmt.Errorf("params %v: %w", p, err)
		}
		if score > bestScore {
			best, bestScore = p, score
		}
	}
	return best, bestScore, len(combos), mode, nil
}

// canonicalGrid renames grid parameters to their registered spelling.
func canonicalGrid(kind string, grid map[string][]any) (map[string][]any, error) {
	out := make(map[string][]any, len(grid))
	for _, name := range slices.Sorted(maps.Keys(grid)) {
		canon, ok := estimator.Canonical(kind, name)
		if !ok {
			return nil, fmt.Errorf("%s does not support parameter %q", kind, name)
		}
		if _, dup := out[canon]; dup {
			return nil, fmt.Errorf("%s parameter %q given more than once", kind, canon)
		}
		out[canon] = grid[name]
	}
	return out, nil
}

// SelectBest returns the name of the trained candidate with the highest
// test score. Ties go to the candidate declared first. When every candidate
// failed, the error joins every CandidateFailure.
func SelectBest(report Report) (string, error) {
	best := -1
	for i, e := range report {
		if e.Result.Status != types.CandidateTrained {
			continue
		}
		if best < 0 || e.Result.TestScore > report[best].Result.TestScore {
			best = i
		}
	}
	if best < 0 {
		failures := report.Failures()
		if len(failures) == 0 {
			return "", fmt.Errorf("no candidates evaluated")
		}
		return "", fmt.Errorf("every candidate failed: %w", errors.Join(failures...))
	}
	return report[best].Result.Name, nil
}
