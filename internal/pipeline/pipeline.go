// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline runs the training stages in order: ingestion, validation,
// transformation, and model selection. Each stage consumes the artifact of
// the stage before it. The first stage failure stops the run and is returned
// as a StageError together with every artifact path produced so far.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/pdiddy/webshield/internal/artifact"
	"github.com/pdiddy/webshield/internal/ingest"
	"github.com/pdiddy/webshield/internal/schema"
	"github.com/pdiddy/webshield/internal/selection"
	"github.com/pdiddy/webshield/internal/source"
	"github.com/pdiddy/webshield/internal/tracking"
	"github.com/pdiddy/webshield/internal/transform"
	"github.com/pdiddy/webshield/internal/validate"
	"github.com/pdiddy/webshield/pkg/types"
)

// Stages lists the stage names in execution order.
var Stages = []string{
	types.StageIngestion,
	types.StageValidation,
	types.StageTransformation,
	types.StageModelTrainer,
}

// Result holds the outcome of a pipeline run.
type Result struct {
	RunID string

	// FailedStage names the stage that stopped the run; empty on success.
	FailedStage string

	// Paths lists every artifact written by the run, in write order.
	Paths []string

	Ingestion      types.DataIngestionArtifact
	Validation     types.DataValidationArtifact
	Transformation types.DataTransformationArtifact
	Model          types.ModelTrainerArtifact
}

// HasFailures reports whether a stage failed.
func (r Result) HasFailures() bool {
	return r.FailedStage != ""
}

// Pipeline wires the stage dependencies for one run.
type Pipeline struct {
	cfg      types.PipelineConfig
	run      types.RunConfig
	store    *artifact.Store
	src      source.Source
	sink     tracking.Sink
	contract schema.Contract
	logger   *slog.Logger
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithSource sets the ingestion source. Stages after ingestion do not need one.
func WithSource(src source.Source) Option {
	return func(p *Pipeline) { p.src = src }
}

// WithSink sets the tracking sink. The default discards everything.
func WithSink(sink tracking.Sink) Option {
	return func(p *Pipeline) { p.sink = sink }
}

// WithLogger sets the structured logger. The default discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// New returns a Pipeline for run, storing artifacts in store.
func New(cfg types.PipelineConfig, run types.RunConfig, store *artifact.Store, contract schema.Contract, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:      cfg,
		run:      run,
		store:    store,
		contract: contract,
		sink:     tracking.Nop{},
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("run_id", run.RunID)
	return p
}

// Run executes every stage in order and reports produced artifact paths
// on w as they are written.
func (p *Pipeline) Run(ctx context.Context, w io.Writer) (Result, error) {
	return p.runFrom(ctx, types.StageIngestion, w)
}

// Resume executes stage and every stage after it, reading the manifest of
// the stage before it from the run directory.
func (p *Pipeline) Resume(ctx context.Context, stage string, w io.Writer) (Result, error) {
	if !slices.Contains(Stages, stage) {
		return Result{RunID: p.run.RunID}, fmt.Errorf("unknown stage %q", stage)
	}
	return p.runFrom(ctx, stage, w)
}

// RunStage executes stage alone, reading the manifest of the stage before it.
func (p *Pipeline) RunStage(ctx context.Context, stage string, w io.Writer) (Result, error) {
	if !slices.Contains(Stages, stage) {
		return Result{RunID: p.run.RunID}, fmt.Errorf("unknown stage %q", stage)
	}
	return p.execute(ctx, []string{stage}, w)
}

func (p *Pipeline) runFrom(ctx context.Context, stage string, w io.Writer) (Result, error) {
	return p.execute(ctx, Stages[slices.Index(Stages, stage):], w)
}

func (p *Pipeline) execute(ctx context.Context, stages []string, w io.Writer) (Result, error) {
	res := Result{RunID: p.run.RunID}
	if err := p.loadInputs(stages[0], &res); err != nil {
		res.FailedStage = stages[0]
		return res, &types.StageError{Stage: stages[0], Err: err}
	}

	for _, stage := range stages {
		if err := ctx.Err(); err != nil {
			res.FailedStage = stage
			return res, &types.StageError{Stage: stage, Err: err}
		}
		p.logger.Info("stage started", "stage", stage)
		before := len(res.Paths)
		err := p.runStage(ctx, stage, &res)
		for _, path := range res.Paths[before:] {
			fmt.Fprintf(w, "  %s: %s\n", stage, path)
		}
		if err != nil {
			res.FailedStage = stage
			p.logger.Error("stage failed", "stage", stage, "error", err)
			return res, &types.StageError{Stage: stage, Err: err}
		}
		p.logger.Info("stage complete", "stage", stage)
	}
	return res, nil
}

// runStage runs one stage and records what it wrote in res, including the
// partial output of a failed stage.
func (p *Pipeline) runStage(ctx context.Context, stage string, res *Result) error {
	var err error
	switch stage {
	case types.StageIngestion:
		if p.src == nil {
			return fmt.Errorf("no source configured")
		}
		cfg := p.cfg.IngestionConfig(p.run)
		res.Ingestion, err = ingest.Run(ctx, p.src, p.store, cfg, p.logger)
		p.record(res, cfg.FeatureStorePath, cfg.TrainPath, cfg.TestPath, cfg.ManifestPath)
	case types.StageValidation:
		cfg := p.cfg.ValidationConfig(p.run)
		res.Validation, err = validate.Run(ctx, p.store, res.Ingestion, p.contract, cfg, p.run.RunID, p.logger)
		p.record(res, cfg.ValidTrainPath, cfg.ValidTestPath, cfg.InvalidTrainPath, cfg.InvalidTestPath, cfg.DriftReportPath, cfg.ManifestPath)
	case types.StageTransformation:
		cfg := p.cfg.TransformationConfig(p.run)
		res.Transformation, err = transform.Run(ctx, p.store, res.Validation, p.contract, cfg, p.logger)
		p.record(res, cfg.TransformedTrainPath, cfg.TransformedTestPath, cfg.TransformerPath, cfg.ManifestPath)
	case types.StageModelTrainer:
		cfg := p.cfg.TrainerConfig(p.run)
		res.Model, err = selection.Run(ctx, p.store, res.Transformation, cfg, p.sink, p.logger)
		p.record(res, cfg.ReportPath, cfg.ModelPath, cfg.FinalModelPath, cfg.FinalPreprocessorPath, cfg.ManifestPath)
	}
	return err
}

// record appends the paths that exist in the store.
func (p *Pipeline) record(res *Result, paths ...string) {
	for _, path := range paths {
		if path != "" && p.store.Exists(path) && !slices.Contains(res.Paths, path) {
			res.Paths = append(res.Paths, path)
		}
	}
}

// loadInputs reads the manifest of the stage before first into res.
func (p *Pipeline) loadInputs(first string, res *Result) error {
	switch first {
	case types.StageValidation:
		return p.readManifest(types.StageIngestion, &res.Ingestion)
	case types.StageTransformation:
		return p.readManifest(types.StageValidation, &res.Validation)
	case types.StageModelTrainer:
		return p.readManifest(types.StageTransformation, &res.Transformation)
	}
	return nil
}

func (p *Pipeline) readManifest(stage string, v any) error {
	path := p.run.ManifestPath(stage)
	if err := p.store.ReadYAML(path, v); err != nil {
		return fmt.Errorf("reading %s manifest: %w", stage, err)
	}
	return nil
}

// Summary writes a human-readable account of res to w.
func Summary(w io.Writer, res Result) {
	if res.HasFailures() {
		fmt.Fprintf(w, "\nRun %s failed at stage %s (%d artifact(s) written)\n", res.RunID, res.FailedStage, len(res.Paths))
		return
	}
	m := res.Model
	if m.ModelName == "" {
		fmt.Fprintf(w, "\nRun %s complete (%d artifact(s) written)\n", res.RunID, len(res.Paths))
		return
	}
	fmt.Fprintf(w, "\nRun %s complete: selected %s\n", res.RunID, m.ModelName)
	fmt.Fprintf(w, "  train: f1=%.4f precision=%.4f recall=%.4f\n",
		m.TrainMetricArtifact.F1Score, m.TrainMetricArtifact.PrecisionScore, m.TrainMetricArtifact.RecallScore)
	fmt.Fprintf(w, "  test:  f1=%.4f precision=%.4f recall=%.4f\n",
		m.TestMetricArtifact.F1Score, m.TestMetricArtifact.PrecisionScore, m.TestMetricArtifact.RecallScore)
	for _, c := range m.Candidates {
		if c.Status == types.CandidateFailed {
			fmt.Fprintf(w, "  %-20s failed: %s\n", c.Name, c.Error)
			continue
		}
		fmt.Fprintf(w, "  %-20s cv=%.4f test=%.4f (%s, %d combination(s))\n", c.Name, c.CVScore, c.TestScore, c.Search, c.Combinations)
	}
}
