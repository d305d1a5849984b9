// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package tracking records training runs, metrics, and logged models in a
// tracking sink. Tracking is best-effort: callers log a TrackingError and
// continue.
package tracking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pdiddy/webshield/pkg/types"
)

// Status is the terminal state of a run.
type Status string

const (
	StatusFinished Status = "FINISHED"
	StatusFailed   Status = "FAILED"
)

// ModelInfo describes a model logged to a run.
type ModelInfo struct {
	// Name is the artifact path the model is logged under.
	Name string

	// RegisteredName is the model registry entry, "<model>_<stage>".
	RegisteredName string

	Kind         string
	ArtifactPath string
	Features     []string

	// InputExample is one transformed training row.
	InputExample []float64
}

// Run is an open tracking run.
type Run interface {
	ID() string
	LogMetric(ctx context.Context, key string, value float64) error
	LogParam(ctx context.Context, key, value string) error
	LogModel(ctx context.Context, m ModelInfo) error
	End(ctx context.Context, status Status) error
}

// Sink opens tracking runs.
type Sink interface {
	StartRun(ctx context.Context, name string, tags map[string]string) (Run, error)
	Close() error
}

// WithRun opens a run, calls fn, and always ends the run: FINISHED when fn
// succeeds, FAILED otherwise. Every failure is returned as a TrackingError.
func WithRun(ctx context.Context, sink Sink, name string, tags map[string]string, fn func(Run) error) error {
	run, err := sink.StartRun(ctx, name, tags)
	if err != nil {
		return asTrackingError("start run", err)
	}

	fnErr := fn(run)
	status := StatusFinished
	if fnErr != nil {
		status = StatusFailed
	}
	endErr := run.End(ctx, status)

	if fnErr != nil {
		return asTrackingError("log", errors.Join(fnErr, endErr))
	}
	if endErr != nil {
		return asTrackingError("end run", endErr)
	}
	return nil
}

func asTrackingError(op string, err error) error {
	var te *types.TrackingError
	if errors.As(err, &te) {
		return err
	}
	return &types.TrackingError{Op: op, Err: err}
}

// New returns the sink selected by cfg. The caller must Close it.
func New(cfg types.TrackingConfig, logger *slog.Logger) (Sink, error) {
	switch cfg.Backend {
	case types.TrackingNone, "":
		return Nop{}, nil
	case types.TrackingSQLite:
		s, err := OpenSQLite(cfg.DBPath, cfg.ExperimentID)
		if err != nil {
			return nil, err
		}
		return s, nil
	case types.TrackingMLflow:
		m, err := NewMLflow(cfg, logger)
		if err != nil {
			return nil, err
		}
		return m, nil
	}
	return nil, fmt.Errorf("unknown tracking backend %q (valid: %s, %s, %s)",
		cfg.Backend, types.TrackingNone, types.TrackingSQLite, types.TrackingMLflow)
}

// Nop discards everything.
type Nop struct{}

// StartRun returns a run that records nothing.
func (Nop) StartRun(context.Context, string, map[string]string) (Run, error) { return nopRun{}, nil }

// Close does nothing.
func (Nop) Close() error { return nil }

type nopRun struct{}

func (nopRun) ID() string { return "" }
func (nopRun) LogMetric(context.Context, string, float64) error { return nil }
func (nopRun) LogParam(context.Context, string, string) error { return nil }
func (nopRun) LogModel(context.Context, ModelInfo) error { return nil }
func (nopRun) End(context.Context, Status) error { return nil }
