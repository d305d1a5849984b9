// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"strings"
)

// Stage names used in artifact paths, error wrapping, and progress output.
const (
	StageIngestion      = "data_ingestion"
	StageValidation     = "data_validation"
	StageTransformation = "data_transformation"
	StageModelTrainer   = "model_trainer"
)

// ConnectivityError reports that the source collection or a sink could not be
// reached. It is fatal for the stage that raised it; no retry is attempted.
type ConnectivityError struct {
	// Target names the unreachable service (e.g. "mongodb", "mlflow").
	Target string
	Err    error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("connecting to %s: %v", e.Target, e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// SchemaError reports a dataset that does not satisfy the schema contract.
// All offending columns are collected before the error is raised.
type SchemaError struct {
	// Partition is "train" or "test", or empty for a column-count error
	// spanning both partitions.
	Partition string

	// WantColumns and GotColumns are set when the column counts differ.
	WantColumns int
	GotColumns  int

	// Missing lists schema columns absent from the dataset.
	Missing []string

	// Unexpected lists dataset columns absent from the schema.
	Unexpected []string

	// Mistyped lists columns whose values do not match the declared type.
	Mistyped []string
}

func (e *SchemaError) Error() string {
	var parts []string
	if e.WantColumns != e.GotColumns {
		parts = append(parts, fmt.Sprintf("column count %d, schema requires %d", e.GotColumns, e.WantColumns))
	}
	if len(e.Missing) > 0 {
		parts = append(parts, "missing columns: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Unexpected) > 0 {
		parts = append(parts, "unexpected columns: "+strings.Join(e.Unexpected, ", "))
	}
	if len(e.Mistyped) > 0 {
		parts = append(parts, "mistyped columns: "+strings.Join(e.Mistyped, ", "))
	}
	prefix := "schema violation"
	if e.Partition != "" {
		prefix += " in " + e.Partition + " partition"
	}
	return prefix + ": " + strings.Join(parts, "; ")
}

// Empty reports whether the error carries no violation.
func (e *SchemaError) Empty() bool {
	return e.WantColumns == e.GotColumns && len(e.Missing) == 0 &&
		len(e.Unexpected) == 0 && len(e.Mistyped) == 0
}

// Columns returns every offending column name.
func (e *SchemaError) Columns() []string {
	out := make([]string, 0, len(e.Missing)+len(e.Unexpected)+len(e.Mistyped))
	out = append(out, e.Missing...)
	out = append(out, e.Unexpected...)
	return append(out, e.Mistyped...)
}

// SchemaErrors joins per-partition schema errors into one error.
type SchemaErrors []*SchemaError

func (es SchemaErrors) Error() string {
	msgs := make([]string, len(es))
	for i, e := range es {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// Unwrap exposes each partition error to errors.As.
func (es SchemaErrors) Unwrap() []error {
	out := make([]error, len(es))
	for i, e := range es {
		out[i] = e
	}
	return out
}

// ShapeError reports vectors or matrices whose lengths disagree. It always
// indicates an upstream bug.
type ShapeError struct {
	Op   string
	Want int
	Got  int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s: shape mismatch: want length %d, got %d", e.Op, e.Want, e.Got)
}

// CandidateFailure reports that one candidate's search or fit failed. It is
// recorded in the candidate report and never aborts evaluation on its own.
type CandidateFailure struct {
	Candidate string
	Err       error
}

func (e *CandidateFailure) Error() string {
	return fmt.Sprintf("candidate %s failed: %v", e.Candidate, e.Err)
}

func (e *CandidateFailure) Unwrap() error { return e.Err }

// TrackingError reports a metric tracking sink failure. Callers log it and
// continue.
type TrackingError struct {
	Op  string
	Err error
}

func (e *TrackingError) Error() string {
	return fmt.Sprintf("tracking %s: %v", e.Op, e.Err)
}

func (e *TrackingError) Unwrap() error { return e.Err }

// ContractError reports a missing or malformed artifact that a stage
// requires from its predecessor.
type ContractError struct {
	Artifact string
	Err      error
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("artifact contract violated for %s: %v", e.Artifact, e.Err)
}

func (e *ContractError) Unwrap() error { return e.Err }

// StageError is the single top-level error the pipeline driver surfaces. It
// names the stage at which the run halted.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
