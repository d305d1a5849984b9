// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"math"
	"time"
)

// DataIngestionArtifact records the partitions Ingestion produced.
type DataIngestionArtifact struct {
	FeatureStoreFilePath string `json:"feature_store_file_path" yaml:"feature_store_file_path"`
	TrainFilePath        string `json:"train_file_path" yaml:"train_file_path"`
	TestFilePath         string `json:"test_file_path" yaml:"test_file_path"`

	// TrainRows and TestRows are the partition sizes.
	TrainRows int `json:"train_rows" yaml:"train_rows"`
	TestRows  int `json:"test_rows" yaml:"test_rows"`
}

// DataValidationArtifact records the outcome of Validation. On success the
// valid paths and the drift report are set; on failure only the invalid paths.
type DataValidationArtifact struct {
	ValidationStatus     bool   `json:"validation_status" yaml:"validation_status"`
	ValidTrainFilePath   string `json:"valid_train_file_path,omitempty" yaml:"valid_train_file_path,omitempty"`
	ValidTestFilePath    string `json:"valid_test_file_path,omitempty" yaml:"valid_test_file_path,omitempty"`
	InvalidTrainFilePath string `json:"invalid_train_file_path,omitempty" yaml:"invalid_train_file_path,omitempty"`
	InvalidTestFilePath  string `json:"invalid_test_file_path,omitempty" yaml:"invalid_test_file_path,omitempty"`
	DriftReportFilePath  string `json:"drift_report_file_path,omitempty" yaml:"drift_report_file_path,omitempty"`
}

// ColumnDrift is the drift verdict for one numeric column.
type ColumnDrift struct {
	Column string `json:"column" yaml:"column"`

	// Statistic is the two-sample Kolmogorov-Smirnov statistic D.
	Statistic float64 `json:"statistic" yaml:"statistic"`

	// PValue is the asymptotic p-value for D.
	PValue float64 `json:"p_value" yaml:"p_value"`

	// DriftDetected is true when PValue < the report threshold.
	DriftDetected bool `json:"drift_status" yaml:"drift_status"`
}

// DriftReport maps columns to drift verdicts comparing train and test. It is
// produced once per run and is advisory: drift never fails validation.
type DriftReport struct {
	RunID     string        `json:"run_id" yaml:"run_id"`
	Threshold float64       `json:"threshold" yaml:"threshold"`
	CreatedAt time.Time     `json:"created_at" yaml:"created_at"`
	Columns   []ColumnDrift `json:"columns" yaml:"columns"`
}

// Column returns the verdict for name.
func (r DriftReport) Column(name string) (ColumnDrift, bool) {
	for _, c := range r.Columns {
		if c.Column == name {
			return c, true
		}
	}
	return ColumnDrift{}, false
}

// Drifted lists the columns flagged as drifted, in report order.
func (r DriftReport) Drifted() []string {
	var out []string
	for _, c := range r.Columns {
		if c.DriftDetected {
			out = append(out, c.Column)
		}
	}
	return out
}

// Check reports a malformed drift report: a threshold outside (0,1), an
// unnamed or duplicated column, a p-value outside [0,1], or a flag that
// disagrees with the threshold.
func (r DriftReport) Check() error {
	if !(r.Threshold > 0 && r.Threshold < 1) {
		return fmt.Errorf("threshold %v outside (0,1)", r.Threshold)
	}
	seen := make(map[string]bool, len(r.Columns))
	for _, c := range r.Columns {
		if c.Column == "" {
			return fmt.Errorf("unnamed column entry")
		}
		if seen[c.Column] {
			return fmt.Errorf("duplicate column %q", c.Column)
		}
		seen[c.Column] = true
		if math.IsNaN(c.PValue) || c.PValue < 0 || c.PValue > 1 {
			return fmt.Errorf("column %q: p-value %v outside [0,1]", c.Column, c.PValue)
		}
		if c.DriftDetected != (c.PValue < r.Threshold) {
			return fmt.Errorf("column %q: drift flag disagrees with p-value %v", c.Column, c.PValue)
		}
	}
	return nil
}

// DataTransformationArtifact records the numeric arrays and the fitted
// Transformer. Each array holds the feature matrix with the encoded target
// appended as the last column.
type DataTransformationArtifact struct {
	TransformedObjectFilePath string   `json:"transformed_object_file_path" yaml:"transformed_object_file_path"`
	TransformedTrainFilePath  string   `json:"transformed_train_file_path" yaml:"transformed_train_file_path"`
	TransformedTestFilePath   string   `json:"transformed_test_file_path" yaml:"transformed_test_file_path"`
	Features                  []string `json:"features" yaml:"features"`
}

// ClassificationMetricArtifact holds binary classification metrics.
type ClassificationMetricArtifact struct {
	F1Score        float64 `json:"f1_score" yaml:"f1_score"`
	PrecisionScore float64 `json:"precision_score" yaml:"precision_score"`
	RecallScore    float64 `json:"recall_score" yaml:"recall_score"`
	Accuracy       float64 `json:"accuracy" yaml:"accuracy"`
}

// CandidateStatus is the outcome of training one candidate.
type CandidateStatus string

const (
	CandidateTrained CandidateStatus = "trained"
	CandidateFailed  CandidateStatus = "failed"
)

// CandidateResult is one row of the candidate report.
type CandidateResult struct {
	Name   string          `json:"name" yaml:"name"`
	Kind   string          `json:"kind" yaml:"kind"`
	Status CandidateStatus `json:"status" yaml:"status"`

	// BestParams is the configuration refit on the full train partition.
	BestParams map[string]any `json:"best_params,omitempty" yaml:"best_params,omitempty"`

	// CVScore is the mean cross-validated accuracy of BestParams. It drives
	// the search only; promotion compares TestScore.
	CVScore float64 `json:"cv_score" yaml:"cv_score"`

	// TestScore is held-out test accuracy, the promotion score.
	TestScore float64 `json:"test_score" yaml:"test_score"`

	// Combinations is how many grid points were cross-validated (0 for a plain fit).
	Combinations int `json:"combinations" yaml:"combinations"`

	// Search is "grid", "random", or "none".
	Search string `json:"search" yaml:"search"`

	Duration time.Duration `json:"duration" yaml:"duration"`
	Error    string        `json:"error,omitempty" yaml:"error,omitempty"`
}

// ModelTrainerArtifact is the pipeline's terminal output.
type ModelTrainerArtifact struct {
	ModelName            string                       `json:"model_name" yaml:"model_name"`
	TrainedModelFilePath string                       `json:"trained_model_file_path" yaml:"trained_model_file_path"`
	FinalModelFilePath   string                       `json:"final_model_file_path" yaml:"final_model_file_path"`
	TrainMetricArtifact  ClassificationMetricArtifact `json:"train_metric_artifact" yaml:"train_metric_artifact"`
	TestMetricArtifact   ClassificationMetricArtifact `json:"test_metric_artifact" yaml:"test_metric_artifact"`
	Candidates           []CandidateResult            `json:"candidates" yaml:"candidates"`
}
