// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package validate checks the train and test partitions against the schema
// contract and measures train/test drift per numeric column. Schema
// violations are fatal; drift is recorded and never fails validation.
package validate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pdiddy/webshield/internal/artifact"
	"github.com/pdiddy/webshield/internal/schema"
	"github.com/pdiddy/webshield/pkg/types"
)

// DefaultDriftThreshold is the KS p-value below which a column is flagged.
const DefaultDriftThreshold = 0.05

// Validate checks train and test against the contract. When both partitions
// satisfy it, Validate returns true and a DriftReport for every numeric
// column present in both. Otherwise it returns false, an empty report, and a
// types.SchemaErrors naming every offending column of both partitions.
func Validate(train, test types.Dataset, contract schema.Contract, threshold float64) (bool, types.DriftReport, error) {
	var errs types.SchemaErrors
	if e := contract.Check(train, "train"); e != nil {
		errs = append(errs, e)
	}
	if e := contract.Check(test, "test"); e != nil {
		errs = append(errs, e)
	}
	if len(errs) > 0 {
		return false, types.DriftReport{}, errs
	}
	return true, Drift(train, test, contract, threshold), nil
}

// Drift compares the train and test distribution of every numeric contract
// column with the two-sample KS test. Columns with no values in either
// partition are omitted. Drift never produces an error.
func Drift(train, test types.Dataset, contract schema.Contract, threshold float64) types.DriftReport {
	if !(threshold > 0 && threshold < 1) {
		threshold = DefaultDriftThreshold
	}
	report := types.DriftReport{
		Threshold: threshold,
		CreatedAt: time.Now().UTC(),
	}
	for _, name := range contract.NumericColumns() {
		if !train.HasColumn(name) || !test.HasColumn(name) {
			continue
		}
		a, _ := train.Numeric(name)
		b, _ := test.Numeric(name)
		if len(a) == 0 || len(b) == 0 {
			continue
		}
		d, p := KSTest(a, b)
		report.Columns = append(report.Columns, types.ColumnDrift{
			Column:        name,
			Statistic:     d,
			PValue:        p,
			DriftDetected: p < threshold,
		})
	}
	return report
}

// Run executes the validation stage for one run. It reads the ingested
// partitions, validates them, and copies them unchanged into the validated
// area together with the drift report, or into the invalid area on a schema
// violation, in which case the SchemaErrors are returned after the copy.
func Run(ctx context.Context, store *artifact.Store, in types.DataIngestionArtifact, contract schema.Contract, cfg types.ValidationConfig, runID string, logger *slog.Logger) (types.DataValidationArtifact, error) {
	train, err := store.ReadTable(in.TrainFilePath)
	if err != nil {
		return types.DataValidationArtifact{}, fmt.Errorf("reading train partition: %w", err)
	}
	test, err := store.ReadTable(in.TestFilePath)
	if err != nil {
		return types.DataValidationArtifact{}, fmt.Errorf("reading test partition: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return types.DataValidationArtifact{}, err
	}

	ok, report, verr := Validate(train, test, contract, cfg.DriftThreshold)
	if !ok {
		out := types.DataValidationArtifact{
			ValidationStatus:     false,
			InvalidTrainFilePath: cfg.InvalidTrainPath,
			InvalidTestFilePath:  cfg.InvalidTestPath,
		}
		if err := copyPair(store, in, cfg.InvalidTrainPath, cfg.InvalidTestPath); err != nil {
			logger.Error("copying invalid partitions", "error", err)
		}
		if err := store.WriteYAML(cfg.ManifestPath, out); err != nil {
			logger.Error("writing validation manifest", "error", err)
		}
		logger.Error("schema validation failed", "error", verr)
		return out, verr
	}

	report.RunID = runID
	if err := copyPair(store, in, cfg.ValidTrainPath, cfg.ValidTestPath); err != nil {
		return types.DataValidationArtifact{}, err
	}
	if err := store.WriteYAML(cfg.DriftReportPath, report); err != nil {
		return types.DataValidationArtifact{}, fmt.Errorf("writing drift report: %w", err)
	}

	out := types.DataValidationArtifact{
		ValidationStatus:    true,
		ValidTrainFilePath:  cfg.ValidTrainPath,
		ValidTestFilePath:   cfg.ValidTestPath,
		DriftReportFilePath: cfg.DriftReportPath,
	}
	if err := store.WriteYAML(cfg.ManifestPath, out); err != nil {
		return types.DataValidationArtifact{}, fmt.Errorf("writing validation manifest: %w", err)
	}

	if drifted := report.Drifted(); len(drifted) > 0 {
		logger.Warn("distribution drift detected", "columns", drifted, "threshold", report.Threshold)
	}
	logger.Info("validation complete", "columns_tested", len(report.Columns), "drift_report", cfg.DriftReportPath)
	return out, nil
}

// LoadDriftReport reads and checks a persisted drift report. A missing or
// malformed report is a ContractError.
func LoadDriftReport(store *artifact.Store, path string) (types.DriftReport, error) {
	if path == "" {
		return types.DriftReport{}, &types.ContractError{Artifact: "drift report", Err: fmt.Errorf("no drift report recorded")}
	}
	var report types.DriftReport
	if err := store.ReadYAML(path, &report); err != nil {
		return types.DriftReport{}, err
	}
	if err := report.Check(); err != nil {
		return types.DriftReport{}, &types.ContractError{Artifact: path, Err: err}
	}
	return report, nil
}

func copyPair(store *artifact.Store, in types.DataIngestionArtifact, trainDst, testDst string) error {
	if err := store.Copy(in.TrainFilePath, trainDst); err != nil {
		return fmt.Errorf("copying train partition: %w", err)
	}
	if err := store.Copy(in.TestFilePath, testDst); err != nil {
		return fmt.Errorf("copying test partition: %w", err)
	}
	return nil
}
