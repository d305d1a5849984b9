// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package transform turns validated tabular partitions into numeric arrays.
// The Transformer is fit once on the train partition; the test partition and
// later prediction inputs only flow through Transform.
package transform

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/pdiddy/webshield/internal/artifact"
	"github.com/pdiddy/webshield/internal/schema"
	"github.com/pdiddy/webshield/internal/validate"
	"github.com/pdiddy/webshield/pkg/types"
)

// DefaultNeighbors is k for the KNN imputer.
const DefaultNeighbors = 3

// Transformer maps raw records to a feature matrix with missing values
// imputed. It is immutable after fitting and safe for concurrent use.
type Transformer struct {
	features []string
	imputer  *knnImputer
}

// fit builds a Transformer over features from the records of train.
func fit(train types.Dataset, features []string, k int) (*Transformer, error) {
	if len(features) == 0 {
		return nil, fmt.Errorf("no feature columns")
	}
	if train.Len() == 0 {
		return nil, fmt.Errorf("cannot fit on an empty dataset")
	}
	if k <= 0 {
		k = DefaultNeighbors
	}
	raw, err := rawMatrix(train, features)
	if err != nil {
		return nil, err
	}
	return &Transformer{
		features: append([]string(nil), features...),
		imputer:  fitKNN(raw, k),
	}, nil
}

// Features returns the feature columns in matrix column order.
func (t *Transformer) Features() []string {
	return append([]string(nil), t.features...)
}

// Transform returns the imputed feature matrix of d, one row per record.
// Columns of d outside the feature set are ignored.
func (t *Transformer) Transform(d types.Dataset) (*mat.Dense, error) {
	if d.Len() == 0 {
		return nil, fmt.Errorf("cannot transform an empty dataset")
	}
	raw, err := rawMatrix(d, t.features)
	if err != nil {
		return nil, err
	}
	r, c := raw.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		out.SetRow(i, t.imputer.impute(raw.RawRowView(i)))
	}
	return out, nil
}

// rawMatrix extracts features from d with missing cells as NaN.
func rawMatrix(d types.Dataset, features []string) (*mat.Dense, error) {
	m := mat.NewDense(d.Len(), len(features), nil)
	for i, rec := range d.Records {
		for j, name := range features {
			v, ok := types.AsFloat(rec[name])
			if !ok {
				return nil, fmt.Errorf("row %d: column %s: non-numeric value %v", i, name, rec[name])
			}
			m.Set(i, j, v)
		}
	}
	return m, nil
}

type transformerState struct {
	Features []string
	K        int
	Rows     int
	Cols     int
	Data     []float64
	Means    []float64
}

// GobEncode serializes the fitted state.
func (t *Transformer) GobEncode() ([]byte, error) {
	r, c := t.imputer.data.Dims()
	st := transformerState{
		Features: t.features,
		K:        t.imputer.k,
		Rows:     r,
		Cols:     c,
		Data:     mat.DenseCopyOf(t.imputer.data).RawMatrix().Data,
		Means:    t.imputer.means,
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(st); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GobDecode restores a Transformer written by GobEncode.
func (t *Transformer) GobDecode(data []byte) error {
	var st transformerState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&st); err != nil {
		return err
	}
	if st.Rows*st.Cols != len(st.Data) || st.Cols != len(st.Features) || len(st.Means) != st.Cols {
		return fmt.Errorf("inconsistent transformer state: %dx%d with %d values", st.Rows, st.Cols, len(st.Data))
	}
	t.features = st.Features
	t.imputer = &knnImputer{k: st.K, data: mat.NewDense(st.Rows, st.Cols, st.Data), means: st.Means}
	return nil
}

// EncodeTarget maps a raw label to the class index: -1 and 0 become 0, 1
// becomes 1. Any other value is an error.
func EncodeTarget(v any) (float64, error) {
	f, ok := types.AsFloat(v)
	if !ok || math.IsNaN(f) {
		return 0, fmt.Errorf("target value %v is not a label", v)
	}
	switch f {
	case -1, 0:
		return 0, nil
	case 1:
		return 1, nil
	}
	return 0, fmt.Errorf("target value %v outside {-1, 0, 1}", v)
}

// Targets encodes the target column of d.
func Targets(d types.Dataset, target string) ([]float64, error) {
	y := make([]float64, d.Len())
	for i, rec := range d.Records {
		v, err := EncodeTarget(rec[target])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		y[i] = v
	}
	return y, nil
}

// TransformedDataset holds the numeric arrays of both partitions and the
// fitted Transformer.
type TransformedDataset struct {
	Features    []string
	XTrain      *mat.Dense
	YTrain      []float64
	XTest       *mat.Dense
	YTest       []float64
	Transformer *Transformer
}

// FitTransform fits a Transformer on train's feature columns, applies it to
// both partitions, and encodes the target column.
func FitTransform(train, test types.Dataset, contract schema.Contract, k int) (TransformedDataset, error) {
	features := contract.Features()
	tr, err := fit(train, features, k)
	if err != nil {
		return TransformedDataset{}, fmt.Errorf("fitting transformer: %w", err)
	}
	xTrain, err := tr.Transform(train)
	if err != nil {
		return TransformedDataset{}, fmt.Errorf("transforming train: %w", err)
	}
	xTest, err := tr.Transform(test)
	if err != nil {
		return TransformedDataset{}, fmt.Errorf("transforming test: %w", err)
	}
	yTrain, err := Targets(train, contract.Target)
	if err != nil {
		return TransformedDataset{}, fmt.Errorf("encoding train target: %w", err)
	}
	yTest, err := Targets(test, contract.Target)
	if err != nil {
		return TransformedDataset{}, fmt.Errorf("encoding test target: %w", err)
	}
	return TransformedDataset{
		Features:    features,
		XTrain:      xTrain,
		YTrain:      yTrain,
		XTest:       xTest,
		YTest:       yTest,
		Transformer: tr,
	}, nil
}

// Join appends y to x as its last column.
func Join(x *mat.Dense, y []float64) (*mat.Dense, error) {
	r, c := x.Dims()
	if len(y) != r {
		return nil, &types.ShapeError{Op: "join", Want: r, Got: len(y)}
	}
	out := mat.NewDense(r, c+1, nil)
	out.Slice(0, r, 0, c).(*mat.Dense).Copy(x)
	out.SetCol(c, y)
	return out, nil
}

// Split separates a joined array into features and its last-column target.
func Split(arr *mat.Dense) (*mat.Dense, []float64, error) {
	r, c := arr.Dims()
	if c < 2 {
		return nil, nil, &types.ShapeError{Op: "split", Want: 2, Got: c}
	}
	x := mat.DenseCopyOf(arr.Slice(0, r, 0, c-1))
	return x, mat.Col(nil, c-1, arr), nil
}

// Run executes the transformation stage. It requires a successful validation
// artifact with a well-formed drift report, fits on the validated train
// partition, and persists both arrays, the Transformer, and the manifest.
func Run(ctx context.Context, store *artifact.Store, in types.DataValidationArtifact, contract schema.Contract, cfg types.TransformationConfig, logger *slog.Logger) (types.DataTransformationArtifact, error) {
	if !in.ValidationStatus {
		return types.DataTransformationArtifact{}, &types.ContractError{Artifact: "validation", Err: fmt.Errorf("validation did not succeed")}
	}
	report, err := validate.LoadDriftReport(store, in.DriftReportFilePath)
	if err != nil {
		return types.DataTransformationArtifact{}, err
	}
	if drifted := report.Drifted(); len(drifted) > 0 {
		logger.Warn("transforming despite drift", "columns", drifted)
	}

	train, err := store.ReadTable(in.ValidTrainFilePath)
	if err != nil {
		return types.DataTransformationArtifact{}, fmt.Errorf("reading validated train: %w", err)
	}
	test, err := store.ReadTable(in.ValidTestFilePath)
	if err != nil {
		return types.DataTransformationArtifact{}, fmt.Errorf("reading validated test: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return types.DataTransformationArtifact{}, err
	}

	td, err := FitTransform(train, test, contract, cfg.Neighbors)
	if err != nil {
		return types.DataTransformationArtifact{}, err
	}

	trainArr, err := Join(td.XTrain, td.YTrain)
	if err != nil {
		return types.DataTransformationArtifact{}, err
	}
	testArr, err := Join(td.XTest, td.YTest)
	if err != nil {
		return types.DataTransformationArtifact{}, err
	}
	if err := store.WriteMatrix(cfg.TransformedTrainPath, trainArr); err != nil {
		return types.DataTransformationArtifact{}, fmt.Errorf("writing train array: %w", err)
	}
	if err := store.WriteMatrix(cfg.TransformedTestPath, testArr); err != nil {
		return types.DataTransformationArtifact{}, fmt.Errorf("writing test array: %w", err)
	}
	if err := store.WriteObject(cfg.TransformerPath, td.Transformer); err != nil {
		return types.DataTransformationArtifact{}, fmt.Errorf("writing transformer: %w", err)
	}

	out := types.DataTransformationArtifact{
		TransformedObjectFilePath: cfg.TransformerPath,
		TransformedTrainFilePath:  cfg.TransformedTrainPath,
		TransformedTestFilePath:   cfg.TransformedTestPath,
		Features:                  td.Features,
	}
	if err := store.WriteYAML(cfg.ManifestPath, out); err != nil {
		return types.DataTransformationArtifact{}, fmt.Errorf("writing transformation manifest: %w", err)
	}

	r, c := trainArr.Dims()
	logger.Info("transformation complete", "train_rows", r, "test_rows", len(td.YTest), "columns", c)
	return out, nil
}

// LoadTransformer reads a Transformer written by Run.
func LoadTransformer(store *artifact.Store, path string) (*Transformer, error) {
	var t Transformer
	if err := store.ReadObject(path, &t); err != nil {
		return nil, err
	}
	return &t, nil
}
