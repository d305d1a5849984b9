// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package predictor bundles a fitted Transformer with a fitted estimator so
// raw feature records can be classified in one call.
package predictor

import (
	"fmt"

	"github.com/pdiddy/webshield/internal/artifact"
	"github.com/pdiddy/webshield/internal/estimator"
	"github.com/pdiddy/webshield/internal/transform"
	"github.com/pdiddy/webshield/pkg/types"
)

// PredictionColumn names the column Annotate appends.
const PredictionColumn = "predicted_column"

// Predictor maps raw records to class labels. Both parts are read-only after
// construction, so a Predictor is safe for concurrent use.
type Predictor struct {
	Name        string
	Transformer *transform.Transformer
	Model       estimator.Estimator
}

// New returns a Predictor for a fitted transformer and model.
func New(name string, t *transform.Transformer, m estimator.Estimator) (*Predictor, error) {
	if t == nil || m == nil {
		return nil, fmt.Errorf("predictor requires a transformer and a model")
	}
	return &Predictor{Name: name, Transformer: t, Model: m}, nil
}

// Predict transforms d and returns one class label (0 or 1) per record.
func (p *Predictor) Predict(d types.Dataset) ([]float64, error) {
	x, err := p.Transformer.Transform(d)
	if err != nil {
		return nil, fmt.Errorf("transforming input: %w", err)
	}
	return p.Model.Predict(x)
}

// Annotate returns a copy of d with the predicted label appended as
// PredictionColumn.
func (p *Predictor) Annotate(d types.Dataset) (types.Dataset, error) {
	y, err := p.Predict(d)
	if err != nil {
		return types.Dataset{}, err
	}
	out := types.Dataset{
		Columns: append(append([]string(nil), d.Columns...), PredictionColumn),
		Records: make([]types.Record, len(d.Records)),
	}
	for i, r := range d.Records {
		rec := make(types.Record, len(r)+1)
		for k, v := range r {
			rec[k] = v
		}
		rec[PredictionColumn] = y[i]
		out.Records[i] = rec
	}
	return out, nil
}

// Save writes p to rel in store.
func (p *Predictor) Save(store *artifact.Store, rel string) error {
	return store.WriteObject(rel, p)
}

// Load reads a Predictor written by Save.
func Load(store *artifact.Store, rel string) (*Predictor, error) {
	var p Predictor
	if err := store.ReadObject(rel, &p); err != nil {
		return nil, err
	}
	if p.Transformer == nil || p.Model == nil {
		return nil, &types.ContractError{Artifact: rel, Err: fmt.Errorf("incomplete predictor")}
	}
	return &p, nil
}
