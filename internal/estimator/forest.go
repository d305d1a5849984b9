// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package estimator

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// RandomForest averages the class-1 probabilities of bagged trees that
// consider a random feature subset at every split.
type RandomForest struct {
	Criterion   string
	NEstimators int
	Bootstrap   bool
	Options     TreeOptions
	Seed        int64

	Trees []*Tree
	Width int
}

func newRandomForest(p Params, seed int64) (Estimator, error) {
	crit, err := p.oneOf("criterion", "gini", "gini", "entropy", "log_loss")
	if err != nil {
		return nil, err
	}
	n, err := p.Int("n_estimators", 100)
	if err != nil {
		return nil, err
	}
	if n < 1 {
		return nil, fmt.Errorf("n_estimators must be positive, got %d", n)
	}
	bootstrap, err := p.Bool("bootstrap", true)
	if err != nil {
		return nil, err
	}
	opts, err := treeOptions(p, FeatureRule{Mode: "sqrt"}, 0)
	if err != nil {
		return nil, err
	}
	return &RandomForest{Criterion: crit, NEstimators: n, Bootstrap: bootstrap, Options: opts, Seed: seed}, nil
}

// Kind returns "random_forest".
func (f *RandomForest) Kind() string { return KindRandomForest }

// Supports reports whether param is a random forest hyperparameter.
func (f *RandomForest) Supports(param string) bool { return Supports(KindRandomForest, param) }

// Fit grows NEstimators trees, each on a bootstrap sample when Bootstrap is set.
func (f *RandomForest) Fit(x *mat.Dense, y []float64) error {
	if err := checkFit(x, y); err != nil {
		return err
	}
	r, c := x.Dims()
	rng := newRand(f.Seed)
	w := ones(r)
	params := f.Options.params(classCriterion(f.Criterion))

	trees := make([]*Tree, f.NEstimators)
	for t := range trees {
		idx := allRows(r)
		if f.Bootstrap {
			for i := range idx {
				idx[i] = rng.IntN(r)
			}
		}
		trees[t] = growTree(x, y, w, idx, params, newRand(rng.Int64()))
	}
	f.Trees = trees
	f.Width = c
	return nil
}

// Predict returns the class with the higher mean probability across trees.
func (f *RandomForest) Predict(x *mat.Dense) ([]float64, error) {
	if err := checkPredict(x, len(f.Trees) > 0, f.Width); err != nil {
		return nil, err
	}
	r, _ := x.Dims()
	out := make([]float64, r)
	for i := range out {
		row := x.RawRowView(i)
		var p float64
		for _, t := range f.Trees {
			p += t.value(row)
		}
		out[i] = label(p / float64(len(f.Trees)))
	}
	return out, nil
}
