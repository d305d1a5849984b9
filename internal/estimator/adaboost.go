// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package estimator

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// AdaBoost is discrete SAMME boosting over decision stumps.
type AdaBoost struct {
	LearningRate float64
	NEstimators  int
	Seed         int64

	Stumps  []*Tree
	Weights []float64
	Width   int
}

func newAdaBoost(p Params, seed int64) (Estimator, error) {
	lr, err := p.Float("learning_rate", 1.0)
	if err != nil {
		return nil, err
	}
	n, err := p.Int("n_estimators", 50)
	if err != nil {
		return nil, err
	}
	if lr <= 0 {
		return nil, fmt.Errorf("learning_rate must be positive, got %v", lr)
	}
	if n < 1 {
		return nil, fmt.Errorf("n_estimators must be positive, got %d", n)
	}
	return &AdaBoost{LearningRate: lr, NEstimators: n, Seed: seed}, nil
}

// Kind returns "adaboost".
func (a *AdaBoost) Kind() string { return KindAdaBoost }

// Supports reports whether param is an AdaBoost hyperparameter.
func (a *AdaBoost) Supports(param string) bool { return Supports(KindAdaBoost, param) }

// Fit boosts up to NEstimators stumps. Boosting stops early when a stump
// classifies the weighted sample perfectly or no better than chance.
func (a *AdaBoost) Fit(x *mat.Dense, y []float64) error {
	if err := checkFit(x, y); err != nil {
		return err
	}
	r, c := x.Dims()
	rng := newRand(a.Seed)
	stump := TreeOptions{MaxFeatures: FeatureRule{Mode: "all"}, MaxDepth: 1, MinSamplesSplit: 2, MinSamplesLeaf: 1}.params(critGini)

	w := make([]float64, r)
	for i := range w {
		w[i] = 1 / float64(r)
	}
	rows := allRows(r)
	miss := make([]bool, r)

	a.Stumps = a.Stumps[:0]
	a.Weights = a.Weights[:0]
	for m := 0; m < a.NEstimators; m++ {
		tree := growTree(x, y, w, rows, stump, newRand(rng.Int64()))

		var errW, total float64
		for i := 0; i < r; i++ {
			miss[i] = label(tree.value(x.RawRowView(i))) != y[i]
			total += w[i]
			if miss[i] {
				errW += w[i]
			}
		}
		rate := errW / total

		if rate <= 0 {
			a.Stumps = append(a.Stumps, tree)
			a.Weights = append(a.Weights, 1)
			break
		}
		if rate >= 0.5 {
			if len(a.Stumps) == 0 {
				a.Stumps = append(a.Stumps, tree)
				a.Weights = append(a.Weights, 1)
			}
			break
		}

		alpha := a.LearningRate * math.Log((1-rate)/rate)
		a.Stumps = append(a.Stumps, tree)
		a.Weights = append(a.Weights, alpha)

		var sum float64
		for i := range w {
			if miss[i] {
				w[i] *= math.Exp(alpha)
			}
			sum += w[i]
		}
		for i := range w {
			w[i] /= sum
		}
	}
	a.Width = c
	return nil
}

// Predict returns the sign of the weighted stump vote.
func (a *AdaBoost) Predict(x *mat.Dense) ([]float64, error) {
	if err := checkPredict(x, len(a.Stumps) > 0, a.Width); err != nil {
		return nil, err
	}
	r, _ := x.Dims()
	out := make([]float64, r)
	for i := range out {
		row := x.RawRowView(i)
		var vote float64
		for s, t := range a.Stumps {
			if label(t.value(row)) == 1 {
				vote += a.Weights[s]
			} else {
				vote -= a.Weights[s]
			}
		}
		if vote > 0 {
			out[i] = 1
		}
	}
	return out, nil
}
