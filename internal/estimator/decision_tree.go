// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package estimator

import (
	"gonum.org/v1/gonum/mat"
)

// DecisionTree is a single CART classification tree.
type DecisionTree struct {
	Criterion string
	Options   TreeOptions
	Seed      int64

	Tree  *Tree
	Width int
}

func newDecisionTree(p Params, seed int64) (Estimator, error) {
	crit, err := p.oneOf("criterion", "gini", "gini", "entropy", "log_loss")
	if err != nil {
		return nil, err
	}
	splitter, err := p.oneOf("splitter", "best", "best", "random")
	if err != nil {
		return nil, err
	}
	opts, err := treeOptions(p, FeatureRule{Mode: "all"}, 0)
	if err != nil {
		return nil, err
	}
	opts.RandomSplit = splitter == "random"
	return &DecisionTree{Criterion: crit, Options: opts, Seed: seed}, nil
}

// Kind returns "decision_tree".
func (t *DecisionTree) Kind() string { return KindDecisionTree }

// Supports reports whether param is a decision tree hyperparameter.
func (t *DecisionTree) Supports(param string) bool { return Supports(KindDecisionTree, param) }

// Fit grows the tree on every row of x.
func (t *DecisionTree) Fit(x *mat.Dense, y []float64) error {
	if err := checkFit(x, y); err != nil {
		return err
	}
	r, c := x.Dims()
	t.Tree = growTree(x, y, ones(r), allRows(r), t.Options.params(classCriterion(t.Criterion)), newRand(t.Seed))
	t.Width = c
	return nil
}

// Predict returns the majority class of each row's leaf.
func (t *DecisionTree) Predict(x *mat.Dense) ([]float64, error) {
	if err := checkPredict(x, t.Tree != nil, t.Width); err != nil {
		return nil, err
	}
	r, _ := x.Dims()
	out := make([]float64, r)
	for i := range out {
		out[i] = label(t.Tree.value(x.RawRowView(i)))
	}
	return out, nil
}
