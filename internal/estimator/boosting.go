// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package estimator

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// GradientBoosting fits an additive model of shallow regression trees to the
// negative gradient of the binomial deviance ("log_loss") or the exponential
// loss, with Newton-step leaf values.
type GradientBoosting struct {
	Loss         string
	LearningRate float64
	NEstimators  int
	Subsample    float64
	Criterion    string
	Options      TreeOptions
	Seed         int64

	Init  float64
	Trees []*Tree
	Width int
}

func newGradientBoosting(p Params, seed int64) (Estimator, error) {
	loss, err := p.oneOf("loss", "log_loss", "log_loss", "exponential")
	if err != nil {
		return nil, err
	}
	lr, err := p.Float("learning_rate", 0.1)
	if err != nil {
		return nil, err
	}
	n, err := p.Int("n_estimators", 100)
	if err != nil {
		return nil, err
	}
	sub, err := p.Float("subsample", 1.0)
	if err != nil {
		return nil, err
	}
	crit, err := p.oneOf("criterion", "friedman_mse", "friedman_mse", "squared_error")
	if err != nil {
		return nil, err
	}
	opts, err := treeOptions(p, FeatureRule{Mode: "all"}, 3)
	if err != nil {
		return nil, err
	}
	switch {
	case lr <= 0:
		return nil, fmt.Errorf("learning_rate must be positive, got %v", lr)
	case n < 1:
		return nil, fmt.Errorf("n_estimators must be positive, got %d", n)
	case sub <= 0 || sub > 1:
		return nil, fmt.Errorf("subsample must be in (0, 1], got %v", sub)
	}
	return &GradientBoosting{
		Loss:         loss,
		LearningRate: lr,
		NEstimators:  n,
		Subsample:    sub,
		Criterion:    crit,
		Options:      opts,
		Seed:         seed,
	}, nil
}

// Kind returns "gradient_boosting".
func (g *GradientBoosting) Kind() string { return KindGradientBoosting }

// Supports reports whether param is a gradient boosting hyperparameter.
func (g *GradientBoosting) Supports(param string) bool { return Supports(KindGradientBoosting, param) }

// Fit runs NEstimators boosting rounds. Both criteria rank splits by squared
// error reduction.
func (g *GradientBoosting) Fit(x *mat.Dense, y []float64) error {
	if err := checkFit(x, y); err != nil {
		return err
	}
	r, c := x.Dims()
	rng := newRand(g.Seed)
	params := g.Options.params(critMSE)

	var pos float64
	for _, v := range y {
		pos += v
	}
	prior := math.Min(math.Max(pos/float64(r), 1e-6), 1-1e-6)
	g.Init = math.Log(prior / (1 - prior))
	if g.Loss == "exponential" {
		g.Init /= 2
	}

	raw := make([]float64, r)
	for i := range raw {
		raw[i] = g.Init
	}
	resid := make([]float64, r)
	w := ones(r)
	nSub := max(1, int(g.Subsample*float64(r)))

	g.Trees = make([]*Tree, 0, g.NEstimators)
	for m := 0; m < g.NEstimators; m++ {
		for i := range resid {
			resid[i] = g.gradient(y[i], raw[i])
		}
		idx := allRows(r)
		if nSub < r {
			idx = rng.Perm(r)[:nSub]
		}
		tree := growTree(x, resid, w, idx, params, newRand(rng.Int64()))
		g.updateLeaves(tree, x, y, raw, idx)

		for i := 0; i < r; i++ {
			raw[i] += g.LearningRate * tree.value(x.RawRowView(i))
		}
		g.Trees = append(g.Trees, tree)
	}
	g.Width = c
	return nil
}

// gradient returns the negative gradient of the loss at raw score f.
func (g *GradientBoosting) gradient(y, f float64) float64 {
	if g.Loss == "exponential" {
		s := 2*y - 1
		return s * math.Exp(-s*f)
	}
	return y - sigmoid(f)
}

// updateLeaves replaces each leaf value with a one-step Newton estimate
// computed over the sampled rows that reach it.
func (g *GradientBoosting) updateLeaves(tree *Tree, x *mat.Dense, y, raw []float64, idx []int) {
	num := make([]float64, len(tree.Nodes))
	den := make([]float64, len(tree.Nodes))
	for _, i := range idx {
		leaf := tree.leaf(x.RawRowView(i))
		if g.Loss == "exponential" {
			s := 2*y[i] - 1
			e := math.Exp(-s * raw[i])
			num[leaf] += s * e
			den[leaf] += e
			continue
		}
		p := sigmoid(raw[i])
		num[leaf] += y[i] - p
		den[leaf] += p * (1 - p)
	}
	for n := range tree.Nodes {
		if tree.Nodes[n].Feature >= 0 {
			continue
		}
		if math.Abs(den[n]) < 1e-150 {
			tree.Nodes[n].Value = 0
			continue
		}
		tree.Nodes[n].Value = num[n] / den[n]
	}
}

// Predict thresholds the modeled class-1 probability at 0.5.
func (g *GradientBoosting) Predict(x *mat.Dense) ([]float64, error) {
	if err := checkPredict(x, len(g.Trees) > 0, g.Width); err != nil {
		return nil, err
	}
	r, _ := x.Dims()
	out := make([]float64, r)
	for i := range out {
		row := x.RawRowView(i)
		f := g.Init
		for _, t := range g.Trees {
			f += g.LearningRate * t.value(row)
		}
		if g.Loss == "exponential" {
			f *= 2
		}
		out[i] = label(sigmoid(f))
	}
	return out, nil
}
