// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package estimator

import (
	"cmp"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	"gonum.org/v1/gonum/mat"
)

// Node is one node of a binary tree stored in a flat slice. A leaf has
// Feature -1. Rows with x[Feature] <= Threshold descend Left.
type Node struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int

	// Value is the weighted mean target of the node's training rows: the
	// class-1 probability for classification trees, the mean for regression
	// trees, or a leaf update assigned after growth.
	Value float64
}

// Tree is a CART tree.
type Tree struct {
	Nodes []Node
}

func (t *Tree) leaf(row []float64) int {
	i := 0
	for t.Nodes[i].Feature >= 0 {
		n := t.Nodes[i]
		if row[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
	return i
}

func (t *Tree) value(row []float64) float64 {
	return t.Nodes[t.leaf(row)].Value
}

// criterion measures node impurity.
type criterion int

const (
	critGini criterion = iota
	critEntropy
	critMSE
)

func classCriterion(name string) criterion {
	if name == "entropy" || name == "log_loss" {
		return critEntropy
	}
	return critGini
}

type treeParams struct {
	crit            criterion
	randomSplit     bool
	features        FeatureRule
	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
}

// stats accumulates weighted sums of a node's targets.
type stats struct {
	n   int
	w   float64
	wy  float64
	wy2 float64
}

func (s *stats) add(y, w float64) {
	s.n++
	s.w += w
	s.wy += w * y
	s.wy2 += w * y * y
}

func (s *stats) sub(y, w float64) {
	s.n--
	s.w -= w
	s.wy -= w * y
	s.wy2 -= w * y * y
}

// impurity returns the node impurity scaled by its weight.
func (s stats) impurity(c criterion) float64 {
	if s.w <= 0 {
		return 0
	}
	mean := s.wy / s.w
	switch c {
	case critMSE:
		return math.Max(0, s.wy2-s.wy*mean)
	case critEntropy:
		return s.w * (xlog2x(mean) + xlog2x(1-mean))
	default:
		return s.w * 2 * mean * (1 - mean)
	}
}

func xlog2x(p float64) float64 {
	if p <= 0 || p >= 1 {
		return 0
	}
	return -p * math.Log2(p)
}

type grower struct {
	p    treeParams
	x    *mat.Dense
	y    []float64
	w    []float64
	rng  *rand.Rand
	tree *Tree
	cols int
}

// growTree fits a tree to rows idx of x. idx may repeat rows.
func growTree(x *mat.Dense, y, w []float64, idx []int, p treeParams, rng *rand.Rand) *Tree {
	_, c := x.Dims()
	if p.minSamplesSplit < 2 {
		p.minSamplesSplit = 2
	}
	if p.minSamplesLeaf < 1 {
		p.minSamplesLeaf = 1
	}
	g := &grower{p: p, x: x, y: y, w: w, rng: rng, tree: &Tree{}, cols: c}
	g.grow(idx, 0)
	return g.tree
}

func (g *grower) nodeStats(idx []int) stats {
	var s stats
	for _, i := range idx {
		s.add(g.y[i], g.w[i])
	}
	return s
}

func (g *grower) grow(idx []int, depth int) int {
	s := g.nodeStats(idx)
	node := len(g.tree.Nodes)
	value := 0.0
	if s.w > 0 {
		value = s.wy / s.w
	}
	g.tree.Nodes = append(g.tree.Nodes, Node{Feature: -1, Left: -1, Right: -1, Value: value})

	if len(idx) < g.p.minSamplesSplit || len(idx) < 2*g.p.minSamplesLeaf {
		return node
	}
	if g.p.maxDepth > 0 && depth >= g.p.maxDepth {
		return node
	}
	if s.impurity(g.p.crit) <= 1e-12*math.Max(1, s.w) {
		return node
	}

	f, thr, ok := g.split(idx, s)
	if !ok {
		return node
	}
	var left, right []int
	for _, i := range idx {
		if g.x.At(i, f) <= thr {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	l := g.grow(left, depth+1)
	r := g.grow(right, depth+1)
	g.tree.Nodes[node] = Node{Feature: f, Threshold: thr, Left: l, Right: r, Value: value}
	return node
}

type sample struct {
	v, y, w float64
}

// split finds the split of idx with the lowest weighted child impurity over
// a random subset of features. Ties keep the first split found.
func (g *grower) split(idx []int, parent stats) (feature int, threshold float64, ok bool) {
	k := g.p.features.Resolve(g.cols)
	candidates := g.rng.Perm(g.cols)[:k]

	best := math.Inf(1)
	buf := make([]sample, len(idx))
	for _, f := range candidates {
		for j, i := range idx {
			buf[j] = sample{v: g.x.At(i, f), y: g.y[i], w: g.w[i]}
		}
		slices.SortFunc(buf, func(a, b sample) int { return cmp.Compare(a.v, b.v) })
		if buf[0].v == buf[len(buf)-1].v {
			continue
		}

		if g.p.randomSplit {
			thr := buf[0].v + g.rng.Float64()*(buf[len(buf)-1].v-buf[0].v)
			if thr >= buf[len(buf)-1].v {
				thr = buf[0].v
			}
			var left stats
			for _, sm := range buf {
				if sm.v > thr {
					break
				}
				left.add(sm.y, sm.w)
			}
			right := parent
			right.n -= left.n
			right.w -= left.w
			right.wy -= left.wy
			right.wy2 -= left.wy2
			if left.n < g.p.minSamplesLeaf || right.n < g.p.minSamplesLeaf {
				continue
			}
			if score := left.impurity(g.p.crit) + right.impurity(g.p.crit); score < best {
				best, feature, threshold, ok = score, f, thr, true
			}
			continue
		}

		var left stats
		right := parent
		for j := 0; j < len(buf)-1; j++ {
			left.add(buf[j].y, buf[j].w)
			right.sub(buf[j].y, buf[j].w)
			if buf[j].v == buf[j+1].v {
				continue
			}
			if left.n < g.p.minSamplesLeaf || right.n < g.p.minSamplesLeaf {
				continue
			}
			score := left.impurity(g.p.crit) + right.impurity(g.p.crit)
			if score < best {
				thr := buf[j].v + (buf[j+1].v-buf[j].v)/2
				if thr >= buf[j+1].v {
					thr = buf[j].v
				}
				best, feature, threshold, ok = score, f, thr, true
			}
		}
	}
	return feature, threshold, ok
}

func allRows(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

func ones(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 1
	}
	return w
}

// TreeOptions holds the tree-shaping hyperparameters shared by the tree kinds.
type TreeOptions struct {
	MaxFeatures     FeatureRule
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	RandomSplit     bool
}

func (o TreeOptions) params(c criterion) treeParams {
	return treeParams{
		crit:            c,
		randomSplit:     o.RandomSplit,
		features:        o.MaxFeatures,
		maxDepth:        o.MaxDepth,
		minSamplesSplit: o.MinSamplesSplit,
		minSamplesLeaf:  o.MinSamplesLeaf,
	}
}

// treeOptions reads max_features, max_depth, min_samples_split and
// min_samples_leaf from p. A max_depth of 0 means unlimited.
func treeOptions(p Params, features FeatureRule, maxDepth int) (TreeOptions, error) {
	var err error
	var o TreeOptions
	if o.MaxFeatures, err = p.features("max_features", features); err != nil {
		return o, err
	}
	if o.MaxDepth, err = p.Int("max_depth", maxDepth); err != nil {
		return o, err
	}
	if o.MinSamplesSplit, err = p.Int("min_samples_split", 2); err != nil {
		return o, err
	}
	if o.MinSamplesLeaf, err = p.Int("min_samples_leaf", 1); err != nil {
		return o, err
	}
	if o.MaxDepth < 0 || o.MinSamplesSplit < 2 || o.MinSamplesLeaf < 1 {
		return o, fmt.Errorf("max_depth must be >= 0, min_samples_split >= 2, min_samples_leaf >= 1")
	}
	return o, nil
}
