// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package selection

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/pdiddy/webshield/internal/estimator"
	"github.com/pdiddy/webshield/internal/metrics"
)

// StratifiedFolds assigns the rows of each class to k folds round-robin in
// row order and returns each fold's held-out row indices, ascending. It is an
// error for k to exceed the size of the largest class, which would leave a
// fold empty.
func StratifiedFolds(y []float64, k int) ([][]int, error) {
	if k < 2 {
		return nil, fmt.Errorf("cross-validation needs at least 2 folds, got %d", k)
	}
	if len(y) < k {
		return nil, fmt.Errorf("cannot split %d rows into %d folds", len(y), k)
	}
	folds := make([][]int, k)
	next := map[float64]int{}
	for i, v := range y {
		f := next[v] % k
		next[v]++
		folds[f] = append(folds[f], i)
	}
	for f, fold := range folds {
		if len(fold) == 0 {
			return nil, fmt.Errorf("cannot split into %d folds: fold %d is empty, no class has %d rows", k, f, k)
		}
	}
	return folds, nil
}

// rows returns the submatrix of x and subvector of y at idx.
func rows(x *mat.Dense, y []float64, idx []int) (*mat.Dense, []float64) {
	_, c := x.Dims()
	sx := mat.NewDense(len(idx), c, nil)
	sy := make([]float64, len(idx))
	for i, r := range idx {
		sx.SetRow(i, x.RawRowView(r))
		sy[i] = y[r]
	}
	return sx, sy
}

// complement returns the rows 0..n-1 not in held (held must be ascending).
func complement(n int, held []int) []int {
	out := make([]int, 0, n-len(held))
	j := 0
	for i := 0; i < n; i++ {
		if j < len(held) && held[j] == i {
			j++
			continue
		}
		out = append(out, i)
	}
	return out
}

// CrossValidate returns the mean held-out accuracy of kind configured by p
// over folds. It stops early when ctx is done.
func CrossValidate(ctx context.Context, kind string, p estimator.Params, seed int64, x *mat.Dense, y []float64, folds [][]int) (float64, error) {
	n := len(y)
	scores := make([]float64, 0, len(folds))
	for _, held := range folds {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		est, err := estimator.New(kind, p, seed)
		if err != nil {
			return 0, err
		}
		trX, trY := rows(x, y, complement(n, held))
		teX, teY := rows(x, y, held)
		if err := est.Fit(trX, trY); err != nil {
			return 0, err
		}
		pred, err := est.Predict(teX)
		if err != nil {
			return 0, err
		}
		acc, err := metrics.Accuracy(teY, pred)
		if err != nil {
			return 0, err
		}
		scores = append(scores, acc)
	}
	return stat.Mean(scores, nil), nil
}
