// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package estimator

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// LogisticRegression is L2-regularized logistic regression fit by Newton's
// method (iteratively reweighted least squares).
type LogisticRegression struct {
	Penalty      string
	C            float64
	MaxIter      int
	Tol          float64
	FitIntercept bool

	Coef      []float64
	Intercept float64
	Width     int
}

func newLogisticRegression(p Params, _ int64) (Estimator, error) {
	penalty, err := p.oneOf("penalty", "l2", "l2", "none")
	if err != nil {
		return nil, err
	}
	cv, err := p.Float("C", 1.0)
	if err != nil {
		return nil, err
	}
	iter, err := p.Int("max_iter", 100)
	if err != nil {
		return nil, err
	}
	tol, err := p.Float("tol", 1e-4)
	if err != nil {
		return nil, err
	}
	intercept, err := p.Bool("fit_intercept", true)
	if err != nil {
		return nil, err
	}
	if cv <= 0 || iter < 1 || tol <= 0 {
		return nil, fmt.Errorf("C and tol must be positive and max_iter >= 1")
	}
	return &LogisticRegression{Penalty: penalty, C: cv, MaxIter: iter, Tol: tol, FitIntercept: intercept}, nil
}

// Kind returns "logistic_regression".
func (l *LogisticRegression) Kind() string { return KindLogisticRegression }

// Supports reports whether param is a logistic regression hyperparameter.
func (l *LogisticRegression) Supports(param string) bool {
	return Supports(KindLogisticRegression, param)
}

// Fit minimizes the penalized log loss. The intercept is not penalized.
func (l *LogisticRegression) Fit(x *mat.Dense, y []float64) error {
	if err := checkFit(x, y); err != nil {
		return err
	}
	r, c := x.Dims()
	d := c
	if l.FitIntercept {
		d++
	}
	design := mat.NewDense(r, d, nil)
	design.Slice(0, r, 0, c).(*mat.Dense).Copy(x)
	if l.FitIntercept {
		for i := 0; i < r; i++ {
			design.Set(i, c, 1)
		}
	}

	lambda := 1 / l.C
	if l.Penalty == "none" {
		lambda = 1e-8
	}

	beta := mat.NewVecDense(d, nil)
	z := mat.NewVecDense(r, nil)
	resid := mat.NewVecDense(r, nil)
	scaled := mat.NewDense(r, d, nil)
	var grad, step mat.VecDense
	var hess mat.Dense

	for iter := 0; iter < l.MaxIter; iter++ {
		z.MulVec(design, beta)
		for i := 0; i < r; i++ {
			p := sigmoid(z.AtVec(i))
			resid.SetVec(i, p-y[i])
			s := math.Sqrt(math.Max(p*(1-p), 1e-12))
			row := scaled.RawRowView(i)
			copy(row, design.RawRowView(i))
			floats.Scale(s, row)
		}
		grad.MulVec(design.T(), resid)
		hess.Mul(scaled.T(), scaled)
		for j := 0; j < d; j++ {
			reg := lambda
			if l.FitIntercept && j == c {
				reg = 1e-10
			} else {
				grad.SetVec(j, grad.AtVec(j)+lambda*beta.AtVec(j))
			}
			hess.Set(j, j, hess.At(j, j)+reg)
		}
		if err := step.SolveVec(&hess, &grad); err != nil {
			return fmt.Errorf("newton step %d: %w", iter, err)
		}
		beta.SubVec(beta, &step)
		if floats.Norm(step.RawVector().Data, math.Inf(1)) < l.Tol {
			break
		}
	}

	l.Coef = append([]float64(nil), beta.RawVector().Data[:c]...)
	l.Intercept = 0
	if l.FitIntercept {
		l.Intercept = beta.AtVec(c)
	}
	l.Width = c
	return nil
}

// Predict thresholds the modeled class-1 probability at 0.5.
func (l *LogisticRegression) Predict(x *mat.Dense) ([]float64, error) {
	if err := checkPredict(x, l.Coef != nil, l.Width); err != nil {
		return nil, err
	}
	r, _ := x.Dims()
	out := make([]float64, r)
	for i := range out {
		out[i] = label(sigmoid(floats.Dot(x.RawRowView(i), l.Coef) + l.Intercept))
	}
	return out, nil
}
