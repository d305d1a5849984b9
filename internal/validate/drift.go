// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package validate

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"
)

// KSTest runs the two-sample Kolmogorov-Smirnov test on a and b and returns
// the statistic D and its asymptotic p-value. Inputs are not modified.
// Either sample being empty yields D=0, p=1.
func KSTest(a, b []float64) (d, p float64) {
	if len(a) == 0 || len(b) == 0 {
		return 0, 1
	}
	x := slices.Clone(a)
	y := slices.Clone(b)
	slices.Sort(x)
	slices.Sort(y)

	d = stat.KolmogorovSmirnov(x, nil, y, nil)

	n, m := float64(len(x)), float64(len(y))
	en := math.Sqrt(n * m / (n + m))
	p = kolmogorovQ((en + 0.12 + 0.11/en) * d)
	return d, p
}

// kolmogorovQ is the complementary CDF of the Kolmogorov distribution,
// Q(λ) = 2 Σ (-1)^(j-1) exp(-2 j² λ²). The series does not converge for
// small λ, where Q is 1 to working precision.
func kolmogorovQ(lambda float64) float64 {
	const (
		eps1 = 1e-6
		eps2 = 1e-16
	)
	if lambda <= 0 {
		return 1
	}
	a2 := -2 * lambda * lambda
	fac := 2.0
	sum := 0.0
	prev := 0.0
	for j := 1; j <= 100; j++ {
		term := fac * math.Exp(a2*float64(j*j))
		sum += term
		if math.Abs(term) <= eps1*prev || math.Abs(term) <= eps2*sum {
			return clamp01(sum)
		}
		fac = -fac
		prev = math.Abs(term)
	}
	return 1
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
