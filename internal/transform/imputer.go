// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package transform

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// knnImputer fills missing cells with the mean of that column over the k
// nearest donor rows of the fitted data. Distances use the nan-euclidean
// metric: squared differences over coordinates present in both rows, scaled
// by total/present coordinates.
type knnImputer struct {
	k     int
	data  *mat.Dense
	means []float64
}

func fitKNN(data *mat.Dense, k int) *knnImputer {
	_, c := data.Dims()
	means := make([]float64, c)
	col := make([]float64, 0)
	for j := 0; j < c; j++ {
		col = col[:0]
		for _, v := range mat.Col(nil, j, data) {
			if !math.IsNaN(v) {
				col = append(col, v)
			}
		}
		if len(col) > 0 {
			means[j] = stat.Mean(col, nil)
		}
	}
	return &knnImputer{k: k, data: mat.DenseCopyOf(data), means: means}
}

// nanEuclidean returns the nan-euclidean distance between a and b, or NaN
// when they share no present coordinate.
func nanEuclidean(a, b []float64) float64 {
	var sum float64
	present := 0
	for i := range a {
		if math.IsNaN(a[i]) || math.IsNaN(b[i]) {
			continue
		}
		d := a[i] - b[i]
		sum += d * d
		present++
	}
	if present == 0 {
		return math.NaN()
	}
	return math.Sqrt(float64(len(a)) / float64(present) * sum)
}

type donor struct {
	dist float64
	row  int
}

// impute returns a copy of row with every missing cell filled.
func (m *knnImputer) impute(row []float64) []float64 {
	out := append([]float64(nil), row...)
	var missing []int
	for j, v := range row {
		if math.IsNaN(v) {
			missing = append(missing, j)
		}
	}
	if len(missing) == 0 {
		return out
	}

	n, _ := m.data.Dims()
	donors := make([]donor, 0, n)
	for i := 0; i < n; i++ {
		d := nanEuclidean(row, m.data.RawRowView(i))
		if !math.IsNaN(d) {
			donors = append(donors, donor{dist: d, row: i})
		}
	}
	sort.SliceStable(donors, func(a, b int) bool { return donors[a].dist < donors[b].dist })

	for _, j := range missing {
		var sum float64
		count := 0
		for _, dn := range donors {
			v := m.data.At(dn.row, j)
			if math.IsNaN(v) {
				continue
			}
			sum += v
			count++
			if count == m.k {
				break
			}
		}
		if count == 0 {
			out[j] = m.means[j]
			continue
		}
		out[j] = sum / float64(count)
	}
	return out
}
