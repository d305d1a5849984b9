// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metrics scores binary predictions with class 1 as the positive class.
package metrics

import (
	"github.com/pdiddy/webshield/pkg/types"
)

// Score returns F1, precision, recall and accuracy of yPred against yTrue.
// A ratio whose denominator is zero scores 0. Mismatched lengths are a
// ShapeError.
func Score(yTrue, yPred []float64) (types.ClassificationMetricArtifact, error) {
	if len(yTrue) != len(yPred) {
		return types.ClassificationMetricArtifact{}, &types.ShapeError{Op: "score", Want: len(yTrue), Got: len(yPred)}
	}
	var tp, fp, fn, hit int
	for i := range yTrue {
		pos, predPos := yTrue[i] == 1, yPred[i] == 1
		switch {
		case pos && predPos:
			tp++
		case !pos && predPos:
			fp++
		case pos && !predPos:
			fn++
		}
		if yTrue[i] == yPred[i] {
			hit++
		}
	}

	var m types.ClassificationMetricArtifact
	if tp+fp > 0 {
		m.PrecisionScore = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		m.RecallScore = float64(tp) / float64(tp+fn)
	}
	if m.PrecisionScore+m.RecallScore > 0 {
		m.F1Score = 2 * m.PrecisionScore * m.RecallScore / (m.PrecisionScore + m.RecallScore)
	}
	if len(yTrue) > 0 {
		m.Accuracy = float64(hit) / float64(len(yTrue))
	}
	return m, nil
}

// Accuracy returns the fraction of positions where yPred equals yTrue.
func Accuracy(yTrue, yPred []float64) (float64, error) {
	m, err := Score(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return m.Accuracy, nil
}
