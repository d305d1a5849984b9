// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package metrics

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/webshield/pkg/types"
)

func TestScore(t *testing.T) {
	tests := []struct {
		name                  string
		yTrue, yPred          []float64
		f1, precision, recall float64
		accuracy              float64
	}{
		{"perfect", []float64{1, 0, 1, 0}, []float64{1, 0, 1, 0}, 1, 1, 1, 1},
		{"all wrong", []float64{1, 0}, []float64{0, 1}, 0, 0, 0, 0},
		{"mixed", []float64{1, 1, 0, 0}, []float64{1, 0, 1, 0}, 0.5, 0.5, 0.5, 0.5},
		{"no positive predictions", []float64{1, 0, 0}, []float64{0, 0, 0}, 0, 0, 0, 2.0 / 3},
		{"no positives at all", []float64{0, 0}, []float64{0, 0}, 0, 0, 0, 1},
		{"high precision low recall", []float64{1, 1, 1, 1}, []float64{1, 0, 0, 0}, 0.4, 1, 0.25, 0.25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Score(tt.yTrue, tt.yPred)
			require.NoError(t, err)
			assert.InDelta(t, tt.f1, m.F1Score, 1e-12)
			assert.InDelta(t, tt.precision, m.PrecisionScore, 1e-12)
			assert.InDelta(t, tt.recall, m.RecallScore, 1e-12)
			assert.InDelta(t, tt.accuracy, m.Accuracy, 1e-12)
		})
	}
}

func TestScoreShapeMismatch(t *testing.T) {
	_, err := Score([]float64{1, 0, 1}, []float64{1, 0})
	var se *types.ShapeError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 3, se.Want)
	assert.Equal(t, 2, se.Got)

	_, err = Accuracy([]float64{1}, nil)
	assert.Error(t, err)
}
