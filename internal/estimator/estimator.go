// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package estimator provides the binary classifiers trained by model
// selection. Every estimator kind is built from a parameter set by New,
// reports which hyperparameters it understands, and is gob-serializable once
// fitted. Labels are the encoded classes 0 and 1.
package estimator

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/pdiddy/webshield/pkg/types"
)

// Estimator kinds.
const (
	KindRandomForest       = "random_forest"
	KindDecisionTree       = "decision_tree"
	KindGradientBoosting   = "gradient_boosting"
	KindLogisticRegression = "logistic_regression"
	KindAdaBoost           = "adaboost"
)

// Estimator is a binary classifier.
type Estimator interface {
	// Kind names the estimator family.
	Kind() string

	// Supports reports whether param is a hyperparameter of this kind.
	Supports(param string) bool

	// Fit trains on x with labels y in {0, 1}. Refitting replaces any
	// previously fitted state.
	Fit(x *mat.Dense, y []float64) error

	// Predict returns one class label per row of x.
	Predict(x *mat.Dense) ([]float64, error)
}

type kindSpec struct {
	params []string
	build  func(p Params, seed int64) (Estimator, error)
}

var registry = map[string]kindSpec{
	KindDecisionTree: {
		params: []string{"criterion", "splitter", "max_features", "max_depth", "min_samples_split", "min_samples_leaf"},
		build:  newDecisionTree,
	},
	KindRandomForest: {
		params: []string{"criterion", "max_features", "n_estimators", "max_depth", "min_samples_split", "min_samples_leaf", "bootstrap"},
		build:  newRandomForest,
	},
	KindGradientBoosting: {
		params: []string{"loss", "learning_rate", "subsample", "criterion", "max_features", "n_estimators", "max_depth", "min_samples_split", "min_samples_leaf"},
		build:  newGradientBoosting,
	},
	KindLogisticRegression: {
		params: []string{"penalty", "C", "max_iter", "tol", "fit_intercept"},
		build:  newLogisticRegression,
	},
	KindAdaBoost: {
		params: []string{"learning_rate", "n_estimators"},
		build:  newAdaBoost,
	},
}

func init() {
	gob.Register(&DecisionTree{})
	gob.Register(&RandomForest{})
	gob.Register(&GradientBoosting{})
	gob.Register(&LogisticRegression{})
	gob.Register(&AdaBoost{})
}

// New builds an unfitted estimator of kind configured by p. Unknown kinds,
// unknown parameters, and out-of-range values are errors. Parameter names
// match without regard to case. seed makes every randomized estimator
// deterministic.
func New(kind string, p Params, seed int64) (Estimator, error) {
	spec, ok := registry[kind]
	if !ok {
		return nil, fmt.Errorf("unknown estimator kind %q (valid: %v)", kind, Kinds())
	}
	p, err := Normalize(kind, p)
	if err != nil {
		return nil, err
	}
	return spec.build(p, seed)
}

// Canonical returns the registered spelling of param for kind, matching
// without regard to case: "c" resolves to "C".
func Canonical(kind, param string) (string, bool) {
	spec, ok := registry[kind]
	if !ok {
		return "", false
	}
	i := slices.IndexFunc(spec.params, func(name string) bool { return strings.EqualFold(name, param) })
	if i < 0 {
		return "", false
	}
	return spec.params[i], true
}

// Normalize returns p with every name replaced by its canonical spelling.
// Unknown names and names given twice in different case are errors.
func Normalize(kind string, p Params) (Params, error) {
	out := make(Params, len(p))
	for name, v := range p {
		canon, ok := Canonical(kind, name)
		if !ok {
			return nil, fmt.Errorf("%s does not support parameter %q", kind, name)
		}
		if _, dup := out[canon]; dup {
			return nil, fmt.Errorf("%s parameter %q given more than once", kind, canon)
		}
		out[canon] = v
	}
	return out, nil
}

// Supports reports whether kind accepts param.
func Supports(kind, param string) bool {
	_, ok := Canonical(kind, param)
	return ok
}

// Kinds lists the registered estimator kinds in sorted order.
func Kinds() []string {
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// checkFit validates training inputs.
func checkFit(x *mat.Dense, y []float64) error {
	if x == nil {
		return fmt.Errorf("no training data")
	}
	r, c := x.Dims()
	if r == 0 || c == 0 {
		return fmt.Errorf("empty training matrix")
	}
	if len(y) != r {
		return &types.ShapeError{Op: "fit", Want: r, Got: len(y)}
	}
	for i, v := range y {
		if v != 0 && v != 1 {
			return fmt.Errorf("label %v at row %d is not 0 or 1", v, i)
		}
	}
	for i := 0; i < r; i++ {
		for _, v := range x.RawRowView(i) {
			if math.IsNaN(v) {
				return fmt.Errorf("row %d contains a missing value", i)
			}
		}
	}
	return nil
}

// checkPredict validates prediction inputs against the fitted width.
func checkPredict(x *mat.Dense, fitted bool, width int) error {
	if !fitted {
		return fmt.Errorf("estimator is not fitted")
	}
	if x == nil {
		return fmt.Errorf("no input rows")
	}
	if _, c := x.Dims(); c != width {
		return &types.ShapeError{Op: "predict", Want: width, Got: c}
	}
	return nil
}

func newRand(seed int64) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x5851f42d4c957f2d))
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

func label(p float64) float64 {
	if p > 0.5 {
		return 1
	}
	return 0
}

// bundle wraps an Estimator so its concrete type travels with it in gob.
type bundle struct {
	Model Estimator
}

// Encode gob-encodes est so Decode can restore it without knowing its kind.
func Encode(est Estimator) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(bundle{Model: est}); err != nil {
		return nil, fmt.Errorf("encoding %s: %w", est.Kind(), err)
	}
	return buf.Bytes(), nil
}

// Decode restores an Estimator written by Encode.
func Decode(data []byte) (Estimator, error) {
	var b bundle
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&b); err != nil {
		return nil, err
	}
	if b.Model == nil {
		return nil, fmt.Errorf("no model in bundle")
	}
	return b.Model, nil
}
