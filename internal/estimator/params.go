// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package estimator

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Params holds hyperparameter values keyed by name. Values come from
// configuration and may be any YAML scalar.
type Params map[string]any

// Int returns the integer parameter name, or def when unset.
func (p Params) Int(name string, def int) (int, error) {
	v, ok := p[name]
	if !ok || v == nil {
		return def, nil
	}
	f, err := number(v)
	if err != nil || f != math.Trunc(f) {
		return 0, fmt.Errorf("parameter %s: %v is not an integer", name, v)
	}
	return int(f), nil
}

// Float returns the numeric parameter name, or def when unset.
func (p Params) Float(name string, def float64) (float64, error) {
	v, ok := p[name]
	if !ok || v == nil {
		return def, nil
	}
	f, err := number(v)
	if err != nil {
		return 0, fmt.Errorf("parameter %s: %v is not a number", name, v)
	}
	return f, nil
}

// String returns the string parameter name, or def when unset.
func (p Params) String(name, def string) (string, error) {
	v, ok := p[name]
	if !ok || v == nil {
		return def, nil
	}
	s, isString := v.(string)
	if !isString {
		return "", fmt.Errorf("parameter %s: %v is not a string", name, v)
	}
	return s, nil
}

// Bool returns the boolean parameter name, or def when unset.
func (p Params) Bool(name string, def bool) (bool, error) {
	v, ok := p[name]
	if !ok || v == nil {
		return def, nil
	}
	switch x := v.(type) {
	case bool:
		return x, nil
	case string:
		b, err := strconv.ParseBool(x)
		if err == nil {
			return b, nil
		}
	}
	return false, fmt.Errorf("parameter %s: %v is not a boolean", name, v)
}

// oneOf returns the string parameter name after checking it against allowed.
func (p Params) oneOf(name, def string, allowed ...string) (string, error) {
	s, err := p.String(name, def)
	if err != nil {
		return "", err
	}
	for _, a := range allowed {
		if s == a {
			return s, nil
		}
	}
	return "", fmt.Errorf("parameter %s: %q is not one of %s", name, s, strings.Join(allowed, ", "))
}

// FeatureRule decides how many features a tree considers per split.
type FeatureRule struct {
	// Mode is "all", "sqrt", "log2", "count", or "fraction".
	Mode  string
	Count int
	Frac  float64
}

// Resolve returns the number of features to consider out of n.
func (r FeatureRule) Resolve(n int) int {
	var k int
	switch r.Mode {
	case "sqrt":
		k = int(math.Sqrt(float64(n)))
	case "log2":
		k = int(math.Log2(float64(n)))
	case "count":
		k = r.Count
	case "fraction":
		k = int(r.Frac * float64(n))
	default:
		k = n
	}
	return max(1, min(k, n))
}

// features parses the max_features parameter: "sqrt", "log2", nil or "none"
// for all features, an integer count, or a fraction in (0, 1].
func (p Params) features(name string, def FeatureRule) (FeatureRule, error) {
	v, ok := p[name]
	if !ok {
		return def, nil
	}
	switch x := v.(type) {
	case nil:
		return FeatureRule{Mode: "all"}, nil
	case string:
		switch strings.ToLower(x) {
		case "sqrt", "auto":
			return FeatureRule{Mode: "sqrt"}, nil
		case "log2":
			return FeatureRule{Mode: "log2"}, nil
		case "none", "all", "":
			return FeatureRule{Mode: "all"}, nil
		}
	case float64, float32:
		f, _ := number(x)
		if f > 0 && f <= 1 && f != math.Trunc(f) {
			return FeatureRule{Mode: "fraction", Frac: f}, nil
		}
		if f >= 1 && f == math.Trunc(f) {
			return FeatureRule{Mode: "count", Count: int(f)}, nil
		}
	case int, int64, int32, uint64:
		f, _ := number(x)
		if f >= 1 {
			return FeatureRule{Mode: "count", Count: int(f)}, nil
		}
	}
	return FeatureRule{}, fmt.Errorf("parameter %s: invalid value %v", name, v)
}

func number(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(x), 64)
	}
	return 0, fmt.Errorf("unsupported type %T", v)
}
