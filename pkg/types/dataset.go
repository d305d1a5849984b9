// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the webshield training pipeline:
// raw records and datasets, stage configuration, stage artifacts, and the
// error taxonomy shared by every stage.
package types

import (
	"math"
	"strconv"
	"strings"
)

// Record is one row of raw tabular data. Values are float64, string, or nil
// (missing). Source readers normalize driver-specific numeric types to float64.
type Record map[string]any

// Dataset is an ordered sequence of Records sharing one column list.
type Dataset struct {
	// Columns lists the column names in source order.
	Columns []string `json:"columns" yaml:"columns"`

	// Records holds the rows. Every record is keyed by names in Columns.
	Records []Record `json:"records" yaml:"records"`
}

// Len returns the number of records.
func (d Dataset) Len() int { return len(d.Records) }

// HasColumn reports whether name is one of the dataset's columns.
func (d Dataset) HasColumn(name string) bool {
	for _, c := range d.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Numeric returns the non-missing numeric values of column name. Values that
// are not numbers are skipped; ok is false when the column holds any
// non-numeric, non-missing value.
func (d Dataset) Numeric(name string) (values []float64, ok bool) {
	ok = true
	for _, r := range d.Records {
		v, present := r[name]
		if !present || v == nil {
			continue
		}
		f, isNum := AsFloat(v)
		if !isNum {
			ok = false
			continue
		}
		if math.IsNaN(f) {
			continue
		}
		values = append(values, f)
	}
	return values, ok
}

// missingTokens are string spellings treated as a missing value.
var missingTokens = map[string]bool{
	"":     true,
	"na":   true,
	"nan":  true,
	"null": true,
}

// IsMissing reports whether v represents a missing value: nil, NaN, or one
// of the missing-value tokens ("", "na", "NaN", "null").
func IsMissing(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case float64:
		return math.IsNaN(x)
	case string:
		return missingTokens[strings.ToLower(strings.TrimSpace(x))]
	}
	return false
}

// AsFloat converts v to float64. It accepts Go numeric types and numeric
// strings. Missing values convert to NaN with ok=true.
func AsFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case nil:
		return math.NaN(), true
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case string:
		if IsMissing(x) {
			return math.NaN(), true
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// ParseCell converts a raw text cell into a Record value: missing tokens
// become nil, numbers become float64, anything else stays a string.
func ParseCell(s string) any {
	if IsMissing(s) {
		return nil
	}
	if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
		return f
	}
	return s
}

// FormatCell renders a Record value as text. nil renders as the empty string.
func FormatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case float64:
		if math.IsNaN(x) {
			return ""
		}
		return strconv.FormatFloat(x, 'g', -1, 64)
	case string:
		return x
	}
	if f, ok := AsFloat(v); ok {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return ""
}
