// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package schema

import (
	"errors"
	"io/fs"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/webshield/pkg/types"
)

const explicitSchema = `
target: Result
columns:
  - name: a
    type: int64
    nullable: true
  - name: b
    type: float
  - name: Result
    type: int
`

const legacySchema = `
target: Result
columns:
  - a: int64
  - b: float64
  - Result: int64
numerical_columns:
  - a
  - b
`

func TestParseForms(t *testing.T) {
	for name, src := range map[string]string{"explicit": explicitSchema, "legacy": legacySchema} {
		t.Run(name, func(t *testing.T) {
			c, err := Parse([]byte(src))
			require.NoError(t, err)
			assert.Equal(t, "Result", c.Target)
			assert.Equal(t, []string{"a", "b", "Result"}, c.Names())
			assert.Equal(t, []string{"a", "b"}, c.Features())
			col, ok := c.Column("b")
			require.True(t, ok)
			assert.Equal(t, TypeFloat, col.Type)
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name   string
		src    string
		errMsg string
	}{
		{"no columns", "target: x\n", "no columns"},
		{"no target", "columns:\n  - a: int64\n", "no target"},
		{"unknown target", "target: z\ncolumns:\n  - a: int64\n", "not a declared column"},
		{"string target", "target: a\ncolumns:\n  - a: string\n", "must be numeric"},
		{"unknown type", "target: a\ncolumns:\n  - a: decimal\n", "unknown type"},
		{"duplicate", "target: a\ncolumns:\n  - a: int64\n  - a: int64\n", "duplicate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.src))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoadShippedSchema(t *testing.T) {
	_, file, _, _ := runtime.Caller(0)
	path := filepath.Join(filepath.Dir(file), "..", "..", "data_schema", "schema.yaml")
	c, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, c.Columns, 31)
	assert.Equal(t, "Result", c.Target)
	assert.Len(t, c.Features(), 30)
}

func contract(t *testing.T) Contract {
	t.Helper()
	c, err := Parse([]byte(explicitSchema))
	require.NoError(t, err)
	return c
}

func dataset(cols ...string) types.Dataset {
	rec := types.Record{}
	for _, c := range cols {
		rec[c] = 1.0
	}
	return types.Dataset{Columns: cols, Records: []types.Record{rec}}
}

func TestCheckExactMatch(t *testing.T) {
	c := contract(t)

	tests := []struct {
		name       string
		cols       []string
		ok         bool
		missing    []string
		unexpected []string
	}{
		{"exact", []string{"a", "b", "Result"}, true, nil, nil},
		{"reordered", []string{"Result", "b", "a"}, true, nil, nil},
		{"same count one swapped", []string{"a", "z", "Result"}, false, []string{"b"}, []string{"z"}},
		{"subset", []string{"a", "Result"}, false, []string{"b"}, nil},
		{"superset", []string{"a", "b", "Result", "extra"}, false, nil, []string{"extra"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Check(dataset(tt.cols...), "train")
			if tt.ok {
				assert.Nil(t, err)
				return
			}
			require.NotNil(t, err)
			assert.Equal(t, tt.missing, err.Missing)
			assert.Equal(t, tt.unexpected, err.Unexpected)
			assert.Equal(t, "train", err.Partition)
		})
	}
}

func TestCheckTypes(t *testing.T) {
	c := contract(t)
	d := types.Dataset{
		Columns: []string{"a", "b", "Result"},
		Records: []types.Record{
			{"a": 1.5, "b": nil, "Result": "phish"},
			{"a": nil, "b": 2.0, "Result": 1.0},
		},
	}
	err := c.Check(d, "test")
	require.NotNil(t, err)
	// a is not integral, b is not nullable, Result is not numeric; all reported.
	assert.Equal(t, []string{"a", "b", "Result"}, err.Mistyped)
	assert.Contains(t, err.Error(), "mistyped columns: a, b, Result")
}

func TestCheckAcceptsNullableMissing(t *testing.T) {
	c := contract(t)
	d := types.Dataset{
		Columns: []string{"a", "b", "Result"},
		Records: []types.Record{{"a": nil, "b": 0.25, "Result": -1.0}},
	}
	assert.Nil(t, c.Check(d, "train"))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}
