// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package artifact

import (
	"errors"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/pdiddy/webshield/pkg/types"
)

func TestStoreWriteCreatesParents(t *testing.T) {
	s := NewStore(t.TempDir())
	require.NoError(t, s.Write(filepath.Join("run", "stage", "file.txt"), []byte("hello")))

	got, err := s.Read(filepath.Join("run", "stage", "file.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))

	// No temp files left behind.
	entries, err := os.ReadDir(s.Path(filepath.Join("run", "stage")))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestStoreOverwrite(t *testing.T) {
	s := NewStore(t.TempDir())
	require.NoError(t, s.Write("a.txt", []byte("first")))
	require.NoError(t, s.Write("a.txt", []byte("second")))

	got, err := s.Read("a.txt")
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))
}

func TestStoreReadMissingIsContractError(t *testing.T) {
	s := NewStore(t.TempDir())
	_, err := s.Read("nope.yaml")
	require.Error(t, err)

	var ce *types.ContractError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "nope.yaml", ce.Artifact)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestStoreTableRoundTrip(t *testing.T) {
	s := NewStore(t.TempDir())
	d := types.Dataset{
		Columns: []string{"a", "b", "label"},
		Records: []types.Record{
			{"a": 1.0, "b": nil, "label": -1.0},
			{"a": 0.5, "b": "x", "label": 1.0},
		},
	}
	require.NoError(t, s.WriteTable("t.csv", d))

	got, err := s.ReadTable("t.csv")
	require.NoError(t, err)
	assert.Equal(t, d.Columns, got.Columns)
	require.Len(t, got.Records, 2)
	assert.Nil(t, got.Records[0]["b"])
	assert.Equal(t, -1.0, got.Records[0]["label"])
	assert.Equal(t, "x", got.Records[1]["b"])
}

func TestDecodeCSVTreatsNaAsMissing(t *testing.T) {
	d, err := DecodeCSV(strings.NewReader("x,y\nna,2\n3,NaN\n"))
	require.NoError(t, err)
	require.Len(t, d.Records, 2)
	assert.Nil(t, d.Records[0]["x"])
	assert.Equal(t, 2.0, d.Records[0]["y"])
	assert.Nil(t, d.Records[1]["y"])
}

func TestDecodeCSVErrors(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		errMsg string
	}{
		{"empty", "", "no header"},
		{"duplicate column", "a,a\n1,2\n", "duplicate column"},
		{"ragged row", "a,b\n1\n", "row 2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeCSV(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestStoreMatrixRoundTrip(t *testing.T) {
	s := NewStore(t.TempDir())
	m := mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, math.Pi})
	require.NoError(t, s.WriteMatrix("m.bin", m))

	got, err := s.ReadMatrix("m.bin")
	require.NoError(t, err)
	assert.True(t, mat.Equal(m, got))
}

func TestStoreObjectAndYAML(t *testing.T) {
	type payload struct {
		Name   string
		Values []float64
	}
	s := NewStore(t.TempDir())

	in := payload{Name: "p", Values: []float64{1, 2}}
	require.NoError(t, s.WriteObject("o.gob", in))
	var out payload
	require.NoError(t, s.ReadObject("o.gob", &out))
	assert.Equal(t, in, out)

	art := types.DataIngestionArtifact{TrainFilePath: "a/train.csv", TrainRows: 80, TestRows: 20}
	require.NoError(t, s.WriteYAML("artifact.yaml", art))
	var back types.DataIngestionArtifact
	require.NoError(t, s.ReadYAML("artifact.yaml", &back))
	assert.Equal(t, art, back)
}

func TestStoreReadYAMLMalformed(t *testing.T) {
	s := NewStore(t.TempDir())
	require.NoError(t, s.Write("bad.yaml", []byte("key: [unclosed")))

	var v map[string]any
	err := s.ReadYAML("bad.yaml", &v)
	var ce *types.ContractError
	require.True(t, errors.As(err, &ce))
}
