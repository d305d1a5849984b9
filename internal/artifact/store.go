// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package artifact persists stage outputs under deterministic paths: tables
// as CSV, numeric arrays in gonum's binary matrix format, fitted objects as
// gob, and manifests and reports as YAML. Writes are atomic (temp file plus
// rename) and overwrite earlier writes to the same path.
package artifact

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"
	"gonum.org/v1/gonum/mat"

	"github.com/pdiddy/webshield/pkg/types"
)

// Store reads and writes artifacts relative to a root directory.
type Store struct {
	root string
}

// NewStore returns a Store rooted at root. An empty root means the working directory.
func NewStore(root string) *Store {
	return &Store{root: root}
}

// Path resolves rel against the store root.
func (s *Store) Path(rel string) string {
	if s.root == "" || filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(s.root, rel)
}

// Exists reports whether an artifact is present at rel.
func (s *Store) Exists(rel string) bool {
	_, err := os.Stat(s.Path(rel))
	return err == nil
}

// Write stores data at rel, creating parent directories.
func (s *Store) Write(rel string, data []byte) error {
	dest := s.Path(rel)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", rel, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".artifact-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing %s: %w", rel, writeErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// Read returns the bytes stored at rel. A missing artifact yields a
// ContractError wrapping fs.ErrNotExist.
func (s *Store) Read(rel string) ([]byte, error) {
	data, err := os.ReadFile(s.Path(rel))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &types.ContractError{Artifact: rel, Err: err}
		}
		return nil, fmt.Errorf("reading %s: %w", rel, err)
	}
	return data, nil
}

// Copy duplicates the artifact at src to dst unchanged.
func (s *Store) Copy(src, dst string) error {
	data, err := s.Read(src)
	if err != nil {
		return err
	}
	return s.Write(dst, data)
}

// WriteTable stores d as CSV with a header row.
func (s *Store) WriteTable(rel string, d types.Dataset) error {
	var buf bytes.Buffer
	if err := EncodeCSV(&buf, d); err != nil {
		return fmt.Errorf("encoding %s: %w", rel, err)
	}
	return s.Write(rel, buf.Bytes())
}

// ReadTable loads a CSV table written by WriteTable.
func (s *Store) ReadTable(rel string) (types.Dataset, error) {
	data, err := s.Read(rel)
	if err != nil {
		return types.Dataset{}, err
	}
	d, err := DecodeCSV(bytes.NewReader(data))
	if err != nil {
		return types.Dataset{}, &types.ContractError{Artifact: rel, Err: err}
	}
	return d, nil
}

// WriteMatrix stores m in gonum's binary matrix encoding.
func (s *Store) WriteMatrix(rel string, m *mat.Dense) error {
	data, err := m.MarshalBinary()
	if err != nil {
		return fmt.Errorf("encoding matrix %s: %w", rel, err)
	}
	return s.Write(rel, data)
}

// ReadMatrix loads a matrix written by WriteMatrix.
func (s *Store) ReadMatrix(rel string) (*mat.Dense, error) {
	data, err := s.Read(rel)
	if err != nil {
		return nil, err
	}
	var m mat.Dense
	if err := m.UnmarshalBinary(data); err != nil {
		return nil, &types.ContractError{Artifact: rel, Err: err}
	}
	return &m, nil
}

// WriteObject gob-encodes v. Interface-typed fields must have their concrete
// types registered with gob by the owning package.
func (s *Store) WriteObject(rel string, v any) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return fmt.Errorf("encoding object %s: %w", rel, err)
	}
	return s.Write(rel, buf.Bytes())
}

// ReadObject gob-decodes the artifact at rel into v.
func (s *Store) ReadObject(rel string, v any) error {
	data, err := s.Read(rel)
	if err != nil {
		return err
	}
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(v); err != nil {
		return &types.ContractError{Artifact: rel, Err: err}
	}
	return nil
}

// WriteYAML marshals v as YAML.
func (s *Store) WriteYAML(rel string, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling YAML %s: %w", rel, err)
	}
	return s.Write(rel, data)
}

// ReadYAML unmarshals the YAML artifact at rel into v.
func (s *Store) ReadYAML(rel string, v any) error {
	data, err := s.Read(rel)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return &types.ContractError{Artifact: rel, Err: err}
	}
	return nil
}
