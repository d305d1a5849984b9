// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package schema loads the schema contract that train and test partitions
// must satisfy before transformation, and checks datasets against it.
package schema

import (
	"fmt"
	"math"
	"os"
	"slices"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/webshield/pkg/types"
)

// ColumnType is the declared type of a column.
type ColumnType string

const (
	TypeInt      ColumnType = "int64"
	TypeFloat    ColumnType = "float64"
	TypeString   ColumnType = "string"
	TypeCategory ColumnType = "category"
	TypeBool     ColumnType = "bool"
)

// aliases maps accepted spellings onto canonical types.
var aliases = map[string]ColumnType{
	"int": TypeInt, "int32": TypeInt, "int64": TypeInt, "integer": TypeInt,
	"float": TypeFloat, "float32": TypeFloat, "float64": TypeFloat, "number": TypeFloat, "double": TypeFloat,
	"str": TypeString, "string": TypeString, "object": TypeString,
	"category": TypeCategory,
	"bool": TypeBool, "boolean": TypeBool,
}

// Numeric reports whether values of this type take part in drift tests and
// the feature matrix.
func (t ColumnType) Numeric() bool {
	return t == TypeInt || t == TypeFloat || t == TypeBool
}

// Column declares one expected column.
type Column struct {
	Name     string     `yaml:"name"`
	Type     ColumnType `yaml:"type"`
	Nullable bool       `yaml:"nullable"`
}

// UnmarshalYAML accepts both the explicit form ({name, type, nullable}) and
// the single-key legacy form ({having_IP_Address: int64}). Legacy columns
// are nullable.
func (c *Column) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: column entry must be a mapping", node.Line)
	}
	isExplicit := false
	for i := 0; i < len(node.Content); i += 2 {
		if node.Content[i].Value == "name" {
			isExplicit = true
		}
	}
	if isExplicit {
		type plain Column
		var p plain
		if err := node.Decode(&p); err != nil {
			return err
		}
		*c = Column(p)
	} else {
		if len(node.Content) != 2 {
			return fmt.Errorf("line %d: legacy column entry must have exactly one key", node.Line)
		}
		c.Name = node.Content[0].Value
		c.Type = ColumnType(node.Content[1].Value)
		c.Nullable = true
	}

	canon, ok := aliases[string(c.Type)]
	if !ok {
		return fmt.Errorf("line %d: column %q: unknown type %q", node.Line, c.Name, c.Type)
	}
	c.Type = canon
	return nil
}

// Contract is the set of expected columns plus the designated target column.
type Contract struct {
	Target  string   `yaml:"target"`
	Columns []Column `yaml:"columns"`

	// NumericalColumns is accepted from legacy schema files and ignored;
	// numeric columns are derived from the declared types.
	NumericalColumns []string `yaml:"numerical_columns,omitempty"`
}

// Load reads and validates a contract file.
func Load(path string) (Contract, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Contract{}, fmt.Errorf("reading schema %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return Contract{}, fmt.Errorf("schema %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes a contract from YAML and validates it.
func Parse(data []byte) (Contract, error) {
	var c Contract
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Contract{}, fmt.Errorf("parsing schema: %w", err)
	}
	if err := c.check(); err != nil {
		return Contract{}, err
	}
	return c, nil
}

func (c Contract) check() error {
	if len(c.Columns) == 0 {
		return fmt.Errorf("schema declares no columns")
	}
	seen := make(map[string]bool, len(c.Columns))
	for _, col := range c.Columns {
		if col.Name == "" {
			return fmt.Errorf("schema column with empty name")
		}
		if seen[col.Name] {
			return fmt.Errorf("duplicate schema column %q", col.Name)
		}
		seen[col.Name] = true
	}
	if c.Target == "" {
		return fmt.Errorf("schema declares no target column")
	}
	target, ok := c.Column(c.Target)
	if !ok {
		return fmt.Errorf("target column %q is not a declared column", c.Target)
	}
	if !target.Type.Numeric() {
		return fmt.Errorf("target column %q must be numeric, got %s", c.Target, target.Type)
	}
	return nil
}

// Column returns the declaration for name.
func (c Contract) Column(name string) (Column, bool) {
	for _, col := range c.Columns {
		if col.Name == name {
			return col, true
		}
	}
	return Column{}, false
}

// Names returns every declared column name in declaration order.
func (c Contract) Names() []string {
	out := make([]string, len(c.Columns))
	for i, col := range c.Columns {
		out[i] = col.Name
	}
	return out
}

// Features returns the declared columns other than the target, in
// declaration order. This is the column order of the feature matrix.
func (c Contract) Features() []string {
	out := make([]string, 0, len(c.Columns))
	for _, col := range c.Columns {
		if col.Name != c.Target {
			out = append(out, col.Name)
		}
	}
	return out
}

// NumericColumns returns the declared numeric columns in declaration order.
func (c Contract) NumericColumns() []string {
	var out []string
	for _, col := range c.Columns {
		if col.Type.Numeric() {
			out = append(out, col.Name)
		}
	}
	return out
}

// Check compares d against the contract. It returns nil when d has exactly
// the declared columns and every value is compatible with its column type;
// otherwise it returns a SchemaError naming every offending column.
func (c Contract) Check(d types.Dataset, partition string) *types.SchemaError {
	e := &types.SchemaError{
		Partition:   partition,
		WantColumns: len(c.Columns),
		GotColumns:  len(d.Columns),
	}

	declared := make(map[string]bool, len(c.Columns))
	for _, col := range c.Columns {
		declared[col.Name] = true
		if !d.HasColumn(col.Name) {
			e.Missing = append(e.Missing, col.Name)
			continue
		}
		if !compatible(d, col) {
			e.Mistyped = append(e.Mistyped, col.Name)
		}
	}
	for _, name := range d.Columns {
		if !declared[name] {
			e.Unexpected = append(e.Unexpected, name)
		}
	}
	slices.Sort(e.Unexpected)

	if e.Empty() {
		return nil
	}
	return e
}

// compatible reports whether every value in column col of d fits its type.
func compatible(d types.Dataset, col Column) bool {
	for _, r := range d.Records {
		v := r[col.Name]
		if types.IsMissing(v) {
			if !col.Nullable {
				return false
			}
			continue
		}
		switch col.Type {
		case TypeInt:
			f, ok := types.AsFloat(v)
			if !ok || math.Trunc(f) != f {
				return false
			}
		case TypeFloat:
			if _, ok := types.AsFloat(v); !ok {
				return false
			}
		case TypeBool:
			f, ok := types.AsFloat(v)
			if !ok || (f != 0 && f != 1) {
				return false
			}
		}
	}
	return true
}
