// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package artifact

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/pdiddy/webshield/pkg/types"
)

// EncodeCSV writes d with a header row. Missing values are written as empty cells.
func EncodeCSV(w io.Writer, d types.Dataset) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(d.Columns); err != nil {
		return err
	}
	row := make([]string, len(d.Columns))
	for _, r := range d.Records {
		for i, c := range d.Columns {
			row[i] = types.FormatCell(r[c])
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// DecodeCSV reads a CSV table with a header row. Cells are parsed with
// types.ParseCell, so "na" and empty cells become missing values.
func DecodeCSV(r io.Reader) (types.Dataset, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err == io.EOF {
		return types.Dataset{}, fmt.Errorf("empty table: no header row")
	}
	if err != nil {
		return types.Dataset{}, fmt.Errorf("reading header: %w", err)
	}

	columns := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		name := strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if seen[name] {
			return types.Dataset{}, fmt.Errorf("duplicate column %q", name)
		}
		seen[name] = true
		columns[i] = name
	}

	d := types.Dataset{Columns: columns}
	for line := 2; ; line++ {
		cells, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return types.Dataset{}, fmt.Errorf("reading row %d: %w", line, err)
		}
		rec := make(types.Record, len(columns))
		for i, c := range columns {
			rec[c] = types.ParseCell(cells[i])
		}
		d.Records = append(d.Records, rec)
	}
	return d, nil
}
