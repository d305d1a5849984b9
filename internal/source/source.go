// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package source reads raw records from the source collection. A Source
// returns a Dataset with the storage identifier column removed and the "na"
// placeholder mapped to a missing value.
package source

import (
	"context"
	"fmt"

	"github.com/pdiddy/webshield/internal/artifact"
	"github.com/pdiddy/webshield/pkg/types"
)

// IDColumn is the storage identifier dropped from every fetched record.
const IDColumn = "_id"

// Source fetches every record of one collection.
type Source interface {
	Name() string
	Fetch(ctx context.Context, database, collection string) (types.Dataset, error)
}

// Pusher writes records into a collection.
type Pusher interface {
	Push(ctx context.Context, database, collection string, d types.Dataset) (int, error)
}

// CSV reads a local CSV file in place of a document store. The database and
// collection arguments are ignored.
type CSV struct {
	Path string
}

// Name returns "csv".
func (c CSV) Name() string { return "csv" }

// Fetch loads the file. An unreadable file is a ConnectivityError so callers
// treat it the same as an unreachable collection.
func (c CSV) Fetch(ctx context.Context, _, _ string) (types.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return types.Dataset{}, err
	}
	d, err := artifact.NewStore("").ReadTable(c.Path)
	if err != nil {
		return types.Dataset{}, &types.ConnectivityError{Target: "csv " + c.Path, Err: err}
	}
	return dropID(d), nil
}

// New returns the Source selected by cfg. For the mongo kind the caller owns
// the returned source and must Close it.
func New(ctx context.Context, cfg types.SourceConfig) (Source, error) {
	switch cfg.Kind {
	case types.SourceCSV:
		if cfg.CSVPath == "" {
			return nil, fmt.Errorf("csv source requires source.csv_path")
		}
		return CSV{Path: cfg.CSVPath}, nil
	case types.SourceMongo, "":
		m, err := DialMongo(ctx, cfg.Mongo)
		if err != nil {
			return nil, err
		}
		return m, nil
	}
	return nil, fmt.Errorf("unknown source kind %q (valid: %s, %s)", cfg.Kind, types.SourceMongo, types.SourceCSV)
}

// dropID removes the identifier column and normalizes missing placeholders.
func dropID(d types.Dataset) types.Dataset {
	cols := make([]string, 0, len(d.Columns))
	for _, c := range d.Columns {
		if c != IDColumn {
			cols = append(cols, c)
		}
	}
	for _, r := range d.Records {
		delete(r, IDColumn)
		for k, v := range r {
			if types.IsMissing(v) {
				r[k] = nil
			}
		}
	}
	d.Columns = cols
	return d
}
