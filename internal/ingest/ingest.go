// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ingest fetches the source collection, snapshots it into the
// feature store, and splits it into disjoint train and test partitions.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"

	"github.com/pdiddy/webshield/internal/artifact"
	"github.com/pdiddy/webshield/internal/source"
	"github.com/pdiddy/webshield/pkg/types"
)

// DefaultTestRatio is the fraction of records held out for testing.
const DefaultTestRatio = 0.2

// Split partitions d into train and test. The test partition receives
// ceil(ratio*n) records, chosen by a shuffle seeded with seed, so the same
// input and seed always produce the same split. Record order within each
// partition follows the shuffle. Both partitions share d's columns.
func Split(d types.Dataset, ratio float64, seed int64) (train, test types.Dataset, err error) {
	if !(ratio > 0 && ratio < 1) {
		return types.Dataset{}, types.Dataset{}, fmt.Errorf("test ratio %v outside (0,1)", ratio)
	}
	n := d.Len()
	if n < 2 {
		return types.Dataset{}, types.Dataset{}, fmt.Errorf("cannot split %d records into train and test", n)
	}

	nTest := int(math.Ceil(ratio*float64(n) - 1e-9))
	if nTest >= n {
		nTest = n - 1
	}

	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))
	perm := rng.Perm(n)

	train = types.Dataset{Columns: d.Columns, Records: make([]types.Record, 0, n-nTest)}
	test = types.Dataset{Columns: d.Columns, Records: make([]types.Record, 0, nTest)}
	for i, idx := range perm {
		if i < nTest {
			test.Records = append(test.Records, d.Records[idx])
		} else {
			train.Records = append(train.Records, d.Records[idx])
		}
	}
	return train, test, nil
}

// Run executes the ingestion stage: fetch, snapshot to the feature store,
// split, and persist both partitions and the stage manifest.
func Run(ctx context.Context, src source.Source, store *artifact.Store, cfg types.IngestionConfig, logger *slog.Logger) (types.DataIngestionArtifact, error) {
	logger.Info("fetching source collection", "source", src.Name(), "database", cfg.Database, "collection", cfg.Collection)
	d, err := src.Fetch(ctx, cfg.Database, cfg.Collection)
	if err != nil {
		return types.DataIngestionArtifact{}, err
	}
	if d.Len() == 0 {
		return types.DataIngestionArtifact{}, fmt.Errorf("collection %s.%s is empty", cfg.Database, cfg.Collection)
	}

	if err := store.WriteTable(cfg.FeatureStorePath, d); err != nil {
		return types.DataIngestionArtifact{}, fmt.Errorf("writing feature store: %w", err)
	}

	ratio := cfg.TestRatio
	if ratio == 0 {
		ratio = DefaultTestRatio
	}
	train, test, err := Split(d, ratio, cfg.RandomState)
	if err != nil {
		return types.DataIngestionArtifact{}, err
	}

	if err := store.WriteTable(cfg.TrainPath, train); err != nil {
		return types.DataIngestionArtifact{}, fmt.Errorf("writing train partition: %w", err)
	}
	if err := store.WriteTable(cfg.TestPath, test); err != nil {
		return types.DataIngestionArtifact{}, fmt.Errorf("writing test partition: %w", err)
	}

	out := types.DataIngestionArtifact{
		FeatureStoreFilePath: cfg.FeatureStorePath,
		TrainFilePath:        cfg.TrainPath,
		TestFilePath:         cfg.TestPath,
		TrainRows:            train.Len(),
		TestRows:             test.Len(),
	}
	if err := store.WriteYAML(cfg.ManifestPath, out); err != nil {
		return types.DataIngestionArtifact{}, fmt.Errorf("writing ingestion manifest: %w", err)
	}

	logger.Info("ingestion complete", "records", d.Len(), "train", train.Len(), "test", test.Len())
	return out, nil
}
