// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package selection

import (
	"fmt"
	"math/rand/v2"
	"slices"

	"github.com/pdiddy/webshield/internal/estimator"
)

// Expand returns every combination of grid values. Parameter names are
// iterated in sorted order with the last name varying fastest, so the
// expansion order is stable. An empty grid expands to nothing.
func Expand(grid map[string][]any) ([]estimator.Params, error) {
	if len(grid) == 0 {
		return nil, nil
	}
	keys := make([]string, 0, len(grid))
	for k, vals := range grid {
		if len(vals) == 0 {
			return nil, fmt.Errorf("parameter %s has no values", k)
		}
		keys = append(keys, k)
	}
	slices.Sort(keys)

	out := []estimator.Params{{}}
	for _, k := range keys {
		next := make([]estimator.Params, 0, len(out)*len(grid[k]))
		for _, base := range out {
			for _, v := range grid[k] {
				p := make(estimator.Params, len(base)+1)
				for bk, bv := range base {
					p[bk] = bv
				}
				p[k] = v
				next = append(next, p)
			}
		}
		out = next
	}
	return out, nil
}

// Sample picks n combinations with a shuffle seeded by seed and returns them
// in their original order. It returns combos unchanged when n covers them.
func Sample(combos []estimator.Params, n int, seed int64) []estimator.Params {
	if n <= 0 || n >= len(combos) {
		return combos
	}
	rng := rand.New(rand.NewPCG(uint64(seed), uint64(len(combos))))
	idx := rng.Perm(len(combos))[:n]
	slices.Sort(idx)
	out := make([]estimator.Params, n)
	for i, j := range idx {
		out[i] = combos[j]
	}
	return out
}
