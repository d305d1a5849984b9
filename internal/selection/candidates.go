// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package selection

import (
	"github.com/pdiddy/webshield/internal/estimator"
	"github.com/pdiddy/webshield/pkg/types"
)

// DefaultCandidates returns the built-in candidate set in declaration order.
// Declaration order breaks score ties.
func DefaultCandidates() []types.CandidateConfig {
	return []types.CandidateConfig{
		{
			Name: "Random Forest",
			Kind: estimator.KindRandomForest,
			Grid: map[string][]any{
				"criterion":    {"gini", "entropy", "log_loss"},
				"max_features": {"sqrt", "log2"},
				"n_estimators": {8, 16, 32, 128, 256},
			},
		},
		{
			Name: "Decision Tree",
			Kind: estimator.KindDecisionTree,
			Grid: map[string][]any{
				"criterion":    {"gini", "entropy"},
				"splitter":     {"best", "random"},
				"max_features": {"sqrt", "log2"},
			},
		},
		{
			Name: "Gradient Boosting",
			Kind: estimator.KindGradientBoosting,
			Grid: map[string][]any{
				"loss":          {"log_loss", "exponential"},
				"learning_rate": {.1, .01, .05, .001},
				"subsample":     {0.6, 0.7, 0.75, 0.85, 0.9},
				"criterion":     {"squared_error", "friedman_mse"},
				"max_features":  {"sqrt", "log2"},
				"n_estimators":  {8, 16, 32, 64, 128, 256},
			},
		},
		{
			Name: "Logistic Regression",
			Kind: estimator.KindLogisticRegression,
			Grid: map[string][]any{},
		},
		{
			Name: "AdaBoost",
			Kind: estimator.KindAdaBoost,
			Grid: map[string][]any{
				"learning_rate": {.1, .01, .001},
				"n_estimators":  {8, 16, 32, 64, 128, 256},
			},
		},
	}
}
