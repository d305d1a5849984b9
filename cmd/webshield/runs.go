// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pdiddy/webshield/internal/tracking"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List tracked runs from the local tracking database",
	RunE:  runRuns,
}

func init() {
	runsCmd.Flags().IntP("limit", "n", 20, "maximum number of runs to list (0 for all)")

	rootCmd.AddCommand(runsCmd)
}

func runRuns(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	limit, _ := cmd.Flags().GetInt("limit")

	db, err := tracking.OpenSQLite(cfg.Tracking.DBPath, cfg.Tracking.ExperimentID)
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := db.ListRuns(cmd.Context(), limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(os.Stdout, "No runs recorded.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tRUN\tNAME\tSTATUS\tMETRICS\tMODELS")
	for _, r := range runs {
		keys := make([]string, 0, len(r.Metrics))
		for k := range r.Metrics {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		metrics := make([]string, len(keys))
		for i, k := range keys {
			metrics[i] = fmt.Sprintf("%s=%.4f", k, r.Metrics[k])
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.StartedAt.Format("2006-01-02 15:04:05"), r.ID[:8], r.Name, r.Status,
			strings.Join(metrics, " "), strings.Join(r.Models, ","))
	}
	return w.Flush()
}
