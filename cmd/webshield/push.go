// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/webshield/internal/source"
)

var pushCmd = &cobra.Command{
	Use:   "push <file.csv>",
	Short: "Load a CSV file into the source collection",
	Long: `Push reads a CSV file of feature records and inserts every row into the
configured MongoDB database and collection. The "na" placeholder is stored as
null.`,
	Args: cobra.ExactArgs(1),
	RunE: runPush,
}

func init() {
	rootCmd.AddCommand(pushCmd)
}

func runPush(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	d, err := source.CSV{Path: args[0]}.Fetch(ctx, "", "")
	if err != nil {
		return err
	}
	if d.Len() == 0 {
		return fmt.Errorf("%s has no records", args[0])
	}

	m, err := source.DialMongo(ctx, cfg.Source.Mongo)
	if err != nil {
		return err
	}
	defer m.Close(ctx)

	n, err := m.Push(ctx, cfg.Source.Mongo.Database, cfg.Source.Mongo.Collection, d)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Inserted %d record(s) into %s.%s\n", n, cfg.Source.Mongo.Database, cfg.Source.Mongo.Collection)
	return nil
}
