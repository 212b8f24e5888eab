package main

import (
	"fmt"
	"strconv"

	"github.com/jaennil/guide_helper/backend/tilestore/internal/app"
	"github.com/jaennil/guide_helper/backend/tilestore/internal/catalog"
	"github.com/jaennil/guide_helper/backend/tilestore/pkg/config"
	"github.com/jaennil/guide_helper/backend/tilestore/pkg/logger"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tilestore",
		Short: "serve map tiles from a key-value store",
		Long: `tilestore serves pre-rendered map tiles stored in Cassandra, Redis or SQLite.

Configuration is read from the environment (and an optional .env file),
the served datasets from the YAML catalog at CATALOG_PATH.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP tile server",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return serve()
			},
		},
		newKeyCmd(),
	)

	return root
}

func serve() error {
	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	app.Run(cfg)
	return nil
}

func newKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "key <dataset> <matrix> <x> <y>",
		Short: "Print the storage key of a tile",
		Long: `Print the storage key a tile request is looked up with.

x and y are counted from the top left corner of the tile matrix, as in a
tile request. Tiles outside the matrix print "out of range".`,
		Args: cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			x, err := strconv.ParseInt(args[2], 10, 64)
			if err != nil {
				return fmt.Errorf("x should be integer: %w", err)
			}
			y, err := strconv.ParseInt(args[3], 10, 64)
			if err != nil {
				return fmt.Errorf("y should be integer: %w", err)
			}

			cfg, err := config.New()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			cat, err := catalog.Load(cfg.Catalog.Path)
			if err != nil {
				return err
			}
			store, err := app.BuildTileStore(cat, cfg.Storage, nil, nil, logger.NoOp())
			if err != nil {
				return err
			}

			ds, ok := store.Dataset(args[0])
			if !ok {
				return fmt.Errorf("unknown dataset %q", args[0])
			}

			key, ok := ds.KeyFor(args[1], x, y)
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "out of range")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}
}
