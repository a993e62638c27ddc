package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"geotasks/internal/config"
	"geotasks/internal/geo"
	"geotasks/internal/models"
	"geotasks/internal/store"
)

func newDistanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "distance LAT1 LON1 LAT2 LON2",
		Short: "Print the great-circle distance between two points in meters",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			var v [4]float64
			for i, arg := range args {
				f, err := strconv.ParseFloat(arg, 64)
				if err != nil {
					return fmt.Errorf("argument %d: %q is not a number", i+1, arg)
				}
				v[i] = f
			}

			a := models.Coordinate{Latitude: v[0], Longitude: v[1]}
			b := models.Coordinate{Latitude: v[2], Longitude: v[3]}
			for _, c := range []models.Coordinate{a, b} {
				if err := c.Validate(); err != nil {
					return err
				}
			}

			d := geo.DistanceMeters(a, b)
			inside := "outside"
			if d < geo.ArrivalRadiusMeters {
				inside = "inside"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%.2f m (%s the %.2f m arrival radius)\n", d, inside, geo.ArrivalRadiusMeters)
			return nil
		},
	}
}

func newConfigCmd(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as TOML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			return cfg.Write(cmd.OutOrStdout())
		},
	}
}

func newExportCmd(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Dump every persisted document as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}

			s, err := store.NewSQLiteStore(cfg.Database.Path)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer s.Close()

			ctx := cmd.Context()
			keys, err := s.Keys(ctx)
			if err != nil {
				return err
			}

			docs := make(map[string]json.RawMessage, len(keys))
			for _, key := range keys {
				payload, err := s.Load(ctx, key)
				if err != nil {
					return err
				}
				if err := store.ValidateDocument(key, payload); err != nil {
					return fmt.Errorf("document %s: %w", key, err)
				}
				docs[key] = payload
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(docs)
		},
	}
}
