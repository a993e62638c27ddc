package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"geotasks/internal/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "geotasks",
		Short: "Location-aware to-do reminders",
		Long: `geotasks keeps a to-do list where tasks can be pinned to a place and
notifies you once when a position update brings you within a mile of one.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/geotasks/config.toml)")

	load := func() (*config.Config, error) {
		path := configPath
		if path == "" {
			p, err := config.DefaultPath()
			if err != nil {
				return nil, err
			}
			path = p
		}
		return config.Load(path)
	}

	serve := newServeCmd(load)
	root.RunE = serve.RunE
	root.AddCommand(
		serve,
		newDistanceCmd(),
		newConfigCmd(load),
		newExportCmd(load),
	)

	return root
}
