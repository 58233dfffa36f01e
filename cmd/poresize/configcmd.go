package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/clementsan/poresize/internal/models"
	"github.com/clementsan/poresize/pkg/config"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the YAML configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "init <path>",
		Short: "Write the default configuration",
		Args:  positional("path"),
		RunE: func(_ *cobra.Command, args []string) error {
			if err := config.CreateDefaultConfigFile(args[0]); err != nil {
				return models.WrapIO("write", args[0], err)
			}
			fmt.Fprintf(a.stdout, "Default configuration written to: %s\n", args[0])
			return nil
		},
	})
	return cmd
}
