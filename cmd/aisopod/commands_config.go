package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newConfigCommand(cli *cliContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the gateway configuration",
	}
	cmd.AddCommand(newConfigShowCommand(cli), newConfigValidateCommand(cli))
	return cmd
}

func newConfigShowCommand(cli *cliContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the running gateway's config snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return callAndPrint(cli, cmd, "config.show", struct{}{})
		},
	}
}

func newConfigValidateCommand(cli *cliContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load and validate the local config file without starting the gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := mustConfig(*cli.configPath)
			if err != nil {
				return err
			}
			fmt.Printf("config %s is valid (version %d)\n", *cli.configPath, cfg.Version)
			return nil
		},
	}
}
