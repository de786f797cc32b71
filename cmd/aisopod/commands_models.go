package main

import (
	"github.com/spf13/cobra"
)

func newModelsCommand(cli *cliContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "Inspect and switch the active LLM provider",
	}
	cmd.AddCommand(newModelsListCommand(cli), newModelsSwitchCommand(cli))
	return cmd
}

func newModelsListCommand(cli *cliContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered providers and their models",
		RunE: func(cmd *cobra.Command, args []string) error {
			return callAndPrint(cli, cmd, "model.list", struct{}{})
		},
	}
}

func newModelsSwitchCommand(cli *cliContext) *cobra.Command {
	return &cobra.Command{
		Use:   "switch <provider>",
		Short: "Switch the active LLM provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return callAndPrint(cli, cmd, "model.switch", map[string]any{"provider": args[0]})
		},
	}
}
