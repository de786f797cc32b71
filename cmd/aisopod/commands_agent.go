package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newAgentCommand(cli *cliContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Manage agent definitions",
	}
	cmd.AddCommand(
		newAgentListCommand(cli),
		newAgentCreateCommand(cli),
		newAgentDeleteCommand(cli),
	)
	return cmd
}

func newAgentListCommand(cli *cliContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured agents",
		RunE: func(cmd *cobra.Command, args []string) error {
			return callAndPrint(cli, cmd, "agent.list", struct{}{})
		},
	}
}

func newAgentCreateCommand(cli *cliContext) *cobra.Command {
	var (
		name         string
		description  string
		systemPrompt string
		model        string
		provider     string
	)
	cmd := &cobra.Command{
		Use:   "create <agent-id>",
		Short: "Create a new agent definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := map[string]any{
				"id":            args[0],
				"name":          name,
				"description":   description,
				"system_prompt": systemPrompt,
				"model":         model,
				"provider":      provider,
			}
			return callAndPrint(cli, cmd, "agent.create", params)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&description, "description", "", "what this agent specializes in")
	cmd.Flags().StringVar(&systemPrompt, "system-prompt", "", "base system prompt")
	cmd.Flags().StringVar(&model, "model", "", "model override")
	cmd.Flags().StringVar(&provider, "provider", "", "provider override")
	return cmd
}

func newAgentDeleteCommand(cli *cliContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <agent-id>",
		Short: "Delete an agent definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return callAndPrint(cli, cmd, "agent.delete", map[string]any{"id": args[0]})
		},
	}
}

// callAndPrint dials the gateway, issues a single request, prints the
// result as indented JSON, and closes the connection.
func callAndPrint(cli *cliContext, cmd *cobra.Command, method string, params any) error {
	addr, err := cli.resolveAddr()
	if err != nil {
		return err
	}
	client, err := dialGateway(cmd.Context(), addr, *cli.token)
	if err != nil {
		return err
	}
	defer client.Close()

	result, err := client.Call(method, params, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	return printJSON(result)
}
