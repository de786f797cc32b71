package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haasonsaas/aisopod/internal/rpc"
)

func newMessageCommand(cli *cliContext) *cobra.Command {
	var (
		agentID   string
		channel   string
		sessionID string
	)
	cmd := &cobra.Command{
		Use:   "message <text>",
		Short: "Send a chat message to an agent and stream the response",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := cli.resolveAddr()
			if err != nil {
				return err
			}
			client, err := dialGateway(cmd.Context(), addr, *cli.token)
			if err != nil {
				return err
			}
			defer client.Close()

			params := map[string]any{
				"content":    args[0],
				"agent_id":   agentID,
				"channel":    channel,
				"session_id": sessionID,
			}
			result, err := client.Call("chat.send", params, printChatEvent)
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
	cmd.Flags().StringVar(&agentID, "agent", "main", "agent to address")
	cmd.Flags().StringVar(&channel, "channel", "cli", "originating channel label")
	cmd.Flags().StringVar(&sessionID, "session", "", "existing session id (new session if empty)")
	return cmd
}

func printChatEvent(event rpc.Event) {
	if event.Method != "chat.event" {
		return
	}
	raw, err := json.Marshal(event.Params)
	if err != nil {
		return
	}
	var payload struct {
		Type   string `json:"type"`
		Stream *struct {
			Delta string `json:"delta"`
		} `json:"stream"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return
	}
	if payload.Stream != nil && payload.Stream.Delta != "" {
		fmt.Print(payload.Stream.Delta)
	}
}
