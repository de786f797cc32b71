package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newStatusCommand(cli *cliContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show gateway uptime and listener addresses",
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

			result, err := client.Call("admin.status", struct{}{}, nil)
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
}

func newHealthCommand(cli *cliContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the gateway's /health endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := cli.resolveAddr()
			if err != nil {
				return err
			}
			url := "http://" + strings.TrimPrefix(strings.TrimPrefix(addr, "http://"), "https://") + "/health"
			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, url, nil)
			if err != nil {
				return err
			}
			httpClient := &http.Client{Timeout: 5 * time.Second}
			resp, err := httpClient.Do(req)
			if err != nil {
				return networkError(fmt.Errorf("GET %s: %w", url, err))
			}
			defer resp.Body.Close()
			body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
			if err != nil {
				return err
			}
			if resp.StatusCode != http.StatusOK {
				return networkError(fmt.Errorf("health check failed: %s", resp.Status))
			}
			fmt.Println(string(body))
			return nil
		},
	}
}

func printJSON(v any) error {
	encoded, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(encoded))
	return nil
}
