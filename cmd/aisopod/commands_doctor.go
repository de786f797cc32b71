package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/haasonsaas/aisopod/internal/config"
)

func newDoctorCommand(cli *cliContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run basic sanity checks against the config and a running gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(cmd, cli)
		},
	}
}

func runDoctor(cmd *cobra.Command, cli *cliContext) error {
	checks := []struct {
		name string
		run  func() error
	}{
		{"config loads", func() error {
			_, err := config.Load(*cli.configPath)
			return err
		}},
		{"gateway reachable", func() error {
			addr, err := cli.resolveAddr()
			if err != nil {
				return err
			}
			httpClient := &http.Client{Timeout: 3 * time.Second}
			resp, err := httpClient.Get("http://" + addr + "/health")
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("unexpected status %s", resp.Status)
			}
			return nil
		}},
		{"gateway authorized", func() error {
			addr, err := cli.resolveAddr()
			if err != nil {
				return err
			}
			client, err := dialGateway(cmd.Context(), addr, *cli.token)
			if err != nil {
				return err
			}
			defer client.Close()
			_, err = client.Call("admin.status", struct{}{}, nil)
			return err
		}},
	}

	failed := false
	for _, check := range checks {
		if err := check.run(); err != nil {
			fmt.Printf("FAIL  %-22s %v\n", check.name, err)
			failed = true
			continue
		}
		fmt.Printf("OK    %-22s\n", check.name)
	}
	if failed {
		return networkError(fmt.Errorf("one or more checks failed"))
	}
	return nil
}
