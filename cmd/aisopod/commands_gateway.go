package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/haasonsaas/aisopod/internal/config"
	"github.com/haasonsaas/aisopod/internal/gateway"
)

func newGatewayCommand(cli *cliContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gateway",
		Short: "Start the aisopod gateway server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGateway(cmd.Context(), *cli.configPath)
		},
	}
	return cmd
}

func runGateway(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return configError(fmt.Errorf("load config: %w", err))
	}

	logger := slog.Default()
	deps, err := buildDeps(cfg, configPath, logger)
	if err != nil {
		return err
	}

	server := gateway.NewServer(deps)

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("starting aisopod gateway", "config", configPath)
	if err := server.Start(ctx); err != nil {
		return networkError(fmt.Errorf("gateway: %w", err))
	}
	return nil
}
