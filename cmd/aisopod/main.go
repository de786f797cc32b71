// Command aisopod is the CLI entry point for the aisopod agent gateway.
//
// Usage:
//
//	aisopod gateway --config aisopod.yaml
//	aisopod status
//	aisopod message "hello" --agent main
//
// Configuration can be provided via AISOPOD_CONFIG, auth tokens via
// AISOPOD_TOKEN, and log verbosity via AISOPOD_LOG.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build information, populated by ldflags during release builds.
var (
	version = "dev"
	commit  = "none"
)

// exitError carries the process exit code a failure should produce.
// Exit codes: 1 generic, 2 config error, 3 network/gateway unreachable,
// 4 unauthorized.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func configError(err error) error     { return &exitError{code: 2, err: err} }
func networkError(err error) error    { return &exitError{code: 3, err: err} }
func unauthorizedErr(err error) error { return &exitError{code: 4, err: err} }

func exitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	if ee, ok := err.(*exitError); ok {
		return ee.code
	}
	return 1
}

func main() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(exitCodeFor(err))
	}
}

func newRootCommand() *cobra.Command {
	var (
		configPath string
		token      string
		logLevel   string
		addr       string
	)

	cmd := &cobra.Command{
		Use:           "aisopod",
		Short:         "aisopod agent gateway CLI",
		Version:       version + " (" + commit + ")",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			configureLogging(logLevel)
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", envOr("AISOPOD_CONFIG", "aisopod.yaml"), "path to config file")
	cmd.PersistentFlags().StringVar(&token, "token", os.Getenv("AISOPOD_TOKEN"), "bearer token for gateway RPC calls")
	cmd.PersistentFlags().StringVar(&logLevel, "log", envOr("AISOPOD_LOG", "info"), "log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&addr, "addr", "", "gateway address (host:port); defaults to the configured HTTP port on localhost")

	cli := &cliContext{configPath: &configPath, token: &token, addr: &addr}

	cmd.AddCommand(
		newGatewayCommand(cli),
		newAgentCommand(cli),
		newMessageCommand(cli),
		newStatusCommand(cli),
		newHealthCommand(cli),
		newConfigCommand(cli),
		newModelsCommand(cli),
		newDoctorCommand(cli),
	)
	return cmd
}

func configureLogging(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// cliContext carries the persistent flags every subcommand needs.
type cliContext struct {
	configPath *string
	token      *string
	addr       *string
}

// resolveAddr returns the explicit --addr override, or derives
// 127.0.0.1:<http_port> from the loaded config.
func (c *cliContext) resolveAddr() (string, error) {
	if *c.addr != "" {
		return *c.addr, nil
	}
	cfg, err := loadConfigForClient(*c.configPath)
	if err != nil {
		return "", err
	}
	port := cfg.Server.HTTPPort
	if port == 0 {
		port = 7100
	}
	return fmt.Sprintf("127.0.0.1:%d", port), nil
}
