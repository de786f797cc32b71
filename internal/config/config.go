// Package config loads and validates the aisopod gateway configuration.
package config

import (
	"fmt"
	"strings"
)

// Config is the root configuration structure for an aisopod gateway process.
type Config struct {
	Version int `yaml:"version"`

	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Auth          AuthConfig          `yaml:"auth"`
	Session       SessionConfig       `yaml:"session"`
	LLM           LLMConfig           `yaml:"llm"`
	Tools         ToolsConfig         `yaml:"tools"`
	Gateway       GatewayConfig       `yaml:"gateway"`
	Logging       LoggingConfig       `yaml:"logging"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// Load reads, merges $include directives, expands ${VAR} references and
// decodes the configuration file at path, then validates it.
func Load(path string) (*Config, error) {
	raw, err := LoadRaw(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg, err := decodeRawConfig(raw)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a Config populated with the defaults a fresh gateway
// should boot with when no file is supplied.
func Default() *Config {
	return &Config{
		Version: CurrentVersion,
		Server: ServerConfig{
			Host:        "0.0.0.0",
			GRPCPort:    7101,
			HTTPPort:    7100,
			MetricsPort: 7102,
		},
		Session: SessionConfig{
			DefaultAgentID: "main",
		},
		LLM: LLMConfig{
			DefaultProvider: "anthropic",
		},
		Tools: ToolsConfig{
			Execution: ToolExecutionConfig{
				MaxIterations: 25,
				Parallelism:   4,
				Approval: ApprovalConfig{
					DefaultDecision: "pending",
					RequestTTL:      defaultApprovalTTL,
				},
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks cross-field invariants that the YAML schema alone cannot express.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config is nil")
	}
	if err := ValidateVersion(c.Version); err != nil {
		// Version 0 (unset) is tolerated for files predating versioning.
		if c.Version != 0 {
			return err
		}
	}

	switch strings.ToLower(strings.TrimSpace(c.Session.SlackScope)) {
	case "", "workspace", "channel", "thread":
	default:
		return fmt.Errorf("session.slack_scope: invalid value %q (want workspace|channel|thread)", c.Session.SlackScope)
	}

	switch strings.ToLower(strings.TrimSpace(c.Session.DiscordScope)) {
	case "", "guild", "channel", "thread":
	default:
		return fmt.Errorf("session.discord_scope: invalid value %q (want guild|channel|thread)", c.Session.DiscordScope)
	}

	switch strings.ToLower(strings.TrimSpace(c.Session.Scoping.DMScope)) {
	case "", "main", "per-peer", "per-channel-peer":
	default:
		return fmt.Errorf("session.scoping.dm_scope: invalid value %q", c.Session.Scoping.DMScope)
	}

	switch strings.ToLower(strings.TrimSpace(c.Tools.Execution.Approval.DefaultDecision)) {
	case "", "allowed", "denied", "pending":
	default:
		return fmt.Errorf("tools.execution.approval.default_decision: invalid value %q", c.Tools.Execution.Approval.DefaultDecision)
	}

	for i, binding := range c.Gateway.Bindings {
		if strings.TrimSpace(binding.AgentID) == "" {
			return fmt.Errorf("gateway.bindings[%d]: agent_id is required", i)
		}
	}

	return nil
}
