package config

// GatewayConfig configures the gateway's session-key routing table and
// its conditional prompt injection rules.
type GatewayConfig struct {
	// Bindings maps inbound (channel, account_id) pairs to an agent_id.
	// The router resolves them in order; the first match wins.
	Bindings []BindingConfig `yaml:"bindings"`

	// Steering evaluates conditional prompt injections against inbound messages.
	Steering SteeringConfig `yaml:"steering"`
}

// BindingConfig is one row of the gateway's session routing table.
type BindingConfig struct {
	// Channel matches the inbound SessionKey.Channel. Empty matches any.
	Channel string `yaml:"channel"`
	// AccountID matches the inbound SessionKey.AccountID. Empty matches any.
	AccountID string `yaml:"account_id"`
	// AgentID is the agent this binding resolves to. Required.
	AgentID string `yaml:"agent_id"`
}

// SteeringConfig controls conditional prompt injection rules.
type SteeringConfig struct {
	// Enabled toggles steering rule evaluation.
	Enabled bool `yaml:"enabled"`
	// Rules define conditional prompt injections.
	Rules []SteeringRule `yaml:"rules"`
}

// SteeringRule defines a conditional prompt injection.
type SteeringRule struct {
	// ID is an optional stable identifier for the rule.
	ID string `yaml:"id"`
	// Name is a human-readable label for observability.
	Name string `yaml:"name"`
	// Prompt is the injected text when the rule matches.
	Prompt string `yaml:"prompt"`
	// Enabled toggles this rule. Defaults to true when omitted.
	Enabled *bool `yaml:"enabled"`
	// Priority controls ordering when multiple rules match (higher first).
	Priority int `yaml:"priority"`
	// Agents restrict matches to specific agent IDs.
	Agents []string `yaml:"agents"`
	// Tags restrict matches to metadata tags (any match).
	Tags []string `yaml:"tags"`
	// Contains restricts matches to messages containing any of the substrings.
	Contains []string `yaml:"contains"`
	// TimeWindow restricts matches to a time range.
	TimeWindow SteeringTimeWindow `yaml:"time_window"`
}

// SteeringTimeWindow restricts rule matching by absolute time.
type SteeringTimeWindow struct {
	// After is an RFC3339 timestamp; now must be after this to match.
	After string `yaml:"after"`
	// Before is an RFC3339 timestamp; now must be before this to match.
	Before string `yaml:"before"`
}
