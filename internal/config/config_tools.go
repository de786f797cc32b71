package config

import "time"

// ToolsConfig controls tool registration, execution, and approval policy.
type ToolsConfig struct {
	Policies  ToolPoliciesConfig  `yaml:"policies"`
	Execution ToolExecutionConfig `yaml:"execution"`
}

// ToolPoliciesConfig defines default allow/deny policies for tools.
type ToolPoliciesConfig struct {
	// Default policy behavior: "allow" or "deny".
	Default string `yaml:"default"`
	// Rules define per-tool allow/deny behavior.
	Rules []ToolPolicyRule `yaml:"rules"`
}

// ToolPolicyRule defines a policy action for a tool, optionally scoped by channel.
type ToolPolicyRule struct {
	Tool     string   `yaml:"tool"`
	Action   string   `yaml:"action"`   // "allow" | "deny"
	Channels []string `yaml:"channels"` // optional channel filters
}

// ToolExecutionConfig controls runtime tool execution behavior.
type ToolExecutionConfig struct {
	MaxIterations   int                   `yaml:"max_iterations"`
	Parallelism     int                   `yaml:"parallelism"`
	Timeout         time.Duration         `yaml:"timeout"`
	MaxAttempts     int                   `yaml:"max_attempts"`
	RetryBackoff    time.Duration         `yaml:"retry_backoff"`
	DisableEvents   bool                  `yaml:"disable_events"`
	MaxToolCalls    int                   `yaml:"max_tool_calls"`
	RequireApproval []string              `yaml:"require_approval"`
	Approval        ApprovalConfig        `yaml:"approval"`
	ResultGuard     ToolResultGuardConfig `yaml:"result_guard"`
}

const defaultApprovalTTL = 300 * time.Second

// ApprovalConfig controls tool approval gating.
type ApprovalConfig struct {
	// Allowlist contains tools that are always allowed (no approval needed).
	// Supports patterns like "mcp:*", "read_*", "*" (all).
	Allowlist []string `yaml:"allowlist"`

	// Denylist contains tools that are always denied.
	// Supports patterns like Allowlist.
	Denylist []string `yaml:"denylist"`

	// DefaultDecision when no rule matches: "allowed", "denied", or "pending".
	// "pending" times out to denied after RequestTTL elapses.
	DefaultDecision string `yaml:"default_decision"`

	// RequestTTL is how long a pending approval request remains valid before
	// it is auto-denied. Defaults to 300s.
	RequestTTL time.Duration `yaml:"request_ttl"`
}

// ToolResultGuardConfig controls redaction and truncation of tool results
// before they are persisted to the session transcript.
type ToolResultGuardConfig struct {
	Enabled        bool     `yaml:"enabled"`
	MaxChars       int      `yaml:"max_chars"`
	Denylist       []string `yaml:"denylist"`
	RedactPatterns []string `yaml:"redact_patterns"`
	RedactionText  string   `yaml:"redaction_text"`
	TruncateSuffix string   `yaml:"truncate_suffix"`
}
