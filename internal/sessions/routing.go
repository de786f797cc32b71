package sessions

import (
	"regexp"
	"strings"
)

// agentIDRegex matches valid agent IDs/account IDs: [a-zA-Z0-9][a-zA-Z0-9_-]{0,63}.
// A SessionKey component that already satisfies this never needs sanitizing;
// NewSessionKey falls back to the collapse-and-truncate rules below only for
// a component an adapter handed us verbatim from an upstream platform (a
// Slack workspace id, a Telegram chat id) that might contain a colon or
// other character that would corrupt the key's colon-delimited String form.
var agentIDRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]{0,63}$`)

// invalidCharsRegex matches runs of characters that aren't alphanumeric,
// underscore, or hyphen, collapsed to a single hyphen.
var invalidCharsRegex = regexp.MustCompile(`[^a-z0-9_-]+`)

// leadingHyphensRegex and trailingHyphensRegex trim hyphens introduced by
// collapsing leading/trailing invalid runs.
var (
	leadingHyphensRegex  = regexp.MustCompile(`^-+`)
	trailingHyphensRegex = regexp.MustCompile(`-+$`)
)

// sanitizeKeyComponent normalizes a SessionKey component (agent id, account
// id) to a form safe to join with ":" in SessionKey.String(). A component
// that already matches agentIDRegex is lower-cased and returned unchanged;
// anything else has invalid runs collapsed to "-" and stray hyphens
// trimmed, so a raw platform id containing ":" or other punctuation can
// never split a parsed key into the wrong number of fields.
func sanitizeKeyComponent(value string) string {
	if value == "" {
		return value
	}
	if agentIDRegex.MatchString(value) {
		return strings.ToLower(value)
	}
	normalized := strings.ToLower(value)
	normalized = invalidCharsRegex.ReplaceAllString(normalized, "-")
	normalized = leadingHyphensRegex.ReplaceAllString(normalized, "")
	normalized = trailingHyphensRegex.ReplaceAllString(normalized, "")
	if len(normalized) > 64 {
		normalized = normalized[:64]
	}
	return normalized
}
