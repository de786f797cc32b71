package sessions

import "testing"

func TestSanitizeKeyComponent(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  string
	}{
		{"empty", "", ""},
		{"already valid lowercase", "myagent", "myagent"},
		{"valid with numbers", "agent123", "agent123"},
		{"valid with hyphen", "my-agent", "my-agent"},
		{"valid with underscore", "my_agent", "my_agent"},
		{"uppercase valid form lowercased", "MyAgent", "myagent"},
		{"colon collapsed", "workspace:T123", "workspace-t123"},
		{"special chars collapsed", "my@agent!", "my-agent"},
		{"leading hyphen trimmed", "@agent", "agent"},
		{"trailing hyphen trimmed", "agent@", "agent"},
		{"multiple special chars collapsed", "my@@agent##test", "my-agent-test"},
		{"only special chars", "@@@", ""},
		{"long value truncated to 64", longInput(100), longInput(64)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizeKeyComponent(tt.value); got != tt.want {
				t.Errorf("sanitizeKeyComponent(%q) = %q, want %q", tt.value, got, tt.want)
			}
		})
	}
}

func longInput(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = 'a'
	}
	return string(b)
}

func TestNewSessionKeySanitizesComponents(t *testing.T) {
	key := NewSessionKey("Agent One", "slack", "Team:ABC", PeerKindDM, "U123")
	want := "agent-one:slack:team-abc:dm:u123"
	if got := key.String(); got != want {
		t.Errorf("NewSessionKey(...).String() = %q, want %q", got, want)
	}
}
