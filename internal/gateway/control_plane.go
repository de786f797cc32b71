package gateway

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/haasonsaas/aisopod/internal/config"
	"github.com/haasonsaas/aisopod/internal/controlplane"
	"github.com/haasonsaas/aisopod/pkg/models"
)

// ConfigSnapshot returns the config and its content hash. The hash is
// computed over the real on-disk bytes (or the in-memory config, when no
// path is set) so ApplyConfig's optimistic-concurrency check still detects
// concurrent edits; the returned Raw text is always rendered from a fresh
// marshal of the parsed config, which redacts every models.Sensitive field
// (api_key, jwt_secret, client_secret) rather than echoing secrets an
// operator.admin caller never supplied back over RPC.
func (s *Server) ConfigSnapshot(ctx context.Context) (controlplane.ConfigSnapshot, error) {
	path := strings.TrimSpace(s.configPath)
	var hashSource []byte
	cfg := s.config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return controlplane.ConfigSnapshot{}, err
		}
		hashSource = data
		loaded, err := config.Load(path)
		if err != nil {
			return controlplane.ConfigSnapshot{}, err
		}
		cfg = loaded
	}
	if cfg == nil {
		return controlplane.ConfigSnapshot{Path: path}, nil
	}
	if hashSource == nil {
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return controlplane.ConfigSnapshot{}, err
		}
		hashSource = data
	}

	redacted, err := yaml.Marshal(cfg)
	if err != nil {
		return controlplane.ConfigSnapshot{}, err
	}

	hash := sha256.Sum256(hashSource)
	return controlplane.ConfigSnapshot{
		Path: path,
		Raw:  string(redacted),
		Hash: hex.EncodeToString(hash[:]),
	}, nil
}

// ConfigSchema returns the JSON Schema describing config.Config.
func (s *Server) ConfigSchema(ctx context.Context) ([]byte, error) {
	return config.JSONSchema()
}

// ApplyConfig validates and persists a new config body, then swaps it into
// the running server. Callers must restart the process for changes that
// affect listeners (reported via ConfigApplyResult.RestartRequired).
func (s *Server) ApplyConfig(ctx context.Context, raw string, baseHash string) (*controlplane.ConfigApplyResult, error) {
	path := strings.TrimSpace(s.configPath)
	if path == "" {
		return nil, fmt.Errorf("config path not configured")
	}

	snapshot, err := s.ConfigSnapshot(ctx)
	if err == nil && baseHash != "" && snapshot.Hash != baseHash {
		return nil, fmt.Errorf("config hash mismatch")
	}

	if strings.TrimSpace(raw) != "" {
		if err := validateConfigBody(raw); err != nil {
			return nil, fmt.Errorf("config failed schema validation: %w", err)
		}
		resolved, err := resolveRedactedSecrets(raw, s.configPath)
		if err != nil {
			return nil, fmt.Errorf("resolve redacted fields: %w", err)
		}
		if err := os.WriteFile(path, []byte(resolved), 0o644); err != nil {
			return nil, err
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	oldCfg := s.config
	s.config = cfg

	restartRequired, warnings := configRestartWarnings(oldCfg, cfg)
	return &controlplane.ConfigApplyResult{
		Applied:         true,
		RestartRequired: restartRequired,
		Warnings:        warnings,
	}, nil
}

// GatewayStatus summarizes uptime and listener addresses.
func (s *Server) GatewayStatus(ctx context.Context) (controlplane.GatewayStatus, error) {
	status := controlplane.GatewayStatus{
		Version: ServerVersion,
	}
	if s.config == nil {
		return status, nil
	}
	uptime := time.Since(s.startTime)
	status.UptimeSeconds = int64(uptime.Seconds())
	status.Uptime = uptime.String()
	status.StartTime = s.startTime.Format(time.RFC3339)
	status.ConfigPath = s.configPath
	status.HTTPAddress = fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.HTTPPort)
	status.GRPCAddress = fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.GRPCPort)
	return status, nil
}

// validateConfigBody checks a candidate config body (YAML) against the
// generated JSON Schema before it is written to disk, catching malformed
// operator edits submitted through config.show/config.apply.
func validateConfigBody(raw string) error {
	var doc any
	if err := yaml.Unmarshal([]byte(raw), &doc); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	docJSON, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("convert to json: %w", err)
	}

	schemaJSON, err := config.JSONSchema()
	if err != nil {
		return fmt.Errorf("load schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("config.schema.json", bytes.NewReader(schemaJSON)); err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	schema, err := compiler.Compile("config.schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}

	var instance any
	if err := json.Unmarshal(docJSON, &instance); err != nil {
		return err
	}
	return schema.Validate(instance)
}

// secretNodePaths lists the fixed traversal paths to every
// models.Sensitive-backed scalar in the config document. "*" matches any
// mapping key at that level (provider name, profile name).
var secretNodePaths = [][]string{
	{"auth", "jwt_secret"},
	{"auth", "oauth", "google", "client_secret"},
	{"auth", "oauth", "github", "client_secret"},
	{"llm", "providers", "*", "api_key"},
	{"llm", "providers", "*", "profiles", "*", "api_key"},
}

// resolveRedactedSecrets rewrites candidate so any secret field left as
// models.RedactedText (the placeholder config.show/ConfigSnapshot renders)
// is restored to its real value from the config currently on disk at path,
// instead of a config.apply round trip overwriting a live secret with the
// literal placeholder string. A field the operator actually changed (any
// value other than the placeholder) passes through untouched.
func resolveRedactedSecrets(candidate string, path string) (string, error) {
	var candidateDoc yaml.Node
	if err := yaml.Unmarshal([]byte(candidate), &candidateDoc); err != nil {
		return "", fmt.Errorf("parse candidate yaml: %w", err)
	}
	if len(candidateDoc.Content) == 0 {
		return candidate, nil
	}

	previousBytes, err := os.ReadFile(path)
	if err != nil {
		// Nothing on disk yet (first apply); no secrets to restore.
		return candidate, nil
	}
	var previousDoc yaml.Node
	if err := yaml.Unmarshal(previousBytes, &previousDoc); err != nil || len(previousDoc.Content) == 0 {
		return candidate, nil
	}

	for _, secretPath := range secretNodePaths {
		restoreRedactedAtPath(candidateDoc.Content[0], previousDoc.Content[0], secretPath)
	}

	out, err := yaml.Marshal(&candidateDoc)
	if err != nil {
		return "", fmt.Errorf("re-encode config: %w", err)
	}
	return string(out), nil
}

// restoreRedactedAtPath walks candidate and previous in lockstep along path.
// A "*" segment fans out over every key present in candidate's mapping at
// that level. Once both sides reach the final segment, a candidate scalar
// equal to models.RedactedText is overwritten with previous's value.
func restoreRedactedAtPath(candidate, previous *yaml.Node, path []string) {
	if candidate == nil || previous == nil || len(path) == 0 {
		return
	}
	key := path[0]
	rest := path[1:]

	if key == "*" {
		for _, name := range mappingKeys(candidate) {
			childCandidate := mappingValue(candidate, name)
			childPrevious := mappingValue(previous, name)
			if childPrevious == nil {
				continue
			}
			restoreRedactedAtPath(childCandidate, childPrevious, rest)
		}
		return
	}

	childCandidate := mappingValue(candidate, key)
	childPrevious := mappingValue(previous, key)
	if childCandidate == nil || childPrevious == nil {
		return
	}
	if len(rest) == 0 {
		if childCandidate.Kind == yaml.ScalarNode && childCandidate.Value == models.RedactedText {
			childCandidate.Value = childPrevious.Value
			childCandidate.Tag = childPrevious.Tag
		}
		return
	}
	restoreRedactedAtPath(childCandidate, childPrevious, rest)
}

// mappingKeys returns the scalar key names of a YAML mapping node.
func mappingKeys(node *yaml.Node) []string {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	keys := make([]string, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		keys = append(keys, node.Content[i].Value)
	}
	return keys
}

// mappingValue returns the value node for key in a YAML mapping node, or
// nil if node isn't a mapping or key isn't present.
func mappingValue(node *yaml.Node, key string) *yaml.Node {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

// configRestartWarnings reports which top-level config sections changed in
// a way that requires a process restart to take effect, since the gateway
// does not hot-swap its listeners or provider wiring.
func configRestartWarnings(oldCfg, newCfg *config.Config) (bool, []string) {
	if oldCfg == nil || newCfg == nil {
		return true, []string{"config reload requires restart"}
	}
	var warnings []string
	if oldCfg.Server != newCfg.Server {
		warnings = append(warnings, "server changed; restart required")
	}
	if oldCfg.Auth.JWTSecret != newCfg.Auth.JWTSecret {
		warnings = append(warnings, "auth changed; restart required")
	}
	return len(warnings) > 0, warnings
}
