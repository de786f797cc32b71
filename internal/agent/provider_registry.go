package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrProviderNotFound is returned by ProviderRegistry.Get for an unregistered name.
var ErrProviderNotFound = errors.New("provider not found")

// DefaultModelCacheTTL is how long ListModels trusts a provider's model
// list before refetching it.
const DefaultModelCacheTTL = 10 * time.Minute

// ProviderRegistry holds the set of configured LLM backends a deployment can
// switch between at runtime, keyed by provider name. It does not itself
// track which one is active; callers apply a lookup's result via
// Runtime.SetProvider.
type ProviderRegistry struct {
	mu        sync.RWMutex
	providers map[string]LLMProvider
	active    string

	modelCacheTTL time.Duration
	modelCache    map[string]modelCacheEntry
}

type modelCacheEntry struct {
	models    []Model
	err       error
	fetchedAt time.Time
}

// NewProviderRegistry creates an empty registry.
func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		providers:     make(map[string]LLMProvider),
		modelCacheTTL: DefaultModelCacheTTL,
		modelCache:    make(map[string]modelCacheEntry),
	}
}

// SetModelCacheTTL overrides the default 10-minute ListModels cache TTL.
// A non-positive value disables caching.
func (r *ProviderRegistry) SetModelCacheTTL(ttl time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modelCacheTTL = ttl
}

// Register adds or replaces a provider under its own Name().
func (r *ProviderRegistry) Register(provider LLMProvider) {
	if provider == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[provider.Name()] = provider
	if r.active == "" {
		r.active = provider.Name()
	}
}

// Get returns the named provider.
func (r *ProviderRegistry) Get(name string) (LLMProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	if !ok {
		return nil, ErrProviderNotFound
	}
	return p, nil
}

// Active returns the name of the provider last selected via SetActive.
func (r *ProviderRegistry) Active() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// SetActive records name as the active provider. Callers are responsible
// for also calling Runtime.SetProvider with the resolved instance.
func (r *ProviderRegistry) SetActive(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.providers[name]; !ok {
		return ErrProviderNotFound
	}
	r.active = name
	return nil
}

// ProviderInfo summarizes one registered provider and its models, for
// listing to an operator.
type ProviderInfo struct {
	Name   string
	Active bool
	Models []Model
}

// List returns every registered provider with its models, active flag set
// against the currently selected one.
func (r *ProviderRegistry) List() []ProviderInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ProviderInfo, 0, len(r.providers))
	for name, p := range r.providers {
		out = append(out, ProviderInfo{Name: name, Active: name == r.active, Models: p.Models()})
	}
	return out
}

// ProviderModelsResult is one provider's contribution to a ListModels call:
// either its models, or the error that kept the cache from refreshing.
type ProviderModelsResult struct {
	Provider string  `json:"provider"`
	Models   []Model `json:"models,omitempty"`
	Error    string  `json:"error,omitempty"`
}

// ListModels returns every registered provider's models, refreshing any
// whose cache entry is older than the configured TTL. A provider that
// fails to refresh falls back to its last-known-good list (or an empty one
// and an error note) without failing providers whose refresh succeeded.
// Passing a non-empty providerID limits the result to that one provider.
func (r *ProviderRegistry) ListModels(ctx context.Context, providerID string) []ProviderModelsResult {
	r.mu.Lock()
	names := make([]string, 0, len(r.providers))
	if providerID != "" {
		if _, ok := r.providers[providerID]; ok {
			names = append(names, providerID)
		}
	} else {
		for name := range r.providers {
			names = append(names, name)
		}
	}
	ttl := r.modelCacheTTL
	r.mu.Unlock()

	out := make([]ProviderModelsResult, 0, len(names))
	for _, name := range names {
		out = append(out, r.listModelsOne(name, ttl))
	}
	return out
}

func (r *ProviderRegistry) listModelsOne(name string, ttl time.Duration) ProviderModelsResult {
	r.mu.RLock()
	provider := r.providers[name]
	entry, cached := r.modelCache[name]
	r.mu.RUnlock()

	if provider == nil {
		return ProviderModelsResult{Provider: name, Error: ErrProviderNotFound.Error()}
	}

	fresh := cached && ttl > 0 && time.Since(entry.fetchedAt) < ttl
	if fresh {
		return toProviderModelsResult(name, entry)
	}

	models, err := fetchModels(provider)
	next := modelCacheEntry{models: models, err: err, fetchedAt: time.Now()}

	r.mu.Lock()
	r.modelCache[name] = next
	r.mu.Unlock()

	if err != nil && cached && len(entry.models) > 0 {
		// Refresh failed; keep serving the last-known-good list.
		stale := entry
		stale.err = err
		return toProviderModelsResult(name, stale)
	}
	return toProviderModelsResult(name, next)
}

func toProviderModelsResult(name string, entry modelCacheEntry) ProviderModelsResult {
	res := ProviderModelsResult{Provider: name, Models: entry.models}
	if entry.err != nil {
		res.Error = entry.err.Error()
	}
	return res
}

// fetchModels calls provider.Models(), converting a panic into an error so
// one misbehaving provider never breaks the aggregate ListModels call.
func fetchModels(provider LLMProvider) (models []Model, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("provider panicked listing models: %v", rec)
		}
	}()
	return provider.Models(), nil
}

// ProviderHealth is the result of a cheap reachability probe.
type ProviderHealth struct {
	Available bool   `json:"available"`
	LatencyMS *int64 `json:"latency_ms,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Health performs an on-demand reachability probe against the named
// provider. Providers implementing HealthChecker are probed directly;
// others fall back to timing a Models() call as a cheap liveness signal.
func (r *ProviderRegistry) Health(ctx context.Context, providerID string) (*ProviderHealth, error) {
	provider, err := r.Get(providerID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var probeErr error
	if checker, ok := provider.(HealthChecker); ok {
		probeErr = checker.Health(ctx)
	} else {
		_, probeErr = fetchModels(provider)
	}
	elapsed := time.Since(start).Milliseconds()

	health := &ProviderHealth{Available: probeErr == nil, LatencyMS: &elapsed}
	if probeErr != nil {
		health.Error = probeErr.Error()
	}
	return health, nil
}

// EnforceAlternatingTurns merges consecutive same-role messages into one,
// since some providers (Anthropic, Gemini) reject non-alternating
// user/assistant turns. Content is joined with a blank line; tool calls,
// tool results, and attachments are concatenated in order.
func EnforceAlternatingTurns(messages []CompletionMessage) []CompletionMessage {
	if len(messages) < 2 {
		return messages
	}
	out := make([]CompletionMessage, 0, len(messages))
	for _, m := range messages {
		if n := len(out); n > 0 && out[n-1].Role == m.Role {
			prev := &out[n-1]
			if prev.Content != "" && m.Content != "" {
				prev.Content += "\n\n" + m.Content
			} else if m.Content != "" {
				prev.Content = m.Content
			}
			prev.ToolCalls = append(prev.ToolCalls, m.ToolCalls...)
			prev.ToolResults = append(prev.ToolResults, m.ToolResults...)
			prev.Attachments = append(prev.Attachments, m.Attachments...)
			continue
		}
		out = append(out, m)
	}
	return out
}
