package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/haasonsaas/aisopod/internal/agent"
	agentctx "github.com/haasonsaas/aisopod/internal/agent/context"
	"github.com/haasonsaas/aisopod/internal/agent/providers"
	"github.com/haasonsaas/aisopod/internal/config"
	"github.com/haasonsaas/aisopod/internal/gateway"
	"github.com/haasonsaas/aisopod/internal/multiagent"
	"github.com/haasonsaas/aisopod/internal/pairing"
	"github.com/haasonsaas/aisopod/internal/sessions"
	"github.com/haasonsaas/aisopod/pkg/models"
)

// buildDeps wires a gateway.Deps bundle from a loaded config, the way
// runServe constructs the nexus.Server's dependencies in the teacher CLI.
func buildDeps(cfg *config.Config, configPath string, logger *slog.Logger) (gateway.Deps, error) {
	providerRegistry, err := buildProviders(cfg.LLM)
	if err != nil {
		return gateway.Deps{}, configError(fmt.Errorf("build providers: %w", err))
	}
	active, err := providerRegistry.Get(providerRegistry.Active())
	if err != nil {
		return gateway.Deps{}, configError(fmt.Errorf("no active LLM provider configured: %w", err))
	}

	backingStore, err := buildSessionStore(cfg.Database)
	if err != nil {
		return gateway.Deps{}, configError(fmt.Errorf("build session store: %w", err))
	}
	store := sessions.NewLockingStore(backingStore, sessions.NewLocalLocker(10*time.Second))
	branches := buildBranchStore(backingStore)

	policy := agent.DefaultApprovalPolicy()
	approvalCfg := cfg.Tools.Execution.Approval
	if len(approvalCfg.Allowlist) > 0 {
		policy.Allowlist = approvalCfg.Allowlist
	}
	if len(approvalCfg.Denylist) > 0 {
		policy.Denylist = approvalCfg.Denylist
	}
	if len(cfg.Tools.Execution.RequireApproval) > 0 {
		policy.RequireApproval = cfg.Tools.Execution.RequireApproval
	}
	approvals := agent.NewApprovalChecker(policy)
	approvals.SetStore(agent.NewMemoryApprovalStore())

	opts := agent.DefaultRuntimeOptions()
	opts.Logger = logger
	opts.ApprovalChecker = approvals
	if cfg.Tools.Execution.MaxIterations > 0 {
		opts.MaxIterations = cfg.Tools.Execution.MaxIterations
	}
	if cfg.Tools.Execution.Parallelism > 0 {
		opts.ToolParallelism = cfg.Tools.Execution.Parallelism
	}
	if cfg.Tools.Execution.RequireApproval != nil {
		opts.RequireApproval = cfg.Tools.Execution.RequireApproval
	}

	runtime := agent.NewRuntimeWithOptions(active, store, opts)
	aborts := agent.NewAbortRegistry()
	runtime.SetAbortRegistry(aborts)

	events := agent.NewEventBus(0)
	runtime.SetEventBus(events)

	compactionPacker := agentctx.NewPacker(agentctx.DefaultPackOptions())
	compactionMgr := agent.NewCompactionManager(agent.DefaultCompactionConfig(), compactionPacker)
	runtime.SetCompactionManager(compactionMgr)
	runtime.RegisterTool(agent.NewCompactionTool(compactionMgr))

	multiCfg := &multiagent.MultiAgentConfig{DefaultAgentID: cfg.Session.DefaultAgentID}
	if multiCfg.DefaultAgentID == "" {
		multiCfg.DefaultAgentID = "main"
	}
	multiCfg.SupervisorAgentID = cfg.Session.SupervisorAgentID
	multiCfg.EnablePeerHandoffs = true
	multiCfg.Agents = []multiagent.AgentDefinition{{ID: multiCfg.DefaultAgentID, Name: "main", CanReceiveHandoffs: true}}
	for _, sp := range cfg.Session.Specialists {
		multiCfg.Agents = append(multiCfg.Agents, specialistDefinition(sp))
	}
	agents := multiagent.NewAgentRegistry(multiCfg, "")

	subagentCfg := multiagent.DefaultSubagentRegistryConfig()
	subagentCfg.OnRunStart = func(ctx context.Context, record *multiagent.SubagentRunRecord) {
		events.Publish(subagentLifecycleEvent(models.AgentEventSubagentStarted, record))
	}
	subagentCfg.OnRunComplete = func(ctx context.Context, record *multiagent.SubagentRunRecord) {
		events.Publish(subagentLifecycleEvent(models.AgentEventSubagentFinished, record))
	}
	subagents := multiagent.NewSubagentRegistry(subagentCfg)
	scheduler := multiagent.NewScheduler(subagents)

	// orchestrator gives agent.route a pool of specialist runtimes to pick
	// from, distinct from the single default runtime chat.send always uses.
	orchestrator := multiagent.NewOrchestrator(multiCfg, active, store)
	for _, def := range multiCfg.Agents {
		def := def
		if err := orchestrator.RegisterAgent(&def); err != nil {
			return gateway.Deps{}, configError(fmt.Errorf("register agent %q: %w", def.ID, err))
		}
	}
	capRouter := multiagent.NewCapabilityRouter(orchestrator, multiagent.CapabilityRouterConfig{
		EnableCapabilityMatching: true,
		EnableHealthChecks:       true,
		UnhealthyThreshold:       3,
		EnableLoadBalancing:      true,
		LoadBalanceStrategy:      multiagent.StrategyLeastLoaded,
	}, logger)

	pairingStore := pairing.NewStore("")

	authenticator := gateway.NewConfigAuthenticator(cfg.Auth)

	return gateway.Deps{
		Config:           cfg,
		ConfigPath:       configPath,
		Logger:           logger,
		Sessions:         store,
		Branches:         branches,
		Runtime:          runtime,
		Aborts:           aborts,
		Approvals:        approvals,
		Agents:           agents,
		Subagents:        subagents,
		Scheduler:        scheduler,
		Orchestrator:     orchestrator,
		CapabilityRouter: capRouter,
		Providers:        providerRegistry,
		Pairing:          pairingStore,
		Events:           events,
		Authenticator:    authenticator,
	}, nil
}

// buildSessionStore picks the session backend the way runServe does in the
// teacher CLI: an empty database.url keeps everything in the gateway
// process's memory, a configured one persists sessions and transcripts to
// CockroachDB/Postgres instead.
func buildSessionStore(cfg config.DatabaseConfig) (sessions.Store, error) {
	if cfg.URL == "" {
		return sessions.NewMemoryStore(), nil
	}
	crdbCfg := sessions.DefaultCockroachConfig()
	if cfg.MaxConnections > 0 {
		crdbCfg.MaxOpenConns = cfg.MaxConnections
	}
	if cfg.ConnMaxLifetime > 0 {
		crdbCfg.ConnMaxLifetime = cfg.ConnMaxLifetime
	}
	return sessions.NewCockroachStoreFromDSN(cfg.URL, crdbCfg)
}

// buildBranchStore picks the branch-history backend to match the session
// store: a CockroachDB-backed session store gets branches persisted in the
// same database, everything else gets the in-memory branch store.
func buildBranchStore(store sessions.Store) sessions.BranchStore {
	if crdb, ok := store.(*sessions.CockroachStore); ok {
		return sessions.NewCockroachBranchStore(crdb.DB())
	}
	return sessions.NewMemoryBranchStore()
}

// specialistDefinition turns a configured specialist into the
// multiagent.AgentDefinition form the orchestrator and agent registry share,
// stashing its capability tags where the capability router's index expects
// them.
func specialistDefinition(sp config.SpecialistAgentConfig) multiagent.AgentDefinition {
	def := multiagent.AgentDefinition{
		ID:                 sp.ID,
		Name:               sp.Name,
		Description:        sp.Description,
		SystemPrompt:       sp.SystemPrompt,
		Model:              sp.Model,
		Tools:              sp.Tools,
		CanReceiveHandoffs: sp.CanReceiveHandoffs,
	}
	if len(sp.Capabilities) > 0 {
		def.Metadata = map[string]any{"capabilities": sp.Capabilities}
	}
	return def
}

// subagentLifecycleEvent turns a subagent run's registry record into the
// AgentEvent published on the shared bus, so a connection tailing
// events.subscribe sees subagent spawns and completions alongside the
// top-level run that triggered them.
func subagentLifecycleEvent(eventType models.AgentEventType, record *multiagent.SubagentRunRecord) models.AgentEvent {
	payload := &models.SubagentEventPayload{
		RunID:               record.RunID,
		ChildSessionKey:     record.ChildSessionKey,
		RequesterSessionKey: record.RequesterSessionKey,
		Depth:               record.Depth,
		Task:                record.Task,
	}
	if record.Outcome != nil {
		payload.Status = string(record.Outcome.Status)
		payload.Error = record.Outcome.Error
	}
	return models.AgentEvent{
		Version: 1,
		Type:    eventType,
		Time:    time.Now(),
		Subagent: payload,
	}
}

// buildProviders turns config.LLMConfig's provider table into a populated
// agent.ProviderRegistry, the active entry matching DefaultProvider.
func buildProviders(cfg config.LLMConfig) (*agent.ProviderRegistry, error) {
	registry := agent.NewProviderRegistry()

	for name, providerCfg := range cfg.Providers {
		provider, err := newLLMProvider(name, providerCfg)
		if err != nil {
			return nil, fmt.Errorf("provider %q: %w", name, err)
		}
		if provider != nil {
			registry.Register(provider)
		}
	}

	if cfg.DefaultProvider != "" {
		if err := registry.SetActive(cfg.DefaultProvider); err != nil {
			return nil, fmt.Errorf("default_provider %q: %w", cfg.DefaultProvider, err)
		}
	}
	return registry, nil
}

func newLLMProvider(name string, cfg config.LLMProviderConfig) (agent.LLMProvider, error) {
	switch name {
	case "anthropic":
		return providers.NewAnthropicProvider(providers.AnthropicConfig{
			APIKey:       cfg.APIKey.Reveal(),
			BaseURL:      cfg.BaseURL,
			DefaultModel: cfg.DefaultModel,
		})
	case "openai":
		return providers.NewOpenAIProvider(cfg.APIKey.Reveal()), nil
	case "google", "gemini":
		return providers.NewGoogleProvider(providers.GoogleConfig{
			APIKey:       cfg.APIKey.Reveal(),
			DefaultModel: cfg.DefaultModel,
		})
	case "bedrock":
		return providers.NewBedrockProvider(providers.BedrockConfig{
			DefaultModel: cfg.DefaultModel,
		})
	case "ollama":
		return providers.NewOllamaProvider(providers.OllamaConfig{
			BaseURL:      cfg.BaseURL,
			DefaultModel: cfg.DefaultModel,
			Timeout:      30 * time.Second,
		}), nil
	default:
		return nil, fmt.Errorf("unknown provider kind %q", name)
	}
}
