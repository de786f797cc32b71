package rpc

import (
	"log/slog"

	"github.com/haasonsaas/aisopod/internal/agent"
	"github.com/haasonsaas/aisopod/internal/controlplane"
	"github.com/haasonsaas/aisopod/internal/multiagent"
	"github.com/haasonsaas/aisopod/internal/pairing"
	"github.com/haasonsaas/aisopod/internal/sessions"
)

// Services bundles every backend a method handler may need. Built once at
// gateway startup and shared across connections.
type Services struct {
	Sessions         sessions.Store
	Branches         sessions.BranchStore
	Runtime          *agent.Runtime
	Aborts           *agent.AbortRegistry
	Approvals        *agent.ApprovalChecker
	Agents           *multiagent.AgentRegistry
	Subagents        *multiagent.SubagentRegistry
	Scheduler        *multiagent.Scheduler
	Orchestrator     *multiagent.Orchestrator
	CapabilityRouter *multiagent.CapabilityRouter
	Providers        *agent.ProviderRegistry
	Pairing          *pairing.Store
	Events           *agent.EventBus
	Config           controlplane.ConfigManager
	GatewayMgr       controlplane.GatewayManager
	Logger           *slog.Logger
}

// RegisterAll wires every method namespace into d.
func RegisterAll(d *Dispatcher, svc *Services) {
	registerChatMethods(d, svc)
	registerSessionMethods(d, svc)
	registerBranchMethods(d, svc)
	registerAgentMethods(d, svc)
	registerApprovalMethods(d, svc)
	registerCompactionMethods(d, svc)
	registerPairingMethods(d, svc)
	registerModelMethods(d, svc)
	registerConfigMethods(d, svc)
	registerAdminMethods(d, svc)
	registerEventsMethods(d, svc)
}
