package rpc

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/aisopod/internal/multiagent"
	"github.com/haasonsaas/aisopod/internal/sessions"
	"github.com/haasonsaas/aisopod/pkg/models"
)

type agentRouteParams struct {
	SessionID    string   `json:"session_id,omitempty"`
	ParentKey    string   `json:"parent_key,omitempty"`
	Task         string   `json:"task"`
	Capabilities []string `json:"capabilities,omitempty"`
	MaxTokens    uint64   `json:"max_tokens,omitempty"`
}

type agentCreateParams struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description,omitempty"`
	SystemPrompt string   `json:"system_prompt,omitempty"`
	Model        string   `json:"model,omitempty"`
	Provider     string   `json:"provider,omitempty"`
	Tools        []string `json:"tools,omitempty"`
}

type agentIDParams struct {
	ID string `json:"id"`
}

func registerAgentMethods(d *Dispatcher, svc *Services) {
	d.RegisterMethod("agent.list", ScopeRead, func(ctx context.Context, conn *ConnState, raw json.RawMessage, stream *Stream) (any, error) {
		if svc.Agents == nil {
			return map[string]any{"agents": []any{}}, nil
		}
		return map[string]any{"agents": svc.Agents.List()}, nil
	})

	d.RegisterMethod("agent.get", ScopeRead, func(ctx context.Context, conn *ConnState, raw json.RawMessage, stream *Stream) (any, error) {
		var p agentIDParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, InvalidParams(err)
		}
		def, err := svc.Agents.Get(p.ID)
		if err != nil {
			return nil, NotFound("agent")
		}
		return def, nil
	})

	d.RegisterMethod("agent.create", ScopeAdmin, func(ctx context.Context, conn *ConnState, raw json.RawMessage, stream *Stream) (any, error) {
		var p agentCreateParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, InvalidParams(err)
		}
		if p.ID == "" {
			return nil, InvalidParams(errRequired("id"))
		}
		def := multiagent.AgentDefinition{
			ID:           p.ID,
			Name:         p.Name,
			Description:  p.Description,
			SystemPrompt: p.SystemPrompt,
			Model:        p.Model,
			Provider:     p.Provider,
			Tools:        p.Tools,
		}
		if err := svc.Agents.Create(def); err != nil {
			if err == multiagent.ErrAgentExists {
				return nil, newError(CodeInvalidParams, err.Error())
			}
			return nil, newError(CodeInternalError, err.Error())
		}
		return def, nil
	})

	d.RegisterMethod("agent.delete", ScopeAdmin, func(ctx context.Context, conn *ConnState, raw json.RawMessage, stream *Stream) (any, error) {
		var p agentIDParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, InvalidParams(err)
		}
		if err := svc.Agents.Delete(p.ID); err != nil {
			if err == multiagent.ErrAgentNotFound {
				return nil, NotFound("agent")
			}
			return nil, newError(CodeInvalidParams, err.Error())
		}
		return map[string]any{"deleted": true}, nil
	})

	d.RegisterMethod("agent.subagents", ScopeRead, func(ctx context.Context, conn *ConnState, raw json.RawMessage, stream *Stream) (any, error) {
		if svc.Subagents == nil {
			return map[string]any{"runs": []any{}}, nil
		}
		return map[string]any{"runs": svc.Subagents.ListActive()}, nil
	})

	d.RegisterStreamingMethod("agent.route", ScopeWrite, func(ctx context.Context, conn *ConnState, raw json.RawMessage, stream *Stream) (any, error) {
		var p agentRouteParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, InvalidParams(err)
		}
		if strings.TrimSpace(p.Task) == "" {
			return nil, InvalidParams(errRequired("task"))
		}
		if svc.CapabilityRouter == nil || svc.Orchestrator == nil || svc.Scheduler == nil {
			return nil, newError(CodeInternalError, "orchestrator unavailable")
		}

		agentDef, err := svc.CapabilityRouter.SelectBestAgent(ctx, multiagent.AgentRequirements{
			RequiredCapabilities: p.Capabilities,
		})
		if err != nil {
			return nil, newError(CodeInternalError, err.Error())
		}
		if agentDef == nil {
			return nil, NotFound("agent with requested capabilities")
		}

		parentKey := p.ParentKey
		if parentKey == "" {
			parentKey = p.SessionID
		}
		if parentKey == "" {
			parentKey = sessions.NewSessionKey("main", "rpc", "", sessions.PeerKindDM, conn.ConnID).String()
		}

		maxTokens := p.MaxTokens
		if maxTokens == 0 {
			maxTokens = 100000
		}
		budget := multiagent.NewResourceBudget(maxTokens)
		record, _, err := svc.Scheduler.Spawn(ctx, multiagent.SubagentSpawnParams{
			Agent: agentDef,
			ParentSessionKey: parentKey,
			RequesterDisplayKey: parentKey,
			ChildDiscriminator: uuid.NewString()[:8],
			ParentBudget: budget,
			Task: p.Task,
			Label: "agent.route:" + agentDef.ID,
			Cleanup: "keep",
		})
		if err != nil {
			if rejected, ok := err.(*multiagent.SpawnRejectedError); ok {
				return nil, newError(CodeInvalidParams, rejected.Error())
			}
			return nil, newError(CodeInternalError, err.Error())
		}

		runtime, ok := svc.Orchestrator.GetRuntime(agentDef.ID)
		if !ok {
			return nil, newError(CodeInternalError, "no runtime registered for agent "+agentDef.ID)
		}

		svc.CapabilityRouter.IncrementLoad(agentDef.ID)
		defer svc.CapabilityRouter.DecrementLoad(agentDef.ID)
		svc.Subagents.Start(record.RunID)

		session, err := svc.Sessions.GetOrCreate(ctx, record.ChildSessionKey, agentDef.ID, models.ChannelType("rpc"), record.RunID)
		if err != nil {
			svc.Subagents.Complete(record.RunID, &multiagent.SubagentOutcome{Status: multiagent.SubagentStatusError, Error: err.Error(), EndedAt: time.Now()})
			return nil, newError(CodeInternalError, err.Error())
		}

		msg := &models.Message{
			ID:        uuid.NewString(),
			SessionID: session.ID,
			Channel:   session.Channel,
			Direction: models.DirectionInbound,
			Role:      models.RoleUser,
			Content:   p.Task,
			CreatedAt: time.Now(),
		}

		start := time.Now()
		events, err := runtime.ProcessStream(ctx, session, msg)
		if err != nil {
			svc.CapabilityRouter.UpdateHealth(agentDef.ID, false, time.Since(start), err.Error())
			svc.Subagents.Complete(record.RunID, &multiagent.SubagentOutcome{Status: multiagent.SubagentStatusError, Error: err.Error(), EndedAt: time.Now()})
			return nil, newError(CodeInternalError, err.Error())
		}

		var finalErr string
		var final string
		for event := range events {
			stream.Send("agent.route.event", event)
			if event.Type == models.AgentEventRunError && event.Error != nil {
				finalErr = event.Error.Message
			}
			if event.Stream != nil && event.Stream.Final != "" {
				final = event.Stream.Final
			}
		}

		outcome := &multiagent.SubagentOutcome{Status: multiagent.SubagentStatusCompleted, Result: final, EndedAt: time.Now()}
		if finalErr != "" {
			outcome.Status = multiagent.SubagentStatusError
			outcome.Error = finalErr
		}
		svc.CapabilityRouter.UpdateHealth(agentDef.ID, finalErr == "", time.Since(start), finalErr)
		svc.Subagents.Complete(record.RunID, outcome)

		if finalErr != "" {
			return nil, newError(CodeInternalError, finalErr)
		}
		return map[string]any{
			"run_id":     record.RunID,
			"agent_id":   agentDef.ID,
			"session_id": session.ID,
			"result":     final,
		}, nil
	})
}
