package rpc

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/haasonsaas/aisopod/internal/sessions"
	"github.com/haasonsaas/aisopod/pkg/models"
)

type sessionsListParams struct {
	AgentID string `json:"agent_id,omitempty"`
	Channel string `json:"channel,omitempty"`
	Limit   int    `json:"limit,omitempty"`
	Offset  int    `json:"offset,omitempty"`
}

type sessionsPatchParams struct {
	SessionID string         `json:"session_id"`
	Title     string         `json:"title,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

type sessionsGetParams struct {
	SessionID string `json:"session_id"`
}

func registerSessionMethods(d *Dispatcher, svc *Services) {
	d.RegisterMethod("session.list", ScopeRead, func(ctx context.Context, conn *ConnState, raw json.RawMessage, stream *Stream) (any, error) {
		var p sessionsListParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, InvalidParams(err)
		}
		agentID := strings.TrimSpace(p.AgentID)
		if agentID == "" {
			agentID = "main"
		}
		opts := sessions.ListOptions{Limit: p.Limit, Offset: p.Offset}
		if opts.Limit <= 0 || opts.Limit > 500 {
			opts.Limit = 50
		}
		if p.Channel != "" {
			opts.Channel = models.ChannelType(p.Channel)
		}
		list, err := svc.Sessions.List(ctx, agentID, opts)
		if err != nil {
			return nil, newError(CodeInternalError, err.Error())
		}
		return map[string]any{"sessions": list}, nil
	})

	d.RegisterMethod("session.get", ScopeRead, func(ctx context.Context, conn *ConnState, raw json.RawMessage, stream *Stream) (any, error) {
		var p sessionsGetParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, InvalidParams(err)
		}
		session, err := svc.Sessions.Get(ctx, p.SessionID)
		if err != nil {
			return nil, NotFound("session")
		}
		return session, nil
	})

	d.RegisterMethod("session.patch", ScopeWrite, func(ctx context.Context, conn *ConnState, raw json.RawMessage, stream *Stream) (any, error) {
		var p sessionsPatchParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, InvalidParams(err)
		}
		session, err := svc.Sessions.Get(ctx, p.SessionID)
		if err != nil {
			return nil, NotFound("session")
		}
		if strings.TrimSpace(p.Title) != "" {
			session.Title = p.Title
		}
		if p.Metadata != nil {
			if session.Metadata == nil {
				session.Metadata = map[string]any{}
			}
			for k, v := range p.Metadata {
				session.Metadata[k] = v
			}
		}
		if err := svc.Sessions.Update(ctx, session); err != nil {
			return nil, newError(CodeInternalError, err.Error())
		}
		return session, nil
	})

	d.RegisterMethod("session.delete", ScopeWrite, func(ctx context.Context, conn *ConnState, raw json.RawMessage, stream *Stream) (any, error) {
		var p sessionsGetParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, InvalidParams(err)
		}
		if err := svc.Sessions.Delete(ctx, p.SessionID); err != nil {
			return nil, NotFound("session")
		}
		return map[string]any{"deleted": true}, nil
	})
}
