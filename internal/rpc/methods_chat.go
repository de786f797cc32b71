package rpc

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/aisopod/internal/pairing"
	"github.com/haasonsaas/aisopod/internal/sessions"
	"github.com/haasonsaas/aisopod/pkg/models"
)

type chatSendParams struct {
	SessionID string            `json:"session_id,omitempty"`
	AgentID   string            `json:"agent_id,omitempty"`
	Channel   string            `json:"channel,omitempty"`
	ChannelID string            `json:"channel_id,omitempty"`
	Content   string            `json:"content"`
	Metadata  map[string]any    `json:"metadata,omitempty"`
}

type chatHistoryParams struct {
	SessionID string `json:"session_id"`
	Limit     int    `json:"limit,omitempty"`
}

type chatAbortParams struct {
	SessionID string `json:"session_id"`
}

func registerChatMethods(d *Dispatcher, svc *Services) {
	d.RegisterStreamingMethod("chat.send", ScopeWrite, func(ctx context.Context, conn *ConnState, raw json.RawMessage, stream *Stream) (any, error) {
		var p chatSendParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, InvalidParams(err)
		}
		if strings.TrimSpace(p.Content) == "" {
			return nil, InvalidParams(errRequired("content"))
		}
		if svc.Runtime == nil || svc.Sessions == nil {
			return nil, newError(CodeInternalError, "runtime unavailable")
		}

		agentID := p.AgentID
		if agentID == "" {
			agentID = "main"
		}
		channel := models.ChannelType(p.Channel)
		if channel == "" {
			channel = models.ChannelType("rpc")
		}

		if p.SessionID == "" && channel != models.ChannelType("rpc") && svc.Pairing != nil {
			allowed, err := svc.Pairing.IsAllowed(channel, p.ChannelID)
			if err != nil {
				return nil, newError(CodeInternalError, err.Error())
			}
			if !allowed {
				return nil, newError(CodeInvalidParams, "peer not paired on channel "+string(channel))
			}
		}

		session, err := resolveSession(ctx, svc.Sessions, p.SessionID, agentID, channel, p.ChannelID)
		if err != nil {
			return nil, err
		}

		msg := &models.Message{
			ID:        uuid.NewString(),
			SessionID: session.ID,
			Channel:   session.Channel,
			Direction: models.DirectionInbound,
			Role:      models.RoleUser,
			Content:   p.Content,
			CreatedAt: time.Now(),
		}

		events, err := svc.Runtime.ProcessStream(ctx, session, msg)
		if err != nil {
			return nil, newError(CodeInternalError, err.Error())
		}

		var finalErr string
		for event := range events {
			stream.Send("chat.event", event)
			if event.Type == models.AgentEventRunError && event.Error != nil {
				finalErr = event.Error.Message
			}
		}
		if finalErr != "" {
			return nil, newError(CodeInternalError, finalErr)
		}
		return map[string]any{"session_id": session.ID, "status": "done"}, nil
	})

	d.RegisterMethod("chat.history", ScopeRead, func(ctx context.Context, conn *ConnState, raw json.RawMessage, stream *Stream) (any, error) {
		var p chatHistoryParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, InvalidParams(err)
		}
		if p.SessionID == "" {
			return nil, InvalidParams(errRequired("session_id"))
		}
		limit := p.Limit
		if limit <= 0 || limit > 500 {
			limit = 50
		}
		msgs, err := svc.Sessions.GetHistory(ctx, p.SessionID, limit)
		if err != nil {
			return nil, NotFound("session")
		}
		return map[string]any{"messages": msgs}, nil
	})

	d.RegisterMethod("chat.abort", ScopeWrite, func(ctx context.Context, conn *ConnState, raw json.RawMessage, stream *Stream) (any, error) {
		var p chatAbortParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, InvalidParams(err)
		}
		if p.SessionID == "" {
			return nil, InvalidParams(errRequired("session_id"))
		}
		aborted := false
		if svc.Aborts != nil {
			aborted = svc.Aborts.Abort(p.SessionID)
		}
		return map[string]any{"aborted": aborted}, nil
	})
}

// resolveSession looks up an existing session by id, or resolves the
// canonical SessionKey for (agentID, channel, channelID) and gets or
// creates the session that key identifies. An RPC-originated chat has no
// separate channel account or group/dm distinction of its own, so the
// channel id itself becomes the key's peer id under PeerKindDM.
func resolveSession(ctx context.Context, store sessions.Store, sessionID, agentID string, channel models.ChannelType, channelID string) (*models.Session, error) {
	if sessionID != "" {
		session, err := store.Get(ctx, sessionID)
		if err != nil {
			return nil, NotFound("session")
		}
		return session, nil
	}
	key := pairing.SessionKeyForPeer(agentID, channel, channelID)
	return store.GetOrCreate(ctx, key.String(), agentID, channel, channelID)
}

func errRequired(field string) error {
	return &fieldError{field: field}
}

type fieldError struct{ field string }

func (e *fieldError) Error() string { return e.field + " is required" }
