package rpc

import (
	"context"
	"encoding/json"
)

type approvalListParams struct {
	AgentID string `json:"agent_id,omitempty"`
}

type approvalDecisionParams struct {
	RequestID string `json:"request_id"`
	DecidedBy string `json:"decided_by,omitempty"`
}

func registerApprovalMethods(d *Dispatcher, svc *Services) {
	d.RegisterMethod("approval.list", ScopeApprovals, func(ctx context.Context, conn *ConnState, raw json.RawMessage, stream *Stream) (any, error) {
		var p approvalListParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, InvalidParams(err)
		}
		if svc.Approvals == nil {
			return map[string]any{"requests": []any{}}, nil
		}
		pending, err := svc.Approvals.GetPendingRequests(ctx, p.AgentID)
		if err != nil {
			return nil, newError(CodeInternalError, err.Error())
		}
		return map[string]any{"requests": pending}, nil
	})

	d.RegisterMethod("approval.approve", ScopeApprovals, func(ctx context.Context, conn *ConnState, raw json.RawMessage, stream *Stream) (any, error) {
		var p approvalDecisionParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, InvalidParams(err)
		}
		decidedBy := p.DecidedBy
		if decidedBy == "" && conn != nil {
			decidedBy = conn.Role
		}
		if err := svc.Approvals.Approve(ctx, p.RequestID, decidedBy); err != nil {
			return nil, NotFound("approval request")
		}
		return map[string]any{"decision": "allowed"}, nil
	})

	d.RegisterMethod("approval.deny", ScopeApprovals, func(ctx context.Context, conn *ConnState, raw json.RawMessage, stream *Stream) (any, error) {
		var p approvalDecisionParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, InvalidParams(err)
		}
		decidedBy := p.DecidedBy
		if decidedBy == "" && conn != nil {
			decidedBy = conn.Role
		}
		if err := svc.Approvals.Deny(ctx, p.RequestID, decidedBy); err != nil {
			return nil, NotFound("approval request")
		}
		return map[string]any{"decision": "denied"}, nil
	})
}
