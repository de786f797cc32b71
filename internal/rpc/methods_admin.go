package rpc

import (
	"context"
	"encoding/json"
)

func registerAdminMethods(d *Dispatcher, svc *Services) {
	d.RegisterMethod("admin.status", ScopeRead, func(ctx context.Context, conn *ConnState, raw json.RawMessage, stream *Stream) (any, error) {
		if svc.GatewayMgr == nil {
			return nil, newError(CodeInternalError, "gateway manager unavailable")
		}
		status, err := svc.GatewayMgr.GatewayStatus(ctx)
		if err != nil {
			return nil, newError(CodeInternalError, err.Error())
		}
		return status, nil
	})

	d.RegisterMethod("admin.subagent_stats", ScopeAdmin, func(ctx context.Context, conn *ConnState, raw json.RawMessage, stream *Stream) (any, error) {
		if svc.Subagents == nil {
			return nil, newError(CodeInternalError, "subagent registry unavailable")
		}
		return svc.Subagents.Stats(), nil
	})
}
