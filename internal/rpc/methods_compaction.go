package rpc

import (
	"context"
	"encoding/json"
)

type compactionSessionParams struct {
	SessionID string `json:"session_id"`
}

func registerCompactionMethods(d *Dispatcher, svc *Services) {
	d.RegisterMethod("compaction.status", ScopeRead, func(ctx context.Context, conn *ConnState, raw json.RawMessage, stream *Stream) (any, error) {
		var p compactionSessionParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, InvalidParams(err)
		}
		if p.SessionID == "" {
			return nil, newError(CodeInvalidParams, "session_id is required")
		}
		if svc.Runtime == nil {
			return nil, newError(CodeInternalError, "runtime is not available")
		}
		mgr := svc.Runtime.CompactionManager()
		if mgr == nil {
			return nil, newError(CodeInternalError, "compaction is not enabled")
		}
		return mgr.GetInfo(p.SessionID), nil
	})

	d.RegisterMethod("compaction.confirm", ScopeWrite, func(ctx context.Context, conn *ConnState, raw json.RawMessage, stream *Stream) (any, error) {
		var p compactionSessionParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, InvalidParams(err)
		}
		if p.SessionID == "" {
			return nil, newError(CodeInvalidParams, "session_id is required")
		}
		if svc.Runtime == nil {
			return nil, newError(CodeInternalError, "runtime is not available")
		}
		mgr := svc.Runtime.CompactionManager()
		if mgr == nil {
			return nil, newError(CodeInternalError, "compaction is not enabled")
		}
		if err := mgr.ConfirmFlush(ctx, p.SessionID); err != nil {
			return nil, newError(CodeInternalError, err.Error())
		}
		return mgr.GetInfo(p.SessionID), nil
	})

	d.RegisterMethod("compaction.reject", ScopeWrite, func(ctx context.Context, conn *ConnState, raw json.RawMessage, stream *Stream) (any, error) {
		var p compactionSessionParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, InvalidParams(err)
		}
		if p.SessionID == "" {
			return nil, newError(CodeInvalidParams, "session_id is required")
		}
		if svc.Runtime == nil {
			return nil, newError(CodeInternalError, "runtime is not available")
		}
		mgr := svc.Runtime.CompactionManager()
		if mgr == nil {
			return nil, newError(CodeInternalError, "compaction is not enabled")
		}
		if err := mgr.RejectFlush(ctx, p.SessionID); err != nil {
			return nil, newError(CodeInternalError, err.Error())
		}
		return mgr.GetInfo(p.SessionID), nil
	})
}
