package rpc

import (
	"context"
	"encoding/json"
)

type configApplyParams struct {
	Raw      string `json:"raw"`
	BaseHash string `json:"base_hash,omitempty"`
}

func registerConfigMethods(d *Dispatcher, svc *Services) {
	d.RegisterMethod("config.show", ScopeAdmin, func(ctx context.Context, conn *ConnState, raw json.RawMessage, stream *Stream) (any, error) {
		if svc.Config == nil {
			return nil, newError(CodeInternalError, "config manager unavailable")
		}
		snapshot, err := svc.Config.ConfigSnapshot(ctx)
		if err != nil {
			return nil, newError(CodeInternalError, err.Error())
		}
		return snapshot, nil
	})

	d.RegisterMethod("config.schema", ScopeRead, func(ctx context.Context, conn *ConnState, raw json.RawMessage, stream *Stream) (any, error) {
		if svc.Config == nil {
			return nil, newError(CodeInternalError, "config manager unavailable")
		}
		schema, err := svc.Config.ConfigSchema(ctx)
		if err != nil {
			return nil, newError(CodeInternalError, err.Error())
		}
		return json.RawMessage(schema), nil
	})

	d.RegisterMethod("config.apply", ScopeAdmin, func(ctx context.Context, conn *ConnState, raw json.RawMessage, stream *Stream) (any, error) {
		var p configApplyParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, InvalidParams(err)
		}
		if svc.Config == nil {
			return nil, newError(CodeInternalError, "config manager unavailable")
		}
		result, err := svc.Config.ApplyConfig(ctx, p.Raw, p.BaseHash)
		if err != nil {
			return nil, newError(CodeInvalidParams, err.Error())
		}
		return result, nil
	})
}
