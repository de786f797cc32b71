package rpc

import (
	"context"
	"encoding/json"

	"github.com/haasonsaas/aisopod/internal/agent"
)

type modelSwitchParams struct {
	Provider string `json:"provider"`
}

type modelListModelsParams struct {
	Provider string `json:"provider,omitempty"`
}

type modelHealthParams struct {
	Provider string `json:"provider"`
}

func registerModelMethods(d *Dispatcher, svc *Services) {
	d.RegisterMethod("model.list", ScopeRead, func(ctx context.Context, conn *ConnState, raw json.RawMessage, stream *Stream) (any, error) {
		if svc.Providers == nil {
			return map[string]any{"providers": []any{}}, nil
		}
		return map[string]any{"providers": svc.Providers.List()}, nil
	})

	// list_models is the TTL-cached variant (default 10m): a provider that
	// fails to refresh falls back to its last-known-good list rather than
	// failing the whole aggregate.
	d.RegisterMethod("model.list_models", ScopeRead, func(ctx context.Context, conn *ConnState, raw json.RawMessage, stream *Stream) (any, error) {
		var p modelListModelsParams
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, InvalidParams(err)
			}
		}
		if svc.Providers == nil {
			return map[string]any{"providers": []any{}}, nil
		}
		return map[string]any{"providers": svc.Providers.ListModels(ctx, p.Provider)}, nil
	})

	d.RegisterMethod("model.health", ScopeRead, func(ctx context.Context, conn *ConnState, raw json.RawMessage, stream *Stream) (any, error) {
		var p modelHealthParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, InvalidParams(err)
		}
		if p.Provider == "" {
			return nil, newError(CodeInvalidParams, "provider is required")
		}
		if svc.Providers == nil {
			return nil, newError(CodeInternalError, "provider registry unavailable")
		}
		health, err := svc.Providers.Health(ctx, p.Provider)
		if err != nil {
			if err == agent.ErrProviderNotFound {
				return nil, NotFound("provider")
			}
			return nil, newError(CodeInternalError, err.Error())
		}
		return health, nil
	})

	d.RegisterMethod("model.switch", ScopeAdmin, func(ctx context.Context, conn *ConnState, raw json.RawMessage, stream *Stream) (any, error) {
		var p modelSwitchParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, InvalidParams(err)
		}
		if svc.Providers == nil || svc.Runtime == nil {
			return nil, newError(CodeInternalError, "provider registry unavailable")
		}
		provider, err := svc.Providers.Get(p.Provider)
		if err != nil {
			if err == agent.ErrProviderNotFound {
				return nil, NotFound("provider")
			}
			return nil, newError(CodeInternalError, err.Error())
		}
		if err := svc.Providers.SetActive(p.Provider); err != nil {
			return nil, newError(CodeInternalError, err.Error())
		}
		svc.Runtime.SetProvider(provider)
		return map[string]any{"active": p.Provider}, nil
	})
}
