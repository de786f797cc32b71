package rpc

import (
	"context"
	"encoding/json"
)

type eventsSubscribeParams struct {
	// Types optionally restricts delivery to these event type strings. An
	// empty list delivers every event on the bus.
	Types []string `json:"types,omitempty"`
}

func registerEventsMethods(d *Dispatcher, svc *Services) {
	d.RegisterStreamingMethod("events.subscribe", ScopeRead, func(ctx context.Context, conn *ConnState, raw json.RawMessage, stream *Stream) (any, error) {
		if svc.Events == nil {
			return nil, newError(CodeInternalError, "event bus unavailable")
		}
		var p eventsSubscribeParams
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, InvalidParams(err)
			}
		}
		want := make(map[string]bool, len(p.Types))
		for _, t := range p.Types {
			want[t] = true
		}

		events, unsubscribe := svc.Events.Subscribe()
		defer unsubscribe()

		delivered := 0
		for {
			select {
			case <-ctx.Done():
				return map[string]any{"delivered": delivered}, nil
			case be, ok := <-events:
				if !ok {
					return map[string]any{"delivered": delivered}, nil
				}
				if be.Lagged != nil {
					stream.Send("events.lagged", be.Lagged)
					continue
				}
				if be.Event == nil {
					continue
				}
				if len(want) > 0 && !want[string(be.Event.Type)] {
					continue
				}
				stream.Send("events.event", be.Event)
				delivered++
			}
		}
	})
}
